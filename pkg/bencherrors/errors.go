// Package bencherrors defines the error kinds the benchmark client's
// start-up and hot-path components raise, replacing string-matched errors
// with typed sentinels a RetryDriver can reason about without parsing
// messages.
package bencherrors

// Kind classifies a benchmark client error so callers can switch on its
// cause rather than on its message.
type Kind int

const (
	// NoRemoteEndpoint: shard id exceeds the configured remotes list.
	NoRemoteEndpoint Kind = iota
	// RequestTimeout: no response within the attempt's timeout.
	RequestTimeout
	// TransportShutdown: the transport is tearing down; short-circuits retries.
	TransportShutdown
	// EmptyResponse: a required response payload was empty.
	EmptyResponse
	// DuplicateInvocation: RetryDriver.run invoked a second time.
	DuplicateInvocation
	// AckValidation: malformed or inconsistent ack.
	AckValidation
	// Cancelled: externally stopped during an await.
	Cancelled
)

func (k Kind) String() string {
	switch k {
	case NoRemoteEndpoint:
		return "NoRemoteEndpoint"
	case RequestTimeout:
		return "RequestTimeout"
	case TransportShutdown:
		return "TransportShutdown"
	case EmptyResponse:
		return "EmptyResponse"
	case DuplicateInvocation:
		return "DuplicateInvocation"
	case AckValidation:
		return "AckValidation"
	case Cancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// Error is the concrete error type raised by the benchmark client. It
// carries a Kind so callers can switch on cause rather than string-match,
// the way juno's internal/cli.Error let handlers branch on errno.
type Error struct {
	Kind Kind
	What string
}

func New(k Kind, what string) *Error {
	return &Error{Kind: k, What: what}
}

func (e *Error) Error() string {
	if e.What == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.What
}

// Retryable reports whether this error's kind is one a further attempt may
// cure (RequestTimeout, EmptyResponse). retry.Driver does not consult it:
// the driver retries every error except TransportShutdown, which it
// short-circuits by forcing attempt := retries.
func (e *Error) Retryable() bool {
	switch e.Kind {
	case RequestTimeout, EmptyResponse:
		return true
	default:
		return false
	}
}

// IsShutdown reports whether err signals that the transport is tearing
// down, the condition RetryDriver treats as a short-circuit.
func IsShutdown(err error) bool {
	be, ok := err.(*Error)
	return ok && be.Kind == TransportShutdown
}

var (
	ErrDuplicateInvocation = New(DuplicateInvocation, "RetryDriver.run invoked twice")
	ErrCancelled           = New(Cancelled, "stopped while awaiting")
)
