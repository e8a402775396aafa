package bench

import (
	"context"
	"errors"
	"testing"
	"time"

	"txbench/pkg/bencherrors"
	"txbench/pkg/txrpc"
)

// discoveryTransport answers GetDataURL with canned responses/errors in
// sequence, and SessionAck-style StartSession payloads where needed.
type discoveryTransport struct {
	fakeTransport
	responses []discoveryResponse
	calls     int
}

type discoveryResponse struct {
	payload []byte
	err     error
}

func (d *discoveryTransport) SendRequest(ctx context.Context, verb txrpc.Verb, payload []byte, ep txrpc.Endpoint, timeout time.Duration) ([]byte, error) {
	if d.calls >= len(d.responses) {
		return nil, errors.New("discoveryTransport: no more canned responses")
	}
	r := d.responses[d.calls]
	d.calls++
	return r.payload, r.err
}

// Scenario 5 (spec.md §8): the bootstrap endpoint refuses discovery twice,
// then succeeds; Discover must retry through the refusals and return the
// eventual data URL.
func TestDiscoverRetriesThroughRefusals(t *testing.T) {
	ft := &discoveryTransport{
		responses: []discoveryResponse{
			{err: bencherrors.New(bencherrors.RequestTimeout, "refused")},
			{err: bencherrors.New(bencherrors.RequestTimeout, "refused again")},
			{payload: []byte("tcp://10.0.0.1:9000")},
		},
	}
	url, err := Discover(context.Background(), ft, []string{"tcp://bootstrap:9000"}, 0)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if url != "tcp://10.0.0.1:9000" {
		t.Fatalf("got %q", url)
	}
	if ft.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", ft.calls)
	}
}

func TestDiscoverShardOutOfRange(t *testing.T) {
	ft := &discoveryTransport{}
	_, err := Discover(context.Background(), ft, []string{"tcp://bootstrap:9000"}, 5)
	var be *bencherrors.Error
	if !errors.As(err, &be) || be.Kind != bencherrors.NoRemoteEndpoint {
		t.Fatalf("expected NoRemoteEndpoint, got %v", err)
	}
}

func TestDiscoverEmptyResponseIsRetried(t *testing.T) {
	ft := &discoveryTransport{
		responses: []discoveryResponse{
			{payload: nil},
			{payload: []byte("tcp://10.0.0.2:9000")},
		},
	}
	url, err := Discover(context.Background(), ft, []string{"tcp://bootstrap:9000"}, 0)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if url != "tcp://10.0.0.2:9000" {
		t.Fatalf("got %q", url)
	}
}

func TestDiscoverCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ft := &discoveryTransport{responses: []discoveryResponse{{payload: []byte("unused")}}}
	_, err := Discover(ctx, ft, []string{"tcp://bootstrap:9000"}, 0)
	if !errors.Is(err, bencherrors.ErrCancelled) {
		t.Fatalf("expected ErrCancelled, got %v", err)
	}
}
