// Package txrpc is the RPC transport the benchmark client core consumes
// as an external collaborator: an endpoint registry, a per-endpoint
// payload allocator, request/response and one-way sends, and verb-keyed
// observer registration. It implements a minimal length-prefixed TCP
// framing so the client is runnable end to end; the wire records inside a
// payload (SessionConfig, Ack, ...) are the core's concern, not this
// package's — txrpc only moves opaque verb-tagged byte payloads.
//
// Grounded in pkg/io's bufio.Reader/net.Conn dial style from the teacher
// (a single-shot dial, no reconnect-after-loss, matching spec.md's
// non-goal of reconnection).
package txrpc

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"sync"
	"time"

	"txbench/pkg/bencherrors"
	"txbench/pkg/util"
	"txbench/third_party/forked/golang/glog"
)

// Verb names an RPC by name, matching spec.md §6's GET_DATA_URL,
// START_SESSION, REQUEST and ACK verbs.
type Verb byte

const (
	VerbGetDataURL Verb = iota
	VerbStartSession
	VerbRequest
	VerbAck
)

// Endpoint is a resolved remote handle returned by Resolve.
type Endpoint struct {
	URL  string
	conn *connection
}

// Message is a verb-tagged payload delivered to an observer channel.
type Message struct {
	Verb    Verb
	Payload []byte
}

// Transport is the contract BenchLoop, Discovery and SessionHandshake
// consume. A concrete Transport owns no benchmark-domain knowledge; it
// only frames and moves bytes.
type Transport interface {
	// Resolve dials url and returns a handle usable by the other methods.
	Resolve(ctx context.Context, rawURL string) (Endpoint, error)
	// Alloc returns a payload buffer of size n, sized for the given
	// endpoint's allocator (a per-endpoint pool, per spec.md §6).
	Alloc(ep Endpoint, n int) []byte
	// Release returns a buffer obtained from Alloc back to the pool.
	Release(ep Endpoint, buf []byte)
	// SendRequest performs a request/response RPC and returns the
	// response payload, or a RequestTimeout/TransportShutdown error.
	SendRequest(ctx context.Context, verb Verb, payload []byte, ep Endpoint, timeout time.Duration) ([]byte, error)
	// Send is a fire-and-forget one-way send; it resolves as soon as the
	// transport has taken ownership of the payload, not on peer ack.
	Send(verb Verb, payload []byte, ep Endpoint) error
	// RegisterObserver returns a channel that receives every inbound
	// message of the given verb on ep's connection, until the endpoint is
	// closed. Registering the same verb twice on the same endpoint panics.
	RegisterObserver(ep Endpoint, verb Verb) <-chan Message
	// RegisterLowMemoryObserver registers a callback invoked when the
	// transport detects memory pressure. Unused by the core but present
	// for parity with the original transport contract.
	RegisterLowMemoryObserver(f func())
	// Close tears down the endpoint's connection and its observers.
	Close(ep Endpoint)
}

// connection is one dialed TCP connection and its per-verb observer fanout.
type connection struct {
	conn      net.Conn
	pool      util.BytePool
	writeMtx  sync.Mutex
	observers map[Verb]chan Message
	pending   map[Verb]chan Message // one-shot slots awaited by SendRequest
	pendMtx   sync.Mutex
	closeOnce sync.Once
	closed    chan struct{}
}

// TCPTransport is the concrete length-prefixed, verb-tagged framing over
// TCP: a 4-byte big-endian length, a 1-byte verb, then the payload.
type TCPTransport struct {
	dialTimeout time.Duration

	lowMemMtx sync.Mutex
	lowMemObs []func()
}

func NewTCPTransport(dialTimeout time.Duration) *TCPTransport {
	return &TCPTransport{dialTimeout: dialTimeout}
}

func (t *TCPTransport) Resolve(ctx context.Context, rawURL string) (Endpoint, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return Endpoint{}, fmt.Errorf("txrpc: invalid endpoint url %q: %w", rawURL, err)
	}
	d := net.Dialer{Timeout: t.dialTimeout}
	nc, err := d.DialContext(ctx, "tcp", u.Host)
	if err != nil {
		return Endpoint{}, bencherrors.New(bencherrors.RequestTimeout, err.Error())
	}
	c := &connection{
		conn:      nc,
		pool:      util.NewSyncBytePool(4096),
		observers: make(map[Verb]chan Message),
		pending:   make(map[Verb]chan Message),
		closed:    make(chan struct{}),
	}
	ep := Endpoint{URL: rawURL, conn: c}
	go t.readLoop(ep, c)
	return ep, nil
}

func (t *TCPTransport) Alloc(ep Endpoint, n int) []byte {
	buf := ep.conn.pool.Get()
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	return buf[:n]
}

func (t *TCPTransport) Release(ep Endpoint, buf []byte) {
	ep.conn.pool.Put(buf)
}

func (t *TCPTransport) RegisterObserver(ep Endpoint, verb Verb) <-chan Message {
	c := ep.conn
	c.pendMtx.Lock()
	defer c.pendMtx.Unlock()
	if _, exists := c.observers[verb]; exists {
		panic(fmt.Sprintf("txrpc: verb %d already has a registered observer", verb))
	}
	ch := make(chan Message, 256)
	c.observers[verb] = ch
	return ch
}

func (t *TCPTransport) RegisterLowMemoryObserver(f func()) {
	t.lowMemMtx.Lock()
	t.lowMemObs = append(t.lowMemObs, f)
	t.lowMemMtx.Unlock()
}

func (t *TCPTransport) Close(ep Endpoint) {
	c := ep.conn
	c.closeOnce.Do(func() {
		close(c.closed)
		c.conn.Close()
	})
}

func (t *TCPTransport) writeFrame(c *connection, verb Verb, payload []byte) error {
	var hdr [5]byte
	binary.BigEndian.PutUint32(hdr[0:4], uint32(len(payload)))
	hdr[4] = byte(verb)
	c.writeMtx.Lock()
	defer c.writeMtx.Unlock()
	if _, err := c.conn.Write(hdr[:]); err != nil {
		return bencherrors.New(bencherrors.TransportShutdown, err.Error())
	}
	if len(payload) > 0 {
		if _, err := c.conn.Write(payload); err != nil {
			return bencherrors.New(bencherrors.TransportShutdown, err.Error())
		}
	}
	return nil
}

func (t *TCPTransport) Send(verb Verb, payload []byte, ep Endpoint) error {
	return t.writeFrame(ep.conn, verb, payload)
}

func (t *TCPTransport) SendRequest(ctx context.Context, verb Verb, payload []byte, ep Endpoint, timeout time.Duration) ([]byte, error) {
	c := ep.conn
	waiter := make(chan Message, 1)
	c.pendMtx.Lock()
	c.pending[verb] = waiter
	c.pendMtx.Unlock()
	defer func() {
		c.pendMtx.Lock()
		delete(c.pending, verb)
		c.pendMtx.Unlock()
	}()

	if err := t.writeFrame(c, verb, payload); err != nil {
		return nil, err
	}

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	select {
	case msg := <-waiter:
		if len(msg.Payload) == 0 {
			return nil, bencherrors.New(bencherrors.EmptyResponse, "empty response payload")
		}
		return msg.Payload, nil
	case <-tctx.Done():
		return nil, bencherrors.New(bencherrors.RequestTimeout, "no response within deadline")
	case <-c.closed:
		return nil, bencherrors.New(bencherrors.TransportShutdown, "connection closed")
	}
}

func (t *TCPTransport) readLoop(ep Endpoint, c *connection) {
	defer t.Close(ep)
	var hdr [5]byte
	for {
		if _, err := io.ReadFull(c.conn, hdr[:]); err != nil {
			if !errors.Is(err, io.EOF) {
				glog.Warningf("txrpc: read error on %s: %v", ep.URL, err)
			}
			return
		}
		n := binary.BigEndian.Uint32(hdr[0:4])
		verb := Verb(hdr[4])
		payload := make([]byte, n)
		if n > 0 {
			if _, err := io.ReadFull(c.conn, payload); err != nil {
				glog.Warningf("txrpc: short read on %s: %v", ep.URL, err)
				return
			}
		}
		msg := Message{Verb: verb, Payload: payload}

		c.pendMtx.Lock()
		waiter, isPending := c.pending[verb]
		obs, hasObserver := c.observers[verb]
		c.pendMtx.Unlock()

		if isPending {
			select {
			case waiter <- msg:
			default:
			}
			continue
		}
		if hasObserver {
			select {
			case obs <- msg:
			default:
				glog.Warningf("txrpc: observer channel for verb %d full, dropping message", verb)
			}
		}
	}
}
