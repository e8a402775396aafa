package bench

import (
	"context"
	"testing"
	"time"

	"txbench/pkg/benchmetrics"
	"txbench/pkg/latency"
	"txbench/pkg/txrpc"
)

// fakeTransport records every Send call; SendRequest/Resolve are unused
// by these hot-path tests.
type fakeTransport struct {
	sent [][]byte
}

func (f *fakeTransport) Resolve(ctx context.Context, rawURL string) (txrpc.Endpoint, error) {
	return txrpc.Endpoint{URL: rawURL}, nil
}
func (f *fakeTransport) Alloc(ep txrpc.Endpoint, n int) []byte { return make([]byte, n) }
func (f *fakeTransport) Release(ep txrpc.Endpoint, buf []byte) {}
func (f *fakeTransport) SendRequest(ctx context.Context, verb txrpc.Verb, payload []byte, ep txrpc.Endpoint, timeout time.Duration) ([]byte, error) {
	return nil, nil
}
func (f *fakeTransport) Send(verb txrpc.Verb, payload []byte, ep txrpc.Endpoint) error {
	f.sent = append(f.sent, payload)
	return nil
}
func (f *fakeTransport) RegisterObserver(ep txrpc.Endpoint, verb txrpc.Verb) <-chan txrpc.Message {
	return nil
}
func (f *fakeTransport) RegisterLowMemoryObserver(func()) {}
func (f *fakeTransport) Close(ep txrpc.Endpoint)           {}

func newTestLoop(t *testing.T, pipelineCount uint32, pipelineSize uint32) (*Loop, *fakeTransport) {
	t.Helper()
	cfg := SessionConfig{ResponseSize: 512, PipelineSize: pipelineSize, PipelineCount: pipelineCount, AckCount: 5}
	state := NewState(cfg)
	state.SetSessionID(1)
	ring := latency.NewRing(pipelineCount)
	hist := latency.NewHistogram()
	metrics, err := benchmetrics.New(benchmetrics.Config{}, 0, 1, 1, state)
	if err != nil {
		t.Fatalf("benchmetrics.New: %v", err)
	}
	ft := &fakeTransport{}
	loop := NewLoop(state, ring, hist, metrics, ft, nil)
	return loop, ft
}

// Scenario 1: single send, single ack.
func TestSingleSendSingleAck(t *testing.T) {
	loop, ft := newTestLoop(t, 1, 1<<20)

	loop.send()
	if len(ft.sent) != 1 {
		t.Fatalf("expected 1 send, got %d", len(ft.sent))
	}
	if loop.state.UnackedCount() != 1 || loop.state.UnackedSize() != 512 {
		t.Fatalf("unexpected credit state after send: count=%d size=%d", loop.state.UnackedCount(), loop.state.UnackedSize())
	}

	ack := AckRecord{SessionID: 1, TotalCount: 1, TotalSize: 512, Checksum: Checksum(1)}
	loop.handleAck(txrpc.Message{Verb: txrpc.VerbAck, Payload: ack.Encode()})

	if loop.state.UnackedCount() != 0 || loop.state.UnackedSize() != 0 {
		t.Fatalf("expected credit returned to zero, got count=%d size=%d", loop.state.UnackedCount(), loop.state.UnackedSize())
	}
	if loop.hist.TotalCount() != 1 {
		t.Fatalf("expected 1 histogram sample, got %d", loop.hist.TotalCount())
	}
	if !loop.state.CanSend() {
		t.Fatalf("expected sender to be able to resume")
	}
}

// Scenario 2: pipeline full, then an ack restores credit.
func TestPipelineFullThenAckRestoresCredit(t *testing.T) {
	loop, ft := newTestLoop(t, 2, 1<<20)

	loop.send()
	loop.send()
	if loop.state.CanSend() {
		t.Fatalf("expected pipeline full after 2 sends with pipelineCount=2")
	}

	ack := AckRecord{SessionID: 1, TotalCount: 1, TotalSize: 512, Checksum: Checksum(1)}
	loop.handleAck(txrpc.Message{Verb: txrpc.VerbAck, Payload: ack.Encode()})

	if !loop.state.CanSend() {
		t.Fatalf("expected credit restored after ack covering request 1")
	}
	loop.send()
	if len(ft.sent) != 3 {
		t.Fatalf("expected 3 sends total, got %d", len(ft.sent))
	}
}

// Scenario 3: a stale ack is tolerated, not dropped.
func TestStaleAckIsToleratedNotDropped(t *testing.T) {
	loop, _ := newTestLoop(t, 10, 1<<20)
	for i := 0; i < 5; i++ {
		loop.send()
	}
	firstAck := AckRecord{SessionID: 1, TotalCount: 5, TotalSize: 5 * 512, Checksum: Checksum(5)}
	loop.handleAck(txrpc.Message{Verb: txrpc.VerbAck, Payload: firstAck.Encode()})
	if loop.state.lastAckedTotal != 5 {
		t.Fatalf("expected lastAckedTotal=5, got %d", loop.state.lastAckedTotal)
	}

	staleAck := AckRecord{SessionID: 1, TotalCount: 4, TotalSize: 4 * 512, Checksum: Checksum(4)}
	loop.handleAck(txrpc.Message{Verb: txrpc.VerbAck, Payload: staleAck.Encode()})

	// The stale branch logs but still falls through to the credit update,
	// per spec.md §9's documented asymmetry.
	if loop.state.UnackedCount() != loop.state.totalCount-4 {
		t.Fatalf("expected credit recomputed from stale totalCount=4, got unackedCount=%d", loop.state.UnackedCount())
	}
}

// Scenario 4: a bad checksum is logged but still processed.
func TestBadChecksumStillProcessed(t *testing.T) {
	loop, _ := newTestLoop(t, 10, 1<<20)
	for i := 0; i < 3; i++ {
		loop.send()
	}
	ack := AckRecord{SessionID: 1, TotalCount: 3, TotalSize: 3 * 512, Checksum: 99}
	loop.handleAck(txrpc.Message{Verb: txrpc.VerbAck, Payload: ack.Encode()})

	if loop.state.UnackedCount() != 0 {
		t.Fatalf("expected credit update to proceed despite bad checksum, got unackedCount=%d", loop.state.UnackedCount())
	}
	if loop.hist.TotalCount() != 3 {
		t.Fatalf("expected 3 latency samples despite bad checksum, got %d", loop.hist.TotalCount())
	}
}

// Wrong-session acks are dropped without mutating credit.
func TestWrongSessionAckDropped(t *testing.T) {
	loop, _ := newTestLoop(t, 10, 1<<20)
	loop.send()
	ack := AckRecord{SessionID: 99, TotalCount: 1, TotalSize: 512, Checksum: Checksum(1)}
	loop.handleAck(txrpc.Message{Verb: txrpc.VerbAck, Payload: ack.Encode()})
	if loop.state.UnackedCount() != 1 {
		t.Fatalf("expected ack for wrong session to be dropped, got unackedCount=%d", loop.state.UnackedCount())
	}
}
