package bench

import (
	"context"
	"time"

	"txbench/pkg/benchmetrics"
	"txbench/pkg/latency"
	"txbench/pkg/txrpc"
	"txbench/third_party/forked/golang/glog"
)

// Loop drives the pipelined send/ack state machine (spec.md §4.4). There
// is exactly one goroutine — the shard's reactor — executing Run; acks
// arrive on ackCh from the transport's own read-loop goroutine and are
// processed inline by this same goroutine, so no locking is needed around
// State, Ring or Histogram (all shard-owned). This channel receive is
// this port's "awakener": when canSend() is false the reactor blocks on
// the same receive it would otherwise poll opportunistically, so at most
// one goroutine is ever waiting on it — the single-awakener invariant
// holds by construction rather than by an explicit assertion.
type Loop struct {
	state     *State
	ring      *latency.Ring
	hist      *latency.Histogram
	metrics   *benchmetrics.Binding
	transport txrpc.Transport
	ackCh     <-chan txrpc.Message
	scratch   []byte

	stopped bool
}

func NewLoop(state *State, ring *latency.Ring, hist *latency.Histogram, metrics *benchmetrics.Binding, transport txrpc.Transport, ackCh <-chan txrpc.Message) *Loop {
	return &Loop{
		state:     state,
		ring:      ring,
		hist:      hist,
		metrics:   metrics,
		transport: transport,
		ackCh:     ackCh,
		scratch:   make([]byte, state.config.ResponseSize),
	}
}

// Run executes the loop until stopCh fires, timerCh fires, or ackCh is
// closed (transport torn down). It returns the wall-clock time the loop
// actually ran for — spec.md §4.4.5's actualTestDuration.
func (l *Loop) Run(ctx context.Context, stopCh <-chan struct{}, timerCh <-chan time.Time) time.Duration {
	start := time.Now()
	for {
		if l.stopped {
			return time.Since(start)
		}
		select {
		case <-stopCh:
			l.stopped = true
			return time.Since(start)
		case <-timerCh:
			l.stopped = true
			return time.Since(start)
		case msg, ok := <-l.ackCh:
			if !ok {
				l.stopped = true
				return time.Since(start)
			}
			l.handleAck(msg)
		default:
			if l.state.CanSend() {
				l.send()
			} else {
				// Awaiting-Credit: block until an ack restores credit,
				// the timer fires, or we're stopped.
				select {
				case <-stopCh:
					l.stopped = true
					return time.Since(start)
				case <-timerCh:
					l.stopped = true
					return time.Since(start)
				case msg, ok := <-l.ackCh:
					if !ok {
						l.stopped = true
						return time.Since(start)
					}
					l.handleAck(msg)
				}
			}
		}
	}
}

// send performs one pipelined request issue (spec.md §4.4.2): allocate,
// write the header, fill the rest from the shard's zero scratch buffer,
// bump state, stamp the latency ring, and fire-and-forget REQUEST. The
// send must not await delivery — only that the transport has taken the
// payload — or the pipeline degenerates to depth 1.
func (l *Loop) send() {
	payload := l.transport.Alloc(l.state.client, int(l.state.config.ResponseSize))
	totalCount := l.state.totalCount + 1

	EncodeRequestHeader(payload, atomicSessionID(l.state), totalCount)
	copy(payload[HeaderSize:], l.scratch[HeaderSize:])

	now := time.Now()
	actualCount := l.state.recordSend()
	l.ring.Stamp(actualCount, now)

	if err := l.transport.Send(txrpc.VerbRequest, payload, l.state.client); err != nil {
		glog.Warningf("benchloop: send failed: %v", err)
		return
	}
	l.metrics.RecordSend(int64(l.state.config.ResponseSize))
}

func atomicSessionID(s *State) uint64 {
	return uint64(s.SessionID())
}

// handleAck applies spec.md §4.4.4's validation and credit-update rules,
// in order. A malformed payload, a wrong session id, or a totalCount or
// totalSize beyond what was issued drops the ack; a stale ack and a bad
// checksum are logged but not dropped.
func (l *Loop) handleAck(msg txrpc.Message) {
	ack, ok := DecodeAck(msg.Payload)
	if !ok {
		glog.Warningf("benchloop: malformed ack payload")
		return
	}

	if ack.SessionID != atomicSessionID(l.state) {
		glog.Warningf("benchloop: ack session id %d != %d, dropping", ack.SessionID, atomicSessionID(l.state))
		return
	}
	if ack.TotalCount > l.state.totalCount {
		glog.Warningf("benchloop: ack totalCount %d exceeds issued %d, dropping", ack.TotalCount, l.state.totalCount)
		return
	}
	if ack.TotalCount <= l.state.lastAckedTotal {
		glog.Warningf("benchloop: stale/out-of-order ack totalCount %d <= lastAckedTotal %d, tolerating", ack.TotalCount, l.state.lastAckedTotal)
		// Intentionally not dropped — see spec.md §9 on this asymmetry.
	}
	if ack.TotalSize > l.state.totalSize {
		glog.Warningf("benchloop: ack totalSize %d exceeds issued %d, dropping", ack.TotalSize, l.state.totalSize)
		return
	}
	if ack.Checksum != Checksum(ack.TotalCount) {
		glog.Warningf("benchloop: bad checksum for totalCount %d, continuing", ack.TotalCount)
	}

	l.sampleLatencies(ack.TotalCount)

	l.state.setUnacked(l.state.totalCount-ack.TotalCount, l.state.totalSize-ack.TotalSize)
	l.state.lastAckedTotal = ack.TotalCount
}

// sampleLatencies records one histogram sample for every request newly
// covered by the ack. Request ids are the 1-based post-increment
// totalCount values send() stamps into the ring, so the covered ids are
// (totalCount-unackedCount, ack.totalCount].
func (l *Loop) sampleLatencies(ackTotalCount uint64) {
	now := time.Now()
	from := l.state.totalCount - l.state.UnackedCount()
	for r := from + 1; r <= ackTotalCount; r++ {
		issued := l.ring.IssuedAt(r)
		if issued.IsZero() {
			continue
		}
		d := now.Sub(issued)
		l.hist.Record(d)
		l.metrics.RecordLatency(d)
	}
}
