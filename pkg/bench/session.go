package bench

import (
	"txbench/pkg/txrpc"
	"txbench/pkg/util"
	"txbench/third_party/forked/golang/glog"
)

// SessionConfig is immutable after construction (spec.md §3).
type SessionConfig struct {
	EchoMode      bool
	ResponseSize  uint32
	PipelineSize  uint32
	PipelineCount uint32
	AckCount      uint32
}

func (c SessionConfig) toWire() SessionConfigRecord {
	return SessionConfigRecord{
		EchoMode:      c.EchoMode,
		ResponseSize:  c.ResponseSize,
		PipelineSize:  c.PipelineSize,
		PipelineCount: c.PipelineCount,
		AckCount:      c.AckCount,
	}
}

// State is mutated only by the owning shard's reactor goroutine
// (spec.md §3's SessionState); the atomics below exist solely so
// benchmetrics' async gauge callback — which runs on an otel-owned
// goroutine, not the shard's — can read a consistent snapshot without a
// lock, the one place shard-local state legitimately crosses a goroutine
// boundary (see SPEC_FULL.md §2.2).
type State struct {
	config SessionConfig

	sessionID util.AtomicUint64Counter
	client    txrpc.Endpoint

	totalSize   uint64
	totalCount  uint64
	unackedSize util.AtomicUint64Counter
	unackedCnt  util.AtomicUint64Counter

	lastAckedTotal uint64
}

// NewState constructs the per-shard session state. The only fatal global
// error in this program is a configuration that cannot produce a valid
// request: the response (padded to ResponseSize, spec.md §7) must be at
// least as large as RequestHeader, or send() has nothing to pad into and
// would slice out of bounds on the first request. Asserted here, at send
// construction, rather than left to surface as a panic in the hot path.
func NewState(cfg SessionConfig) *State {
	if cfg.ResponseSize < HeaderSize {
		glog.Exitf("bench: invalid configuration: response_size %d is smaller than the %d-byte request header (padding < responseSize)", cfg.ResponseSize, HeaderSize)
	}
	return &State{config: cfg}
}

func (s *State) SetClient(ep txrpc.Endpoint) { s.client = ep }
func (s *State) Client() txrpc.Endpoint      { return s.client }

func (s *State) SetSessionID(id uint64) { s.sessionID.Set(id) }

func (s *State) TotalCount() uint64   { return s.totalCount }
func (s *State) TotalSize() uint64    { return s.totalSize }
func (s *State) UnackedCount() uint64 { return s.unackedCnt.Get() }
func (s *State) UnackedSize() uint64  { return s.unackedSize.Get() }

// CanSend implements the credit predicate (spec.md §4.4.1): both the byte
// and count limits must have headroom.
func (s *State) CanSend() bool {
	return s.UnackedSize() < uint64(s.config.PipelineSize) && s.UnackedCount() < uint64(s.config.PipelineCount)
}

// recordSend applies the per-send state update (spec.md §4.4.2 step 3):
// totalSize += responseSize; totalCount += 1; unackedSize += responseSize;
// unackedCount += 1. Returns the post-increment totalCount, the value the
// caller stamps into the LatencyRing and writes into the request header.
func (s *State) recordSend() uint64 {
	s.totalSize += uint64(s.config.ResponseSize)
	s.totalCount++
	s.unackedSize.Add(uint64(s.config.ResponseSize))
	s.unackedCnt.Add(1)
	return s.totalCount
}

// setUnacked overwrites unackedCount/unackedSize, used by the ack handler
// to apply spec.md §4.4.4 step 7's credit-update formula.
func (s *State) setUnacked(count, size uint64) {
	s.unackedCnt.Set(count)
	s.unackedSize.Set(size)
}

// GaugeSource implementation (benchmetrics.GaugeSource).
func (s *State) AckBatchSize() int64 { return int64(s.config.AckCount) }
func (s *State) SessionID() int64    { return int64(s.sessionID.Get()) }
func (s *State) PipelineDepth() int64 {
	return int64(s.config.PipelineCount) - int64(s.UnackedCount())
}
func (s *State) PipelineBytes() int64 {
	return int64(s.config.PipelineSize) - int64(s.UnackedSize())
}
