package latency

import (
	"testing"
	"time"
)

func TestRingSlotReuse(t *testing.T) {
	for _, p := range []uint32{1, 2} {
		r := NewRing(p)
		t0 := time.Now()
		r.Stamp(1, t0)
		if got := r.IssuedAt(1); !got.Equal(t0) {
			t.Fatalf("pipelineCount=%d: got %v, want %v", p, got, t0)
		}
		t1 := t0.Add(time.Millisecond)
		r.Stamp(1+uint64(p), t1)
		if got := r.IssuedAt(1 + uint64(p)); !got.Equal(t1) {
			t.Fatalf("pipelineCount=%d: slot reuse got %v, want %v", p, got, t1)
		}
	}
}

func TestHistogramReport(t *testing.T) {
	h := NewHistogram()
	for i := 1; i <= 100; i++ {
		h.Record(time.Duration(i) * time.Millisecond)
	}
	rep := h.Report()
	if rep.NumRequests != 100 {
		t.Fatalf("expected 100 samples, got %d", rep.NumRequests)
	}
	if rep.P50 < 40*time.Millisecond || rep.P50 > 60*time.Millisecond {
		t.Fatalf("unexpected p50 %v", rep.P50)
	}
}
