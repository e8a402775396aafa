package bench

import "testing"

func TestCanSendRespectsBothLimits(t *testing.T) {
	s := NewState(SessionConfig{ResponseSize: 100, PipelineSize: 250, PipelineCount: 2})
	if !s.CanSend() {
		t.Fatal("expected fresh state to be sendable")
	}
	s.recordSend()
	if !s.CanSend() {
		t.Fatal("expected headroom after 1 of 2 sends")
	}
	s.recordSend()
	if s.CanSend() {
		t.Fatal("expected pipelineCount exhausted after 2 sends")
	}
}

func TestCanSendRespectsByteLimitIndependently(t *testing.T) {
	s := NewState(SessionConfig{ResponseSize: 100, PipelineSize: 150, PipelineCount: 100})
	s.recordSend()
	if !s.CanSend() {
		t.Fatal("expected headroom at 100/150 bytes")
	}
	s.recordSend()
	if s.CanSend() {
		t.Fatal("expected pipelineSize exhausted at 200/150 bytes even though count limit is nowhere near")
	}
}

func TestRecordSendAccumulatesTotals(t *testing.T) {
	s := NewState(SessionConfig{ResponseSize: 64, PipelineSize: 1 << 20, PipelineCount: 1 << 10})
	for i := 0; i < 5; i++ {
		s.recordSend()
	}
	if s.TotalCount() != 5 || s.TotalSize() != 320 {
		t.Fatalf("got totalCount=%d totalSize=%d, want 5,320", s.TotalCount(), s.TotalSize())
	}
	if s.UnackedCount() != 5 || s.UnackedSize() != 320 {
		t.Fatalf("got unackedCount=%d unackedSize=%d, want 5,320", s.UnackedCount(), s.UnackedSize())
	}
}

func TestSetUnackedOverwrites(t *testing.T) {
	s := NewState(SessionConfig{ResponseSize: 64, PipelineSize: 1 << 20, PipelineCount: 1 << 10})
	for i := 0; i < 5; i++ {
		s.recordSend()
	}
	s.setUnacked(2, 128)
	if s.UnackedCount() != 2 || s.UnackedSize() != 128 {
		t.Fatalf("got unackedCount=%d unackedSize=%d, want 2,128", s.UnackedCount(), s.UnackedSize())
	}
	if s.TotalCount() != 5 {
		t.Fatalf("expected totalCount unaffected by setUnacked, got %d", s.TotalCount())
	}
}

func TestGaugeSourceReflectsCredit(t *testing.T) {
	s := NewState(SessionConfig{ResponseSize: 64, PipelineSize: 1000, PipelineCount: 10, AckCount: 3})
	s.SetSessionID(77)
	s.recordSend()
	s.recordSend()

	if s.AckBatchSize() != 3 {
		t.Fatalf("AckBatchSize() = %d, want 3", s.AckBatchSize())
	}
	if s.SessionID() != 77 {
		t.Fatalf("SessionID() = %d, want 77", s.SessionID())
	}
	if s.PipelineDepth() != 8 {
		t.Fatalf("PipelineDepth() = %d, want 8", s.PipelineDepth())
	}
	if s.PipelineBytes() != 872 {
		t.Fatalf("PipelineBytes() = %d, want 872", s.PipelineBytes())
	}
}
