package bench

import "testing"

func TestChecksumIsTriangularNumber(t *testing.T) {
	cases := map[uint64]uint64{0: 0, 1: 1, 2: 3, 3: 6, 10: 55}
	for n, want := range cases {
		if got := Checksum(n); got != want {
			t.Errorf("Checksum(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestSessionConfigRoundTrip(t *testing.T) {
	rec := SessionConfigRecord{EchoMode: true, ResponseSize: 4096, PipelineSize: 1 << 20, PipelineCount: 64, AckCount: 5}
	got, ok := DecodeSessionConfig(rec.Encode())
	if !ok {
		t.Fatal("decode failed")
	}
	if got != rec {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestDecodeSessionConfigTruncated(t *testing.T) {
	if _, ok := DecodeSessionConfig(make([]byte, 3)); ok {
		t.Fatal("expected decode of truncated buffer to fail")
	}
}

func TestAckRoundTrip(t *testing.T) {
	rec := AckRecord{SessionID: 42, TotalCount: 1000, TotalSize: 512000, Checksum: Checksum(1000)}
	got, ok := DecodeAck(rec.Encode())
	if !ok {
		t.Fatal("decode failed")
	}
	if got != rec {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, rec)
	}
}

func TestRequestHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, HeaderSize)
	EncodeRequestHeader(buf, 7, 99)
	sid, total := DecodeRequestHeader(buf)
	if sid != 7 || total != 99 {
		t.Fatalf("got sid=%d total=%d, want 7,99", sid, total)
	}
}
