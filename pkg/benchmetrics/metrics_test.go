package benchmetrics

import "testing"

type fakeGaugeSource struct{}

func (fakeGaugeSource) AckBatchSize() int64  { return 5 }
func (fakeGaugeSource) SessionID() int64     { return 1 }
func (fakeGaugeSource) PipelineDepth() int64 { return 3 }
func (fakeGaugeSource) PipelineBytes() int64 { return 4096 }

func TestConfigDefaults(t *testing.T) {
	var c Config
	c.setDefaultIfNotDefined()
	if c.Host != "127.0.0.1" || c.Port != 4318 || c.Resolution != 10 {
		t.Fatalf("unexpected defaults: %+v", c)
	}
	if len(c.LatencyBucketsMs) == 0 {
		t.Fatal("expected default latency buckets")
	}
}

func TestConfigDefaultsDoNotOverrideSetFields(t *testing.T) {
	c := Config{Host: "metrics.internal", Port: 9999}
	c.setDefaultIfNotDefined()
	if c.Host != "metrics.internal" || c.Port != 9999 {
		t.Fatalf("defaults clobbered explicit fields: %+v", c)
	}
}

func TestNewRegistersInstrumentsWithoutError(t *testing.T) {
	b, err := New(Config{}, 0, 4, 4, fakeGaugeSource{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if b == nil {
		t.Fatal("expected non-nil binding")
	}
	b.RecordSend(512)
	b.RecordLatency(0)
}
