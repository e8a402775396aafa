package benchconfig

import "testing"

func TestLoadDefaults(t *testing.T) {
	var l Loader
	l.Init()
	cfg, err := l.Load(nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RequestSize != defaultRequestSize {
		t.Errorf("RequestSize = %d, want %d", cfg.RequestSize, defaultRequestSize)
	}
	if cfg.AckCount != defaultAckCount {
		t.Errorf("AckCount = %d, want %d", cfg.AckCount, defaultAckCount)
	}
	if cfg.PipelineCount != defaultPipelineDepthCount {
		t.Errorf("PipelineCount = %d, want %d", cfg.PipelineCount, defaultPipelineDepthCount)
	}
	if cfg.NumShards != defaultShardCount {
		t.Errorf("NumShards = %d, want %d", cfg.NumShards, defaultShardCount)
	}
}

func TestLoadFlagsOverrideDefaults(t *testing.T) {
	var l Loader
	l.Init()
	cfg, err := l.Load([]string{
		"-request_size", "1024",
		"-ack_count", "10",
		"-tcp_remotes", "tcp://a:1 tcp://b:2",
		"-n", "4",
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.RequestSize != 1024 {
		t.Errorf("RequestSize = %d, want 1024", cfg.RequestSize)
	}
	if cfg.AckCount != 10 {
		t.Errorf("AckCount = %d, want 10", cfg.AckCount)
	}
	if cfg.NumShards != 4 {
		t.Errorf("NumShards = %d, want 4", cfg.NumShards)
	}
	if len(cfg.TCPRemotes) != 2 || cfg.TCPRemotes[0] != "tcp://a:1" || cfg.TCPRemotes[1] != "tcp://b:2" {
		t.Errorf("TCPRemotes = %v, want [tcp://a:1 tcp://b:2]", cfg.TCPRemotes)
	}
}

func TestApplyFileConfigOnlyOverridesNonZero(t *testing.T) {
	cfg := &Config{RequestSize: 512, AckCount: 5, PipelineCount: 10, NumShards: 1}
	fc := &FileConfig{PipelineDepthCount: 64}
	applyFileConfig(cfg, fc)

	if cfg.RequestSize != 512 {
		t.Errorf("RequestSize overwritten by zero-valued file field: got %d", cfg.RequestSize)
	}
	if cfg.PipelineCount != 64 {
		t.Errorf("PipelineCount = %d, want 64", cfg.PipelineCount)
	}
}
