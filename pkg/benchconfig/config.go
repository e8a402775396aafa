// Package benchconfig loads the benchmark client's configuration from
// flags, with the teacher's pkg/cmd option framework, and optionally from
// a TOML file or an etcd key — grounded on
// test/drv/junoload/junoload.go's CmdOptions/Config/Parse pattern,
// adapted to the txbench flag surface (spec.md §6).
package benchconfig

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	clientv3 "go.etcd.io/etcd/client/v3"

	"txbench/pkg/bench"
	"txbench/pkg/benchmetrics"
	"txbench/pkg/cmd"
	"txbench/third_party/forked/golang/glog"
)

const (
	defaultRequestSize         = 512
	defaultAckCount            = 5
	defaultPipelineDepthMBytes = 200
	defaultPipelineDepthCount  = 10
	defaultEchoMode            = false
	defaultTestDurationS       = 30
	defaultShardCount          = 1
)

// FileConfig is the shape a -c/-config TOML file may declare, overridden
// by any flag the operator explicitly set, mirroring junoload.Parse's
// "cmdOpts != default => override" precedence.
type FileConfig struct {
	RequestSize         int
	AckCount            int
	PipelineDepthMBytes int
	PipelineDepthCount  int
	EchoMode            bool
	TCPRemotes          []string
	TestDurationS       int
	NumShards           int
	Metrics             benchmetrics.Config
}

// Config is the resolved configuration driving every shard.
type Config struct {
	RequestSize   int
	AckCount      uint32
	PipelineSize  uint32 // bytes
	PipelineCount uint32
	EchoMode      bool
	TCPRemotes    []string
	TestDuration  time.Duration
	NumShards     int
	Metrics       benchmetrics.Config
}

// Loader owns the flag definitions; call Init then Load, the same two-step
// cmd.Command lifecycle junoload's SyncTestDriver uses.
type Loader struct {
	cmd.Command

	cfgFile       string
	requestSize   int
	ackCount      int
	pipelineMB    int
	pipelineCount int
	echoMode      bool
	tcpRemotes    string
	testDuration  int
	numShards     int
	remotesEtcd   string
	etcdEndpoints string
	version       bool
}

// Version reports whether -version was set, checked before the rest of the
// resolved Config is meaningful.
func (l *Loader) Version() bool { return l.version }

func (l *Loader) Init() {
	l.Command.Init("txbenchclient", "pipelined per-core RPC throughput benchmark client")
	l.BoolOption(&l.version, "version", false, "display version info and exit")
	l.IntOption(&l.requestSize, "request_size", defaultRequestSize, "bytes per request (total including 16-byte header)")
	l.IntOption(&l.ackCount, "ack_count", defaultAckCount, "server-side ack batching hint")
	l.IntOption(&l.pipelineMB, "pipeline_depth_mbytes", defaultPipelineDepthMBytes, "pipeline credit in bytes (MB x 1024 x 1024)")
	l.IntOption(&l.pipelineCount, "pipeline_depth_count", defaultPipelineDepthCount, "pipeline credit in requests")
	l.BoolOption(&l.echoMode, "echo_mode", defaultEchoMode, "if true, server echoes payload on ack")
	l.StringOption(&l.tcpRemotes, "tcp_remotes", "", "space-separated bootstrap endpoint URLs, one per shard")
	l.IntOption(&l.testDuration, "test_duration_s", defaultTestDurationS, "benchmark duration in seconds")
	l.IntOption(&l.numShards, "n", defaultShardCount, "number of shards (one goroutine + session each)")
	l.StringOption(&l.cfgFile, "c|config", "", "optional TOML config file; explicit flags take precedence")
	l.StringOption(&l.remotesEtcd, "remotes-etcd-key", "", "source bootstrap endpoints from this etcd key instead of -tcp_remotes")
	l.StringOption(&l.etcdEndpoints, "etcd-endpoints", "127.0.0.1:2379", "comma-separated etcd endpoints, used with -remotes-etcd-key")
}

// Load parses args and resolves the final Config.
func (l *Loader) Load(args []string) (*Config, error) {
	if err := l.Parse(args); err != nil {
		return nil, err
	}

	cfg := &Config{
		RequestSize:   defaultRequestSize,
		AckCount:      defaultAckCount,
		PipelineSize:  uint32(defaultPipelineDepthMBytes) * 1024 * 1024,
		PipelineCount: defaultPipelineDepthCount,
		EchoMode:      defaultEchoMode,
		TestDuration:  defaultTestDurationS * time.Second,
		NumShards:     defaultShardCount,
	}

	if l.cfgFile != "" {
		var fc FileConfig
		if _, err := toml.DecodeFile(l.cfgFile, &fc); err != nil {
			return nil, fmt.Errorf("benchconfig: failed to load %s: %w", l.cfgFile, err)
		}
		applyFileConfig(cfg, &fc)
	}

	if l.requestSize != defaultRequestSize {
		cfg.RequestSize = l.requestSize
	}
	if l.ackCount != defaultAckCount {
		cfg.AckCount = uint32(l.ackCount)
	}
	if l.pipelineMB != defaultPipelineDepthMBytes {
		cfg.PipelineSize = uint32(l.pipelineMB) * 1024 * 1024
	}
	if l.pipelineCount != defaultPipelineDepthCount {
		cfg.PipelineCount = uint32(l.pipelineCount)
	}
	if l.echoMode != defaultEchoMode {
		cfg.EchoMode = l.echoMode
	}
	if l.testDuration != defaultTestDurationS {
		cfg.TestDuration = time.Duration(l.testDuration) * time.Second
	}
	if l.numShards != defaultShardCount {
		cfg.NumShards = l.numShards
	}
	if l.tcpRemotes != "" {
		cfg.TCPRemotes = strings.Fields(l.tcpRemotes)
	}

	if l.remotesEtcd != "" {
		remotes, err := loadRemotesFromEtcd(l.etcdEndpoints, l.remotesEtcd)
		if err != nil {
			return nil, err
		}
		glog.Infof("benchconfig: sourced %d remote(s) from etcd key %q", len(remotes), l.remotesEtcd)
		cfg.TCPRemotes = remotes
	}

	// The only fatal global error is configuration validity: request_size
	// must be at least large enough to hold the request header it is
	// padded around, or the first send has nothing to pad into.
	if cfg.RequestSize < bench.HeaderSize {
		return nil, fmt.Errorf("benchconfig: -request_size %d is smaller than the %d-byte request header", cfg.RequestSize, bench.HeaderSize)
	}

	cfg.Metrics.Validate()
	return cfg, nil
}

func applyFileConfig(cfg *Config, fc *FileConfig) {
	if fc.RequestSize != 0 {
		cfg.RequestSize = fc.RequestSize
	}
	if fc.AckCount != 0 {
		cfg.AckCount = uint32(fc.AckCount)
	}
	if fc.PipelineDepthMBytes != 0 {
		cfg.PipelineSize = uint32(fc.PipelineDepthMBytes) * 1024 * 1024
	}
	if fc.PipelineDepthCount != 0 {
		cfg.PipelineCount = uint32(fc.PipelineDepthCount)
	}
	cfg.EchoMode = fc.EchoMode
	if len(fc.TCPRemotes) > 0 {
		cfg.TCPRemotes = fc.TCPRemotes
	}
	if fc.TestDurationS != 0 {
		cfg.TestDuration = time.Duration(fc.TestDurationS) * time.Second
	}
	if fc.NumShards != 0 {
		cfg.NumShards = fc.NumShards
	}
	cfg.Metrics = fc.Metrics
}

// loadRemotesFromEtcd reads rawKey's value and splits it on whitespace
// or newlines into a bootstrap endpoint list, an additive source for
// spec.md §4.2's "list of bootstrap endpoint URLs, one per shard"
// alongside -tcp_remotes.
func loadRemotesFromEtcd(endpoints, rawKey string) ([]string, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   strings.Split(endpoints, ","),
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("benchconfig: etcd dial failed: %w", err)
	}
	defer cli.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	resp, err := cli.Get(ctx, rawKey)
	if err != nil {
		return nil, fmt.Errorf("benchconfig: etcd get %q failed: %w", rawKey, err)
	}
	if len(resp.Kvs) == 0 {
		return nil, fmt.Errorf("benchconfig: etcd key %q not found", rawKey)
	}
	return strings.Fields(string(resp.Kvs[0].Value)), nil
}
