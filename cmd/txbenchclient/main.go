// Command txbenchclient is the pipelined, per-core RPC throughput benchmark
// client (spec.md §§1-2): one shard per core, each independently discovering
// a data endpoint, opening a session, and pipelining REQUESTs against its
// configured credit window until the test duration elapses.
//
// Grounded on test/drv/junoload/junoload.go's SyncTestDriver/main: parse
// flags into a Config, fan out one goroutine per unit of work, wait for
// them, then print a final aggregate report.
package main

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"txbench/pkg/bench"
	"txbench/pkg/benchconfig"
	"txbench/pkg/benchmetrics"
	"txbench/pkg/latency"
	"txbench/pkg/txrpc"
	"txbench/pkg/version"
	"txbench/third_party/forked/golang/glog"
)

const dialTimeout = 5 * time.Second

func main() {
	var loader benchconfig.Loader
	loader.Init()

	cfg, err := loader.Load(os.Args[1:])
	if loader.Version() {
		version.PrintVersionInfo()
		return
	}
	if err != nil {
		glog.Exitf("txbenchclient: %s", err.Error())
	}
	if len(cfg.TCPRemotes) == 0 {
		glog.Exit("txbenchclient: no remotes configured; set -tcp_remotes or -remotes-etcd-key")
	}
	if cfg.NumShards > len(cfg.TCPRemotes) {
		glog.Exitf("txbenchclient: -n %d exceeds %d configured remote(s)", cfg.NumShards, len(cfg.TCPRemotes))
	}

	ctx := context.Background()
	if err := benchmetrics.InitProvider(ctx, cfg.Metrics); err != nil {
		glog.Exitf("txbenchclient: metrics provider init failed: %s", err.Error())
	}

	sessionCfg := bench.SessionConfig{
		EchoMode:      cfg.EchoMode,
		ResponseSize:  uint32(cfg.RequestSize),
		PipelineSize:  cfg.PipelineSize,
		PipelineCount: cfg.PipelineCount,
		AckCount:      cfg.AckCount,
	}

	glog.Infof("txbenchclient: starting %d shard(s) against %d remote(s) for %s", cfg.NumShards, len(cfg.TCPRemotes), cfg.TestDuration)

	shards := make([]*bench.Shard, cfg.NumShards)
	reports := make([]latency.Report, cfg.NumShards)
	errs := make([]error, cfg.NumShards)

	var wg sync.WaitGroup
	for i := 0; i < cfg.NumShards; i++ {
		sh := &bench.Shard{ID: i, Transport: txrpc.NewTCPTransport(dialTimeout)}
		shards[i] = sh
		wg.Add(1)
		go func(i int, sh *bench.Shard) {
			defer wg.Done()
			report, err := sh.Start(ctx, sessionCfg, cfg.Metrics, cfg.TCPRemotes, cfg.TestDuration, cfg.NumShards, cfg.NumShards)
			reports[i] = report
			errs[i] = err
		}(i, sh)
	}
	wg.Wait()

	printAggregateReport(reports, errs)
}

// printAggregateReport prints one line per shard and, if at least one
// shard succeeded, the total request count across all of them; if every
// shard failed it exits through glog.Exit.
func printAggregateReport(reports []latency.Report, errs []error) {
	var totalRequests int64
	var anySucceeded bool

	fmt.Println("\nFINAL")
	for i, err := range errs {
		if err != nil {
			fmt.Printf("shard %d: failed: %v\n", i, err)
			continue
		}
		anySucceeded = true
		r := reports[i]
		totalRequests += r.NumRequests
		fmt.Printf("shard %d: requests=%d p50=%s p99=%s p99.99=%s\n", i, r.NumRequests, r.P50, r.P99, r.P9999)
	}
	if !anySucceeded {
		glog.Exit("txbenchclient: every shard failed to complete")
	}
	fmt.Printf("total requests across %d shard(s): %d\n", len(reports), totalRequests)
}
