package bench

import (
	"context"
	"fmt"
	"io"
	"time"

	"txbench/pkg/benchmetrics"
	"txbench/pkg/latency"
	"txbench/pkg/txrpc"
	"txbench/pkg/util"
	"txbench/third_party/forked/golang/glog"
)

type lifecycleState int

const (
	Uninitialized lifecycleState = iota
	Running
	Stopped
)

// Shard owns one instance of every per-shard component and orchestrates
// start/stop (spec.md §4.7). States: Uninitialized -> Running -> Stopped
// (terminal). gracefulStop is idempotent.
type Shard struct {
	ID        int
	Transport txrpc.Transport

	state   *State
	ring    *latency.Ring
	hist    *latency.Histogram
	metrics *benchmetrics.Binding
	loop    *Loop
	ep      txrpc.Endpoint

	lifecycle lifecycleState
	stopCh    chan struct{}
	stoppedCh chan struct{}
	cancel    context.CancelFunc
	timer     *util.TimerWrapper
}

// Start runs Discovery -> SessionHandshake -> BenchLoop -> final report in
// sequence, per spec.md §2's per-shard data flow. It blocks until the
// shard stops (by timer or gracefulStop) and returns the latency report.
//
// Discovery and SessionHandshake, like BenchLoop, must observe
// gracefulStop uniformly across every phase (spec.md §4.2/§4.7) rather
// than only once BenchLoop is reached, so ctx is derived here and
// cancelled by GracefulStop alongside closing stopCh.
func (sh *Shard) Start(ctx context.Context, cfg SessionConfig, metricsCfg benchmetrics.Config, remotes []string, testDuration time.Duration, totalCores, activeCores int) (latency.Report, error) {
	if sh.lifecycle != Uninitialized {
		return latency.Report{}, fmt.Errorf("bench: shard %d started twice", sh.ID)
	}
	sh.lifecycle = Running
	sh.stopCh = make(chan struct{})
	sh.stoppedCh = make(chan struct{})
	defer close(sh.stoppedCh)
	sh.state = NewState(cfg)
	sh.ring = latency.NewRing(cfg.PipelineCount)
	sh.hist = latency.NewHistogram()

	ctx, sh.cancel = context.WithCancel(ctx)
	defer sh.cancel()

	dataURL, err := Discover(ctx, sh.Transport, remotes, sh.ID)
	if err != nil {
		glog.Warningf("shard %d: discovery failed: %v", sh.ID, err)
		sh.lifecycle = Stopped
		return latency.Report{}, err
	}

	ep, err := sh.Transport.Resolve(ctx, dataURL)
	if err != nil {
		glog.Warningf("shard %d: resolving data endpoint %q failed: %v", sh.ID, dataURL, err)
		sh.lifecycle = Stopped
		return latency.Report{}, err
	}
	sh.ep = ep
	sh.state.SetClient(ep)

	if err := Handshake(ctx, sh.Transport, ep, sh.state); err != nil {
		glog.Warningf("shard %d: handshake failed: %v", sh.ID, err)
		sh.lifecycle = Stopped
		return latency.Report{}, err
	}

	metrics, err := benchmetrics.New(metricsCfg, sh.ID, totalCores, activeCores, sh.state)
	if err != nil {
		glog.Warningf("shard %d: metrics binding failed: %v", sh.ID, err)
		sh.lifecycle = Stopped
		return latency.Report{}, err
	}
	sh.metrics = metrics

	ackCh := sh.Transport.RegisterObserver(ep, txrpc.VerbAck)
	sh.loop = NewLoop(sh.state, sh.ring, sh.hist, sh.metrics, sh.Transport, ackCh)

	sh.timer = util.NewTimerWrapper(testDuration)
	sh.timer.Reset(testDuration)

	actual := sh.loop.Run(ctx, sh.stopCh, sh.timer.GetTimeoutCh())
	sh.timer.Stop()
	sh.Transport.Close(ep)
	sh.lifecycle = Stopped

	report := sh.hist.Report()
	sh.logReport(actual, report)
	return report, nil
}

// GracefulStop tears down observers, flips stopped, and fulfils any
// pending sender wait by closing stopCh. Idempotent: calling it on an
// already-stopped shard is a no-op.
func (sh *Shard) GracefulStop() {
	if sh.lifecycle != Running {
		return
	}
	close(sh.stopCh)
	if sh.cancel != nil {
		sh.cancel()
	}
	<-sh.stoppedCh
}

func (sh *Shard) logReport(actual time.Duration, report latency.Report) {
	totalCount := sh.state.TotalCount()
	totalBytes := sh.state.TotalSize()
	bps := float64(totalBytes) / actual.Seconds()
	rps := float64(totalCount) / actual.Seconds()
	glog.Infof("shard %d: actualTestDuration=%s totalCount=%d totalBytes=%d rate=%.2f req/s bandwidth=%.2f bytes/s p50=%s p99=%s",
		sh.ID, actual, totalCount, totalBytes, rps, bps, report.P50, report.P99)
	sh.writeReport(glogWriter{}, bps)
}

func (sh *Shard) writeReport(w io.Writer, bps float64) {
	sh.hist.Report().PrettyPrint(w, bps)
}

// glogWriter adapts glog.Info to io.Writer so Report.PrettyPrint's
// tabular output lands in the same log stream as everything else.
type glogWriter struct{}

func (glogWriter) Write(p []byte) (int, error) {
	glog.Info(string(p))
	return len(p), nil
}
