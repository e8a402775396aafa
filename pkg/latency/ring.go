// Package latency maps in-flight request ids to issue timestamps via a
// fixed-size ring, and accumulates ack-time samples into an HDR histogram
// for quantile reporting, the way test/drv/junoload's RequestStat wraps
// hdrhistogram.Histogram.
package latency

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// Ring is a fixed-capacity sequence of pipelineCount timestamps. Slot i
// holds the issue time of the most recent request whose
// totalCount % pipelineCount == i. The credit predicate guarantees that
// between a write to slot k and a write to slot k+len(ring), the request
// that previously occupied the slot has already been acked, so no
// explicit free-slot bookkeeping is required.
type Ring struct {
	slots []time.Time
}

// NewRing allocates a zero-initialized ring of the given pipeline count.
func NewRing(pipelineCount uint32) *Ring {
	return &Ring{slots: make([]time.Time, pipelineCount)}
}

// Stamp records now as the issue time for totalCount, at slot
// totalCount % len(ring).
func (r *Ring) Stamp(totalCount uint64, now time.Time) {
	r.slots[totalCount%uint64(len(r.slots))] = now
}

// IssuedAt returns the stamped issue time for reqid.
func (r *Ring) IssuedAt(reqid uint64) time.Time {
	return r.slots[reqid%uint64(len(r.slots))]
}

// Len returns the ring's capacity (the configured pipelineCount).
func (r *Ring) Len() int { return len(r.slots) }

// Histogram accumulates per-request latency samples into an HDR histogram,
// the same construction junoload's RequestStat uses: a 1ns-to-1h range at
// 3 significant digits.
type Histogram struct {
	mtx  sync.Mutex
	hist *hdrhistogram.Histogram
}

func NewHistogram() *Histogram {
	return &Histogram{hist: hdrhistogram.New(1, int64(3600*time.Second), 3)}
}

func (h *Histogram) Record(d time.Duration) {
	h.mtx.Lock()
	h.hist.RecordValues(int64(d), 1)
	h.mtx.Unlock()
}

func (h *Histogram) TotalCount() int64 {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return h.hist.TotalCount()
}

func (h *Histogram) ValueAtQuantile(q float64) time.Duration {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return time.Duration(h.hist.ValueAtQuantile(q))
}

// Report is a point-in-time snapshot of latency quantiles, shaped after
// junoload's StatsData for the end-of-run summary log line.
type Report struct {
	NumRequests int64
	Min         time.Duration
	Max         time.Duration
	P50         time.Duration
	P95         time.Duration
	P99         time.Duration
	P9999       time.Duration
}

func (h *Histogram) Report() Report {
	h.mtx.Lock()
	defer h.mtx.Unlock()
	return Report{
		NumRequests: h.hist.TotalCount(),
		Min:         time.Duration(h.hist.Min()),
		Max:         time.Duration(h.hist.Max()),
		P50:         time.Duration(h.hist.ValueAtQuantile(50)),
		P95:         time.Duration(h.hist.ValueAtQuantile(95)),
		P99:         time.Duration(h.hist.ValueAtQuantile(99)),
		P9999:       time.Duration(h.hist.ValueAtQuantile(99.99)),
	}
}

func (r Report) PrettyPrint(w io.Writer, throughputBps float64) {
	msfunc := func(d time.Duration) time.Duration { return d.Round(time.Microsecond) }
	io.WriteString(w, "\n requests   |                      request latency                          |    bandwidth\n")
	io.WriteString(w, "   total    |    min     |    50%     |    95%     |    99%     |   99.99%   |    bytes/s\n")
	io.WriteString(w, "------------+------------+------------+------------+------------+------------+-------------\n")
	fmt.Fprintf(w, "%12d %12s %12s %12s %12s %12s %12.2f\n",
		r.NumRequests, msfunc(r.Min), msfunc(r.P50), msfunc(r.P95), msfunc(r.P99), msfunc(r.P9999), throughputBps)
}
