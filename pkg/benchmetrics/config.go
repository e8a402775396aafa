// Package benchmetrics implements MetricsBinding (spec.md §4.6) against
// OpenTelemetry's metric API, grounded on pkg/logging/otel/{defs,logger,
// statsLogger}.go's instrument-once/global-meter pattern from the teacher,
// narrowed to the seven instruments the benchmark client actually reports.
package benchmetrics

import (
	"txbench/third_party/forked/golang/glog"
)

// Config mirrors pkg/logging/otel/config.Config's shape (Host/Port/UrlPath/
// Environment/Poolname/Enabled/Resolution/UseTls) but drops the
// Juno-specific per-operation histogram bucket fields (Replication,
// SsConnect, Inbound, OutboundConnection) in favor of a single bucket list
// for the one histogram this client exports, request_latency.
type Config struct {
	Host        string
	Port        uint32
	UrlPath     string
	Environment string
	Poolname    string
	Enabled     bool
	Resolution  uint32
	UseTls      bool
	// LatencyBucketsMs are the explicit histogram bucket boundaries, in
	// milliseconds, for the request_latency instrument.
	LatencyBucketsMs []float64
}

func (c *Config) setDefaultIfNotDefined() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 4318
	}
	if c.Resolution == 0 {
		c.Resolution = 10
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.UrlPath == "" {
		c.UrlPath = "v1/metrics"
	}
	if c.Poolname == "" {
		c.Poolname = "txbenchclient"
	}
	if c.LatencyBucketsMs == nil {
		c.LatencyBucketsMs = []float64{1, 2, 5, 10, 20, 50, 100, 200, 500, 1000, 2000, 5000}
	}
}

// Validate fills in defaults; unlike the teacher's Config.Validate, an
// empty Poolname is not fatal here since the client has a sensible
// default (see setDefaultIfNotDefined) and a benchmark run should not
// abort over a missing metrics label.
func (c *Config) Validate() {
	c.setDefaultIfNotDefined()
}

func (c *Config) Dump() {
	glog.Infof("otel host: %s:%d%s", c.Host, c.Port, c.UrlPath)
	glog.Infof("otel poolname: %s enabled: %t resolution: %ds", c.Poolname, c.Enabled, c.Resolution)
}
