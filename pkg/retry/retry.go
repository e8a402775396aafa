// Package retry implements the bounded-retry, single-use backoff driver
// used by discovery and other best-effort start-up RPCs.
package retry

import (
	"time"

	"github.com/cenkalti/backoff/v4"

	"txbench/pkg/bencherrors"
	"txbench/third_party/forked/golang/glog"
)

// scheduleBackOff implements backoff.BackOff with the driver's observed
// schedule: currentTimeout *= attempt on every call, not
// startTimeout * rate^attempt as the field names suggest. This is the
// source's actual behavior and is preserved rather than corrected.
type scheduleBackOff struct {
	start   time.Duration
	current time.Duration
	attempt int32
}

var _ backoff.BackOff = (*scheduleBackOff)(nil)

func (b *scheduleBackOff) NextBackOff() time.Duration {
	b.attempt++
	b.current = b.current * time.Duration(b.attempt)
	return b.current
}

func (b *scheduleBackOff) Reset() {
	b.attempt = 0
	b.current = b.start
}

// Func is the operated function a Driver runs. remaining is the number of
// attempts left after the current one; timeout is the advisory per-attempt
// deadline the function should honour. Returning a TransportShutdown
// *bencherrors.Error short-circuits remaining retries.
type Func[T any] func(remaining int32, timeout time.Duration) (T, error)

// Driver is a single-shot bounded-retry controller. Configure Retries,
// Rate and StartTimeout before the first Run.
type Driver[T any] struct {
	Retries      int32
	Rate         int32 // accepted for compatibility; unused in the growth formula, see scheduleBackOff.
	StartTimeout time.Duration

	attempt   int32
	used      bool
	succeeded bool
	lastErr   error
}

// Attempt returns the driver's try counter: the number of the attempt that
// succeeded, Retries+1 once every retry has failed, or Retries after a
// transport-shutdown short-circuit.
func (d *Driver[T]) Attempt() int32 { return d.attempt }

// Succeeded reports whether the last Run completed without error.
func (d *Driver[T]) Succeeded() bool { return d.succeeded }

// Run invokes f repeatedly until it succeeds, the configured number of
// retries is exhausted, or f signals a transport shutdown. It yields the
// outcome of the last attempt. A Driver may only be run once; a second
// call returns DuplicateInvocation without invoking f.
func (d *Driver[T]) Run(f Func[T]) (result T, err error) {
	if d.used {
		return result, bencherrors.ErrDuplicateInvocation
	}
	d.used = true

	if d.Retries == 0 {
		err = bencherrors.New(bencherrors.RequestTimeout, "no retries configured")
		d.lastErr = err
		return result, err
	}

	bo := &scheduleBackOff{start: d.StartTimeout, current: d.StartTimeout}

	for d.attempt = 1; d.attempt <= d.Retries; d.attempt++ {
		timeout := bo.NextBackOff()
		remaining := d.Retries - d.attempt

		result, err = f(remaining, timeout)
		d.lastErr = err
		if err == nil {
			d.succeeded = true
			return result, nil
		}

		if bencherrors.IsShutdown(err) {
			glog.Warningf("retry: transport shutdown on attempt %d, short-circuiting", d.attempt)
			d.attempt = d.Retries
			err = bencherrors.New(bencherrors.RequestTimeout, "short-circuited by transport shutdown")
			d.lastErr = err
			return result, err
		}
	}
	return result, err
}
