package bench

import (
	"context"
	"time"

	"txbench/pkg/bencherrors"
	"txbench/pkg/retry"
	"txbench/pkg/txrpc"
	"txbench/third_party/forked/golang/glog"
)

const (
	discoveryRetries      = 10
	discoveryStartTimeout = 10 * time.Millisecond
	discoveryRate         = 3
)

// Discover resolves a data endpoint from the shard's bootstrap endpoint
// (spec.md §4.2). remotes[shardID] is the bootstrap endpoint URL this
// shard speaks to; if shardID is out of range, discovery fails
// immediately with NoRemoteEndpoint without consulting RetryDriver.
func Discover(ctx context.Context, transport txrpc.Transport, remotes []string, shardID int) (dataURL string, err error) {
	if shardID >= len(remotes) {
		return "", bencherrors.New(bencherrors.NoRemoteEndpoint, "shard id exceeds configured remotes")
	}
	bootstrap := remotes[shardID]

	ep, err := transport.Resolve(ctx, bootstrap)
	if err != nil {
		return "", err
	}

	driver := &retry.Driver[string]{
		Retries:      discoveryRetries,
		Rate:         discoveryRate,
		StartTimeout: discoveryStartTimeout,
	}

	return driver.Run(func(remaining int32, timeout time.Duration) (string, error) {
		select {
		case <-ctx.Done():
			return "", bencherrors.ErrCancelled
		default:
		}

		payload, err := transport.SendRequest(ctx, txrpc.VerbGetDataURL, nil, ep, timeout)
		if err != nil {
			glog.Warningf("discover: shard %d attempt failed (remaining=%d): %v", shardID, remaining, err)
			return "", err
		}
		if len(payload) == 0 {
			return "", bencherrors.New(bencherrors.EmptyResponse, "empty GET_DATA_URL response")
		}
		return string(payload), nil
	})
}
