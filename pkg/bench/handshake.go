package bench

import (
	"context"
	"time"

	"txbench/pkg/bencherrors"
	"txbench/pkg/txrpc"
)

const handshakeTimeout = 1 * time.Second

// Handshake sends START_SESSION with the session's config and stores the
// server-assigned session id on success (spec.md §4.3). An empty or
// malformed response aborts start-up.
func Handshake(ctx context.Context, transport txrpc.Transport, ep txrpc.Endpoint, state *State) error {
	payload := state.config.toWire().Encode()

	resp, err := transport.SendRequest(ctx, txrpc.VerbStartSession, payload, ep, handshakeTimeout)
	if err != nil {
		return err
	}
	if len(resp) == 0 {
		return bencherrors.New(bencherrors.EmptyResponse, "empty START_SESSION response")
	}
	ack, ok := DecodeSessionAck(resp)
	if !ok {
		return bencherrors.New(bencherrors.EmptyResponse, "malformed SessionAck")
	}
	state.SetSessionID(ack.SessionID)
	return nil
}
