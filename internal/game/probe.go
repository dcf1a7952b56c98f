// Package game checks whether SA-MP / open.mp servers are alive.
package game

import (
	"context"

	"github.com/woozymasta/omp-launcher/internal/query"
)

// Status is the outcome of a successful probe.
type Status struct {
	Info query.Info
	Ping uint32
}

// Probe queries info and ping over a dedicated session, bypassing the shared
// client's throttles and session cache so it can run from many workers at once.
// A server that answers info but not ping is still up, with PingTimeout as ping.
func Probe(ctx context.Context, ep query.Endpoint, opts query.SessionOptions) (*Status, error) {
	sess, err := query.Open(ctx, ep, opts)
	if err != nil {
		return nil, err
	}
	defer func() { _ = sess.Close() }()

	resp, _, err := sess.Exchange(ctx, query.TagInfo)
	if err != nil {
		return nil, err
	}

	status := &Status{Ping: query.PingTimeout}
	if resp.Info != nil {
		status.Info = *resp.Info
	}

	if _, rtt, err := sess.Exchange(ctx, query.TagPing); err == nil {
		if ms := rtt.Milliseconds(); ms < int64(query.PingTimeout) {
			status.Ping = uint32(ms)
		}
	}

	return status, nil
}
