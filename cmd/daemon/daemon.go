package main

import (
	"context"

	logging "github.com/ipfs/go-log/v2"

	"github.com/dendisuhubdy/xmr-btc-swap/net"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/swap"
)

var log = logging.Logger("swapd")

// daemon owns the process-lifetime collaborators that must be torn down
// together when the swap daemon shuts down.
type daemon struct {
	ctx    context.Context
	cancel context.CancelFunc

	host *net.Host
	db   swap.Database
}

// wait blocks until the daemon's context is cancelled, then shuts down the
// network host and closes the swap database.
func (d *daemon) wait() {
	<-d.ctx.Done()

	if d.host != nil {
		if err := d.host.Stop(); err != nil {
			log.Warnf("failed to stop network host: %s", err)
		}
	}

	if d.db != nil {
		if err := d.db.Close(); err != nil {
			log.Warnf("failed to close swap database: %s", err)
		}
	}
}
