// Package backend aggregates the collaborators a swap state machine needs
// so protocol/alice and protocol/bob stay ignorant of how the Bitcoin
// wallet, Monero wallet, peer host and checkpoint store are actually
// constructed.
package backend

import (
	"context"
	"time"

	logging "github.com/ipfs/go-log/v2"

	"github.com/dendisuhubdy/xmr-btc-swap/btc"
	"github.com/dendisuhubdy/xmr-btc-swap/common"
	"github.com/dendisuhubdy/xmr-btc-swap/monero"
	"github.com/dendisuhubdy/xmr-btc-swap/net"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/swap"
)

var log = logging.Logger("backend")

// defaultLockConfirmTimeout is used when a Config leaves LockConfirmTimeout
// unset (notably every existing test backend).
const defaultLockConfirmTimeout = time.Hour

// Backend is the set of external collaborators a swap needs: chain
// wallets, the peer host, persistence, and environment. Grounded on
// mewmix-atomic-swap/protocol/xmrmaker/swap_state.go's backend.Backend
// usage (b.XMRClient(), b.ETHClient(), b.Env(), b.SwapManager(), b.Ctx()),
// generalized from the ETH/XMR collaborator pair to BTC/XMR.
type Backend interface {
	Ctx() context.Context
	Env() common.Environment

	BTCWallet() btc.Wallet
	XMRClient() monero.Client
	Host() *net.Host

	SwapManager() swap.Manager

	// LockConfirmTimeout bounds how long Alice will wait for Bob's TxLock
	// to reach its first confirmation before giving up and transitioning
	// to StageSafelyAborted.
	LockConfirmTimeout() time.Duration
}

type backend struct {
	ctx context.Context
	env common.Environment

	btcWallet btc.Wallet
	xmrClient monero.Client
	host      *net.Host

	swapManager swap.Manager

	lockConfirmTimeout time.Duration
}

var _ Backend = (*backend)(nil)

// Config configures a new Backend.
type Config struct {
	Ctx context.Context
	Env common.Environment

	BTCWallet btc.Wallet
	XMRClient monero.Client
	Host      *net.Host

	SwapManager swap.Manager

	// LockConfirmTimeout bounds Alice's wait for Bob's TxLock to confirm.
	// Defaults to defaultLockConfirmTimeout when zero.
	LockConfirmTimeout time.Duration
}

// NewBackend constructs a Backend from its collaborators.
func NewBackend(cfg *Config) (Backend, error) {
	if cfg.Ctx == nil {
		cfg.Ctx = context.Background()
	}

	lockConfirmTimeout := cfg.LockConfirmTimeout
	if lockConfirmTimeout == 0 {
		lockConfirmTimeout = defaultLockConfirmTimeout
	}

	b := &backend{
		ctx:                cfg.Ctx,
		env:                cfg.Env,
		btcWallet:          cfg.BTCWallet,
		xmrClient:          cfg.XMRClient,
		host:               cfg.Host,
		swapManager:        cfg.SwapManager,
		lockConfirmTimeout: lockConfirmTimeout,
	}

	log.Debugf("backend constructed for env=%s", cfg.Env)
	return b, nil
}

func (b *backend) Ctx() context.Context             { return b.ctx }
func (b *backend) Env() common.Environment          { return b.env }
func (b *backend) BTCWallet() btc.Wallet            { return b.btcWallet }
func (b *backend) XMRClient() monero.Client         { return b.xmrClient }
func (b *backend) Host() *net.Host                  { return b.host }
func (b *backend) SwapManager() swap.Manager        { return b.swapManager }
func (b *backend) LockConfirmTimeout() time.Duration { return b.lockConfirmTimeout }
