// Package monero wraps a monero-wallet-rpc connection with the operations
// the swap protocol needs: opening/generating wallets from key shares,
// watching for an incoming transfer to the shared swap address, and
// sweeping funds out once redeemed. Adapted from noot-atomic-swap's
// monero.Client, but backed directly by github.com/MarinX/monerorpc/wallet
// rather than a hand-rolled JSON-RPC caller, since that library already
// supplies the wire types the teacher's elided rpctypes package stood in
// for.
package monero

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/MarinX/monerorpc"
	"github.com/MarinX/monerorpc/wallet"

	"github.com/dendisuhubdy/xmr-btc-swap/common"
	mcrypto "github.com/dendisuhubdy/xmr-btc-swap/crypto/monero"
)

// Client represents a monero-wallet-rpc client.
type Client interface {
	LockClient() // can't use Lock/Unlock due to name conflict
	UnlockClient()
	GetAddress(idx uint) (*wallet.GetAddressResponse, error)
	GetBalance(idx uint) (*wallet.GetBalanceResponse, error)
	Transfer(to mcrypto.Address, accountIdx uint, amount common.MoneroAmount) (*wallet.TransferResponse, error)
	SweepAll(to mcrypto.Address, accountIdx uint) (*wallet.SweepAllResponse, error)
	GenerateFromKeys(kp *mcrypto.PrivateKeyPair, filename, password string, env common.Environment, restoreHeight uint64) error
	GenerateViewOnlyWalletFromKeys(vk *mcrypto.PrivateViewKey, address mcrypto.Address,
		filename, password string, restoreHeight uint64) error
	GetHeight() (uint64, error)
	Refresh() error
	CreateWallet(filename, password string) error
	OpenWallet(filename, password string) error
	CloseWallet() error
	// WatchForTransfer blocks until the currently open wallet's unlocked
	// balance reaches at least amount, or ctx is cancelled. The
	// confirmations argument is not consulted: readiness is judged by the
	// unlocked balance alone.
	WatchForTransfer(ctx context.Context, amount common.MoneroAmount, confirmations uint64) error
}

type client struct {
	sync.Mutex
	rpc *monerorpc.MoneroRPC
}

// NewClient returns a new monero-wallet-rpc client.
func NewClient(endpoint string) *client {
	return &client{
		rpc: monerorpc.New(monerorpc.NewRequestClient(endpoint), nil),
	}
}

func (c *client) LockClient() {
	c.Lock()
}

func (c *client) UnlockClient() {
	c.Unlock()
}

func (c *client) GetBalance(idx uint) (*wallet.GetBalanceResponse, error) {
	return c.rpc.Wallet.GetBalance(&wallet.GetBalanceRequest{
		AccountIndex: uint64(idx),
	})
}

func (c *client) Transfer(to mcrypto.Address, accountIdx uint, amount common.MoneroAmount) (*wallet.TransferResponse, error) {
	return c.rpc.Wallet.Transfer(&wallet.TransferRequest{
		Destinations: []wallet.Destination{
			{
				Amount:  amount.Uint64(),
				Address: wallet.Address(to),
			},
		},
		AccountIndex: uint64(accountIdx),
	})
}

func (c *client) SweepAll(to mcrypto.Address, accountIdx uint) (*wallet.SweepAllResponse, error) {
	return c.rpc.Wallet.SweepAll(&wallet.SweepAllRequest{
		Address:      wallet.Address(to),
		AccountIndex: uint64(accountIdx),
	})
}

func (c *client) GenerateFromKeys(kp *mcrypto.PrivateKeyPair, filename, password string,
	env common.Environment, restoreHeight uint64) error {
	_, err := c.rpc.Wallet.GenerateFromKeys(&wallet.GenerateFromKeysRequest{
		Filename:      filename,
		Password:      password,
		Address:       wallet.Address(kp.Address(env)),
		SpendKey:      kp.SpendKey().Hex(),
		ViewKey:       hexViewKey(kp.ViewKey()),
		RestoreHeight: restoreHeight,
	})
	return err
}

func (c *client) GenerateViewOnlyWalletFromKeys(vk *mcrypto.PrivateViewKey, address mcrypto.Address,
	filename, password string, restoreHeight uint64) error {
	_, err := c.rpc.Wallet.GenerateFromKeys(&wallet.GenerateFromKeysRequest{
		Filename:      filename,
		Password:      password,
		Address:       wallet.Address(address),
		ViewKey:       hexViewKey(vk),
		RestoreHeight: restoreHeight,
	})
	return err
}

func (c *client) GetAddress(idx uint) (*wallet.GetAddressResponse, error) {
	return c.rpc.Wallet.GetAddress(&wallet.GetAddressRequest{
		AccountIndex: uint64(idx),
	})
}

func (c *client) Refresh() error {
	_, err := c.rpc.Wallet.Refresh(&wallet.RefreshRequest{})
	return err
}

func (c *client) CreateWallet(filename, password string) error {
	return c.rpc.Wallet.CreateWallet(&wallet.CreateWalletRequest{
		Filename: filename,
		Password: password,
		Language: "English",
	})
}

func (c *client) OpenWallet(filename, password string) error {
	return c.rpc.Wallet.OpenWallet(&wallet.OpenWalletRequest{
		Filename: filename,
		Password: password,
	})
}

func (c *client) CloseWallet() error {
	return c.rpc.Wallet.CloseWallet()
}

func (c *client) GetHeight() (uint64, error) {
	resp, err := c.rpc.Daemon.GetHeight()
	if err != nil {
		return 0, err
	}

	return resp.Height, nil
}

// WatchForTransfer polls get_balance until account 0's unlocked balance
// reaches amount, or ctx is cancelled. The confirmations argument is not
// used; the check relies on the unlocked balance alone.
// monero-wallet-rpc has no native push notification for incoming
// transfers, so this is a poll loop, the same pattern the teacher uses for
// its Ethereum event-filter watchers (net/message dispatch loops) adapted
// to Monero's RPC model.
func (c *client) WatchForTransfer(ctx context.Context, amount common.MoneroAmount, confirmations uint64) error {
	const pollInterval = 5 * time.Second

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Refresh(); err != nil {
				continue
			}

			bal, err := c.GetBalance(0)
			if err != nil {
				continue
			}

			if bal.UnlockedBalance >= amount.Uint64() {
				return nil
			}
		}
	}
}

func hexViewKey(vk *mcrypto.PrivateViewKey) string {
	b := vk.Bytes()
	return fmt.Sprintf("%x", b)
}
