package backend

import (
	"context"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/MarinX/monerorpc/wallet"

	"github.com/dendisuhubdy/xmr-btc-swap/btc"
	"github.com/dendisuhubdy/xmr-btc-swap/common"
	mcrypto "github.com/dendisuhubdy/xmr-btc-swap/crypto/monero"
	"github.com/dendisuhubdy/xmr-btc-swap/monero"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/swap"
)

// stubWallet is a minimal btc.Wallet satisfying the interface for wiring
// tests; none of its methods are expected to be called here.
type stubWallet struct{}

func (stubWallet) NewAddress() (btcutil.Address, error) { return nil, nil }
func (stubWallet) SelectUTXOs(common.BitcoinAmount) ([]wire.OutPoint, common.BitcoinAmount, error) {
	return nil, 0, nil
}
func (stubWallet) Balance() (common.BitcoinAmount, error)                     { return 0, nil }
func (stubWallet) Broadcast(*wire.MsgTx) (chainhash.Hash, error)              { return chainhash.Hash{}, nil }
func (stubWallet) GetRawTransaction(chainhash.Hash) (*wire.MsgTx, error)      { return nil, nil }
func (stubWallet) WaitForConfirmations(context.Context, chainhash.Hash, uint64) error {
	return nil
}
func (stubWallet) TransactionFee(int64) common.BitcoinAmount { return 0 }

var _ btc.Wallet = stubWallet{}

// stubMoneroClient is a minimal monero.Client satisfying the interface.
type stubMoneroClient struct{}

func (stubMoneroClient) LockClient()   {}
func (stubMoneroClient) UnlockClient() {}
func (stubMoneroClient) GetAddress(uint) (*wallet.GetAddressResponse, error) {
	return nil, nil
}
func (stubMoneroClient) GetBalance(uint) (*wallet.GetBalanceResponse, error) {
	return nil, nil
}
func (stubMoneroClient) Transfer(mcrypto.Address, uint, common.MoneroAmount) (*wallet.TransferResponse, error) {
	return nil, nil
}
func (stubMoneroClient) SweepAll(mcrypto.Address, uint) (*wallet.SweepAllResponse, error) {
	return nil, nil
}
func (stubMoneroClient) GenerateFromKeys(*mcrypto.PrivateKeyPair, string, string, common.Environment, uint64) error {
	return nil
}
func (stubMoneroClient) GenerateViewOnlyWalletFromKeys(
	*mcrypto.PrivateViewKey, mcrypto.Address, string, string, uint64,
) error {
	return nil
}
func (stubMoneroClient) GetHeight() (uint64, error)          { return 0, nil }
func (stubMoneroClient) Refresh() error                      { return nil }
func (stubMoneroClient) CreateWallet(string, string) error   { return nil }
func (stubMoneroClient) OpenWallet(string, string) error     { return nil }
func (stubMoneroClient) CloseWallet() error                  { return nil }
func (stubMoneroClient) WatchForTransfer(context.Context, common.MoneroAmount, uint64) error {
	return nil
}

var _ monero.Client = stubMoneroClient{}

func TestNewBackend_WiresCollaborators(t *testing.T) {
	db, err := swap.NewDatabase(t.TempDir())
	require.NoError(t, err)
	defer db.Close()

	mgr, err := swap.NewManager(db)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	b, err := NewBackend(&Config{
		Ctx:         ctx,
		Env:         common.Development,
		BTCWallet:   stubWallet{},
		XMRClient:   stubMoneroClient{},
		SwapManager: mgr,
	})
	require.NoError(t, err)

	require.Equal(t, common.Development, b.Env())
	require.Equal(t, stubWallet{}, b.BTCWallet())
	require.Equal(t, stubMoneroClient{}, b.XMRClient())
	require.Equal(t, mgr, b.SwapManager())
	require.NotNil(t, b.Ctx())
}
