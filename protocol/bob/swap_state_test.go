package bob

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/stretchr/testify/require"

	"github.com/MarinX/monerorpc/wallet"

	"github.com/dendisuhubdy/xmr-btc-swap/btc"
	"github.com/dendisuhubdy/xmr-btc-swap/common"
	"github.com/dendisuhubdy/xmr-btc-swap/common/types"
	mcrypto "github.com/dendisuhubdy/xmr-btc-swap/crypto/monero"
	"github.com/dendisuhubdy/xmr-btc-swap/monero"
	pcommon "github.com/dendisuhubdy/xmr-btc-swap/protocol"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/backend"
	"github.com/dendisuhubdy/xmr-btc-swap/protocol/swap"
)

// stubWallet is a minimal btc.Wallet; only NewAddress is exercised by the
// tests in this file.
type stubWallet struct{}

func (stubWallet) NewAddress() (btcutil.Address, error) {
	return btcutil.DecodeAddress("bcrt1qe5xy3vdylxa0glax4ca6s60ughvrlfrjh2jysy", &chaincfg.RegressionNetParams)
}
func (stubWallet) SelectUTXOs(common.BitcoinAmount) ([]wire.OutPoint, common.BitcoinAmount, error) {
	return nil, 0, nil
}
func (stubWallet) Balance() (common.BitcoinAmount, error)               { return 0, nil }
func (stubWallet) Broadcast(*wire.MsgTx) (chainhash.Hash, error)         { return chainhash.Hash{}, nil }
func (stubWallet) GetRawTransaction(chainhash.Hash) (*wire.MsgTx, error) { return nil, nil }
func (stubWallet) WaitForConfirmations(context.Context, chainhash.Hash, uint64) error {
	return nil
}
func (stubWallet) TransactionFee(int64) common.BitcoinAmount { return 1000 }

var _ btc.Wallet = stubWallet{}

// stubMoneroClient is a minimal monero.Client; none of its methods are
// exercised by the tests in this file, which stop short of any call that
// would reach the network through Host() or XMRClient().
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
func (stubMoneroClient) GetHeight() (uint64, error)        { return 100, nil }
func (stubMoneroClient) Refresh() error                    { return nil }
func (stubMoneroClient) CreateWallet(string, string) error { return nil }
func (stubMoneroClient) OpenWallet(string, string) error   { return nil }
func (stubMoneroClient) CloseWallet() error                { return nil }
func (stubMoneroClient) WatchForTransfer(context.Context, common.MoneroAmount, uint64) error {
	return nil
}

var _ monero.Client = stubMoneroClient{}

func newTestBackend(t *testing.T) backend.Backend {
	t.Helper()

	db, err := swap.NewDatabase(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	mgr, err := swap.NewManager(db)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	b, err := backend.NewBackend(&backend.Config{
		Ctx:         ctx,
		Env:         common.Development,
		BTCWallet:   stubWallet{},
		XMRClient:   stubMoneroClient{},
		SwapManager: mgr,
	})
	require.NoError(t, err)
	return b
}

func newTestOffer() *types.Offer {
	return types.NewOffer(
		common.MoneroToPiconero(1),
		common.BTCToSatoshi(0.05),
		common.ExchangeRate(0.05),
		20, 20,
	)
}

func TestNewSwapState(t *testing.T) {
	s, err := newSwapState(newTestBackend(t), newTestOffer(), "")
	require.NoError(t, err)
	require.Equal(t, StageStarted, s.stage)
	require.NotNil(t, s.bobBTCAddr)
}

func TestSendKeysMessageGeneratesVerifiableProof(t *testing.T) {
	s, err := newSwapState(newTestBackend(t), newTestOffer(), "")
	require.NoError(t, err)

	msg, err := s.sendKeysMessage()
	require.NoError(t, err)
	require.NotNil(t, s.keysAndProof)
	require.Equal(t, s.ID().String(), msg.SwapID)
	require.Equal(t, s.bobBTCAddr.String(), msg.BitcoinAddress)

	proofBytes, err := hex.DecodeString(msg.DLEqProof)
	require.NoError(t, err)

	spendPubBytes, err := hex.DecodeString(msg.PublicSpendKey)
	require.NoError(t, err)
	var spendPub [32]byte
	copy(spendPub[:], spendPubBytes)

	res, err := pcommon.VerifyKeysAndProof(proofBytes, s.keysAndProof.Secp256k1PublicKey, spendPub)
	require.NoError(t, err)
	require.Equal(t, s.keysAndProof.Secp256k1PublicKey.String(), res.Secp256k1PublicKey().String())
}

func TestHandleSendKeysMessageAcceptsValidCounterpartyKeys(t *testing.T) {
	s, err := newSwapState(newTestBackend(t), newTestOffer(), "")
	require.NoError(t, err)

	_, err = s.sendKeysMessage()
	require.NoError(t, err)

	alice, err := newSwapState(newTestBackend(t), newTestOffer(), "")
	require.NoError(t, err)

	aliceMsg, err := alice.sendKeysMessage()
	require.NoError(t, err)

	// handleSendKeysMessage itself never touches the network; HandleMessage
	// is what spawns lockBTC afterwards, so calling it directly here never
	// risks exercising Host() on this test's unset Host.
	s.Lock()
	err = s.handleSendKeysMessage(aliceMsg)
	s.Unlock()
	require.NoError(t, err)

	require.Equal(t, StageKeysExchanged, s.stage)
	require.Equal(t, alice.keysAndProof.Secp256k1PublicKey.String(), s.aliceSecp256k1Pub.String())
	require.Equal(t, alice.bobBTCAddr.String(), s.aliceBTCAddr.String())
}

func TestHandleSendKeysMessageRejectsWrongStage(t *testing.T) {
	s, err := newSwapState(newTestBackend(t), newTestOffer(), "")
	require.NoError(t, err)
	s.stage = StageBTCLocked

	alice, err := newSwapState(newTestBackend(t), newTestOffer(), "")
	require.NoError(t, err)
	aliceMsg, err := alice.sendKeysMessage()
	require.NoError(t, err)

	s.Lock()
	err = s.handleSendKeysMessage(aliceMsg)
	s.Unlock()
	require.Error(t, err)
}

func TestHandleSendKeysMessageRejectsBadProof(t *testing.T) {
	s, err := newSwapState(newTestBackend(t), newTestOffer(), "")
	require.NoError(t, err)

	alice, err := newSwapState(newTestBackend(t), newTestOffer(), "")
	require.NoError(t, err)
	aliceMsg, err := alice.sendKeysMessage()
	require.NoError(t, err)

	other, err := newSwapState(newTestBackend(t), newTestOffer(), "")
	require.NoError(t, err)
	_, err = other.sendKeysMessage()
	require.NoError(t, err)
	otherSpendPub := other.keysAndProof.PrivateKeyPair.SpendKey().Public()
	aliceMsg.PublicSpendKey = hex.EncodeToString(otherSpendPub[:])

	s.Lock()
	err = s.handleSendKeysMessage(aliceMsg)
	s.Unlock()
	require.Error(t, err)
}

func TestAbortOnlyAllowedBeforeFundsMove(t *testing.T) {
	s, err := newSwapState(newTestBackend(t), newTestOffer(), "")
	require.NoError(t, err)

	require.NoError(t, s.abort())
	require.Equal(t, StageSafelyAborted, s.stage)
	require.Equal(t, types.Aborted, s.info.Status)

	s2, err := newSwapState(newTestBackend(t), newTestOffer(), "")
	require.NoError(t, err)
	s2.stage = StageBTCLockSent
	require.Error(t, s2.abort())
}
