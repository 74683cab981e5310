package btc

import (
	"context"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/dendisuhubdy/xmr-btc-swap/common"
)

// Wallet is the narrow interface the swap protocol needs from a Bitcoin
// wallet backend: enough to fund TxLock, watch for confirmations, and
// broadcast the cooperative/uncooperative follow-up transactions. A full
// wallet implementation (key management, coin selection UI, RPC server) is
// out of scope; this module ships only the Electrum-backed implementation
// in btc/electrum needed to drive the state machines.
type Wallet interface {
	// NewAddress returns a fresh receive address for change or redeemed
	// funds.
	NewAddress() (btcutil.Address, error)
	// SelectUTXOs returns a set of the wallet's own UTXOs (and their total
	// value) sufficient to fund amount plus fees.
	SelectUTXOs(amount common.BitcoinAmount) ([]wire.OutPoint, common.BitcoinAmount, error)
	// Balance returns the wallet's current confirmed balance.
	Balance() (common.BitcoinAmount, error)
	// Broadcast submits a fully-signed transaction to the network and
	// returns its txid.
	Broadcast(tx *wire.MsgTx) (chainhash.Hash, error)
	// GetRawTransaction fetches a transaction by hash, used to read back
	// a cooperatively or uncooperatively published transaction's actual
	// witness (eg. to Recover an adaptor secret from a published
	// TxRedeem).
	GetRawTransaction(hash chainhash.Hash) (*wire.MsgTx, error)
	// WaitForConfirmations blocks until hash has at least confirmations
	// confirmations, or ctx is cancelled.
	WaitForConfirmations(ctx context.Context, hash chainhash.Hash, confirmations uint64) error
	// TransactionFee estimates an appropriate absolute fee, in satoshis,
	// for a transaction of the given virtual size.
	TransactionFee(vsize int64) common.BitcoinAmount
}
