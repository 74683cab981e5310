package btc

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"

	"github.com/dendisuhubdy/xmr-btc-swap/btc/electrum"
	"github.com/dendisuhubdy/xmr-btc-swap/common"
)

// electrumWallet implements Wallet against an Electrum server plus an
// in-process key store of the wallet's own UTXOs (UTXO discovery and
// signing key management are a collaborator concern out of scope for this
// module; electrumWallet only wraps Electrum's chain-query surface).
type electrumWallet struct {
	client    *electrum.Client
	netParams *chaincfg.Params
	mu        sync.Mutex
	utxos     []UTXO
	addrFunc  func() (btcutil.Address, error)
}

// UTXO is one of this wallet's spendable coins, as supplied by whatever
// out-of-scope key-management collaborator owns coin selection and signing
// for the wallet's own funding inputs.
type UTXO struct {
	OutPoint wire.OutPoint
	Value    common.BitcoinAmount
}

var _ Wallet = (*electrumWallet)(nil)

// NewElectrumWallet wraps an already-dialed Electrum client as a Wallet.
// utxos is the set of this wallet's spendable coins (populated by whatever
// out-of-scope key-management collaborator owns coin selection), and
// addrFunc mints fresh change/redeem addresses from that same collaborator.
// Use AddUTXO or SetUTXOs to update the available coin set afterwards, as
// the collaborator observes new confirmed funding transactions.
func NewElectrumWallet(client *electrum.Client, env common.Environment,
	utxos []UTXO, addrFunc func() (btcutil.Address, error)) *electrumWallet {
	return &electrumWallet{
		client:    client,
		netParams: NetParamsForEnvironment(env),
		utxos:     utxos,
		addrFunc:  addrFunc,
	}
}

// AddUTXO registers a newly observed spendable coin.
func (w *electrumWallet) AddUTXO(outpoint wire.OutPoint, value common.BitcoinAmount) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.utxos = append(w.utxos, UTXO{OutPoint: outpoint, Value: value})
}

// SetUTXOs replaces the wallet's entire spendable coin set.
func (w *electrumWallet) SetUTXOs(utxos []UTXO) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.utxos = utxos
}

func (w *electrumWallet) NewAddress() (btcutil.Address, error) {
	return w.addrFunc()
}

func (w *electrumWallet) SelectUTXOs(amount common.BitcoinAmount) ([]wire.OutPoint, common.BitcoinAmount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var selected []wire.OutPoint
	var total common.BitcoinAmount

	for _, u := range w.utxos {
		selected = append(selected, u.OutPoint)
		total += u.Value
		if total >= amount {
			return selected, total, nil
		}
	}

	return nil, 0, fmt.Errorf("insufficient funds: have %s, need %s", total, amount)
}

func (w *electrumWallet) Balance() (common.BitcoinAmount, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	var total common.BitcoinAmount
	for _, u := range w.utxos {
		total += u.Value
	}
	return total, nil
}

func (w *electrumWallet) Broadcast(tx *wire.MsgTx) (chainhash.Hash, error) {
	raw, err := serializeTx(tx)
	if err != nil {
		return chainhash.Hash{}, err
	}

	txidStr, err := w.client.BroadcastTransaction(hex.EncodeToString(raw))
	if err != nil {
		return chainhash.Hash{}, fmt.Errorf("failed to broadcast transaction: %w", err)
	}

	return chainhash.NewHashFromStr(txidStr)
}

func (w *electrumWallet) GetRawTransaction(hash chainhash.Hash) (*wire.MsgTx, error) {
	rawHex, err := w.client.GetTransaction(hash.String())
	if err != nil {
		return nil, err
	}

	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode transaction hex: %w", err)
	}

	tx := wire.NewMsgTx(txVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to deserialize transaction: %w", err)
	}

	return tx, nil
}

func serializeTx(tx *wire.MsgTx) ([]byte, error) {
	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize transaction: %w", err)
	}
	return buf.Bytes(), nil
}

func (w *electrumWallet) WaitForConfirmations(ctx context.Context, hash chainhash.Hash, confirmations uint64) error {
	const pollInterval = 10 * time.Second

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			confs, err := w.client.GetTransactionConfirmations(hash.String())
			if err != nil {
				continue
			}

			if confs >= confirmations {
				return nil
			}
		}
	}
}

func (w *electrumWallet) TransactionFee(vsize int64) common.BitcoinAmount {
	const blocksTarget = 2
	const satPerKB = 10000 // fallback if the fee estimate call fails

	rate, err := w.client.EstimateFee(blocksTarget)
	if err != nil || rate <= 0 {
		return common.BitcoinAmount(vsize * satPerKB / 1000)
	}

	feeBTCPerKB := rate
	return common.BTCToSatoshi(feeBTCPerKB) * common.BitcoinAmount(vsize) / 1000
}
