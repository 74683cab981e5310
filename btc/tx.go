package btc

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/dendisuhubdy/xmr-btc-swap/common"
)

const txVersion = 2

// LockOutput describes the UTXO created by TxLock: the 2-of-2 output that
// funds the whole swap.
type LockOutput struct {
	OutPoint      wire.OutPoint
	Value         common.BitcoinAmount
	WitnessScript []byte
}

// BuildTxLock builds Bob's funding transaction: spends Bob's own UTXOs and
// creates a single P2WSH output under the Alice+Bob 2-of-2 script.
func BuildTxLock(inputs []wire.OutPoint, changeScript []byte, changeValue common.BitcoinAmount,
	alicePub, bobPub *btcec.PublicKey, lockValue common.BitcoinAmount) (*wire.MsgTx, []byte, error) {
	witnessScript, err := LockScript(alicePub, bobPub)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build lock script: %w", err)
	}

	lockPkScript, err := P2WSHAddressScript(witnessScript)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build lock output script: %w", err)
	}

	tx := wire.NewMsgTx(txVersion)
	for _, op := range inputs {
		op := op
		tx.AddTxIn(wire.NewTxIn(&op, nil, nil))
	}

	tx.AddTxOut(wire.NewTxOut(int64(lockValue), lockPkScript))
	if changeValue > 0 {
		tx.AddTxOut(wire.NewTxOut(int64(changeValue), changeScript))
	}

	return tx, witnessScript, nil
}

// BuildTxCancel builds the transaction that moves funds from TxLock's
// output to TxCancel's output, re-encumbering them under CancelScript so
// that either the refund or the punish path can later be taken. It spends
// TxLock's single output and has a single output of its own.
func BuildTxCancel(lockTxHash chainhash.Hash, lockOutputIndex uint32, lockValue common.BitcoinAmount,
	alicePub, bobPub *btcec.PublicKey, cancelTimelock, punishTimelock int64,
	fee common.BitcoinAmount) (*wire.MsgTx, []byte, error) {
	witnessScript, err := CancelScript(alicePub, bobPub, punishTimelock)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build cancel script: %w", err)
	}

	cancelPkScript, err := P2WSHAddressScript(witnessScript)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build cancel output script: %w", err)
	}

	tx := wire.NewMsgTx(txVersion)
	txIn := wire.NewTxIn(wire.NewOutPoint(&lockTxHash, lockOutputIndex), nil, nil)
	// BIP68 relative timelock: TxCancel cannot confirm until cancelTimelock
	// blocks after TxLock does, giving a cooperative redeem priority over
	// an uncooperative cancel.
	txIn.Sequence = uint32(cancelTimelock)
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(int64(lockValue-fee), cancelPkScript))

	return tx, witnessScript, nil
}

// BuildTxRefund builds the transaction moving funds from TxCancel's output
// back to Bob's own address via the cooperative IF branch, before the
// punish timelock elapses. Alice's contribution is an ECDSA adaptor
// signature encrypted under Bob's Monero spend key share point; Bob's is a
// plain signature. Bob completes and broadcasts it himself using his own
// Monero secret to decrypt Alice's share, and publishing the completed
// signature lets Alice later Recover that secret from chain and reclaim
// the jointly-held Monero output.
func BuildTxRefund(cancelTxHash chainhash.Hash, cancelValue common.BitcoinAmount,
	recipient btcutil.Address, fee common.BitcoinAmount) (*wire.MsgTx, error) {
	pkScript, err := txscript.PayToAddrScript(recipient)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&cancelTxHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(cancelValue-fee), pkScript))

	return tx, nil
}

// BuildTxRedeem builds the transaction spending TxLock's output directly to
// Alice's own address. Bob's contribution is an ECDSA adaptor signature
// encrypted under Alice's Monero spend key share point; Alice's is a plain
// signature. Alice completes and broadcasts it herself using her own
// Monero secret to decrypt Bob's share, and publishing the completed
// signature lets Bob later Recover that secret from chain and claim the
// jointly-held Monero output.
func BuildTxRedeem(lockTxHash chainhash.Hash, lockValue common.BitcoinAmount,
	recipient btcutil.Address, fee common.BitcoinAmount) (*wire.MsgTx, error) {
	pkScript, err := txscript.PayToAddrScript(recipient)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txVersion)
	tx.AddTxIn(wire.NewTxIn(wire.NewOutPoint(&lockTxHash, 0), nil, nil))
	tx.AddTxOut(wire.NewTxOut(int64(lockValue-fee), pkScript))

	return tx, nil
}

// BuildTxPunish builds Alice's transaction spending TxCancel's output via
// the ELSE branch, taken only once punishTimelock relative blocks have
// passed without Bob refunding.
func BuildTxPunish(cancelTxHash chainhash.Hash, cancelValue common.BitcoinAmount,
	aliceAddr btcutil.Address, punishTimelock int64, fee common.BitcoinAmount) (*wire.MsgTx, error) {
	pkScript, err := txscript.PayToAddrScript(aliceAddr)
	if err != nil {
		return nil, err
	}

	tx := wire.NewMsgTx(txVersion)
	txIn := wire.NewTxIn(wire.NewOutPoint(&cancelTxHash, 0), nil, nil)
	txIn.Sequence = uint32(punishTimelock)
	tx.AddTxIn(txIn)
	tx.AddTxOut(wire.NewTxOut(int64(cancelValue-fee), pkScript))

	return tx, nil
}

// NetParamsForEnvironment returns the chaincfg network parameters matching
// the swap's configured environment.
func NetParamsForEnvironment(env common.Environment) *chaincfg.Params {
	switch env {
	case common.Mainnet:
		return &chaincfg.MainNetParams
	case common.Test:
		return &chaincfg.TestNet3Params
	default:
		return &chaincfg.RegressionNetParams
	}
}
