package btc

import (
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/dendisuhubdy/xmr-btc-swap/crypto/secp256k1"
)

// WitnessSigHash computes the BIP-143 witness program signature hash for
// input idx of tx, spending a P2WSH output of the given witness script and
// value.
func WitnessSigHash(tx *wire.MsgTx, idx int, witnessScript []byte, value int64) ([]byte, error) {
	sigHashes := txscript.NewTxSigHashes(tx, txscript.NewCannedPrevOutputFetcher(nil, 0))
	return txscript.CalcWitnessSigHash(witnessScript, sigHashes, txscript.SigHashAll, tx, idx, value)
}

// SignWitness produces a standard low-s DER-encoded ECDSA signature (with
// the sighash type byte appended) over a P2WSH input, the form every
// cooperative-path witness (TxLock redeem/cancel, TxRefund, TxPunish)
// needs.
func SignWitness(sk *secp256k1.PrivateKey, tx *wire.MsgTx, idx int, witnessScript []byte, value int64) ([]byte, error) {
	hash, err := WitnessSigHash(tx, idx, witnessScript, value)
	if err != nil {
		return nil, fmt.Errorf("failed to compute sighash: %w", err)
	}

	sig := ecdsa.Sign(sk.BTCECPrivateKey(), hash)
	return append(sig.Serialize(), byte(txscript.SigHashAll)), nil
}
