// Package btc builds and signs the five Bitcoin transactions the swap
// needs (TxLock, TxCancel, TxRefund, TxRedeem, TxPunish) and the P2WSH
// script predicates they spend through. The script shapes and sighash
// handling follow the witness-script patterns used throughout
// btcsuite/btcd/txscript (grounded on
// other_examples/2de6adda_breez-lightninglib__input-script_utils_test.go.go,
// which builds and spends very similar CSV/CLTV-gated HTLC witness
// scripts), generalized from a single 2-of-2 multisig predicate into the
// three predicates this swap needs.
package btc

import (
	"crypto/sha256"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/txscript"
)

// LockScript returns the witness script for TxLock's output: spendable
// either cooperatively by Alice and Bob together (the redeem path), or,
// after cancelTimelock relative blocks, by Alice and Bob together again
// signing the cancel transaction. Both paths require both parties'
// signatures; what differs between redeem and cancel is which transaction
// template is being signed, not the script itself, so TxLock's output uses
// a plain 2-of-2 multisig script.
func LockScript(alicePub, bobPub *btcec.PublicKey) ([]byte, error) {
	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_2)
	builder.AddData(alicePub.SerializeCompressed())
	builder.AddData(bobPub.SerializeCompressed())
	builder.AddOp(txscript.OP_2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)
	return builder.Script()
}

// CancelScript returns the witness script for TxCancel's output: spendable
// either cooperatively by Alice and Bob together via TxRefund (Alice's
// adaptor-signed contribution lets Bob complete and broadcast it back to
// his own address), or, after punishTimelock relative blocks have passed
// since TxCancel confirmed without a refund, by Alice alone via TxPunish.
// The two paths are differentiated by whether punishTimelock has elapsed,
// encoded as the OP_CHECKSEQUENCEVERIFY branch; TxRedeem never touches
// this output at all, since it spends TxLock's output directly.
func CancelScript(alicePub, bobPub *btcec.PublicKey, punishTimelock int64) ([]byte, error) {
	builder := txscript.NewScriptBuilder()

	// Refund branch: both parties' signatures, no timelock.
	builder.AddOp(txscript.OP_IF)
	builder.AddOp(txscript.OP_2)
	builder.AddData(alicePub.SerializeCompressed())
	builder.AddData(bobPub.SerializeCompressed())
	builder.AddOp(txscript.OP_2)
	builder.AddOp(txscript.OP_CHECKMULTISIG)

	// Punish branch: Alice alone, after punishTimelock relative blocks.
	builder.AddOp(txscript.OP_ELSE)
	builder.AddInt64(punishTimelock)
	builder.AddOp(txscript.OP_CHECKSEQUENCEVERIFY)
	builder.AddOp(txscript.OP_DROP)
	builder.AddData(alicePub.SerializeCompressed())
	builder.AddOp(txscript.OP_CHECKSIG)
	builder.AddOp(txscript.OP_ENDIF)

	return builder.Script()
}

// P2WSHAddressScript wraps a witness script into its P2WSH output script
// (OP_0 <sha256(script)>).
func P2WSHAddressScript(witnessScript []byte) ([]byte, error) {
	h := sha256.Sum256(witnessScript)

	builder := txscript.NewScriptBuilder()
	builder.AddOp(txscript.OP_0)
	builder.AddData(h[:])
	return builder.Script()
}

// MultisigWitness assembles the witness stack for spending a 2-of-2
// CHECKMULTISIG script: an empty dummy element (OP_CHECKMULTISIG's
// off-by-one bug), the two signatures in the same order as the pubkeys in
// the script, and the script itself.
func MultisigWitness(witnessScript []byte, aliceSig, bobSig []byte) [][]byte {
	return [][]byte{
		{}, // CHECKMULTISIG dummy stack element
		aliceSig,
		bobSig,
		witnessScript,
	}
}

// CancelRedeemWitness assembles the witness stack for spending TxCancel's
// output via the IF (cooperative) branch.
func CancelRedeemWitness(witnessScript []byte, aliceSig, bobSig []byte) [][]byte {
	return [][]byte{
		{},
		aliceSig,
		bobSig,
		{1}, // select the OP_IF branch
		witnessScript,
	}
}

// CancelPunishWitness assembles the witness stack for spending TxCancel's
// output via the ELSE (punish) branch.
func CancelPunishWitness(witnessScript []byte, aliceSig []byte) [][]byte {
	return [][]byte{
		aliceSig,
		{}, // select the OP_ELSE branch
		witnessScript,
	}
}

