// Package protocol holds the key-generation and verification logic shared
// by protocol/alice and protocol/bob, grounded on the call-site contract
// in mewmix-atomic-swap/protocol/common_test.go's GenerateKeysAndProof/
// VerifyKeysAndProof pair (the teacher's own protocol/common.go body was
// elided from every snapshot; only that test survived).
package protocol

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/dendisuhubdy/xmr-btc-swap/common"
	"github.com/dendisuhubdy/xmr-btc-swap/crypto/dleq"
	mcrypto "github.com/dendisuhubdy/xmr-btc-swap/crypto/monero"
	"github.com/dendisuhubdy/xmr-btc-swap/crypto/secp256k1"
)

// KeysAndProof bundles the key material a party generates at the start of
// a swap: a Monero spend/view key pair and the secp256k1 keypair this
// party will use both as their Bitcoin signing key in the 2-of-2 scripts
// and as the adaptor point the counterparty encrypts their half of the
// redeem/refund signature under, plus the DLEq proof tying the two
// together. Bitcoin's secp256k1PrivateKey and the Monero spend key share
// the exact same discrete log (see dleq.NewProofScheme), which is what
// lets Recover-ing one from a published transaction yield the other.
type KeysAndProof struct {
	DLEqProof           *dleq.Proof
	Secp256k1PublicKey  *secp256k1.PublicKey
	Secp256k1PrivateKey *secp256k1.PrivateKey
	PrivateKeyPair      *mcrypto.PrivateKeyPair
}

// GenerateKeysAndProof generates a fresh Monero spend key, an independent
// view key share, and a secp256k1 keypair sharing the spend key's
// discrete log, and proves the two keys share it.
func GenerateKeysAndProof() (*KeysAndProof, error) {
	var secret [32]byte
	if _, err := rand.Read(secret[:]); err != nil {
		return nil, fmt.Errorf("failed to generate swap secret: %w", err)
	}

	spendKey, err := mcrypto.NewPrivateSpendKeyFromBytes(secret[:])
	if err != nil {
		return nil, err
	}

	// The view key share is generated independently of the spend key: the
	// joint swap view key is the sum of both parties' shares, not derived
	// from either party's spend key.
	var viewSecret [32]byte
	if _, err := rand.Read(viewSecret[:]); err != nil {
		return nil, fmt.Errorf("failed to generate view key secret: %w", err)
	}

	viewKey, err := mcrypto.NewPrivateViewKeyFromBytes(viewSecret[:])
	if err != nil {
		return nil, err
	}

	spendKeyBytes := spendKey.Bytes()

	scheme, err := dleq.NewProofScheme(spendKeyBytes)
	if err != nil {
		return nil, err
	}

	proof, err := scheme.Prove()
	if err != nil {
		return nil, err
	}

	secpKey := scheme.Secp256k1PrivateKey()

	return &KeysAndProof{
		DLEqProof:           proof,
		Secp256k1PublicKey:  secpKey.Public(),
		Secp256k1PrivateKey: secpKey,
		PrivateKeyPair:      mcrypto.NewPrivateKeyPair(spendKey, viewKey),
	}, nil
}

// VerifyKeysAndProof verifies a counterparty's DLEq proof against their
// claimed secp256k1 adaptor public key and Monero public spend key,
// returning the dleq.VerifyResult on success.
func VerifyKeysAndProof(
	proofBytes []byte,
	secpPub *secp256k1.PublicKey,
	claimedSpendPub [32]byte,
) (*dleq.VerifyResult, error) {
	proof := dleq.NewProofWithoutSecret(proofBytes)

	res, err := dleq.Verify(proof, claimedSpendPub, secpPub)
	if err != nil {
		return nil, fmt.Errorf("failed to verify dleq proof: %w", err)
	}

	return res, nil
}

// SpendKeyFromAdaptorSecret converts a secp256k1 scalar recovered from a
// published Bitcoin transaction's adaptor signature (via adaptor.Recover)
// back into the counterparty's Monero private spend key share. The two
// are the same integer by construction (see dleq.NewProofScheme); only
// the byte order differs between the two curves' conventions.
func SpendKeyFromAdaptorSecret(secret *big.Int) (*mcrypto.PrivateSpendKey, error) {
	b := secret.Bytes()
	if len(b) > 32 {
		return nil, fmt.Errorf("recovered adaptor secret is too large to be a valid scalar")
	}

	var padded [32]byte
	copy(padded[32-len(b):], b)

	return mcrypto.NewPrivateSpendKeyFromBytes(common.Reverse(padded[:]))
}
