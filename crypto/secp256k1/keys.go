// Package secp256k1 wraps btcec keypairs with the accessors the swap
// protocol and its DLEq/adaptor-signature layers need: a canonical 32-byte
// scalar encoding and a compressed public key encoding, used both as
// Bitcoin script data and as the curve side of the DLEq proof tying the
// Monero spend key share to the Bitcoin adaptor secret.
package secp256k1

import (
	"encoding/hex"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// PrivateKeyLength is the length in bytes of a secp256k1 scalar.
const PrivateKeyLength = 32

// PrivateKey is a secp256k1 scalar used as a Bitcoin signing key share or
// as the adaptor secret.
type PrivateKey struct {
	key *btcec.PrivateKey
}

// PublicKey is a secp256k1 point.
type PublicKey struct {
	key *btcec.PublicKey
}

// GenerateKey generates a new random private key.
func GenerateKey() (*PrivateKey, error) {
	k, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("failed to generate secp256k1 key: %w", err)
	}

	return &PrivateKey{key: k}, nil
}

// NewPrivateKeyFromBytes decodes a 32-byte scalar into a PrivateKey.
func NewPrivateKeyFromBytes(b []byte) (*PrivateKey, error) {
	if len(b) != PrivateKeyLength {
		return nil, fmt.Errorf("invalid secp256k1 private key length: got %d, want %d", len(b), PrivateKeyLength)
	}

	key, pub := btcec.PrivKeyFromBytes(b)
	_ = pub

	return &PrivateKey{key: key}, nil
}

// NewPrivateKeyFromHex decodes a hex-encoded scalar into a PrivateKey.
func NewPrivateKeyFromHex(s string) (*PrivateKey, error) {
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, err
	}

	return NewPrivateKeyFromBytes(b)
}

// Bytes returns the 32-byte encoding of the private key.
func (k *PrivateKey) Bytes() []byte {
	b := k.key.Serialize()
	out := make([]byte, PrivateKeyLength)
	copy(out, b)
	return out
}

// Public returns the public key corresponding to this private key.
func (k *PrivateKey) Public() *PublicKey {
	return &PublicKey{key: k.key.PubKey()}
}

// BTCECPrivateKey returns the underlying btcec key, for use by the adaptor
// signature and Bitcoin transaction signing code.
func (k *PrivateKey) BTCECPrivateKey() *btcec.PrivateKey {
	return k.key
}

// NewPublicKeyFromCompressed decodes a 33-byte compressed public key.
func NewPublicKeyFromCompressed(b []byte) (*PublicKey, error) {
	key, err := btcec.ParsePubKey(b)
	if err != nil {
		return nil, fmt.Errorf("failed to parse secp256k1 public key: %w", err)
	}

	return &PublicKey{key: key}, nil
}

// Compress returns the 33-byte compressed encoding of the public key.
func (k *PublicKey) Compress() []byte {
	return k.key.SerializeCompressed()
}

// String returns the hex-encoded compressed public key.
func (k *PublicKey) String() string {
	return hex.EncodeToString(k.Compress())
}

// BTCECPublicKey returns the underlying btcec key.
func (k *PublicKey) BTCECPublicKey() *btcec.PublicKey {
	return k.key
}

// Add returns the public key resulting from adding the two points.
func (k *PublicKey) Add(other *PublicKey) *PublicKey {
	var p1, p2 btcec.JacobianPoint
	k.key.AsJacobian(&p1)
	other.key.AsJacobian(&p2)

	var sum btcec.JacobianPoint
	btcec.AddNonConst(&p1, &p2, &sum)
	sum.ToAffine()

	return &PublicKey{key: btcec.NewPublicKey(&sum.X, &sum.Y)}
}
