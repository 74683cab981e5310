// Package monero implements the private/public key pairs used to derive the
// shared Monero address that XMR is locked into, and the summation of two
// parties' key shares into that joint address. The call-sites in
// monero.Client (GenerateFromKeys, GenerateViewOnlyWalletFromKeys) fix the
// shape of PrivateKeyPair, PrivateViewKey and Address used here.
package monero

import (
	"encoding/hex"
	"fmt"
	"math/big"

	"github.com/dendisuhubdy/xmr-btc-swap/common"
	"github.com/dendisuhubdy/xmr-btc-swap/crypto/ed25519util"
	"golang.org/x/crypto/sha3"
)

// PrivateSpendKey is the ed25519 scalar controlling spend authority over a
// Monero address.
type PrivateSpendKey struct {
	key *ed25519util.Scalar
}

// PrivateViewKey is the ed25519 scalar controlling view (scanning) authority
// over a Monero address. Monero derives it deterministically from the spend
// key via keccak256, but each swap party holds its view key share
// independently since only the spend key share needs to be tied to the
// Bitcoin adaptor secret via the DLEq proof.
type PrivateViewKey struct {
	key *ed25519util.Scalar
}

// NewPrivateSpendKeyFromBytes decodes a 32-byte little-endian scalar as a
// spend key.
func NewPrivateSpendKeyFromBytes(b []byte) (*PrivateSpendKey, error) {
	s, err := ed25519util.NewScalarFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("invalid spend key: %w", err)
	}

	return &PrivateSpendKey{key: s}, nil
}

// NewPrivateViewKeyFromBytes decodes a 32-byte little-endian scalar as a
// view key.
func NewPrivateViewKeyFromBytes(b []byte) (*PrivateViewKey, error) {
	s, err := ed25519util.NewScalarFromBytes(b)
	if err != nil {
		return nil, fmt.Errorf("invalid view key: %w", err)
	}

	return &PrivateViewKey{key: s}, nil
}

// Bytes returns the 32-byte little-endian encoding.
func (k *PrivateSpendKey) Bytes() [32]byte { return k.key.Bytes() }

// Bytes returns the 32-byte little-endian encoding.
func (k *PrivateViewKey) Bytes() [32]byte { return k.key.Bytes() }

// Public returns the public spend key point.
func (k *PrivateSpendKey) Public() [32]byte {
	return k.key.Point().Bytes()
}

// Public returns the public view key point.
func (k *PrivateViewKey) Public() [32]byte {
	return k.key.Point().Bytes()
}

// AsScalar exposes the underlying scalar for DLEq proof construction.
func (k *PrivateSpendKey) AsScalar() *ed25519util.Scalar { return k.key }

// Hex returns the key's hex encoding.
func (k *PrivateSpendKey) Hex() string {
	b := k.Bytes()
	return hex.EncodeToString(b[:])
}

// ViewFromSpend derives a view key deterministically from a spend key, the
// way a standalone Monero wallet does: view = keccak256(spend) mod l.
// Used only when a party needs a self-consistent single-party wallet (eg.
// during testing); the swap's actual shared view key is the sum of both
// parties' independently generated view key shares, not this derivation.
func ViewFromSpend(spend *PrivateSpendKey) (*PrivateViewKey, error) {
	b := spend.Bytes()
	h := sha3.NewLegacyKeccak256()
	h.Write(b[:])
	digest := h.Sum(nil)

	return NewPrivateViewKeyFromBytes(digest)
}

// SumPrivateSpendKeys returns the private spend key resulting from adding
// the two parties' spend key shares, ie. the joint swap spend key.
func SumPrivateSpendKeys(a, b *PrivateSpendKey) *PrivateSpendKey {
	return &PrivateSpendKey{key: a.key.Add(b.key)}
}

// SumPrivateViewKeys returns the private view key resulting from adding the
// two parties' view key shares, ie. the joint swap view key.
func SumPrivateViewKeys(a, b *PrivateViewKey) *PrivateViewKey {
	return &PrivateViewKey{key: a.key.Add(b.key)}
}

// SumPublicSpendKeys returns the public point resulting from adding two
// public spend key shares, used to compute the joint Monero address before
// either party holds the other's private spend key share.
func SumPublicSpendKeys(a, b [32]byte) ([32]byte, error) {
	pa, err := ed25519util.NewPointFromBytes(a[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid public spend key: %w", err)
	}

	pb, err := ed25519util.NewPointFromBytes(b[:])
	if err != nil {
		return [32]byte{}, fmt.Errorf("invalid public spend key: %w", err)
	}

	return pa.Add(pb).Bytes(), nil
}

// AddressFromPublicKeys derives the base58 Monero address for a joint
// public spend/view key pair, without requiring either party's private
// key share.
func AddressFromPublicKeys(spendPub, viewPub [32]byte, env common.Environment) Address {
	return addressFromPublicKeys(spendPub, viewPub, env)
}

// PrivateKeyPair is a spend/view key pair identifying full control over a
// Monero wallet.
type PrivateKeyPair struct {
	sk *PrivateSpendKey
	vk *PrivateViewKey
}

// NewPrivateKeyPair constructs a key pair from its spend and view keys.
func NewPrivateKeyPair(sk *PrivateSpendKey, vk *PrivateViewKey) *PrivateKeyPair {
	return &PrivateKeyPair{sk: sk, vk: vk}
}

// SpendKey returns the pair's spend key.
func (kp *PrivateKeyPair) SpendKey() *PrivateSpendKey { return kp.sk }

// ViewKey returns the pair's view key.
func (kp *PrivateKeyPair) ViewKey() *PrivateViewKey { return kp.vk }

// SumSpendAndViewKeys sums two parties' key pairs into the joint swap key
// pair.
func SumSpendAndViewKeys(a, b *PrivateKeyPair) *PrivateKeyPair {
	return &PrivateKeyPair{
		sk: SumPrivateSpendKeys(a.sk, b.sk),
		vk: SumPrivateViewKeys(a.vk, b.vk),
	}
}

// Address is a base58-encoded Monero address string.
type Address string

// Address derives the base58-encoded Monero address for this key pair in
// the given network environment.
func (kp *PrivateKeyPair) Address(env common.Environment) Address {
	return addressFromPublicKeys(kp.sk.Public(), kp.vk.Public(), env)
}

// networkByte returns Monero's address prefix byte for the given
// environment (mainnet standard address vs. stagenet).
func networkByte(env common.Environment) byte {
	switch env {
	case common.Mainnet:
		return 18
	case common.Test:
		return 24 // stagenet, paired with Bitcoin testnet
	default:
		return 24 // stagenet, used for Development/regtest setups
	}
}

// addressFromPublicKeys implements Monero's address encoding: a network
// byte followed by the public spend key, the public view key, and a
// 4-byte Keccak-256 checksum of the preceding bytes, all base58-encoded.
func addressFromPublicKeys(spendPub, viewPub [32]byte, env common.Environment) Address {
	payload := make([]byte, 0, 1+32+32)
	payload = append(payload, networkByte(env))
	payload = append(payload, spendPub[:]...)
	payload = append(payload, viewPub[:]...)

	h := sha3.NewLegacyKeccak256()
	h.Write(payload)
	checksum := h.Sum(nil)[:4]

	return Address(base58MoneroEncode(append(payload, checksum...)))
}

// base58MoneroEncode implements Monero's variant of base58, which encodes
// the input in 8-byte blocks (the last possibly short) rather than treating
// it as one large integer, so that block boundaries are encoding-stable.
// No example in the corpus implements this (btcutil/base58 is Bitcoin's
// whole-buffer variant and would not round-trip Monero addresses), so this
// is built directly against math/big.
func base58MoneroEncode(data []byte) string {
	const alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"
	const fullBlockSize = 8
	encodedBlockSizes := [9]int{0, 2, 3, 5, 6, 7, 9, 10, 11}

	base := big.NewInt(58)

	encodeBlock := func(block []byte) []byte {
		size := encodedBlockSizes[len(block)]
		n := new(big.Int).SetBytes(block)

		out := make([]byte, size)
		rem := new(big.Int)
		for i := size - 1; i >= 0; i-- {
			n.DivMod(n, base, rem)
			out[i] = alphabet[rem.Int64()]
		}

		return out
	}

	var out []byte
	for len(data) >= fullBlockSize {
		out = append(out, encodeBlock(data[:fullBlockSize])...)
		data = data[fullBlockSize:]
	}
	if len(data) > 0 {
		out = append(out, encodeBlock(data)...)
	}

	return string(out)
}
