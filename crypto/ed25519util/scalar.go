// Package ed25519util provides the ed25519 scalar and point arithmetic
// needed to derive Monero shared keys: summing a local key share with a
// counterparty's key share to produce the joint spend/view key, the same
// operation Monero calls a "multisig" address of degree 1.
package ed25519util

import (
	"fmt"

	"filippo.io/edwards25519"
)

// ScalarLength is the length in bytes of an ed25519/Monero scalar.
const ScalarLength = 32

// Scalar wraps edwards25519.Scalar with Monero's little-endian byte
// encoding.
type Scalar struct {
	s *edwards25519.Scalar
}

// NewScalarFromBytes decodes a 32-byte little-endian scalar. The bytes are
// reduced mod the curve order, matching Monero's key-derivation semantics.
func NewScalarFromBytes(b []byte) (*Scalar, error) {
	if len(b) != ScalarLength {
		return nil, fmt.Errorf("invalid scalar length: got %d, want %d", len(b), ScalarLength)
	}

	var wide [64]byte
	copy(wide[:32], b)

	s, err := edwards25519.NewScalar().SetUniformBytes(wide[:])
	if err != nil {
		return nil, fmt.Errorf("failed to decode scalar: %w", err)
	}

	return &Scalar{s: s}, nil
}

// Bytes returns the canonical 32-byte little-endian encoding.
func (s *Scalar) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], s.s.Bytes())
	return out
}

// Add returns a new scalar equal to s + other mod l, the operation used to
// combine two Monero private key shares into the joint private key.
func (s *Scalar) Add(other *Scalar) *Scalar {
	return &Scalar{s: edwards25519.NewScalar().Add(s.s, other.s)}
}

// Mul returns a new scalar equal to s * other mod l.
func (s *Scalar) Mul(other *Scalar) *Scalar {
	return &Scalar{s: edwards25519.NewScalar().Multiply(s.s, other.s)}
}

// Point returns the public point s*B, where B is the ed25519 base point.
func (s *Scalar) Point() *Point {
	return &Point{p: new(edwards25519.Point).ScalarBaseMult(s.s)}
}

// Point wraps edwards25519.Point with Monero's compressed encoding.
type Point struct {
	p *edwards25519.Point
}

// ScalarMul returns s*p, used to verify a DLEq proof's response against a
// claimed public point without ever learning the scalar behind it.
func (p *Point) ScalarMul(s *Scalar) *Point {
	return &Point{p: new(edwards25519.Point).ScalarMult(s.s, p.p)}
}

// NewPointFromBytes decodes a 32-byte compressed ed25519 point.
func NewPointFromBytes(b []byte) (*Point, error) {
	p, err := new(edwards25519.Point).SetBytes(b)
	if err != nil {
		return nil, fmt.Errorf("failed to decode point: %w", err)
	}

	return &Point{p: p}, nil
}

// Bytes returns the 32-byte compressed encoding.
func (p *Point) Bytes() [32]byte {
	var out [32]byte
	copy(out[:], p.p.Bytes())
	return out
}

// Add returns the sum of two points, used to combine Alice's and Bob's
// public key shares into the joint Monero spend/view public key.
func (p *Point) Add(other *Point) *Point {
	return &Point{p: new(edwards25519.Point).Add(p.p, other.p)}
}
