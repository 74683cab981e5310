package adaptor

import (
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/stretchr/testify/require"
)

func testHash(t *testing.T, msg string) [32]byte {
	t.Helper()
	return sha256.Sum256([]byte(msg))
}

func TestEncSignVerifyDecryptRecover(t *testing.T) {
	signerKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	adaptorKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	hash := testHash(t, "txredeem sighash")

	encSig, err := EncSign(signerKey, adaptorKey.PubKey(), hash)
	require.NoError(t, err)

	err = EncVerify(signerKey.PubKey(), adaptorKey.PubKey(), hash, encSig)
	require.NoError(t, err)

	adaptorSecret := new(big.Int).SetBytes(adaptorKey.Serialize())
	full := Decrypt(encSig, adaptorSecret)
	require.True(t, ecdsa.Verify(full, hash[:], signerKey.PubKey()))

	recovered, err := Recover(encSig, full)
	require.NoError(t, err)

	// Decrypt normalizes to low-s, so the recovered secret may be the
	// curve-order complement of the original if the original happened to
	// be the high-s root; either the value or its complement must match.
	complement := new(big.Int).Sub(curveOrder, recovered)
	matches := recovered.Cmp(adaptorSecret) == 0 || complement.Cmp(adaptorSecret) == 0
	require.True(t, matches)
}

func TestEncVerifyRejectsWrongAdaptorPoint(t *testing.T) {
	signerKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	adaptorKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	wrongKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	hash := testHash(t, "txrefund sighash")

	encSig, err := EncSign(signerKey, adaptorKey.PubKey(), hash)
	require.NoError(t, err)

	err = EncVerify(signerKey.PubKey(), wrongKey.PubKey(), hash, encSig)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestEncryptedSignatureEncodeDecodeRoundTrip(t *testing.T) {
	signerKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	adaptorKey, err := btcec.NewPrivateKey()
	require.NoError(t, err)

	hash := testHash(t, "encode round trip")

	encSig, err := EncSign(signerKey, adaptorKey.PubKey(), hash)
	require.NoError(t, err)

	decoded, err := DecodeEncryptedSignature(encSig.Encode())
	require.NoError(t, err)

	require.Equal(t, encSig.R.SerializeCompressed(), decoded.R.SerializeCompressed())
	require.Equal(t, encSig.sPrime, decoded.sPrime)

	err = EncVerify(signerKey.PubKey(), adaptorKey.PubKey(), hash, decoded)
	require.NoError(t, err)
}

func TestDecodeEncryptedSignatureRejectsBadLength(t *testing.T) {
	_, err := DecodeEncryptedSignature([]byte{1, 2, 3})
	require.Error(t, err)
}
