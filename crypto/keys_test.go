package crypto

import (
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

func TestKeypairRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "keys", "admin.json")

	require.NoError(t, SaveKeypair(path, key))
	loaded, err := LoadKeypair(path)
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), loaded.PublicKey())

	// Overwriting an existing file is allowed.
	other, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.NoError(t, SaveKeypair(path, other))
	loaded, err = LoadKeypair(path)
	require.NoError(t, err)
	require.Equal(t, other.PublicKey(), loaded.PublicKey())

	require.Error(t, SaveKeypair(path, solana.PrivateKey{1, 2, 3}))
	_, err = LoadKeypair("")
	require.Error(t, err)
}

func TestSignAndVerifyRequest(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	payload := []byte(`{"merchant":"x","amount":"10"}`)

	sig, err := SignRequest(key, "merchant_withdrawToken", payload)
	require.NoError(t, err)
	require.NoError(t, VerifyRequest(key.PublicKey(), "merchant_withdrawToken", payload, sig))

	require.ErrorIs(t, VerifyRequest(key.PublicKey(), "merchant_refundToken", payload, sig), ErrInvalidSignature)
	require.ErrorIs(t, VerifyRequest(key.PublicKey(), "merchant_withdrawToken", []byte(`{}`), sig), ErrInvalidSignature)
	other, err := GeneratePrivateKey()
	require.NoError(t, err)
	require.ErrorIs(t, VerifyRequest(other.PublicKey(), "merchant_withdrawToken", payload, sig), ErrInvalidSignature)
	require.ErrorIs(t, VerifyRequest(solana.PublicKey{}, "merchant_withdrawToken", payload, sig), ErrInvalidSignature)
}

func TestSigningPayloadSeparatesMethod(t *testing.T) {
	require.Equal(t, []byte("a\nbc"), SigningPayload("a", []byte("bc")))
	require.NotEqual(t, SigningPayload("ab", []byte("c")), SigningPayload("a", []byte("bc")))
}

func TestParsePublicKey(t *testing.T) {
	key, err := GeneratePrivateKey()
	require.NoError(t, err)
	parsed, err := ParsePublicKey(key.PublicKey().String())
	require.NoError(t, err)
	require.Equal(t, key.PublicKey(), parsed)

	_, err = ParsePublicKey(solana.PublicKey{}.String())
	require.Error(t, err)
	_, err = ParsePublicKey("not a key")
	require.Error(t, err)
}
