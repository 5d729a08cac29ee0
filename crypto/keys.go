package crypto

import (
	"errors"

	"github.com/gagliardetto/solana-go"
)

// ErrInvalidSignature is returned when an envelope signature does not verify.
var ErrInvalidSignature = errors.New("crypto: invalid signature")

// GeneratePrivateKey creates a fresh ed25519 keypair.
func GeneratePrivateKey() (solana.PrivateKey, error) {
	return solana.NewRandomPrivateKey()
}

// ParsePublicKey decodes a base58 public key and rejects the zero key.
func ParsePublicKey(raw string) (solana.PublicKey, error) {
	key, err := solana.PublicKeyFromBase58(raw)
	if err != nil {
		return solana.PublicKey{}, err
	}
	if key.IsZero() {
		return solana.PublicKey{}, errors.New("crypto: zero public key")
	}
	return key, nil
}

// SigningPayload is the byte string a caller signs for a request: the method
// name, a newline, then the raw JSON payload.
func SigningPayload(method string, payload []byte) []byte {
	out := make([]byte, 0, len(method)+1+len(payload))
	out = append(out, method...)
	out = append(out, '\n')
	return append(out, payload...)
}

// SignRequest signs payload for method with key.
func SignRequest(key solana.PrivateKey, method string, payload []byte) (solana.Signature, error) {
	return key.Sign(SigningPayload(method, payload))
}

// VerifyRequest checks that sig is caller's signature over payload for method.
func VerifyRequest(caller solana.PublicKey, method string, payload []byte, sig solana.Signature) error {
	if caller.IsZero() || !sig.Verify(caller, SigningPayload(method, payload)) {
		return ErrInvalidSignature
	}
	return nil
}
