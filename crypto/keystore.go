package crypto

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/gagliardetto/solana-go"
)

// SaveKeypair writes key to path in the solana-keygen JSON format (an array of
// 64 byte values). The parent directory is created with 0700 permissions.
func SaveKeypair(path string, key solana.PrivateKey) error {
	if len(key) != 64 {
		return errors.New("crypto: invalid private key")
	}
	if path == "" {
		return errors.New("crypto: empty keypair path")
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	values := make([]int, len(key))
	for i, b := range key {
		values[i] = int(b)
	}
	encoded, err := json.Marshal(values)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, "keypair-")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(encoded); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// LoadKeypair reads a solana-keygen JSON keypair file.
func LoadKeypair(path string) (solana.PrivateKey, error) {
	if path == "" {
		return nil, errors.New("crypto: empty keypair path")
	}
	return solana.PrivateKeyFromSolanaKeygenFile(path)
}
