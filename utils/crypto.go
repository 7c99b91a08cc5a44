package utils

import (
	"crypto/ed25519"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// ParsePublicKey decodes a base58 key with a readable error.
func ParsePublicKey(s string) (solana.PublicKey, error) {
	if err := ValidateAddress(s); err != nil {
		return solana.PublicKey{}, err
	}
	return solana.MustPublicKeyFromBase58(s), nil
}

// PrivateKeyFromBase58 decodes a base58 encoded 64-byte secret key.
func PrivateKeyFromBase58(s string) (solana.PrivateKey, error) {
	key, err := solana.PrivateKeyFromBase58(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("failed to decode private key: %w", err)
	}
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key is %d bytes, expected %d", len(key), ed25519.PrivateKeySize)
	}
	return key, nil
}

// LoadKeypair reads a solana-keygen JSON keypair file. A leading "~/" is
// expanded to the home directory.
func LoadKeypair(path string) (solana.PrivateKey, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(home, path[2:])
	}

	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load keypair %s: %w", path, err)
	}
	return key, nil
}

// NewKeypair generates a fresh signing key.
func NewKeypair() solana.PrivateKey {
	return solana.NewWallet().PrivateKey
}
