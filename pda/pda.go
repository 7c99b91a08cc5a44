// Package pda derives the program-owned record addresses. Addresses are off the
// ed25519 curve, so no keypair can sign for them, and they match the on-chain
// derivation bit for bit.
package pda

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/types"
)

// MaxSeedLen is the host limit on a single derivation seed.
const MaxSeedLen = solana.MaxSeedLength

// Address is a derived address together with its bump seed.
type Address struct {
	Key  solana.PublicKey
	Bump uint8
}

// Derive finds the canonical program address for tag + seeds.
func Derive(programID solana.PublicKey, tag string, seeds ...[]byte) (Address, error) {
	all := make([][]byte, 0, len(seeds)+1)
	all = append(all, []byte(tag))
	all = append(all, seeds...)

	for i, s := range all {
		if len(s) > MaxSeedLen {
			return Address{}, fmt.Errorf("seed %d is %d bytes, max %d: %w", i, len(s), MaxSeedLen, types.ErrConstraintSeeds)
		}
	}

	key, bump, err := solana.FindProgramAddress(all, programID)
	if err != nil {
		return Address{}, fmt.Errorf("find program address: %w", err)
	}
	return Address{Key: key, Bump: bump}, nil
}

// Config returns the singleton config address.
func Config(programID solana.PublicKey) (Address, error) {
	return Derive(programID, types.ConfigSeed)
}

// LegacyConfig returns the config address used by the first deployment.
func LegacyConfig(programID solana.PublicKey) (Address, error) {
	return Derive(programID, types.LegacyConfigSeed)
}

// PaymentRequest returns the address of the request with the given identifier.
// Callers validate the identifier length before deriving.
func PaymentRequest(programID solana.PublicKey, requestID string) (Address, error) {
	return Derive(programID, types.PaymentRequestSeed, []byte(requestID))
}

// Matches reports whether key is the canonical address for tag + seeds.
func Matches(key, programID solana.PublicKey, tag string, seeds ...[]byte) bool {
	addr, err := Derive(programID, tag, seeds...)
	if err != nil {
		return false
	}
	return addr.Key.Equals(key)
}
