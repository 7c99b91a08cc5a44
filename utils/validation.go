package utils

import (
	"fmt"
	"math"
	"math/big"
	"regexp"

	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// ValidateAmount checks if an amount string is a valid decimal
func ValidateAmount(amount string) (*decimal.Decimal, error) {
	if amount == "" {
		return nil, fmt.Errorf("amount cannot be empty")
	}

	dec, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("invalid amount format: %w", err)
	}

	if dec.IsNegative() {
		return nil, fmt.Errorf("amount cannot be negative")
	}

	return &dec, nil
}

var maxBaseUnits = decimal.NewFromBigInt(new(big.Int).SetUint64(math.MaxUint64), 0)

// ParseAmount converts a human amount such as "0.005" into base units of a
// token with the given decimals. Amounts with more precision than the token
// supports are rejected rather than rounded.
func ParseAmount(amount string, decimals int) (uint64, error) {
	dec, err := ValidateAmount(amount)
	if err != nil {
		return 0, err
	}

	base := dec.Shift(int32(decimals))
	if !base.Equal(base.Truncate(0)) {
		return 0, fmt.Errorf("amount %s has more than %d decimal places", amount, decimals)
	}
	if base.GreaterThan(maxBaseUnits) {
		return 0, fmt.Errorf("amount %s overflows u64 base units", amount)
	}

	return base.BigInt().Uint64(), nil
}

// FormatAmount renders base units as a decimal string.
func FormatAmount(base uint64, decimals int) string {
	return decimal.NewFromBigInt(new(big.Int).SetUint64(base), -int32(decimals)).String()
}

// ValidateAddress checks that address is a base58 encoded 32-byte key.
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}
	if len(address) < 32 || len(address) > 44 {
		return fmt.Errorf("address has invalid length")
	}
	if !isBase58String(address) {
		return fmt.Errorf("address must be valid base58")
	}
	if _, err := solana.PublicKeyFromBase58(address); err != nil {
		return fmt.Errorf("invalid address: %w", err)
	}
	return nil
}

// ValidateSignature checks the shape of a transaction signature.
func ValidateSignature(sig string) error {
	if len(sig) < 80 || len(sig) > 90 {
		return fmt.Errorf("transaction signature has invalid length")
	}
	if !isBase58String(sig) {
		return fmt.Errorf("transaction signature must be valid base58")
	}
	return nil
}

var base58Pattern = regexp.MustCompile("^[1-9A-HJ-NP-Za-km-z]+$")

// Helper function to check if a string is valid base58
func isBase58String(s string) bool {
	return base58Pattern.MatchString(s)
}
