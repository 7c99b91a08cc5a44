package utils

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"
	"github.com/vitwit/x402-escrow/types"
)

var validate *validator.Validate

func init() {
	validate = validator.New()

	// Register custom validators
	validate.RegisterValidation("maxbytes", validateMaxBytesTag)
	validate.RegisterValidation("pubkey", validatePubkeyTag)
}

// ValidateStruct runs the shared validator over v. The returned error wraps
// validator.ValidationErrors so callers can inspect individual fields.
func ValidateStruct(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// ParseEscrowConfig parses an EscrowConfig from JSON on top of the defaults
// and validates it.
func ParseEscrowConfig(data []byte) (*types.EscrowConfig, error) {
	config := types.DefaultConfig()

	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse escrow config: %w", err)
	}
	if config.RPCUrl == "" {
		config.RPCUrl = config.Network.DefaultRPCUrl()
	}

	if err := ValidateEscrowConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadEscrowConfig reads and validates a JSON config file.
func LoadEscrowConfig(path string) (*types.EscrowConfig, error) {
	config, err := types.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	if err := ValidateEscrowConfig(config); err != nil {
		return nil, err
	}
	return config, nil
}

// ValidateEscrowConfig checks struct tags. Key fields use the pubkey rule, so
// ProgramKey, MintKey and UpgradeAuthorityKey cannot fail afterwards.
func ValidateEscrowConfig(config *types.EscrowConfig) error {
	if err := ValidateStruct(config); err != nil {
		return err
	}
	if config.Network.IsRemote() && config.RPCUrl == "" {
		return fmt.Errorf("network %s requires an rpcUrl", config.Network)
	}
	return nil
}

// validateMaxBytesTag bounds the encoded length of a string. The builtin max
// rule counts runes, which undercounts multi-byte identifiers.
func validateMaxBytesTag(fl validator.FieldLevel) bool {
	limit, err := strconv.Atoi(fl.Param())
	if err != nil {
		return false
	}
	return len(fl.Field().String()) <= limit
}

func validatePubkeyTag(fl validator.FieldLevel) bool {
	_, err := solana.PublicKeyFromBase58(fl.Field().String())
	return err == nil
}
