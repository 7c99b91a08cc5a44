package types

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/gagliardetto/solana-go"
)

const (
	// ConfigSeed derives the singleton config address.
	ConfigSeed = "config2"
	// LegacyConfigSeed is the singleton seed of the first deployment. Only
	// inspected during recovery, never written.
	LegacyConfigSeed = "config"
	// PaymentRequestSeed prefixes every payment request address.
	PaymentRequestSeed = "payment_request"

	MaxRequestIDLen   = 64
	MaxResourceTagLen = 128

	// TokenDecimals is the precision of wrapped SOL, the default payment mint.
	TokenDecimals = 9
)

// DefaultProgramID is the deployed address of the payment program.
var DefaultProgramID = solana.MustPublicKeyFromBase58("2HkEaAhDkTbN9wpVyky8Gmh79xUxRRRiwrqkc8tTUArQ")

// WrappedSOLMint is the native mint used for payments unless configured otherwise.
var WrappedSOLMint = solana.MustPublicKeyFromBase58("So11111111111111111111111111111111111111112")

// EscrowConfig contains global configuration for the escrow library
type EscrowConfig struct {
	ProgramID        string        `json:"programId" validate:"required,pubkey"`
	Network          Network       `json:"network" validate:"required,oneof=mainnet-beta devnet testnet localnet in-process"`
	RPCUrl           string        `json:"rpcUrl,omitempty" validate:"omitempty,url"`
	Commitment       string        `json:"commitment,omitempty" validate:"omitempty,oneof=processed confirmed finalized"`
	Mint             string        `json:"mint" validate:"required,pubkey"`
	TokenDecimals    int           `json:"tokenDecimals" validate:"gte=0,lte=18"`
	UpgradeAuthority string        `json:"upgradeAuthority,omitempty" validate:"omitempty,pubkey"`
	StorePath        string        `json:"storePath,omitempty"`
	DefaultTimeout   time.Duration `json:"defaultTimeout,omitempty"`
	RetryCount       int           `json:"retryCount,omitempty" validate:"gte=0"`
	LogLevel         string        `json:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`
	EnableMetrics    bool          `json:"enableMetrics,omitempty"`
}

// DefaultConfig returns a configuration that runs against the in-process ledger.
func DefaultConfig() *EscrowConfig {
	return &EscrowConfig{
		ProgramID:      DefaultProgramID.String(),
		Network:        NetworkInProcess,
		Commitment:     "confirmed",
		Mint:           WrappedSOLMint.String(),
		TokenDecimals:  TokenDecimals,
		DefaultTimeout: 30 * time.Second,
		RetryCount:     3,
		LogLevel:       "info",
	}
}

// LoadConfig reads a JSON config file on top of DefaultConfig. Validation is
// left to the caller so it can use the shared validator instance.
func LoadConfig(path string) (*EscrowConfig, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg := DefaultConfig()
	if err := json.Unmarshal(raw, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}

	if cfg.RPCUrl == "" {
		cfg.RPCUrl = cfg.Network.DefaultRPCUrl()
	}
	return cfg, nil
}

// ProgramKey parses ProgramID.
func (c *EscrowConfig) ProgramKey() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(c.ProgramID)
}

// MintKey parses Mint.
func (c *EscrowConfig) MintKey() (solana.PublicKey, error) {
	return solana.PublicKeyFromBase58(c.Mint)
}

// UpgradeAuthorityKey parses UpgradeAuthority; the zero key means unset.
func (c *EscrowConfig) UpgradeAuthorityKey() (solana.PublicKey, error) {
	if c.UpgradeAuthority == "" {
		return solana.PublicKey{}, nil
	}
	return solana.PublicKeyFromBase58(c.UpgradeAuthority)
}

// TxResult contains the outcome of a submitted transaction
type TxResult struct {
	Success   bool     `json:"success"`
	Signature string   `json:"signature,omitempty"`
	Slot      uint64   `json:"slot,omitempty"`
	Logs      []string `json:"logs,omitempty"`
	Error     string   `json:"error,omitempty"`
	Network   Network  `json:"network,omitempty"`
}

// RequestStatus is the read-side view of a payment request address.
type RequestStatus string

const (
	StatusAbsent    RequestStatus = "absent"
	StatusCorrupted RequestStatus = "corrupted"
	StatusUnpaid    RequestStatus = "unpaid"
	StatusPaid      RequestStatus = "paid"
)

// VerificationResult is the outcome of an advisory pre-check. Valid results
// carry the derived request address; invalid ones carry the code the program
// would most likely fail with.
type VerificationResult struct {
	Valid   bool      `json:"valid"`
	Address string    `json:"address,omitempty"`
	Code    ErrorCode `json:"code,omitempty"`
	Error   string    `json:"error,omitempty"`
}
