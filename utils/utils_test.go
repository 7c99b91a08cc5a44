package utils

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402-escrow/types"
)

func TestParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals int
		want     uint64
		wantErr  bool
	}{
		{"whole", "1", 9, 1_000_000_000, false},
		{"fraction", "0.005", 9, 5_000_000, false},
		{"smallest unit", "0.000000001", 9, 1, false},
		{"zero decimals", "42", 0, 42, false},
		{"too precise", "0.0000000001", 9, 0, true},
		{"negative", "-1", 9, 0, true},
		{"empty", "", 9, 0, true},
		{"garbage", "1.2.3", 9, 0, true},
		{"overflow", "18446744073709551616", 0, 0, true},
		{"max", "18446744073709551615", 0, 18446744073709551615, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseAmount(tt.amount, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "0.005", FormatAmount(5_000_000, 9))
	assert.Equal(t, "1", FormatAmount(1_000_000_000, 9))
	assert.Equal(t, "0", FormatAmount(0, 9))
	assert.Equal(t, "123", FormatAmount(123, 0))
}

func TestValidateAddress(t *testing.T) {
	require.NoError(t, ValidateAddress(types.WrappedSOLMint.String()))
	require.NoError(t, ValidateAddress(solana.SystemProgramID.String()))

	assert.Error(t, ValidateAddress(""))
	assert.Error(t, ValidateAddress("short"))
	assert.Error(t, ValidateAddress("0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl0OIl"))
}

func TestValidateSignature(t *testing.T) {
	sig := solana.Signature{1, 2, 3}
	require.NoError(t, ValidateSignature(sig.String()))
	assert.Error(t, ValidateSignature("abc"))
}

type taggedInput struct {
	Name string `validate:"maxbytes=4"`
	Key  string `validate:"pubkey"`
}

func TestCustomValidationTags(t *testing.T) {
	key := solana.NewWallet().PublicKey().String()

	require.NoError(t, ValidateStruct(taggedInput{Name: "abcd", Key: key}))

	// Four runes, eight bytes.
	err := ValidateStruct(taggedInput{Name: "éééé", Key: key})
	require.Error(t, err)
	var verrs validator.ValidationErrors
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "Name", verrs[0].Field())
	assert.Equal(t, "maxbytes", verrs[0].Tag())

	err = ValidateStruct(taggedInput{Name: "a", Key: "not-a-key"})
	require.True(t, errors.As(err, &verrs))
	assert.Equal(t, "pubkey", verrs[0].Tag())
}

func TestParseEscrowConfig(t *testing.T) {
	cfg, err := ParseEscrowConfig([]byte(`{"network":"devnet"}`))
	require.NoError(t, err)
	assert.Equal(t, types.NetworkDevnet, cfg.Network)
	assert.Equal(t, "https://api.devnet.solana.com", cfg.RPCUrl)
	assert.Equal(t, types.DefaultProgramID.String(), cfg.ProgramID)
	assert.Equal(t, types.TokenDecimals, cfg.TokenDecimals)

	_, err = ParseEscrowConfig([]byte(`{"network":"moon"}`))
	assert.Error(t, err)

	_, err = ParseEscrowConfig([]byte(`{"mint":"xyz"}`))
	assert.Error(t, err)

	_, err = ParseEscrowConfig([]byte(`{"logLevel":"loud"}`))
	assert.Error(t, err)

	_, err = ParseEscrowConfig([]byte(`{`))
	assert.Error(t, err)
}

func TestLoadEscrowConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "escrow.json")

	raw, err := json.Marshal(map[string]any{
		"network":          "localnet",
		"upgradeAuthority": solana.NewWallet().PublicKey().String(),
		"storePath":        filepath.Join(dir, "ledger.db"),
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	cfg, err := LoadEscrowConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "http://127.0.0.1:8899", cfg.RPCUrl)
	key, err := cfg.UpgradeAuthorityKey()
	require.NoError(t, err)
	assert.False(t, key.IsZero())

	_, err = LoadEscrowConfig(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestLoadKeypair(t *testing.T) {
	wallet := solana.NewWallet()

	ints := make([]int, len(wallet.PrivateKey))
	for i, b := range wallet.PrivateKey {
		ints[i] = int(b)
	}
	raw, err := json.Marshal(ints)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))

	key, err := LoadKeypair(path)
	require.NoError(t, err)
	assert.Equal(t, wallet.PublicKey(), key.PublicKey())

	_, err = LoadKeypair(filepath.Join(t.TempDir(), "none.json"))
	assert.Error(t, err)
}

func TestPrivateKeyFromBase58(t *testing.T) {
	wallet := solana.NewWallet()

	key, err := PrivateKeyFromBase58(" " + wallet.PrivateKey.String() + "\n")
	require.NoError(t, err)
	assert.Equal(t, wallet.PublicKey(), key.PublicKey())

	_, err = PrivateKeyFromBase58(strings.Repeat("z", 10))
	assert.Error(t, err)
}

func TestParsePublicKey(t *testing.T) {
	key, err := ParsePublicKey(types.DefaultProgramID.String())
	require.NoError(t, err)
	assert.Equal(t, types.DefaultProgramID, key)

	_, err = ParsePublicKey("")
	assert.Error(t, err)
}
