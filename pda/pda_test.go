package pda

import (
	"strings"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402-escrow/types"
)

func TestConfigIsDeterministic(t *testing.T) {
	a, err := Config(types.DefaultProgramID)
	require.NoError(t, err)
	b, err := Config(types.DefaultProgramID)
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.False(t, a.Key.IsOnCurve())
}

func TestConfigDiffersFromLegacy(t *testing.T) {
	cur, err := Config(types.DefaultProgramID)
	require.NoError(t, err)
	legacy, err := LegacyConfig(types.DefaultProgramID)
	require.NoError(t, err)

	assert.NotEqual(t, cur.Key, legacy.Key)
}

func TestPaymentRequestDistinctIDs(t *testing.T) {
	seen := map[solana.PublicKey]string{}
	for _, id := range []string{"req-1", "req-2", "req-10", "a", "A", ""} {
		addr, err := PaymentRequest(types.DefaultProgramID, id)
		require.NoError(t, err)
		prev, dup := seen[addr.Key]
		require.Falsef(t, dup, "%q collides with %q", id, prev)
		seen[addr.Key] = id
	}
}

func TestPaymentRequestMatchesSolanaDerivation(t *testing.T) {
	addr, err := PaymentRequest(types.DefaultProgramID, "req-1")
	require.NoError(t, err)

	key, bump, err := solana.FindProgramAddress(
		[][]byte{[]byte("payment_request"), []byte("req-1")},
		types.DefaultProgramID,
	)
	require.NoError(t, err)
	assert.Equal(t, key, addr.Key)
	assert.Equal(t, bump, addr.Bump)
	assert.True(t, Matches(addr.Key, types.DefaultProgramID, types.PaymentRequestSeed, []byte("req-1")))
}

func TestPaymentRequestDependsOnProgram(t *testing.T) {
	other := solana.NewWallet().PublicKey()
	a, err := PaymentRequest(types.DefaultProgramID, "req-1")
	require.NoError(t, err)
	b, err := PaymentRequest(other, "req-1")
	require.NoError(t, err)
	assert.NotEqual(t, a.Key, b.Key)
}

func TestSeedTooLong(t *testing.T) {
	_, err := PaymentRequest(types.DefaultProgramID, strings.Repeat("x", MaxSeedLen+1))
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrConstraintSeeds)
}
