package clients

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402-escrow/ledger"
	"github.com/vitwit/x402-escrow/settlement"
	"github.com/vitwit/x402-escrow/types"
)

func TestParseProgramError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{
			name: "simulation failure",
			err:  errors.New("Transaction simulation failed: Error processing Instruction 0: custom program error: 0x1773"),
			want: types.ErrAlreadyPaid,
		},
		{
			name: "framework code",
			err:  errors.New("custom program error: 0xbbb"),
			want: types.ErrAccountDidNotDeserialize,
		},
		{
			name: "already typed",
			err:  fmt.Errorf("wrapped: %w", types.ErrUnauthorized),
			want: types.ErrUnauthorized,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseProgramError(tt.err)
			assert.ErrorIs(t, got, tt.want)
		})
	}

	plain := errors.New("connection refused")
	assert.Equal(t, plain, ParseProgramError(plain))
	assert.Nil(t, ParseProgramError(nil))

	unknown := ParseProgramError(errors.New("custom program error: 0x1"))
	_, ok := types.Code(unknown)
	assert.False(t, ok)
}

func TestStatusError(t *testing.T) {
	assert.NoError(t, statusError(nil))

	err := statusError(map[string]interface{}{
		"InstructionError": []interface{}{float64(0), map[string]interface{}{"Custom": float64(6005)}},
	})
	assert.ErrorIs(t, err, types.ErrInsufficientPayment)

	err = statusError("AccountInUse")
	require.Error(t, err)
	_, ok := types.Code(err)
	assert.False(t, ok)
}

func TestLocalClientSend(t *testing.T) {
	ctx := context.Background()
	l := ledger.New(ledger.NewMemoryStore())
	tokens := settlement.NewTokenProgram()
	l.Register(tokens)
	client := NewLocalClient(l)
	defer client.Close()

	owner := solana.NewWallet()
	funder := solana.NewWallet().PublicKey()
	mint := solana.NewWallet().PublicKey()
	require.NoError(t, l.Airdrop(ctx, funder, 1_000_000_000))

	var src, dst solana.PublicKey

	for _, o := range []solana.PublicKey{owner.PublicKey(), solana.NewWallet().PublicKey()} {
		ata, err := settlement.AssociatedAddress(o, mint)
		require.NoError(t, err)
		metas := []*solana.AccountMeta{solana.Meta(funder).WRITE().SIGNER(), solana.Meta(ata).WRITE()}
		_, err = l.Update(ctx, []solana.PublicKey{funder}, metas, func(tx *ledger.Tx) error {
			if err := tokens.CreateAccount(tx, funder, ata, mint, o); err != nil {
				return err
			}
			return tokens.MintTo(tx, ata, 50)
		})
		require.NoError(t, err)
		if src.IsZero() {
			src = ata
		} else {
			dst = ata
		}
	}

	res, err := client.Send(ctx, []solana.PrivateKey{owner.PrivateKey}, token.NewTransferInstruction(20, src, dst, owner.PublicKey(), nil).Build())
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, types.NetworkInProcess, res.Network)
	assert.NotEmpty(t, res.Signature)
	assert.Equal(t, l.Slot(), res.Slot)

	acc, err := client.GetAccount(ctx, dst)
	require.NoError(t, err)
	amount, err := settlement.Balance(acc)
	require.NoError(t, err)
	assert.Equal(t, uint64(70), amount)

	res, err = client.Send(ctx, []solana.PrivateKey{owner.PrivateKey}, token.NewTransferInstruction(500, src, dst, owner.PublicKey(), nil).Build())
	assert.ErrorIs(t, err, settlement.ErrInsufficientFunds)
	assert.False(t, res.Success)
	assert.Contains(t, res.Error, "insufficient funds")

	res, err = client.Send(ctx, nil, token.NewTransferInstruction(1, src, dst, owner.PublicKey(), nil).Build())
	assert.ErrorIs(t, err, ledger.ErrMissingSignature)
	assert.Equal(t, ErrMissingSigner, res.Error)

	_, err = client.GetAccount(ctx, solana.NewWallet().PublicKey())
	assert.ErrorIs(t, err, ledger.ErrAccountNotFound)
}

func TestNewSolanaClient(t *testing.T) {
	c, err := NewSolanaClient(types.NetworkDevnet, "", "")
	require.NoError(t, err)
	assert.Equal(t, types.NetworkDevnet, c.GetNetwork())
	assert.Equal(t, "https://api.devnet.solana.com", c.rpcURL)
	assert.True(t, c.reached("confirmed"))
	assert.False(t, c.reached("processed"))

	_, err = NewSolanaClient(types.NetworkInProcess, "", "")
	assert.Error(t, err)

	_, err = NewSolanaClient(types.NetworkLocalnet, "", "eventually")
	assert.Error(t, err)

	c, err = NewSolanaClient(types.NetworkLocalnet, "http://localhost:8899", "finalized")
	require.NoError(t, err)
	assert.False(t, c.reached("confirmed"))
	assert.True(t, c.reached("finalized"))
}
