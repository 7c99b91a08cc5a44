package settlement

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitwit/x402-escrow/ledger"
)

type wallets struct {
	ledger *ledger.Ledger
	tokens *TokenProgram
	mint   solana.PublicKey
	funder solana.PublicKey
}

func newWallets(t *testing.T) *wallets {
	t.Helper()
	l := ledger.New(ledger.NewMemoryStore())
	tokens := NewTokenProgram()
	l.Register(tokens)

	funder := solana.NewWallet().PublicKey()
	require.NoError(t, l.Airdrop(context.Background(), funder, 1_000_000_000))
	return &wallets{ledger: l, tokens: tokens, mint: solana.NewWallet().PublicKey(), funder: funder}
}

// open creates owner's associated account for mint and funds it.
func (w *wallets) open(t *testing.T, owner, mint solana.PublicKey, amount uint64) solana.PublicKey {
	t.Helper()
	ata, err := AssociatedAddress(owner, mint)
	require.NoError(t, err)

	metas := []*solana.AccountMeta{
		solana.Meta(w.funder).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
	}
	_, err = w.ledger.Update(context.Background(), []solana.PublicKey{w.funder}, metas, func(tx *ledger.Tx) error {
		addr, err := w.tokens.CreateAssociatedAccount(tx, w.funder, owner, mint)
		if err != nil {
			return err
		}
		return w.tokens.MintTo(tx, addr, amount)
	})
	require.NoError(t, err)
	return ata
}

func (w *wallets) balance(t *testing.T, addr solana.PublicKey) uint64 {
	t.Helper()
	acc, err := w.ledger.Account(context.Background(), addr)
	require.NoError(t, err)
	amount, err := Balance(acc)
	require.NoError(t, err)
	return amount
}

func TestTokenAccountLayout(t *testing.T) {
	ta := TokenAccount{
		Mint:   solana.NewWallet().PublicKey(),
		Owner:  solana.NewWallet().PublicKey(),
		Amount: 77,
		State:  StateInitialized,
	}
	data, err := ta.Marshal()
	require.NoError(t, err)
	require.Len(t, data, TokenAccountSize)
	assert.Equal(t, ta.Mint[:], data[0:32])
	assert.Equal(t, ta.Owner[:], data[32:64])
	assert.Equal(t, byte(77), data[64])
	assert.Equal(t, byte(1), data[108])

	got, err := DecodeTokenAccount(data)
	require.NoError(t, err)
	assert.Equal(t, ta, *got)

	_, err = DecodeTokenAccount(data[:100])
	assert.ErrorIs(t, err, ErrInvalidTokenAccount)

	_, err = DecodeTokenAccount(make([]byte, TokenAccountSize))
	assert.ErrorIs(t, err, ErrInvalidTokenAccount)
}

func TestTransferInstruction(t *testing.T) {
	w := newWallets(t)
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	src := w.open(t, alice, w.mint, 500)
	dst := w.open(t, bob, w.mint, 0)

	ix := token.NewTransferInstruction(200, src, dst, alice, nil).Build()
	_, err := w.ledger.Submit(context.Background(), []solana.PublicKey{alice}, ix)
	require.NoError(t, err)

	assert.Equal(t, uint64(300), w.balance(t, src))
	assert.Equal(t, uint64(200), w.balance(t, dst))
}

func TestTransferFailures(t *testing.T) {
	w := newWallets(t)
	alice := solana.NewWallet().PublicKey()
	bob := solana.NewWallet().PublicKey()
	src := w.open(t, alice, w.mint, 100)
	dst := w.open(t, bob, w.mint, 0)
	foreign := w.open(t, bob, solana.NewWallet().PublicKey(), 0)

	tests := []struct {
		name    string
		ix      solana.Instruction
		signers []solana.PublicKey
		want    error
	}{
		{
			name:    "insufficient funds",
			ix:      token.NewTransferInstruction(101, src, dst, alice, nil).Build(),
			signers: []solana.PublicKey{alice},
			want:    ErrInsufficientFunds,
		},
		{
			name:    "mint mismatch",
			ix:      token.NewTransferInstruction(1, src, foreign, alice, nil).Build(),
			signers: []solana.PublicKey{alice},
			want:    ErrMintMismatch,
		},
		{
			name:    "authority is not the owner",
			ix:      token.NewTransferInstruction(1, src, dst, bob, nil).Build(),
			signers: []solana.PublicKey{bob},
			want:    ErrOwnerMismatch,
		},
		{
			name: "owner did not sign",
			ix: solana.NewInstruction(solana.TokenProgramID, solana.AccountMetaSlice{
				solana.Meta(src).WRITE(),
				solana.Meta(dst).WRITE(),
				solana.Meta(alice),
			}, []byte{3, 1, 0, 0, 0, 0, 0, 0, 0}),
			want: ledger.ErrMissingSignature,
		},
		{
			name: "destination is not a token account",
			ix: solana.NewInstruction(solana.TokenProgramID, solana.AccountMetaSlice{
				solana.Meta(src).WRITE(),
				solana.Meta(bob).WRITE(),
				solana.Meta(alice).SIGNER(),
			}, []byte{3, 1, 0, 0, 0, 0, 0, 0, 0}),
			signers: []solana.PublicKey{alice},
			want:    ErrInvalidTokenAccount,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := w.ledger.Submit(context.Background(), tt.signers, tt.ix)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, uint64(100), w.balance(t, src))
			assert.Equal(t, uint64(0), w.balance(t, dst))
		})
	}
}

func TestCreateAccountTwiceFails(t *testing.T) {
	w := newWallets(t)
	owner := solana.NewWallet().PublicKey()
	ata := w.open(t, owner, w.mint, 1)

	metas := []*solana.AccountMeta{
		solana.Meta(w.funder).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
	}
	_, err := w.ledger.Update(context.Background(), []solana.PublicKey{w.funder}, metas, func(tx *ledger.Tx) error {
		return w.tokens.CreateAccount(tx, w.funder, ata, w.mint, owner)
	})
	assert.ErrorIs(t, err, ledger.ErrAccountInUse)
	assert.Equal(t, uint64(1), w.balance(t, ata))
}
