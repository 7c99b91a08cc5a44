package settlement

import (
	"encoding/binary"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/ledger"
)

// Settler moves value between token accounts inside a ledger transaction.
// Any error aborts the enclosing transaction.
type Settler interface {
	Transfer(tx *ledger.Tx, source, destination, authority solana.PublicKey, amount uint64) error
}

// TokenProgram is a minimal token program: create, mint and transfer.
type TokenProgram struct {
	id solana.PublicKey
}

var (
	_ Settler        = (*TokenProgram)(nil)
	_ ledger.Program = (*TokenProgram)(nil)
)

// NewTokenProgram returns the token program at the canonical SPL address.
func NewTokenProgram() *TokenProgram {
	return &TokenProgram{id: solana.TokenProgramID}
}

func (p *TokenProgram) ProgramID() solana.PublicKey { return p.id }

// SPL instruction tags understood by Process.
const instructionTransfer = 3

// Process handles SPL Transfer instructions: [3][amount:u64] with accounts
// source, destination, owner.
func (p *TokenProgram) Process(tx *ledger.Tx, accounts []*solana.AccountMeta, data []byte) error {
	if len(data) == 0 {
		return fmt.Errorf("token: empty instruction data")
	}
	switch data[0] {
	case instructionTransfer:
		if len(data) != 9 {
			return fmt.Errorf("token: transfer data is %d bytes", len(data))
		}
		if len(accounts) < 3 {
			return fmt.Errorf("token: transfer needs 3 accounts, got %d", len(accounts))
		}
		amount := binary.LittleEndian.Uint64(data[1:])
		return p.Transfer(tx, accounts[0].PublicKey, accounts[1].PublicKey, accounts[2].PublicKey, amount)
	default:
		return fmt.Errorf("token: unsupported instruction %d", data[0])
	}
}

func (p *TokenProgram) load(tx *ledger.Tx, addr solana.PublicKey) (*TokenAccount, error) {
	acc, err := tx.Account(addr)
	if err != nil {
		return nil, err
	}
	if !acc.Owner.Equals(p.id) {
		return nil, fmt.Errorf("%w: %s not owned by token program", ErrInvalidTokenAccount, addr)
	}
	return DecodeTokenAccount(acc.Data)
}

func (p *TokenProgram) store(tx *ledger.Tx, addr solana.PublicKey, ta *TokenAccount) error {
	data, err := ta.Marshal()
	if err != nil {
		return err
	}
	return tx.Invoke(p.id).SetData(addr, data)
}

// CreateAccount allocates an initialized, empty token account at address.
func (p *TokenProgram) CreateAccount(tx *ledger.Tx, payer, address, mint, owner solana.PublicKey) error {
	as := tx.Invoke(p.id)
	if err := as.CreateAccount(payer, address, TokenAccountSize, p.id); err != nil {
		return err
	}
	return p.store(tx, address, &TokenAccount{Mint: mint, Owner: owner, State: StateInitialized})
}

// CreateAssociatedAccount creates the associated token account of owner for
// mint and returns its address.
func (p *TokenProgram) CreateAssociatedAccount(tx *ledger.Tx, payer, owner, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, err := AssociatedAddress(owner, mint)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return addr, p.CreateAccount(tx, payer, addr, mint, owner)
}

// MintTo credits amount to a token account. Mint authority is not modelled;
// callers run it from fixtures.
func (p *TokenProgram) MintTo(tx *ledger.Tx, account solana.PublicKey, amount uint64) error {
	ta, err := p.load(tx, account)
	if err != nil {
		return err
	}
	if ta.Amount+amount < ta.Amount {
		return ErrOverflow
	}
	ta.Amount += amount
	return p.store(tx, account, ta)
}

// Transfer moves amount from source to destination, signed by the source owner.
func (p *TokenProgram) Transfer(tx *ledger.Tx, source, destination, authority solana.PublicKey, amount uint64) error {
	src, err := p.load(tx, source)
	if err != nil {
		return fmt.Errorf("source: %w", err)
	}
	dst, err := p.load(tx, destination)
	if err != nil {
		return fmt.Errorf("destination: %w", err)
	}

	switch {
	case src.State == StateFrozen || dst.State == StateFrozen:
		return ErrAccountFrozen
	case !src.Mint.Equals(dst.Mint):
		return ErrMintMismatch
	case !src.Owner.Equals(authority):
		return fmt.Errorf("%w: source owned by %s, authority %s", ErrOwnerMismatch, src.Owner, authority)
	case !tx.IsSigner(authority):
		return fmt.Errorf("%w: %s", ledger.ErrMissingSignature, authority)
	case src.Amount < amount:
		return fmt.Errorf("%w: balance %d, transfer %d", ErrInsufficientFunds, src.Amount, amount)
	}

	if source.Equals(destination) {
		return nil
	}
	if dst.Amount+amount < dst.Amount {
		return ErrOverflow
	}

	src.Amount -= amount
	dst.Amount += amount
	if err := p.store(tx, source, src); err != nil {
		return err
	}
	return p.store(tx, destination, dst)
}

// Balance reads a committed token account.
func Balance(acc *ledger.Account) (uint64, error) {
	ta, err := DecodeTokenAccount(acc.Data)
	if err != nil {
		return 0, err
	}
	return ta.Amount, nil
}
