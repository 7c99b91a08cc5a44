package settlement

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// TokenAccountSize is the SPL token account length. Only mint, owner, amount
// and state are interpreted; the remaining bytes stay zero.
const TokenAccountSize = 165

const stateOffset = 108

// AccountState mirrors the SPL token account state byte.
type AccountState uint8

const (
	StateUninitialized AccountState = 0
	StateInitialized   AccountState = 1
	StateFrozen        AccountState = 2
)

var (
	ErrInvalidTokenAccount = errors.New("settlement: invalid token account")
	ErrInsufficientFunds   = errors.New("settlement: insufficient funds")
	ErrMintMismatch        = errors.New("settlement: account mint mismatch")
	ErrOwnerMismatch       = errors.New("settlement: owner does not match")
	ErrAccountFrozen       = errors.New("settlement: account is frozen")
	ErrOverflow            = errors.New("settlement: amount overflow")
)

// TokenAccount holds a balance of one mint for one owner.
type TokenAccount struct {
	Mint   solana.PublicKey `json:"mint"`
	Owner  solana.PublicKey `json:"owner"`
	Amount uint64           `json:"amount"`
	State  AccountState     `json:"state"`
}

// Marshal encodes the account into the full SPL-sized buffer.
func (a TokenAccount) Marshal() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBinEncoder(buf)
	if err := enc.WriteBytes(a.Mint[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.Owner[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint64(a.Amount, binary.LittleEndian); err != nil {
		return nil, err
	}

	out := make([]byte, TokenAccountSize)
	copy(out, buf.Bytes())
	out[stateOffset] = byte(a.State)
	return out, nil
}

// DecodeTokenAccount parses SPL token account data.
func DecodeTokenAccount(data []byte) (*TokenAccount, error) {
	if len(data) != TokenAccountSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidTokenAccount, len(data))
	}
	dec := bin.NewBinDecoder(data)

	mint, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, fmt.Errorf("%w: mint: %v", ErrInvalidTokenAccount, err)
	}
	owner, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %v", ErrInvalidTokenAccount, err)
	}
	amount, err := dec.ReadUint64(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %v", ErrInvalidTokenAccount, err)
	}

	acc := &TokenAccount{
		Mint:   solana.PublicKeyFromBytes(mint),
		Owner:  solana.PublicKeyFromBytes(owner),
		Amount: amount,
		State:  AccountState(data[stateOffset]),
	}
	if acc.State == StateUninitialized {
		return nil, fmt.Errorf("%w: uninitialized", ErrInvalidTokenAccount)
	}
	return acc, nil
}

// AssociatedAddress returns the canonical token account of wallet for mint.
func AssociatedAddress(wallet, mint solana.PublicKey) (solana.PublicKey, error) {
	addr, _, err := solana.FindAssociatedTokenAddress(wallet, mint)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("associated token address for %s: %w", wallet, err)
	}
	return addr, nil
}
