package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
)

// Tx is the view a program gets of one executing transaction. It only exposes
// the declared accounts, and its writes stay private until the ledger commits.
type Tx struct {
	ctx      context.Context
	now      time.Time
	program  solana.PublicKey
	signed   map[solana.PublicKey]bool
	declared map[solana.PublicKey]*solana.AccountMeta
	accounts map[solana.PublicKey]*Account
	dirty    map[solana.PublicKey]bool
	logs     *[]string
}

// Invoke returns a view of the same transaction executing as program id.
// Ownership checks use the invoking program.
func (tx *Tx) Invoke(id solana.PublicKey) *Tx {
	cp := *tx
	cp.program = id
	return &cp
}

func (tx *Tx) Context() context.Context { return tx.ctx }

// Program returns the executing program.
func (tx *Tx) Program() solana.PublicKey { return tx.program }

// Now returns the ledger time fixed at the start of the transaction.
func (tx *Tx) Now() time.Time { return tx.now }

// UnixTimestamp returns Now in seconds.
func (tx *Tx) UnixTimestamp() int64 { return tx.now.Unix() }

// Log appends a program log line to the receipt.
func (tx *Tx) Log(format string, args ...any) {
	*tx.logs = append(*tx.logs, fmt.Sprintf("Program log: "+format, args...))
}

// IsSigner reports whether addr was declared as a signer and signed.
func (tx *Tx) IsSigner(addr solana.PublicKey) bool {
	m, ok := tx.declared[addr]
	return ok && m.IsSigner && tx.signed[addr]
}

// IsWritable reports whether addr was declared writable.
func (tx *Tx) IsWritable(addr solana.PublicKey) bool {
	m, ok := tx.declared[addr]
	return ok && m.IsWritable
}

// Account returns a copy of the current state of a declared account. Absent
// accounts come back empty and owned by the system program.
func (tx *Tx) Account(addr solana.PublicKey) (*Account, error) {
	acc, ok := tx.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotDeclared, addr)
	}
	return acc.Clone(), nil
}

func (tx *Tx) writable(addr solana.PublicKey) (*Account, error) {
	acc, ok := tx.accounts[addr]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotDeclared, addr)
	}
	if !tx.IsWritable(addr) {
		return nil, fmt.Errorf("%w: %s", ErrAccountNotWritable, addr)
	}
	return acc, nil
}

func (tx *Tx) owned(addr solana.PublicKey) (*Account, error) {
	acc, err := tx.writable(addr)
	if err != nil {
		return nil, err
	}
	if !acc.Owner.Equals(tx.program) {
		return nil, fmt.Errorf("%w: %s is owned by %s", ErrIllegalOwner, addr, acc.Owner)
	}
	return acc, nil
}

// CreateAccount allocates space bytes at addr, assigns it to owner and funds
// the rent deposit from payer. Fails with ErrAccountInUse if addr already holds
// data or belongs to a program.
func (tx *Tx) CreateAccount(payer, addr solana.PublicKey, space int, owner solana.PublicKey) error {
	if !tx.IsSigner(payer) {
		return fmt.Errorf("%w: payer %s", ErrMissingSignature, payer)
	}
	from, err := tx.writable(payer)
	if err != nil {
		return err
	}
	to, err := tx.writable(addr)
	if err != nil {
		return err
	}
	if len(to.Data) > 0 || !to.Owner.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: %s", ErrAccountInUse, addr)
	}

	need := MinimumBalance(space)
	var topUp uint64
	if to.Lamports < need {
		topUp = need - to.Lamports
	}
	if from.Lamports < topUp {
		return fmt.Errorf("%w: %s has %d, needs %d", ErrInsufficientLamports, payer, from.Lamports, topUp)
	}

	from.Lamports -= topUp
	to.Lamports += topUp
	to.Data = make([]byte, space)
	to.Owner = owner
	tx.dirty[payer] = true
	tx.dirty[addr] = true
	return nil
}

// SetData overwrites the data of an account owned by the executing program.
// The length must match the allocation.
func (tx *Tx) SetData(addr solana.PublicKey, data []byte) error {
	acc, err := tx.owned(addr)
	if err != nil {
		return err
	}
	if len(data) != len(acc.Data) {
		return fmt.Errorf("%w: %s has %d bytes, got %d", ErrDataSizeMismatch, addr, len(acc.Data), len(data))
	}
	copy(acc.Data, data)
	tx.dirty[addr] = true
	return nil
}

// CloseAccount moves every lamport of addr to destination and frees its data.
func (tx *Tx) CloseAccount(addr, destination solana.PublicKey) error {
	if addr.Equals(destination) {
		return fmt.Errorf("close %s into itself", addr)
	}
	acc, err := tx.owned(addr)
	if err != nil {
		return err
	}
	dst, err := tx.writable(destination)
	if err != nil {
		return err
	}
	if dst.Lamports+acc.Lamports < dst.Lamports {
		return fmt.Errorf("close %s: destination balance overflows", addr)
	}

	dst.Lamports += acc.Lamports
	acc.Lamports = 0
	acc.Data = nil
	acc.Owner = solana.SystemProgramID
	tx.dirty[addr] = true
	tx.dirty[destination] = true
	return nil
}

// Put replaces a declared account wholesale. Only available to Update
// closures, which run as the system program.
func (tx *Tx) Put(acc *Account) error {
	if !tx.program.Equals(solana.SystemProgramID) {
		return fmt.Errorf("%w: only fixtures may replace accounts", ErrIllegalOwner)
	}
	if _, err := tx.writable(acc.Address); err != nil {
		return err
	}
	tx.accounts[acc.Address] = acc.Clone()
	tx.dirty[acc.Address] = true
	return nil
}
