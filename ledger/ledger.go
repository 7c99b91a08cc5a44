// Package ledger is an in-process host ledger: it resolves and locks the
// accounts a transaction declares, runs the target programs against private
// copies of those accounts, and commits every change or none.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/google/uuid"
	"github.com/vitwit/x402-escrow/logger"
	"github.com/vitwit/x402-escrow/metrics"
)

var (
	ErrAccountNotFound      = errors.New("ledger: account not found")
	ErrAccountNotDeclared   = errors.New("ledger: account not declared by transaction")
	ErrAccountNotWritable   = errors.New("ledger: account not writable")
	ErrMissingSignature     = errors.New("ledger: missing required signature")
	ErrAccountInUse         = errors.New("ledger: account already in use")
	ErrInsufficientLamports = errors.New("ledger: insufficient lamports")
	ErrIllegalOwner         = errors.New("ledger: program does not own account")
	ErrUnknownProgram       = errors.New("ledger: unknown program")
	ErrDataSizeMismatch     = errors.New("ledger: data size does not match allocation")
	ErrEmptyTransaction     = errors.New("ledger: transaction has no instructions")
)

// InstructionError reports which instruction aborted a transaction.
type InstructionError struct {
	Index int
	Err   error
}

func (e *InstructionError) Error() string {
	return fmt.Sprintf("instruction %d: %v", e.Index, e.Err)
}

func (e *InstructionError) Unwrap() error { return e.Err }

// Program is executed by the ledger for instructions addressed to its ID.
type Program interface {
	ProgramID() solana.PublicKey
	Process(tx *Tx, accounts []*solana.AccountMeta, data []byte) error
}

// Receipt describes a processed transaction. Logs are kept on failure too.
type Receipt struct {
	ID   uuid.UUID
	Slot uint64
	Logs []string
	Err  error
}

// Ledger executes transactions against a Store.
type Ledger struct {
	store    Store
	locks    *lockTable
	clock    Clock
	logger   logger.Logger
	metrics  metrics.Recorder
	slot     atomic.Uint64
	mu       sync.RWMutex
	programs map[solana.PublicKey]Program
}

type Option func(*Ledger)

func WithClock(c Clock) Option {
	return func(l *Ledger) { l.clock = c }
}

func WithLogger(lg logger.Logger) Option {
	return func(l *Ledger) { l.logger = lg }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(l *Ledger) { l.metrics = r }
}

// New creates a ledger over store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:    store,
		locks:    newLockTable(),
		clock:    SystemClock{},
		logger:   logger.NoopLogger{},
		metrics:  metrics.NoopRecorder{},
		programs: make(map[solana.PublicKey]Program),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Register makes a program executable.
func (l *Ledger) Register(p Program) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.programs[p.ProgramID()] = p
}

func (l *Ledger) program(id solana.PublicKey) (Program, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	p, ok := l.programs[id]
	return p, ok
}

// Slot returns the number of committed transactions.
func (l *Ledger) Slot() uint64 {
	return l.slot.Load()
}

// Now returns the ledger clock.
func (l *Ledger) Now() time.Time {
	return l.clock.Now()
}

// Account reads committed state. Absent accounts return ErrAccountNotFound.
func (l *Ledger) Account(ctx context.Context, addr solana.PublicKey) (*Account, error) {
	return l.store.Get(ctx, addr)
}

// Airdrop credits lamports to addr, creating a system account if needed.
func (l *Ledger) Airdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) error {
	metas := []*solana.AccountMeta{solana.Meta(addr).WRITE()}
	_, err := l.Update(ctx, nil, metas, func(tx *Tx) error {
		acc := tx.accounts[addr]
		if acc.Lamports+lamports < acc.Lamports {
			return fmt.Errorf("airdrop to %s overflows", addr)
		}
		acc.Lamports += lamports
		tx.dirty[addr] = true
		return nil
	})
	return err
}

// Submit executes instructions as one atomic transaction.
func (l *Ledger) Submit(ctx context.Context, signers []solana.PublicKey, instructions ...solana.Instruction) (*Receipt, error) {
	if len(instructions) == 0 {
		return nil, ErrEmptyTransaction
	}

	var metas []*solana.AccountMeta
	for _, ix := range instructions {
		metas = append(metas, ix.Accounts()...)
	}

	return l.execute(ctx, signers, metas, func(tx *Tx) error {
		for i, ix := range instructions {
			pid := ix.ProgramID()
			prog, ok := l.program(pid)
			if !ok {
				return &InstructionError{Index: i, Err: fmt.Errorf("%w: %s", ErrUnknownProgram, pid)}
			}
			data, err := ix.Data()
			if err != nil {
				return &InstructionError{Index: i, Err: err}
			}
			if err := prog.Process(tx.Invoke(pid), ix.Accounts(), data); err != nil {
				return &InstructionError{Index: i, Err: err}
			}
		}
		return nil
	})
}

// Update runs fn as an atomic transaction over the declared accounts with
// system privileges. It exists for funding and fixtures, not for programs.
func (l *Ledger) Update(ctx context.Context, signers []solana.PublicKey, metas []*solana.AccountMeta, fn func(tx *Tx) error) (*Receipt, error) {
	return l.execute(ctx, signers, metas, func(tx *Tx) error {
		return fn(tx.Invoke(solana.SystemProgramID))
	})
}

func (l *Ledger) execute(ctx context.Context, signers []solana.PublicKey, metas []*solana.AccountMeta, fn func(tx *Tx) error) (*Receipt, error) {
	start := time.Now()
	receipt := &Receipt{ID: uuid.New()}

	err := l.run(ctx, receipt, signers, metas, fn)
	receipt.Err = err

	l.metrics.IncCounter(metrics.EventTransaction, map[string]string{"outcome": metrics.Outcome(err)})
	l.metrics.ObserveLatency(metrics.EventTransaction, time.Since(start), nil)

	fields := map[string]any{
		"tx":       receipt.ID.String(),
		"accounts": len(metas),
		"logs":     len(receipt.Logs),
	}
	if err != nil {
		fields["error"] = err
		l.logger.Warn("transaction aborted", fields)
		return receipt, err
	}
	fields["slot"] = receipt.Slot
	l.logger.Debug("transaction committed", fields)
	return receipt, nil
}

func (l *Ledger) run(ctx context.Context, receipt *Receipt, signers []solana.PublicKey, metas []*solana.AccountMeta, fn func(tx *Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	signed := make(map[solana.PublicKey]bool, len(signers))
	for _, s := range signers {
		signed[s] = true
	}

	// Merge duplicate metas: writable or signer anywhere wins.
	declared := make(map[solana.PublicKey]*solana.AccountMeta, len(metas))
	writable := make(map[solana.PublicKey]bool, len(metas))
	for _, m := range metas {
		if m.IsSigner && !signed[m.PublicKey] {
			return fmt.Errorf("%w: %s", ErrMissingSignature, m.PublicKey)
		}
		prev, ok := declared[m.PublicKey]
		if !ok {
			cp := *m
			declared[m.PublicKey] = &cp
		} else {
			prev.IsWritable = prev.IsWritable || m.IsWritable
			prev.IsSigner = prev.IsSigner || m.IsSigner
		}
		writable[m.PublicKey] = writable[m.PublicKey] || m.IsWritable
	}

	release := l.locks.acquire(writable)
	defer release()

	accounts := make(map[solana.PublicKey]*Account, len(declared))
	for addr := range declared {
		acc, err := l.store.Get(ctx, addr)
		switch {
		case errors.Is(err, ErrAccountNotFound):
			acc = emptyAccount(addr)
		case err != nil:
			return fmt.Errorf("load %s: %w", addr, err)
		}
		accounts[addr] = acc
	}

	tx := &Tx{
		ctx:      ctx,
		now:      l.clock.Now(),
		signed:   signed,
		declared: declared,
		accounts: accounts,
		dirty:    make(map[solana.PublicKey]bool),
		logs:     &receipt.Logs,
	}

	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	changed := make([]*Account, 0, len(tx.dirty))
	for addr := range tx.dirty {
		changed = append(changed, accounts[addr])
	}
	if len(changed) > 0 {
		if err := l.store.Commit(ctx, changed); err != nil {
			return fmt.Errorf("commit: %w", err)
		}
	}

	receipt.Slot = l.slot.Add(1)
	return nil
}

// Close releases the underlying store.
func (l *Ledger) Close() error {
	return l.store.Close()
}
