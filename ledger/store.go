package ledger

import (
	"context"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// Store persists committed accounts.
type Store interface {
	// Get returns ErrAccountNotFound when nothing is stored at addr.
	Get(ctx context.Context, addr solana.PublicKey) (*Account, error)
	// Commit writes all accounts or none. Accounts that no longer exist are
	// deleted.
	Commit(ctx context.Context, accounts []*Account) error
	Close() error
}

// MemoryStore keeps accounts in a map.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[solana.PublicKey]*Account
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[solana.PublicKey]*Account)}
}

func (s *MemoryStore) Get(_ context.Context, addr solana.PublicKey) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	acc, ok := s.accounts[addr]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return acc.Clone(), nil
}

func (s *MemoryStore) Commit(_ context.Context, accounts []*Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, acc := range accounts {
		if !acc.Exists() {
			delete(s.accounts, acc.Address)
			continue
		}
		s.accounts[acc.Address] = acc.Clone()
	}
	return nil
}

// Put overwrites an account outside of any transaction. Used to seed state,
// including deliberately corrupted records.
func (s *MemoryStore) Put(acc *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accounts[acc.Address] = acc.Clone()
}

func (s *MemoryStore) Close() error { return nil }
