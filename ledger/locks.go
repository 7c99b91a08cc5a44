package ledger

import (
	"bytes"
	"sort"
	"sync"

	"github.com/gagliardetto/solana-go"
)

// lockTable serializes transactions per address: writers exclusively, readers
// shared. Locks are always taken in address order so two transactions with
// overlapping account sets cannot deadlock.
type lockTable struct {
	mu    sync.Mutex
	locks map[solana.PublicKey]*sync.RWMutex
}

func newLockTable() *lockTable {
	return &lockTable{locks: make(map[solana.PublicKey]*sync.RWMutex)}
}

func (t *lockTable) get(addr solana.PublicKey) *sync.RWMutex {
	t.mu.Lock()
	defer t.mu.Unlock()

	l, ok := t.locks[addr]
	if !ok {
		l = new(sync.RWMutex)
		t.locks[addr] = l
	}
	return l
}

// acquire locks every address in set and returns the matching release func.
func (t *lockTable) acquire(set map[solana.PublicKey]bool) func() {
	keys := make([]solana.PublicKey, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		return bytes.Compare(keys[i][:], keys[j][:]) < 0
	})

	held := make([]func(), 0, len(keys))
	for _, k := range keys {
		l := t.get(k)
		if set[k] {
			l.Lock()
			held = append(held, l.Unlock)
		} else {
			l.RLock()
			held = append(held, l.RUnlock)
		}
	}

	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i]()
		}
	}
}
