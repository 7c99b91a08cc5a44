package ledger

import (
	"context"
	"time"

	bolt "github.com/boltdb/bolt"
	"github.com/gagliardetto/solana-go"
)

const accountsBucket = "accounts"

// BoltStore keeps accounts in a single-file BoltDB database, one bucket keyed
// by the 32-byte address.
type BoltStore struct {
	db *bolt.DB
}

var _ Store = (*BoltStore)(nil)

// NewBoltStore opens (or creates) the database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(accountsBucket))
		return err
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Get(_ context.Context, addr solana.PublicKey) (*Account, error) {
	var acc *Account
	err := s.db.View(func(tx *bolt.Tx) error {
		raw := tx.Bucket([]byte(accountsBucket)).Get(addr[:])
		if raw == nil {
			return ErrAccountNotFound
		}
		// raw is only valid inside the transaction; unmarshalAccount copies.
		var err error
		acc, err = unmarshalAccount(addr, raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return acc, nil
}

// Commit applies every write inside one bolt transaction.
func (s *BoltStore) Commit(_ context.Context, accounts []*Account) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(accountsBucket))
		for _, acc := range accounts {
			key := acc.Address[:]
			if !acc.Exists() {
				if err := b.Delete(key); err != nil {
					return err
				}
				continue
			}
			raw, err := acc.MarshalBinary()
			if err != nil {
				return err
			}
			if err := b.Put(key, raw); err != nil {
				return err
			}
		}
		return nil
	})
}

// Put overwrites an account outside of any ledger transaction.
func (s *BoltStore) Put(acc *Account) error {
	return s.Commit(context.Background(), []*Account{acc})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
