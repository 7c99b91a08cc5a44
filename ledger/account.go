package ledger

import (
	"bytes"
	"encoding/binary"
	"fmt"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
)

// Account is one unit of ledger state. An account with zero lamports and no
// data does not exist.
type Account struct {
	Address  solana.PublicKey
	Lamports uint64
	Owner    solana.PublicKey
	Data     []byte
}

func emptyAccount(addr solana.PublicKey) *Account {
	return &Account{Address: addr, Owner: solana.SystemProgramID}
}

func (a *Account) Exists() bool {
	return a.Lamports > 0 || len(a.Data) > 0
}

func (a *Account) Clone() *Account {
	cp := *a
	if a.Data != nil {
		cp.Data = append([]byte(nil), a.Data...)
	}
	return &cp
}

// MarshalBinary encodes the account for durable stores:
// lamports:u64, owner:32, data_len:u32, data.
func (a *Account) MarshalBinary() ([]byte, error) {
	buf := new(bytes.Buffer)
	enc := bin.NewBorshEncoder(buf)
	if err := enc.WriteUint64(a.Lamports, binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.Owner[:], false); err != nil {
		return nil, err
	}
	if err := enc.WriteUint32(uint32(len(a.Data)), binary.LittleEndian); err != nil {
		return nil, err
	}
	if err := enc.WriteBytes(a.Data, false); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func unmarshalAccount(addr solana.PublicKey, raw []byte) (*Account, error) {
	dec := bin.NewBorshDecoder(raw)
	acc := &Account{Address: addr}

	var err error
	if acc.Lamports, err = dec.ReadUint64(binary.LittleEndian); err != nil {
		return nil, fmt.Errorf("account %s lamports: %w", addr, err)
	}
	owner, err := dec.ReadNBytes(solana.PublicKeyLength)
	if err != nil {
		return nil, fmt.Errorf("account %s owner: %w", addr, err)
	}
	acc.Owner = solana.PublicKeyFromBytes(owner)

	n, err := dec.ReadUint32(binary.LittleEndian)
	if err != nil {
		return nil, fmt.Errorf("account %s data length: %w", addr, err)
	}
	if n > 0 {
		data, err := dec.ReadNBytes(int(n))
		if err != nil {
			return nil, fmt.Errorf("account %s data: %w", addr, err)
		}
		acc.Data = append([]byte(nil), data...)
	}
	return acc, nil
}

// Rent parameters of the host ledger.
const (
	AccountStorageOverhead  = 128
	LamportsPerByteYear     = 3480
	ExemptionThresholdYears = 2
)

// MinimumBalance is the deposit that keeps an account of the given size alive.
// It is refunded in full when the account is closed.
func MinimumBalance(space int) uint64 {
	return uint64(AccountStorageOverhead+space) * LamportsPerByteYear * ExemptionThresholdYears
}
