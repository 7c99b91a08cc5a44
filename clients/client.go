package clients

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/ledger"
	"github.com/vitwit/x402-escrow/types"
)

// Client reads accounts from and submits transactions to a ledger, either the
// embedded one or a remote cluster.
type Client interface {
	// GetAccount returns ledger.ErrAccountNotFound when nothing lives at addr.
	GetAccount(ctx context.Context, addr solana.PublicKey) (*ledger.Account, error)
	// Send signs and submits instructions as one transaction. The first signer
	// pays fees. A non-nil error comes with a result describing the failure.
	Send(ctx context.Context, signers []solana.PrivateKey, instructions ...solana.Instruction) (*types.TxResult, error)
	GetNetwork() types.Network
	Close()
}

func publicKeys(signers []solana.PrivateKey) []solana.PublicKey {
	keys := make([]solana.PublicKey, len(signers))
	for i, s := range signers {
		keys[i] = s.PublicKey()
	}
	return keys
}
