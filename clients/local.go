package clients

import (
	"context"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/ledger"
	"github.com/vitwit/x402-escrow/types"
)

// LocalClient talks to an in-process ledger.
type LocalClient struct {
	ledger *ledger.Ledger
}

var _ Client = (*LocalClient)(nil)

func NewLocalClient(l *ledger.Ledger) *LocalClient {
	return &LocalClient{ledger: l}
}

// Ledger exposes the underlying ledger for funding and fixtures.
func (c *LocalClient) Ledger() *ledger.Ledger { return c.ledger }

func (c *LocalClient) GetAccount(ctx context.Context, addr solana.PublicKey) (*ledger.Account, error) {
	return c.ledger.Account(ctx, addr)
}

func (c *LocalClient) Send(ctx context.Context, signers []solana.PrivateKey, instructions ...solana.Instruction) (*types.TxResult, error) {
	if len(signers) == 0 {
		return &types.TxResult{Success: false, Error: ErrMissingSigner, Network: c.GetNetwork()}, ledger.ErrMissingSignature
	}

	receipt, err := c.ledger.Submit(ctx, publicKeys(signers), instructions...)
	result := &types.TxResult{Network: c.GetNetwork()}
	if receipt != nil {
		result.Signature = receipt.ID.String()
		result.Slot = receipt.Slot
		result.Logs = receipt.Logs
	}
	if err != nil {
		result.Error = err.Error()
		return result, err
	}

	result.Success = true
	return result, nil
}

func (c *LocalClient) GetNetwork() types.Network { return types.NetworkInProcess }

func (c *LocalClient) Close() {
	c.ledger.Close()
}
