package clients

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/vitwit/x402-escrow/ledger"
	"github.com/vitwit/x402-escrow/types"
)

// SolanaClient submits program transactions to a cluster over JSON-RPC.
type SolanaClient struct {
	network      types.Network
	rpcURL       string
	client       *rpc.Client
	commitment   rpc.CommitmentType
	pollInterval time.Duration
	maxPolls     int
}

var _ Client = (*SolanaClient)(nil)

// NewSolanaClient creates a client for rpcURL. An empty rpcURL uses the
// public endpoint of network.
func NewSolanaClient(network types.Network, rpcURL string, commitment string) (*SolanaClient, error) {
	if rpcURL == "" {
		rpcURL = network.DefaultRPCUrl()
	}
	if rpcURL == "" {
		return nil, fmt.Errorf("no rpc endpoint for network %s", network)
	}

	c := rpc.CommitmentConfirmed
	switch commitment {
	case "", string(rpc.CommitmentConfirmed):
	case string(rpc.CommitmentProcessed):
		c = rpc.CommitmentProcessed
	case string(rpc.CommitmentFinalized):
		c = rpc.CommitmentFinalized
	default:
		return nil, fmt.Errorf("unsupported commitment %q", commitment)
	}

	return &SolanaClient{
		network:      network,
		rpcURL:       rpcURL,
		client:       rpc.New(rpcURL),
		commitment:   c,
		pollInterval: 2 * time.Second,
		maxPolls:     15,
	}, nil
}

func (c *SolanaClient) GetAccount(ctx context.Context, addr solana.PublicKey) (*ledger.Account, error) {
	out, err := c.client.GetAccountInfoWithOpts(ctx, addr, &rpc.GetAccountInfoOpts{
		Commitment: c.commitment,
		Encoding:   solana.EncodingBase64,
	})
	if errors.Is(err, rpc.ErrNotFound) {
		return nil, ledger.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get account %s: %w", addr, err)
	}
	if out == nil || out.Value == nil {
		return nil, ledger.ErrAccountNotFound
	}

	return &ledger.Account{
		Address:  addr,
		Lamports: out.Value.Lamports,
		Owner:    out.Value.Owner,
		Data:     out.Value.Data.GetBinary(),
	}, nil
}

// Send builds, signs and broadcasts a transaction, then polls until it reaches
// the configured commitment.
func (c *SolanaClient) Send(ctx context.Context, signers []solana.PrivateKey, instructions ...solana.Instruction) (*types.TxResult, error) {
	if len(signers) == 0 {
		return c.failed(ErrMissingSigner, "", ledger.ErrMissingSignature)
	}

	recent, err := c.client.GetLatestBlockhash(ctx, c.commitment)
	if err != nil {
		return c.failed(ErrBlockhashUnavailable, "", err)
	}

	tx, err := solana.NewTransaction(instructions, recent.Value.Blockhash, solana.TransactionPayer(signers[0].PublicKey()))
	if err != nil {
		return c.failed(ErrBuildTransaction, "", err)
	}

	_, err = tx.Sign(func(key solana.PublicKey) *solana.PrivateKey {
		for i := range signers {
			if signers[i].PublicKey().Equals(key) {
				return &signers[i]
			}
		}
		return nil
	})
	if err != nil {
		return c.failed(ErrMissingSigner, "", err)
	}

	sig, err := c.client.SendTransactionWithOpts(ctx, tx, rpc.TransactionOpts{
		PreflightCommitment: c.commitment,
	})
	if err != nil {
		return c.failed(ErrBroadcastFailed, "", ParseProgramError(err))
	}

	// Poll for confirmation
	for i := 0; i < c.maxPolls; i++ {
		select {
		case <-ctx.Done():
			return c.failed(ErrConfirmationTimedOut, sig.String(), ctx.Err())
		case <-time.After(c.pollInterval):
		}

		status, err := c.client.GetSignatureStatuses(ctx, false, sig)
		if err != nil || len(status.Value) == 0 || status.Value[0] == nil {
			continue
		}
		st := status.Value[0]
		if st.Err != nil {
			return c.failed(ErrTransactionFailed, sig.String(), statusError(st.Err))
		}
		if c.reached(st.ConfirmationStatus) {
			return &types.TxResult{
				Success:   true,
				Signature: sig.String(),
				Slot:      st.Slot,
				Network:   c.network,
			}, nil
		}
	}

	return c.failed(ErrConfirmationTimedOut, sig.String(), fmt.Errorf("transaction %s not confirmed after %d polls", sig, c.maxPolls))
}

func (c *SolanaClient) reached(status rpc.ConfirmationStatusType) bool {
	switch c.commitment {
	case rpc.CommitmentProcessed:
		return status != ""
	case rpc.CommitmentConfirmed:
		return status == rpc.ConfirmationStatusConfirmed || status == rpc.ConfirmationStatusFinalized
	default:
		return status == rpc.ConfirmationStatusFinalized
	}
}

func (c *SolanaClient) failed(reason, signature string, err error) (*types.TxResult, error) {
	return &types.TxResult{
		Success:   false,
		Signature: signature,
		Error:     fmt.Sprintf("%s: %v", reason, err),
		Network:   c.network,
	}, err
}

func (c *SolanaClient) GetNetwork() types.Network { return c.network }

func (c *SolanaClient) Close() {}
