// Package program is the payment-request ledger program. Every entry point
// re-validates the accounts it is handed (addresses, owners, signers and
// record layouts) and either completes all of its writes or returns an error,
// in which case the ledger discards the whole transaction.
package program

import (
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/ledger"
	"github.com/vitwit/x402-escrow/logger"
	"github.com/vitwit/x402-escrow/metrics"
	"github.com/vitwit/x402-escrow/pda"
	"github.com/vitwit/x402-escrow/settlement"
	"github.com/vitwit/x402-escrow/types"
)

// Program implements ledger.Program.
type Program struct {
	id               solana.PublicKey
	config           pda.Address
	legacyConfig     pda.Address
	upgradeAuthority solana.PublicKey
	mint             solana.PublicKey
	settler          settlement.Settler
	logger           logger.Logger
	metrics          metrics.Recorder
}

var _ ledger.Program = (*Program)(nil)

type Option func(*Program)

// WithUpgradeAuthority sets the key that controls the program deployment. It
// is the only key that may close a config record which no longer decodes.
func WithUpgradeAuthority(key solana.PublicKey) Option {
	return func(p *Program) { p.upgradeAuthority = key }
}

// WithMint pins the token every payment settles in. Defaults to wrapped SOL.
func WithMint(mint solana.PublicKey) Option {
	return func(p *Program) { p.mint = mint }
}

func WithSettler(s settlement.Settler) Option {
	return func(p *Program) { p.settler = s }
}

func WithLogger(l logger.Logger) Option {
	return func(p *Program) { p.logger = l }
}

func WithMetrics(r metrics.Recorder) Option {
	return func(p *Program) { p.metrics = r }
}

// New returns the program deployed at id.
func New(id solana.PublicKey, opts ...Option) (*Program, error) {
	cfg, err := pda.Config(id)
	if err != nil {
		return nil, err
	}
	legacy, err := pda.LegacyConfig(id)
	if err != nil {
		return nil, err
	}

	p := &Program{
		id:           id,
		config:       cfg,
		legacyConfig: legacy,
		mint:         types.WrappedSOLMint,
		settler:      settlement.NewTokenProgram(),
		logger:       logger.NoopLogger{},
		metrics:      metrics.NoopRecorder{},
	}
	for _, opt := range opts {
		opt(p)
	}
	p.logger = p.logger.With(map[string]any{"program": id.String()})
	return p, nil
}

func (p *Program) ProgramID() solana.PublicKey { return p.id }

// ConfigAddress returns the current singleton address.
func (p *Program) ConfigAddress() solana.PublicKey { return p.config.Key }

type handler struct {
	name string
	fn   func(p *Program, tx *ledger.Tx, accounts []*solana.AccountMeta, args []byte) error
}

var handlers = map[Discriminator]handler{
	InitializeConfigDiscriminator:     {InstructionInitializeConfig, (*Program).initializeConfig},
	CreatePaymentRequestDiscriminator: {InstructionCreatePaymentRequest, (*Program).createPaymentRequest},
	VerifyPaymentDiscriminator:        {InstructionVerifyPayment, (*Program).verifyPayment},
	CancelPaymentRequestDiscriminator: {InstructionCancelPaymentRequest, (*Program).cancelPaymentRequest},
	CloseConfigDiscriminator:          {InstructionCloseConfig, (*Program).closeConfig},
	CheckPaymentStatusDiscriminator:   {InstructionCheckPaymentStatus, (*Program).checkPaymentStatus},
}

// Process dispatches on the 8-byte instruction discriminator.
func (p *Program) Process(tx *ledger.Tx, accounts []*solana.AccountMeta, data []byte) error {
	if len(data) < len(Discriminator{}) {
		return types.ErrInstructionFallbackNotFound
	}
	var d Discriminator
	copy(d[:], data)

	h, ok := handlers[d]
	if !ok {
		return types.ErrInstructionFallbackNotFound
	}

	start := time.Now()
	tx.Log("Instruction: %s", h.name)
	err := h.fn(p, tx, accounts, data[len(d):])

	labels := map[string]string{"instruction": h.name, "outcome": metrics.Outcome(err)}
	p.metrics.IncCounter(metrics.EventInstruction, labels)
	p.metrics.ObserveLatency(metrics.EventInstruction, time.Since(start), labels)

	if err != nil {
		var pe *types.ProgramError
		if errors.As(err, &pe) {
			tx.Log("Error Code: %s. Error Number: %d. Error Message: %s.", pe.Name, pe.Code, pe.Message)
		}
		p.logger.Debug("instruction failed", map[string]any{"instruction": h.name, "error": err})
		return err
	}
	return nil
}

// account returns accounts[i] or AccountNotEnoughKeys.
func account(accounts []*solana.AccountMeta, i int) (*solana.AccountMeta, error) {
	if i >= len(accounts) {
		return nil, types.ErrAccountNotEnoughKeys.WithData(fmt.Sprintf("want at least %d accounts, got %d", i+1, len(accounts)))
	}
	return accounts[i], nil
}

func expectAccounts(accounts []*solana.AccountMeta, n int) error {
	_, err := account(accounts, n-1)
	return err
}

func requireSigner(tx *ledger.Tx, key solana.PublicKey) error {
	if !tx.IsSigner(key) {
		return types.ErrAccountNotSigner.WithData(key.String())
	}
	return nil
}

func requireProgram(key, want solana.PublicKey) error {
	if !key.Equals(want) {
		return types.ErrInvalidProgramID.WithData(fmt.Sprintf("expected %s, got %s", want, key))
	}
	return nil
}

func requireAddress(key, want solana.PublicKey) error {
	if !key.Equals(want) {
		return types.ErrConstraintSeeds.WithData(fmt.Sprintf("expected %s, got %s", want, key))
	}
	return nil
}

// requestAddress derives the address for requestID and checks that key is it.
func (p *Program) requestAddress(key solana.PublicKey, requestID string) (pda.Address, error) {
	addr, err := pda.PaymentRequest(p.id, requestID)
	if err != nil {
		return pda.Address{}, err
	}
	return addr, requireAddress(key, addr.Key)
}

func (p *Program) configAccount(tx *ledger.Tx, key solana.PublicKey) (*ledger.Account, error) {
	if err := requireAddress(key, p.config.Key); err != nil {
		return nil, err
	}
	return tx.Account(key)
}

func (p *Program) writeRecord(tx *ledger.Tx, key solana.PublicKey, marshal func() ([]byte, error)) error {
	data, err := marshal()
	if err != nil {
		return err
	}
	return tx.SetData(key, data)
}
