// Package escrow provides a client for the x402 payment request program: a
// requester opens a payment request, a payer settles it exactly once into the
// configured treasury, and every step is validated by the program itself.
// The program runs either against a Solana cluster or on an embedded ledger.
package escrow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/clients"
	"github.com/vitwit/x402-escrow/ledger"
	"github.com/vitwit/x402-escrow/logger"
	"github.com/vitwit/x402-escrow/metrics"
	"github.com/vitwit/x402-escrow/program"
	"github.com/vitwit/x402-escrow/settlement"
	"github.com/vitwit/x402-escrow/state"
	"github.com/vitwit/x402-escrow/types"
	"github.com/vitwit/x402-escrow/utils"
	"github.com/vitwit/x402-escrow/verification"
)

// ErrNotInProcess is returned by funding helpers on a remote network.
var ErrNotInProcess = errors.New("escrow: operation requires the in-process ledger")

// Escrow is the main struct that provides all escrow functionality
type Escrow struct {
	config       *types.EscrowConfig
	programID    solana.PublicKey
	mint         solana.PublicKey
	client       clients.Client
	tokens       *settlement.TokenProgram
	verification *verification.VerificationService

	logger  logger.Logger
	metrics metrics.Recorder
	timeout time.Duration
	clock   ledger.Clock
	store   ledger.Store

	upgradeAuthority solana.PublicKey
	deployer         solana.PrivateKey
}

// New creates a new Escrow instance with the given configuration. A nil
// config runs against a fresh in-process ledger.
func New(config *types.EscrowConfig, opts ...Option) (*Escrow, error) {
	if config == nil {
		config = types.DefaultConfig()
	}
	if err := utils.ValidateEscrowConfig(config); err != nil {
		return nil, err
	}

	e := &Escrow{config: config}
	for _, opt := range opts {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logger.NewZapLogger(config.LogLevel)
	}
	if e.metrics == nil {
		if config.EnableMetrics {
			e.metrics = metrics.NewPrometheusRecorder(nil)
		} else {
			e.metrics = metrics.NoopRecorder{}
		}
	}
	if e.timeout <= 0 {
		e.timeout = config.DefaultTimeout
	}
	if e.timeout <= 0 {
		e.timeout = 30 * time.Second
	}

	// Keys were checked by ValidateEscrowConfig.
	e.programID, _ = config.ProgramKey()
	e.mint, _ = config.MintKey()
	e.logger = e.logger.With(map[string]any{"network": config.Network.String()})

	var err error
	if config.Network.IsRemote() {
		e.client, err = clients.NewSolanaClient(config.Network, config.RPCUrl, config.Commitment)
	} else {
		e.client, err = e.newLocalClient()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create client for %s: %w", config.Network, err)
	}

	e.verification = verification.NewVerificationService(e.client, e.programID, e.timeout)
	return e, nil
}

// NewLocal creates an instance backed by a fresh in-memory ledger.
func NewLocal(opts ...Option) (*Escrow, error) {
	return New(types.DefaultConfig(), opts...)
}

func (e *Escrow) newLocalClient() (*clients.LocalClient, error) {
	if e.store == nil {
		if e.config.StorePath != "" {
			bolt, err := ledger.NewBoltStore(e.config.StorePath)
			if err != nil {
				return nil, err
			}
			e.store = bolt
		} else {
			e.store = ledger.NewMemoryStore()
		}
	}
	if e.clock == nil {
		e.clock = ledger.SystemClock{}
	}

	if e.upgradeAuthority.IsZero() {
		e.upgradeAuthority, _ = e.config.UpgradeAuthorityKey()
	}
	if e.upgradeAuthority.IsZero() {
		// Only the upgrade authority can close a config that no longer decodes.
		e.deployer = solana.NewWallet().PrivateKey
		e.upgradeAuthority = e.deployer.PublicKey()
		e.logger.Info("generated deployer key", map[string]any{"upgrade_authority": e.upgradeAuthority.String()})
	}
	e.tokens = settlement.NewTokenProgram()

	p, err := program.New(e.programID,
		program.WithUpgradeAuthority(e.upgradeAuthority),
		program.WithMint(e.mint),
		program.WithSettler(e.tokens),
		program.WithLogger(e.logger),
		program.WithMetrics(e.metrics),
	)
	if err != nil {
		return nil, err
	}

	l := ledger.New(e.store,
		ledger.WithClock(e.clock),
		ledger.WithLogger(e.logger),
		ledger.WithMetrics(e.metrics),
	)
	l.Register(p)
	l.Register(e.tokens)
	return clients.NewLocalClient(l), nil
}

// submit builds one instruction and sends it signed by signer, retrying
// only when nothing was broadcast.
func (e *Escrow) submit(ctx context.Context, name string, signer solana.PrivateKey, ix *solana.GenericInstruction, buildErr error) (*types.TxResult, error) {
	fields := map[string]any{"instruction": name, "signer": signer.PublicKey().String()}
	if buildErr != nil {
		e.logger.Warn("failed to build instruction", withError(fields, buildErr))
		return nil, buildErr
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	var (
		res *types.TxResult
		err error
	)
	for attempt := 0; attempt <= e.config.RetryCount; attempt++ {
		res, err = e.client.Send(ctx, []solana.PrivateKey{signer}, ix)
		if err == nil || !retryable(res) || ctx.Err() != nil {
			break
		}
		e.logger.Debug("retrying transaction", map[string]any{"instruction": name, "attempt": attempt + 1})
	}

	labels := map[string]string{"instruction": name, "outcome": metrics.Outcome(err)}
	e.metrics.IncCounter(metrics.EventOperation, labels)
	e.metrics.ObserveLatency(metrics.EventOperation, time.Since(start), labels)

	if err != nil {
		if code, ok := types.Code(err); ok {
			fields["code"] = uint32(code)
			fields["class"] = string(types.ClassOf(err))
		}
		e.logger.Warn("transaction failed", withError(fields, err))
		return res, err
	}

	fields["signature"] = res.Signature
	fields["slot"] = res.Slot
	e.logger.Info("transaction confirmed", fields)
	return res, nil
}

func retryable(res *types.TxResult) bool {
	return res != nil && strings.HasPrefix(res.Error, clients.ErrBlockhashUnavailable)
}

func withError(fields map[string]any, err error) map[string]any {
	fields["error"] = err.Error()
	return fields
}

// InitializeConfig creates the singleton config with authority as its owner.
func (e *Escrow) InitializeConfig(ctx context.Context, authority solana.PrivateKey, treasury solana.PublicKey, minPayment uint64) (*types.TxResult, error) {
	ix, err := program.NewInitializeConfigInstruction(e.programID, authority.PublicKey(), treasury, minPayment)
	return e.submit(ctx, program.InstructionInitializeConfig, authority, ix, err)
}

// CreatePaymentRequest opens an unpaid request. The requester pays the
// storage deposit and gets it back on cancellation.
//
// requestID is limited to 64 bytes, but it is also the derivation seed of the
// request address, which holds at most 32 bytes. Identifiers of 33 to 64 bytes
// therefore fail with ConstraintSeeds rather than RequestIdTooLong.
func (e *Escrow) CreatePaymentRequest(ctx context.Context, requester solana.PrivateKey, requestID string, amount uint64, resourceTag string) (*types.TxResult, error) {
	ix, err := program.NewCreatePaymentRequestInstruction(e.programID, requester.PublicKey(), requestID, amount, resourceTag)
	return e.submit(ctx, program.InstructionCreatePaymentRequest, requester, ix, err)
}

// VerifyPayment settles requestID from the payer's associated token account
// into the treasury's.
func (e *Escrow) VerifyPayment(ctx context.Context, payer solana.PrivateKey, requestID string) (*types.TxResult, error) {
	cfg, err := e.verification.Config(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	payerToken, err := settlement.AssociatedAddress(payer.PublicKey(), e.mint)
	if err != nil {
		return nil, err
	}
	treasuryToken, err := settlement.AssociatedAddress(cfg.Treasury, e.mint)
	if err != nil {
		return nil, err
	}

	ix, err := program.NewVerifyPaymentInstruction(e.programID, payer.PublicKey(), payerToken, treasuryToken, requestID)
	res, err := e.submit(ctx, program.InstructionVerifyPayment, payer, ix, err)
	if err != nil {
		return res, err
	}

	if cfg, err := e.verification.Config(ctx); err == nil {
		e.metrics.SetGauge(metrics.GaugeTotalProcessed, float64(cfg.TotalProcessed), nil)
	}
	return res, nil
}

// CancelPaymentRequest closes an unpaid request and refunds its deposit.
func (e *Escrow) CancelPaymentRequest(ctx context.Context, requester solana.PrivateKey, requestID string) (*types.TxResult, error) {
	ix, err := program.NewCancelPaymentRequestInstruction(e.programID, requester.PublicKey(), requestID)
	return e.submit(ctx, program.InstructionCancelPaymentRequest, requester, ix, err)
}

// CloseConfig closes the current config singleton.
func (e *Escrow) CloseConfig(ctx context.Context, authority solana.PrivateKey) (*types.TxResult, error) {
	ix, err := program.NewCloseConfigInstruction(e.programID, authority.PublicKey())
	return e.submit(ctx, program.InstructionCloseConfig, authority, ix, err)
}

// CloseLegacyConfig closes the singleton left at the first deployment's
// address.
func (e *Escrow) CloseLegacyConfig(ctx context.Context, authority solana.PrivateKey) (*types.TxResult, error) {
	ix, err := program.NewCloseLegacyConfigInstruction(e.programID, authority.PublicKey())
	return e.submit(ctx, program.InstructionCloseConfig, authority, ix, err)
}

// CheckPaymentStatus runs the on-ledger status check. The result logs carry
// the reported state; feePayer only signs.
func (e *Escrow) CheckPaymentStatus(ctx context.Context, feePayer solana.PrivateKey, requestID string) (*types.TxResult, error) {
	ix, err := program.NewCheckPaymentStatusInstruction(e.programID, requestID)
	return e.submit(ctx, program.InstructionCheckPaymentStatus, feePayer, ix, err)
}

// GetConfig returns the decoded config singleton.
func (e *Escrow) GetConfig(ctx context.Context) (*state.Config, error) {
	return e.verification.Config(ctx)
}

// GetPaymentRequest returns the decoded request record.
func (e *Escrow) GetPaymentRequest(ctx context.Context, requestID string) (*state.PaymentRequest, error) {
	return e.verification.PaymentRequest(ctx, requestID)
}

// Status classifies a request as absent, corrupted, unpaid or paid.
func (e *Escrow) Status(ctx context.Context, requestID string) (*verification.PaymentStatus, error) {
	return e.verification.Status(ctx, requestID)
}

// AwaitPaid blocks until requestID is paid or ctx ends.
func (e *Escrow) AwaitPaid(ctx context.Context, requestID string, interval time.Duration) (*state.PaymentRequest, error) {
	return e.verification.AwaitPaid(ctx, requestID, interval)
}

// InspectConfig reports both singleton addresses, for recovery.
func (e *Escrow) InspectConfig(ctx context.Context) (*verification.ConfigReport, error) {
	return e.verification.InspectConfig(ctx)
}

// QuickVerify performs basic validation of create-payment-request arguments
// before anything is signed.
func (e *Escrow) QuickVerify(ctx context.Context, input *verification.PaymentRequestInput) (*types.VerificationResult, error) {
	return e.verification.QuickVerify(ctx, input)
}

// ParseAmount converts a human amount to base units of the configured mint.
func (e *Escrow) ParseAmount(amount string) (uint64, error) {
	return utils.ParseAmount(amount, e.config.TokenDecimals)
}

// FormatAmount renders base units of the configured mint.
func (e *Escrow) FormatAmount(base uint64) string {
	return utils.FormatAmount(base, e.config.TokenDecimals)
}

// TokenAccount returns owner's associated token account for the configured
// mint.
func (e *Escrow) TokenAccount(owner solana.PublicKey) (solana.PublicKey, error) {
	return settlement.AssociatedAddress(owner, e.mint)
}

// TokenBalance reads the balance of owner's associated token account.
func (e *Escrow) TokenBalance(ctx context.Context, owner solana.PublicKey) (uint64, error) {
	ata, err := e.TokenAccount(owner)
	if err != nil {
		return 0, err
	}
	acc, err := e.client.GetAccount(ctx, ata)
	if err != nil {
		return 0, err
	}
	return settlement.Balance(acc)
}

func (e *Escrow) localLedger() (*ledger.Ledger, error) {
	local, ok := e.client.(*clients.LocalClient)
	if !ok {
		return nil, ErrNotInProcess
	}
	return local.Ledger(), nil
}

// Airdrop credits lamports on the in-process ledger.
func (e *Escrow) Airdrop(ctx context.Context, addr solana.PublicKey, lamports uint64) error {
	l, err := e.localLedger()
	if err != nil {
		return err
	}
	return l.Airdrop(ctx, addr, lamports)
}

// FundTokenAccount opens owner's associated token account if needed and mints
// amount into it on the in-process ledger. funder pays the deposit.
func (e *Escrow) FundTokenAccount(ctx context.Context, funder solana.PrivateKey, owner solana.PublicKey, amount uint64) (solana.PublicKey, error) {
	l, err := e.localLedger()
	if err != nil {
		return solana.PublicKey{}, err
	}
	ata, err := e.TokenAccount(owner)
	if err != nil {
		return solana.PublicKey{}, err
	}

	metas := []*solana.AccountMeta{
		solana.Meta(funder.PublicKey()).WRITE().SIGNER(),
		solana.Meta(ata).WRITE(),
	}
	_, err = l.Update(ctx, []solana.PublicKey{funder.PublicKey()}, metas, func(tx *ledger.Tx) error {
		acc, err := tx.Account(ata)
		if err != nil {
			return err
		}
		if len(acc.Data) == 0 {
			if err := e.tokens.CreateAccount(tx, funder.PublicKey(), ata, e.mint, owner); err != nil {
				return err
			}
		}
		return e.tokens.MintTo(tx, ata, amount)
	})
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("fund %s: %w", ata, err)
	}
	return ata, nil
}

// Network returns the network the client is connected to.
func (e *Escrow) Network() types.Network {
	return e.client.GetNetwork()
}

// UpgradeAuthority returns the key allowed to close a config that no longer
// decodes. On the in-process ledger this is the generated deployer key unless
// one was configured.
func (e *Escrow) UpgradeAuthority() solana.PublicKey {
	return e.upgradeAuthority
}

// DeployerKey returns the signing key generated for an in-process deployment
// without a configured upgrade authority, or nil.
func (e *Escrow) DeployerKey() solana.PrivateKey {
	return e.deployer
}

// ProgramID returns the program address in use.
func (e *Escrow) ProgramID() solana.PublicKey {
	return e.programID
}

// Close closes all client connections
func (e *Escrow) Close() {
	e.verification.Close()
}

// Version information
const (
	Version = "1.0.0"
	// LayoutVersion is the config seed the program writes to.
	LayoutVersion = types.ConfigSeed
)

// GetVersion returns version information
func GetVersion() map[string]interface{} {
	return map[string]interface{}{
		"library_version": Version,
		"layout_version":  LayoutVersion,
		"supported_networks": []string{
			string(types.NetworkMainnet), string(types.NetworkDevnet),
			string(types.NetworkTestnet), string(types.NetworkLocalnet),
			string(types.NetworkInProcess),
		},
		"instructions": []string{
			program.InstructionInitializeConfig,
			program.InstructionCreatePaymentRequest,
			program.InstructionVerifyPayment,
			program.InstructionCancelPaymentRequest,
			program.InstructionCloseConfig,
			program.InstructionCheckPaymentStatus,
		},
	}
}
