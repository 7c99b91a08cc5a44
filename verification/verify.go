// Package verification is the read side of the payment program: decoded
// record lookups, payment status and advisory pre-checks run before a
// transaction is submitted.
package verification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/go-playground/validator/v10"
	"github.com/vitwit/x402-escrow/clients"
	"github.com/vitwit/x402-escrow/ledger"
	"github.com/vitwit/x402-escrow/pda"
	"github.com/vitwit/x402-escrow/state"
	"github.com/vitwit/x402-escrow/types"
	"github.com/vitwit/x402-escrow/utils"
)

// VerificationService reads program records through a client.
type VerificationService struct {
	client    clients.Client
	programID solana.PublicKey
	timeout   time.Duration
}

// NewVerificationService creates a new verification service
func NewVerificationService(client clients.Client, programID solana.PublicKey, timeout time.Duration) *VerificationService {
	return &VerificationService{
		client:    client,
		programID: programID,
		timeout:   timeout,
	}
}

// PaymentStatus describes what occupies a payment request address.
type PaymentStatus struct {
	RequestID string                `json:"requestId"`
	Address   solana.PublicKey      `json:"address"`
	Status    types.RequestStatus   `json:"status"`
	Request   *state.PaymentRequest `json:"request,omitempty"`
	Error     string                `json:"error,omitempty"`
}

// ConfigSlot describes one of the config singleton addresses.
type ConfigSlot struct {
	Address  solana.PublicKey `json:"address"`
	Status   ConfigStatus     `json:"status"`
	Lamports uint64           `json:"lamports,omitempty"`
	Config   *state.Config    `json:"config,omitempty"`
	Error    string           `json:"error,omitempty"`
}

type ConfigStatus string

const (
	ConfigAbsent    ConfigStatus = "absent"
	ConfigCorrupted ConfigStatus = "corrupted"
	ConfigActive    ConfigStatus = "active"
)

// ConfigReport covers both the current and the legacy singleton.
type ConfigReport struct {
	Current ConfigSlot `json:"current"`
	Legacy  ConfigSlot `json:"legacy"`
}

// NeedsRecovery reports whether a close-config is required before the
// program is usable: the current singleton does not decode, or the legacy
// one still holds a deposit.
func (r *ConfigReport) NeedsRecovery() bool {
	return r.Current.Status == ConfigCorrupted || r.Legacy.Status != ConfigAbsent
}

// fetch returns nil for an absent account.
func (s *VerificationService) fetch(ctx context.Context, addr solana.PublicKey) (*ledger.Account, error) {
	acc, err := s.client.GetAccount(ctx, addr)
	if errors.Is(err, ledger.ErrAccountNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !acc.Exists() {
		return nil, nil
	}
	return acc, nil
}

// Config returns the decoded config, types.ErrAccountNotInitialized when the
// singleton is absent, or a decode error when it holds an older layout.
func (s *VerificationService) Config(ctx context.Context) (*state.Config, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	addr, err := pda.Config(s.programID)
	if err != nil {
		return nil, err
	}
	acc, err := s.fetch(ctx, addr.Key)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, types.ErrAccountNotInitialized.WithData(addr.Key.String())
	}
	return state.LoadConfig(acc.Owner, s.programID, acc.Data)
}

// PaymentRequest returns the decoded record for requestID.
func (s *VerificationService) PaymentRequest(ctx context.Context, requestID string) (*state.PaymentRequest, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	addr, err := s.requestAddress(requestID)
	if err != nil {
		return nil, err
	}
	acc, err := s.fetch(ctx, addr)
	if err != nil {
		return nil, err
	}
	if acc == nil {
		return nil, types.ErrAccountNotInitialized.WithData(addr.String())
	}
	return state.LoadPaymentRequest(acc.Owner, s.programID, acc.Data)
}

// Status classifies the request address. Only transport failures and invalid
// identifiers are returned as errors.
func (s *VerificationService) Status(ctx context.Context, requestID string) (*PaymentStatus, error) {
	addr, err := s.requestAddress(requestID)
	if err != nil {
		return nil, err
	}
	out := &PaymentStatus{RequestID: requestID, Address: addr}

	req, err := s.PaymentRequest(ctx, requestID)
	switch {
	case err == nil:
		out.Status = req.Status()
		out.Request = req
	case types.IsNotFound(err):
		out.Status = types.StatusAbsent
	case types.IsDecodeError(err), errors.Is(err, types.ErrAccountOwnedByWrongProgram):
		out.Status = types.StatusCorrupted
		out.Error = err.Error()
	default:
		return nil, err
	}
	return out, nil
}

// AwaitPaid polls Status until the request is paid or ctx ends.
func (s *VerificationService) AwaitPaid(ctx context.Context, requestID string, interval time.Duration) (*state.PaymentRequest, error) {
	for {
		st, err := s.Status(ctx, requestID)
		if err != nil {
			return nil, err
		}
		if st.Status == types.StatusPaid {
			return st.Request, nil
		}
		if st.Status == types.StatusCorrupted {
			return nil, fmt.Errorf("payment request %s: %s", requestID, st.Error)
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("payment request %s still %s: %w", requestID, st.Status, ctx.Err())
		case <-time.After(interval):
		}
	}
}

// InspectConfig reports what lives at the current and legacy singleton
// addresses.
func (s *VerificationService) InspectConfig(ctx context.Context) (*ConfigReport, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	current, err := pda.Config(s.programID)
	if err != nil {
		return nil, err
	}
	legacy, err := pda.LegacyConfig(s.programID)
	if err != nil {
		return nil, err
	}

	report := &ConfigReport{}
	if report.Current, err = s.inspectSlot(ctx, current.Key); err != nil {
		return nil, err
	}
	if report.Legacy, err = s.inspectSlot(ctx, legacy.Key); err != nil {
		return nil, err
	}
	return report, nil
}

func (s *VerificationService) inspectSlot(ctx context.Context, addr solana.PublicKey) (ConfigSlot, error) {
	slot := ConfigSlot{Address: addr, Status: ConfigAbsent}

	acc, err := s.fetch(ctx, addr)
	if err != nil || acc == nil {
		return slot, err
	}
	slot.Lamports = acc.Lamports

	cfg, err := state.LoadConfig(acc.Owner, s.programID, acc.Data)
	switch {
	case err == nil:
		slot.Status = ConfigActive
		slot.Config = cfg
	case types.IsNotFound(err):
		// Lamports without data: nothing for close-config to decode.
		slot.Status = ConfigAbsent
	default:
		slot.Status = ConfigCorrupted
		slot.Error = err.Error()
	}
	return slot, nil
}

// PaymentRequestInput is the argument set of create-payment-request.
type PaymentRequestInput struct {
	Amount      uint64 `json:"amount" validate:"gt=0"`
	RequestID   string `json:"requestId" validate:"maxbytes=64"`
	ResourceTag string `json:"resourceTag" validate:"maxbytes=128"`
}

var fieldErrors = map[string]*types.ProgramError{
	"Amount":      types.ErrInvalidAmount,
	"RequestID":   types.ErrRequestIDTooLong,
	"ResourceTag": types.ErrResourceIDTooLong,
}

// QuickVerify performs a basic verification of create-payment-request
// arguments against current state. It is advisory: the program repeats every
// check when the transaction executes.
func (s *VerificationService) QuickVerify(ctx context.Context, input *PaymentRequestInput) (*types.VerificationResult, error) {
	if err := utils.ValidateStruct(input); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			if pe, ok := fieldErrors[verrs[0].StructField()]; ok {
				return invalid(pe), nil
			}
		}
		return nil, err
	}

	addr, err := s.requestAddress(input.RequestID)
	if err != nil {
		return invalid(err), nil
	}

	cfg, err := s.Config(ctx)
	if err != nil {
		if _, ok := types.Code(err); ok {
			return invalid(err), nil
		}
		return nil, err
	}
	if input.Amount < cfg.MinPayment {
		return invalid(types.ErrInsufficientPayment.WithData(fmt.Sprintf("amount %d, minimum %d", input.Amount, cfg.MinPayment))), nil
	}

	acc, err := s.fetch(ctx, addr)
	if err != nil {
		return nil, err
	}
	if acc != nil && len(acc.Data) > 0 {
		return invalid(types.ErrAlreadyExists.WithData(input.RequestID)), nil
	}

	return &types.VerificationResult{
		Valid:   true,
		Address: addr.String(),
	}, nil
}

func (s *VerificationService) requestAddress(requestID string) (solana.PublicKey, error) {
	if len(requestID) > types.MaxRequestIDLen {
		return solana.PublicKey{}, types.ErrRequestIDTooLong.WithData(fmt.Sprintf("%d bytes", len(requestID)))
	}
	addr, err := pda.PaymentRequest(s.programID, requestID)
	if err != nil {
		return solana.PublicKey{}, err
	}
	return addr.Key, nil
}

func invalid(err error) *types.VerificationResult {
	res := &types.VerificationResult{Valid: false, Error: err.Error()}
	if code, ok := types.Code(err); ok {
		res.Code = code
	}
	return res
}

// Close closes the underlying client.
func (s *VerificationService) Close() {
	s.client.Close()
}
