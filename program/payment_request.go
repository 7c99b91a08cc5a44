package program

import (
	"fmt"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/ledger"
	"github.com/vitwit/x402-escrow/settlement"
	"github.com/vitwit/x402-escrow/state"
	"github.com/vitwit/x402-escrow/types"
)

func validateRequestID(id string) error {
	if len(id) > types.MaxRequestIDLen {
		return types.ErrRequestIDTooLong.WithData(fmt.Sprintf("%d bytes", len(id)))
	}
	return nil
}

// createPaymentRequest opens an unpaid request at the address derived from
// the identifier. The config must exist and decode. Identifiers longer than
// 32 bytes pass the length check but cannot be used as a derivation seed and
// fail with ConstraintSeeds.
func (p *Program) createPaymentRequest(tx *ledger.Tx, accounts []*solana.AccountMeta, raw []byte) error {
	var args CreatePaymentRequestArgs
	if err := decodeArgs(raw, &args); err != nil {
		return err
	}
	if err := expectAccounts(accounts, 4); err != nil {
		return err
	}
	requester, requestKey, configKey, system := accounts[0].PublicKey, accounts[1].PublicKey, accounts[2].PublicKey, accounts[3].PublicKey

	if err := requireSigner(tx, requester); err != nil {
		return err
	}
	if err := requireProgram(system, solana.SystemProgramID); err != nil {
		return err
	}

	if args.Amount == 0 {
		return types.ErrInvalidAmount
	}
	if err := validateRequestID(args.RequestID); err != nil {
		return err
	}
	if len(args.ResourceTag) > types.MaxResourceTagLen {
		return types.ErrResourceIDTooLong.WithData(fmt.Sprintf("%d bytes", len(args.ResourceTag)))
	}

	addr, err := p.requestAddress(requestKey, args.RequestID)
	if err != nil {
		return err
	}

	cfgAcc, err := p.configAccount(tx, configKey)
	if err != nil {
		return err
	}
	if _, err := state.LoadConfig(cfgAcc.Owner, p.id, cfgAcc.Data); err != nil {
		return err
	}

	acc, err := tx.Account(requestKey)
	if err != nil {
		return err
	}
	if len(acc.Data) > 0 {
		return types.ErrAlreadyExists.WithData(args.RequestID)
	}

	if err := tx.CreateAccount(requester, requestKey, state.PaymentRequestSpace, p.id); err != nil {
		return err
	}
	req := state.PaymentRequest{
		RequestID:   args.RequestID,
		Requester:   requester,
		Amount:      args.Amount,
		ResourceTag: args.ResourceTag,
		CreatedAt:   tx.UnixTimestamp(),
		Bump:        addr.Bump,
	}
	if err := p.writeRecord(tx, requestKey, req.Marshal); err != nil {
		return err
	}

	tx.Log("Payment request created: id=%s amount=%d resource=%s", req.RequestID, req.Amount, req.ResourceTag)
	return nil
}

// verifyPayment settles an unpaid request: the full amount of the pinned mint
// moves from the payer's token account to the treasury's, the request is marked paid and the
// config total grows by the amount.
func (p *Program) verifyPayment(tx *ledger.Tx, accounts []*solana.AccountMeta, raw []byte) error {
	var args RequestArgs
	if err := decodeArgs(raw, &args); err != nil {
		return err
	}
	if err := expectAccounts(accounts, 6); err != nil {
		return err
	}
	requestKey := accounts[0].PublicKey
	configKey := accounts[1].PublicKey
	payer := accounts[2].PublicKey
	payerTokenKey := accounts[3].PublicKey
	treasuryTokenKey := accounts[4].PublicKey
	tokenProgram := accounts[5].PublicKey

	if err := requireSigner(tx, payer); err != nil {
		return err
	}
	if err := requireProgram(tokenProgram, solana.TokenProgramID); err != nil {
		return err
	}
	if err := validateRequestID(args.RequestID); err != nil {
		return err
	}
	if _, err := p.requestAddress(requestKey, args.RequestID); err != nil {
		return err
	}

	cfgAcc, err := p.configAccount(tx, configKey)
	if err != nil {
		return err
	}
	cfg, err := state.LoadConfig(cfgAcc.Owner, p.id, cfgAcc.Data)
	if err != nil {
		return err
	}

	reqAcc, err := tx.Account(requestKey)
	if err != nil {
		return err
	}
	req, err := state.LoadPaymentRequest(reqAcc.Owner, p.id, reqAcc.Data)
	if err != nil {
		return err
	}

	if req.RequestID != args.RequestID {
		return types.ErrRequestIDMismatch.WithData(fmt.Sprintf("stored %q, supplied %q", req.RequestID, args.RequestID))
	}
	if req.IsPaid {
		return types.ErrAlreadyPaid
	}
	if req.Amount < cfg.MinPayment {
		return types.ErrInsufficientPayment.WithData(fmt.Sprintf("amount %d, minimum %d", req.Amount, cfg.MinPayment))
	}

	payerToken, err := tokenAccount(tx, payerTokenKey)
	if err != nil {
		return err
	}
	treasuryToken, err := tokenAccount(tx, treasuryTokenKey)
	if err != nil {
		return err
	}
	if !treasuryToken.Owner.Equals(cfg.Treasury) {
		return types.ErrTreasuryAccountMismatch.WithData(treasuryToken.Owner.String())
	}
	if !payerToken.Owner.Equals(payer) {
		return types.ErrPayerAccountMismatch.WithData(payerToken.Owner.String())
	}
	if !payerToken.Mint.Equals(treasuryToken.Mint) {
		return types.ErrMintMismatch
	}
	if !payerToken.Mint.Equals(p.mint) {
		return types.ErrMintMismatch.WithData(fmt.Sprintf("mint %s, expected %s", payerToken.Mint, p.mint))
	}

	if err := p.settler.Transfer(tx, payerTokenKey, treasuryTokenKey, payer, req.Amount); err != nil {
		return fmt.Errorf("transfer %d to treasury: %w", req.Amount, err)
	}

	if err := req.MarkPaid(payer, tx.UnixTimestamp()); err != nil {
		return err
	}
	if err := cfg.AddProcessed(req.Amount); err != nil {
		return err
	}
	if err := p.writeRecord(tx, requestKey, req.Marshal); err != nil {
		return err
	}
	if err := p.writeRecord(tx, configKey, cfg.Marshal); err != nil {
		return err
	}

	tx.Log("Payment verified: id=%s payer=%s amount=%d", req.RequestID, payer, req.Amount)
	return nil
}

// cancelPaymentRequest removes an unpaid request and refunds its deposit to
// the requester.
func (p *Program) cancelPaymentRequest(tx *ledger.Tx, accounts []*solana.AccountMeta, raw []byte) error {
	var args RequestArgs
	if err := decodeArgs(raw, &args); err != nil {
		return err
	}
	if err := expectAccounts(accounts, 2); err != nil {
		return err
	}
	requestKey, signer := accounts[0].PublicKey, accounts[1].PublicKey

	if err := requireSigner(tx, signer); err != nil {
		return err
	}
	if err := validateRequestID(args.RequestID); err != nil {
		return err
	}
	if _, err := p.requestAddress(requestKey, args.RequestID); err != nil {
		return err
	}

	acc, err := tx.Account(requestKey)
	if err != nil {
		return err
	}
	req, err := state.LoadPaymentRequest(acc.Owner, p.id, acc.Data)
	if err != nil {
		return err
	}
	if req.IsPaid {
		return types.ErrAlreadyPaid
	}
	if !req.Requester.Equals(signer) {
		return types.ErrUnauthorized.WithData(signer.String())
	}

	if err := tx.CloseAccount(requestKey, signer); err != nil {
		return err
	}
	tx.Log("Payment request cancelled: id=%s", req.RequestID)
	return nil
}

// checkPaymentStatus validates the request record and logs its state.
func (p *Program) checkPaymentStatus(tx *ledger.Tx, accounts []*solana.AccountMeta, raw []byte) error {
	var args RequestArgs
	if err := decodeArgs(raw, &args); err != nil {
		return err
	}
	if err := expectAccounts(accounts, 1); err != nil {
		return err
	}
	requestKey := accounts[0].PublicKey

	if err := validateRequestID(args.RequestID); err != nil {
		return err
	}
	if _, err := p.requestAddress(requestKey, args.RequestID); err != nil {
		return err
	}

	acc, err := tx.Account(requestKey)
	if err != nil {
		return err
	}
	req, err := state.LoadPaymentRequest(acc.Owner, p.id, acc.Data)
	if err != nil {
		return err
	}
	if req.RequestID != args.RequestID {
		return types.ErrRequestIDMismatch
	}

	switch s := req.State().(type) {
	case state.Paid:
		tx.Log("Payment status: id=%s paid by %s at %d", req.RequestID, s.Payer, s.PaidAt.Unix())
	default:
		tx.Log("Payment status: id=%s unpaid amount=%d", req.RequestID, req.Amount)
	}
	return nil
}

// tokenAccount loads a token account the way the record loaders do: absent,
// foreign and undecodable are reported separately.
func tokenAccount(tx *ledger.Tx, key solana.PublicKey) (*settlement.TokenAccount, error) {
	acc, err := tx.Account(key)
	if err != nil {
		return nil, err
	}
	if len(acc.Data) == 0 {
		return nil, types.ErrAccountNotInitialized.WithData("token account " + key.String())
	}
	if !acc.Owner.Equals(solana.TokenProgramID) {
		return nil, types.ErrAccountOwnedByWrongProgram.WithData(acc.Owner.String())
	}
	ta, err := settlement.DecodeTokenAccount(acc.Data)
	if err != nil {
		return nil, types.ErrAccountDidNotDeserialize.WithData(err.Error())
	}
	return ta, nil
}
