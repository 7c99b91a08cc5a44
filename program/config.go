package program

import (
	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/ledger"
	"github.com/vitwit/x402-escrow/state"
	"github.com/vitwit/x402-escrow/types"
)

// initializeConfig creates the singleton config with the signer as authority.
func (p *Program) initializeConfig(tx *ledger.Tx, accounts []*solana.AccountMeta, raw []byte) error {
	var args InitializeConfigArgs
	if err := decodeArgs(raw, &args); err != nil {
		return err
	}
	if err := expectAccounts(accounts, 3); err != nil {
		return err
	}
	authority, configKey, system := accounts[0].PublicKey, accounts[1].PublicKey, accounts[2].PublicKey

	if err := requireSigner(tx, authority); err != nil {
		return err
	}
	if err := requireProgram(system, solana.SystemProgramID); err != nil {
		return err
	}

	if args.MinPayment == 0 {
		return types.ErrInvalidMinPayment
	}
	if args.Treasury.IsZero() {
		return types.ErrInvalidTreasury
	}

	acc, err := p.configAccount(tx, configKey)
	if err != nil {
		return err
	}
	if len(acc.Data) > 0 {
		// Occupied: either a live config or one that must be closed first.
		if _, err := state.LoadConfig(acc.Owner, p.id, acc.Data); err != nil {
			return err
		}
		return types.ErrAlreadyInitialized
	}

	if err := tx.CreateAccount(authority, configKey, state.ConfigSpace, p.id); err != nil {
		return err
	}
	cfg := state.Config{
		Authority:  authority,
		Treasury:   args.Treasury,
		MinPayment: args.MinPayment,
		Bump:       p.config.Bump,
	}
	if err := p.writeRecord(tx, configKey, cfg.Marshal); err != nil {
		return err
	}

	tx.Log("Config initialized: treasury=%s min_payment=%d", cfg.Treasury, cfg.MinPayment)
	return nil
}

// closeConfig destroys the singleton and refunds its deposit to the signer.
// A config that decodes may only be closed by its authority. One that does not
// decode may only be closed by the program upgrade authority, since none of
// its fields can be trusted.
func (p *Program) closeConfig(tx *ledger.Tx, accounts []*solana.AccountMeta, raw []byte) error {
	if err := decodeArgs(raw, noArgs{}); err != nil {
		return err
	}
	if err := expectAccounts(accounts, 2); err != nil {
		return err
	}
	authority, configKey := accounts[0].PublicKey, accounts[1].PublicKey

	if err := requireSigner(tx, authority); err != nil {
		return err
	}
	if !configKey.Equals(p.config.Key) && !configKey.Equals(p.legacyConfig.Key) {
		return requireAddress(configKey, p.config.Key)
	}

	acc, err := tx.Account(configKey)
	if err != nil {
		return err
	}

	cfg, err := state.LoadConfig(acc.Owner, p.id, acc.Data)
	switch {
	case err == nil:
		if !cfg.Authority.Equals(authority) {
			return types.ErrUnauthorizedClose
		}
	case types.IsDecodeError(err):
		if p.upgradeAuthority.IsZero() || !p.upgradeAuthority.Equals(authority) {
			return types.ErrUnauthorizedRecoveryClose.WithData(err.Error())
		}
		tx.Log("Closing undecodable config %s", configKey)
	default:
		return err
	}

	if err := tx.CloseAccount(configKey, authority); err != nil {
		return err
	}
	tx.Log("Config closed, %d lamports returned to %s", acc.Lamports, authority)
	return nil
}
