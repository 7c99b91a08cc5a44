package state

import (
	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/types"
)

// checkOwned separates "nothing here" from "something here that is not ours".
// Lamports without data (a plain transfer to the address) count as nothing.
func checkOwned(owner, programID solana.PublicKey, data []byte) error {
	if len(data) == 0 {
		return types.ErrAccountNotInitialized
	}
	if !owner.Equals(programID) {
		return types.ErrAccountOwnedByWrongProgram.WithData(owner.String())
	}
	return nil
}

// LoadConfig classifies a config account: absent, foreign, undecodable or ok.
func LoadConfig(owner, programID solana.PublicKey, data []byte) (*Config, error) {
	if err := checkOwned(owner, programID, data); err != nil {
		return nil, err
	}
	return DecodeConfig(data)
}

// LoadPaymentRequest classifies a payment request account the same way.
func LoadPaymentRequest(owner, programID solana.PublicKey, data []byte) (*PaymentRequest, error) {
	if err := checkOwned(owner, programID, data); err != nil {
		return nil, err
	}
	return DecodePaymentRequest(data)
}
