package state

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/types"
)

// ConfigSpace is the allocated size of the config account.
const ConfigSpace = DiscriminatorLen + 32 + 32 + 8 + 8 + 1

// Config is the singleton record gating the whole program.
type Config struct {
	Authority      solana.PublicKey `json:"authority"`
	Treasury       solana.PublicKey `json:"treasuryWallet"`
	MinPayment     uint64           `json:"minPaymentAmount"`
	TotalProcessed uint64           `json:"totalPaymentProcessed"`
	Bump           uint8            `json:"bump"`
}

func (c Config) MarshalWithEncoder(enc *bin.Encoder) error {
	if err := writeDiscriminator(enc, ConfigDiscriminator); err != nil {
		return err
	}
	if err := writeKey(enc, c.Authority); err != nil {
		return err
	}
	if err := writeKey(enc, c.Treasury); err != nil {
		return err
	}
	if err := enc.WriteUint64(c.MinPayment, le); err != nil {
		return err
	}
	if err := enc.WriteUint64(c.TotalProcessed, le); err != nil {
		return err
	}
	return enc.WriteUint8(c.Bump)
}

func (c *Config) UnmarshalWithDecoder(dec *bin.Decoder) (err error) {
	if err = readDiscriminator(dec, ConfigDiscriminator); err != nil {
		return err
	}
	if c.Authority, err = readKey(dec, "authority"); err != nil {
		return err
	}
	if c.Treasury, err = readKey(dec, "treasury_wallet"); err != nil {
		return err
	}
	if c.MinPayment, err = dec.ReadUint64(le); err != nil {
		return fieldErr("min_payment_amount", err)
	}
	if c.TotalProcessed, err = dec.ReadUint64(le); err != nil {
		return fieldErr("total_payment_processed", err)
	}
	if c.Bump, err = dec.ReadUint8(); err != nil {
		return fieldErr("bump", err)
	}
	return nil
}

// Marshal returns the account data, padded to ConfigSpace.
func (c Config) Marshal() ([]byte, error) {
	return marshal(ConfigSpace, c.MarshalWithEncoder)
}

// DecodeConfig parses raw account data. Any failure is a decode error.
func DecodeConfig(data []byte) (*Config, error) {
	var c Config
	if err := c.UnmarshalWithDecoder(bin.NewBorshDecoder(data)); err != nil {
		return nil, err
	}
	return &c, nil
}

// AddProcessed bumps the running total with overflow checking.
func (c *Config) AddProcessed(amount uint64) error {
	sum := c.TotalProcessed + amount
	if sum < c.TotalProcessed {
		return types.ErrArithmeticOverflow
	}
	c.TotalProcessed = sum
	return nil
}
