package escrow

import (
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/vitwit/x402-escrow/ledger"
	"github.com/vitwit/x402-escrow/logger"
	"github.com/vitwit/x402-escrow/metrics"
)

type Option func(*Escrow)

func WithLogger(l logger.Logger) Option {
	return func(e *Escrow) {
		e.logger = l
	}
}

func WithMetrics(r metrics.Recorder) Option {
	return func(e *Escrow) {
		e.metrics = r
	}
}

func WithTimeout(t time.Duration) Option {
	return func(e *Escrow) {
		e.timeout = t
	}
}

// WithClock sets the clock of the in-process ledger. Ignored for remote
// networks.
func WithClock(c ledger.Clock) Option {
	return func(e *Escrow) {
		e.clock = c
	}
}

// WithStore sets the account store of the in-process ledger, overriding
// StorePath. Ignored for remote networks.
func WithStore(s ledger.Store) Option {
	return func(e *Escrow) {
		e.store = s
	}
}

// WithUpgradeAuthority sets the upgrade authority of the in-process program,
// overriding the upgradeAuthority config field.
func WithUpgradeAuthority(key solana.PublicKey) Option {
	return func(e *Escrow) {
		e.upgradeAuthority = key
	}
}
