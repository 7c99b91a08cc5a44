package metrics

import "time"

// Recorder receives program and ledger telemetry. Label keys used across the
// module are "instruction" and "outcome".
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

// Event names.
const (
	EventTransaction    = "transaction"
	EventInstruction    = "instruction"
	EventOperation      = "operation"
	GaugeTotalProcessed = "total_processed"
)

// Outcome returns the outcome label for an error.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
