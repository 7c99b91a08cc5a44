package clients

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"

	"github.com/vitwit/x402-escrow/types"
)

// Failure reasons reported in TxResult.Error when no program error applies.
const (
	ErrMissingSigner        = "transaction_signer_missing_signatures"
	ErrBlockhashUnavailable = "latest_blockhash_unavailable"
	ErrBuildTransaction     = "transaction_build_failed"
	ErrBroadcastFailed      = "transaction_broadcast_failed"
	ErrConfirmationTimedOut = "transaction_confirmation_timed_out"
	ErrTransactionFailed    = "transaction_failed"
)

var customErrorPattern = regexp.MustCompile(`custom program error: 0x([0-9a-fA-F]+)`)

// ParseProgramError maps a cluster error message carrying
// "custom program error: 0x..." onto the matching program error sentinel.
// Errors that already are program errors, or carry no known code, are
// returned unchanged.
func ParseProgramError(err error) error {
	if err == nil {
		return nil
	}
	var pe *types.ProgramError
	if errors.As(err, &pe) {
		return err
	}

	m := customErrorPattern.FindStringSubmatch(err.Error())
	if m == nil {
		return err
	}
	code, perr := strconv.ParseUint(m[1], 16, 32)
	if perr != nil {
		return err
	}
	return programErrorFromCode(types.ErrorCode(code), err)
}

// statusError converts the error value of a signature status, for example
// {"InstructionError":[0,{"Custom":6003}]}.
func statusError(v interface{}) error {
	if v == nil {
		return nil
	}
	raw := fmt.Errorf("%s: %v", ErrTransactionFailed, v)

	m, ok := v.(map[string]interface{})
	if !ok {
		return raw
	}
	ie, ok := m["InstructionError"].([]interface{})
	if !ok || len(ie) != 2 {
		return raw
	}
	detail, ok := ie[1].(map[string]interface{})
	if !ok {
		return raw
	}

	var code uint64
	switch c := detail["Custom"].(type) {
	case float64:
		code = uint64(c)
	case int64:
		code = uint64(c)
	case uint64:
		code = c
	default:
		return raw
	}
	return programErrorFromCode(types.ErrorCode(code), raw)
}

func programErrorFromCode(code types.ErrorCode, cause error) error {
	sentinel, ok := types.ErrorFromCode(code)
	if !ok {
		return fmt.Errorf("unknown program error %d: %w", code, cause)
	}
	return sentinel.WithData(cause.Error())
}
