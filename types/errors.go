package types

import (
	"errors"
	"fmt"
)

// ErrorCode is the stable numeric code surfaced to callers for a program failure.
// Custom codes start at 6000, framework codes follow the Anchor numbering.
type ErrorCode uint32

// ErrorClass groups error codes by the taxonomy callers branch on.
type ErrorClass string

const (
	ClassValidation    ErrorClass = "validation"
	ClassStateConflict ErrorClass = "state_conflict"
	ClassAuthorization ErrorClass = "authorization"
	ClassIntegrity     ErrorClass = "integrity"
	ClassNotFound      ErrorClass = "not_found"
)

// ProgramError is returned by every entry point of the payment program.
type ProgramError struct {
	Code    ErrorCode   `json:"code"`
	Name    string      `json:"name"`
	Message string      `json:"message"`
	Class   ErrorClass  `json:"class"`
	Data    interface{} `json:"data,omitempty"`
}

func (e *ProgramError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Message)
}

// Is matches on the code so wrapped copies carrying Data still compare equal
// to the sentinel.
func (e *ProgramError) Is(target error) bool {
	var pe *ProgramError
	if !errors.As(target, &pe) {
		return false
	}
	return pe.Code == e.Code
}

// WithData returns a copy of e carrying extra diagnostic data.
func (e *ProgramError) WithData(data interface{}) *ProgramError {
	cp := *e
	cp.Data = data
	return &cp
}

func newProgramError(code ErrorCode, name string, class ErrorClass, msg string) *ProgramError {
	return &ProgramError{Code: code, Name: name, Message: msg, Class: class}
}

// Custom program errors.
var (
	ErrInvalidAmount           = newProgramError(6000, "InvalidAmount", ClassValidation, "Payment amount must be greater than 0")
	ErrRequestIDTooLong        = newProgramError(6001, "RequestIdTooLong", ClassValidation, "Request ID is too long (max 64 characters)")
	ErrResourceIDTooLong       = newProgramError(6002, "ResourceIdTooLong", ClassValidation, "Resource identifier is too long (max 128 characters)")
	ErrAlreadyPaid             = newProgramError(6003, "AlreadyPaid", ClassStateConflict, "Payment request has already been paid")
	ErrRequestIDMismatch       = newProgramError(6004, "RequestIdMismatch", ClassIntegrity, "Request ID does not match")
	ErrInsufficientPayment     = newProgramError(6005, "InsufficientPayment", ClassValidation, "Payment amount is below minimum required")
	ErrUnauthorized            = newProgramError(6006, "UnauthorizedCancellation", ClassAuthorization, "Only the requester can cancel this payment request")
	ErrInvalidMinPayment       = newProgramError(6007, "InvalidMinPayment", ClassValidation, "Minimum payment must be greater than 0")
	ErrInvalidTreasury         = newProgramError(6008, "InvalidTreasury", ClassValidation, "Treasury wallet must not be the default public key")
	ErrTreasuryAccountMismatch = newProgramError(6009, "TreasuryAccountMismatch", ClassAuthorization, "Treasury token account is not owned by the configured treasury")
	ErrPayerAccountMismatch    = newProgramError(6010, "PayerAccountMismatch", ClassAuthorization, "Payer token account is not owned by the payer")
	ErrMintMismatch            = newProgramError(6011, "MintMismatch", ClassValidation, "Token accounts do not hold the payment mint")
	ErrUnauthorizedClose       = newProgramError(6012, "UnauthorizedClose", ClassAuthorization, "Only the config authority can close the config account")
	ErrAlreadyExists           = newProgramError(6013, "AlreadyExists", ClassStateConflict, "A payment request with this ID already exists")
	ErrAlreadyInitialized      = newProgramError(6014, "AlreadyInitialized", ClassStateConflict, "Config account is already initialized")
	ErrArithmeticOverflow      = newProgramError(6015, "ArithmeticOverflow", ClassIntegrity, "Total processed amount overflowed")

	// ErrUnauthorizedRecoveryClose shares the UnauthorizedClose code and is
	// returned when the config does not decode.
	ErrUnauthorizedRecoveryClose = newProgramError(6012, "UnauthorizedClose", ClassAuthorization, "Only the program upgrade authority can close a config account that does not decode")
)

// Framework errors.
var (
	ErrInstructionFallbackNotFound   = newProgramError(101, "InstructionFallbackNotFound", ClassValidation, "Fallback functions are not supported")
	ErrInstructionDidNotDeserialize  = newProgramError(102, "InstructionDidNotDeserialize", ClassValidation, "The program could not deserialize the given instruction")
	ErrConstraintSeeds               = newProgramError(2006, "ConstraintSeeds", ClassIntegrity, "A seeds constraint was violated")
	ErrAccountDiscriminatorMismatch  = newProgramError(3002, "AccountDiscriminatorMismatch", ClassIntegrity, "Account discriminator did not match what was expected")
	ErrAccountDidNotDeserialize      = newProgramError(3003, "AccountDidNotDeserialize", ClassIntegrity, "Failed to deserialize the account")
	ErrAccountOwnedByWrongProgram    = newProgramError(3007, "AccountOwnedByWrongProgram", ClassIntegrity, "The given account is owned by a different program than expected")
	ErrInvalidProgramID              = newProgramError(3008, "InvalidProgramId", ClassIntegrity, "Program ID was not as expected")
	ErrAccountNotSigner              = newProgramError(3010, "AccountNotSigner", ClassAuthorization, "The given account did not sign")
	ErrAccountNotInitialized         = newProgramError(3012, "AccountNotInitialized", ClassNotFound, "The program expected this account to be already initialized")
	ErrAccountNotEnoughKeys          = newProgramError(3005, "AccountNotEnoughKeys", ClassValidation, "Not enough account keys given to the instruction")
)

var programErrors = []*ProgramError{
	ErrInvalidAmount, ErrRequestIDTooLong, ErrResourceIDTooLong, ErrAlreadyPaid,
	ErrRequestIDMismatch, ErrInsufficientPayment, ErrUnauthorized, ErrInvalidMinPayment,
	ErrInvalidTreasury, ErrTreasuryAccountMismatch, ErrPayerAccountMismatch, ErrMintMismatch,
	ErrUnauthorizedClose, ErrAlreadyExists, ErrAlreadyInitialized, ErrArithmeticOverflow,
	ErrInstructionFallbackNotFound, ErrInstructionDidNotDeserialize, ErrConstraintSeeds,
	ErrAccountDiscriminatorMismatch, ErrAccountDidNotDeserialize, ErrAccountOwnedByWrongProgram, ErrInvalidProgramID,
	ErrAccountNotSigner, ErrAccountNotInitialized, ErrAccountNotEnoughKeys,
}

// ErrorFromCode looks up the sentinel for a numeric code.
func ErrorFromCode(code ErrorCode) (*ProgramError, bool) {
	for _, e := range programErrors {
		if e.Code == code {
			return e, true
		}
	}
	return nil, false
}

// Code extracts the program error code from err, if any.
func Code(err error) (ErrorCode, bool) {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Code, true
	}
	return 0, false
}

// ClassOf returns the class of a program error, or "" for any other error.
func ClassOf(err error) ErrorClass {
	var pe *ProgramError
	if errors.As(err, &pe) {
		return pe.Class
	}
	return ""
}

// IsDecodeError reports whether err is a layout mismatch on a present record.
// It is never true for an absent record.
func IsDecodeError(err error) bool {
	return errors.Is(err, ErrAccountDiscriminatorMismatch) ||
		errors.Is(err, ErrAccountDidNotDeserialize)
}

// IsNotFound reports whether err means no record exists at the address.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrAccountNotInitialized)
}

func IsValidation(err error) bool    { return ClassOf(err) == ClassValidation }
func IsStateConflict(err error) bool { return ClassOf(err) == ClassStateConflict }
func IsAuthorization(err error) bool { return ClassOf(err) == ClassAuthorization }
func IsIntegrity(err error) bool     { return ClassOf(err) == ClassIntegrity }
