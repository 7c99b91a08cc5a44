package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorClassifiers(t *testing.T) {
	tests := []struct {
		err   error
		class ErrorClass
		check func(error) bool
	}{
		{ErrInvalidAmount, ClassValidation, IsValidation},
		{ErrInstructionDidNotDeserialize, ClassValidation, IsValidation},
		{ErrAlreadyPaid, ClassStateConflict, IsStateConflict},
		{ErrAlreadyInitialized, ClassStateConflict, IsStateConflict},
		{ErrUnauthorized, ClassAuthorization, IsAuthorization},
		{ErrUnauthorizedRecoveryClose, ClassAuthorization, IsAuthorization},
		{ErrConstraintSeeds, ClassIntegrity, IsIntegrity},
		{ErrArithmeticOverflow, ClassIntegrity, IsIntegrity},
		{ErrAccountNotInitialized, ClassNotFound, IsNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			wrapped := fmt.Errorf("submit: %w", tt.err)
			assert.Equal(t, tt.class, ClassOf(wrapped))
			assert.True(t, tt.check(wrapped))
		})
	}

	plain := errors.New("connection refused")
	assert.Equal(t, ErrorClass(""), ClassOf(plain))
	assert.False(t, IsValidation(plain))
	assert.False(t, IsStateConflict(plain))
	assert.False(t, IsAuthorization(plain))
	assert.False(t, IsIntegrity(plain))
	assert.False(t, IsValidation(ErrAlreadyPaid))
}

func TestDecodeErrors(t *testing.T) {
	assert.True(t, IsDecodeError(ErrAccountDiscriminatorMismatch.WithData("short")))
	assert.True(t, IsDecodeError(ErrAccountDidNotDeserialize))
	assert.False(t, IsDecodeError(ErrAccountNotInitialized))
	assert.False(t, IsNotFound(ErrAccountDidNotDeserialize))
}

func TestErrorsCompareByCode(t *testing.T) {
	err := fmt.Errorf("close: %w", ErrUnauthorizedRecoveryClose.WithData("bad layout"))
	assert.ErrorIs(t, err, ErrUnauthorizedClose)
	assert.NotErrorIs(t, err, ErrUnauthorized)
	assert.NotEqual(t, ErrUnauthorizedClose.Message, ErrUnauthorizedRecoveryClose.Message)

	code, ok := Code(err)
	require.True(t, ok)
	assert.Equal(t, ErrorCode(6012), code)

	found, ok := ErrorFromCode(6012)
	require.True(t, ok)
	assert.Same(t, ErrUnauthorizedClose, found)

	_, ok = ErrorFromCode(9999)
	assert.False(t, ok)
}
