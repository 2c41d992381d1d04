package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "without cause",
			err:  NewError(NOT_FOUND, "provider not found: p1"),
			want: "[NOT_FOUND] provider not found: p1",
		},
		{
			name: "with cause",
			err:  WrapError(INVALID_INPUT, "bad hints", errors.New("urgency: not a number")),
			want: "[INVALID_INPUT] bad hints: urgency: not a number",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsMatchesByCode(t *testing.T) {
	err := NotFound("formation", "abc")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrInvalidInput)

	wrapped := fmt.Errorf("dissolve: %w", err)
	assert.ErrorIs(t, wrapped, ErrNotFound)
}

func TestError_AlreadyExistsIsInvalidInput(t *testing.T) {
	err := NewError(ALREADY_EXISTS, "provider already registered: p1")
	assert.ErrorIs(t, err, ErrInvalidInput)
	assert.NotErrorIs(t, ErrInvalidInput, err)
}

func TestError_Unwrap(t *testing.T) {
	cause := errors.New("root cause")
	err := WrapError(ROLLOUT_FAILED, "rollout failed", cause)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, ROLLOUT_FAILED, CodeOf(fmt.Errorf("ctx: %w", err)))
	assert.Equal(t, ErrorCode(""), CodeOf(cause))
}

func TestIsRetryable(t *testing.T) {
	err := NewError(INVALID_STATE, "busy")
	assert.False(t, IsRetryable(err))

	err.Retryable = true
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", err)))
	assert.False(t, IsRetryable(errors.New("plain")))
}
