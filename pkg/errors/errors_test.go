package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

type idStringer string

func (s idStringer) String() string { return string(s) }

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		err      *AppError
		expected string
	}{
		{
			name:     "without underlying error",
			err:      New(CodeNotFound, "class not found"),
			expected: "[NOT_FOUND] class not found",
		},
		{
			name:     "with underlying error",
			err:      Wrap(CodeInvalidBatch, "bad batch", errors.New("virtual arg in batch 0")),
			expected: "[INVALID_BATCH] bad batch: virtual arg in batch 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.err.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	underlying := errors.New("underlying error")
	err := Wrap(CodeAssertionFailure, "chain broken", underlying)

	unwrapped := err.Unwrap()
	assert.Equal(t, underlying, unwrapped)
}

func TestAppError_Is(t *testing.T) {
	err1 := New(CodeNotFound, "error 1")
	err2 := New(CodeNotFound, "error 2")
	err3 := New(CodeMalformedCall, "error 3")

	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, err3))
}

func TestKindConstructors(t *testing.T) {
	assert.True(t, IsNotFound(NotFound("e-class", idStringer("e7.1"))))
	assert.True(t, IsMalformedCall(MalformedCall("args do not cover slots")))
	assert.True(t, IsInvalidBatch(InvalidBatch("virtual arg in batch 0")))
	assert.True(t, IsInvariantViolation(InvariantViolation("hashcons desync")))
	assert.True(t, IsOperationCanceled(OperationCanceled("timeout elapsed")))
	assert.True(t, IsAssertionFailure(AssertionFailure("membership check failed")))

	assert.False(t, IsNotFound(MalformedCall("x")))
	assert.False(t, IsNotFound(nil))
}

func TestCode(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected string
	}{
		{"app error", New(CodeNotFound, "x"), CodeNotFound},
		{"wrapped app error", Wrap(CodeInvalidBatch, "y", errors.New("inner")), CodeInvalidBatch},
		{"standard error", errors.New("standard error"), CodeUnknown},
		{"nil error", nil, CodeUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Code(tt.err))
		})
	}
}

func TestNotFound_FormatsID(t *testing.T) {
	err := NotFound("virtual symbol", idStringer("v3"))
	assert.Equal(t, "virtual symbol not found: v3", err.Message)
	assert.Equal(t, fmt.Sprintf("[%s] %s", CodeNotFound, err.Message), err.Error())
}
