package services

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDomainError(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeFormat, "received an empty response", baseErr)

	assert.Equal(t, ErrorTypeFormat, domainErr.Type)
	assert.Equal(t, "received an empty response", domainErr.Message)
	assert.Equal(t, baseErr, domainErr.Err)
	assert.NotNil(t, domainErr.Details)
}

func TestDomainError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *DomainError
		wantMsg string
	}{
		{
			name: "error with wrapped error",
			err: &DomainError{
				Type:    ErrorTypeExhausted,
				Message: "all configured providers failed",
				Err:     errors.New("rate limit"),
			},
			wantMsg: "exhausted: all configured providers failed (rate limit)",
		},
		{
			name: "error without wrapped error",
			err: &DomainError{
				Type:    ErrorTypeConfiguration,
				Message: "model is required",
			},
			wantMsg: "configuration: model is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantMsg, tt.err.Error())
		})
	}
}

func TestDomainError_Unwrap(t *testing.T) {
	baseErr := errors.New("base error")
	domainErr := NewDomainError(ErrorTypeValidation, "invalid turn", baseErr)

	assert.Equal(t, baseErr, errors.Unwrap(domainErr))
}

func TestDomainError_Is(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		target error
		want   bool
	}{
		{
			name:   "same sentinel",
			err:    ErrMissingModel,
			target: ErrMissingModel,
			want:   true,
		},
		{
			name:   "same type different message",
			err:    ErrMissingCredential,
			target: ErrMissingModel,
			want:   false,
		},
		{
			name:   "type-only target",
			err:    ErrMissingCredential,
			target: &DomainError{Type: ErrorTypeConfiguration},
			want:   true,
		},
		{
			name:   "different error type",
			err:    ErrRequestInFlight,
			target: ErrMissingModel,
			want:   false,
		},
		{
			name:   "wrapped exhaustion matches sentinel",
			err:    WrapExhausted(errors.New("boom"), "openrouter", 503, 1),
			target: ErrAllProvidersFailed,
			want:   true,
		},
		{
			name:   "not a domain error",
			err:    ErrEmptyReply,
			target: errors.New("regular error"),
			want:   false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.Is(tt.err, tt.target))
		})
	}
}

func TestDomainError_WithDetail(t *testing.T) {
	err := NewDomainError(ErrorTypeConfiguration, "unsupported provider", nil)

	err.WithDetail("provider", "acme").WithDetail("known", 2)

	assert.Equal(t, "acme", err.Details["provider"])
	assert.Equal(t, 2, err.Details["known"])
}

func TestIsConfigurationError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"missing credential", ErrMissingCredential, true},
		{"wrapped unsupported provider", fmt.Errorf("%w: acme", ErrUnsupportedProvider), true},
		{"exhausted", ErrNoConfiguredProvider, false},
		{"regular error", errors.New("regular"), false},
		{"nil error", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsConfigurationError(tt.err))
		})
	}
}

func TestIsExhaustedError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"no configured provider", ErrNoConfiguredProvider, true},
		{"wrapped last failure", WrapExhausted(errors.New("503"), "huggingface", 503, 2), true},
		{"conflict", ErrRequestInFlight, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsExhaustedError(tt.err))
		})
	}
}

func TestGetErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"configuration", ErrEmptyMessage, ErrorTypeConfiguration},
		{"conflict", ErrRequestInFlight, ErrorTypeConflict},
		{"format", ErrEmptyReply, ErrorTypeFormat},
		{"exhausted", ErrNoConfiguredProvider, ErrorTypeExhausted},
		{"regular error", errors.New("regular"), ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, GetErrorType(tt.err))
		})
	}
}

func TestGetErrorDetails(t *testing.T) {
	err := NewDomainError(ErrorTypeValidation, "validation error", nil)
	err.WithDetail("field", "Role")

	details := GetErrorDetails(err)
	require.NotNil(t, details)
	assert.Equal(t, "Role", details["field"])

	assert.Nil(t, GetErrorDetails(errors.New("regular error")))
}

func TestWrapExhausted(t *testing.T) {
	last := errors.New("rate limit hit")
	wrapped := WrapExhausted(last, "huggingface", 429, 2)

	var domainErr *DomainError
	require.True(t, errors.As(wrapped, &domainErr))
	assert.Equal(t, ErrorTypeExhausted, domainErr.Type)
	assert.ErrorIs(t, wrapped, last)

	details := GetErrorDetails(wrapped)
	assert.Equal(t, "huggingface", details[DetailProvider])
	assert.Equal(t, 429, details[DetailStatus])
	assert.Equal(t, 2, details[DetailAttempts])
}

func TestWrapExhausted_DoesNotTouchSentinel(t *testing.T) {
	_ = WrapExhausted(errors.New("boom"), "openrouter", 500, 1)
	assert.Empty(t, ErrAllProvidersFailed.Details)
}

func TestErrorTypeCheckersCoverage(t *testing.T) {
	typeCheckers := map[ErrorType]func(error) bool{
		ErrorTypeConfiguration: IsConfigurationError,
		ErrorTypeExhausted:     IsExhaustedError,
	}

	for errType, checker := range typeCheckers {
		t.Run(string(errType), func(t *testing.T) {
			err := NewDomainError(errType, "test error", nil)
			assert.True(t, checker(err), "checker should return true for %s", errType)
		})
	}
}
