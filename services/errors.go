package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	// ErrorTypeConfiguration covers pre-flight problems detected before any network call
	ErrorTypeConfiguration ErrorType = "configuration"
	ErrorTypeValidation    ErrorType = "validation"
	ErrorTypeFormat        ErrorType = "format"
	// ErrorTypeExhausted means every eligible provider was attempted and failed
	ErrorTypeExhausted ErrorType = "exhausted"
	ErrorTypeConflict  ErrorType = "conflict"
)

// Detail keys attached to domain errors
const (
	DetailProvider  = "provider"
	DetailStatus    = "status"
	DetailAttempts  = "attempts"
	DetailTurnIndex = "turn_index"
	DetailFields    = "fields"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is. A target with an empty message matches any error
// of the same type; otherwise the message must match as well.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	if e.Type != t.Type {
		return false
	}
	return t.Message == "" || t.Message == e.Message
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables. Do not call WithDetail on these; derive a new
// error with NewDomainError instead.

var (
	// Configuration Errors
	ErrMissingCredential   = NewDomainError(ErrorTypeConfiguration, "missing API key for the selected provider", nil)
	ErrMissingModel        = NewDomainError(ErrorTypeConfiguration, "model is required", nil)
	ErrEmptyMessage        = NewDomainError(ErrorTypeConfiguration, "please enter a message", nil)
	ErrEmptyConversation   = NewDomainError(ErrorTypeConfiguration, "conversation has no sendable turns", nil)
	ErrUnsupportedProvider = NewDomainError(ErrorTypeConfiguration, "unsupported provider", nil)
	ErrUnsupportedModel    = NewDomainError(ErrorTypeConfiguration, "model is not offered by the provider", nil)

	// Validation Errors
	ErrCredentialInMessage = NewDomainError(ErrorTypeValidation, "message appears to contain a credential", nil)

	// Conflict Errors
	ErrRequestInFlight = NewDomainError(ErrorTypeConflict, "a request is already in flight", nil)

	// Format Errors
	ErrEmptyReply = NewDomainError(ErrorTypeFormat, "received an empty response from the model", nil)

	// Exhaustion Errors
	ErrNoConfiguredProvider = NewDomainError(ErrorTypeExhausted, "no configured provider with a valid API key is available", nil)
	ErrAllProvidersFailed   = NewDomainError(ErrorTypeExhausted, "all configured providers failed", nil)
)

// Error type checking helper functions

// IsConfigurationError checks if an error is a pre-flight configuration error
func IsConfigurationError(err error) bool {
	return hasType(err, ErrorTypeConfiguration)
}

// IsExhaustedError checks if every eligible provider failed
func IsExhaustedError(err error) bool {
	return hasType(err, ErrorTypeExhausted)
}

func hasType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapExhausted wraps the last provider failure once every candidate has been
// tried, recording which provider failed last and with what status.
func WrapExhausted(last error, provider string, status, attempts int) error {
	return NewDomainError(ErrorTypeExhausted, ErrAllProvidersFailed.Message, last).
		WithDetail(DetailProvider, provider).
		WithDetail(DetailStatus, status).
		WithDetail(DetailAttempts, attempts)
}
