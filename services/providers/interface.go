package providers

import (
	"errors"
	"net/http"
	"strings"
)

// Role identifies the author of a conversation turn
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one message in a conversation
type Turn struct {
	// Role is "user" or "assistant"; "system" only as a leading instruction
	Role Role `json:"role" validate:"required,oneof=system user assistant"`

	// Content is the message text
	Content string `json:"content"`

	// Loading marks a placeholder that is awaiting a reply and is not real content
	Loading bool `json:"-"`
}

// Message is the wire shape of a turn inside a provider payload
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// SendableMessages drops loading placeholders and converts the rest to wire messages.
// The input slice is never modified.
func SendableMessages(turns []Turn) []Message {
	messages := make([]Message, 0, len(turns))
	for _, turn := range turns {
		if turn.Loading {
			continue
		}
		messages = append(messages, Message{Role: string(turn.Role), Content: turn.Content})
	}
	return messages
}

// ModelOption is one entry of a provider's model catalog
type ModelOption struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// HeaderBuilder builds request headers for a credential
type HeaderBuilder func(credential string) http.Header

// PayloadBuilder builds the JSON request body
type PayloadBuilder func(model string, messages []Message) ([]byte, error)

// ResponseNormalizer turns a successful JSON body into an assistant turn.
// It fails with ErrUnexpectedFormat when the content cannot be extracted.
type ResponseNormalizer func(raw []byte) (Turn, error)

// Descriptor is the static configuration and adapter functions of one provider.
// Descriptors are immutable once registered.
type Descriptor struct {
	// ID is the unique provider identifier (e.g., "openrouter")
	ID string

	// Label is the human-readable name
	Label string

	// Endpoint is the chat-completion URL
	Endpoint string

	// CredentialHint is a placeholder shown when asking for a key (e.g., "hf_...")
	CredentialHint string

	// Models is the ordered catalog; the first entry is the default
	Models []ModelOption

	BuildHeaders      HeaderBuilder
	BuildPayload      PayloadBuilder
	NormalizeResponse ResponseNormalizer
}

// DefaultModel returns the first catalog model
func (d *Descriptor) DefaultModel() string {
	if len(d.Models) == 0 {
		return ""
	}
	return d.Models[0].ID
}

// HasModel reports whether the model is part of the catalog
func (d *Descriptor) HasModel(model string) bool {
	for _, m := range d.Models {
		if m.ID == model {
			return true
		}
	}
	return false
}

func (d *Descriptor) clone() *Descriptor {
	copied := *d
	copied.Models = append([]ModelOption(nil), d.Models...)
	return &copied
}

func (d *Descriptor) validate() error {
	switch {
	case strings.TrimSpace(d.ID) == "":
		return errors.New("provider id cannot be empty")
	case strings.TrimSpace(d.Endpoint) == "":
		return errors.New("provider endpoint cannot be empty")
	case len(d.Models) == 0:
		return errors.New("provider must offer at least one model")
	case d.BuildHeaders == nil || d.BuildPayload == nil || d.NormalizeResponse == nil:
		return errors.New("provider adapter functions must be set")
	}
	return nil
}

// Error codes carried by ProviderError
const (
	CodeTransport = "TRANSPORT_ERROR"
	CodeFormat    = "FORMAT_ERROR"
	CodeHTTP      = "HTTP_ERROR"
	CodeRequest   = "REQUEST_ERROR"
)

// ErrUnexpectedFormat is returned by normalizers when the reply content is missing or malformed
var ErrUnexpectedFormat = errors.New("provider returned an unexpected response format")

// ProviderError represents a classified failure of one provider attempt
type ProviderError struct {
	// Provider that generated the error
	Provider string

	// Code is one of the Code* constants
	Code string

	// Message is the user-readable error message
	Message string

	// StatusCode is the HTTP status code, 0 when no response was received
	StatusCode int

	// FallbackEligible indicates another provider may be tried
	FallbackEligible bool

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface
func (e *ProviderError) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap implements error unwrapping
func (e *ProviderError) Unwrap() error {
	return e.Cause
}

// NewProviderError creates a new provider error
func NewProviderError(provider, code, message string, statusCode int, eligible bool, cause error) *ProviderError {
	return &ProviderError{
		Provider:         provider,
		Code:             code,
		Message:          message,
		StatusCode:       statusCode,
		FallbackEligible: eligible,
		Cause:            cause,
	}
}

// StatusAllowsFallback reports whether a non-success HTTP status may be retried
// against another provider: auth, rate limit and server-side failures only.
func StatusAllowsFallback(status int) bool {
	switch {
	case status == http.StatusUnauthorized, status == http.StatusForbidden, status == http.StatusTooManyRequests:
		return true
	case status >= 500 && status <= 599:
		return true
	}
	return false
}

// IsFallbackEligible checks if an error allows trying the next provider
func IsFallbackEligible(err error) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.FallbackEligible
	}
	return false
}

// IsTransportError checks if no response was received
func IsTransportError(err error) bool {
	return hasCode(err, CodeTransport)
}

// IsFormatError checks if the response body was not structurally valid
func IsFormatError(err error) bool {
	return errors.Is(err, ErrUnexpectedFormat) || hasCode(err, CodeFormat)
}

// StatusCode extracts the HTTP status of a provider error, or 0
func StatusCode(err error) int {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.StatusCode
	}
	return 0
}

func hasCode(err error, code string) bool {
	var provErr *ProviderError
	if errors.As(err, &provErr) {
		return provErr.Code == code
	}
	return false
}
