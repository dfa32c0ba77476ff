package chat

import (
	"context"
	"errors"

	"github.com/upb/llm-chat-client/services"
	"github.com/upb/llm-chat-client/services/providers"
)

var userMessages = []struct {
	err     error
	message string
}{
	{services.ErrEmptyMessage, "Please enter a message."},
	{services.ErrMissingCredential, "Missing API key for the selected provider."},
	{services.ErrMissingModel, "Model is required."},
	{services.ErrEmptyConversation, "Nothing to send yet."},
	{services.ErrCredentialInMessage, "Your message looks like it contains an API key. Use /key to set credentials instead."},
	{services.ErrUnsupportedProvider, "Unsupported provider selected."},
	{services.ErrUnsupportedModel, "That model is not offered by the selected provider."},
	{services.ErrRequestInFlight, "A response is still being generated. Please wait."},
	{services.ErrEmptyReply, "Received an empty response from the model."},
	{services.ErrNoConfiguredProvider, "No configured provider with a valid API key is available."},
}

// UserMessage turns an error from Send into text suitable for display.
// Provider failures surface the message of the last attempt.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}

	for _, m := range userMessages {
		if errors.Is(err, m.err) {
			return m.message
		}
	}

	var provErr *providers.ProviderError
	if errors.As(err, &provErr) && provErr.Message != "" {
		return provErr.Message
	}

	switch services.GetErrorType(err) {
	case services.ErrorTypeValidation:
		return "The conversation contains an invalid message."
	case services.ErrorTypeExhausted:
		return "All configured providers failed."
	}

	if errors.Is(err, context.Canceled) {
		return "Request cancelled."
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "Request timed out."
	}

	if msg := err.Error(); msg != "" {
		return msg
	}
	return "Unknown error."
}
