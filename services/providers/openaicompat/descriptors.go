package openaicompat

import (
	"fmt"
	"net/http"

	"github.com/upb/llm-chat-client/services/providers"
)

const (
	OpenRouterID  = "openrouter"
	HuggingFaceID = "huggingface"

	defaultOpenRouterEndpoint  = "https://openrouter.ai/api/v1/chat/completions"
	defaultHuggingFaceEndpoint = "https://router.huggingface.co/v1/chat/completions"
	defaultTitle               = "Browser Chat UI"
)

// Options customizes the reference descriptors
type Options struct {
	// OpenRouterEndpoint overrides the OpenRouter chat-completion URL
	OpenRouterEndpoint string

	// HuggingFaceEndpoint overrides the Hugging Face router URL
	HuggingFaceEndpoint string

	// Referer is sent to OpenRouter as HTTP-Referer for app attribution
	Referer string

	// Title is sent to OpenRouter as X-Title
	Title string
}

// OpenRouter returns the OpenRouter descriptor
func OpenRouter(opts Options) *providers.Descriptor {
	endpoint := opts.OpenRouterEndpoint
	if endpoint == "" {
		endpoint = defaultOpenRouterEndpoint
	}
	title := opts.Title
	if title == "" {
		title = defaultTitle
	}
	referer := opts.Referer

	return &providers.Descriptor{
		ID:             OpenRouterID,
		Label:          "OpenRouter",
		Endpoint:       endpoint,
		CredentialHint: "sk-or-v1-...",
		Models: []providers.ModelOption{
			{ID: "meta-llama/llama-3.1-8b-instruct:free", Label: "Llama 3.1 8B Instruct (free)"},
			{ID: "mistralai/mistral-7b-instruct:free", Label: "Mistral 7B Instruct (free)"},
		},
		BuildHeaders: func(credential string) http.Header {
			h := BearerHeaders(credential)
			if referer != "" {
				h.Set("HTTP-Referer", referer)
			}
			h.Set("X-Title", title)
			return h
		},
		BuildPayload:      BuildPayload,
		NormalizeResponse: NormalizeResponse,
	}
}

// HuggingFace returns the Hugging Face router descriptor
func HuggingFace(opts Options) *providers.Descriptor {
	endpoint := opts.HuggingFaceEndpoint
	if endpoint == "" {
		endpoint = defaultHuggingFaceEndpoint
	}

	return &providers.Descriptor{
		ID:             HuggingFaceID,
		Label:          "Hugging Face",
		Endpoint:       endpoint,
		CredentialHint: "hf_...",
		Models: []providers.ModelOption{
			{ID: "meta-llama/Llama-3.1-8B-Instruct", Label: "Llama 3.1 8B Instruct"},
			{ID: "mistralai/Mistral-7B-Instruct-v0.3", Label: "Mistral 7B Instruct v0.3"},
		},
		BuildHeaders:      BearerHeaders,
		BuildPayload:      BuildPayload,
		NormalizeResponse: NormalizeResponse,
	}
}

// NewDefaultRegistry registers the reference providers in fallback order:
// OpenRouter first, then Hugging Face.
func NewDefaultRegistry(opts Options) (*providers.Registry, error) {
	registry := providers.NewRegistry()

	for _, d := range []*providers.Descriptor{OpenRouter(opts), HuggingFace(opts)} {
		if err := registry.Register(d); err != nil {
			return nil, fmt.Errorf("failed to register provider %s: %w", d.ID, err)
		}
	}

	return registry, nil
}
