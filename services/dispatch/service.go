package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/upb/llm-chat-client/internal/observability"
	"github.com/upb/llm-chat-client/services"
	"github.com/upb/llm-chat-client/services/prompt"
	"github.com/upb/llm-chat-client/services/providers"
	"github.com/upb/llm-chat-client/utils"
	"go.uber.org/zap"
)

// ErrResponseTooLarge is the cause of a format error for a body over the read limit
var ErrResponseTooLarge = errors.New("response body exceeds the size limit")

const (
	defaultTimeout          = 60 * time.Second
	defaultMaxResponseBytes = 4 << 20
)

// SettingsAccessor exposes stored credentials and model preferences.
// Lookups must be synchronous and free of side effects.
type SettingsAccessor interface {
	Credential(providerID string) (string, bool)
	PreferredModel(providerID string) (string, bool)
}

// HTTPDoer is satisfied by *http.Client
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// FallbackNotice is called when a reply was served by a provider other than the primary
type FallbackNotice func(providerID, model string)

// Result is the outcome of a successful Send
type Result struct {
	// Turn is the normalized assistant reply
	Turn providers.Turn

	// Provider that served the reply
	Provider string

	// Model that served the reply
	Model string

	// FellBack is true when Provider is not the requested primary
	FellBack bool

	// Attempts is the number of HTTP requests issued
	Attempts int
}

// Service sends a conversation to the primary provider and falls back to
// other configured providers on auth, rate-limit, server, transport and
// format failures. Attempts are strictly sequential.
type Service struct {
	registry         *providers.Registry
	client           HTTPDoer
	logger           *zap.Logger
	metrics          observability.DispatchMetrics
	notice           FallbackNotice
	maxResponseBytes int64
}

// Option configures a Service
type Option func(*Service)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(client HTTPDoer) Option {
	return func(s *Service) { s.client = client }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the metrics sink
func WithMetrics(metrics observability.DispatchMetrics) Option {
	return func(s *Service) { s.metrics = metrics }
}

// WithFallbackNotice sets the fallback notice sink
func WithFallbackNotice(notice FallbackNotice) Option {
	return func(s *Service) { s.notice = notice }
}

// WithMaxResponseBytes caps how much of a response body is read
func WithMaxResponseBytes(n int64) Option {
	return func(s *Service) { s.maxResponseBytes = n }
}

// NewService creates a new dispatch service
func NewService(registry *providers.Registry, opts ...Option) *Service {
	s := &Service{
		registry:         registry,
		client:           &http.Client{Timeout: defaultTimeout},
		logger:           zap.NewNop(),
		metrics:          observability.NopMetrics{},
		maxResponseBytes: defaultMaxResponseBytes,
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if s.metrics == nil {
		s.metrics = observability.NopMetrics{}
	}

	return s
}

// Send obtains an assistant reply for the conversation. The conversation is
// treated as a read-only snapshot; loading turns are never sent.
func (s *Service) Send(ctx context.Context, conversation []providers.Turn, primaryID, primaryModel string, settings SettingsAccessor) (*Result, error) {
	if _, err := s.registry.Get(primaryID); err != nil {
		return nil, fmt.Errorf("%w: %s", services.ErrUnsupportedProvider, primaryID)
	}
	if strings.TrimSpace(primaryModel) == "" {
		return nil, services.ErrMissingModel
	}

	for i, turn := range conversation {
		if turn.Loading {
			continue
		}
		if err := utils.ValidateStruct(turn); err != nil {
			domainErr := services.NewDomainError(services.ErrorTypeValidation, fmt.Sprintf("invalid turn at index %d", i), err).
				WithDetail(services.DetailTurnIndex, i)
			if utils.IsValidationError(err) {
				domainErr.WithDetail(services.DetailFields, utils.GetValidationFields(err))
			}
			return nil, domainErr
		}
	}

	messages := providers.SendableMessages(conversation)
	if len(messages) == 0 {
		return nil, services.ErrEmptyConversation
	}

	if settings == nil {
		settings = emptySettings{}
	}

	logger := s.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.String("primary_provider", primaryID))

	var lastErr error
	var lastProvider string
	attempts := 0

	for _, id := range s.registry.AttemptOrder(primaryID) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		descriptor, err := s.registry.Get(id)
		if err != nil {
			return nil, err
		}

		credential, ok := settings.Credential(id)
		credential = strings.TrimSpace(credential)
		if !ok || credential == "" {
			s.metrics.RecordSkip(id)
			logger.Debug("skipping unconfigured provider", zap.String("provider", id))
			continue
		}

		isPrimary := id == primaryID
		model := s.resolveModel(descriptor, isPrimary, primaryModel, settings)

		attempts++
		start := time.Now()
		turn, err := s.attempt(ctx, logger, descriptor, credential, model, messages)
		s.metrics.RecordAttempt(id, attemptOutcome(err), time.Since(start))

		if err == nil {
			result := &Result{
				Turn:     turn,
				Provider: id,
				Model:    model,
				FellBack: !isPrimary,
				Attempts: attempts,
			}

			if result.FellBack {
				s.metrics.RecordFallback(id)
				logger.Info("reply served by fallback provider",
					zap.String("provider", id),
					zap.String("model", model))
				if s.notice != nil {
					s.notice(id, model)
				}
			}

			return result, nil
		}

		lastErr = err
		lastProvider = id

		if !providers.IsFallbackEligible(err) {
			logger.Warn("provider failed with terminal error",
				zap.String("provider", id),
				zap.Int("status", providers.StatusCode(err)),
				redactedError(err))
			return nil, err
		}

		logger.Warn("provider failed, trying next candidate",
			zap.String("provider", id),
			zap.Int("status", providers.StatusCode(err)),
			redactedError(err))
	}

	if lastErr == nil {
		return nil, services.ErrNoConfiguredProvider
	}

	return nil, services.WrapExhausted(lastErr, lastProvider, providers.StatusCode(lastErr), attempts)
}

// attemptOutcome maps the result of one attempt to its metrics label
func attemptOutcome(err error) string {
	switch {
	case err == nil:
		return observability.OutcomeSuccess
	case providers.IsTransportError(err):
		return observability.OutcomeTransport
	case providers.IsFormatError(err):
		return observability.OutcomeFormat
	case providers.IsFallbackEligible(err):
		return observability.OutcomeFallback
	default:
		return observability.OutcomeTerminal
	}
}

// redactedError logs err with any credential it echoes replaced by a marker
func redactedError(err error) zap.Field {
	return zap.String("error", prompt.RedactCredentials(err.Error()))
}

// resolveModel uses the requested model for the primary and the stored or
// default catalog model for fallbacks.
func (s *Service) resolveModel(d *providers.Descriptor, isPrimary bool, primaryModel string, settings SettingsAccessor) string {
	if isPrimary {
		return primaryModel
	}
	if model, ok := settings.PreferredModel(d.ID); ok && strings.TrimSpace(model) != "" {
		return model
	}
	return d.DefaultModel()
}

// attempt performs one HTTP call and classifies the outcome
func (s *Service) attempt(ctx context.Context, logger *zap.Logger, d *providers.Descriptor, credential, model string, messages []providers.Message) (providers.Turn, error) {
	payload, err := d.BuildPayload(model, messages)
	if err != nil {
		return providers.Turn{}, providers.NewProviderError(d.ID, providers.CodeRequest, "Failed to build request", 0, false, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return providers.Turn{}, providers.NewProviderError(d.ID, providers.CodeRequest, "Failed to create request", 0, false, err)
	}
	for k, values := range d.BuildHeaders(credential) {
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}

	logger.Debug("sending request",
		zap.String("provider", d.ID),
		zap.String("model", model),
		zap.Int("messages", len(messages)))

	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return providers.Turn{}, providers.NewProviderError(d.ID, providers.CodeTransport,
			fmt.Sprintf("Network failure while reaching %s. Check connectivity and whether the endpoint accepts requests from this client.", d.Label),
			0, true, err)
	}
	defer resp.Body.Close()

	// One byte past the limit tells a truncated body apart from one that fits exactly
	body, err := io.ReadAll(io.LimitReader(resp.Body, s.maxResponseBytes+1))
	if err != nil {
		return providers.Turn{}, providers.NewProviderError(d.ID, providers.CodeFormat,
			fmt.Sprintf("Failed to read provider response (HTTP %d).", resp.StatusCode),
			resp.StatusCode, true, err)
	}
	if int64(len(body)) > s.maxResponseBytes {
		return providers.Turn{}, providers.NewProviderError(d.ID, providers.CodeFormat,
			fmt.Sprintf("Provider response too large (HTTP %d, over %d bytes).", resp.StatusCode, s.maxResponseBytes),
			resp.StatusCode, true, ErrResponseTooLarge)
	}

	logger.Debug("received response",
		zap.String("provider", d.ID),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)))

	if !json.Valid(body) {
		return providers.Turn{}, providers.NewProviderError(d.ID, providers.CodeFormat,
			fmt.Sprintf("Provider returned non-JSON response (HTTP %d).", resp.StatusCode),
			resp.StatusCode, true, nil)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return providers.Turn{}, statusError(d.ID, resp.StatusCode, body)
	}

	turn, err := d.NormalizeResponse(body)
	if err != nil {
		return providers.Turn{}, providers.NewProviderError(d.ID, providers.CodeFormat,
			"Provider returned an unexpected response format.",
			resp.StatusCode, true, err)
	}

	return turn, nil
}

// statusError builds the error for a non-success HTTP response
func statusError(providerID string, status int, body []byte) *providers.ProviderError {
	providerMessage := extractErrorMessage(body)
	if providerMessage == "" {
		providerMessage = "Unknown provider error."
	}

	message := fmt.Sprintf("Provider error (%d): %s", status, providerMessage)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		message = "Invalid or unauthorized API key. Verify your key and model permissions."
	case http.StatusTooManyRequests:
		message = "Rate limit hit on the provider. Please wait and retry."
	}

	return providers.NewProviderError(providerID, providers.CodeHTTP, message, status, providers.StatusAllowsFallback(status), nil)
}

// extractErrorMessage reads error.message, a string error, or a top-level message
func extractErrorMessage(body []byte) string {
	var envelope struct {
		Error   json.RawMessage `json:"error"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return ""
	}

	if len(envelope.Error) > 0 {
		var nested struct {
			Message string `json:"message"`
		}
		if err := json.Unmarshal(envelope.Error, &nested); err == nil && nested.Message != "" {
			return nested.Message
		}
		var plain string
		if err := json.Unmarshal(envelope.Error, &plain); err == nil && plain != "" {
			return plain
		}
	}

	return envelope.Message
}

type emptySettings struct{}

func (emptySettings) Credential(string) (string, bool)     { return "", false }
func (emptySettings) PreferredModel(string) (string, bool) { return "", false }
