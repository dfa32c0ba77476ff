package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/upb/llm-chat-client/services"
	"github.com/upb/llm-chat-client/services/dispatch"
	"github.com/upb/llm-chat-client/services/prompt"
	"github.com/upb/llm-chat-client/services/providers"
	"github.com/upb/llm-chat-client/services/settings"
	"go.uber.org/zap"
)

const (
	// PlaceholderText is shown while a reply is pending
	PlaceholderText = "Thinking..."

	// FailureText replaces the placeholder when no reply could be obtained
	FailureText = "I ran into an error while generating a response."
)

// Dispatcher obtains an assistant reply for a conversation
type Dispatcher interface {
	Send(ctx context.Context, conversation []providers.Turn, primaryID, primaryModel string, settings dispatch.SettingsAccessor) (*dispatch.Result, error)
}

// Store is the writable settings store the session persists into
type Store interface {
	settings.Accessor
	SetCredential(providerID, credential string)
	SetPreferredModel(providerID, model string)
	ActiveProvider() string
	SetActiveProvider(providerID string)
	Save() error
}

// Session owns one conversation and the current provider selection
type Session struct {
	registry     *providers.Registry
	dispatcher   Dispatcher
	store        Store
	env          settings.Accessor
	logger       *zap.Logger
	systemPrompt string
	preferred    string

	mu         sync.Mutex
	provider   string
	model      string
	credential string
	history    []providers.Turn
	inFlight   bool
}

// Option configures a Session
type Option func(*Session)

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithSystemPrompt prepends a system instruction to every request
func WithSystemPrompt(prompt string) Option {
	return func(s *Session) { s.systemPrompt = strings.TrimSpace(prompt) }
}

// WithDefaultProvider selects a provider when the store has no active one
func WithDefaultProvider(providerID string) Option {
	return func(s *Session) { s.preferred = providerID }
}

// WithEnvSettings supplies credentials and models used when the store has none
func WithEnvSettings(env settings.Accessor) Option {
	return func(s *Session) { s.env = env }
}

// NewSession creates a session and restores the last provider selection from the store
func NewSession(registry *providers.Registry, dispatcher Dispatcher, store Store, opts ...Option) (*Session, error) {
	if registry == nil || registry.Count() == 0 {
		return nil, errors.New("session requires at least one registered provider")
	}
	if dispatcher == nil {
		return nil, errors.New("session requires a dispatcher")
	}
	if store == nil {
		return nil, errors.New("session requires a settings store")
	}

	s := &Session{
		registry:   registry,
		dispatcher: dispatcher,
		store:      store,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}

	s.restore()
	return s, nil
}

// restore picks the active provider: stored, then configured default, then first registered
func (s *Session) restore() {
	provider := s.store.ActiveProvider()
	if !s.registry.Has(provider) {
		provider = s.preferred
	}
	if !s.registry.Has(provider) {
		provider = s.registry.ListIDs()[0]
	}
	s.applyProvider(provider)
}

// applyProvider loads the credential and model for provider. Caller holds mu or owns s.
func (s *Session) applyProvider(providerID string) {
	s.provider = providerID
	s.credential, _ = s.settings().Credential(providerID)

	descriptor, _ := s.registry.Get(providerID)
	s.model = descriptor.DefaultModel()
	if saved, ok := s.settings().PreferredModel(providerID); ok && descriptor.HasModel(saved) {
		s.model = saved
	}
}

func (s *Session) settings() settings.Chain {
	return settings.Chain{s.store, s.env}
}

// Provider returns the selected provider id
func (s *Session) Provider() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.provider
}

// Model returns the selected model id
func (s *Session) Model() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model
}

// HasCredential reports whether the selected provider has a credential
func (s *Session) HasCredential() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.credential != ""
}

// Waiting reports whether a request is in flight
func (s *Session) Waiting() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inFlight
}

// SelectProvider switches the selected provider and restores its saved model
// when the catalog still offers it.
func (s *Session) SelectProvider(providerID string) error {
	if !s.registry.Has(providerID) {
		return fmt.Errorf("%w: %s", services.ErrUnsupportedProvider, providerID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.applyProvider(providerID)
	return nil
}

// SelectModel selects a model from the current provider's catalog
func (s *Session) SelectModel(model string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.registry.ValidateModel(s.provider, model); err != nil {
		return services.NewDomainError(services.ErrorTypeConfiguration, services.ErrUnsupportedModel.Message, err)
	}
	s.model = model
	return nil
}

// SetCredential sets the credential for the selected provider
func (s *Session) SetCredential(credential string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.credential = strings.TrimSpace(credential)
}

// Save persists the current selection
func (s *Session) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.persist()
}

// persist writes the selection into the store. A credential equal to the one
// supplied by the environment is left out of the file. Caller holds mu.
func (s *Session) persist() error {
	s.store.SetActiveProvider(s.provider)
	if s.credential != "" && s.credential == s.envCredential(s.provider) {
		s.store.SetCredential(s.provider, "")
	} else {
		s.store.SetCredential(s.provider, s.credential)
	}
	s.store.SetPreferredModel(s.provider, s.model)
	return s.store.Save()
}

func (s *Session) envCredential(providerID string) string {
	if s.env == nil {
		return ""
	}
	v, _ := s.env.Credential(providerID)
	return strings.TrimSpace(v)
}

// History returns a copy of the visible conversation
func (s *Session) History() []providers.Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]providers.Turn(nil), s.history...)
}

// Reset clears the conversation
func (s *Session) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inFlight {
		return services.ErrRequestInFlight
	}
	s.history = nil
	return nil
}

// Send appends text as a user turn, waits for the reply and records it.
// On failure the placeholder is replaced with FailureText and the error returned.
func (s *Session) Send(ctx context.Context, text string) (*dispatch.Result, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, services.ErrEmptyMessage
	}
	if prompt.ContainsProviderKey(text) {
		return nil, services.ErrCredentialInMessage
	}

	s.mu.Lock()
	if s.inFlight {
		s.mu.Unlock()
		return nil, services.ErrRequestInFlight
	}
	if s.credential == "" {
		s.mu.Unlock()
		return nil, services.ErrMissingCredential
	}
	if s.model == "" {
		s.mu.Unlock()
		return nil, services.ErrMissingModel
	}

	if err := s.persist(); err != nil {
		s.logger.Warn("failed to persist settings", zap.Error(err))
	}

	s.history = append(s.history,
		providers.Turn{Role: providers.RoleUser, Content: text},
		providers.Turn{Role: providers.RoleAssistant, Content: PlaceholderText, Loading: true})
	placeholder := len(s.history) - 1
	s.inFlight = true

	conversation := s.conversation()
	provider, model := s.provider, s.model
	s.mu.Unlock()

	result, err := s.dispatcher.Send(ctx, conversation, provider, model, s.settings())
	if err == nil && strings.TrimSpace(result.Turn.Content) == "" {
		err = services.ErrEmptyReply
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.inFlight = false

	if err != nil {
		s.history[placeholder] = providers.Turn{Role: providers.RoleAssistant, Content: FailureText}
		s.logger.Warn("chat request failed",
			zap.String("provider", provider),
			zap.String("model", model),
			zap.Error(err))
		return nil, err
	}

	s.history[placeholder] = providers.Turn{
		Role:    providers.RoleAssistant,
		Content: strings.TrimSpace(result.Turn.Content),
	}
	return result, nil
}

// conversation is the request snapshot. Caller holds mu.
func (s *Session) conversation() []providers.Turn {
	turns := make([]providers.Turn, 0, len(s.history)+1)
	if s.systemPrompt != "" {
		turns = append(turns, providers.Turn{Role: providers.RoleSystem, Content: s.systemPrompt})
	}
	return append(turns, s.history...)
}
