package app

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/upb/llm-chat-client/config"
	"github.com/upb/llm-chat-client/internal/observability"
	"github.com/upb/llm-chat-client/services/chat"
	"github.com/upb/llm-chat-client/services/dispatch"
	"github.com/upb/llm-chat-client/services/providers"
	"github.com/upb/llm-chat-client/services/providers/openaicompat"
	"github.com/upb/llm-chat-client/services/settings"
	"go.uber.org/zap"
)

// metricsNamespace prefixes every exported metric
const metricsNamespace = "chat"

// Dependencies holds all application dependencies.
// This is the central wiring point for dependency injection.
type Dependencies struct {
	// Infrastructure
	Config *config.Config
	Logger *zap.Logger

	// Metrics is nil when metrics are disabled
	Metrics         *observability.PromMetrics
	MetricsRegistry *prometheus.Registry

	// Provider Registry
	Registry *providers.Registry

	// Settings
	Settings *settings.FileStore
	Env      *settings.EnvAccessor

	// Services
	Dispatcher *dispatch.Service
	Session    *chat.Session
}

// Option customizes dependency wiring
type Option func(*wiring)

type wiring struct {
	client dispatch.HTTPDoer
	notice dispatch.FallbackNotice
}

// WithHTTPClient replaces the outbound HTTP client
func WithHTTPClient(client dispatch.HTTPDoer) Option {
	return func(w *wiring) { w.client = client }
}

// WithFallbackNotice receives a call whenever a fallback provider served a reply
func WithFallbackNotice(notice dispatch.FallbackNotice) Option {
	return func(w *wiring) { w.notice = notice }
}

// NewDependencies creates and wires up all application dependencies.
func NewDependencies(ctx context.Context, cfg *config.Config, logger *zap.Logger, opts ...Option) (*Dependencies, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	w := &wiring{client: &http.Client{Timeout: cfg.HTTP.Timeout}}
	for _, opt := range opts {
		opt(w)
	}

	deps := &Dependencies{
		Config: cfg,
		Logger: logger,
	}

	// Initialize provider registry
	if err := deps.initProviders(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize providers: %w", err)
	}

	// Initialize settings store
	if err := deps.initSettings(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize settings: %w", err)
	}

	// Initialize metrics
	if err := deps.initMetrics(cfg); err != nil {
		return nil, fmt.Errorf("failed to initialize metrics: %w", err)
	}

	// Initialize dispatcher and session
	if err := deps.initServices(cfg, w); err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	logger.Info("all dependencies initialized successfully",
		zap.Strings("providers", deps.Registry.ListIDs()),
		zap.String("settings", cfg.Chat.SettingsPath))
	return deps, nil
}

// initProviders registers the reference providers with configured endpoints
func (d *Dependencies) initProviders(cfg *config.Config) error {
	registry, err := openaicompat.NewDefaultRegistry(openaicompat.Options{
		OpenRouterEndpoint:  cfg.Providers.OpenRouter.Endpoint,
		HuggingFaceEndpoint: cfg.Providers.HuggingFace.Endpoint,
		Referer:             cfg.HTTP.Referer,
		Title:               cfg.HTTP.Title,
	})
	if err != nil {
		return err
	}

	for _, id := range registry.ListIDs() {
		d.Logger.Debug("provider registered", zap.String("provider", id))
	}

	d.Registry = registry
	return nil
}

// initSettings loads the settings file and the environment overlay
func (d *Dependencies) initSettings(cfg *config.Config) error {
	store := settings.NewFileStore(cfg.Chat.SettingsPath, d.Logger)
	if err := store.Load(); err != nil {
		return err
	}

	d.Settings = store
	d.Env = settings.NewEnvAccessor(cfg.Providers.Credentials(), cfg.Providers.Models())
	return nil
}

func (d *Dependencies) initMetrics(cfg *config.Config) error {
	if !cfg.Observability.MetricsEnabled {
		return nil
	}

	reg := prometheus.NewRegistry()
	metrics, err := observability.NewPromMetrics(metricsNamespace, reg)
	if err != nil {
		return err
	}

	d.Metrics = metrics
	d.MetricsRegistry = reg
	d.Logger.Info("metrics enabled")
	return nil
}

func (d *Dependencies) initServices(cfg *config.Config, w *wiring) error {
	dispatchOpts := []dispatch.Option{
		dispatch.WithHTTPClient(w.client),
		dispatch.WithLogger(d.Logger.Named("dispatch")),
	}
	if d.Metrics != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithMetrics(d.Metrics))
	}
	if w.notice != nil {
		dispatchOpts = append(dispatchOpts, dispatch.WithFallbackNotice(w.notice))
	}
	d.Dispatcher = dispatch.NewService(d.Registry, dispatchOpts...)

	session, err := chat.NewSession(d.Registry, d.Dispatcher, d.Settings,
		chat.WithLogger(d.Logger.Named("chat")),
		chat.WithSystemPrompt(cfg.Chat.SystemPrompt),
		chat.WithDefaultProvider(cfg.Chat.DefaultProvider),
		chat.WithEnvSettings(d.Env))
	if err != nil {
		return err
	}

	d.Session = session
	return nil
}

// Close flushes the logger. Settings are only written on send or explicit save.
func (d *Dependencies) Close(ctx context.Context) error {
	if d.Logger != nil {
		d.Logger.Debug("shutting down dependencies")
		_ = d.Logger.Sync()
	}
	return nil
}
