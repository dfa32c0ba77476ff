package cli

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/upb/llm-chat-client/internal/observability"
	"github.com/upb/llm-chat-client/services"
	"github.com/upb/llm-chat-client/services/chat"
	"github.com/upb/llm-chat-client/services/dispatch"
	"github.com/upb/llm-chat-client/services/providers"
	"github.com/upb/llm-chat-client/services/providers/openaicompat"
	"github.com/upb/llm-chat-client/services/settings"
)

type stubDispatcher struct {
	result *dispatch.Result
	err    error
	calls  int
}

func (d *stubDispatcher) Send(_ context.Context, _ []providers.Turn, _, _ string, _ dispatch.SettingsAccessor) (*dispatch.Result, error) {
	d.calls++
	return d.result, d.err
}

// scriptedReader replays lines then reports EOF
type scriptedReader struct {
	lines   []string
	history []string
}

func (s *scriptedReader) Prompt(string) (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

func (s *scriptedReader) AppendHistory(item string) {
	s.history = append(s.history, item)
}

func newTestREPL(t *testing.T, d *stubDispatcher, opts ...Option) (*REPL, *chat.Session, *bytes.Buffer) {
	t.Helper()
	registry, err := openaicompat.NewDefaultRegistry(openaicompat.Options{})
	require.NoError(t, err)

	store := settings.NewFileStore(filepath.Join(t.TempDir(), "settings.toml"), nil)
	session, err := chat.NewSession(registry, d, store)
	require.NoError(t, err)

	var out bytes.Buffer
	return New(session, registry, &out, opts...), session, &out
}

func TestREPL_SendMessage(t *testing.T) {
	d := &stubDispatcher{result: &dispatch.Result{
		Turn:     providers.Turn{Role: providers.RoleAssistant, Content: "Hello there"},
		Provider: openaicompat.HuggingFaceID,
		Model:    "meta-llama/Llama-3.1-8B-Instruct",
		FellBack: true,
	}}
	repl, session, out := newTestREPL(t, d)

	assert.True(t, repl.Execute(context.Background(), "/key sk-or-v1-1234567890"))
	assert.Contains(t, out.String(), "7890")
	assert.NotContains(t, out.String(), "sk-or-v1-1234567890")

	assert.True(t, repl.Execute(context.Background(), "Hi"))
	assert.Equal(t, 1, d.calls)
	assert.Contains(t, out.String(), "Hello there")
	assert.Contains(t, out.String(), "Served by Hugging Face")
	assert.Len(t, session.History(), 2)
}

func TestREPL_SendWithoutKey(t *testing.T) {
	d := &stubDispatcher{}
	repl, _, out := newTestREPL(t, d)

	repl.Execute(context.Background(), "Hi")
	assert.Equal(t, 0, d.calls)
	assert.Contains(t, out.String(), "Missing API key for the selected provider.")
	assert.Contains(t, out.String(), "Use /provider, /model or /key")
}

func TestREPL_SendExhausted(t *testing.T) {
	last := providers.NewProviderError(openaicompat.HuggingFaceID, providers.CodeHTTP,
		"Rate limit hit on the provider. Please wait and retry.", 429, true, nil)
	d := &stubDispatcher{err: services.WrapExhausted(last, openaicompat.HuggingFaceID, 429, 2)}
	repl, session, out := newTestREPL(t, d)
	session.SetCredential("sk-or-v1-1234567890")

	repl.Execute(context.Background(), "Hi")

	assert.Contains(t, out.String(), "Rate limit hit on the provider. Please wait and retry.")
	assert.Contains(t, out.String(), "Tried 2 provider(s); last was Hugging Face (status 429).")
	assert.Equal(t, chat.FailureText, session.History()[1].Content)
}

func TestREPL_SendRejectsPastedKey(t *testing.T) {
	d := &stubDispatcher{}
	repl, session, out := newTestREPL(t, d)
	session.SetCredential("sk-or-v1-1234567890")

	repl.Execute(context.Background(), "use hf_abcdefghijklmnopqrstuvwxyz0123456789")

	assert.Equal(t, 0, d.calls)
	assert.Contains(t, out.String(), "Use /key to set credentials instead.")
	assert.Contains(t, out.String(), "The message was not sent.")
	assert.Empty(t, session.History())
}

func TestREPL_ProviderAndModelCommands(t *testing.T) {
	repl, session, out := newTestREPL(t, &stubDispatcher{})
	ctx := context.Background()

	repl.Execute(ctx, "/provider huggingface")
	assert.Equal(t, openaicompat.HuggingFaceID, session.Provider())
	assert.Contains(t, out.String(), "No API key stored for Hugging Face")

	repl.Execute(ctx, "/model mistralai/Mistral-7B-Instruct-v0.3")
	assert.Equal(t, "mistralai/Mistral-7B-Instruct-v0.3", session.Model())

	out.Reset()
	repl.Execute(ctx, "/models")
	assert.Contains(t, out.String(), "* mistralai/Mistral-7B-Instruct-v0.3")

	out.Reset()
	repl.Execute(ctx, "/providers")
	assert.Contains(t, out.String(), "* huggingface")

	out.Reset()
	repl.Execute(ctx, "/provider nope")
	assert.Contains(t, out.String(), "Unsupported provider selected.")

	out.Reset()
	repl.Execute(ctx, "/model")
	assert.Contains(t, out.String(), "Usage: /model <id>")
}

func TestREPL_Commands(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		cont     bool
	}{
		{"help", "/help", "/provider <id>", true},
		{"history empty", "/history", "No messages yet", true},
		{"clear", "/clear", "Conversation cleared", true},
		{"save", "/save", "Settings saved", true},
		{"stats disabled", "/stats", "Metrics are disabled", true},
		{"unknown", "/bogus", "Unknown command /bogus", true},
		{"quit", "/quit", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repl, _, out := newTestREPL(t, &stubDispatcher{})
			assert.Equal(t, tt.cont, repl.Execute(context.Background(), tt.input))
			assert.Contains(t, out.String(), tt.expected)
		})
	}
}

func TestREPL_Stats(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewPromMetrics("chat", reg)
	require.NoError(t, err)
	metrics.RecordAttempt("openrouter", observability.OutcomeSuccess, time.Millisecond)

	repl, _, out := newTestREPL(t, &stubDispatcher{}, WithGatherer(reg))
	repl.Execute(context.Background(), "/stats")

	assert.Contains(t, out.String(), "chat_dispatch_attempts_total{outcome=success,provider=openrouter} 1")
}

func TestREPL_Loop(t *testing.T) {
	d := &stubDispatcher{result: &dispatch.Result{
		Turn:     providers.Turn{Role: providers.RoleAssistant, Content: "pong"},
		Provider: openaicompat.OpenRouterID,
	}}
	repl, session, out := newTestREPL(t, d)

	reader := &scriptedReader{lines: []string{"/key sk-secret", "", "ping", "/history", "/quit", "never"}}
	require.NoError(t, repl.Loop(context.Background(), reader))

	assert.Equal(t, 1, d.calls)
	assert.Contains(t, out.String(), "you: ping")
	assert.Equal(t, []string{"ping", "/history", "/quit"}, reader.history)
	assert.Len(t, session.History(), 2)
}

func TestREPL_LoopEOF(t *testing.T) {
	repl, _, _ := newTestREPL(t, &stubDispatcher{})
	assert.NoError(t, repl.Loop(context.Background(), &scriptedReader{}))
}

func TestMaskCredential(t *testing.T) {
	assert.Equal(t, "****", maskCredential("abcd"))
	assert.Equal(t, "hf_a***mnop", maskCredential("hf_abcdmnop"))
}
