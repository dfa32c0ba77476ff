package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"

	"github.com/peterh/liner"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/upb/llm-chat-client/services"
	"github.com/upb/llm-chat-client/services/chat"
	"github.com/upb/llm-chat-client/services/dispatch"
	"github.com/upb/llm-chat-client/services/prompt"
	"github.com/upb/llm-chat-client/services/providers"
	"go.uber.org/zap"
)

// Chatter is the part of chat.Session the REPL drives
type Chatter interface {
	Send(ctx context.Context, text string) (*dispatch.Result, error)
	Provider() string
	Model() string
	HasCredential() bool
	SelectProvider(providerID string) error
	SelectModel(model string) error
	SetCredential(credential string)
	Save() error
	History() []providers.Turn
	Reset() error
}

// LineReader reads one line of input. *liner.State satisfies it.
type LineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
}

// REPL is an interactive chat loop with slash commands
type REPL struct {
	session  Chatter
	registry *providers.Registry
	out      io.Writer
	render   Renderer
	gatherer prometheus.Gatherer
	logger   *zap.Logger
}

// Option configures a REPL
type Option func(*REPL)

// WithRenderer sets the reply renderer
func WithRenderer(render Renderer) Option {
	return func(r *REPL) { r.render = render }
}

// WithGatherer enables /stats from the given metrics registry
func WithGatherer(g prometheus.Gatherer) Option {
	return func(r *REPL) { r.gatherer = g }
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) Option {
	return func(r *REPL) { r.logger = logger }
}

// New creates a REPL writing to out
func New(session Chatter, registry *providers.Registry, out io.Writer, opts ...Option) *REPL {
	r := &REPL{
		session:  session,
		registry: registry,
		out:      out,
		render:   PlainRenderer,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run reads lines until /quit, EOF or Ctrl+C at the prompt
func (r *REPL) Run(ctx context.Context) error {
	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)
	line.SetCompleter(r.complete)

	return r.Loop(ctx, line)
}

// Loop drives the REPL from reader
func (r *REPL) Loop(ctx context.Context, reader LineReader) error {
	r.printBanner()

	for {
		if err := ctx.Err(); err != nil {
			return nil
		}

		input, err := reader.Prompt(r.prompt())
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				fmt.Fprintln(r.out)
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if !strings.HasPrefix(input, "/key") {
			reader.AppendHistory(input)
		}

		if !r.Execute(ctx, input) {
			return nil
		}
	}
}

// Execute handles one line of input and reports whether the loop should continue
func (r *REPL) Execute(ctx context.Context, input string) bool {
	if !strings.HasPrefix(input, "/") {
		r.send(ctx, input)
		return true
	}

	fields := strings.Fields(input)
	cmd, args := strings.ToLower(fields[0]), fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return false
	case "/help":
		r.printHelp()
	case "/providers":
		r.printProviders()
	case "/provider":
		r.selectProvider(args)
	case "/models":
		r.printModels()
	case "/model":
		r.selectModel(args)
	case "/key":
		r.setKey(args)
	case "/save":
		r.save()
	case "/history":
		r.printHistory()
	case "/clear":
		r.clear()
	case "/stats":
		r.printStats()
	default:
		r.errorf("Unknown command %s. Type /help for a list of commands.", cmd)
	}
	return true
}

func (r *REPL) send(ctx context.Context, text string) {
	reqCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	fmt.Fprintln(r.out, dimStyle.Render(chat.PlaceholderText))

	result, err := r.session.Send(reqCtx, text)
	if err != nil {
		r.sendFailed(err)
		return
	}

	if result.FellBack {
		fmt.Fprintln(r.out, warningStyle.Render(fmt.Sprintf(
			"Primary provider unavailable. Served by %s (%s).", r.label(result.Provider), result.Model)))
	}

	fmt.Fprintln(r.out, assistantStyle.Render("assistant:"))
	fmt.Fprint(r.out, r.render(strings.TrimSpace(result.Turn.Content)))
}

func (r *REPL) sendFailed(err error) {
	details := services.GetErrorDetails(err)
	r.logger.Debug("send failed",
		zap.String("type", string(services.GetErrorType(err))),
		zap.Any("details", details),
		zap.String("error", prompt.RedactCredentials(err.Error())))

	r.errorf("%s", chat.UserMessage(err))

	switch {
	case errors.Is(err, services.ErrCredentialInMessage):
		r.infof("The message was not sent.")
	case services.IsConfigurationError(err):
		r.infof("Use /provider, /model or /key to update the selection.")
	case services.IsExhaustedError(err) && details[services.DetailProvider] != nil:
		r.warnf("Tried %v provider(s); last was %s (status %v).",
			details[services.DetailAttempts],
			r.label(fmt.Sprint(details[services.DetailProvider])),
			details[services.DetailStatus])
	}
}

func (r *REPL) selectProvider(args []string) {
	if len(args) != 1 {
		r.errorf("Usage: /provider <id>")
		return
	}
	if err := r.session.SelectProvider(args[0]); err != nil {
		r.errorf("%s", chat.UserMessage(err))
		return
	}
	r.infof("Provider set to %s, model %s.", r.label(r.session.Provider()), r.session.Model())
	if !r.session.HasCredential() {
		r.warnf("No API key stored for %s. Use /key <credential>.", r.label(r.session.Provider()))
	}
}

func (r *REPL) selectModel(args []string) {
	if len(args) != 1 {
		r.errorf("Usage: /model <id>")
		return
	}
	if err := r.session.SelectModel(args[0]); err != nil {
		r.errorf("%s", chat.UserMessage(err))
		return
	}
	r.infof("Model set to %s.", r.session.Model())
}

func (r *REPL) setKey(args []string) {
	if len(args) != 1 {
		r.errorf("Usage: /key <credential>")
		return
	}
	r.session.SetCredential(args[0])
	r.infof("API key set for %s (%s).", r.label(r.session.Provider()), maskCredential(args[0]))
}

func (r *REPL) save() {
	if err := r.session.Save(); err != nil {
		r.errorf("Failed to save settings: %v", err)
		return
	}
	r.infof("Settings saved")
}

func (r *REPL) clear() {
	if err := r.session.Reset(); err != nil {
		r.errorf("%s", chat.UserMessage(err))
		return
	}
	r.infof("Conversation cleared")
}

func (r *REPL) printBanner() {
	fmt.Fprintln(r.out, highlightStyle.Render("LLM chat")+dimStyle.Render("  type /help for commands"))
	if !r.session.HasCredential() {
		r.warnf("No API key stored for %s. Use /key <credential>.", r.label(r.session.Provider()))
	}
}

func (r *REPL) printHelp() {
	help := [][2]string{
		{"/providers", "list providers"},
		{"/provider <id>", "select the primary provider"},
		{"/models", "list models of the selected provider"},
		{"/model <id>", "select a model"},
		{"/key <credential>", "set the API key of the selected provider"},
		{"/save", "persist provider, key and model"},
		{"/history", "show the conversation"},
		{"/clear", "start a new conversation"},
		{"/stats", "show dispatch metrics"},
		{"/quit", "exit"},
	}
	for _, h := range help {
		fmt.Fprintf(r.out, "  %-20s %s\n", highlightStyle.Render(h[0]), dimStyle.Render(h[1]))
	}
}

func (r *REPL) printProviders() {
	for _, id := range r.registry.ListIDs() {
		marker := "  "
		if id == r.session.Provider() {
			marker = "* "
		}
		fmt.Fprintf(r.out, "%s%s %s\n", marker, id, dimStyle.Render(r.label(id)))
	}
}

func (r *REPL) printModels() {
	models, err := r.registry.Models(r.session.Provider())
	if err != nil {
		r.errorf("%v", err)
		return
	}
	for _, m := range models {
		marker := "  "
		if m.ID == r.session.Model() {
			marker = "* "
		}
		fmt.Fprintf(r.out, "%s%s %s\n", marker, m.ID, dimStyle.Render(m.Label))
	}
}

func (r *REPL) printHistory() {
	history := r.session.History()
	if len(history) == 0 {
		r.infof("No messages yet")
		return
	}
	for _, turn := range history {
		switch turn.Role {
		case providers.RoleUser:
			fmt.Fprintf(r.out, "%s %s\n", userStyle.Render("you:"), turn.Content)
		default:
			fmt.Fprintf(r.out, "%s %s\n", assistantStyle.Render("assistant:"), turn.Content)
		}
	}
}

func (r *REPL) printStats() {
	if r.gatherer == nil {
		r.infof("Metrics are disabled. Set METRICS_ENABLED=true.")
		return
	}

	families, err := r.gatherer.Gather()
	if err != nil {
		r.errorf("Failed to gather metrics: %v", err)
		return
	}

	var lines []string
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			if m.GetCounter() == nil {
				continue
			}
			labels := make([]string, 0, len(m.GetLabel()))
			for _, lp := range m.GetLabel() {
				labels = append(labels, lp.GetName()+"="+lp.GetValue())
			}
			lines = append(lines, fmt.Sprintf("%s{%s} %.0f",
				mf.GetName(), strings.Join(labels, ","), m.GetCounter().GetValue()))
		}
	}
	sort.Strings(lines)

	if len(lines) == 0 {
		r.infof("No requests yet")
		return
	}
	for _, l := range lines {
		fmt.Fprintln(r.out, l)
	}
}

func (r *REPL) complete(line string) []string {
	var out []string
	for _, c := range []string{"/help", "/providers", "/provider ", "/models", "/model ", "/key ", "/save", "/history", "/clear", "/stats", "/quit"} {
		if strings.HasPrefix(c, line) {
			out = append(out, c)
		}
	}
	return out
}

func (r *REPL) prompt() string {
	return promptStyle.Render(fmt.Sprintf("%s> ", r.session.Provider()))
}

func (r *REPL) label(id string) string {
	d, err := r.registry.Get(id)
	if err != nil {
		return id
	}
	return d.Label
}

func (r *REPL) infof(format string, args ...interface{}) {
	fmt.Fprintln(r.out, dimStyle.Render(fmt.Sprintf(format, args...)))
}

func (r *REPL) warnf(format string, args ...interface{}) {
	fmt.Fprintln(r.out, warningStyle.Render(fmt.Sprintf(format, args...)))
}

func (r *REPL) errorf(format string, args ...interface{}) {
	fmt.Fprintln(r.out, errorStyle.Render("Error:")+" "+fmt.Sprintf(format, args...))
}

// maskCredential keeps the first and last four characters
func maskCredential(credential string) string {
	if len(credential) <= 8 {
		return strings.Repeat("*", len(credential))
	}
	return credential[:4] + strings.Repeat("*", len(credential)-8) + credential[len(credential)-4:]
}
