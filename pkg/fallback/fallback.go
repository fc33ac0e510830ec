// Package fallback provides the degraded-mode responder used when the remote
// model cannot answer.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/jllopis/neurosync/pkg/llm"
	"github.com/jllopis/neurosync/pkg/memory"
)

// Unavailable is the reply when no local model is configured.
const Unavailable = "I'm currently unable to process your request due."

// historyTurns is how many of the latest turns go into the prompt.
const historyTurns = 3

// Pinger is implemented by providers that can report reachability.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LocalResponder answers from a local model. It never returns an error:
// failures are rendered into the reply text.
type LocalResponder struct {
	model       llm.Provider
	modelID     string
	temperature float64
	maxTokens   int
	log         *slog.Logger
}

// Option configures a LocalResponder.
type Option func(*LocalResponder)

// WithModelID sets the model name sent with each request.
func WithModelID(id string) Option {
	return func(r *LocalResponder) { r.modelID = id }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) Option {
	return func(r *LocalResponder) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a responder. A nil model yields a responder that always
// answers with Unavailable.
func New(model llm.Provider, opts ...Option) *LocalResponder {
	r := &LocalResponder{
		model:       model,
		temperature: 0.7,
		maxTokens:   200,
		log:         slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Available reports whether a local model is configured.
func (r *LocalResponder) Available() bool {
	return r != nil && r.model != nil
}

// Probe checks the local model when the provider supports it. Providers
// without a health endpoint are assumed reachable.
func (r *LocalResponder) Probe(ctx context.Context) error {
	if !r.Available() {
		return fmt.Errorf("no local model configured")
	}
	if p, ok := r.model.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Prompt renders the last turns of history followed by message.
func Prompt(message string, history []memory.Turn) string {
	if len(history) > historyTurns {
		history = history[len(history)-historyTurns:]
	}
	if len(history) == 0 {
		return fmt.Sprintf("User: %s\nAssistant:", message)
	}
	parts := make([]string, len(history))
	for i, t := range history {
		speaker := "Assistant"
		if t.Role == llm.RoleUser {
			speaker = "User"
		}
		parts[i] = fmt.Sprintf("%s: %s", speaker, t.Content)
	}
	return fmt.Sprintf("%s\nUser: %s\nAssistant:", strings.Join(parts, " "), message)
}

// Generate answers message using up to the last three history turns.
func (r *LocalResponder) Generate(ctx context.Context, message string, history []memory.Turn) string {
	if !r.Available() {
		return Unavailable
	}

	prompt := Prompt(message, history)
	req := llm.UserPrompt(r.modelID, prompt)
	req.Temperature = r.temperature
	req.MaxTokens = r.maxTokens

	resp, err := r.model.Chat(ctx, req)
	if err != nil {
		r.log.Warn("fallback.error", slog.String("error", err.Error()))
		return errorReply(err)
	}
	text := strings.TrimSpace(strings.Replace(resp.Content, prompt, "", 1))
	if text == "" {
		return errorReply(fmt.Errorf("empty reply"))
	}
	return text
}

func errorReply(err error) string {
	return fmt.Sprintf("I encountered an error with the local model: %s. Please try again later.", err.Error())
}
