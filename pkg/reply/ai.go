package reply

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/entrhq/livecontrol/pkg/llm"
	"github.com/entrhq/livecontrol/pkg/logging"
	"github.com/entrhq/livecontrol/pkg/types"
)

const (
	// DefaultSystemPrompt is used when no prompt is configured.
	DefaultSystemPrompt = "You are the host of a live shopping stream. Answer viewer comments " +
		"in one short, friendly sentence in the viewer's language. Never invent prices or stock levels."

	// DefaultContextTokens bounds the prompt sent for each reply.
	DefaultContextTokens = 2000

	maxHistory = 40
)

// AIGenerator drafts replies with a language model, carrying recent
// exchanges as context within a token budget.
type AIGenerator struct {
	provider     llm.Provider
	systemPrompt string
	budget       int
	counter      Counter
	log          *logging.Logger

	mu      sync.Mutex
	history []*types.Message
}

// AIOption configures an AIGenerator.
type AIOption func(*AIGenerator)

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) AIOption {
	return func(g *AIGenerator) {
		if prompt != "" {
			g.systemPrompt = prompt
		}
	}
}

// WithContextTokens sets the prompt token budget.
func WithContextTokens(n int) AIOption {
	return func(g *AIGenerator) {
		if n > 0 {
			g.budget = n
		}
	}
}

// WithCounter sets the token counter. Without one, a tiktoken encoding
// is loaded and estimates are used if that fails.
func WithCounter(c Counter) AIOption {
	return func(g *AIGenerator) {
		g.counter = c
	}
}

// WithAILogger sets the logger.
func WithAILogger(l *logging.Logger) AIOption {
	return func(g *AIGenerator) {
		g.log = l
	}
}

// NewAIGenerator creates a generator backed by provider.
func NewAIGenerator(provider llm.Provider, opts ...AIOption) *AIGenerator {
	g := &AIGenerator{
		provider:     provider,
		systemPrompt: DefaultSystemPrompt,
		budget:       DefaultContextTokens,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.counter == nil {
		tok, err := NewTokenizer()
		if err != nil {
			g.log.Warnf("tokenizer unavailable, estimating prompt size: %v", err)
			g.counter = estimate{}
		} else {
			g.counter = tok
		}
	}
	return g
}

// Generate asks the model for a reply to msg.
func (g *AIGenerator) Generate(ctx context.Context, msg types.LiveMessage) (string, error) {
	user := types.NewUserMessage(fmt.Sprintf("%s: %s", msg.Nickname, msg.Content))

	g.mu.Lock()
	prompt := g.buildPrompt(user)
	g.mu.Unlock()

	answer, err := g.provider.Complete(ctx, prompt)
	if err != nil {
		return "", fmt.Errorf("ai reply: %w", err)
	}
	text := strings.TrimSpace(answer.Content)
	if text == "" {
		return "", nil
	}

	g.mu.Lock()
	g.history = append(g.history, user, types.NewAssistantMessage(text))
	if over := len(g.history) - maxHistory; over > 0 {
		g.history = g.history[over:]
	}
	g.mu.Unlock()

	return text, nil
}

// buildPrompt keeps the newest history that fits the budget next to the
// system prompt and the new comment. Exchanges are dropped in pairs.
// Caller holds g.mu.
func (g *AIGenerator) buildPrompt(user *types.Message) []*types.Message {
	system := types.NewSystemMessage(g.systemPrompt)
	fixed := countMessages(g.counter, []*types.Message{system, user})

	history := g.history
	for len(history) >= 2 && fixed+countMessages(g.counter, history) > g.budget {
		history = history[2:]
	}
	if fixed+countMessages(g.counter, history) > g.budget {
		history = nil
	}

	prompt := make([]*types.Message, 0, len(history)+2)
	prompt = append(prompt, system)
	prompt = append(prompt, history...)
	return append(prompt, user)
}

// Reset forgets the conversation history.
func (g *AIGenerator) Reset() {
	g.mu.Lock()
	g.history = nil
	g.mu.Unlock()
}
