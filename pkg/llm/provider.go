// Package llm provides abstractions for the language model used to draft
// comment replies.
//
// Example usage:
//
//	provider, err := openai.NewProvider(
//	    os.Getenv("OPENAI_API_KEY"),
//	    openai.WithModel("gpt-4o-mini"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	reply, err := provider.Complete(ctx, []*types.Message{
//	    types.NewSystemMessage("You host a live shopping stream."),
//	    types.NewUserMessage("Does this come in red?"),
//	})
package llm

import (
	"context"

	"github.com/entrhq/livecontrol/pkg/types"
)

// Provider defines the interface for LLM integrations.
type Provider interface {
	// Complete sends the conversation and returns the assistant message.
	Complete(ctx context.Context, messages []*types.Message) (*types.Message, error)

	// GetModel returns the model name used for completions.
	GetModel() string
}
