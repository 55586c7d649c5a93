// Package reply decides what to answer to live comments: configured glob
// rules first, then an optional language model.
package reply

import (
	"context"

	"github.com/entrhq/livecontrol/pkg/types"
)

// Generator produces a reply for a live message. An empty string means no reply.
type Generator interface {
	Generate(ctx context.Context, msg types.LiveMessage) (string, error)
}

// Responder answers comments from rules, falling back to ai when set.
type Responder struct {
	rules *RuleMatcher
	ai    Generator
}

// NewResponder combines a rule matcher and an optional generator. Either may be nil.
func NewResponder(rules *RuleMatcher, ai Generator) *Responder {
	return &Responder{rules: rules, ai: ai}
}

// Generate answers comment messages only; other live events get no reply.
func (r *Responder) Generate(ctx context.Context, msg types.LiveMessage) (string, error) {
	if !msg.IsComment() {
		return "", nil
	}
	if text, ok := r.rules.Match(msg.Content); ok {
		return text, nil
	}
	if r.ai == nil {
		return "", nil
	}
	return r.ai.Generate(ctx, msg)
}

// Enabled reports whether the responder can produce any reply.
func (r *Responder) Enabled() bool {
	return r != nil && (r.rules.Len() > 0 || r.ai != nil)
}
