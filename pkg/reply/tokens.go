package reply

import (
	"github.com/entrhq/livecontrol/pkg/types"
	"github.com/pkoukk/tiktoken-go"
)

const encodingName = "cl100k_base"

// messageOverhead approximates the per-message framing tokens of chat APIs.
const messageOverhead = 4

// Counter counts prompt tokens.
type Counter interface {
	CountTokens(text string) int
}

// Tokenizer counts tokens with a tiktoken encoding.
type Tokenizer struct {
	enc *tiktoken.Tiktoken
}

// NewTokenizer loads the cl100k_base encoding. Loading may need network
// access the first time; callers fall back to estimates when it fails.
func NewTokenizer() (*Tokenizer, error) {
	enc, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		return nil, err
	}
	return &Tokenizer{enc: enc}, nil
}

// CountTokens returns the number of tokens in text.
func (t *Tokenizer) CountTokens(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}

// estimate is the fallback used without a tokenizer, roughly four bytes per token.
type estimate struct{}

func (estimate) CountTokens(text string) int {
	return (len(text) + 3) / 4
}

func countMessages(c Counter, msgs []*types.Message) int {
	total := 0
	for _, m := range msgs {
		total += c.CountTokens(m.Content) + c.CountTokens(string(m.Role)) + messageOverhead
	}
	return total
}
