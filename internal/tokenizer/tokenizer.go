// Package tokenizer provides token counting for conversation budgeting.
package tokenizer

import (
	"fmt"

	"github.com/pkoukk/tiktoken-go"
)

// Counter reports the token cost of a piece of text. Implementations must
// be deterministic: the same input always yields the same count, which the
// conversation window relies on to keep its running total consistent.
type Counter interface {
	Count(text string) int
}

// Tiktoken counts tokens using a BPE vocabulary. It is safe for
// concurrent use.
type Tiktoken struct {
	enc *tiktoken.Tiktoken
}

// DefaultModel is the vocabulary used when no tokenizer model is
// configured. The cl100k_base encoding it maps to is a reasonable
// approximation for most chat models served via OpenRouter.
const DefaultModel = "gpt-4"

// New returns a Counter for the given model's vocabulary. An empty model
// falls back to DefaultModel.
func New(model string) (*Tiktoken, error) {
	if model == "" {
		model = DefaultModel
	}
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("loading tokenizer for model %q: %w", model, err)
	}
	return &Tiktoken{enc: enc}, nil
}

// Count returns the number of tokens in text.
func (t *Tiktoken) Count(text string) int {
	return len(t.enc.Encode(text, nil, nil))
}
