// Package conversation maintains the token-bounded message window sent to
// the chat endpoint: ordered history, injected context snippets, and
// deterministic oldest-first eviction against a hard token budget.
package conversation

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dallenpyrah/OpenCode/internal/llm"
	"github.com/dallenpyrah/OpenCode/internal/tokenizer"
)

// ErrBudgetExhausted reports that the token budget cannot be satisfied:
// the total exceeds the budget and there is nothing left to evict. This
// happens with pathologically small budgets or a single oversized item.
var ErrBudgetExhausted = errors.New("token budget exhausted with nothing left to evict")

type entry struct {
	msg    llm.Message
	tokens int
}

type snippet struct {
	source  string
	content string // formatted, as rendered into the outgoing message
	tokens  int
}

// Window holds the conversation state for one session. History and
// snippets are two independent recency queues sharing one token budget;
// when the budget overflows, history is evicted first, so snippets act
// as stickier reference material.
//
// Each session owns its own Window; it is not safe for concurrent use.
type Window struct {
	counter   tokenizer.Counter
	maxTokens int
	history   []entry
	snippets  []snippet
	total     int
	logger    *slog.Logger
}

// NewWindow builds a Window with the given budget and token counter.
func NewWindow(counter tokenizer.Counter, maxTokens int, logger *slog.Logger) *Window {
	if logger == nil {
		logger = slog.Default()
	}
	return &Window{
		counter:   counter,
		maxTokens: maxTokens,
		logger:    logger,
	}
}

// AddMessage appends a message to history, costing its content, and
// evicts oldest entries as needed. Returns ErrBudgetExhausted if the
// budget cannot be restored.
func (w *Window) AddMessage(msg llm.Message) error {
	cost := w.counter.Count(msg.Content)
	w.history = append(w.history, entry{msg: msg, tokens: cost})
	w.total += cost
	return w.ensureTokenLimit()
}

// AddSnippet injects reference material (e.g. file content) as a snippet.
// The snippet is rendered as a fenced block attributed to its source, and
// the formatted text is what gets costed, since that is what the endpoint
// will receive.
func (w *Window) AddSnippet(source, content string) error {
	formatted := fmt.Sprintf("Content from %s:\n```\n%s\n```", source, content)
	cost := w.counter.Count(formatted)
	w.snippets = append(w.snippets, snippet{source: source, content: formatted, tokens: cost})
	w.total += cost
	return w.ensureTokenLimit()
}

// ClearHistory drops all history and recomputes the total from the
// snippets that remain. Recomputation, not decrement, so repeated
// mutations cannot drift the accounting.
func (w *Window) ClearHistory() {
	w.history = nil
	w.recompute()
}

// ClearSnippets drops all snippets and recomputes the total from history.
func (w *Window) ClearSnippets() {
	w.snippets = nil
	w.recompute()
}

func (w *Window) recompute() {
	total := 0
	for _, e := range w.history {
		total += e.tokens
	}
	for _, s := range w.snippets {
		total += s.tokens
	}
	w.total = total
}

// TotalTokens returns the current running token total.
func (w *Window) TotalTokens() int { return w.total }

// Len returns the number of held items (history entries plus snippets).
func (w *Window) Len() int { return len(w.history) + len(w.snippets) }

// History returns the current history messages, oldest first.
func (w *Window) History() []llm.Message {
	out := make([]llm.Message, len(w.history))
	for i, e := range w.history {
		out[i] = e.msg
	}
	return out
}

// ensureTokenLimit evicts exactly one oldest item per iteration until the
// total fits the budget. History is drained before snippets.
func (w *Window) ensureTokenLimit() error {
	for w.total > w.maxTokens {
		switch {
		case len(w.history) > 0:
			evicted := w.history[0]
			w.history = w.history[1:]
			w.total -= evicted.tokens
			w.logger.Debug("evicted history entry",
				"role", evicted.msg.Role, "tokens", evicted.tokens, "total", w.total)
		case len(w.snippets) > 0:
			evicted := w.snippets[0]
			w.snippets = w.snippets[1:]
			w.total -= evicted.tokens
			w.logger.Debug("evicted snippet",
				"source", evicted.source, "tokens", evicted.tokens, "total", w.total)
		default:
			return fmt.Errorf("%w (total %d, budget %d)", ErrBudgetExhausted, w.total, w.maxTokens)
		}
	}
	return nil
}

// Construct renders the outgoing message list: snippets first as
// system-role messages (oldest to newest), then history in order. It
// re-applies eviction defensively and re-accounts each item newest-first
// within its segment, so the most recent content survives even if the
// running total has somehow diverged from per-item costs.
func (w *Window) Construct() ([]llm.Message, error) {
	if err := w.ensureTokenLimit(); err != nil {
		return nil, err
	}

	budget := 0

	var snips []llm.Message
	for i := len(w.snippets) - 1; i >= 0; i-- {
		s := w.snippets[i]
		if budget+s.tokens > w.maxTokens {
			break
		}
		budget += s.tokens
		snips = append(snips, llm.SystemMessage(s.content))
	}
	reverse(snips)

	var hist []llm.Message
	for i := len(w.history) - 1; i >= 0; i-- {
		e := w.history[i]
		if budget+e.tokens > w.maxTokens {
			break
		}
		budget += e.tokens
		hist = append(hist, e.msg)
	}
	reverse(hist)

	return append(snips, hist...), nil
}

func reverse(msgs []llm.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}
