package conversation

import (
	"errors"
	"strings"
	"testing"

	"github.com/dallenpyrah/OpenCode/internal/llm"
)

// wordCounter costs text at one token per whitespace-separated word,
// which makes budgets easy to reason about in tests.
type wordCounter struct{}

func (wordCounter) Count(text string) int { return len(strings.Fields(text)) }

func TestTokenInvariant(t *testing.T) {
	w := NewWindow(wordCounter{}, 100, nil)

	if err := w.AddMessage(llm.UserMessage("one two three")); err != nil {
		t.Fatalf("AddMessage() error: %v", err)
	}
	if err := w.AddSnippet("notes.txt", "four five"); err != nil {
		t.Fatalf("AddSnippet() error: %v", err)
	}

	// The snippet is costed on its formatted text, not the raw content.
	snippetCost := wordCounter{}.Count("Content from notes.txt:\n```\nfour five\n```")
	if got, want := w.TotalTokens(), 3+snippetCost; got != want {
		t.Errorf("TotalTokens() = %d, want %d", got, want)
	}

	w.ClearHistory()
	if got := w.TotalTokens(); got != snippetCost {
		t.Errorf("TotalTokens() after ClearHistory = %d, want %d", got, snippetCost)
	}

	w.ClearSnippets()
	if got := w.TotalTokens(); got != 0 {
		t.Errorf("TotalTokens() after ClearSnippets = %d, want 0", got)
	}
}

func TestEvictionOldestHistoryFirst(t *testing.T) {
	w := NewWindow(wordCounter{}, 6, nil)

	for _, text := range []string{"m1 a b", "m2 a b", "m3 a b"} {
		if err := w.AddMessage(llm.UserMessage(text)); err != nil {
			t.Fatalf("AddMessage(%q) error: %v", text, err)
		}
	}

	// Budget of 6 holds two three-word messages; the oldest must go.
	hist := w.History()
	if len(hist) != 2 {
		t.Fatalf("len(History()) = %d, want 2", len(hist))
	}
	if hist[0].Content != "m2 a b" || hist[1].Content != "m3 a b" {
		t.Errorf("surviving history = %q, %q; want m2, m3", hist[0].Content, hist[1].Content)
	}
	if w.TotalTokens() > 6 {
		t.Errorf("TotalTokens() = %d exceeds budget", w.TotalTokens())
	}
}

func TestEvictionHistoryBeforeSnippets(t *testing.T) {
	w := NewWindow(wordCounter{}, 20, nil)

	if err := w.AddSnippet("ref", "s1 s2 s3"); err != nil {
		t.Fatal(err)
	}
	if err := w.AddMessage(llm.UserMessage("h1 h2 h3")); err != nil {
		t.Fatal(err)
	}

	// Push past the budget: history must be evicted first even though
	// the snippet is older.
	big := strings.Repeat("x ", 12)
	if err := w.AddMessage(llm.UserMessage(big)); err != nil {
		t.Fatal(err)
	}

	if len(w.History()) != 1 {
		t.Fatalf("len(History()) = %d, want 1 (oldest history evicted)", len(w.History()))
	}
	msgs, err := w.Construct()
	if err != nil {
		t.Fatal(err)
	}
	if msgs[0].Role != llm.RoleSystem || !strings.Contains(msgs[0].Content, "s1 s2 s3") {
		t.Errorf("snippet was evicted before history: %+v", msgs[0])
	}
}

func TestOversizedMessageSelfEvicts(t *testing.T) {
	// A single message larger than the whole budget is itself evicted:
	// the window ends empty, the accounting at zero, and no error — there
	// is nothing the caller could do differently.
	w := NewWindow(wordCounter{}, 2, nil)

	if err := w.AddMessage(llm.UserMessage("one two three four")); err != nil {
		t.Fatalf("AddMessage() error: %v", err)
	}
	if got := len(w.History()); got != 0 {
		t.Errorf("len(History()) = %d, want 0", got)
	}
	if got := w.TotalTokens(); got != 0 {
		t.Errorf("TotalTokens() = %d, want 0", got)
	}
}

func TestBudgetExhausted(t *testing.T) {
	// With a budget no content can satisfy, eviction runs out of items
	// while the total still exceeds the limit.
	w := NewWindow(wordCounter{}, -1, nil)

	err := w.AddMessage(llm.UserMessage("one"))
	if !errors.Is(err, ErrBudgetExhausted) {
		t.Errorf("AddMessage() error = %v, want ErrBudgetExhausted", err)
	}
}

func TestConstructOrder(t *testing.T) {
	w := NewWindow(wordCounter{}, 100, nil)

	if err := w.AddMessage(llm.UserMessage("first turn")); err != nil {
		t.Fatal(err)
	}
	if err := w.AddSnippet("a.go", "alpha"); err != nil {
		t.Fatal(err)
	}
	if err := w.AddSnippet("b.go", "beta"); err != nil {
		t.Fatal(err)
	}
	if err := w.AddMessage(llm.AssistantMessage("second turn")); err != nil {
		t.Fatal(err)
	}

	msgs, err := w.Construct()
	if err != nil {
		t.Fatalf("Construct() error: %v", err)
	}
	if len(msgs) != 4 {
		t.Fatalf("len = %d, want 4", len(msgs))
	}

	// Snippets first, oldest to newest, as system messages.
	if msgs[0].Role != llm.RoleSystem || !strings.Contains(msgs[0].Content, "Content from a.go:") {
		t.Errorf("msgs[0] = %+v", msgs[0])
	}
	if msgs[1].Role != llm.RoleSystem || !strings.Contains(msgs[1].Content, "Content from b.go:") {
		t.Errorf("msgs[1] = %+v", msgs[1])
	}
	// Then history in chronological order.
	if msgs[2].Content != "first turn" || msgs[3].Content != "second turn" {
		t.Errorf("history order wrong: %q, %q", msgs[2].Content, msgs[3].Content)
	}
}

func TestConstructSnippetFormat(t *testing.T) {
	w := NewWindow(wordCounter{}, 100, nil)
	if err := w.AddSnippet("src/main.go", "package main"); err != nil {
		t.Fatal(err)
	}

	msgs, err := w.Construct()
	if err != nil {
		t.Fatal(err)
	}
	want := "Content from src/main.go:\n```\npackage main\n```"
	if msgs[0].Content != want {
		t.Errorf("snippet content = %q, want %q", msgs[0].Content, want)
	}
}

func TestConstructPreservesToolMessages(t *testing.T) {
	w := NewWindow(wordCounter{}, 100, nil)

	call := llm.ToolCall{
		ID:   "call_1",
		Type: "function",
		Function: llm.ToolCallFunction{
			Name:      "FileSearchTool",
			Arguments: `{"query":"main"}`,
		},
	}
	asst := llm.Message{Role: llm.RoleAssistant, ToolCalls: []llm.ToolCall{call}}
	if err := w.AddMessage(asst); err != nil {
		t.Fatal(err)
	}
	if err := w.AddMessage(llm.ToolMessage("call_1", `{"found_files":["main.go"]}`)); err != nil {
		t.Fatal(err)
	}

	msgs, err := w.Construct()
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 {
		t.Fatalf("len = %d, want 2", len(msgs))
	}
	if len(msgs[0].ToolCalls) != 1 || msgs[0].ToolCalls[0].ID != "call_1" {
		t.Errorf("assistant tool calls lost: %+v", msgs[0])
	}
	if msgs[1].ToolCallID != "call_1" {
		t.Errorf("tool reply lost its call id: %+v", msgs[1])
	}
}
