// Package agent implements the bounded agentic loop: repeated
// request/tool-execution rounds against the conversation window until
// the model signals completion, stalls, fails, or hits the iteration
// cap.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/dallenpyrah/OpenCode/internal/conversation"
	"github.com/dallenpyrah/OpenCode/internal/llm"
	"github.com/dallenpyrah/OpenCode/internal/tools"
)

// State is the loop's terminal disposition.
type State int

const (
	// StateRunning means the loop is still iterating. Never returned
	// from Run; it exists for logging mid-flight.
	StateRunning State = iota

	// StateCompleted means the model signaled the task is done.
	StateCompleted

	// StateStalled means the loop stopped without a completion signal:
	// an empty assistant reply, or the iteration cap. A warning, not an
	// error.
	StateStalled

	// StateFailed means a transport error or a failed tool call ended
	// the loop.
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateCompleted:
		return "completed"
	case StateStalled:
		return "stalled"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// DefaultMaxIterations caps the loop when config does not.
const DefaultMaxIterations = 5

// defaultCompletionPhrases signal task completion when found in
// assistant text. Substring matching is a heuristic carried from the
// CLI's behavior, which is why the phrases are configurable.
var defaultCompletionPhrases = []string{"task complete", "task finished"}

// Completer is the slice of the chat client the loop depends on.
type Completer interface {
	Complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// Recorder persists conversation turns for a run. Optional.
type Recorder interface {
	RecordMessage(ctx context.Context, runID string, iteration int, msg llm.Message) error
}

// Config tunes a Controller.
type Config struct {
	// Model is the chat model identifier sent on every request.
	Model string

	// MaxIterations caps request/tool rounds; 0 uses the default.
	MaxIterations int

	// CompletionPhrases override the default completion markers.
	CompletionPhrases []string

	// SystemPrompt frames the task. A sensible default is used when
	// empty.
	SystemPrompt string
}

// Outcome reports how a run ended.
type Outcome struct {
	// RunID identifies this run in logs and transcripts.
	RunID string

	// State is the terminal state.
	State State

	// Iterations is the number of completed rounds.
	Iterations int

	// Final is the last assistant text, if any.
	Final string
}

// Controller drives the agent loop for one task.
type Controller struct {
	client   Completer
	window   *conversation.Window
	engine   *tools.Engine
	recorder Recorder
	cfg      Config
	logger   *slog.Logger
}

// New builds a Controller. recorder may be nil.
func New(client Completer, window *conversation.Window, engine *tools.Engine, recorder Recorder, cfg Config, logger *slog.Logger) *Controller {
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = DefaultMaxIterations
	}
	if len(cfg.CompletionPhrases) == 0 {
		cfg.CompletionPhrases = defaultCompletionPhrases
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = "You are an autonomous coding assistant. Complete the user's task using the available tools. When the task is done, say 'Task complete' and summarize what you did."
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Controller{
		client:   client,
		window:   window,
		engine:   engine,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}
}

// Run executes the loop for a task. The returned error is non-nil only
// for StateFailed; a stall is reported through the Outcome alone.
func (c *Controller) Run(ctx context.Context, task string) (*Outcome, error) {
	runID := uuid.NewString()
	logger := c.logger.With("run_id", runID)
	outcome := &Outcome{RunID: runID, State: StateRunning}

	if err := c.push(ctx, runID, 0, llm.SystemMessage(c.cfg.SystemPrompt)); err != nil {
		outcome.State = StateFailed
		return outcome, err
	}
	if err := c.push(ctx, runID, 0, llm.UserMessage(task)); err != nil {
		outcome.State = StateFailed
		return outcome, err
	}

	defs := c.engine.Registry().Definitions()
	logger.Info("agent run started", "model", c.cfg.Model, "tools", len(defs), "max_iterations", c.cfg.MaxIterations)

	for iteration := 0; iteration < c.cfg.MaxIterations; iteration++ {
		outcome.Iterations = iteration + 1
		logger.Debug("agent iteration", "iteration", iteration)

		msgs, err := c.window.Construct()
		if err != nil {
			outcome.State = StateFailed
			return outcome, fmt.Errorf("rendering conversation: %w", err)
		}
		if len(msgs) == 0 {
			outcome.State = StateFailed
			return outcome, fmt.Errorf("conversation window is empty")
		}

		choice := llm.ToolChoiceAuto
		resp, err := c.client.Complete(ctx, llm.ChatRequest{
			Model:      c.cfg.Model,
			Messages:   msgs,
			Tools:      defs,
			ToolChoice: &choice,
		})
		if err != nil {
			outcome.State = StateFailed
			return outcome, fmt.Errorf("chat request failed: %w", err)
		}

		reply := resp.First()

		if len(reply.ToolCalls) == 0 {
			if strings.TrimSpace(reply.Content) == "" {
				// No tools requested and nothing said: nothing to act on.
				logger.Warn("assistant returned no content and no tool calls")
				outcome.State = StateStalled
				return outcome, nil
			}

			if err := c.push(ctx, runID, iteration, llm.AssistantMessage(reply.Content)); err != nil {
				outcome.State = StateFailed
				return outcome, err
			}
			outcome.Final = reply.Content

			if c.taskComplete(reply.Content) {
				logger.Info("agent run completed", "iterations", outcome.Iterations)
				outcome.State = StateCompleted
				return outcome, nil
			}
			// A narrative step; keep going until the cap.
			continue
		}

		// The assistant's tool-call message goes in first so each
		// tool reply can reference its call id on the next request.
		if err := c.push(ctx, runID, iteration, reply); err != nil {
			outcome.State = StateFailed
			return outcome, err
		}
		outcome.Final = reply.Content

		// Execute sequentially in request order; finish the batch even
		// after a failure so every call id gets its reply.
		var batchErr error
		for _, tc := range reply.ToolCalls {
			toolMsg, execErr := c.engine.Execute(ctx, tc)
			if err := c.push(ctx, runID, iteration, toolMsg); err != nil {
				outcome.State = StateFailed
				return outcome, err
			}
			if execErr != nil && batchErr == nil {
				batchErr = execErr
			}
		}
		if batchErr != nil {
			logger.Error("tool call failed, stopping run", "error", batchErr)
			outcome.State = StateFailed
			return outcome, batchErr
		}
	}

	logger.Warn("agent run stopped after max iterations", "iterations", outcome.Iterations)
	outcome.State = StateStalled
	return outcome, nil
}

// Ask is the loop collapsed to a single iteration: one completion with
// the full tool set advertised, any returned tool calls executed in
// request order, and one follow-up completion over the results for the
// final text.
func (c *Controller) Ask(ctx context.Context, question string) (string, error) {
	if err := c.window.AddMessage(llm.UserMessage(question)); err != nil {
		return "", err
	}
	msgs, err := c.window.Construct()
	if err != nil {
		return "", err
	}

	choice := llm.ToolChoiceAuto
	resp, err := c.client.Complete(ctx, llm.ChatRequest{
		Model:      c.cfg.Model,
		Messages:   msgs,
		Tools:      c.engine.Registry().Definitions(),
		ToolChoice: &choice,
	})
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}

	reply := resp.First()
	if len(reply.ToolCalls) == 0 {
		if err := c.window.AddMessage(llm.AssistantMessage(reply.Content)); err != nil {
			return "", err
		}
		return reply.Content, nil
	}

	if err := c.window.AddMessage(reply); err != nil {
		return "", err
	}
	var batchErr error
	for _, tc := range reply.ToolCalls {
		toolMsg, execErr := c.engine.Execute(ctx, tc)
		if err := c.window.AddMessage(toolMsg); err != nil {
			return "", err
		}
		if execErr != nil && batchErr == nil {
			batchErr = execErr
		}
	}
	if batchErr != nil {
		return "", batchErr
	}

	msgs, err = c.window.Construct()
	if err != nil {
		return "", err
	}
	followUp, err := c.client.Complete(ctx, llm.ChatRequest{
		Model:    c.cfg.Model,
		Messages: msgs,
	})
	if err != nil {
		return "", fmt.Errorf("chat request failed: %w", err)
	}

	answer := followUp.First().Content
	if err := c.window.AddMessage(llm.AssistantMessage(answer)); err != nil {
		return "", err
	}
	return answer, nil
}

// push appends to the window and records the turn when a recorder is
// configured. Recording failures are logged, not fatal.
func (c *Controller) push(ctx context.Context, runID string, iteration int, msg llm.Message) error {
	if err := c.window.AddMessage(msg); err != nil {
		return err
	}
	if c.recorder != nil {
		if err := c.recorder.RecordMessage(ctx, runID, iteration, msg); err != nil {
			c.logger.Warn("failed to record transcript message", "error", err)
		}
	}
	return nil
}

// taskComplete checks assistant text for a completion phrase,
// case-insensitively.
func (c *Controller) taskComplete(content string) bool {
	lower := strings.ToLower(content)
	for _, phrase := range c.cfg.CompletionPhrases {
		if strings.Contains(lower, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
