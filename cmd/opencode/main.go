// OpenCode is a conversational coding assistant for the terminal.
//
// It talks to an OpenRouter-style chat-completion endpoint, maintains a
// token-bounded conversation window, and lets the model call validated
// tools (file access, search, shell, git, web) inside a workspace.
// Configuration is loaded from a single YAML file discovered
// automatically (see [config.DefaultSearchPaths]).
//
// Usage:
//
//	opencode ask <question>       Ask a single question (streamed)
//	opencode run <task>           Run the agent loop on a task
//	opencode chat                 Interactive chat session
//	opencode edit <file> <inst>   Edit a file per an instruction
//	opencode tools                List available tools
//	opencode history              List recorded runs
//	opencode version              Print version and build information
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/dallenpyrah/OpenCode/internal/agent"
	"github.com/dallenpyrah/OpenCode/internal/buildinfo"
	"github.com/dallenpyrah/OpenCode/internal/config"
	"github.com/dallenpyrah/OpenCode/internal/conversation"
	"github.com/dallenpyrah/OpenCode/internal/fetch"
	"github.com/dallenpyrah/OpenCode/internal/llm"
	"github.com/dallenpyrah/OpenCode/internal/tokenizer"
	"github.com/dallenpyrah/OpenCode/internal/tools"
	"github.com/dallenpyrah/OpenCode/internal/transcript"
	"github.com/dallenpyrah/OpenCode/internal/ui"
)

// main constructs the OS-level environment and delegates to [run] so
// the whole command surface can be driven from tests.
func main() {
	ctx := context.Background()

	if err := run(ctx, os.Stdout, os.Stderr, os.Stdin, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "%s\n", err)
		os.Exit(1)
	}
}

// run is the real entry point. Arguments are parsed by hand: the flag
// package relies on package-level globals, which makes it impossible to
// call run() concurrently from tests, and the argument surface here is
// small.
func run(ctx context.Context, stdout, stderr io.Writer, stdin io.Reader, args []string) error {
	var configPath string
	var model string
	var outputFmt string
	var autoApprove bool
	var command string
	var cmdArgs []string

	for i := 0; i < len(args); i++ {
		switch {
		case args[i] == "-config" && i+1 < len(args):
			configPath = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-config="):
			configPath = strings.TrimPrefix(args[i], "-config=")
		case args[i] == "-model" && i+1 < len(args):
			model = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-model="):
			model = strings.TrimPrefix(args[i], "-model=")
		case (args[i] == "-o" || args[i] == "--output") && i+1 < len(args):
			outputFmt = args[i+1]
			i++
		case strings.HasPrefix(args[i], "-o="):
			outputFmt = strings.TrimPrefix(args[i], "-o=")
		case args[i] == "-y" || args[i] == "--yes":
			autoApprove = true
		case args[i] == "-h" || args[i] == "-help" || args[i] == "--help":
			return printUsage(stdout)
		case !strings.HasPrefix(args[i], "-") && command == "":
			command = args[i]
		default:
			if command != "" {
				cmdArgs = append(cmdArgs, args[i])
			} else {
				return fmt.Errorf("unknown flag: %s", args[i])
			}
		}
	}

	if outputFmt == "" {
		outputFmt = "text"
	}
	if outputFmt != "text" && outputFmt != "json" {
		return fmt.Errorf("unknown output format: %q (expected text or json)", outputFmt)
	}

	switch command {
	case "ask":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: opencode ask <question>")
		}
		return runAsk(ctx, stdout, stderr, stdin, configPath, model, strings.Join(cmdArgs, " "))
	case "run":
		if len(cmdArgs) == 0 {
			return fmt.Errorf("usage: opencode run <task>")
		}
		return runAgent(ctx, stdout, stderr, stdin, configPath, model, autoApprove, strings.Join(cmdArgs, " "))
	case "chat":
		return runChat(ctx, stdout, stderr, stdin, configPath, model, autoApprove)
	case "edit":
		if len(cmdArgs) < 2 {
			return fmt.Errorf("usage: opencode edit <file> <instruction>")
		}
		return runEdit(ctx, stdout, stderr, stdin, configPath, model, cmdArgs[0], strings.Join(cmdArgs[1:], " "))
	case "tools":
		return runTools(stdout, stderr, configPath)
	case "history":
		return runHistory(ctx, stdout, stderr, configPath)
	case "version":
		return runVersion(stdout, outputFmt)
	case "":
		return printUsage(stdout)
	default:
		return fmt.Errorf("unknown command: %s", command)
	}
}

func printUsage(w io.Writer) error {
	fmt.Fprintln(w, "OpenCode - Conversational coding assistant")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Usage: opencode [flags] <command> [args]")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Commands:")
	fmt.Fprintln(w, "  ask <question>        Ask a single question (streamed)")
	fmt.Fprintln(w, "  run <task>            Run the agent loop on a task")
	fmt.Fprintln(w, "  chat                  Interactive chat session")
	fmt.Fprintln(w, "  edit <file> <inst>    Edit a file per an instruction")
	fmt.Fprintln(w, "  tools                 List available tools")
	fmt.Fprintln(w, "  history               List recorded runs")
	fmt.Fprintln(w, "  version               Show version information")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Flags:")
	fmt.Fprintln(w, "  -config <path>    Path to config file (default: auto-discover)")
	fmt.Fprintln(w, "  -model <name>     Override the configured model")
	fmt.Fprintln(w, "  -y, --yes         Approve tool executions without prompting")
	fmt.Fprintln(w, "  -o, --output fmt  Output format for version: text (default) or json")
	return nil
}

func runVersion(w io.Writer, outputFmt string) error {
	info := buildinfo.Info()
	if outputFmt == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(info)
	}
	fmt.Fprintln(w, buildinfo.String())
	for _, k := range []string{"version", "git_commit", "build_time", "go_version", "os", "arch"} {
		if v, ok := info[k]; ok {
			fmt.Fprintf(w, "  %-12s %s\n", k+":", v)
		}
	}
	return nil
}

// newLogger builds the process logger. Logs go to stderr so streamed
// model output on stdout stays clean.
func newLogger(stderr io.Writer, levelStr string) (*slog.Logger, error) {
	level, err := config.ParseLogLevel(levelStr)
	if err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{
		Level:       level,
		ReplaceAttr: config.ReplaceLogLevelNames,
	})), nil
}

// app bundles the assembled components every subcommand needs.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	printer    *ui.Printer
	client     *llm.Client
	window     *conversation.Window
	engine     *tools.Engine
	transcript *transcript.Store
	model      string
}

func (a *app) Close() {
	if a.transcript != nil {
		a.transcript.Close()
	}
}

// recorder returns the transcript store as an agent recorder, keeping
// the nil-interface-with-typed-nil trap out of the loop.
func (a *app) recorder() agent.Recorder {
	if a.transcript == nil {
		return nil
	}
	return a.transcript
}

// buildApp loads config and wires together the client, window, tool
// registry, and engine.
func buildApp(stdout io.Writer, stderr io.Writer, stdin io.Reader, configPath, modelOverride string, autoApprove bool) (*app, error) {
	cfgPath, err := config.FindConfig(configPath)
	var cfg *config.Config
	if err != nil {
		// No config file is fine: defaults plus environment cover the
		// common case of just exporting OPENROUTER_API_KEY.
		cfg = config.Default()
		cfg.API.APIKey = os.Getenv("OPENROUTER_API_KEY")
	} else {
		cfg, err = config.Load(cfgPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
	}

	logger, err := newLogger(stderr, cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)
	if cfgPath != "" {
		logger.Debug("config loaded", "path", cfgPath)
	}

	if cfg.API.APIKey == "" {
		return nil, fmt.Errorf("no API key configured (set OPENROUTER_API_KEY or api.api_key)")
	}

	model := modelOverride
	if model == "" {
		model = cfg.API.DefaultModel
	}

	counter, err := tokenizer.New(cfg.Context.TokenizerModel)
	if err != nil {
		return nil, err
	}
	window := conversation.NewWindow(counter, cfg.Context.MaxTokens, logger)

	printer := ui.NewPrinter(stdout, stdin)

	ws, err := tools.NewWorkspace(cfg.Workspace.Path)
	if err != nil {
		return nil, err
	}
	runner := tools.NewRunner(tools.RunnerConfig{
		WorkingDir:     ws.Root(),
		DeniedPatterns: cfg.Shell.DeniedPatterns,
		Timeout:        time.Duration(cfg.Shell.TimeoutSec) * time.Second,
		MaxOutputBytes: cfg.Shell.MaxOutputBytes,
	})

	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, ws, runner, fetch.New())
	tools.RegisterUserTools(registry, runner, cfg.UserTools, logger)

	policy := tools.ParsePolicy(cfg.Security.Policy)
	if autoApprove {
		policy = tools.PolicyAllowAll
	}
	engine := tools.NewEngine(registry, policy, printer.Confirm, logger)

	client := llm.New(llm.Options{
		BaseURL: cfg.API.BaseURL,
		APIKey:  cfg.API.APIKey,
		Referer: cfg.API.Referer,
		Title:   cfg.API.Title,
		Timeout: time.Duration(cfg.API.TimeoutSec) * time.Second,
		Logger:  logger,
	})

	a := &app{
		cfg:     cfg,
		logger:  logger,
		printer: printer,
		client:  client,
		window:  window,
		engine:  engine,
		model:   model,
	}

	if cfg.Transcript.Enabled {
		path := cfg.Transcript.Path
		if path == "" {
			path = "opencode-transcript.db"
		}
		store, err := transcript.Open(path)
		if err != nil {
			// Transcripts are best-effort; a broken store should not
			// block the session.
			logger.Warn("transcript store unavailable", "path", path, "error", err)
		} else {
			a.transcript = store
		}
	}

	return a, nil
}

func (a *app) controller() *agent.Controller {
	return agent.New(a.client, a.window, a.engine, a.recorder(), agent.Config{
		Model:             a.model,
		MaxIterations:     a.cfg.Agent.MaxIterations,
		CompletionPhrases: a.cfg.Agent.CompletionPhrases,
	}, a.logger)
}

// runAsk answers a single question. Tool calls the model makes are
// executed (behind the usual confirmation policy) before the final
// answer is printed.
func runAsk(ctx context.Context, stdout, stderr io.Writer, stdin io.Reader, configPath, model, question string) error {
	a, err := buildApp(stdout, stderr, stdin, configPath, model, false)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.window.AddMessage(llm.SystemMessage("You are a helpful coding assistant. Answer concisely.")); err != nil {
		return err
	}
	answer, err := a.controller().Ask(ctx, question)
	if err != nil {
		return err
	}
	a.printer.Result(ui.RenderMarkdown(answer))
	return nil
}

// streamAnswer runs one streaming completion, echoing tokens as they
// arrive, and returns the assembled text.
func streamAnswer(ctx context.Context, a *app, req llm.ChatRequest) (string, error) {
	stream, err := a.client.StreamCompletion(ctx, req)
	if err != nil {
		return "", err
	}
	defer stream.Close()

	var b strings.Builder
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		if content := chunk.Content(); content != "" {
			b.WriteString(content)
			a.printer.Raw(content)
		}
	}
}

// runAgent drives the bounded agent loop on a task.
func runAgent(ctx context.Context, stdout, stderr io.Writer, stdin io.Reader, configPath, model string, autoApprove bool, task string) error {
	a, err := buildApp(stdout, stderr, stdin, configPath, model, autoApprove)
	if err != nil {
		return err
	}
	defer a.Close()

	a.printer.Info("running task with %s", a.model)
	outcome, err := a.controller().Run(ctx, task)
	if err != nil {
		a.printer.Error("run failed after %d iteration(s): %v", outcome.Iterations, err)
		return err
	}

	switch outcome.State {
	case agent.StateCompleted:
		a.printer.Result(ui.RenderMarkdown(outcome.Final))
		a.printer.Info("completed in %d iteration(s)", outcome.Iterations)
	case agent.StateStalled:
		if outcome.Final != "" {
			a.printer.Result(ui.RenderMarkdown(outcome.Final))
		}
		a.printer.Warn("stopped without completion signal after %d iteration(s)", outcome.Iterations)
	}
	return nil
}

// runTools lists the registered tools.
func runTools(stdout, stderr io.Writer, configPath string) error {
	// Listing tools needs no API key; build the registry directly.
	cfg := config.Default()
	if path, err := config.FindConfig(configPath); err == nil {
		if loaded, err := config.Load(path); err == nil {
			cfg = loaded
		}
	}

	ws, err := tools.NewWorkspace(cfg.Workspace.Path)
	if err != nil {
		return err
	}
	runner := tools.NewRunner(tools.RunnerConfig{WorkingDir: ws.Root()})
	registry := tools.NewRegistry()
	tools.RegisterBuiltins(registry, ws, runner, fetch.New())
	tools.RegisterUserTools(registry, runner, cfg.UserTools, nil)

	for _, def := range registry.Definitions() {
		fmt.Fprintf(stdout, "%-22s %s\n", def.Function.Name, def.Function.Description)
	}
	return nil
}

// runHistory lists recorded agent runs.
func runHistory(ctx context.Context, stdout, stderr io.Writer, configPath string) error {
	cfg := config.Default()
	if path, err := config.FindConfig(configPath); err == nil {
		if loaded, err := config.Load(path); err == nil {
			cfg = loaded
		}
	}
	if !cfg.Transcript.Enabled {
		fmt.Fprintln(stdout, "transcripts are disabled (set transcript.enabled: true)")
		return nil
	}
	path := cfg.Transcript.Path
	if path == "" {
		path = "opencode-transcript.db"
	}

	store, err := transcript.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.Runs(ctx, 20)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(stdout, "no recorded runs")
		return nil
	}
	for _, r := range runs {
		fmt.Fprintf(stdout, "%s  %s  %d message(s)\n", r.ID, r.StartedAt.Format(time.RFC3339), r.Messages)
	}
	return nil
}
