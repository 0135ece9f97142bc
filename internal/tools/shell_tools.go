package tools

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

// Runner executes subprocesses for the shell-backed tools with shared
// safety limits: denied command patterns, a wall-clock timeout, and
// output truncation.
type Runner struct {
	workingDir     string
	deniedPatterns []string
	timeout        time.Duration
	maxOutputBytes int
}

// RunnerConfig configures a Runner.
type RunnerConfig struct {
	WorkingDir     string
	DeniedPatterns []string
	Timeout        time.Duration
	MaxOutputBytes int
}

// DefaultRunnerConfig returns safe defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		DeniedPatterns: []string{
			"rm -rf /",
			"rm -rf /*",
			"mkfs",
			"dd if=",
			"> /dev/sd",
			"chmod -R 777 /",
			":(){ :|:& };:", // Fork bomb
		},
		Timeout:        30 * time.Second,
		MaxOutputBytes: 100 * 1024,
	}
}

// NewRunner creates a Runner, filling zero limits from the defaults.
func NewRunner(cfg RunnerConfig) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxOutputBytes == 0 {
		cfg.MaxOutputBytes = def.MaxOutputBytes
	}
	if cfg.DeniedPatterns == nil {
		cfg.DeniedPatterns = def.DeniedPatterns
	}
	return &Runner{
		workingDir:     cfg.WorkingDir,
		deniedPatterns: cfg.DeniedPatterns,
		timeout:        cfg.Timeout,
		maxOutputBytes: cfg.MaxOutputBytes,
	}
}

// RunResult captures a finished command.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
	TimedOut bool
}

// checkDenied rejects command lines matching a denied pattern.
func (r *Runner) checkDenied(commandLine string) error {
	lower := strings.ToLower(commandLine)
	for _, denied := range r.deniedPatterns {
		if strings.Contains(lower, strings.ToLower(denied)) {
			return &PermissionDeniedError{
				Resource: fmt.Sprintf("command matches denied pattern %q", denied),
			}
		}
	}
	return nil
}

// Run executes a program directly with its arguments.
func (r *Runner) Run(ctx context.Context, name string, args []string) (*RunResult, error) {
	line := strings.Join(append([]string{name}, args...), " ")
	if err := r.checkDenied(line); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, name, args...)
	return r.capture(ctx, cmd)
}

// RunShell executes a command line through sh -c. Used by user-defined
// tools whose command templates rely on shell syntax.
func (r *Runner) RunShell(ctx context.Context, commandLine string) (*RunResult, error) {
	if err := r.checkDenied(commandLine); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "sh", "-c", commandLine)
	return r.capture(ctx, cmd)
}

func (r *Runner) capture(ctx context.Context, cmd *exec.Cmd) (*RunResult, error) {
	if r.workingDir != "" {
		cmd.Dir = r.workingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	result := &RunResult{
		Stdout: truncateOutput(stdout.String(), r.maxOutputBytes),
		Stderr: truncateOutput(stderr.String(), r.maxOutputBytes),
	}

	if ctx.Err() == context.DeadlineExceeded {
		result.TimedOut = true
		result.ExitCode = -1
		return result, nil
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			result.ExitCode = exitErr.ExitCode()
		} else {
			return nil, fmt.Errorf("starting command: %w", err)
		}
	}
	return result, nil
}

// truncateOutput truncates output to maxBytes, noting the truncation.
func truncateOutput(s string, maxBytes int) string {
	if len(s) <= maxBytes {
		return s
	}
	return s[:maxBytes] + "\n\n[... output truncated ...]"
}

// ShellCommandTool executes a program with arguments.
type ShellCommandTool struct {
	runner *Runner
}

func (t *ShellCommandTool) Name() string { return "ShellCommandTool" }

func (t *ShellCommandTool) Description() string {
	return `Executes a shell command. Args: {"command": string, "args": [string] (optional)}`
}

func (t *ShellCommandTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"command": map[string]any{"type": "string"},
			"args": map[string]any{
				"type":  "array",
				"items": map[string]any{"type": "string"},
			},
		},
		"required": []string{"command"},
	}
}

func (t *ShellCommandTool) Mutates() bool { return true }

func (t *ShellCommandTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	command, _ := args["command"].(string)
	argList := stringListArg(args, "args")

	res, err := t.runner.Run(ctx, command, argList)
	if err != nil {
		return nil, err
	}
	if res.TimedOut {
		return nil, &ExecutionError{Command: command, Stderr: "command timed out"}
	}
	if res.ExitCode != 0 {
		return nil, &ExecutionError{Command: command, Stderr: res.Stderr}
	}
	return map[string]any{"stdout": res.Stdout, "exit_code": res.ExitCode}, nil
}

// GitTool runs a fixed set of git operations in the workspace.
type GitTool struct {
	runner *Runner
}

func (t *GitTool) Name() string { return "GitTool" }

func (t *GitTool) Description() string {
	return `Runs git operations. Args: {"operation": "status"|"add"|"commit"|"push", "args": object (optional; "paths" for add, "message" for commit)}`
}

func (t *GitTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"operation": map[string]any{
				"type": "string",
				"enum": []string{"status", "add", "commit", "push"},
			},
			"args": map[string]any{"type": "object"},
		},
		"required": []string{"operation"},
	}
}

func (t *GitTool) Mutates() bool { return true }

func (t *GitTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	operation, _ := args["operation"].(string)
	opArgs, _ := args["args"].(map[string]any)

	var gitArgs []string
	switch operation {
	case "status":
		gitArgs = []string{"status"}
	case "add":
		paths := stringListArg(opArgs, "paths")
		if len(paths) == 0 {
			paths = []string{"."}
		}
		gitArgs = append([]string{"add"}, paths...)
	case "commit":
		message := stringArg(opArgs, "message")
		if message == "" {
			return nil, &InvalidArgumentsError{
				ToolName: t.Name(),
				Details:  "commit requires args.message",
			}
		}
		gitArgs = []string{"commit", "-m", message}
	case "push":
		gitArgs = []string{"push"}
	default:
		return nil, &InvalidArgumentsError{
			ToolName: t.Name(),
			Details:  fmt.Sprintf("unsupported git operation: %s", operation),
		}
	}

	res, err := t.runner.Run(ctx, "git", gitArgs)
	if err != nil {
		return nil, err
	}
	command := "git " + strings.Join(gitArgs, " ")
	if res.TimedOut {
		return nil, &ExecutionError{Command: command, Stderr: "command timed out"}
	}
	if res.ExitCode != 0 {
		return nil, &ExecutionError{Command: command, Stderr: res.Stderr}
	}
	return map[string]any{"stdout": res.Stdout, "exit_code": res.ExitCode}, nil
}

func stringListArg(args map[string]any, key string) []string {
	raw, ok := args[key].([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
