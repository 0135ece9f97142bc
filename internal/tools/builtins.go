package tools

import (
	"log/slog"

	"github.com/dallenpyrah/OpenCode/internal/config"
	"github.com/dallenpyrah/OpenCode/internal/fetch"
)

// RegisterBuiltins adds the standard tool set to a registry.
func RegisterBuiltins(r *Registry, ws *Workspace, runner *Runner, fetcher *fetch.Fetcher) {
	r.Register(&FileReadTool{ws: ws})
	r.Register(&FileWriteTool{ws: ws})
	r.Register(&ListFilesTool{ws: ws})
	r.Register(&CreateDirectoryTool{ws: ws})
	r.Register(&DeleteTool{ws: ws})
	r.Register(&FileSearchTool{ws: ws})
	r.Register(&CodeSearchTool{ws: ws})
	r.Register(&ShellCommandTool{runner: runner})
	r.Register(&GitTool{runner: runner})
	r.Register(&WebSearchTool{fetcher: fetcher})
}

// RegisterUserTools adds user-configured tools. A tool that fails to
// load is logged and skipped rather than aborting startup.
func RegisterUserTools(r *Registry, runner *Runner, cfgs []config.UserToolConfig, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	for _, cfg := range cfgs {
		tool, err := NewUserTool(cfg, runner)
		if err != nil {
			logger.Error("failed to load user tool", "name", cfg.Name, "error", err)
			continue
		}
		r.Register(tool)
	}
}
