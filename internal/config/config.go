// Package config handles OpenCode configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./opencode.yaml, ~/.config/opencode/config.yaml, /etc/opencode/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"opencode.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "opencode", "config.yaml"))
	}

	paths = append(paths, "/etc/opencode/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all OpenCode configuration.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Context    ContextConfig    `yaml:"context"`
	Agent      AgentConfig      `yaml:"agent"`
	Security   SecurityConfig   `yaml:"security"`
	Workspace  WorkspaceConfig  `yaml:"workspace"`
	Shell      ShellConfig      `yaml:"shell"`
	Transcript TranscriptConfig `yaml:"transcript"`
	UserTools  []UserToolConfig `yaml:"usertools"`
	LogLevel   string           `yaml:"log_level"`
}

// APIConfig defines the chat-completion endpoint settings.
type APIConfig struct {
	// BaseURL is the endpoint root, e.g. https://openrouter.ai/api/v1.
	BaseURL string `yaml:"base_url"`
	// APIKey authenticates requests. The OPENROUTER_API_KEY environment
	// variable takes precedence when set.
	APIKey string `yaml:"api_key"`
	// Referer and Title are forwarded as HTTP-Referer and X-Title headers,
	// which the endpoint uses for app attribution.
	Referer string `yaml:"referer"`
	Title   string `yaml:"title"`
	// DefaultModel handles conversational and agentic requests.
	DefaultModel string `yaml:"default_model"`
	// EditModel handles file-edit requests, where a faster model is usually
	// adequate.
	EditModel string `yaml:"edit_model"`
	// TimeoutSec bounds non-streaming requests. Streaming requests are
	// unbounded and rely on context cancellation.
	TimeoutSec int `yaml:"timeout_sec"`
}

// ContextConfig defines conversation window settings.
type ContextConfig struct {
	// MaxTokens is the hard token budget for the conversation window.
	MaxTokens int `yaml:"max_tokens"`
	// TokenizerModel selects the BPE vocabulary used for token costing.
	TokenizerModel string `yaml:"tokenizer_model"`
}

// AgentConfig defines agentic-loop settings.
type AgentConfig struct {
	// MaxIterations caps the number of request/tool-execution rounds.
	MaxIterations int `yaml:"max_iterations"`
	// CompletionPhrases are case-insensitive substrings of assistant text
	// that signal task completion. This is a heuristic, not a structured
	// protocol signal, and is configurable for exactly that reason.
	CompletionPhrases []string `yaml:"completion_phrases"`
}

// SecurityConfig defines the tool execution policy.
type SecurityConfig struct {
	// Policy is "allow_all" or "confirm_writes" (default).
	Policy string `yaml:"policy"`
}

// WorkspaceConfig defines the root directory for file tools.
// All file tool paths resolve relative to this directory and may not
// escape it. If empty, the current working directory is used.
type WorkspaceConfig struct {
	Path string `yaml:"path"`
}

// ShellConfig defines subprocess tool settings.
type ShellConfig struct {
	// DeniedPatterns are command substrings to block (e.g. "rm -rf /").
	DeniedPatterns []string `yaml:"denied_patterns"`
	// TimeoutSec bounds a single command execution (default 30).
	TimeoutSec int `yaml:"timeout_sec"`
	// MaxOutputBytes truncates captured stdout/stderr (default 100 KiB).
	MaxOutputBytes int `yaml:"max_output_bytes"`
}

// TranscriptConfig defines the optional SQLite session transcript.
type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// UserToolConfig declares a user-defined tool loaded at startup.
type UserToolConfig struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	// InputSchema is a JSON Schema document as a string; it is compiled
	// once at load time and validated against on every invocation.
	InputSchema string `yaml:"input_schema"`
	// CommandTemplate is a shell command with {param} placeholders filled
	// from the validated arguments.
	CommandTemplate string `yaml:"command_template"`
}

// Load reads configuration from a YAML file and applies defaults and
// environment overrides.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	return cfg, nil
}

// applyEnv applies environment variable overrides.
func (c *Config) applyEnv() {
	if key := os.Getenv("OPENROUTER_API_KEY"); key != "" {
		c.API.APIKey = key
	}
	if model := os.Getenv("OPENCODE_MODEL"); model != "" {
		c.API.DefaultModel = model
	}
	if model := os.Getenv("OPENCODE_EDIT_MODEL"); model != "" {
		c.API.EditModel = model
	}
}

// Default returns a default configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:      "https://openrouter.ai/api/v1",
			Referer:      "http://localhost:3000",
			Title:        "OpenCode CLI",
			DefaultModel: "google/gemini-2.5-pro-preview-03-25",
			EditModel:    "google/gemini-2.0-flash-001",
			TimeoutSec:   120,
		},
		Context: ContextConfig{
			MaxTokens:      4000,
			TokenizerModel: "gpt-4",
		},
		Agent: AgentConfig{
			MaxIterations:     5,
			CompletionPhrases: []string{"task complete", "task finished"},
		},
		Security: SecurityConfig{
			Policy: "confirm_writes",
		},
		Shell: ShellConfig{
			DeniedPatterns: []string{
				"rm -rf /",
				"rm -rf /*",
				"mkfs",
				"dd if=",
				"> /dev/sd",
				"chmod -R 777 /",
				":(){ :|:& };:", // Fork bomb
			},
			TimeoutSec:     30,
			MaxOutputBytes: 100 * 1024,
		},
		LogLevel: "info",
	}
}
