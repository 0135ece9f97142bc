package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Workspace roots all file tool paths in one directory. Relative paths
// resolve against it and no resolved path may escape it.
type Workspace struct {
	root string
}

// NewWorkspace creates a workspace at root. If root is empty, the
// current working directory is used.
func NewWorkspace(root string) (*Workspace, error) {
	if root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("resolving working directory: %w", err)
		}
		root = wd
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving workspace root: %w", err)
	}
	return &Workspace{root: abs}, nil
}

// Root returns the workspace root directory.
func (ws *Workspace) Root() string { return ws.root }

// Resolve converts a path to an absolute path inside the workspace.
// Returns a PermissionDeniedError if the path would escape it.
func (ws *Workspace) Resolve(path string) (string, error) {
	var abs string
	if filepath.IsAbs(path) {
		abs = filepath.Clean(path)
	} else {
		abs = filepath.Clean(filepath.Join(ws.root, path))
	}

	if abs != ws.root && !strings.HasPrefix(abs, ws.root+string(filepath.Separator)) {
		return "", &PermissionDeniedError{Resource: path}
	}
	return abs, nil
}

// Rel returns path relative to the workspace root when possible.
func (ws *Workspace) Rel(path string) string {
	rel, err := filepath.Rel(ws.root, path)
	if err != nil {
		return path
	}
	return rel
}

// classifyFileError maps operating-system errors onto the tool taxonomy.
func classifyFileError(path string, err error) error {
	switch {
	case os.IsNotExist(err):
		return &ResourceNotFoundError{Path: path}
	case os.IsPermission(err):
		return &PermissionDeniedError{Resource: path}
	default:
		return err
	}
}

// maxReadBytes caps file content returned to the model.
const maxReadBytes = 50 * 1024

// FileReadTool reads a file from the workspace.
type FileReadTool struct {
	ws *Workspace
}

func (t *FileReadTool) Name() string { return "FileReadTool" }

func (t *FileReadTool) Description() string {
	return `Reads a file from the workspace. Args: {"path": string}`
}

func (t *FileReadTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{
				"type":        "string",
				"description": "Path of the file to read, relative to the workspace.",
			},
		},
		"required": []string{"path"},
	}
}

func (t *FileReadTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	abs, err := t.ws.Resolve(path)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, classifyFileError(path, err)
	}

	content := string(data)
	if len(content) > maxReadBytes {
		content = content[:maxReadBytes] + "\n\n[... truncated ...]"
	}
	return map[string]any{"content": content}, nil
}

// FileWriteTool writes content to a file, creating parent directories.
type FileWriteTool struct {
	ws *Workspace
}

func (t *FileWriteTool) Name() string { return "FileWriteTool" }

func (t *FileWriteTool) Description() string {
	return `Writes content to a file. Args: {"path": string, "content": string}`
}

func (t *FileWriteTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path":    map[string]any{"type": "string"},
			"content": map[string]any{"type": "string"},
		},
		"required": []string{"path", "content"},
	}
}

func (t *FileWriteTool) Mutates() bool { return true }

func (t *FileWriteTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	content, _ := args["content"].(string)

	abs, err := t.ws.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return nil, classifyFileError(path, err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return nil, classifyFileError(path, err)
	}
	return map[string]any{"status": "success"}, nil
}

// ListFilesTool lists a directory's entries.
type ListFilesTool struct {
	ws *Workspace
}

func (t *ListFilesTool) Name() string { return "ListFilesTool" }

func (t *ListFilesTool) Description() string {
	return `Lists files in a directory. Args: {"path": string (optional, defaults to the workspace root)}`
}

func (t *ListFilesTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
	}
}

func (t *ListFilesTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	abs, err := t.ws.Resolve(path)
	if err != nil {
		return nil, err
	}

	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, classifyFileError(path, err)
	}

	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	return map[string]any{"entries": names}, nil
}

// CreateDirectoryTool creates a directory and any missing parents.
type CreateDirectoryTool struct {
	ws *Workspace
}

func (t *CreateDirectoryTool) Name() string { return "CreateDirectoryTool" }

func (t *CreateDirectoryTool) Description() string {
	return `Creates a directory (and parents). Args: {"path": string}`
}

func (t *CreateDirectoryTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
		"required": []string{"path"},
	}
}

func (t *CreateDirectoryTool) Mutates() bool { return true }

func (t *CreateDirectoryTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	abs, err := t.ws.Resolve(path)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, classifyFileError(path, err)
	}
	return map[string]any{"status": "success"}, nil
}

// DeleteTool removes a file or an empty directory. It refuses recursive
// deletion; the model must empty a directory first.
type DeleteTool struct {
	ws *Workspace
}

func (t *DeleteTool) Name() string { return "DeleteTool" }

func (t *DeleteTool) Description() string {
	return `Deletes a file or empty directory. Args: {"path": string}`
}

func (t *DeleteTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"path": map[string]any{"type": "string"},
		},
		"required": []string{"path"},
	}
}

func (t *DeleteTool) Mutates() bool { return true }

func (t *DeleteTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	path, _ := args["path"].(string)
	abs, err := t.ws.Resolve(path)
	if err != nil {
		return nil, err
	}
	if abs == t.ws.Root() {
		return nil, &PermissionDeniedError{Resource: path}
	}
	if err := os.Remove(abs); err != nil {
		return nil, classifyFileError(path, err)
	}
	return map[string]any{"status": "success"}, nil
}
