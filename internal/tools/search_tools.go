package tools

import (
	"bufio"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// FileSearchTool finds files in the workspace whose path matches a query
// substring, with optional extension and visibility filters.
type FileSearchTool struct {
	ws *Workspace
}

func (t *FileSearchTool) Name() string { return "FileSearchTool" }

func (t *FileSearchTool) Description() string {
	return `Searches the workspace for files. Args: {"query": string, "extension": string (optional), "case_sensitive": boolean (optional), "include_hidden": boolean (optional), "max_results": integer (optional)}`
}

func (t *FileSearchTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"query": map[string]any{
				"type":        "string",
				"description": "Filename or partial path to search for.",
			},
			"extension": map[string]any{
				"type":        "string",
				"description": "Filter by file extension (e.g., 'go', 'json', 'md').",
			},
			"case_sensitive": map[string]any{
				"type":        "boolean",
				"description": "Whether the search is case sensitive (default: false).",
			},
			"include_hidden": map[string]any{
				"type":        "boolean",
				"description": "Whether to include hidden files and directories (default: false).",
			},
			"max_results": map[string]any{
				"type":        "integer",
				"description": "Maximum number of results to return (default: 20).",
			},
		},
		"required": []string{"query"},
	}
}

func (t *FileSearchTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	query, _ := args["query"].(string)
	extension := strings.TrimPrefix(stringArg(args, "extension"), ".")
	caseSensitive := boolArg(args, "case_sensitive", false)
	includeHidden := boolArg(args, "include_hidden", false)
	maxResults := intArg(args, "max_results", 20)

	needle := query
	if !caseSensitive {
		needle = strings.ToLower(needle)
	}

	foundFiles := []string{}
	walkErr := filepath.WalkDir(t.ws.Root(), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // Unreadable entries are skipped, not fatal.
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel := t.ws.Rel(path)
		if rel == "." {
			return nil
		}
		hidden := isHiddenPath(rel)
		if d.IsDir() {
			if hidden && !includeHidden {
				return fs.SkipDir
			}
			return nil
		}
		if hidden && !includeHidden {
			return nil
		}
		if extension != "" && strings.TrimPrefix(filepath.Ext(rel), ".") != extension {
			return nil
		}
		haystack := rel
		if !caseSensitive {
			haystack = strings.ToLower(haystack)
		}
		if !strings.Contains(haystack, needle) {
			return nil
		}
		foundFiles = append(foundFiles, filepath.ToSlash(rel))
		if len(foundFiles) >= maxResults {
			return fs.SkipAll
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	result := map[string]any{
		"found_files": foundFiles,
		"search_info": map[string]any{
			"query":          query,
			"extension":      extension,
			"case_sensitive": caseSensitive,
			"include_hidden": includeHidden,
			"max_results":    maxResults,
		},
	}
	if len(foundFiles) == 0 {
		result["suggestions"] = []string{
			"Try a more general search term",
			"Try with include_hidden: true to search hidden directories",
			"Try removing the extension filter",
		}
	}
	return result, nil
}

// CodeSearchTool searches file contents for a pattern, returning matching
// lines with their locations.
type CodeSearchTool struct {
	ws *Workspace
}

func (t *CodeSearchTool) Name() string { return "CodeSearchTool" }

func (t *CodeSearchTool) Description() string {
	return `Searches file contents for a pattern. Args: {"pattern": string, "path": string (optional)}`
}

func (t *CodeSearchTool) ParametersSchema() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"pattern": map[string]any{"type": "string"},
			"path":    map[string]any{"type": "string"},
		},
		"required": []string{"pattern"},
	}
}

// maxCodeSearchMatches caps match output so a common pattern cannot
// flood the conversation window.
const maxCodeSearchMatches = 100

func (t *CodeSearchTool) Execute(ctx context.Context, args map[string]any) (any, error) {
	pattern, _ := args["pattern"].(string)
	start := stringArg(args, "path")
	if start == "" {
		start = "."
	}
	abs, err := t.ws.Resolve(start)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, classifyFileError(start, err)
	}

	matches := []map[string]any{}
	walkErr := filepath.WalkDir(abs, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rel := t.ws.Rel(path)
		if d.IsDir() {
			if isHiddenPath(rel) && rel != "." {
				return fs.SkipDir
			}
			return nil
		}
		if isHiddenPath(rel) {
			return nil
		}
		fileMatches, err := grepFile(path, pattern)
		if err != nil {
			return nil // Binary or unreadable files are skipped.
		}
		for _, m := range fileMatches {
			m["file"] = filepath.ToSlash(rel)
			matches = append(matches, m)
			if len(matches) >= maxCodeSearchMatches {
				return fs.SkipAll
			}
		}
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return map[string]any{
		"matches":     matches,
		"match_count": len(matches),
		"pattern":     pattern,
	}, nil
}

// grepFile scans one file for literal pattern matches, line by line.
func grepFile(path, pattern string) ([]map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var matches []map[string]any
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if strings.Contains(line, "\x00") {
			return nil, nil // Binary file, skip entirely.
		}
		if strings.Contains(line, pattern) {
			matches = append(matches, map[string]any{
				"line": lineNo,
				"text": strings.TrimSpace(line),
			})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return matches, nil
}

// isHiddenPath reports whether any path component starts with a dot.
func isHiddenPath(rel string) bool {
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}

// Argument accessors for optional schema-validated values. JSON numbers
// decode as float64.

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]any, key string, def bool) bool {
	if b, ok := args[key].(bool); ok {
		return b
	}
	return def
}

func intArg(args map[string]any, key string, def int) int {
	if f, ok := args[key].(float64); ok && f > 0 {
		return int(f)
	}
	return def
}
