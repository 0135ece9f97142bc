package tools

import (
	"context"
	"os"
	"path/filepath"
	"testing"
)

func seedFiles(t *testing.T, ws *Workspace, files map[string]string) {
	t.Helper()
	for path, content := range files {
		abs := filepath.Join(ws.Root(), path)
		if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestFileSearch(t *testing.T) {
	ws := newWorkspace(t)
	seedFiles(t, ws, map[string]string{
		"src/main.go":       "package main",
		"src/main_test.go":  "package main",
		"docs/readme.md":    "readme",
		".hidden/main.go":   "package hidden",
		"src/other/util.go": "package other",
	})

	search := &FileSearchTool{ws: ws}
	result, err := search.Execute(context.Background(), map[string]any{"query": "main"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}

	found := result.(map[string]any)["found_files"].([]string)
	want := map[string]bool{"src/main.go": false, "src/main_test.go": false}
	for _, f := range found {
		if f == ".hidden/main.go" {
			t.Error("hidden file returned without include_hidden")
		}
		if _, ok := want[f]; ok {
			want[f] = true
		}
	}
	for name, seen := range want {
		if !seen {
			t.Errorf("%q missing from results %v", name, found)
		}
	}
}

func TestFileSearchExtensionFilter(t *testing.T) {
	ws := newWorkspace(t)
	seedFiles(t, ws, map[string]string{
		"notes.md": "x",
		"notes.go": "x",
	})

	search := &FileSearchTool{ws: ws}
	result, err := search.Execute(context.Background(), map[string]any{
		"query":     "notes",
		"extension": "md",
	})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	found := result.(map[string]any)["found_files"].([]string)
	if len(found) != 1 || found[0] != "notes.md" {
		t.Errorf("found = %v, want [notes.md]", found)
	}
}

func TestFileSearchNoResultsSuggestions(t *testing.T) {
	ws := newWorkspace(t)

	search := &FileSearchTool{ws: ws}
	result, err := search.Execute(context.Background(), map[string]any{"query": "nomatch"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	m := result.(map[string]any)
	if len(m["found_files"].([]string)) != 0 {
		t.Errorf("found = %v, want empty", m["found_files"])
	}
	if _, ok := m["suggestions"]; !ok {
		t.Error("empty result should carry suggestions")
	}
}

func TestFileSearchMaxResults(t *testing.T) {
	ws := newWorkspace(t)
	files := map[string]string{}
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		files["match_"+name+".txt"] = "x"
	}
	seedFiles(t, ws, files)

	search := &FileSearchTool{ws: ws}
	result, err := search.Execute(context.Background(), map[string]any{
		"query":       "match",
		"max_results": float64(2),
	})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}
	found := result.(map[string]any)["found_files"].([]string)
	if len(found) != 2 {
		t.Errorf("len(found) = %d, want 2", len(found))
	}
}

func TestCodeSearch(t *testing.T) {
	ws := newWorkspace(t)
	seedFiles(t, ws, map[string]string{
		"a.go": "package a\nfunc Hello() {}\n",
		"b.go": "package b\nfunc Goodbye() {}\n",
	})

	search := &CodeSearchTool{ws: ws}
	result, err := search.Execute(context.Background(), map[string]any{"pattern": "func Hello"})
	if err != nil {
		t.Fatalf("search error: %v", err)
	}

	m := result.(map[string]any)
	matches := m["matches"].([]map[string]any)
	if len(matches) != 1 {
		t.Fatalf("matches = %v, want one", matches)
	}
	if matches[0]["file"] != "a.go" || matches[0]["line"] != 2 {
		t.Errorf("match = %v", matches[0])
	}
}

func TestCodeSearchMissingPath(t *testing.T) {
	ws := newWorkspace(t)

	search := &CodeSearchTool{ws: ws}
	if _, err := search.Execute(context.Background(), map[string]any{
		"pattern": "x",
		"path":    "no/such/dir",
	}); err == nil {
		t.Error("search of missing path should fail")
	}
}
