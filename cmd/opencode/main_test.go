package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/dallenpyrah/OpenCode/internal/llm"
)

func TestRunUsage(t *testing.T) {
	for _, args := range [][]string{{}, {"-h"}, {"--help"}} {
		var out, errOut bytes.Buffer
		if err := run(context.Background(), &out, &errOut, strings.NewReader(""), args); err != nil {
			t.Fatalf("run(%v) error: %v", args, err)
		}
		if !strings.Contains(out.String(), "Usage: opencode") {
			t.Errorf("run(%v) missing usage:\n%s", args, out.String())
		}
		for _, cmd := range []string{"ask", "run", "chat", "edit", "tools", "version"} {
			if !strings.Contains(out.String(), cmd) {
				t.Errorf("usage missing command %q", cmd)
			}
		}
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, strings.NewReader(""), []string{"frobnicate"})
	if err == nil || !strings.Contains(err.Error(), "unknown command") {
		t.Errorf("expected unknown command error, got %v", err)
	}
}

func TestRunUnknownFlag(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, strings.NewReader(""), []string{"-bogus"})
	if err == nil || !strings.Contains(err.Error(), "unknown flag") {
		t.Errorf("expected unknown flag error, got %v", err)
	}
}

func TestRunVersionText(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, strings.NewReader(""), []string{"version"}); err != nil {
		t.Fatalf("run(version) error: %v", err)
	}
	for _, want := range []string{"version:", "git_commit:", "go_version:"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("version output missing %q:\n%s", want, out.String())
		}
	}
}

func TestRunVersionJSON(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, strings.NewReader(""), []string{"-o", "json", "version"}); err != nil {
		t.Fatalf("run error: %v", err)
	}
	var info map[string]string
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("version -o json produced invalid JSON: %v\n%s", err, out.String())
	}
	if info["version"] == "" {
		t.Error("version field empty")
	}
}

func TestRunBadOutputFormat(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, strings.NewReader(""), []string{"-o", "xml", "version"})
	if err == nil || !strings.Contains(err.Error(), "output format") {
		t.Errorf("expected output format error, got %v", err)
	}
}

func TestRunAskRequiresQuestion(t *testing.T) {
	var out, errOut bytes.Buffer
	err := run(context.Background(), &out, &errOut, strings.NewReader(""), []string{"ask"})
	if err == nil || !strings.Contains(err.Error(), "usage: opencode ask") {
		t.Errorf("expected ask usage error, got %v", err)
	}
}

func TestRunToolsListsBuiltins(t *testing.T) {
	var out, errOut bytes.Buffer
	if err := run(context.Background(), &out, &errOut, strings.NewReader(""), []string{"tools"}); err != nil {
		t.Fatalf("run(tools) error: %v", err)
	}
	for _, want := range []string{"FileReadTool", "FileWriteTool", "ShellCommandTool", "GitTool", "WebSearchTool"} {
		if !strings.Contains(out.String(), want) {
			t.Errorf("tools output missing %q:\n%s", want, out.String())
		}
	}
}

func TestAccumulateToolCallsInterleaved(t *testing.T) {
	// Two parallel calls whose argument fragments arrive interleaved
	// across chunks must assemble by index, not arrival order.
	var calls []llm.ToolCall
	calls = accumulateToolCalls(calls, []llm.ToolCall{
		{Index: 0, ID: "call_a", Type: "function", Function: llm.ToolCallFunction{Name: "FileReadTool", Arguments: `{"pa`}},
		{Index: 1, ID: "call_b", Type: "function", Function: llm.ToolCallFunction{Name: "FileSearchTool", Arguments: `{"qu`}},
	})
	calls = accumulateToolCalls(calls, []llm.ToolCall{
		{Index: 1, Function: llm.ToolCallFunction{Arguments: `ery":"main"}`}},
	})
	calls = accumulateToolCalls(calls, []llm.ToolCall{
		{Index: 0, Function: llm.ToolCallFunction{Arguments: `th":"a.txt"}`}},
	})

	if len(calls) != 2 {
		t.Fatalf("len(calls) = %d, want 2", len(calls))
	}
	if calls[0].ID != "call_a" || calls[0].Function.Arguments != `{"path":"a.txt"}` {
		t.Errorf("calls[0] = %+v", calls[0])
	}
	if calls[1].ID != "call_b" || calls[1].Function.Arguments != `{"query":"main"}` {
		t.Errorf("calls[1] = %+v", calls[1])
	}
}

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "content\n", "content\n"},
		{"fenced", "```go\npackage main\n```", "package main\n"},
		{"fence no close", "```go\npackage main", "```go\npackage main"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := stripFences(tc.in); got != tc.want {
				t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}
