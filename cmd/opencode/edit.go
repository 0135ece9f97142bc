package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dallenpyrah/OpenCode/internal/llm"
	"github.com/dallenpyrah/OpenCode/internal/ui"
)

const editSystemPrompt = "You are a precise code editor. The user will give you a file and " +
	"an instruction. Reply with the complete new content of the file and nothing else: no " +
	"explanation, no markdown fences."

// runEdit asks the edit model to rewrite a file, previews the change as
// a diff, and applies it only after confirmation.
func runEdit(ctx context.Context, stdout, stderr io.Writer, stdin io.Reader, configPath, model, file, instruction string) error {
	a, err := buildApp(stdout, stderr, stdin, configPath, model, false)
	if err != nil {
		return err
	}
	defer a.Close()

	editModel := a.cfg.API.EditModel
	if model != "" {
		editModel = model
	}

	before, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading %s: %w", file, err)
	}

	prompt := fmt.Sprintf("File: %s\n\n```\n%s\n```\n\nInstruction: %s", file, before, instruction)
	resp, err := a.client.Complete(ctx, llm.ChatRequest{
		Model: editModel,
		Messages: []llm.Message{
			llm.SystemMessage(editSystemPrompt),
			llm.UserMessage(prompt),
		},
	})
	if err != nil {
		return err
	}

	after := stripFences(resp.First().Content)
	if after == "" {
		return fmt.Errorf("model returned no content for %s", file)
	}
	if after == string(before) {
		a.printer.Info("no changes proposed")
		return nil
	}

	a.printer.Raw(ui.Diff(string(before), after))
	if !a.printer.Confirm(fmt.Sprintf("Apply changes to %s?", file)) {
		a.printer.Info("discarded")
		return nil
	}

	info, err := os.Stat(file)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode()
	}
	if err := os.WriteFile(file, []byte(after), mode); err != nil {
		return fmt.Errorf("writing %s: %w", file, err)
	}
	a.printer.Info("updated %s", file)
	return nil
}

// stripFences removes a wrapping markdown code fence if the model added
// one despite instructions.
func stripFences(s string) string {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "```") {
		return s
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 || !strings.HasPrefix(lines[len(lines)-1], "```") {
		return s
	}
	return strings.Join(lines[1:len(lines)-1], "\n") + "\n"
}
