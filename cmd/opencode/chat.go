package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/dallenpyrah/OpenCode/internal/llm"
)

const chatSystemPrompt = "You are OpenCode, a coding assistant working inside the user's " +
	"workspace. Use the available tools to read, search, and modify files when the " +
	"conversation calls for it. Be concise."

// runChat is the interactive session: read a line, stream the reply,
// execute any tool calls the model makes, repeat.
func runChat(ctx context.Context, stdout, stderr io.Writer, stdin io.Reader, configPath, model string, autoApprove bool) error {
	a, err := buildApp(stdout, stderr, stdin, configPath, model, autoApprove)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.window.AddMessage(llm.SystemMessage(chatSystemPrompt)); err != nil {
		return err
	}

	a.printer.Info("chat with %s (/exit to quit, /clear to reset, /tools to list tools)", a.model)

	scanner := bufio.NewScanner(stdin)
	for {
		a.printer.Raw("> ")
		if !scanner.Scan() {
			fmt.Fprintln(stdout)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		switch line {
		case "/exit", "/quit":
			return nil
		case "/clear":
			a.window.ClearHistory()
			if err := a.window.AddMessage(llm.SystemMessage(chatSystemPrompt)); err != nil {
				return err
			}
			a.printer.Info("history cleared")
			continue
		case "/tools":
			for _, def := range a.engine.Registry().Definitions() {
				fmt.Fprintf(stdout, "%-22s %s\n", def.Function.Name, def.Function.Description)
			}
			continue
		}

		if err := a.window.AddMessage(llm.UserMessage(line)); err != nil {
			a.printer.Error("%v", err)
			continue
		}
		if err := chatTurn(ctx, a); err != nil {
			a.printer.Error("%v", err)
		}
		fmt.Fprintln(stdout)
	}
}

// chatTurn runs one model turn, including any tool round-trips. Tool
// results are fed back with a non-streaming follow-up so the model can
// summarize what it did.
func chatTurn(ctx context.Context, a *app) error {
	msgs, err := a.window.Construct()
	if err != nil {
		return err
	}
	req := llm.ChatRequest{
		Model:      a.model,
		Messages:   msgs,
		Tools:      a.engine.Registry().Definitions(),
		ToolChoice: &llm.ToolChoiceAuto,
	}

	text, calls, err := streamTurn(ctx, a, req)
	if err != nil {
		return err
	}

	if len(calls) == 0 {
		if text != "" {
			return a.window.AddMessage(llm.AssistantMessage(text))
		}
		return nil
	}

	assistant := llm.AssistantMessage(text)
	assistant.ToolCalls = calls
	if err := a.window.AddMessage(assistant); err != nil {
		return err
	}

	for _, call := range calls {
		a.printer.ToolCall(call.Function.Name, call.Function.Arguments)
		reply, execErr := a.engine.Execute(ctx, call)
		if execErr != nil {
			a.printer.Warn("%s: %v", call.Function.Name, execErr)
		}
		if err := a.window.AddMessage(reply); err != nil {
			return err
		}
	}

	// Follow-up completion over the tool results.
	msgs, err = a.window.Construct()
	if err != nil {
		return err
	}
	followUp, err := streamAnswer(ctx, a, llm.ChatRequest{Model: a.model, Messages: msgs})
	if err != nil {
		return err
	}
	a.printer.Raw("\n")
	if followUp != "" {
		return a.window.AddMessage(llm.AssistantMessage(followUp))
	}
	return nil
}

// streamTurn streams one completion, echoing text tokens and
// accumulating tool-call fragments.
func streamTurn(ctx context.Context, a *app, req llm.ChatRequest) (string, []llm.ToolCall, error) {
	stream, err := a.client.StreamCompletion(ctx, req)
	if err != nil {
		return "", nil, err
	}
	defer stream.Close()

	var text strings.Builder
	var calls []llm.ToolCall
	for {
		chunk, err := stream.Recv()
		if err == io.EOF {
			return text.String(), calls, nil
		}
		if err != nil {
			return text.String(), calls, err
		}
		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				text.WriteString(choice.Delta.Content)
				a.printer.Raw(choice.Delta.Content)
			}
			calls = accumulateToolCalls(calls, choice.Delta.ToolCalls)
		}
	}
}

// accumulateToolCalls merges streamed tool-call fragments into complete
// calls, keyed on the delta index so interleaved parallel calls assemble
// correctly. The first fragment of a call carries its id and name; later
// fragments append argument bytes.
func accumulateToolCalls(calls, fragments []llm.ToolCall) []llm.ToolCall {
	for _, tc := range fragments {
		if tc.Index >= len(calls) {
			for len(calls) < tc.Index {
				calls = append(calls, llm.ToolCall{Index: len(calls)})
			}
			calls = append(calls, tc)
			continue
		}
		call := &calls[tc.Index]
		if tc.ID != "" {
			call.ID = tc.ID
		}
		if tc.Type != "" {
			call.Type = tc.Type
		}
		if tc.Function.Name != "" {
			call.Function.Name += tc.Function.Name
		}
		call.Function.Arguments += tc.Function.Arguments
	}
	return calls
}
