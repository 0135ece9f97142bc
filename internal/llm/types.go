// Package llm implements the OpenRouter chat-completion client: request
// and response types, the blocking and streaming call paths, and the SSE
// stream decoder.
package llm

import (
	"encoding/json"
	"fmt"
)

// Message roles in the chat-completion wire format.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Message is a single entry in a chat-completion conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`

	// ToolCalls is set on assistant messages that request tool execution.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role result message back to the assistant
	// tool call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// SystemMessage builds a system-role message.
func SystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolMessage builds a tool-role result message linked to a tool call.
func ToolMessage(callID, content string) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: callID}
}

// ToolCall is an assistant's request to execute a tool.
type ToolCall struct {
	// Index correlates streamed fragments of the same call: deltas carry
	// it on every fragment, while only the first fragment has the ID.
	Index    int              `json:"index,omitempty"`
	ID       string           `json:"id,omitempty"`
	Type     string           `json:"type,omitempty"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction names the tool and carries its arguments. Arguments is
// the raw JSON string exactly as the endpoint sent it; parsing is deferred
// to the tool pipeline so a malformed string surfaces as an invocation
// error rather than a decode failure on the whole response.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolDefinition advertises a callable tool in a chat request.
type ToolDefinition struct {
	Type     string             `json:"type"`
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes a tool's name, purpose, and the JSON Schema
// its arguments must satisfy.
type FunctionDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolChoice controls whether the model may, must not, or must call tools.
// The zero value marshals as "auto".
type ToolChoice struct {
	mode     string
	function string
}

// Tool choice modes.
var (
	// ToolChoiceAuto lets the model decide whether to call tools.
	ToolChoiceAuto = ToolChoice{mode: "auto"}
	// ToolChoiceNone forbids tool calls.
	ToolChoiceNone = ToolChoice{mode: "none"}
)

// ToolChoiceFunction forces the model to call the named tool.
func ToolChoiceFunction(name string) ToolChoice {
	return ToolChoice{mode: "function", function: name}
}

// MarshalJSON renders the wire representation: the bare strings "auto"
// and "none", or the {"type":"function","function":{"name":...}} object.
func (tc ToolChoice) MarshalJSON() ([]byte, error) {
	switch tc.mode {
	case "", "auto":
		return json.Marshal("auto")
	case "none":
		return json.Marshal("none")
	case "function":
		return json.Marshal(map[string]any{
			"type":     "function",
			"function": map[string]string{"name": tc.function},
		})
	default:
		return nil, fmt.Errorf("unknown tool choice mode %q", tc.mode)
	}
}

// ChatRequest is the chat-completion request body.
type ChatRequest struct {
	Model      string           `json:"model"`
	Messages   []Message        `json:"messages"`
	Stream     bool             `json:"stream,omitempty"`
	Tools      []ToolDefinition `json:"tools,omitempty"`
	ToolChoice *ToolChoice      `json:"tool_choice,omitempty"`
}

// ChatResponse is the non-streaming chat-completion response body.
type ChatResponse struct {
	ID      string   `json:"id"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// Choice is one completion alternative. In practice there is exactly one.
type Choice struct {
	Index        int     `json:"index"`
	Message      Message `json:"message"`
	FinishReason string  `json:"finish_reason"`
}

// Usage reports token consumption for a completed request.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// First returns the first choice's message, or a zero Message if the
// response carried no choices.
func (r *ChatResponse) First() Message {
	if len(r.Choices) == 0 {
		return Message{}
	}
	return r.Choices[0].Message
}

// Chunk is one streaming response event.
type Chunk struct {
	ID      string        `json:"id"`
	Model   string        `json:"model"`
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is one completion alternative within a streaming chunk.
type ChunkChoice struct {
	Index        int    `json:"index"`
	Delta        Delta  `json:"delta"`
	FinishReason string `json:"finish_reason"`
}

// Delta carries the incremental content of a streaming chunk. Any field
// may be empty; tool calls arrive fragmented across chunks with the
// arguments string split mid-JSON.
type Delta struct {
	Role      string     `json:"role,omitempty"`
	Content   string     `json:"content,omitempty"`
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
}

// Content returns the first choice's delta content, or "" if the chunk
// carried no choices.
func (c *Chunk) Content() string {
	if len(c.Choices) == 0 {
		return ""
	}
	return c.Choices[0].Delta.Content
}
