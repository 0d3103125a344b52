// Package llm defines the provider-agnostic completion contract: request and
// response shapes, message and tool-call normalization, and the error
// taxonomy surfaced to the agent runtime.
//
// Concrete vendor HTTP clients live outside this module; they plug in by
// implementing RawProvider (or Provider directly).
package llm

import (
	"encoding/json"
)

// Message roles as sent to providers.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one turn in a provider conversation.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// UserMessage builds a user-role message.
func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

// AssistantMessage builds an assistant-role message.
func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

// ToolDefinition describes a callable tool to the model.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall is a structured tool invocation emitted by the model.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments"`
}

// AssistantContent is one item of an assistant turn: either plain text or a
// tool call, never both.
type AssistantContent struct {
	Text     string
	ToolCall *ToolCall
}

// TextContent wraps text as assistant content.
func TextContent(text string) AssistantContent {
	return AssistantContent{Text: text}
}

// ToolCallContent wraps a tool call as assistant content.
func ToolCallContent(call ToolCall) AssistantContent {
	return AssistantContent{ToolCall: &call}
}

// IsToolCall reports whether the content carries a tool call.
func (c AssistantContent) IsToolCall() bool {
	return c.ToolCall != nil
}

// CompletionRequest carries everything a provider needs for one completion.
type CompletionRequest struct {
	// Prompt is the user turn being answered.
	Prompt Message

	// SystemPrompt sets the assistant's behavior. Optional.
	SystemPrompt string

	// ChatHistory is the prior conversation in chronological order.
	ChatHistory []Message

	// Tools defines the tools the model may call. Attached only when
	// non-empty.
	Tools []ToolDefinition

	// Temperature controls sampling. Zero means provider default.
	Temperature float64

	// MaxTokens limits the response length. Zero means provider default.
	MaxTokens int
}

// CompletionResponse is the normalized result of a completion call.
type CompletionResponse struct {
	// Choice is the assistant turn's contents, in emission order.
	Choice []AssistantContent
}
