package llm

import (
	"context"
	"errors"
)

// Provider is the completion interface the agent runtime consumes.
//
// Implementations must be safe for concurrent use. Multiple goroutines may
// call Completion simultaneously for different requests.
type Provider interface {
	Completion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// ProviderMessage is the wire-level message shape handed to a RawProvider.
// History and prompt are flattened into this form; an assistant message may
// carry tool calls alongside (or instead of) text, preserving the
// user/assistant tool-call pairing of the original conversation.
type ProviderMessage struct {
	Role      string
	Content   string
	ToolCalls []ToolCall
}

// RequestOptions are the per-request generation knobs passed through to a
// RawProvider untouched.
type RequestOptions struct {
	Temperature float64
	MaxTokens   int
	Tools       []ToolDefinition
}

// RawResponse is what a RawProvider returns: the provider's messages with
// vendor framing already stripped, but not yet reduced to a single
// assistant turn.
type RawResponse struct {
	Messages []ProviderMessage
}

// RawProvider is the seam where a concrete vendor client plugs in. It
// receives fully prepared messages and returns the raw decoded exchange;
// the Adapter handles everything else.
type RawProvider interface {
	RawCompletion(ctx context.Context, messages []ProviderMessage, opts RequestOptions) (*RawResponse, error)
}

// Adapter turns a RawProvider into a Provider by normalizing requests and
// responses:
//
//   - the system prompt, if present, becomes a distinct system-role prefix
//   - chat history is converted to provider messages in order
//   - tool definitions are attached only when non-empty
//   - a single assistant message is extracted from the response; tool calls
//     are reported as structured ToolCall contents, otherwise Text
type Adapter struct {
	raw RawProvider
}

// NewAdapter wraps raw in the normalizing adapter.
func NewAdapter(raw RawProvider) *Adapter {
	return &Adapter{raw: raw}
}

// Completion implements Provider.
func (a *Adapter) Completion(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	messages := buildProviderMessages(req)

	opts := RequestOptions{
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}
	if len(req.Tools) > 0 {
		opts.Tools = req.Tools
	}

	raw, err := a.raw.RawCompletion(ctx, messages, opts)
	if err != nil {
		if isAdapterError(err) {
			return nil, err
		}
		return nil, &OtherError{Err: err}
	}

	assistant, ok := firstAssistant(raw)
	if !ok {
		return nil, &ResponseError{Err: errors.New("no assistant message in response")}
	}

	var choice []AssistantContent
	if len(assistant.ToolCalls) > 0 {
		for _, call := range assistant.ToolCalls {
			choice = append(choice, ToolCallContent(call))
		}
	} else {
		choice = append(choice, TextContent(assistant.Content))
	}

	return &CompletionResponse{Choice: choice}, nil
}

func buildProviderMessages(req CompletionRequest) []ProviderMessage {
	messages := make([]ProviderMessage, 0, len(req.ChatHistory)+2)
	if req.SystemPrompt != "" {
		messages = append(messages, ProviderMessage{Role: RoleSystem, Content: req.SystemPrompt})
	}
	for _, m := range req.ChatHistory {
		messages = append(messages, ProviderMessage{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, ProviderMessage{Role: req.Prompt.Role, Content: req.Prompt.Content})
	return messages
}

func firstAssistant(raw *RawResponse) (ProviderMessage, bool) {
	for _, m := range raw.Messages {
		if m.Role == RoleAssistant {
			return m, true
		}
	}
	return ProviderMessage{}, false
}

func isAdapterError(err error) bool {
	var reqErr *RequestError
	var respErr *ResponseError
	var provErr *ProviderError
	var otherErr *OtherError
	return errors.As(err, &reqErr) || errors.As(err, &respErr) ||
		errors.As(err, &provErr) || errors.As(err, &otherErr)
}
