package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeRaw struct {
	lastMessages []ProviderMessage
	lastOpts     RequestOptions
	response     *RawResponse
	err          error
}

func (f *fakeRaw) RawCompletion(ctx context.Context, messages []ProviderMessage, opts RequestOptions) (*RawResponse, error) {
	f.lastMessages = messages
	f.lastOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.response, nil
}

func textResponse(text string) *RawResponse {
	return &RawResponse{Messages: []ProviderMessage{{Role: RoleAssistant, Content: text}}}
}

func TestAdapterMessageOrder(t *testing.T) {
	raw := &fakeRaw{response: textResponse("ok")}
	adapter := NewAdapter(raw)

	req := CompletionRequest{
		Prompt:       UserMessage("the prompt"),
		SystemPrompt: "be helpful",
		ChatHistory: []Message{
			UserMessage("earlier question"),
			AssistantMessage("earlier answer"),
		},
	}
	if _, err := adapter.Completion(context.Background(), req); err != nil {
		t.Fatalf("Completion: %v", err)
	}

	msgs := raw.lastMessages
	if len(msgs) != 4 {
		t.Fatalf("messages=%d, want 4", len(msgs))
	}
	if msgs[0].Role != RoleSystem || msgs[0].Content != "be helpful" {
		t.Fatalf("msg0=%+v, want system prefix", msgs[0])
	}
	if msgs[1].Role != RoleUser || msgs[2].Role != RoleAssistant {
		t.Fatalf("history order not preserved: %+v", msgs[1:3])
	}
	if msgs[3].Role != RoleUser || msgs[3].Content != "the prompt" {
		t.Fatalf("msg3=%+v, want the prompt last", msgs[3])
	}
}

func TestAdapterOmitsSystemWhenEmpty(t *testing.T) {
	raw := &fakeRaw{response: textResponse("ok")}
	adapter := NewAdapter(raw)

	req := CompletionRequest{Prompt: UserMessage("q")}
	if _, err := adapter.Completion(context.Background(), req); err != nil {
		t.Fatalf("Completion: %v", err)
	}
	if len(raw.lastMessages) != 1 || raw.lastMessages[0].Role != RoleUser {
		t.Fatalf("messages=%+v, want only the prompt", raw.lastMessages)
	}
}

func TestAdapterAttachesToolsOnlyWhenPresent(t *testing.T) {
	raw := &fakeRaw{response: textResponse("ok")}
	adapter := NewAdapter(raw)

	if _, err := adapter.Completion(context.Background(), CompletionRequest{Prompt: UserMessage("q")}); err != nil {
		t.Fatalf("Completion: %v", err)
	}
	if raw.lastOpts.Tools != nil {
		t.Fatalf("tools attached for empty set: %+v", raw.lastOpts.Tools)
	}

	tools := []ToolDefinition{{Name: "calc", Parameters: json.RawMessage(`{"type":"object"}`)}}
	if _, err := adapter.Completion(context.Background(), CompletionRequest{Prompt: UserMessage("q"), Tools: tools}); err != nil {
		t.Fatalf("Completion: %v", err)
	}
	if len(raw.lastOpts.Tools) != 1 || raw.lastOpts.Tools[0].Name != "calc" {
		t.Fatalf("tools=%+v, want calc attached", raw.lastOpts.Tools)
	}
}

func TestAdapterExtractsToolCalls(t *testing.T) {
	raw := &fakeRaw{response: &RawResponse{Messages: []ProviderMessage{{
		Role: RoleAssistant,
		ToolCalls: []ToolCall{
			{ID: "1", Name: "calc", Arguments: json.RawMessage(`{"a":1}`)},
			{ID: "2", Name: "search", Arguments: json.RawMessage(`{"q":"x"}`)},
		},
	}}}}
	adapter := NewAdapter(raw)

	resp, err := adapter.Completion(context.Background(), CompletionRequest{Prompt: UserMessage("q")})
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	if len(resp.Choice) != 2 {
		t.Fatalf("choice=%d, want 2 tool calls", len(resp.Choice))
	}
	for _, c := range resp.Choice {
		if !c.IsToolCall() {
			t.Fatalf("content %+v should be a tool call", c)
		}
	}
	if resp.Choice[0].ToolCall.Name != "calc" || resp.Choice[1].ToolCall.Name != "search" {
		t.Fatalf("tool call order not preserved: %+v", resp.Choice)
	}
}

func TestAdapterTextChoice(t *testing.T) {
	adapter := NewAdapter(&fakeRaw{response: textResponse("an answer")})

	resp, err := adapter.Completion(context.Background(), CompletionRequest{Prompt: UserMessage("q")})
	if err != nil {
		t.Fatalf("Completion: %v", err)
	}
	if len(resp.Choice) != 1 || resp.Choice[0].IsToolCall() || resp.Choice[0].Text != "an answer" {
		t.Fatalf("choice=%+v, want single text content", resp.Choice)
	}
}

func TestAdapterNoAssistantMessage(t *testing.T) {
	adapter := NewAdapter(&fakeRaw{response: &RawResponse{Messages: []ProviderMessage{{Role: RoleUser, Content: "?"}}}})

	_, err := adapter.Completion(context.Background(), CompletionRequest{Prompt: UserMessage("q")})
	var respErr *ResponseError
	if !errors.As(err, &respErr) {
		t.Fatalf("err=%v, want ResponseError", err)
	}
}

func TestAdapterWrapsUncategorizedError(t *testing.T) {
	adapter := NewAdapter(&fakeRaw{err: errors.New("something unexpected")})

	_, err := adapter.Completion(context.Background(), CompletionRequest{Prompt: UserMessage("q")})
	var otherErr *OtherError
	if !errors.As(err, &otherErr) {
		t.Fatalf("err=%v, want OtherError for an uncategorized failure", err)
	}
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		t.Fatalf("err=%v, must not be mislabeled as a transport error", err)
	}
}

func TestAdapterPassesRequestErrorThrough(t *testing.T) {
	transport := &RequestError{Err: errors.New("connection refused")}
	adapter := NewAdapter(&fakeRaw{err: transport})

	_, err := adapter.Completion(context.Background(), CompletionRequest{Prompt: UserMessage("q")})
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("err=%v, want the RequestError unchanged", err)
	}
}

func TestAdapterPassesProviderErrorThrough(t *testing.T) {
	provErr := &ProviderError{StatusCode: 429, Message: "rate limited"}
	adapter := NewAdapter(&fakeRaw{err: provErr})

	_, err := adapter.Completion(context.Background(), CompletionRequest{Prompt: UserMessage("q")})
	var got *ProviderError
	if !errors.As(err, &got) || got.StatusCode != 429 {
		t.Fatalf("err=%v, want the ProviderError unchanged", err)
	}
}
