package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vsumner/swarms-go/llm"
)

// RemoteContentKind discriminates the content items a tool server returns.
type RemoteContentKind string

const (
	// RemoteText is plain text content.
	RemoteText RemoteContentKind = "text"

	// RemoteImage is binary image content, base64-encoded.
	RemoteImage RemoteContentKind = "image"

	// RemoteResource is an embedded resource reference with a text or
	// binary payload.
	RemoteResource RemoteContentKind = "resource"
)

// RemoteContent is one content item in a tool server response.
type RemoteContent struct {
	Kind RemoteContentKind

	// Text holds text content, or a text resource's payload.
	Text string

	// MimeType describes image or resource payloads. Optional for
	// resources.
	MimeType string

	// Data holds the base64 payload of an image or a binary resource.
	Data string

	// URI identifies a resource.
	URI string

	// Blob marks a resource payload as binary (Data) rather than text.
	Blob bool
}

// RemoteCaller is the client half of an external tool server (MCP-style).
// Implementations own transport, session, and authentication concerns.
type RemoteCaller interface {
	CallTool(ctx context.Context, name string, args map[string]any) ([]RemoteContent, error)
}

// RemoteTool adapts one tool exposed by a RemoteCaller to the Tool
// interface. Each response content item becomes a string fragment: text
// passes through, binary content is encoded as a data URI, and resources
// carry their URI, MIME type, and payload.
type RemoteTool struct {
	def    llm.ToolDefinition
	client RemoteCaller
}

// NewRemoteTool wraps the named remote tool.
func NewRemoteTool(def llm.ToolDefinition, client RemoteCaller) *RemoteTool {
	return &RemoteTool{def: def, client: client}
}

// Definition implements Tool.
func (t *RemoteTool) Definition() llm.ToolDefinition {
	return t.def
}

// Call implements Tool.
func (t *RemoteTool) Call(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
	decoded := make(map[string]any)
	if len(args) > 0 {
		if err := json.Unmarshal(args, &decoded); err != nil {
			return nil, NewJSONError(t.def.Name, err)
		}
	}

	contents, err := t.client.CallTool(ctx, t.def.Name, decoded)
	if err != nil {
		return nil, NewCallError(t.def.Name, err)
	}

	var b strings.Builder
	for _, content := range contents {
		b.WriteString(formatRemoteContent(content))
	}

	encoded, err := json.Marshal(b.String())
	if err != nil {
		return nil, NewJSONError(t.def.Name, err)
	}
	return encoded, nil
}

func formatRemoteContent(content RemoteContent) string {
	switch content.Kind {
	case RemoteImage:
		return fmt.Sprintf("data:%s;base64,%s", content.MimeType, content.Data)
	case RemoteResource:
		mime := ""
		if content.MimeType != "" {
			mime = fmt.Sprintf("[MIME]:%s\n", content.MimeType)
		}
		if content.Blob {
			return fmt.Sprintf("[URI]:%s\n%s[BLOB]:%s", content.URI, mime, content.Data)
		}
		return fmt.Sprintf("[URI]:%s\n%s[TEXT]:%s", content.URI, mime, content.Text)
	default:
		return content.Text
	}
}
