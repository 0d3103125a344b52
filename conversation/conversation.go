// Package conversation implements the append-only, role-tagged message log
// shared by every agent and workflow engine, plus the per-task short-term
// memory map that owns one conversation per task.
package conversation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/vsumner/swarms-go/persistence"
)

// Role tags a message as coming from a named user or a named assistant.
type Role struct {
	Kind RoleKind
	Name string
}

// RoleKind distinguishes the two message originators.
type RoleKind int

const (
	User RoleKind = iota
	Assistant
)

func (r Role) String() string {
	switch r.Kind {
	case User:
		return r.Name + "(User)"
	case Assistant:
		return r.Name + "(Assistant)"
	default:
		return r.Name
	}
}

// UserRole builds a User-tagged role.
func UserRole(name string) Role { return Role{Kind: User, Name: name} }

// AssistantRole builds an Assistant-tagged role.
func AssistantRole(name string) Role { return Role{Kind: Assistant, Name: name} }

// Message is one entry in a Conversation. Content is stored with a
// "Time: <unix-seconds> \n<message>" prefix so persisted histories are
// self-describing.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

func (m Message) String() string {
	return fmt.Sprintf("%s: %s", m.Role, m.Content)
}

type wireMessage struct {
	Role struct {
		Kind string `json:"kind"`
		Name string `json:"name"`
	} `json:"role"`
	Content string `json:"content"`
}

// MarshalJSON renders a Message as {"role":{"kind":...,"name":...},"content":...}.
func (m Message) MarshalJSON() ([]byte, error) {
	var w wireMessage
	if m.Role.Kind == User {
		w.Role.Kind = "user"
	} else {
		w.Role.Kind = "assistant"
	}
	w.Role.Name = m.Role.Name
	w.Content = m.Content
	return json.Marshal(w)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	m.Content = w.Content
	if w.Role.Kind == "assistant" {
		m.Role = AssistantRole(w.Role.Name)
	} else {
		m.Role = UserRole(w.Role.Name)
	}
	return nil
}

// Conversation is the ordered, optionally length-capped message log for one
// task, owned by one agent. Safe for concurrent use by multiple writers.
type Conversation struct {
	mu           sync.Mutex
	agentName    string
	maxMessages  int // 0 means unbounded
	history      []Message
	saveFilepath string
}

// New creates an empty conversation owned by agentName with no cap.
func New(agentName string) *Conversation {
	return &Conversation{agentName: agentName}
}

// NewCapped creates an empty conversation that evicts from the front once
// len(history) would exceed max.
func NewCapped(agentName string, max int) *Conversation {
	return &Conversation{agentName: agentName, maxMessages: max}
}

// Add appends a message, stamping its content with the current time.
func (c *Conversation) Add(role Role, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ts := time.Now().Unix()
	stamped := fmt.Sprintf("Time: %d \n%s", ts, message)
	c.history = append(c.history, Message{Role: role, Content: stamped})
	if c.maxMessages > 0 && len(c.history) > c.maxMessages {
		overflow := len(c.history) - c.maxMessages
		c.history = c.history[overflow:]
	}
}

// Delete removes the message at index i.
func (c *Conversation) Delete(i int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = append(c.history[:i], c.history[i+1:]...)
}

// Update replaces the message at index i.
func (c *Conversation) Update(i int, role Role, content string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history[i] = Message{Role: role, Content: content}
}

// Query returns the message at index i.
func (c *Conversation) Query(i int) Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history[i]
}

// Len returns the number of messages currently stored.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.history)
}

// Search returns every message whose content contains sub (case-sensitive
// substring match). Role tags are not searched.
func (c *Conversation) Search(sub string) []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Message
	for _, m := range c.history {
		if strings.Contains(m.Content, sub) {
			out = append(out, m)
		}
	}
	return out
}

// Clear empties the conversation history.
func (c *Conversation) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = nil
}

// History returns a copy of the full message slice, in order.
func (c *Conversation) History() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Message, len(c.history))
	copy(out, c.history)
	return out
}

// ToJSON serializes the raw history array.
func (c *Conversation) ToJSON() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, err := json.Marshal(c.history)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// FromJSON replaces the history with the array encoded in data.
func (c *Conversation) FromJSON(data []byte) error {
	var history []Message
	if err := json.Unmarshal(data, &history); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = history
	return nil
}

// String renders the human-readable "<name>(<Role>): <text>" form,
// newline-separated, one message per line.
func (c *Conversation) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	var b strings.Builder
	for _, m := range c.history {
		b.WriteString(m.String())
		b.WriteByte('\n')
	}
	return b.String()
}

// CountMessagesByRole returns a count of messages keyed by rendered role
// string, e.g. "alice(User)" -> 3.
func (c *Conversation) CountMessagesByRole() map[string]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	counts := make(map[string]int)
	for _, m := range c.history {
		counts[m.Role.String()]++
	}
	return counts
}

// ExportToFile writes the human-readable rendering of the conversation to
// path, creating parent directories as needed.
func (c *Conversation) ExportToFile(ctx context.Context, path string) error {
	return persistence.SaveToFile(ctx, []byte(c.String()), path)
}

// ImportFromFile parses the human-readable export format
// ("<name>(<Role>): <text>" lines) back into messages, replacing the
// current history. Symmetric with ExportToFile.
func (c *Conversation) ImportFromFile(ctx context.Context, path string) error {
	data, err := persistence.LoadFromFile(ctx, path)
	if err != nil {
		return err
	}
	lines := strings.Split(string(data), "\n")
	var history []Message
	for _, line := range lines {
		if line == "" {
			continue
		}
		roleStr, content, ok := strings.Cut(line, ": ")
		isUser := ok && strings.HasSuffix(roleStr, "(User)")
		if !isUser && !(ok && strings.HasSuffix(roleStr, "(Assistant)")) {
			// Stamped content spans several lines; a line without a role
			// prefix continues the previous message.
			if len(history) > 0 {
				history[len(history)-1].Content += "\n" + line
			}
			continue
		}
		var role Role
		if isUser {
			role = UserRole(strings.TrimSuffix(roleStr, "(User)"))
		} else {
			role = AssistantRole(strings.TrimSuffix(roleStr, "(Assistant)"))
		}
		history = append(history, Message{Role: role, Content: content})
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.history = history
	return nil
}

// ShortTermMemory is a concurrent task -> Conversation map. A conversation
// is created lazily on the first Add for a task and shared by every writer
// for that task thereafter.
type ShortTermMemory struct {
	mu   sync.Mutex
	data map[string]*Conversation
}

// NewShortTermMemory returns an empty short-term memory map.
func NewShortTermMemory() *ShortTermMemory {
	return &ShortTermMemory{data: make(map[string]*Conversation)}
}

// Add appends message to the conversation owned by task, creating the
// conversation (owned by conversationOwner) if this is the first write.
func (s *ShortTermMemory) Add(task, conversationOwner string, role Role, message string) {
	conv := s.getOrCreate(task, conversationOwner)
	conv.Add(role, message)
}

// Get returns the conversation for task if one exists.
func (s *ShortTermMemory) Get(task string) (*Conversation, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data[task]
	return c, ok
}

func (s *ShortTermMemory) getOrCreate(task, conversationOwner string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.data[task]
	if !ok {
		c = New(conversationOwner)
		s.data[task] = c
	}
	return c
}
