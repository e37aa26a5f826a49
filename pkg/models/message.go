// Package models provides the provider-neutral data model shared by every
// component of the agent runtime: conversations, content blocks, tool
// definitions, skills, and stream events.
package models

import (
	"encoding/json"
	"fmt"
	"time"
)

// Role indicates which side of the conversation a message belongs to.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// BlockType discriminates the content block union.
type BlockType string

const (
	BlockText       BlockType = "text"
	BlockToolUse    BlockType = "tool_use"
	BlockToolResult BlockType = "tool_result"
	BlockImage      BlockType = "image"
	BlockDocument   BlockType = "document"
)

// ContentBlock is a discriminated union over the five block shapes a message
// may carry. Only the fields relevant to Type are populated; the rest are
// left at their zero value. Serialisation to/from a given provider's wire
// format happens at the provider boundary, never here.
type ContentBlock struct {
	Type BlockType `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// tool_use (assistant side only)
	ToolUseID   string          `json:"id,omitempty"`
	ToolName    string          `json:"name,omitempty"`
	ToolInput   json.RawMessage `json:"input,omitempty"`

	// tool_result (user side only)
	ToolResultForID string `json:"tool_use_id,omitempty"`
	IsError         bool   `json:"is_error,omitempty"`

	// image / document (user side only)
	MediaType string `json:"media_type,omitempty"`
	Data      []byte `json:"data,omitempty"`
	Name      string `json:"name,omitempty"`
}

// Text builds a text content block.
func Text(s string) ContentBlock { return ContentBlock{Type: BlockText, Text: s} }

// ToolUse builds a tool_use content block.
func ToolUse(id, name string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// ToolResult builds a tool_result content block. Content is carried in Text.
func ToolResult(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Type: BlockToolResult, ToolResultForID: toolUseID, Text: content, IsError: isError}
}

// Image builds an image content block.
func Image(mediaType string, data []byte) ContentBlock {
	return ContentBlock{Type: BlockImage, MediaType: mediaType, Data: data}
}

// Document builds a document content block.
func Document(mediaType string, data []byte, name string) ContentBlock {
	return ContentBlock{Type: BlockDocument, MediaType: mediaType, Data: data, Name: name}
}

// Message is one turn in a Conversation.
type Message struct {
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	CreatedAt time.Time      `json:"created_at"`
}

// ToolUses returns the tool_use blocks in this message, in order.
func (m *Message) ToolUses() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// ToolResults returns the tool_result blocks in this message, in order.
func (m *Message) ToolResults() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == BlockToolResult {
			out = append(out, b)
		}
	}
	return out
}

// Text concatenates every text block's contents, in order.
func (m *Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Type == BlockText {
			out += b.Text
		}
	}
	return out
}

// Conversation is an ordered, strictly alternating sequence of messages.
// Every tool_use in an assistant turn must have exactly one matching
// tool_result in the immediately following user turn, keyed by tool_use_id.
// This invariant must never be broken by compaction, truncation, or
// subagent cloning.
type Conversation struct {
	Messages []Message `json:"messages"`
}

// Clone returns a deep copy safe to mutate independently of the original.
func (c *Conversation) Clone() *Conversation {
	out := &Conversation{Messages: make([]Message, len(c.Messages))}
	for i, m := range c.Messages {
		mc := m
		mc.Content = make([]ContentBlock, len(m.Content))
		copy(mc.Content, m.Content)
		out.Messages[i] = mc
	}
	return out
}

// Append adds a message to the end of the conversation.
func (c *Conversation) Append(m Message) { c.Messages = append(c.Messages, m) }

// Last returns a pointer to the final message, or nil if empty.
func (c *Conversation) Last() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return &c.Messages[len(c.Messages)-1]
}

// PopLast removes and returns the final message, or false if empty.
func (c *Conversation) PopLast() (Message, bool) {
	if len(c.Messages) == 0 {
		return Message{}, false
	}
	last := c.Messages[len(c.Messages)-1]
	c.Messages = c.Messages[:len(c.Messages)-1]
	return last, true
}

// CheckAlternation reports whether the conversation strictly alternates
// user/assistant at the turn level.
func (c *Conversation) CheckAlternation() error {
	for i := 1; i < len(c.Messages); i++ {
		if c.Messages[i].Role == c.Messages[i-1].Role {
			return fmt.Errorf("conversation invariant violated: consecutive %s turns at index %d", c.Messages[i].Role, i)
		}
	}
	return nil
}

// CheckPairing reports whether every tool_use in an assistant turn has
// exactly one matching tool_result in the immediately following user turn.
func (c *Conversation) CheckPairing() error {
	for i, m := range c.Messages {
		if m.Role != RoleAssistant {
			continue
		}
		uses := m.ToolUses()
		if len(uses) == 0 {
			continue
		}
		if i+1 >= len(c.Messages) || c.Messages[i+1].Role != RoleUser {
			return fmt.Errorf("tool_use at turn %d has no following user turn", i)
		}
		results := c.Messages[i+1].ToolResults()
		seen := make(map[string]int, len(results))
		for _, r := range results {
			seen[r.ToolResultForID]++
		}
		for _, u := range uses {
			if seen[u.ToolUseID] != 1 {
				return fmt.Errorf("tool_use %q at turn %d does not have exactly one matching tool_result (found %d)", u.ToolUseID, i, seen[u.ToolUseID])
			}
		}
	}
	return nil
}

// ToolDefinition describes a registrable tool: its name, description,
// JSON Schema for arguments, and the name of the argument (if any) that
// identifies a file for per-file locking purposes.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Schema      json.RawMessage `json:"input_schema"`
	FileParam   string          `json:"-"`
}

// Attachment is raw multimodal input supplied alongside user text, prior to
// being normalised into content blocks (see internal/multimodal).
type Attachment struct {
	MimeType string `json:"mime_type"`
	Filename string `json:"filename,omitempty"`
	Data     []byte `json:"data"`
}

// Skill is a catalogued capability that can be advertised and, once
// activated, have its full instructions injected into the system prompt.
type Skill struct {
	Name         string `json:"name"`
	Description  string `json:"description"`
	Instructions string `json:"instructions"`
	Visible      string `json:"visible"` // "advertised" | "hidden"
	State        string `json:"state"`   // "inactive" | "active"
}
