// Package core holds the shared data model of the agent engine: messages,
// tool requests and executions, display fragments, and session
// configuration. It has no dependency on any concrete LLM provider, tool
// implementation, or UI — everything else in the module depends on it.
package core

import "time"

// Role identifies who produced a Message.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool-result"
)

// BlockKind discriminates the variants of ContentBlock.
type BlockKind string

const (
	BlockText             BlockKind = "text"
	BlockImage            BlockKind = "image"
	BlockToolUse          BlockKind = "tool_use"
	BlockToolResult       BlockKind = "tool_result"
	BlockThinking         BlockKind = "thinking"
	BlockRedactedThinking BlockKind = "redacted_thinking"
)

// ContentBlock is one element of a Message's structured content. Only the
// fields relevant to Kind are populated — a tagged struct is the
// idiomatic Go rendering of a small closed sum type that every package
// in this module needs to switch on.
type ContentBlock struct {
	Kind BlockKind `json:"kind"`

	// BlockText
	Text string `json:"text,omitempty"`

	// BlockImage
	MediaType string `json:"media_type,omitempty"`
	Data      string `json:"data,omitempty"`

	// BlockToolUse
	ToolUseID string `json:"tool_use_id,omitempty"`
	ToolName  string `json:"tool_name,omitempty"`
	ToolInput map[string]any `json:"tool_input,omitempty"`

	// BlockToolResult (ToolUseID above doubles as the referenced id)
	ToolResultContent string `json:"tool_result_content,omitempty"`
	IsError           bool   `json:"is_error,omitempty"`

	// BlockThinking / BlockRedactedThinking
	Signature string `json:"signature,omitempty"`
}

// TextBlock constructs a plain text content block.
func TextBlock(text string) ContentBlock { return ContentBlock{Kind: BlockText, Text: text} }

// ToolUseBlock constructs a tool invocation content block.
func ToolUseBlock(id, name string, input map[string]any) ContentBlock {
	return ContentBlock{Kind: BlockToolUse, ToolUseID: id, ToolName: name, ToolInput: input}
}

// ToolResultBlock constructs a tool-result content block referencing toolUseID.
func ToolResultBlock(toolUseID, content string, isError bool) ContentBlock {
	return ContentBlock{Kind: BlockToolResult, ToolUseID: toolUseID, ToolResultContent: content, IsError: isError}
}

// Message is one turn of a session's conversation. Content is a sequence
// of ContentBlocks; callers that only need plain text can use Text(),
// which flattens the text blocks.
type Message struct {
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	RequestID int            `json:"request_id,omitempty"`
}

// Text concatenates the text of every BlockText block in the message.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if b.Kind == BlockText {
			out += b.Text
		}
	}
	return out
}

// NewUserMessage builds a plain-text user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: []ContentBlock{TextBlock(text)}}
}

// NewAssistantMessage builds an assistant message from already-constructed
// content blocks, stamped with the request that produced it.
func NewAssistantMessage(requestID int, blocks []ContentBlock) Message {
	return Message{Role: RoleAssistant, Content: blocks, RequestID: requestID}
}

// NewToolResultMessage builds a tool-result message referencing toolUseID.
func NewToolResultMessage(toolUseID, content string, isError bool) Message {
	return Message{Role: RoleToolResult, Content: []ContentBlock{ToolResultBlock(toolUseID, content, isError)}}
}

// ToolUseBlocks returns every tool_use block in the message, in order.
func (m Message) ToolUseBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Kind == BlockToolUse {
			out = append(out, b)
		}
	}
	return out
}

// Priority is a PlanItem's urgency.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// PlanStatus is a PlanItem's lifecycle state.
type PlanStatus string

const (
	PlanPending    PlanStatus = "pending"
	PlanInProgress PlanStatus = "in_progress"
	PlanCompleted  PlanStatus = "completed"
)

// PlanItem is one entry of a session's plan, as surfaced by the
// update_plan tool.
type PlanItem struct {
	Content  string         `json:"content"`
	Priority Priority       `json:"priority"`
	Status   PlanStatus     `json:"status"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Dialect identifies which tool-invocation syntax a session's model is
// expected to emit.
type Dialect string

const (
	DialectXML    Dialect = "xml"
	DialectCaret  Dialect = "caret"
	DialectJSON   Dialect = "native_json"
)

// SandboxPolicy is a coarse description of what the command executor is
// permitted to do for a session; concrete enforcement lives in the
// executor, but the policy value itself is part of session configuration
// and is round-tripped through persistence and UiEvents.
type SandboxPolicy string

const (
	SandboxNone       SandboxPolicy = "none"
	SandboxWorkspace  SandboxPolicy = "workspace_write"
	SandboxReadOnly   SandboxPolicy = "read_only"
)

// SessionConfig holds the per-session settings that are fixed at creation
// and rarely change afterward.
type SessionConfig struct {
	Dialect        Dialect       `json:"dialect"`
	ProjectName    string        `json:"project_name"`
	ProjectPath    string        `json:"project_path"`
	DiffStyle      bool          `json:"diff_style_blocks"`
	SandboxPolicy  SandboxPolicy `json:"sandbox_policy"`
}

// ModelConfig is the model name and provider-specific options for a
// session; absent until the first agent run picks a default.
type ModelConfig struct {
	Provider string         `json:"provider"`
	Model    string         `json:"model"`
	Options  map[string]any `json:"options,omitempty"`
}

// Session is a conversation's persisted record. It excludes purely
// in-memory bookkeeping (that's SessionInstance, in internal/session).
type Session struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Messages       []Message       `json:"messages"`
	ToolExecutions []ToolExecution `json:"tool_executions"`
	Plan           []PlanItem      `json:"plan,omitempty"`

	Config      SessionConfig `json:"config"`
	ModelConfig *ModelConfig  `json:"model_config,omitempty"`

	NextRequestID int `json:"next_request_id"`
}

// BumpRequestID increments and returns the session's request counter.
func (s *Session) BumpRequestID() int {
	s.NextRequestID++
	return s.NextRequestID
}
