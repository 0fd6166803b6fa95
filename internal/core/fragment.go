package core

// FragmentKind discriminates the variants of DisplayFragment.
type FragmentKind string

const (
	FragPlainText         FragmentKind = "plain_text"
	FragThinkingText      FragmentKind = "thinking_text"
	FragToolName          FragmentKind = "tool_name"
	FragToolParameter     FragmentKind = "tool_parameter"
	FragToolEnd           FragmentKind = "tool_end"
	FragCompactionDivider FragmentKind = "compaction_divider"
	FragImage             FragmentKind = "image"
	FragReasoningSummary  FragmentKind = "reasoning_summary"
	FragToolOutput        FragmentKind = "tool_output"
	FragToolTerminal      FragmentKind = "tool_terminal"
)

// DisplayFragment is the smallest unit of parser output handed to the UI.
// PlainText, ThinkingText and ToolParameter fragments carrying the same
// Name+ToolID are designed to be concatenated by the UI; the parser MAY
// split a single logical value across many fragments.
type DisplayFragment struct {
	Kind FragmentKind `json:"kind"`

	Text string `json:"text,omitempty"` // PlainText, ThinkingText, ToolOutput, ReasoningSummary

	ToolID   string `json:"tool_id,omitempty"`   // ToolName, ToolParameter, ToolEnd, ToolOutput, ToolTerminal
	ToolName string `json:"tool_name,omitempty"` // ToolName

	ParamName  string `json:"param_name,omitempty"`  // ToolParameter
	ParamValue string `json:"param_value,omitempty"` // ToolParameter

	MediaType string `json:"media_type,omitempty"` // Image
	Data      string `json:"data,omitempty"`       // Image

	TerminalSuccess bool `json:"terminal_success,omitempty"` // ToolTerminal
}

func PlainText(text string) DisplayFragment    { return DisplayFragment{Kind: FragPlainText, Text: text} }
func ThinkingText(text string) DisplayFragment { return DisplayFragment{Kind: FragThinkingText, Text: text} }
func ToolNameFrag(name, id string) DisplayFragment {
	return DisplayFragment{Kind: FragToolName, ToolName: name, ToolID: id}
}
func ToolParameterFrag(toolID, name, value string) DisplayFragment {
	return DisplayFragment{Kind: FragToolParameter, ToolID: toolID, ParamName: name, ParamValue: value}
}
func ToolEndFrag(toolID string) DisplayFragment { return DisplayFragment{Kind: FragToolEnd, ToolID: toolID} }
func CompactionDividerFrag() DisplayFragment    { return DisplayFragment{Kind: FragCompactionDivider} }

// UiEventKind discriminates the variants of UiEvent.
type UiEventKind string

const (
	EvSetMessages               UiEventKind = "set_messages"
	EvUpdateMemory              UiEventKind = "update_memory"
	EvUpdatePlan                UiEventKind = "update_plan"
	EvUpdateChatList            UiEventKind = "update_chat_list"
	EvUpdateSessionActivityState UiEventKind = "update_session_activity_state"
	EvUpdatePendingMessage      UiEventKind = "update_pending_message"
	EvUpdateToolStatus          UiEventKind = "update_tool_status"
	EvClearMessages             UiEventKind = "clear_messages"
	EvDisplayUserInput          UiEventKind = "display_user_input"
	EvDisplayCompactionSummary  UiEventKind = "display_compaction_summary"
	EvStreamingStarted          UiEventKind = "streaming_started"
	EvAppendToTextBlock         UiEventKind = "append_to_text_block"
	EvAppendToThinkingBlock     UiEventKind = "append_to_thinking_block"
	EvStartTool                 UiEventKind = "start_tool"
	EvUpdateToolParameter       UiEventKind = "update_tool_parameter"
	EvEndTool                   UiEventKind = "end_tool"
	EvStreamingStopped          UiEventKind = "streaming_stopped"
	EvDisplayError              UiEventKind = "display_error"
	EvClearError                 UiEventKind = "clear_error"
	EvResourceLoaded             UiEventKind = "resource_loaded"
	EvResourceWritten            UiEventKind = "resource_written"
	EvResourceDeleted            UiEventKind = "resource_deleted"
	EvResourceListed             UiEventKind = "resource_listed"
	EvUpdateCurrentModel        UiEventKind = "update_current_model"
)

// ActivityState is a session's coarse agent-activity state, carried by
// UpdateSessionActivityState events.
type ActivityState string

const (
	ActivityIdle        ActivityState = "idle"
	ActivityAgentRunning ActivityState = "agent_running"
)

// UiEvent is one message on the asynchronous UI event sink. Like
// DisplayFragment this is a tagged struct rather than an interface
// hierarchy: only the fields relevant to Kind are populated, and the UI
// is expected to switch on Kind.
type UiEvent struct {
	Kind UiEventKind `json:"kind"`

	SessionID string `json:"session_id,omitempty"`
	RequestID int    `json:"request_id,omitempty"`

	Messages []Message       `json:"messages,omitempty"`
	Plan     []PlanItem      `json:"plan,omitempty"`
	ChatList []string        `json:"chat_list,omitempty"`
	Activity ActivityState   `json:"activity,omitempty"`
	Pending  string          `json:"pending,omitempty"`

	ToolID     string     `json:"tool_id,omitempty"`
	ToolStatus ExecStatus `json:"tool_status,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`

	ParamName  string `json:"param_name,omitempty"`
	ParamValue string `json:"param_value,omitempty"`

	Text      string `json:"text,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty"`
	Err       string `json:"error,omitempty"`

	ResourcePath string `json:"resource_path,omitempty"`

	Model string `json:"model,omitempty"`
	SandboxPolicy SandboxPolicy `json:"sandbox_policy,omitempty"`
}
