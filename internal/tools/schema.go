package tools

import "fmt"

// JSONSchema represents a JSON-Schema-shaped object describing a tool's
// input: type "object" at the root, with named properties.
type JSONSchema struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Properties  map[string]*JSONSchema `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Items       *JSONSchema            `json:"items,omitempty"`
}

// Scope gates which agent configurations a tool is available under
//.
type Scope string

const (
	ScopeAgent               Scope = "agent"
	ScopeAgentWithDiffBlocks Scope = "agent_with_diff_blocks"
)

// Kind is the coarse UI categorization of a tool: read, edit, execute,
// search, or other.
type Kind string

const (
	KindRead    Kind = "read"
	KindEdit    Kind = "edit"
	KindExecute Kind = "execute"
	KindSearch  Kind = "search"
	KindOther   Kind = "other"
)

// VirtualParamStrategy is how a UI renderer completes a synthesized
// composite parameter derived from others.
type VirtualParamStrategy string

const (
	StrategyStreamIndividualThenCombine VirtualParamStrategy = "stream_individual_then_combine"
	StrategyCombineOnly                 VirtualParamStrategy = "combine_only"
)

// VirtualParameter declares that a UI renderer will synthesize a
// composite parameter (e.g. a diff view from old_text+new_text).
type VirtualParameter struct {
	Name     string
	From     []string
	Strategy VirtualParamStrategy
}

// ToolDefinition is a tool's full declaration.
type ToolDefinition struct {
	Name              string             `json:"name"`
	Description       string             `json:"description"`
	Parameters        *JSONSchema        `json:"parameters"`
	SupportedScopes   []Scope            `json:"-"`
	Hidden            bool               `json:"-"`
	TitleTemplate     string             `json:"-"`
	VirtualParameters []VirtualParameter `json:"-"`
}

// SupportsScope reports whether the tool is enabled for the given scope.
func (d ToolDefinition) SupportsScope(s Scope) bool {
	if len(d.SupportedScopes) == 0 {
		return true // no explicit restriction: available everywhere
	}
	for _, sc := range d.SupportedScopes {
		if sc == s {
			return true
		}
	}
	return false
}

// Title renders d.TitleTemplate with {param} placeholders substituted
// from args, for the UI's progress label.
func (d ToolDefinition) Title(args map[string]any) string {
	if d.TitleTemplate == "" {
		return d.Name
	}
	result := d.TitleTemplate
	for k, v := range args {
		placeholder := "{" + k + "}"
		result = replaceAll(result, placeholder, fmt.Sprintf("%v", v))
	}
	return result
}

func replaceAll(s, old, new string) string {
	for {
		idx := indexOf(s, old)
		if idx == -1 {
			return s
		}
		s = s[:idx] + new + s[idx+len(old):]
	}
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}

// ToolCall represents a parsed tool invocation handed to the dispatcher.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

// ToolResult represents the output of a tool execution. The UI asks it
// for a short status and a longer render description.
type ToolResult struct {
	Success bool   `json:"success"`
	Output  string `json:"output"`
	Error   string `json:"error,omitempty"`
}

// Status returns a short status string for the UI.
func (r ToolResult) Status() string {
	if r.Success {
		return "done"
	}
	return "error"
}

// Render returns a longer description for the UI.
func (r ToolResult) Render() string {
	if r.Success {
		return r.Output
	}
	return r.Error
}
