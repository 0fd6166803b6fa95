package tools

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zcode-dev/agentcore/internal/core"
)

// Registry manages tool registration, scope-gated enumeration, and
// dialect-aware system-prompt generation.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the registry
func (r *Registry) Register(tool Tool) {
	def := tool.Definition()
	r.tools[def.Name] = tool
}

// Get retrieves a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns all registered tool definitions, sorted by name for
// deterministic prompt generation.
func (r *Registry) List() []ToolDefinition {
	defs := make([]ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// ListForScope returns every non-hidden tool enabled for the given scope.
func (r *Registry) ListForScope(scope Scope) []ToolDefinition {
	var out []ToolDefinition
	for _, d := range r.List() {
		if d.Hidden {
			continue
		}
		if d.SupportsScope(scope) {
			out = append(out, d)
		}
	}
	return out
}

// Dispatch is the tool-resolution half of a dispatch: looking up the
// tool and validating input against its schema. The side-effect-sensitive
// steps (permission mediation, status events, execution) live in
// internal/dispatch, which calls this before invoking Execute.
func (r *Registry) Dispatch(ctx context.Context, req core.ToolRequest, scope Scope) (Tool, ToolResult, error) {
	tool, ok := r.Get(req.Name)
	if !ok {
		return nil, ToolResult{}, fmt.Errorf("%w: %s", core.ErrUnknownTool, req.Name)
	}
	if !tool.Definition().SupportsScope(scope) {
		return nil, ToolResult{}, fmt.Errorf("%w: %s", core.ErrUnknownTool, req.Name)
	}
	coerced := CoerceInput(tool.Definition().Parameters, req.Input)
	for k, v := range coerced {
		req.Input[k] = v
	}
	if err := tool.Validate(req.Input); err != nil {
		return tool, ToolResult{}, fmt.Errorf("%w: %v", core.ErrSchemaMismatch, err)
	}
	return tool, ToolResult{}, nil
}

// BuildSystemPrompt generates the tool-listing section of the system
// prompt. Its shape depends on the dialect: XML and caret dialects
// get tool descriptions plus literal grammar examples; the native
// dialect emits nothing because the provider carries tool schemas
// out-of-band.
func (r *Registry) BuildSystemPrompt(dialect core.Dialect, scope Scope) string {
	switch dialect {
	case core.DialectJSON:
		return ""
	case core.DialectCaret:
		return r.caretPrompt(scope)
	default:
		return r.xmlPrompt(scope)
	}
}

func (r *Registry) xmlPrompt(scope Scope) string {
	var sb strings.Builder
	sb.WriteString("You can invoke tools using this exact XML grammar:\n\n")
	sb.WriteString("<tool:NAME>\n<param:PARAM_NAME>value</param:PARAM_NAME>\n</tool:NAME>\n\n")
	sb.WriteString("Use at most one tool per response. Available tools:\n\n")
	for _, def := range r.ListForScope(scope) {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", def.Name, def.Description))
		if def.Parameters != nil {
			for _, name := range sortedKeys(def.Parameters.Properties) {
				sb.WriteString(fmt.Sprintf("    <param:%s>...</param:%s>\n", name, name))
			}
		}
	}
	return sb.String()
}

func (r *Registry) caretPrompt(scope Scope) string {
	var sb strings.Builder
	sb.WriteString("You can invoke tools using caret blocks:\n\n")
	sb.WriteString("^^^tool_name\nparam: value\nmultiline_param ---\n...\n--- multiline_param\narray_param: [\nitem1\nitem2\n]\n^^^\n\n")
	sb.WriteString("Use at most one tool per response, unless it is read-only, in which case you may continue. Available tools:\n\n")
	for _, def := range r.ListForScope(scope) {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", def.Name, def.Description))
	}
	return sb.String()
}

func sortedKeys(m map[string]*JSONSchema) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
