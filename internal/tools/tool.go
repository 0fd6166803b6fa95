package tools

import (
	"context"

	"github.com/zcode-dev/agentcore/internal/core"
)

func coreAmbientMediator(ctx context.Context) (core.PermissionMediator, bool) {
	return core.PermissionMediatorFromContext(ctx)
}

// Tool is the interface all tools must implement. Execute receives a
// plain context.Context carrying ambient collaborators (plan slot,
// permission mediator, sub-agent runner, UI sink, working directory —
// see internal/core's With*/*FromContext helpers) rather than a widened
// signature, so adding a new collaborator never touches existing tools.
type Tool interface {
	// Definition returns the structured tool definition
	Definition() ToolDefinition

	// Execute runs the tool with the given arguments
	Execute(ctx context.Context, args map[string]any) ToolResult

	// Validate checks if the arguments are valid
	Validate(args map[string]any) error
}

// BaseTool provides common functionality for tools: definition storage
// and JSON-Schema-backed input validation.
type BaseTool struct {
	Def ToolDefinition
}

// Definition returns the tool definition
func (b *BaseTool) Definition() ToolDefinition {
	return b.Def
}

// Validate checks args against the tool's declared JSON schema.
func (b *BaseTool) Validate(args map[string]any) error {
	return ValidateAgainstSchema(b.Def.Name, b.Def.Parameters, args)
}

// confirmOrMediate gates a side-effecting tool on user consent. A
// tool-local ConfirmFunc takes priority when set; otherwise it falls
// back to the session's PermissionMediator from the ambient context.
// With neither present, the tool proceeds ungated.
func confirmOrMediate(ctx context.Context, confirmFn ConfirmFunc, toolName string, prompt string, args map[string]any) bool {
	if confirmFn != nil {
		return confirmFn(prompt)
	}
	if mediator, ok := coreAmbientMediator(ctx); ok {
		return mediator.RequestApproval(ctx, toolName, args)
	}
	return true
}
