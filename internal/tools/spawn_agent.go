package tools

import (
	"context"
	"fmt"

	"github.com/zcode-dev/agentcore/internal/core"
)

// SpawnAgentTool starts a sub-agent that runs its own model loop against
// a delegated task, and registers it in the session's cancellation
// registry keyed by this tool's id. The actual execution lives in
// internal/subagent — this tool only knows the SubAgentRunner interface.
type SpawnAgentTool struct {
	BaseTool
}

func NewSpawnAgentTool() *SpawnAgentTool {
	return &SpawnAgentTool{
		BaseTool: BaseTool{
			Def: ToolDefinition{
				Name:          "spawn_agent",
				Description:   "Delegate a self-contained task to a sub-agent and wait for its result. The sub-agent can be cancelled independently of the parent.",
				TitleTemplate: "Sub-agent: {task}",
				SupportedScopes: []Scope{ScopeAgent, ScopeAgentWithDiffBlocks},
				Parameters: &JSONSchema{
					Type: "object",
					Properties: map[string]*JSONSchema{
						"task":    {Type: "string", Description: "The task to delegate, in natural language."},
						"profile": {Type: "string", Description: "Optional sub-agent profile name (from .zcode/agents/) to run the task under."},
					},
					Required: []string{"task"},
				},
			},
		},
	}
}

func (t *SpawnAgentTool) Execute(ctx context.Context, args map[string]any) ToolResult {
	runner, ok := core.SubAgentRunnerFromContext(ctx)
	if !ok {
		return ToolResult{Success: false, Error: "sub-agent runner is unavailable in this context"}
	}
	task, _ := args["task"].(string)
	if task == "" {
		return ToolResult{Success: false, Error: "task must not be empty"}
	}
	if profile, _ := args["profile"].(string); profile != "" {
		// the runner's executor recognizes this marker and applies the
		// named profile's system prompt and tool restrictions
		task = "[profile:" + profile + "] " + task
	}

	toolID, _ := ctx.Value(spawnToolIDKey{}).(string)
	resultCh, err := runner.Spawn(ctx, toolID, task)
	if err != nil {
		return ToolResult{Success: false, Error: fmt.Sprintf("failed to spawn sub-agent: %v", err)}
	}

	select {
	case result, ok := <-resultCh:
		if !ok {
			return ToolResult{Success: false, Error: "sub-agent cancelled"}
		}
		return ToolResult{Success: true, Output: result}
	case <-ctx.Done():
		runner.Cancel(toolID)
		return ToolResult{Success: false, Error: "cancelled"}
	}
}

// spawnToolIDKey is used by the dispatcher to thread the dispatching
// tool-use id through to Execute, so the sub-agent registers under the
// same id that cancel_sub_agent will later be called with.
type spawnToolIDKey struct{}

// WithSpawnToolID attaches the current tool invocation's id to ctx.
func WithSpawnToolID(ctx context.Context, toolID string) context.Context {
	return context.WithValue(ctx, spawnToolIDKey{}, toolID)
}
