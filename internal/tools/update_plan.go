package tools

import (
	"context"
	"fmt"

	"github.com/zcode-dev/agentcore/internal/core"
)

// UpdatePlanTool replaces the full session plan: the model supplies the
// complete ordered list every time. Invocation with no plan slot in the
// ambient context returns an error; a successful call publishes an
// UpdatePlan event for the UI.
type UpdatePlanTool struct {
	BaseTool
}

func NewUpdatePlanTool() *UpdatePlanTool {
	return &UpdatePlanTool{
		BaseTool: BaseTool{
			Def: ToolDefinition{
				Name:        "update_plan",
				Description: "Replace the current task plan with a new ordered list of steps.",
				TitleTemplate: "Updating plan",
				Parameters: &JSONSchema{
					Type: "object",
					Properties: map[string]*JSONSchema{
						"entries": {
							Type:        "array",
							Description: "Full ordered list of plan entries; replaces the existing plan entirely.",
							Items: &JSONSchema{
								Type: "object",
								Properties: map[string]*JSONSchema{
									"content":  {Type: "string"},
									"priority": {Type: "string", Enum: []string{"high", "medium", "low"}},
									"status":   {Type: "string", Enum: []string{"pending", "in_progress", "completed"}},
								},
								Required: []string{"content", "priority", "status"},
							},
						},
					},
					Required: []string{"entries"},
				},
			},
		},
	}
}

func (t *UpdatePlanTool) Execute(ctx context.Context, args map[string]any) ToolResult {
	slot, ok := core.PlanSlotFromContext(ctx)
	if !ok {
		return ToolResult{Success: false, Error: core.ErrPlanSlotUnavailable.Error()}
	}

	raw, _ := args["entries"].([]any)
	items := make([]core.PlanItem, 0, len(raw))
	for _, r := range raw {
		m, ok := r.(map[string]any)
		if !ok {
			continue
		}
		item := core.PlanItem{
			Content:  fmt.Sprint(m["content"]),
			Priority: core.Priority(fmt.Sprint(m["priority"])),
			Status:   core.PlanStatus(fmt.Sprint(m["status"])),
		}
		items = append(items, item)
	}

	slot.SetPlan(items)

	if sink, ok := core.UISinkFromContext(ctx); ok {
		sink.Publish(core.UiEvent{Kind: core.EvUpdatePlan, Plan: items})
	}

	return ToolResult{Success: true, Output: fmt.Sprintf("plan updated with %d entries", len(items))}
}
