package core

import "context"

// The interfaces below are the ambient collaborators the dispatcher
// makes available to individual tool implementations via context.Context
// values, rather than by widening every tool's Execute signature: tools
// that don't need a collaborator never have to know it exists, and no
// tool's signature changes when a new one is added.

// PlanSlot is the mutable plan a session exposes to the update_plan tool.
type PlanSlot interface {
	SetPlan(items []PlanItem)
	GetPlan() []PlanItem
}

// PermissionMediator is consulted before executing a tool whose side
// effects require user consent.
type PermissionMediator interface {
	RequestApproval(ctx context.Context, toolName string, input map[string]any) bool
}

// SubAgentRunner spawns and cancels sub-agents: tools like spawn_agent
// that internally run their own model loop, registered per session so
// each can be cancelled independently.
type SubAgentRunner interface {
	Spawn(ctx context.Context, toolID, task string) (resultCh <-chan string, err error)
	Cancel(toolID string) bool
}

// UISink is the event sink a UI implements: asynchronous UiEvents plus
// a synchronous DisplayFragment callback for low-latency streaming.
type UISink interface {
	Publish(event UiEvent)
	DisplayFragment(fragment DisplayFragment)
}

type ambientKey int

const (
	keyPlanSlot ambientKey = iota
	keyPermissionMediator
	keySubAgentRunner
	keyUISink
	keySessionID
	keyWorkingDir
)

func WithPlanSlot(ctx context.Context, slot PlanSlot) context.Context {
	return context.WithValue(ctx, keyPlanSlot, slot)
}

func PlanSlotFromContext(ctx context.Context) (PlanSlot, bool) {
	v, ok := ctx.Value(keyPlanSlot).(PlanSlot)
	return v, ok
}

func WithPermissionMediator(ctx context.Context, m PermissionMediator) context.Context {
	return context.WithValue(ctx, keyPermissionMediator, m)
}

func PermissionMediatorFromContext(ctx context.Context) (PermissionMediator, bool) {
	v, ok := ctx.Value(keyPermissionMediator).(PermissionMediator)
	return v, ok
}

func WithSubAgentRunner(ctx context.Context, r SubAgentRunner) context.Context {
	return context.WithValue(ctx, keySubAgentRunner, r)
}

func SubAgentRunnerFromContext(ctx context.Context) (SubAgentRunner, bool) {
	v, ok := ctx.Value(keySubAgentRunner).(SubAgentRunner)
	return v, ok
}

func WithUISink(ctx context.Context, sink UISink) context.Context {
	return context.WithValue(ctx, keyUISink, sink)
}

func UISinkFromContext(ctx context.Context) (UISink, bool) {
	v, ok := ctx.Value(keyUISink).(UISink)
	return v, ok
}

func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keySessionID, id)
}

func SessionIDFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keySessionID).(string)
	return v, ok
}

func WithWorkingDir(ctx context.Context, dir string) context.Context {
	return context.WithValue(ctx, keyWorkingDir, dir)
}

func WorkingDirFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(keyWorkingDir).(string)
	return v, ok
}
