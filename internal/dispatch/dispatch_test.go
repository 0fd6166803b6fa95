package dispatch

import (
	"context"
	"testing"

	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/tools"
)

type recordingSink struct {
	events []core.UiEvent
}

func (r *recordingSink) Publish(e core.UiEvent)              { r.events = append(r.events, e) }
func (r *recordingSink) DisplayFragment(core.DisplayFragment) {}

func registryWithReadAndWrite() *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(tools.NewReadFilesTool())
	reg.Register(tools.NewWriteFileTool(nil))
	return reg
}

func TestRunReadToolNeedsNoPermission(t *testing.T) {
	reg := registryWithReadAndWrite()
	d := New(reg, tools.ScopeAgent)

	sink := &recordingSink{}
	ctx := core.WithUISink(context.Background(), sink)
	req := core.ToolRequest{ID: "tool-1-1", Name: "read_files", Input: map[string]any{"paths": []any{"/nonexistent/zcode-dispatch-test"}}}

	exec := d.Run(ctx, 1, req)
	if exec.Status != core.ExecError && exec.Status != core.ExecSuccess {
		t.Fatalf("expected a terminal status, got %q", exec.Status)
	}
	// reading a missing file fails at Execute, not at permission mediation,
	// so no permission-denied message should appear.
	if exec.StatusMessage == core.ErrPermissionDenied.Error() {
		t.Fatal("read tool should never require permission")
	}
}

type denyingMediator struct{}

func (denyingMediator) RequestApproval(ctx context.Context, toolName string, input map[string]any) bool {
	return false
}

func TestRunSideEffectingToolDeniedByMediator(t *testing.T) {
	reg := registryWithReadAndWrite()
	d := New(reg, tools.ScopeAgent)

	ctx := context.Background()
	ctx = core.WithPermissionMediator(ctx, denyingMediator{})
	sink := &recordingSink{}
	ctx = core.WithUISink(ctx, sink)

	req := core.ToolRequest{ID: "tool-1-1", Name: "write_file", Input: map[string]any{"path": "/tmp/zcode-dispatch-test.txt", "content": "hi"}}
	exec := d.Run(ctx, 1, req)

	if exec.Status != core.ExecError {
		t.Fatalf("expected denied write to error out, got %q", exec.Status)
	}
	if exec.StatusMessage != core.ErrPermissionDenied.Error() {
		t.Fatalf("expected permission-denied message, got %q", exec.StatusMessage)
	}
}

func TestRunUnknownToolFails(t *testing.T) {
	reg := registryWithReadAndWrite()
	d := New(reg, tools.ScopeAgent)

	req := core.ToolRequest{ID: "tool-1-1", Name: "does_not_exist", Input: map[string]any{}}
	exec := d.Run(context.Background(), 1, req)
	if exec.Status != core.ExecError {
		t.Fatalf("expected unknown tool to error, got %q", exec.Status)
	}
}

func TestResultMessageWrapsOutput(t *testing.T) {
	exec := core.ToolExecution{ToolID: "tool-1-1", Output: "file contents", Status: core.ExecSuccess}
	msg := ResultMessage(exec)
	if msg.Role != core.RoleToolResult {
		t.Fatalf("expected tool-result role, got %q", msg.Role)
	}
}
