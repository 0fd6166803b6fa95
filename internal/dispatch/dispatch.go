// Package dispatch is the tool dispatcher: it takes the
// tool-lookup/schema-validation half already done by tools.Registry and
// adds the side-effecting half — permission mediation, UiEvent status
// transitions, execution, and result wrapping — behind one Run call.
package dispatch

import (
	"context"
	"time"

	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/tools"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/zcode-dev/agentcore/internal/dispatch")

// Dispatcher resolves a ToolRequest to a typed handler and runs it under
// a ToolContext.
type Dispatcher struct {
	registry *tools.Registry
	scope    tools.Scope
}

// New builds a Dispatcher over registry, gating lookups to scope.
func New(registry *tools.Registry, scope tools.Scope) *Dispatcher {
	return &Dispatcher{registry: registry, scope: scope}
}

// sideEffecting reports whether a tool's effects require consent before
// running. Read/search tools never need consent; write/execute tools do.
func sideEffecting(name string) bool {
	switch tools.KindOf(name) {
	case tools.KindEdit, tools.KindExecute:
		return true
	default:
		return false
	}
}

// Run executes one tool request end to end: validate, optionally obtain
// permission, dispatch UpdateToolStatus transitions, execute, and record
// the outcome on the returned ToolExecution (ResultMessage wraps it as a
// tool-result Message referencing the request's id).
//
// ctx is expected to already carry whatever ambient collaborators the
// target tool needs (core.With* helpers) — Run adds only a span tagged
// with the tool's name and id, the spawn tool id (tools.WithSpawnToolID),
// and forwarding of status events to the UI sink already in ctx, if any.
func (d *Dispatcher) Run(ctx context.Context, execID int, req core.ToolRequest) core.ToolExecution {
	ctx, span := tracer.Start(ctx, "tool.dispatch", trace.WithAttributes(
		attribute.String("tool.name", req.Name),
		attribute.String("tool.id", req.ID),
	))
	defer span.End()

	exec := core.ToolExecution{RequestID: execID, ToolID: req.ID, Name: req.Name, Status: core.ExecPending, Input: req.Input}
	sink, hasSink := core.UISinkFromContext(ctx)
	title := req.Name

	tool, _, err := d.registry.Dispatch(ctx, req, d.scope)
	if err != nil {
		return d.fail(exec, sink, hasSink, err.Error())
	}
	title = tool.Definition().Title(req.Input)

	if sideEffecting(req.Name) {
		if mediator, ok := core.PermissionMediatorFromContext(ctx); ok {
			if !mediator.RequestApproval(ctx, req.Name, req.Input) {
				return d.fail(exec, sink, hasSink, core.ErrPermissionDenied.Error())
			}
		}
	}

	if hasSink {
		publishStatus(sink, req.ID, req.Name, core.ExecRunning, title)
	}
	if err := exec.Advance(core.ExecRunning, title); err != nil {
		span.RecordError(err)
	}

	started := time.Now()
	result := tool.Execute(tools.WithSpawnToolID(ctx, req.ID), req.Input)
	span.SetAttributes(attribute.Int64("tool.duration_ms", time.Since(started).Milliseconds()))

	if result.Success {
		exec.Advance(core.ExecSuccess, result.Status())
		exec.Output = result.Output
		if hasSink {
			publishStatus(sink, req.ID, req.Name, core.ExecSuccess, result.Status())
		}
	} else {
		exec.Advance(core.ExecError, result.Error)
		exec.Output = result.Error
		if hasSink {
			publishStatus(sink, req.ID, req.Name, core.ExecError, result.Error)
		}
		span.RecordError(core.ErrSchemaMismatch)
	}
	return exec
}

// fail finalizes exec in the Error state without ever running the tool
// (unknown tool, schema mismatch, permission denied).
func (d *Dispatcher) fail(exec core.ToolExecution, sink core.UISink, hasSink bool, message string) core.ToolExecution {
	if exec.Status == core.ExecPending {
		exec.Status = core.ExecRunning
	}
	exec.Status = core.ExecError
	exec.StatusMessage = message
	exec.Output = message
	if hasSink {
		publishStatus(sink, exec.ToolID, exec.Name, core.ExecError, message)
	}
	return exec
}

func publishStatus(sink core.UISink, toolID, name string, status core.ExecStatus, message string) {
	sink.Publish(core.UiEvent{
		Kind:       core.EvUpdateToolStatus,
		ToolID:     toolID,
		ToolName:   name,
		ToolStatus: status,
		Text:       message,
	})
}

// ResultMessage wraps a finished ToolExecution as the tool-result
// Message appended to the conversation.
func ResultMessage(exec core.ToolExecution) core.Message {
	return core.NewToolResultMessage(exec.ToolID, exec.Output, exec.Status == core.ExecError)
}
