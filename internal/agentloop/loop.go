// Package agentloop implements the agent loop: one iteration builds a
// model request from persisted messages, streams the response through
// the configured dialect's stream parser, dispatches at most one tool
// call, and persists the results. Each iteration and each tool dispatch
// carries an OpenTelemetry span.
package agentloop

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/zcode-dev/agentcore/internal/compaction"
	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/dialect"
	"github.com/zcode-dev/agentcore/internal/dispatch"
	"github.com/zcode-dev/agentcore/internal/llm"
	"github.com/zcode-dev/agentcore/internal/tools"
	"github.com/zcode-dev/agentcore/internal/zlog"
)

var tracer = otel.Tracer("github.com/zcode-dev/agentcore/internal/agentloop")

// Loop drives the request/stream/parse/dispatch cycle for one session at
// a time. It holds no per-session state itself — callers (internal/session)
// own the core.Session and call RunIteration repeatedly.
type Loop struct {
	Provider        llm.Provider
	Registry        *tools.Registry
	Scope           tools.Scope
	SystemPrompt    func(sess *core.Session) string
	CompactionPolicy compaction.Policy

	// Permissions mediates side-effecting tools; nil means no gating
	// beyond each tool's own ConfirmFunc.
	Permissions core.PermissionMediator

	// SubAgentsFor supplies the session's sub-agent runner so spawn_agent
	// can register cancellable sub-agents; nil disables delegation.
	SubAgentsFor func(sess *core.Session) core.SubAgentRunner
}

// New builds a Loop over the given collaborators.
func New(provider llm.Provider, registry *tools.Registry, scope tools.Scope, systemPrompt func(sess *core.Session) string) *Loop {
	return &Loop{
		Provider:         provider,
		Registry:         registry,
		Scope:            scope,
		SystemPrompt:     systemPrompt,
		CompactionPolicy: compaction.DefaultPolicy(),
	}
}

// IterationResult summarizes what RunIteration did, so the caller (the
// Session Manager's agent task) can decide whether to loop again, drain
// the mailbox, or yield.
type IterationResult struct {
	ToolExecuted bool
	Cancelled    bool
	Err          error
}

// RunIteration performs exactly one agent-loop iteration against sess,
// mutating it in place (appending the assistant message, any tool-result
// message, and tool execution record) and forwarding fragments/events to
// sink. ctx's cancellation is the UI's cancel signal.
func (l *Loop) RunIteration(ctx context.Context, sess *core.Session, sink core.UISink) IterationResult {
	ctx, span := tracer.Start(ctx, "agent.iteration", trace.WithAttributes(
		attribute.String("session.id", sess.ID),
	))
	defer span.End()
	log := zlog.With("agentloop")

	if l.CompactionPolicy.NeedsCompaction(sess.Messages) {
		if compacted, summary, ok := l.CompactionPolicy.Compact(sess.Messages); ok {
			sess.Messages = compacted
			if sink != nil {
				sink.Publish(core.UiEvent{Kind: core.EvDisplayCompactionSummary, SessionID: sess.ID, Text: summary})
				sink.DisplayFragment(core.CompactionDividerFrag())
			}
		}
	}

	requestID := sess.BumpRequestID()
	if sink != nil {
		sink.Publish(core.UiEvent{Kind: core.EvStreamingStarted, SessionID: sess.ID, RequestID: requestID})
	}

	parser := dialect.New(sess.Config.Dialect, requestID)
	chunks, err := l.stream(ctx, sess)
	if err != nil {
		if sink != nil {
			sink.Publish(core.UiEvent{Kind: core.EvDisplayError, SessionID: sess.ID, Err: err.Error()})
			sink.Publish(core.UiEvent{Kind: core.EvStreamingStopped, SessionID: sess.ID, RequestID: requestID, Err: err.Error()})
		}
		return IterationResult{Err: err}
	}

	cancelled := false
drain:
	for {
		select {
		case <-ctx.Done():
			cancelled = true
			break drain
		case chunk, ok := <-chunks:
			if !ok {
				break drain
			}
			if chunk.Err != nil {
				if sink != nil {
					sink.Publish(core.UiEvent{Kind: core.EvDisplayError, SessionID: sess.ID, Err: chunk.Err.Error()})
				}
				_, truncated, _ := parser.Finish()
				l.persistAssistantTurn(sess, requestID, truncated)
				if sink != nil {
					sink.Publish(core.UiEvent{Kind: core.EvStreamingStopped, SessionID: sess.ID, RequestID: requestID, Err: chunk.Err.Error()})
				}
				return IterationResult{Err: chunk.Err}
			}
			for _, frag := range parser.FeedChunk(chunk) {
				if sink != nil {
					sink.DisplayFragment(frag)
				}
			}
			if chunk.Kind == core.ChunkStreamingComplete {
				break drain
			}
		}
	}

	toolRequests, truncated, finishErr := parser.Finish()
	l.persistAssistantTurn(sess, requestID, truncated)
	if finishErr != nil {
		// tool-limit: the response is already truncated at the first
		// tool, so the turn proceeds; the overflow is worth a log line
		log.Warn("model response truncated", "session", sess.ID, "reason", finishErr)
	}

	if sink != nil {
		sink.Publish(core.UiEvent{Kind: core.EvStreamingStopped, SessionID: sess.ID, RequestID: requestID, Cancelled: cancelled})
	}
	if cancelled {
		return IterationResult{Cancelled: true}
	}
	if len(toolRequests) == 0 {
		return IterationResult{}
	}

	req := toolRequests[0]
	exec := core.ToolExecution{RequestID: requestID, ToolID: req.ID, Name: req.Name, Status: core.ExecPending, Input: req.Input}
	sess.ToolExecutions = append(sess.ToolExecutions, exec)
	if sink != nil {
		sink.Publish(core.UiEvent{Kind: core.EvStartTool, SessionID: sess.ID, ToolID: req.ID, ToolName: req.Name})
	}

	disp := dispatch.New(l.Registry, l.Scope)
	started := time.Now()
	finished := disp.Run(l.toolContext(ctx, sess, sink), requestID, req)
	span.SetAttributes(attribute.Int64("tool.duration_ms", time.Since(started).Milliseconds()))
	log.Debug("tool dispatched", "name", req.Name, "status", finished.Status)

	sess.ToolExecutions[len(sess.ToolExecutions)-1] = finished
	sess.Messages = append(sess.Messages, dispatch.ResultMessage(finished))
	if sink != nil {
		sink.Publish(core.UiEvent{Kind: core.EvEndTool, SessionID: sess.ID, ToolID: req.ID, ToolName: req.Name})
	}

	return IterationResult{ToolExecuted: true}
}

// toolContext attaches the ambient collaborators a tool may need to
// ctx so whichever tool dispatch resolves can find them.
func (l *Loop) toolContext(ctx context.Context, sess *core.Session, sink core.UISink) context.Context {
	ctx = core.WithSessionID(ctx, sess.ID)
	if sink != nil {
		ctx = core.WithUISink(ctx, sink)
	}
	if sess.Config.ProjectPath != "" {
		ctx = core.WithWorkingDir(ctx, sess.Config.ProjectPath)
	}
	ctx = core.WithPlanSlot(ctx, sessionPlanSlot{sess})
	if l.Permissions != nil {
		ctx = core.WithPermissionMediator(ctx, l.Permissions)
	}
	if l.SubAgentsFor != nil {
		if runner := l.SubAgentsFor(sess); runner != nil {
			ctx = core.WithSubAgentRunner(ctx, runner)
		}
	}
	return ctx
}

// sessionPlanSlot exposes a session's plan to the update_plan tool. The
// agent task owns the session while it runs, so plain field access is
// safe here.
type sessionPlanSlot struct {
	sess *core.Session
}

func (s sessionPlanSlot) SetPlan(items []core.PlanItem) { s.sess.Plan = items }
func (s sessionPlanSlot) GetPlan() []core.PlanItem      { return s.sess.Plan }

// persistAssistantTurn appends the truncated response as the session's
// next assistant message, unless it carried no blocks at all (a stream
// that produced nothing, e.g. immediate cancellation).
func (l *Loop) persistAssistantTurn(sess *core.Session, requestID int, truncated dialect.TruncatedResponse) {
	if len(truncated.Blocks) == 0 {
		return
	}
	sess.Messages = append(sess.Messages, core.NewAssistantMessage(requestID, truncated.Blocks))
}

// stream opens the provider call and translates its plain-text chunks
// into core.StreamingChunks. XML and caret dialects carry their tool
// markup inside ordinary text, so a ChunkText stream is sufficient; a
// session configured for the native-JSON dialect instead drives
// streamNativeTools, which needs the provider's native tool-call deltas.
func (l *Loop) stream(ctx context.Context, sess *core.Session) (<-chan core.StreamingChunk, error) {
	if sess.Config.Dialect == core.DialectJSON {
		if tp, ok := l.Provider.(llm.ToolProvider); ok {
			return l.streamNativeTools(ctx, sess, tp)
		}
	}

	messages := l.buildMessages(sess)
	raw, err := l.Provider.GenerateStream(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("start stream: %w", err)
	}

	out := make(chan core.StreamingChunk)
	go func() {
		defer close(out)
		for chunk := range raw {
			if chunk.Error != nil {
				out <- core.StreamingChunk{Kind: core.ChunkStreamingComplete, Err: chunk.Error}
				return
			}
			if chunk.Done {
				out <- core.StreamingChunk{Kind: core.ChunkStreamingComplete}
				return
			}
			kind := core.ChunkText
			if chunk.Thinking {
				kind = core.ChunkThinking
			}
			out <- core.StreamingChunk{Kind: kind, Text: chunk.Text}
		}
	}()
	return out, nil
}

// streamNativeTools drives the native-JSON dialect off a ToolProvider's
// structured tool-call deltas instead of text markup, translating each
// accumulated OpenAIToolCall into the ChunkInputJSON shape the JSON
// dialect parser expects: the first delta for a given
// index carries (name,id), subsequent deltas carry only content.
func (l *Loop) streamNativeTools(ctx context.Context, sess *core.Session, tp llm.ToolProvider) (<-chan core.StreamingChunk, error) {
	messages := l.buildMessages(sess)
	defs := l.Registry.ListForScope(l.Scope)
	oaiTools := make([]llm.OpenAITool, 0, len(defs))
	for _, d := range defs {
		oaiTools = append(oaiTools, llm.OpenAITool{
			Type: "function",
			Function: llm.OpenAIFunction{
				Name:        d.Name,
				Description: d.Description,
				Parameters:  schemaToMap(d.Parameters),
			},
		})
	}

	raw, err := tp.GenerateStreamWithTools(ctx, messages, oaiTools)
	if err != nil {
		return nil, fmt.Errorf("start tool stream: %w", err)
	}

	out := make(chan core.StreamingChunk)
	go func() {
		defer close(out)
		seenIDs := map[int]bool{}
		for chunk := range raw {
			if chunk.Error != nil {
				out <- core.StreamingChunk{Kind: core.ChunkStreamingComplete, Err: chunk.Error}
				return
			}
			// the terminal chunk repeats the accumulated text; only the
			// incremental deltas may be fed to the parser
			if chunk.Text != "" && !chunk.Done {
				out <- core.StreamingChunk{Kind: core.ChunkText, Text: chunk.Text}
			}
			for i, tc := range chunk.ToolCalls {
				if !seenIDs[i] {
					seenIDs[i] = true
					out <- core.StreamingChunk{Kind: core.ChunkInputJSON, ToolName: tc.Function.Name, ToolID: tc.ID, Content: tc.Function.Arguments}
				} else {
					out <- core.StreamingChunk{Kind: core.ChunkInputJSON, Content: tc.Function.Arguments}
				}
			}
			if chunk.Done {
				out <- core.StreamingChunk{Kind: core.ChunkStreamingComplete}
				return
			}
		}
	}()
	return out, nil
}

func schemaToMap(s *tools.JSONSchema) map[string]any {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	out := map[string]any{"type": s.Type}
	if len(s.Properties) > 0 {
		props := map[string]any{}
		for name, prop := range s.Properties {
			props[name] = schemaToMap(prop)
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		out["required"] = s.Required
	}
	if len(s.Enum) > 0 {
		out["enum"] = s.Enum
	}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if s.Items != nil {
		out["items"] = schemaToMap(s.Items)
	}
	return out
}

// buildMessages assembles the system prompt (project context + dialect
// tool listing) plus every session message, translated into the llm
// package's flat Message shape.
func (l *Loop) buildMessages(sess *core.Session) []llm.Message {
	system := l.Registry.BuildSystemPrompt(sess.Config.Dialect, l.Scope)
	if l.SystemPrompt != nil {
		system = l.SystemPrompt(sess) + "\n\n" + system
	}

	out := make([]llm.Message, 0, len(sess.Messages)+1)
	out = append(out, llm.Message{Role: "system", Content: system})
	for _, m := range sess.Messages {
		role := string(m.Role)
		if m.Role == core.RoleToolResult {
			role = "user" // providers without native tool messages see results as user turns
		}
		out = append(out, llm.Message{Role: role, Content: renderBlocks(sess.Config.Dialect, m.Content)})
	}
	return out
}

// renderBlocks flattens a message's content blocks into a single string
// for providers that only speak plain text, rendering tool_use/tool_result
// blocks back into the dialect's own grammar so a non-tool-native
// provider still sees a faithful transcript of what it previously said.
func renderBlocks(d core.Dialect, blocks []core.ContentBlock) string {
	var out string
	for _, b := range blocks {
		switch b.Kind {
		case core.BlockText:
			out += b.Text
		case core.BlockThinking:
			out += "<thinking>" + b.Text + "</thinking>"
		case core.BlockToolUse:
			out += renderToolUse(d, b)
		case core.BlockToolResult:
			if b.IsError {
				out += fmt.Sprintf("[tool error: %s]", b.ToolResultContent)
			} else {
				out += fmt.Sprintf("[tool result: %s]", b.ToolResultContent)
			}
		}
	}
	return out
}

// renderToolUse re-emits a persisted tool call in the dialect grammar the
// model originally spoke, so a replayed transcript shows the call exactly
// where it happened. Parameters render in sorted order; the stored input
// is a map, and a stable order keeps prompt caching effective.
func renderToolUse(d core.Dialect, b core.ContentBlock) string {
	keys := make([]string, 0, len(b.ToolInput))
	for k := range b.ToolInput {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var sb strings.Builder
	switch d {
	case core.DialectCaret:
		sb.WriteString("\n^^^" + b.ToolName + "\n")
		for _, k := range keys {
			v := paramText(b.ToolInput[k])
			if strings.Contains(v, "\n") {
				sb.WriteString(k + " ---\n" + v + "\n--- " + k + "\n")
			} else {
				sb.WriteString(k + ": " + v + "\n")
			}
		}
		sb.WriteString("^^^\n")
	default:
		// XML grammar doubles as the textual fallback for the native
		// dialect when the provider lacks tool support.
		sb.WriteString("\n<tool:" + b.ToolName + ">\n")
		for _, k := range keys {
			sb.WriteString("<param:" + k + ">" + paramText(b.ToolInput[k]) + "</param:" + k + ">\n")
		}
		sb.WriteString("</tool:" + b.ToolName + ">")
	}
	return sb.String()
}

// paramText renders one stored input value back to parameter text:
// strings verbatim, everything else as its JSON encoding.
func paramText(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(raw)
}
