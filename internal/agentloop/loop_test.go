package agentloop

import (
	"context"
	"strings"
	"testing"

	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/llm"
	"github.com/zcode-dev/agentcore/internal/tools"
)

// stubProvider streams a single fixed response in chunks of chunkSize
// runes, the way a real provider's SSE feed would arrive piecemeal.
type stubProvider struct {
	response  string
	chunkSize int
}

func (s *stubProvider) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	return s.response, nil
}

func (s *stubProvider) GenerateStream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 8)
	go func() {
		defer close(ch)
		runes := []rune(s.response)
		size := s.chunkSize
		if size <= 0 {
			size = len(runes)
			if size == 0 {
				size = 1
			}
		}
		for i := 0; i < len(runes); i += size {
			end := i + size
			if end > len(runes) {
				end = len(runes)
			}
			ch <- llm.StreamChunk{Text: string(runes[i:end])}
		}
		ch <- llm.StreamChunk{Done: true}
	}()
	return ch, nil
}

type recordingSink struct {
	fragments []core.DisplayFragment
	events    []core.UiEvent
}

func (r *recordingSink) Publish(e core.UiEvent)          { r.events = append(r.events, e) }
func (r *recordingSink) DisplayFragment(f core.DisplayFragment) { r.fragments = append(r.fragments, f) }

func newTestRegistry() *tools.Registry {
	reg := tools.NewRegistry()
	reg.Register(tools.NewReadFilesTool())
	return reg
}

func TestRunIterationNoToolYieldsPlainText(t *testing.T) {
	provider := &stubProvider{response: "Hello there, no tools needed.", chunkSize: 5}
	loop := New(provider, newTestRegistry(), tools.ScopeAgent, nil)

	sess := &core.Session{
		ID:     "s1",
		Config: core.SessionConfig{Dialect: core.DialectXML},
		Messages: []core.Message{
			core.NewUserMessage("say hi"),
		},
	}

	sink := &recordingSink{}
	result := loop.RunIteration(context.Background(), sess, sink)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if result.ToolExecuted {
		t.Fatal("no tool should have been executed")
	}
	if len(sess.Messages) != 2 {
		t.Fatalf("expected assistant message appended, got %d messages", len(sess.Messages))
	}
	if sess.Messages[1].Text() != "Hello there, no tools needed." {
		t.Errorf("got %q", sess.Messages[1].Text())
	}
}

func TestRunIterationDispatchesSingleTool(t *testing.T) {
	response := "<tool:read_files>\n<param:paths>[\"main.go\"]</param:paths>\n</tool:read_files>"
	provider := &stubProvider{response: response, chunkSize: 3}
	loop := New(provider, newTestRegistry(), tools.ScopeAgent, nil)

	sess := &core.Session{
		ID:     "s2",
		Config: core.SessionConfig{Dialect: core.DialectXML, ProjectPath: "."},
		Messages: []core.Message{
			core.NewUserMessage("read main.go"),
		},
	}

	sink := &recordingSink{}
	result := loop.RunIteration(context.Background(), sess, sink)
	if result.Err != nil {
		t.Fatalf("unexpected error: %v", result.Err)
	}
	if !result.ToolExecuted {
		t.Fatal("expected a tool to be dispatched")
	}
	if len(sess.ToolExecutions) != 1 {
		t.Fatalf("expected one tool execution recorded, got %d", len(sess.ToolExecutions))
	}
	if sess.ToolExecutions[0].Name != "read_files" {
		t.Errorf("got tool %q", sess.ToolExecutions[0].Name)
	}
	// assistant message (truncated response) + tool-result message
	if len(sess.Messages) != 3 {
		t.Fatalf("expected 3 messages (user, assistant, tool-result), got %d", len(sess.Messages))
	}
	if sess.Messages[2].Role != core.RoleToolResult {
		t.Errorf("expected last message to be a tool result, got role %q", sess.Messages[2].Role)
	}
}

func TestBuildMessagesReRendersToolCalls(t *testing.T) {
	loop := New(&stubProvider{}, newTestRegistry(), tools.ScopeAgent, nil)

	history := []core.Message{
		core.NewUserMessage("read main.go"),
		core.NewAssistantMessage(1, []core.ContentBlock{
			core.TextBlock("Let me look."),
			core.ToolUseBlock("tool-1-1", "read_files", map[string]any{"paths": []any{"main.go"}}),
		}),
		core.NewToolResultMessage("tool-1-1", "package main", false),
	}

	t.Run("xml dialect", func(t *testing.T) {
		sess := &core.Session{ID: "s4", Config: core.SessionConfig{Dialect: core.DialectXML}, Messages: history}
		msgs := loop.buildMessages(sess)
		if len(msgs) != 4 {
			t.Fatalf("expected system + 3 history messages, got %d", len(msgs))
		}
		assistant := msgs[2].Content
		for _, want := range []string{"Let me look.", "<tool:read_files>", `<param:paths>["main.go"]</param:paths>`, "</tool:read_files>"} {
			if !strings.Contains(assistant, want) {
				t.Errorf("assistant turn missing %q:\n%s", want, assistant)
			}
		}
		if !strings.Contains(msgs[3].Content, "[tool result: package main]") {
			t.Errorf("tool result turn = %q", msgs[3].Content)
		}
	})

	t.Run("caret dialect", func(t *testing.T) {
		sess := &core.Session{ID: "s5", Config: core.SessionConfig{Dialect: core.DialectCaret}, Messages: history}
		msgs := loop.buildMessages(sess)
		assistant := msgs[2].Content
		for _, want := range []string{"^^^read_files\n", `paths: ["main.go"]`, "\n^^^"} {
			if !strings.Contains(assistant, want) {
				t.Errorf("assistant turn missing %q:\n%s", want, assistant)
			}
		}
	})
}

func TestRunIterationCancellation(t *testing.T) {
	provider := &stubProvider{response: "this will never finish streaming", chunkSize: 1}
	loop := New(provider, newTestRegistry(), tools.ScopeAgent, nil)

	sess := &core.Session{
		ID:       "s3",
		Config:   core.SessionConfig{Dialect: core.DialectXML},
		Messages: []core.Message{core.NewUserMessage("hi")},
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel() // cancel immediately, before RunIteration even reads a chunk

	sink := &recordingSink{}
	result := loop.RunIteration(ctx, sess, sink)
	if !result.Cancelled {
		t.Fatal("expected cancellation to be reported")
	}
}
