package session

import (
	"context"
	"testing"
	"time"

	"github.com/zcode-dev/agentcore/internal/agentloop"
	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/llm"
	"github.com/zcode-dev/agentcore/internal/persistence"
	"github.com/zcode-dev/agentcore/internal/tools"
)

// instantProvider answers with fixed plain text and no tool calls, so an
// agent task it drives runs exactly one iteration and yields.
type instantProvider struct{ text string }

func (p *instantProvider) Generate(ctx context.Context, messages []llm.Message) (string, error) {
	return p.text, nil
}

func (p *instantProvider) GenerateStream(ctx context.Context, messages []llm.Message) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 2)
	ch <- llm.StreamChunk{Text: p.text}
	ch <- llm.StreamChunk{Done: true}
	close(ch)
	return ch, nil
}

type noopSink struct{}

func (noopSink) Publish(core.UiEvent)              {}
func (noopSink) DisplayFragment(core.DisplayFragment) {}

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := persistence.Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	registry := tools.NewRegistry()
	loop := agentloop.New(&instantProvider{text: "done"}, registry, tools.ScopeAgent, nil)

	return New(store, func(*core.Session) *agentloop.Loop { return loop }, noopSink{},
		func() core.SessionConfig { return core.SessionConfig{Dialect: core.DialectXML} },
		func() core.ModelConfig { return core.ModelConfig{Provider: "test", Model: "test-model"} })
}

func TestCreateAndLoadSessionRoundTrips(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "my session")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty id")
	}

	events, err := m.SetActiveSession(ctx, id)
	if err != nil {
		t.Fatalf("set active: %v", err)
	}
	if len(events) == 0 {
		t.Fatal("expected reconstruction events")
	}
}

func TestStartAgentForMessageRunsToCompletion(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.SetActiveSession(ctx, id); err != nil {
		t.Fatalf("set active: %v", err)
	}

	if err := m.StartAgentForMessage(ctx, id, []core.ContentBlock{core.TextBlock("hello")}); err != nil {
		t.Fatalf("start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		inst, err := m.instance(id)
		if err != nil {
			t.Fatalf("instance: %v", err)
		}
		inst.mu.Lock()
		running := inst.running
		inst.mu.Unlock()
		if !running {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("agent task never finished")
		}
		time.Sleep(5 * time.Millisecond)
	}

	inst, _ := m.instance(id)
	inst.mu.Lock()
	n := len(inst.session.Messages)
	inst.mu.Unlock()
	if n < 2 {
		t.Fatalf("expected at least user+assistant messages, got %d", n)
	}
}

func TestStartAgentForMessageQueuesWhileRunning(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := m.SetActiveSession(ctx, id); err != nil {
		t.Fatalf("set active: %v", err)
	}

	inst, err := m.instance(id)
	if err != nil {
		t.Fatalf("instance: %v", err)
	}
	inst.mu.Lock()
	inst.running = true
	inst.mu.Unlock()

	if err := m.StartAgentForMessage(ctx, id, []core.ContentBlock{core.TextBlock("queued while busy")}); err != nil {
		t.Fatalf("start: %v", err)
	}

	if inst.mailbox.IsEmpty() {
		t.Fatal("expected the message to land in the mailbox instead of starting a second task")
	}
}

func TestDeleteSessionRemovesRecord(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.DeleteSession(ctx, id); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.instance(id); err != core.ErrSessionNotFound {
		t.Fatalf("expected instance to be gone, got err=%v", err)
	}
	if _, err := m.store.Load(ctx, id); err != core.ErrSessionNotFound {
		t.Fatalf("expected record to be gone, got err=%v", err)
	}
}

func TestQueueUserMessageAndRequestForEdit(t *testing.T) {
	m := newTestManager(t)
	ctx := context.Background()

	id, err := m.CreateSession(ctx, "")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := m.QueueUserMessage(id, "first"); err != nil {
		t.Fatalf("queue: %v", err)
	}
	if err := m.QueueUserMessage(id, "second"); err != nil {
		t.Fatalf("queue: %v", err)
	}

	text, ok, err := m.RequestPendingMessageForEdit(id)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if !ok {
		t.Fatal("expected pending text")
	}
	if text != "first\nsecond" {
		t.Errorf("got %q", text)
	}

	if _, ok, _ := m.RequestPendingMessageForEdit(id); ok {
		t.Fatal("mailbox should be empty after being taken once")
	}
}
