package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/zcode-dev/agentcore/internal/core"
)

func newTestSession(id string) *core.Session {
	now := time.Now().UTC().Truncate(time.Second)
	return &core.Session{
		ID:        id,
		Name:      "test session",
		CreatedAt: now,
		UpdatedAt: now,
		Config: core.SessionConfig{
			Dialect:     core.DialectXML,
			ProjectName: "demo",
			ProjectPath: "/tmp/demo",
		},
		Messages: []core.Message{
			core.NewUserMessage("hello"),
			core.NewAssistantMessage(1, []core.ContentBlock{core.TextBlock("hi there")}),
		},
		ToolExecutions: []core.ToolExecution{
			{RequestID: 1, ToolID: "tool-1-1", Name: "read_file", Status: core.ExecSuccess, Output: "contents"},
		},
		Plan: []core.PlanItem{
			{Content: "step one", Priority: core.PriorityHigh, Status: core.PlanPending},
		},
		NextRequestID: 1,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	ctx := context.Background()
	sess := newTestSession("sess-1")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatalf("save: %v", err)
	}

	loaded, err := store.Load(ctx, "sess-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if loaded.Name != sess.Name || loaded.Config.Dialect != sess.Config.Dialect {
		t.Fatalf("header mismatch: %+v", loaded)
	}
	if len(loaded.Messages) != len(sess.Messages) {
		t.Fatalf("message count: got %d want %d", len(loaded.Messages), len(sess.Messages))
	}
	for i, m := range loaded.Messages {
		if m.Text() != sess.Messages[i].Text() || m.Role != sess.Messages[i].Role {
			t.Errorf("message %d mismatch: got %+v want %+v", i, m, sess.Messages[i])
		}
	}
	if len(loaded.ToolExecutions) != 1 || loaded.ToolExecutions[0].Status != core.ExecSuccess {
		t.Fatalf("tool executions mismatch: %+v", loaded.ToolExecutions)
	}
	if len(loaded.Plan) != 1 || loaded.Plan[0].Content != "step one" {
		t.Fatalf("plan mismatch: %+v", loaded.Plan)
	}
}

func TestLoadMissingSessionReturnsErrSessionNotFound(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()

	if _, err := store.Load(context.Background(), "nope"); err != core.ErrSessionNotFound {
		t.Fatalf("got %v, want ErrSessionNotFound", err)
	}
}

func TestListOrdersByUpdatedAtDescending(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	older := newTestSession("older")
	older.UpdatedAt = time.Now().Add(-time.Hour).UTC().Truncate(time.Second)
	newer := newTestSession("newer")

	if err := store.Save(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := store.Save(ctx, newer); err != nil {
		t.Fatal(err)
	}

	list, err := store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 || list[0].ID != "newer" {
		t.Fatalf("unexpected order: %+v", list)
	}

	latest, err := store.LatestID(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if latest != "newer" {
		t.Fatalf("got %s, want newer", latest)
	}
}

func TestDeleteRemovesAllRows(t *testing.T) {
	store, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer store.Close()
	ctx := context.Background()

	sess := newTestSession("to-delete")
	if err := store.Save(ctx, sess); err != nil {
		t.Fatal(err)
	}
	if err := store.Delete(ctx, "to-delete"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Load(ctx, "to-delete"); err != core.ErrSessionNotFound {
		t.Fatalf("got %v, want ErrSessionNotFound after delete", err)
	}
}
