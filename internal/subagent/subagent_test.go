package subagent

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestSpawnReturnsExecuteResult(t *testing.T) {
	r := NewRunner(nil, "sess-1", func(ctx context.Context, toolID, task string) (string, error) {
		return "result for " + task, nil
	})

	ch, err := r.Spawn(context.Background(), "tool-1", "do the thing")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}

	select {
	case got := <-ch:
		if got != "result for do the thing" {
			t.Errorf("got %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for sub-agent result")
	}

	if r.Active("tool-1") {
		t.Fatal("sub-agent should be cleared from the registry after completion")
	}
}

func TestSpawnRejectsDuplicateToolID(t *testing.T) {
	started := make(chan struct{})
	block := make(chan struct{})
	r := NewRunner(nil, "sess-1", func(ctx context.Context, toolID, task string) (string, error) {
		close(started)
		<-block
		return "done", nil
	})

	if _, err := r.Spawn(context.Background(), "tool-dup", "task"); err != nil {
		t.Fatalf("first spawn: %v", err)
	}
	<-started

	if _, err := r.Spawn(context.Background(), "tool-dup", "task"); err == nil {
		t.Fatal("expected an error spawning a duplicate tool id")
	}
	close(block)
}

func TestCancelStopsRunningSubAgentWithoutResult(t *testing.T) {
	entered := make(chan struct{})
	r := NewRunner(nil, "sess-1", func(ctx context.Context, toolID, task string) (string, error) {
		close(entered)
		<-ctx.Done()
		return "", errors.New("cancelled")
	})

	ch, err := r.Spawn(context.Background(), "tool-2", "long task")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	<-entered

	if !r.Cancel("tool-2") {
		t.Fatal("expected Cancel to report success for a running sub-agent")
	}

	select {
	case v, ok := <-ch:
		if ok {
			t.Fatalf("expected channel to close without a value, got %q", v)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for cancellation to close the channel")
	}
}

func TestCancelUnknownToolIDReturnsFalse(t *testing.T) {
	r := NewRunner(nil, "sess-1", func(ctx context.Context, toolID, task string) (string, error) {
		return "", nil
	})
	if r.Cancel("never-started") {
		t.Fatal("expected Cancel to report false for an unknown tool id")
	}
}
