package compaction

import (
	"strings"
	"testing"

	"github.com/zcode-dev/agentcore/internal/core"
)

func TestNeedsCompactionRespectsThreshold(t *testing.T) {
	p := Policy{MaxEstimatedTokens: 10, KeepRecentMessages: 2}
	small := []core.Message{core.NewUserMessage("hi")}
	if p.NeedsCompaction(small) {
		t.Fatal("short history should not need compaction")
	}

	big := []core.Message{core.NewUserMessage(strings.Repeat("x", 1000))}
	if !p.NeedsCompaction(big) {
		t.Fatal("long history should need compaction")
	}
}

func TestZeroThresholdDisablesCompaction(t *testing.T) {
	p := Policy{MaxEstimatedTokens: 0}
	big := []core.Message{core.NewUserMessage(strings.Repeat("x", 100000))}
	if p.NeedsCompaction(big) {
		t.Fatal("zero threshold must disable compaction")
	}
}

func TestCompactKeepsRecentMessagesVerbatim(t *testing.T) {
	p := Policy{MaxEstimatedTokens: 1, KeepRecentMessages: 2}
	messages := []core.Message{
		core.NewUserMessage("first ask"),
		core.NewAssistantMessage(1, []core.ContentBlock{core.TextBlock("first answer")}),
		core.NewUserMessage("second ask"),
		core.NewAssistantMessage(2, []core.ContentBlock{core.TextBlock("second answer")}),
	}

	out, summary, ok := p.Compact(messages)
	if !ok {
		t.Fatal("expected compaction to occur")
	}
	if len(out) != 3 { // 1 marker + 2 kept
		t.Fatalf("got %d messages, want 3", len(out))
	}
	if !strings.Contains(summary, "first ask") {
		t.Errorf("summary missing folded content: %q", summary)
	}
	if out[1].Text() != "second ask" || out[2].Text() != "second answer" {
		t.Errorf("recent messages not preserved verbatim: %+v", out[1:])
	}
}

func TestCompactNoOpWhenHistoryWithinKeepWindow(t *testing.T) {
	p := Policy{MaxEstimatedTokens: 1, KeepRecentMessages: 10}
	messages := []core.Message{core.NewUserMessage("hi")}
	out, _, ok := p.Compact(messages)
	if ok {
		t.Fatal("expected no compaction when history fits in keep window")
	}
	if len(out) != 1 {
		t.Fatalf("messages should be unchanged, got %d", len(out))
	}
}
