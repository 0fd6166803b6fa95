package session

import (
	"testing"

	"github.com/zcode-dev/agentcore/internal/core"
)

func TestMailboxQueueTextJoinsWithNewline(t *testing.T) {
	var mb Mailbox
	mb.QueueText("A")
	mb.QueueText("B")
	text, _, ok := mb.Take()
	if !ok {
		t.Fatal("expected a value")
	}
	if text != "A\nB" {
		t.Errorf("got %q", text)
	}
}

func TestMailboxTakeClearsState(t *testing.T) {
	var mb Mailbox
	mb.QueueText("hi")
	if _, _, ok := mb.Take(); !ok {
		t.Fatal("expected first take to succeed")
	}
	if !mb.IsEmpty() {
		t.Fatal("mailbox should be empty after Take")
	}
	if _, _, ok := mb.Take(); ok {
		t.Fatal("second take on an empty mailbox should report ok=false")
	}
}

func TestMailboxQueueBlocksIndependentOfText(t *testing.T) {
	var mb Mailbox
	mb.QueueBlocks([]core.ContentBlock{core.TextBlock("attached")})
	if mb.IsEmpty() {
		t.Fatal("mailbox with only blocks should not be empty")
	}
	_, blocks, ok := mb.Take()
	if !ok || len(blocks) != 1 {
		t.Fatalf("expected one block, got %v ok=%v", blocks, ok)
	}
}

func TestMailboxPeekDoesNotClear(t *testing.T) {
	var mb Mailbox
	mb.QueueText("preview")
	if got := mb.Peek(); got != "preview" {
		t.Errorf("got %q", got)
	}
	if mb.IsEmpty() {
		t.Fatal("Peek must not clear the mailbox")
	}
}
