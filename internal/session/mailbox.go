package session

import (
	"sync"

	"github.com/zcode-dev/agentcore/internal/core"
)

// Mailbox is a single-slot shared buffer for user text that arrives
// while an agent task is running. Writers append with a newline
// separator; readers take the full value and clear it atomically.
type Mailbox struct {
	mu     sync.Mutex
	text   string
	blocks []core.ContentBlock
}

// QueueText appends text to the mailbox, joined with a newline
// separator when something is already queued.
func (m *Mailbox) QueueText(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.text == "" {
		m.text = text
	} else {
		m.text = m.text + "\n" + text
	}
}

// QueueBlocks appends structured content blocks (e.g. images attached to
// a queued message) alongside any queued text.
func (m *Mailbox) QueueBlocks(blocks []core.ContentBlock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocks = append(m.blocks, blocks...)
}

// Take atomically removes and returns the mailbox's contents. An empty
// mailbox returns ok=false.
func (m *Mailbox) Take() (text string, blocks []core.ContentBlock, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.text == "" && len(m.blocks) == 0 {
		return "", nil, false
	}
	text, blocks = m.text, m.blocks
	m.text, m.blocks = "", nil
	return text, blocks, true
}

// Peek returns the mailbox's current text without clearing it.
// RequestPendingMessageForEdit takes the value, so Peek exists only for
// UI status display (UpdatePendingMessage events).
func (m *Mailbox) Peek() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text
}

// IsEmpty reports whether nothing is queued.
func (m *Mailbox) IsEmpty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text == "" && len(m.blocks) == 0
}

