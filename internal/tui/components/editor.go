package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zcode-dev/agentcore/internal/tui/theme"
)

const (
	idlePlaceholder  = "Describe your task (Enter to send, / for commands)..."
	busyPlaceholder  = "Agent is working — Enter queues your message for its next pause..."
	queuePromptGlyph = "┊ "
	idlePromptGlyph  = "┃ "
)

// Editor is the message input component. It tracks whether the session's
// agent task is running: while busy, submitted text lands in the pending
// mailbox instead of starting a turn, and the editor restyles itself to
// make that explicit (dashed prompt, queue placeholder, a footer showing
// what is already queued).
type Editor struct {
	textarea textarea.Model
	width    int
	height   int
	focused  bool

	busy          bool
	queuedPreview string
}

// NewEditor creates a new editor component
func NewEditor(width, height int) *Editor {
	ta := textarea.New()
	ta.Placeholder = idlePlaceholder
	ta.Focus()
	ta.Prompt = idlePromptGlyph
	ta.SetWidth(width - 6) // Account for prompt and padding
	ta.SetHeight(height - 2)
	ta.ShowLineNumbers = false
	ta.CharLimit = 0

	// Style the textarea - Claude aesthetic
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Placeholder = lipgloss.NewStyle().Foreground(theme.Current.TextMuted)

	return &Editor{
		textarea: ta,
		width:    width,
		height:   height,
		focused:  true,
	}
}

// SetSize updates the editor dimensions
func (e *Editor) SetSize(width, height int) {
	e.width = width
	e.height = height
	e.textarea.SetWidth(width - 6)
	e.textarea.SetHeight(height - 2)
}

// SetBusy tells the editor whether an agent task is currently running,
// switching it between send mode and queue mode.
func (e *Editor) SetBusy(busy bool) {
	e.busy = busy
	if busy {
		e.textarea.Placeholder = busyPlaceholder
		e.textarea.Prompt = queuePromptGlyph
	} else {
		e.textarea.Placeholder = idlePlaceholder
		e.textarea.Prompt = idlePromptGlyph
	}
}

// SetQueuedPreview shows (or clears, with "") the first line of the text
// already waiting in the session's pending mailbox.
func (e *Editor) SetQueuedPreview(preview string) {
	e.queuedPreview = preview
}

// Focus focuses the editor
func (e *Editor) Focus() {
	e.focused = true
	e.textarea.Focus()
}

// Blur unfocuses the editor
func (e *Editor) Blur() {
	e.focused = false
	e.textarea.Blur()
}

// Value returns the current text (filtering out any escape sequences)
func (e *Editor) Value() string {
	val := e.textarea.Value()
	// Filter out OSC escape sequences that may leak from terminal
	if strings.Contains(val, "\x1b]") || strings.Contains(val, "]11;") {
		// Clean the value
		val = strings.ReplaceAll(val, "\x1b", "")
		// Remove anything that looks like OSC response
		for strings.Contains(val, "]") && strings.Contains(val, ";") {
			start := strings.Index(val, "]")
			end := strings.Index(val[start:], "\x07") // Bell character ends OSC
			if end == -1 {
				end = strings.Index(val[start:], "\x1b\\") // Or ESC backslash
			}
			if end == -1 {
				// Just remove to end of string or next space
				end = strings.IndexAny(val[start:], " \n\t")
				if end == -1 {
					val = val[:start]
					break
				}
			}
			val = val[:start] + val[start+end+1:]
		}
	}
	return strings.TrimSpace(val)
}

// Reset clears the editor
func (e *Editor) Reset() {
	e.textarea.Reset()
}

// SetValue sets the editor content
func (e *Editor) SetValue(value string) {
	e.textarea.SetValue(value)
}

// Update handles textarea updates
func (e *Editor) Update(msg tea.Msg) (*Editor, tea.Cmd) {
	var cmd tea.Cmd
	e.textarea, cmd = e.textarea.Update(msg)
	return e, cmd
}

// View renders the editor
func (e *Editor) View() string {
	t := theme.Current

	view := e.textarea.View()

	if e.busy && e.queuedPreview != "" {
		queueStyle := lipgloss.NewStyle().
			Foreground(t.Warning).
			Italic(true)
		view += "\n" + queueStyle.Render("queued: "+e.queuedPreview+"  (ctrl+e to edit)")
	}

	// Container with rounded border; the accent shifts while queueing so
	// it is obvious input is not going straight to the model
	borderColor := t.Border
	if e.focused {
		borderColor = t.BorderFocus
	}
	if e.busy {
		borderColor = t.BorderMuted
	}

	container := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Width(e.width - 2).
		Padding(0, 1)

	return container.Render(view)
}
