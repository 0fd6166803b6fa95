// Package tui is the terminal front-end: a bubbletea program that
// implements the engine's UISink contract and renders the streaming
// DisplayFragments and UiEvents a session's agent task produces. It is a
// consumer of the core packages, never a dependency of them.
package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/zcode-dev/agentcore/internal/agents"
	"github.com/zcode-dev/agentcore/internal/config"
	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/session"
	"github.com/zcode-dev/agentcore/internal/tui/components"
	"github.com/zcode-dev/agentcore/internal/tui/theme"
)

const version = "0.1.0"

// Layout constants for consistent height calculations
const (
	layoutHeaderHeight = 2 // Header row + separator line
	layoutStatusHeight = 2 // Separator line + status bar
	layoutEditorHeight = 5 // Input editor area
	layoutPadding      = 1 // Extra padding for separators
)

// Sink adapts core.UISink onto a bubbletea message channel: the agent
// task publishes from its own goroutine, the Update loop drains via
// waitForSink. The channel is buffered; if the UI falls badly behind,
// events drop here, and a SetMessages event (built from the session's
// persisted messages) repaints the full history.
type Sink struct {
	ch chan tea.Msg
}

// NewSink builds the sink the session manager should publish to.
func NewSink() *Sink {
	return &Sink{ch: make(chan tea.Msg, 1024)}
}

// Publish implements core.UISink.
func (s *Sink) Publish(e core.UiEvent) {
	select {
	case s.ch <- uiEventMsg{event: e}:
	default:
	}
}

// DisplayFragment implements core.UISink.
func (s *Sink) DisplayFragment(f core.DisplayFragment) {
	select {
	case s.ch <- fragmentMsg{frag: f}:
	default:
	}
}

type uiEventMsg struct {
	event core.UiEvent
}

type fragmentMsg struct {
	frag core.DisplayFragment
}

type startErrMsg struct {
	err error
}

// waitForSink blocks until the next agent-task event arrives.
func waitForSink(s *Sink) tea.Cmd {
	return func() tea.Msg {
		return <-s.ch
	}
}

// Model is the main TUI model
type Model struct {
	manager   *session.Manager
	sessionID string
	sink      *Sink
	profiles  *agents.Registry

	// Components
	header      *components.Header
	messages    *components.Messages
	editor      *components.Editor
	status      *components.Status
	help        *components.HelpDialog
	suggestions *components.Suggestions
	spinner     spinner.Model

	// State
	width    int
	height   int
	ready    bool
	thinking bool
	showHelp bool

	streamingContent string // accumulated PlainText of the current request
	thinkingContent  string // accumulated ThinkingText, flushed on boundaries
	pendingPreview   string // queued mailbox text shown in the status bar
	lastParamName    string // dedupes split ToolParameter fragments in the args preview
	plan             []core.PlanItem
}

// New creates a TUI model bound to one session of the manager. sink must
// be the same Sink the manager publishes to.
func New(manager *session.Manager, sessionID, modelName, projectPath string, sink *Sink, profiles *agents.Registry) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot

	status := components.NewStatus(80)
	status.SetModel(modelName)

	suggestions := components.NewSuggestions()

	header := components.NewHeader(80, version, projectPath)
	if len(sessionID) >= 8 {
		header.SetSession(sessionID[:8])
	} else {
		header.SetSession(sessionID)
	}

	m := Model{
		manager:     manager,
		sessionID:   sessionID,
		sink:        sink,
		profiles:    profiles,
		header:      header,
		status:      status,
		help:        components.NewHelpDialog(),
		suggestions: suggestions,
		spinner:     sp,
	}

	// Set up command provider for dynamic suggestions
	suggestions.SetCommandProvider(&m)

	return m
}

// GetAgentCommands returns commands for sub-agent profiles (implements
// components.CommandProvider).
func (m *Model) GetAgentCommands() []components.Command {
	var cmds []components.Command
	if m.profiles == nil {
		return cmds
	}
	for _, p := range m.profiles.List() {
		cmds = append(cmds, components.Command{
			Name:        "/" + p.Name,
			Description: p.Description,
			IsCustom:    true,
			AgentName:   p.Name,
		})
	}
	return cmds
}

// Init initializes the TUI
func (m Model) Init() tea.Cmd {
	return tea.Batch(tea.EnterAltScreen, waitForSink(m.sink))
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		// Handle help dialog
		if m.showHelp {
			m.showHelp = false
			return m, nil
		}

		switch msg.String() {
		case "ctrl+c":
			_ = m.manager.TerminateAgent(m.sessionID)
			return m, tea.Quit

		case "ctrl+?", "ctrl+h":
			m.showHelp = !m.showHelp
			return m, nil

		case "ctrl+l":
			m.messages.Clear()
			return m, nil

		case "ctrl+x":
			// cancel the running agent without quitting
			_ = m.manager.TerminateAgent(m.sessionID)
			return m, nil

		case "ctrl+e":
			// pull the queued pending message back into the editor
			if text, ok, err := m.manager.RequestPendingMessageForEdit(m.sessionID); err == nil && ok {
				m.editor.SetValue(text)
				m.pendingPreview = ""
				m.status.SetMessage("")
			}
			return m, nil

		case "esc":
			if m.showHelp {
				m.showHelp = false
			}
			if m.suggestions.IsVisible() {
				m.suggestions.Hide()
			}
			return m, nil

		case "tab":
			// Autocomplete command
			if m.suggestions.IsVisible() {
				selected := m.suggestions.GetSelected()
				if selected != "" {
					m.editor.SetValue(selected)
					m.suggestions.Hide()
				}
				return m, nil
			}

		case "up":
			if m.suggestions.IsVisible() {
				m.suggestions.MoveUp()
				return m, nil
			}

		case "down":
			if m.suggestions.IsVisible() {
				m.suggestions.MoveDown()
				return m, nil
			}

		case "enter":
			// If suggestions visible and selected, use that command
			if m.suggestions.IsVisible() {
				selected := m.suggestions.GetSelected()
				if selected != "" {
					m.editor.Reset()
					m.suggestions.Hide()
					return m.handleCommand(selected)
				}
			}

			if strings.TrimSpace(m.editor.Value()) != "" {
				userMsg := strings.TrimSpace(m.editor.Value())
				m.editor.Reset()
				m.suggestions.Hide()

				// Check for slash commands
				if strings.HasPrefix(userMsg, "/") {
					return m.handleCommand(userMsg)
				}

				return m.submitUserMessage(userMsg)
			}

		case "pgup", "pgdown":
			// Pass to messages viewport
			vp := m.messages.GetViewport()
			var cmd tea.Cmd
			*vp, cmd = vp.Update(msg)
			cmds = append(cmds, cmd)
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

		// Calculate messages area height using layout constants
		messagesHeight := msg.Height - layoutHeaderHeight - layoutStatusHeight - layoutEditorHeight - layoutPadding

		if !m.ready {
			m.messages = components.NewMessages(msg.Width, messagesHeight)
			m.messages.SetWelcome(welcomeMessage())
			m.editor = components.NewEditor(msg.Width, layoutEditorHeight)
			// Clear any garbage that may have accumulated before init
			m.editor.Reset()
			m.ready = true
		} else {
			m.messages.SetSize(msg.Width, messagesHeight)
			m.editor.SetSize(msg.Width, layoutEditorHeight)
		}

		m.header.SetWidth(msg.Width)
		m.status.SetWidth(msg.Width)

	case spinner.TickMsg:
		if m.thinking {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}

	case startErrMsg:
		if msg.err != nil {
			m.addError(msg.err.Error())
		}

	case fragmentMsg:
		m.applyFragment(msg.frag)
		cmds = append(cmds, waitForSink(m.sink))

	case uiEventMsg:
		cmds = append(cmds, m.applyEvent(msg.event)...)
		cmds = append(cmds, waitForSink(m.sink))
	}

	// Update editor - only pass key messages
	if m.editor != nil {
		if _, ok := msg.(tea.KeyMsg); ok {
			var cmd tea.Cmd
			m.editor, cmd = m.editor.Update(msg)
			cmds = append(cmds, cmd)

			// Update suggestions based on editor content
			m.suggestions.Filter(m.editor.Value())
		}
	}

	// Update messages viewport for scrolling
	if m.messages != nil {
		vp := m.messages.GetViewport()
		var cmd tea.Cmd
		*vp, cmd = vp.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// submitUserMessage routes input to the session: starts an agent task if
// the session is idle, queues onto the pending mailbox if one is already
// running.
func (m Model) submitUserMessage(text string) (tea.Model, tea.Cmd) {
	m.messages.AddMessage(components.Message{Role: "user", Content: text})

	if m.thinking {
		if err := m.manager.QueueUserMessage(m.sessionID, text); err != nil {
			m.addError(err.Error())
		}
		return m, nil
	}

	m.thinking = true
	m.status.SetThinking(true)
	manager, id := m.manager, m.sessionID
	start := func() tea.Msg {
		err := manager.StartAgentForMessage(context.Background(), id, []core.ContentBlock{core.TextBlock(text)})
		return startErrMsg{err: err}
	}
	return m, tea.Batch(m.spinner.Tick, start)
}

// applyFragment folds one DisplayFragment into the view.
func (m *Model) applyFragment(f core.DisplayFragment) {
	switch f.Kind {
	case core.FragPlainText:
		m.flushThinking()
		m.streamingContent += f.Text
		m.messages.UpdateStreaming(m.streamingContent)

	case core.FragThinkingText:
		m.thinkingContent += f.Text

	case core.FragToolName:
		m.flushThinking()
		m.flushStreaming("")
		m.lastParamName = ""
		m.messages.AddMessage(components.Message{
			Role:     "tool",
			ToolName: f.ToolName,
			Content:  "Running...",
		})

	case core.FragToolParameter:
		// a parameter's value may arrive split across many fragments;
		// only the first slice of each parameter goes in the preview
		if f.ParamName != m.lastParamName {
			m.lastParamName = f.ParamName
			m.messages.AppendLastToolArgs(f.ParamName, f.ParamValue)
		}

	case core.FragCompactionDivider:
		m.messages.AddMessage(components.Message{
			Role:    "system",
			Content: "— older conversation compacted —",
		})
	}
}

// flushThinking turns accumulated reasoning text into a dim message.
func (m *Model) flushThinking() {
	if strings.TrimSpace(m.thinkingContent) != "" {
		m.messages.AddMessage(components.Message{Role: "thinking", Content: strings.TrimSpace(m.thinkingContent)})
	}
	m.thinkingContent = ""
}

// flushStreaming finalizes the in-flight streamed text as an assistant
// message (suffix may add a cancellation note).
func (m *Model) flushStreaming(suffix string) {
	content := strings.TrimSpace(m.streamingContent + suffix)
	m.streamingContent = ""
	m.messages.ClearStreaming()
	if content != "" {
		m.messages.AddMessage(components.Message{Role: "assistant", Content: content})
	}
}

// applyEvent folds one UiEvent into the view.
func (m *Model) applyEvent(e core.UiEvent) []tea.Cmd {
	var cmds []tea.Cmd
	switch e.Kind {
	case core.EvStreamingStarted:
		m.thinking = true
		m.status.SetThinking(true)
		m.header.SetActivity(true)
		if m.editor != nil {
			m.editor.SetBusy(true)
		}
		m.streamingContent = ""
		cmds = append(cmds, m.spinner.Tick)

	case core.EvStreamingStopped:
		m.flushThinking()
		if e.Cancelled {
			m.flushStreaming("\n\n_(cancelled)_")
		} else {
			m.flushStreaming("")
		}
		if e.Err != "" {
			m.addError(e.Err)
		}

	case core.EvUpdateSessionActivityState:
		running := e.Activity == core.ActivityAgentRunning
		m.header.SetActivity(running)
		if m.editor != nil {
			m.editor.SetBusy(running)
		}
		if !running {
			m.thinking = false
			m.status.SetThinking(false)
		}

	case core.EvUpdateToolStatus:
		switch e.ToolStatus {
		case core.ExecSuccess:
			m.messages.UpdateLastToolResult(e.Text)
		case core.ExecError:
			m.messages.UpdateLastToolResult("Error: " + e.Text)
		}

	case core.EvUpdatePlan:
		m.plan = e.Plan
		m.messages.AddMessage(components.Message{Role: "system", Content: renderPlan(e.Plan)})

	case core.EvUpdatePendingMessage:
		m.pendingPreview = e.Pending
		if e.Pending != "" {
			m.status.SetMessage("queued: " + firstLine(e.Pending))
		} else {
			m.status.SetMessage("")
		}
		if m.editor != nil {
			m.editor.SetQueuedPreview(firstLine(e.Pending))
		}

	case core.EvUpdateCurrentModel:
		m.status.SetModel(e.Model)

	case core.EvDisplayError:
		m.addError(e.Err)

	case core.EvDisplayCompactionSummary:
		m.messages.AddMessage(components.Message{Role: "system", Content: "Compacted earlier conversation:\n" + e.Text})

	case core.EvSetMessages:
		m.messages.Clear()
		for _, cm := range e.Messages {
			for _, view := range renderCoreMessage(cm) {
				m.messages.AddMessage(view)
			}
		}

	case core.EvClearMessages:
		m.messages.Clear()
	}
	return cmds
}

func (m *Model) addError(text string) {
	m.messages.AddMessage(components.Message{Role: "error", Content: text})
}

// renderCoreMessage maps a persisted core.Message onto view messages.
func renderCoreMessage(cm core.Message) []components.Message {
	var out []components.Message
	switch cm.Role {
	case core.RoleUser:
		if text := cm.Text(); text != "" {
			out = append(out, components.Message{Role: "user", Content: text})
		}
	case core.RoleAssistant:
		for _, b := range cm.Content {
			switch b.Kind {
			case core.BlockText:
				out = append(out, components.Message{Role: "assistant", Content: b.Text})
			case core.BlockThinking:
				out = append(out, components.Message{Role: "thinking", Content: b.Text})
			case core.BlockToolUse:
				out = append(out, components.Message{Role: "tool", ToolName: b.ToolName, Content: ""})
			}
		}
	case core.RoleToolResult:
		for _, b := range cm.Content {
			if b.Kind == core.BlockToolResult {
				content := b.ToolResultContent
				if b.IsError {
					content = "Error: " + content
				}
				out = append(out, components.Message{Role: "tool", ToolName: "result", Content: content})
			}
		}
	}
	return out
}

func renderPlan(plan []core.PlanItem) string {
	if len(plan) == 0 {
		return "Plan cleared."
	}
	var sb strings.Builder
	sb.WriteString("Plan:\n")
	for _, item := range plan {
		mark := "[ ]"
		switch item.Status {
		case core.PlanInProgress:
			mark = "[~]"
		case core.PlanCompleted:
			mark = "[x]"
		}
		sb.WriteString(fmt.Sprintf("  %s %s (%s)\n", mark, item.Content, item.Priority))
	}
	return strings.TrimRight(sb.String(), "\n")
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx] + "…"
	}
	return s
}

// handleCommand processes slash commands
func (m Model) handleCommand(input string) (tea.Model, tea.Cmd) {
	parts := strings.Fields(input)
	if len(parts) == 0 {
		return m, nil
	}

	cmd := strings.ToLower(parts[0])

	// Sub-agent profile command (e.g. /researcher <task>): delegate the
	// task through the spawn_agent tool under that profile.
	if m.profiles != nil && strings.HasPrefix(cmd, "/") {
		name := strings.TrimPrefix(cmd, "/")
		if _, err := m.profiles.Get(name); err == nil {
			task := strings.Join(parts[1:], " ")
			if task == "" {
				task = "Help me with my task."
			}
			return m.submitUserMessage(fmt.Sprintf("Delegate this to the %q sub-agent profile using the spawn_agent tool: %s", name, task))
		}
	}

	switch cmd {
	case "/help":
		m.showHelp = true
		return m, nil

	case "/clear":
		m.messages.Clear()
		return m, nil

	case "/plan":
		m.messages.AddMessage(components.Message{Role: "system", Content: renderPlan(m.plan)})
		return m, nil

	case "/cancel":
		if err := m.manager.TerminateAgent(m.sessionID); err != nil {
			m.addError(err.Error())
		} else {
			m.messages.AddMessage(components.Message{Role: "system", Content: "Cancellation requested."})
		}
		return m, nil

	case "/tools":
		m.messages.AddMessage(components.Message{
			Role: "system",
			Content: `Available tools:
  read_files   - Read one or more files (with optional line ranges)
  write_file   - Create or overwrite files
  edit_file    - Edit files with find/replace
  list_files   - List directory contents
  search_files - Regex search across files
  glob_files   - Find files by pattern
  run_command  - Execute shell commands
  update_plan  - Replace the visible task plan
  spawn_agent  - Delegate a task to a sub-agent`,
		})
		return m, nil

	case "/agents":
		return m.listProfiles()

	case "/sessions":
		return m.listSessions()

	case "/quit", "/exit", "/q":
		_ = m.manager.TerminateAgent(m.sessionID)
		return m, tea.Quit

	case "/config":
		return m.handleConfigCommand(parts)

	default:
		m.addError("Unknown command: " + cmd + "\nType /help for available commands.")
		return m, nil
	}
}

func (m Model) handleConfigCommand(parts []string) (tea.Model, tea.Cmd) {
	if len(parts) == 1 {
		// Show current config
		keys := config.ListKeys()
		var sb strings.Builder
		sb.WriteString("Configuration:\n")
		sb.WriteString(fmt.Sprintf("  Config file: %s\n\n", config.ConfigPath()))

		if len(keys) == 0 {
			sb.WriteString("  No keys configured.\n")
		} else {
			for k, v := range keys {
				sb.WriteString(fmt.Sprintf("  %s: %s\n", k, v))
			}
		}
		sb.WriteString("\nUsage:\n")
		sb.WriteString("  /config set <key> <value>  - Set a config value\n")
		sb.WriteString("  /config delete <key>       - Delete a config value\n")
		sb.WriteString("\nKeys: openai, anthropic, openrouter, provider, model, dialect, sandbox")

		m.messages.AddMessage(components.Message{Role: "system", Content: sb.String()})
		return m, nil
	}

	subCmd := strings.ToLower(parts[1])
	switch subCmd {
	case "set":
		if len(parts) < 4 {
			m.addError("Usage: /config set <key> <value>")
			return m, nil
		}
		key := parts[2]
		value := strings.Join(parts[3:], " ")
		if err := config.Set(key, value); err != nil {
			m.addError(fmt.Sprintf("Failed to set config: %v", err))
		} else {
			m.messages.AddMessage(components.Message{Role: "system", Content: fmt.Sprintf("Set %s successfully.", key)})
		}
		return m, nil

	case "delete", "remove", "unset":
		if len(parts) < 3 {
			m.addError("Usage: /config delete <key>")
			return m, nil
		}
		key := parts[2]
		if err := config.Delete(key); err != nil {
			m.addError(fmt.Sprintf("Failed to delete config: %v", err))
		} else {
			m.messages.AddMessage(components.Message{Role: "system", Content: fmt.Sprintf("Deleted %s.", key)})
		}
		return m, nil

	default:
		m.addError("Unknown config subcommand: " + subCmd + "\nUse: set, delete")
		return m, nil
	}
}

// listProfiles displays available sub-agent profiles
func (m Model) listProfiles() (tea.Model, tea.Cmd) {
	if m.profiles == nil {
		m.messages.AddMessage(components.Message{Role: "system", Content: "Sub-agent profiles are not enabled."})
		return m, nil
	}
	profileList := m.profiles.List()

	if len(profileList) == 0 {
		m.messages.AddMessage(components.Message{
			Role:    "system",
			Content: "No sub-agent profiles found.\n\nTo create profiles, add markdown files to:\n  .zcode/agents/       (project-local)\n  ~/.config/zcode/agents/  (global)",
		})
		return m, nil
	}

	var sb strings.Builder
	sb.WriteString("Sub-agent profiles:\n\n")
	for _, p := range profileList {
		location := "local"
		if p.IsGlobal {
			location = "global"
		}
		sb.WriteString(fmt.Sprintf("  /%s - %s (%s)\n", p.Name, p.Description, location))
		if len(p.Tools) > 0 {
			sb.WriteString(fmt.Sprintf("    Tools: %s\n", strings.Join(p.Tools, ", ")))
		}
	}
	sb.WriteString("\nUsage: /<profile-name> <task>")

	m.messages.AddMessage(components.Message{Role: "system", Content: sb.String()})
	return m, nil
}

// listSessions displays the persisted sessions of this store.
func (m Model) listSessions() (tea.Model, tea.Cmd) {
	summaries, err := m.manager.ListSessions(context.Background())
	if err != nil {
		m.addError("Failed to list sessions: " + err.Error())
		return m, nil
	}
	if len(summaries) == 0 {
		m.messages.AddMessage(components.Message{Role: "system", Content: "No saved sessions."})
		return m, nil
	}
	var sb strings.Builder
	sb.WriteString("Sessions:\n\n")
	for _, s := range summaries {
		marker := "  "
		if s.ID == m.sessionID {
			marker = "* "
		}
		sb.WriteString(fmt.Sprintf("%s%s  %s  (updated %s)\n", marker, s.ID[:8], s.Name, s.UpdatedAt.Format("2006-01-02 15:04")))
	}
	sb.WriteString("\nResume the latest with: zcode --continue")
	m.messages.AddMessage(components.Message{Role: "system", Content: sb.String()})
	return m, nil
}

// welcomeMessage returns the initial welcome content
func welcomeMessage() string {
	return `
    ███████╗       ██████╗ ██████╗ ██████╗ ███████╗
    ╚══███╔╝      ██╔════╝██╔═══██╗██╔══██╗██╔════╝
      ███╔╝ █████╗██║     ██║   ██║██║  ██║█████╗
     ███╔╝  ╚════╝██║     ██║   ██║██║  ██║██╔══╝
    ███████╗      ╚██████╗╚██████╔╝██████╔╝███████╗
    ╚══════╝       ╚═════╝ ╚═════╝ ╚═════╝ ╚══════╝
`
}

// View renders the TUI
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	t := theme.Current

	// Calculate messages area height using layout constants
	messagesHeight := m.height - layoutHeaderHeight - layoutStatusHeight - layoutEditorHeight - layoutPadding

	// Header (fixed at top)
	header := m.header.View()

	// Messages area (fills middle)
	messagesView := m.messages.View()
	if m.thinking {
		// Add thinking indicator at bottom of messages
		thinkingStyle := lipgloss.NewStyle().Foreground(t.Primary)
		messagesView = lipgloss.NewStyle().
			Height(messagesHeight).
			Render(messagesView + "\n" + thinkingStyle.Render(m.spinner.View()+" Thinking..."))
	} else {
		messagesView = lipgloss.NewStyle().
			Height(messagesHeight).
			Render(messagesView)
	}

	// Suggestions (shown above editor when typing /)
	suggestions := ""
	if m.suggestions.IsVisible() {
		m.suggestions.SetWidth(m.width)
		suggestions = m.suggestions.View()
	}

	// Editor (fixed height)
	editor := m.editor.View()

	// Status bar (fixed at bottom)
	status := m.status.View()

	// Stack all sections vertically
	var view string
	if suggestions != "" {
		view = lipgloss.JoinVertical(
			lipgloss.Left,
			header,
			messagesView,
			suggestions,
			editor,
			status,
		)
	} else {
		view = lipgloss.JoinVertical(
			lipgloss.Left,
			header,
			messagesView,
			editor,
			status,
		)
	}

	// Overlay help dialog if shown
	if m.showHelp {
		overlay := m.help.View()
		view = components.PlaceOverlay(overlay, view, m.width, m.height)
	}

	// Apply background and ensure full height
	return lipgloss.NewStyle().
		Background(t.Background).
		Width(m.width).
		Height(m.height).
		Render(view)
}
