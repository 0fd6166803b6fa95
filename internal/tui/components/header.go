package components

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/zcode-dev/agentcore/internal/tui/theme"
)

// Header renders the application header: brand and version on the left,
// the active session and its project on the right, with an activity dot
// that flips color while the session's agent task is running.
type Header struct {
	Width       int
	Version     string
	ProjectPath string

	SessionName  string
	AgentRunning bool
}

// NewHeader creates a new header component
func NewHeader(width int, version, projectPath string) *Header {
	return &Header{
		Width:       width,
		Version:     version,
		ProjectPath: projectPath,
	}
}

// SetWidth updates the header width
func (h *Header) SetWidth(width int) {
	h.Width = width
}

// SetSession updates the session label shown next to the project.
func (h *Header) SetSession(name string) {
	h.SessionName = name
}

// SetActivity flips the activity indicator.
func (h *Header) SetActivity(running bool) {
	h.AgentRunning = running
}

// View renders the header
func (h *Header) View() string {
	t := theme.Current

	logoStyle := lipgloss.NewStyle().
		Foreground(t.Primary).
		Bold(true)
	logo := logoStyle.Render("⚡ Z-Code")

	versionStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted).
		Background(t.BackgroundSecondary).
		Padding(0, 1)
	versionBadge := versionStyle.Render(fmt.Sprintf("v%s", h.Version))

	leftPart := lipgloss.JoinHorizontal(
		lipgloss.Center,
		logo,
		"  ",
		versionBadge,
	)

	// Activity dot: amber while the agent runs, green when idle
	dotColor := t.Success
	if h.AgentRunning {
		dotColor = t.Warning
	}
	dot := lipgloss.NewStyle().Foreground(dotColor).Render("●")

	// Session label, when known
	sessionPart := ""
	if h.SessionName != "" {
		sessionStyle := lipgloss.NewStyle().
			Foreground(t.TextMuted).
			Background(t.BackgroundSecondary).
			Padding(0, 1)
		sessionPart = sessionStyle.Render(h.SessionName) + " "
	}

	// Project name, shortened parent path for context
	projectStyle := lipgloss.NewStyle().
		Foreground(t.Text).
		Bold(true)
	pathStyle := lipgloss.NewStyle().
		Foreground(t.TextMuted)

	projectName := filepath.Base(h.ProjectPath)
	parentDir := filepath.Dir(h.ProjectPath)
	maxParentLen := 25
	if len(parentDir) > maxParentLen {
		parentDir = "..." + parentDir[len(parentDir)-maxParentLen+3:]
	}

	rightPart := lipgloss.JoinHorizontal(
		lipgloss.Center,
		sessionPart,
		dot,
		" ",
		pathStyle.Render(parentDir+"/"),
		projectStyle.Render(projectName),
	)

	spacing := h.Width - lipgloss.Width(leftPart) - lipgloss.Width(rightPart) - 2
	if spacing < 1 {
		spacing = 1
	}

	header := lipgloss.JoinHorizontal(
		lipgloss.Center,
		leftPart,
		lipgloss.NewStyle().Width(spacing).Render(""),
		rightPart,
	)

	separator := lipgloss.NewStyle().
		Foreground(t.Border).
		Width(h.Width).
		Render(strings.Repeat("─", h.Width))

	return header + "\n" + separator
}
