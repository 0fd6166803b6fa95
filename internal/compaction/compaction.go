// Package compaction bounds prompt growth: once the accumulated context
// exceeds a threshold, an older prefix of the message history is
// replaced with a single marker message summarizing what was removed.
// The summary is a structural digest (per-role counts, user requests)
// rather than an LLM-generated one, so compaction never costs a model
// call.
package compaction

import (
	"fmt"
	"strings"

	"github.com/zcode-dev/agentcore/internal/core"
)

// Policy controls when and how compaction runs.
type Policy struct {
	// MaxEstimatedTokens is the rough token budget; once the session's
	// message history exceeds it, a compaction pass runs before the next
	// request is built. Zero disables compaction.
	MaxEstimatedTokens int
	// KeepRecentMessages is the number of most-recent messages that are
	// never folded into the summary, so the model always sees immediate
	// context verbatim.
	KeepRecentMessages int
}

// DefaultPolicy is a generous budget that only engages for genuinely
// long sessions, keeping the last 10 messages verbatim.
func DefaultPolicy() Policy {
	return Policy{MaxEstimatedTokens: 60_000, KeepRecentMessages: 10}
}

// EstimateTokens is a rough chars/4 heuristic, the same order-of-magnitude
// approximation used by most providers' own context-budget estimators
// when an exact tokenizer isn't available locally.
func EstimateTokens(messages []core.Message) int {
	total := 0
	for _, m := range messages {
		for _, b := range m.Content {
			total += len(b.Text) + len(b.ToolResultContent)
		}
	}
	return total / 4
}

// NeedsCompaction reports whether messages exceeds the policy's threshold.
func (p Policy) NeedsCompaction(messages []core.Message) bool {
	if p.MaxEstimatedTokens <= 0 {
		return false
	}
	return EstimateTokens(messages) > p.MaxEstimatedTokens
}

// Compact replaces the oldest messages (all but the last
// KeepRecentMessages) with a single summary message, returning the new
// message slice and the summary text for the UI's
// DisplayCompactionSummary event. If there is nothing to fold (history
// already at or below KeepRecentMessages), messages is returned
// unchanged and ok is false.
func (p Policy) Compact(messages []core.Message) (compacted []core.Message, summary string, ok bool) {
	keep := p.KeepRecentMessages
	if keep < 0 {
		keep = 0
	}
	if len(messages) <= keep {
		return messages, "", false
	}

	folded := messages[:len(messages)-keep]
	recent := messages[len(messages)-keep:]
	summary = summarize(folded)

	marker := core.Message{
		Role:    core.RoleAssistant,
		Content: []core.ContentBlock{{Kind: core.BlockText, Text: summary}},
	}

	out := make([]core.Message, 0, len(recent)+1)
	out = append(out, marker)
	out = append(out, recent...)
	return out, summary, true
}

// summarize builds a short textual digest of the folded messages: a
// count per role plus the text of every user message, which is usually
// enough for the model to recall what the user originally asked for.
// This is deliberately mechanical rather than LLM-driven (see package doc).
func summarize(folded []core.Message) string {
	var (
		userCount, assistantCount, toolCount int
		userAsks                             []string
	)
	for _, m := range folded {
		switch m.Role {
		case core.RoleUser:
			userCount++
			if t := strings.TrimSpace(m.Text()); t != "" {
				userAsks = append(userAsks, t)
			}
		case core.RoleAssistant:
			assistantCount++
		case core.RoleToolResult:
			toolCount++
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "[Compacted %d earlier messages: %d user, %d assistant, %d tool-result]\n",
		len(folded), userCount, assistantCount, toolCount)
	if len(userAsks) > 0 {
		sb.WriteString("Prior requests:\n")
		for _, ask := range userAsks {
			fmt.Fprintf(&sb, "- %s\n", truncate(ask, 200))
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "…"
}
