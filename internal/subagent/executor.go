package subagent

import (
	"context"
	"fmt"
	"strings"

	"github.com/zcode-dev/agentcore/internal/agentloop"
	"github.com/zcode-dev/agentcore/internal/agents"
	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/llm"
	"github.com/zcode-dev/agentcore/internal/tools"
)

// maxSubAgentIterations bounds a sub-agent whose profile doesn't set its
// own cap.
const maxSubAgentIterations = 10

// LoopExecutor builds the execute function a Runner drives: each spawned
// sub-agent gets its own ephemeral session and agent loop over a
// restricted tool registry, runs until it stops calling tools, and
// returns its final text. A "[profile:NAME] " prefix on the task selects
// a profile from profiles (nil profiles, or an unknown name, falls back
// to the read-only default).
func LoopExecutor(provider llm.Provider, registry *tools.Registry, profiles *agents.Registry, dialect core.Dialect) func(ctx context.Context, toolID, task string) (string, error) {
	return func(ctx context.Context, toolID, task string) (string, error) {
		var profile *agents.Profile
		if name, rest, ok := splitProfileMarker(task); ok {
			task = rest
			if profiles != nil {
				if p, err := profiles.Get(name); err == nil {
					profile = p
				}
			}
		}

		scoped := restrictRegistry(registry, profile)
		loop := agentloop.New(provider, scoped, tools.ScopeAgent, func(*core.Session) string {
			if profile != nil {
				return profile.SystemPrompt
			}
			return "You are a focused sub-agent. Complete exactly the delegated task and report the result. You may only read and search; never modify anything."
		})

		sess := &core.Session{
			ID:       "sub-" + toolID,
			Config:   core.SessionConfig{Dialect: dialect},
			Messages: []core.Message{core.NewUserMessage(task)},
		}

		maxIters := maxSubAgentIterations
		if profile != nil {
			maxIters = profile.GetMaxIterations()
		}

		for i := 0; i < maxIters; i++ {
			result := loop.RunIteration(ctx, sess, nil)
			if result.Err != nil {
				return "", result.Err
			}
			if result.Cancelled {
				return "", core.ErrCancelled
			}
			if !result.ToolExecuted {
				break
			}
		}

		for i := len(sess.Messages) - 1; i >= 0; i-- {
			if sess.Messages[i].Role == core.RoleAssistant {
				if text := sess.Messages[i].Text(); text != "" {
					return text, nil
				}
			}
		}
		return "", fmt.Errorf("sub-agent produced no answer")
	}
}

// splitProfileMarker strips a leading "[profile:NAME] " marker.
func splitProfileMarker(task string) (name, rest string, ok bool) {
	const prefix = "[profile:"
	if !strings.HasPrefix(task, prefix) {
		return "", task, false
	}
	end := strings.Index(task, "]")
	if end <= len(prefix) {
		return "", task, false
	}
	return task[len(prefix):end], strings.TrimSpace(task[end+1:]), true
}

// restrictRegistry narrows the parent registry to what the profile (or
// the read-only default) permits. spawn_agent itself is always excluded
// so delegation doesn't recurse.
func restrictRegistry(parent *tools.Registry, profile *agents.Profile) *tools.Registry {
	scoped := tools.NewRegistry()
	for _, def := range parent.List() {
		if def.Name == "spawn_agent" {
			continue
		}
		tool, ok := parent.Get(def.Name)
		if !ok {
			continue
		}
		kind := tools.KindOf(def.Name)
		readOnly := kind == tools.KindRead || kind == tools.KindSearch
		if profile != nil {
			if profile.AllowsTool(def.Name, readOnly) {
				scoped.Register(tool)
			}
			continue
		}
		if readOnly {
			scoped.Register(tool)
		}
	}
	return scoped
}
