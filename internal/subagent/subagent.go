// Package subagent implements the per-session sub-agent registry: tools
// like spawn_agent that run their own model loop register here under
// their tool id, so a single delegated task can be cancelled without
// touching the parent session. Results are optionally mirrored onto a
// NATS subject per sub-agent, which lets external observers (or another
// zcode instance) watch delegation traffic on a broker.
package subagent

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
)

// Runner implements core.SubAgentRunner over a NATS connection. Each
// session owns one Runner; when conn is non-nil, each sub-agent's result
// is published to a per-toolID subject. The Runner itself subscribes to
// none of these subjects.
type Runner struct {
	conn      *nats.Conn
	sessionID string
	subject   func(toolID string) string

	mu      sync.Mutex
	active  map[string]*subAgentHandle
	execute func(ctx context.Context, toolID, task string) (string, error)
}

type subAgentHandle struct {
	cancel context.CancelFunc
	sub    *nats.Subscription
}

// NewRunner builds a Runner scoped to sessionID. execute is the actual
// sub-agent model loop (normally a fresh Agent Loop iteration bound to a
// scoped-down tool set); it is invoked in its own goroutine so Spawn can
// return a result channel immediately for the parent to await.
//
// A nil conn is valid: the registry still tracks cancellation locally,
// it just never publishes progress over NATS. This lets callers that
// don't run a broker (the common CLI case) still get cancel_sub_agent
// semantics.
func NewRunner(conn *nats.Conn, sessionID string, execute func(ctx context.Context, toolID, task string) (string, error)) *Runner {
	return &Runner{
		conn:      conn,
		sessionID: sessionID,
		subject:   func(toolID string) string { return fmt.Sprintf("zcode.subagent.%s.%s.result", sessionID, toolID) },
		active:    make(map[string]*subAgentHandle),
		execute:   execute,
	}
}

// Spawn starts a sub-agent task for toolID and returns a channel that
// receives exactly one value (the sub-agent's final text) before
// closing, or is closed without a value if the sub-agent was cancelled.
func (r *Runner) Spawn(ctx context.Context, toolID, task string) (<-chan string, error) {
	if toolID == "" {
		toolID = uuid.NewString()
	}

	r.mu.Lock()
	if _, exists := r.active[toolID]; exists {
		r.mu.Unlock()
		return nil, fmt.Errorf("sub-agent %s already running", toolID)
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.active[toolID] = &subAgentHandle{cancel: cancel}
	r.mu.Unlock()

	out := make(chan string, 1)
	go func() {
		defer close(out)
		defer r.clear(toolID)

		result, err := r.execute(runCtx, toolID, task)
		if runCtx.Err() != nil {
			return // cancelled: close without sending
		}
		if err != nil {
			result = fmt.Sprintf("sub-agent error: %v", err)
		}
		if r.conn != nil {
			if payload, mErr := marshalResult(toolID, result); mErr == nil {
				_ = r.conn.Publish(r.subject(toolID), payload)
			}
		}
		select {
		case out <- result:
		default:
		}
	}()

	return out, nil
}

// Cancel stops the sub-agent registered under toolID, returning false if
// none was running.
func (r *Runner) Cancel(toolID string) bool {
	r.mu.Lock()
	h, ok := r.active[toolID]
	delete(r.active, toolID)
	r.mu.Unlock()
	if !ok {
		return false
	}
	h.cancel()
	if h.sub != nil {
		_ = h.sub.Unsubscribe()
	}
	return true
}

// Active reports whether a sub-agent is currently registered under toolID.
func (r *Runner) Active(toolID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.active[toolID]
	return ok
}

func (r *Runner) clear(toolID string) {
	r.mu.Lock()
	delete(r.active, toolID)
	r.mu.Unlock()
}

func marshalResult(toolID, result string) ([]byte, error) {
	return []byte(fmt.Sprintf(`{"tool_id":%q,"result":%q}`, toolID, result)), nil
}
