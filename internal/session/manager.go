// Package session implements the session manager: it owns every
// SessionInstance, spawns and cancels per-session agent tasks, and
// serializes access to each session's persisted state and pending
// mailbox. At most one agent task runs per session; input that arrives
// while one is running queues onto the session's mailbox instead.
package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/zcode-dev/agentcore/internal/agentloop"
	"github.com/zcode-dev/agentcore/internal/compaction"
	"github.com/zcode-dev/agentcore/internal/core"
	"github.com/zcode-dev/agentcore/internal/persistence"
	"github.com/zcode-dev/agentcore/internal/zlog"
)

var (
	activeSessionsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zcode_active_sessions",
		Help: "Number of sessions currently hydrated into memory.",
	})
	runningAgentsGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zcode_running_agent_tasks",
		Help: "Number of sessions with an agent task currently running.",
	})
	toolDispatchCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zcode_tool_dispatch_total",
		Help: "Tool dispatches by status.",
	}, []string{"status"})
)

func init() {
	prometheus.MustRegister(activeSessionsGauge, runningAgentsGauge, toolDispatchCounter)
}

// SessionInstance is a session's in-memory state: the persisted
// session record plus everything that only exists while a UI/agent is
// attached to it.
type SessionInstance struct {
	mu      sync.Mutex
	session *core.Session

	cancel  context.CancelFunc
	running bool

	mailbox      Mailbox
	activity     core.ActivityState
	lastError    string
	fragmentRing []core.DisplayFragment
}

const fragmentRingCap = 1000

func (si *SessionInstance) pushFragment(f core.DisplayFragment) {
	si.mu.Lock()
	defer si.mu.Unlock()
	si.fragmentRing = append(si.fragmentRing, f)
	if len(si.fragmentRing) > fragmentRingCap {
		si.fragmentRing = si.fragmentRing[len(si.fragmentRing)-fragmentRingCap:]
	}
}

// RecentFragments returns a snapshot of the bounded fragment buffer, for
// a late-joining UI to repaint recent history.
func (si *SessionInstance) RecentFragments() []core.DisplayFragment {
	si.mu.Lock()
	defer si.mu.Unlock()
	out := make([]core.DisplayFragment, len(si.fragmentRing))
	copy(out, si.fragmentRing)
	return out
}

// Manager owns every active SessionInstance, keyed by id.
type Manager struct {
	store  *persistence.Store
	loopOf func(sess *core.Session) *agentloop.Loop
	sink   core.UISink

	defaultConfig func() core.SessionConfig
	defaultModel  func() core.ModelConfig

	mu       sync.Mutex
	sessions map[string]*SessionInstance
}

// New builds a Manager backed by store. loopOf constructs (or returns a
// shared) agentloop.Loop appropriate for a session's configuration —
// most callers close over a single Loop and ignore the argument, but the
// hook exists so a session's dialect/provider can vary per session.
// sink is the UI event sink every session publishes to; it may be nil in
// headless (no-UI) deployments, in which case events are dropped.
func New(store *persistence.Store, loopOf func(sess *core.Session) *agentloop.Loop, sink core.UISink, defaultConfig func() core.SessionConfig, defaultModel func() core.ModelConfig) *Manager {
	return &Manager{
		store:         store,
		loopOf:        loopOf,
		sink:          sink,
		defaultConfig: defaultConfig,
		defaultModel:  defaultModel,
		sessions:      make(map[string]*SessionInstance),
	}
}

// CreateSession allocates a new session with the configured defaults and
// persists it immediately.
func (m *Manager) CreateSession(ctx context.Context, name string) (string, error) {
	if name == "" {
		name = "New Session"
	}
	now := time.Now().UTC()
	sess := &core.Session{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: now,
		UpdatedAt: now,
		Config:    m.defaultConfig(),
	}
	if err := m.store.Create(ctx, sess); err != nil {
		return "", fmt.Errorf("create session: %w", err)
	}

	m.mu.Lock()
	m.sessions[sess.ID] = &SessionInstance{session: sess, activity: core.ActivityIdle}
	activeSessionsGauge.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	return sess.ID, nil
}

// LoadSession hydrates a persisted session into an active SessionInstance.
// Idempotent if already active.
func (m *Manager) LoadSession(ctx context.Context, id string) ([]core.Message, error) {
	m.mu.Lock()
	if inst, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		inst.mu.Lock()
		defer inst.mu.Unlock()
		return inst.session.Messages, nil
	}
	m.mu.Unlock()

	sess, err := m.store.Load(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[id] = &SessionInstance{session: sess, activity: core.ActivityIdle}
	activeSessionsGauge.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	return sess.Messages, nil
}

// SetActiveSession marks the session UI-active: reload from persistence,
// backfill a default model config if none exists, and return the
// UiEvents needed to reconstruct the UI.
func (m *Manager) SetActiveSession(ctx context.Context, id string) ([]core.UiEvent, error) {
	if _, err := m.LoadSession(ctx, id); err != nil {
		return nil, err
	}

	inst, err := m.instance(id)
	if err != nil {
		return nil, err
	}

	inst.mu.Lock()
	sess := inst.session
	backfilled := false
	if sess.ModelConfig == nil && m.defaultModel != nil {
		mc := m.defaultModel()
		sess.ModelConfig = &mc
		backfilled = true
	}
	events := []core.UiEvent{
		{Kind: core.EvSetMessages, SessionID: id, Messages: sess.Messages},
		{Kind: core.EvUpdatePlan, SessionID: id, Plan: sess.Plan},
		{Kind: core.EvUpdateSessionActivityState, SessionID: id, Activity: inst.activity},
		{Kind: core.EvUpdateCurrentModel, SessionID: id, Model: modelName(sess.ModelConfig)},
	}
	inst.mu.Unlock()

	if backfilled {
		if err := m.persist(ctx, id); err != nil {
			return nil, err
		}
	}
	return events, nil
}

func modelName(mc *core.ModelConfig) string {
	if mc == nil {
		return ""
	}
	return mc.Model
}

// instance looks up an active SessionInstance, returning
// core.ErrSessionNotFound if it isn't loaded.
func (m *Manager) instance(id string) (*SessionInstance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.sessions[id]
	if !ok {
		return nil, core.ErrSessionNotFound
	}
	return inst, nil
}

// persist saves the session's current in-memory state; callers await it
// before acknowledging any mutation that must be durable.
func (m *Manager) persist(ctx context.Context, id string) error {
	inst, err := m.instance(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	inst.session.UpdatedAt = time.Now().UTC()
	sessCopy := *inst.session
	inst.mu.Unlock()

	if err := m.store.Save(ctx, &sessCopy); err != nil {
		zlog.With("session").Error("persist failed", "session", id, "error", err)
		return fmt.Errorf("persist session %s: %w", id, err)
	}
	return nil
}

// StartAgentForMessage appends the user message, persists, sets
// activity=AgentRunning, and spawns the agent task. At most one agent
// task may run per session: if one is already running
// the message is queued onto the mailbox instead.
func (m *Manager) StartAgentForMessage(ctx context.Context, id string, blocks []core.ContentBlock) error {
	inst, err := m.instance(id)
	if err != nil {
		return err
	}

	inst.mu.Lock()
	if inst.running {
		inst.mu.Unlock()
		m.QueueStructuredUserMessage(id, blocks)
		return nil
	}
	inst.session.Messages = append(inst.session.Messages, core.Message{Role: core.RoleUser, Content: blocks})
	inst.running = true
	inst.activity = core.ActivityAgentRunning
	taskCtx, cancel := context.WithCancel(context.Background())
	inst.cancel = cancel
	inst.mu.Unlock()

	if err := m.persist(ctx, id); err != nil {
		return err
	}
	if m.sink != nil {
		m.sink.Publish(core.UiEvent{Kind: core.EvUpdateSessionActivityState, SessionID: id, Activity: core.ActivityAgentRunning})
	}
	runningAgentsGauge.Inc()

	go m.runAgentTask(taskCtx, id, inst)
	return nil
}

// runAgentTask drives the turn cycle across iterations: run one
// Agent Loop iteration, and if it executed a tool, drain the mailbox and
// either continue (mailbox had something, or a tool just ran) or yield.
func (m *Manager) runAgentTask(ctx context.Context, id string, inst *SessionInstance) {
	defer func() {
		if r := recover(); r != nil {
			inst.mu.Lock()
			inst.lastError = fmt.Sprintf("agent task panicked: %v", r)
			inst.mu.Unlock()
			zlog.With("session").Error("agent task panic", "session", id, "panic", r)
		}
		inst.mu.Lock()
		inst.running = false
		inst.activity = core.ActivityIdle
		inst.mu.Unlock()
		runningAgentsGauge.Dec()
		if m.sink != nil {
			m.sink.Publish(core.UiEvent{Kind: core.EvUpdateSessionActivityState, SessionID: id, Activity: core.ActivityIdle})
		}
		_ = m.persist(context.Background(), id)
	}()

	inst.mu.Lock()
	loop := m.loopOf(inst.session)
	inst.mu.Unlock()

	for {
		inst.mu.Lock()
		sess := inst.session
		inst.mu.Unlock()

		result := loop.RunIteration(ctx, sess, sessionSink{m.sink, inst})
		if result.Err != nil {
			inst.mu.Lock()
			inst.lastError = result.Err.Error()
			inst.mu.Unlock()
			toolDispatchCounter.WithLabelValues("error").Inc()
			return
		}
		if result.Cancelled {
			return
		}
		if err := m.persist(ctx, id); err != nil {
			return
		}

		if result.ToolExecuted {
			toolDispatchCounter.WithLabelValues("success").Inc()
			if text, blocks, ok := inst.mailbox.Take(); ok {
				m.appendPendingMessage(inst, text, blocks)
			}
			continue // a tool ran: give the model its result and go again
		}

		// No tool call: the agent is waiting for user input (step 8),
		// unless the mailbox already has something queued.
		if text, blocks, ok := inst.mailbox.Take(); ok {
			m.appendPendingMessage(inst, text, blocks)
			continue
		}
		return
	}
}

func (m *Manager) appendPendingMessage(inst *SessionInstance, text string, blocks []core.ContentBlock) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	content := blocks
	if text != "" {
		content = append([]core.ContentBlock{core.TextBlock(text)}, blocks...)
	}
	if len(content) == 0 {
		return
	}
	inst.session.Messages = append(inst.session.Messages, core.Message{Role: core.RoleUser, Content: content})
}

// QueueUserMessage appends text to the session's pending mailbox; the running agent task drains it at its next safe point.
func (m *Manager) QueueUserMessage(id, text string) error {
	inst, err := m.instance(id)
	if err != nil {
		return err
	}
	inst.mailbox.QueueText(text)
	if m.sink != nil {
		m.sink.Publish(core.UiEvent{Kind: core.EvUpdatePendingMessage, SessionID: id, Pending: inst.mailbox.Peek()})
	}
	return nil
}

// QueueStructuredUserMessage appends content blocks to the mailbox.
func (m *Manager) QueueStructuredUserMessage(id string, blocks []core.ContentBlock) error {
	inst, err := m.instance(id)
	if err != nil {
		return err
	}
	inst.mailbox.QueueBlocks(blocks)
	return nil
}

// RequestPendingMessageForEdit atomically takes the mailbox contents so
// the UI can move them back into the input box.
func (m *Manager) RequestPendingMessageForEdit(id string) (string, bool, error) {
	inst, err := m.instance(id)
	if err != nil {
		return "", false, err
	}
	text, _, ok := inst.mailbox.Take()
	if m.sink != nil {
		m.sink.Publish(core.UiEvent{Kind: core.EvUpdatePendingMessage, SessionID: id, Pending: ""})
	}
	return text, ok, nil
}

// TerminateAgent cancels the agent task; activity transitions to Idle.
func (m *Manager) TerminateAgent(id string) error {
	inst, err := m.instance(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	cancel := inst.cancel
	inst.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// CancelSubAgent consults the per-session cancellation registry, which
// is the internal/subagent.Runner bound to this session's agent-loop
// context: it already tracks which tool ids are currently running, so
// this is a thin existence-checked delegate.
func (m *Manager) CancelSubAgent(id string, toolID string, runner interface{ Cancel(string) bool }) bool {
	if _, err := m.instance(id); err != nil {
		return false
	}
	return runner.Cancel(toolID)
}

// DeleteSession cancels any running task, removes the instance, and
// deletes the persisted record.
func (m *Manager) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	inst, ok := m.sessions[id]
	delete(m.sessions, id)
	activeSessionsGauge.Set(float64(len(m.sessions)))
	m.mu.Unlock()

	if ok {
		inst.mu.Lock()
		cancel := inst.cancel
		inst.mu.Unlock()
		if cancel != nil {
			cancel()
		}
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// SetSessionModelConfig mutates the persisted model config and refreshes
// the active instance.
func (m *Manager) SetSessionModelConfig(ctx context.Context, id string, mc core.ModelConfig) error {
	inst, err := m.instance(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	inst.session.ModelConfig = &mc
	inst.mu.Unlock()
	if m.sink != nil {
		m.sink.Publish(core.UiEvent{Kind: core.EvUpdateCurrentModel, SessionID: id, Model: mc.Model})
	}
	return m.persist(ctx, id)
}

// SetSessionSandboxPolicy mutates the persisted sandbox policy.
func (m *Manager) SetSessionSandboxPolicy(ctx context.Context, id string, policy core.SandboxPolicy) error {
	inst, err := m.instance(id)
	if err != nil {
		return err
	}
	inst.mu.Lock()
	inst.session.Config.SandboxPolicy = policy
	inst.mu.Unlock()
	if m.sink != nil {
		m.sink.Publish(core.UiEvent{Kind: core.EvUpdateSessionActivityState, SessionID: id, SandboxPolicy: policy})
	}
	return m.persist(ctx, id)
}

// GetLatestSessionID returns the most recently updated persisted id, for
// "continue last task".
func (m *Manager) GetLatestSessionID(ctx context.Context) (string, error) {
	return m.store.LatestID(ctx)
}

// ListSessions returns every persisted session's summary, most recently
// updated first.
func (m *Manager) ListSessions(ctx context.Context) ([]persistence.ListSummary, error) {
	return m.store.List(ctx)
}

// CheckCompletedTasks polls each active session's task for completion;
// with goroutine-based tasks the `running` flag and activity broadcast
// are already updated synchronously by runAgentTask's deferred cleanup,
// so this just surfaces any last error recorded since the previous poll
//.
func (m *Manager) CheckCompletedTasks() map[string]string {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	m.mu.Unlock()

	errs := map[string]string{}
	for _, id := range ids {
		inst, err := m.instance(id)
		if err != nil {
			continue
		}
		inst.mu.Lock()
		if inst.lastError != "" && !inst.running {
			errs[id] = inst.lastError
			inst.lastError = ""
		}
		inst.mu.Unlock()
	}
	return errs
}

// ActiveSessionIDs implements compaction.SessionSource.
func (m *Manager) ActiveSessionIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// CompactIfNeeded implements compaction.SessionSource: applies policy to
// the named session's current in-memory message history, outside the
// normal per-iteration inline check, for the periodic daemon sweep.
func (m *Manager) CompactIfNeeded(ctx context.Context, id string, policy compaction.Policy) (bool, error) {
	inst, err := m.instance(id)
	if err != nil {
		return false, err
	}
	inst.mu.Lock()
	needs := policy.NeedsCompaction(inst.session.Messages)
	var summary string
	if needs {
		compacted, s, ok := policy.Compact(inst.session.Messages)
		if ok {
			inst.session.Messages = compacted
			summary = s
		} else {
			needs = false
		}
	}
	inst.mu.Unlock()

	if !needs {
		return false, nil
	}
	if m.sink != nil {
		m.sink.Publish(core.UiEvent{Kind: core.EvDisplayCompactionSummary, SessionID: id, Text: summary})
	}
	return true, m.persist(ctx, id)
}

// sessionSink adapts the Manager's shared UISink plus a session's
// fragment ring into the per-iteration core.UISink the agent loop wants,
// so every fragment is both forwarded live and buffered for replay.
type sessionSink struct {
	sink core.UISink
	inst *SessionInstance
}

func (s sessionSink) Publish(event core.UiEvent) {
	if s.sink != nil {
		s.sink.Publish(event)
	}
}

func (s sessionSink) DisplayFragment(f core.DisplayFragment) {
	s.inst.pushFragment(f)
	if s.sink != nil {
		s.sink.DisplayFragment(f)
	}
}
