package compaction

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/zcode-dev/agentcore/internal/zlog"
)

// SessionSource is the minimal slice of the Session Manager a periodic
// sweep needs: enough to iterate active sessions and apply a compaction
// pass to each without the sweep depending on internal/session directly
// (avoiding an import cycle, since internal/session imports compaction
// for its Policy type).
type SessionSource interface {
	ActiveSessionIDs() []string
	CompactIfNeeded(ctx context.Context, sessionID string, policy Policy) (didCompact bool, err error)
}

// Sweeper runs Policy-driven compaction on a schedule for long-lived
// daemon deployments ("zcode serve"), rather than only at the start of
// each agent-loop iteration.
// One-shot CLI invocations never construct a Sweeper; they rely on the
// inline check in the Agent Loop instead.
type Sweeper struct {
	cron   *cron.Cron
	source SessionSource
	policy Policy
}

// NewSweeper builds a Sweeper that checks every active session against
// policy on the given cron schedule (e.g. "@every 5m").
func NewSweeper(source SessionSource, policy Policy) *Sweeper {
	return &Sweeper{cron: cron.New(), source: source, policy: policy}
}

// Start schedules the sweep and returns once registered; it does not
// block. Call Stop to halt it.
func (s *Sweeper) Start(ctx context.Context, schedule string) error {
	_, err := s.cron.AddFunc(schedule, func() { s.runOnce(ctx) })
	if err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts the schedule, waiting for any in-flight sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

func (s *Sweeper) runOnce(ctx context.Context) {
	log := zlog.With("compaction")
	for _, id := range s.source.ActiveSessionIDs() {
		compacted, err := s.source.CompactIfNeeded(ctx, id, s.policy)
		if err != nil {
			log.Error("compaction sweep failed", "session", id, "error", err)
			continue
		}
		if compacted {
			log.Info("compacted session", "session", id)
		}
	}
}
