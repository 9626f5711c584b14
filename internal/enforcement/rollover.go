package enforcement

import (
	"context"
	"fmt"
	"time"

	"github.com/orialabs/voicedeck/internal/monitoring"
	"github.com/orialabs/voicedeck/internal/usage"
	"github.com/rs/zerolog"
)

// RolloverResult summarizes one cycle-rollover pass
type RolloverResult struct {
	UsersChecked   int `json:"users_checked"`
	RestoresQueued int `json:"restores_queued"`
}

// Rollover enqueues restore items for users whose enforcement predates their
// current billing cycle. It is driven by an external cron-like trigger or by
// the interval scheduler.
type Rollover struct {
	users usage.UserStore
	queue QueueStore
	log   zerolog.Logger
}

// NewRollover creates a cycle-rollover job
func NewRollover(users usage.UserStore, queue QueueStore, log zerolog.Logger) *Rollover {
	return &Rollover{users: users, queue: queue, log: log}
}

// Run scans enforced users and, for each one whose limit_enforced_at falls
// before the cycle containing now, enqueues a restore and clears the stamp.
// Clearing the stamp re-arms the enforce-once gate for the new cycle.
func (r *Rollover) Run(ctx context.Context, now time.Time) (*RolloverResult, error) {
	enforced, err := r.users.ListLimitEnforced(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list enforced users: %w", err)
	}

	result := &RolloverResult{UsersChecked: len(enforced)}
	for _, st := range enforced {
		cycleStart := usage.CycleStart(st.SignupAt, now)
		if st.LimitEnforcedAt == nil || !st.LimitEnforcedAt.Before(cycleStart) {
			continue
		}

		if _, err := r.queue.Enqueue(ctx, st.UserID, ActionRestore); err != nil {
			r.log.Error().Err(err).
				Str("user_id", st.UserID.String()).
				Msg("Failed to enqueue restore")
			continue
		}
		if err := r.users.ClearLimitEnforced(ctx, st.UserID); err != nil {
			r.log.Error().Err(err).
				Str("user_id", st.UserID.String()).
				Msg("Failed to clear enforcement stamp")
			continue
		}

		monitoring.RecordEnforcementDecision(string(ActionRestore))
		result.RestoresQueued++
		r.log.Info().
			Str("user_id", st.UserID.String()).
			Time("cycle_start", cycleStart).
			Msg("Cycle rolled over, restore enqueued")
	}

	return result, nil
}
