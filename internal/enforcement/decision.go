package enforcement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/orialabs/voicedeck/internal/monitoring"
	"github.com/orialabs/voicedeck/internal/usage"
	"github.com/rs/zerolog"
)

// Decider decides after each call-end event whether a user's assistants
// should be throttled, and records that decision durably at most once per
// billing cycle.
type Decider struct {
	aggregator  *usage.Aggregator
	users       usage.UserStore
	queue       QueueStore
	minuteLimit int
	now         func() time.Time
	log         zerolog.Logger
}

// NewDecider creates an enforcement decision engine
func NewDecider(aggregator *usage.Aggregator, users usage.UserStore, queue QueueStore, minuteLimit int, log zerolog.Logger) *Decider {
	return &Decider{
		aggregator:  aggregator,
		users:       users,
		queue:       queue,
		minuteLimit: minuteLimit,
		now:         time.Now,
		log:         log,
	}
}

// WithClock overrides the decider's clock. Test hook.
func (d *Decider) WithClock(now func() time.Time) *Decider {
	d.now = now
	return d
}

// Evaluate recomputes the user's usage and, when it meets the limit and no
// enforcement was recorded this cycle, stamps limit_enforced_at and enqueues
// exactly one enforce item. The stamp is a guarded compare-and-set in the
// user store, so concurrent evaluations for the same user produce one queue
// item no matter how they interleave.
func (d *Decider) Evaluate(ctx context.Context, userID uuid.UUID) (*usage.Summary, error) {
	summary, err := d.aggregator.Summarize(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to summarize usage: %w", err)
	}

	if summary.TotalMinutesUsed < d.minuteLimit {
		return summary, nil
	}

	won, err := d.users.MarkLimitEnforced(ctx, userID, d.now(), summary.CycleStart)
	if err != nil {
		return summary, fmt.Errorf("failed to stamp enforcement: %w", err)
	}
	if !won {
		// Already enforced this cycle.
		return summary, nil
	}

	if _, err := d.queue.Enqueue(ctx, userID, ActionEnforce); err != nil {
		// Roll the stamp back so the next evaluation retries; a stamp with
		// no queue item behind it would suppress enforcement for the rest
		// of the cycle.
		if clearErr := d.users.ClearLimitEnforced(ctx, userID); clearErr != nil {
			d.log.Error().Err(clearErr).
				Str("user_id", userID.String()).
				Msg("Failed to roll back enforcement stamp after enqueue failure")
		}
		return summary, fmt.Errorf("failed to enqueue enforcement: %w", err)
	}

	monitoring.RecordEnforcementDecision(string(ActionEnforce))
	d.log.Info().
		Str("user_id", userID.String()).
		Int("minutes_used", summary.TotalMinutesUsed).
		Int("minute_limit", d.minuteLimit).
		Time("cycle_start", summary.CycleStart).
		Msg("Usage limit reached, enforcement enqueued")

	return summary, nil
}
