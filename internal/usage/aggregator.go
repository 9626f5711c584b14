package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/orialabs/voicedeck/internal/calls"
)

// Summary describes a user's rolling usage within the current billing cycle
type Summary struct {
	UserID           uuid.UUID `json:"user_id"`
	TotalMinutesUsed int       `json:"total_minutes_used"`
	TotalSeconds     int64     `json:"total_seconds"`
	CallCount        int       `json:"call_count"`
	CycleStart       time.Time `json:"cycle_start"`
}

// Aggregator computes rolling per-user usage against the billing cycle
type Aggregator struct {
	callStore calls.Store
	userStore UserStore
	now       func() time.Time
}

// NewAggregator creates a usage aggregator
func NewAggregator(callStore calls.Store, userStore UserStore) *Aggregator {
	return &Aggregator{
		callStore: callStore,
		userStore: userStore,
		now:       time.Now,
	}
}

// WithClock overrides the aggregator's clock. Test hook.
func (a *Aggregator) WithClock(now func() time.Time) *Aggregator {
	a.now = now
	return a
}

// Summarize computes the user's usage for the billing cycle containing now.
// Minutes are derived by summing seconds across all qualifying calls and
// taking the ceiling once over the total. The per-call-ceiling alternative
// would make the total depend on how usage was split across calls; the
// aggregate rule is monotonic and order-independent.
func (a *Aggregator) Summarize(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	state, err := a.userStore.GetUsageState(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load usage state: %w", err)
	}

	cycleStart := CycleStart(state.SignupAt, a.now())

	totalSeconds, count, err := a.callStore.SumDurationSince(ctx, userID, cycleStart)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate call durations: %w", err)
	}

	return &Summary{
		UserID:           userID,
		TotalMinutesUsed: CeilMinutes(totalSeconds),
		TotalSeconds:     totalSeconds,
		CallCount:        count,
		CycleStart:       cycleStart,
	}, nil
}

// CeilMinutes converts a second total to minutes, rounding up once
func CeilMinutes(seconds int64) int {
	if seconds <= 0 {
		return 0
	}
	return int((seconds + 59) / 60)
}
