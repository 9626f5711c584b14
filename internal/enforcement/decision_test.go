package enforcement

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/orialabs/voicedeck/internal/calls"
	"github.com/orialabs/voicedeck/internal/usage"
	"github.com/rs/zerolog"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type deciderFixture struct {
	userID    uuid.UUID
	users     *usage.MemoryUserStore
	callStore *calls.MemoryStore
	queue     *MemoryQueueStore
	decider   *Decider
}

func newDeciderFixture(minuteLimit int, now time.Time) *deciderFixture {
	f := &deciderFixture{
		userID:    uuid.New(),
		users:     usage.NewMemoryUserStore(),
		callStore: calls.NewMemoryStore(),
		queue:     NewMemoryQueueStore(),
	}
	f.users.Put(&usage.UserUsageState{UserID: f.userID, SignupAt: date(2026, 1, 1)})

	clock := func() time.Time { return now }
	agg := usage.NewAggregator(f.callStore, f.users).WithClock(clock)
	f.decider = NewDecider(agg, f.users, f.queue, minuteLimit, zerolog.Nop()).WithClock(clock)
	return f
}

func (f *deciderFixture) seedCall(externalID string, startedAt time.Time, durationSeconds int) {
	rec := &calls.CallRecord{
		ExternalCallID:  externalID,
		AssistantID:     uuid.New(),
		UserID:          f.userID,
		Status:          calls.CallStatusEnded,
		StartedAt:       &startedAt,
		DurationSeconds: durationSeconds,
	}
	f.callStore.UpsertCallRecord(context.Background(), rec)
}

func TestDecider_UnderLimitNoEnqueue(t *testing.T) {
	f := newDeciderFixture(10, date(2026, 3, 15))
	f.seedCall("c1", date(2026, 3, 10), 9*60)

	summary, err := f.decider.Evaluate(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if summary.TotalMinutesUsed != 9 {
		t.Errorf("Expected 9 minutes used, got %d", summary.TotalMinutesUsed)
	}
	if len(f.queue.Items()) != 0 {
		t.Error("Expected no queue item under the limit")
	}

	state, _ := f.users.GetUsageState(context.Background(), f.userID)
	if state.LimitEnforcedAt != nil {
		t.Error("Expected no enforcement stamp under the limit")
	}
}

func TestDecider_AtLimitEnqueuesOnce(t *testing.T) {
	f := newDeciderFixture(10, date(2026, 3, 15))
	f.seedCall("c1", date(2026, 3, 10), 10*60)

	if _, err := f.decider.Evaluate(context.Background(), f.userID); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	items := f.queue.Items()
	if len(items) != 1 {
		t.Fatalf("Expected exactly one queue item, got %d", len(items))
	}
	if items[0].Action != ActionEnforce || items[0].UserID != f.userID {
		t.Errorf("Unexpected queue item %+v", items[0])
	}

	state, _ := f.users.GetUsageState(context.Background(), f.userID)
	if state.LimitEnforcedAt == nil {
		t.Error("Expected the enforcement stamp to be set")
	}
}

func TestDecider_EnforcesOncePerCycle(t *testing.T) {
	f := newDeciderFixture(10, date(2026, 3, 15))
	f.seedCall("c1", date(2026, 3, 10), 11*60)

	// Two more over-limit calls arrive after enforcement; each triggers a
	// fresh evaluation but no additional queue item.
	for i, externalID := range []string{"c1", "c2", "c3"} {
		if i > 0 {
			f.seedCall(externalID, date(2026, 3, 11), 5*60)
		}
		if _, err := f.decider.Evaluate(context.Background(), f.userID); err != nil {
			t.Fatalf("Evaluate %d failed: %v", i+1, err)
		}
	}

	if got := len(f.queue.Items()); got != 1 {
		t.Errorf("Expected one enforce item for the cycle, got %d", got)
	}
}

func TestDecider_ReenforcesInNewCycle(t *testing.T) {
	f := newDeciderFixture(10, date(2026, 3, 15))
	f.seedCall("c1", date(2026, 3, 10), 11*60)
	if _, err := f.decider.Evaluate(context.Background(), f.userID); err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}

	// Next cycle: the stamp predates the new cycle start, so the guarded
	// update wins again.
	nextCycle := date(2026, 4, 20)
	clock := func() time.Time { return nextCycle }
	agg := usage.NewAggregator(f.callStore, f.users).WithClock(clock)
	decider := NewDecider(agg, f.users, f.queue, 10, zerolog.Nop()).WithClock(clock)

	f.seedCall("c2", date(2026, 4, 5), 12*60)
	if _, err := decider.Evaluate(context.Background(), f.userID); err != nil {
		t.Fatalf("Evaluate in new cycle failed: %v", err)
	}

	if got := len(f.queue.Items()); got != 2 {
		t.Errorf("Expected a second enforce item in the new cycle, got %d", got)
	}
}

func TestDecider_EnqueueFailureRollsBackStamp(t *testing.T) {
	f := newDeciderFixture(10, date(2026, 3, 15))
	f.seedCall("c1", date(2026, 3, 10), 11*60)

	f.queue.FailEnqueues(errors.New("connection refused"))
	if _, err := f.decider.Evaluate(context.Background(), f.userID); err == nil {
		t.Fatal("Expected an error when the enqueue fails")
	}

	state, err := f.users.GetUsageState(context.Background(), f.userID)
	if err != nil {
		t.Fatalf("GetUsageState failed: %v", err)
	}
	if state.LimitEnforcedAt != nil {
		t.Error("Expected the enforcement stamp rolled back after a failed enqueue")
	}

	// The next evaluation must retry and win the stamp again.
	f.queue.FailEnqueues(nil)
	if _, err := f.decider.Evaluate(context.Background(), f.userID); err != nil {
		t.Fatalf("Evaluate after recovery failed: %v", err)
	}
	if got := len(f.queue.Items()); got != 1 {
		t.Errorf("Expected exactly one enforce item after recovery, got %d", got)
	}
	state, _ = f.users.GetUsageState(context.Background(), f.userID)
	if state.LimitEnforcedAt == nil {
		t.Error("Expected the enforcement stamp set after a successful enqueue")
	}
}
