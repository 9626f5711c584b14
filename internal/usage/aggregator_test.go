package usage

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/orialabs/voicedeck/internal/calls"
	"pgregory.net/rapid"
)

func TestCeilMinutes(t *testing.T) {
	cases := []struct {
		seconds int64
		want    int
	}{
		{0, 0}, {-5, 0}, {1, 1}, {59, 1}, {60, 1}, {61, 2}, {119, 2}, {120, 2}, {601, 11},
	}
	for _, tc := range cases {
		if got := CeilMinutes(tc.seconds); got != tc.want {
			t.Errorf("CeilMinutes(%d) = %d, want %d", tc.seconds, got, tc.want)
		}
	}
}

func seedCall(store *calls.MemoryStore, userID uuid.UUID, externalID string, startedAt time.Time, durationSeconds int) {
	rec := &calls.CallRecord{
		ExternalCallID:  externalID,
		AssistantID:     uuid.New(),
		UserID:          userID,
		Status:          calls.CallStatusEnded,
		StartedAt:       &startedAt,
		DurationSeconds: durationSeconds,
	}
	store.UpsertCallRecord(context.Background(), rec)
}

func TestAggregator_SumThenCeiling(t *testing.T) {
	userID := uuid.New()
	userStore := NewMemoryUserStore()
	userStore.Put(&UserUsageState{UserID: userID, SignupAt: date(2026, 1, 1)})

	callStore := calls.NewMemoryStore()
	now := date(2026, 3, 15)
	// 61s + 61s = 122s. Summed then ceilinged once that is 3 minutes;
	// per-call ceiling would say 4.
	seedCall(callStore, userID, "c1", date(2026, 3, 5), 61)
	seedCall(callStore, userID, "c2", date(2026, 3, 6), 61)

	agg := NewAggregator(callStore, userStore).WithClock(func() time.Time { return now })
	summary, err := agg.Summarize(context.Background(), userID)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.TotalSeconds != 122 {
		t.Errorf("Expected 122 total seconds, got %d", summary.TotalSeconds)
	}
	if summary.TotalMinutesUsed != 3 {
		t.Errorf("Expected 3 minutes (aggregate ceiling), got %d", summary.TotalMinutesUsed)
	}
	if summary.CallCount != 2 {
		t.Errorf("Expected 2 calls, got %d", summary.CallCount)
	}
	if !summary.CycleStart.Equal(date(2026, 3, 1)) {
		t.Errorf("Expected cycle start 2026-03-01, got %s", summary.CycleStart)
	}
}

func TestAggregator_ExcludesPriorCycle(t *testing.T) {
	userID := uuid.New()
	userStore := NewMemoryUserStore()
	userStore.Put(&UserUsageState{UserID: userID, SignupAt: date(2026, 1, 10)})

	callStore := calls.NewMemoryStore()
	seedCall(callStore, userID, "old", date(2026, 3, 5), 600)  // previous cycle
	seedCall(callStore, userID, "new", date(2026, 3, 12), 90)  // current cycle
	seedCall(callStore, uuid.New(), "other-user", date(2026, 3, 12), 600)

	agg := NewAggregator(callStore, userStore).WithClock(func() time.Time { return date(2026, 3, 15) })
	summary, err := agg.Summarize(context.Background(), userID)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.TotalSeconds != 90 || summary.CallCount != 1 {
		t.Errorf("Expected only the current-cycle call, got %ds over %d calls",
			summary.TotalSeconds, summary.CallCount)
	}
}

func TestAggregator_NoCalls(t *testing.T) {
	userID := uuid.New()
	userStore := NewMemoryUserStore()
	userStore.Put(&UserUsageState{UserID: userID, SignupAt: date(2026, 1, 1)})

	agg := NewAggregator(calls.NewMemoryStore(), userStore).
		WithClock(func() time.Time { return date(2026, 3, 15) })
	summary, err := agg.Summarize(context.Background(), userID)
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if summary.TotalMinutesUsed != 0 || summary.TotalSeconds != 0 || summary.CallCount != 0 {
		t.Errorf("Expected zero usage, got %+v", summary)
	}
}

func TestAggregator_UnknownUser(t *testing.T) {
	agg := NewAggregator(calls.NewMemoryStore(), NewMemoryUserStore())
	if _, err := agg.Summarize(context.Background(), uuid.New()); err == nil {
		t.Error("Expected an error for an unknown user")
	}
}

// TestProperty_CeilMinutes_AggregateNeverExceedsPerCall checks that ceiling
// the sum can never bill more minutes than ceiling each call separately, and
// never undercounts whole minutes of talk time.
func TestProperty_CeilMinutes_AggregateNeverExceedsPerCall(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		durations := rapid.SliceOfN(rapid.Int64Range(0, 3600), 0, 50).Draw(rt, "durations")

		var total, perCall int64
		for _, d := range durations {
			total += d
			perCall += int64(CeilMinutes(d))
		}

		aggregate := int64(CeilMinutes(total))
		if aggregate > perCall {
			t.Fatalf("PROPERTY VIOLATION: aggregate %d minutes exceeds per-call %d for %v",
				aggregate, perCall, durations)
		}
		if aggregate < total/60 {
			t.Fatalf("PROPERTY VIOLATION: aggregate %d minutes undercounts %ds", aggregate, total)
		}
	})
}

// TestProperty_CeilMinutes_Monotonic checks more seconds never means fewer
// billed minutes.
func TestProperty_CeilMinutes_Monotonic(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		a := rapid.Int64Range(0, 1_000_000).Draw(rt, "a")
		b := rapid.Int64Range(0, 1_000_000).Draw(rt, "b")
		if a > b {
			a, b = b, a
		}
		if CeilMinutes(a) > CeilMinutes(b) {
			t.Fatalf("PROPERTY VIOLATION: CeilMinutes(%d)=%d > CeilMinutes(%d)=%d",
				a, CeilMinutes(a), b, CeilMinutes(b))
		}
	})
}
