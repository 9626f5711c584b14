package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/orialabs/voicedeck/internal/assistants"
	"github.com/orialabs/voicedeck/internal/calls"
	"github.com/orialabs/voicedeck/internal/config"
	"github.com/orialabs/voicedeck/internal/enforcement"
	"github.com/orialabs/voicedeck/internal/provider"
	"github.com/orialabs/voicedeck/internal/usage"
	"github.com/rs/zerolog"
)

type noopMutator struct{}

func (noopMutator) UpdateAssistantConfig(context.Context, string, provider.AssistantConfigUpdate) error {
	return nil
}

type apiFixture struct {
	server     *APIServer
	userID     uuid.UUID
	callStore  *calls.MemoryStore
	users      *usage.MemoryUserStore
	queue      *enforcement.MemoryQueueStore
	assistants *assistants.MemoryStore
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()

	f := &apiFixture{
		userID:     uuid.New(),
		callStore:  calls.NewMemoryStore(),
		users:      usage.NewMemoryUserStore(),
		queue:      enforcement.NewMemoryQueueStore(),
		assistants: assistants.NewMemoryStore(),
	}
	// Anchor the cycle roughly mid-way back so recent calls always land
	// inside it.
	f.users.Put(&usage.UserUsageState{
		UserID:   f.userID,
		SignupAt: time.Now().AddDate(0, -1, -15),
	})

	agg := usage.NewAggregator(f.callStore, f.users)
	processor := enforcement.NewProcessor(
		f.queue, f.assistants, noopMutator{}, enforcement.NewMemoryLock(),
		enforcement.ProcessorConfig{}, zerolog.Nop(),
	)
	rollover := enforcement.NewRollover(f.users, f.queue, zerolog.Nop())

	f.server = NewAPIServer(&config.Config{}, Deps{
		CallStore:  f.callStore,
		Aggregator: agg,
		Processor:  processor,
		Rollover:   rollover,
		Queue:      f.queue,
	})
	return f
}

func (f *apiFixture) request(method, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	w := httptest.NewRecorder()
	f.server.Router().ServeHTTP(w, req)
	return w
}

func TestGetUsage(t *testing.T) {
	f := newAPIFixture(t)
	start := time.Now().Add(-time.Hour)
	f.callStore.UpsertCallRecord(context.Background(), &calls.CallRecord{
		ExternalCallID:  "c1",
		AssistantID:     uuid.New(),
		UserID:          f.userID,
		Status:          calls.CallStatusEnded,
		StartedAt:       &start,
		DurationSeconds: 185,
	})

	w := f.request(http.MethodGet, "/api/v1/users/"+f.userID.String()+"/usage")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var summary usage.Summary
	if err := json.Unmarshal(w.Body.Bytes(), &summary); err != nil {
		t.Fatalf("Failed to decode summary: %v", err)
	}
	if summary.TotalSeconds != 185 || summary.TotalMinutesUsed != 4 {
		t.Errorf("Expected 185s rounded up to 4 minutes, got %+v", summary)
	}
}

func TestGetUsage_UnknownUser(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(http.MethodGet, "/api/v1/users/"+uuid.NewString()+"/usage")
	if w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
}

func TestGetUsage_InvalidID(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(http.MethodGet, "/api/v1/users/not-a-uuid/usage")
	if w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestListCalls(t *testing.T) {
	f := newAPIFixture(t)
	for i := 0; i < 3; i++ {
		start := time.Now().Add(-time.Duration(i) * time.Hour)
		f.callStore.UpsertCallRecord(context.Background(), &calls.CallRecord{
			ExternalCallID:  fmt.Sprintf("c%d", i),
			AssistantID:     uuid.New(),
			UserID:          f.userID,
			Status:          calls.CallStatusEnded,
			StartedAt:       &start,
			DurationSeconds: 60,
		})
	}

	w := f.request(http.MethodGet, "/api/v1/users/"+f.userID.String()+"/calls?limit=2")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp struct {
		Calls []calls.CallRecord `json:"calls"`
		Count int                `json:"count"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Count != 2 {
		t.Errorf("Expected the limit applied, got %d calls", resp.Count)
	}
	if len(resp.Calls) == 2 && resp.Calls[0].StartedAt.Before(*resp.Calls[1].StartedAt) {
		t.Error("Expected newest-first ordering")
	}
}

func TestQueueState(t *testing.T) {
	f := newAPIFixture(t)
	f.queue.Enqueue(context.Background(), f.userID, enforcement.ActionEnforce)

	w := f.request(http.MethodGet, "/api/v1/queue")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}

	var resp struct {
		Pending int                     `json:"pending"`
		Items   []enforcement.QueueItem `json:"items"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if resp.Pending != 1 || len(resp.Items) != 1 {
		t.Errorf("Expected one pending item, got %+v", resp)
	}
}

func TestProcessQueueTrigger(t *testing.T) {
	f := newAPIFixture(t)
	f.assistants.Put(&assistants.Assistant{
		ID:                  uuid.New(),
		UserID:              f.userID,
		ExternalAssistantID: "asst-1",
		MaxDurationSeconds:  300,
	})
	f.queue.Enqueue(context.Background(), f.userID, enforcement.ActionEnforce)

	w := f.request(http.MethodPost, "/internal/queue/process")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result enforcement.RunResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.ItemsProcessed != 1 || result.ItemsFailed != 0 {
		t.Errorf("Unexpected result %+v", result)
	}

	a, _ := f.assistants.GetByExternalID(context.Background(), "asst-1")
	if !a.IsUsageLimited {
		t.Error("Expected the assistant limited after processing")
	}
}

func TestRolloverTrigger(t *testing.T) {
	f := newAPIFixture(t)
	// The stamp predates the current cycle, which began at most a month ago.
	enforcedAt := time.Now().AddDate(0, -1, -5)
	f.users.Put(&usage.UserUsageState{
		UserID:          f.userID,
		SignupAt:        time.Now().AddDate(0, -6, 0),
		LimitEnforcedAt: &enforcedAt,
	})

	w := f.request(http.MethodPost, "/internal/rollover")
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var result enforcement.RolloverResult
	if err := json.Unmarshal(w.Body.Bytes(), &result); err != nil {
		t.Fatalf("Failed to decode result: %v", err)
	}
	if result.RestoresQueued != 1 {
		t.Errorf("Expected one restore queued, got %+v", result)
	}
}

func TestHealthCheck(t *testing.T) {
	f := newAPIFixture(t)

	w := f.request(http.MethodGet, "/health")
	if w.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", w.Code)
	}
}
