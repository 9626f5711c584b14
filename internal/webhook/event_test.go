package webhook

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestParseEvent_CallEnd(t *testing.T) {
	raw := []byte(`{
		"message": {
			"type": "call-end",
			"call": {"id": "call-abc-123", "assistantId": "asst-xyz-789"},
			"startedAt": "2026-03-10T14:00:00Z",
			"endedAt": "2026-03-10T14:02:05Z",
			"cost": 0.125,
			"endedReason": "customer-ended-call",
			"transcript": "AI: Hello\nUser: Hi",
			"analysis": {
				"summary": "Caller asked about listings",
				"structuredData": {"name": "Dana", "lead_type": "buyer"}
			}
		}
	}`)

	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("Expected parse to succeed, got %v", err)
	}
	if ev.Type != EventCallEnd {
		t.Errorf("Expected type call-end, got %s", ev.Type)
	}
	end := ev.CallEnd
	if end == nil {
		t.Fatal("Expected CallEnd payload to be set")
	}
	if end.ExternalCallID != "call-abc-123" {
		t.Errorf("Expected call id call-abc-123, got %s", end.ExternalCallID)
	}
	if end.ExternalAssistantID != "asst-xyz-789" {
		t.Errorf("Expected assistant id asst-xyz-789, got %s", end.ExternalAssistantID)
	}
	if end.DurationSeconds() != 125 {
		t.Errorf("Expected duration 125s, got %d", end.DurationSeconds())
	}
	if end.CostCents != 13 {
		t.Errorf("Expected cost 13 cents (0.125 USD rounded), got %d", end.CostCents)
	}
	if end.Summary != "Caller asked about listings" {
		t.Errorf("Unexpected summary %q", end.Summary)
	}
	if end.StructuredData["lead_type"] != "buyer" {
		t.Errorf("Expected structured data to carry lead_type, got %v", end.StructuredData)
	}
}

func TestParseEvent_OtherTypesIgnored(t *testing.T) {
	for _, typ := range []string{"call-start", "function-call", "transcript", "status-update"} {
		raw := []byte(fmt.Sprintf(`{"message": {"type": %q}}`, typ))
		ev, err := ParseEvent(raw)
		if err != nil {
			t.Errorf("Expected %s to parse, got %v", typ, err)
			continue
		}
		if ev.Type != EventType(typ) {
			t.Errorf("Expected type %s, got %s", typ, ev.Type)
		}
		if ev.CallEnd != nil {
			t.Errorf("Expected no CallEnd payload for %s", typ)
		}
	}
}

func TestParseEvent_Malformed(t *testing.T) {
	cases := map[string][]byte{
		"invalid json":       []byte(`{not json`),
		"missing message":    []byte(`{}`),
		"empty body":         []byte(``),
		"message wrong type": []byte(`{"message": "hello"}`),
		"call-end no call":   []byte(`{"message": {"type": "call-end"}}`),
		"call-end no call id": []byte(
			`{"message": {"type": "call-end", "call": {"assistantId": "a"}}}`),
		"call-end no assistant": []byte(
			`{"message": {"type": "call-end", "call": {"id": "c"}}}`),
	}

	for name, raw := range cases {
		if _, err := ParseEvent(raw); !errors.Is(err, ErrMalformedPayload) {
			t.Errorf("%s: expected ErrMalformedPayload, got %v", name, err)
		}
	}
}

func TestParseEvent_UnknownType(t *testing.T) {
	_, err := ParseEvent([]byte(`{"message": {"type": "speech-update"}}`))
	if !errors.Is(err, ErrUnknownEventType) {
		t.Errorf("Expected ErrUnknownEventType, got %v", err)
	}
}

func TestParseEvent_MissingCostDefaultsToZero(t *testing.T) {
	raw := []byte(`{"message": {"type": "call-end", "call": {"id": "c1", "assistantId": "a1"}}}`)
	ev, err := ParseEvent(raw)
	if err != nil {
		t.Fatalf("Expected parse to succeed, got %v", err)
	}
	if !ev.CallEnd.CostUSD.IsZero() || ev.CallEnd.CostCents != 0 {
		t.Errorf("Expected zero cost, got %s / %d cents", ev.CallEnd.CostUSD, ev.CallEnd.CostCents)
	}
}

func TestCallEndEvent_DurationSeconds(t *testing.T) {
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	end := start.Add(90 * time.Second)

	cases := []struct {
		name  string
		event CallEndEvent
		want  int
	}{
		{"normal", CallEndEvent{StartedAt: &start, EndedAt: &end}, 90},
		{"missing start", CallEndEvent{EndedAt: &end}, 0},
		{"missing end", CallEndEvent{StartedAt: &start}, 0},
		{"missing both", CallEndEvent{}, 0},
		{"negative range", CallEndEvent{StartedAt: &end, EndedAt: &start}, 0},
	}
	for _, tc := range cases {
		if got := tc.event.DurationSeconds(); got != tc.want {
			t.Errorf("%s: expected %d, got %d", tc.name, tc.want, got)
		}
	}
}
