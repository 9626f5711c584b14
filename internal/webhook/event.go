package webhook

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Parse errors
var (
	ErrMalformedPayload = errors.New("malformed webhook payload")
	ErrUnknownEventType = errors.New("unknown webhook event type")
)

// EventType discriminates the polymorphic webhook event stream
type EventType string

const (
	EventCallStart    EventType = "call-start"
	EventCallEnd      EventType = "call-end"
	EventFunctionCall EventType = "function-call"
	EventTranscript   EventType = "transcript"
	EventStatusUpdate EventType = "status-update"
)

var knownEventTypes = map[EventType]bool{
	EventCallStart:    true,
	EventCallEnd:      true,
	EventFunctionCall: true,
	EventTranscript:   true,
	EventStatusUpdate: true,
}

// Event is the normalized form of one webhook delivery. CallEnd is set only
// for call-end events; every other known type is accepted and ignored by the
// pipeline.
type Event struct {
	Type    EventType
	CallEnd *CallEndEvent
}

// CallEndEvent carries the call summary delivered at the end of a session
type CallEndEvent struct {
	ExternalCallID      string
	ExternalAssistantID string
	StartedAt           *time.Time
	EndedAt             *time.Time
	CostUSD             decimal.Decimal
	CostCents           int64
	EndedReason         string
	Transcript          string
	StructuredData      map[string]any
	Summary             string
}

// envelope matches the provider's outer wrapper: {"message": {...}}
type envelope struct {
	Message json.RawMessage `json:"message"`
}

type message struct {
	Type        string           `json:"type"`
	Call        *callPayload     `json:"call"`
	StartedAt   *time.Time       `json:"startedAt"`
	EndedAt     *time.Time       `json:"endedAt"`
	Cost        *float64         `json:"cost"`
	EndedReason string           `json:"endedReason"`
	Transcript  string           `json:"transcript"`
	Analysis    *analysisPayload `json:"analysis"`
}

type callPayload struct {
	ID          string `json:"id"`
	AssistantID string `json:"assistantId"`
}

type analysisPayload struct {
	Summary        string         `json:"summary"`
	StructuredData map[string]any `json:"structuredData"`
}

// ParseEvent validates a raw webhook body into a typed Event. It never
// touches the datastore; all failures surface before any side effect.
func ParseEvent(raw []byte) (*Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if len(env.Message) == 0 {
		return nil, fmt.Errorf("%w: missing message", ErrMalformedPayload)
	}

	var msg message
	if err := json.Unmarshal(env.Message, &msg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}

	typ := EventType(msg.Type)
	if !knownEventTypes[typ] {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEventType, msg.Type)
	}

	ev := &Event{Type: typ}
	if typ != EventCallEnd {
		return ev, nil
	}

	if msg.Call == nil || msg.Call.ID == "" {
		return nil, fmt.Errorf("%w: call-end event without call id", ErrMalformedPayload)
	}
	if msg.Call.AssistantID == "" {
		return nil, fmt.Errorf("%w: call-end event without assistant id", ErrMalformedPayload)
	}

	end := &CallEndEvent{
		ExternalCallID:      msg.Call.ID,
		ExternalAssistantID: msg.Call.AssistantID,
		StartedAt:           msg.StartedAt,
		EndedAt:             msg.EndedAt,
		EndedReason:         msg.EndedReason,
		Transcript:          msg.Transcript,
	}
	if msg.Cost != nil {
		end.CostUSD = decimal.NewFromFloat(*msg.Cost)
		end.CostCents = end.CostUSD.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	} else {
		end.CostUSD = decimal.Zero
	}
	if msg.Analysis != nil {
		end.Summary = msg.Analysis.Summary
		end.StructuredData = msg.Analysis.StructuredData
	}

	ev.CallEnd = end
	return ev, nil
}

// DurationSeconds derives the call duration from the event timestamps,
// falling back to 0 when either is missing or the range is negative.
func (e *CallEndEvent) DurationSeconds() int {
	if e.StartedAt == nil || e.EndedAt == nil {
		return 0
	}
	d := int(e.EndedAt.Sub(*e.StartedAt).Seconds())
	if d < 0 {
		return 0
	}
	return d
}
