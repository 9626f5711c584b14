package calls

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CallStatus represents the lifecycle status of a voice session
type CallStatus string

const (
	CallStatusInitiated CallStatus = "initiated"
	CallStatusRinging   CallStatus = "ringing"
	CallStatusAnswered  CallStatus = "answered"
	CallStatusEnded     CallStatus = "ended"
	CallStatusFailed    CallStatus = "failed"
)

// CallRecord is the durable representation of one voice session, keyed by the
// provider's external call identifier. Exactly one record exists per
// external call id regardless of how many times the provider redelivers the
// same event.
type CallRecord struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	ExternalCallID  string          `json:"external_call_id" db:"external_call_id"`
	AssistantID     uuid.UUID       `json:"assistant_id" db:"assistant_id"`
	UserID          uuid.UUID       `json:"user_id" db:"user_id"`
	Status          CallStatus      `json:"status" db:"status"`
	StartedAt       *time.Time      `json:"started_at,omitempty" db:"started_at"`
	EndedAt         *time.Time      `json:"ended_at,omitempty" db:"ended_at"`
	DurationSeconds int             `json:"duration_seconds" db:"duration_seconds"`
	CostCents       int64           `json:"cost_cents" db:"cost_cents"`
	CostUSD         decimal.Decimal `json:"cost_usd" db:"cost_usd"`
	Transcript      *string         `json:"transcript,omitempty" db:"transcript"`
	EndedReason     *string         `json:"ended_reason,omitempty" db:"ended_reason"`
	CreatedAt       time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at" db:"updated_at"`
}

// Lead is the structured record derived from a call's free-form analysis
// data. Every field is optional; an all-absent analysis simply yields no
// lead.
type Lead struct {
	ID           uuid.UUID `json:"id" db:"id"`
	CallRecordID uuid.UUID `json:"call_record_id" db:"call_record_id"`
	UserID       uuid.UUID `json:"user_id" db:"user_id"`
	Name         *string   `json:"name,omitempty" db:"name"`
	Email        *string   `json:"email,omitempty" db:"email"`
	Phone        *string   `json:"phone,omitempty" db:"phone"`
	LeadType     *string   `json:"lead_type,omitempty" db:"lead_type"`
	BudgetRange  *string   `json:"budget_range,omitempty" db:"budget_range"`
	Timeline     *string   `json:"timeline,omitempty" db:"timeline"`
	Notes        *string   `json:"notes,omitempty" db:"notes"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}
