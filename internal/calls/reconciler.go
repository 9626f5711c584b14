package calls

import (
	"context"
	"fmt"

	"github.com/orialabs/voicedeck/internal/assistants"
	"github.com/orialabs/voicedeck/internal/logging"
	"github.com/orialabs/voicedeck/internal/monitoring"
	"github.com/orialabs/voicedeck/internal/webhook"
)

// Reconciler turns normalized call-end events into durable call records.
// The upsert keyed on the external call id makes it idempotent under
// at-least-once webhook delivery.
type Reconciler struct {
	store      Store
	assistants assistants.Store
}

// NewReconciler creates a call record reconciler
func NewReconciler(store Store, assistantStore assistants.Store) *Reconciler {
	return &Reconciler{store: store, assistants: assistantStore}
}

// Apply resolves the event's assistant, writes the call record, and runs
// lead extraction as a best-effort side branch. Only the core call record
// write can fail the operation; an extraction failure is logged and the
// committed record is returned anyway.
func (r *Reconciler) Apply(ctx context.Context, ev *webhook.CallEndEvent) (*CallRecord, error) {
	assistant, err := r.assistants.GetByExternalID(ctx, ev.ExternalAssistantID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assistant %q: %w", ev.ExternalAssistantID, err)
	}

	rec := &CallRecord{
		ExternalCallID:  ev.ExternalCallID,
		AssistantID:     assistant.ID,
		UserID:          assistant.UserID,
		Status:          CallStatusEnded,
		StartedAt:       ev.StartedAt,
		EndedAt:         ev.EndedAt,
		DurationSeconds: ev.DurationSeconds(),
		CostCents:       ev.CostCents,
		CostUSD:         ev.CostUSD,
	}
	if ev.Transcript != "" {
		t := ev.Transcript
		rec.Transcript = &t
	}
	if ev.EndedReason != "" {
		reason := ev.EndedReason
		rec.EndedReason = &reason
	}

	created, err := r.store.UpsertCallRecord(ctx, rec)
	if err != nil {
		monitoring.RecordCallRecordUpsert("error")
		return nil, fmt.Errorf("failed to persist call record %q: %w", ev.ExternalCallID, err)
	}
	if created {
		monitoring.RecordCallRecordUpsert("created")
	} else {
		monitoring.RecordCallRecordUpsert("updated")
	}

	r.extractLead(ctx, rec, ev)

	return rec, nil
}

// extractLead is the best-effort enrichment branch: its failure never rolls
// back the call record write and never reaches the webhook sender.
func (r *Reconciler) extractLead(ctx context.Context, rec *CallRecord, ev *webhook.CallEndEvent) {
	lead := ExtractLead(ev.StructuredData)
	if lead == nil {
		return
	}
	lead.CallRecordID = rec.ID
	lead.UserID = rec.UserID

	if err := r.store.InsertLead(ctx, lead); err != nil {
		logger := logging.NewLogger("calls")
		logger.Error().Err(err).
			Str("external_call_id", ev.ExternalCallID).
			Msg("Failed to store extracted lead")
		return
	}
	monitoring.Get().LeadsExtracted.Inc()
}
