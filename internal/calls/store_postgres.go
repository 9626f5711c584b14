package calls

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the pgx-backed call record store
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Postgres call record store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertCallRecord implements Store. The unique constraint on
// external_call_id makes redelivery safe: the same event applied N times
// converges on one row with the fields of the last delivery.
func (s *PostgresStore) UpsertCallRecord(ctx context.Context, rec *CallRecord) (bool, error) {
	var created bool
	err := s.db.QueryRow(ctx, `
		INSERT INTO call_records (
			external_call_id, assistant_id, user_id, status,
			started_at, ended_at, duration_seconds, cost_cents, cost_usd,
			transcript, ended_reason
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (external_call_id) DO UPDATE SET
			status = EXCLUDED.status,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at,
			duration_seconds = EXCLUDED.duration_seconds,
			cost_cents = EXCLUDED.cost_cents,
			cost_usd = EXCLUDED.cost_usd,
			transcript = EXCLUDED.transcript,
			ended_reason = EXCLUDED.ended_reason,
			updated_at = NOW()
		RETURNING id, created_at, updated_at, (xmax = 0)
	`,
		rec.ExternalCallID, rec.AssistantID, rec.UserID, rec.Status,
		rec.StartedAt, rec.EndedAt, rec.DurationSeconds, rec.CostCents, rec.CostUSD,
		rec.Transcript, rec.EndedReason,
	).Scan(&rec.ID, &rec.CreatedAt, &rec.UpdatedAt, &created)
	if err != nil {
		return false, fmt.Errorf("failed to upsert call record: %w", err)
	}
	return created, nil
}

const callRecordColumns = `id, external_call_id, assistant_id, user_id, status,
	started_at, ended_at, duration_seconds, cost_cents, cost_usd,
	transcript, ended_reason, created_at, updated_at`

func scanCallRecord(row pgx.Row) (*CallRecord, error) {
	var rec CallRecord
	err := row.Scan(
		&rec.ID, &rec.ExternalCallID, &rec.AssistantID, &rec.UserID, &rec.Status,
		&rec.StartedAt, &rec.EndedAt, &rec.DurationSeconds, &rec.CostCents, &rec.CostUSD,
		&rec.Transcript, &rec.EndedReason, &rec.CreatedAt, &rec.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// GetByExternalID implements Store
func (s *PostgresStore) GetByExternalID(ctx context.Context, externalCallID string) (*CallRecord, error) {
	rec, err := scanCallRecord(s.db.QueryRow(ctx, `
		SELECT `+callRecordColumns+`
		FROM call_records WHERE external_call_id = $1
	`, externalCallID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get call record: %w", err)
	}
	return rec, nil
}

// ListByUser implements Store
func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID, limit int) ([]CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+callRecordColumns+`
		FROM call_records
		WHERE user_id = $1
		ORDER BY started_at DESC NULLS LAST
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list call records: %w", err)
	}
	defer rows.Close()

	var out []CallRecord
	for rows.Next() {
		rec, err := scanCallRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate call records: %w", err)
	}
	return out, nil
}

// SumDurationSince implements Store
func (s *PostgresStore) SumDurationSince(ctx context.Context, userID uuid.UUID, since time.Time) (int64, int, error) {
	var total int64
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(duration_seconds), 0), COUNT(*)
		FROM call_records
		WHERE user_id = $1 AND started_at >= $2
	`, userID, since).Scan(&total, &count)
	if err != nil {
		return 0, 0, fmt.Errorf("failed to sum call durations: %w", err)
	}
	return total, count, nil
}

// InsertLead implements Store. One lead per call record; a redelivered event
// that re-extracts the lead overwrites the previous row.
func (s *PostgresStore) InsertLead(ctx context.Context, lead *Lead) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO leads (call_record_id, user_id, name, email, phone, lead_type, budget_range, timeline, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (call_record_id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			lead_type = EXCLUDED.lead_type,
			budget_range = EXCLUDED.budget_range,
			timeline = EXCLUDED.timeline,
			notes = EXCLUDED.notes
		RETURNING id, created_at
	`,
		lead.CallRecordID, lead.UserID, lead.Name, lead.Email, lead.Phone,
		lead.LeadType, lead.BudgetRange, lead.Timeline, lead.Notes,
	).Scan(&lead.ID, &lead.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert lead: %w", err)
	}
	return nil
}
