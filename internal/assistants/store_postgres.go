package assistants

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore is the pgx-backed assistant store
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore creates a Postgres assistant store
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

const assistantColumns = `id, user_id, external_assistant_id, name, max_duration_seconds,
	original_max_duration_seconds, is_usage_limited, usage_limited_at, created_at, updated_at`

func scanAssistant(row pgx.Row) (*Assistant, error) {
	var a Assistant
	err := row.Scan(
		&a.ID, &a.UserID, &a.ExternalAssistantID, &a.Name, &a.MaxDurationSeconds,
		&a.OriginalMaxDurationSeconds, &a.IsUsageLimited, &a.UsageLimitedAt,
		&a.CreatedAt, &a.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetByExternalID implements Store
func (s *PostgresStore) GetByExternalID(ctx context.Context, externalID string) (*Assistant, error) {
	a, err := scanAssistant(s.db.QueryRow(ctx, `
		SELECT `+assistantColumns+`
		FROM assistants WHERE external_assistant_id = $1
	`, externalID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get assistant: %w", err)
	}
	return a, nil
}

// ListByUser implements Store
func (s *PostgresStore) ListByUser(ctx context.Context, userID uuid.UUID) ([]Assistant, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+assistantColumns+`
		FROM assistants WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assistants: %w", err)
	}
	defer rows.Close()

	var out []Assistant
	for rows.Next() {
		a, err := scanAssistant(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assistant: %w", err)
		}
		out = append(out, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate assistants: %w", err)
	}
	return out, nil
}

// MarkLimited implements Store. The WHERE clause keeps the captured original
// intact when a redundant enforce races in.
func (s *PostgresStore) MarkLimited(ctx context.Context, id uuid.UUID, originalDuration, graceDuration int, at time.Time) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE assistants
		SET original_max_duration_seconds = $1,
		    max_duration_seconds = $2,
		    is_usage_limited = TRUE,
		    usage_limited_at = $3,
		    updated_at = NOW()
		WHERE id = $4 AND NOT is_usage_limited
	`, originalDuration, graceDuration, at, id)
	if err != nil {
		return fmt.Errorf("failed to mark assistant limited: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// MarkRestored implements Store
func (s *PostgresStore) MarkRestored(ctx context.Context, id uuid.UUID, restoredDuration int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE assistants
		SET max_duration_seconds = $1,
		    original_max_duration_seconds = NULL,
		    is_usage_limited = FALSE,
		    usage_limited_at = NULL,
		    updated_at = NOW()
		WHERE id = $2 AND is_usage_limited
	`, restoredDuration, id)
	if err != nil {
		return fmt.Errorf("failed to mark assistant restored: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
