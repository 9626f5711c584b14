package enforcement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresQueueStore is the pgx-backed queue store
type PostgresQueueStore struct {
	db *pgxpool.Pool
}

// NewPostgresQueueStore creates a Postgres queue store
func NewPostgresQueueStore(db *pgxpool.Pool) *PostgresQueueStore {
	return &PostgresQueueStore{db: db}
}

const queueColumns = `id, user_id, action, processed, processed_at, error_message, created_at`

func scanQueueItem(row pgx.Row) (*QueueItem, error) {
	var item QueueItem
	err := row.Scan(
		&item.ID, &item.UserID, &item.Action, &item.Processed,
		&item.ProcessedAt, &item.ErrorMessage, &item.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// Enqueue implements QueueStore
func (s *PostgresQueueStore) Enqueue(ctx context.Context, userID uuid.UUID, action Action) (*QueueItem, error) {
	item, err := scanQueueItem(s.db.QueryRow(ctx, `
		INSERT INTO enforcement_queue (user_id, action)
		VALUES ($1, $2)
		RETURNING `+queueColumns+`
	`, userID, action))
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s for user %s: %w", action, userID, err)
	}
	return item, nil
}

// FetchPending implements QueueStore
func (s *PostgresQueueStore) FetchPending(ctx context.Context, limit int) ([]QueueItem, error) {
	rows, err := s.db.Query(ctx, `
		SELECT `+queueColumns+`
		FROM enforcement_queue
		WHERE NOT processed
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch pending queue items: %w", err)
	}
	defer rows.Close()
	return collectQueueItems(rows)
}

// MarkProcessed implements QueueStore
func (s *PostgresQueueStore) MarkProcessed(ctx context.Context, id uuid.UUID, errorMessage *string) error {
	_, err := s.db.Exec(ctx, `
		UPDATE enforcement_queue
		SET processed = TRUE, processed_at = NOW(), error_message = $1
		WHERE id = $2
	`, errorMessage, id)
	if err != nil {
		return fmt.Errorf("failed to mark queue item processed: %w", err)
	}
	return nil
}

// CountPending implements QueueStore
func (s *PostgresQueueStore) CountPending(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRow(ctx, `
		SELECT COUNT(*) FROM enforcement_queue WHERE NOT processed
	`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending queue items: %w", err)
	}
	return count, nil
}

// ListRecent implements QueueStore
func (s *PostgresQueueStore) ListRecent(ctx context.Context, limit int) ([]QueueItem, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `
		SELECT `+queueColumns+`
		FROM enforcement_queue
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue items: %w", err)
	}
	defer rows.Close()
	return collectQueueItems(rows)
}

func collectQueueItems(rows pgx.Rows) ([]QueueItem, error) {
	var out []QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan queue item: %w", err)
		}
		out = append(out, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate queue items: %w", err)
	}
	return out, nil
}
