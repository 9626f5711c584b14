package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresUserStore is the pgx-backed user usage-state store
type PostgresUserStore struct {
	db *pgxpool.Pool
}

// NewPostgresUserStore creates a Postgres user store
func NewPostgresUserStore(db *pgxpool.Pool) *PostgresUserStore {
	return &PostgresUserStore{db: db}
}

// GetUsageState implements UserStore
func (s *PostgresUserStore) GetUsageState(ctx context.Context, userID uuid.UUID) (*UserUsageState, error) {
	var st UserUsageState
	err := s.db.QueryRow(ctx, `
		SELECT id, signup_at, limit_enforced_at FROM users WHERE id = $1
	`, userID).Scan(&st.UserID, &st.SignupAt, &st.LimitEnforcedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get usage state: %w", err)
	}
	return &st, nil
}

// MarkLimitEnforced implements UserStore. The guarded UPDATE is the
// enforce-once-per-cycle gate: concurrent evaluations race on this statement
// and exactly one sees RowsAffected == 1.
func (s *PostgresUserStore) MarkLimitEnforced(ctx context.Context, userID uuid.UUID, at, cycleStart time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `
		UPDATE users
		SET limit_enforced_at = $1, updated_at = NOW()
		WHERE id = $2 AND (limit_enforced_at IS NULL OR limit_enforced_at < $3)
	`, at, userID, cycleStart)
	if err != nil {
		return false, fmt.Errorf("failed to mark limit enforced: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// ClearLimitEnforced implements UserStore
func (s *PostgresUserStore) ClearLimitEnforced(ctx context.Context, userID uuid.UUID) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET limit_enforced_at = NULL, updated_at = NOW() WHERE id = $1
	`, userID)
	if err != nil {
		return fmt.Errorf("failed to clear limit enforced: %w", err)
	}
	return nil
}

// ListLimitEnforced implements UserStore
func (s *PostgresUserStore) ListLimitEnforced(ctx context.Context) ([]UserUsageState, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, signup_at, limit_enforced_at
		FROM users
		WHERE limit_enforced_at IS NOT NULL
		ORDER BY limit_enforced_at
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list enforced users: %w", err)
	}
	defer rows.Close()

	var out []UserUsageState
	for rows.Next() {
		var st UserUsageState
		if err := rows.Scan(&st.UserID, &st.SignupAt, &st.LimitEnforcedAt); err != nil {
			return nil, fmt.Errorf("failed to scan usage state: %w", err)
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage states: %w", err)
	}
	return out, nil
}
