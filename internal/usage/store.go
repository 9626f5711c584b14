package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrUserNotFound is returned when a usage-state lookup misses
var ErrUserNotFound = errors.New("user not found")

// UserUsageState is the per-user state the enforcement pipeline needs: the
// signup instant anchors the billing cycle, and LimitEnforcedAt guarantees
// at most one enforcement per cycle.
type UserUsageState struct {
	UserID          uuid.UUID  `json:"user_id" db:"id"`
	SignupAt        time.Time  `json:"signup_at" db:"signup_at"`
	LimitEnforcedAt *time.Time `json:"limit_enforced_at,omitempty" db:"limit_enforced_at"`
}

// UserStore persists per-user usage-enforcement state
type UserStore interface {
	GetUsageState(ctx context.Context, userID uuid.UUID) (*UserUsageState, error)
	// MarkLimitEnforced stamps limit_enforced_at = at, but only when the
	// current value is null or predates cycleStart. Returns true when this
	// call won the stamp; concurrent callers for the same cycle see false.
	MarkLimitEnforced(ctx context.Context, userID uuid.UUID, at, cycleStart time.Time) (bool, error)
	ClearLimitEnforced(ctx context.Context, userID uuid.UUID) error
	// ListLimitEnforced returns every user with a non-null limit_enforced_at
	ListLimitEnforced(ctx context.Context) ([]UserUsageState, error)
}
