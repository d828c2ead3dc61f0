package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/frahmantamala/identity-service/internal/session"
)

const expireStaleQuery = `
UPDATE sessions
SET active = ?, is_expired = ?, is_current = ?, updated_at = ?
WHERE active = ? AND refresh_token_expires_at <= ?`

// Sweeper runs the bulk expiry with plain SQL. Repeated or concurrent runs
// are harmless since already expired rows no longer match.
type Sweeper struct {
	db *sqlx.DB
}

func NewSweeper(db *sqlx.DB) session.Sweeper {
	return &Sweeper{db: db}
}

func (s *Sweeper) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	now = now.UTC()
	res, err := s.db.ExecContext(ctx, s.db.Rebind(expireStaleQuery), false, true, false, now, true, now)
	if err != nil {
		return 0, fmt.Errorf("expire stale sessions: %w", err)
	}
	return res.RowsAffected()
}
