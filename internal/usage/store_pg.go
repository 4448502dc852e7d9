package usage

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed usage store over usage_events.
func NewPGStore(db *sql.DB) Store {
	return &pgStore{DB: db}
}

func (s *pgStore) Count(ctx context.Context, userID string, kind Kind, since time.Time) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx, `
SELECT COUNT(*) FROM usage_events WHERE user_id = $1 AND kind = $2 AND created_at >= $3`,
		userID, string(kind), since).Scan(&n)
	return n, err
}

func (s *pgStore) Reserve(ctx context.Context, userID string, kind Kind, n, limit int, tag string, since, at time.Time) (count int, reserved bool, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, false, err
	}
	defer func() {
		if err != nil || !reserved {
			tx.Rollback()
		}
	}()

	// Serializes reservations per (user, kind) until the transaction ends.
	if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID+"|"+string(kind)); err != nil {
		return 0, false, err
	}
	if err = tx.QueryRowContext(ctx, `
SELECT COUNT(*) FROM usage_events WHERE user_id = $1 AND kind = $2 AND created_at >= $3`,
		userID, string(kind), since).Scan(&count); err != nil {
		return 0, false, err
	}
	if count+n > limit {
		return count, false, nil
	}
	for i := 0; i < n; i++ {
		if _, err = tx.ExecContext(ctx, `
INSERT INTO usage_events (id, user_id, kind, type, created_at) VALUES ($1, $2, $3, $4, $5)`,
			uuid.NewString(), userID, string(kind), tag, at); err != nil {
			return 0, false, err
		}
	}
	if err = tx.Commit(); err != nil {
		return 0, false, err
	}
	return count, true, nil
}
