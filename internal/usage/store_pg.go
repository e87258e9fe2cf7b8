package usage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"coach-backend/internal/contract"
	"coach-backend/internal/tier"
)

type pgStore struct {
	DB *sql.DB
}

// NewPGStore constructs a Postgres-backed usage store.
func NewPGStore(db *sql.DB) *pgStore {
	return &pgStore{DB: db}
}

func (s *pgStore) Get(ctx context.Context, userID string, kind contract.Kind, now time.Time) (Counter, error) {
	var c Counter
	err := s.DB.QueryRowContext(ctx, `
SELECT used, period_start FROM usage_counters WHERE user_id = $1 AND analysis_type = $2`,
		userID, string(kind)).Scan(&c.Used, &c.PeriodStart)
	if errors.Is(err, sql.ErrNoRows) {
		return Counter{PeriodStart: now}, nil
	}
	if err != nil {
		return Counter{}, err
	}
	if c.expired(now) {
		return Counter{PeriodStart: now}, nil
	}
	return c, nil
}

func (s *pgStore) All(ctx context.Context, userID string, now time.Time) (map[contract.Kind]Counter, error) {
	rows, err := s.DB.QueryContext(ctx, `
SELECT analysis_type, used, period_start FROM usage_counters WHERE user_id = $1`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[contract.Kind]Counter)
	for rows.Next() {
		var (
			kind string
			c    Counter
		)
		if err := rows.Scan(&kind, &c.Used, &c.PeriodStart); err != nil {
			return nil, err
		}
		out[contract.Kind(kind)] = c
	}
	return out, rows.Err()
}

func (s *pgStore) Consume(ctx context.Context, userID string, kind contract.Kind, limit int, now time.Time) (c Counter, err error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return Counter{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	c, err = s.lockAndEnsure(ctx, tx, userID, kind, now)
	if err != nil {
		return Counter{}, err
	}
	if limit != tier.Unlimited && c.Used >= limit {
		return c, ErrLimitReached
	}
	c.Used++
	if _, err = tx.ExecContext(ctx, `
UPDATE usage_counters SET used = $1, updated_at = $2 WHERE user_id = $3 AND analysis_type = $4`,
		c.Used, now, userID, string(kind)); err != nil {
		return Counter{}, err
	}
	if err = tx.Commit(); err != nil {
		return Counter{}, err
	}
	return c, nil
}

func (s *pgStore) Reset(ctx context.Context, userID string, now time.Time) error {
	_, err := s.DB.ExecContext(ctx, `
UPDATE usage_counters SET used = 0, period_start = $1, updated_at = $1 WHERE user_id = $2`, now, userID)
	return err
}

func (s *pgStore) lockAndEnsure(ctx context.Context, tx *sql.Tx, userID string, kind contract.Kind, now time.Time) (Counter, error) {
	var c Counter
	err := tx.QueryRowContext(ctx, `
SELECT used, period_start FROM usage_counters WHERE user_id = $1 AND analysis_type = $2 FOR UPDATE`,
		userID, string(kind)).Scan(&c.Used, &c.PeriodStart)
	if errors.Is(err, sql.ErrNoRows) {
		c = Counter{PeriodStart: now}
		if _, err = tx.ExecContext(ctx, `
INSERT INTO usage_counters (user_id, analysis_type, used, period_start, updated_at) VALUES ($1, $2, 0, $3, $3)
ON CONFLICT (user_id, analysis_type) DO NOTHING`, userID, string(kind), now); err != nil {
			return Counter{}, err
		}
		return c, nil
	}
	if err != nil {
		return Counter{}, err
	}

	if c.expired(now) {
		c = Counter{PeriodStart: now}
		if _, err = tx.ExecContext(ctx, `
UPDATE usage_counters SET used = 0, period_start = $1, updated_at = $1 WHERE user_id = $2 AND analysis_type = $3`,
			now, userID, string(kind)); err != nil {
			return Counter{}, err
		}
	}
	return c, nil
}
