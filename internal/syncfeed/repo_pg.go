package syncfeed

import (
	"context"
	"database/sql"
	"encoding/json"

	sq "github.com/Masterminds/squirrel"

	"coach-backend/internal/contract"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB *sql.DB
}

// NewPGRepo constructs a Postgres-backed feed.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db}
}

func (r *PGRepo) Append(ctx context.Context, e Event) error {
	payload := e.Result
	if len(payload) == 0 {
		payload = json.RawMessage(`{}`)
	}
	query, args, err := psql.Insert("sync_events").
		Columns("id", "user_id", "analysis_id", "analysis_type", "platform", "payload", "created_at").
		Values(e.ID, e.UserID, e.AnalysisID, string(e.Kind), e.Platform, string(payload), e.Timestamp).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, args...)
	return err
}

func (r *PGRepo) ListSince(ctx context.Context, userID, sinceID string, limit int) ([]Event, error) {
	b := psql.Select("id", "user_id", "analysis_id", "analysis_type", "platform", "payload", "created_at").
		From("sync_events").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("id ASC")
	if sinceID != "" {
		b = b.Where(sq.Gt{"id": sinceID})
	}
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]Event, 0)
	for rows.Next() {
		var (
			e        Event
			kind     string
			platform sql.NullString
			payload  []byte
		)
		if err := rows.Scan(&e.ID, &e.UserID, &e.AnalysisID, &kind, &platform, &payload, &e.Timestamp); err != nil {
			return nil, err
		}
		e.Kind = contract.Kind(kind)
		e.Platform = platform.String
		if len(payload) > 0 && string(payload) != "{}" {
			e.Result = json.RawMessage(payload)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

var _ Repo = (*PGRepo)(nil)
