package analyses

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"

	"coach-backend/internal/contract"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var analysisColumns = []string{
	"id", "user_id", "analysis_type", "status", "input_data", "results", "confidence_score",
	"ai_provider", "preferred_provider", "image_url", "error_code", "error_message",
	"processing_time_ms", "created_at", "updated_at",
}

// PGRepo implements Repo using Postgres.
type PGRepo struct {
	DB  *sql.DB
	now func() time.Time
}

// NewPGRepo constructs a Postgres-backed repo.
func NewPGRepo(db *sql.DB) *PGRepo {
	return &PGRepo{DB: db, now: time.Now}
}

// Create inserts a new analysis.
func (r *PGRepo) Create(ctx context.Context, a Analysis) error {
	input := a.Input
	if len(input) == 0 {
		input = json.RawMessage(`{}`)
	}
	query, args, err := psql.Insert("analyses").
		Columns("id", "user_id", "analysis_type", "status", "input_data", "preferred_provider", "image_url", "created_at", "updated_at").
		Values(a.ID, a.UserID, string(a.Kind), a.Status, string(input), nullString(a.PreferredProvider), nullString(a.ImageURL), a.CreatedAt, a.CreatedAt).
		ToSql()
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx, query, args...)
	return err
}

// Complete patches the record with its result.
func (r *PGRepo) Complete(ctx context.Context, analysisID string, c Completion) error {
	result, err := json.Marshal(c.Result)
	if err != nil {
		return err
	}
	fields := map[string]any{
		"status":             StatusCompleted,
		"results":            string(result),
		"confidence_score":   c.Confidence,
		"ai_provider":        c.Provider,
		"processing_time_ms": c.ProcessingTimeMs,
	}
	if len(c.Raw) > 0 && json.Valid(c.Raw) {
		fields["raw_analysis"] = string(c.Raw)
	}
	return r.patch(ctx, analysisID, fields)
}

// Fail marks the record failed.
func (r *PGRepo) Fail(ctx context.Context, analysisID, code, message string) error {
	return r.patch(ctx, analysisID, map[string]any{
		"status":        StatusFailed,
		"error_code":    code,
		"error_message": message,
	})
}

func (r *PGRepo) patch(ctx context.Context, analysisID string, fields map[string]any) error {
	fields["updated_at"] = r.now().UTC()
	query, args, err := psql.Update("analyses").
		SetMap(fields).
		Where(sq.Eq{"id": analysisID}).
		ToSql()
	if err != nil {
		return err
	}
	res, err := r.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// GetByID returns an analysis by ID.
func (r *PGRepo) GetByID(ctx context.Context, analysisID string) (Analysis, error) {
	query, args, err := psql.Select(analysisColumns...).
		From("analyses").
		Where(sq.Eq{"id": analysisID}).
		Limit(1).
		ToSql()
	if err != nil {
		return Analysis{}, err
	}
	a, err := scanAnalysis(r.DB.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return Analysis{}, ErrNotFound
	}
	return a, err
}

// ListByUser returns analyses for a user, newest first.
func (r *PGRepo) ListByUser(ctx context.Context, userID string, filter ListFilter) ([]Analysis, error) {
	b := psql.Select(analysisColumns...).
		From("analyses").
		Where(sq.Eq{"user_id": userID}).
		OrderBy("created_at DESC")
	if filter.Kind != "" {
		b = b.Where(sq.Eq{"analysis_type": string(filter.Kind)})
	}
	if filter.Limit > 0 {
		b = b.Limit(uint64(filter.Limit))
	}
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
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

	out := make([]Analysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAnalysis(row rowScanner) (Analysis, error) {
	var (
		a                 Analysis
		kind              string
		input             sql.NullString
		results           sql.NullString
		confidence        sql.NullFloat64
		provider          sql.NullString
		preferredProvider sql.NullString
		imageURL          sql.NullString
		errorCode         sql.NullString
		errorMessage      sql.NullString
		processingTime    sql.NullInt64
	)
	if err := row.Scan(
		&a.ID,
		&a.UserID,
		&kind,
		&a.Status,
		&input,
		&results,
		&confidence,
		&provider,
		&preferredProvider,
		&imageURL,
		&errorCode,
		&errorMessage,
		&processingTime,
		&a.CreatedAt,
		&a.UpdatedAt,
	); err != nil {
		return Analysis{}, err
	}
	a.Kind = contract.Kind(kind)
	if input.Valid && input.String != "" {
		a.Input = json.RawMessage(input.String)
	}
	if results.Valid && results.String != "" {
		if err := json.Unmarshal([]byte(results.String), &a.Result); err != nil {
			return Analysis{}, err
		}
	}
	a.Confidence = confidence.Float64
	a.Provider = provider.String
	a.PreferredProvider = preferredProvider.String
	a.ImageURL = imageURL.String
	a.ErrorCode = errorCode.String
	a.ErrorMessage = errorMessage.String
	a.ProcessingTimeMs = processingTime.Int64
	return a, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

var _ Repo = (*PGRepo)(nil)
