package usage

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"coach-backend/internal/contract"
)

func TestPGConsumeInsertsFirstCounter(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT used, period_start FROM usage_counters WHERE user_id = $1 AND analysis_type = $2 FOR UPDATE")).
		WithArgs("u1", "photo_analysis").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO usage_counters")).
		WithArgs("u1", "photo_analysis", now).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE usage_counters SET used = $1")).
		WithArgs(1, now, "u1", "photo_analysis").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	c, err := NewPGStore(db).Consume(context.Background(), "u1", contract.KindPhoto, 3, now)
	if err != nil {
		t.Fatalf("Consume: %v", err)
	}
	if c.Used != 1 || !c.PeriodStart.Equal(now) {
		t.Fatalf("unexpected counter: %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGConsumeRollsBackAtLimit(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	now := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	start := now.Add(-24 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("u1", "compatibility_check").
		WillReturnRows(sqlmock.NewRows([]string{"used", "period_start"}).AddRow(2, start))
	mock.ExpectRollback()

	c, err := NewPGStore(db).Consume(context.Background(), "u1", contract.KindCompatibility, 2, now)
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if c.Used != 2 {
		t.Fatalf("expected current usage with limit error, got %+v", c)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPGGetResetsExpiredPeriod(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT used, period_start FROM usage_counters")).
		WithArgs("u1", "profile_analysis").
		WillReturnRows(sqlmock.NewRows([]string{"used", "period_start"}).AddRow(5, now.Add(-Period)))

	c, err := NewPGStore(db).Get(context.Background(), "u1", contract.KindProfile, now)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if c.Used != 0 {
		t.Fatalf("expected expired counter to read as zero, got %+v", c)
	}
}
