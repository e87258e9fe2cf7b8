package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"coach-backend/internal/contract"
	"coach-backend/internal/tier"
)

func newTestService(now *time.Time) *Service {
	svc := NewService()
	svc.now = func() time.Time { return *now }
	return svc
}

func TestConsumeStopsAtTierLimit(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(&now)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if _, err := svc.Consume(ctx, "u1", tier.Free, contract.KindCompatibility); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}
	got, err := svc.Consume(ctx, "u1", tier.Free, contract.KindCompatibility)
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached, got %v", err)
	}
	if got.Allowed || got.Used != 2 || got.Limit != 2 || got.CurrentTier != "free" {
		t.Fatalf("unexpected usage report: %+v", got)
	}

	// Other kinds keep their own counters.
	if _, err := svc.Consume(ctx, "u1", tier.Free, contract.KindProfile); err != nil {
		t.Fatalf("profile consume: %v", err)
	}
}

func TestConsumeUnlimitedForElite(t *testing.T) {
	now := time.Now()
	svc := newTestService(&now)
	for i := 0; i < 20; i++ {
		if _, err := svc.Consume(context.Background(), "u1", tier.Elite, contract.KindPhoto); err != nil {
			t.Fatalf("consume %d: %v", i, err)
		}
	}
	got, _ := svc.Check(context.Background(), "u1", tier.Elite, contract.KindPhoto)
	if !got.Allowed || got.Limit != tier.Unlimited || got.Used != 20 {
		t.Fatalf("unexpected usage report: %+v", got)
	}
}

func TestUnknownTierHasNoQuota(t *testing.T) {
	now := time.Now()
	svc := newTestService(&now)
	_, err := svc.Consume(context.Background(), "u1", tier.Tier("bronze"), contract.KindProfile)
	if !errors.Is(err, ErrLimitReached) {
		t.Fatalf("expected ErrLimitReached for unknown tier, got %v", err)
	}
}

func TestPeriodRollsOver(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(&now)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		svc.Consume(ctx, "u1", tier.Free, contract.KindPhoto)
	}
	if got, _ := svc.Check(ctx, "u1", tier.Free, contract.KindPhoto); got.Allowed {
		t.Fatalf("expected photo quota exhausted")
	}

	now = now.Add(Period)
	got, err := svc.Check(ctx, "u1", tier.Free, contract.KindPhoto)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !got.Allowed || got.Used != 0 {
		t.Fatalf("expected fresh period, got %+v", got)
	}
}

func TestSummaryListsEveryKind(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := newTestService(&now)
	ctx := context.Background()
	svc.Consume(ctx, "u1", tier.Premium, contract.KindConversation)

	summary, err := svc.Summary(ctx, "u1", tier.Premium)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.Tier != tier.Premium || len(summary.Kinds) != len(contract.Kinds()) {
		t.Fatalf("unexpected summary: %+v", summary)
	}
	for _, u := range summary.Kinds {
		if u.Kind == contract.KindConversation {
			if u.Used != 1 || u.Limit != 200 || !u.ResetsAt.Equal(now.Add(Period)) {
				t.Fatalf("unexpected conversation usage: %+v", u)
			}
		} else if u.Used != 0 {
			t.Fatalf("unexpected usage for %s: %+v", u.Kind, u)
		}
	}

	if err := svc.Reset(ctx, "u1"); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	got, _ := svc.Check(ctx, "u1", tier.Premium, contract.KindConversation)
	if got.Used != 0 {
		t.Fatalf("expected reset usage, got %+v", got)
	}
}

func TestCanceledContext(t *testing.T) {
	now := time.Now()
	svc := newTestService(&now)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := svc.Consume(ctx, "u1", tier.Free, contract.KindProfile); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
