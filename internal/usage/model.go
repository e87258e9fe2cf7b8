package usage

import (
	"time"

	"coach-backend/internal/contract"
	"coach-backend/internal/tier"
)

// Period is the length of a usage window.
const Period = 30 * 24 * time.Hour

// Counter is the stored consumption for one user and analysis kind.
type Counter struct {
	Used        int
	PeriodStart time.Time
}

// ResetsAt is when the counter returns to zero.
func (c Counter) ResetsAt() time.Time {
	return c.PeriodStart.Add(Period)
}

func (c Counter) expired(now time.Time) bool {
	return c.PeriodStart.IsZero() || !now.Before(c.ResetsAt())
}

// Usage is one row of a user's usage summary.
type Usage struct {
	Kind     contract.Kind `json:"request_type"`
	Used     int           `json:"used"`
	Limit    int           `json:"limit"`
	Allowed  bool          `json:"allowed"`
	ResetsAt time.Time     `json:"resetsAt"`
}

// Summary is the usage snapshot returned by GET /usage.
type Summary struct {
	Tier  tier.Tier `json:"tier"`
	Kinds []Usage   `json:"usage"`
}
