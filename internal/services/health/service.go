package health

import (
	"context"
	"time"
)

const pingTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Report is the body of GET /api/health. The broker reads the same shape.
type Report struct {
	Status   string            `json:"status"`
	Services map[string]string `json:"services"`
}

// Service encapsulates health-related checks.
type Service struct {
	db        Pinger
	providers []string
}

// NewService constructs a health service. db may be nil when the API runs on
// in-memory repositories.
func NewService(db Pinger, providers []string) *Service {
	return &Service{db: db, providers: providers}
}

// Status reports the API, the provider set and the database.
func (s *Service) Status(ctx context.Context) Report {
	r := Report{
		Status: "healthy",
		Services: map[string]string{
			"api":             "up",
			"analysis_engine": "up",
			"database":        "memory",
		},
	}
	if len(s.providers) == 0 {
		// Canned defaults still answer, so this degrades rather than fails.
		r.Services["analysis_engine"] = "unconfigured"
		r.Status = "degraded"
	}
	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := s.db.PingContext(pingCtx); err != nil {
			r.Services["database"] = "down"
			r.Status = "unhealthy"
		} else {
			r.Services["database"] = "up"
		}
	}
	return r
}
