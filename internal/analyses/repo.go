package analyses

import "context"

// Repo defines persistence operations for analyses.
type Repo interface {
	Create(ctx context.Context, analysis Analysis) error
	Complete(ctx context.Context, analysisID string, c Completion) error
	Fail(ctx context.Context, analysisID, code, message string) error
	GetByID(ctx context.Context, analysisID string) (Analysis, error)
	ListByUser(ctx context.Context, userID string, filter ListFilter) ([]Analysis, error)
}
