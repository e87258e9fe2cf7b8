package broker

import (
	"context"
	"errors"

	"coach-backend/internal/contract"
	"coach-backend/internal/tier"
)

var (
	// ErrNotFound is returned by stores when a key has never been written.
	ErrNotFound = errors.New("credential not found")
	// ErrUnauthenticated means there is no user or session to send with a request.
	ErrUnauthenticated = errors.New("not authenticated")
)

// CredentialProvider supplies the caller's identity.
type CredentialProvider interface {
	UserID(ctx context.Context) (string, error)
	SessionToken(ctx context.Context) (string, error)
	CulturalContext(ctx context.Context) (string, error)
}

// UsageStore holds the local copy of the caller's tier and per-kind usage.
type UsageStore interface {
	Quota(ctx context.Context) (tier.Quota, error)
	IncrementUsage(ctx context.Context, kind contract.Kind) error
}
