// Package credstore keeps the caller's session, preferences and tier usage on the
// client side. It satisfies broker.CredentialProvider and broker.UsageStore.
package credstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"coach-backend/internal/broker"
	"coach-backend/internal/contract"
	"coach-backend/internal/tier"
)

const (
	KeyUserID          = "user_id"
	KeySessionToken    = "session_token"
	KeyCulturalContext = "cultural_context"
	KeyTierData        = "tier_data"
)

// Backend is a string key-value store. Get returns broker.ErrNotFound for missing keys.
type Backend interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}

// Store layers typed credential access over a Backend.
type Store struct {
	backend Backend
	// serializes tier_data read-modify-write within this process
	mu sync.Mutex
}

func New(backend Backend) *Store {
	return &Store{backend: backend}
}

// Session is what a login writes.
type Session struct {
	UserID          string
	SessionToken    string
	CulturalContext string
	Tier            tier.Tier
}

func (s *Store) UserID(ctx context.Context) (string, error) {
	return s.get(ctx, KeyUserID)
}

func (s *Store) SessionToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeySessionToken)
}

func (s *Store) CulturalContext(ctx context.Context) (string, error) {
	return s.get(ctx, KeyCulturalContext)
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	v, err := s.backend.Get(ctx, key)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(v) == "" {
		return "", broker.ErrNotFound
	}
	return v, nil
}

// Quota returns the stored tier data. Missing data yields broker.ErrNotFound.
func (s *Store) Quota(ctx context.Context) (tier.Quota, error) {
	raw, err := s.backend.Get(ctx, KeyTierData)
	if err != nil {
		return tier.Quota{}, err
	}
	var q tier.Quota
	if err := json.Unmarshal([]byte(raw), &q); err != nil {
		return tier.Quota{}, fmt.Errorf("decode tier data: %w", err)
	}
	if q.Used == nil {
		q.Used = map[contract.Kind]int{}
	}
	return q, nil
}

func (s *Store) SetQuota(ctx context.Context, q tier.Quota) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setQuota(ctx, q)
}

func (s *Store) setQuota(ctx context.Context, q tier.Quota) error {
	raw, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, KeyTierData, string(raw))
}

// IncrementUsage counts one more use of kind, starting from the free tier if nothing
// is stored.
func (s *Store) IncrementUsage(ctx context.Context, kind contract.Kind) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.Quota(ctx)
	if errors.Is(err, broker.ErrNotFound) {
		q, err = tier.DefaultQuota(), nil
	}
	if err != nil {
		return err
	}
	return s.setQuota(ctx, q.Increment(kind))
}

// SaveSession stores a login. The tier resets usage only when it changes.
func (s *Store) SaveSession(ctx context.Context, sess Session) error {
	if strings.TrimSpace(sess.UserID) == "" || strings.TrimSpace(sess.SessionToken) == "" {
		return broker.ErrUnauthenticated
	}
	if err := s.backend.Set(ctx, KeyUserID, sess.UserID); err != nil {
		return err
	}
	if err := s.backend.Set(ctx, KeySessionToken, sess.SessionToken); err != nil {
		return err
	}
	if sess.CulturalContext != "" {
		if err := s.backend.Set(ctx, KeyCulturalContext, sess.CulturalContext); err != nil {
			return err
		}
	}
	if sess.Tier == "" {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	q, err := s.Quota(ctx)
	if err != nil || q.Tier != sess.Tier {
		q = tier.Quota{Tier: sess.Tier, Used: map[contract.Kind]int{}}
	}
	return s.setQuota(ctx, q)
}

// Clear removes everything a login wrote.
func (s *Store) Clear(ctx context.Context) error {
	return s.backend.Delete(ctx, KeyUserID, KeySessionToken, KeyCulturalContext, KeyTierData)
}

func (s *Store) Close() error {
	if c, ok := s.backend.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
