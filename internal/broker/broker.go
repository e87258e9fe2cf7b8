package broker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"coach-backend/internal/contract"
	"coach-backend/internal/shared/telemetry"
	"coach-backend/internal/tier"
)

const (
	// DefaultCacheSize bounds the cache of extension and CLI surfaces.
	DefaultCacheSize = 50
	// WebCacheSize bounds the cache of the web surface.
	WebCacheSize     = 100
	DefaultCacheTTL  = 5 * time.Minute
	batchParallelism = 4
)

// Config tunes a Broker.
type Config struct {
	CacheSize int
	CacheTTL  time.Duration
	// Surface names the calling client ("extension", "web", "cli") for logs.
	Surface string
	// Platform reports the dating app the caller is looking at. Nil means unknown.
	Platform func() string
}

// Deps are the collaborators a Broker needs. Notifier may be nil.
type Deps struct {
	Transport   Transport
	Credentials CredentialProvider
	Usage       UsageStore
	Notifier    Notifier
}

// Request is one analysis as the caller sees it.
type Request struct {
	Kind    contract.Kind
	Payload any
	Options contract.Options
}

// Broker turns analysis calls into cached, coalesced, tier-gated backend requests.
// It is safe for concurrent use.
type Broker struct {
	cfg      Config
	deps     Deps
	cache    *responseCache
	flights  inflight
	now      func() time.Time
	hits     atomic.Uint64
	misses   atomic.Uint64
	notifyWG sync.WaitGroup
}

// New builds a Broker.
func New(cfg Config, deps Deps) *Broker {
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = DefaultCacheSize
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = DefaultCacheTTL
	}
	if deps.Notifier == nil {
		deps.Notifier = NopNotifier{}
	}
	return &Broker{
		cfg:   cfg,
		deps:  deps,
		cache: newResponseCache(cfg.CacheSize, cfg.CacheTTL),
		now:   time.Now,
	}
}

// Analyze runs one request. It never returns an error: every failure is reported
// as a response with Success false.
func (b *Broker) Analyze(ctx context.Context, req Request) contract.Response {
	data, err := json.Marshal(req.Payload)
	if err != nil {
		return contract.Failure("invalid analysis payload: " + err.Error())
	}
	key, err := digest(req.Kind, data, req.Options)
	if err != nil {
		return contract.Failure(err.Error())
	}

	if resp, ok := b.cache.Get(key, b.now()); ok {
		b.hits.Add(1)
		return resp
	}
	b.misses.Add(1)

	// The shared call must outlive any single caller giving up.
	shared := context.WithoutCancel(ctx)
	resp, err, _ := b.flights.Do(key, func() (contract.Response, error) {
		return b.load(shared, key, req.Kind, data, req.Options)
	})
	if err != nil {
		return contract.Failure(err.Error())
	}
	return resp
}

// load runs inside the flight. A flight that settled between the caller's cache miss
// and joining has already cached its response.
func (b *Broker) load(ctx context.Context, key string, kind contract.Kind, data json.RawMessage, opts contract.Options) (contract.Response, error) {
	if resp, ok := b.cache.Get(key, b.now()); ok {
		return resp, nil
	}
	return b.execute(ctx, key, kind, data, opts)
}

func (b *Broker) execute(ctx context.Context, key string, kind contract.Kind, data json.RawMessage, opts contract.Options) (contract.Response, error) {
	userID, err := b.deps.Credentials.UserID(ctx)
	if err != nil || userID == "" {
		return contract.Response{}, ErrUnauthenticated
	}
	token, err := b.deps.Credentials.SessionToken(ctx)
	if err != nil || token == "" {
		return contract.Response{}, ErrUnauthenticated
	}

	quota := b.quota(ctx)
	if usage := quota.Check(kind); !usage.Allowed {
		telemetry.Info("broker.tier_limited", map[string]any{
			"kind":    string(kind),
			"tier":    usage.CurrentTier,
			"used":    usage.Used,
			"limit":   usage.Limit,
			"surface": b.cfg.Surface,
		})
		return contract.TierLimited(usage), nil
	}

	resp, err := b.deps.Transport.Send(ctx, contract.Request{
		UserID:       userID,
		SessionToken: token,
		RequestType:  kind,
		Data:         data,
		Options:      opts,
	})
	if err != nil {
		telemetry.Error("broker.request_failed", map[string]any{
			"kind":    string(kind),
			"surface": b.cfg.Surface,
			"error":   err.Error(),
		})
		return contract.Response{}, err
	}
	if !resp.Success {
		return resp, nil
	}

	if err := b.deps.Usage.IncrementUsage(ctx, kind); err != nil {
		telemetry.Error("broker.usage_increment_failed", map[string]any{"kind": string(kind), "error": err.Error()})
	}
	b.cache.Set(key, resp, b.now())
	if resp.AnalysisID != "" {
		b.notify(ctx, Notification{
			AnalysisID: resp.AnalysisID,
			Kind:       kind,
			Platform:   opts.Platform,
			Result:     resp,
			Timestamp:  b.now().UTC(),
		})
	}
	return resp, nil
}

func (b *Broker) quota(ctx context.Context) tier.Quota {
	q, err := b.deps.Usage.Quota(ctx)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			telemetry.Error("broker.quota_read_failed", map[string]any{"error": err.Error()})
		}
		return tier.DefaultQuota()
	}
	if q.Used == nil {
		q.Used = map[contract.Kind]int{}
	}
	return q
}

func (b *Broker) notify(ctx context.Context, n Notification) {
	b.notifyWG.Add(1)
	go func() {
		defer b.notifyWG.Done()
		defer func() {
			if r := recover(); r != nil {
				telemetry.Error("broker.notify_panic", map[string]any{"analysis_id": n.AnalysisID, "panic": r})
			}
		}()
		if err := b.deps.Notifier.Notify(ctx, n); err != nil {
			telemetry.Error("broker.notify_failed", map[string]any{
				"analysis_id": n.AnalysisID,
				"error":       err.Error(),
			})
		}
	}()
}

// WaitNotifications blocks until pending notifications have been attempted.
// Short-lived callers such as the CLI use it before exiting.
func (b *Broker) WaitNotifications() {
	b.notifyWG.Wait()
}

// BatchAnalyze runs requests concurrently and returns responses in request order.
func (b *Broker) BatchAnalyze(ctx context.Context, reqs []Request) []contract.Response {
	out := make([]contract.Response, len(reqs))
	var g errgroup.Group
	g.SetLimit(batchParallelism)
	for i, req := range reqs {
		g.Go(func() error {
			out[i] = b.Analyze(ctx, req)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

type PerformanceMetrics struct {
	CacheSize   int     `json:"cache_size"`
	InFlight    int     `json:"in_flight"`
	CacheHits   uint64  `json:"cache_hits"`
	CacheMisses uint64  `json:"cache_misses"`
	HitRate     float64 `json:"hit_rate"`
	Platform    string  `json:"platform"`
}

func (b *Broker) Metrics() PerformanceMetrics {
	hits, misses := b.hits.Load(), b.misses.Load()
	m := PerformanceMetrics{
		CacheSize:   b.cache.Len(),
		InFlight:    b.flights.Len(),
		CacheHits:   hits,
		CacheMisses: misses,
		Platform:    b.platform(),
	}
	if total := hits + misses; total > 0 {
		m.HitRate = float64(hits) / float64(total)
	}
	return m
}

// ClearCache drops cached responses. Calls already in flight are left to finish.
func (b *Broker) ClearCache() {
	b.cache.Clear()
}

// HealthCheck probes the backend. Failures come back as an unhealthy report.
func (b *Broker) HealthCheck(ctx context.Context) Health {
	unhealthy := Health{
		Status: "unhealthy",
		Services: map[string]string{
			"api":             "unreachable",
			"analysis_engine": "unknown",
			"database":        "unknown",
		},
	}
	hc, ok := b.deps.Transport.(HealthChecker)
	if !ok {
		return unhealthy
	}
	h, err := hc.Health(ctx)
	if err != nil {
		telemetry.Error("broker.health_check_failed", map[string]any{"error": err.Error()})
		return unhealthy
	}
	return h
}

func (b *Broker) platform() string {
	if b.cfg.Platform == nil {
		return PlatformUnknown
	}
	if p := b.cfg.Platform(); p != "" {
		return p
	}
	return PlatformUnknown
}
