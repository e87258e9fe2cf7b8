package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"coach-backend/internal/analyses"
	"coach-backend/internal/llm"
	"coach-backend/internal/llm/gemini"
	"coach-backend/internal/llm/openai"
	"coach-backend/internal/orchestrator"
	"coach-backend/internal/queue"
	"coach-backend/internal/services/health"
	"coach-backend/internal/shared/config"
	"coach-backend/internal/shared/server"
	"coach-backend/internal/shared/storage/db"
	"coach-backend/internal/shared/storage/object"
	localstore "coach-backend/internal/shared/storage/object/local"
	s3store "coach-backend/internal/shared/storage/object/s3"
	"coach-backend/internal/syncfeed"
	"coach-backend/internal/usage"
)

const defaultRegion = "us-east-1"

// App holds shared dependencies.
type App struct {
	Config          config.Config
	Router          *gin.Engine
	DB              *sql.DB
	Store           object.Store
	Queue           queue.Client
	Orchestrator    *orchestrator.Orchestrator
	AnalysesRepo    analyses.Repo
	SyncRepo        syncfeed.Repo
	UsageService    *usage.Service
	AnalysesService *analyses.Service
	SyncService     *syncfeed.Service
	Health          *health.Service
	AnalysisHandler *analyses.Handler
	UsageHandler    *usage.Handler
	SyncHandler     *syncfeed.Handler
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	queueClient, err := buildQueue(ctx, cfg)
	if err != nil {
		return nil, err
	}

	orch, err := buildOrchestrator(cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:       cfg,
		DB:           sqlDB,
		Store:        store,
		Queue:        queueClient,
		Orchestrator: orch,
	}
	buildServices(ctx, app)

	var pinger health.Pinger
	if sqlDB != nil {
		pinger = sqlDB
	}
	app.Health = health.NewService(pinger, orch.Providers())
	app.Router = server.NewRouter(server.RouterDeps{
		Config:          cfg,
		Health:          app.Health,
		AnalysisHandler: app.AnalysisHandler,
		UsageHandler:    app.UsageHandler,
		SyncHandler:     app.SyncHandler,
	})

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) || cfg.DataAPIURL != "" {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory or REST repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	profile := db.RuntimeProfile(db.ProfileServer)
	opts := db.OptionsFromEnv(db.DefaultOptions(profile))
	sqlDB, err := db.Shared(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	if isDevLike(cfg.Env) {
		if err := db.RunMigrations(ctx, sqlDB); err != nil {
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.Store, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		return s3store.New(ctx, regionOrDefault(cfg.AWSRegion), cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func buildQueue(ctx context.Context, cfg config.Config) (queue.Client, error) {
	if strings.TrimSpace(cfg.SyncQueueURL) == "" {
		return nil, nil
	}
	return queue.NewSQSClient(ctx, cfg.SyncQueueURL, regionOrDefault(cfg.AWSRegion))
}

// buildOrchestrator registers every provider that has a key. An empty set is
// allowed; analyses then fall back to canned defaults.
func buildOrchestrator(cfg config.Config) (*orchestrator.Orchestrator, error) {
	timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
	var providers []llm.Provider
	if strings.TrimSpace(cfg.OpenAIAPIKey) != "" {
		c, err := openai.NewClient(cfg.OpenAIAPIKey, cfg.OpenAIModel, timeout)
		if err != nil {
			return nil, err
		}
		providers = append(providers, c)
	}
	if strings.TrimSpace(cfg.GeminiAPIKey) != "" {
		c, err := gemini.NewClient(cfg.GeminiAPIKey, cfg.GeminiModel, timeout)
		if err != nil {
			return nil, err
		}
		providers = append(providers, c)
	}
	if len(providers) == 0 {
		log.Printf("bootstrap: no AI provider keys configured")
	}
	return orchestrator.New(providers...), nil
}

func buildServices(ctx context.Context, app *App) {
	cfg := app.Config

	var (
		analysisRepo analyses.Repo
		syncRepo     syncfeed.Repo
		usageSvc     *usage.Service
	)
	switch {
	case app.DB != nil:
		analysisRepo = analyses.NewPGRepo(app.DB)
		syncRepo = syncfeed.NewPGRepo(app.DB)
		usageSvc = usage.NewPostgresService(usage.NewPGStore(app.DB))
	case cfg.DataAPIURL != "":
		timeout := time.Duration(cfg.ProviderTimeoutSeconds) * time.Second
		analysisRepo = analyses.NewRESTRepo(ctx, cfg.DataAPIURL, cfg.DataAPIKey, timeout)
		syncRepo = syncfeed.NewMemoryRepo()
		usageSvc = usage.NewService()
	default:
		analysisRepo = analyses.NewMemoryRepo()
		syncRepo = syncfeed.NewMemoryRepo()
		usageSvc = usage.NewService()
	}

	analysisSvc := &analyses.Service{
		Repo:              analysisRepo,
		Usage:             usageSvc,
		Orchestrator:      app.Orchestrator,
		Store:             app.Store,
		PreferredProvider: cfg.PreferredProvider,
	}
	syncSvc := syncfeed.NewService(syncRepo, app.Queue)

	app.AnalysesRepo = analysisRepo
	app.SyncRepo = syncRepo
	app.UsageService = usageSvc
	app.AnalysesService = analysisSvc
	app.SyncService = syncSvc
	app.AnalysisHandler = analyses.NewHandler(analysisSvc)
	app.UsageHandler = usage.NewHandler(usageSvc)
	app.SyncHandler = syncfeed.NewHandler(syncSvc)
}

func regionOrDefault(region string) string {
	if strings.TrimSpace(region) == "" {
		return defaultRegion
	}
	return region
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}
