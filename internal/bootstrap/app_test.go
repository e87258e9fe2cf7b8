package bootstrap

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"coach-backend/internal/analyses"
	"coach-backend/internal/shared/config"
	"coach-backend/internal/syncfeed"
)

func TestBuildDevUsesMemoryRepositories(t *testing.T) {
	app, err := Build(config.Config{Env: "dev", LocalStoreDir: t.TempDir(), PreferredProvider: "openai", OpenAIAPIKey: "sk-test"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if app.DB != nil || app.Queue != nil {
		t.Fatalf("expected no database or queue in dev")
	}
	if _, ok := app.AnalysesRepo.(*analyses.MemoryRepo); !ok {
		t.Fatalf("expected memory analyses repo, got %T", app.AnalysesRepo)
	}
	if _, ok := app.SyncRepo.(*syncfeed.MemoryRepo); !ok {
		t.Fatalf("expected memory sync repo, got %T", app.SyncRepo)
	}
	if got := app.Orchestrator.Providers(); len(got) != 1 || got[0] != "openai" {
		t.Fatalf("unexpected providers: %v", got)
	}

	resp := httptest.NewRecorder()
	app.Router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected health 200, got %d", resp.Code)
	}
}

func TestBuildUsesRESTRepoWhenDataAPIConfigured(t *testing.T) {
	app, err := Build(config.Config{Env: "production", LocalStoreDir: t.TempDir(), DataAPIURL: "https://data.example.com", DataAPIKey: "k"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if _, ok := app.AnalysesRepo.(*analyses.RESTRepo); !ok {
		t.Fatalf("expected REST analyses repo, got %T", app.AnalysesRepo)
	}
}

func TestBuildRequiresDatabaseInProduction(t *testing.T) {
	if _, err := Build(config.Config{Env: "production"}); err == nil {
		t.Fatalf("expected error without DATABASE_URL")
	}
}

func TestBuildRejectsS3WithoutBucket(t *testing.T) {
	if _, err := Build(config.Config{Env: "dev", ObjectStoreType: "s3"}); err == nil {
		t.Fatalf("expected error without S3 bucket")
	}
}
