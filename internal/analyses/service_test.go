package analyses

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"coach-backend/internal/contract"
	"coach-backend/internal/llm"
	"coach-backend/internal/orchestrator"
	local "coach-backend/internal/shared/storage/object/local"
	"coach-backend/internal/tier"
	"coach-backend/internal/usage"
)

type stubProvider struct {
	name  string
	text  string
	err   error
	calls int
	last  llm.Input
}

func (p *stubProvider) Name() string { return p.name }

func (p *stubProvider) Complete(ctx context.Context, in llm.Input) (llm.Completion, error) {
	p.calls++
	p.last = in
	if p.err != nil {
		return llm.Completion{}, p.err
	}
	return llm.Completion{Text: p.text, Raw: json.RawMessage(`{}`)}, nil
}

func newTestService(t *testing.T, providers ...llm.Provider) (*Service, *MemoryRepo) {
	t.Helper()
	repo := NewMemoryRepo()
	return &Service{
		Repo:              repo,
		Usage:             usage.NewService(),
		Orchestrator:      orchestrator.New(providers...),
		Store:             local.New(t.TempDir()),
		PreferredProvider: "openai",
	}, repo
}

func profileRequest() contract.Request {
	return contract.Request{
		UserID:      "user-1",
		RequestType: contract.KindProfile,
		Data:        json.RawMessage(`{"targetProfile":{"bio":"hiker and cook"}}`),
		Options:     contract.Options{DepthLevel: contract.DepthComprehensive, IncludeRecommendations: true},
	}
}

func TestAnalyzeCompletesRecord(t *testing.T) {
	openai := &stubProvider{name: "openai", text: `Sure! {"overall_score": 8, "feedback": "Great bio"}`}
	svc, repo := newTestService(t, openai)

	resp, err := svc.Analyze(context.Background(), "user-1", tier.Free, profileRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if !resp.Success || resp.AnalysisID == "" || resp.Confidence != confidenceParsed {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.Data["overall_score"] != float64(8) || resp.Data["bio_score"] != 7.0 {
		t.Fatalf("expected parsed record filled with defaults, got %v", resp.Data)
	}
	if resp.TierUsage == nil || resp.TierUsage.Used != 1 || resp.TierUsage.Limit != 5 {
		t.Fatalf("unexpected tier usage: %+v", resp.TierUsage)
	}
	if !strings.Contains(openai.last.Prompt, "hiker and cook") {
		t.Fatalf("expected payload in prompt")
	}

	stored, err := repo.GetByID(context.Background(), resp.AnalysisID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Status != StatusCompleted || stored.Provider != "openai" || stored.Result["feedback"] != "Great bio" {
		t.Fatalf("unexpected stored record: %+v", stored)
	}
}

func TestAnalyzeFallbackRecordsUsedProvider(t *testing.T) {
	openai := &stubProvider{name: "openai", err: errors.New("OpenAI API error: 500 - boom")}
	gemini := &stubProvider{name: "gemini", text: `{"overall_score": 8}`}
	svc, repo := newTestService(t, openai, gemini)

	resp, err := svc.Analyze(context.Background(), "user-1", tier.Premium, profileRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.UsedProvider != "openai_fallback_gemini" {
		t.Fatalf("unexpected used provider %q", resp.UsedProvider)
	}
	stored, _ := repo.GetByID(context.Background(), resp.AnalysisID)
	if stored.Provider != "openai_fallback_gemini" || stored.Result["overall_score"] != float64(8) {
		t.Fatalf("unexpected stored record: %+v", stored)
	}
}

func TestAnalyzeBothProvidersFailMarksRecordFailed(t *testing.T) {
	openai := &stubProvider{name: "openai", err: errors.New("primary down")}
	gemini := &stubProvider{name: "gemini", err: errors.New("secondary down")}
	svc, repo := newTestService(t, openai, gemini)

	_, err := svc.Analyze(context.Background(), "user-1", tier.Free, profileRequest())
	var providersErr *orchestrator.ProvidersError
	if !errors.As(err, &providersErr) {
		t.Fatalf("expected ProvidersError, got %v", err)
	}
	if classifyFailure(err) != ErrorCodeProvider {
		t.Fatalf("expected provider error code, got %s", classifyFailure(err))
	}

	list, _ := repo.ListByUser(context.Background(), "user-1", ListFilter{})
	if len(list) != 1 || list[0].Status != StatusFailed || list[0].ErrorCode != ErrorCodeProvider {
		t.Fatalf("expected one failed record, got %+v", list)
	}
	if !strings.Contains(list[0].ErrorMessage, "Both AI providers failed") {
		t.Fatalf("unexpected error message %q", list[0].ErrorMessage)
	}

	// Failed analyses are not counted against the quota.
	u, _ := svc.Usage.Check(context.Background(), "user-1", tier.Free, contract.KindProfile)
	if u.Used != 0 {
		t.Fatalf("expected no usage consumed, got %d", u.Used)
	}
}

func TestAnalyzeTierLimited(t *testing.T) {
	openai := &stubProvider{name: "openai", text: `{"compatibility_score": 9}`}
	svc, _ := newTestService(t, openai)
	req := profileRequest()
	req.RequestType = contract.KindCompatibility

	for i := 0; i < 2; i++ {
		if resp, err := svc.Analyze(context.Background(), "user-1", tier.Free, req); err != nil || !resp.Success {
			t.Fatalf("analysis %d failed: %+v %v", i, resp, err)
		}
	}
	resp, err := svc.Analyze(context.Background(), "user-1", tier.Free, req)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if resp.Success || !resp.UpgradeRequired || resp.Error != "Tier limit exceeded" || resp.CurrentTier != "free" {
		t.Fatalf("expected tier limited response, got %+v", resp)
	}
	if openai.calls != 2 {
		t.Fatalf("expected provider not to be called when limited, got %d calls", openai.calls)
	}
}

func TestAnalyzeRejectsUnknownKind(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{name: "openai"})
	req := profileRequest()
	req.RequestType = "horoscope"
	if _, err := svc.Analyze(context.Background(), "user-1", tier.Free, req); !errors.Is(err, ErrInvalidKind) {
		t.Fatalf("expected ErrInvalidKind, got %v", err)
	}
}

func pngDataURL() string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("\x89PNG\r\n\x1a\nfake"))
}

func TestAnalyzePhotoPayloadStoresImageRef(t *testing.T) {
	openai := &stubProvider{name: "openai", text: `{"overall_score": 6}`}
	svc, repo := newTestService(t, openai)
	req := contract.Request{
		RequestType: contract.KindPhoto,
		Data:        json.RawMessage(`{"photoData":"` + pngDataURL() + `"}`),
	}

	resp, err := svc.Analyze(context.Background(), "user-1", tier.Free, req)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if openai.last.Image == nil || openai.last.Image.MimeType != "image/png" {
		t.Fatalf("expected image passed to provider, got %+v", openai.last.Image)
	}
	stored, _ := repo.GetByID(context.Background(), resp.AnalysisID)
	if !strings.HasPrefix(stored.ImageURL, "file://") {
		t.Fatalf("expected stored image url, got %q", stored.ImageURL)
	}
	if strings.Contains(string(stored.Input), "base64") {
		t.Fatalf("stored input should reference the image, not embed it: %s", stored.Input)
	}
}

func TestAnalyzePhotoEndpointFlow(t *testing.T) {
	gemini := &stubProvider{name: "gemini", text: "no json here"}
	svc, _ := newTestService(t, gemini)

	res, err := svc.AnalyzePhoto(context.Background(), "user-1", tier.Free, PhotoRequest{
		ImageData:         pngDataURL(),
		FileName:          "beach.png",
		AnalysisType:      "quick",
		PreferredProvider: "gemini",
	})
	if err != nil {
		t.Fatalf("AnalyzePhoto: %v", err)
	}
	if res.AIProviderUsed != "gemini" || res.Analysis["composition_score"] != 6.5 {
		t.Fatalf("expected canned photo record from gemini, got %+v", res)
	}
	if !strings.HasSuffix(res.ImageURL, "_beach.png") {
		t.Fatalf("unexpected image url %s", res.ImageURL)
	}
	if !strings.Contains(gemini.last.Prompt, "quick") {
		t.Fatalf("expected analysis type in prompt")
	}
}

func TestAnalyzePhotoRejectsBadImage(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{name: "openai"})
	_, err := svc.AnalyzePhoto(context.Background(), "user-1", tier.Free, PhotoRequest{ImageData: "data:image/png,notbase64"})
	if !errors.Is(err, ErrInvalidImage) {
		t.Fatalf("expected ErrInvalidImage, got %v", err)
	}
}

func TestGetHidesOtherUsersRecords(t *testing.T) {
	svc, _ := newTestService(t, &stubProvider{name: "openai", text: `{}`})
	resp, err := svc.Analyze(context.Background(), "user-1", tier.Free, profileRequest())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if _, err := svc.Get(context.Background(), "user-2", resp.AnalysisID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other user, got %v", err)
	}
	if _, err := svc.Get(context.Background(), "user-1", resp.AnalysisID); err != nil {
		t.Fatalf("Get: %v", err)
	}
}

func TestClassifyFailure(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{ErrInvalidKind, ErrorCodeValidation},
		{context.DeadlineExceeded, ErrorCodeTimeout},
		{orchestrator.ErrNoProvider, ErrorCodeProvider},
		{errors.New("storage create analysis: boom"), ErrorCodeStorage},
		{errors.New("boom"), ErrorCodeInternal},
	}
	for _, tc := range cases {
		if got := classifyFailure(tc.err); got != tc.want {
			t.Fatalf("classifyFailure(%v) = %s, want %s", tc.err, got, tc.want)
		}
	}
}
