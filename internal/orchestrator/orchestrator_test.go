package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"coach-backend/internal/contract"
	"coach-backend/internal/llm"
)

type fakeProvider struct {
	name  string
	text  string
	err   error
	calls int
	delay time.Duration
	clock *fakeClock
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Complete(ctx context.Context, input llm.Input) (llm.Completion, error) {
	f.calls++
	if f.clock != nil {
		f.clock.advance(f.delay)
	}
	if f.err != nil {
		return llm.Completion{}, f.err
	}
	return llm.Completion{Text: f.text, Raw: []byte(`{"provider":"` + f.name + `"}`)}, nil
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func photoJob() Job {
	return Job{Kind: contract.KindPhoto, Prompt: PhotoPrompt(""), PreferredProvider: "openai"}
}

func TestRunPrimarySucceeds(t *testing.T) {
	openai := &fakeProvider{name: "openai", text: `{"overall_score": 9, "feedback": "great"}`}
	gemini := &fakeProvider{name: "gemini", text: `{}`}
	res, err := New(openai, gemini).Run(context.Background(), photoJob())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.UsedProvider != "openai" || res.FellBack || res.Canned {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gemini.calls != 0 {
		t.Fatalf("expected no fallback call")
	}
	if res.Record["overall_score"] != float64(9) || res.Record["composition_score"] != 7.0 {
		t.Fatalf("unexpected record: %v", res.Record)
	}
}

func TestRunFallsBackWhenPrimaryThrows(t *testing.T) {
	openai := &fakeProvider{name: "openai", err: errors.New("OpenAI API error: 500")}
	gemini := &fakeProvider{name: "gemini", text: `{"overall_score": 8}`}
	res, err := New(openai, gemini).Run(context.Background(), photoJob())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.UsedProvider != "openai_fallback_gemini" || !res.FellBack || res.Canned {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Record["overall_score"] != float64(8) {
		t.Fatalf("expected parsed score, got %v", res.Record["overall_score"])
	}
	for _, key := range []string{"attractiveness_score", "composition_score", "emotion_score", "technical_issues", "feedback", "suggestions", "improvements", "next_steps"} {
		if _, ok := res.Record[key]; !ok {
			t.Fatalf("expected %s to be filled", key)
		}
	}
	if res.Record["feedback"] != "Analysis completed" {
		t.Fatalf("unexpected feedback default: %v", res.Record["feedback"])
	}
	if openai.calls != 1 || gemini.calls != 1 {
		t.Fatalf("expected exactly one call per provider, got %d/%d", openai.calls, gemini.calls)
	}
}

func TestRunFallbackShapeMatchesPrimary(t *testing.T) {
	text := `{"overall_score": 8}`
	direct, err := New(&fakeProvider{name: "openai", text: text}).Run(context.Background(), photoJob())
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	viaFallback, err := New(&fakeProvider{name: "openai", err: errors.New("down")}, &fakeProvider{name: "gemini", text: text}).Run(context.Background(), photoJob())
	if err != nil {
		t.Fatalf("fallback: %v", err)
	}
	if len(direct.Record) != len(viaFallback.Record) {
		t.Fatalf("record shapes differ: %v vs %v", direct.Record, viaFallback.Record)
	}
	for k := range direct.Record {
		if _, ok := viaFallback.Record[k]; !ok {
			t.Fatalf("fallback record missing %s", k)
		}
	}
}

func TestRunBothFail(t *testing.T) {
	openai := &fakeProvider{name: "openai", err: errors.New("timeout")}
	gemini := &fakeProvider{name: "gemini", err: errors.New("quota")}
	_, err := New(openai, gemini).Run(context.Background(), photoJob())
	if err == nil {
		t.Fatalf("expected error")
	}
	if err.Error() != "Both AI providers failed. Primary: timeout, Fallback: quota" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	var perr *ProvidersError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProvidersError")
	}
}

func TestRunNoFallbackConfigured(t *testing.T) {
	_, err := New(&fakeProvider{name: "openai", err: errors.New("boom")}).Run(context.Background(), photoJob())
	if err == nil || err.Error() != "Primary provider failed and no fallback available: boom" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRunUnparsableOutputUsesCannedRecord(t *testing.T) {
	openai := &fakeProvider{name: "openai", text: "I am unable to rate this photo."}
	gemini := &fakeProvider{name: "gemini", err: errors.New("Gemini API error: 503")}
	res, err := New(openai, gemini).Run(context.Background(), photoJob())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Canned {
		t.Fatalf("expected canned record")
	}
	if res.UsedProvider != "openai" || res.FellBack {
		t.Fatalf("expected the answering provider to be reported, got %s (fell back %v)", res.UsedProvider, res.FellBack)
	}
	if res.Record["composition_score"] != 6.5 {
		t.Fatalf("unexpected canned record: %v", res.Record)
	}
	suggestions := res.Record["suggestions"].([]string)
	if len(suggestions) != 3 {
		t.Fatalf("expected canned suggestions, got %v", suggestions)
	}
	suggestions[0] = "mutated"
	if TemplateFor(contract.KindPhoto).Canned["suggestions"].([]string)[0] == "mutated" {
		t.Fatalf("canned record shares storage with the template")
	}
}

func TestRunUndecodableAnswerWithoutFallbackIsCanned(t *testing.T) {
	openai := &fakeProvider{name: "openai", err: fmt.Errorf("openai response missing choices: %w", llm.ErrEmptyCompletion)}
	res, err := New(openai).Run(context.Background(), photoJob())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Canned || res.FellBack || res.UsedProvider != "openai" {
		t.Fatalf("expected canned record from the answering provider, got %+v", res)
	}
}

func TestRunUnparsablePrimaryStillTriesFallback(t *testing.T) {
	openai := &fakeProvider{name: "openai", text: "no json here"}
	gemini := &fakeProvider{name: "gemini", text: `{"overall_score": 5}`}
	res, err := New(openai, gemini).Run(context.Background(), photoJob())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Canned || res.Record["overall_score"] != float64(5) || res.UsedProvider != "openai_fallback_gemini" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestRunSubstitutesUnconfiguredPreferredProvider(t *testing.T) {
	openai := &fakeProvider{name: "openai", text: `{"overall_score": 6}`}
	job := photoJob()
	job.PreferredProvider = "gemini"
	res, err := New(openai).Run(context.Background(), job)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.FellBack || res.UsedProvider != "openai" || res.Provider != "openai" || res.PreferredProvider != "gemini" {
		t.Fatalf("substitution must not count as fallback: %+v", res)
	}
}

func TestRunNoProviders(t *testing.T) {
	if _, err := New().Run(context.Background(), photoJob()); !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestRunDurationMeasuresProducingAttempt(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	openai := &fakeProvider{name: "openai", err: errors.New("slow failure"), delay: 4 * time.Second, clock: clock}
	gemini := &fakeProvider{name: "gemini", text: `{"overall_score": 8}`, delay: 1500 * time.Millisecond, clock: clock}
	o := New(openai, gemini)
	o.now = clock.now
	res, err := o.Run(context.Background(), photoJob())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Duration != 1500*time.Millisecond {
		t.Fatalf("expected duration of the fallback attempt, got %s", res.Duration)
	}
}

func TestBuildPromptListsTemplateKeys(t *testing.T) {
	prompt := BuildPrompt(contract.KindConversation, []byte(`{"conversationHistory":[]}`), contract.Options{CulturalContext: "western_urban", Platform: "tinder", IncludeRecommendations: true})
	for _, want := range []string{"next_message", "engagement_score", "western_urban", "tinder", "conversationHistory"} {
		if !strings.Contains(prompt, want) {
			t.Fatalf("prompt missing %q:\n%s", want, prompt)
		}
	}
}
