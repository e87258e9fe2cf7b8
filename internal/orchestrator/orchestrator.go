package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"coach-backend/internal/contract"
	"coach-backend/internal/llm"
	"coach-backend/internal/shared/metrics"
	"coach-backend/internal/shared/telemetry"
)

// ErrNoProvider is returned when no provider has credentials.
var ErrNoProvider = errors.New("no AI provider configured")

// Orchestrator runs one analysis against a primary provider with a single fallback.
type Orchestrator struct {
	providers []llm.Provider
	now       func() time.Time
}

// New builds an orchestrator from the configured providers, in preference order.
// Pass only providers that have credentials.
func New(providers ...llm.Provider) *Orchestrator {
	o := &Orchestrator{now: time.Now}
	for _, p := range providers {
		if p != nil {
			o.providers = append(o.providers, p)
		}
	}
	return o
}

// Providers lists the configured provider names.
func (o *Orchestrator) Providers() []string {
	names := make([]string, 0, len(o.providers))
	for _, p := range o.providers {
		names = append(names, p.Name())
	}
	return names
}

type Job struct {
	Kind              contract.Kind
	Prompt            string
	Image             *llm.Image
	PreferredProvider string
	MaxTokens         int
	Temperature       float32
}

type Result struct {
	Record            map[string]any
	Raw               json.RawMessage
	Provider          string
	PreferredProvider string
	// UsedProvider is the provider name, or "<primary>_fallback_<secondary>" when the
	// secondary's answer is the one returned.
	UsedProvider string
	// FellBack matches UsedProvider: set only when the secondary answered.
	FellBack bool
	Canned   bool
	Duration time.Duration
}

// ProvidersError reports why no provider produced a result.
type ProvidersError struct {
	Primary  error
	Fallback error
}

func (e *ProvidersError) Error() string {
	if e.Fallback == nil {
		return "Primary provider failed and no fallback available: " + e.Primary.Error()
	}
	return fmt.Sprintf("Both AI providers failed. Primary: %s, Fallback: %s", e.Primary.Error(), e.Fallback.Error())
}

func (e *ProvidersError) Unwrap() []error {
	if e.Fallback == nil {
		return []error{e.Primary}
	}
	return []error{e.Primary, e.Fallback}
}

type attempt struct {
	provider string
	elapsed  time.Duration
	raw      json.RawMessage
	record   map[string]any
	answered bool
	err      error
}

// Run executes the job. A provider that answered 2xx without parsable output still
// completes the job, with the kind's canned record.
func (o *Orchestrator) Run(ctx context.Context, job Job) (Result, error) {
	primary, err := o.resolve(job.PreferredProvider)
	if err != nil {
		return Result{}, err
	}
	tmpl := TemplateFor(job.Kind)
	input := llm.Input{
		Prompt:      job.Prompt,
		Image:       job.Image,
		MaxTokens:   job.MaxTokens,
		Temperature: job.Temperature,
	}
	res := Result{
		Provider:          primary.Name(),
		PreferredProvider: job.PreferredProvider,
		UsedProvider:      primary.Name(),
	}

	first := o.attempt(ctx, primary, input)
	if first.err == nil {
		return complete(res, tmpl, first), nil
	}
	var answered *attempt
	if first.answered {
		answered = &first
	}

	secondary := o.fallbackFor(primary)
	if secondary == nil {
		if answered != nil {
			return canned(res, tmpl, *answered), nil
		}
		return Result{}, &ProvidersError{Primary: first.err}
	}

	res.FellBack = true
	res.UsedProvider = primary.Name() + "_fallback_" + secondary.Name()
	metrics.IncProviderFallback()
	telemetry.Info("orchestrator.fallback", map[string]any{
		"kind":      string(job.Kind),
		"primary":   primary.Name(),
		"secondary": secondary.Name(),
		"error":     truncate(first.err.Error(), 200),
	})

	second := o.attempt(ctx, secondary, input)
	if second.err == nil {
		return complete(res, tmpl, second), nil
	}
	if second.answered {
		answered = &second
	}
	if answered != nil {
		if answered.provider == primary.Name() {
			res.UsedProvider = primary.Name()
			res.FellBack = false
		}
		return canned(res, tmpl, *answered), nil
	}
	return Result{}, &ProvidersError{Primary: first.err, Fallback: second.err}
}

// resolve picks the first provider. A preferred provider without credentials is replaced
// by the first configured one before any call is made.
func (o *Orchestrator) resolve(preferred string) (llm.Provider, error) {
	if len(o.providers) == 0 {
		return nil, ErrNoProvider
	}
	preferred = strings.ToLower(strings.TrimSpace(preferred))
	for _, p := range o.providers {
		if p.Name() == preferred {
			return p, nil
		}
	}
	if preferred != "" {
		telemetry.Info("orchestrator.provider_substituted", map[string]any{
			"preferred": preferred,
			"using":     o.providers[0].Name(),
		})
	}
	return o.providers[0], nil
}

func (o *Orchestrator) fallbackFor(primary llm.Provider) llm.Provider {
	for _, p := range o.providers {
		if p.Name() != primary.Name() {
			return p
		}
	}
	return nil
}

func (o *Orchestrator) attempt(ctx context.Context, p llm.Provider, input llm.Input) attempt {
	a := attempt{provider: p.Name()}
	started := o.now()
	comp, err := p.Complete(ctx, input)
	a.elapsed = o.now().Sub(started)
	if err != nil {
		a.err = err
		a.answered = errors.Is(err, llm.ErrEmptyCompletion)
		return a
	}
	a.answered = true
	a.raw = comp.Raw
	record, err := ExtractJSONObject(comp.Text)
	if err != nil {
		a.err = fmt.Errorf("%s: %w", p.Name(), err)
		return a
	}
	a.record = record
	return a
}

func complete(res Result, tmpl Template, a attempt) Result {
	res.Record = tmpl.Fill(a.record)
	res.Raw = a.raw
	res.Duration = a.elapsed
	return res
}

func canned(res Result, tmpl Template, a attempt) Result {
	metrics.IncCannedDefault()
	telemetry.Info("orchestrator.canned_default", map[string]any{
		"kind":     string(tmpl.Kind),
		"provider": a.provider,
	})
	res.Record = tmpl.CannedRecord()
	res.Raw = a.raw
	res.Duration = a.elapsed
	res.Canned = true
	return res
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
