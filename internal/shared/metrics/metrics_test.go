package metrics

import (
	"strings"
	"testing"
)

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	IncAnalysisStarted()
	IncProviderFallback()
	IncCannedDefault()
	ObserveAnalysisDurationMs(320)

	out := Render()
	for _, want := range []string{
		"# TYPE analysis_started_total counter",
		"provider_fallback_total ",
		"analysis_canned_default_total ",
		"tier_limited_total ",
		"sync_events_stored_total ",
		`analysis_duration_ms_bucket{le="500"}`,
		`analysis_duration_ms_bucket{le="+Inf"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output:\n%s", want, out)
		}
	}
}

func TestHistogramBucketsAreCumulative(t *testing.T) {
	h := newHistogram([]float64{10, 100})
	h.Observe(5)
	h.Observe(50)
	h.Observe(500)
	snap := h.Snapshot()
	if snap.count != 3 || snap.counts[0] != 1 || snap.counts[1] != 1 {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}
