package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/gin-gonic/gin"
)

var (
	analysisStartedTotal   atomic.Uint64
	analysisCompletedTotal atomic.Uint64
	analysisFailedTotal    atomic.Uint64
	providerFallbackTotal  atomic.Uint64
	cannedDefaultTotal     atomic.Uint64
	tierLimitedTotal       atomic.Uint64
	syncReceivedTotal      atomic.Uint64
	syncStoredTotal        atomic.Uint64
	syncFailedTotal        atomic.Uint64
	syncDroppedTotal       atomic.Uint64

	analysisDuration = newHistogram([]float64{100, 250, 500, 1000, 2000, 5000, 10000, 30000, 60000})
)

// IncAnalysisStarted increments the started counter.
func IncAnalysisStarted() {
	analysisStartedTotal.Add(1)
}

// IncAnalysisCompleted increments the completed counter.
func IncAnalysisCompleted() {
	analysisCompletedTotal.Add(1)
}

// IncAnalysisFailed increments the failed counter.
func IncAnalysisFailed() {
	analysisFailedTotal.Add(1)
}

// IncProviderFallback counts calls that went to the secondary provider.
func IncProviderFallback() {
	providerFallbackTotal.Add(1)
}

// IncCannedDefault counts analyses completed with the canned record.
func IncCannedDefault() {
	cannedDefaultTotal.Add(1)
}

// IncTierLimited counts requests rejected by the tier policy.
func IncTierLimited() {
	tierLimitedTotal.Add(1)
}

// IncSyncEventsReceived counts sync messages taken off the queue.
func IncSyncEventsReceived() { syncReceivedTotal.Add(1) }

// IncSyncEventsStored counts sync events written to the feed.
func IncSyncEventsStored() { syncStoredTotal.Add(1) }

// IncSyncEventsFailed counts sync messages left on the queue for retry.
func IncSyncEventsFailed() { syncFailedTotal.Add(1) }

// IncSyncEventsDropped counts malformed sync messages deleted without processing.
func IncSyncEventsDropped() { syncDroppedTotal.Add(1) }

// ObserveAnalysisDurationMs records an analysis duration in milliseconds.
func ObserveAnalysisDurationMs(value float64) {
	if value < 0 {
		value = 0
	}
	analysisDuration.Observe(value)
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Type", "text/plain; version=0.0.4")
		c.String(http.StatusOK, Render())
	}
}

// Render renders metrics in Prometheus text format.
func Render() string {
	var buf bytes.Buffer
	writeCounter(&buf, "analysis_started_total", "Total analyses started", analysisStartedTotal.Load())
	writeCounter(&buf, "analysis_completed_total", "Total analyses completed", analysisCompletedTotal.Load())
	writeCounter(&buf, "analysis_failed_total", "Total analyses failed", analysisFailedTotal.Load())
	writeCounter(&buf, "provider_fallback_total", "Total analyses that fell back to the secondary provider", providerFallbackTotal.Load())
	writeCounter(&buf, "analysis_canned_default_total", "Total analyses completed with the canned default record", cannedDefaultTotal.Load())
	writeCounter(&buf, "tier_limited_total", "Total analyses rejected by tier limits", tierLimitedTotal.Load())
	writeCounter(&buf, "sync_events_received_total", "Total sync messages received by workers", syncReceivedTotal.Load())
	writeCounter(&buf, "sync_events_stored_total", "Total sync events stored", syncStoredTotal.Load())
	writeCounter(&buf, "sync_events_failed_total", "Total sync messages that failed processing", syncFailedTotal.Load())
	writeCounter(&buf, "sync_events_dropped_total", "Total malformed sync messages dropped", syncDroppedTotal.Load())
	writeHistogram(&buf, "analysis_duration_ms", "Analysis duration in milliseconds", analysisDuration.Snapshot())
	return buf.String()
}

type histogram struct {
	mu      sync.Mutex
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

type histogramSnapshot struct {
	buckets []float64
	counts  []uint64
	sum     float64
	count   uint64
}

func newHistogram(buckets []float64) *histogram {
	return &histogram{
		buckets: buckets,
		counts:  make([]uint64, len(buckets)),
	}
}

func (h *histogram) Observe(value float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += value
	for i, bound := range h.buckets {
		if value <= bound {
			h.counts[i]++
			break
		}
	}
}

func (h *histogram) Snapshot() histogramSnapshot {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := histogramSnapshot{
		buckets: append([]float64(nil), h.buckets...),
		counts:  append([]uint64(nil), h.counts...),
		sum:     h.sum,
		count:   h.count,
	}
	return out
}

func writeCounter(buf *bytes.Buffer, name, help string, value uint64) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s counter\n", name)
	fmt.Fprintf(buf, "%s %d\n", name, value)
}

func writeHistogram(buf *bytes.Buffer, name, help string, snap histogramSnapshot) {
	fmt.Fprintf(buf, "# HELP %s %s\n", name, help)
	fmt.Fprintf(buf, "# TYPE %s histogram\n", name)
	var cumulative uint64
	for i, bound := range snap.buckets {
		cumulative += snap.counts[i]
		fmt.Fprintf(buf, "%s_bucket{le=\"%s\"} %d\n", name, formatFloat(bound), cumulative)
	}
	fmt.Fprintf(buf, "%s_bucket{le=\"+Inf\"} %d\n", name, snap.count)
	fmt.Fprintf(buf, "%s_sum %s\n", name, formatFloat(snap.sum))
	fmt.Fprintf(buf, "%s_count %d\n", name, snap.count)
}

func formatFloat(value float64) string {
	if value == float64(int64(value)) {
		return strconv.FormatInt(int64(value), 10)
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
