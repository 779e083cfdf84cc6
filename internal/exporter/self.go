package exporter

import (
	"sort"
	"sync"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// SelfMetrics tracks the exporter's own work.
//
// Metrics:
//   - gh_exporter_evaluations_total: evaluations by source kind and result (ok, error)
//   - gh_exporter_evaluation_duration_seconds: evaluation latency by source kind
//   - gh_exporter_cache_flushes_total: repository cache flushes
//   - gh_exporter_cache_entries: repositories currently cached
type SelfMetrics struct {
	evaluations *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	flushes     prometheus.Counter
}

// NewSelfMetrics creates and registers the exporter metrics. cacheEntries is
// read on every scrape.
func NewSelfMetrics(registry prometheus.Registerer, cacheEntries func() int) *SelfMetrics {
	m := &SelfMetrics{
		evaluations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gh_exporter_evaluations_total",
				Help: "Total number of metric evaluations by source and result",
			},
			[]string{"source", "result"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gh_exporter_evaluation_duration_seconds",
				Help:    "Duration of metric evaluations by source",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"source"},
		),
		flushes: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gh_exporter_cache_flushes_total",
			Help: "Total number of repository cache flushes",
		}),
	}
	entries := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "gh_exporter_cache_entries",
		Help: "Current number of repositories in the metadata cache",
	}, func() float64 { return float64(cacheEntries()) })

	registry.MustRegister(m.evaluations, m.duration, m.flushes, entries)
	return m
}

// ObserveEvaluation records one evaluation.
func (m *SelfMetrics) ObserveEvaluation(source domain.SourceKind, err error, d time.Duration) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.evaluations.WithLabelValues(string(source), result).Inc()
	m.duration.WithLabelValues(string(source)).Observe(d.Seconds())
}

// ObserveFlush records a cache flush. It matches the scheduler callback signature.
func (m *SelfMetrics) ObserveFlush(int) {
	m.flushes.Inc()
}

// latencyWindow bounds the samples kept per source kind.
const latencyWindow = 512

// LatencyRecorder keeps the most recent evaluation latencies per source kind
// for the debug dump.
type LatencyRecorder struct {
	mu      sync.Mutex
	samples map[domain.SourceKind][]float64
	next    map[domain.SourceKind]int
}

func NewLatencyRecorder() *LatencyRecorder {
	return &LatencyRecorder{
		samples: make(map[domain.SourceKind][]float64),
		next:    make(map[domain.SourceKind]int),
	}
}

// Record adds one latency sample, replacing the oldest once the window is full.
func (r *LatencyRecorder) Record(source domain.SourceKind, d time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s := r.samples[source]
	if len(s) < latencyWindow {
		r.samples[source] = append(s, d.Seconds())
		return
	}
	i := r.next[source]
	s[i] = d.Seconds()
	r.next[source] = (i + 1) % latencyWindow
}

// LatencySummary describes the recent latencies of one source kind.
type LatencySummary struct {
	Source        domain.SourceKind `json:"source"`
	Count         int               `json:"count"`
	MedianSeconds float64           `json:"median_seconds"`
	P95Seconds    float64           `json:"p95_seconds"`
}

// Summaries returns one summary per source kind seen so far, ordered by source.
func (r *LatencyRecorder) Summaries() []LatencySummary {
	r.mu.Lock()
	data := make(map[domain.SourceKind]stats.Float64Data, len(r.samples))
	for source, s := range r.samples {
		data[source] = append(stats.Float64Data(nil), s...)
	}
	r.mu.Unlock()

	summaries := make([]LatencySummary, 0, len(data))
	for source, d := range data {
		median, err := stats.Median(d)
		if err != nil {
			continue
		}
		p95, err := stats.Percentile(d, 95)
		if err != nil {
			// Too few samples for a percentile; the maximum stands in.
			p95, _ = stats.Max(d)
		}
		summaries = append(summaries, LatencySummary{
			Source:        source,
			Count:         len(d),
			MedianSeconds: median,
			P95Seconds:    p95,
		})
	}
	sort.Slice(summaries, func(i, j int) bool { return summaries[i].Source < summaries[j].Source })
	return summaries
}
