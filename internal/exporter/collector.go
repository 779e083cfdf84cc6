// Package exporter exposes the metric catalog to Prometheus.
package exporter

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// Evaluator computes the current value of a metric spec.
type Evaluator interface {
	Evaluate(ctx context.Context, spec domain.MetricSpec) (float64, error)
}

// Collector evaluates every spec of the catalog on each scrape. A spec whose
// evaluation fails is left out of the scrape instead of being reported as zero.
type Collector struct {
	specs     []domain.MetricSpec
	descs     []*prometheus.Desc
	evaluator Evaluator
	limit     int
	self      *SelfMetrics
	latency   *LatencyRecorder
	logger    *slog.Logger
}

// NewCollector creates a collector for specs. At most limit evaluations run at
// once; self and latency may be nil.
func NewCollector(specs []domain.MetricSpec, evaluator Evaluator, limit int, self *SelfMetrics, latency *LatencyRecorder, logger *slog.Logger) *Collector {
	if limit < 1 {
		limit = 1
	}
	c := &Collector{
		specs:     specs,
		descs:     make([]*prometheus.Desc, len(specs)),
		evaluator: evaluator,
		limit:     limit,
		self:      self,
		latency:   latency,
		logger:    logger.With("component", "collector"),
	}
	byShape := make(map[string]*prometheus.Desc)
	for i, spec := range specs {
		keys := spec.Tags.Keys()
		shape := spec.Name + "|" + strings.Join(keys, ",")
		desc, ok := byShape[shape]
		if !ok {
			desc = prometheus.NewDesc(spec.Name, spec.Description, keys, nil)
			byShape[shape] = desc
		}
		c.descs[i] = desc
	}
	return c
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	seen := make(map[*prometheus.Desc]struct{}, len(c.descs))
	for _, desc := range c.descs {
		if _, ok := seen[desc]; ok {
			continue
		}
		seen[desc] = struct{}{}
		ch <- desc
	}
}

// Collect implements prometheus.Collector.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.CollectContext(context.Background(), ch)
}

// CollectContext evaluates the catalog under ctx and sends one gauge per
// successfully evaluated spec.
func (c *Collector) CollectContext(ctx context.Context, ch chan<- prometheus.Metric) {
	start := time.Now()
	var g errgroup.Group
	g.SetLimit(c.limit)
	for i := range c.specs {
		spec, desc := c.specs[i], c.descs[i]
		g.Go(func() error {
			began := time.Now()
			value, err := c.evaluator.Evaluate(ctx, spec)
			elapsed := time.Since(began)
			if c.self != nil {
				c.self.ObserveEvaluation(spec.Source, err, elapsed)
			}
			if c.latency != nil {
				c.latency.Record(spec.Source, elapsed)
			}
			if err != nil {
				return nil
			}
			m, err := prometheus.NewConstMetric(desc, prometheus.GaugeValue, value, spec.Tags.Values()...)
			if err != nil {
				c.logger.Error("failed to build metric", slog.String("metric", spec.ID()), slog.Any("error", err))
				return nil
			}
			ch <- m
			return nil
		})
	}
	_ = g.Wait()
	c.logger.Debug("scrape evaluated",
		slog.Int("metrics", len(c.specs)), slog.Duration("elapsed", time.Since(start)))
}

// Specs returns the catalog the collector serves.
func (c *Collector) Specs() []domain.MetricSpec {
	return c.specs
}
