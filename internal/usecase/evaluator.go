// Package usecase contains the business logic of the application.
package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

var (
	ErrUnknownSource = errors.New("unknown metric source")
	ErrUnknownField  = errors.New("unknown repository field")
	ErrNegativeCount = errors.New("negative count")
)

// Counter is the part of the gateway the evaluator counts with.
type Counter interface {
	Count(ctx context.Context, path string) (int, error)
	RemainingRate(ctx context.Context) (int, error)
}

// MetadataSource returns repository metadata, usually through the cache.
type MetadataSource interface {
	Get(ctx context.Context, name string) (*domain.RepositoryMetadata, error)
}

// Evaluator computes the current value of a metric spec. It performs the
// network calls a metric needs at the moment it is asked; nothing is fetched
// in the background.
type Evaluator struct {
	counter  Counter
	metadata MetadataSource
	now      func() time.Time
	tracer   trace.Tracer
	logger   *slog.Logger
}

// EvaluatorOption customizes an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithClock replaces time.Now for windowed queries.
func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *Evaluator) { e.now = now }
}

// NewEvaluator creates a new Evaluator instance.
func NewEvaluator(counter Counter, metadata MetadataSource, logger *slog.Logger, opts ...EvaluatorOption) *Evaluator {
	e := &Evaluator{
		counter:  counter,
		metadata: metadata,
		now:      time.Now,
		tracer:   otel.Tracer("github.com/naka-gawa/github-metrics/internal/usecase"),
		logger:   logger.With("component", "evaluator"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate returns the value of spec. An error means the value is unavailable
// for this evaluation; it is never folded into a zero.
func (e *Evaluator) Evaluate(ctx context.Context, spec domain.MetricSpec) (float64, error) {
	ctx, span := e.tracer.Start(ctx, "evaluate "+spec.Name, trace.WithAttributes(
		attribute.String("metric.name", spec.Name),
		attribute.String("metric.source", string(spec.Source)),
		attribute.String("repo", spec.Repo),
	))
	defer span.End()

	v, err := e.evaluate(ctx, spec)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		e.logger.Warn("metric value unavailable",
			slog.String("metric", spec.ID()),
			slog.String("source", string(spec.Source)),
			slog.Any("error", err))
		return 0, err
	}
	span.SetAttributes(attribute.Int("metric.value", v))
	return float64(v), nil
}

func (e *Evaluator) evaluate(ctx context.Context, spec domain.MetricSpec) (int, error) {
	switch spec.Source {
	case domain.SourcePagination, domain.SourceSearch:
		return e.count(ctx, spec.Path)
	case domain.SourceWindowed:
		path, err := e.WindowedPath(spec)
		if err != nil {
			return 0, err
		}
		return e.count(ctx, path)
	case domain.SourceCachedField:
		md, err := e.metadata.Get(ctx, spec.Repo)
		if err != nil {
			return 0, err
		}
		v, ok := md.Value(spec.Field)
		if !ok {
			return 0, fmt.Errorf("%w: %q", ErrUnknownField, spec.Field)
		}
		return v, nil
	case domain.SourceRateLimit:
		return e.counter.RemainingRate(ctx)
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownSource, spec.Source)
}

func (e *Evaluator) count(ctx context.Context, path string) (int, error) {
	n, err := e.counter.Count(ctx, path)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %d for %s", ErrNegativeCount, n, path)
	}
	return n, nil
}

// WindowedPath renders the search path of a windowed spec with the cutoff
// computed from the current time. The cutoff moves on every call.
func (e *Evaluator) WindowedPath(spec domain.MetricSpec) (string, error) {
	if spec.Window == nil {
		return "", fmt.Errorf("windowed metric %s has no window", spec.ID())
	}
	query := spec.Query + " " + spec.Window.Filter(e.now())
	return domain.SearchPath(query), nil
}
