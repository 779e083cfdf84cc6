// Package tracing sets up the OpenTelemetry tracer provider.
package tracing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// Config controls span export over OTLP/HTTP.
type Config struct {
	Enabled      bool          `yaml:"enabled" env:"GH_TRACING_ENABLED"`
	Endpoint     string        `yaml:"endpoint" env:"GH_TRACING_ENDPOINT"`
	ServiceName  string        `yaml:"service_name" env:"GH_TRACING_SERVICE_NAME" env-default:"github-metrics"`
	Insecure     bool          `yaml:"insecure" env:"GH_TRACING_INSECURE"`
	Timeout      time.Duration `yaml:"timeout" env:"GH_TRACING_TIMEOUT" env-default:"5s"`
	SamplingRate float64       `yaml:"sampling_rate" env:"GH_TRACING_SAMPLING_RATE" env-default:"1.0"`
}

// Validate checks the fields needed when tracing is enabled.
func (c Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Endpoint == "" {
		return errors.New("tracing endpoint is required when tracing is enabled")
	}
	if c.SamplingRate < 0 || c.SamplingRate > 1 {
		return fmt.Errorf("tracing sampling rate %v is outside [0, 1]", c.SamplingRate)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("tracing timeout %v must be positive", c.Timeout)
	}
	return nil
}

// NewTracerProvider registers a global tracer provider exporting over OTLP/HTTP
// and returns its shutdown function. When tracing is disabled nothing is
// registered and the returned function does nothing.
func NewTracerProvider(ctx context.Context, cfg Config, version string, logger *slog.Logger) (func(context.Context) error, error) {
	if !cfg.Enabled {
		logger.Debug("tracing disabled")
		return func(context.Context) error { return nil }, nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(version),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to build tracing resource: %w", err)
	}

	// WithEndpoint takes host:port only.
	host := cfg.Endpoint
	if u, err := url.Parse(cfg.Endpoint); err == nil && u.Host != "" {
		host = u.Host
	}
	opts := []otlptracehttp.Option{
		otlptracehttp.WithEndpoint(host),
		otlptracehttp.WithTimeout(cfg.Timeout),
	}
	if cfg.Insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.TraceIDRatioBased(cfg.SamplingRate))),
	)
	otel.SetTracerProvider(tp)

	logger.Info("tracing enabled",
		slog.String("endpoint", cfg.Endpoint),
		slog.String("service_name", cfg.ServiceName),
		slog.Float64("sampling_rate", cfg.SamplingRate))
	return tp.Shutdown, nil
}
