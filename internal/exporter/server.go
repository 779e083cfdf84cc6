package exporter

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ServerOptions configures the HTTP endpoints.
type ServerOptions struct {
	Listen      string
	MetricsPath string
	DebugPath   string
}

// MetricsHandler serves the registry in the Prometheus exposition format.
// A failing collector does not fail the whole scrape.
func MetricsHandler(registry *prometheus.Registry, logger *slog.Logger) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelError),
	})
}

// NewServer wires the metrics and debug handlers behind one mux.
func NewServer(opts ServerOptions, metrics, debug http.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle(opts.MetricsPath, metrics)
	mux.Handle(opts.DebugPath, debug)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	return &http.Server{
		Addr:              opts.Listen,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
}
