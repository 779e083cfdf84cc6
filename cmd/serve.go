package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/naka-gawa/github-metrics/internal/exporter"
	"github.com/naka-gawa/github-metrics/internal/gateway"
	"github.com/naka-gawa/github-metrics/internal/scheduler"
	"github.com/naka-gawa/github-metrics/internal/tracing"
	"github.com/naka-gawa/github-metrics/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serves the repository gauges over HTTP",
	Long: `Checks the GitHub token, builds the metric catalog for the configured
repositories and detail tier, then serves it on the metrics path until
interrupted. The repository metadata cache is flushed periodically.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		shutdownTracing, err := tracing.NewTracerProvider(ctx, cfg.Tracing, version, logger)
		if err != nil {
			return fmt.Errorf("failed to set up tracing: %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := shutdownTracing(sctx); err != nil {
				logger.Error("failed to flush traces", slog.Any("error", err))
			}
		}()

		// Inject dependencies.
		githubGateway, err := gateway.NewGitHubGateway(cfg.GatewayOptions(), logger.With("component", "gateway"))
		if err != nil {
			return fmt.Errorf("failed to create GitHub gateway: %w", err)
		}
		login, err := githubGateway.VerifyToken(ctx)
		if err != nil {
			return fmt.Errorf("refusing to start: %w", err)
		}
		logger.Info("github token accepted", slog.String("login", login))

		tier, err := cfg.Tier()
		if err != nil {
			return err
		}
		specs := usecase.NewCatalogBuilder(tier, cfg.LabelSets(), cfg.CustomQueries(), logger).Build(cfg.Repos...)
		logger.Info("metric catalog built", slog.String("tier", tier.String()),
			slog.Int("repos", len(cfg.Repos)), slog.Int("metrics", len(specs)))

		cache := usecase.NewRepositoryCache(githubGateway, logger)
		evaluator := usecase.NewEvaluator(githubGateway, cache, logger)

		registry := prometheus.NewRegistry()
		registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		self := exporter.NewSelfMetrics(registry, cache.Len)
		latency := exporter.NewLatencyRecorder()
		collector := exporter.NewCollector(specs, evaluator, cfg.Server.MaxConcurrentEvaluations, self, latency, logger)
		if err := registry.Register(collector); err != nil {
			return fmt.Errorf("failed to register metric catalog: %w", err)
		}

		flusher := scheduler.NewFlushScheduler(cache, cfg.Cache.FlushPeriod, self.ObserveFlush, logger)
		if err := flusher.Start(ctx); err != nil {
			return err
		}
		defer flusher.Stop()

		server := exporter.NewServer(exporter.ServerOptions{
			Listen:      cfg.Server.Listen,
			MetricsPath: cfg.Server.MetricsPath,
			DebugPath:   cfg.Server.DebugPath,
		}, exporter.MetricsHandler(registry, logger), exporter.DebugHandler(cache, cfg.Repos, latency, logger))

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			logger.Info("serving metrics", slog.String("listen", cfg.Server.Listen),
				slog.String("metrics_path", cfg.Server.MetricsPath), slog.String("debug_path", cfg.Server.DebugPath))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("failed to serve: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			logger.Info("shutting down")
			return server.Shutdown(sctx)
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
