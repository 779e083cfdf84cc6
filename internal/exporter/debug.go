package exporter

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// RepositoryCache is the view of the metadata cache the debug dump reads.
type RepositoryCache interface {
	Get(ctx context.Context, name string) (*domain.RepositoryMetadata, error)
	Snapshot() []domain.RepositoryMetadata
	Len() int
}

// DebugDump is the body served on the debug path.
type DebugDump struct {
	Repositories []domain.RepositoryMetadata `json:"repositories"`
	Latency      []LatencySummary            `json:"latency"`
}

// DebugHandler serves the cached repository metadata and recent evaluation
// latencies as JSON. With ?repo=owner/name it returns that repository alone,
// fetching it into the cache when absent. Only repos can be asked for.
func DebugHandler(cache RepositoryCache, repos []string, latency *LatencyRecorder, logger *slog.Logger) http.Handler {
	logger = logger.With("component", "debug-handler")
	known := make(map[string]struct{}, len(repos))
	for _, r := range repos {
		known[r] = struct{}{}
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		dump := DebugDump{Repositories: []domain.RepositoryMetadata{}, Latency: []LatencySummary{}}
		if repo := strings.TrimSpace(r.URL.Query().Get("repo")); repo != "" {
			if _, _, err := domain.SplitRepository(repo); err != nil {
				http.Error(w, err.Error(), http.StatusBadRequest)
				return
			}
			if _, ok := known[repo]; !ok {
				http.Error(w, "repository not monitored", http.StatusNotFound)
				return
			}
			md, err := cache.Get(r.Context(), repo)
			if err != nil {
				logger.Warn("repository unavailable", slog.String("repo", repo), slog.Any("error", err))
				http.Error(w, "repository unavailable", http.StatusBadGateway)
				return
			}
			dump.Repositories = append(dump.Repositories, *md)
		} else {
			dump.Repositories = append(dump.Repositories, cache.Snapshot()...)
		}
		if latency != nil {
			dump.Latency = append(dump.Latency, latency.Summaries()...)
		}

		w.Header().Set("Content-Type", "application/json")
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(dump); err != nil {
			logger.Error("failed to write debug dump", slog.Any("error", err))
		}
	})
}
