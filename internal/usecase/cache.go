package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// MetadataFetcher fetches a fresh repository snapshot.
type MetadataFetcher interface {
	Repository(ctx context.Context, fullName string) (*domain.RepositoryMetadata, error)
}

// RepositoryCache memoizes repository metadata until the next Flush.
// There is no per-entry expiry: every entry lives until the whole map is
// swapped out, so all entries share the staleness bound of the flush period.
type RepositoryCache struct {
	fetcher MetadataFetcher
	logger  *slog.Logger

	mu         sync.RWMutex
	entries    map[string]*domain.RepositoryMetadata
	generation uint64

	// group coalesces concurrent misses. Keys carry the generation so a
	// caller arriving after a flush never joins a fetch started before it.
	group singleflight.Group
}

// NewRepositoryCache creates an empty cache backed by fetcher.
func NewRepositoryCache(fetcher MetadataFetcher, logger *slog.Logger) *RepositoryCache {
	return &RepositoryCache{
		fetcher: fetcher,
		logger:  logger.With("component", "repository_cache"),
		entries: make(map[string]*domain.RepositoryMetadata),
	}
}

// Get returns the cached metadata of name, fetching it on a miss. A failed
// fetch stores nothing and returns the error.
func (c *RepositoryCache) Get(ctx context.Context, name string) (*domain.RepositoryMetadata, error) {
	c.mu.RLock()
	md, ok := c.entries[name]
	gen := c.generation
	c.mu.RUnlock()
	if ok {
		return md, nil
	}

	key := strconv.FormatUint(gen, 10) + "/" + name
	// The shared fetch outlives the caller that started it; each caller
	// stops waiting on its own context instead.
	fetchCtx := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		fetched, err := c.fetcher.Repository(fetchCtx, name)
		if err != nil {
			return nil, err
		}

		c.mu.Lock()
		defer c.mu.Unlock()
		if c.generation != gen {
			// Flushed while fetching: hand the value to the callers that asked
			// before the flush, but keep it out of the new map.
			return fetched, nil
		}
		if existing, ok := c.entries[name]; ok {
			return existing, nil
		}
		c.entries[name] = fetched
		return fetched, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("failed to fetch repository %s: %w", name, ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("failed to fetch repository %s: %w", name, res.Err)
		}
		return res.Val.(*domain.RepositoryMetadata), nil
	}
}

// Flush discards every entry and returns how many were dropped.
func (c *RepositoryCache) Flush() int {
	c.mu.Lock()
	dropped := len(c.entries)
	c.entries = make(map[string]*domain.RepositoryMetadata)
	c.generation++
	c.mu.Unlock()

	c.logger.Debug("repository cache flushed", slog.Int("entries", dropped))
	return dropped
}

// Len returns the number of cached repositories.
func (c *RepositoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Snapshot returns copies of the cached entries sorted by repository name.
func (c *RepositoryCache) Snapshot() []domain.RepositoryMetadata {
	c.mu.RLock()
	out := make([]domain.RepositoryMetadata, 0, len(c.entries))
	for _, md := range c.entries {
		out = append(out, *md)
	}
	c.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out
}
