package usecase

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"

	"github.com/stretchr/testify/mock"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// mockFetcher is a mock implementation of the gateway.Fetcher interface.
// It allows us to simulate the behavior of the GitHub gateway without making real API calls.
type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Count(ctx context.Context, path string) (int, error) {
	args := m.Called(ctx, path)
	return args.Int(0), args.Error(1)
}

func (m *mockFetcher) RemainingRate(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *mockFetcher) Repository(ctx context.Context, fullName string) (*domain.RepositoryMetadata, error) {
	args := m.Called(ctx, fullName)
	// The returned metadata is nil when an error is simulated.
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.RepositoryMetadata), args.Error(1)
}

// seqFetcher numbers every fetch; the number is stored in Stargazers so tests
// can tell which fetch produced a snapshot.
type seqFetcher struct {
	seq atomic.Int64
}

func (f *seqFetcher) Repository(_ context.Context, fullName string) (*domain.RepositoryMetadata, error) {
	n := f.seq.Add(1)
	return &domain.RepositoryMetadata{FullName: fullName, Stargazers: int(n)}, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
