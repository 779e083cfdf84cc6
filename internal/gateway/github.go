// Package gateway provides a gateway to the GitHub API,
// abstracting away the underlying REST and GraphQL clients.
package gateway

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/go-github/v62/github"
	"github.com/shurcooL/githubv4"
	"golang.org/x/oauth2"

	"github.com/gofri/go-github-ratelimit/github_ratelimit"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// EmptyBodyThreshold is the largest list response body, in bytes, still read as
// "no items" when the response carries no Link header. An empty JSON array is
// 2 bytes; a single item is several hundred.
const EmptyBodyThreshold = 10

const (
	DefaultAPIURL     = "https://api.github.com/"
	DefaultGraphQLURL = "https://api.github.com/graphql"
	DefaultUserAgent  = "github-metrics"
)

var (
	ErrMalformedLink = errors.New("malformed Link header")
	ErrMissingTotal  = errors.New("search response carries no total_count")
	ErrInvalidToken  = errors.New("github rejected the access token")
)

// Fetcher defines the behavior of a gateway for fetching information from GitHub.
type Fetcher interface {
	// Count returns the number of items behind path. Search paths are read
	// from the result envelope, list paths are estimated from pagination.
	Count(ctx context.Context, path string) (int, error)
	Repository(ctx context.Context, fullName string) (*domain.RepositoryMetadata, error)
	RemainingRate(ctx context.Context) (int, error)
}

// Options configures a GitHubGateway.
type Options struct {
	Token      string
	APIURL     string
	GraphQLURL string
	UserAgent  string
	// RequestTimeout bounds every outgoing call. Zero means no bound.
	RequestTimeout time.Duration
	// SecondaryRateLimitWait is the longest single sleep on a secondary rate
	// limit before the request fails. Zero disables waiting.
	SecondaryRateLimitWait time.Duration
}

// GitHubGateway is the concrete implementation of the Fetcher interface.
type GitHubGateway struct {
	restClient    *github.Client
	graphqlClient *githubv4.Client
	timeout       time.Duration
	logger        *slog.Logger
}

// searchEnvelope is the part of a search response we read.
type searchEnvelope struct {
	TotalCount *int `json:"total_count"`
}

// viewerQuery is the cheapest authenticated GraphQL query.
type viewerQuery struct {
	Viewer struct {
		Login githubv4.String
	}
}

// NewGitHubGateway is a constructor that creates a new instance of GitHubGateway.
func NewGitHubGateway(opts Options, logger *slog.Logger) (*GitHubGateway, error) {
	if opts.Token == "" {
		return nil, errors.New("github token is empty")
	}
	if opts.APIURL == "" {
		opts.APIURL = DefaultAPIURL
	}
	if opts.GraphQLURL == "" {
		opts.GraphQLURL = DefaultGraphQLURL
	}
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	var base http.RoundTripper = http.DefaultTransport
	if opts.SecondaryRateLimitWait > 0 {
		rateLimitWaiter, err := github_ratelimit.NewRateLimitWaiter(nil,
			github_ratelimit.WithSingleSleepLimit(opts.SecondaryRateLimitWait, func(*github_ratelimit.CallbackContext) {
				logger.Warn("secondary rate limit sleep exceeds limit, failing request",
					slog.Duration("limit", opts.SecondaryRateLimitWait))
			}))
		if err != nil {
			return nil, fmt.Errorf("failed to create rate limit waiter: %w", err)
		}
		base = rateLimitWaiter
	}
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: opts.Token})
	httpClient := &http.Client{
		Transport: &oauth2.Transport{
			Base:   base,
			Source: ts,
		},
	}

	baseURL, err := url.Parse(opts.APIURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse API URL %q: %w", opts.APIURL, err)
	}
	if !strings.HasSuffix(baseURL.Path, "/") {
		baseURL.Path += "/"
	}
	restClient := github.NewClient(httpClient)
	restClient.BaseURL = baseURL
	restClient.UserAgent = opts.UserAgent

	return &GitHubGateway{
		restClient:    restClient,
		graphqlClient: githubv4.NewEnterpriseClient(opts.GraphQLURL, httpClient),
		timeout:       opts.RequestTimeout,
		logger:        logger,
	}, nil
}

func (g *GitHubGateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// Count dispatches on the shape of path: search endpoints report an exact
// total, list endpoints are estimated from their pagination.
func (g *GitHubGateway) Count(ctx context.Context, path string) (int, error) {
	if domain.IsSearchPath(path) {
		return g.CountSearch(ctx, path)
	}
	return g.CountPages(ctx, path)
}

// CountPages estimates the number of items of a list endpoint requested with
// per_page=1. The last page number of the Link header is the count; without a
// Link header the list holds zero or one item, told apart by body size.
func (g *GitHubGateway) CountPages(ctx context.Context, path string) (int, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	req, err := g.restClient.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	var body bytes.Buffer
	resp, err := g.restClient.Do(ctx, req, &body)
	if err != nil {
		return 0, fmt.Errorf("failed to list %s: %w", path, err)
	}

	if link := resp.Header.Get("Link"); link != "" {
		count, err := LastPage(link)
		if err != nil {
			return 0, fmt.Errorf("failed to read pagination of %s: %w", path, err)
		}
		g.logger.Debug("counted list by Link header", slog.String("path", path), slog.Int("count", count))
		return count, nil
	}
	count := 0
	if body.Len() > EmptyBodyThreshold {
		count = 1
	}
	g.logger.Debug("counted list by body size", slog.String("path", path),
		slog.Int("body_bytes", body.Len()), slog.Int("count", count))
	return count, nil
}

// CountSearch returns total_count of a search endpoint.
func (g *GitHubGateway) CountSearch(ctx context.Context, path string) (int, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	req, err := g.restClient.NewRequest(http.MethodGet, path, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to build request for %s: %w", path, err)
	}
	var envelope searchEnvelope
	if _, err := g.restClient.Do(ctx, req, &envelope); err != nil {
		return 0, fmt.Errorf("failed to search %s: %w", path, err)
	}
	if envelope.TotalCount == nil {
		return 0, fmt.Errorf("failed to search %s: %w", path, ErrMissingTotal)
	}
	g.logger.Debug("counted search", slog.String("path", path), slog.Int("count", *envelope.TotalCount))
	return *envelope.TotalCount, nil
}

// Repository fetches the repository detail in a single call.
func (g *GitHubGateway) Repository(ctx context.Context, fullName string) (*domain.RepositoryMetadata, error) {
	owner, name, err := domain.SplitRepository(fullName)
	if err != nil {
		return nil, err
	}
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	repo, _, err := g.restClient.Repositories.Get(ctx, owner, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get repository %s: %w", fullName, err)
	}
	g.logger.Debug("fetched repository", slog.String("repo", fullName))
	return &domain.RepositoryMetadata{
		FullName:         repo.GetFullName(),
		Stargazers:       repo.GetStargazersCount(),
		OpenIssuesAndPRs: repo.GetOpenIssuesCount(),
		Forks:            repo.GetForksCount(),
		Subscribers:      repo.GetSubscribersCount(),
		Size:             repo.GetSize(),
		FetchedAt:        time.Now(),
	}, nil
}

// RemainingRate returns the number of core API calls left in the current window.
func (g *GitHubGateway) RemainingRate(ctx context.Context) (int, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	limits, _, err := g.restClient.RateLimit.Get(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get rate limit: %w", err)
	}
	if limits.GetCore() == nil {
		return 0, errors.New("rate limit response carries no core rate")
	}
	return limits.GetCore().Remaining, nil
}

// VerifyToken checks the token against the GraphQL API and returns the login it belongs to.
func (g *GitHubGateway) VerifyToken(ctx context.Context) (string, error) {
	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	var q viewerQuery
	if err := g.graphqlClient.Query(ctx, &q, nil); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if q.Viewer.Login == "" {
		return "", fmt.Errorf("%w: empty viewer login", ErrInvalidToken)
	}
	return string(q.Viewer.Login), nil
}
