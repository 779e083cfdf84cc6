package gateway

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestGateway creates a GitHubGateway that communicates with a mock HTTP server.
func setupTestGateway(t *testing.T, handler http.Handler) (*GitHubGateway, *httptest.Server) {
	server := httptest.NewServer(handler)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gateway, err := NewGitHubGateway(Options{
		Token:          "test-token",
		APIURL:         server.URL,
		GraphQLURL:     server.URL + "/graphql",
		RequestTimeout: 2 * time.Second,
	}, logger)
	require.NoError(t, err)

	return gateway, server
}

func TestGitHubGateway_CountPages(t *testing.T) {
	testCases := []struct {
		name           string
		handlerFunc    func(w http.ResponseWriter, r *http.Request)
		expectedCount  int
		expectError    bool
		expectedErrMsg string
	}{
		{
			name: "happy path - last relation of Link header is the count",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Link", `<https://api.github.com/repositories/139914932/pulls?per_page=1&page=2>; rel="next", `+
					`<https://api.github.com/repositories/139914932/pulls?per_page=1&page=37>; rel="last"`)
				fmt.Fprint(w, `[{"id": 1, "number": 1, "title": "first"}]`)
			},
			expectedCount: 37,
		},
		{
			name: "no Link header and empty list",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `[]`)
			},
			expectedCount: 0,
		},
		{
			name: "no Link header and body exactly at the threshold",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, strings.Repeat(" ", EmptyBodyThreshold-2)+`[]`)
			},
			expectedCount: 0,
		},
		{
			name: "no Link header and body one byte above the threshold",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, strings.Repeat(" ", EmptyBodyThreshold-1)+`[]`)
			},
			expectedCount: 1,
		},
		{
			name: "no Link header and a single item",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				fmt.Fprint(w, `[{"id": 1, "number": 1, "title": "the only pull request"}]`)
			},
			expectedCount: 1,
		},
		{
			name: "error case - Link header without a usable last page",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Link", `<https://api.github.com/repositories/1/pulls?per_page=1&page=abc>; rel="last"`)
				fmt.Fprint(w, `[{"id": 1}]`)
			},
			expectError:    true,
			expectedErrMsg: "malformed Link header",
		},
		{
			name: "error case - GitHub API returns an error",
			handlerFunc: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
				fmt.Fprint(w, `{"message": "Internal Server Error"}`)
			},
			expectError:    true,
			expectedErrMsg: "failed to list",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gateway, server := setupTestGateway(t, http.HandlerFunc(tc.handlerFunc))
			defer server.Close()
			count, err := gateway.CountPages(context.Background(), "repos/org/repo/pulls?per_page=1")
			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
				assert.Zero(t, count)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedCount, count)
			}
		})
	}
}

func TestGitHubGateway_CountSearch(t *testing.T) {
	testCases := []struct {
		name           string
		responseBody   string
		expectedCount  int
		expectError    bool
		expectedErrMsg string
	}{
		{
			name:          "happy path - total_count is read from the envelope",
			responseBody:  `{"total_count": 2694, "incomplete_results": false, "items": [{"number": 1}]}`,
			expectedCount: 2694,
		},
		{
			name:          "zero results",
			responseBody:  `{"total_count": 0, "incomplete_results": false, "items": []}`,
			expectedCount: 0,
		},
		{
			name:           "error case - envelope without total_count",
			responseBody:   `{"items": []}`,
			expectError:    true,
			expectedErrMsg: "no total_count",
		},
		{
			name:           "error case - body is not JSON",
			responseBody:   `<html>`,
			expectError:    true,
			expectedErrMsg: "failed to search",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/search/issues", r.URL.Path)
				assert.Equal(t, "repo:org/repo is:issue is:closed", r.URL.Query().Get("q"))
				w.Header().Set("Content-Type", "application/json")
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			count, err := gateway.CountSearch(context.Background(),
				"search/issues?per_page=1&q=repo%3Aorg%2Frepo+is%3Aissue+is%3Aclosed")
			if tc.expectError {
				assert.Error(t, err)
				assert.Contains(t, err.Error(), tc.expectedErrMsg)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedCount, count)
			}
		})
	}
}

// TestGitHubGateway_Count checks that the strategy follows the path shape.
func TestGitHubGateway_Count(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/search/issues", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"total_count": 12}`)
	})
	mux.HandleFunc("/repos/org/repo/tags", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("per_page"))
		w.Header().Set("Link", `<https://api.github.com/repos/org/repo/tags?per_page=1&page=2>; rel="next", `+
			`<https://api.github.com/repos/org/repo/tags?per_page=1&page=5>; rel="last"`)
		fmt.Fprint(w, `[{"name": "v1.0.0"}]`)
	})
	gateway, server := setupTestGateway(t, mux)
	defer server.Close()

	count, err := gateway.Count(context.Background(), "search/issues?per_page=1&q=repo%3Aorg%2Frepo")
	require.NoError(t, err)
	assert.Equal(t, 12, count)

	count, err = gateway.Count(context.Background(), "repos/org/repo/tags?per_page=1")
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestGitHubGateway_RequestHeaders(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
		assert.Equal(t, DefaultUserAgent, r.Header.Get("User-Agent"))
		fmt.Fprint(w, `[]`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()

	_, err := gateway.CountPages(context.Background(), "repos/org/repo/commits?per_page=1")
	assert.NoError(t, err)
}

func TestGitHubGateway_RequestTimeout(t *testing.T) {
	release := make(chan struct{})
	handler := func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}
	server := httptest.NewServer(http.HandlerFunc(handler))
	defer server.Close()
	defer close(release)

	gateway, err := NewGitHubGateway(Options{
		Token:          "test-token",
		APIURL:         server.URL,
		RequestTimeout: 50 * time.Millisecond,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)

	start := time.Now()
	_, err = gateway.CountPages(context.Background(), "repos/org/repo/pulls?per_page=1")
	assert.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGitHubGateway_Repository(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/repos/quarkusio/quarkus", r.URL.Path)
		fmt.Fprint(w, `{"full_name": "quarkusio/quarkus", "stargazers_count": 13000, "open_issues_count": 2500,
			"forks_count": 2600, "subscribers_count": 250, "size": 250000}`)
	}
	gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
	defer server.Close()

	md, err := gateway.Repository(context.Background(), "quarkusio/quarkus")
	require.NoError(t, err)
	assert.Equal(t, "quarkusio/quarkus", md.FullName)
	assert.Equal(t, 13000, md.Stargazers)
	assert.Equal(t, 2500, md.OpenIssuesAndPRs)
	assert.Equal(t, 2600, md.Forks)
	assert.Equal(t, 250, md.Subscribers)
	assert.Equal(t, 250000, md.Size)
	assert.False(t, md.FetchedAt.IsZero())

	_, err = gateway.Repository(context.Background(), "not-a-repo")
	assert.Error(t, err)
}

func TestGitHubGateway_RemainingRate(t *testing.T) {
	testCases := []struct {
		name          string
		status        int
		responseBody  string
		expectedCount int
		expectError   bool
	}{
		{
			name:          "happy path",
			status:        http.StatusOK,
			responseBody:  `{"resources": {"core": {"limit": 5000, "remaining": 4321, "reset": 1700000000}}, "rate": {"limit": 5000, "remaining": 4321}}`,
			expectedCount: 4321,
		},
		{
			name:         "error case - unauthorized",
			status:       http.StatusUnauthorized,
			responseBody: `{"message": "Bad credentials"}`,
			expectError:  true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/rate_limit", r.URL.Path)
				w.WriteHeader(tc.status)
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			remaining, err := gateway.RemainingRate(context.Background())
			if tc.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedCount, remaining)
			}
		})
	}
}

func TestGitHubGateway_VerifyToken(t *testing.T) {
	testCases := []struct {
		name          string
		responseBody  string
		expectedLogin string
		expectError   bool
	}{
		{
			name:          "happy path",
			responseBody:  `{"data": {"viewer": {"login": "octocat"}}}`,
			expectedLogin: "octocat",
		},
		{
			name:         "error case - token rejected",
			responseBody: `{"errors": [{"message": "Bad credentials"}]}`,
			expectError:  true,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			handler := func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/graphql", r.URL.Path)
				body, err := io.ReadAll(r.Body)
				require.NoError(t, err)
				assert.Contains(t, string(body), "viewer")
				fmt.Fprint(w, tc.responseBody)
			}
			gateway, server := setupTestGateway(t, http.HandlerFunc(handler))
			defer server.Close()

			login, err := gateway.VerifyToken(context.Background())
			if tc.expectError {
				assert.ErrorIs(t, err, ErrInvalidToken)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedLogin, login)
			}
		})
	}
}

func TestNewGitHubGateway_EmptyToken(t *testing.T) {
	_, err := NewGitHubGateway(Options{}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, err)
}
