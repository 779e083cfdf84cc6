// Package domain contains the core data structures and domain logic for the application.
package domain

import (
	"fmt"
	"strings"
	"time"
)

// RepositoryMetadata holds the aggregate counters GitHub reports for a single repository.
// A snapshot is never mutated after it is fetched; a refresh produces a new instance.
type RepositoryMetadata struct {
	FullName         string    `json:"full_name" yaml:"full_name"`
	Stargazers       int       `json:"stargazers" yaml:"stargazers"`
	OpenIssuesAndPRs int       `json:"open_issues_and_prs" yaml:"open_issues_and_prs"`
	Forks            int       `json:"forks" yaml:"forks"`
	Subscribers      int       `json:"subscribers" yaml:"subscribers"`
	Size             int       `json:"size" yaml:"size"`
	FetchedAt        time.Time `json:"fetched_at" yaml:"fetched_at"`
}

// Field selects one counter of RepositoryMetadata.
type Field string

const (
	FieldStargazers       Field = "stargazers"
	FieldOpenIssuesAndPRs Field = "open_issues_and_prs"
	FieldForks            Field = "forks"
	FieldSubscribers      Field = "subscribers"
	FieldSize             Field = "size"
)

// Value returns the counter selected by f. The second result is false for an unknown selector.
func (m *RepositoryMetadata) Value(f Field) (int, bool) {
	switch f {
	case FieldStargazers:
		return m.Stargazers, true
	case FieldOpenIssuesAndPRs:
		return m.OpenIssuesAndPRs, true
	case FieldForks:
		return m.Forks, true
	case FieldSubscribers:
		return m.Subscribers, true
	case FieldSize:
		return m.Size, true
	}
	return 0, false
}

// SplitRepository splits "owner/name" into its two parts.
func SplitRepository(fullName string) (owner, name string, err error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(fullName), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", "", fmt.Errorf("repository %q is not in owner/name form", fullName)
	}
	return owner, name, nil
}
