package usecase

import (
	"log/slog"
	"strings"
	"time"

	"github.com/naka-gawa/github-metrics/internal/domain"
)

// Metric names.
const (
	MetricStars            = "gh_repo_stars"
	MetricOpenIssuesAndPRs = "gh_repo_open_issues_and_prs"
	MetricForks            = "gh_repo_forks"
	MetricSubscribers      = "gh_repo_subscribers"
	MetricSize             = "gh_repo_size"
	MetricRateRemaining    = "gh_rate_remaining"

	MetricContributors = "gh_repo_contributors"
	MetricCommits      = "gh_repo_commits"
	MetricTags         = "gh_repo_tags"
	MetricOpenPRs      = "gh_repo_open_prs"
	MetricClosedPRs    = "gh_repo_closed_prs"
	MetricMergedPRs    = "gh_repo_merged_prs"
	MetricOpenIssues   = "gh_repo_open_issues"
	MetricClosedIssues = "gh_repo_closed_issues"

	MetricIssuesByLabel = "gh_repo_issues_by_label"
	MetricPRsByLabel    = "gh_repo_prs_by_label"
	MetricCustomIssues  = "gh_repo_custom_issues"
	MetricCustomPRs     = "gh_repo_custom_prs"
)

// RecentWindow is the period of the "in the last 24h" gauges.
const RecentWindow = 24 * time.Hour

// LabelSet configures label-scoped gauges: one per state and label for the entity.
type LabelSet struct {
	Entity domain.Entity
	States []domain.State
	Labels []string
}

// Queries expands the set into its entity × state × label combinations.
func (s LabelSet) Queries() []domain.LabelQuery {
	queries := make([]domain.LabelQuery, 0, len(s.States)*len(s.Labels))
	for _, state := range s.States {
		for _, label := range s.Labels {
			queries = append(queries, domain.LabelQuery{Entity: s.Entity, State: state, Label: strings.TrimSpace(label)})
		}
	}
	return queries
}

// CustomQuery is a user supplied search fragment counted for one entity and state.
type CustomQuery struct {
	Entity domain.Entity
	State  domain.State
	Query  string
}

type windowedMetric struct {
	name        string
	description string
	entity      domain.Entity
	action      domain.Action
}

var recentMetrics = []windowedMetric{
	{"gh_repo_issues_created_24h", "Number of issues created in the last 24 hours for given repository", domain.EntityIssue, domain.ActionCreated},
	{"gh_repo_issues_closed_24h", "Number of issues closed in the last 24 hours for given repository", domain.EntityIssue, domain.ActionClosed},
	{"gh_repo_prs_created_24h", "Number of PRs created in the last 24 hours for given repository", domain.EntityPR, domain.ActionCreated},
	{"gh_repo_prs_closed_24h", "Number of PRs closed in the last 24 hours for given repository", domain.EntityPR, domain.ActionClosed},
	{"gh_repo_prs_merged_24h", "Number of PRs merged in the last 24 hours for given repository", domain.EntityPR, domain.ActionMerged},
}

// CatalogBuilder turns the configured detail tier into metric specs.
type CatalogBuilder struct {
	tier          domain.Tier
	labelSets     []LabelSet
	customQueries []CustomQuery
	logger        *slog.Logger
}

// NewCatalogBuilder creates a builder for tier. Label sets feed the verbose
// tier and custom queries feed the custom tier; each is ignored otherwise.
func NewCatalogBuilder(tier domain.Tier, labelSets []LabelSet, customQueries []CustomQuery, logger *slog.Logger) *CatalogBuilder {
	return &CatalogBuilder{
		tier:          tier,
		labelSets:     labelSets,
		customQueries: customQueries,
		logger:        logger.With("component", "catalog"),
	}
}

// Build returns the specs of every repository followed by the single rate-limit spec.
// Specs sharing a name and tag set are kept once.
func (b *CatalogBuilder) Build(repos ...string) []domain.MetricSpec {
	var specs []domain.MetricSpec
	for _, repo := range repos {
		specs = append(specs, b.BuildRepository(repo)...)
	}
	specs = append(specs, domain.MetricSpec{
		Name:        MetricRateRemaining,
		Description: "Number of API queries remaining in the current window",
		Source:      domain.SourceRateLimit,
	})
	return dedupe(specs, b.logger)
}

// BuildRepository returns the specs of one repository for every included tier.
func (b *CatalogBuilder) BuildRepository(repo string) []domain.MetricSpec {
	repo = strings.TrimSpace(repo)
	if _, _, err := domain.SplitRepository(repo); err != nil {
		b.logger.Error("skipping repository", slog.String("repo", repo), slog.Any("error", err))
		return nil
	}

	var specs []domain.MetricSpec
	for _, tier := range b.tier.Includes() {
		switch tier {
		case domain.TierBase:
			specs = append(specs, baseSpecs(repo)...)
		case domain.TierAdvanced:
			specs = append(specs, advancedSpecs(repo)...)
		case domain.TierVerbose:
			specs = append(specs, b.verboseSpecs(repo)...)
		case domain.TierCustom:
			specs = append(specs, b.customSpecs(repo)...)
		}
	}
	b.logger.Info("built repository catalog",
		slog.String("repo", repo), slog.String("tier", b.tier.String()), slog.Int("metrics", len(specs)))
	return specs
}

func baseSpecs(repo string) []domain.MetricSpec {
	field := func(name, description string, f domain.Field) domain.MetricSpec {
		return domain.MetricSpec{
			Name:        name,
			Description: description,
			Tags:        domain.NewTags(domain.TagRepo, repo),
			Source:      domain.SourceCachedField,
			Repo:        repo,
			Field:       f,
		}
	}
	return []domain.MetricSpec{
		field(MetricStars, "Total number of Stars for given repository", domain.FieldStargazers),
		field(MetricOpenIssuesAndPRs, "Total number of open issues and PRs for given repository", domain.FieldOpenIssuesAndPRs),
		field(MetricForks, "Total number of forks for given repository", domain.FieldForks),
		field(MetricSubscribers, "Total number of watchers/subscribers for given repository", domain.FieldSubscribers),
		field(MetricSize, "Size in kB for given repository", domain.FieldSize),
	}
}

// countSpec binds a path to a gauge. The source kind follows the path shape.
func countSpec(repo, name, description, path, query string) domain.MetricSpec {
	source := domain.SourcePagination
	if domain.IsSearchPath(path) {
		source = domain.SourceSearch
	}
	return domain.MetricSpec{
		Name:        name,
		Description: description,
		Tags:        domain.NewTags(domain.TagRepo, repo),
		Source:      source,
		Repo:        repo,
		Path:        path,
		Query:       query,
	}
}

func searchSpec(repo, name, description string, terms ...string) domain.MetricSpec {
	query := domain.SearchQuery(repo, terms...)
	return countSpec(repo, name, description, domain.SearchPath(query), query)
}

func advancedSpecs(repo string) []domain.MetricSpec {
	return []domain.MetricSpec{
		countSpec(repo, MetricContributors, "Total number of contributors for given repository", domain.ListPath(repo, "contributors"), ""),
		countSpec(repo, MetricCommits, "Total number of commits for given repository", domain.ListPath(repo, "commits"), ""),
		countSpec(repo, MetricTags, "Total number of tags/releases for given repository", domain.ListPath(repo, "tags"), ""),
		countSpec(repo, MetricOpenPRs, "Total number of open PRs for given repository", domain.ListPath(repo, "pulls"), ""),
		countSpec(repo, MetricClosedPRs, "Total number of closed PRs for given repository", domain.ListPath(repo, "pulls", "state", "closed"), ""),
		searchSpec(repo, MetricMergedPRs, "Total number of merged PRs for given repository", "is:pr", "is:merged"),
		searchSpec(repo, MetricOpenIssues, "Total number of open issues for given repository", "is:issue", "is:open"),
		searchSpec(repo, MetricClosedIssues, "Total number of closed issues for given repository", "is:issue", "is:closed"),
	}
}

func (b *CatalogBuilder) verboseSpecs(repo string) []domain.MetricSpec {
	var specs []domain.MetricSpec
	for _, set := range b.labelSets {
		for _, q := range set.Queries() {
			if err := q.Validate(); err != nil {
				b.logger.Error("skipping label query", slog.String("repo", repo), slog.Any("error", err))
				continue
			}
			name, description := MetricIssuesByLabel, "Number of issues with given label and state for given repository"
			if q.Entity == domain.EntityPR {
				name, description = MetricPRsByLabel, "Number of PRs with given label and state for given repository"
			}
			spec := searchSpec(repo, name, description, q.Terms()...)
			spec.Tags = domain.NewTags(domain.TagRepo, repo, domain.TagState, string(q.State), domain.TagLabel, q.Label)
			specs = append(specs, spec)
		}
	}

	for _, m := range recentMetrics {
		query := domain.SearchQuery(repo, "is:"+string(m.entity))
		specs = append(specs, domain.MetricSpec{
			Name:        m.name,
			Description: m.description,
			Tags:        domain.NewTags(domain.TagRepo, repo),
			Source:      domain.SourceWindowed,
			Repo:        repo,
			Query:       query,
			Window:      &domain.Window{Action: m.action, Period: RecentWindow},
		})
	}
	return specs
}

func (b *CatalogBuilder) customSpecs(repo string) []domain.MetricSpec {
	var specs []domain.MetricSpec
	for _, c := range b.customQueries {
		fragment := normalizeFragment(c.Query)
		if fragment == "" {
			b.logger.Warn("skipping empty custom query", slog.String("repo", repo))
			continue
		}
		if err := domain.ValidateEntityState(c.Entity, c.State); err != nil {
			b.logger.Error("skipping custom query", slog.String("repo", repo),
				slog.String("query", fragment), slog.Any("error", err))
			continue
		}
		name, description := MetricCustomIssues, "Number of issues matching given query and state for given repository"
		if c.Entity == domain.EntityPR {
			name, description = MetricCustomPRs, "Number of PRs matching given query and state for given repository"
		}
		spec := searchSpec(repo, name, description, "is:"+string(c.Entity), "is:"+string(c.State), fragment)
		spec.Tags = domain.NewTags(domain.TagRepo, repo, domain.TagState, string(c.State), domain.TagLabel, fragment)
		specs = append(specs, spec)
	}
	return specs
}

func dedupe(specs []domain.MetricSpec, logger *slog.Logger) []domain.MetricSpec {
	seen := make(map[string]struct{}, len(specs))
	out := specs[:0]
	for _, spec := range specs {
		id := spec.ID()
		if _, ok := seen[id]; ok {
			logger.Warn("dropping duplicate metric", slog.String("metric", id))
			continue
		}
		seen[id] = struct{}{}
		out = append(out, spec)
	}
	return out
}

// normalizeFragment reads '+' as a space, the way GitHub search URLs write
// qualifiers, and collapses runs of whitespace.
func normalizeFragment(q string) string {
	return strings.Join(strings.Fields(strings.ReplaceAll(q, "+", " ")), " ")
}
