package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTier_Includes(t *testing.T) {
	testCases := []struct {
		name     string
		tier     Tier
		expected []Tier
	}{
		{name: "base only", tier: TierBase, expected: []Tier{TierBase}},
		{name: "advanced stacks on base", tier: TierAdvanced, expected: []Tier{TierBase, TierAdvanced}},
		{name: "verbose stacks on advanced", tier: TierVerbose, expected: []Tier{TierBase, TierAdvanced, TierVerbose}},
		{name: "custom replaces verbose", tier: TierCustom, expected: []Tier{TierBase, TierAdvanced, TierCustom}},
		{name: "unknown tier", tier: Tier(42), expected: nil},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, tc.tier.Includes())
		})
	}
}

func TestParseTier(t *testing.T) {
	tier, err := ParseTier(" Verbose ")
	require.NoError(t, err)
	assert.Equal(t, TierVerbose, tier)
	assert.Equal(t, "verbose", tier.String())

	_, err = ParseTier("everything")
	assert.Error(t, err)
}

func TestValidateEntityState(t *testing.T) {
	assert.NoError(t, ValidateEntityState(EntityPR, StateMerged))
	assert.NoError(t, ValidateEntityState(EntityIssue, StateClosed))
	assert.ErrorIs(t, ValidateEntityState(EntityIssue, StateMerged), ErrInvalidQuery)
	assert.Error(t, ValidateEntityState("discussion", StateOpen))
	assert.Error(t, ValidateEntityState(EntityPR, "draft"))
}

func TestLabelQuery(t *testing.T) {
	q := LabelQuery{Entity: EntityIssue, State: StateOpen, Label: "good first issue"}
	require.NoError(t, q.Validate())
	assert.Equal(t, []string{"is:issue", "is:open", `label:"good first issue"`}, q.Terms())

	assert.ErrorIs(t, LabelQuery{Entity: EntityIssue, State: StateOpen, Label: "  "}.Validate(), ErrInvalidQuery)
}

func TestSearchPath(t *testing.T) {
	query := SearchQuery("quarkusio/quarkus", "is:pr", "is:open", "", "label:kind/bug")
	assert.Equal(t, "repo:quarkusio/quarkus is:pr is:open label:kind/bug", query)
	assert.Equal(t,
		"search/issues?per_page=1&q=repo%3Aquarkusio%2Fquarkus+is%3Apr+is%3Aopen+label%3Akind%2Fbug",
		SearchPath(query))
}

func TestListPath(t *testing.T) {
	assert.Equal(t, "repos/a/b/pulls?per_page=1", ListPath("a/b", "pulls"))
	assert.Equal(t, "repos/a/b/pulls?per_page=1&state=closed", ListPath("a/b", "pulls", "state", "closed"))
}

func TestIsSearchPath(t *testing.T) {
	testCases := []struct {
		path     string
		expected bool
	}{
		{path: "search/issues?q=repo:a/b", expected: true},
		{path: "/search/issues", expected: true},
		{path: "https://api.github.com/search/issues?per_page=1", expected: true},
		{path: "https://ghe.example.com/api/v3/search/issues", expected: true},
		{path: "repos/a/b/pulls?per_page=1", expected: false},
		{path: "repos/search/search/pulls", expected: false},
		{path: "search", expected: false},
	}
	for _, tc := range testCases {
		t.Run(tc.path, func(t *testing.T) {
			assert.Equal(t, tc.expected, IsSearchPath(tc.path))
		})
	}
}

func TestWindow_Filter(t *testing.T) {
	w := Window{Action: ActionMerged, Period: 24 * time.Hour}
	now := time.Date(2024, 5, 2, 10, 30, 15, 500, time.FixedZone("CEST", 2*60*60))
	assert.Equal(t, "merged:>2024-05-01T08:30:15Z", w.Filter(now))
	assert.NotEqual(t, w.Filter(now), w.Filter(now.Add(time.Minute)))
}

func TestTags(t *testing.T) {
	tags := NewTags(TagRepo, "a/b", TagLabel, "bug")
	assert.Equal(t, []string{"label", "repo"}, tags.Keys())
	assert.Equal(t, []string{"bug", "a/b"}, tags.Values())
	v, ok := tags.Get(TagRepo)
	assert.True(t, ok)
	assert.Equal(t, "a/b", v)

	spec := MetricSpec{Name: "gh_repo_stars", Tags: NewTags(TagRepo, "a/b")}
	assert.Equal(t, `gh_repo_stars{repo="a/b"}`, spec.ID())
}

func TestRepositoryMetadata_Value(t *testing.T) {
	m := &RepositoryMetadata{Stargazers: 1, OpenIssuesAndPRs: 2, Forks: 3, Subscribers: 4, Size: 5}
	for field, expected := range map[Field]int{
		FieldStargazers: 1, FieldOpenIssuesAndPRs: 2, FieldForks: 3, FieldSubscribers: 4, FieldSize: 5,
	} {
		v, ok := m.Value(field)
		assert.True(t, ok)
		assert.Equal(t, expected, v)
	}
	_, ok := m.Value("watchers")
	assert.False(t, ok)
}

func TestSplitRepository(t *testing.T) {
	owner, name, err := SplitRepository("quarkusio/quarkus")
	require.NoError(t, err)
	assert.Equal(t, "quarkusio", owner)
	assert.Equal(t, "quarkus", name)

	for _, bad := range []string{"quarkus", "/quarkus", "quarkusio/", "a/b/c"} {
		_, _, err := SplitRepository(bad)
		assert.Error(t, err, bad)
	}
}
