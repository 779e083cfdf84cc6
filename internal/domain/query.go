package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ErrInvalidQuery reports an entity, state or label combination that no search can express.
var ErrInvalidQuery = errors.New("invalid query")

// Tier is an ordered detail level controlling how many gauges are registered per repository.
type Tier int

const (
	TierBase Tier = iota
	TierAdvanced
	TierVerbose
	TierCustom
)

var tierNames = map[Tier]string{
	TierBase:     "base",
	TierAdvanced: "advanced",
	TierVerbose:  "verbose",
	TierCustom:   "custom",
}

func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return fmt.Sprintf("tier(%d)", int(t))
}

// ParseTier parses a tier name, case-insensitively.
func ParseTier(s string) (Tier, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for tier, n := range tierNames {
		if n == name {
			return tier, nil
		}
	}
	return TierBase, fmt.Errorf("unknown detail tier %q (want base, advanced, verbose or custom)", s)
}

// Includes returns the tiers whose metrics are registered when t is selected,
// in registration order. Tiers stack: verbose and custom both carry advanced and base.
func (t Tier) Includes() []Tier {
	switch t {
	case TierBase:
		return []Tier{TierBase}
	case TierAdvanced:
		return []Tier{TierBase, TierAdvanced}
	case TierVerbose:
		return []Tier{TierBase, TierAdvanced, TierVerbose}
	case TierCustom:
		return []Tier{TierBase, TierAdvanced, TierCustom}
	}
	return nil
}

// Entity is the kind of item a search query counts.
type Entity string

const (
	EntityIssue Entity = "issue"
	EntityPR    Entity = "pr"
)

// State is the lifecycle qualifier of a search query.
type State string

const (
	StateOpen   State = "open"
	StateClosed State = "closed"
	StateMerged State = "merged"
)

// ValidateEntityState rejects combinations the search API cannot express.
func ValidateEntityState(entity Entity, state State) error {
	switch entity {
	case EntityIssue, EntityPR:
	default:
		return fmt.Errorf("%w: unknown entity type %q", ErrInvalidQuery, entity)
	}
	switch state {
	case StateOpen, StateClosed:
	case StateMerged:
		if entity != EntityPR {
			return fmt.Errorf("%w: state %q only applies to pull requests", ErrInvalidQuery, state)
		}
	default:
		return fmt.Errorf("%w: unknown state %q", ErrInvalidQuery, state)
	}
	return nil
}

// LabelQuery selects the items of one entity type in one state carrying one label.
type LabelQuery struct {
	Entity Entity
	State  State
	Label  string
}

// Validate checks that the query can be expressed as a search.
func (q LabelQuery) Validate() error {
	if err := ValidateEntityState(q.Entity, q.State); err != nil {
		return err
	}
	if strings.TrimSpace(q.Label) == "" {
		return fmt.Errorf("%w: empty label for %s/%s", ErrInvalidQuery, q.Entity, q.State)
	}
	return nil
}

// Terms returns the search qualifiers for the query, without the repo qualifier.
func (q LabelQuery) Terms() []string {
	return []string{"is:" + string(q.Entity), "is:" + string(q.State), LabelTerm(q.Label)}
}

// LabelTerm renders a label qualifier, quoting labels that contain spaces.
func LabelTerm(label string) string {
	label = strings.TrimSpace(label)
	if strings.ContainsAny(label, " \t") {
		return `label:"` + label + `"`
	}
	return "label:" + label
}

// Action is the timestamp qualifier a windowed query filters on.
type Action string

const (
	ActionCreated Action = "created"
	ActionClosed  Action = "closed"
	ActionMerged  Action = "merged"
)

// Window restricts a search to items whose action happened within Period before evaluation.
type Window struct {
	Action Action        `yaml:"action"`
	Period time.Duration `yaml:"period"`
}

// MarshalYAML writes the period in its duration form, such as "24h0m0s".
func (w Window) MarshalYAML() (any, error) {
	return struct {
		Action Action `yaml:"action"`
		Period string `yaml:"period"`
	}{w.Action, w.Period.String()}, nil
}

// Cutoff returns the oldest instant still inside the window.
func (w Window) Cutoff(now time.Time) time.Time {
	return now.Add(-w.Period).UTC().Truncate(time.Second)
}

// Filter renders the qualifier for the window as of now, e.g. "created:>2024-05-01T10:00:00Z".
func (w Window) Filter(now time.Time) string {
	return fmt.Sprintf("%s:>%s", w.Action, w.Cutoff(now).Format(time.RFC3339))
}

// SearchQuery joins the repo qualifier with the given terms.
func SearchQuery(repo string, terms ...string) string {
	parts := make([]string, 0, len(terms)+1)
	parts = append(parts, "repo:"+repo)
	for _, term := range terms {
		if term = strings.TrimSpace(term); term != "" {
			parts = append(parts, term)
		}
	}
	return strings.Join(parts, " ")
}

// SearchPath returns the issues search path for query with a page size of 1.
func SearchPath(query string) string {
	v := url.Values{}
	v.Set("per_page", "1")
	v.Set("q", query)
	return "search/issues?" + v.Encode()
}

// ListPath returns the path of a repository list endpoint with a page size of 1
// and any extra query parameters given as alternating keys and values.
func ListPath(repo, collection string, params ...string) string {
	v := url.Values{}
	v.Set("per_page", "1")
	for i := 0; i+1 < len(params); i += 2 {
		v.Set(params[i], params[i+1])
	}
	return "repos/" + repo + "/" + collection + "?" + v.Encode()
}

// IsSearchPath reports whether path addresses a search endpoint. The count
// strategy for a path is chosen by this shape alone.
func IsSearchPath(path string) bool {
	u, err := url.Parse(path)
	if err != nil {
		return false
	}
	p := strings.TrimPrefix(u.Path, "/")
	p = strings.TrimPrefix(p, "api/v3/")
	return strings.HasPrefix(p, "search/")
}
