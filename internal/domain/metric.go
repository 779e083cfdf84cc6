package domain

import (
	"fmt"
	"sort"
	"strings"
)

// SourceKind names where the value of a metric comes from.
type SourceKind string

const (
	// SourcePagination estimates a count from the Link header of a list endpoint.
	SourcePagination SourceKind = "pagination"
	// SourceSearch reads total_count from a search endpoint.
	SourceSearch SourceKind = "search"
	// SourceWindowed is a search whose query gets a time filter appended at evaluation time.
	SourceWindowed SourceKind = "windowed"
	// SourceCachedField reads one field of the cached repository metadata.
	SourceCachedField SourceKind = "cached-field"
	// SourceRateLimit reads the remaining API quota.
	SourceRateLimit SourceKind = "rate-limit"
)

// Tag keys attached to the exported gauges.
const (
	TagRepo  = "repo"
	TagState = "state"
	TagLabel = "label"
)

// Tag is a single key/value pair of a metric's tag set.
type Tag struct {
	Key   string `yaml:"key"`
	Value string `yaml:"value"`
}

// Tags is a tag set kept sorted by key.
type Tags []Tag

// NewTags builds a sorted tag set from alternating keys and values.
func NewTags(kv ...string) Tags {
	tags := make(Tags, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		tags = append(tags, Tag{Key: kv[i], Value: kv[i+1]})
	}
	sort.SliceStable(tags, func(i, j int) bool { return tags[i].Key < tags[j].Key })
	return tags
}

// Keys returns the tag keys in order.
func (t Tags) Keys() []string {
	keys := make([]string, len(t))
	for i, tag := range t {
		keys[i] = tag.Key
	}
	return keys
}

// Values returns the tag values in key order.
func (t Tags) Values() []string {
	values := make([]string, len(t))
	for i, tag := range t {
		values[i] = tag.Value
	}
	return values
}

// Get returns the value for key.
func (t Tags) Get(key string) (string, bool) {
	for _, tag := range t {
		if tag.Key == key {
			return tag.Value, true
		}
	}
	return "", false
}

func (t Tags) String() string {
	parts := make([]string, len(t))
	for i, tag := range t {
		parts[i] = fmt.Sprintf("%s=%q", tag.Key, tag.Value)
	}
	return "{" + strings.Join(parts, ",") + "}"
}

// MetricSpec describes one gauge: its identity and how its value is obtained.
// Specs are built once at startup and never modified afterwards.
type MetricSpec struct {
	Name        string     `yaml:"name"`
	Description string     `yaml:"description"`
	Tags        Tags       `yaml:"tags,omitempty"`
	Source      SourceKind `yaml:"source"`
	Repo        string     `yaml:"repo,omitempty"`

	// Path is the API path for pagination and search sources.
	Path string `yaml:"path,omitempty"`
	// Query holds the search terms for search and windowed sources.
	Query string `yaml:"query,omitempty"`
	// Field selects the metadata counter for cached-field sources.
	Field Field `yaml:"field,omitempty"`
	// Window is set for windowed sources only.
	Window *Window `yaml:"window,omitempty"`
}

// ID identifies a spec by name and tag set.
func (s MetricSpec) ID() string {
	return s.Name + s.Tags.String()
}
