// Package config loads the exporter configuration from an optional YAML file
// and environment variables.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"github.com/naka-gawa/github-metrics/internal/domain"
	"github.com/naka-gawa/github-metrics/internal/gateway"
	"github.com/naka-gawa/github-metrics/internal/logging"
	"github.com/naka-gawa/github-metrics/internal/scheduler"
	"github.com/naka-gawa/github-metrics/internal/tracing"
	"github.com/naka-gawa/github-metrics/internal/usecase"
)

// Config is the complete exporter configuration.
type Config struct {
	GitHub GitHubConfig `yaml:"github"`
	// Repos are the monitored repositories in owner/name form.
	Repos  []string            `yaml:"repos" env:"GH_REPOS" env-default:"quarkusio/quarkus,quarkusio/quarkus-quickstarts,quarkusio/quarkusio.github.io"`
	Detail string              `yaml:"detail" env:"GH_DETAIL" env-default:"base"`
	Cache  CacheConfig         `yaml:"cache"`
	Labels []LabelSetConfig    `yaml:"labels"`
	Custom []CustomQueryConfig `yaml:"custom"`
	Server ServerConfig        `yaml:"server"`

	Logging logging.Config `yaml:"logging"`
	Tracing tracing.Config `yaml:"tracing"`
}

// GitHubConfig holds API access settings.
type GitHubConfig struct {
	Token                  string        `yaml:"token" env:"GH_TOKEN,GITHUB_TOKEN"`
	APIURL                 string        `yaml:"api_url" env:"GH_API_URL" env-default:"https://api.github.com/"`
	GraphQLURL             string        `yaml:"graphql_url" env:"GH_GRAPHQL_URL" env-default:"https://api.github.com/graphql"`
	UserAgent              string        `yaml:"user_agent" env:"GH_USER_AGENT" env-default:"github-metrics"`
	RequestTimeout         time.Duration `yaml:"request_timeout" env:"GH_REQUEST_TIMEOUT" env-default:"10s"`
	SecondaryRateLimitWait time.Duration `yaml:"secondary_rate_limit_wait" env:"GH_SECONDARY_RATE_LIMIT_WAIT"`
}

type CacheConfig struct {
	FlushPeriod time.Duration `yaml:"flush_period" env:"GH_CACHE_FLUSH_PERIOD" env-default:"5m"`
}

type ServerConfig struct {
	Listen                   string `yaml:"listen" env:"GH_LISTEN" env-default:":8080"`
	MetricsPath              string `yaml:"metrics_path" env:"GH_METRICS_PATH" env-default:"/metrics"`
	DebugPath                string `yaml:"debug_path" env:"GH_DEBUG_PATH" env-default:"/gh"`
	MaxConcurrentEvaluations int    `yaml:"max_concurrent_evaluations" env:"GH_MAX_CONCURRENT_EVALUATIONS" env-default:"8"`
}

// LabelSetConfig lists the labels counted per state for one entity type.
type LabelSetConfig struct {
	Entity string   `yaml:"entity"`
	States []string `yaml:"states"`
	Labels []string `yaml:"labels"`
}

// CustomQueryConfig is a search fragment counted for one entity type and state.
// Qualifiers in Query are separated by spaces; a '+' is read as a space.
type CustomQueryConfig struct {
	Entity string `yaml:"entity"`
	State  string `yaml:"state"`
	Query  string `yaml:"query"`
}

type loadOptions struct {
	skipToken bool
}

// LoadOption customizes Load.
type LoadOption func(*loadOptions)

// WithoutToken accepts a configuration without a GitHub token, for commands
// that never call the API.
func WithoutToken() LoadOption {
	return func(o *loadOptions) { o.skipToken = true }
}

// Load reads path when it is not empty, applies environment overrides and
// defaults, then validates the result.
func Load(path string, opts ...LoadOption) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}
	var cfg Config
	if path != "" {
		if err := cleanenv.ReadConfig(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("failed to read config from environment: %w", err)
	}
	cfg.normalize()
	if err := cfg.validate(!o.skipToken); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	repos := c.Repos[:0]
	for _, r := range c.Repos {
		if r = strings.TrimSpace(r); r != "" {
			repos = append(repos, r)
		}
	}
	c.Repos = repos
	c.Detail = strings.ToLower(strings.TrimSpace(c.Detail))
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	return c.validate(true)
}

func (c *Config) validate(requireToken bool) error {
	var errs []error
	if requireToken && c.GitHub.Token == "" {
		errs = append(errs, errors.New("github.token (GH_TOKEN) is required"))
	}
	if c.GitHub.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("github.request_timeout must be positive, got %v", c.GitHub.RequestTimeout))
	}
	if c.GitHub.SecondaryRateLimitWait < 0 {
		errs = append(errs, fmt.Errorf("github.secondary_rate_limit_wait must not be negative, got %v", c.GitHub.SecondaryRateLimitWait))
	}
	if len(c.Repos) == 0 {
		errs = append(errs, errors.New("repos must list at least one repository"))
	}
	for _, r := range c.Repos {
		if _, _, err := domain.SplitRepository(r); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := domain.ParseTier(c.Detail); err != nil {
		errs = append(errs, err)
	}
	if c.Cache.FlushPeriod < scheduler.MinFlushPeriod {
		errs = append(errs, fmt.Errorf("cache.flush_period must be at least %v, got %v", scheduler.MinFlushPeriod, c.Cache.FlushPeriod))
	}
	if c.Server.MaxConcurrentEvaluations < 1 {
		errs = append(errs, fmt.Errorf("server.max_concurrent_evaluations must be at least 1, got %d", c.Server.MaxConcurrentEvaluations))
	}
	if !strings.HasPrefix(c.Server.MetricsPath, "/") || !strings.HasPrefix(c.Server.DebugPath, "/") {
		errs = append(errs, errors.New("server.metrics_path and server.debug_path must start with /"))
	} else if c.Server.MetricsPath == c.Server.DebugPath {
		errs = append(errs, errors.New("server.metrics_path and server.debug_path must differ"))
	}
	if err := c.Tracing.Validate(); err != nil {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}

// Tier returns the parsed detail tier.
func (c *Config) Tier() (domain.Tier, error) {
	return domain.ParseTier(c.Detail)
}

// GatewayOptions returns the GitHub client settings.
func (c *Config) GatewayOptions() gateway.Options {
	return gateway.Options{
		Token:                  c.GitHub.Token,
		APIURL:                 c.GitHub.APIURL,
		GraphQLURL:             c.GitHub.GraphQLURL,
		UserAgent:              c.GitHub.UserAgent,
		RequestTimeout:         c.GitHub.RequestTimeout,
		SecondaryRateLimitWait: c.GitHub.SecondaryRateLimitWait,
	}
}

// LabelSets converts the label configuration. Entity and state names are
// passed through as written; the catalog builder rejects the invalid ones.
func (c *Config) LabelSets() []usecase.LabelSet {
	sets := make([]usecase.LabelSet, 0, len(c.Labels))
	for _, l := range c.Labels {
		states := make([]domain.State, len(l.States))
		for i, s := range l.States {
			states[i] = domain.State(strings.ToLower(strings.TrimSpace(s)))
		}
		sets = append(sets, usecase.LabelSet{
			Entity: domain.Entity(strings.ToLower(strings.TrimSpace(l.Entity))),
			States: states,
			Labels: l.Labels,
		})
	}
	return sets
}

// CustomQueries converts the custom query configuration.
func (c *Config) CustomQueries() []usecase.CustomQuery {
	queries := make([]usecase.CustomQuery, 0, len(c.Custom))
	for _, q := range c.Custom {
		queries = append(queries, usecase.CustomQuery{
			Entity: domain.Entity(strings.ToLower(strings.TrimSpace(q.Entity))),
			State:  domain.State(strings.ToLower(strings.TrimSpace(q.State))),
			Query:  q.Query,
		})
	}
	return queries
}
