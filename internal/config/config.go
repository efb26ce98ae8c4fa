// Package config loads repoindex's configuration: roots to scan, exclude
// patterns, enrichment opt-ins, registry/ORCID identifiers, and the store
// path. It is a thin wrapper around viper — this package only produces a
// populated struct; it does not drive any behavior itself.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Config is the full set of values a refresh, query, or export invocation
// may need. Every field has a zero value that behaves as "disabled" or
// "default," so a missing config file is never an error.
type Config struct {
	// Roots are the root specifications Discovery walks by default when a
	// CLI verb is not given an explicit --dir.
	Roots []string `mapstructure:"roots"`

	// Exclude is added to discovery's default exclude set.
	Exclude []string `mapstructure:"exclude"`

	// Database holds the store file location.
	Database DatabaseConfig `mapstructure:"database"`

	// Enrichment toggles which opt-in remote sources refresh consults.
	Enrichment EnrichmentConfig `mapstructure:"enrichment"`

	// Views are named DSL predicates available for @name expansion, in
	// addition to any passed programmatically.
	Views map[string]ViewConfig `mapstructure:"views"`

	// Tags maps a repository path to the explicit tags refresh attaches to
	// it, replacing prior explicit-source rows on each run.
	Tags map[string][]string `mapstructure:"tags"`
}

// DatabaseConfig controls where the store file lives.
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// EnrichmentConfig is the set of opt-in remote enrichment flags and the
// identifiers they need. The GitHub token is read from the environment,
// never from this struct.
type EnrichmentConfig struct {
	GitHub bool   `mapstructure:"github"`
	PyPI   bool   `mapstructure:"pypi"`
	CRAN   bool   `mapstructure:"cran"`
	Zenodo bool   `mapstructure:"zenodo"`
	ORCID  string `mapstructure:"orcid"`
}

// ViewConfig mirrors internal/view.View for config-file deserialization.
type ViewConfig struct {
	Predicate string   `mapstructure:"predicate"`
	Composed  []string `mapstructure:"composed"`
	Paths     []string `mapstructure:"paths"`
}

// Load reads configuration from (in ascending priority) defaults, the
// config file at ~/.repoindex/config.yaml (or $REPOINDEX_CONFIG), and
// REPOINDEX_-prefixed environment variables. A missing config file is not
// an error — Load returns the defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	if explicit := os.Getenv("REPOINDEX_CONFIG"); explicit != "" {
		v.SetConfigFile(explicit)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(DefaultDir())
	}

	v.SetEnvPrefix("REPOINDEX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("database.path", "")
	v.SetDefault("enrichment.github", false)
	v.SetDefault("enrichment.pypi", false)
	v.SetDefault("enrichment.cran", false)
	v.SetDefault("enrichment.zenodo", false)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// DefaultDir is ${XDG_CONFIG_HOME or ~}/.repoindex, the same root the store
// uses for its default database path.
func DefaultDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			home = "."
		}
		base = home
	}
	return filepath.Join(base, ".repoindex")
}
