package config

import (
	"fmt"
	"strings"

	"PlaylistInsight/core/pipeline"
	"PlaylistInsight/core/stats"

	"github.com/spf13/viper"
)

type normalizeFile struct {
	NullTokens    []string            `mapstructure:"null_tokens"`
	ListSeparator string              `mapstructure:"list_separator"`
	Aliases       map[string][]string `mapstructure:"aliases"`
}

type temporalFile struct {
	Granularity string `mapstructure:"granularity"`
	MinYear     int    `mapstructure:"min_year"`
	MaxYear     int    `mapstructure:"max_year"`
}

// policyFile is the YAML layout of POLICY_FILE.
type policyFile struct {
	Normalize normalizeFile `mapstructure:"normalize"`
	Tracks    struct {
		Policy pipeline.Policy `mapstructure:"policy"`
	} `mapstructure:"tracks"`
	Playlists struct {
		Policy pipeline.Policy `mapstructure:"policy"`
	} `mapstructure:"playlists"`
	Features []string     `mapstructure:"features"`
	Temporal temporalFile `mapstructure:"temporal"`
	Bins     int          `mapstructure:"bins"`
}

// LoadPipeline reads the pipeline policy file at path. Tables the file
// does not set keep their defaults; an empty path returns
// pipeline.DefaultConfig(). Values can be overridden with PIPELINE_*
// environment variables, e.g. PIPELINE_TEMPORAL_GRANULARITY=year.
func LoadPipeline(path string) (pipeline.Config, error) {
	cfg := pipeline.DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	v := viper.New()
	v.SetDefault("temporal.granularity", string(cfg.Temporal.Granularity))
	v.SetDefault("temporal.min_year", 0)
	v.SetDefault("temporal.max_year", 0)
	v.SetDefault("bins", stats.DefaultBins)
	v.SetEnvPrefix("PIPELINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	v.SetConfigFile(path)

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read policy file %s: %w", path, err)
	}
	var f policyFile
	if err := v.Unmarshal(&f); err != nil {
		return cfg, fmt.Errorf("decode policy file %s: %w", path, err)
	}

	cfg.Normalize = pipeline.NormalizeConfig{
		NullTokens:    f.Normalize.NullTokens,
		ListSeparator: f.Normalize.ListSeparator,
		Aliases:       f.Normalize.Aliases,
	}
	if v.IsSet("tracks.policy") {
		cfg.TrackPolicy = f.Tracks.Policy
	}
	if v.IsSet("playlists.policy") {
		cfg.PlaylistPolicy = f.Playlists.Policy
	}
	if len(f.Features) > 0 {
		cfg.Features = f.Features
	}
	g, err := pipeline.ParseGranularity(f.Temporal.Granularity)
	if err != nil {
		return cfg, err
	}
	if f.Temporal.MinYear > 0 && f.Temporal.MaxYear > 0 && f.Temporal.MinYear > f.Temporal.MaxYear {
		return cfg, fmt.Errorf("temporal.min_year %d is after max_year %d", f.Temporal.MinYear, f.Temporal.MaxYear)
	}
	cfg.Temporal = pipeline.TemporalConfig{Granularity: g, MinYear: f.Temporal.MinYear, MaxYear: f.Temporal.MaxYear}
	cfg.Stats = stats.Options{Bins: f.Bins}

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("policy file %s: %w", path, err)
	}
	return cfg, nil
}
