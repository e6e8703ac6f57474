package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"PlaylistInsight/core/pipeline"
)

func TestFromEnv(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("MINIO_USE_SSL", "true")
	t.Setenv("CACHE_TTL_MINUTES", "5")
	t.Setenv("LOG_MAX_BACKUPS", "not-a-number")

	cfg := fromEnv()
	if cfg.DBDriver != "sqlite" || cfg.RedisDB != 3 || !cfg.MinioUseSSL {
		t.Errorf("fromEnv() = %+v", cfg)
	}
	if cfg.CacheTTL != 5*time.Minute {
		t.Errorf("CacheTTL = %v, want 5m", cfg.CacheTTL)
	}
	if cfg.LogMaxBackups != 5 {
		t.Errorf("LogMaxBackups = %d, want default 5", cfg.LogMaxBackups)
	}
	if cfg.ServerPort != "8080" {
		t.Errorf("ServerPort = %q, want 8080", cfg.ServerPort)
	}
}

func writePolicy(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "policy.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadPipelineEmptyPath(t *testing.T) {
	cfg, err := LoadPipeline("")
	if err != nil {
		t.Fatalf("LoadPipeline() error = %v", err)
	}
	if !reflect.DeepEqual(cfg, pipeline.DefaultConfig()) {
		t.Errorf("LoadPipeline(\"\") = %+v, want defaults", cfg)
	}
}

func TestLoadPipeline(t *testing.T) {
	path := writePolicy(t, `
normalize:
  null_tokens: ["", "-"]
  list_separator: "|"
  aliases:
    artist: [singer]
tracks:
  policy:
    - field: name
      action: drop
    - field: energy
      action: impute_mean
    - field: album
      action: fill
      value: Unknown
features: [energy, tempo]
temporal:
  granularity: year
  min_year: 1990
  max_year: 2025
bins: 20
`)

	cfg, err := LoadPipeline(path)
	if err != nil {
		t.Fatalf("LoadPipeline() error = %v", err)
	}
	wantTracks := pipeline.Policy{
		{Field: "name", Action: pipeline.ActionDrop},
		{Field: "energy", Action: pipeline.ActionImputeMean},
		{Field: "album", Action: pipeline.ActionFill, Value: "Unknown"},
	}
	if !reflect.DeepEqual(cfg.TrackPolicy, wantTracks) {
		t.Errorf("TrackPolicy = %+v, want %+v", cfg.TrackPolicy, wantTracks)
	}
	if !reflect.DeepEqual(cfg.PlaylistPolicy, pipeline.DefaultConfig().PlaylistPolicy) {
		t.Errorf("PlaylistPolicy = %+v, want default", cfg.PlaylistPolicy)
	}
	if cfg.Normalize.ListSeparator != "|" || !reflect.DeepEqual(cfg.Normalize.Aliases["artist"], []string{"singer"}) {
		t.Errorf("Normalize = %+v", cfg.Normalize)
	}
	if cfg.Temporal.Granularity != pipeline.ByYear || cfg.Temporal.MinYear != 1990 {
		t.Errorf("Temporal = %+v", cfg.Temporal)
	}
	if cfg.Stats.Bins != 20 || len(cfg.Features) != 2 {
		t.Errorf("Stats = %+v, Features = %v", cfg.Stats, cfg.Features)
	}
}

func TestLoadPipelineEnvOverride(t *testing.T) {
	t.Setenv("PIPELINE_TEMPORAL_GRANULARITY", "year")
	cfg, err := LoadPipeline(writePolicy(t, "bins: 5\n"))
	if err != nil {
		t.Fatalf("LoadPipeline() error = %v", err)
	}
	if cfg.Temporal.Granularity != pipeline.ByYear {
		t.Errorf("Granularity = %q, want year", cfg.Temporal.Granularity)
	}
}

func TestLoadPipelineErrors(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"bad action", "tracks:\n  policy:\n    - field: name\n      action: guess\n", "unknown action"},
		{"bad fill", "playlists:\n  policy:\n    - field: followers\n      action: fill\n      value: lots\n", "not a valid"},
		{"bad granularity", "temporal:\n  granularity: century\n", "granularity"},
		{"inverted years", "temporal:\n  min_year: 2000\n  max_year: 1990\n", "after max_year"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadPipeline(writePolicy(t, tt.body))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("LoadPipeline() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}

	if _, err := LoadPipeline(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("LoadPipeline(missing) error = nil")
	}
}
