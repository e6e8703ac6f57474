package pipeline

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"PlaylistInsight/core/stats"
	"PlaylistInsight/model"
)

// Granularity is the temporal bucket width.
type Granularity string

const (
	ByYear   Granularity = "year"
	ByDecade Granularity = "decade"
)

// ParseGranularity accepts "year" or "decade", case-insensitively.
func ParseGranularity(s string) (Granularity, error) {
	switch g := Granularity(strings.ToLower(strings.TrimSpace(s))); g {
	case ByYear, ByDecade:
		return g, nil
	case "":
		return ByDecade, nil
	}
	return "", fmt.Errorf("unknown granularity %q (want year or decade)", s)
}

// TemporalConfig configures GroupByRelease.
type TemporalConfig struct {
	Granularity Granularity   `json:"granularity"`
	MinYear     int           `json:"minYear,omitempty"` // 0 = unbounded
	MaxYear     int           `json:"maxYear,omitempty"` // 0 = unbounded
	Features    []string      `json:"features,omitempty"`
	Stats       stats.Options `json:"-"`
}

// TemporalGroups maps bucket labels to per-bucket aggregates.
type TemporalGroups struct {
	Granularity Granularity              `json:"granularity"`
	Labels      []string                 `json:"labels"`
	Buckets     map[string]stats.Summary `json:"buckets"`
	Undated     int                      `json:"undated"`
	OutOfRange  int                      `json:"outOfRange"`
}

// BucketLabel returns the label of a year: "1987" by year, "1980s" by decade.
func BucketLabel(year int, g Granularity) string {
	if g == ByYear {
		return strconv.Itoa(year)
	}
	return fmt.Sprintf("%ds", year-year%10)
}

// GroupByRelease buckets tracks by release year and aggregates each bucket.
// Tracks without a release date are counted as undated and excluded.
func GroupByRelease(tracks []model.Track, cfg TemporalConfig) TemporalGroups {
	g := cfg.Granularity
	if g != ByYear {
		g = ByDecade
	}
	features := cfg.Features
	if len(features) == 0 {
		features = DefaultFeatures
	}

	groups := TemporalGroups{Granularity: g, Buckets: make(map[string]stats.Summary)}
	members := make(map[string][]model.Track)
	start := make(map[string]int)
	for _, t := range tracks {
		d, ok := t.ReleaseDate.Get()
		if !ok || d.Year <= 0 {
			groups.Undated++
			continue
		}
		if (cfg.MinYear > 0 && d.Year < cfg.MinYear) || (cfg.MaxYear > 0 && d.Year > cfg.MaxYear) {
			groups.OutOfRange++
			continue
		}
		label := BucketLabel(d.Year, g)
		if _, ok := members[label]; !ok {
			groups.Labels = append(groups.Labels, label)
			start[label] = d.Year
			if g == ByDecade {
				start[label] = d.Year - d.Year%10
			}
		}
		members[label] = append(members[label], t)
	}

	sort.Slice(groups.Labels, func(i, j int) bool {
		return start[groups.Labels[i]] < start[groups.Labels[j]]
	})
	for _, label := range groups.Labels {
		groups.Buckets[label] = stats.Aggregate(TrackColumns(members[label], features), cfg.Stats)
	}
	return groups
}
