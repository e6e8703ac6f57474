package pipeline

import (
	"time"

	"PlaylistInsight/core/stats"
	"PlaylistInsight/logger"
	"PlaylistInsight/model"
)

// Config 流水线配置，由调用方显式传入各阶段
type Config struct {
	Normalize      NormalizeConfig `json:"normalize"`
	TrackPolicy    Policy          `json:"trackPolicy"`
	PlaylistPolicy Policy          `json:"playlistPolicy"`
	Features       []string        `json:"features"`
	Temporal       TemporalConfig  `json:"temporal"`
	Stats          stats.Options   `json:"stats"`
}

// DefaultConfig returns the default policy tables.
func DefaultConfig() Config {
	return Config{
		TrackPolicy: Policy{
			{Field: TrackName, Action: ActionDrop},
			{Field: TrackArtist, Action: ActionDrop},
			{Field: model.FieldPopularity, Action: ActionImputeMean},
			{Field: TrackAlbum, Action: ActionLeave},
		},
		PlaylistPolicy: Policy{
			{Field: PlaylistName, Action: ActionDrop},
			{Field: model.FieldFollowers, Action: ActionFill, Value: "0"},
		},
		Features: DefaultFeatures,
		Temporal: TemporalConfig{Granularity: ByDecade},
		Stats:    stats.Options{Bins: stats.DefaultBins},
	}
}

// Validate checks both policy tables against their schemas.
func (c Config) Validate() error {
	if err := c.TrackPolicy.Validate(TrackSchema); err != nil {
		return err
	}
	return c.PlaylistPolicy.Validate(PlaylistSchema)
}

// Input is one collection run's raw records.
type Input struct {
	Source    string
	Tracks    []RawRecord
	Playlists []RawRecord
}

// StageReport is the data-quality trail of one record set.
type StageReport struct {
	Raw       int            `json:"raw"`
	Clean     int            `json:"clean"`
	Normalize NormalizeStats `json:"normalize"`
	Dedup     DedupStats     `json:"dedup"`
	Resolve   ResolveStats   `json:"resolve"`
}

// QualityReport collects every data-quality count of a run.
type QualityReport struct {
	Tracks              StageReport `json:"tracks"`
	Playlists           StageReport `json:"playlists"`
	DanglingMemberships int         `json:"danglingMemberships"`
	Undated             int         `json:"undated"`
	OutOfRange          int         `json:"outOfRange"`
}

// Result is the cleaned record sets plus their statistics.
type Result struct {
	Tracks    []model.Track    `json:"-"`
	Playlists []model.Playlist `json:"-"`
	Summary   stats.Summary    `json:"summary"`
	Temporal  TemporalGroups   `json:"temporal"`
	Quality   QualityReport    `json:"quality"`
}

// Run cleans and aggregates one input. It never fails; problems surface as
// counts in Result.Quality.
func Run(in Input, cfg Config) Result {
	start := time.Now()
	var q QualityReport

	tracks, tn := NormalizeTracks(in.Tracks, cfg.Normalize)
	tracks, td := DedupTracks(tracks)
	tracks, tr := Resolve(tracks, TrackSchema, cfg.TrackPolicy)

	playlists, pn := NormalizePlaylists(in.Playlists, cfg.Normalize)
	playlists, pd := DedupPlaylists(playlists)
	playlists, pr := Resolve(playlists, PlaylistSchema, cfg.PlaylistPolicy)

	tracks, q.DanglingMemberships = PruneMemberships(tracks, playlists)

	q.Tracks = StageReport{Raw: len(in.Tracks), Clean: len(tracks), Normalize: tn, Dedup: td, Resolve: tr}
	q.Playlists = StageReport{Raw: len(in.Playlists), Clean: len(playlists), Normalize: pn, Dedup: pd, Resolve: pr}
	for _, s := range []ResolveStats{tr, pr} {
		for _, msg := range s.Skipped {
			logger.Warn("策略配置无效，已跳过", logger.String("source", in.Source), logger.String("reason", msg))
		}
	}

	features := cfg.Features
	if len(features) == 0 {
		features = DefaultFeatures
	}
	temporal := cfg.Temporal
	if len(temporal.Features) == 0 {
		temporal.Features = features
	}
	temporal.Stats = cfg.Stats

	res := Result{
		Tracks:    tracks,
		Playlists: playlists,
		Summary:   stats.Aggregate(TrackColumns(tracks, features), cfg.Stats),
		Temporal:  GroupByRelease(tracks, temporal),
	}
	q.Undated = res.Temporal.Undated
	q.OutOfRange = res.Temporal.OutOfRange
	res.Quality = q

	logger.Info("流水线完成",
		logger.String("source", in.Source),
		logger.Int("rawTracks", len(in.Tracks)),
		logger.Int("cleanTracks", len(tracks)),
		logger.Int("rawPlaylists", len(in.Playlists)),
		logger.Int("cleanPlaylists", len(playlists)),
		logger.Int("duplicates", td.Duplicates+pd.Duplicates),
		logger.Int("dropped", tr.Dropped+pr.Dropped),
		logger.Int("dangling", q.DanglingMemberships),
		logger.Duration("elapsed", time.Since(start)))
	return res
}

// PruneMemberships removes playlist references that are not in playlists.
// It returns new track values and the number of references removed.
func PruneMemberships(tracks []model.Track, playlists []model.Playlist) ([]model.Track, int) {
	known := make(map[string]struct{}, len(playlists))
	for _, p := range playlists {
		known[p.ID] = struct{}{}
	}
	out := make([]model.Track, len(tracks))
	removed := 0
	for i, t := range tracks {
		if len(t.PlaylistIDs) > 0 {
			kept := make([]string, 0, len(t.PlaylistIDs))
			for _, id := range t.PlaylistIDs {
				if _, ok := known[id]; ok {
					kept = append(kept, id)
				} else {
					removed++
				}
			}
			if len(kept) == 0 {
				kept = nil
			}
			t.PlaylistIDs = kept
		}
		out[i] = t
	}
	return out, removed
}
