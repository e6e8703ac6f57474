package insight

import (
	"sort"
	"time"

	"PlaylistInsight/core/pipeline"
	"PlaylistInsight/core/stats"
	"PlaylistInsight/model"
)

// Options 看板数据生成参数
type Options struct {
	TopArtists     int
	TopTracks      int
	PopularityBins int
	TrendFeatures  []string
	TrendMinYear   int
	TrendMaxYear   int
}

// DefaultOptions mirrors the published report: 15 artists, 20 popularity
// bins, yearly trends from 1990 to 2025.
func DefaultOptions() Options {
	return Options{
		TopArtists:     15,
		TopTracks:      10,
		PopularityBins: 20,
		TrendFeatures: []string{
			model.FieldDanceability,
			model.FieldEnergy,
			model.FieldValence,
			model.FieldPopularity,
		},
		TrendMinYear: 1990,
		TrendMaxYear: 2025,
	}
}

// YearRange is the span of release years in a run.
type YearRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Overview is the headline numbers of a run.
type Overview struct {
	Tracks        int                `json:"tracks"`
	Playlists     int                `json:"playlists"`
	Artists       int                `json:"artists"`
	Albums        int                `json:"albums"`
	Years         *YearRange         `json:"years,omitempty"`
	AvgPopularity model.Opt[float64] `json:"avgPopularity"`
}

// ArtistCount is one row of the top artists chart.
type ArtistCount struct {
	Artist        string             `json:"artist"`
	Tracks        int                `json:"tracks"`
	AvgPopularity model.Opt[float64] `json:"avgPopularity"`
}

// TrackRank is one row of the top tracks table.
type TrackRank struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Artist      string `json:"artist"`
	Album       string `json:"album,omitempty"`
	ReleaseDate string `json:"releaseDate,omitempty"`
	Popularity  int64  `json:"popularity"`
}

// TrendPoint holds the feature means of one temporal bucket.
type TrendPoint struct {
	Label  string                        `json:"label"`
	Tracks int                           `json:"tracks"`
	Means  map[string]model.Opt[float64] `json:"means"`
}

// Dashboard is everything the dashboard and report render for one run.
type Dashboard struct {
	RunID               string                        `json:"runId"`
	Source              string                        `json:"source"`
	GeneratedAt         time.Time                     `json:"generatedAt"`
	Overview            Overview                      `json:"overview"`
	Features            map[string]stats.FeatureStats `json:"features"`
	Correlations        stats.Matrix                  `json:"correlations"`
	PopularityHistogram []stats.Bucket                `json:"popularityHistogram"`
	TopArtists          []ArtistCount                 `json:"topArtists"`
	TopTracks           []TrackRank                   `json:"topTracks"`
	YearlyTrends        []TrendPoint                  `json:"yearlyTrends"`
	DecadeTrends        []TrendPoint                  `json:"decadeTrends"`
	Playlists           []pipeline.PlaylistSummary    `json:"playlists,omitempty"`
	PlaylistFeatures    map[string]stats.FeatureStats `json:"playlistFeatures,omitempty"`
	Quality             pipeline.QualityReport        `json:"quality"`
}

// Trends returns the trend series for a granularity.
func (d *Dashboard) Trends(g pipeline.Granularity) []TrendPoint {
	if g == pipeline.ByYear {
		return d.YearlyTrends
	}
	return d.DecadeTrends
}

// Build assembles the dashboard bundle of a pipeline result.
func Build(runID, source string, res pipeline.Result, opts Options) Dashboard {
	d := Dashboard{
		RunID:        runID,
		Source:       source,
		GeneratedAt:  time.Now().UTC(),
		Overview:     overview(res),
		Features:     res.Summary.Features,
		Correlations: res.Summary.Correlations,
		TopArtists:   topArtists(res.Tracks, opts.TopArtists),
		TopTracks:    topTracks(res.Tracks, opts.TopTracks),
		Quality:      res.Quality,
	}

	// 歌单本身的数值字段：粉丝数与曲目数
	if len(res.Playlists) > 0 {
		cols := pipeline.PlaylistColumns(res.Playlists, []string{model.FieldFollowers, model.FieldTrackCount})
		d.PlaylistFeatures = make(map[string]stats.FeatureStats, len(cols))
		for _, c := range cols {
			d.PlaylistFeatures[c.Name] = stats.Describe(c, 0)
		}
	}

	if cols := pipeline.TrackColumns(res.Tracks, []string{model.FieldPopularity}); len(cols) == 1 {
		d.PopularityHistogram = stats.Describe(cols[0], opts.PopularityBins).Histogram
	}

	yearly := pipeline.GroupByRelease(res.Tracks, pipeline.TemporalConfig{
		Granularity: pipeline.ByYear,
		MinYear:     opts.TrendMinYear,
		MaxYear:     opts.TrendMaxYear,
		Features:    opts.TrendFeatures,
	})
	d.YearlyTrends = trend(yearly, opts.TrendFeatures)
	decades := pipeline.GroupByRelease(res.Tracks, pipeline.TemporalConfig{
		Granularity: pipeline.ByDecade,
		Features:    opts.TrendFeatures,
	})
	d.DecadeTrends = trend(decades, opts.TrendFeatures)
	return d
}

func overview(res pipeline.Result) Overview {
	o := Overview{Tracks: len(res.Tracks), Playlists: len(res.Playlists)}
	artists := make(map[string]struct{})
	albums := make(map[string]struct{})
	for _, t := range res.Tracks {
		if a, ok := t.Artist.Get(); ok {
			artists[a] = struct{}{}
		}
		if a, ok := t.Album.Get(); ok {
			albums[a] = struct{}{}
		}
		if d, ok := t.ReleaseDate.Get(); ok {
			if o.Years == nil {
				o.Years = &YearRange{Min: d.Year, Max: d.Year}
			}
			o.Years.Min = min(o.Years.Min, d.Year)
			o.Years.Max = max(o.Years.Max, d.Year)
		}
	}
	o.Artists, o.Albums = len(artists), len(albums)
	if fs, ok := res.Summary.Features[model.FieldPopularity]; ok {
		o.AvgPopularity = fs.Mean
	} else if cols := pipeline.TrackColumns(res.Tracks, []string{model.FieldPopularity}); len(cols) == 1 {
		o.AvgPopularity = stats.Describe(cols[0], 0).Mean
	}
	return o
}

func topArtists(tracks []model.Track, n int) []ArtistCount {
	type acc struct {
		tracks int
		sum    float64
		rated  int
	}
	by := make(map[string]*acc)
	for _, t := range tracks {
		name, ok := t.Artist.Get()
		if !ok {
			continue
		}
		a, ok := by[name]
		if !ok {
			a = &acc{}
			by[name] = a
		}
		a.tracks++
		if p, ok := t.Popularity.Get(); ok {
			a.sum += float64(p)
			a.rated++
		}
	}

	out := make([]ArtistCount, 0, len(by))
	for name, a := range by {
		row := ArtistCount{Artist: name, Tracks: a.tracks}
		if a.rated > 0 {
			row.AvgPopularity = model.Some(a.sum / float64(a.rated))
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Tracks != out[j].Tracks {
			return out[i].Tracks > out[j].Tracks
		}
		return out[i].Artist < out[j].Artist
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func topTracks(tracks []model.Track, n int) []TrackRank {
	out := make([]TrackRank, 0, len(tracks))
	for _, t := range tracks {
		p, ok := t.Popularity.Get()
		if !ok {
			continue
		}
		row := TrackRank{
			ID:         t.ID,
			Name:       t.Name.Or(""),
			Artist:     t.Artist.Or(""),
			Album:      t.Album.Or(""),
			Popularity: p,
		}
		if d, ok := t.ReleaseDate.Get(); ok {
			row.ReleaseDate = d.String()
		}
		out = append(out, row)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Popularity != out[j].Popularity {
			return out[i].Popularity > out[j].Popularity
		}
		return out[i].ID < out[j].ID
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

func trend(g pipeline.TemporalGroups, features []string) []TrendPoint {
	out := make([]TrendPoint, 0, len(g.Labels))
	for _, label := range g.Labels {
		bucket := g.Buckets[label]
		p := TrendPoint{Label: label, Tracks: bucket.Records, Means: make(map[string]model.Opt[float64], len(features))}
		for _, f := range features {
			p.Means[f] = bucket.Features[f].Mean
		}
		out = append(out, p)
	}
	return out
}
