package pipeline

import (
	"PlaylistInsight/core/stats"
	"PlaylistInsight/model"
)

// DefaultFeatures are the numeric track columns aggregated by default.
var DefaultFeatures = append(append([]string(nil), model.AudioFeatureNames...), model.FieldPopularity)

// TrackColumns extracts named numeric track fields as row-aligned columns.
// Unknown or non-numeric names are skipped.
func TrackColumns(tracks []model.Track, names []string) []stats.Column {
	cols := make([]stats.Column, 0, len(names))
	for _, name := range names {
		f, ok := TrackSchema.Field(name)
		if !ok || !f.Numeric() {
			continue
		}
		c := stats.Column{
			Name:   name,
			Values: make([]model.Opt[float64], len(tracks)),
			Bounds: f.Bounds,
		}
		for i := range tracks {
			if v, ok := f.Number(&tracks[i]); ok {
				c.Values[i] = model.Some(v)
			}
		}
		cols = append(cols, c)
	}
	return cols
}

// PlaylistColumns is TrackColumns for playlist fields.
func PlaylistColumns(playlists []model.Playlist, names []string) []stats.Column {
	cols := make([]stats.Column, 0, len(names))
	for _, name := range names {
		f, ok := PlaylistSchema.Field(name)
		if !ok || !f.Numeric() {
			continue
		}
		c := stats.Column{Name: name, Values: make([]model.Opt[float64], len(playlists)), Bounds: f.Bounds}
		for i := range playlists {
			if v, ok := f.Number(&playlists[i]); ok {
				c.Values[i] = model.Some(v)
			}
		}
		cols = append(cols, c)
	}
	return cols
}
