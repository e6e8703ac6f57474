package pipeline

import (
	"context"

	"PlaylistInsight/core/stats"
	"PlaylistInsight/model"

	"golang.org/x/sync/errgroup"
)

// PlaylistSummary is the aggregate of one playlist's tracks.
type PlaylistSummary struct {
	PlaylistID string        `json:"playlistId"`
	Name       string        `json:"name"`
	Tracks     int           `json:"tracks"`
	Summary    stats.Summary `json:"summary"`
}

// SummarizePlaylists aggregates each playlist's track subset independently
// with at most workers goroutines, and returns the results in playlist
// order.
func SummarizePlaylists(ctx context.Context, tracks []model.Track, playlists []model.Playlist, features []string, opts stats.Options, workers int) ([]PlaylistSummary, error) {
	if len(features) == 0 {
		features = DefaultFeatures
	}
	subsets := make(map[string][]model.Track, len(playlists))
	for _, t := range tracks {
		for _, id := range t.PlaylistIDs {
			subsets[id] = append(subsets[id], t)
		}
	}

	out := make([]PlaylistSummary, len(playlists))
	g, ctx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for i, p := range playlists {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			subset := subsets[p.ID]
			out[i] = PlaylistSummary{
				PlaylistID: p.ID,
				Name:       p.Name.Or(""),
				Tracks:     len(subset),
				Summary:    stats.Aggregate(TrackColumns(subset, features), opts),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
