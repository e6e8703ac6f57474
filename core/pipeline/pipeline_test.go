package pipeline

import (
	"context"
	"reflect"
	"testing"

	"PlaylistInsight/core/stats"
	"PlaylistInsight/model"
)

func sampleInput() Input {
	return Input{
		Source: "test",
		Tracks: []RawRecord{
			{"id": "t1", "name": "One", "artist": "A", "popularity": "10", "energy": "0.2", "release_date": "1985-01-01", "playlist_ids": "p1;p9"},
			{"id": "t2", "name": "Two", "artist": "B", "popularity": "20", "energy": "0.4", "release_date": "1989"},
			{"id": "t3", "name": "Three", "artist": "A", "popularity": "", "energy": "2.0", "release_date": "1992-03", "playlist_ids": "p1;p2"},
			{"id": "t1", "name": "One", "artist": "A", "popularity": "10", "playlist_ids": "p2"},
			{"id": "t4", "artist": "C", "popularity": "99"},
			{"id": "t5", "name": "Five", "artist": "D", "popularity": "50"},
		},
		Playlists: []RawRecord{
			{"playlist_id": "p1", "playlist_name": "Mix", "follower_count": "3"},
			{"playlist_id": "p2", "playlist_name": "Chill"},
			{"playlist_id": "p3"},
		},
	}
}

func TestRun(t *testing.T) {
	res := Run(sampleInput(), DefaultConfig())
	q := res.Quality

	if len(res.Tracks) != 4 {
		t.Fatalf("tracks = %d, want 4", len(res.Tracks))
	}
	if q.Tracks.Dedup.Duplicates != 1 {
		t.Errorf("track duplicates = %d, want 1", q.Tracks.Dedup.Duplicates)
	}
	if q.Tracks.Resolve.DroppedBy[TrackName] != 1 {
		t.Errorf("dropped by name = %v, want 1", q.Tracks.Resolve.DroppedBy)
	}
	if q.Tracks.Normalize.CoercionFailures[model.FieldEnergy] != 1 {
		t.Errorf("energy coercion failures = %v, want 1", q.Tracks.Normalize.CoercionFailures)
	}

	// t4 was dropped before imputation, so the mean is over 10, 20, 50.
	t3 := res.Tracks[2]
	if pop, _ := t3.Popularity.Get(); pop != 27 {
		t.Errorf("t3 popularity = %d, want 27", pop)
	}

	if len(res.Playlists) != 2 {
		t.Errorf("playlists = %d, want 2 (unnamed dropped)", len(res.Playlists))
	}
	if f, _ := res.Playlists[1].Followers.Get(); f != 0 {
		t.Errorf("p2 followers = %d, want filled 0", f)
	}

	if !reflect.DeepEqual(res.Tracks[0].PlaylistIDs, []string{"p1", "p2"}) {
		t.Errorf("t1 memberships = %v, want [p1 p2]", res.Tracks[0].PlaylistIDs)
	}
	if q.DanglingMemberships != 1 {
		t.Errorf("DanglingMemberships = %d, want 1", q.DanglingMemberships)
	}

	if n := res.Summary.Features[model.FieldEnergy].Count; n != 2 {
		t.Errorf("energy count = %d, want 2", n)
	}
	if !reflect.DeepEqual(res.Temporal.Labels, []string{"1980s", "1990s"}) {
		t.Errorf("Labels = %v", res.Temporal.Labels)
	}
	if q.Undated != 1 {
		t.Errorf("Undated = %d, want 1", q.Undated)
	}
}

func TestRunEmptyInput(t *testing.T) {
	res := Run(Input{}, DefaultConfig())
	if len(res.Tracks) != 0 || res.Summary.Records != 0 {
		t.Errorf("got %d tracks, %d records, want empty", len(res.Tracks), res.Summary.Records)
	}
	if fs := res.Summary.Features[model.FieldEnergy]; fs.Mean.Present() {
		t.Error("mean present on empty input")
	}
}

func TestDefaultConfigValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("DefaultConfig().Validate() = %v", err)
	}
}

func TestSummarizePlaylists(t *testing.T) {
	res := Run(sampleInput(), DefaultConfig())

	got, err := SummarizePlaylists(context.Background(), res.Tracks, res.Playlists, nil, stats.Options{Bins: 4}, 2)
	if err != nil {
		t.Fatalf("SummarizePlaylists() error = %v", err)
	}
	if len(got) != 2 || got[0].PlaylistID != "p1" || got[1].PlaylistID != "p2" {
		t.Fatalf("got %+v, want p1 then p2", got)
	}
	if got[0].Tracks != 2 || got[1].Tracks != 2 {
		t.Errorf("track counts = %d/%d, want 2/2", got[0].Tracks, got[1].Tracks)
	}
	if mean, _ := got[0].Summary.Features[model.FieldPopularity].Mean.Get(); mean != 18.5 {
		t.Errorf("p1 popularity mean = %v, want 18.5", mean)
	}
}

func TestSummarizePlaylistsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := SummarizePlaylists(ctx, nil, []model.Playlist{{ID: "p"}}, nil, stats.Options{}, 1)
	if err == nil {
		t.Error("error = nil, want context.Canceled")
	}
}
