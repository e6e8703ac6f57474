package pipeline

import (
	"strings"
	"testing"

	"PlaylistInsight/model"
)

func named(pop int64) model.Track {
	t := track("", "n", pop)
	t.Artist = model.Some("x")
	return t
}

func TestResolveImputeMean(t *testing.T) {
	in := []model.Track{named(10), named(20), named(-1)}
	policy := Policy{{Field: model.FieldPopularity, Action: ActionImputeMean}}

	got, stats := Resolve(in, TrackSchema, policy)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	if pop, ok := got[2].Popularity.Get(); !ok || pop != 15 {
		t.Errorf("imputed popularity = %d (present %v), want 15", pop, ok)
	}
	if stats.Imputed[model.FieldPopularity] != 1 {
		t.Errorf("Imputed = %v, want popularity: 1", stats.Imputed)
	}
	if in[2].Popularity.Present() {
		t.Error("input record mutated")
	}
}

func TestResolveIntegerRounding(t *testing.T) {
	in := []model.Track{named(10), named(11), named(-1)}
	got, _ := Resolve(in, TrackSchema, Policy{{Field: model.FieldPopularity, Action: ActionImputeMean}})
	if pop, _ := got[2].Popularity.Get(); pop != 11 {
		t.Errorf("popularity = %d, want 11 (10.5 rounds away from zero)", pop)
	}
}

func TestResolveDropBeforeImpute(t *testing.T) {
	noAlbum := named(90)
	in := []model.Track{named(10), named(20), noAlbum, named(-1)}
	for i := range in {
		if i != 2 {
			in[i].Album = model.Some("LP")
		}
	}
	policy := Policy{
		{Field: TrackAlbum, Action: ActionDrop},
		{Field: model.FieldPopularity, Action: ActionImputeMean},
	}

	got, stats := Resolve(in, TrackSchema, policy)
	if len(got) != 3 {
		t.Fatalf("len = %d, want 3", len(got))
	}
	// the dropped record's 90 must not feed the mean
	if pop, _ := got[2].Popularity.Get(); pop != 15 {
		t.Errorf("popularity = %d, want 15", pop)
	}
	if stats.Dropped != 1 || stats.DroppedBy[TrackAlbum] != 1 {
		t.Errorf("Dropped = %d by %v, want 1 by album", stats.Dropped, stats.DroppedBy)
	}
}

func TestResolveRequiredFields(t *testing.T) {
	noArtist := track("t2", "song", 1)
	in := []model.Track{named(1), noArtist, track("t3", "", 1)}

	got, stats := Resolve(in, TrackSchema, nil)
	if len(got) != 1 {
		t.Fatalf("len = %d, want 1", len(got))
	}
	if stats.DroppedBy[TrackName] != 1 || stats.DroppedBy[TrackArtist] != 1 {
		t.Errorf("DroppedBy = %v, want name: 1, artist: 1", stats.DroppedBy)
	}
}

func TestResolveRequiredFieldsCannotBeRelaxed(t *testing.T) {
	nameless := track("a", "", 1)
	nameless.Artist = model.Some("x")
	in := []model.Track{nameless, named(2)}

	for _, action := range []Action{ActionLeave, ActionImputeMean} {
		t.Run(string(action), func(t *testing.T) {
			policy := Policy{{Field: TrackName, Action: action}}
			if err := policy.Validate(TrackSchema); err == nil {
				t.Errorf("Validate(name: %s) error = nil", action)
			}
			got, stats := Resolve(in, TrackSchema, policy)
			if len(got) != 1 || !got[0].Name.Present() {
				t.Fatalf("Resolve() kept %+v, want only the named track", got)
			}
			if stats.DroppedBy[TrackName] != 1 || len(stats.Skipped) != 1 {
				t.Errorf("DroppedBy = %v, Skipped = %v", stats.DroppedBy, stats.Skipped)
			}
		})
	}

	// 必填字段可以用默认值填充
	got, stats := Resolve(in, TrackSchema, Policy{{Field: TrackName, Action: ActionFill, Value: "Untitled"}})
	if len(got) != 2 || got[0].Name.Or("") != "Untitled" || stats.Dropped != 0 {
		t.Errorf("fill name: got %d records, first %q, dropped %d", len(got), got[0].Name.Or(""), stats.Dropped)
	}

	playlists := []model.Playlist{{ID: "p1"}, {ID: "p2", Name: model.Some("Mix")}}
	kept, _ := Resolve(playlists, PlaylistSchema, Policy{{Field: PlaylistName, Action: ActionLeave}})
	if len(kept) != 1 || kept[0].ID != "p2" {
		t.Errorf("playlists kept = %+v, want p2 only", kept)
	}
}

func TestResolveFillAndUnimputable(t *testing.T) {
	in := []model.Track{named(-1), named(-1)}
	policy := Policy{
		{Field: TrackAlbum, Action: ActionFill, Value: "Unknown Album"},
		{Field: model.FieldPopularity, Action: ActionImputeMean},
		{Field: model.FieldEnergy, Action: ActionLeave},
	}

	got, stats := Resolve(in, TrackSchema, policy)
	if album, _ := got[0].Album.Get(); album != "Unknown Album" {
		t.Errorf("Album = %q, want Unknown Album", album)
	}
	if stats.Filled[TrackAlbum] != 2 {
		t.Errorf("Filled = %v, want album: 2", stats.Filled)
	}
	if got[0].Popularity.Present() || stats.Unimputable[model.FieldPopularity] != 2 {
		t.Errorf("popularity should stay missing, Unimputable = %v", stats.Unimputable)
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		policy  Policy
		wantErr string
	}{
		{"valid", Policy{{Field: model.FieldPopularity, Action: ActionImputeMean}}, ""},
		{"unknown field", Policy{{Field: "colour", Action: ActionDrop}}, "unknown track field"},
		{"unknown action", Policy{{Field: TrackAlbum, Action: "guess"}}, "unknown action"},
		{"text mean", Policy{{Field: TrackAlbum, Action: ActionImputeMean}}, "cannot be imputed"},
		{"bad default", Policy{{Field: model.FieldEnergy, Action: ActionFill, Value: "2"}}, "not a valid"},
		{"required leave", Policy{{Field: TrackArtist, Action: ActionLeave}}, "is required"},
		{"twice", Policy{{Field: TrackAlbum, Action: ActionLeave}, {Field: TrackAlbum, Action: ActionDrop}}, "listed twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.policy.Validate(TrackSchema)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestResolveSkipsInvalidRows(t *testing.T) {
	got, stats := Resolve([]model.Track{named(1)}, TrackSchema, Policy{{Field: "colour", Action: ActionDrop}})
	if len(got) != 1 || len(stats.Skipped) != 1 {
		t.Errorf("len = %d, skipped = %v, want 1 record and 1 skipped row", len(got), stats.Skipped)
	}
}
