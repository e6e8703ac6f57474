package pipeline

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"PlaylistInsight/model"
)

// RawRecord is one collected record: raw field name -> raw value.
type RawRecord map[string]any

// FieldKind is the declared type of a schema field.
type FieldKind string

const (
	KindText  FieldKind = "text"
	KindInt   FieldKind = "int"
	KindFloat FieldKind = "float"
	KindBool  FieldKind = "bool"
	KindDate  FieldKind = "date"
	KindTime  FieldKind = "timestamp"
	KindList  FieldKind = "list"
)

// Field describes one optional field of a record type T and how to coerce,
// inspect and fill it.
type Field[T any] struct {
	Name    string
	Aliases []string
	Kind    FieldKind
	Bounds  *model.Bounds

	present func(*T) bool
	assign  func(*T, any, coercer) bool
	clear   func(*T)
	format  func(*T) string
	number  func(*T) (float64, bool)
	setNum  func(*T, float64)
}

// Present reports whether the field holds a value.
func (f Field[T]) Present(rec *T) bool { return f.present(rec) }

// Format renders the field the way Fill and the normalizer read it back;
// missing values render as "".
func (f Field[T]) Format(rec *T) string { return f.format(rec) }

// Numeric reports whether the field can be averaged.
func (f Field[T]) Numeric() bool { return f.number != nil }

// Number returns the numeric value of the field.
func (f Field[T]) Number(rec *T) (float64, bool) {
	if f.number == nil {
		return 0, false
	}
	return f.number(rec)
}

// Schema is the fixed field set of a record type.
type Schema[T any] struct {
	Name       string
	KeyName    string
	KeyAliases []string
	Key        func(*T) string
	SetKey     func(*T, string)
	Fields     []Field[T]
	// Required fields are dropped-if-missing before any caller policy, unless
	// the policy fills them.
	Required []string
	// Members, when set, points at a membership list that duplicates union
	// instead of competing on.
	Members func(*T) *[]string
}

// Field looks a field up by canonical name.
func (s *Schema[T]) Field(name string) (Field[T], bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field[T]{}, false
}

// Columns returns the key name followed by every field name.
func (s *Schema[T]) Columns() []string {
	out := make([]string, 0, len(s.Fields)+1)
	out = append(out, s.KeyName)
	for _, f := range s.Fields {
		out = append(out, f.Name)
	}
	return out
}

// Filled counts the non-missing fields of a record.
func (s *Schema[T]) Filled(rec *T) int {
	n := 0
	for _, f := range s.Fields {
		if f.present(rec) {
			n++
		}
	}
	return n
}

// Fill coerces raw into the named field. It is used for fill-default
// policies and reuses the normalizer's coercion rules.
func (s *Schema[T]) Fill(rec *T, name string, raw string) error {
	f, ok := s.Field(name)
	if !ok {
		return fmt.Errorf("unknown %s field %q", s.Name, name)
	}
	if !f.assign(rec, raw, defaultCoercer) {
		return fmt.Errorf("value %q is not a valid %s for %s.%s", raw, f.Kind, s.Name, name)
	}
	return nil
}

func bounded(b *model.Bounds, v float64) bool {
	return b == nil || b.Contains(v)
}

func boundsOf(name string) *model.Bounds {
	if b, ok := model.BoundsFor(name); ok {
		return &b
	}
	return nil
}

func textField[T any](name string, ptr func(*T) *model.Opt[string], aliases ...string) Field[T] {
	return Field[T]{
		Name:    name,
		Aliases: aliases,
		Kind:    KindText,
		present: func(r *T) bool { return ptr(r).Present() },
		clear:   func(r *T) { *ptr(r) = model.None[string]() },
		format:  func(r *T) string { return ptr(r).Or("") },
		assign: func(r *T, raw any, c coercer) bool {
			v, ok := c.text(raw)
			if ok {
				*ptr(r) = model.Some(v)
			}
			return ok
		},
	}
}

func intField[T any](name string, ptr func(*T) *model.Opt[int64], aliases ...string) Field[T] {
	b := boundsOf(name)
	return Field[T]{
		Name:    name,
		Aliases: aliases,
		Kind:    KindInt,
		Bounds:  b,
		present: func(r *T) bool { return ptr(r).Present() },
		clear:   func(r *T) { *ptr(r) = model.None[int64]() },
		format: func(r *T) string {
			if v, ok := ptr(r).Get(); ok {
				return strconv.FormatInt(v, 10)
			}
			return ""
		},
		assign: func(r *T, raw any, c coercer) bool {
			v, ok := c.integer(raw)
			if !ok || !bounded(b, float64(v)) {
				return false
			}
			*ptr(r) = model.Some(v)
			return true
		},
		number: func(r *T) (float64, bool) {
			v, ok := ptr(r).Get()
			return float64(v), ok
		},
		setNum: func(r *T, v float64) { *ptr(r) = model.Some(roundInt(v)) },
	}
}

func floatField[T any](name string, ptr func(*T) *model.Opt[float64], aliases ...string) Field[T] {
	b := boundsOf(name)
	return Field[T]{
		Name:    name,
		Aliases: aliases,
		Kind:    KindFloat,
		Bounds:  b,
		present: func(r *T) bool { return ptr(r).Present() },
		clear:   func(r *T) { *ptr(r) = model.None[float64]() },
		format: func(r *T) string {
			if v, ok := ptr(r).Get(); ok {
				return strconv.FormatFloat(v, 'f', -1, 64)
			}
			return ""
		},
		assign: func(r *T, raw any, c coercer) bool {
			v, ok := c.float(raw)
			if !ok || !bounded(b, v) {
				return false
			}
			*ptr(r) = model.Some(v)
			return true
		},
		number: func(r *T) (float64, bool) { return ptr(r).Get() },
		setNum: func(r *T, v float64) { *ptr(r) = model.Some(v) },
	}
}

func boolField[T any](name string, ptr func(*T) *model.Opt[bool], aliases ...string) Field[T] {
	return Field[T]{
		Name:    name,
		Aliases: aliases,
		Kind:    KindBool,
		present: func(r *T) bool { return ptr(r).Present() },
		clear:   func(r *T) { *ptr(r) = model.None[bool]() },
		format: func(r *T) string {
			if v, ok := ptr(r).Get(); ok {
				return strconv.FormatBool(v)
			}
			return ""
		},
		assign: func(r *T, raw any, c coercer) bool {
			v, ok := c.boolean(raw)
			if ok {
				*ptr(r) = model.Some(v)
			}
			return ok
		},
	}
}

func dateField[T any](name string, ptr func(*T) *model.Opt[model.ReleaseDate], aliases ...string) Field[T] {
	return Field[T]{
		Name:    name,
		Aliases: aliases,
		Kind:    KindDate,
		present: func(r *T) bool { return ptr(r).Present() },
		clear:   func(r *T) { *ptr(r) = model.None[model.ReleaseDate]() },
		format: func(r *T) string {
			if v, ok := ptr(r).Get(); ok {
				return v.String()
			}
			return ""
		},
		assign: func(r *T, raw any, c coercer) bool {
			v, ok := c.date(raw)
			if ok {
				*ptr(r) = model.Some(v)
			}
			return ok
		},
	}
}

func timeField[T any](name string, ptr func(*T) *model.Opt[time.Time], aliases ...string) Field[T] {
	return Field[T]{
		Name:    name,
		Aliases: aliases,
		Kind:    KindTime,
		present: func(r *T) bool { return ptr(r).Present() },
		clear:   func(r *T) { *ptr(r) = model.None[time.Time]() },
		format: func(r *T) string {
			if v, ok := ptr(r).Get(); ok {
				return v.Format(time.RFC3339)
			}
			return ""
		},
		assign: func(r *T, raw any, c coercer) bool {
			v, ok := c.timestamp(raw)
			if ok {
				*ptr(r) = model.Some(v)
			}
			return ok
		},
	}
}

func listField[T any](name string, ptr func(*T) *[]string, aliases ...string) Field[T] {
	return Field[T]{
		Name:    name,
		Aliases: aliases,
		Kind:    KindList,
		present: func(r *T) bool { return len(*ptr(r)) > 0 },
		clear:   func(r *T) { *ptr(r) = nil },
		format:  func(r *T) string { return strings.Join(*ptr(r), DefaultListSeparator) },
		assign: func(r *T, raw any, c coercer) bool {
			v, ok := c.list(raw)
			if ok {
				*ptr(r) = v
			}
			return ok
		},
	}
}

// Track field names that are not numeric features.
const (
	TrackName        = "name"
	TrackArtist      = "artist"
	TrackAlbum       = "album"
	TrackReleaseDate = "release_date"
	TrackPlaylists   = "playlist_ids"

	PlaylistName      = "name"
	PlaylistOwner     = "owner"
	PlaylistPublic    = "public"
	PlaylistCreatedAt = "created_at"
	PlaylistUpdatedAt = "updated_at"
)

// TrackSchema is the fixed track schema.
var TrackSchema = &Schema[model.Track]{
	Name:       "track",
	KeyName:    "id",
	KeyAliases: []string{"track_id", "spotify_id", "uri"},
	Key:        func(t *model.Track) string { return t.ID },
	SetKey:     func(t *model.Track, id string) { t.ID = id },
	Required:   []string{TrackName, TrackArtist},
	Members:    func(t *model.Track) *[]string { return &t.PlaylistIDs },
	Fields: []Field[model.Track]{
		textField(TrackName, func(t *model.Track) *model.Opt[string] { return &t.Name }, "track_name", "title"),
		textField(TrackArtist, func(t *model.Track) *model.Opt[string] { return &t.Artist }, "artist_name", "artists"),
		textField(TrackAlbum, func(t *model.Track) *model.Opt[string] { return &t.Album }, "album_name"),
		dateField(TrackReleaseDate, func(t *model.Track) *model.Opt[model.ReleaseDate] { return &t.ReleaseDate }, "album_release_date", "released"),
		intField(model.FieldDurationMs, func(t *model.Track) *model.Opt[int64] { return &t.DurationMs }, "duration"),
		intField(model.FieldPopularity, func(t *model.Track) *model.Opt[int64] { return &t.Popularity }, "track_popularity"),
		floatField(model.FieldDanceability, func(t *model.Track) *model.Opt[float64] { return &t.Features.Danceability }),
		floatField(model.FieldEnergy, func(t *model.Track) *model.Opt[float64] { return &t.Features.Energy }),
		floatField(model.FieldValence, func(t *model.Track) *model.Opt[float64] { return &t.Features.Valence }),
		floatField(model.FieldAcousticness, func(t *model.Track) *model.Opt[float64] { return &t.Features.Acousticness }),
		floatField(model.FieldInstrumentalness, func(t *model.Track) *model.Opt[float64] { return &t.Features.Instrumentalness }),
		floatField(model.FieldLiveness, func(t *model.Track) *model.Opt[float64] { return &t.Features.Liveness }),
		floatField(model.FieldSpeechiness, func(t *model.Track) *model.Opt[float64] { return &t.Features.Speechiness }),
		floatField(model.FieldTempo, func(t *model.Track) *model.Opt[float64] { return &t.Features.Tempo }, "bpm"),
		floatField(model.FieldLoudness, func(t *model.Track) *model.Opt[float64] { return &t.Features.Loudness }),
		intField(model.FieldKey, func(t *model.Track) *model.Opt[int64] { return &t.Features.Key }),
		intField(model.FieldMode, func(t *model.Track) *model.Opt[int64] { return &t.Features.Mode }),
		listField(TrackPlaylists, func(t *model.Track) *[]string { return &t.PlaylistIDs }, "playlist_id", "playlists"),
	},
}

// PlaylistSchema is the fixed playlist schema.
var PlaylistSchema = &Schema[model.Playlist]{
	Name:       "playlist",
	KeyName:    "id",
	KeyAliases: []string{"playlist_id"},
	Key:        func(p *model.Playlist) string { return p.ID },
	SetKey:     func(p *model.Playlist, id string) { p.ID = id },
	Required:   []string{PlaylistName},
	Fields: []Field[model.Playlist]{
		textField(PlaylistName, func(p *model.Playlist) *model.Opt[string] { return &p.Name }, "playlist_name", "title"),
		textField(PlaylistOwner, func(p *model.Playlist) *model.Opt[string] { return &p.Owner }, "owner_name", "owner_id", "owner_display_name"),
		intField(model.FieldFollowers, func(p *model.Playlist) *model.Opt[int64] { return &p.Followers }, "follower_count", "followers_total"),
		intField(model.FieldTrackCount, func(p *model.Playlist) *model.Opt[int64] { return &p.TrackCount }, "tracks_total", "total_tracks", "num_tracks"),
		boolField(PlaylistPublic, func(p *model.Playlist) *model.Opt[bool] { return &p.Public }, "is_public"),
		timeField(PlaylistCreatedAt, func(p *model.Playlist) *model.Opt[time.Time] { return &p.CreatedAt }, "created"),
		timeField(PlaylistUpdatedAt, func(p *model.Playlist) *model.Opt[time.Time] { return &p.UpdatedAt }, "updated", "snapshot_at"),
	},
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}
