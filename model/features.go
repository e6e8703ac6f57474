package model

import "math"

// Numeric field names shared by the schema, the aggregator and the API.
const (
	FieldDanceability     = "danceability"
	FieldEnergy           = "energy"
	FieldValence          = "valence"
	FieldAcousticness     = "acousticness"
	FieldInstrumentalness = "instrumentalness"
	FieldLiveness         = "liveness"
	FieldSpeechiness      = "speechiness"
	FieldTempo            = "tempo"
	FieldLoudness         = "loudness"
	FieldKey              = "key"
	FieldMode             = "mode"
	FieldPopularity       = "popularity"
	FieldDurationMs       = "duration_ms"
	FieldFollowers        = "followers"
	FieldTrackCount       = "track_count"
)

// AudioFeatureNames lists the continuous audio features in display order.
var AudioFeatureNames = []string{
	FieldDanceability,
	FieldEnergy,
	FieldValence,
	FieldTempo,
	FieldLoudness,
	FieldAcousticness,
	FieldInstrumentalness,
	FieldLiveness,
	FieldSpeechiness,
}

// Bounds is the documented range of a numeric field.
type Bounds struct {
	Min          float64
	Max          float64
	MinExclusive bool
}

// Contains reports whether v is a valid value for the field.
func (b Bounds) Contains(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if b.MinExclusive {
		if v <= b.Min {
			return false
		}
	} else if v < b.Min {
		return false
	}
	return v <= b.Max
}

// Finite reports whether both ends are finite.
func (b Bounds) Finite() bool {
	return !math.IsInf(b.Min, 0) && !math.IsInf(b.Max, 0)
}

var unit = Bounds{Min: 0, Max: 1}

// FieldBounds maps numeric fields to their documented bounds.
var FieldBounds = map[string]Bounds{
	FieldDanceability:     unit,
	FieldEnergy:           unit,
	FieldValence:          unit,
	FieldAcousticness:     unit,
	FieldInstrumentalness: unit,
	FieldLiveness:         unit,
	FieldSpeechiness:      unit,
	FieldTempo:            {Min: 0, Max: math.Inf(1), MinExclusive: true},
	FieldLoudness:         {Min: -60, Max: 0},
	FieldKey:              {Min: 0, Max: 11},
	FieldMode:             {Min: 0, Max: 1},
	FieldPopularity:       {Min: 0, Max: 100},
	FieldDurationMs:       {Min: 0, Max: math.Inf(1), MinExclusive: true},
	FieldFollowers:        {Min: 0, Max: math.Inf(1)},
	FieldTrackCount:       {Min: 0, Max: math.Inf(1)},
}

// BoundsFor returns the bounds of a field, if it has any.
func BoundsFor(field string) (Bounds, bool) {
	b, ok := FieldBounds[field]
	return b, ok
}
