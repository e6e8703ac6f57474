package model

import "time"

// AudioFeatures holds the Spotify audio analysis attributes of a track.
// Reference: https://developer.spotify.com/documentation/web-api/reference/get-audio-features
type AudioFeatures struct {
	Danceability     Opt[float64] `json:"danceability"`
	Energy           Opt[float64] `json:"energy"`
	Valence          Opt[float64] `json:"valence"`
	Acousticness     Opt[float64] `json:"acousticness"`
	Instrumentalness Opt[float64] `json:"instrumentalness"`
	Liveness         Opt[float64] `json:"liveness"`
	Speechiness      Opt[float64] `json:"speechiness"`
	Tempo            Opt[float64] `json:"tempo"`    // BPM
	Loudness         Opt[float64] `json:"loudness"` // dB
	Key              Opt[int64]   `json:"key"`      // pitch class 0-11
	Mode             Opt[int64]   `json:"mode"`     // 1 = major, 0 = minor
}

// Track is one normalized track record.
type Track struct {
	ID          string           `json:"id"`
	Name        Opt[string]      `json:"name"`
	Artist      Opt[string]      `json:"artist"`
	Album       Opt[string]      `json:"album"`
	ReleaseDate Opt[ReleaseDate] `json:"releaseDate"`
	DurationMs  Opt[int64]       `json:"durationMs"`
	Popularity  Opt[int64]       `json:"popularity"`
	Features    AudioFeatures    `json:"features"`
	PlaylistIDs []string         `json:"playlistIds"`
}

// Playlist is one normalized playlist record.
type Playlist struct {
	ID         string         `json:"id"`
	Name       Opt[string]    `json:"name"`
	Owner      Opt[string]    `json:"owner"`
	Followers  Opt[int64]     `json:"followers"`
	TrackCount Opt[int64]     `json:"trackCount"`
	Public     Opt[bool]      `json:"public"`
	CreatedAt  Opt[time.Time] `json:"createdAt"`
	UpdatedAt  Opt[time.Time] `json:"updatedAt"`
}
