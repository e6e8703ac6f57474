package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// JSONBlob 自定义类型用于 GORM JSON 字段的自动扫描
type JSONBlob json.RawMessage

// Scan 实现 sql.Scanner 接口
func (j *JSONBlob) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*j = append((*j)[:0], v...)
	case string:
		*j = JSONBlob(v)
	default:
		return fmt.Errorf("unsupported JSONBlob source %T", value)
	}
	return nil
}

// Value 实现 driver.Valuer 接口
func (j JSONBlob) Value() (driver.Value, error) {
	if len(j) == 0 {
		return nil, nil
	}
	return string(j), nil
}

// MarshalJSON keeps the stored document as-is.
func (j JSONBlob) MarshalJSON() ([]byte, error) {
	if len(j) == 0 {
		return []byte("null"), nil
	}
	return j, nil
}

// PipelineRun is one execution of the cleaning pipeline.
type PipelineRun struct {
	ID               string    `json:"id" gorm:"primaryKey;size:36"`
	Source           string    `json:"source" gorm:"size:512"`
	RawTracks        int       `json:"rawTracks"`
	CleanTracks      int       `json:"cleanTracks"`
	RawPlaylists     int       `json:"rawPlaylists"`
	CleanPlaylists   int       `json:"cleanPlaylists"`
	DroppedTracks    int       `json:"droppedTracks"`
	DroppedPlaylists int       `json:"droppedPlaylists"`
	Dashboard        JSONBlob  `json:"-" gorm:"type:longtext"`
	CreatedAt        time.Time `json:"createdAt" gorm:"index"`
}

// TableName 指定表名
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// TrackRow is a cleaned track persisted for one run.
type TrackRow struct {
	RunID            string  `gorm:"primaryKey;size:36"`
	TrackID          string  `gorm:"primaryKey;size:64"`
	Name             string  `gorm:"size:512;not null"`
	Artist           string  `gorm:"size:512;not null"`
	Album            *string `gorm:"size:512"`
	ReleaseDate      *string `gorm:"size:10"`
	ReleaseYear      *int    `gorm:"index"`
	DurationMs       *int64
	Popularity       *int64 `gorm:"index"`
	Danceability     *float64
	Energy           *float64
	Valence          *float64
	Acousticness     *float64
	Instrumentalness *float64
	Liveness         *float64
	Speechiness      *float64
	Tempo            *float64
	Loudness         *float64
	MusicalKey       *int64 `gorm:"column:musical_key"`
	Mode             *int64
	PlaylistIDs      string `gorm:"type:text"`
}

// TableName 指定表名
func (TrackRow) TableName() string {
	return "clean_tracks"
}

// NewTrackRow flattens a track for storage.
func NewTrackRow(runID string, t Track) TrackRow {
	row := TrackRow{
		RunID:            runID,
		TrackID:          t.ID,
		Name:             t.Name.Or(""),
		Artist:           t.Artist.Or(""),
		Album:            t.Album.Ptr(),
		DurationMs:       t.DurationMs.Ptr(),
		Popularity:       t.Popularity.Ptr(),
		Danceability:     t.Features.Danceability.Ptr(),
		Energy:           t.Features.Energy.Ptr(),
		Valence:          t.Features.Valence.Ptr(),
		Acousticness:     t.Features.Acousticness.Ptr(),
		Instrumentalness: t.Features.Instrumentalness.Ptr(),
		Liveness:         t.Features.Liveness.Ptr(),
		Speechiness:      t.Features.Speechiness.Ptr(),
		Tempo:            t.Features.Tempo.Ptr(),
		Loudness:         t.Features.Loudness.Ptr(),
		MusicalKey:       t.Features.Key.Ptr(),
		Mode:             t.Features.Mode.Ptr(),
		PlaylistIDs:      strings.Join(t.PlaylistIDs, ";"),
	}
	if d, ok := t.ReleaseDate.Get(); ok {
		s := d.String()
		year := d.Year
		row.ReleaseDate = &s
		row.ReleaseYear = &year
	}
	return row
}

// Track rebuilds the domain record.
func (r TrackRow) Track() Track {
	t := Track{
		ID:         r.TrackID,
		Name:       Some(r.Name),
		Artist:     Some(r.Artist),
		Album:      OptFromPtr(r.Album),
		DurationMs: OptFromPtr(r.DurationMs),
		Popularity: OptFromPtr(r.Popularity),
		Features: AudioFeatures{
			Danceability:     OptFromPtr(r.Danceability),
			Energy:           OptFromPtr(r.Energy),
			Valence:          OptFromPtr(r.Valence),
			Acousticness:     OptFromPtr(r.Acousticness),
			Instrumentalness: OptFromPtr(r.Instrumentalness),
			Liveness:         OptFromPtr(r.Liveness),
			Speechiness:      OptFromPtr(r.Speechiness),
			Tempo:            OptFromPtr(r.Tempo),
			Loudness:         OptFromPtr(r.Loudness),
			Key:              OptFromPtr(r.MusicalKey),
			Mode:             OptFromPtr(r.Mode),
		},
	}
	if r.ReleaseDate != nil {
		if d, err := ParseReleaseDate(*r.ReleaseDate); err == nil {
			t.ReleaseDate = Some(d)
		}
	}
	if r.PlaylistIDs != "" {
		t.PlaylistIDs = strings.Split(r.PlaylistIDs, ";")
	}
	return t
}

// PlaylistRow is a cleaned playlist persisted for one run.
type PlaylistRow struct {
	RunID      string  `gorm:"primaryKey;size:36"`
	PlaylistID string  `gorm:"primaryKey;size:64"`
	Name       string  `gorm:"size:512;not null"`
	Owner      *string `gorm:"size:255"`
	Followers  *int64
	TrackCount *int64
	Public     *bool
	CreatedAt  *time.Time `gorm:"autoCreateTime:false"`
	UpdatedAt  *time.Time `gorm:"autoUpdateTime:false"`
}

// TableName 指定表名
func (PlaylistRow) TableName() string {
	return "clean_playlists"
}

// NewPlaylistRow flattens a playlist for storage.
func NewPlaylistRow(runID string, p Playlist) PlaylistRow {
	return PlaylistRow{
		RunID:      runID,
		PlaylistID: p.ID,
		Name:       p.Name.Or(""),
		Owner:      p.Owner.Ptr(),
		Followers:  p.Followers.Ptr(),
		TrackCount: p.TrackCount.Ptr(),
		Public:     p.Public.Ptr(),
		CreatedAt:  p.CreatedAt.Ptr(),
		UpdatedAt:  p.UpdatedAt.Ptr(),
	}
}

// Playlist rebuilds the domain record.
func (r PlaylistRow) Playlist() Playlist {
	return Playlist{
		ID:         r.PlaylistID,
		Name:       Some(r.Name),
		Owner:      OptFromPtr(r.Owner),
		Followers:  OptFromPtr(r.Followers),
		TrackCount: OptFromPtr(r.TrackCount),
		Public:     OptFromPtr(r.Public),
		CreatedAt:  OptFromPtr(r.CreatedAt),
		UpdatedAt:  OptFromPtr(r.UpdatedAt),
	}
}
