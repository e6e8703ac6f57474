package pipeline

import "PlaylistInsight/model"

// DedupStats counts what the deduplicator removed.
type DedupStats struct {
	Input      int `json:"input"`
	Output     int `json:"output"`
	Duplicates int `json:"duplicates"`
	Keyless    int `json:"keyless"`
}

// Deduplicate keeps exactly one record per key, in first-occurrence order.
// Among duplicates the record with more non-missing fields wins, and the
// later one wins a tie. Membership lists of all duplicates are unioned
// into the winner.
func Deduplicate[T any](records []T, s *Schema[T]) ([]T, DedupStats) {
	stats := DedupStats{Input: len(records)}

	type entry struct {
		winner  T
		filled  int
		members []string
		dup     bool
	}
	order := make([]string, 0, len(records))
	seen := make(map[string]*entry, len(records))

	for _, rec := range records {
		key := s.Key(&rec)
		if key == "" {
			stats.Keyless++
			continue
		}
		filled := s.Filled(&rec)
		e, ok := seen[key]
		if !ok {
			e = &entry{winner: rec, filled: filled}
			if s.Members != nil {
				e.members = *s.Members(&rec)
			}
			seen[key] = e
			order = append(order, key)
			continue
		}

		stats.Duplicates++
		if s.Members != nil {
			e.members = union(e.members, *s.Members(&rec))
		}
		e.dup = true
		if filled >= e.filled {
			e.winner, e.filled = rec, filled
		}
	}

	out := make([]T, 0, len(order))
	for _, key := range order {
		e := seen[key]
		if e.dup && s.Members != nil {
			*s.Members(&e.winner) = e.members
		}
		out = append(out, e.winner)
	}
	stats.Output = len(out)
	return out, stats
}

// union returns a fresh slice holding a then the items of b not in a,
// or nil when both are empty.
func union(a, b []string) []string {
	out := make([]string, 0, len(a)+len(b))
	seen := make(map[string]struct{}, len(a)+len(b))
	for _, list := range [][]string{a, b} {
		for _, v := range list {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DedupTracks deduplicates tracks by track identifier.
func DedupTracks(tracks []model.Track) ([]model.Track, DedupStats) {
	return Deduplicate(tracks, TrackSchema)
}

// DedupPlaylists deduplicates playlists by playlist identifier.
func DedupPlaylists(playlists []model.Playlist) ([]model.Playlist, DedupStats) {
	return Deduplicate(playlists, PlaylistSchema)
}
