package pipeline

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"PlaylistInsight/model"
)

// DefaultNullTokens are raw strings that mean "no value".
var DefaultNullTokens = []string{"", "na", "n/a", "nan", "null", "none", "<nil>"}

// DefaultListSeparator splits list fields given as a single string.
const DefaultListSeparator = ";"

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// NormalizeConfig holds the caller's coercion rules.
type NormalizeConfig struct {
	// NullTokens replaces DefaultNullTokens when set. Compared case-insensitively.
	NullTokens []string
	// ListSeparator replaces DefaultListSeparator when set.
	ListSeparator string
	// Aliases adds raw column names per canonical field name.
	Aliases map[string][]string
}

// NormalizeStats reports what the normalizer could not coerce.
type NormalizeStats struct {
	Records          int            `json:"records"`
	CoercionFailures map[string]int `json:"coercionFailures"`
}

// Failures is the total number of fields set to missing by coercion.
func (s NormalizeStats) Failures() int {
	n := 0
	for _, c := range s.CoercionFailures {
		n += c
	}
	return n
}

type coercer struct {
	nulls map[string]struct{}
	sep   string
}

var defaultCoercer = newCoercer(NormalizeConfig{})

func newCoercer(cfg NormalizeConfig) coercer {
	tokens := cfg.NullTokens
	if tokens == nil {
		tokens = DefaultNullTokens
	}
	c := coercer{nulls: make(map[string]struct{}, len(tokens)+1), sep: cfg.ListSeparator}
	for _, t := range tokens {
		c.nulls[strings.ToLower(strings.TrimSpace(t))] = struct{}{}
	}
	// whitespace-only is never a value
	c.nulls[""] = struct{}{}
	if c.sep == "" {
		c.sep = DefaultListSeparator
	}
	return c
}

func (c coercer) isNull(raw any) bool {
	switch v := raw.(type) {
	case nil:
		return true
	case string:
		_, ok := c.nulls[strings.ToLower(strings.TrimSpace(v))]
		return ok
	case float64:
		return math.IsNaN(v)
	case float32:
		return math.IsNaN(float64(v))
	}
	return false
}

func (c coercer) text(raw any) (string, bool) {
	if c.isNull(raw) {
		return "", false
	}
	switch v := raw.(type) {
	case string:
		return strings.TrimSpace(v), true
	case fmt.Stringer:
		return strings.TrimSpace(v.String()), true
	case int, int32, int64, bool:
		return fmt.Sprint(v), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

func (c coercer) float(raw any) (float64, bool) {
	if c.isNull(raw) {
		return 0, false
	}
	var f float64
	switch v := raw.(type) {
	case float64:
		f = v
	case float32:
		f = float64(v)
	case int:
		f = float64(v)
	case int32:
		f = float64(v)
	case int64:
		f = float64(v)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func (c coercer) integer(raw any) (int64, bool) {
	switch v := raw.(type) {
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, true
		}
	}
	// "42.0" as written by dataframe exports
	f, ok := c.float(raw)
	if !ok || f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, false
	}
	return int64(f), true
}

func (c coercer) boolean(raw any) (bool, bool) {
	if c.isNull(raw) {
		return false, false
	}
	switch v := raw.(type) {
	case bool:
		return v, true
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "yes", "y":
			return true, true
		case "no", "n":
			return false, true
		}
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return b, err == nil
	}
	n, ok := c.integer(raw)
	if !ok || (n != 0 && n != 1) {
		return false, false
	}
	return n == 1, true
}

func (c coercer) date(raw any) (model.ReleaseDate, bool) {
	if c.isNull(raw) {
		return model.ReleaseDate{}, false
	}
	switch v := raw.(type) {
	case model.ReleaseDate:
		return v, v.Year > 0
	case time.Time:
		return model.ReleaseDate{Year: v.Year(), Month: int(v.Month()), Day: v.Day()}, true
	case string:
		d, err := model.ParseReleaseDate(v)
		return d, err == nil
	}
	year, ok := c.integer(raw)
	if !ok || year < 1 || year > 9999 {
		return model.ReleaseDate{}, false
	}
	return model.ReleaseDate{Year: int(year)}, true
}

func (c coercer) timestamp(raw any) (time.Time, bool) {
	if c.isNull(raw) {
		return time.Time{}, false
	}
	if t, ok := raw.(time.Time); ok {
		return t.UTC(), true
	}
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UTC(), true
			}
		}
	}
	// unix seconds
	secs, ok := c.integer(raw)
	if !ok || secs < 0 {
		return time.Time{}, false
	}
	return time.Unix(secs, 0).UTC(), true
}

func (c coercer) list(raw any) ([]string, bool) {
	if c.isNull(raw) {
		return nil, false
	}
	var parts []string
	switch v := raw.(type) {
	case []string:
		parts = v
	case []any:
		for _, item := range v {
			s, ok := c.text(item)
			if !ok {
				continue
			}
			parts = append(parts, s)
		}
	case string:
		parts = strings.Split(v, c.sep)
	default:
		return nil, false
	}

	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, p := range parts {
		if c.isNull(p) {
			continue
		}
		p = strings.TrimSpace(p)
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out, len(out) > 0
}

func roundInt(v float64) int64 {
	return int64(math.Round(v))
}

// spotifyID strips the "spotify:track:" style prefix of URIs.
func spotifyID(s string) string {
	if strings.HasPrefix(s, "spotify:") {
		return s[strings.LastIndex(s, ":")+1:]
	}
	return s
}

// lookup finds the first candidate column present in the record.
func lookup(rec map[string]any, candidates []string) (any, bool) {
	for _, name := range candidates {
		if v, ok := rec[normalizeKey(name)]; ok {
			return v, true
		}
	}
	return nil, false
}

// Normalize maps raw records onto schema s. Fields that cannot be coerced
// are left missing and counted; no record is ever dropped here.
func Normalize[T any](raw []RawRecord, s *Schema[T], cfg NormalizeConfig) ([]T, NormalizeStats) {
	c := newCoercer(cfg)
	stats := NormalizeStats{Records: len(raw), CoercionFailures: make(map[string]int)}
	keyCandidates := append(append([]string{s.KeyName}, s.KeyAliases...), cfg.Aliases[s.KeyName]...)

	out := make([]T, 0, len(raw))
	for _, r := range raw {
		lower := make(map[string]any, len(r))
		for k, v := range r {
			lower[normalizeKey(k)] = v
		}

		var rec T
		if v, ok := lookup(lower, keyCandidates); ok {
			if id, ok := c.text(v); ok {
				s.SetKey(&rec, spotifyID(id))
			}
		}

		for _, f := range s.Fields {
			candidates := append(append([]string{f.Name}, f.Aliases...), cfg.Aliases[f.Name]...)
			v, ok := lookup(lower, candidates)
			if !ok || c.isNull(v) {
				continue
			}
			if !f.assign(&rec, v, c) {
				f.clear(&rec)
				stats.CoercionFailures[f.Name]++
			}
		}
		out = append(out, rec)
	}
	return out, stats
}

// NormalizeTracks maps raw track records onto the track schema.
func NormalizeTracks(raw []RawRecord, cfg NormalizeConfig) ([]model.Track, NormalizeStats) {
	return Normalize(raw, TrackSchema, cfg)
}

// NormalizePlaylists maps raw playlist records onto the playlist schema.
func NormalizePlaylists(raw []RawRecord, cfg NormalizeConfig) ([]model.Playlist, NormalizeStats) {
	return Normalize(raw, PlaylistSchema, cfg)
}
