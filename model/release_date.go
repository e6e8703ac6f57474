package model

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DatePrecision is the granularity a release date was published with.
type DatePrecision string

const (
	PrecisionYear  DatePrecision = "year"
	PrecisionMonth DatePrecision = "month"
	PrecisionDay   DatePrecision = "day"
)

// ReleaseDate is a release date with partial precision. Month and Day are
// zero when unknown.
type ReleaseDate struct {
	Year  int
	Month int
	Day   int
}

// Precision returns the precision of the date.
func (d ReleaseDate) Precision() DatePrecision {
	switch {
	case d.Month == 0:
		return PrecisionYear
	case d.Day == 0:
		return PrecisionMonth
	default:
		return PrecisionDay
	}
}

// String formats the date at its own precision, e.g. "1987" or "1987-05".
func (d ReleaseDate) String() string {
	switch d.Precision() {
	case PrecisionYear:
		return fmt.Sprintf("%04d", d.Year)
	case PrecisionMonth:
		return fmt.Sprintf("%04d-%02d", d.Year, d.Month)
	default:
		return fmt.Sprintf("%04d-%02d-%02d", d.Year, d.Month, d.Day)
	}
}

func (d ReleaseDate) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *ReleaseDate) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseReleaseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseReleaseDate parses "YYYY", "YYYY-MM" or "YYYY-MM-DD", optionally
// followed by a time part ("1987-05-21 00:00:00", "1987-05-21T00:00:00Z").
func ParseReleaseDate(s string) (ReleaseDate, error) {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, " T"); i >= 0 {
		s = s[:i]
	}
	parts := strings.Split(s, "-")
	if len(parts) == 0 || len(parts) > 3 || len(parts[0]) != 4 {
		return ReleaseDate{}, fmt.Errorf("invalid release date %q", s)
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		if (i > 0 && len(p) != 2) || p == "" {
			return ReleaseDate{}, fmt.Errorf("invalid release date %q", s)
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return ReleaseDate{}, fmt.Errorf("invalid release date %q: %w", s, err)
		}
		nums[i] = n
	}

	d := ReleaseDate{Year: nums[0]}
	if d.Year < 1 {
		return ReleaseDate{}, fmt.Errorf("invalid release year %d", d.Year)
	}
	if len(nums) > 1 {
		d.Month = nums[1]
		if d.Month < 1 || d.Month > 12 {
			return ReleaseDate{}, fmt.Errorf("invalid release month %d", d.Month)
		}
	}
	if len(nums) > 2 {
		d.Day = nums[2]
		t := time.Date(d.Year, time.Month(d.Month), d.Day, 0, 0, 0, 0, time.UTC)
		if d.Day < 1 || t.Day() != d.Day {
			return ReleaseDate{}, fmt.Errorf("invalid release day %d", d.Day)
		}
	}
	return d, nil
}
