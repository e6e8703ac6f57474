package stats

import (
	"math"
	"sort"

	"PlaylistInsight/model"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultBins is the number of distribution buckets when none is configured.
const DefaultBins = 10

// Column is one numeric column. Values are aligned by row across the
// columns handed to Aggregate or Correlate.
type Column struct {
	Name   string
	Values []model.Opt[float64]
	Bounds *model.Bounds
}

// Bucket is one histogram bin, [Lower, Upper).
type Bucket struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// FeatureStats is the feature bundle of one column. Statistics that need
// more observations than the column has are absent.
type FeatureStats struct {
	Count     int                `json:"count"`
	Mean      model.Opt[float64] `json:"mean"`
	Median    model.Opt[float64] `json:"median"`
	StdDev    model.Opt[float64] `json:"std"`
	Min       model.Opt[float64] `json:"min"`
	Max       model.Opt[float64] `json:"max"`
	Histogram []Bucket           `json:"histogram,omitempty"`
}

// Options tunes Aggregate.
type Options struct {
	Bins int
}

func (o Options) bins() int {
	if o.Bins <= 0 {
		return DefaultBins
	}
	return o.Bins
}

// Summary is the Feature Aggregator output for one record set.
type Summary struct {
	Records      int                     `json:"records"`
	Features     map[string]FeatureStats `json:"features"`
	Correlations Matrix                  `json:"correlations"`
}

// Aggregate describes every column and correlates all of them.
func Aggregate(cols []Column, opts Options) Summary {
	s := Summary{
		Features:     make(map[string]FeatureStats, len(cols)),
		Correlations: Correlate(cols),
	}
	for _, c := range cols {
		if len(c.Values) > s.Records {
			s.Records = len(c.Values)
		}
		s.Features[c.Name] = Describe(c, opts.bins())
	}
	return s
}

// valid reports whether v is present and inside the column bounds.
func (c Column) valid(i int) (float64, bool) {
	if i >= len(c.Values) {
		return 0, false
	}
	v, ok := c.Values[i].Get()
	if !ok || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	if c.Bounds != nil && !c.Bounds.Contains(v) {
		return 0, false
	}
	return v, true
}

// Observations returns the valid values of the column in row order.
func (c Column) Observations() []float64 {
	out := make([]float64, 0, len(c.Values))
	for i := range c.Values {
		if v, ok := c.valid(i); ok {
			out = append(out, v)
		}
	}
	return out
}

// Describe computes the feature bundle of one column.
func Describe(c Column, bins int) FeatureStats {
	x := c.Observations()
	fs := FeatureStats{Count: len(x)}
	if len(x) == 0 {
		return fs
	}

	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)

	fs.Mean = model.Some(stat.Mean(sorted, nil))
	fs.Median = model.Some(median(sorted))
	fs.Min = model.Some(floats.Min(sorted))
	fs.Max = model.Some(floats.Max(sorted))
	if len(sorted) >= 2 {
		// stat.StdDev is the unbiased (N-1) estimator.
		fs.StdDev = model.Some(stat.StdDev(sorted, nil))
	}
	if bins > 0 {
		fs.Histogram = histogram(sorted, c.Bounds, bins)
	}
	return fs
}

func median(sorted []float64) float64 {
	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// histogram buckets sorted values over the column bounds, or the observed
// range when the bounds are open.
func histogram(sorted []float64, bounds *model.Bounds, bins int) []Bucket {
	lo, hi := sorted[0], sorted[len(sorted)-1]
	if bounds != nil && bounds.Finite() {
		lo, hi = bounds.Min, bounds.Max
	}
	if hi <= lo {
		return []Bucket{{Lower: lo, Upper: hi, Count: len(sorted)}}
	}

	dividers := make([]float64, bins+1)
	floats.Span(dividers, lo, hi)
	// stat.Histogram buckets are half-open; the top edge must include hi.
	dividers[bins] = math.Nextafter(hi, math.Inf(1))

	counts := stat.Histogram(nil, dividers, sorted, nil)
	out := make([]Bucket, bins)
	for i := range out {
		out[i] = Bucket{Lower: dividers[i], Upper: dividers[i+1], Count: int(counts[i])}
	}
	out[bins-1].Upper = hi
	return out
}
