package stats

import (
	"encoding/json"
	"math"
	"sort"

	"PlaylistInsight/model"

	"gonum.org/v1/gonum/stat"
)

// MinPairs is the minimum number of valid pairs for a correlation.
const MinPairs = 2

// Matrix is a symmetric correlation matrix over named features.
type Matrix struct {
	Features []string
	cells    map[string]map[string]model.Opt[float64]
}

// Get returns the coefficient for a pair; ok is false when the pair is
// unknown or the coefficient is undefined.
func (m Matrix) Get(a, b string) (float64, bool) {
	row, ok := m.cells[a]
	if !ok {
		return 0, false
	}
	return row[b].Get()
}

func (m *Matrix) set(a, b string, v model.Opt[float64]) {
	if m.cells == nil {
		m.cells = make(map[string]map[string]model.Opt[float64])
	}
	for _, k := range [2][2]string{{a, b}, {b, a}} {
		row, ok := m.cells[k[0]]
		if !ok {
			row = make(map[string]model.Opt[float64])
			m.cells[k[0]] = row
		}
		row[k[1]] = v
	}
}

// MarshalJSON encodes the matrix as feature -> feature -> coefficient|null.
func (m Matrix) MarshalJSON() ([]byte, error) {
	if m.cells == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(m.cells)
}

// UnmarshalJSON restores a matrix written by MarshalJSON.
func (m *Matrix) UnmarshalJSON(data []byte) error {
	var cells map[string]map[string]model.Opt[float64]
	if err := json.Unmarshal(data, &cells); err != nil {
		return err
	}
	*m = Matrix{cells: cells}
	for name := range cells {
		m.Features = append(m.Features, name)
	}
	sort.Strings(m.Features)
	return nil
}

// Correlate computes pairwise Pearson correlation. A row missing either
// value of a pair is excluded from that pair only.
func Correlate(cols []Column) Matrix {
	m := Matrix{Features: make([]string, 0, len(cols))}
	for _, c := range cols {
		m.Features = append(m.Features, c.Name)
	}
	for i := range cols {
		for j := i; j < len(cols); j++ {
			m.set(cols[i].Name, cols[j].Name, pearson(cols[i], cols[j], i == j))
		}
	}
	return m
}

func pearson(a, b Column, self bool) model.Opt[float64] {
	n := len(a.Values)
	if len(b.Values) > n {
		n = len(b.Values)
	}
	xs := make([]float64, 0, n)
	ys := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		x, okx := a.valid(i)
		y, oky := b.valid(i)
		if okx && oky {
			xs = append(xs, x)
			ys = append(ys, y)
		}
	}
	if len(xs) < MinPairs {
		return model.None[float64]()
	}
	if self {
		return model.Some(1.0)
	}
	r := stat.Correlation(xs, ys, nil)
	if math.IsNaN(r) || math.IsInf(r, 0) {
		// zero variance on one side
		return model.None[float64]()
	}
	return model.Some(math.Max(-1, math.Min(1, r)))
}
