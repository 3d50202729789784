package index

import (
	"errors"
	"fmt"

	"github.com/kristinmlloyd/VibeCheck/vector"
)

// ErrEmptyCorpus is returned when building an index over zero vectors.
var ErrEmptyCorpus = errors.New("index: empty corpus")

// Metric names the scoring function an index ranks by.
type Metric string

const (
	// MetricL2 ranks by ascending Euclidean distance.
	MetricL2 Metric = "l2"
	// MetricInnerProduct ranks by descending raw inner product.
	MetricInnerProduct Metric = "ip"
)

// IsValid reports whether m is a supported metric.
func (m Metric) IsValid() bool {
	switch m {
	case MetricL2, MetricInnerProduct:
		return true
	}
	return false
}

// ParseMetric converts a config string into a Metric.
func ParseMetric(s string) (Metric, error) {
	m := Metric(s)
	if !m.IsValid() {
		return "", fmt.Errorf("index: unknown metric %q", s)
	}
	return m, nil
}

// Better reports whether score a ranks strictly ahead of score b.
func (m Metric) Better(a, b float64) bool {
	if m == MetricInnerProduct {
		return a > b
	}
	return a < b
}

// Score returns the raw score between a and b. Lengths must match.
func (m Metric) Score(a, b []float32) float64 {
	var s float64
	if m == MetricInnerProduct {
		s, _ = vector.Dot(a, b)
	} else {
		s, _ = vector.L2Distance(a, b)
	}
	return s
}

// Kind selects an index implementation.
type Kind string

const (
	KindAuto   Kind = "auto"
	KindFlat   Kind = "flat"
	KindVPTree Kind = "vptree"
)

// IsValid reports whether k is a supported kind.
func (k Kind) IsValid() bool {
	switch k {
	case KindAuto, KindFlat, KindVPTree:
		return true
	}
	return false
}

// Neighbor is one search hit: the corpus row and its raw score under the
// index metric.
type Neighbor struct {
	Row      int
	Distance float64
}

// Ahead reports whether a ranks before b under m, breaking score ties by
// ascending row.
func (m Metric) Ahead(a, b Neighbor) bool {
	if a.Distance != b.Distance {
		return m.Better(a.Distance, b.Distance)
	}
	return a.Row < b.Row
}

// Index is an immutable nearest-neighbour structure over composite
// embeddings, addressed by row position.
type Index interface {
	// Build loads the corpus matrix. Rows must share a dimension; an empty
	// corpus fails with ErrEmptyCorpus.
	Build(vectors [][]float32) error

	// Search returns, for every query row, min(k, Rows()) neighbours ordered
	// best-first. Equal scores are ordered by ascending row.
	Search(queries [][]float32, k int) ([][]Neighbor, error)

	// Rows returns the number of indexed vectors.
	Rows() int

	// Dim returns the vector dimension.
	Dim() int

	// Metric returns the scoring metric.
	Metric() Metric

	// Vector returns the stored vector at row, or nil when out of range.
	Vector(row int) []float32

	MarshalBinary() ([]byte, error)
	UnmarshalBinary(data []byte) error
}

// CheckQueries validates a query batch against an index dimension and k.
func CheckQueries(queries [][]float32, dim, k int) error {
	if k < 1 {
		return fmt.Errorf("index: k must be >= 1, got %d", k)
	}
	for i, q := range queries {
		if len(q) != dim {
			return fmt.Errorf("index: query %d has dim %d, index dim %d", i, len(q), dim)
		}
	}
	return nil
}

// CheckCorpus validates a build matrix and returns its dimension.
func CheckCorpus(vectors [][]float32) (int, error) {
	if len(vectors) == 0 {
		return 0, ErrEmptyCorpus
	}
	dim := len(vectors[0])
	if dim == 0 {
		return 0, errors.New("index: zero-dimension vectors")
	}
	for i := range vectors {
		if len(vectors[i]) != dim {
			return 0, fmt.Errorf("index: inconsistent vector dims at row %d: %d vs %d", i, len(vectors[i]), dim)
		}
	}
	return dim, nil
}
