package flat

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kristinmlloyd/VibeCheck/index"
)

// Index is an exact scan over all rows, scored by L2 distance or inner
// product.
type Index struct {
	metric index.Metric
	dim    int
	vecs   [][]float32
}

var _ index.Index = (*Index)(nil)

// New returns an empty flat index ranking by metric.
func New(metric index.Metric) *Index {
	return &Index{metric: metric}
}

// Build copies the corpus matrix into the index.
func (i *Index) Build(vectors [][]float32) error {
	if !i.metric.IsValid() {
		return fmt.Errorf("flat: unknown metric %q", i.metric)
	}
	dim, err := index.CheckCorpus(vectors)
	if err != nil {
		return err
	}
	vecs := make([][]float32, len(vectors))
	for j, v := range vectors {
		vecs[j] = append([]float32(nil), v...)
	}
	i.dim = dim
	i.vecs = vecs
	return nil
}

// Search scores every row against each query and keeps the best k.
func (i *Index) Search(queries [][]float32, k int) ([][]index.Neighbor, error) {
	if len(i.vecs) == 0 {
		return nil, errors.New("flat: index not built")
	}
	if err := index.CheckQueries(queries, i.dim, k); err != nil {
		return nil, err
	}
	if k > len(i.vecs) {
		k = len(i.vecs)
	}
	out := make([][]index.Neighbor, len(queries))
	for qi, q := range queries {
		scored := make([]index.Neighbor, len(i.vecs))
		for row, v := range i.vecs {
			scored[row] = index.Neighbor{Row: row, Distance: i.metric.Score(q, v)}
		}
		sort.Slice(scored, func(a, b int) bool { return i.metric.Ahead(scored[a], scored[b]) })
		out[qi] = scored[:k:k]
	}
	return out, nil
}

func (i *Index) Rows() int { return len(i.vecs) }

func (i *Index) Dim() int { return i.dim }

func (i *Index) Metric() index.Metric { return i.metric }

// Vector returns the stored row; callers must not modify it.
func (i *Index) Vector(row int) []float32 {
	if row < 0 || row >= len(i.vecs) {
		return nil
	}
	return i.vecs[row]
}

// MarshalBinary encodes the index in the shared matrix format.
func (i *Index) MarshalBinary() ([]byte, error) {
	if len(i.vecs) == 0 {
		return nil, errors.New("flat: index not built")
	}
	return index.MarshalMatrix(i.metric, i.dim, i.vecs)
}

// UnmarshalBinary restores the index, including its metric.
func (i *Index) UnmarshalBinary(data []byte) error {
	metric, vecs, err := index.UnmarshalMatrix(data)
	if err != nil {
		return err
	}
	i.metric = metric
	return i.Build(vecs)
}
