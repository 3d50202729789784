package vptree

import (
	"container/heap"
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/kristinmlloyd/VibeCheck/index"
)

// slack absorbs float32 rounding in the triangle-inequality bounds so that
// pruning never discards an exact tie.
const slack = 1e-5

// Index implements an exact L2 kNN index using a vantage-point tree to prune
// search. It serializes using the shared matrix format.
type Index struct {
	dim  int
	vecs [][]float32
	root *node
}

var _ index.Index = (*Index)(nil)

type node struct {
	row   int
	thr   float64
	left  *node
	right *node
}

// New returns an empty VP-tree index.
func New() *Index { return &Index{} }

// Build copies the corpus and constructs the tree.
func (i *Index) Build(vectors [][]float32) error {
	dim, err := index.CheckCorpus(vectors)
	if err != nil {
		return err
	}
	i.vecs = make([][]float32, len(vectors))
	for j, v := range vectors {
		i.vecs[j] = append([]float32(nil), v...)
	}
	i.dim = dim
	rows := make([]int, len(vectors))
	for k := range rows {
		rows[k] = k
	}
	i.root = i.build(rows)
	return nil
}

func (i *Index) build(rows []int) *node {
	if len(rows) == 0 {
		return nil
	}
	// last row is the vantage point, keeping construction deterministic
	vp := rows[len(rows)-1]
	rest := rows[:len(rows)-1]
	if len(rest) == 0 {
		return &node{row: vp}
	}
	dists := make(map[int]float64, len(rest))
	for _, r := range rest {
		dists[r] = i.dist(i.vecs[vp], r)
	}
	ordered := append([]int(nil), rest...)
	sort.Slice(ordered, func(a, b int) bool {
		da, db := dists[ordered[a]], dists[ordered[b]]
		if da != db {
			return da < db
		}
		return ordered[a] < ordered[b]
	})
	mid := len(ordered) / 2
	return &node{
		row:   vp,
		thr:   dists[ordered[mid]],
		left:  i.build(ordered[:mid+1]),
		right: i.build(ordered[mid+1:]),
	}
}

func (i *Index) dist(q []float32, row int) float64 {
	return index.MetricL2.Score(q, i.vecs[row])
}

// Search walks the tree per query, keeping the best k candidates.
func (i *Index) Search(queries [][]float32, k int) ([][]index.Neighbor, error) {
	if i.root == nil {
		return nil, errors.New("vptree: index not built")
	}
	if err := index.CheckQueries(queries, i.dim, k); err != nil {
		return nil, err
	}
	if k > len(i.vecs) {
		k = len(i.vecs)
	}
	out := make([][]index.Neighbor, len(queries))
	for qi, q := range queries {
		out[qi] = i.search(q, k)
	}
	return out, nil
}

func (i *Index) search(q []float32, k int) []index.Neighbor {
	cands := &worstFirst{}
	tau := func() float64 {
		if cands.Len() < k {
			return math.Inf(1)
		}
		return (*cands)[0].Distance
	}
	var visit func(n *node)
	visit = func(n *node) {
		if n == nil {
			return
		}
		d := i.dist(q, n.row)
		hit := index.Neighbor{Row: n.row, Distance: d}
		if cands.Len() < k {
			heap.Push(cands, hit)
		} else if index.MetricL2.Ahead(hit, (*cands)[0]) {
			(*cands)[0] = hit
			heap.Fix(cands, 0)
		}
		if d < n.thr {
			if d-tau() <= n.thr+slack {
				visit(n.left)
			}
			if d+tau() >= n.thr-slack {
				visit(n.right)
			}
			return
		}
		if d+tau() >= n.thr-slack {
			visit(n.right)
		}
		if d-tau() <= n.thr+slack {
			visit(n.left)
		}
	}
	visit(i.root)
	res := []index.Neighbor(*cands)
	sort.Slice(res, func(a, b int) bool { return index.MetricL2.Ahead(res[a], res[b]) })
	return res
}

func (i *Index) Rows() int { return len(i.vecs) }

func (i *Index) Dim() int { return i.dim }

func (i *Index) Metric() index.Metric { return index.MetricL2 }

// Vector returns the stored row; callers must not modify it.
func (i *Index) Vector(row int) []float32 {
	if row < 0 || row >= len(i.vecs) {
		return nil
	}
	return i.vecs[row]
}

// MarshalBinary stores the corpus matrix; the tree is rebuilt on load.
func (i *Index) MarshalBinary() ([]byte, error) {
	if i.root == nil {
		return nil, errors.New("vptree: index not built")
	}
	return index.MarshalMatrix(index.MetricL2, i.dim, i.vecs)
}

// UnmarshalBinary loads the matrix format and rebuilds the tree.
func (i *Index) UnmarshalBinary(data []byte) error {
	metric, vecs, err := index.UnmarshalMatrix(data)
	if err != nil {
		return err
	}
	if metric != index.MetricL2 {
		return fmt.Errorf("vptree: unsupported metric %q", metric)
	}
	return i.Build(vecs)
}

// worstFirst is a max-heap whose root is the worst retained candidate.
type worstFirst []index.Neighbor

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(a, b int) bool { return index.MetricL2.Ahead(h[b], h[a]) }
func (h worstFirst) Swap(a, b int)      { h[a], h[b] = h[b], h[a] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(index.Neighbor)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
