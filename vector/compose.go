package vector

import (
	"errors"
	"fmt"
)

// ErrZeroMagnitude is returned when normalizing a vector whose norm is zero.
var ErrZeroMagnitude = errors.New("vector: zero-magnitude vector")

// Normalize returns a copy of v scaled to unit L2 norm.
func Normalize(v []float32) ([]float32, error) {
	m := Magnitude(v)
	if m == 0 {
		return nil, ErrZeroMagnitude
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / m)
	}
	return out, nil
}

// Mean returns the element-wise average of vecs. All vectors must share a
// length.
func Mean(vecs [][]float32) ([]float32, error) {
	if len(vecs) == 0 {
		return nil, errors.New("vector: mean of no vectors")
	}
	dim := len(vecs[0])
	sum := make([]float64, dim)
	for i, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("vector: mean dimension mismatch at %d: %d vs %d", i, len(v), dim)
		}
		for j, x := range v {
			sum[j] += float64(x)
		}
	}
	out := make([]float32, dim)
	n := float64(len(vecs))
	for j := range sum {
		out[j] = float32(sum[j] / n)
	}
	return out, nil
}

// Zero returns the zero vector of length dim.
func Zero(dim int) []float32 { return make([]float32, dim) }

// Concat builds a composite embedding [text ‖ image]. A nil part is replaced
// by the zero vector of its declared dimension; a non-nil part must match it.
func Concat(text []float32, textDim int, image []float32, imageDim int) ([]float32, error) {
	if text != nil && len(text) != textDim {
		return nil, fmt.Errorf("vector: text part has %d dims, want %d", len(text), textDim)
	}
	if image != nil && len(image) != imageDim {
		return nil, fmt.Errorf("vector: image part has %d dims, want %d", len(image), imageDim)
	}
	out := make([]float32, textDim+imageDim)
	copy(out, text)
	copy(out[textDim:], image)
	return out, nil
}

// MeanPool averages the rows of a [seq×dim] hidden-state matrix whose mask
// entry is non-zero. It returns an error if no row is selected.
func MeanPool(hidden []float32, seq, dim int, mask []int64) ([]float32, error) {
	if len(hidden) != seq*dim {
		return nil, fmt.Errorf("vector: hidden state has %d values, want %d×%d", len(hidden), seq, dim)
	}
	if len(mask) != seq {
		return nil, fmt.Errorf("vector: mask has %d entries, want %d", len(mask), seq)
	}
	sum := make([]float64, dim)
	var n float64
	for t := 0; t < seq; t++ {
		if mask[t] == 0 {
			continue
		}
		row := hidden[t*dim : (t+1)*dim]
		for j, x := range row {
			sum[j] += float64(x)
		}
		n++
	}
	if n == 0 {
		return nil, errors.New("vector: mean pool over empty mask")
	}
	out := make([]float32, dim)
	for j := range sum {
		out[j] = float32(sum[j] / n)
	}
	return out, nil
}
