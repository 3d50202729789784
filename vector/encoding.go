package vector

import (
	"encoding/binary"
	"fmt"
	"math"
)

// EncodeEmbedding encodes a slice of float32 values into a BLOB representation
// suitable for storage in SQLite. The encoding is a little-endian sequence of
// IEEE 754 float32 values without a length prefix; the length is derived from
// the BLOB size on decode.
func EncodeEmbedding(vec []float32) ([]byte, error) {
	if len(vec) == 0 {
		return nil, nil
	}
	return AppendEmbedding(make([]byte, 0, len(vec)*4), vec), nil
}

// AppendEmbedding appends the little-endian encoding of vec to dst.
func AppendEmbedding(dst []byte, vec []float32) []byte {
	for _, v := range vec {
		dst = binary.LittleEndian.AppendUint32(dst, math.Float32bits(v))
	}
	return dst
}

// DecodeEmbedding decodes a BLOB produced by EncodeEmbedding back into a
// slice of float32 values.
func DecodeEmbedding(b []byte) ([]float32, error) {
	if len(b) == 0 {
		return nil, nil
	}
	if len(b)%4 != 0 {
		return nil, fmt.Errorf("vector: invalid embedding blob length %d (not multiple of 4)", len(b))
	}
	n := len(b) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return vec, nil
}

// DecodeMatrix decodes a row-major BLOB of rows×dim float32 values. Every
// returned row aliases a single backing array.
func DecodeMatrix(b []byte, rows, dim int) ([][]float32, error) {
	if rows < 0 || dim < 0 {
		return nil, fmt.Errorf("vector: invalid matrix shape %dx%d", rows, dim)
	}
	if want := rows * dim * 4; len(b) != want {
		return nil, fmt.Errorf("vector: matrix blob length %d, want %d for %dx%d", len(b), want, rows, dim)
	}
	flat, err := DecodeEmbedding(b)
	if err != nil {
		return nil, err
	}
	out := make([][]float32, rows)
	for i := range out {
		out[i] = flat[i*dim : (i+1)*dim : (i+1)*dim]
	}
	return out, nil
}
