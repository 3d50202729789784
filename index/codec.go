package index

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/kristinmlloyd/VibeCheck/vector"
)

const (
	codecMagic   = "VCIX"
	codecVersion = 1
	headerSize   = 4 + 4*4
)

var metricCodes = map[Metric]uint32{MetricL2: 1, MetricInnerProduct: 2}

// MarshalMatrix stores: magic "VCIX", version(uint32), metric(uint32),
// dim(uint32), rows(uint32), then rows×dim little-endian float32 values.
func MarshalMatrix(metric Metric, dim int, vecs [][]float32) ([]byte, error) {
	code, ok := metricCodes[metric]
	if !ok {
		return nil, fmt.Errorf("index: unknown metric %q", metric)
	}
	out := make([]byte, 0, headerSize+len(vecs)*dim*4)
	out = append(out, codecMagic...)
	out = binary.LittleEndian.AppendUint32(out, codecVersion)
	out = binary.LittleEndian.AppendUint32(out, code)
	out = binary.LittleEndian.AppendUint32(out, uint32(dim))
	out = binary.LittleEndian.AppendUint32(out, uint32(len(vecs)))
	for i, v := range vecs {
		if len(v) != dim {
			return nil, fmt.Errorf("index: row %d has dim %d, want %d", i, len(v), dim)
		}
		out = vector.AppendEmbedding(out, v)
	}
	return out, nil
}

// UnmarshalMatrix restores data written by MarshalMatrix.
func UnmarshalMatrix(data []byte) (Metric, [][]float32, error) {
	if len(data) < headerSize || string(data[:4]) != codecMagic {
		return "", nil, errors.New("index: invalid data")
	}
	if v := binary.LittleEndian.Uint32(data[4:8]); v != codecVersion {
		return "", nil, fmt.Errorf("index: unsupported format version %d", v)
	}
	code := binary.LittleEndian.Uint32(data[8:12])
	var metric Metric
	for m, c := range metricCodes {
		if c == code {
			metric = m
		}
	}
	if metric == "" {
		return "", nil, fmt.Errorf("index: unknown metric code %d", code)
	}
	dim := int(binary.LittleEndian.Uint32(data[12:16]))
	rows := int(binary.LittleEndian.Uint32(data[16:20]))
	vecs, err := vector.DecodeMatrix(data[headerSize:], rows, dim)
	if err != nil {
		return "", nil, fmt.Errorf("index: truncated: %w", err)
	}
	return metric, vecs, nil
}
