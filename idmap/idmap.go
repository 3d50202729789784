// Package idmap translates similarity-index row positions back to stable
// restaurant identifiers.
package idmap

import (
	"encoding/json"
	"errors"
	"fmt"
)

// MisalignedError reports an identifier map whose length differs from the
// row count of the index it is paired with.
type MisalignedError struct {
	IDs  int
	Rows int
}

func (e *MisalignedError) Error() string {
	return fmt.Sprintf("idmap: identifier map has %d entries but index has %d rows", e.IDs, e.Rows)
}

// Map is an immutable positional array of restaurant identifiers.
type Map struct {
	ids  []string
	rows map[string]int
}

// New copies ids into a Map. Identifiers must be non-empty and unique.
func New(ids []string) (*Map, error) {
	if len(ids) == 0 {
		return nil, errors.New("idmap: no identifiers")
	}
	m := &Map{ids: append([]string(nil), ids...), rows: make(map[string]int, len(ids))}
	for row, id := range m.ids {
		if id == "" {
			return nil, fmt.Errorf("idmap: empty identifier at row %d", row)
		}
		if prev, dup := m.rows[id]; dup {
			return nil, fmt.Errorf("idmap: identifier %q at rows %d and %d", id, prev, row)
		}
		m.rows[id] = row
	}
	return m, nil
}

// Lookup returns the identifier stored at row.
func (m *Map) Lookup(row int) (string, bool) {
	if row < 0 || row >= len(m.ids) {
		return "", false
	}
	return m.ids[row], true
}

// Row returns the row holding id.
func (m *Map) Row(id string) (int, bool) {
	row, ok := m.rows[id]
	return row, ok
}

func (m *Map) Len() int { return len(m.ids) }

// IDs returns a copy of the identifiers in row order.
func (m *Map) IDs() []string { return append([]string(nil), m.ids...) }

// CheckAligned fails with *MisalignedError unless m has exactly rows entries.
func CheckAligned(m *Map, rows int) error {
	if m == nil {
		return &MisalignedError{IDs: 0, Rows: rows}
	}
	if m.Len() != rows {
		return &MisalignedError{IDs: m.Len(), Rows: rows}
	}
	return nil
}

// MarshalJSON encodes the map as a JSON array in row order.
func (m *Map) MarshalJSON() ([]byte, error) { return json.Marshal(m.ids) }

// UnmarshalJSON decodes a JSON array of identifiers.
func (m *Map) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return fmt.Errorf("idmap: %w", err)
	}
	restored, err := New(ids)
	if err != nil {
		return err
	}
	*m = *restored
	return nil
}
