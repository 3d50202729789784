package snapshot

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/kristinmlloyd/VibeCheck/idmap"
	"github.com/kristinmlloyd/VibeCheck/index"
	"github.com/kristinmlloyd/VibeCheck/index/flat"
	"github.com/kristinmlloyd/VibeCheck/index/vptree"
)

// FormatVersion is bumped whenever the stored layout changes.
const FormatVersion = 1

// DefaultName is the snapshot row used when none is configured.
const DefaultName = "default"

// autoTreeThreshold is the corpus size from which KindAuto picks the VP-tree.
const autoTreeThreshold = 1024

// Meta describes a stored snapshot.
type Meta struct {
	Name       string
	BuildTag   string
	Kind       index.Kind
	Metric     index.Metric
	TextDim    int
	ImageDim   int
	TextModel  string
	ImageModel string
	Rows       int
	Checksum   string
	CreatedAt  time.Time
}

// Snapshot pairs a similarity index with its identifier map.
type Snapshot struct {
	Meta  Meta
	Index index.Index
	IDs   *idmap.Map
}

// ConfigError reports a snapshot that cannot be served: missing, corrupt or
// inconsistent with itself.
type ConfigError struct {
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("snapshot %q: %v", e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// New validates that idx and ids describe the same corpus and fills the
// derived metadata fields.
func New(idx index.Index, ids *idmap.Map, meta Meta) (*Snapshot, error) {
	if meta.Name == "" {
		meta.Name = DefaultName
	}
	if idx == nil || ids == nil {
		return nil, &ConfigError{Name: meta.Name, Err: errors.New("index and identifier map are required")}
	}
	if err := idmap.CheckAligned(ids, idx.Rows()); err != nil {
		return nil, &ConfigError{Name: meta.Name, Err: err}
	}
	if idx.Dim() != meta.TextDim+meta.ImageDim {
		return nil, &ConfigError{Name: meta.Name, Err: fmt.Errorf("index dim %d != text dim %d + image dim %d", idx.Dim(), meta.TextDim, meta.ImageDim)}
	}
	if meta.BuildTag == "" {
		meta.BuildTag = uuid.NewString()
	}
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = time.Now().UTC()
	}
	meta.Metric = idx.Metric()
	meta.Rows = idx.Rows()
	if meta.Kind == "" || meta.Kind == index.KindAuto {
		meta.Kind = kindOf(idx)
	}
	return &Snapshot{Meta: meta, Index: idx, IDs: ids}, nil
}

// NewIndex returns an empty index of the requested kind. KindAuto resolves
// to the VP-tree for L2 corpora of at least 1024 rows and to the flat scan
// otherwise.
func NewIndex(kind index.Kind, metric index.Metric, rows int) (index.Index, error) {
	if !metric.IsValid() {
		return nil, fmt.Errorf("snapshot: unknown metric %q", metric)
	}
	switch kind {
	case index.KindAuto, "":
		if metric == index.MetricL2 && rows >= autoTreeThreshold {
			return vptree.New(), nil
		}
		return flat.New(metric), nil
	case index.KindFlat:
		return flat.New(metric), nil
	case index.KindVPTree:
		if metric != index.MetricL2 {
			return nil, fmt.Errorf("snapshot: %s index requires the %s metric", kind, index.MetricL2)
		}
		return vptree.New(), nil
	default:
		return nil, fmt.Errorf("snapshot: unknown index kind %q", kind)
	}
}

func kindOf(idx index.Index) index.Kind {
	if _, ok := idx.(*vptree.Index); ok {
		return index.KindVPTree
	}
	return index.KindFlat
}
