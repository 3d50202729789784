package snapshot

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kristinmlloyd/VibeCheck/engine"
	"github.com/kristinmlloyd/VibeCheck/idmap"
	"github.com/kristinmlloyd/VibeCheck/index"
)

const schema = `
CREATE TABLE IF NOT EXISTS vibe_snapshots (
    name        TEXT PRIMARY KEY,
    format      INTEGER NOT NULL,
    build_tag   TEXT NOT NULL,
    kind        TEXT NOT NULL,
    metric      TEXT NOT NULL,
    text_dim    INTEGER NOT NULL,
    image_dim   INTEGER NOT NULL,
    text_model  TEXT,
    image_model TEXT,
    row_count   INTEGER NOT NULL,
    checksum    TEXT NOT NULL,
    "index"     BLOB NOT NULL,
    ids         BLOB NOT NULL,
    created_at  TEXT NOT NULL
);
`

// EnsureSchema creates the snapshot table if it does not already exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}

// Open opens the snapshot database at path and ensures its schema. With
// mustExist set, a missing file is a *ConfigError.
func Open(ctx context.Context, path string, mustExist bool) (*sql.DB, error) {
	db, err := engine.OpenFile(path, mustExist)
	if err != nil {
		return nil, &ConfigError{Name: path, Err: err}
	}
	if err := EnsureSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("snapshot: schema: %w", err)
	}
	return db, nil
}

// Save writes the index and identifier map as one row in a single
// transaction, replacing any snapshot with the same name.
func Save(ctx context.Context, db *sql.DB, s *Snapshot) error {
	if s == nil {
		return errors.New("snapshot: nil snapshot")
	}
	indexBlob, err := s.Index.MarshalBinary()
	if err != nil {
		return fmt.Errorf("snapshot: marshal index: %w", err)
	}
	idsBlob, err := json.Marshal(s.IDs)
	if err != nil {
		return fmt.Errorf("snapshot: marshal ids: %w", err)
	}
	s.Meta.Checksum = checksum(indexBlob, idsBlob)

	// a dedicated connection keeps BEGIN IMMEDIATE and COMMIT on one session
	conn, err := db.Conn(ctx)
	if err != nil {
		return err
	}
	defer conn.Close()
	if _, err := conn.ExecContext(ctx, `BEGIN IMMEDIATE`); err != nil {
		return fmt.Errorf("snapshot: begin: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), `ROLLBACK`)
		}
	}()
	m := s.Meta
	_, err = conn.ExecContext(ctx, `INSERT OR REPLACE INTO vibe_snapshots
        (name, format, build_tag, kind, metric, text_dim, image_dim, text_model, image_model, row_count, checksum, "index", ids, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.Name, FormatVersion, m.BuildTag, string(m.Kind), string(m.Metric), m.TextDim, m.ImageDim,
		m.TextModel, m.ImageModel, m.Rows, m.Checksum, indexBlob, idsBlob, m.CreatedAt.UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("snapshot: insert: %w", err)
	}
	if _, err := conn.ExecContext(ctx, `COMMIT`); err != nil {
		return fmt.Errorf("snapshot: commit: %w", err)
	}
	committed = true
	return nil
}

// Load reads the named snapshot and verifies format, checksum, alignment
// and dimensions. Every failure is a *ConfigError.
func Load(ctx context.Context, db *sql.DB, name string) (*Snapshot, error) {
	fail := func(err error) (*Snapshot, error) { return nil, &ConfigError{Name: name, Err: err} }

	var (
		m          Meta
		format     int
		kind       string
		metric     string
		textModel  sql.NullString
		imageModel sql.NullString
		createdAt  string
		indexBlob  []byte
		idsBlob    []byte
	)
	err := db.QueryRowContext(ctx, `SELECT format, build_tag, kind, metric, text_dim, image_dim, text_model, image_model,
        row_count, checksum, "index", ids, created_at FROM vibe_snapshots WHERE name = ?`, name).
		Scan(&format, &m.BuildTag, &kind, &metric, &m.TextDim, &m.ImageDim, &textModel, &imageModel,
			&m.Rows, &m.Checksum, &indexBlob, &idsBlob, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return fail(errors.New("not found"))
	}
	if err != nil {
		return fail(err)
	}
	if format != FormatVersion {
		return fail(fmt.Errorf("format version %d, want %d", format, FormatVersion))
	}
	if got := checksum(indexBlob, idsBlob); got != m.Checksum {
		return fail(fmt.Errorf("checksum mismatch: stored %s, computed %s", m.Checksum, got))
	}
	m.Name = name
	m.Kind = index.Kind(kind)
	m.Metric = index.Metric(metric)
	m.TextModel = textModel.String
	m.ImageModel = imageModel.String
	if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
		m.CreatedAt = t
	}

	idx, err := NewIndex(m.Kind, m.Metric, m.Rows)
	if err != nil {
		return fail(err)
	}
	if err := idx.UnmarshalBinary(indexBlob); err != nil {
		return fail(err)
	}
	if idx.Metric() != m.Metric {
		return fail(fmt.Errorf("index metric %s, recorded %s", idx.Metric(), m.Metric))
	}
	if idx.Rows() != m.Rows {
		return fail(fmt.Errorf("index has %d rows, recorded %d", idx.Rows(), m.Rows))
	}
	ids := &idmap.Map{}
	if err := json.Unmarshal(idsBlob, ids); err != nil {
		return fail(err)
	}
	s, err := New(idx, ids, m)
	if err != nil {
		var cfg *ConfigError
		if errors.As(err, &cfg) {
			return nil, err
		}
		return fail(err)
	}
	return s, nil
}

func checksum(indexBlob, idsBlob []byte) string {
	h := sha256.New()
	h.Write(indexBlob)
	h.Write([]byte{0})
	h.Write(idsBlob)
	return hex.EncodeToString(h.Sum(nil))
}
