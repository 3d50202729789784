// Package indexer builds a snapshot from the record store: one composite
// embedding per restaurant, in corpus order, indexed and paired with the
// restaurant identifiers.
package indexer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kristinmlloyd/VibeCheck/encoder"
	"github.com/kristinmlloyd/VibeCheck/fusion"
	"github.com/kristinmlloyd/VibeCheck/idmap"
	"github.com/kristinmlloyd/VibeCheck/index"
	"github.com/kristinmlloyd/VibeCheck/internal/observe"
	"github.com/kristinmlloyd/VibeCheck/photos"
	"github.com/kristinmlloyd/VibeCheck/snapshot"
	"github.com/kristinmlloyd/VibeCheck/store"
	"github.com/kristinmlloyd/VibeCheck/vector"
)

// DefaultMaxPhotos is the number of photos averaged per restaurant.
const DefaultMaxPhotos = 5

// Corpus enumerates build input. *store.Store implements it.
type Corpus interface {
	Corpus(ctx context.Context, maxPhotos int) ([]store.CorpusItem, error)
}

// Stats summarizes a build.
type Stats struct {
	Restaurants      int
	WithImages       int
	ReviewsProcessed int
	PhotosEncoded    int
	PhotosSkipped    int
	Dim              int
	Elapsed          time.Duration
}

// Builder produces snapshots.
type Builder struct {
	corpus    Corpus
	photos    photos.Source
	models    fusion.Models
	name      string
	metric    index.Metric
	kind      index.Kind
	maxPhotos int
	workers   int
	logger    *slog.Logger
	metrics   *observe.Metrics
}

// Option configures a Builder.
type Option func(*Builder)

// WithName sets the snapshot name. Default: snapshot.DefaultName.
func WithName(name string) Option { return func(b *Builder) { b.name = name } }

// WithMetric sets the index metric. Default: index.MetricL2.
func WithMetric(m index.Metric) Option { return func(b *Builder) { b.metric = m } }

// WithKind sets the index implementation. Default: index.KindAuto.
func WithKind(k index.Kind) Option { return func(b *Builder) { b.kind = k } }

// WithMaxPhotos caps the photos averaged per restaurant.
func WithMaxPhotos(n int) Option { return func(b *Builder) { b.maxPhotos = n } }

// WithWorkers bounds concurrent encodings. Default: GOMAXPROCS.
func WithWorkers(n int) Option { return func(b *Builder) { b.workers = n } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(b *Builder) { b.logger = l } }

// WithMetrics enables degradation metrics.
func WithMetrics(m *observe.Metrics) Option { return func(b *Builder) { b.metrics = m } }

// New returns a Builder reading restaurants from corpus and photos from src.
func New(corpus Corpus, src photos.Source, models fusion.Models, opts ...Option) *Builder {
	b := &Builder{
		corpus:    corpus,
		photos:    src,
		models:    models,
		name:      snapshot.DefaultName,
		metric:    index.MetricL2,
		kind:      index.KindAuto,
		maxPhotos: DefaultMaxPhotos,
		workers:   runtime.GOMAXPROCS(0),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(b)
	}
	if b.workers < 1 {
		b.workers = 1
	}
	return b
}

// Build embeds the whole corpus and returns an unsaved snapshot.
func (b *Builder) Build(ctx context.Context) (*snapshot.Snapshot, Stats, error) {
	start := time.Now()
	info := b.models.Info()
	items, err := b.corpus.Corpus(ctx, b.maxPhotos)
	if err != nil {
		return nil, Stats{}, err
	}
	if len(items) == 0 {
		return nil, Stats{}, index.ErrEmptyCorpus
	}

	text, err := b.models.TextEncoder(ctx)
	if err != nil {
		return nil, Stats{}, err
	}
	var img encoder.ImageEncoder
	var pre encoder.Preprocessor
	if hasPhotos(items) {
		if img, pre, err = b.models.ImageEncoder(ctx); err != nil {
			return nil, Stats{}, err
		}
	}

	b.logger.Info("building index", "restaurants", len(items), "workers", b.workers, "metric", b.metric)
	vectors := make([][]float32, len(items))
	var encoded, skipped, withImages, done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.workers)
	for i, item := range items {
		g.Go(func() error {
			t, err := text.EncodeText(gctx, Text(item))
			if err != nil {
				return fmt.Errorf("indexer: encode text of %s: %w", item.ID, err)
			}
			if t, err = vector.Normalize(t); err != nil {
				return fmt.Errorf("indexer: encode text of %s: %w", item.ID, err)
			}
			var iv []float32
			if len(item.Photos) > 0 {
				var n, miss int
				iv, n, miss = b.imageVector(gctx, img, pre, item)
				encoded.Add(int64(n))
				skipped.Add(int64(miss))
				if iv != nil {
					withImages.Add(1)
				}
			}
			row, err := vector.Concat(t, info.TextDim, iv, info.ImageDim)
			if err != nil {
				return fmt.Errorf("indexer: %s: %w", item.ID, err)
			}
			vectors[i] = row
			if n := done.Add(1); n%100 == 0 {
				b.logger.Info("build progress", "done", n, "total", len(items))
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, Stats{}, err
	}

	ids := make([]string, len(items))
	reviews := 0
	for i, item := range items {
		ids[i] = item.ID
		reviews += item.ReviewRows
	}
	m, err := idmap.New(ids)
	if err != nil {
		return nil, Stats{}, fmt.Errorf("indexer: %w", err)
	}
	idx, err := snapshot.NewIndex(b.kind, b.metric, len(vectors))
	if err != nil {
		return nil, Stats{}, err
	}
	if err := idx.Build(vectors); err != nil {
		return nil, Stats{}, fmt.Errorf("indexer: %w", err)
	}
	snap, err := snapshot.New(idx, m, snapshot.Meta{
		Name:       b.name,
		Kind:       b.kind,
		TextDim:    info.TextDim,
		ImageDim:   info.ImageDim,
		TextModel:  info.TextModel,
		ImageModel: info.ImageModel,
	})
	if err != nil {
		return nil, Stats{}, err
	}
	st := Stats{
		Restaurants:      len(items),
		WithImages:       int(withImages.Load()),
		ReviewsProcessed: reviews,
		PhotosEncoded:    int(encoded.Load()),
		PhotosSkipped:    int(skipped.Load()),
		Dim:              idx.Dim(),
		Elapsed:          time.Since(start),
	}
	b.logger.Info("index built",
		"restaurants", st.Restaurants,
		"with_images", st.WithImages,
		"reviews", st.ReviewsProcessed,
		"dim", st.Dim,
		"kind", snap.Meta.Kind,
		"build_tag", snap.Meta.BuildTag,
		"elapsed", st.Elapsed)
	return snap, st, nil
}

// Text returns the text embedded for item: all review texts joined by
// spaces, or the name when the restaurant has no review rows.
func Text(item store.CorpusItem) string {
	if item.ReviewRows == 0 {
		return item.Name
	}
	return strings.Join(item.Reviews, " ")
}

// imageVector averages the embeddings of item's readable photos and
// renormalizes. It returns nil when no photo could be used.
func (b *Builder) imageVector(ctx context.Context, enc encoder.ImageEncoder, pre encoder.Preprocessor, item store.CorpusItem) ([]float32, int, int) {
	var vecs [][]float32
	skipped := 0
	for _, name := range item.Photos {
		v, err := b.encodePhoto(ctx, enc, pre, name)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil, len(vecs), skipped
			}
			skipped++
			b.logger.Warn("skipping photo", "restaurant_id", item.ID, "path", name, "err", err)
			b.metrics.RecordDegraded(ctx, encoder.ModalityImage, "build")
			continue
		}
		vecs = append(vecs, v)
	}
	if len(vecs) == 0 {
		return nil, 0, skipped
	}
	mean, err := vector.Mean(vecs)
	if err != nil {
		return nil, 0, skipped
	}
	norm, err := vector.Normalize(mean)
	if err != nil {
		// opposing photo embeddings cancelled out
		return nil, len(vecs), skipped
	}
	return norm, len(vecs), skipped
}

func (b *Builder) encodePhoto(ctx context.Context, enc encoder.ImageEncoder, pre encoder.Preprocessor, name string) ([]float32, error) {
	rc, err := b.photos.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	img, _, err := encoder.DecodeImage(rc)
	if err != nil {
		return nil, err
	}
	return fusion.EncodeImage(ctx, enc, pre, img)
}

func hasPhotos(items []store.CorpusItem) bool {
	for _, it := range items {
		if len(it.Photos) > 0 {
			return true
		}
	}
	return false
}
