package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/kristinmlloyd/VibeCheck/engine"
)

// Store reads and writes restaurant records.
type Store struct {
	db *sql.DB
}

// New wraps an open database and ensures the schema.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("store: db is nil")
	}
	if err := EnsureSchema(ctx, db); err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Open opens the record database at path. With mustExist set a missing file
// is an error.
func Open(ctx context.Context, path string, mustExist bool) (*Store, error) {
	db, err := engine.OpenFile(path, mustExist)
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	s, err := New(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// DB returns the underlying database.
func (s *Store) DB() *sql.DB { return s.db }

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Get returns the restaurant with the given identifier. A missing
// restaurant, or an identifier that is not a record id, yields
// (nil, false, nil).
func (s *Store) Get(ctx context.Context, id string, detail Detail) (*Restaurant, bool, error) {
	rid, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return nil, false, nil
	}

	var (
		r       Restaurant
		address sql.NullString
		rating  sql.NullFloat64
		count   sql.NullInt64
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, name, place_id, address, rating, reviews_count FROM restaurants WHERE id = ?`, rid,
	).Scan(&r.ID, &r.Name, &r.PlaceID, &address, &rating, &count)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("store: get %d: %w", rid, err)
	}
	if address.Valid {
		r.Address = &address.String
	}
	if rating.Valid {
		r.Rating = &rating.Float64
	}
	if count.Valid {
		r.ReviewsCount = &count.Int64
	}

	photoLimit, reviewLimit := SummaryPhotos, SummaryReviews
	if detail == Full {
		photoLimit, reviewLimit = FullPhotos, FullReviews
	}
	if r.Photos, err = s.photos(ctx, rid, photoLimit); err != nil {
		return nil, false, err
	}
	if r.Vibes, err = s.vibes(ctx, rid, TopVibesPerRow); err != nil {
		return nil, false, err
	}
	if r.Reviews, err = s.reviews(ctx, rid, reviewLimit); err != nil {
		return nil, false, err
	}
	if detail == Summary {
		for i := range r.Reviews {
			r.Reviews[i].Text = Excerpt(r.Reviews[i].Text, ExcerptRunes)
		}
	}
	return &r, true, nil
}

func (s *Store) photos(ctx context.Context, rid int64, limit int) ([]Photo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT local_filename, photo_url FROM vibe_photos WHERE restaurant_id = ? ORDER BY id LIMIT ?`, rid, limit)
	if err != nil {
		return nil, fmt.Errorf("store: photos %d: %w", rid, err)
	}
	defer rows.Close()
	out := []Photo{}
	for rows.Next() {
		var file, url sql.NullString
		if err := rows.Scan(&file, &url); err != nil {
			return nil, fmt.Errorf("store: photos %d: %w", rid, err)
		}
		out = append(out, Photo{Filename: file.String, URL: url.String})
	}
	return out, rows.Err()
}

func (s *Store) vibes(ctx context.Context, rid int64, limit int) ([]Vibe, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vibe_name, mention_count FROM vibe_analysis WHERE restaurant_id = ?
         ORDER BY mention_count DESC, id LIMIT ?`, rid, limit)
	if err != nil {
		return nil, fmt.Errorf("store: vibes %d: %w", rid, err)
	}
	defer rows.Close()
	out := []Vibe{}
	for rows.Next() {
		var name sql.NullString
		var n sql.NullInt64
		if err := rows.Scan(&name, &n); err != nil {
			return nil, fmt.Errorf("store: vibes %d: %w", rid, err)
		}
		out = append(out, Vibe{Name: name.String, Count: n.Int64})
	}
	return out, rows.Err()
}

func (s *Store) reviews(ctx context.Context, rid int64, limit int) ([]Review, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT review_text, likes FROM reviews WHERE restaurant_id = ?
         ORDER BY likes DESC, id LIMIT ?`, rid, limit)
	if err != nil {
		return nil, fmt.Errorf("store: reviews %d: %w", rid, err)
	}
	defer rows.Close()
	out := []Review{}
	for rows.Next() {
		var text sql.NullString
		var likes sql.NullInt64
		if err := rows.Scan(&text, &likes); err != nil {
			return nil, fmt.Errorf("store: reviews %d: %w", rid, err)
		}
		out = append(out, Review{Text: text.String, Likes: likes.Int64})
	}
	return out, rows.Err()
}

// Excerpt returns the first n runes of text followed by "...". The marker
// is appended even when text is shorter than n.
func Excerpt(text string, n int) string {
	r := []rune(text)
	if len(r) > n {
		r = r[:n]
	}
	return string(r) + "..."
}

// Corpus enumerates every restaurant in id order with its review texts and
// up to maxPhotos downloaded photo filenames.
func (s *Store) Corpus(ctx context.Context, maxPhotos int) ([]CorpusItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name FROM restaurants ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("store: corpus: %w", err)
	}
	var items []CorpusItem
	pos := map[int64]int{}
	for rows.Next() {
		var id int64
		var name string
		if err := rows.Scan(&id, &name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: corpus: %w", err)
		}
		pos[id] = len(items)
		items = append(items, CorpusItem{ID: strconv.FormatInt(id, 10), Name: name})
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: corpus: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT restaurant_id, review_text FROM reviews ORDER BY restaurant_id, id`)
	if err != nil {
		return nil, fmt.Errorf("store: corpus reviews: %w", err)
	}
	for rows.Next() {
		var rid sql.NullInt64
		var text sql.NullString
		if err := rows.Scan(&rid, &text); err != nil {
			rows.Close()
			return nil, fmt.Errorf("store: corpus reviews: %w", err)
		}
		i, ok := pos[rid.Int64]
		if !ok || !rid.Valid {
			continue
		}
		items[i].ReviewRows++
		if text.String != "" {
			items[i].Reviews = append(items[i].Reviews, text.String)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: corpus reviews: %w", err)
	}

	rows, err = s.db.QueryContext(ctx,
		`SELECT restaurant_id, local_filename FROM vibe_photos
         WHERE local_filename IS NOT NULL ORDER BY restaurant_id, id`)
	if err != nil {
		return nil, fmt.Errorf("store: corpus photos: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var rid sql.NullInt64
		var file string
		if err := rows.Scan(&rid, &file); err != nil {
			return nil, fmt.Errorf("store: corpus photos: %w", err)
		}
		i, ok := pos[rid.Int64]
		if !ok || !rid.Valid || len(items[i].Photos) >= maxPhotos {
			continue
		}
		items[i].Photos = append(items[i].Photos, file)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: corpus photos: %w", err)
	}
	return items, nil
}

// TopVibes returns the vibes with the largest summed mention counts.
func (s *Store) TopVibes(ctx context.Context, limit int) ([]Vibe, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT vibe_name, SUM(mention_count) AS total FROM vibe_analysis
         GROUP BY vibe_name ORDER BY total DESC, vibe_name LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("store: top vibes: %w", err)
	}
	defer rows.Close()
	out := []Vibe{}
	for rows.Next() {
		var name sql.NullString
		var total sql.NullInt64
		if err := rows.Scan(&name, &total); err != nil {
			return nil, fmt.Errorf("store: top vibes: %w", err)
		}
		out = append(out, Vibe{Name: name.String, Count: total.Int64})
	}
	return out, rows.Err()
}

// Stats counts records.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx, `SELECT
        (SELECT COUNT(*) FROM restaurants),
        (SELECT COUNT(*) FROM reviews),
        (SELECT COUNT(*) FROM vibe_photos),
        (SELECT COUNT(DISTINCT restaurant_id) FROM vibe_photos WHERE local_filename IS NOT NULL),
        (SELECT COUNT(*) FROM vibe_analysis)`,
	).Scan(&st.Restaurants, &st.Reviews, &st.Photos, &st.WithPhotos, &st.VibeAnnotations)
	if err != nil {
		return Stats{}, fmt.Errorf("store: stats: %w", err)
	}
	return st, nil
}
