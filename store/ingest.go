package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
)

// ScrapedRestaurant is one entry of the scraper's results file.
type ScrapedRestaurant struct {
	Info            ScrapedInfo     `json:"info"`
	Reviews         []ScrapedReview `json:"reviews"`
	VibePhotos      []string        `json:"vibe_photos"`
	DownloadedFiles []string        `json:"downloaded_files"`
	VibeAnalysis    struct {
		TopVibes []VibeCount `json:"top_vibes"`
	} `json:"vibe_analysis"`
}

// ScrapedInfo is the place metadata of a scraped restaurant.
type ScrapedInfo struct {
	Name         string   `json:"name"`
	PlaceID      string   `json:"place_id"`
	DataID       string   `json:"data_id"`
	Address      *string  `json:"address"`
	Rating       *float64 `json:"rating"`
	ReviewsCount *int64   `json:"reviews_count"`
}

// ScrapedReview is a scraped review.
type ScrapedReview struct {
	Text  string `json:"text"`
	Likes int64  `json:"likes"`
}

// VibeCount is a [name, count] pair as written by the scraper.
type VibeCount struct {
	Name  string
	Count int64
}

// UnmarshalJSON decodes a two-element array.
func (v *VibeCount) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("store: vibe entry has %d elements, want 2", len(pair))
	}
	if err := json.Unmarshal(pair[0], &v.Name); err != nil {
		return err
	}
	return json.Unmarshal(pair[1], &v.Count)
}

// MarshalJSON encodes the pair as a two-element array.
func (v VibeCount) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{v.Name, v.Count})
}

// DecodeScraped reads a JSON array of scraped restaurants.
func DecodeScraped(r io.Reader) ([]ScrapedRestaurant, error) {
	var out []ScrapedRestaurant
	if err := json.NewDecoder(r).Decode(&out); err != nil {
		return nil, fmt.Errorf("store: decode scraped results: %w", err)
	}
	return out, nil
}

// IngestStats counts rows written by Ingest.
type IngestStats struct {
	Restaurants int `json:"restaurants"`
	Skipped     int `json:"skipped"`
	Reviews     int `json:"reviews"`
	Photos      int `json:"photos"`
	Vibes       int `json:"vibes"`
}

// Ingest loads scraped restaurants in one transaction. A restaurant whose
// place_id already exists is skipped along with its reviews, photos and
// vibes, so re-running an ingest is idempotent.
func (s *Store) Ingest(ctx context.Context, data []ScrapedRestaurant) (IngestStats, error) {
	var st IngestStats
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return st, fmt.Errorf("store: ingest: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, r := range data {
		if r.Info.PlaceID == "" || r.Info.Name == "" {
			return IngestStats{}, fmt.Errorf("store: ingest entry %d: name and place_id are required", i)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO restaurants (name, place_id, data_id, address, rating, reviews_count)
             VALUES (?, ?, ?, ?, ?, ?)`,
			r.Info.Name, r.Info.PlaceID, nullString(r.Info.DataID), r.Info.Address, r.Info.Rating, r.Info.ReviewsCount)
		if err != nil {
			return IngestStats{}, fmt.Errorf("store: ingest %s: %w", r.Info.PlaceID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			st.Skipped++
			continue
		}
		rid, err := res.LastInsertId()
		if err != nil {
			return IngestStats{}, fmt.Errorf("store: ingest %s: %w", r.Info.PlaceID, err)
		}
		st.Restaurants++

		for _, rv := range r.Reviews {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO reviews (restaurant_id, review_text, likes) VALUES (?, ?, ?)`,
				rid, rv.Text, rv.Likes); err != nil {
				return IngestStats{}, fmt.Errorf("store: ingest review: %w", err)
			}
			st.Reviews++
		}
		for j, url := range r.VibePhotos {
			var local sql.NullString
			if j < len(r.DownloadedFiles) && r.DownloadedFiles[j] != "" {
				local = sql.NullString{String: r.DownloadedFiles[j], Valid: true}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vibe_photos (restaurant_id, photo_url, local_filename) VALUES (?, ?, ?)`,
				rid, url, local); err != nil {
				return IngestStats{}, fmt.Errorf("store: ingest photo: %w", err)
			}
			st.Photos++
		}
		for _, v := range r.VibeAnalysis.TopVibes {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO vibe_analysis (restaurant_id, vibe_name, mention_count) VALUES (?, ?, ?)`,
				rid, v.Name, v.Count); err != nil {
				return IngestStats{}, fmt.Errorf("store: ingest vibe: %w", err)
			}
			st.Vibes++
		}
	}
	if err := tx.Commit(); err != nil {
		return IngestStats{}, fmt.Errorf("store: ingest commit: %w", err)
	}
	return st, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

