package store

import (
	"context"
	"database/sql"
	"fmt"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS restaurants (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    name          TEXT NOT NULL,
    place_id      TEXT UNIQUE NOT NULL,
    data_id       TEXT,
    address       TEXT,
    rating        REAL,
    reviews_count INTEGER
);`,
	`CREATE TABLE IF NOT EXISTS reviews (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    restaurant_id INTEGER REFERENCES restaurants(id),
    review_text   TEXT,
    likes         INTEGER DEFAULT 0
);`,
	`CREATE TABLE IF NOT EXISTS vibe_photos (
    id             INTEGER PRIMARY KEY AUTOINCREMENT,
    restaurant_id  INTEGER REFERENCES restaurants(id),
    photo_url      TEXT,
    local_filename TEXT
);`,
	`CREATE TABLE IF NOT EXISTS vibe_analysis (
    id            INTEGER PRIMARY KEY AUTOINCREMENT,
    restaurant_id INTEGER REFERENCES restaurants(id),
    vibe_name     TEXT,
    mention_count INTEGER
);`,
	`CREATE INDEX IF NOT EXISTS idx_reviews_restaurant ON reviews(restaurant_id);`,
	`CREATE INDEX IF NOT EXISTS idx_vibe_photos_restaurant ON vibe_photos(restaurant_id);`,
	`CREATE INDEX IF NOT EXISTS idx_vibe_analysis_restaurant ON vibe_analysis(restaurant_id);`,
}

// EnsureSchema creates the record tables if they do not already exist.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("store: schema: %w", err)
		}
	}
	return nil
}
