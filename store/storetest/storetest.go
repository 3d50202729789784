// Package storetest builds throwaway record stores for tests.
package storetest

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/kristinmlloyd/VibeCheck/store"
)

// New opens an empty store in a temporary directory.
func New(t testing.TB) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), filepath.Join(t.TempDir(), "records.db"), false)
	if err != nil {
		t.Fatalf("storetest: open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// Restaurant returns a scraped entry with the given reviews and downloaded
// photo filenames. The place id is derived from the name.
func Restaurant(name string, reviews []string, photos ...string) store.ScrapedRestaurant {
	r := store.ScrapedRestaurant{Info: store.ScrapedInfo{Name: name, PlaceID: "place-" + name}}
	for i, text := range reviews {
		r.Reviews = append(r.Reviews, store.ScrapedReview{Text: text, Likes: int64(len(reviews) - i)})
	}
	for i, p := range photos {
		r.VibePhotos = append(r.VibePhotos, fmt.Sprintf("https://example.com/%s/%d.jpg", name, i))
		r.DownloadedFiles = append(r.DownloadedFiles, p)
	}
	return r
}

// Seed ingests entries into a new store. Restaurant ids are assigned 1..n in
// argument order.
func Seed(t testing.TB, entries ...store.ScrapedRestaurant) *store.Store {
	t.Helper()
	s := New(t)
	if _, err := s.Ingest(context.Background(), entries); err != nil {
		t.Fatalf("storetest: ingest: %v", err)
	}
	return s
}
