package store_test

import (
	"context"
	"strings"
	"testing"

	"github.com/kristinmlloyd/VibeCheck/store"
	"github.com/kristinmlloyd/VibeCheck/store/storetest"
)

const results = `[
  {
    "info": {"name": "Le Jardin", "place_id": "p1", "data_id": "d1", "address": "1 Main St", "rating": 4.6, "reviews_count": 120},
    "reviews": [
      {"text": "candlelit and cozy", "likes": 3},
      {"text": "LONG", "likes": 9},
      {"text": "", "likes": 0}
    ],
    "vibe_photos": ["https://a/1.jpg", "https://a/2.jpg", "https://a/3.jpg"],
    "downloaded_files": ["p1_0.jpg", "p1_1.jpg"],
    "vibe_analysis": {"top_vibes": [["romantic", 5], ["cozy", 7], ["quiet", 2], ["dim", 1]]}
  },
  {
    "info": {"name": "Stadium Pub", "place_id": "p2"},
    "reviews": [],
    "vibe_photos": [],
    "vibe_analysis": {"top_vibes": [["loud", 4], ["cozy", 1]]}
  }
]`

func seed(t *testing.T) *store.Store {
	t.Helper()
	data, err := store.DecodeScraped(strings.NewReader(strings.Replace(results, "LONG", strings.Repeat("é", 250), 1)))
	if err != nil {
		t.Fatalf("DecodeScraped failed: %v", err)
	}
	s := storetest.New(t)
	st, err := s.Ingest(context.Background(), data)
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}
	want := store.IngestStats{Restaurants: 2, Reviews: 3, Photos: 3, Vibes: 6}
	if st != want {
		t.Fatalf("IngestStats = %+v, want %+v", st, want)
	}
	return s
}

func TestIngest_Idempotent(t *testing.T) {
	s := seed(t)
	data, err := store.DecodeScraped(strings.NewReader(results))
	if err != nil {
		t.Fatalf("DecodeScraped failed: %v", err)
	}
	st, err := s.Ingest(context.Background(), data)
	if err != nil {
		t.Fatalf("second Ingest failed: %v", err)
	}
	if st.Restaurants != 0 || st.Skipped != 2 || st.Reviews != 0 {
		t.Fatalf("second IngestStats = %+v", st)
	}
	stats, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Restaurants != 2 || stats.Reviews != 3 {
		t.Fatalf("Stats = %+v", stats)
	}
}

func TestGet_Summary(t *testing.T) {
	s := seed(t)
	r, ok, err := s.Get(context.Background(), "1", store.Summary)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if r.Name != "Le Jardin" || r.Address == nil || *r.Address != "1 Main St" || r.Rating == nil || *r.Rating != 4.6 {
		t.Fatalf("record = %+v", r)
	}
	if len(r.Photos) != 1 || r.Photos[0].Filename != "p1_0.jpg" {
		t.Fatalf("photos = %+v", r.Photos)
	}
	wantVibes := []store.Vibe{{Name: "cozy", Count: 7}, {Name: "romantic", Count: 5}, {Name: "quiet", Count: 2}}
	if len(r.Vibes) != 3 {
		t.Fatalf("vibes = %+v", r.Vibes)
	}
	for i := range wantVibes {
		if r.Vibes[i] != wantVibes[i] {
			t.Fatalf("vibes[%d] = %+v, want %+v", i, r.Vibes[i], wantVibes[i])
		}
	}
	if len(r.Reviews) != 2 {
		t.Fatalf("reviews = %d, want 2", len(r.Reviews))
	}
	if r.Reviews[0].Likes != 9 || r.Reviews[0].Text != strings.Repeat("é", 200)+"..." {
		t.Fatalf("top review = %d likes, %d runes", r.Reviews[0].Likes, len([]rune(r.Reviews[0].Text)))
	}
	if r.Reviews[1].Text != "candlelit and cozy..." {
		t.Fatalf("second review = %q", r.Reviews[1].Text)
	}
}

func TestGet_Full(t *testing.T) {
	s := seed(t)
	r, ok, err := s.Get(context.Background(), "1", store.Full)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if len(r.Photos) != 3 {
		t.Fatalf("photos = %d, want 3", len(r.Photos))
	}
	if r.Photos[2].Filename != "" || r.Photos[2].URL != "https://a/3.jpg" {
		t.Fatalf("undownloaded photo = %+v", r.Photos[2])
	}
	if len(r.Reviews) != 3 || len([]rune(r.Reviews[0].Text)) != 250 {
		t.Fatalf("full reviews not untruncated: %+v", r.Reviews)
	}
}

func TestGet_NotFound(t *testing.T) {
	s := seed(t)
	for _, id := range []string{"99", "abc", ""} {
		r, ok, err := s.Get(context.Background(), id, store.Summary)
		if err != nil || ok || r != nil {
			t.Fatalf("Get(%q) = %v, %v, %v; want nil, false, nil", id, r, ok, err)
		}
	}
}

func TestGet_NullColumns(t *testing.T) {
	s := seed(t)
	r, ok, err := s.Get(context.Background(), "2", store.Summary)
	if err != nil || !ok {
		t.Fatalf("Get = %v, %v", ok, err)
	}
	if r.Address != nil || r.Rating != nil || len(r.Photos) != 0 || len(r.Reviews) != 0 {
		t.Fatalf("record = %+v", r)
	}
}

func TestCorpus(t *testing.T) {
	s := seed(t)
	items, err := s.Corpus(context.Background(), 1)
	if err != nil {
		t.Fatalf("Corpus failed: %v", err)
	}
	if len(items) != 2 || items[0].ID != "1" || items[1].ID != "2" {
		t.Fatalf("items = %+v", items)
	}
	if items[0].ReviewRows != 3 || len(items[0].Reviews) != 2 || items[0].Reviews[0] != "candlelit and cozy" {
		t.Fatalf("reviews = %+v", items[0])
	}
	if len(items[0].Photos) != 1 || items[0].Photos[0] != "p1_0.jpg" {
		t.Fatalf("photos = %v", items[0].Photos)
	}
	if items[1].ReviewRows != 0 || len(items[1].Photos) != 0 {
		t.Fatalf("second item = %+v", items[1])
	}
}

func TestTopVibes(t *testing.T) {
	s := seed(t)
	vibes, err := s.TopVibes(context.Background(), 2)
	if err != nil {
		t.Fatalf("TopVibes failed: %v", err)
	}
	want := []store.Vibe{{Name: "cozy", Count: 8}, {Name: "romantic", Count: 5}}
	if len(vibes) != 2 || vibes[0] != want[0] || vibes[1] != want[1] {
		t.Fatalf("TopVibes = %+v, want %+v", vibes, want)
	}
}

func TestStats(t *testing.T) {
	s := seed(t)
	st, err := s.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	want := store.Stats{Restaurants: 2, Reviews: 3, Photos: 3, WithPhotos: 1, VibeAnnotations: 6}
	if st != want {
		t.Fatalf("Stats = %+v, want %+v", st, want)
	}
}

func TestIngest_RequiresPlaceID(t *testing.T) {
	s := storetest.New(t)
	_, err := s.Ingest(context.Background(), []store.ScrapedRestaurant{{Info: store.ScrapedInfo{Name: "x"}}})
	if err == nil {
		t.Fatalf("expected error for missing place_id")
	}
}

func TestExcerpt(t *testing.T) {
	if got := store.Excerpt("abc", 2); got != "ab..." {
		t.Fatalf("Excerpt = %q", got)
	}
}
