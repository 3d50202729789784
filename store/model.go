package store

// Detail selects how much of a restaurant Get returns.
type Detail int

const (
	// Summary is the search-result view: one photo, the top vibes and two
	// review excerpts by likes.
	Summary Detail = iota
	// Full is the detail-page view: up to five photos and five complete
	// reviews.
	Full
)

// Limits applied by Get.
const (
	SummaryPhotos  = 1
	SummaryReviews = 2
	FullPhotos     = 5
	FullReviews    = 5
	TopVibesPerRow = 3
	ExcerptRunes   = 200
)

// Restaurant is a display record.
type Restaurant struct {
	ID           int64    `json:"id"`
	Name         string   `json:"name"`
	PlaceID      string   `json:"place_id,omitempty"`
	Address      *string  `json:"address"`
	Rating       *float64 `json:"rating"`
	ReviewsCount *int64   `json:"reviews_count"`
	Photos       []Photo  `json:"photos"`
	Vibes        []Vibe   `json:"vibes"`
	Reviews      []Review `json:"reviews"`
}

// Photo references a vibe photo. Filename is empty when it was never
// downloaded.
type Photo struct {
	Filename string `json:"filename,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Vibe is a vibe label with its mention count.
type Vibe struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// Review is a review text with its like count.
type Review struct {
	Text  string `json:"text"`
	Likes int64  `json:"likes"`
}

// CorpusItem is the build input for one restaurant.
type CorpusItem struct {
	ID   string
	Name string
	// Reviews holds the non-empty review texts in insertion order.
	Reviews []string
	// ReviewRows counts all review rows, including empty ones.
	ReviewRows int
	// Photos holds local filenames of downloaded photos.
	Photos []string
}

// Stats summarizes the record store.
type Stats struct {
	Restaurants     int `json:"restaurants"`
	Reviews         int `json:"reviews"`
	Photos          int `json:"photos"`
	WithPhotos      int `json:"restaurants_with_photos"`
	VibeAnnotations int `json:"vibe_annotations"`
}
