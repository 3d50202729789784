// Package store is the restaurant record store: a SQLite database of
// restaurants with their reviews, vibe photos and vibe mention counts.
//
// It serves display records to the retrieval layer, enumerates the corpus
// for offline index builds, and ingests scraper output.
package store
