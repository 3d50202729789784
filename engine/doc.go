// Package engine opens SQLite databases through the modernc.org/sqlite
// driver. The record store and the snapshot bundle share this driver
// instance.
package engine
