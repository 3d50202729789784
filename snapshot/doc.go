// Package snapshot persists a similarity index together with its identifier
// map as one versioned bundle: a single row of the vibe_snapshots table,
// written in one BEGIN IMMEDIATE transaction. The row carries the metric,
// the per-modality dimensions, the encoder model ids, a build tag and a
// SHA-256 checksum over both payloads, all of which are verified on load.
//
// A deployment therefore can never pair an index with an identifier map
// from a different build.
package snapshot
