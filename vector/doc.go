// Package vector holds the float32 vector primitives shared by the encoders,
// the query fuser, the similarity index and snapshot persistence:
//   - BLOB encoding of embeddings and row-major matrices
//   - L2 normalization, averaging and composite concatenation
//   - inner product and Euclidean distance
package vector
