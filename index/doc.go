// Package index defines the similarity index over composite embeddings:
// the Index interface, the supported metrics and the shared binary format.
//
// Results are raw scores. Under MetricL2 a score is a Euclidean distance
// (smaller is closer); under MetricInnerProduct it is the inner product
// (larger is closer). Composite vectors are normalized per modality, so
// their norm is 1 with one modality present and √2 with both; inner
// products across mixed single- and dual-modality vectors are therefore not
// cosine similarities.
//
// Implementations: flat (exact scan) and vptree (exact vantage-point tree,
// L2 only).
package index
