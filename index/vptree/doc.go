// Package vptree provides an exact vantage-point tree over Euclidean
// distance. The triangle inequality prunes subtrees that cannot hold a
// better candidate; results match the flat index, including tie order.
// Inner-product scoring is not a metric and is not supported here.
package vptree
