// Package flat provides the exact brute-force index. Every query is scored
// against every row, so results are exact under both L2 and inner-product
// metrics.
package flat
