// Package match implements identity matching of face descriptors:
// nearest-neighbor comparison against labeled reference descriptor sets
// under a fixed acceptance threshold, plus an in-memory index for similarity
// search across all stored detections.
package match

import "math"

// EuclideanDistance computes the euclidean (L2) distance between two
// descriptor vectors. Mismatched or empty vectors report the maximum
// distance so they never match.
func EuclideanDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return math.MaxFloat64
	}
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return math.Sqrt(sum)
}
