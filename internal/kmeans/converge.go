package kmeans

import "math"

// DefaultMaxIterations is the iteration cap used when none is configured.
const DefaultMaxIterations = 100

// ShouldStop reports whether the loop is done: either the iteration cap has
// been exceeded, or every centroid is exactly equal to its predecessor.
// With no previous centroids only the cap can stop the loop.
func ShouldStop(prev, cur Centroids, iterations, maxIterations int) bool {
	return ShouldStopWithin(prev, cur, iterations, maxIterations, 0)
}

// ShouldStopWithin is ShouldStop with an absolute per-component tolerance.
// A tolerance of zero demands exact equality.
func ShouldStopWithin(prev, cur Centroids, iterations, maxIterations int, tol float64) bool {
	if iterations > maxIterations {
		return true
	}
	if len(prev) == 0 {
		return false
	}
	if len(prev) != len(cur) {
		return false
	}
	for i := range cur {
		if !within(prev[i], cur[i], tol) {
			return false
		}
	}
	return true
}

// Converged reports whether a run that stopped after iterations passes
// settled before the cap was exceeded.
func Converged(iterations, maxIterations int) bool {
	return iterations <= maxIterations
}

func within(a, b Point, tol float64) bool {
	if tol == 0 {
		return a.Equal(b)
	}
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return false
		}
	}
	return true
}
