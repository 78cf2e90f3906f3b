package kmeans

import "fmt"

// Cluster is one entry of a Labeling: the centroid that drew the points in
// during the assignment pass, and those points in dataset order.
type Cluster struct {
	Centroid Point
	Points   []Point
}

// Labeling maps cluster index 0..k-1 to its cluster.
type Labeling []Cluster

// Sizes returns the number of points in each cluster.
func (l Labeling) Sizes() []int {
	sizes := make([]int, len(l))
	for i, c := range l {
		sizes[i] = len(c.Points)
	}
	return sizes
}

// Centroids returns the centroid of every cluster.
func (l Labeling) Centroids() Centroids {
	out := make(Centroids, len(l))
	for i, c := range l {
		out[i] = c.Centroid
	}
	return out
}

// Assign labels every point with its nearest centroid by squared Euclidean
// distance. On a tie the lower index wins.
func Assign(ds Dataset, centroids Centroids) (Labeling, error) {
	if len(centroids) == 0 {
		return nil, fmt.Errorf("%w: no centroids", ErrInvalidClusterCount)
	}
	dim := len(centroids[0])
	if err := centroids.checkDim(dim); err != nil {
		return nil, err
	}
	for i, p := range ds {
		if len(p) != dim {
			return nil, fmt.Errorf("%w: point %d has %d components, centroids have %d", ErrDimensionMismatch, i, len(p), dim)
		}
	}

	labels := make(Labeling, len(centroids))
	for c := range centroids {
		labels[c].Centroid = centroids[c]
	}

	for _, p := range ds {
		c := Nearest(p, centroids)
		labels[c].Points = append(labels[c].Points, p)
	}
	return labels, nil
}

// Nearest returns the index of the centroid closest to p. Dimensions are not
// checked.
func Nearest(p Point, centroids Centroids) int {
	best := 0
	minDist := DistanceSq(p, centroids[0])
	for i := 1; i < len(centroids); i++ {
		// strict < keeps the first of equally distant centroids
		if d := DistanceSq(p, centroids[i]); d < minDist {
			minDist = d
			best = i
		}
	}
	return best
}
