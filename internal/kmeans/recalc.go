package kmeans

import "fmt"

// Recalculate derives the next centroid set from a labeling. A non-empty
// cluster moves to the mean of its points. An empty cluster is reseeded with
// a copy of one randomly drawn dataset point, drawing once per empty cluster
// in ascending index order.
func Recalculate(ds Dataset, labels Labeling, k int, rng Rand) (Centroids, error) {
	if k < 1 || len(labels) != k {
		return nil, fmt.Errorf("%w: k=%d with %d labeled clusters", ErrInvalidClusterCount, k, len(labels))
	}
	dim, err := ds.Dim()
	if err != nil {
		return nil, err
	}

	empty := false
	for i, c := range labels {
		if len(c.Points) == 0 {
			empty = true
		}
		for _, p := range c.Points {
			if len(p) != dim {
				return nil, fmt.Errorf("%w: cluster %d holds a point with %d components, want %d", ErrDimensionMismatch, i, len(p), dim)
			}
		}
	}
	if empty && rng == nil {
		return nil, fmt.Errorf("kmeans: empty cluster reinitialisation needs a random source")
	}

	next := make(Centroids, 0, k)
	for _, c := range labels {
		if len(c.Points) > 0 {
			next = append(next, mean(c.Points, dim))
			continue
		}
		next = append(next, ds[rng.IntN(len(ds))].Clone())
	}
	return next, nil
}
