package kmeans

import "errors"

var (
	// ErrInvalidClusterCount is returned when k < 1, k exceeds the number of
	// points, or a labeling does not hold exactly k clusters.
	ErrInvalidClusterCount = errors.New("kmeans: invalid cluster count")

	// ErrEmptyDataset is returned when there are no points to cluster.
	ErrEmptyDataset = errors.New("kmeans: empty dataset")

	// ErrDimensionMismatch is returned when points or centroids differ in length.
	ErrDimensionMismatch = errors.New("kmeans: dimension mismatch")

	// ErrUnknownStrategy is returned for an unrecognised initialisation strategy.
	ErrUnknownStrategy = errors.New("kmeans: unknown init strategy")
)
