// Package kmeans clusters fixed-dimension points with Lloyd's algorithm.
//
// Every stage is a plain function over explicit inputs. The only mutable
// state is the State value threaded through Step by the caller.
package kmeans

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Point is a feature vector, e.g. an RGB triple.
type Point []float64

// Dataset is an ordered sequence of points sharing one dimensionality.
type Dataset []Point

// Centroids holds exactly k cluster centres. The index is the cluster label.
type Centroids []Point

// Clone returns a deep copy of the point.
func (p Point) Clone() Point {
	return append(Point(nil), p...)
}

// Equal reports whether both points hold identical components.
func (p Point) Equal(q Point) bool {
	if len(p) != len(q) {
		return false
	}
	for i := range p {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Dim returns the dimensionality shared by all points of the dataset.
func (ds Dataset) Dim() (int, error) {
	if len(ds) == 0 {
		return 0, ErrEmptyDataset
	}
	dim := len(ds[0])
	if dim == 0 {
		return 0, fmt.Errorf("%w: point 0 has no components", ErrDimensionMismatch)
	}
	for i, p := range ds {
		if len(p) != dim {
			return 0, fmt.Errorf("%w: point %d has %d components, want %d", ErrDimensionMismatch, i, len(p), dim)
		}
	}
	return dim, nil
}

// Clone returns a deep copy of the centroid set.
func (c Centroids) Clone() Centroids {
	out := make(Centroids, len(c))
	for i, p := range c {
		out[i] = p.Clone()
	}
	return out
}

func (c Centroids) checkDim(dim int) error {
	for i, p := range c {
		if len(p) != dim {
			return fmt.Errorf("%w: centroid %d has %d components, want %d", ErrDimensionMismatch, i, len(p), dim)
		}
	}
	return nil
}

// DistanceSq returns the squared Euclidean distance between a and b.
// The root is skipped since only the ordering of distances matters.
func DistanceSq(a, b Point) float64 {
	var s float64
	for i := range a {
		d := a[i] - b[i]
		s += d * d
	}
	return s
}

// mean computes the per-dimension average as a running sum of p[j]/n, which
// keeps the rounding of the accumulated means stable for a given point order.
func mean(points []Point, dim int) Point {
	n := float64(len(points))
	m := make(Point, dim)
	for _, p := range points {
		for j := 0; j < dim; j++ {
			m[j] += p[j] / n
		}
	}
	return m
}

// PointSet is an insertion-ordered set of points compared component-wise.
type PointSet struct {
	index  map[string]int
	points Dataset
}

// NewPointSet returns an empty set.
func NewPointSet() *PointSet {
	return &PointSet{index: make(map[string]int)}
}

// Add inserts p unless an equal point is already present and reports whether
// it was added.
func (s *PointSet) Add(p Point) bool {
	k := pointKey(p)
	if _, ok := s.index[k]; ok {
		return false
	}
	s.index[k] = len(s.points)
	s.points = append(s.points, p)
	return true
}

// Contains reports whether an equal point is in the set.
func (s *PointSet) Contains(p Point) bool {
	_, ok := s.index[pointKey(p)]
	return ok
}

// Len returns the number of distinct points.
func (s *PointSet) Len() int { return len(s.points) }

// Points returns the distinct points in first-insertion order.
func (s *PointSet) Points() Dataset { return s.points }

// Dedup drops repeated points, keeping the first occurrence of each.
func Dedup(points []Point) Dataset {
	s := NewPointSet()
	for _, p := range points {
		s.Add(p)
	}
	return s.Points()
}

func pointKey(p Point) string {
	buf := make([]byte, 0, 8*len(p))
	for _, v := range p {
		if v == 0 {
			v = 0 // fold -0 into +0
		}
		buf = binary.LittleEndian.AppendUint64(buf, math.Float64bits(v))
	}
	return string(buf)
}
