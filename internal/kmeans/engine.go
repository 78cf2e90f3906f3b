package kmeans

import (
	"errors"
	"fmt"
	"math"
)

// Options tunes a clustering run.
type Options struct {
	// MaxIterations caps the number of assign/recalculate passes. A run that
	// goes past it stops and is reported as not converged.
	MaxIterations int
	// Strategy picks the initial centroids.
	Strategy Strategy
	// Tolerance is the per-component slack allowed when comparing centroids
	// across iterations. Zero requires exact equality.
	Tolerance float64
	// Rand feeds random-pick initialisation and empty-cluster reseeding.
	// NewRand(0) is used when nil.
	Rand Rand
}

// DefaultOptions returns a cap of DefaultMaxIterations, naive sharding,
// exact convergence and a source seeded with 0.
func DefaultOptions() Options {
	return Options{
		MaxIterations: DefaultMaxIterations,
		Strategy:      NaiveSharding,
		Rand:          NewRand(0),
	}
}

// ValidTolerance reports whether tol is usable as a convergence tolerance.
// NaN would make every comparison succeed and stop a run after one pass.
func ValidTolerance(tol float64) bool {
	return tol >= 0 && !math.IsInf(tol, 1)
}

// State is the iteration state of one clustering run. It is a value: Step
// returns an advanced copy and leaves the fields of its argument alone. The
// random source is shared between copies, so replaying Step on the same
// State may reseed empty clusters differently.
type State struct {
	Dataset    Dataset
	K          int
	Current    Centroids
	Previous   Centroids
	Labels     Labeling
	Iterations int
	Stopped    bool

	opts Options
}

// Result is the outcome of a finished run.
type Result struct {
	Clusters   Labeling
	Centroids  Centroids
	Iterations int
	Converged  bool
}

// NewState validates the inputs and initialises the centroids.
func NewState(ds Dataset, k int, opts Options) (State, error) {
	if opts.MaxIterations < 0 {
		return State{}, fmt.Errorf("kmeans: max iterations must not be negative, got %d", opts.MaxIterations)
	}
	if !ValidTolerance(opts.Tolerance) {
		return State{}, fmt.Errorf("kmeans: tolerance must be a finite non-negative number, got %g", opts.Tolerance)
	}
	if opts.Rand == nil {
		opts.Rand = NewRand(0)
	}

	centroids, err := Initialize(ds, k, opts.Strategy, opts.Rand)
	if err != nil {
		return State{}, err
	}
	return State{
		Dataset: ds,
		K:       k,
		Current: centroids,
		opts:    opts,
	}, nil
}

// MaxIterations returns the iteration cap of the run.
func (st State) MaxIterations() int { return st.opts.MaxIterations }

// Done reports whether the run has stopped.
func (st State) Done() bool { return st.Stopped }

// Step advances the run by one pass. If the stop condition holds, the
// returned state is marked stopped instead and nothing else changes. On
// error the input state is returned unchanged. Step consumes draws from the
// random source whenever a cluster comes out empty.
func Step(st State) (State, error) {
	if st.Stopped {
		return st, nil
	}
	if ShouldStopWithin(st.Previous, st.Current, st.Iterations, st.opts.MaxIterations, st.opts.Tolerance) {
		st.Stopped = true
		return st, nil
	}

	labels, err := Assign(st.Dataset, st.Current)
	if err != nil {
		return st, err
	}
	next, err := Recalculate(st.Dataset, labels, st.K, st.opts.Rand)
	if err != nil {
		return st, err
	}

	st.Previous = st.Current
	st.Iterations++
	st.Labels = labels
	st.Current = next
	return st, nil
}

// Result assembles the per-cluster outcome. Each cluster keeps the centroid
// its points were assigned with; Centroids holds the latest set. Converged
// is false until the run has stopped.
func (st State) Result() Result {
	labels := st.Labels
	if labels == nil && len(st.Current) > 0 {
		// no pass has run yet; label against the initial centroids
		labels, _ = Assign(st.Dataset, st.Current)
	}
	return Result{
		Clusters:   labels,
		Centroids:  st.Current,
		Iterations: st.Iterations,
		Converged:  st.Stopped && Converged(st.Iterations, st.opts.MaxIterations),
	}
}

// Run initialises and steps a clustering run until it stops.
func Run(ds Dataset, k int, opts Options) (Result, error) {
	st, err := NewState(ds, k, opts)
	if err != nil {
		return Result{}, err
	}
	for !st.Done() {
		if st, err = Step(st); err != nil {
			return Result{}, err
		}
	}
	return st.Result(), nil
}

// IsInputError reports whether err stems from invalid clustering input.
func IsInputError(err error) bool {
	return errors.Is(err, ErrInvalidClusterCount) ||
		errors.Is(err, ErrEmptyDataset) ||
		errors.Is(err, ErrDimensionMismatch) ||
		errors.Is(err, ErrUnknownStrategy)
}
