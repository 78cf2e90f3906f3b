package kmeans

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seqRand replays a fixed sequence of draws.
type seqRand struct {
	vals []int
	i    int
}

func (r *seqRand) IntN(n int) int {
	v := r.vals[r.i%len(r.vals)] % n
	r.i++
	return v
}

func twoBlobs() Dataset {
	return Dataset{
		{0, 0, 0},
		{0, 0, 1},
		{10, 10, 10},
		{10, 10, 11},
	}
}

func threeBlobs() Dataset {
	var ds Dataset
	for _, base := range []float64{0, 100, 200} {
		for i := 0; i < 6; i++ {
			ds = append(ds, Point{base + float64(i%3), base + float64(i/3), base})
		}
	}
	return ds
}

func TestInitialize(t *testing.T) {
	ds := threeBlobs()
	for _, strategy := range []Strategy{NaiveSharding, RandomPick} {
		for k := 1; k <= len(ds); k++ {
			centroids, err := Initialize(ds, k, strategy, NewRand(7))
			require.NoError(t, err, "%s k=%d", strategy, k)
			require.Len(t, centroids, k)
			for _, c := range centroids {
				assert.Len(t, c, 3)
			}
		}
	}
}

func TestInitialize_Errors(t *testing.T) {
	tests := []struct {
		name string
		ds   Dataset
		k    int
		want error
	}{
		{"empty", Dataset{}, 1, ErrEmptyDataset},
		{"empty k=0", nil, 0, ErrEmptyDataset},
		{"k zero", twoBlobs(), 0, ErrInvalidClusterCount},
		{"k negative", twoBlobs(), -2, ErrInvalidClusterCount},
		{"k above n", twoBlobs(), 5, ErrInvalidClusterCount},
		{"ragged", Dataset{{1, 2}, {1, 2, 3}}, 1, ErrDimensionMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, strategy := range []Strategy{NaiveSharding, RandomPick} {
				_, err := Initialize(tt.ds, tt.k, strategy, NewRand(1))
				assert.ErrorIs(t, err, tt.want)
				assert.True(t, IsInputError(err))
			}
		})
	}

	_, err := Initialize(twoBlobs(), 1, Strategy(9), nil)
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestNaiveShardingInit(t *testing.T) {
	ds := Dataset{{0}, {2}, {4}, {6}, {9}, {12}, {15}}
	centroids, err := NaiveShardingInit(ds, 3)
	require.NoError(t, err)

	// shards of 2, 2 and the remaining 3
	assert.Equal(t, Centroids{{1}, {5}, {12}}, centroids)

	again, err := NaiveShardingInit(ds, 3)
	require.NoError(t, err)
	assert.Equal(t, centroids, again)
}

func TestRandomPickInit_RetriesCollisions(t *testing.T) {
	ds := Dataset{{0}, {1}, {2}, {3}}
	rng := &seqRand{vals: []int{2, 2, 0, 2, 0, 3}}

	centroids, err := RandomPickInit(ds, 3, rng)
	require.NoError(t, err)
	assert.Equal(t, Centroids{{2}, {0}, {3}}, centroids)

	// centroids are copies
	centroids[0][0] = 42
	assert.Equal(t, Point{2}, ds[2])
}

func TestRandomPickInit_Distinct(t *testing.T) {
	ds := threeBlobs()
	centroids, err := RandomPickInit(ds, len(ds), NewRand(3))
	require.NoError(t, err)

	set := NewPointSet()
	for _, c := range centroids {
		assert.True(t, set.Add(c), "duplicate centroid %v", c)
	}
	assert.Equal(t, len(ds), set.Len())
}

func TestAssign_Total(t *testing.T) {
	ds := threeBlobs()
	centroids, err := RandomPickInit(ds, 4, NewRand(11))
	require.NoError(t, err)

	labels, err := Assign(ds, centroids)
	require.NoError(t, err)
	require.Len(t, labels, 4)

	total := 0
	seen := make(map[*float64]int)
	for i, c := range labels {
		assert.Equal(t, centroids[i], c.Centroid)
		total += len(c.Points)
		for _, p := range c.Points {
			seen[&p[0]]++
		}
	}
	assert.Equal(t, len(ds), total)
	for _, p := range ds {
		assert.Equal(t, 1, seen[&p[0]])
	}
}

func TestAssign_TieGoesToLowerIndex(t *testing.T) {
	ds := Dataset{{0, 5}, {0, -5}}
	centroids := Centroids{{-1, 0}, {1, 0}}

	labels, err := Assign(ds, centroids)
	require.NoError(t, err)
	assert.Equal(t, []Point{{0, 5}, {0, -5}}, labels[0].Points)
	assert.Empty(t, labels[1].Points)
}

func TestAssign_DimensionMismatch(t *testing.T) {
	_, err := Assign(Dataset{{1, 2}}, Centroids{{1, 2, 3}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Assign(Dataset{{1, 2}}, Centroids{{1, 2}, {1}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)

	_, err = Assign(Dataset{{1, 2}}, nil)
	assert.ErrorIs(t, err, ErrInvalidClusterCount)
}

func TestRecalculate_Mean(t *testing.T) {
	ds := Dataset{{3, 0, 6}, {6, 3, 0}, {0, 9, 3}}
	labels := Labeling{{Centroid: Point{0, 0, 0}, Points: ds}}

	centroids, err := Recalculate(ds, labels, 1, nil)
	require.NoError(t, err)
	assert.Equal(t, Centroids{{3, 4, 3}}, centroids)
}

func TestRecalculate_EmptyClusterDrawsDatasetPoint(t *testing.T) {
	ds := twoBlobs()
	labels := Labeling{
		{Centroid: Point{5, 5, 5}, Points: ds},
		{Centroid: Point{-50, -50, -50}},
	}

	for seed := uint64(0); seed < 20; seed++ {
		centroids, err := Recalculate(ds, labels, 2, NewRand(seed))
		require.NoError(t, err)
		require.Len(t, centroids, 2)

		members := NewPointSet()
		for _, p := range ds {
			members.Add(p)
		}
		assert.True(t, members.Contains(centroids[1]), "reseeded centroid %v not in dataset", centroids[1])
	}
}

func TestRecalculate_EmptyClustersDrawInIndexOrder(t *testing.T) {
	ds := Dataset{{0}, {1}, {2}, {3}}
	labels := Labeling{{}, {Points: []Point{{1}, {3}}}, {}}

	centroids, err := Recalculate(ds, labels, 3, &seqRand{vals: []int{3, 0}})
	require.NoError(t, err)
	assert.Equal(t, Centroids{{3}, {2}, {0}}, centroids)
}

func TestRecalculate_Errors(t *testing.T) {
	ds := twoBlobs()
	labels, err := Assign(ds, Centroids{{0, 0, 0}, {10, 10, 10}})
	require.NoError(t, err)

	_, err = Recalculate(ds, labels, 3, NewRand(0))
	assert.ErrorIs(t, err, ErrInvalidClusterCount)

	_, err = Recalculate(nil, labels, 2, NewRand(0))
	assert.ErrorIs(t, err, ErrEmptyDataset)

	bad := Labeling{{Points: []Point{{1, 2}}}, {Points: []Point{{1, 2, 3}}}}
	_, err = Recalculate(ds, bad, 2, NewRand(0))
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestShouldStop(t *testing.T) {
	a := Centroids{{1, 2, 3}, {4, 5, 6}}
	b := Centroids{{1, 2, 3}, {4, 5, 6.5}}

	tests := []struct {
		name       string
		prev, cur  Centroids
		iterations int
		want       bool
	}{
		{"first comparison", nil, a, 0, false},
		{"first comparison at cap", nil, a, DefaultMaxIterations, false},
		{"over cap", nil, a, DefaultMaxIterations + 1, true},
		{"over cap while moving", a, b, DefaultMaxIterations + 1, true},
		{"stable", a, a.Clone(), 3, true},
		{"moving", a, b, 3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShouldStop(tt.prev, tt.cur, tt.iterations, DefaultMaxIterations))
		})
	}
}

func TestShouldStopWithin(t *testing.T) {
	a := Centroids{{1, 2, 3}}
	b := Centroids{{1, 2, 3.0004}}

	assert.False(t, ShouldStopWithin(a, b, 1, 10, 0))
	assert.True(t, ShouldStopWithin(a, b, 1, 10, 1e-3))
	assert.False(t, ShouldStopWithin(a, b, 1, 10, 1e-4))
}

func TestRun_EndToEnd(t *testing.T) {
	res, err := Run(twoBlobs(), 2, DefaultOptions())
	require.NoError(t, err)

	assert.True(t, res.Converged)
	assert.Equal(t, 1, res.Iterations)
	require.Len(t, res.Clusters, 2)
	assert.Equal(t, []Point{{0, 0, 0}, {0, 0, 1}}, res.Clusters[0].Points)
	assert.Equal(t, []Point{{10, 10, 10}, {10, 10, 11}}, res.Clusters[1].Points)
	assert.InDeltaSlice(t, []float64{0, 0, 0.5}, []float64(res.Centroids[0]), 1e-9)
	assert.InDeltaSlice(t, []float64{10, 10, 10.5}, []float64(res.Centroids[1]), 1e-9)
}

func TestRun_IterationCapIsNotConverged(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxIterations = 0
	opts.Strategy = RandomPick
	opts.Rand = NewRand(5)

	res, err := Run(threeBlobs(), 3, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Iterations)
	assert.False(t, res.Converged)
}

func TestRun_Idempotent(t *testing.T) {
	ds := threeBlobs()
	res, err := Run(ds, 3, DefaultOptions())
	require.NoError(t, err)
	require.True(t, res.Converged)

	labels, err := Assign(ds, res.Centroids)
	require.NoError(t, err)
	again, err := Recalculate(ds, labels, 3, NewRand(0))
	require.NoError(t, err)
	assert.Equal(t, res.Centroids, again)
}

func TestRun_SeededIsReproducible(t *testing.T) {
	run := func() Result {
		opts := DefaultOptions()
		opts.Strategy = RandomPick
		opts.Rand = NewRand(42)
		res, err := Run(threeBlobs(), 4, opts)
		require.NoError(t, err)
		return res
	}
	assert.Equal(t, run(), run())
}

func TestStep(t *testing.T) {
	st, err := NewState(twoBlobs(), 2, DefaultOptions())
	require.NoError(t, err)
	assert.False(t, st.Done())
	assert.Equal(t, DefaultMaxIterations, st.MaxIterations())

	next, err := Step(st)
	require.NoError(t, err)
	assert.Equal(t, 0, st.Iterations, "input state must not change")
	assert.Nil(t, st.Previous)
	assert.Equal(t, 1, next.Iterations)
	assert.Equal(t, st.Current, next.Previous)
	assert.False(t, next.Done())

	final, err := Step(next)
	require.NoError(t, err)
	assert.True(t, final.Done())
	assert.Equal(t, 1, final.Iterations)

	// stepping a stopped state is a no-op
	again, err := Step(final)
	require.NoError(t, err)
	assert.Equal(t, final, again)

	res := final.Result()
	assert.True(t, res.Converged)
	assert.Equal(t, final.Current, res.Centroids)
}

func TestStep_ReplayConsumesRandomSource(t *testing.T) {
	ds := Dataset{{0}, {0}, {5}}
	opts := DefaultOptions()
	opts.Strategy = RandomPick
	opts.Rand = &seqRand{vals: []int{0, 1, 2, 0}}

	st, err := NewState(ds, 2, opts)
	require.NoError(t, err)
	require.Equal(t, Centroids{{0}, {0}}, st.Current)

	// ties send every point to cluster 0, so cluster 1 is reseeded each pass
	first, err := Step(st)
	require.NoError(t, err)
	second, err := Step(st)
	require.NoError(t, err)

	assert.Equal(t, Point{5}, first.Current[1])
	assert.Equal(t, Point{0}, second.Current[1])
	assert.Equal(t, first.Current[0], second.Current[0])
	assert.Equal(t, 0, st.Iterations)
	assert.Equal(t, Centroids{{0}, {0}}, st.Current)
}

func TestState_ResultBeforeFirstStep(t *testing.T) {
	st, err := NewState(twoBlobs(), 2, DefaultOptions())
	require.NoError(t, err)

	res := st.Result()
	assert.False(t, res.Converged)
	assert.Equal(t, 0, res.Iterations)
	assert.Equal(t, []int{2, 2}, res.Clusters.Sizes())
}

func TestNewState_Errors(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxIterations = -1
	_, err := NewState(twoBlobs(), 2, opts)
	assert.Error(t, err)

	opts = DefaultOptions()
	opts.Tolerance = -1
	_, err = NewState(twoBlobs(), 2, opts)
	assert.Error(t, err)

	_, err = NewState(twoBlobs(), 9, DefaultOptions())
	assert.ErrorIs(t, err, ErrInvalidClusterCount)
}

func TestNewState_RejectsNonFiniteTolerance(t *testing.T) {
	ds := Dataset{{0}, {1}, {2}, {3}, {10}, {11}}

	// the exact run needs more than one pass to settle
	exact, err := Run(ds, 2, DefaultOptions())
	require.NoError(t, err)
	require.Greater(t, exact.Iterations, 1)

	for _, tol := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		opts := DefaultOptions()
		opts.Tolerance = tol
		_, err := NewState(ds, 2, opts)
		assert.Error(t, err, "tolerance %v", tol)
		_, err = Run(ds, 2, opts)
		assert.Error(t, err, "tolerance %v", tol)
	}
	assert.False(t, ValidTolerance(math.NaN()))
	assert.True(t, ValidTolerance(0))
	assert.True(t, ValidTolerance(0.5))
}

func TestParseStrategy(t *testing.T) {
	s, err := ParseStrategy("naive-sharding")
	require.NoError(t, err)
	assert.Equal(t, NaiveSharding, s)

	s, err = ParseStrategy(" Random-Pick ")
	require.NoError(t, err)
	assert.Equal(t, RandomPick, s)

	_, err = ParseStrategy("kmeans++")
	assert.ErrorIs(t, err, ErrUnknownStrategy)

	var u Strategy
	require.NoError(t, u.UnmarshalText([]byte("random-pick")))
	assert.Equal(t, RandomPick, u)
	text, err := u.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "random-pick", string(text))
}

func TestDedup(t *testing.T) {
	negZero := Point{0, 1}
	negZero[0] = -negZero[0]

	ds := Dedup([]Point{{1, 2}, {3, 4}, {1, 2}, {0, 1}, negZero, {3, 4}})
	assert.Equal(t, Dataset{{1, 2}, {3, 4}, {0, 1}}, ds)
}
