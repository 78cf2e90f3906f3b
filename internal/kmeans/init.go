package kmeans

import (
	"fmt"
	"strings"
)

// Strategy selects how the initial centroids are chosen.
type Strategy int

const (
	// NaiveSharding splits the dataset, in its given order, into k contiguous
	// shards and averages each one. It does not sort.
	NaiveSharding Strategy = iota
	// RandomPick copies k distinct, uniformly chosen points.
	RandomPick
)

func (s Strategy) String() string {
	switch s {
	case NaiveSharding:
		return "naive-sharding"
	case RandomPick:
		return "random-pick"
	default:
		return fmt.Sprintf("Strategy(%d)", int(s))
	}
}

// ParseStrategy maps a strategy name back to its value.
func ParseStrategy(name string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "naive-sharding", "naive", "sharding":
		return NaiveSharding, nil
	case "random-pick", "random":
		return RandomPick, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrUnknownStrategy, name)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Strategy) MarshalText() ([]byte, error) {
	switch s {
	case NaiveSharding, RandomPick:
		return []byte(s.String()), nil
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(s))
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Strategy) UnmarshalText(text []byte) error {
	v, err := ParseStrategy(string(text))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// Initialize produces k starting centroids using the given strategy. rng is
// only consulted by RandomPick and may be nil for NaiveSharding.
func Initialize(ds Dataset, k int, strategy Strategy, rng Rand) (Centroids, error) {
	switch strategy {
	case NaiveSharding:
		return NaiveShardingInit(ds, k)
	case RandomPick:
		return RandomPickInit(ds, k, rng)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnknownStrategy, int(strategy))
	}
}

// NaiveShardingInit partitions ds into k shards of len(ds)/k points, the last
// shard absorbing the remainder, and returns the mean of each shard.
func NaiveShardingInit(ds Dataset, k int) (Centroids, error) {
	dim, err := checkInit(ds, k)
	if err != nil {
		return nil, err
	}

	n := len(ds)
	step := n / k
	centroids := make(Centroids, 0, k)
	for i := 0; i < k; i++ {
		start := step * i
		end := step * (i + 1)
		if i+1 == k {
			end = n
		}
		centroids = append(centroids, mean(ds[start:end], dim))
	}
	return centroids, nil
}

// RandomPickInit copies k points at distinct uniformly drawn indices.
// Colliding draws are retried.
func RandomPickInit(ds Dataset, k int, rng Rand) (Centroids, error) {
	if _, err := checkInit(ds, k); err != nil {
		return nil, err
	}
	if rng == nil {
		return nil, fmt.Errorf("kmeans: random-pick init needs a random source")
	}

	n := len(ds)
	picked := make(map[int]struct{}, k)
	centroids := make(Centroids, 0, k)
	for len(centroids) < k {
		idx := rng.IntN(n)
		if _, ok := picked[idx]; ok {
			continue
		}
		picked[idx] = struct{}{}
		centroids = append(centroids, ds[idx].Clone())
	}
	return centroids, nil
}

func checkInit(ds Dataset, k int) (int, error) {
	if len(ds) == 0 {
		return 0, ErrEmptyDataset
	}
	if k < 1 || k > len(ds) {
		return 0, fmt.Errorf("%w: k=%d with %d points", ErrInvalidClusterCount, k, len(ds))
	}
	return ds.Dim()
}
