// Package cache persists palette reports in LevelDB so unchanged images
// are not clustered again.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/syndtr/goleveldb/leveldb"
	"go.uber.org/zap"
)

// Params are the clustering inputs a cached report depends on besides the
// image itself.
type Params struct {
	Clusters      int
	MaxIterations int
	Strategy      string
	Seed          uint64
	Tolerance     float64
	MaxSide       uint
}

// Key derives the cache key of an image digest clustered with p.
func Key(digest string, p Params) string {
	return fmt.Sprintf("palette/%s/k=%d/iter=%d/init=%s/seed=%d/tol=%g/side=%d",
		digest, p.Clusters, p.MaxIterations, p.Strategy, p.Seed, p.Tolerance, p.MaxSide)
}

// Store is a JSON value store backed by LevelDB.
type Store struct {
	db  *leveldb.DB
	log *zap.Logger
}

// Open opens or creates the store in dir.
func Open(dir string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, fmt.Errorf("error opening cache %s: %w", dir, err)
	}
	return &Store{db: db, log: log}, nil
}

// Get decodes the value stored under key into v. It returns an error
// matching os.ErrNotExist when the key is absent.
func (s *Store) Get(key string, v any) error {
	raw, err := s.db.Get([]byte(key), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		s.log.Debug("cache miss", zap.String("key", key))
		return fmt.Errorf("cache key %s: %w", key, os.ErrNotExist)
	}
	if err != nil {
		return fmt.Errorf("error reading cache: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("error decoding cached value: %w", err)
	}
	s.log.Debug("cache hit", zap.String("key", key))
	return nil
}

// Put stores v under key as JSON.
func (s *Store) Put(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("error encoding cache value: %w", err)
	}
	if err := s.db.Put([]byte(key), raw, nil); err != nil {
		return fmt.Errorf("error writing cache: %w", err)
	}
	return nil
}

// Close releases the database.
func (s *Store) Close() error {
	return s.db.Close()
}
