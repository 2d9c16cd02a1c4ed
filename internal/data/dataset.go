package data

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	bolt "go.etcd.io/bbolt"
)

const (
	// DefaultBucketName is the default bucket name for evaluated positions
	DefaultBucketName = "eval_samples"
)

// Sample is one annotated position: a FEN and the engine evaluation after the move.
type Sample struct {
	FEN    string  `json:"fen"`
	Eval   float64 `json:"eval"`
	GameID string  `json:"game_id"`
	Ply    int     `json:"ply"`
}

// Target returns the evaluation clipped to [-limit, limit], the regression
// target used when training the value network. A non-positive limit disables clipping.
func (s *Sample) Target(limit float64) float64 {
	if limit <= 0 {
		return s.Eval
	}
	return math.Max(-limit, math.Min(limit, s.Eval))
}

// Features encodes the sample position.
func (s *Sample) Features(enc Encoding) ([]float64, error) {
	return EncodeFeatures(s.FEN, enc)
}

// Dataset manages the on-disk sample set using BoltDB
type Dataset struct {
	db         *bolt.DB
	bucketName string
	path       string
	mu         sync.RWMutex
}

// DatasetStats describes a dataset on disk
type DatasetStats struct {
	FilePath     string
	TotalEntries int
	FileSize     int64
}

// NewDataset creates a new dataset or opens an existing one
func NewDataset(path string) (*Dataset, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ds := &Dataset{
		db:         db,
		bucketName: DefaultBucketName,
		path:       path,
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(ds.bucketName))
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return ds, nil
}

// Close closes the dataset
func (ds *Dataset) Close() error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	if ds.db != nil {
		return ds.db.Close()
	}
	return nil
}

// Add adds a new sample to the dataset
func (ds *Dataset) Add(sample *Sample) error {
	return ds.AddBatch([]*Sample{sample})
}

// AddBatch adds multiple samples in a single transaction
func (ds *Dataset) AddBatch(samples []*Sample) error {
	ds.mu.Lock()
	defer ds.mu.Unlock()

	return ds.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ds.bucketName))
		if bucket == nil {
			return fmt.Errorf("bucket not found")
		}

		for _, sample := range samples {
			id, err := bucket.NextSequence()
			if err != nil {
				return err
			}
			key := []byte(fmt.Sprintf("%020d", id))

			value, err := json.Marshal(sample)
			if err != nil {
				return fmt.Errorf("failed to marshal sample: %w", err)
			}

			if err := bucket.Put(key, value); err != nil {
				return err
			}
		}

		return nil
	})
}

// Count returns the number of samples in the dataset
func (ds *Dataset) Count() (int, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	count := 0
	err := ds.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ds.bucketName))
		if bucket == nil {
			return fmt.Errorf("bucket not found")
		}
		count = bucket.Stats().KeyN
		return nil
	})

	return count, err
}

// LoadBatch loads n samples starting from the given offset
func (ds *Dataset) LoadBatch(offset, n int) ([]*Sample, error) {
	ds.mu.RLock()
	defer ds.mu.RUnlock()

	var samples []*Sample

	err := ds.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(ds.bucketName))
		if bucket == nil {
			return fmt.Errorf("bucket not found")
		}

		cursor := bucket.Cursor()

		currentIdx := 0
		k, v := cursor.First()
		for k != nil && currentIdx < offset {
			k, v = cursor.Next()
			currentIdx++
		}

		for k != nil && len(samples) < n {
			var sample Sample
			if err := json.Unmarshal(v, &sample); err != nil {
				return fmt.Errorf("failed to unmarshal sample: %w", err)
			}
			samples = append(samples, &sample)

			k, v = cursor.Next()
		}

		return nil
	})

	return samples, err
}

// GetStats returns dataset statistics
func (ds *Dataset) GetStats() (*DatasetStats, error) {
	count, err := ds.Count()
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(ds.path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat dataset: %w", err)
	}

	return &DatasetStats{
		FilePath:     ds.path,
		TotalEntries: count,
		FileSize:     info.Size(),
	}, nil
}
