package storage

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.etcd.io/bbolt"
)

const (
	// BucketName for storing evaluations
	BucketName = "evaluations"

	// MetaBucket for storing metadata
	MetaBucket = "meta"

	// CountKey for tracking total entries
	CountKey = "count"
)

// Entry is one cached evaluation
type Entry struct {
	Tag      string  `json:"tag"`
	Snapshot string  `json:"snapshot"`
	Score    float64 `json:"score"`
}

// EvalCache persists evaluator scores keyed by (model tag, position snapshot).
// Writes are buffered in memory until Flush so a search does not pay one
// transaction per leaf.
type EvalCache struct {
	db       *bbolt.DB
	dbPath   string
	mu       sync.RWMutex
	pending  map[string]float64
	count    uint64
	isClosed bool
}

// NewEvalCache creates a new evaluation cache with BoltDB backend
func NewEvalCache(dbPath string) (*EvalCache, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with timeout
	db, err := bbolt.Open(dbPath, 0600, &bbolt.Options{
		Timeout: 5 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Initialize buckets
	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(BucketName))
		if err != nil {
			return fmt.Errorf("create bucket: %w", err)
		}

		_, err = tx.CreateBucketIfNotExists([]byte(MetaBucket))
		if err != nil {
			return fmt.Errorf("create meta bucket: %w", err)
		}

		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	cache := &EvalCache{
		db:      db,
		dbPath:  dbPath,
		pending: make(map[string]float64),
	}

	// Load current count
	count, err := cache.Count()
	if err != nil {
		db.Close()
		return nil, err
	}
	cache.count = count

	return cache, nil
}

func cacheKey(tag, snapshot string) string {
	return tag + "\x00" + snapshot
}

func encodeScore(score float64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, math.Float64bits(score))
	return b
}

func decodeScore(b []byte) (float64, error) {
	if len(b) != 8 {
		return 0, fmt.Errorf("corrupt score: %d bytes", len(b))
	}
	return math.Float64frombits(binary.BigEndian.Uint64(b)), nil
}

// Get returns the cached score for a snapshot, checking unflushed writes first.
func (c *EvalCache) Get(tag, snapshot string) (float64, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.isClosed {
		return 0, false, fmt.Errorf("cache is closed")
	}

	key := cacheKey(tag, snapshot)
	if score, ok := c.pending[key]; ok {
		return score, true, nil
	}

	var (
		score float64
		found bool
	)
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		data := b.Get([]byte(key))
		if data == nil {
			return nil
		}

		var err error
		score, err = decodeScore(data)
		found = err == nil
		return err
	})

	return score, found, err
}

// Put records a score; it reaches disk on the next Flush.
func (c *EvalCache) Put(tag, snapshot string, score float64) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed {
		return fmt.Errorf("cache is closed")
	}

	c.pending[cacheKey(tag, snapshot)] = score
	return nil
}

// Pending returns the number of unflushed entries
func (c *EvalCache) Pending() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.pending)
}

// Flush writes all pending entries in a single transaction and returns how many were written.
func (c *EvalCache) Flush() (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed {
		return 0, fmt.Errorf("cache is closed")
	}
	if len(c.pending) == 0 {
		return 0, nil
	}

	count := c.count
	err := c.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		for key, score := range c.pending {
			if b.Get([]byte(key)) == nil {
				count++
			}
			if err := b.Put([]byte(key), encodeScore(score)); err != nil {
				return err
			}
		}

		// Update count in meta bucket
		meta := tx.Bucket([]byte(MetaBucket))
		if meta == nil {
			return fmt.Errorf("meta bucket not found")
		}

		countBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(countBytes, count)

		return meta.Put([]byte(CountKey), countBytes)
	})
	if err != nil {
		return 0, err
	}

	written := len(c.pending)
	c.count = count
	c.pending = make(map[string]float64)

	return written, nil
}

// Count returns the number of distinct entries on disk
func (c *EvalCache) Count() (uint64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.countLocked()
}

// countLocked reads the on-disk count. The caller holds c.mu.
func (c *EvalCache) countLocked() (uint64, error) {
	if c.isClosed {
		return 0, fmt.Errorf("cache is closed")
	}

	var count uint64

	err := c.db.View(func(tx *bbolt.Tx) error {
		meta := tx.Bucket([]byte(MetaBucket))
		if meta == nil {
			return fmt.Errorf("meta bucket not found")
		}

		countBytes := meta.Get([]byte(CountKey))
		if countBytes == nil {
			count = 0
			return nil
		}

		count = binary.BigEndian.Uint64(countBytes)
		return nil
	})

	return count, err
}

// Clear removes all entries, flushed or not
func (c *EvalCache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed {
		return fmt.Errorf("cache is closed")
	}

	c.pending = make(map[string]float64)

	return c.db.Update(func(tx *bbolt.Tx) error {
		// Delete and recreate bucket
		if err := tx.DeleteBucket([]byte(BucketName)); err != nil {
			return err
		}

		if _, err := tx.CreateBucket([]byte(BucketName)); err != nil {
			return err
		}

		// Reset count
		meta := tx.Bucket([]byte(MetaBucket))
		if meta == nil {
			return fmt.Errorf("meta bucket not found")
		}

		c.count = 0
		countBytes := make([]byte, 8)
		binary.BigEndian.PutUint64(countBytes, 0)

		return meta.Put([]byte(CountKey), countBytes)
	})
}

// Close flushes pending entries and closes the database connection
func (c *EvalCache) Close() error {
	_, flushErr := c.Flush()

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.isClosed {
		return nil
	}

	c.isClosed = true
	if err := c.db.Close(); err != nil {
		return err
	}
	return flushErr
}

// Stats returns statistics about the cache
type Stats struct {
	Entries uint64
	Pending int
	DBPath  string
}

// GetStats returns current statistics
func (c *EvalCache) GetStats() (Stats, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	count, err := c.countLocked()
	if err != nil {
		return Stats{}, err
	}

	return Stats{
		Entries: count,
		Pending: len(c.pending),
		DBPath:  c.dbPath,
	}, nil
}

// ExportToJSON writes all flushed entries to a JSON file (for backup/debugging)
func (c *EvalCache) ExportToJSON(outputPath string) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.isClosed {
		return fmt.Errorf("cache is closed")
	}

	var entries []Entry
	err := c.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(BucketName))
		if b == nil {
			return fmt.Errorf("bucket not found")
		}

		return b.ForEach(func(k, v []byte) error {
			tag, snapshot, ok := strings.Cut(string(k), "\x00")
			if !ok {
				return nil
			}
			score, err := decodeScore(v)
			// JSON has no encoding for mate scores
			if err != nil || math.IsInf(score, 0) || math.IsNaN(score) {
				return nil
			}
			entries = append(entries, Entry{Tag: tag, Snapshot: snapshot, Score: score})
			return nil
		})
	})
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entries: %w", err)
	}

	return os.WriteFile(outputPath, data, 0644)
}
