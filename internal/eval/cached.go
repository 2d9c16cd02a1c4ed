package eval

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/thyrook/abeval/internal/position"
)

// Store is a persistent score cache such as storage.EvalCache.
type Store interface {
	Get(tag, snapshot string) (float64, bool, error)
	Put(tag, snapshot string, score float64) error
	Flush() (int, error)
}

// Cached memoises another evaluator by snapshot. Terminal positions are
// scored directly and never cached.
type Cached struct {
	inner Evaluator
	store Store
	tag   string

	mu   sync.RWMutex
	memo map[string]float64

	hits   atomic.Int64
	misses atomic.Int64
}

// NewCached wraps inner. store may be nil for an in-memory cache only;
// tag keeps scores of different evaluators apart in a shared store.
func NewCached(inner Evaluator, store Store, tag string) *Cached {
	return &Cached{
		inner: inner,
		store: store,
		tag:   tag,
		memo:  make(map[string]float64),
	}
}

// Evaluate implements Evaluator.
func (c *Cached) Evaluate(p position.Position) (float64, error) {
	if score, ok := Terminal(p); ok {
		return score, nil
	}

	snapshot := p.Snapshot()

	c.mu.RLock()
	score, ok := c.memo[snapshot]
	c.mu.RUnlock()
	if ok {
		c.hits.Add(1)
		return score, nil
	}

	if c.store != nil {
		score, ok, err := c.store.Get(c.tag, snapshot)
		if err != nil {
			return 0, fmt.Errorf("cache lookup: %w", err)
		}
		if ok {
			c.hits.Add(1)
			c.remember(snapshot, score)
			return score, nil
		}
	}

	c.misses.Add(1)
	score, err := c.inner.Evaluate(p)
	if err != nil {
		return 0, err
	}

	c.remember(snapshot, score)
	if c.store != nil {
		if err := c.store.Put(c.tag, snapshot, score); err != nil {
			return 0, fmt.Errorf("cache store: %w", err)
		}
	}
	return score, nil
}

func (c *Cached) remember(snapshot string, score float64) {
	c.mu.Lock()
	c.memo[snapshot] = score
	c.mu.Unlock()
}

// Flush writes pending scores to the store.
func (c *Cached) Flush() (int, error) {
	if c.store == nil {
		return 0, nil
	}
	return c.store.Flush()
}

// Stats returns cache hits and misses since creation.
func (c *Cached) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}
