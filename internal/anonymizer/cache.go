// Package anonymizer — cache.go
//
// CachedClassifier memoizes classification results for identical text.
// Interview answers are often resubmitted unchanged (retry after a
// persistence warning, the one-shot anonymize API called twice on the same
// transcript), and LLM classification is the slowest step in the pipeline,
// so a hit skips the model round-trip entirely.
//
// Only successful classifications are cached. Errors must propagate fresh
// every time so a recovered classifier is retried, not masked by a stale
// failure.
package anonymizer

import (
	"context"
	"crypto/md5" // #nosec G501 -- cache key, not cryptographic security
	"fmt"
	"sync"

	"interview-anonymizer/internal/entity"
	"interview-anonymizer/internal/metrics"
)

const defaultCacheLimit = 4096

// CachedClassifier wraps a Classifier with an in-memory FIFO result cache
// keyed by md5 of the input text. Safe for concurrent use.
type CachedClassifier struct {
	inner   Classifier
	metrics *metrics.Metrics // nil = no metrics

	mu    sync.RWMutex
	cache map[string][]entity.Span
	order []string // insertion order for FIFO eviction
	limit int
}

// NewCachedClassifier wraps inner with a result cache of at most limit
// entries. limit <= 0 selects a sensible default. m may be nil.
func NewCachedClassifier(inner Classifier, limit int, m *metrics.Metrics) *CachedClassifier {
	if limit <= 0 {
		limit = defaultCacheLimit
	}
	return &CachedClassifier{
		inner:   inner,
		metrics: m,
		cache:   make(map[string][]entity.Span),
		limit:   limit,
	}
}

// Classify returns the cached spans for text when present, otherwise
// delegates to the wrapped classifier and caches its result.
func (c *CachedClassifier) Classify(ctx context.Context, text string) ([]entity.Span, error) {
	key := fmt.Sprintf("%x", md5.Sum([]byte(text))) // #nosec G401

	c.mu.RLock()
	cached, hit := c.cache[key]
	c.mu.RUnlock()
	if hit {
		if c.metrics != nil {
			c.metrics.ClassifierCacheHits.Add(1)
		}
		return cloneSpans(cached), nil
	}
	if c.metrics != nil {
		c.metrics.ClassifierCacheMisses.Add(1)
	}

	spans, err := c.inner.Classify(ctx, text)
	if err != nil {
		return nil, err
	}

	// Evict the oldest quarter of entries when the limit is exceeded.
	c.mu.Lock()
	if _, exists := c.cache[key]; !exists {
		c.cache[key] = cloneSpans(spans)
		c.order = append(c.order, key)
		if len(c.cache) > c.limit {
			evict := c.limit / 4
			if evict == 0 {
				evict = 1
			}
			for _, k := range c.order[:evict] {
				delete(c.cache, k)
			}
			c.order = append(c.order[:0], c.order[evict:]...)
		}
	}
	c.mu.Unlock()

	return spans, nil
}

// cloneSpans copies a span slice so callers cannot mutate cached state.
func cloneSpans(spans []entity.Span) []entity.Span {
	if spans == nil {
		return nil
	}
	out := make([]entity.Span, len(spans))
	copy(out, spans)
	return out
}
