package deprivation

import (
	"context"
	"fmt"
	"time"

	"careanalytics/internal/cache"
	"careanalytics/internal/core"
	applog "careanalytics/internal/log"
)

// ClassifierMetrics receives classification outcomes. A nil value disables metrics.
type ClassifierMetrics interface {
	IncClassification(outcome string)
}

// Classifier maps postcodes onto deprivation flags using the lookup table.
// It holds no state beyond a read-through cache of table rows.
type Classifier struct {
	lookup  Lookup
	cache   *cache.LRUCache[core.Classification]
	logger  *applog.Logger
	metrics ClassifierMetrics
}

// NewClassifier creates a classifier. cacheSize <= 0 disables caching.
func NewClassifier(lookup Lookup, cacheSize int, ttl time.Duration, logger *applog.Logger, metrics ClassifierMetrics) *Classifier {
	if logger == nil {
		logger = applog.New(applog.DefaultConfig())
	}
	c := &Classifier{
		lookup:  lookup,
		logger:  logger.WithComponent(applog.ComponentClassifier),
		metrics: metrics,
	}
	if cacheSize > 0 {
		c.cache = cache.NewLRUCache[core.Classification](cacheSize, ttl)
	}
	return c
}

// Classify normalizes postcode and looks it up. A postcode absent from the
// table yields Matched=false with both flags false, which callers must treat
// as unknown. The error is non-nil only when the table itself fails.
func (c *Classifier) Classify(ctx context.Context, postcode string) (core.Classification, error) {
	key := core.NormalizePostcode(postcode)
	if key == "" {
		c.observe(core.Unmatched())
		return core.Unmatched(), nil
	}
	if c.cache != nil {
		if cls, ok := c.cache.Get(key); ok {
			c.observe(cls)
			return cls, nil
		}
	}

	rec, found, err := c.lookup.Get(ctx, key)
	if err != nil {
		return core.Classification{}, fmt.Errorf("lookup postcode: %w", err)
	}
	cls := core.Unmatched()
	if found {
		cls = rec.Classify()
	} else {
		c.logger.DebugContext(ctx, "Postcode not in deprivation table", applog.FieldPostcode, key)
	}
	if c.cache != nil {
		c.cache.Set(key, cls)
	}
	c.observe(cls)
	return cls, nil
}

// ClassifyAll returns a copy of commitments with Deprivation filled in.
func (c *Classifier) ClassifyAll(ctx context.Context, commitments []core.Commitment) ([]core.Commitment, error) {
	out := make([]core.Commitment, len(commitments))
	for i, cm := range commitments {
		cls, err := c.Classify(ctx, cm.Postcode)
		if err != nil {
			return nil, fmt.Errorf("classify commitment %s: %w", cm.ID, err)
		}
		cm.Deprivation = cls
		out[i] = cm
	}
	return out, nil
}

// Invalidate drops cached classifications, e.g. after a re-import.
func (c *Classifier) Invalidate() {
	if c.cache == nil {
		return
	}
	st := c.cache.Stats()
	c.cache.Clear()
	c.logger.Info("Classification cache cleared",
		"hits", st.Hits, "misses", st.Misses, "evictions", st.Evictions, "expirations", st.Expirations)
}

// CacheCleaner exposes the cache for periodic expiry, or nil when disabled.
func (c *Classifier) CacheCleaner() cache.Cleaner {
	if c.cache == nil {
		return nil
	}
	return c.cache
}

func (c *Classifier) observe(cls core.Classification) {
	if c.metrics == nil {
		return
	}
	if cls.Matched {
		c.metrics.IncClassification("matched")
		return
	}
	c.metrics.IncClassification("unmatched")
}
