package schema

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	apperrors "github.com/jStrider/grafana-publisher/internal/pkg/errors"
	"github.com/jStrider/grafana-publisher/internal/pkg/logger"
	"github.com/jStrider/grafana-publisher/internal/pkg/metrics"
)

// FetchFunc retrieves field schemas from the external ticketing system
type FetchFunc func(ctx context.Context) ([]FieldSchema, error)

// Cache is the on-disk, TTL-bounded store of custom field definitions,
// keyed by publisher/list. Construct one per run and pass it explicitly;
// once a key is served during a run the same snapshot is returned for the
// rest of that run.
type Cache struct {
	path    string
	ttl     time.Duration
	enabled bool
	logger  *logger.Logger
	now     func() time.Time

	entries  map[string]entry
	snapshot map[string][]FieldSchema
}

type entry struct {
	FetchedAt time.Time     `json:"fetched_at"`
	Fields    []FieldSchema `json:"fields"`
}

// NewCache loads the cache file if present. A missing or corrupt file is a
// forced cache miss, never an error.
func NewCache(path string, ttl time.Duration, enabled bool, log *logger.Logger) *Cache {
	c := &Cache{
		path:     path,
		ttl:      ttl,
		enabled:  enabled,
		logger:   log,
		now:      time.Now,
		entries:  map[string]entry{},
		snapshot: map[string][]FieldSchema{},
	}
	c.load()
	return c
}

func (c *Cache) load() {
	if !c.enabled {
		return
	}
	raw, err := os.ReadFile(c.path)
	if err != nil {
		return
	}
	if err := json.Unmarshal(raw, &c.entries); err != nil {
		c.logger.WithError(err).Warn("schema cache file is corrupt, ignoring it")
		c.entries = map[string]entry{}
	}
}

func (c *Cache) persist() {
	if !c.enabled {
		return
	}
	if err := os.MkdirAll(filepath.Dir(c.path), 0o700); err != nil {
		c.logger.WithError(err).Warn("cannot create schema cache directory")
		return
	}
	raw, err := json.MarshalIndent(c.entries, "", "  ")
	if err != nil {
		return
	}
	if err := os.WriteFile(c.path, raw, 0o600); err != nil {
		c.logger.WithError(err).Warn("cannot write schema cache file")
	}
}

// Fields returns the field schemas for key. A fresh cached entry is served
// without external I/O. On miss or expiry the fetch function is called and
// the result stored. If the fetch fails and an expired entry exists, the
// stale entry is served with a warning: this metadata favors availability
// over freshness.
func (c *Cache) Fields(ctx context.Context, key string, fetch FetchFunc) ([]FieldSchema, error) {
	if snap, ok := c.snapshot[key]; ok {
		return snap, nil
	}

	cached, haveCached := c.entries[key]
	if c.enabled && haveCached && c.now().Sub(cached.FetchedAt) <= c.ttl {
		metrics.RecordSchemaCacheEvent(metrics.CacheHit)
		c.snapshot[key] = cached.Fields
		return cached.Fields, nil
	}

	metrics.RecordSchemaCacheEvent(metrics.CacheMiss)
	fields, err := fetch(ctx)
	if err != nil {
		if haveCached {
			metrics.RecordSchemaCacheEvent(metrics.CacheStale)
			c.logger.WithError(err).With("key", key).
				Warn("field schema fetch failed, serving stale cache entry")
			c.snapshot[key] = cached.Fields
			return cached.Fields, nil
		}
		metrics.RecordSchemaCacheEvent(metrics.CacheError)
		return nil, apperrors.Fetch("field schema for "+key, err)
	}

	c.entries[key] = entry{FetchedAt: c.now(), Fields: fields}
	c.persist()
	c.snapshot[key] = fields
	return fields, nil
}

// Invalidate drops the cached entry for key
func (c *Cache) Invalidate(key string) {
	delete(c.entries, key)
	delete(c.snapshot, key)
	c.persist()
}

// Clear removes all cached entries and deletes the cache file
func (c *Cache) Clear() error {
	c.entries = map[string]entry{}
	c.snapshot = map[string][]FieldSchema{}
	if err := os.Remove(c.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// EntryStatus describes one cached entry for the cache status command
type EntryStatus struct {
	Key       string    `json:"key"`
	FetchedAt time.Time `json:"fetched_at"`
	Fields    int       `json:"fields"`
	Expired   bool      `json:"expired"`
}

// Status reports the state of every cached entry
func (c *Cache) Status() []EntryStatus {
	statuses := make([]EntryStatus, 0, len(c.entries))
	for key, e := range c.entries {
		statuses = append(statuses, EntryStatus{
			Key:       key,
			FetchedAt: e.FetchedAt,
			Fields:    len(e.Fields),
			Expired:   c.now().Sub(e.FetchedAt) > c.ttl,
		})
	}
	return statuses
}
