// Package modelcache keeps live model listings for a while so repeated
// listing calls do not hit the provider every time. Static fallbacks are
// never cached: the next call retries the live endpoint.
package modelcache

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/voocel/unillm/providers"
)

// DefaultTTL is used when New is given a non-positive TTL.
const DefaultTTL = 10 * time.Minute

const keyPrefix = "unillm:models:"

// Store persists encoded listings. Get reports ok=false on a miss.
// Implementations must be safe for concurrent use.
type Store interface {
	Get(ctx context.Context, key string) (value []byte, ok bool, err error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used to report store failures.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// Cache sits in front of the adapters' listing calls. Concurrent misses for
// the same key share a single upstream call.
type Cache struct {
	store  Store
	ttl    time.Duration
	group  singleflight.Group
	logger *slog.Logger
}

// New builds a cache over store. A nil store gets a MemoryStore.
func New(store Store, ttl time.Duration, opts ...Option) *Cache {
	if store == nil {
		store = NewMemoryStore()
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	c := &Cache{store: store, ttl: ttl, logger: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TTL returns how long a live listing stays cached.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Names returns the cached model names for key, or calls load on a miss.
func (c *Cache) Names(ctx context.Context, key string, load func(context.Context) ([]string, providers.ListingSource)) ([]string, providers.ListingSource) {
	return cached(ctx, c, "names:"+key, load)
}

// Models returns the cached model descriptors for key, or calls load on a miss.
func (c *Cache) Models(ctx context.Context, key string, load func(context.Context) ([]providers.Model, providers.ListingSource)) ([]providers.Model, providers.ListingSource) {
	return cached(ctx, c, "models:"+key, load)
}

// Close releases the store when it holds a connection.
func (c *Cache) Close() error {
	if closer, ok := c.store.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type listing[T any] struct {
	items  []T
	source providers.ListingSource
}

func cached[T any](ctx context.Context, c *Cache, key string, load func(context.Context) ([]T, providers.ListingSource)) ([]T, providers.ListingSource) {
	key = keyPrefix + key
	log := c.logger.With("key", key)

	if raw, ok, err := c.store.Get(ctx, key); err != nil {
		log.Warn("model cache read failed", "error", err)
	} else if ok {
		var items []T
		if err := json.Unmarshal(raw, &items); err == nil {
			return items, providers.SourceLive
		}
		log.Warn("model cache entry unreadable, reloading")
	}

	v, _, _ := c.group.Do(key, func() (any, error) {
		items, source := load(ctx)
		if source == providers.SourceLive {
			if raw, err := json.Marshal(items); err != nil {
				log.Warn("model cache encode failed", "error", err)
			} else if err := c.store.Set(ctx, key, raw, c.ttl); err != nil {
				log.Warn("model cache write failed", "error", err)
			}
		}
		return listing[T]{items: items, source: source}, nil
	})
	l := v.(listing[T])
	return l.items, l.source
}
