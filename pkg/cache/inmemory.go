package cache

import (
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

type Cache interface {
	Set(key string, value interface{}, duration time.Duration)
	Get(key string) (interface{}, bool)
	Delete(key string)
	Flush()
}

type goCache struct {
	internal *cache.Cache
}

// NewCache returns a process-local cache. A zero duration on Set means
// defaultExpiration.
func NewCache(defaultExpiration, cleanupInterval time.Duration) Cache {
	return &goCache{
		internal: cache.New(defaultExpiration, cleanupInterval),
	}
}

func (c *goCache) Set(key string, value interface{}, duration time.Duration) {
	c.internal.Set(key, value, duration)
}

func (c *goCache) Get(key string) (interface{}, bool) {
	return c.internal.Get(key)
}

func (c *goCache) Delete(key string) {
	c.internal.Delete(key)
}

func (c *goCache) Flush() {
	c.internal.Flush()
}

// GetFromCache reads key from c and asserts it to T.
func GetFromCache[T any](c Cache, key string) (T, bool) {
	var zero T
	val, found := c.Get(key)
	if !found {
		return zero, false
	}
	typedVal, ok := val.(T)
	if !ok {
		return zero, false
	}
	return typedVal, true
}

// Store is a typed view over one key namespace of a Cache. Keys are built
// from format (see pkg/common) and the arguments given to each call.
type Store[T any] struct {
	cache  Cache
	format string
	ttl    time.Duration
}

func NewStore[T any](c Cache, format string, ttl time.Duration) *Store[T] {
	return &Store[T]{cache: c, format: format, ttl: ttl}
}

func (s *Store[T]) Get(args ...interface{}) (T, bool) {
	return GetFromCache[T](s.cache, s.key(args...))
}

func (s *Store[T]) Set(value T, args ...interface{}) {
	s.cache.Set(s.key(args...), value, s.ttl)
}

func (s *Store[T]) Delete(args ...interface{}) {
	s.cache.Delete(s.key(args...))
}

func (s *Store[T]) key(args ...interface{}) string {
	return fmt.Sprintf(s.format, args...)
}
