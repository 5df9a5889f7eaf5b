package cache

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// ErrNotFound is returned when a key is missing or expired.
var ErrNotFound = fmt.Errorf("cache: key not found")

// Cache interface for different cache implementations
type Cache interface {
	Set(key string, value interface{}, ttl time.Duration) error
	Get(key string, dest interface{}) error
	Delete(key string) error
	Exists(key string) bool
}

// MemoryCache implements an in-memory cache with TTL support
type MemoryCache struct {
	items map[string]*entry
	mutex sync.RWMutex
}

type entry struct {
	value     interface{}
	expiresAt time.Time
}

// NewMemoryCache creates a new in-memory cache and starts its cleanup loop.
func NewMemoryCache() *MemoryCache {
	mc := &MemoryCache{
		items: make(map[string]*entry),
	}
	go mc.cleanup()
	return mc
}

// Set stores a value with a TTL. A non-positive TTL means no expiration.
func (mc *MemoryCache) Set(key string, value interface{}, ttl time.Duration) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	expiresAt := time.Now().Add(ttl)
	if ttl <= 0 {
		expiresAt = time.Time{}
	}

	mc.items[key] = &entry{value: value, expiresAt: expiresAt}
	return nil
}

// Get retrieves a value into dest. The round-trip through JSON gives the
// caller a deep copy, so cached previews cannot be mutated in place.
func (mc *MemoryCache) Get(key string, dest interface{}) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	item, exists := mc.items[key]
	if !exists {
		return ErrNotFound
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		delete(mc.items, key)
		return ErrNotFound
	}

	data, err := json.Marshal(item.value)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Delete removes a key.
func (mc *MemoryCache) Delete(key string) error {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	delete(mc.items, key)
	return nil
}

// Exists checks if a key exists and has not expired.
func (mc *MemoryCache) Exists(key string) bool {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	item, exists := mc.items[key]
	if !exists {
		return false
	}
	if !item.expiresAt.IsZero() && time.Now().After(item.expiresAt) {
		delete(mc.items, key)
		return false
	}
	return true
}

// cleanup periodically removes expired items.
func (mc *MemoryCache) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		mc.removeExpired()
	}
}

func (mc *MemoryCache) removeExpired() {
	mc.mutex.Lock()
	defer mc.mutex.Unlock()

	now := time.Now()
	for key, item := range mc.items {
		if !item.expiresAt.IsZero() && now.After(item.expiresAt) {
			delete(mc.items, key)
		}
	}
}
