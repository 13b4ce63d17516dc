package encryption

import (
	"container/list"
	"crypto/rsa"
	"sync"
	"time"

	"github.com/yeti47/cryochat/core/ccc/logging"
)

const defaultPublicKeyCacheSize = 256

// publicKeyEntry is a parsed peer key with LRU bookkeeping
type publicKeyEntry struct {
	encoded    string
	key        *rsa.PublicKey
	accessTime time.Time
	element    *list.Element
}

// PublicKeyCache memoises imported peer public keys, keyed by their base64 form
type PublicKeyCache interface {
	// Get returns the parsed key, importing and caching it on a miss
	Get(encoded string) (*rsa.PublicKey, error)
	// Clear removes all entries from cache
	Clear()
	// Stats returns cache statistics
	Stats() CacheStats
}

// CacheStats provides information about cache performance and usage
type CacheStats struct {
	EntryCount     int     // Number of entries in cache
	MaxEntries     int     // Capacity
	HitCount       int64   // Number of cache hits
	MissCount      int64   // Number of cache misses
	EvictionCount  int64   // Number of entries evicted
	UtilizationPct float64 // Cache utilization percentage
}

// lruPublicKeyCache implements PublicKeyCache with LRU eviction policy
type lruPublicKeyCache struct {
	mutex      sync.Mutex
	maxEntries int
	entries    map[string]*publicKeyEntry
	lruList    *list.List // Most recently used at front
	logger     logging.Logger

	hitCount      int64
	missCount     int64
	evictionCount int64
}

// NewPublicKeyCache creates an LRU cache holding up to maxEntries keys
func NewPublicKeyCache(maxEntries int, logger logging.Logger) PublicKeyCache {
	if logger == nil {
		logger = logging.NopLogger
	}

	if maxEntries <= 0 {
		logger.Warn("Invalid public key cache size provided, using default", "providedSize", maxEntries, "default", defaultPublicKeyCacheSize)
		maxEntries = defaultPublicKeyCacheSize
	}

	return &lruPublicKeyCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*publicKeyEntry),
		lruList:    list.New(),
		logger:     logger,
	}
}

func (c *lruPublicKeyCache) Get(encoded string) (*rsa.PublicKey, error) {
	c.mutex.Lock()
	if entry, exists := c.entries[encoded]; exists {
		entry.accessTime = time.Now()
		c.lruList.MoveToFront(entry.element)
		c.hitCount++
		c.mutex.Unlock()
		return entry.key, nil
	}
	c.missCount++
	c.mutex.Unlock()

	// parse outside the lock; a concurrent miss for the same key just parses twice
	key, err := ImportPublicKey(encoded)
	if err != nil {
		return nil, err
	}

	c.mutex.Lock()
	defer c.mutex.Unlock()

	if existing, exists := c.entries[encoded]; exists {
		c.lruList.MoveToFront(existing.element)
		return existing.key, nil
	}

	entry := &publicKeyEntry{encoded: encoded, key: key, accessTime: time.Now()}
	entry.element = c.lruList.PushFront(entry)
	c.entries[encoded] = entry

	c.evictIfNecessary()
	return key, nil
}

func (c *lruPublicKeyCache) Clear() {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	entryCount := len(c.entries)
	c.entries = make(map[string]*publicKeyEntry)
	c.lruList = list.New()

	c.logger.Debug("Cleared public key cache", "removedEntries", entryCount)
}

func (c *lruPublicKeyCache) Stats() CacheStats {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return CacheStats{
		EntryCount:     len(c.entries),
		MaxEntries:     c.maxEntries,
		HitCount:       c.hitCount,
		MissCount:      c.missCount,
		EvictionCount:  c.evictionCount,
		UtilizationPct: float64(len(c.entries)) / float64(c.maxEntries) * 100,
	}
}

// evictIfNecessary removes least recently used entries until the cache fits
func (c *lruPublicKeyCache) evictIfNecessary() {
	for len(c.entries) > c.maxEntries {
		element := c.lruList.Back()
		if element == nil {
			return
		}
		entry := element.Value.(*publicKeyEntry)
		delete(c.entries, entry.encoded)
		c.lruList.Remove(element)
		c.evictionCount++
		c.logger.Debug("Evicted public key", "idleFor", time.Since(entry.accessTime))
	}
}
