package encryption

import (
	"testing"

	"github.com/yeti47/cryochat/core/ccc/logging"
)

func TestNewPublicKeyCache(t *testing.T) {
	cache := NewPublicKeyCache(8, logging.NopLogger)
	if cache == nil {
		t.Fatal("Expected cache to be created")
	}

	stats := cache.Stats()
	if stats.MaxEntries != 8 {
		t.Errorf("Expected max entries 8, got %d", stats.MaxEntries)
	}
	if stats.EntryCount != 0 {
		t.Errorf("Expected initial entry count 0, got %d", stats.EntryCount)
	}
}

func TestNewPublicKeyCacheInvalidSize(t *testing.T) {
	cache := NewPublicKeyCache(-1, nil)
	if stats := cache.Stats(); stats.MaxEntries != defaultPublicKeyCacheSize {
		t.Errorf("Expected default size %d, got %d", defaultPublicKeyCacheSize, stats.MaxEntries)
	}
}

func TestPublicKeyCache_HitAndMiss(t *testing.T) {
	pair, _ := testKeyPairs(t)
	encoded, _ := pair.PublicKeyB64()
	cache := NewPublicKeyCache(8, logging.NopLogger)

	first, err := cache.Get(encoded)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}
	second, err := cache.Get(encoded)
	if err != nil {
		t.Fatalf("Get() failed: %v", err)
	}

	if first != second {
		t.Error("Expected the cached key instance on a hit")
	}
	if !first.Equal(pair.PublicKey) {
		t.Error("Cached key differs from the original")
	}

	stats := cache.Stats()
	if stats.HitCount != 1 || stats.MissCount != 1 {
		t.Errorf("Expected 1 hit and 1 miss, got %d hits and %d misses", stats.HitCount, stats.MissCount)
	}
}

func TestPublicKeyCache_InvalidKeyNotCached(t *testing.T) {
	cache := NewPublicKeyCache(8, logging.NopLogger)

	if _, err := cache.Get("garbage"); !IsKeyFormatError(err) {
		t.Errorf("Expected *KeyFormatError, got %v", err)
	}
	if stats := cache.Stats(); stats.EntryCount != 0 {
		t.Errorf("Invalid keys must not be cached, got %d entries", stats.EntryCount)
	}
}

func TestPublicKeyCache_LRUEviction(t *testing.T) {
	alice, bob := testKeyPairs(t)
	aliceKey, _ := alice.PublicKeyB64()
	bobKey, _ := bob.PublicKeyB64()

	cache := NewPublicKeyCache(1, logging.NopLogger)

	cache.Get(aliceKey)
	cache.Get(bobKey)

	stats := cache.Stats()
	if stats.EntryCount != 1 {
		t.Errorf("Expected 1 entry, got %d", stats.EntryCount)
	}
	if stats.EvictionCount != 1 {
		t.Errorf("Expected 1 eviction, got %d", stats.EvictionCount)
	}

	// bob is cached, alice was evicted
	cache.Get(bobKey)
	if cache.Stats().HitCount != 1 {
		t.Error("Expected a hit for the most recent key")
	}
	cache.Get(aliceKey)
	if cache.Stats().MissCount != 3 {
		t.Error("Expected a miss for the evicted key")
	}
}

func TestPublicKeyCache_Clear(t *testing.T) {
	pair, _ := testKeyPairs(t)
	encoded, _ := pair.PublicKeyB64()
	cache := NewPublicKeyCache(8, logging.NopLogger)

	cache.Get(encoded)
	cache.Clear()

	if stats := cache.Stats(); stats.EntryCount != 0 {
		t.Errorf("Expected empty cache after Clear(), got %d entries", stats.EntryCount)
	}
}
