// Package cache provides durable last-known-good snapshots for offline
// reads.
//
// Every successful remote read (and every optimistic local write) is
// stored here under a deterministic key so that a later offline session
// still has data to show. The store applies no TTL: a reader that cares
// about freshness encodes a date or version inside the stored value and
// checks it itself.
package cache

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/stridefit/stride/internal/kv"
)

// Domain tags for cache keys. One tag per major read view.
const (
	DomainProgram     = "program"
	DomainWorkout     = "workout"
	DomainSetHistory  = "set_history"
	DomainNutrition   = "nutrition"
	DomainMeals       = "meals"
	DomainSupplements = "supplements"
	DomainWater       = "water_log"
	DomainSteps       = "step_log"
	DomainDashboard   = "dashboard"
)

const keyPrefix = "cache:"

// Key builds the deterministic cache key for a domain and owner.
func Key(domain, ownerID string) string {
	return keyPrefix + domain + ":" + ownerID
}

// SubKey builds a cache key scoped to a sub-resource (e.g. one workout's
// prior set history).
func SubKey(domain, ownerID, subID string) string {
	return keyPrefix + domain + ":" + ownerID + ":" + subID
}

// Store is the offline read cache: a durable kv-backed store with an
// in-memory mirror for repeated reads within a session. The mirror is
// not authoritative — durable storage is.
type Store struct {
	store  *kv.Store
	logger *log.Logger

	mu     sync.RWMutex
	mirror map[string]string
}

// New creates a cache over the given kv store.
// If logger is nil, a default logger writing to stderr is used.
func New(store *kv.Store, logger *log.Logger) *Store {
	if logger == nil {
		logger = log.New(os.Stderr, "[cache] ", log.LstdFlags)
	}
	return &Store{
		store:  store,
		logger: logger,
		mirror: make(map[string]string),
	}
}

// Get unmarshals the cached value at key into dst. The return value is
// false on a miss. Storage errors are logged and degrade to a miss — a
// cache miss is always a safe "no data" state for the UI.
func (c *Store) Get(key string, dst any) bool {
	c.mu.RLock()
	raw, ok := c.mirror[key]
	c.mu.RUnlock()

	if !ok {
		stored, found, err := c.store.Get(key)
		if err != nil {
			c.logger.Printf("WARNING: cache read failed for %s: %v", key, err)
			return false
		}
		if !found {
			return false
		}
		raw = stored

		c.mu.Lock()
		c.mirror[key] = raw
		c.mu.Unlock()
	}

	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		c.logger.Printf("WARNING: corrupt cache entry %s: %v", key, err)
		return false
	}
	return true
}

// Set stores value at key, write-through to durable storage.
func (c *Store) Set(key string, value any) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache entry %s: %w", key, err)
	}

	c.mu.Lock()
	c.mirror[key] = string(data)
	c.mu.Unlock()

	if err := c.store.Set(key, string(data)); err != nil {
		// The mirror still serves this session; durability catches up on
		// the next successful write.
		c.logger.Printf("WARNING: cache write failed for %s: %v", key, err)
	}
	return nil
}

// Delete removes a single cache entry.
func (c *Store) Delete(key string) {
	c.mu.Lock()
	delete(c.mirror, key)
	c.mu.Unlock()

	if err := c.store.Delete(key); err != nil {
		c.logger.Printf("WARNING: cache delete failed for %s: %v", key, err)
	}
}

// Clear removes every cache entry.
func (c *Store) Clear() {
	c.mu.Lock()
	c.mirror = make(map[string]string)
	c.mu.Unlock()

	if _, err := c.store.DeletePrefix(keyPrefix); err != nil {
		c.logger.Printf("WARNING: cache clear failed: %v", err)
	}
}

// ClearOwner removes every cache entry belonging to ownerID. Called on
// sign-out so another user's data doesn't linger on the device.
func (c *Store) ClearOwner(ownerID string) int {
	c.mu.Lock()
	for key := range c.mirror {
		if ownerMatches(key, ownerID) {
			delete(c.mirror, key)
		}
	}
	c.mu.Unlock()

	keys, err := c.store.Keys(keyPrefix)
	if err != nil {
		c.logger.Printf("WARNING: cache key listing failed: %v", err)
		return 0
	}

	removed := 0
	for _, key := range keys {
		if !ownerMatches(key, ownerID) {
			continue
		}
		if err := c.store.Delete(key); err != nil {
			c.logger.Printf("WARNING: cache delete failed for %s: %v", key, err)
			continue
		}
		removed++
	}

	c.logger.Printf("Cleared %d cache entries for owner %s", removed, ownerID)
	return removed
}

// Keys lists all cache keys in durable storage. Debug/inspection surface.
func (c *Store) Keys() ([]string, error) {
	return c.store.Keys(keyPrefix)
}

// ownerMatches reports whether a cache key belongs to the given owner.
// Keys have the shape cache:<domain>:<owner>[:<sub>].
func ownerMatches(key, ownerID string) bool {
	parts := strings.SplitN(strings.TrimPrefix(key, keyPrefix), ":", 3)
	return len(parts) >= 2 && parts[1] == ownerID
}
