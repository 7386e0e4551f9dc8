// Package cache is the short-lived read cache in front of the document
// store, keyed by job id.
package cache

import (
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
)

// keyPrefix versions the key space so stale entries from older layouts
// never deserialize into current shapes.
const keyPrefix = "sheetwise:v1:doc:"

// Results is the in-memory result cache. Written once after a successful
// Completed transition, invalidated only by explicit reprocessing.
type Results struct {
	cache *gocache.Cache
	ttl   time.Duration
}

// NewResults creates a result cache with the given TTL.
func NewResults(ttl, cleanupInterval time.Duration) *Results {
	return &Results{
		cache: gocache.New(ttl, cleanupInterval),
		ttl:   ttl,
	}
}

// Get retrieves the serialized document for a job id.
func (r *Results) Get(jobID uuid.UUID) ([]byte, bool) {
	if val, found := r.cache.Get(key(jobID)); found {
		return val.([]byte), true
	}
	return nil, false
}

// Set stores the serialized document for a job id.
func (r *Results) Set(jobID uuid.UUID, payload []byte) {
	r.cache.Set(key(jobID), payload, r.ttl)
}

// Invalidate removes a job's entry; called on explicit reprocessing.
func (r *Results) Invalidate(jobID uuid.UUID) {
	r.cache.Delete(key(jobID))
}

func key(jobID uuid.UUID) string {
	return keyPrefix + jobID.String()
}
