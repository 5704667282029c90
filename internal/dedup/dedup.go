// Package dedup suppresses repeat dispatch of a deal identity within a
// rolling window. The index is global: suppression applies across all
// channels, not per channel.
package dedup

import (
	"sync"
	"time"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

// DefaultWindow is the retention span when none is configured.
const DefaultWindow = 24 * time.Hour

// Index is the rolling suppression index. Reads are concurrent, writes
// serialized. Expired entries are dropped lazily on lookup and in bulk by
// Sweep, so the index stays bounded by the window.
type Index struct {
	mu      sync.RWMutex
	window  time.Duration
	expires map[string]time.Time
}

func NewIndex(window time.Duration) *Index {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Index{
		window:  window,
		expires: make(map[string]time.Time),
	}
}

// Window returns the configured retention span.
func (i *Index) Window() time.Duration {
	return i.window
}

// Seed rebuilds the index from persisted distribution records at startup.
// Records already outside the window are ignored.
func (i *Index) Seed(records []models.DistributionRecord, now time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()
	for _, rec := range records {
		expiry := rec.DispatchedAt.Add(i.window)
		if !expiry.After(now) {
			continue
		}
		if existing, ok := i.expires[rec.DealKey]; !ok || expiry.After(existing) {
			i.expires[rec.DealKey] = expiry
		}
	}
}

// ShouldSuppress reports whether key was dispatched within the window. An
// expired entry found during lookup is removed on the spot.
func (i *Index) ShouldSuppress(key string, now time.Time) bool {
	i.mu.RLock()
	expiry, ok := i.expires[key]
	i.mu.RUnlock()
	if !ok {
		return false
	}
	if expiry.After(now) {
		return true
	}

	i.mu.Lock()
	// Re-check under the write lock; a concurrent confirmed dispatch may
	// have refreshed the entry.
	if expiry, ok := i.expires[key]; ok && !expiry.After(now) {
		delete(i.expires, key)
	}
	suppressed := false
	if expiry, ok := i.expires[key]; ok && expiry.After(now) {
		suppressed = true
	}
	i.mu.Unlock()
	return suppressed
}

// MarkDispatched records a confirmed dispatch. Callers must only invoke this
// after the publish sink confirmed delivery; a failed dispatch must never
// suppress the deal.
func (i *Index) MarkDispatched(key string, now time.Time) {
	if key == "" {
		return
	}
	i.mu.Lock()
	i.expires[key] = now.Add(i.window)
	i.mu.Unlock()
}

// Sweep removes all expired entries and returns how many were dropped.
func (i *Index) Sweep(now time.Time) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	removed := 0
	for key, expiry := range i.expires {
		if !expiry.After(now) {
			delete(i.expires, key)
			removed++
		}
	}
	return removed
}

// Len reports the number of live entries.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.expires)
}
