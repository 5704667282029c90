// Package registry resolves subscribers to their subscription tier. The
// billing system owns tier assignment; this is a read-only lookup.
package registry

import (
	"sync"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

// TierRegistry looks up a subscriber's tier. The boolean reports whether the
// subscriber is known; callers treat unknown subscribers as FREE.
type TierRegistry interface {
	TierOf(subscriberID string) (models.Tier, bool)
}

// Static is a TierRegistry backed by a fixed map, loaded from the channels
// config file.
type Static struct {
	mu    sync.RWMutex
	tiers map[string]models.Tier
}

func NewStatic(tiers map[string]models.Tier) *Static {
	if tiers == nil {
		tiers = make(map[string]models.Tier)
	}
	return &Static{tiers: tiers}
}

// TierOf returns the subscriber's tier, defaulting to FREE for unknown ids.
func (s *Static) TierOf(subscriberID string) (models.Tier, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tiers[subscriberID]
	if !ok {
		return models.TierFree, false
	}
	return t, true
}

// Set updates a subscriber's tier. Used when the config file is reloaded.
func (s *Static) Set(subscriberID string, t models.Tier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tiers[subscriberID] = t
}
