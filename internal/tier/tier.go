// Package tier maps subscription tiers to admission delays. All functions
// are pure; callers inject the clock.
package tier

import (
	"time"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

// DefaultFreeDelay is the FREE-tier wait for non-affiliate channel classes.
const DefaultFreeDelay = 10 * time.Minute

// Controller computes tier-dependent visibility delays.
type Controller struct {
	freeDelay time.Duration
}

func NewController(freeDelay time.Duration) *Controller {
	if freeDelay <= 0 {
		freeDelay = DefaultFreeDelay
	}
	return &Controller{freeDelay: freeDelay}
}

// Delay returns how long a deal is withheld from the given tier on the given
// channel class. FREE subscribers see the primary monetized (affiliate)
// class immediately and everything else after the configured delay; paid
// tiers wait nowhere. An unknown tier or class falls back to the maximal
// known delay rather than instant visibility.
func (c *Controller) Delay(t models.Tier, class models.ChannelClass) time.Duration {
	if !t.Known() || !knownClass(class) {
		return c.freeDelay
	}
	switch t {
	case models.TierPaid, models.TierYearly:
		return 0
	case models.TierFree:
		if class == models.ClassAffiliate {
			return 0
		}
		return c.freeDelay
	}
	return c.freeDelay
}

// VisibleAt returns the instant the deal becomes visible to the tier on the
// channel class.
func (c *Controller) VisibleAt(deal models.DealEvent, t models.Tier, class models.ChannelClass) time.Time {
	return deal.DetectedAt.Add(c.Delay(t, class))
}

// IsVisible reports whether the deal is visible at now.
func (c *Controller) IsVisible(deal models.DealEvent, t models.Tier, class models.ChannelClass, now time.Time) bool {
	return !now.Before(c.VisibleAt(deal, t, class))
}

func knownClass(class models.ChannelClass) bool {
	switch class {
	case models.ClassAffiliate, models.ClassCommunity, models.ClassEmail, models.ClassFeed:
		return true
	}
	return false
}
