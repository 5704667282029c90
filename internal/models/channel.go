package models

import "time"

// Tier is a subscriber's subscription level.
type Tier string

const (
	TierFree   Tier = "FREE"
	TierPaid   Tier = "PAID"
	TierYearly Tier = "YEARLY"
)

// Known reports whether t is one of the defined tiers. Unknown tiers are
// treated fail-safe (maximal delay) by the admission controller.
func (t Tier) Known() bool {
	switch t {
	case TierFree, TierPaid, TierYearly:
		return true
	}
	return false
}

// CanManualMonitor reports whether subscribers of this tier may register
// their own product monitors.
func (t Tier) CanManualMonitor() bool {
	return t == TierPaid || t == TierYearly
}

// CanPrioritizedOrdering reports whether deal listings are priority-ordered
// for this tier.
func (t Tier) CanPrioritizedOrdering() bool {
	return t == TierYearly
}

// ChannelClass groups output channels by delivery mechanism. The affiliate
// class is the primary monetized surface and is never delayed for any tier.
type ChannelClass string

const (
	ClassAffiliate ChannelClass = "affiliate"
	ClassCommunity ChannelClass = "community"
	ClassEmail     ChannelClass = "email"
	ClassFeed      ChannelClass = "feed"
)

// ChannelStatus is the router's view of a channel at a point in time.
type ChannelStatus string

const (
	StatusAvailable         ChannelStatus = "AVAILABLE"
	StatusCooldown          ChannelStatus = "COOLDOWN"
	StatusDailyLimitReached ChannelStatus = "DAILY_LIMIT_REACHED"
	StatusDisabled          ChannelStatus = "DISABLED"
)

// ChannelTarget is the static definition of an output channel.
type ChannelTarget struct {
	ID                  string
	Class               ChannelClass
	Audience            Tier
	EligibleCategories  map[string]bool
	CooldownPeriod      time.Duration
	DailyQuota          int
	MonetizationAllowed bool
	Disabled            bool
	DisableReason       string
	TitleTemplates      []string
	WebhookURL          string
}

// Eligible reports whether the channel accepts deals of the given category.
func (c ChannelTarget) Eligible(category string) bool {
	return c.EligibleCategories[category]
}

// ChannelState is the persisted, mutable side of a channel. It is mutated
// only by the router inside a confirmed-dispatch commit (single writer).
type ChannelState struct {
	ChannelID          string    `json:"channelId"`
	LastDispatchAt     time.Time `json:"lastDispatchAt"`
	DispatchCountToday int       `json:"dispatchCountToday"`
	DailyResetAt       time.Time `json:"dailyResetAt"`
}

// DistributionRecord is the durable fact of a confirmed dispatch. Records
// are retained for the dedup window and then pruned.
type DistributionRecord struct {
	DealKey      string    `json:"dealKey"`
	ChannelID    string    `json:"channelId"`
	DispatchedAt time.Time `json:"dispatchedAt"`
}
