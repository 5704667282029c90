// Package storage persists distribution state: channel cooldown/quota
// counters, disable flags, and dispatch records. The contract is small so
// the engine stays agnostic of the persistence technology.
package storage

import (
	"context"
	"time"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

// DisableFlag is a channel's admin-controlled disable marker.
type DisableFlag struct {
	Disabled bool   `json:"disabled"`
	Reason   string `json:"reason,omitempty"`
}

// State is everything the engine persists across cycles.
type State struct {
	Channels map[string]models.ChannelState
	Disabled map[string]DisableFlag
	Records  []models.DistributionRecord
}

func NewState() *State {
	return &State{
		Channels: make(map[string]models.ChannelState),
		Disabled: make(map[string]DisableFlag),
	}
}

// Store is the distribution state store contract.
//
// CommitDispatch must be atomic: the channel state update and the
// distribution record land together or not at all, and a concurrent Load
// never observes half of a commit. A Load failure at cold start is handled
// fail-open by the caller (empty state plus a warning); a CommitDispatch
// failure at runtime is fatal for the cycle and must be surfaced.
type Store interface {
	Load(ctx context.Context) (*State, error)
	CommitDispatch(ctx context.Context, state models.ChannelState, record models.DistributionRecord) error
	SetChannelDisabled(ctx context.Context, channelID string, disabled bool, reason string) error
	PruneRecords(ctx context.Context, before time.Time) (int, error)
	Close() error
}
