package storage

import (
	"context"
	"sync"
	"time"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

// Memory is an in-process Store. State survives for the lifetime of the
// process only; it backs tests and local development.
type Memory struct {
	mu       sync.Mutex
	channels map[string]models.ChannelState
	disabled map[string]DisableFlag
	records  []models.DistributionRecord
}

func NewMemory() *Memory {
	return &Memory{
		channels: make(map[string]models.ChannelState),
		disabled: make(map[string]DisableFlag),
	}
}

func (m *Memory) Load(_ context.Context) (*State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	state := NewState()
	for id, cs := range m.channels {
		state.Channels[id] = cs
	}
	for id, flag := range m.disabled {
		state.Disabled[id] = flag
	}
	state.Records = append(state.Records, m.records...)
	return state, nil
}

func (m *Memory) CommitDispatch(_ context.Context, state models.ChannelState, record models.DistributionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channels[state.ChannelID] = state
	m.records = append(m.records, record)
	return nil
}

func (m *Memory) SetChannelDisabled(_ context.Context, channelID string, disabled bool, reason string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disabled[channelID] = DisableFlag{Disabled: disabled, Reason: reason}
	return nil
}

func (m *Memory) PruneRecords(_ context.Context, before time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	kept := m.records[:0]
	removed := 0
	for _, rec := range m.records {
		if rec.DispatchedAt.Before(before) {
			removed++
			continue
		}
		kept = append(kept, rec)
	}
	m.records = kept
	return removed, nil
}

func (m *Memory) Close() error { return nil }
