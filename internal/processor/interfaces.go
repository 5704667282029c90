package processor

import (
	"context"
	"time"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/router"
)

// Dispatcher routes one deal to at most one channel.
type Dispatcher interface {
	Dispatch(ctx context.Context, deal models.MonetizedDeal, now time.Time) (router.Outcome, error)
}

// Deduper tracks which deal keys were recently dispatched.
type Deduper interface {
	ShouldSuppress(key string, now time.Time) bool
	MarkDispatched(key string, now time.Time)
	Sweep(now time.Time) int
	Window() time.Duration
}

// LinkConverter rewrites eligible deal links with the associate tag.
type LinkConverter interface {
	Convert(deal models.ClassifiedDeal) models.MonetizedDeal
}

// RecordPruner removes expired distribution records from persistent state.
type RecordPruner interface {
	PruneRecords(ctx context.Context, before time.Time) (int, error)
}

// Recorder receives pipeline counters. Satisfied by metrics.Metrics; a nop
// implementation backs tests.
type Recorder interface {
	RecordIngested(n int)
	RecordMalformed()
	RecordSuppressed()
	RecordMonetized()
	RecordDispatch(channel string)
	RecordSkip(reason string)
	RecordPruned(n int)
	ObserveCycle(d time.Duration)
}

// NopRecorder discards all counters.
type NopRecorder struct{}

func (NopRecorder) RecordIngested(int)         {}
func (NopRecorder) RecordMalformed()           {}
func (NopRecorder) RecordSuppressed()          {}
func (NopRecorder) RecordMonetized()           {}
func (NopRecorder) RecordDispatch(string)      {}
func (NopRecorder) RecordSkip(string)          {}
func (NopRecorder) RecordPruned(int)           {}
func (NopRecorder) ObserveCycle(time.Duration) {}
