// Package processor runs the deal pipeline: collect, normalize, classify,
// deduplicate, monetize, dispatch. One RunCycle handles one polling batch.
package processor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/classify"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/feed"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/normalize"
)

// Processor wires the pipeline stages together.
type Processor struct {
	sources    []feed.Source
	dedup      Deduper
	converter  LinkConverter
	dispatcher Dispatcher
	pruner     RecordPruner
	recorder   Recorder
	clock      func() time.Time
}

func New(
	sources []feed.Source,
	dedup Deduper,
	converter LinkConverter,
	dispatcher Dispatcher,
	pruner RecordPruner,
	recorder Recorder,
) *Processor {
	if recorder == nil {
		recorder = NopRecorder{}
	}
	return &Processor{
		sources:    sources,
		dedup:      dedup,
		converter:  converter,
		dispatcher: dispatcher,
		pruner:     pruner,
		recorder:   recorder,
		clock:      time.Now,
	}
}

// SetClock overrides the time source. Tests only.
func (p *Processor) SetClock(clock func() time.Time) {
	p.clock = clock
}

// RunCycle processes one polling batch end to end. Malformed records and
// per-deal transport failures are logged and aggregated; a state-store
// failure aborts the cycle immediately because it means a confirmed send
// may not have been recorded.
func (p *Processor) RunCycle(ctx context.Context) error {
	start := p.clock()
	defer func() {
		p.recorder.ObserveCycle(p.clock().Sub(start))
	}()

	records := feed.Collect(ctx, p.sources)
	p.recorder.RecordIngested(len(records))

	deals := make([]models.ClassifiedDeal, 0, len(records))
	for _, raw := range records {
		event, err := normalize.Normalize(raw, p.clock())
		if err != nil {
			p.recorder.RecordMalformed()
			slog.Warn("Dropping malformed record", "error", err)
			continue
		}
		deals = append(deals, classify.Score(event))
	}
	classify.SortByPriority(deals)

	var errs []error
	dispatched, suppressed := 0, 0
	for _, deal := range deals {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("cycle aborted: %w", err)
		}

		now := p.clock()
		key := deal.DedupKey()
		if p.dedup.ShouldSuppress(key, now) {
			p.recorder.RecordSuppressed()
			suppressed++
			continue
		}

		monetized := p.converter.Convert(deal)
		if monetized.MonetizationEligible {
			p.recorder.RecordMonetized()
		}

		outcome, err := p.dispatcher.Dispatch(ctx, monetized, now)
		if outcome.Dispatched {
			// The sink confirmed this send, so it suppresses duplicates
			// even when the commit below it failed.
			p.recorder.RecordDispatch(outcome.ChannelID)
			p.dedup.MarkDispatched(key, now)
			dispatched++
			slog.Info("Dispatched deal",
				"key", key,
				"channel", outcome.ChannelID,
				"priority", deal.PriorityScore)
		}
		if err != nil {
			if errors.Is(err, models.ErrStateStore) {
				// A send may have gone out unrecorded; stop before causing
				// more divergence between reality and state.
				return fmt.Errorf("dispatch of %q: %w", key, err)
			}
			errs = append(errs, fmt.Errorf("dispatch of %q: %w", key, err))
			continue
		}
		if !outcome.Dispatched {
			p.recorder.RecordSkip(string(outcome.Reason))
			slog.Debug("Deal skipped", "key", key, "reason", outcome.Reason)
		}
	}

	p.sweep(ctx)

	slog.Info("Cycle complete",
		"ingested", len(records),
		"dispatched", dispatched,
		"suppressed", suppressed,
		"errors", len(errs),
		"elapsed", p.clock().Sub(start))
	return errors.Join(errs...)
}

// sweep drops expired dedup entries and persistent records. Failures here
// are logged, not fatal; the next cycle retries.
func (p *Processor) sweep(ctx context.Context) {
	now := p.clock()
	p.dedup.Sweep(now)
	if p.pruner == nil {
		return
	}
	pruned, err := p.pruner.PruneRecords(ctx, now.Add(-p.dedup.Window()))
	if err != nil {
		slog.Warn("Record prune failed", "error", err)
		return
	}
	if pruned > 0 {
		p.recorder.RecordPruned(pruned)
		slog.Debug("Pruned expired records", "count", pruned)
	}
}
