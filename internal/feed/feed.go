// Package feed defines the retailer feed source contract and the built-in
// sources. Sources deliver loosely-typed raw records; normalization happens
// downstream. An empty result is a normal outcome, never an error.
package feed

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
)

// Source is a single retailer feed. Fetch may block on I/O and must honor
// ctx cancellation.
type Source interface {
	Retailer() string
	Fetch(ctx context.Context) ([]models.RawRecord, error)
}

// Collect polls all sources concurrently and merges their records. A failing
// source is logged and contributes nothing; one broken retailer never aborts
// the cycle.
func Collect(ctx context.Context, sources []Source) []models.RawRecord {
	var mu sync.Mutex
	var records []models.RawRecord

	g, gctx := errgroup.WithContext(ctx)
	for _, src := range sources {
		g.Go(func() error {
			recs, err := src.Fetch(gctx)
			if err != nil {
				slog.Warn("Feed source failed, skipping", "retailer", src.Retailer(), "error", err)
				return nil
			}
			mu.Lock()
			records = append(records, recs...)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()
	return records
}

// StaticSource returns a fixed batch of records on every fetch. Used in
// tests and local development.
type StaticSource struct {
	Name    string
	Records []models.RawRecord
}

func (s *StaticSource) Retailer() string { return s.Name }

func (s *StaticSource) Fetch(_ context.Context) ([]models.RawRecord, error) {
	out := make([]models.RawRecord, len(s.Records))
	copy(out, s.Records)
	return out, nil
}

// HTTPBuffer accumulates records pushed over HTTP and hands them to the next
// poll cycle. Draining empties the buffer.
type HTTPBuffer struct {
	mu      sync.Mutex
	pending []models.RawRecord
}

func NewHTTPBuffer() *HTTPBuffer {
	return &HTTPBuffer{}
}

func (b *HTTPBuffer) Retailer() string { return "http-ingest" }

// Add appends records from an ingest request.
func (b *HTTPBuffer) Add(records []models.RawRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.pending = append(b.pending, records...)
}

// Fetch drains the buffer.
func (b *HTTPBuffer) Fetch(_ context.Context) ([]models.RawRecord, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.pending
	b.pending = nil
	return out, nil
}

// Pending reports the number of buffered records.
func (b *HTTPBuffer) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.pending)
}
