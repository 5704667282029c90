// Package metrics exposes Prometheus instrumentation for the distribution
// pipeline. Metrics register against an injected registerer so tests can
// use isolated registries.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds every collector the engine reports.
type Metrics struct {
	DealsIngested    prometheus.Counter
	DealsMalformed   prometheus.Counter
	DealsSuppressed  prometheus.Counter
	DealsMonetized   prometheus.Counter
	DispatchTotal    *prometheus.CounterVec
	SkippedTotal     *prometheus.CounterVec
	RecordsPruned    prometheus.Counter
	CycleDuration    prometheus.Histogram
	ChannelsDisabled prometheus.Gauge
}

// New registers all collectors with the given registerer. Pass
// prometheus.DefaultRegisterer in production.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		DealsIngested: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_deals_ingested_total",
			Help: "Raw deal records accepted for normalization.",
		}),
		DealsMalformed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_deals_malformed_total",
			Help: "Raw records rejected during normalization.",
		}),
		DealsSuppressed: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_deals_suppressed_total",
			Help: "Deals dropped as duplicates inside the dedup window.",
		}),
		DealsMonetized: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_deals_monetized_total",
			Help: "Deals whose link was rewritten with the associate tag.",
		}),
		DispatchTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_sends_total",
			Help: "Confirmed dispatches by channel.",
		}, []string{"channel"}),
		SkippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "dispatch_skipped_total",
			Help: "Deals not dispatched, by reason.",
		}, []string{"reason"}),
		RecordsPruned: factory.NewCounter(prometheus.CounterOpts{
			Name: "dispatch_records_pruned_total",
			Help: "Expired distribution records removed from the store.",
		}),
		CycleDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "dispatch_cycle_duration_seconds",
			Help:    "Wall time of one full processing cycle.",
			Buckets: prometheus.DefBuckets,
		}),
		ChannelsDisabled: factory.NewGauge(prometheus.GaugeOpts{
			Name: "dispatch_channels_disabled",
			Help: "Channels currently removed from rotation by an admin.",
		}),
	}
}

func (m *Metrics) RecordIngested(n int) { m.DealsIngested.Add(float64(n)) }
func (m *Metrics) RecordMalformed()     { m.DealsMalformed.Inc() }
func (m *Metrics) RecordSuppressed()    { m.DealsSuppressed.Inc() }
func (m *Metrics) RecordMonetized()     { m.DealsMonetized.Inc() }
func (m *Metrics) RecordPruned(n int)   { m.RecordsPruned.Add(float64(n)) }

func (m *Metrics) RecordDispatch(channel string) {
	m.DispatchTotal.WithLabelValues(channel).Inc()
}

func (m *Metrics) RecordSkip(reason string) {
	m.SkippedTotal.WithLabelValues(reason).Inc()
}

func (m *Metrics) ObserveCycle(d time.Duration) {
	m.CycleDuration.Observe(d.Seconds())
}

func (m *Metrics) SetDisabledChannels(n int) {
	m.ChannelsDisabled.Set(float64(n))
}
