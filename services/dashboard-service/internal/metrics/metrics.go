// Package metrics exposes Prometheus counters for the feed pipeline.
package metrics

import "github.com/prometheus/client_golang/prometheus"

type FeedMetrics struct {
	feedUpdatesTotal     *prometheus.CounterVec
	feedErrorsTotal      *prometheus.CounterVec
	snapshotsTotal       prometheus.Counter
	duplicateEventsTotal *prometheus.CounterVec
}

func NewFeedMetrics(reg prometheus.Registerer) *FeedMetrics {
	m := &FeedMetrics{
		feedUpdatesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "dashboard",
			Name:      "feed_updates_total",
			Help:      "Feed records folded into the aggregator, by feed",
		}, []string{"feed"}),
		feedErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "dashboard",
			Name:      "feed_errors_total",
			Help:      "Feed read failures, by feed",
		}, []string{"feed"}),
		snapshotsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "dashboard",
			Name:      "snapshot_publications_total",
			Help:      "Snapshot change notifications published",
		}),
		duplicateEventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "carebook",
			Subsystem: "dashboard",
			Name:      "duplicate_events_total",
			Help:      "Feed events skipped by inbox dedup, by feed",
		}, []string{"feed"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.feedUpdatesTotal, m.feedErrorsTotal, m.snapshotsTotal, m.duplicateEventsTotal)
	return m
}

func (m *FeedMetrics) ObserveFeedUpdate(feed string) {
	if m == nil {
		return
	}
	m.feedUpdatesTotal.WithLabelValues(feed).Inc()
}

func (m *FeedMetrics) ObserveFeedError(feed string) {
	if m == nil {
		return
	}
	m.feedErrorsTotal.WithLabelValues(feed).Inc()
}

func (m *FeedMetrics) ObserveSnapshot() {
	if m == nil {
		return
	}
	m.snapshotsTotal.Inc()
}

func (m *FeedMetrics) ObserveDuplicate(feed string) {
	if m == nil {
		return
	}
	m.duplicateEventsTotal.WithLabelValues(feed).Inc()
}
