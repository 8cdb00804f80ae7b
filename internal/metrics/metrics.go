// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values for event sources and load outcomes.
const (
	SourceLive    = "live"
	SourceHistory = "history"

	LoadOK      = "ok"
	LoadError   = "error"
	LoadStale   = "stale"
	LoadAborted = "aborted"

	IntakeOK        = "ok"
	IntakeMalformed = "malformed"
	IntakeError     = "error"
)

var (
	initOnce sync.Once

	timelineEventsCounter     *prometheus.CounterVec
	timelineDuplicatesCounter *prometheus.CounterVec
	historyLoadsCounter       *prometheus.CounterVec
	historyLoadDurationMetric prometheus.Histogram
	intakeEventsCounter       *prometheus.CounterVec
)

// Init registers metrics on the default Prometheus registry exactly once.
func Init() {
	initOnce.Do(func() {
		timelineEventsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeline_events_total",
				Help: "Total number of events admitted to a timeline by source.",
			},
			[]string{"source"},
		)

		timelineDuplicatesCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timeline_duplicate_events_total",
				Help: "Total number of events rejected as duplicates by source.",
			},
			[]string{"source"},
		)

		historyLoadsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "history_loads_total",
				Help: "Total number of historical load resolutions by outcome.",
			},
			[]string{"status"},
		)

		historyLoadDurationMetric = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "history_load_duration_seconds",
				Help:    "Duration of historical event loads in seconds.",
				Buckets: prometheus.DefBuckets,
			},
		)

		intakeEventsCounter = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "intake_events_total",
				Help: "Total number of runtime events consumed from intake by outcome.",
			},
			[]string{"status"},
		)

		prometheus.MustRegister(
			timelineEventsCounter,
			timelineDuplicatesCounter,
			historyLoadsCounter,
			historyLoadDurationMetric,
			intakeEventsCounter,
		)

		// Ensure counter vectors are visible at /metrics before first increment.
		for _, source := range []string{SourceLive, SourceHistory} {
			timelineEventsCounter.WithLabelValues(source)
			timelineDuplicatesCounter.WithLabelValues(source)
		}
		for _, status := range []string{LoadOK, LoadError, LoadStale, LoadAborted} {
			historyLoadsCounter.WithLabelValues(status)
		}
		for _, status := range []string{IntakeOK, IntakeMalformed, IntakeError} {
			intakeEventsCounter.WithLabelValues(status)
		}
	})
}

func IncTimelineEvent(source string) {
	Init()
	timelineEventsCounter.WithLabelValues(source).Inc()
}

func IncTimelineDuplicate(source string) {
	Init()
	timelineDuplicatesCounter.WithLabelValues(source).Inc()
}

func IncHistoryLoad(status string) {
	Init()
	historyLoadsCounter.WithLabelValues(status).Inc()
}

func ObserveHistoryLoadDuration(d time.Duration) {
	Init()
	historyLoadDurationMetric.Observe(d.Seconds())
}

func IncIntakeEvent(status string) {
	Init()
	intakeEventsCounter.WithLabelValues(status).Inc()
}
