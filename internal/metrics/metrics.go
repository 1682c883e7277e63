package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	// OutcomeFinished labels experiments that ran to completion.
	OutcomeFinished = "finished"
	// OutcomeFailed labels experiments that terminated with an error.
	OutcomeFailed = "failed"
)

var (
	experimentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "driftmon",
			Name:      "experiments_total",
			Help:      "Total number of experiments executed, partitioned by terminal outcome.",
		},
		[]string{"outcome"},
	)

	runDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "driftmon",
			Name:      "run_seconds",
			Help:      "Experiment execution latency in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
	)

	snapshotsPublishedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "driftmon",
			Name:      "snapshots_published_total",
			Help:      "Total number of status snapshots emitted to subscribers.",
		},
	)

	driftsConfirmedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "driftmon",
			Name:      "drifts_confirmed_total",
			Help:      "Total number of confirmed drifts across all experiments.",
		},
	)

	publishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "driftmon",
			Name:      "publish_errors_total",
			Help:      "Total number of broker publish failures (emission continues).",
		},
	)

	persistErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "driftmon",
			Name:      "persist_errors_total",
			Help:      "Total number of result persistence failures (emission continues).",
		},
	)
)

// Register attaches drift-monitor collectors to the supplied Prometheus registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		experimentsTotal,
		runDurationSeconds,
		snapshotsPublishedTotal,
		driftsConfirmedTotal,
		publishErrorsTotal,
		persistErrorsTotal,
	}

	for _, collector := range collectors {
		if err := reg.Register(collector); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
				continue
			}
			return err
		}
	}
	return nil
}

// ObserveRun records an experiment duration and terminal outcome label.
func ObserveRun(duration time.Duration, outcome string) {
	label := outcome
	if label != OutcomeFailed {
		label = OutcomeFinished
	}
	experimentsTotal.WithLabelValues(label).Inc()
	if duration < 0 {
		duration = 0
	}
	runDurationSeconds.Observe(duration.Seconds())
}

// SnapshotEmitted counts one published status snapshot.
func SnapshotEmitted() {
	snapshotsPublishedTotal.Inc()
}

// DriftConfirmed counts one confirmed drift.
func DriftConfirmed() {
	driftsConfirmedTotal.Inc()
}

// PublishError counts one broker publish failure.
func PublishError() {
	publishErrorsTotal.Inc()
}

// PersistError counts one persistence failure.
func PersistError() {
	persistErrorsTotal.Inc()
}
