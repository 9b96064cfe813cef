package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	correlationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_correlate",
			Name:      "correlations_total",
			Help:      "Total investigations processed, partitioned by correlation outcome.",
		},
		[]string{"outcome"},
	)

	correlationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mirador_correlate",
			Name:      "correlation_seconds",
			Help:      "Correlation decision latency in seconds.",
			Buckets:   []float64{0.00005, 0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.05},
		},
	)

	mergesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_correlate",
			Name:      "merges_total",
			Help:      "Merge requests, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	statusUpdatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mirador_correlate",
			Name:      "status_updates_total",
			Help:      "Status update requests, partitioned by outcome.",
		},
		[]string{"outcome"},
	)

	activeIncidents = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mirador_correlate",
			Name:      "active_incidents",
			Help:      "Number of incidents not yet merged away.",
		},
	)
)

const (
	// OutcomeAccepted labels merges and status updates that mutated state.
	OutcomeAccepted = "accepted"
	// OutcomeRejected labels requests refused with the not-found sentinel.
	OutcomeRejected = "rejected"
)

// Register attaches the correlation collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		correlationsTotal,
		correlationSeconds,
		mergesTotal,
		statusUpdatesTotal,
		activeIncidents,
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

// ObserveCorrelation records one correlation decision.
func ObserveCorrelation(duration time.Duration, outcome string) {
	correlationsTotal.WithLabelValues(outcome).Inc()
	if duration < 0 {
		duration = 0
	}
	correlationSeconds.Observe(duration.Seconds())
}

// ObserveMerge records a merge request outcome.
func ObserveMerge(accepted bool) {
	mergesTotal.WithLabelValues(outcomeLabel(accepted)).Inc()
}

// ObserveStatusUpdate records a status update outcome.
func ObserveStatusUpdate(accepted bool) {
	statusUpdatesTotal.WithLabelValues(outcomeLabel(accepted)).Inc()
}

// SetActiveIncidents updates the active incident gauge.
func SetActiveIncidents(n int) {
	activeIncidents.Set(float64(n))
}

func outcomeLabel(accepted bool) string {
	if accepted {
		return OutcomeAccepted
	}
	return OutcomeRejected
}
