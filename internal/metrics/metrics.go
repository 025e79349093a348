package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"perf-anomaly-alerts/internal/anomaly"
	"perf-anomaly-alerts/internal/detector"
)

var (
	samplesIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "perfwatcher",
			Name:      "samples_ingested_total",
			Help:      "Total number of metric samples ingested.",
		},
	)

	evaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perfwatcher",
			Name:      "evaluations_total",
			Help:      "Total evaluations, partitioned by outcome (candidate or no-signal reason).",
		},
		[]string{"outcome"},
	)

	alertsRaisedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "perfwatcher",
			Name:      "alerts_raised_total",
			Help:      "Total new alerts raised, partitioned by severity.",
		},
		[]string{"severity"},
	)

	alertsResolvedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "perfwatcher",
			Name:      "alerts_resolved_total",
			Help:      "Total alerts moved to their terminal resolved state.",
		},
	)
)

// Register attaches perfwatcher collectors to the supplied registerer.
func Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		samplesIngestedTotal,
		evaluationsTotal,
		alertsRaisedTotal,
		alertsResolvedTotal,
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

// ObserveSample counts one ingested sample.
func ObserveSample() {
	samplesIngestedTotal.Inc()
}

// ObserveEvaluation labels an evaluation with its outcome.
func ObserveEvaluation(outcome detector.Outcome) {
	label := "candidate"
	if !outcome.Signal {
		label = string(outcome.Reason)
	}
	evaluationsTotal.WithLabelValues(label).Inc()
}

// ObserveAlertRaised counts a newly created alert by severity.
func ObserveAlertRaised(severity anomaly.Severity) {
	alertsRaisedTotal.WithLabelValues(severity.String()).Inc()
}

// ObserveAlertResolved counts a terminal resolution.
func ObserveAlertResolved(count int) {
	if count <= 0 {
		return
	}
	alertsResolvedTotal.Add(float64(count))
}
