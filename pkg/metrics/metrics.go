package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const subsystem = "dubbing_pipeline"

var (
	stageTransitionsTotal *prometheus.CounterVec
	adapterCallsTotal     *prometheus.CounterVec
	adapterCallLatency    *prometheus.HistogramVec
	jobOutcomesTotal      *prometheus.CounterVec
	notificationsTotal    *prometheus.CounterVec
)

func init() {
	stageTransitionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "stage_transitions_total",
		Help:      "Committed stage status transitions",
		Subsystem: subsystem,
	},
		[]string{"kind", "to"},
	)
	adapterCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "adapter_calls_total",
		Help:      "Calls made to external service adapters",
		Subsystem: subsystem,
	},
		[]string{"kind", "op", "outcome"},
	)
	adapterCallLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:      "adapter_call_duration_milliseconds",
		Help:      "Time spent in an adapter submit or poll",
		Subsystem: subsystem,
		Buckets:   []float64{10, 50, 100, 500, 1000, 5000, 30000},
	},
		[]string{"kind", "op"},
	)
	jobOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "job_outcomes_total",
		Help:      "Job status observed at the end of an invocation",
		Subsystem: subsystem,
	},
		[]string{"environment", "status"},
	)
	notificationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:      "notifications_total",
		Help:      "Inbound artifact notifications by disposition",
		Subsystem: subsystem,
	},
		[]string{"disposition"},
	)

	prometheus.MustRegister(stageTransitionsTotal)
	prometheus.MustRegister(adapterCallsTotal)
	prometheus.MustRegister(adapterCallLatency)
	prometheus.MustRegister(jobOutcomesTotal)
	prometheus.MustRegister(notificationsTotal)
}

func IncreaseStageTransition(kind, to string) {
	stageTransitionsTotal.WithLabelValues(kind, to).Inc()
}

func ObserveAdapterCall(kind, op, outcome string, start time.Time) {
	adapterCallsTotal.WithLabelValues(kind, op, outcome).Inc()
	adapterCallLatency.WithLabelValues(kind, op).Observe(float64(time.Since(start).Milliseconds()))
}

func IncreaseJobOutcome(environment, status string) {
	jobOutcomesTotal.WithLabelValues(environment, status).Inc()
}

func IncreaseNotification(disposition string) {
	notificationsTotal.WithLabelValues(disposition).Inc()
}
