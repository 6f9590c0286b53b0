package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Manager struct {
	// counters
	CounterRequests           *prometheus.CounterVec
	CounterSessionsCreated    prometheus.Counter
	CounterSessionsCompleted  prometheus.Counter
	CounterAutoSaves          *prometheus.CounterVec // by result: ok, retry, failed, rejected
	CounterPlanEntriesUpdated prometheus.Counter
	CounterAdvancementFailed  prometheus.Counter
	CounterClones             *prometheus.CounterVec // by result
	CounterExports            prometheus.Counter

	// gauges
	GaugeRequests     prometheus.Gauge
	GaugePlanWatchers prometheus.Gauge
	GaugePendingSaves prometheus.Gauge

	// histograms
	HistRequestDuration prometheus.Histogram
	HistCloneDuration   prometheus.Histogram
}

func NewTestManager() *Manager {
	return NewManager("plan_tracker", "test_server", prometheus.NewRegistry())
}

func NewTestManagerAndRegistry() (*Manager, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return NewManager("plan_tracker", "test_server", reg), reg
}

func NewManager(namespace, subsystem string, reg prometheus.Registerer) *Manager {
	factory := promauto.With(reg)

	counterRequests := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "request",
		Help:      "The total number of incoming requests",
	}, []string{"method", "status"})
	counterSessionsCreated := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sessions_created",
		Help:      "The total number of logging sessions created",
	})
	counterSessionsCompleted := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "sessions_completed",
		Help:      "The total number of logging sessions completed",
	})
	counterAutoSaves := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "autosaves",
		Help:      "Auto-save attempts by result",
	}, []string{"result"})
	counterPlanEntriesUpdated := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "plan_entries_updated",
		Help:      "The total number of schedule entry updates",
	})
	counterAdvancementFailed := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "plan_advancement_failed",
		Help:      "Completed sessions whose schedule entry could not be marked",
	})
	counterClones := factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "workout_clones",
		Help:      "Workout clone runs by result",
	}, []string{"result"})
	counterExports := factory.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "session_exports",
		Help:      "The total number of exported sessions",
	})

	gaugeRequests := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "current_requests",
		Help:      "Current number of requests served",
	})
	gaugePlanWatchers := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "plan_watchers",
		Help:      "Current number of plan state subscriptions",
	})
	gaugePendingSaves := factory.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      "pending_autosaves",
		Help:      "Sessions with a snapshot waiting to be written",
	})

	histReqDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		Name:      "request_duration_seconds",
		Help:      "Total duration of requests in seconds",
	})
	histCloneDuration := factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 10, 30, 60},
		Name:      "workout_clone_duration_seconds",
		Help:      "Duration of a single workout clone in seconds",
	})

	return &Manager{
		CounterRequests:           counterRequests,
		CounterSessionsCreated:    counterSessionsCreated,
		CounterSessionsCompleted:  counterSessionsCompleted,
		CounterAutoSaves:          counterAutoSaves,
		CounterPlanEntriesUpdated: counterPlanEntriesUpdated,
		CounterAdvancementFailed:  counterAdvancementFailed,
		CounterClones:             counterClones,
		CounterExports:            counterExports,
		GaugeRequests:             gaugeRequests,
		GaugePlanWatchers:         gaugePlanWatchers,
		GaugePendingSaves:         gaugePendingSaves,
		HistRequestDuration:       histReqDuration,
		HistCloneDuration:         histCloneDuration,
	}
}
