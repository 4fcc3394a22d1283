package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	taskSteps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefleet",
		Name:      "task_steps_total",
		Help:      "Task steps executed, labelled by task and resulting status.",
	}, []string{"task", "status"})

	taskStepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "storefleet",
		Name:      "task_step_duration_seconds",
		Help:      "Wall time of a single task step.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"task"})

	leasedStores = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "storefleet",
		Name:      "leased_stores",
		Help:      "Stores currently held by this worker.",
	})

	storesCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefleet",
		Name:      "stores_completed_total",
		Help:      "Store passes finished, labelled by result.",
	}, []string{"result"})
)
