package manager

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	etlRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefleet",
		Name:      "etl_runs_total",
		Help:      "Dimensional snapshot rebuilds by result.",
	}, []string{"result"})

	exports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "storefleet",
		Name:      "exports_total",
		Help:      "Workbook exports by result.",
	}, []string{"result"})
)
