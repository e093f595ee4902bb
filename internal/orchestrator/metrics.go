package orchestrator

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	refreshCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energosync_refresh_cycles_total",
		Help: "The number of refresh cycles by result",
	}, []string{"result"})

	tasksScheduled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "energosync_refresh_tasks_scheduled_total",
		Help: "The number of account x class refresh tasks scheduled",
	})

	tasksFailed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energosync_refresh_tasks_failed_total",
		Help: "The number of refresh tasks that failed, by entity class",
	}, []string{"class"})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "energosync_refresh_cycle_duration_seconds",
		Help:    "Duration of full refresh cycles",
		Buckets: prometheus.DefBuckets,
	})
)
