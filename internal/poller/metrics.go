package poller

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var pollTicks = promauto.NewCounter(prometheus.CounterOpts{
	Name: "energosync_entity_poll_ticks_total",
	Help: "The number of scheduled entity updates executed",
})
