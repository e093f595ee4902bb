package host

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var messagesPublished = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "energosync_host_messages_published_total",
	Help: "The number of host messages published, by backend and result",
}, []string{"backend", "result"})
