package middleware

import (
	"context"
	"path"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"google.golang.org/grpc"
)

var (
	Requests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "energosync_grpc_requests_total",
		Help: "The number of gRPC requests by method",
	}, []string{"method"})

	Latency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "energosync_grpc_request_duration_seconds",
		Help:    "gRPC request latency by method",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})
)

func NewMetricsInterceptor(
	requests *prometheus.CounterVec,
	latency *prometheus.HistogramVec,
) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		start := time.Now()

		resp, err := handler(ctx, req)

		// Record metrics
		duration := time.Since(start).Seconds()
		method := path.Base(info.FullMethod)

		requests.WithLabelValues(method).Inc()
		latency.WithLabelValues(method).Observe(duration)

		return resp, err
	}
}
