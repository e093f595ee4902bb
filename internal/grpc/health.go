package server

import (
	"context"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/tejusbharadwaj/energosync/internal/orchestrator"
)

// ServiceName is reported SERVING once a refresh cycle has completed.
const ServiceName = "energosync"

// HealthChecker implements the gRPC health checking protocol
type HealthChecker struct {
	grpc_health_v1.UnimplementedHealthServer
	mu       sync.RWMutex
	status   map[string]grpc_health_v1.HealthCheckResponse_ServingStatus
	watchers map[string][]chan grpc_health_v1.HealthCheckResponse_ServingStatus
}

// NewHealthChecker reports the server itself as SERVING and the integration as
// NOT_SERVING until its first refresh.
func NewHealthChecker() *HealthChecker {
	h := &HealthChecker{
		status:   make(map[string]grpc_health_v1.HealthCheckResponse_ServingStatus),
		watchers: make(map[string][]chan grpc_health_v1.HealthCheckResponse_ServingStatus),
	}
	h.status[""] = grpc_health_v1.HealthCheckResponse_SERVING
	h.status[ServiceName] = grpc_health_v1.HealthCheckResponse_NOT_SERVING
	return h
}

func (h *HealthChecker) Check(ctx context.Context, req *grpc_health_v1.HealthCheckRequest) (*grpc_health_v1.HealthCheckResponse, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if status, ok := h.status[req.Service]; ok {
		return &grpc_health_v1.HealthCheckResponse{
			Status: status,
		}, nil
	}

	return nil, status.Error(codes.NotFound, "unknown service")
}

// Watch streams the current status of a service and every later change.
func (h *HealthChecker) Watch(req *grpc_health_v1.HealthCheckRequest, stream grpc_health_v1.Health_WatchServer) error {
	updates := make(chan grpc_health_v1.HealthCheckResponse_ServingStatus, 1)

	h.mu.Lock()
	current, ok := h.status[req.Service]
	if !ok {
		current = grpc_health_v1.HealthCheckResponse_SERVICE_UNKNOWN
	}
	h.watchers[req.Service] = append(h.watchers[req.Service], updates)
	h.mu.Unlock()
	defer h.unwatch(req.Service, updates)

	if err := stream.Send(&grpc_health_v1.HealthCheckResponse{Status: current}); err != nil {
		return err
	}

	for {
		select {
		case <-stream.Context().Done():
			return status.Error(codes.Canceled, "stream has ended")
		case next := <-updates:
			if err := stream.Send(&grpc_health_v1.HealthCheckResponse{Status: next}); err != nil {
				return err
			}
		}
	}
}

func (h *HealthChecker) unwatch(service string, updates chan grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	watchers := h.watchers[service]
	for i, w := range watchers {
		if w == updates {
			h.watchers[service] = append(watchers[:i], watchers[i+1:]...)
			break
		}
	}
}

// Serving reports whether a service is currently SERVING.
func (h *HealthChecker) Serving(service string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.status[service] == grpc_health_v1.HealthCheckResponse_SERVING
}

// SetServingStatus sets the serving status of a service
func (h *HealthChecker) SetServingStatus(service string, status grpc_health_v1.HealthCheckResponse_ServingStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.status[service] == status {
		return
	}
	h.status[service] = status

	for _, updates := range h.watchers[service] {
		// keep only the latest status for slow watchers
		select {
		case <-updates:
		default:
		}
		updates <- status
	}
}

// ObserveRefresh follows refresh cycles of a config entry: a completed cycle marks
// the integration SERVING, a failed account fetch NOT_SERVING.
func (h *HealthChecker) ObserveRefresh(_ *orchestrator.CycleReport, err error) {
	if err != nil {
		h.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_NOT_SERVING)
		return
	}
	h.SetServingStatus(ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)
}

var _ orchestrator.RefreshObserver = (*HealthChecker)(nil).ObserveRefresh
