package server_test

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/tejusbharadwaj/energosync/internal/config"
	server "github.com/tejusbharadwaj/energosync/internal/grpc"
	"github.com/tejusbharadwaj/energosync/internal/orchestrator"
)

func startServer(t *testing.T, health *server.HealthChecker, cfg server.ServerConfig) grpc_health_v1.HealthClient {
	t.Helper()

	listener := bufconn.Listen(1024 * 1024)
	srv := server.SetupServer(health, cfg)
	go func() { _ = srv.Serve(listener) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return listener.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	return grpc_health_v1.NewHealthClient(conn)
}

func check(t *testing.T, client grpc_health_v1.HealthClient, service string) (grpc_health_v1.HealthCheckResponse_ServingStatus, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &grpc_health_v1.HealthCheckRequest{Service: service})
	if err != nil {
		return grpc_health_v1.HealthCheckResponse_UNKNOWN, err
	}
	return resp.Status, nil
}

func TestHealthFollowsRefresh(t *testing.T) {
	health := server.NewHealthChecker()
	client := startServer(t, health, server.DefaultServerConfig())

	tests := []struct {
		name    string
		observe func()
		want    grpc_health_v1.HealthCheckResponse_ServingStatus
	}{
		{"before first refresh", func() {}, grpc_health_v1.HealthCheckResponse_NOT_SERVING},
		{"after completed refresh", func() { health.ObserveRefresh(&orchestrator.CycleReport{}, nil) }, grpc_health_v1.HealthCheckResponse_SERVING},
		{"after failed account fetch", func() { health.ObserveRefresh(nil, errors.New("unauthorized")) }, grpc_health_v1.HealthCheckResponse_NOT_SERVING},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.observe()
			got, err := check(t, client, server.ServiceName)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	overall, err := check(t, client, "")
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, overall)
}

func TestHealthUnknownService(t *testing.T) {
	client := startServer(t, server.NewHealthChecker(), server.DefaultServerConfig())

	_, err := check(t, client, "unknown")
	assert.Equal(t, codes.NotFound, status.Code(err))
}

func TestHealthWatch(t *testing.T) {
	health := server.NewHealthChecker()
	client := startServer(t, health, server.DefaultServerConfig())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	stream, err := client.Watch(ctx, &grpc_health_v1.HealthCheckRequest{Service: server.ServiceName})
	require.NoError(t, err)

	resp, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_NOT_SERVING, resp.Status)

	health.ObserveRefresh(&orchestrator.CycleReport{}, nil)
	resp, err = stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, grpc_health_v1.HealthCheckResponse_SERVING, resp.Status)
}

func TestRateLimiting(t *testing.T) {
	client := startServer(t, server.NewHealthChecker(), server.ServerConfig{RateLimit: 0.001, RateLimitBurst: 1})

	_, err := check(t, client, "")
	require.NoError(t, err)

	_, err = check(t, client, "")
	assert.Equal(t, codes.ResourceExhausted, status.Code(err))
}

func TestFromConfig(t *testing.T) {
	assert.Equal(t, server.DefaultServerConfig(), server.FromConfig(config.ServerConfig{}))
	assert.Equal(t,
		server.ServerConfig{RateLimit: 20, RateLimitBurst: 40},
		server.FromConfig(config.ServerConfig{RateLimit: 20, RateLimitBurst: 40}),
	)
}
