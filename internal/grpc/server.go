// Package server exposes the daemon's gRPC surface: the standard health service,
// behind request ID, rate limiting, logging and metrics interceptors.
package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/tejusbharadwaj/energosync/internal/config"
	middleware "github.com/tejusbharadwaj/energosync/internal/grpc/middlewares"
)

// ServerConfig holds configuration options for the gRPC server
type ServerConfig struct {
	RateLimit      float64 // Requests per second
	RateLimitBurst int     // Maximum burst size for rate limiting
}

// DefaultServerConfig returns a ServerConfig with sensible defaults
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		RateLimit:      5.0, // 5 requests per second
		RateLimitBurst: 10,  // Burst of 10 requests
	}
}

// FromConfig takes the gRPC settings out of the server section.
func FromConfig(cfg config.ServerConfig) ServerConfig {
	serverConfig := DefaultServerConfig()
	if cfg.RateLimit > 0 {
		serverConfig.RateLimit = cfg.RateLimit
	}
	if cfg.RateLimitBurst > 0 {
		serverConfig.RateLimitBurst = cfg.RateLimitBurst
	}
	return serverConfig
}

// SetupServer initializes the gRPC server with all middleware and registers the health service
func SetupServer(health *HealthChecker, config ServerConfig) *grpc.Server {
	server := grpc.NewServer(
		grpc.UnaryInterceptor(
			chainUnaryInterceptors(
				middleware.ContextMiddleware, // Add request ID first
				middleware.NewRateLimitingInterceptor(config.RateLimit, config.RateLimitBurst),
				middleware.LoggingInterceptor, // Log all requests (with request ID)
				middleware.NewMetricsInterceptor(middleware.Requests, middleware.Latency),
			),
		),
	)

	grpc_health_v1.RegisterHealthServer(server, health)

	return server
}

// chainUnaryInterceptors creates a single interceptor from multiple interceptors
func chainUnaryInterceptors(interceptors ...grpc.UnaryServerInterceptor) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		chain := handler
		for i := len(interceptors) - 1; i >= 0; i-- {
			interceptor := interceptors[i]
			chainedInterceptor := chain
			chain = func(currentCtx context.Context, currentReq interface{}) (interface{}, error) {
				return interceptor(currentCtx, currentReq, info, chainedInterceptor)
			}
		}
		return chain(ctx, req)
	}
}
