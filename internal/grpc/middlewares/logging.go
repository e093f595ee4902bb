package middleware

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"

	"github.com/tejusbharadwaj/energosync/internal/logger"
)

func LoggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()

	// Execute the handler
	resp, err := handler(ctx, req)

	logger.InitLogger()
	entry := logger.Log.WithFields(logrus.Fields{
		"request_id": RequestID(ctx),
		"method":     info.FullMethod,
		"duration":   time.Since(start).String(),
	})
	if err != nil {
		entry.WithError(err).Warn("gRPC request failed")
	} else {
		entry.Debug("gRPC request served")
	}

	return resp, err
}
