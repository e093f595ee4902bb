package middleware

import (
	"context"

	"github.com/google/uuid"
	"google.golang.org/grpc"
)

type contextKey string

const requestIDKey contextKey = "requestID"

func ContextMiddleware(
	ctx context.Context,
	req interface{},
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (interface{}, error) {
	ctx = context.WithValue(ctx, requestIDKey, uuid.NewString())
	return handler(ctx, req)
}

// RequestID returns the ID assigned by ContextMiddleware, or "" outside a request.
func RequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey).(string)
	return requestID
}
