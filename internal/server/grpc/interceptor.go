package grpc

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

type ctxKey string

const sessionTokenKey ctxKey = "sessionToken"

// SessionTokenHeader is the metadata key a client may use instead of the
// login_token message field.
const SessionTokenHeader = "login_token"

func (s *GRPCServer) sessionTokenInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if values := md.Get(SessionTokenHeader); len(values) > 0 && values[0] != "" {
			ctx = context.WithValue(ctx, sessionTokenKey, values[0])
		}
	}
	return handler(ctx, req)
}

// sessionToken prefers the message field and falls back to metadata.
func sessionToken(ctx context.Context, fromBody string) string {
	if fromBody != "" {
		return fromBody
	}
	token, _ := ctx.Value(sessionTokenKey).(string)
	return token
}

func (s *GRPCServer) loggingInterceptor(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
	start := time.Now()
	resp, err := handler(ctx, req)

	code := status.Code(err)
	args := []any{"method", info.FullMethod, "code", code.String(), "duration", time.Since(start)}
	if err != nil {
		s.logger.Warn(ctx, "rpc failed", append(args, "error", err)...)
	} else {
		s.logger.Debug(ctx, "rpc", args...)
	}
	return resp, err
}
