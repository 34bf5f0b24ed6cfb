package auth

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// NewUnaryAuthInterceptor returns a gRPC unary interceptor that extracts and
// validates a Bearer JWT from incoming metadata, verifies it against stored
// users and injects the Principal into the context.
//
// Calls without an authorization entry proceed anonymously; the gate decides
// whether the operation allows that. Methods listed in skip bypass token
// parsing entirely (e.g., health checks).
func NewUnaryAuthInterceptor(secret string, users UserLookup, skip ...string) grpc.UnaryServerInterceptor {
	bypass := make(map[string]struct{}, len(skip))
	for _, m := range skip {
		bypass[strings.TrimSpace(m)] = struct{}{}
	}
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if _, ok := bypass[info.FullMethod]; ok {
			return handler(ctx, req)
		}
		p, err := ParseFromMD(ctx, secret)
		if errors.Is(err, ErrNoCredentials) {
			return handler(ctx, req)
		}
		if err != nil {
			return nil, status.Errorf(codes.Unauthenticated, "auth error: %v", err)
		}
		if users != nil {
			if p, err = Verify(ctx, users, p); err != nil {
				return nil, status.Errorf(codes.Unauthenticated, "auth error: %v", err)
			}
		}
		return handler(WithPrincipal(ctx, p), req)
	}
}
