package grpcserver

import (
	"context"
	"log/slog"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"cityServiceDesk/internal/auth"
	"cityServiceDesk/internal/config"
	"cityServiceDesk/internal/service"
)

const healthCheckMethod = "/grpc.health.v1.Health/Check"

// Deps are the collaborators the gRPC surface is built on.
type Deps struct {
	Users  auth.UserLookup
	Desk   *service.Manager
	Logger *slog.Logger
}

// NewServer builds a gRPC server exposing RequestService and the standard
// health service, with logging and authentication interceptors installed.
func NewServer(secret string, deps Deps) *grpc.Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(
		loggingInterceptor(logger),
		auth.NewUnaryAuthInterceptor(secret, deps.Users, healthCheckMethod),
	))
	srv.RegisterService(&RequestServiceDesc, &RequestServer{Desk: deps.Desk})

	hs := health.NewServer()
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	return srv
}

// StartGRPC starts the gRPC server on the configured address and returns a shutdown function.
func StartGRPC(cfg *config.Config, deps Deps) (func(context.Context) error, error) {
	if cfg == nil {
		panic("config is required")
	}

	addr := cfg.GRPC.Address
	if addr == "" {
		addr = ":50051"
	}

	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, err
	}

	// Plaintext; terminate TLS in front of the service.
	srv := NewServer(cfg.Auth.JWTSecret, deps)
	go func() { _ = srv.Serve(lis) }()

	return func(ctx context.Context) error {
		done := make(chan struct{})
		go func() { srv.GracefulStop(); close(done) }()
		select {
		case <-done:
			return nil
		case <-ctx.Done():
			srv.Stop()
			return ctx.Err()
		}
	}, nil
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		code := status.Code(err)
		level := slog.LevelInfo
		switch code {
		case codes.OK:
		case codes.Internal, codes.Unknown:
			level = slog.LevelError
		default:
			level = slog.LevelWarn
		}
		logger.LogAttrs(ctx, level, "grpc request",
			slog.String("method", info.FullMethod),
			slog.String("code", code.String()),
			slog.Duration("duration", time.Since(start)),
		)
		return resp, err
	}
}
