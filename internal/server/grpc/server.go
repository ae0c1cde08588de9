// Package grpc exposes the auth service over gRPC using the JSON codec from
// internal/api, alongside the standard health service.
package grpc

import (
	"context"
	"errors"
	"net"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/rtcauth/internal/api"
	"github.com/dmitrijs2005/rtcauth/internal/logging"
	"github.com/dmitrijs2005/rtcauth/internal/server/models"
	"github.com/dmitrijs2005/rtcauth/internal/server/services"
)

// AuthService is the slice of services.AuthService the server calls.
type AuthService interface {
	RequestCode(ctx context.Context, phone string) error
	VerifyAndLogin(ctx context.Context, phone, code string) (*services.LoginResult, error)
	ExchangeForCapabilityToken(ctx context.Context, sessionToken, room string, privileges []string) (*services.CapabilityToken, error)
	RenameIdentity(ctx context.Context, sessionToken, name string) (*models.User, error)
	Logout(ctx context.Context, sessionToken string) error
	RefreshSession(ctx context.Context, sessionToken string) (*models.Session, error)
	GetProfile(ctx context.Context, sessionToken string) (*models.User, error)
}

// UploadService issues presigned upload URLs.
type UploadService interface {
	CreateUploadURL(ctx context.Context, sessionToken, fileName string) (*services.UploadURL, error)
}

type GRPCServer struct {
	address string
	auth    AuthService
	uploads UploadService
	health  *health.Server
	logger  logging.Logger
}

var _ api.AuthServiceServer = (*GRPCServer)(nil)

func NewGRPCServer(a string, l logging.Logger, as AuthService, us UploadService) *GRPCServer {
	return &GRPCServer{
		address: a,
		logger:  l.With("module", "grpc_server"),
		auth:    as,
		uploads: us,
		health:  health.NewServer(),
	}
}

// Run listens on the configured address and serves until ctx is done.
func (s *GRPCServer) Run(ctx context.Context) error {
	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve serves on lis until ctx is done, then stops gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := grpc.NewServer(
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.sessionTokenInterceptor),
	)

	api.RegisterAuthServiceServer(srv, s)
	healthpb.RegisterHealthServer(srv, s.health)
	s.health.SetServingStatus(api.ServiceName, healthpb.HealthCheckResponse_SERVING)

	stopped := make(chan struct{})
	defer close(stopped)
	go func() {
		select {
		case <-ctx.Done():
		case <-stopped:
			return
		}
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	// starts accepting incoming connections; a stop that lands before
	// Serve is still a clean shutdown
	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}

	return nil
}
