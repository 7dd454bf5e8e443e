// Package grpcapi hosts the gRPC listener.  It serves the standard health
// service so orchestrators can gate traffic on gallery readiness, and a
// small read-only presence service whose errors carry apperr codes.
package grpcapi

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
)

// Health service names.  The empty name is the overall server status.
const (
	ServiceOverall  = ""
	ServicePresence = "busroll.v1.Presence"
	ServiceGallery  = "busroll.v1.Gallery"
)

type Dependencies struct {
	Logger   *log.Logger
	Addr     string
	Presence PresenceQuerier
}

type Server struct {
	addr       string
	logger     *log.Logger
	grpcServer *grpc.Server
	health     *health.Server
}

func NewServer(d Dependencies) *Server {
	grpcServer := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryInterceptor(d.Logger)))
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)

	healthServer.SetServingStatus(ServiceOverall, grpc_health_v1.HealthCheckResponse_SERVING)
	if d.Presence != nil {
		grpcServer.RegisterService(&presenceServiceDesc, &presenceServer{presence: d.Presence})
		healthServer.SetServingStatus(ServicePresence, grpc_health_v1.HealthCheckResponse_SERVING)
	}
	// The gallery reports NOT_SERVING until the first snapshot is installed.
	healthServer.SetServingStatus(ServiceGallery, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &Server{
		addr:       d.Addr,
		logger:     d.Logger,
		grpcServer: grpcServer,
		health:     healthServer,
	}
}

// SetGalleryReady flips the gallery health status.
func (s *Server) SetGalleryReady(ready bool) {
	st := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if ready {
		st = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(ServiceGallery, st)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.addr, err)
	}
	return s.Serve(lis)
}

func (s *Server) Serve(lis net.Listener) error {
	err := s.grpcServer.Serve(lis)
	if errors.Is(err, grpc.ErrServerStopped) {
		return nil
	}
	return err
}

// Shutdown marks every service NOT_SERVING and stops gracefully, falling
// back to a hard stop when ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.grpcServer.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.grpcServer.Stop()
		return ctx.Err()
	}
}

func unaryInterceptor(logger *log.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now().UTC()
		resp, err := handler(ctx, req)
		err = toStatus(err)
		logger.Printf("grpc %s code=%s dur=%s", info.FullMethod, status.Code(err), time.Since(start))
		return resp, err
	}
}

// toStatus converts apperr errors returned by handlers into gRPC status
// errors.  Errors that already carry a status pass through.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := apperr.CodeOf(err)
	return status.Error(code.GRPCCode(), err.Error())
}
