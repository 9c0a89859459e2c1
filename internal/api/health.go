package api

import (
	"fmt"
	"net"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthService is the service name reported by the gRPC health server.
const HealthService = "ns-ingest"

// HealthServer serves the standard gRPC health protocol.
type HealthServer struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	logger     *zap.Logger
}

// NewHealthServer listens on addr. The service starts as NOT_SERVING.
func NewHealthServer(addr string, logger *zap.Logger) (*HealthServer, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", addr, err)
	}

	grpcServer := grpc.NewServer()
	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(grpcServer, healthServer)
	healthServer.SetServingStatus(HealthService, grpc_health_v1.HealthCheckResponse_NOT_SERVING)

	return &HealthServer{
		grpcServer: grpcServer,
		health:     healthServer,
		listener:   lis,
		logger:     logger,
	}, nil
}

// Addr returns the bound address.
func (s *HealthServer) Addr() net.Addr {
	return s.listener.Addr()
}

// Start serves in the background until Stop.
func (s *HealthServer) Start() {
	go func() {
		s.logger.Info("gRPC health server starting", zap.Stringer("addr", s.listener.Addr()))
		if err := s.grpcServer.Serve(s.listener); err != nil {
			s.logger.Error("gRPC health server stopped", zap.Error(err))
		}
	}()
}

// SetServing flips the reported status of the ingest service.
func (s *HealthServer) SetServing(serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(HealthService, status)
}

// Stop marks every service NOT_SERVING and stops the server.
func (s *HealthServer) Stop() {
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
}
