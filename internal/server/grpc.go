package server

import (
	"context"
	"net"
	"time"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"

	"github.com/syu-y/card-tictactoe/internal/config"
	"github.com/syu-y/card-tictactoe/internal/room"
)

// RoomsService is the health service name reporting room capacity.
const RoomsService = "cardtictactoe.Rooms"

// GRPCServer is the admin listener exposing the standard health service.
type GRPCServer struct {
	server *grpc.Server
	health *health.Server
	rooms  *room.Manager
	addr   string
	logger *zap.Logger
}

// NewGRPCServer creates the admin gRPC server.
func NewGRPCServer(cfg config.GRPCConfig, rooms *room.Manager, logger *zap.Logger) *GRPCServer {
	srv := grpc.NewServer(
		grpc.UnaryInterceptor(ChainUnaryInterceptors(
			RecoveryInterceptor(logger),
			LoggingInterceptor(logger),
		)),
		grpc.StreamInterceptor(StreamRecoveryInterceptor(logger)),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    30 * time.Second,
			Timeout: 10 * time.Second,
		}),
		grpc.MaxConcurrentStreams(uint32(cfg.MaxConcurrentStreams)),
	)

	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(RoomsService, healthpb.HealthCheckResponse_SERVING)

	return &GRPCServer{
		server: srv,
		health: hs,
		rooms:  rooms,
		addr:   cfg.Address,
		logger: logger,
	}
}

// Serve accepts connections on lis until Stop is called.
func (s *GRPCServer) Serve(lis net.Listener) error {
	s.logger.Info("gRPC server listening", zap.String("address", lis.Addr().String()))
	return s.server.Serve(lis)
}

// Start listens on the configured address and serves.
func (s *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(lis)
}

// WatchRooms keeps the rooms service status current until ctx is done. The
// service reports NOT_SERVING once maxRooms rooms are open; maxRooms <= 0
// disables the limit.
func (s *GRPCServer) WatchRooms(ctx context.Context, interval time.Duration, maxRooms int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.health.SetServingStatus(RoomsService, s.roomsStatus(maxRooms))
		}
	}
}

func (s *GRPCServer) roomsStatus(maxRooms int) healthpb.HealthCheckResponse_ServingStatus {
	if maxRooms > 0 && s.rooms.Count() >= maxRooms {
		return healthpb.HealthCheckResponse_NOT_SERVING
	}
	return healthpb.HealthCheckResponse_SERVING
}

// Stop marks every service NOT_SERVING and drains in-flight calls.
func (s *GRPCServer) Stop() {
	s.health.Shutdown()
	s.server.GracefulStop()
}
