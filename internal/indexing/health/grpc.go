package health

import (
	"fmt"
	"log/slog"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServicePrefix prefixes per-chain gRPC health service names.
const ServicePrefix = "withdrawal_watcher."

// GRPCServer serves the standard gRPC health protocol.
type GRPCServer struct {
	port   int
	srv    *grpc.Server
	health *grpchealth.Server
	log    *slog.Logger
}

// NewGRPCServer creates a gRPC health server for port.
func NewGRPCServer(port int) *GRPCServer {
	hs := grpchealth.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return &GRPCServer{
		port:   port,
		srv:    srv,
		health: hs,
		log:    slog.Default().With("component", "grpc-health"),
	}
}

// SetServing updates the status of a chain service. An empty name sets the
// overall server status.
func (g *GRPCServer) SetServing(service string, serving bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if serving {
		status = healthpb.HealthCheckResponse_SERVING
	}
	if service != "" {
		service = ServicePrefix + service
	}
	g.health.SetServingStatus(service, status)
}

// Start listens and serves until Stop.
func (g *GRPCServer) Start() error {
	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", g.port))
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	g.log.Info("grpc health server listening", "port", g.port)
	return g.srv.Serve(lis)
}

// Stop marks every service not serving and stops gracefully.
func (g *GRPCServer) Stop() {
	g.health.Shutdown()
	g.srv.GracefulStop()
}
