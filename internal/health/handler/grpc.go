package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
)

// GRPCServer implements grpc.health.v1.Health on top of Server.
type GRPCServer struct {
	healthpb.UnimplementedHealthServer
	checks *Server
}

// NewGRPCServer returns a health service backed by checks.
func NewGRPCServer(checks *Server) *GRPCServer {
	return &GRPCServer{checks: checks}
}

// Check returns SERVING when every component is reachable, NOT_SERVING otherwise.
// Only the overall service ("") is known.
func (s *GRPCServer) Check(ctx context.Context, req *healthpb.HealthCheckRequest) (*healthpb.HealthCheckResponse, error) {
	if req.GetService() != "" {
		return nil, status.Error(codes.NotFound, "unknown service")
	}
	if !s.checks.Check(ctx).Healthy() {
		return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_NOT_SERVING}, nil
	}
	return &healthpb.HealthCheckResponse{Status: healthpb.HealthCheckResponse_SERVING}, nil
}
