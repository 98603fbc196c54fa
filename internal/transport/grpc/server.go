package grpcx

import (
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName: имя в grpc.health.v1, которое можно спрашивать отдельно от "" (весь сервер).
const ServiceName = "chat.v1.ChatService"

// Server — gRPC-сервер со стандартным health-сервисом.
type Server struct {
	*grpc.Server
	health *health.Server
}

func NewServer(callTimeout time.Duration) *Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(UnaryServerInterceptor(callTimeout)),
		grpc.ChainStreamInterceptor(StreamServerInterceptor()),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	return &Server{Server: gs, health: hs}
}

// SetServing переключает статус всего сервера и сервиса чата.
func (s *Server) SetServing(ok bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if ok {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Stop: сначала NOT_SERVING, чтобы балансировщик успел увести трафик, потом GracefulStop.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.Server.GracefulStop()
}
