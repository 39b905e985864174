// Package server provides gRPC server lifecycle management.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"

	"github.com/solatis/rolebind/internal/core/api"
	"github.com/solatis/rolebind/internal/core/auth"
	"github.com/solatis/rolebind/internal/core/config"
	"github.com/solatis/rolebind/internal/core/telemetry"
)

// shutdownTimeout bounds GracefulStop before connections are cut.
const shutdownTimeout = 30 * time.Second

// GRPCServer manages the gRPC listener and the metrics side listener.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	metrics  *http.Server
	listener net.Listener
	config   *config.ServerConfig
	logger   *slog.Logger
	ready    func(context.Context) error
}

// NewGRPCServer creates gRPC server with interceptors and service registration.
// Interceptors run in order: metrics, request timeout, authentication.
// A nil metrics disables instrumentation and the metrics listener.
func NewGRPCServer(cfg *config.ServerConfig, service api.BindingServer, authenticator *auth.Authenticator, metrics *telemetry.Metrics, logger *slog.Logger) (*GRPCServer, error) {
	if cfg == nil {
		return nil, fmt.Errorf("cfg cannot be nil")
	}
	if service == nil {
		return nil, fmt.Errorf("service cannot be nil")
	}
	if authenticator == nil {
		return nil, fmt.Errorf("authenticator cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var interceptors []grpc.UnaryServerInterceptor
	if metrics != nil {
		interceptors = append(interceptors, metrics.UnaryInterceptor())
	}
	interceptors = append(interceptors,
		timeoutInterceptor(cfg.RequestTimeout),
		authenticator.UnaryInterceptor(),
	)

	opts := []grpc.ServerOption{
		grpc.ChainUnaryInterceptor(interceptors...),
	}
	if cfg.MaxRecvBytes > 0 {
		opts = append(opts, grpc.MaxRecvMsgSize(cfg.MaxRecvBytes))
	}

	server := grpc.NewServer(opts...)
	api.RegisterBindingServer(server, service)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	healthServer.SetServingStatus(api.ServiceName, grpc_health_v1.HealthCheckResponse_SERVING)

	s := &GRPCServer{
		server: server,
		health: healthServer,
		config: cfg,
		logger: logger,
	}
	if metrics != nil && cfg.MetricsAddr != "" {
		s.metrics = &http.Server{
			Addr:              cfg.MetricsAddr,
			Handler:           metrics.Router(s.readyCheck),
			ReadHeaderTimeout: 5 * time.Second,
		}
	}
	return s, nil
}

// SetReadyCheck installs the readiness check behind /healthz, typically a store ping.
// Call before Serve.
func (s *GRPCServer) SetReadyCheck(ready func(context.Context) error) {
	s.ready = ready
}

func (s *GRPCServer) readyCheck(ctx context.Context) error {
	if s.ready == nil {
		return nil
	}
	return s.ready(ctx)
}

// PublicMethods lists methods the authenticator must let through unauthenticated.
func PublicMethods() []string {
	return []string{"/" + grpc_health_v1.Health_ServiceDesc.ServiceName + "/"}
}

// Start binds the listener and serves gRPC requests until Shutdown.
func (s *GRPCServer) Start(ctx context.Context) error {
	addr := net.JoinHostPort(s.config.Host, fmt.Sprint(s.config.Port))
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to bind %s: %w", addr, err)
	}
	return s.Serve(listener)
}

// Serve serves on an existing listener. Used directly by tests.
func (s *GRPCServer) Serve(listener net.Listener) error {
	s.listener = listener

	if s.metrics != nil {
		go func() {
			s.logger.Info("metrics listener started", "addr", s.metrics.Addr)
			if err := s.metrics.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.logger.Error("metrics listener failed", "error", err)
			}
		}()
	}

	s.logger.Info("grpc listener started", "addr", listener.Addr().String())
	return s.server.Serve(listener)
}

// Shutdown marks the service not serving and gracefully stops it, forcing a
// stop when ctx ends or after 30 seconds.
func (s *GRPCServer) Shutdown(ctx context.Context) error {
	s.health.Shutdown()

	if s.metrics != nil {
		_ = s.metrics.Shutdown(ctx)
	}

	stopped := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
		return nil
	case <-ctx.Done():
		s.server.Stop()
		return fmt.Errorf("shutdown cancelled by context: %w", ctx.Err())
	case <-time.After(shutdownTimeout):
		s.server.Stop()
		return fmt.Errorf("graceful shutdown timeout, forced stop")
	}
}

// timeoutInterceptor bounds each request. A non-positive d disables it.
func timeoutInterceptor(d time.Duration) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		if d <= 0 {
			return handler(ctx, req)
		}
		ctx, cancel := context.WithTimeout(ctx, d)
		defer cancel()
		return handler(ctx, req)
	}
}
