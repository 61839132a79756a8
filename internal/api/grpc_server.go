package api

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"
)

const (
	// ServiceName is the name reported to grpc.health.v1 clients.
	ServiceName          = "kaptam.reservations"
	requestIDMetadataKey = "x-request-id"
	healthProbeInterval  = 15 * time.Second
)

// GRPCServer exposes grpc.health.v1 backed by the store health check.
type GRPCServer struct {
	server   *grpc.Server
	health   *health.Server
	checker  HealthChecker
	listener net.Listener
	interval time.Duration
	log      zerolog.Logger

	stopOnce sync.Once
	stop     chan struct{}
}

func NewGRPCServer(port int, enableReflection bool, checker HealthChecker, logger *zerolog.Logger) (*GRPCServer, error) {
	addr := fmt.Sprintf(":%d", port)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("grpc listen %s: %w", addr, err)
	}
	return newGRPCServer(lis, enableReflection, checker, logger), nil
}

func newGRPCServer(lis net.Listener, enableReflection bool, checker HealthChecker, logger *zerolog.Logger) *GRPCServer {
	serverLogger := zerolog.Nop()
	if logger != nil {
		serverLogger = logger.With().Str("component", "grpc").Logger()
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(LoggingUnaryInterceptor(&serverLogger)))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	if enableReflection {
		reflection.Register(srv)
	}

	return &GRPCServer{
		server:   srv,
		health:   hs,
		checker:  checker,
		listener: lis,
		interval: healthProbeInterval,
		log:      serverLogger,
		stop:     make(chan struct{}),
	}
}

func (s *GRPCServer) Addr() string {
	if s.listener == nil {
		return ""
	}
	return s.listener.Addr().String()
}

// Serve probes the store, starts the probe loop and blocks serving requests.
func (s *GRPCServer) Serve() error {
	s.probe()
	go s.probeLoop()

	s.log.Info().Str("addr", s.Addr()).Msg("gRPC health listening")
	return s.server.Serve(s.listener)
}

func (s *GRPCServer) probeLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.probe()
		}
	}
}

func (s *GRPCServer) probe() {
	st := healthpb.HealthCheckResponse_SERVING
	if s.checker != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		err := s.checker.HealthCheck(ctx)
		cancel()
		if err != nil {
			s.log.Warn().Err(err).Msg("store health check failed")
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}

// Shutdown drains in-flight calls, forcing a stop when ctx expires.
func (s *GRPCServer) Shutdown(ctx context.Context) {
	s.stopOnce.Do(func() { close(s.stop) })
	s.health.Shutdown()

	done := make(chan struct{})
	go func() {
		s.server.GracefulStop()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		s.log.Warn().Msg("gRPC graceful shutdown timed out; forcing stop")
		s.server.Stop()
	}
}

func LoggingUnaryInterceptor(logger *zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		requestID := requestIDFromMetadata(ctx)
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDMetadataKey, requestID))

		start := time.Now()
		resp, err := handler(ctx, req)

		remote := "unknown"
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		logger.Debug().
			Str("request_id", requestID).
			Str("method", info.FullMethod).
			Str("remote", remote).
			Str("code", status.Code(err).String()).
			Dur("duration", time.Since(start)).
			Msg("grpc request")

		if err != nil && status.Code(err) == codes.Unknown {
			logger.Error().Err(err).Str("method", info.FullMethod).Msg("grpc handler error")
		}
		return resp, err
	}
}

func requestIDFromMetadata(ctx context.Context) string {
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if vals := md.Get(requestIDMetadataKey); len(vals) > 0 {
			if id := strings.TrimSpace(vals[0]); id != "" {
				return id
			}
		}
	}
	return uuid.NewString()
}
