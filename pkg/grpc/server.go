// Package grpc serves the side gRPC port that load balancers and
// orchestrators probe. It exposes grpc.health.v1.Health, whose status
// follows a readiness probe (the database ping), and server reflection.
//
//	srv := grpc.New(database.Ping)
//	if err := srv.Start(config.GRPCPort()); err != nil { ... }
//	defer srv.Stop()
package grpc

import (
	"context"
	"fmt"
	"net"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
	"google.golang.org/grpc/status"

	"github.com/shashiranjanraj/foodie/pkg/logger"
	"github.com/shashiranjanraj/foodie/pkg/metrics"
)

var (
	handled = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "foodie",
		Subsystem: "grpc",
		Name:      "handled_total",
		Help:      "RPCs completed, by method and status code.",
	}, []string{"method", "code"})

	latency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "foodie",
		Subsystem: "grpc",
		Name:      "handling_seconds",
		Help:      "RPC latency.",
		Buckets:   []float64{.001, .005, .025, .1, .5, 2},
	}, []string{"method"})

	registerOnce sync.Once
)

// Probe reports whether the service can do useful work.
type Probe func(ctx context.Context) error

type Server struct {
	srv    *grpc.Server
	health *health.Server
	probe  Probe

	// Every is how often the probe runs.
	Every time.Duration

	stop chan struct{}
	once sync.Once
}

func New(probe Probe) *Server {
	registerOnce.Do(func() {
		_ = metrics.Register(handled)
		_ = metrics.Register(latency)
	})

	s := &Server{
		srv: grpc.NewServer(
			grpc.ChainUnaryInterceptor(observeUnary, recoverUnary),
			grpc.ChainStreamInterceptor(recoverStream),
		),
		health: health.NewServer(),
		probe:  probe,
		Every:  10 * time.Second,
		stop:   make(chan struct{}),
	}
	healthpb.RegisterHealthServer(s.srv, s.health)
	reflection.Register(s.srv)
	return s
}

// Start listens on port and serves in the background.
func (s *Server) Start(port string) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("grpc: listen :%s: %w", port, err)
	}
	logger.Info("grpc listening", "addr", lis.Addr().String())
	go func() {
		if err := s.Serve(lis); err != nil {
			logger.Error("grpc: serve", "error", err)
		}
	}()
	return nil
}

// Serve blocks serving lis. The health status is checked once before the
// first request and then every s.Every.
func (s *Server) Serve(lis net.Listener) error {
	s.check()
	go s.watch()
	return s.srv.Serve(lis)
}

// Stop marks the service NOT_SERVING so balancers drain it, then waits
// for in-flight calls.
func (s *Server) Stop() {
	s.once.Do(func() {
		close(s.stop)
		s.health.Shutdown()
		s.srv.GracefulStop()
	})
}

func (s *Server) watch() {
	t := time.NewTicker(s.Every)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.check()
		}
	}
}

func (s *Server) check() {
	st := healthpb.HealthCheckResponse_SERVING
	if s.probe != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		err := s.probe(ctx)
		cancel()
		if err != nil {
			logger.Warn("grpc: readiness probe failed", "error", err)
			st = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}
	// "" is the overall server status.
	s.health.SetServingStatus("", st)
}

func observeUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
	start := time.Now()
	resp, err := next(ctx, req)
	code := status.Code(err)

	handled.WithLabelValues(info.FullMethod, code.String()).Inc()
	latency.WithLabelValues(info.FullMethod).Observe(time.Since(start).Seconds())
	logger.Debug("grpc call", "method", info.FullMethod, "code", code.String(), "took", time.Since(start).String())
	return resp, err
}

func recoverUnary(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicked(info.FullMethod, v)
		}
	}()
	return next(ctx, req)
}

func recoverStream(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, next grpc.StreamHandler) (err error) {
	defer func() {
		if v := recover(); v != nil {
			err = panicked(info.FullMethod, v)
		}
	}()
	return next(srv, ss)
}

func panicked(method string, v any) error {
	metrics.PanicsRecovered.Inc()
	logger.Error("grpc: handler panicked", "method", method, "panic", fmt.Sprint(v), "stack", string(debug.Stack()))
	return status.Error(codes.Internal, "internal error")
}
