package grpc

import (
	"context"
	"crypto/tls"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"

	"github.com/turtacn/BioDockViz/internal/config"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/health"
	"github.com/turtacn/BioDockViz/internal/infrastructure/monitoring/logging"
)

func newTestServer(t *testing.T, cfg config.GRPCConfig, opts ...Option) *Server {
	t.Helper()
	s, err := NewServer(cfg, append([]Option{WithHost("127.0.0.1")}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Stop(context.Background()) })
	return s
}

func startAndDial(t *testing.T, s *Server) healthpb.HealthClient {
	t.Helper()
	go func() { _ = s.Start() }()
	conn, err := grpc.Dial(s.Addr(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func checkStatus(t *testing.T, client healthpb.HealthClient, service string) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := client.Check(ctx, &healthpb.HealthCheckRequest{Service: service})
	require.NoError(t, err)
	return resp.Status
}

func TestNewServer_BindsEphemeralPort(t *testing.T) {
	s := newTestServer(t, config.GRPCConfig{Port: 0})
	assert.NotEmpty(t, s.Addr())
	assert.NotContains(t, s.Addr(), ":0")
	assert.NotNil(t, s.GRPCServer())
}

func TestNewServer_InvalidTLSFiles(t *testing.T) {
	_, err := NewServer(config.GRPCConfig{Port: 0, TLSCertFile: "/nonexistent/cert.pem", TLSKeyFile: "/nonexistent/key.pem"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tls")
}

func TestNewServer_TLSConfigOverridesFiles(t *testing.T) {
	cfg := config.GRPCConfig{Port: 0, TLSCertFile: "/nonexistent/cert.pem", TLSKeyFile: "/nonexistent/key.pem"}
	s := newTestServer(t, cfg, WithTLSConfig(&tls.Config{MinVersion: tls.VersionTLS12}))
	assert.NotEmpty(t, s.Addr())
}

func TestServer_HealthServingWithoutProber(t *testing.T) {
	s := newTestServer(t, config.GRPCConfig{Port: 0})
	client := startAndDial(t, s)

	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, client, ""))
	report := s.RefreshHealth(context.Background())
	assert.True(t, report.Healthy)
}

func TestServer_HealthFollowsProber(t *testing.T) {
	var redisErr error
	prober := health.NewProber(time.Second, nil, nil,
		health.NewChecker("postgres", func(context.Context) error { return nil }),
		health.NewChecker("redis", func(context.Context) error { return redisErr }),
	)
	s := newTestServer(t, config.GRPCConfig{Port: 0}, WithProber(prober))
	client := startAndDial(t, s)

	s.RefreshHealth(context.Background())
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, client, "redis"))

	redisErr = errors.New("connection refused")
	report := s.RefreshHealth(context.Background())
	assert.False(t, report.Healthy)
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, client, ""))
	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, checkStatus(t, client, "redis"))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, checkStatus(t, client, "postgres"))
}

func TestServer_DoubleStart(t *testing.T) {
	s := newTestServer(t, config.GRPCConfig{Port: 0})
	go func() { _ = s.Start() }()
	require.Eventually(t, func() bool {
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.started
	}, time.Second, 10*time.Millisecond)
	assert.Error(t, s.Start())
}

func TestServer_StopIsIdempotent(t *testing.T) {
	s, err := NewServer(config.GRPCConfig{Port: 0}, WithHost("127.0.0.1"), WithGracefulTimeout(time.Second))
	require.NoError(t, err)
	assert.NoError(t, s.Stop(context.Background()))
	assert.NoError(t, s.Stop(context.Background()))
}

func TestServer_WatchHealthStopsWithContext(t *testing.T) {
	var calls atomic.Int32
	prober := health.NewProber(time.Second, nil, nil,
		health.NewChecker("minio", func(context.Context) error { calls.Add(1); return nil }))
	s := newTestServer(t, config.GRPCConfig{Port: 0}, WithProber(prober))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.WatchHealth(ctx, 10*time.Millisecond)
		close(done)
	}()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("WatchHealth did not return")
	}
	assert.GreaterOrEqual(t, calls.Load(), int32(1))
}

func TestRecoveryUnaryInterceptor(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	interceptor := recoveryUnaryInterceptor(logging.NewLoggerFromCore(core))
	info := &grpc.UnaryServerInfo{FullMethod: "/biodockviz.v1.Analysis/Analyze"}

	resp, err := interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		panic("boom")
	})
	assert.Nil(t, resp)
	assert.Equal(t, codes.Internal, status.Code(err))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "boom", logs.All()[0].ContextMap()["panic"])

	resp, err = interceptor(context.Background(), nil, info, func(context.Context, interface{}) (interface{}, error) {
		return "ok", nil
	})
	assert.NoError(t, err)
	assert.Equal(t, "ok", resp)
}

func TestLoggingUnaryInterceptor(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	interceptor := loggingUnaryInterceptor(logging.NewLoggerFromCore(core))
	ok := func(context.Context, interface{}) (interface{}, error) { return nil, nil }
	fail := func(context.Context, interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "missing")
	}

	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, ok)
	assert.Equal(t, 0, logs.Len())

	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc.A/Get"}, ok)
	_, _ = interceptor(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/svc.A/Get"}, fail)
	require.Equal(t, 2, logs.Len())
	assert.Equal(t, zap.InfoLevel, logs.All()[0].Level)
	assert.Equal(t, "OK", logs.All()[0].ContextMap()["code"])
	assert.Equal(t, zap.WarnLevel, logs.All()[1].Level)
	assert.Equal(t, "NotFound", logs.All()[1].ContextMap()["code"])
}

func TestMetricsUnaryInterceptor_NilMetrics(t *testing.T) {
	interceptor := metricsUnaryInterceptor(nil)
	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/a.B/C"},
		func(_ context.Context, req interface{}) (interface{}, error) { return req, nil })
	assert.NoError(t, err)
	assert.Equal(t, "req", resp)
}

func TestSplitMethodName(t *testing.T) {
	tests := []struct {
		in, service, method string
	}{
		{"/grpc.health.v1.Health/Check", "grpc.health.v1.Health", "Check"},
		{"/pkg.Svc/Do", "pkg.Svc", "Do"},
		{"Bare", "unknown", "Bare"},
	}
	for _, tt := range tests {
		service, method := splitMethodName(tt.in)
		assert.Equal(t, tt.service, service, tt.in)
		assert.Equal(t, tt.method, method, tt.in)
	}
}
