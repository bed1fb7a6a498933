package grpc_test

import (
	"context"
	"errors"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/test/bufconn"

	pkggrpc "github.com/shashiranjanraj/foodie/pkg/grpc"
)

func dial(t *testing.T, srv *pkggrpc.Server) healthpb.HealthClient {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	go srv.Serve(lis) //nolint:errcheck
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return healthpb.NewHealthClient(conn)
}

func check(t *testing.T, c healthpb.HealthClient) healthpb.HealthCheckResponse_ServingStatus {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Check(ctx, &healthpb.HealthCheckRequest{})
	require.NoError(t, err)
	return resp.Status
}

func TestHealthServing(t *testing.T) {
	c := dial(t, pkggrpc.New(func(context.Context) error { return nil }))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c))
}

func TestHealthFollowsProbe(t *testing.T) {
	var down atomic.Bool
	down.Store(true)

	srv := pkggrpc.New(func(context.Context) error {
		if down.Load() {
			return errors.New("database unreachable")
		}
		return nil
	})
	srv.Every = 10 * time.Millisecond
	c := dial(t, srv)

	assert.Equal(t, healthpb.HealthCheckResponse_NOT_SERVING, check(t, c))

	down.Store(false)
	assert.Eventually(t, func() bool {
		return check(t, c) == healthpb.HealthCheckResponse_SERVING
	}, time.Second, 10*time.Millisecond)
}

func TestNilProbeServes(t *testing.T) {
	c := dial(t, pkggrpc.New(nil))
	assert.Equal(t, healthpb.HealthCheckResponse_SERVING, check(t, c))
}
