package client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/dreamware/modfact/internal/cluster"
	"github.com/dreamware/modfact/internal/modmath"
	"github.com/dreamware/modfact/internal/server"
)

// startServer brings up a real factorial server on a loopback port and
// returns its endpoint.
func startServer(t *testing.T, workers int) cluster.Endpoint {
	t.Helper()
	srv := server.New(workers, server.WithLogger(zaptest.NewLogger(t)))
	require.NoError(t, srv.Listen("127.0.0.1:0"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		srv.Serve() //nolint:errcheck // returns net.ErrClosed on shutdown
	}()
	// Wait for the accept loop to drain so nothing logs after the test ends.
	t.Cleanup(func() {
		srv.Close()
		<-done
	})

	addr := srv.Addr().(*net.TCPAddr)
	return cluster.Endpoint{Host: "127.0.0.1", Port: addr.Port}
}

// deadEndpoint returns an endpoint that refuses connections: a port that was
// just bound and released again.
func deadEndpoint(t *testing.T) cluster.Endpoint {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())
	return cluster.Endpoint{Host: "127.0.0.1", Port: port}
}

func TestComputeSingleServer(t *testing.T) {
	ep := startServer(t, 1)
	c := New(WithLogger(zaptest.NewLogger(t)))

	res, err := c.Compute(context.Background(), 10, 1000000007, []cluster.Endpoint{ep})
	require.NoError(t, err)
	assert.Equal(t, uint64(3628800), res.Value)
	assert.False(t, res.Degraded())
	assert.Len(t, res.Servers, 1)
}

func TestComputeMatchesSequentialReference(t *testing.T) {
	fleet := []cluster.Endpoint{
		startServer(t, 2),
		startServer(t, 2),
		startServer(t, 3),
	}
	c := New(WithLogger(zaptest.NewLogger(t)))

	const k, mod = 20, 97
	res, err := c.Compute(context.Background(), k, mod, fleet)
	require.NoError(t, err)

	want := modmath.RangeProduct(1, k, mod)
	assert.Equal(t, want, res.Value, "distributed result must match direct computation")
	assert.Zero(t, res.Skipped)
}

func TestComputeShortCircuitsSmallK(t *testing.T) {
	dials := 0
	c := New(WithDialer(func(ctx context.Context, addr string) (net.Conn, error) {
		dials++
		return nil, assert.AnError
	}))
	fleet := []cluster.Endpoint{{Host: "127.0.0.1", Port: 1}}

	for _, k := range []uint64{0, 1} {
		res, err := c.Compute(context.Background(), k, 1000, fleet)
		require.NoError(t, err)
		assert.Equal(t, uint64(1), res.Value)
		assert.Empty(t, res.Servers)
	}
	// mod 1 folds everything to zero.
	res, err := c.Compute(context.Background(), 1, 1, fleet)
	require.NoError(t, err)
	assert.Zero(t, res.Value)

	assert.Zero(t, dials, "k <= 1 must not open connections")
}

func TestComputeSkipsFailedServer(t *testing.T) {
	alive := startServer(t, 2)
	dead := deadEndpoint(t)
	c := New(WithLogger(zaptest.NewLogger(t)), WithTimeout(2*time.Second))

	const k, mod = 100, 1000000007
	// Fleet order fixes the range assignment: the dead server owns the
	// second half, so the degraded value is the first half's product.
	res, err := c.Compute(context.Background(), k, mod, []cluster.Endpoint{alive, dead})
	require.NoError(t, err, "a failed server degrades the result, it does not error")

	assert.Equal(t, 1, res.Skipped)
	assert.True(t, res.Degraded())
	require.Len(t, res.Servers, 2)
	assert.False(t, res.Servers[0].Failed())
	assert.True(t, res.Servers[1].Failed())

	want := modmath.RangeProduct(res.Servers[0].Range.Begin, res.Servers[0].Range.End, mod)
	assert.Equal(t, want, res.Value)
}

func TestComputeAllServersFailed(t *testing.T) {
	c := New(WithTimeout(time.Second))
	res, err := c.Compute(context.Background(), 10, 97,
		[]cluster.Endpoint{deadEndpoint(t), deadEndpoint(t)})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, uint64(1), res.Value, "empty fold is the identity")
}

func TestComputeClampsFleetToProblemSize(t *testing.T) {
	fleet := []cluster.Endpoint{
		startServer(t, 1),
		startServer(t, 1),
		startServer(t, 1),
	}
	c := New(WithLogger(zaptest.NewLogger(t)))

	// k=2 can feed at most two servers; the third stays idle.
	res, err := c.Compute(context.Background(), 2, 1000, fleet)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), res.Value)
	assert.Len(t, res.Servers, 2)
}

func TestComputeInputValidation(t *testing.T) {
	c := New()

	t.Run("zero modulus", func(t *testing.T) {
		_, err := c.Compute(context.Background(), 10, 0, []cluster.Endpoint{{Host: "x", Port: 1}})
		assert.ErrorIs(t, err, ErrZeroModulus)
	})

	t.Run("empty fleet", func(t *testing.T) {
		_, err := c.Compute(context.Background(), 10, 7, nil)
		assert.ErrorIs(t, err, ErrNoServers)
	})
}
