// Package client implements the coordination side of the distributed
// factorial computation.
//
// The client owns the top-level split: it partitions [1, k] across the
// configured server fleet, runs one round trip per server concurrently, and
// folds the partial products the servers return into the final k! mod m.
//
// Failure handling is skip-and-continue: a server that cannot be reached, or
// that breaks the protocol mid round trip, loses its contribution and is
// reported; the computation finishes over whichever subset succeeded. There
// are no retries and no rebalancing of a failed server's range.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/modfact/internal/cluster"
	"github.com/dreamware/modfact/internal/modmath"
	"github.com/dreamware/modfact/internal/partition"
	"github.com/dreamware/modfact/internal/protocol"
)

// DefaultTimeout bounds the dial and every read/write of one round trip.
const DefaultTimeout = 5 * time.Second

// ErrNoServers is returned when Compute is given an empty fleet.
var ErrNoServers = errors.New("no servers")

// ErrZeroModulus is returned when the modulus is zero; the modular product
// is undefined and no work is dispatched.
var ErrZeroModulus = errors.New("modulus must be > 0")

// ServerResult records the outcome of one server's round trip.
type ServerResult struct {
	Endpoint cluster.Endpoint
	Range    partition.Range
	Partial  uint64
	Err      error // nil on success
}

// Failed reports whether the server's contribution was lost.
func (r ServerResult) Failed() bool {
	return r.Err != nil
}

// Result is the outcome of one distributed computation.
type Result struct {
	Value   uint64         // folded product over all successful servers
	Servers []ServerResult // per-server outcomes, in fleet order
	Skipped int            // servers whose contribution was lost
}

// Degraded reports whether any server's range is missing from Value.
func (r Result) Degraded() bool {
	return r.Skipped > 0
}

// Client runs distributed factorial computations against a static fleet.
type Client struct {
	timeout time.Duration
	logger  *zap.Logger
	dial    func(ctx context.Context, addr string) (net.Conn, error)
}

// Opt configures a Client.
type Opt func(*Client)

// WithLogger sets the client's logger. The default discards everything.
func WithLogger(logger *zap.Logger) Opt {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout overrides DefaultTimeout for dials and socket deadlines.
func WithTimeout(d time.Duration) Opt {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithDialer replaces the TCP dialer, primarily for tests.
func WithDialer(dial func(ctx context.Context, addr string) (net.Conn, error)) Opt {
	return func(c *Client) {
		c.dial = dial
	}
}

// New creates a Client.
func New(opts ...Opt) *Client {
	c := &Client{
		timeout: DefaultTimeout,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.dial == nil {
		c.dial = func(ctx context.Context, addr string) (net.Conn, error) {
			d := net.Dialer{Timeout: c.timeout}
			return d.DialContext(ctx, "tcp", addr)
		}
	}
	return c
}

// Compute calculates k! mod m across the fleet.
//
// The interval [1, k] is split into one contiguous range per server; all
// round trips run concurrently and Compute waits for every one of them,
// successful or not, before folding. k <= 1 short-circuits to 1 mod m
// without opening a single connection.
//
// Compute returns an error only for unusable inputs (zero modulus, empty
// fleet). Server failures degrade the result instead: inspect
// Result.Skipped or Result.Degraded.
func (c *Client) Compute(ctx context.Context, k, mod uint64, fleet []cluster.Endpoint) (Result, error) {
	if mod == 0 {
		return Result{}, ErrZeroModulus
	}
	if k <= 1 {
		// 0! = 1! = 1; nothing to distribute.
		return Result{Value: 1 % mod}, nil
	}
	if len(fleet) == 0 {
		return Result{}, ErrNoServers
	}

	// More servers than factors: the surplus servers get no range at all.
	n := partition.ClampWorkers(len(fleet), k)
	if n < len(fleet) {
		c.logger.Info("fleet larger than problem, using a subset",
			zap.Int("fleet", len(fleet)),
			zap.Int("used", n))
	}

	ranges, err := partition.Split(1, k, n)
	if err != nil {
		return Result{}, fmt.Errorf("partition [1, %d] across %d servers: %w", k, n, err)
	}

	results := make([]ServerResult, n)
	var eg errgroup.Group
	for i := range results {
		i := i
		ep, rng := fleet[i], ranges[i]
		results[i] = ServerResult{Endpoint: ep, Range: rng}
		c.logger.Info("server assigned range",
			zap.Stringer("server", ep),
			zap.Stringer("range", rng))
		eg.Go(func() error {
			partial, err := c.roundTrip(ctx, ep, rng, mod)
			if err != nil {
				// Recorded, not returned: one lost server must not stop
				// the others or the final fold.
				results[i].Err = err
				return nil
			}
			results[i].Partial = partial
			return nil
		})
	}
	// Barrier: fold only after every round trip has finished.
	_ = eg.Wait()

	res := Result{Value: 1 % mod, Servers: results}
	for _, sr := range results {
		if sr.Failed() {
			res.Skipped++
			c.logger.Warn("server failed, skipping its result",
				zap.Stringer("server", sr.Endpoint),
				zap.Stringer("range", sr.Range),
				zap.Error(sr.Err))
			continue
		}
		c.logger.Info("server returned result",
			zap.Stringer("server", sr.Endpoint),
			zap.Stringer("range", sr.Range),
			zap.Uint64("partial", sr.Partial))
		res.Value = modmath.MulMod(res.Value, sr.Partial, mod)
	}
	return res, nil
}

// roundTrip performs one request/response exchange with one server. Every
// socket operation is bounded by the client timeout; a timeout is
// indistinguishable from any other connection failure.
func (c *Client) roundTrip(ctx context.Context, ep cluster.Endpoint, rng partition.Range, mod uint64) (uint64, error) {
	conn, err := c.dial(ctx, ep.Addr())
	if err != nil {
		return 0, fmt.Errorf("connect to %s: %w", ep, err)
	}
	defer conn.Close()

	if err := conn.SetDeadline(time.Now().Add(c.timeout)); err != nil {
		return 0, fmt.Errorf("set deadline on %s: %w", ep, err)
	}

	req := protocol.Request{Begin: rng.Begin, End: rng.End, Mod: mod}
	if err := protocol.WriteRequest(conn, req); err != nil {
		return 0, fmt.Errorf("send to %s: %w", ep, err)
	}

	resp, err := protocol.ReadResponse(conn)
	if err != nil {
		return 0, fmt.Errorf("receive from %s: %w", ep, err)
	}
	return resp.Result, nil
}
