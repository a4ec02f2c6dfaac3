// Package server implements the factorial computation server.
//
// The server owns one TCP listener and handles connections strictly one at a
// time: a connection is accepted, served to completion, and closed before the
// next accept. Parallelism lives inside a request, not across clients — each
// valid request's range is split across a fixed number of worker goroutines
// and their partial products are folded into the response after all workers
// have joined.
//
// Per-connection state machine:
//
//	AWAIT_REQUEST -> VALIDATING -> COMPUTING -> SENDING_RESPONSE -> AWAIT_REQUEST
//	                                                             -> CLOSED
//
// A clean EOF in AWAIT_REQUEST closes the connection normally. A short frame
// or an invalid request aborts the connection without a response; the server
// keeps accepting new connections either way.
package server

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync/atomic"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dreamware/modfact/internal/modmath"
	"github.com/dreamware/modfact/internal/partition"
	"github.com/dreamware/modfact/internal/protocol"
)

// Stats counts server activity since startup. Counters are written with
// atomic operations; read a consistent snapshot through Server.Stats.
type Stats struct {
	Connections    uint64 // connections accepted
	RequestsServed uint64 // responses successfully written
	FramesRejected uint64 // connections aborted on short or invalid frames
}

// Server computes modular range products for connected clients.
type Server struct {
	workers int
	logger  *zap.Logger
	ln      net.Listener
	stats   Stats
}

// Opt configures a Server.
type Opt func(*Server)

// WithLogger sets the server's logger. The default discards everything.
func WithLogger(logger *zap.Logger) Opt {
	return func(s *Server) {
		s.logger = logger
	}
}

// New creates a server that splits each request across workers goroutines.
// Counts below one are raised to one.
func New(workers int, opts ...Opt) *Server {
	if workers < 1 {
		workers = 1
	}
	s := &Server{
		workers: workers,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen binds the server to addr. It must be called once before Serve.
func (s *Server) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	s.ln = ln
	s.logger.Info("server listening",
		zap.String("addr", ln.Addr().String()),
		zap.Int("workers", s.workers))
	return nil
}

// Addr returns the bound listen address, useful when listening on port 0.
func (s *Server) Addr() net.Addr {
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Serve accepts and handles connections until the listener is closed. Each
// connection is served fully before the next accept. Returns net.ErrClosed
// after Close.
func (s *Server) Serve() error {
	if s.ln == nil {
		return errors.New("serve before listen")
	}
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			s.logger.Warn("could not establish new connection", zap.Error(err))
			continue
		}
		atomic.AddUint64(&s.stats.Connections, 1)
		s.handleConn(conn)
	}
}

// Close shuts down the listener, unblocking Serve.
func (s *Server) Close() error {
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

// Stats returns a snapshot of the server's counters.
func (s *Server) Stats() Stats {
	return Stats{
		Connections:    atomic.LoadUint64(&s.stats.Connections),
		RequestsServed: atomic.LoadUint64(&s.stats.RequestsServed),
		FramesRejected: atomic.LoadUint64(&s.stats.FramesRejected),
	}
}

// handleConn runs the request/response loop for one connection. The peer may
// send any number of requests back to back; the loop ends on clean EOF, a
// protocol violation, an invalid request, or a failed send.
func (s *Server) handleConn(conn net.Conn) {
	defer conn.Close()
	peer := conn.RemoteAddr().String()
	s.logger.Debug("connection accepted", zap.String("peer", peer))

	for {
		req, err := protocol.ReadRequest(conn)
		if errors.Is(err, io.EOF) {
			s.logger.Debug("connection closed by peer", zap.String("peer", peer))
			return
		}
		if err != nil {
			atomic.AddUint64(&s.stats.FramesRejected, 1)
			s.logger.Warn("client sent wrong data format",
				zap.String("peer", peer), zap.Error(err))
			return
		}

		s.logger.Info("request received",
			zap.String("peer", peer),
			zap.Uint64("begin", req.Begin),
			zap.Uint64("end", req.End),
			zap.Uint64("mod", req.Mod))

		// Invalid requests abort the connection without a response.
		if err := req.Validate(); err != nil {
			atomic.AddUint64(&s.stats.FramesRejected, 1)
			s.logger.Warn("rejecting invalid request",
				zap.String("peer", peer), zap.Error(err))
			return
		}

		total := s.compute(req)

		if err := protocol.WriteResponse(conn, protocol.Response{Result: total}); err != nil {
			s.logger.Warn("can't send data to client",
				zap.String("peer", peer), zap.Error(err))
			return
		}
		atomic.AddUint64(&s.stats.RequestsServed, 1)
	}
}

// compute fans the request's range out across worker goroutines and folds
// their partial products after all of them have joined. Workers share
// nothing while computing; each owns its input range and its output slot.
func (s *Server) compute(req protocol.Request) uint64 {
	workers := partition.ClampWorkers(s.workers, req.End-req.Begin+1)
	ranges, err := partition.Split(req.Begin, req.End, workers)
	if err != nil {
		// Unreachable after Validate plus clamping, but a partitioning bug
		// must not kill the connection loop with a nil slice.
		s.logger.Error("partitioning failed", zap.Error(err))
		return 1 % req.Mod
	}

	// Slots start at the multiplicative identity, so a worker that failed
	// and never produced a value is simply absent from the product. That
	// partial-credit behavior matches the original system and is logged
	// loudly below rather than failing the request.
	partials := make([]uint64, len(ranges))
	for i := range partials {
		partials[i] = 1
	}

	var eg errgroup.Group
	for i, r := range ranges {
		i, r := i, r
		s.logger.Debug("worker assigned",
			zap.Int("worker", i),
			zap.Stringer("range", r),
			zap.Uint64("mod", req.Mod))
		eg.Go(func() error {
			p := modmath.RangeProduct(r.Begin, r.End, req.Mod)
			s.logger.Debug("worker finished",
				zap.Int("worker", i),
				zap.Stringer("range", r),
				zap.Uint64("partial", p))
			partials[i] = p
			return nil
		})
	}
	// Hard barrier: the response must not be sent before every worker is done.
	if err := eg.Wait(); err != nil {
		s.logger.Warn("worker failed; its contribution is omitted from the result",
			zap.Error(err))
	}

	total := 1 % req.Mod
	for _, p := range partials {
		total = modmath.MulMod(total, p, req.Mod)
	}
	s.logger.Info("request computed",
		zap.Uint64("begin", req.Begin),
		zap.Uint64("end", req.End),
		zap.Uint64("result", total))
	return total
}
