// Package server serves a Processor over framed connections.
//
// Request processing pipeline:
//
//	Accept conn → ants pool worker (one per connection)
//	  → FrameTransport → protocol
//	    → loop: Processor.Process (one call at a time, in order)
//
// Calls on one connection are strictly sequential: the next envelope is read only
// after the previous reply was flushed. Concurrency comes from connections.
package server

import (
	"context"
	"io"
	"mini-thrift/log"
	"mini-thrift/protocol"
	"mini-thrift/transport"
	"net"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"
)

// DefaultMaxConns bounds concurrently served connections.
const DefaultMaxConns = 1024

// Server accepts connections and runs a Processor on each.
type Server struct {
	processor *Processor
	format    protocol.Format
	conf      *thrift.TConfiguration
	tropts    []transport.Option
	maxConns  int
	logger    *zap.Logger

	mu       sync.Mutex
	listener net.Listener
	conns    map[net.Conn]struct{}
	pool     *ants.Pool
	wg       sync.WaitGroup // tracks served connections for graceful shutdown
	shutdown atomic.Bool    // set before the listener closes so Accept errors read as intentional
}

// Option configures a Server.
type Option func(*Server)

// WithFormat sets the wire format; both peers must agree.
func WithFormat(f protocol.Format) Option {
	return func(s *Server) { s.format = f }
}

// WithMaxMessageSize bounds a single decoded message.
func WithMaxMessageSize(n int32) Option {
	return func(s *Server) { s.conf = protocol.Configuration(n) }
}

// WithTransport passes options to every connection's FrameTransport.
func WithTransport(opts ...transport.Option) Option {
	return func(s *Server) { s.tropts = append(s.tropts, opts...) }
}

// WithMaxConns bounds concurrently served connections. Connections over the
// limit are closed right after Accept.
func WithMaxConns(n int) Option {
	return func(s *Server) { s.maxConns = n }
}

// WithLogger sets the logger; the default is log.L().
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a server for p.
func NewServer(p *Processor, opts ...Option) (*Server, error) {
	s := &Server{
		processor: p,
		format:    protocol.FormatBinary,
		conf:      protocol.Configuration(0),
		maxConns:  DefaultMaxConns,
		logger:    log.L(),
		conns:     make(map[net.Conn]struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	if !s.format.Valid() {
		return nil, errors.Newf("server: unsupported format %d", s.format)
	}
	s.logger = s.logger.Named("server")
	pool, err := ants.NewPool(s.maxConns,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(v any) {
			s.logger.Error("connection worker panicked", zap.Any("panic", v), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, errors.Wrap(err, "server: create worker pool")
	}
	s.pool = pool
	return s, nil
}

// Serve listens on the address and blocks in the accept loop.
func (s *Server) Serve(network, address string) error {
	l, err := net.Listen(network, address)
	if err != nil {
		return errors.Wrapf(err, "server: listen %s %s", network, address)
	}
	return s.ServeListener(l)
}

// ServeListener runs the accept loop on l until Shutdown.
func (s *Server) ServeListener(l net.Listener) error {
	s.mu.Lock()
	s.listener = l
	s.mu.Unlock()
	s.logger.Info("serving",
		zap.String("service", s.processor.Service().Name),
		zap.String("addr", l.Addr().String()),
		zap.Stringer("format", s.format),
		zap.Strings("methods", s.processor.MethodNames()))

	for {
		conn, err := l.Accept()
		if err != nil {
			if s.shutdown.Load() {
				return nil
			}
			return errors.Wrap(err, "server: accept")
		}
		s.track(conn)
		s.wg.Add(1)
		if err := s.pool.Submit(func() { s.handleConn(conn) }); err != nil {
			s.wg.Done()
			s.untrack(conn)
			_ = conn.Close()
			s.logger.Warn("connection rejected", zap.String("remote", conn.RemoteAddr().String()), zap.Error(err))
		}
	}
}

// Addr returns the listening address, or nil before Serve.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

func (s *Server) track(conn net.Conn) {
	s.mu.Lock()
	s.conns[conn] = struct{}{}
	s.mu.Unlock()
}

func (s *Server) untrack(conn net.Conn) {
	s.mu.Lock()
	delete(s.conns, conn)
	s.mu.Unlock()
}

// handleConn serves calls on one connection until the peer goes away or a call
// fails at the protocol level.
func (s *Server) handleConn(conn net.Conn) {
	defer s.wg.Done()
	defer s.untrack(conn)
	logger := s.logger.With(zap.String("remote", conn.RemoteAddr().String()))

	tr, err := transport.New(conn, append([]transport.Option{transport.WithFormat(s.format)}, s.tropts...)...)
	if err != nil {
		_ = conn.Close()
		logger.Error("transport setup failed", zap.Error(err))
		return
	}
	defer tr.Close()
	proto := s.format.New(tr, s.conf)

	ctx := context.Background()
	for {
		if err := s.processor.Process(ctx, proto, proto); err != nil {
			if connectionGone(err) || s.shutdown.Load() {
				logger.Debug("connection closed", zap.Error(err))
			} else {
				logger.Warn("connection dropped", zap.Error(err))
			}
			return
		}
	}
}

// connectionGone reports errors that mean the peer hung up rather than misbehaved.
func connectionGone(err error) bool {
	var te thrift.TTransportException
	if errors.As(err, &te) && te.TypeId() == thrift.END_OF_FILE {
		return true
	}
	return errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrDeadlineExceeded)
}

// Shutdown performs graceful shutdown:
//  1. Set the shutdown flag (so the Accept error is recognized as intentional)
//  2. Close the listener (stop accepting new connections)
//  3. Expire reads on every connection; a call already read still gets its reply
//  4. Wait for connections to finish (with timeout), then close what is left
func (s *Server) Shutdown(timeout time.Duration) error {
	s.shutdown.Store(true)
	s.mu.Lock()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	for conn := range s.conns {
		_ = conn.SetReadDeadline(time.Now())
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-time.After(timeout):
		s.mu.Lock()
		for conn := range s.conns {
			_ = conn.Close()
		}
		s.mu.Unlock()
		err = errors.Newf("server: timeout after %s waiting for connections to finish", timeout)
	}
	s.pool.Release()
	return err
}
