// Package client implements the calling side: encode the arguments, send one
// Call envelope, wait for the reply and collapse its result envelope.
//
//	Call[R](ctx, c, method, args)
//	  → WriteMessage(name, CALL, seq 0) → args struct → flush
//	  → ReadMessage → name/kind checks → result envelope → R or error
//
// A Client runs one call at a time; concurrent callers queue on its mutex.
package client

import (
	"context"
	"io"
	"mini-thrift/codec"
	"mini-thrift/log"
	"mini-thrift/message"
	"mini-thrift/protocol"
	"mini-thrift/rpcerr"
	"mini-thrift/service"
	"mini-thrift/transport"
	"net"
	"reflect"
	"sync"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// Client sends calls over an input/output protocol pair.
type Client struct {
	in, out thrift.TProtocol
	closer  io.Closer
	logger  *zap.Logger
	mu      sync.Mutex
}

// New creates a client reading replies from in and writing calls to out.
func New(in, out thrift.TProtocol) *Client {
	return &Client{in: in, out: out, logger: log.L().Named("client")}
}

// NewWithProtocol creates a client using p in both directions.
func NewWithProtocol(p thrift.TProtocol) *Client {
	return New(p, p)
}

type dialOptions struct {
	format     protocol.Format
	maxMessage int32
	timeout    time.Duration
	transport  []transport.Option
	logger     *zap.Logger
}

// DialOption configures Dial.
type DialOption func(*dialOptions)

// WithFormat sets the wire format; it must match the server's.
func WithFormat(f protocol.Format) DialOption {
	return func(o *dialOptions) { o.format = f }
}

// WithMaxMessageSize bounds a single decoded reply.
func WithMaxMessageSize(n int32) DialOption {
	return func(o *dialOptions) { o.maxMessage = n }
}

// WithDialTimeout bounds connection setup.
func WithDialTimeout(d time.Duration) DialOption {
	return func(o *dialOptions) { o.timeout = d }
}

// WithTransport passes options to the FrameTransport.
func WithTransport(opts ...transport.Option) DialOption {
	return func(o *dialOptions) { o.transport = append(o.transport, opts...) }
}

// WithLogger sets the logger; the default is log.L().
func WithLogger(l *zap.Logger) DialOption {
	return func(o *dialOptions) { o.logger = l }
}

// Dial connects to a server and frames the connection the way server.Server does.
func Dial(ctx context.Context, network, addr string, opts ...DialOption) (*Client, error) {
	o := dialOptions{format: protocol.FormatBinary, timeout: 5 * time.Second, logger: log.L()}
	for _, opt := range opts {
		opt(&o)
	}
	d := net.Dialer{Timeout: o.timeout}
	conn, err := d.DialContext(ctx, network, addr)
	if err != nil {
		return nil, errors.Wrapf(err, "client: dial %s", addr)
	}
	return NewConn(conn, o.format, o.maxMessage, o.logger, o.transport...)
}

// NewConn frames an established connection.
func NewConn(conn io.ReadWriteCloser, f protocol.Format, maxMessage int32, logger *zap.Logger, opts ...transport.Option) (*Client, error) {
	tr, err := transport.New(conn, append([]transport.Option{transport.WithFormat(f)}, opts...)...)
	if err != nil {
		_ = conn.Close()
		return nil, err
	}
	p := f.New(tr, protocol.Configuration(maxMessage))
	c := NewWithProtocol(p)
	c.closer = tr
	if logger != nil {
		c.logger = logger.Named("client")
	}
	return c, nil
}

// Close closes the underlying connection, if the client owns one.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// Invoke performs one call. args must be a pointer to the method's argument
// struct. The result is the success value (result.Void{} for void methods); a
// declared exception comes back as *result.Error.
func (c *Client) Invoke(ctx context.Context, m *service.MethodSpec, args any) (any, error) {
	av := reflect.ValueOf(args)
	if !av.IsValid() || av.Type() != reflect.PointerTo(m.Args) || av.IsNil() {
		return nil, rpcerr.WrapErrInvalidSchema("client: %s takes *%v, got %T", m.Name, m.Args, args)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	// Step 1: send the call
	call := message.Header{Name: m.Name, Kind: message.Call, SeqID: 0}
	body := message.BodyFunc(func(ctx context.Context, p thrift.TProtocol) error {
		return codec.EncodeValue(ctx, p, av.Elem())
	})
	if err := message.Write(ctx, c.out, call, body); err != nil {
		return nil, errors.Wrapf(err, "client: send %s", m.Name)
	}

	// Step 2: read the reply envelope
	h, err := message.ReadBegin(ctx, c.in)
	if err != nil {
		return nil, errors.Wrapf(err, "client: receive %s", m.Name)
	}
	switch h.Kind {
	case message.Reply:
	case message.Exception:
		x, err := message.ReadException(ctx, c.in)
		if err != nil {
			return nil, err
		}
		c.logger.Debug("server raised application exception", zap.String("method", m.Name), zap.Int32("type", x.TypeId()), zap.Error(x))
		return nil, errors.Wrapf(errors.Mark(x, rpcerr.ErrProtocolViolation), "client: %s", m.Name)
	default:
		return nil, rpcerr.WrapErrProtocolViolation("client: %s answered with a %s message", m.Name, h.Kind)
	}
	if h.Name != m.Name {
		return nil, rpcerr.WrapErrProtocolViolation("client: called %q, reply is for %q", m.Name, h.Name)
	}

	// Step 3: decode and collapse the result envelope
	env, err := m.Result.Decode(ctx, c.in)
	if err != nil {
		return nil, err
	}
	if err := message.ReadEnd(ctx, c.in); err != nil {
		return nil, err
	}
	return env.Outcome()
}

// Call is Invoke with a typed success value.
func Call[R any](ctx context.Context, c *Client, m *service.MethodSpec, args any) (R, error) {
	var zero R
	v, err := c.Invoke(ctx, m, args)
	if err != nil {
		return zero, err
	}
	r, ok := v.(R)
	if !ok {
		return zero, rpcerr.WrapErrInvalidSchema("client: %s returns %T, not %T", m.Name, v, zero)
	}
	return r, nil
}
