package server

import (
	"context"
	"mini-thrift/client"
	"mini-thrift/internal/fixture"
	"mini-thrift/protocol"
	"mini-thrift/result"
	"mini-thrift/rpcerr"
	"mini-thrift/service"
	"mini-thrift/transport"
	"net"
	"testing"
	"time"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
	"go.uber.org/zap"
)

// startServer serves the combined fixture service on a loopback port.
func startServer(t *testing.T, impl *fixture.Impl, opts ...Option) (*Server, <-chan error) {
	t.Helper()
	return startService(t, fixture.CombinedService, fixture.CombinedBindings(impl), opts...)
}

func startService(t *testing.T, svc *service.Service, bindings []service.Binding, opts ...Option) (*Server, <-chan error) {
	t.Helper()
	proc, err := NewProcessor(svc, bindings, WithProcessorLogger(zap.NewNop()))
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	opts = append([]Option{WithLogger(zap.NewNop())}, opts...)
	srv, err := NewServer(proc, opts...)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	done := make(chan error, 1)
	go func() { done <- srv.ServeListener(l) }()
	return srv, done
}

func dial(t *testing.T, srv *Server, opts ...client.DialOption) *client.Client {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	opts = append([]client.DialOption{client.WithLogger(zap.NewNop())}, opts...)
	c, err := client.Dial(ctx, "tcp", listenAddr(t, srv), opts...)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func listenAddr(t *testing.T, srv *Server) string {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if a := srv.Addr(); a != nil {
			return a.String()
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("server did not start listening")
	return ""
}

func TestServerEndToEnd(t *testing.T) {
	impl := fixture.NewImpl(nil)
	srv, done := startServer(t, impl)
	c := fixture.NewClient(dial(t, srv))
	ctx := context.Background()

	if err := c.Ping(ctx); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}
	echoed, err := c.Echo(ctx, fixture.Simple{Key: "hello"})
	if err != nil || echoed.Key != "hello" {
		t.Fatalf("Echo = %+v, %v", echoed, err)
	}
	op, err := c.Operation(ctx, "Div", 0)
	if err != nil || op != fixture.OperationDiv {
		t.Fatalf("Operation = %v, %v", op, err)
	}
	nested, err := c.GetStruct(ctx, 5)
	if err != nil {
		t.Fatalf("GetStruct failed: %v", err)
	}
	if got := nested.Deeply[0][0][0][0][0]; got != 5 {
		t.Fatalf("GetStruct innermost value = %d, want 5", got)
	}
	if impl.Pings() != 1 {
		t.Errorf("Pings = %d, want 1", impl.Pings())
	}

	if err := srv.Shutdown(time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("ServeListener returned %v after shutdown", err)
	}
}

func TestServerUnknownEnumDropsConnection(t *testing.T) {
	srv, _ := startServer(t, fixture.NewImpl(nil))
	defer srv.Shutdown(time.Second)
	c := fixture.NewClient(dial(t, srv))

	// The reply cannot be written, so the call fails instead of carrying 99.
	if op, err := c.Operation(context.Background(), "nope", 99); err == nil {
		t.Fatalf("expected the call to fail, got %v", op)
	}
}

func TestServerUnknownMethod(t *testing.T) {
	srv, _ := startService(t, fixture.EchoService, fixture.EchoBindings(fixture.NewImpl(nil)))
	defer srv.Shutdown(time.Second)
	c := fixture.NewClient(dial(t, srv))

	_, err := c.GetStruct(context.Background(), 1)
	if !rpcerr.IsProtocolViolation(err) {
		t.Fatalf("expected protocol violation, got %v", err)
	}
	var x thrift.TApplicationException
	if !errors.As(err, &x) || x.TypeId() != thrift.UNKNOWN_METHOD {
		t.Fatalf("expected UNKNOWN_METHOD application exception, got %v", err)
	}
}

func TestServerDeclaredException(t *testing.T) {
	impl := fixture.NewImpl(nil)
	impl.Fail = true
	srv, _ := startService(t, fixture.ServiceWithException, fixture.ThrowingBindings(impl.Throwing()))
	defer srv.Shutdown(time.Second)

	c := fixture.NewClient(dial(t, srv))
	_, err := c.ThrowingOperation(context.Background())
	var rerr *result.Error
	if !errors.As(err, &rerr) || rerr.Exception != "bad" || rerr.ID != 1 {
		t.Fatalf("expected declared exception, got %v", err)
	}
	var payload *fixture.Exception
	if !errors.As(err, &payload) || payload.Message != "operation failed" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestServerCompactCompressed(t *testing.T) {
	srv, _ := startServer(t, fixture.NewImpl(nil),
		WithFormat(protocol.FormatCompact),
		WithTransport(transport.WithCompression(16)))
	defer srv.Shutdown(time.Second)
	c := fixture.NewClient(dial(t, srv,
		client.WithFormat(protocol.FormatCompact),
		client.WithTransport(transport.WithCompression(16))))

	key := "a key long enough to cross the compression threshold"
	got, err := c.Echo(context.Background(), fixture.Simple{Key: key})
	if err != nil || got.Key != key {
		t.Fatalf("Echo = %+v, %v", got, err)
	}
}

func TestServerFormatMismatchDropsConnection(t *testing.T) {
	srv, _ := startServer(t, fixture.NewImpl(nil))
	defer srv.Shutdown(time.Second)
	c := fixture.NewClient(dial(t, srv, client.WithFormat(protocol.FormatCompact)))

	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("expected the call to fail across formats")
	}
}

func TestServerMaxConns(t *testing.T) {
	srv, _ := startServer(t, fixture.NewImpl(nil), WithMaxConns(1))
	defer srv.Shutdown(time.Second)
	ctx := context.Background()

	first := fixture.NewClient(dial(t, srv))
	if err := first.Ping(ctx); err != nil {
		t.Fatalf("first connection: %v", err)
	}
	second := fixture.NewClient(dial(t, srv))
	if err := second.Ping(ctx); err == nil {
		t.Fatal("connection over the limit should be closed")
	}
	if err := first.Ping(ctx); err != nil {
		t.Fatalf("first connection after rejection: %v", err)
	}
}

func TestShutdownClosesIdleConnections(t *testing.T) {
	srv, done := startServer(t, fixture.NewImpl(nil))
	c := fixture.NewClient(dial(t, srv))
	if err := c.Ping(context.Background()); err != nil {
		t.Fatalf("Ping failed: %v", err)
	}

	start := time.Now()
	if err := srv.Shutdown(2 * time.Second); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("idle connections should not hold up shutdown")
	}
	if err := <-done; err != nil {
		t.Fatalf("ServeListener returned %v", err)
	}
	if err := c.Ping(context.Background()); err == nil {
		t.Fatal("call after shutdown should fail")
	}
}

func TestConnectionGone(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{thrift.NewTTransportException(thrift.END_OF_FILE, "eof"), true},
		{errors.Wrap(net.ErrClosed, "read"), true},
		{rpcerr.WrapErrUnknownMethod("x"), false},
	}
	for _, tc := range cases {
		if got := connectionGone(tc.err); got != tc.want {
			t.Errorf("connectionGone(%v) = %v, want %v", tc.err, got, tc.want)
		}
	}
}

func TestNewServerRejectsUnknownFormat(t *testing.T) {
	proc, err := NewProcessor(fixture.EchoService, fixture.EchoBindings(fixture.NewImpl(nil)))
	if err != nil {
		t.Fatalf("NewProcessor failed: %v", err)
	}
	if _, err := NewServer(proc, WithFormat(protocol.Format(9))); err == nil {
		t.Fatal("expected error for unknown format")
	}
}
