package server

import (
	"context"
	"mini-thrift/client"
	"mini-thrift/internal/fixture"
	"net"
	"testing"
	"time"

	"go.uber.org/zap"
)

func benchServer(b *testing.B) string {
	b.Helper()
	proc, err := NewProcessor(fixture.EchoService, fixture.EchoBindings(fixture.NewImpl(nil)), WithProcessorLogger(zap.NewNop()))
	if err != nil {
		b.Fatal(err)
	}
	srv, err := NewServer(proc, WithLogger(zap.NewNop()))
	if err != nil {
		b.Fatal(err)
	}
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		b.Fatal(err)
	}
	go srv.ServeListener(l)
	b.Cleanup(func() { _ = srv.Shutdown(3 * time.Second) })
	return l.Addr().String()
}

func benchClient(b *testing.B, addr string) *fixture.Client {
	b.Helper()
	c, err := client.Dial(context.Background(), "tcp", addr, client.WithLogger(zap.NewNop()))
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(func() { _ = c.Close() })
	return fixture.NewClient(c)
}

// One connection, calls in sequence.
func BenchmarkSerialCall(b *testing.B) {
	c := benchClient(b, benchServer(b))
	ctx := context.Background()
	in := fixture.Simple{Key: "bench"}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := c.Echo(ctx, in); err != nil {
			b.Fatal(err)
		}
	}
}

// One connection per goroutine; each connection carries one call at a time.
func BenchmarkConcurrentConnections(b *testing.B) {
	addr := benchServer(b)
	ctx := context.Background()

	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		conn, err := client.Dial(ctx, "tcp", addr, client.WithLogger(zap.NewNop()))
		if err != nil {
			b.Error(err)
			return
		}
		defer conn.Close()
		c := fixture.NewClient(conn)
		in := fixture.Simple{Key: "bench"}
		for pb.Next() {
			if _, err := c.Echo(ctx, in); err != nil {
				b.Error(err)
				return
			}
		}
	})
}
