package middleware

import (
	"context"
	"mini-thrift/message"
	"mini-thrift/rpcerr"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func testCall(method string) Call {
	return Call{Kind: message.Call, Method: method, SeqID: 3, Args: &struct{ N int }{N: 1}}
}

func TestChainOrderAndFreeze(t *testing.T) {
	var order []string
	record := func(name string) Observer {
		return ObserverFunc(func(_ context.Context, call Call) {
			order = append(order, name+":"+call.Method)
		})
	}

	c := NewChain(record("a"))
	require.NoError(t, c.Append(record("b"), record("c")))
	assert.Equal(t, 3, c.Len())

	c.Notify(context.Background(), testCall("echo"))
	assert.Equal(t, []string{"a:echo", "b:echo", "c:echo"}, order)

	c.Freeze()
	assert.True(t, c.Frozen())
	assert.ErrorIs(t, c.Append(record("d")), rpcerr.ErrChainFrozen)
	assert.Equal(t, 3, c.Len())
}

func TestChainPanicPropagates(t *testing.T) {
	c := NewChain(ObserverFunc(func(context.Context, Call) { panic("boom") }))
	assert.PanicsWithValue(t, "boom", func() { c.Notify(context.Background(), testCall("echo")) })
}

func TestLoggingObserver(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	o := Logging(zap.New(core), zap.InfoLevel)
	o.Observe(context.Background(), testCall("get_struct"))

	entries := logs.FilterMessage("inbound call").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "get_struct", fields["method"])
	assert.Equal(t, "call", fields["kind"])
	assert.EqualValues(t, 3, fields["seq"])
	assert.Equal(t, "observer", entries[0].LoggerName)
}

func TestLoggingObserverRespectsLevel(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	Logging(zap.New(core), zap.DebugLevel).Observe(context.Background(), testCall("echo"))
	assert.Zero(t, logs.Len())
}

func TestSampledObserverDropsOverRate(t *testing.T) {
	var seen int
	next := ObserverFunc(func(context.Context, Call) { seen++ })
	s := Sampled(0.001, 2, next)
	for range 10 {
		s.Observe(context.Background(), testCall("echo"))
	}
	assert.Equal(t, 2, seen)
	assert.EqualValues(t, 8, s.Dropped())
}

func TestMetricsObserver(t *testing.T) {
	m := Metrics("EchoService")
	reg := prometheus.NewRegistry()
	require.NoError(t, m.Register(reg))

	m.Observe(context.Background(), testCall("echo"))
	m.Observe(context.Background(), testCall("echo"))
	m.Observe(context.Background(), testCall("ping"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.Calls().WithLabelValues("EchoService", "echo", "call")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Calls().WithLabelValues("EchoService", "ping", "call")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.Calls(), "mini_thrift_dispatcher_calls_total"))
}

func TestTracingObserver(t *testing.T) {
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer func() { _ = tp.Shutdown(context.Background()) }()

	ctx, span := tp.Tracer("test").Start(context.Background(), "dispatch")
	Tracing().Observe(ctx, testCall("operation"))
	span.End()

	// A context without a span is ignored.
	Tracing().Observe(context.Background(), testCall("operation"))

	spans := rec.Ended()
	require.Len(t, spans, 1)
	events := spans[0].Events()
	require.Len(t, events, 1)
	assert.Equal(t, "rpc.call", events[0].Name)
	attrs := map[string]string{}
	for _, kv := range events[0].Attributes {
		attrs[string(kv.Key)] = kv.Value.Emit()
	}
	assert.Equal(t, "operation", attrs["rpc.method"])
	assert.Equal(t, "thrift", attrs["rpc.system"])
	assert.Equal(t, "3", attrs["rpc.seq_id"])
}
