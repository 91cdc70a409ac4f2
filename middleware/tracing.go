package middleware

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Tracing records an "rpc.call" event on the span carried by the dispatch
// context. Calls without a recording span are ignored.
func Tracing() Observer {
	return ObserverFunc(func(ctx context.Context, call Call) {
		span := trace.SpanFromContext(ctx)
		if !span.IsRecording() {
			return
		}
		span.AddEvent("rpc.call", trace.WithAttributes(
			attribute.String("rpc.system", "thrift"),
			attribute.String("rpc.method", call.Method),
			attribute.String("rpc.message.kind", call.Kind.String()),
			attribute.Int("rpc.seq_id", int(call.SeqID)),
		))
	})
}
