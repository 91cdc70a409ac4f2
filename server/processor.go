package server

import (
	"context"
	"mini-thrift/codec"
	"mini-thrift/log"
	"mini-thrift/message"
	"mini-thrift/middleware"
	"mini-thrift/rpcerr"
	"mini-thrift/service"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Processor dispatches calls for one service. It holds no per-call state; the
// same Processor serves every connection.
type Processor struct {
	service   *service.Service
	handlers  map[string]service.Handler
	observers *middleware.Chain
	initial   []middleware.Observer
	logger    *zap.Logger
	tracer    trace.Tracer
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithObservers registers observers at construction time.
func WithObservers(observers ...middleware.Observer) ProcessorOption {
	return func(p *Processor) { p.initial = append(p.initial, observers...) }
}

// WithProcessorLogger sets the logger; the default is log.L().
func WithProcessorLogger(l *zap.Logger) ProcessorOption {
	return func(p *Processor) { p.logger = l }
}

// WithTracer starts a server span per dispatched call, named "<service>/<method>".
// Observers find it in the context they are notified with.
func WithTracer(t trace.Tracer) ProcessorOption {
	return func(p *Processor) { p.tracer = t }
}

// NewProcessor binds implementations to the effective method set of svc.
// Every method must be bound exactly once, and only methods of svc may be bound.
func NewProcessor(svc *service.Service, bindings []service.Binding, opts ...ProcessorOption) (*Processor, error) {
	p := &Processor{
		service:  svc,
		handlers: make(map[string]service.Handler, len(bindings)),
		logger:   log.L(),
	}
	for _, b := range bindings {
		m, ok := svc.Method(b.Method.Name)
		if !ok || m != b.Method {
			return nil, rpcerr.WrapErrInvalidSchema("server: %s has no method %q to bind", svc.Name, b.Method.Name)
		}
		if _, dup := p.handlers[m.Name]; dup {
			return nil, rpcerr.WrapErrInvalidSchema("server: method %q bound twice", m.Name)
		}
		p.handlers[m.Name] = b.Handler
	}
	for _, name := range svc.MethodNames() {
		if _, ok := p.handlers[name]; !ok {
			return nil, rpcerr.WrapErrInvalidSchema("server: method %q of %s is not bound", name, svc.Name)
		}
	}
	for _, opt := range opts {
		opt(p)
	}
	p.observers = middleware.NewChain(p.initial...)
	p.initial = nil
	p.logger = p.logger.Named("processor").With(zap.String("service", svc.Name))
	return p, nil
}

// Use appends observers. It fails once the processor has dispatched a call.
func (p *Processor) Use(observers ...middleware.Observer) error {
	return p.observers.Append(observers...)
}

// Service returns the service schema.
func (p *Processor) Service() *service.Service { return p.service }

// MethodNames returns the dispatchable method names, sorted.
func (p *Processor) MethodNames() []string { return p.service.MethodNames() }

// Process handles exactly one call:
//
//	ReadEnvelope → DecodeArgs → NotifyMiddleware → InvokeHandler → TranslateResult → WriteReply
//
// Declared exceptions are replies like any other. Every returned error leaves the
// stream in an unknown state and should end the connection.
func (p *Processor) Process(ctx context.Context, in, out thrift.TProtocol) error {
	p.observers.Freeze()

	// ReadEnvelope
	h, err := message.ReadBegin(ctx, in)
	if err != nil {
		return err
	}
	if h.Kind != message.Call {
		return rpcerr.WrapErrProtocolViolation("server: %s message %q, want call", h.Kind, h.Name)
	}
	m, ok := p.service.Method(h.Name)
	if !ok {
		return p.rejectUnknown(ctx, in, out, h)
	}
	if p.tracer == nil {
		return p.dispatch(ctx, in, out, h, m)
	}

	ctx, span := p.tracer.Start(ctx, p.service.Name+"/"+h.Name, trace.WithSpanKind(trace.SpanKindServer))
	defer span.End()
	if err := p.dispatch(ctx, in, out, h, m); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	return nil
}

func (p *Processor) dispatch(ctx context.Context, in, out thrift.TProtocol, h message.Header, m *service.MethodSpec) error {
	// DecodeArgs
	args := m.NewArgs()
	if err := codec.DecodeValue(ctx, in, args.Elem()); err != nil {
		return errors.Wrapf(err, "server: decode %s args", h.Name)
	}
	if err := message.ReadEnd(ctx, in); err != nil {
		return err
	}

	// NotifyMiddleware
	if err := p.notify(ctx, h, args.Interface()); err != nil {
		return err
	}

	// InvokeHandler
	if arg, missing := m.MissingArgument(args); missing {
		return rpcerr.WrapErrMissingArgument(h.Name, arg)
	}
	value, herr := p.handlers[h.Name](ctx, args.Interface())

	// TranslateResult
	env, err := m.Result.FromOutcome(value, herr)
	if err != nil {
		return errors.Wrapf(err, "server: %s handler failed", h.Name)
	}

	// WriteReply
	reply := message.Header{Name: h.Name, Kind: message.Reply, SeqID: h.SeqID}
	if err := message.Write(ctx, out, reply, env); err != nil {
		return err
	}
	p.logger.Debug("call dispatched", zap.String("method", h.Name), zap.Int32("seq", h.SeqID), zap.Bool("success", env.IsSuccess()))
	return nil
}

// rejectUnknown consumes the arguments, answers with UNKNOWN_METHOD and still
// reports the violation to the serving loop.
func (p *Processor) rejectUnknown(ctx context.Context, in, out thrift.TProtocol, h message.Header) error {
	violation := rpcerr.WrapErrUnknownMethod(h.Name)
	if err := in.Skip(ctx, thrift.STRUCT); err != nil {
		return errors.CombineErrors(violation, err)
	}
	if err := message.ReadEnd(ctx, in); err != nil {
		return errors.CombineErrors(violation, err)
	}
	if err := message.WriteException(ctx, out, h, thrift.UNKNOWN_METHOD, "unknown method "+h.Name); err != nil {
		return errors.CombineErrors(violation, err)
	}
	return violation
}

func (p *Processor) notify(ctx context.Context, h message.Header, args any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rpcerr.WrapErrObserverPanic(h.Name, r)
		}
	}()
	p.observers.Notify(ctx, middleware.Call{
		Kind:   h.Kind,
		Method: h.Name,
		SeqID:  h.SeqID,
		Args:   args,
	})
	return nil
}
