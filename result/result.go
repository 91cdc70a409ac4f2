// Package result implements the per-method result envelope and the mapping
// between declared exceptions and Go errors.
//
// A result envelope is a struct named "<method>_result":
//
//	tag 0   success value   (absent for void methods)
//	tag n   exception n     (one slot per declared exception)
//
// Exactly one slot is set on a well-formed reply, or none when the method is
// void. Envelope values enforce this by construction.
package result

import (
	"context"
	"mini-thrift/codec"
	"mini-thrift/rpcerr"
	"reflect"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
)

// Void is the success type of methods that return nothing.
type Void struct{}

var (
	voidType  = reflect.TypeOf(Void{})
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// Spec is the immutable result shape of one method.
type Spec struct {
	Method     string
	Success    reflect.Type // nil for void methods
	Exceptions []Exception

	successWire thrift.TType
	byID        map[int16]int
}

// NewSpec validates a result shape. success may be nil or Void for void methods.
// Exception tags must be unique and nonzero, and payloads must be pointers to
// tagged structs implementing error.
func NewSpec(method string, success reflect.Type, exceptions ...Exception) (*Spec, error) {
	s := &Spec{
		Method:     method,
		Exceptions: exceptions,
		byID:       make(map[int16]int, len(exceptions)),
	}
	if success != nil && success != voidType {
		wt, err := codec.WireType(success, false)
		if err != nil {
			return nil, errors.Wrapf(err, "method %q: success type", method)
		}
		s.Success = success
		s.successWire = wt
	}
	names := make(map[string]bool, len(exceptions))
	for i, x := range exceptions {
		if x.ID == 0 {
			return nil, rpcerr.WrapErrInvalidSchema("method %q: exception %q uses tag 0, reserved for success", method, x.Name)
		}
		if _, dup := s.byID[x.ID]; dup {
			return nil, rpcerr.WrapErrInvalidSchema("method %q: duplicate exception tag %d", method, x.ID)
		}
		if names[x.Name] {
			return nil, rpcerr.WrapErrInvalidSchema("method %q: duplicate exception name %q", method, x.Name)
		}
		if x.Type == nil || x.Type.Kind() != reflect.Ptr || x.Type.Elem().Kind() != reflect.Struct || !x.Type.Implements(errorType) {
			return nil, rpcerr.WrapErrInvalidSchema("method %q: exception %q payload %v must be a pointer to a struct implementing error", method, x.Name, x.Type)
		}
		if _, err := codec.SchemaOf(x.Type); err != nil {
			return nil, errors.Wrapf(err, "method %q: exception %q", method, x.Name)
		}
		names[x.Name] = true
		s.byID[x.ID] = i
	}
	return s, nil
}

// Void reports whether the method returns nothing.
func (s *Spec) Void() bool { return s.Success == nil }

type slot int

const (
	slotEmpty slot = iota
	slotSuccess
	slotException
)

// Envelope is one result value: success, one exception, or empty.
type Envelope struct {
	spec  *Spec
	slot  slot
	exc   int
	value any
}

// Succeed builds a success envelope. For void methods the envelope is empty.
func (s *Spec) Succeed(v any) (*Envelope, error) {
	if s.Void() {
		return &Envelope{spec: s}, nil
	}
	if t := reflect.TypeOf(v); t != s.Success {
		return nil, rpcerr.WrapErrInvalidSchema("method %q: success value %v, want %v", s.Method, t, s.Success)
	}
	return &Envelope{spec: s, slot: slotSuccess, value: v}, nil
}

// Fail builds an exception envelope when err carries one of the declared
// payload types. ok is false for undeclared errors.
func (s *Spec) Fail(err error) (env *Envelope, ok bool) {
	for i, x := range s.Exceptions {
		target := reflect.New(x.Type)
		if errors.As(err, target.Interface()) && !target.Elem().IsNil() {
			return &Envelope{spec: s, slot: slotException, exc: i, value: target.Elem().Interface()}, true
		}
	}
	return nil, false
}

// FromOutcome translates a handler's return values. Undeclared errors are returned
// as-is: they are handler failures, not application results.
func (s *Spec) FromOutcome(v any, err error) (*Envelope, error) {
	if err == nil {
		return s.Succeed(v)
	}
	if env, ok := s.Fail(err); ok {
		return env, nil
	}
	return nil, err
}

// IsSuccess reports whether the success slot is set.
func (e *Envelope) IsSuccess() bool { return e.slot == slotSuccess }

// SetSlot returns the tag of the populated slot, or false for an empty envelope.
func (e *Envelope) SetSlot() (int16, bool) {
	switch e.slot {
	case slotSuccess:
		return 0, true
	case slotException:
		return e.spec.Exceptions[e.exc].ID, true
	}
	return 0, false
}

// Outcome collapses the envelope: the success value, a *Error for a declared
// exception, Void{} for an empty void result, and a protocol violation otherwise.
func (e *Envelope) Outcome() (any, error) {
	switch e.slot {
	case slotSuccess:
		return e.value, nil
	case slotException:
		x := e.spec.Exceptions[e.exc]
		return nil, &Error{
			Method:    e.spec.Method,
			Exception: x.Name,
			ID:        x.ID,
			Payload:   e.value.(error),
		}
	}
	if e.spec.Void() {
		return Void{}, nil
	}
	return nil, rpcerr.WrapErrEmptyResult(e.spec.Method)
}

// Encode writes the envelope as "<method>_result".
func (e *Envelope) Encode(ctx context.Context, p thrift.TProtocol) error {
	name := e.spec.Method + "_result"
	if err := p.WriteStructBegin(ctx, name); err != nil {
		return err
	}
	switch e.slot {
	case slotSuccess:
		if err := writeSlot(ctx, p, "success", e.spec.successWire, 0, e.value); err != nil {
			return err
		}
	case slotException:
		x := e.spec.Exceptions[e.exc]
		if err := writeSlot(ctx, p, x.Name, thrift.STRUCT, x.ID, e.value); err != nil {
			return err
		}
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return err
	}
	return p.WriteStructEnd(ctx)
}

func writeSlot(ctx context.Context, p thrift.TProtocol, name string, wt thrift.TType, id int16, v any) error {
	if err := p.WriteFieldBegin(ctx, name, wt, id); err != nil {
		return err
	}
	if err := codec.EncodeValue(ctx, p, reflect.ValueOf(v)); err != nil {
		return errors.Wrapf(err, "result: write %s", name)
	}
	return p.WriteFieldEnd(ctx)
}

// Decode reads a result envelope. When the wire carries several slots, the
// success slot wins, then exceptions in declared order. Unknown tags are skipped.
func (s *Spec) Decode(ctx context.Context, p thrift.TProtocol) (*Envelope, error) {
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return nil, errors.Wrapf(err, "result: read %s_result begin", s.Method)
	}
	var (
		success reflect.Value
		excs    = make([]reflect.Value, len(s.Exceptions))
	)
	for {
		_, wt, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return nil, errors.Wrapf(err, "result: read %s_result field", s.Method)
		}
		if wt == thrift.STOP {
			break
		}
		i, isExc := s.byID[id]
		switch {
		case id == 0 && !s.Void() && wt == s.successWire:
			success = reflect.New(s.Success).Elem()
			if err := codec.DecodeValue(ctx, p, success); err != nil {
				return nil, errors.Wrapf(err, "result: read %s success", s.Method)
			}
		case isExc && wt == thrift.STRUCT:
			payload := reflect.New(s.Exceptions[i].Type.Elem())
			if err := codec.DecodeValue(ctx, p, payload.Elem()); err != nil {
				return nil, errors.Wrapf(err, "result: read %s exception %q", s.Method, s.Exceptions[i].Name)
			}
			excs[i] = payload
		default:
			if err := p.Skip(ctx, wt); err != nil {
				return nil, errors.Wrapf(err, "result: skip %s_result field %d", s.Method, id)
			}
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return nil, err
		}
	}
	if err := p.ReadStructEnd(ctx); err != nil {
		return nil, errors.Wrapf(err, "result: read %s_result end", s.Method)
	}

	if success.IsValid() {
		return &Envelope{spec: s, slot: slotSuccess, value: success.Interface()}, nil
	}
	for i, payload := range excs {
		if payload.IsValid() {
			return &Envelope{spec: s, slot: slotException, exc: i, value: payload.Interface()}, nil
		}
	}
	return &Envelope{spec: s}, nil
}
