// Package codec is the schema-driven encode/decode engine.
//
// Every Go struct tagged with `thrift:"name,id"` gets a StructSchema, derived once
// and cached. One generic engine walks those schemas against an abstract
// thrift.TProtocol, so the byte format (binary, compact, JSON) is chosen by the
// caller, never by this package.
//
// Struct wire shape:
//
//	StructBegin
//	  FieldBegin(wireType, tag) value FieldEnd   // only fields that should encode
//	  ...
//	  FieldStop
//	StructEnd
//
// Decoding matches fields on (wireType, tag) and skips everything else, which
// keeps old and new schema versions readable by each other. Enums are written as
// a bare i32; unknown integers fail with rpcerr.ErrUnknownEnumValue.
package codec

import (
	"context"
	"mini-thrift/rpcerr"
	"reflect"

	"github.com/apache/thrift/lib/go/thrift"
)

// Encode writes v (a struct, enum, container, or pointer to one) to p.
func Encode(ctx context.Context, p thrift.TProtocol, v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return rpcerr.WrapErrInvalidSchema("codec: encode nil")
	}
	if rv.Kind() == reflect.Ptr && !implementsTStruct(rv.Type()) {
		if rv.IsNil() {
			return rpcerr.WrapErrInvalidSchema("codec: encode nil %v", rv.Type())
		}
		rv = rv.Elem()
	}
	return EncodeValue(ctx, p, rv)
}

// Decode reads into v, which must be a non-nil pointer.
func Decode(ctx context.Context, p thrift.TProtocol, v any) error {
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return rpcerr.WrapErrInvalidSchema("codec: decode into non-pointer %T", v)
	}
	return DecodeValue(ctx, p, rv.Elem())
}

// Codec binds the engine to one protocol factory and works on byte slices.
type Codec struct {
	factory thrift.TProtocolFactory
}

// New creates a Codec over the given protocol factory.
func New(factory thrift.TProtocolFactory) *Codec {
	return &Codec{factory: factory}
}

// Marshal encodes v into a fresh buffer.
func (c *Codec) Marshal(ctx context.Context, v any) ([]byte, error) {
	buf := thrift.NewTMemoryBuffer()
	p := c.factory.GetProtocol(buf)
	if err := Encode(ctx, p, v); err != nil {
		return nil, err
	}
	if err := p.Flush(ctx); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Unmarshal decodes data into v.
func (c *Codec) Unmarshal(ctx context.Context, data []byte, v any) error {
	buf := thrift.NewTMemoryBufferLen(len(data))
	if _, err := buf.Write(data); err != nil {
		return err
	}
	return Decode(ctx, c.factory.GetProtocol(buf), v)
}
