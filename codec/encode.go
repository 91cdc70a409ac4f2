package codec

import (
	"context"
	"mini-thrift/rpcerr"
	"reflect"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
)

// ShouldEncode reports whether the field is written for the given field value:
// required fields always, optional fields when present, containers when non-empty,
// enums when they differ from the default variant, and everything else when it
// differs from its zero value.
func (f *FieldSpec) ShouldEncode(fv reflect.Value) bool {
	if f.Required {
		return true
	}
	if f.Optional {
		return !fv.IsNil()
	}
	if es := f.Enum(); es != nil {
		return es.Resolve(int32(fv.Int())) != es.Default
	}
	switch fv.Kind() {
	case reflect.Slice, reflect.Map:
		return fv.Len() > 0
	}
	return !fv.IsZero()
}

// EncodeValue writes rv using the wire type WireType(rv.Type(), false) reports.
func EncodeValue(ctx context.Context, p thrift.TProtocol, rv reflect.Value) error {
	wt, err := WireType(rv.Type(), false)
	if err != nil {
		return err
	}
	return writeValue(ctx, p, rv, wt)
}

func writeStruct(ctx context.Context, p thrift.TProtocol, s *StructSchema, rv reflect.Value) error {
	if err := p.WriteStructBegin(ctx, s.Name); err != nil {
		return errors.Wrapf(err, "codec: write %s begin", s.Name)
	}
	for i := range s.Fields {
		f := &s.Fields[i]
		fv := rv.Field(f.Index)
		if !f.ShouldEncode(fv) {
			continue
		}
		if f.Optional {
			if fv.IsNil() {
				return rpcerr.WrapErrProtocolViolation("%s.%s: required field is nil", s.Name, f.Name)
			}
			fv = fv.Elem()
		}
		if es := f.Enum(); es != nil {
			fv = es.ResolveValue(fv)
		}
		if err := p.WriteFieldBegin(ctx, f.Name, f.WireType, f.ID); err != nil {
			return errors.Wrapf(err, "codec: write %s.%s begin", s.Name, f.Name)
		}
		if err := writeValue(ctx, p, fv, f.WireType); err != nil {
			return errors.Wrapf(err, "codec: write %s.%s", s.Name, f.Name)
		}
		if err := p.WriteFieldEnd(ctx); err != nil {
			return errors.Wrapf(err, "codec: write %s.%s end", s.Name, f.Name)
		}
	}
	if err := p.WriteFieldStop(ctx); err != nil {
		return errors.Wrapf(err, "codec: write %s stop", s.Name)
	}
	if err := p.WriteStructEnd(ctx); err != nil {
		return errors.Wrapf(err, "codec: write %s end", s.Name)
	}
	return nil
}

// writeValue writes one value. wt is only consulted to choose between LIST and SET for slices.
func writeValue(ctx context.Context, p thrift.TProtocol, rv reflect.Value, wt thrift.TType) error {
	t := rv.Type()
	if isEnum(t) {
		v := int32(rv.Int())
		if err := EnumSchemaOf(t).Check(v); err != nil {
			return err
		}
		return p.WriteI32(ctx, v)
	}
	if implementsTStruct(t) {
		return writeTStruct(ctx, p, rv)
	}

	switch t.Kind() {
	case reflect.Bool:
		return p.WriteBool(ctx, rv.Bool())
	case reflect.Int8:
		return p.WriteByte(ctx, int8(rv.Int()))
	case reflect.Int16:
		return p.WriteI16(ctx, int16(rv.Int()))
	case reflect.Int32:
		return p.WriteI32(ctx, int32(rv.Int()))
	case reflect.Int64, reflect.Int:
		return p.WriteI64(ctx, rv.Int())
	case reflect.Float32, reflect.Float64:
		return p.WriteDouble(ctx, rv.Float())
	case reflect.String:
		return p.WriteString(ctx, rv.String())
	case reflect.Struct:
		s, err := SchemaOf(t)
		if err != nil {
			return err
		}
		return writeStruct(ctx, p, s, rv)
	case reflect.Slice, reflect.Array:
		if isBytes(t) {
			return p.WriteBinary(ctx, rv.Bytes())
		}
		return writeList(ctx, p, rv, wt == thrift.SET)
	case reflect.Map:
		if isSetMap(t) {
			return writeSetMap(ctx, p, rv)
		}
		return writeMap(ctx, p, rv)
	case reflect.Ptr:
		if rv.IsNil() {
			return rpcerr.WrapErrProtocolViolation("codec: nil %v element", t)
		}
		return writeValue(ctx, p, rv.Elem(), wt)
	}
	return rpcerr.WrapErrInvalidSchema("unsupported type %v", t)
}

func writeTStruct(ctx context.Context, p thrift.TProtocol, rv reflect.Value) error {
	if rv.Kind() == reflect.Ptr {
		if rv.IsNil() {
			return rpcerr.WrapErrProtocolViolation("codec: nil %v", rv.Type())
		}
		return rv.Interface().(thrift.TStruct).Write(ctx, p)
	}
	if !rv.CanAddr() {
		ptr := reflect.New(rv.Type())
		ptr.Elem().Set(rv)
		rv = ptr.Elem()
	}
	return rv.Addr().Interface().(thrift.TStruct).Write(ctx, p)
}

func writeList(ctx context.Context, p thrift.TProtocol, rv reflect.Value, set bool) error {
	et, err := wireType(rv.Type().Elem(), false)
	if err != nil {
		return err
	}
	if set {
		elems := SortedSet(rv)
		if err := p.WriteSetBegin(ctx, et, len(elems)); err != nil {
			return err
		}
		for _, e := range elems {
			if err := writeValue(ctx, p, e, et); err != nil {
				return err
			}
		}
		return p.WriteSetEnd(ctx)
	}
	if err := p.WriteListBegin(ctx, et, rv.Len()); err != nil {
		return err
	}
	for i := range rv.Len() {
		if err := writeValue(ctx, p, rv.Index(i), et); err != nil {
			return err
		}
	}
	return p.WriteListEnd(ctx)
}

func writeSetMap(ctx context.Context, p thrift.TProtocol, rv reflect.Value) error {
	et, err := wireType(rv.Type().Key(), false)
	if err != nil {
		return err
	}
	if err := p.WriteSetBegin(ctx, et, rv.Len()); err != nil {
		return err
	}
	for _, k := range SortedKeys(rv) {
		if err := writeValue(ctx, p, k, et); err != nil {
			return err
		}
	}
	return p.WriteSetEnd(ctx)
}

func writeMap(ctx context.Context, p thrift.TProtocol, rv reflect.Value) error {
	t := rv.Type()
	kt, err := wireType(t.Key(), false)
	if err != nil {
		return err
	}
	vt, err := wireType(t.Elem(), false)
	if err != nil {
		return err
	}
	if err := p.WriteMapBegin(ctx, kt, vt, rv.Len()); err != nil {
		return err
	}
	for _, k := range SortedKeys(rv) {
		if err := writeValue(ctx, p, k, kt); err != nil {
			return err
		}
		if err := writeValue(ctx, p, rv.MapIndex(k), vt); err != nil {
			return err
		}
	}
	return p.WriteMapEnd(ctx)
}
