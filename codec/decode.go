package codec

import (
	"context"
	"mini-thrift/rpcerr"
	"reflect"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
)

// DecodeValue reads one value into the settable rv.
func DecodeValue(ctx context.Context, p thrift.TProtocol, rv reflect.Value) error {
	wt, err := WireType(rv.Type(), false)
	if err != nil {
		return err
	}
	return readValue(ctx, p, rv, wt)
}

// readStruct resets rv (see StructSchema.Reset) and fills it from the wire. Fields are matched on
// (wire type, tag); anything else is skipped.
func readStruct(ctx context.Context, p thrift.TProtocol, s *StructSchema, rv reflect.Value) error {
	s.Reset(rv)
	if _, err := p.ReadStructBegin(ctx); err != nil {
		return errors.Wrapf(err, "codec: read %s begin", s.Name)
	}
	var seen []bool
	for {
		_, wt, id, err := p.ReadFieldBegin(ctx)
		if err != nil {
			return errors.Wrapf(err, "codec: read %s field", s.Name)
		}
		if wt == thrift.STOP {
			break
		}
		f, ok := s.Field(id)
		if ok && f.WireType == wt {
			if err := readField(ctx, p, f, rv.Field(f.Index)); err != nil {
				return errors.Wrapf(err, "codec: read %s.%s", s.Name, f.Name)
			}
			if f.Required {
				if seen == nil {
					seen = make([]bool, len(s.Fields))
				}
				seen[s.byID[id]] = true
			}
		} else if err := p.Skip(ctx, wt); err != nil {
			return errors.Wrapf(err, "codec: skip %s field %d", s.Name, id)
		}
		if err := p.ReadFieldEnd(ctx); err != nil {
			return errors.Wrapf(err, "codec: read %s field end", s.Name)
		}
	}
	if err := p.ReadStructEnd(ctx); err != nil {
		return errors.Wrapf(err, "codec: read %s end", s.Name)
	}
	for i := range s.Fields {
		if s.Fields[i].Required && (seen == nil || !seen[i]) {
			return rpcerr.WrapErrProtocolViolation("%s.%s: required field missing", s.Name, s.Fields[i].Name)
		}
	}
	return nil
}

func readField(ctx context.Context, p thrift.TProtocol, f *FieldSpec, fv reflect.Value) error {
	if !f.Optional {
		return readValue(ctx, p, fv, f.WireType)
	}
	ptr := reflect.New(f.typ)
	if err := readValue(ctx, p, ptr.Elem(), f.WireType); err != nil {
		return err
	}
	fv.Set(ptr)
	return nil
}

func readValue(ctx context.Context, p thrift.TProtocol, rv reflect.Value, wt thrift.TType) error {
	t := rv.Type()
	if isEnum(t) {
		v, err := p.ReadI32(ctx)
		if err != nil {
			return err
		}
		if err := EnumSchemaOf(t).Check(v); err != nil {
			return err
		}
		rv.SetInt(int64(v))
		return nil
	}
	if implementsTStruct(t) {
		if t.Kind() == reflect.Ptr {
			if rv.IsNil() {
				rv.Set(reflect.New(t.Elem()))
			}
			return rv.Interface().(thrift.TStruct).Read(ctx, p)
		}
		return rv.Addr().Interface().(thrift.TStruct).Read(ctx, p)
	}

	switch t.Kind() {
	case reflect.Bool:
		v, err := p.ReadBool(ctx)
		rv.SetBool(v)
		return err
	case reflect.Int8:
		v, err := p.ReadByte(ctx)
		rv.SetInt(int64(v))
		return err
	case reflect.Int16:
		v, err := p.ReadI16(ctx)
		rv.SetInt(int64(v))
		return err
	case reflect.Int32:
		v, err := p.ReadI32(ctx)
		rv.SetInt(int64(v))
		return err
	case reflect.Int64, reflect.Int:
		v, err := p.ReadI64(ctx)
		rv.SetInt(v)
		return err
	case reflect.Float32, reflect.Float64:
		v, err := p.ReadDouble(ctx)
		rv.SetFloat(v)
		return err
	case reflect.String:
		v, err := p.ReadString(ctx)
		rv.SetString(v)
		return err
	case reflect.Struct:
		s, err := SchemaOf(t)
		if err != nil {
			return err
		}
		return readStruct(ctx, p, s, rv)
	case reflect.Slice, reflect.Array:
		if isBytes(t) {
			v, err := p.ReadBinary(ctx)
			if err != nil {
				return err
			}
			rv.SetBytes(v)
			return nil
		}
		return readList(ctx, p, rv, wt == thrift.SET)
	case reflect.Map:
		if isSetMap(t) {
			return readSetMap(ctx, p, rv)
		}
		return readMap(ctx, p, rv)
	case reflect.Ptr:
		if rv.IsNil() {
			rv.Set(reflect.New(t.Elem()))
		}
		return readValue(ctx, p, rv.Elem(), wt)
	}
	return rpcerr.WrapErrInvalidSchema("unsupported type %v", t)
}

func checkElem(container string, got, want thrift.TType, size int) error {
	if size < 0 {
		return rpcerr.WrapErrProtocolViolation("codec: negative %s size %d", container, size)
	}
	if size > 0 && got != want {
		return rpcerr.WrapErrProtocolViolation("codec: %s element type %v, want %v", container, got, want)
	}
	return nil
}

func readList(ctx context.Context, p thrift.TProtocol, rv reflect.Value, set bool) error {
	t := rv.Type()
	want, err := wireType(t.Elem(), false)
	if err != nil {
		return err
	}
	var (
		et   thrift.TType
		size int
	)
	if set {
		et, size, err = p.ReadSetBegin(ctx)
	} else {
		et, size, err = p.ReadListBegin(ctx)
	}
	if err != nil {
		return err
	}
	if err := checkElem("list", et, want, size); err != nil {
		return err
	}
	if t.Kind() == reflect.Array {
		if size > t.Len() {
			return rpcerr.WrapErrProtocolViolation("codec: %d elements for %v", size, t)
		}
		rv.Set(reflect.Zero(t))
	} else if size == 0 {
		rv.Set(reflect.Zero(t))
	} else {
		rv.Set(reflect.MakeSlice(t, size, size))
	}
	for i := range size {
		if err := readValue(ctx, p, rv.Index(i), want); err != nil {
			return err
		}
	}
	if set {
		return p.ReadSetEnd(ctx)
	}
	return p.ReadListEnd(ctx)
}

func readSetMap(ctx context.Context, p thrift.TProtocol, rv reflect.Value) error {
	t := rv.Type()
	want, err := wireType(t.Key(), false)
	if err != nil {
		return err
	}
	et, size, err := p.ReadSetBegin(ctx)
	if err != nil {
		return err
	}
	if err := checkElem("set", et, want, size); err != nil {
		return err
	}
	m := reflect.MakeMapWithSize(t, size)
	member := reflect.Zero(t.Elem())
	for range size {
		k := reflect.New(t.Key()).Elem()
		if err := readValue(ctx, p, k, want); err != nil {
			return err
		}
		m.SetMapIndex(k, member)
	}
	if size > 0 {
		rv.Set(m)
	} else {
		rv.Set(reflect.Zero(t))
	}
	return p.ReadSetEnd(ctx)
}

func readMap(ctx context.Context, p thrift.TProtocol, rv reflect.Value) error {
	t := rv.Type()
	wantK, err := wireType(t.Key(), false)
	if err != nil {
		return err
	}
	wantV, err := wireType(t.Elem(), false)
	if err != nil {
		return err
	}
	kt, vt, size, err := p.ReadMapBegin(ctx)
	if err != nil {
		return err
	}
	if err := checkElem("map key", kt, wantK, size); err != nil {
		return err
	}
	if err := checkElem("map value", vt, wantV, size); err != nil {
		return err
	}
	m := reflect.MakeMapWithSize(t, size)
	for range size {
		k := reflect.New(t.Key()).Elem()
		if err := readValue(ctx, p, k, wantK); err != nil {
			return err
		}
		v := reflect.New(t.Elem()).Elem()
		if err := readValue(ctx, p, v, wantV); err != nil {
			return err
		}
		m.SetMapIndex(k, v)
	}
	if size > 0 {
		rv.Set(m)
	} else {
		rv.Set(reflect.Zero(t))
	}
	return p.ReadMapEnd(ctx)
}
