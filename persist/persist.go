package persist

import (
	"context"
	"fmt"
	"mini-thrift/codec"
	"mini-thrift/rpcerr"
	"reflect"
	"strconv"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
)

const (
	fieldSuffix = ":FIELD_%04d"
	sizeSuffix  = ":ARRAYSIZE"
	indexSuffix = ":INDEX_%04d"
	keySuffix   = ":KEY"
	valueSuffix = ":VALUE"
)

func fieldKey(key string, id int16) string { return key + fmt.Sprintf(fieldSuffix, id) }

func indexKey(key string, i int) string { return key + fmt.Sprintf(indexSuffix, i) }

// Write stores v under key.
func Write(ctx context.Context, s Store, key string, v any) error {
	rv := reflect.ValueOf(v)
	if !rv.IsValid() {
		return rpcerr.WrapErrInvalidSchema("persist: write nil under %q", key)
	}
	return errors.Wrapf(writeValue(ctx, s, key, rv, false), "persist: write %q", key)
}

// Read loads the value stored under key. ok is false when nothing is stored.
func Read[T any](ctx context.Context, s Store, key string) (v T, ok bool, err error) {
	ok, err = ReadValue(ctx, s, key, reflect.ValueOf(&v).Elem())
	return v, ok, err
}

// ReadValue loads the value stored under key into the settable rv.
func ReadValue(ctx context.Context, s Store, key string, rv reflect.Value) (bool, error) {
	ok, err := readValue(ctx, s, key, rv)
	if err != nil {
		return false, errors.Wrapf(err, "persist: read %q", key)
	}
	return ok, nil
}

// Delete removes key and everything derived from it.
func Delete(ctx context.Context, s Store, key string) error {
	if err := s.Delete(ctx, key); err != nil {
		return err
	}
	return s.DeletePrefix(ctx, key+":")
}

func writeValue(ctx context.Context, s Store, key string, rv reflect.Value, set bool) error {
	t := rv.Type()
	switch {
	case codec.IsTStruct(t):
		if t.Kind() == reflect.Ptr && rv.IsNil() {
			return Delete(ctx, s, key)
		}
		ts, ok := rv.Interface().(thrift.TStruct)
		if !ok {
			ptr := reflect.New(t)
			ptr.Elem().Set(rv)
			ts = ptr.Interface().(thrift.TStruct)
		}
		b, err := thrift.NewTSerializer().Write(ctx, ts)
		if err != nil {
			return err
		}
		return s.Put(ctx, key, string(b))
	case codec.IsEnum(t):
		if err := codec.EnumSchemaOf(t).Check(int32(rv.Int())); err != nil {
			return err
		}
		return s.Put(ctx, key, strconv.FormatInt(rv.Int(), 10))
	case codec.IsBytes(t):
		return s.Put(ctx, key, string(rv.Bytes()))
	}

	switch t.Kind() {
	case reflect.Ptr:
		if err := Delete(ctx, s, key); err != nil {
			return err
		}
		if rv.IsNil() {
			return nil
		}
		return writeValue(ctx, s, key, rv.Elem(), set)
	case reflect.Struct:
		schema, err := codec.SchemaOf(t)
		if err != nil {
			return err
		}
		for i := range schema.Fields {
			f := &schema.Fields[i]
			fv := rv.Field(f.Index)
			if es := f.Enum(); es != nil {
				fv = es.ResolveValue(fv)
			}
			if err := writeValue(ctx, s, fieldKey(key, f.ID), fv, f.Set); err != nil {
				return errors.Wrapf(err, "%s.%s", schema.Name, f.Name)
			}
		}
		return nil
	case reflect.Slice, reflect.Array:
		if set {
			return writeElems(ctx, s, key, codec.SortedSet(rv))
		}
		elems := make([]reflect.Value, rv.Len())
		for i := range elems {
			elems[i] = rv.Index(i)
		}
		return writeElems(ctx, s, key, elems)
	case reflect.Map:
		if codec.IsSetMap(t) {
			return writeElems(ctx, s, key, codec.SortedKeys(rv))
		}
		return writeMap(ctx, s, key, rv)
	case reflect.Bool:
		return s.Put(ctx, key, strconv.FormatBool(rv.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return s.Put(ctx, key, strconv.FormatInt(rv.Int(), 10))
	case reflect.Float32, reflect.Float64:
		return s.Put(ctx, key, strconv.FormatFloat(rv.Float(), 'g', -1, t.Bits()))
	case reflect.String:
		return s.Put(ctx, key, rv.String())
	}
	return rpcerr.WrapErrInvalidSchema("persist: unsupported type %v", t)
}

// writeElems replaces whatever list was stored under key.
func writeElems(ctx context.Context, s Store, key string, elems []reflect.Value) error {
	if err := s.DeletePrefix(ctx, key+":"); err != nil {
		return err
	}
	if err := s.Put(ctx, key+sizeSuffix, strconv.Itoa(len(elems))); err != nil {
		return err
	}
	for i, e := range elems {
		if err := writeValue(ctx, s, indexKey(key, i), e, false); err != nil {
			return err
		}
	}
	return nil
}

func writeMap(ctx context.Context, s Store, key string, rv reflect.Value) error {
	if err := s.DeletePrefix(ctx, key+":"); err != nil {
		return err
	}
	if err := s.Put(ctx, key+sizeSuffix, strconv.Itoa(rv.Len())); err != nil {
		return err
	}
	for i, k := range codec.SortedKeys(rv) {
		entry := indexKey(key, i)
		if err := writeValue(ctx, s, entry+keySuffix, k, false); err != nil {
			return err
		}
		if err := writeValue(ctx, s, entry+valueSuffix, rv.MapIndex(k), false); err != nil {
			return err
		}
	}
	return nil
}

func corrupt(key, text string, t reflect.Type) error {
	return errors.Wrapf(ErrCorrupt, "%s: %q is not a valid %v", key, text, t)
}

func readValue(ctx context.Context, s Store, key string, rv reflect.Value) (bool, error) {
	t := rv.Type()
	switch {
	case codec.IsTStruct(t):
		text, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			return false, err
		}
		var target reflect.Value
		if t.Kind() == reflect.Ptr {
			target = reflect.New(t.Elem())
		} else {
			target = rv.Addr()
		}
		if err := thrift.NewTDeserializer().Read(ctx, target.Interface().(thrift.TStruct), []byte(text)); err != nil {
			return false, errors.Wrapf(ErrCorrupt, "%s: %v", key, err)
		}
		if t.Kind() == reflect.Ptr {
			rv.Set(target)
		}
		return true, nil
	case codec.IsEnum(t):
		text, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			return false, err
		}
		v, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return false, corrupt(key, text, t)
		}
		if err := codec.EnumSchemaOf(t).Check(int32(v)); err != nil {
			return false, err
		}
		rv.SetInt(v)
		return true, nil
	case codec.IsBytes(t):
		text, ok, err := s.Get(ctx, key)
		if err != nil || !ok {
			return false, err
		}
		rv.SetBytes([]byte(text))
		return true, nil
	}

	switch t.Kind() {
	case reflect.Ptr:
		elem := reflect.New(t.Elem())
		ok, err := readValue(ctx, s, key, elem.Elem())
		if err != nil {
			return false, err
		}
		if ok {
			rv.Set(elem)
		} else {
			rv.Set(reflect.Zero(t))
		}
		return ok, nil
	case reflect.Struct:
		schema, err := codec.SchemaOf(t)
		if err != nil {
			return false, err
		}
		schema.Reset(rv)
		found := false
		for i := range schema.Fields {
			f := &schema.Fields[i]
			ok, err := readValue(ctx, s, fieldKey(key, f.ID), rv.Field(f.Index))
			if err != nil {
				return false, errors.Wrapf(err, "%s.%s", schema.Name, f.Name)
			}
			found = found || ok
		}
		return found, nil
	case reflect.Slice, reflect.Array:
		n, ok, err := readSize(ctx, s, key)
		if err != nil || !ok {
			return false, err
		}
		if t.Kind() == reflect.Array {
			if n > t.Len() {
				return false, errors.Wrapf(ErrCorrupt, "%s: %d elements for %v", key, n, t)
			}
			rv.Set(reflect.Zero(t))
		} else if n == 0 {
			rv.Set(reflect.Zero(t))
		} else {
			rv.Set(reflect.MakeSlice(t, n, n))
		}
		for i := range n {
			if _, err := readValue(ctx, s, indexKey(key, i), rv.Index(i)); err != nil {
				return false, err
			}
		}
		return true, nil
	case reflect.Map:
		return readMap(ctx, s, key, rv)
	}

	text, ok, err := s.Get(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	switch t.Kind() {
	case reflect.Bool:
		v, err := strconv.ParseBool(text)
		if err != nil {
			return false, corrupt(key, text, t)
		}
		rv.SetBool(v)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		v, err := strconv.ParseInt(text, 10, t.Bits())
		if err != nil {
			return false, corrupt(key, text, t)
		}
		rv.SetInt(v)
	case reflect.Float32, reflect.Float64:
		v, err := strconv.ParseFloat(text, t.Bits())
		if err != nil {
			return false, corrupt(key, text, t)
		}
		rv.SetFloat(v)
	case reflect.String:
		rv.SetString(text)
	default:
		return false, rpcerr.WrapErrInvalidSchema("persist: unsupported type %v", t)
	}
	return true, nil
}

func readSize(ctx context.Context, s Store, key string) (int, bool, error) {
	text, ok, err := s.Get(ctx, key+sizeSuffix)
	if err != nil || !ok {
		return 0, false, err
	}
	n, err := strconv.Atoi(text)
	if err != nil || n < 0 {
		return 0, false, errors.Wrapf(ErrCorrupt, "%s%s: bad size %q", key, sizeSuffix, text)
	}
	return n, true, nil
}

func readMap(ctx context.Context, s Store, key string, rv reflect.Value) (bool, error) {
	t := rv.Type()
	n, ok, err := readSize(ctx, s, key)
	if err != nil || !ok {
		return false, err
	}
	if n == 0 {
		rv.Set(reflect.Zero(t))
		return true, nil
	}
	m := reflect.MakeMapWithSize(t, n)
	setMap := codec.IsSetMap(t)
	for i := range n {
		entry := indexKey(key, i)
		k := reflect.New(t.Key()).Elem()
		if setMap {
			if _, err := readValue(ctx, s, entry, k); err != nil {
				return false, err
			}
			m.SetMapIndex(k, reflect.Zero(t.Elem()))
			continue
		}
		if _, err := readValue(ctx, s, entry+keySuffix, k); err != nil {
			return false, err
		}
		v := reflect.New(t.Elem()).Elem()
		if _, err := readValue(ctx, s, entry+valueSuffix, v); err != nil {
			return false, err
		}
		m.SetMapIndex(k, v)
	}
	rv.Set(m)
	return true, nil
}
