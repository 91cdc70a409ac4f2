package codec

import (
	"mini-thrift/rpcerr"
	"reflect"
	"strconv"
	"strings"
	"sync"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
)

// TagName is the struct tag key carrying field schemas:
//
//	Key   string   `thrift:"key,16"`
//	Note  *string  `thrift:"note,2"`          // pointer: optional, nil is absent
//	ID    int64    `thrift:"id,1,required"`   // always written
//	Paths []string `thrift:"paths,3,set"`     // slice encoded as a SET
const TagName = "thrift"

// FieldSpec describes one struct field.
type FieldSpec struct {
	Name     string
	ID       int16
	WireType thrift.TType
	Required bool
	Optional bool // pointer field; nil means absent
	Set      bool // slice encoded as SET instead of LIST
	Index    int  // Go field index within the struct

	typ  reflect.Type // value type, pointer stripped for optional fields
	enum bool         // non-optional enum field, defaulted to the enum's default variant
}

// Type returns the Go value type held by the field (pointer stripped for optional fields).
func (f *FieldSpec) Type() reflect.Type { return f.typ }

// Enum returns the schema of a non-optional enum field, or nil. Such fields
// read as the enum's default variant when absent.
func (f *FieldSpec) Enum() *EnumSchema {
	if !f.enum {
		return nil
	}
	return EnumSchemaOf(f.typ)
}

// StructSchema is the immutable schema of one struct type.
// Fields are in declaration order, which is encode order. Decode looks fields up by tag.
type StructSchema struct {
	Name   string
	Type   reflect.Type
	Fields []FieldSpec

	byID  map[int16]int
	enums []int // indexes into Fields of defaulted enum fields
}

// Reset sets rv to the zero value of the struct: Go zero values, with enum
// fields at their default variant.
func (s *StructSchema) Reset(rv reflect.Value) {
	rv.Set(reflect.Zero(s.Type))
	for _, i := range s.enums {
		f := &s.Fields[i]
		rv.Field(f.Index).SetInt(int64(f.Enum().Default))
	}
}

// Field returns the field declared with the given tag.
func (s *StructSchema) Field(id int16) (*FieldSpec, bool) {
	i, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return &s.Fields[i], true
}

var (
	schemas sync.Map // reflect.Type -> *StructSchema

	tstructType = reflect.TypeOf((*thrift.TStruct)(nil)).Elem()
	enumType    = reflect.TypeOf((*Enum)(nil)).Elem()

	setMemberType = reflect.TypeOf(struct{}{})
)

// SchemaOf returns the schema of a struct type (or pointer to struct type).
// Schemas are derived once per type and cached.
func SchemaOf(t reflect.Type) (*StructSchema, error) {
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if cached, ok := schemas.Load(t); ok {
		return cached.(*StructSchema), nil
	}
	s, err := buildSchema(t)
	if err != nil {
		return nil, err
	}
	actual, _ := schemas.LoadOrStore(t, s)
	return actual.(*StructSchema), nil
}

// MustSchemaOf is SchemaOf for package-level declarations; it panics on error.
func MustSchemaOf(t reflect.Type) *StructSchema {
	s, err := SchemaOf(t)
	if err != nil {
		panic(err)
	}
	return s
}

func buildSchema(t reflect.Type) (*StructSchema, error) {
	if t.Kind() != reflect.Struct {
		return nil, rpcerr.WrapErrInvalidSchema("expected struct type, got %v", t)
	}
	s := &StructSchema{
		Name: t.Name(),
		Type: t,
		byID: make(map[int16]int),
	}
	for i := range t.NumField() {
		sf := t.Field(i)
		tag := sf.Tag.Get(TagName)
		if tag == "" || tag == "-" {
			continue
		}
		if !sf.IsExported() {
			return nil, rpcerr.WrapErrInvalidSchema("%s.%s: tagged field must be exported", t.Name(), sf.Name)
		}
		f, err := parseField(sf, tag)
		if err != nil {
			return nil, errors.Wrapf(err, "%s.%s", t.Name(), sf.Name)
		}
		if _, dup := s.byID[f.ID]; dup {
			return nil, rpcerr.WrapErrInvalidSchema("%s: duplicate field id %d", t.Name(), f.ID)
		}
		s.byID[f.ID] = len(s.Fields)
		if f.enum {
			s.enums = append(s.enums, len(s.Fields))
		}
		s.Fields = append(s.Fields, f)
	}
	return s, nil
}

func parseField(sf reflect.StructField, tag string) (FieldSpec, error) {
	parts := strings.Split(tag, ",")
	if len(parts) < 2 {
		return FieldSpec{}, rpcerr.WrapErrInvalidSchema("tag %q: want \"name,id[,options]\"", tag)
	}
	id, err := strconv.ParseInt(parts[1], 10, 16)
	if err != nil {
		return FieldSpec{}, rpcerr.WrapErrInvalidSchema("tag %q: bad field id", tag)
	}
	f := FieldSpec{
		Name:  parts[0],
		ID:    int16(id),
		Index: sf.Index[0],
		typ:   sf.Type,
	}
	for _, opt := range parts[2:] {
		switch opt {
		case "required":
			f.Required = true
		case "set":
			f.Set = true
		case "optional":
			// pointer fields are optional already
		default:
			return FieldSpec{}, rpcerr.WrapErrInvalidSchema("tag %q: unknown option %q", tag, opt)
		}
	}
	if sf.Type.Kind() == reflect.Ptr {
		f.Optional = true
		f.typ = sf.Type.Elem()
	}
	if f.Set && f.typ.Kind() != reflect.Slice && f.typ.Kind() != reflect.Array {
		return FieldSpec{}, rpcerr.WrapErrInvalidSchema("tag %q: set option needs a slice", tag)
	}
	wt, err := wireType(f.typ, f.Set)
	if err != nil {
		return FieldSpec{}, err
	}
	if err := checkType(f.typ, map[reflect.Type]bool{}); err != nil {
		return FieldSpec{}, err
	}
	f.WireType = wt
	f.enum = !f.Optional && isEnum(f.typ)
	return f, nil
}

func implementsTStruct(t reflect.Type) bool {
	if t.Kind() == reflect.Ptr {
		return t.Implements(tstructType)
	}
	return reflect.PointerTo(t).Implements(tstructType)
}

func isEnum(t reflect.Type) bool {
	return t.Kind() == reflect.Int32 && t.Implements(enumType)
}

func isBytes(t reflect.Type) bool {
	return t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8
}

func isSetMap(t reflect.Type) bool {
	return t.Kind() == reflect.Map && t.Elem() == setMemberType
}

// WireType returns the wire type a Go type is encoded with. set selects SET for slices.
func WireType(t reflect.Type, set bool) (thrift.TType, error) {
	if err := checkType(t, map[reflect.Type]bool{}); err != nil {
		return thrift.STOP, err
	}
	return wireType(t, set)
}

func wireType(t reflect.Type, set bool) (thrift.TType, error) {
	if isEnum(t) {
		return thrift.I32, nil
	}
	if implementsTStruct(t) {
		return thrift.STRUCT, nil
	}
	switch t.Kind() {
	case reflect.Bool:
		return thrift.BOOL, nil
	case reflect.Int8:
		return thrift.BYTE, nil
	case reflect.Int16:
		return thrift.I16, nil
	case reflect.Int32:
		return thrift.I32, nil
	case reflect.Int64, reflect.Int:
		return thrift.I64, nil
	case reflect.Float32, reflect.Float64:
		return thrift.DOUBLE, nil
	case reflect.String:
		return thrift.STRING, nil
	case reflect.Struct:
		return thrift.STRUCT, nil
	case reflect.Slice, reflect.Array:
		if isBytes(t) {
			return thrift.STRING, nil
		}
		if set {
			return thrift.SET, nil
		}
		return thrift.LIST, nil
	case reflect.Map:
		if isSetMap(t) {
			return thrift.SET, nil
		}
		return thrift.MAP, nil
	case reflect.Ptr:
		return wireType(t.Elem(), set)
	}
	return thrift.STOP, rpcerr.WrapErrInvalidSchema("unsupported type %v", t)
}

// checkType walks container element types so unsupported types are reported when
// the schema is derived rather than halfway through an encode. Struct types are
// checked through their own schema, which also terminates recursive definitions.
func checkType(t reflect.Type, seen map[reflect.Type]bool) error {
	if seen[t] {
		return nil
	}
	seen[t] = true
	if isEnum(t) || implementsTStruct(t) || isBytes(t) {
		return nil
	}
	switch t.Kind() {
	case reflect.Slice, reflect.Array, reflect.Ptr:
		if _, err := wireType(t.Elem(), false); err != nil {
			return err
		}
		return checkType(t.Elem(), seen)
	case reflect.Map:
		for _, et := range []reflect.Type{t.Key(), t.Elem()} {
			if isSetMap(t) && et == t.Elem() {
				continue
			}
			if _, err := wireType(et, false); err != nil {
				return err
			}
			if err := checkType(et, seen); err != nil {
				return err
			}
		}
		return nil
	}
	_, err := wireType(t, false)
	return err
}

// IsEnum reports whether t is an enum type: a named int32 implementing Enum.
func IsEnum(t reflect.Type) bool { return isEnum(t) }

// IsTStruct reports whether t or *t implements thrift.TStruct.
func IsTStruct(t reflect.Type) bool { return implementsTStruct(t) }

// IsBytes reports whether t is a byte slice, encoded as binary STRING.
func IsBytes(t reflect.Type) bool { return isBytes(t) }

// IsSetMap reports whether t is a map[K]struct{}, encoded as a SET of K.
func IsSetMap(t reflect.Type) bool { return isSetMap(t) }
