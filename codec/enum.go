package codec

import (
	"fmt"
	"mini-thrift/rpcerr"
	"reflect"
)

// Enum is implemented by named int32 types that carry an enum schema:
//
//	type Operation int32
//
//	var operationSchema = codec.MustEnum("Operation", OperationAdd,
//		codec.EnumValue{Name: "Add", Value: 1},
//		codec.EnumValue{Name: "Sub", Value: 2},
//	)
//
//	func (Operation) EnumSchema() *codec.EnumSchema { return operationSchema }
type Enum interface {
	EnumSchema() *EnumSchema
}

// EnumValue is one named variant.
type EnumValue struct {
	Name  string
	Value int32
}

// EnumSchema is a closed set of named integers with one default variant. The
// default is the zero value of enum-typed struct fields: an absent field reads
// as the default, and a Go 0 that is not a declared variant stands for it.
type EnumSchema struct {
	Name    string
	Values  []EnumValue
	Default int32

	byValue map[int32]int
}

// NewEnum builds an enum schema. Names and values must be unique and the default
// must be one of the values.
func NewEnum[T ~int32](name string, def T, values ...EnumValue) (*EnumSchema, error) {
	s := &EnumSchema{
		Name:    name,
		Values:  values,
		Default: int32(def),
		byValue: make(map[int32]int, len(values)),
	}
	names := make(map[string]bool, len(values))
	for i, v := range values {
		if _, dup := s.byValue[v.Value]; dup {
			return nil, rpcerr.WrapErrInvalidSchema("enum %s: duplicate value %d", name, v.Value)
		}
		if names[v.Name] {
			return nil, rpcerr.WrapErrInvalidSchema("enum %s: duplicate name %q", name, v.Name)
		}
		names[v.Name] = true
		s.byValue[v.Value] = i
	}
	if _, ok := s.byValue[s.Default]; !ok {
		return nil, rpcerr.WrapErrInvalidSchema("enum %s: default %d is not a declared value", name, s.Default)
	}
	return s, nil
}

// MustEnum is NewEnum for package-level declarations; it panics on error.
func MustEnum[T ~int32](name string, def T, values ...EnumValue) *EnumSchema {
	s, err := NewEnum(name, def, values...)
	if err != nil {
		panic(err)
	}
	return s
}

// Lookup maps an integer to its variant.
func (s *EnumSchema) Lookup(v int32) (EnumValue, bool) {
	i, ok := s.byValue[v]
	if !ok {
		return EnumValue{}, false
	}
	return s.Values[i], true
}

// Check fails with ErrUnknownEnumValue when v is not a declared variant.
func (s *EnumSchema) Check(v int32) error {
	if _, ok := s.byValue[v]; !ok {
		return rpcerr.WrapErrUnknownEnumValue(s.Name, v)
	}
	return nil
}

// Resolve maps the Go zero value to the default variant when 0 is not declared.
func (s *EnumSchema) Resolve(v int32) int32 {
	if v == 0 {
		if _, ok := s.byValue[0]; !ok {
			return s.Default
		}
	}
	return v
}

// ResolveValue is Resolve for a reflected enum value of any enum type.
func (s *EnumSchema) ResolveValue(rv reflect.Value) reflect.Value {
	v := reflect.New(rv.Type()).Elem()
	v.SetInt(int64(s.Resolve(int32(rv.Int()))))
	return v
}

// EnumSchemaOf returns the schema of enum type t, or nil when t is not an enum.
func EnumSchemaOf(t reflect.Type) *EnumSchema {
	if !isEnum(t) {
		return nil
	}
	return reflect.Zero(t).Interface().(Enum).EnumSchema()
}

// String returns the variant name, or "Name(v)" for undeclared integers.
func (s *EnumSchema) String(v int32) string {
	if ev, ok := s.Lookup(v); ok {
		return ev.Name
	}
	return fmt.Sprintf("%s(%d)", s.Name, v)
}

// Parse maps a variant name back to its integer.
func (s *EnumSchema) Parse(name string) (int32, bool) {
	for _, v := range s.Values {
		if v.Name == name {
			return v.Value, true
		}
	}
	return 0, false
}
