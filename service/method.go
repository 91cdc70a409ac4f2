package service

import (
	"fmt"
	"mini-thrift/codec"
	"mini-thrift/result"
	"reflect"

	"github.com/cockroachdb/errors"
)

// MethodSpec is one service operation: its name, its argument struct and its
// result shape. Argument structs hold every argument in a pointer slot:
//
//	type GetStructArgs struct {
//		Key *int32 `thrift:"key,1"`
//	}
type MethodSpec struct {
	Name   string
	Args   reflect.Type // argument struct type
	Result *result.Spec

	args *codec.StructSchema
}

// NewMethodSpec validates and builds a method.
func NewMethodSpec(name string, args, success reflect.Type, exceptions ...result.Exception) (*MethodSpec, error) {
	if name == "" {
		return nil, errors.New("service: empty method name")
	}
	as, err := codec.SchemaOf(args)
	if err != nil {
		return nil, errors.Wrapf(err, "method %q: arguments", name)
	}
	rs, err := result.NewSpec(name, success, exceptions...)
	if err != nil {
		return nil, err
	}
	return &MethodSpec{
		Name:   name,
		Args:   as.Type,
		Result: rs,
		args:   as,
	}, nil
}

// NewMethod declares a method with argument struct A and success type R
// (result.Void for none). It panics on an invalid declaration, so methods are
// declared as package-level variables and fail at init.
func NewMethod[A any, R any](name string, exceptions ...result.Exception) *MethodSpec {
	m, err := NewMethodSpec(name, typeOf[A](), typeOf[R](), exceptions...)
	if err != nil {
		panic(fmt.Sprintf("service: invalid method %q: %v", name, err))
	}
	return m
}

// ArgsSchema returns the argument struct schema.
func (m *MethodSpec) ArgsSchema() *codec.StructSchema { return m.args }

// NewArgs allocates an empty argument struct and returns a pointer to it.
func (m *MethodSpec) NewArgs() reflect.Value { return reflect.New(m.Args) }

// MissingArgument returns the name of the first argument slot left empty after
// decode. Only pointer slots can be missing.
func (m *MethodSpec) MissingArgument(args reflect.Value) (string, bool) {
	if args.Kind() == reflect.Ptr {
		args = args.Elem()
	}
	for i := range m.args.Fields {
		f := &m.args.Fields[i]
		if f.Optional && args.Field(f.Index).IsNil() {
			return f.Name, true
		}
	}
	return "", false
}

func typeOf[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
