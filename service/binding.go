package service

import (
	"context"
	"fmt"
	"mini-thrift/result"
)

// Handler is the untyped form of a bound implementation. args is a pointer to
// the method's argument struct with every slot present.
type Handler func(ctx context.Context, args any) (any, error)

// Binding attaches an implementation to a method.
type Binding struct {
	Method  *MethodSpec
	Handler Handler
}

// Bind attaches a typed implementation. It panics when A or R do not match the
// method declaration, which is a wiring bug.
func Bind[A any, R any](m *MethodSpec, fn func(ctx context.Context, args *A) (R, error)) Binding {
	if at := typeOf[A](); at != m.Args {
		panic(fmt.Sprintf("service: bind %q: args %v, want %v", m.Name, at, m.Args))
	}
	rt := typeOf[R]()
	if m.Result.Void() {
		if rt != typeOf[result.Void]() {
			panic(fmt.Sprintf("service: bind %q: method is void, handler returns %v", m.Name, rt))
		}
	} else if rt != m.Result.Success {
		panic(fmt.Sprintf("service: bind %q: returns %v, want %v", m.Name, rt, m.Result.Success))
	}
	return Binding{
		Method: m,
		Handler: func(ctx context.Context, args any) (any, error) {
			return fn(ctx, args.(*A))
		},
	}
}
