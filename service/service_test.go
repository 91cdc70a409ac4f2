package service_test

import (
	"context"
	"mini-thrift/internal/fixture"
	"mini-thrift/result"
	"mini-thrift/rpcerr"
	"mini-thrift/service"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInheritanceFlattensParents(t *testing.T) {
	assert.Equal(t, []string{"get_struct"}, fixture.SharedService.MethodNames())
	assert.Equal(t, []string{"get_struct", "operation"}, fixture.ChildService.MethodNames())
	assert.Equal(t, []string{"echo", "get_struct", "operation", "ping"}, fixture.CombinedService.MethodNames())

	m, ok := fixture.CombinedService.Method("get_struct")
	require.True(t, ok)
	assert.Same(t, fixture.GetStructMethod, m)
	assert.Equal(t, "SharedService", fixture.CombinedService.Owner("get_struct"))
	assert.Equal(t, "ChildService", fixture.CombinedService.Owner("operation"))
	assert.Equal(t, "EchoService", fixture.CombinedService.Owner("ping"))

	_, ok = fixture.CombinedService.Method("Echo")
	assert.False(t, ok, "method names are case-sensitive")
}

func TestDiamondIsNotACollision(t *testing.T) {
	left := service.MustNew("Left", []*service.Service{fixture.SharedService})
	right := service.MustNew("Right", []*service.Service{fixture.SharedService})
	bottom, err := service.Compose("Bottom", left, right)
	require.NoError(t, err)
	assert.Equal(t, []string{"get_struct"}, bottom.MethodNames())
}

func TestCollisionsRejected(t *testing.T) {
	_, err := service.Compose("Both", fixture.ChildService, fixture.ServiceWithException)
	assert.ErrorIs(t, err, rpcerr.ErrMethodCollision)

	_, err = service.New("Twice", nil, fixture.EchoMethod, fixture.EchoMethod)
	assert.ErrorIs(t, err, rpcerr.ErrMethodCollision)

	// Own method shadowing an inherited one with a different declaration.
	other := service.NewMethod[fixture.GetStructArgs, fixture.DeeplyNested]("get_struct")
	_, err = service.New("Shadow", []*service.Service{fixture.SharedService}, other)
	assert.ErrorIs(t, err, rpcerr.ErrMethodCollision)
}

func TestFlattenReturnsCopy(t *testing.T) {
	table := fixture.ChildService.Flatten()
	require.Len(t, table, 2)
	delete(table, "operation")
	_, ok := fixture.ChildService.Method("operation")
	assert.True(t, ok)
}

func TestMethodSpec(t *testing.T) {
	m := fixture.OperationMethod
	assert.Equal(t, reflect.TypeOf(fixture.OperationArgs{}), m.Args)
	assert.Equal(t, reflect.TypeOf(fixture.Operation(0)), m.Result.Success)
	assert.False(t, m.Result.Void())
	assert.True(t, fixture.PingMethod.Result.Void())

	args := m.NewArgs()
	name, missing := m.MissingArgument(args)
	assert.True(t, missing)
	assert.Equal(t, "one", name)

	one, another := "Add", int32(1)
	args.Interface().(*fixture.OperationArgs).One = &one
	name, missing = m.MissingArgument(args)
	assert.True(t, missing)
	assert.Equal(t, "another", name)

	args.Interface().(*fixture.OperationArgs).Another = &another
	_, missing = m.MissingArgument(args)
	assert.False(t, missing)
}

func TestNewMethodSpecRejectsInvalid(t *testing.T) {
	type dupArgs struct {
		A *int32 `thrift:"a,1"`
		B *int32 `thrift:"b,1"`
	}
	_, err := service.NewMethodSpec("dup", reflect.TypeOf(dupArgs{}), reflect.TypeOf(int32(0)))
	assert.ErrorIs(t, err, rpcerr.ErrInvalidSchema)

	_, err = service.NewMethodSpec("", reflect.TypeOf(fixture.PingArgs{}), nil)
	assert.Error(t, err)

	assert.Panics(t, func() {
		service.NewMethod[fixture.PingArgs, int32]("zero", result.NewException[*fixture.Exception]("bad", 0))
	})
}

func TestBind(t *testing.T) {
	b := service.Bind(fixture.EchoMethod, func(_ context.Context, a *fixture.EchoArgs) (fixture.Simple, error) {
		return fixture.Simple{Key: a.Simple.Key + "!"}, nil
	})
	assert.Same(t, fixture.EchoMethod, b.Method)

	out, err := b.Handler(context.Background(), &fixture.EchoArgs{Simple: &fixture.Simple{Key: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, fixture.Simple{Key: "hi!"}, out)

	assert.Panics(t, func() {
		service.Bind(fixture.EchoMethod, func(context.Context, *fixture.EchoArgs) (int32, error) { return 0, nil })
	}, "wrong result type")
	assert.Panics(t, func() {
		service.Bind(fixture.EchoMethod, func(context.Context, *fixture.PingArgs) (fixture.Simple, error) { return fixture.Simple{}, nil })
	}, "wrong args type")
	assert.Panics(t, func() {
		service.Bind(fixture.PingMethod, func(context.Context, *fixture.PingArgs) (int32, error) { return 0, nil })
	}, "void method must return result.Void")
}
