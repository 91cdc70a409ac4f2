package fixture

import (
	"context"
	"mini-thrift/client"
	"mini-thrift/result"
	"mini-thrift/service"
)

type SharedHandler interface {
	GetStruct(ctx context.Context, key int32) (DeeplyNested, error)
}

type ChildHandler interface {
	SharedHandler
	Operation(ctx context.Context, one string, another int32) (Operation, error)
}

type ThrowingHandler interface {
	Operation(ctx context.Context) (int32, error)
}

type EchoHandler interface {
	Echo(ctx context.Context, s Simple) (Simple, error)
	Ping(ctx context.Context) error
}

func SharedBindings(h SharedHandler) []service.Binding {
	return []service.Binding{
		service.Bind(GetStructMethod, func(ctx context.Context, a *GetStructArgs) (DeeplyNested, error) {
			return h.GetStruct(ctx, *a.Key)
		}),
	}
}

func ChildBindings(h ChildHandler) []service.Binding {
	return append(SharedBindings(h),
		service.Bind(OperationMethod, func(ctx context.Context, a *OperationArgs) (Operation, error) {
			return h.Operation(ctx, *a.One, *a.Another)
		}),
	)
}

func ThrowingBindings(h ThrowingHandler) []service.Binding {
	return []service.Binding{
		service.Bind(ThrowingOperationMethod, func(ctx context.Context, _ *ThrowingOperationArgs) (int32, error) {
			return h.Operation(ctx)
		}),
	}
}

func EchoBindings(h EchoHandler) []service.Binding {
	return []service.Binding{
		service.Bind(EchoMethod, func(ctx context.Context, a *EchoArgs) (Simple, error) {
			return h.Echo(ctx, *a.Simple)
		}),
		service.Bind(PingMethod, func(ctx context.Context, _ *PingArgs) (result.Void, error) {
			return result.Void{}, h.Ping(ctx)
		}),
	}
}

// CombinedBindings binds every method of CombinedService.
func CombinedBindings(h interface {
	ChildHandler
	EchoHandler
}) []service.Binding {
	return append(ChildBindings(h), EchoBindings(h)...)
}

// Client is a typed stub over every method the fixture services declare. Which
// methods a server answers depends on the service it was built for.
type Client struct {
	c *client.Client
}

func NewClient(c *client.Client) *Client { return &Client{c: c} }

func (c *Client) GetStruct(ctx context.Context, key int32) (DeeplyNested, error) {
	return client.Call[DeeplyNested](ctx, c.c, GetStructMethod, &GetStructArgs{Key: &key})
}

func (c *Client) Operation(ctx context.Context, one string, another int32) (Operation, error) {
	return client.Call[Operation](ctx, c.c, OperationMethod, &OperationArgs{One: &one, Another: &another})
}

func (c *Client) ThrowingOperation(ctx context.Context) (int32, error) {
	return client.Call[int32](ctx, c.c, ThrowingOperationMethod, &ThrowingOperationArgs{})
}

func (c *Client) Echo(ctx context.Context, s Simple) (Simple, error) {
	return client.Call[Simple](ctx, c.c, EchoMethod, &EchoArgs{Simple: &s})
}

func (c *Client) Ping(ctx context.Context) error {
	_, err := client.Call[result.Void](ctx, c.c, PingMethod, &PingArgs{})
	return err
}
