package fixture

import (
	"mini-thrift/result"
	"mini-thrift/service"
)

type GetStructArgs struct {
	Key *int32 `thrift:"key,1"`
}

type OperationArgs struct {
	One     *string `thrift:"one,2"`
	Another *int32  `thrift:"another,3"`
}

type ThrowingOperationArgs struct{}

type EchoArgs struct {
	Simple *Simple `thrift:"simple,1"`
}

type PingArgs struct{}

var (
	GetStructMethod = service.NewMethod[GetStructArgs, DeeplyNested]("get_struct")
	OperationMethod = service.NewMethod[OperationArgs, Operation]("operation")

	ThrowingOperationMethod = service.NewMethod[ThrowingOperationArgs, int32]("operation",
		result.NewException[*Exception]("bad", 1),
	)

	EchoMethod = service.NewMethod[EchoArgs, Simple]("echo")
	PingMethod = service.NewMethod[PingArgs, result.Void]("ping")
)

var (
	SharedService        = service.MustNew("SharedService", nil, GetStructMethod)
	ChildService         = service.MustNew("ChildService", []*service.Service{SharedService}, OperationMethod)
	ServiceWithException = service.MustNew("ServiceWithException", nil, ThrowingOperationMethod)
	EchoService          = service.MustNew("EchoService", nil, EchoMethod, PingMethod)

	// CombinedService extends two unrelated parents.
	CombinedService = service.MustNew("CombinedService", []*service.Service{ChildService, EchoService})
)
