package fixture

import (
	"context"
	"mini-thrift/persist"
	"strconv"
	"sync/atomic"
)

// Impl implements every fixture handler. Structs served by GetStruct are kept in
// Store under "struct:<key>" and synthesized on first use.
type Impl struct {
	Store persist.Store
	// Fail makes the throwing operation raise its declared exception.
	Fail bool

	pings atomic.Int64
}

func NewImpl(store persist.Store) *Impl {
	if store == nil {
		store = persist.NewMemoryStore()
	}
	return &Impl{Store: store}
}

func structKey(key int32) string { return "struct:" + strconv.Itoa(int(key)) }

func (i *Impl) GetStruct(ctx context.Context, key int32) (DeeplyNested, error) {
	v, ok, err := persist.Read[DeeplyNested](ctx, i.Store, structKey(key))
	if err != nil || ok {
		return v, err
	}
	v = DeeplyNested{Deeply: [][][][][]int32{{{{{key}}}}}}
	return v, persist.Write(ctx, i.Store, structKey(key), v)
}

// Operation maps an operation name to its variant; unknown names return the raw
// integer another. A server refuses to write it back unless it is a declared variant.
func (i *Impl) Operation(_ context.Context, one string, another int32) (Operation, error) {
	if op, ok := ParseOperation(one); ok {
		return op, nil
	}
	return Operation(another), nil
}

func (i *Impl) ThrowingOperation(context.Context) (int32, error) {
	if i.Fail {
		return 0, &Exception{Name: "bad", Message: "operation failed"}
	}
	return 42, nil
}

func (i *Impl) Echo(_ context.Context, s Simple) (Simple, error) { return s, nil }

func (i *Impl) Ping(context.Context) error {
	i.pings.Add(1)
	return nil
}

// Pings returns how often Ping was called.
func (i *Impl) Pings() int64 { return i.pings.Load() }

// throwing adapts the throwing operation to ThrowingHandler.
type throwing struct{ *Impl }

func (t throwing) Operation(ctx context.Context) (int32, error) { return t.ThrowingOperation(ctx) }

// Throwing returns i as a ThrowingHandler.
func (i *Impl) Throwing() ThrowingHandler { return throwing{i} }
