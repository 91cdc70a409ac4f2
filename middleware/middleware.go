// Package middleware implements the observer chain notified on every inbound call.
//
// Observers are notify-only: they see the call after its arguments are decoded
// and before the handler runs, in registration order, and cannot change or stop
// the dispatch. A panicking observer fails the call.
//
//	ReadEnvelope → DecodeArgs → Notify(obs1, obs2, ...) → InvokeHandler → ...
package middleware

import (
	"context"
	"mini-thrift/message"
	"mini-thrift/rpcerr"
	"sync/atomic"
)

// Call is what observers are notified with.
type Call struct {
	Kind   message.Kind
	Method string
	SeqID  int32
	Args   any // pointer to the decoded argument struct
}

// Observer is notified once per dispatched call.
type Observer interface {
	Observe(ctx context.Context, call Call)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(ctx context.Context, call Call)

func (f ObserverFunc) Observe(ctx context.Context, call Call) { f(ctx, call) }

// Chain is an ordered, append-only list of observers. It is mutated during setup
// only; Freeze makes it read-only, after which Notify needs no locking.
type Chain struct {
	observers []Observer
	frozen    atomic.Bool
}

// NewChain creates a chain with the given observers.
func NewChain(observers ...Observer) *Chain {
	return &Chain{observers: observers}
}

// Append adds observers at the end. It fails once the chain is frozen.
func (c *Chain) Append(observers ...Observer) error {
	if c.frozen.Load() {
		return rpcerr.ErrChainFrozen
	}
	c.observers = append(c.observers, observers...)
	return nil
}

// Freeze stops further registration.
func (c *Chain) Freeze() { c.frozen.Store(true) }

// Frozen reports whether Freeze was called.
func (c *Chain) Frozen() bool { return c.frozen.Load() }

// Len returns the number of registered observers.
func (c *Chain) Len() int { return len(c.observers) }

// Notify calls every observer in registration order.
func (c *Chain) Notify(ctx context.Context, call Call) {
	for _, o := range c.observers {
		o.Observe(ctx, call)
	}
}
