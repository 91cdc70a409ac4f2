// Package message defines the envelope that precedes every call and reply body.
//
// On the wire an envelope is (method name, kind, sequence id) followed by exactly
// one struct-encoded body: the argument struct for a Call, the result envelope for
// a Reply, an application exception for an Exception.
//
// The sequence id is carried through verbatim. Only one call is ever in flight on
// a transport, so nothing here matches or validates it.
package message

import (
	"context"
	"fmt"
	"mini-thrift/rpcerr"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
)

// Kind is the message kind written in the envelope.
type Kind int32

const (
	Call      Kind = Kind(thrift.CALL)
	Reply     Kind = Kind(thrift.REPLY)
	Exception Kind = Kind(thrift.EXCEPTION)
	Oneway    Kind = Kind(thrift.ONEWAY) // recognised on read, never dispatched
)

func (k Kind) String() string {
	switch k {
	case Call:
		return "call"
	case Reply:
		return "reply"
	case Exception:
		return "exception"
	case Oneway:
		return "oneway"
	}
	return fmt.Sprintf("kind(%d)", int32(k))
}

// Header is one message envelope.
type Header struct {
	Name  string // method name, matched case-sensitively
	Kind  Kind
	SeqID int32 // opaque, echoed from call to reply
}

// Body is anything that can write itself as a struct, such as a *result.Envelope.
type Body interface {
	Encode(ctx context.Context, p thrift.TProtocol) error
}

// ReadBegin reads the envelope header.
func ReadBegin(ctx context.Context, p thrift.TProtocol) (Header, error) {
	name, kind, seq, err := p.ReadMessageBegin(ctx)
	if err != nil {
		return Header{}, errors.Wrap(err, "message: read begin")
	}
	h := Header{Name: name, Kind: Kind(kind), SeqID: seq}
	switch h.Kind {
	case Call, Reply, Exception, Oneway:
		return h, nil
	}
	return h, rpcerr.WrapErrProtocolViolation("message: invalid kind %d for %q", int32(kind), name)
}

// ReadEnd finishes reading a message.
func ReadEnd(ctx context.Context, p thrift.TProtocol) error {
	return errors.Wrap(p.ReadMessageEnd(ctx), "message: read end")
}

// Write writes a complete message (header, body, end) and flushes the protocol.
func Write(ctx context.Context, p thrift.TProtocol, h Header, body Body) error {
	if err := p.WriteMessageBegin(ctx, h.Name, thrift.TMessageType(h.Kind), h.SeqID); err != nil {
		return errors.Wrapf(err, "message: write %s begin", h.Name)
	}
	if err := body.Encode(ctx, p); err != nil {
		return errors.Wrapf(err, "message: write %s body", h.Name)
	}
	if err := p.WriteMessageEnd(ctx); err != nil {
		return errors.Wrapf(err, "message: write %s end", h.Name)
	}
	return errors.Wrapf(p.Flush(ctx), "message: flush %s", h.Name)
}

// BodyFunc adapts a function to Body.
type BodyFunc func(ctx context.Context, p thrift.TProtocol) error

func (f BodyFunc) Encode(ctx context.Context, p thrift.TProtocol) error { return f(ctx, p) }
