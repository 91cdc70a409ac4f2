package message

import (
	"context"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
)

// WriteException answers a call with an application exception instead of a reply.
// Standard Thrift clients decode it as TApplicationException.
func WriteException(ctx context.Context, p thrift.TProtocol, call Header, typeID int32, msg string) error {
	exc := thrift.NewTApplicationException(typeID, msg)
	h := Header{Name: call.Name, Kind: Exception, SeqID: call.SeqID}
	return Write(ctx, p, h, BodyFunc(exc.Write))
}

// ReadException decodes the body of an Exception message and finishes the message.
func ReadException(ctx context.Context, p thrift.TProtocol) (thrift.TApplicationException, error) {
	exc := thrift.NewTApplicationException(thrift.UNKNOWN_APPLICATION_EXCEPTION, "")
	if err := exc.Read(ctx, p); err != nil {
		return nil, errors.Wrap(err, "message: read application exception")
	}
	if err := ReadEnd(ctx, p); err != nil {
		return nil, err
	}
	return exc, nil
}
