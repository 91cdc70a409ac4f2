// Package transport adapts a byte stream (usually a net.Conn) to thrift.TTransport
// by framing every flushed message.
//
// Writes are buffered until Flush, which emits exactly one frame. Reads load one
// frame at a time and serve bytes from it:
//
//	Write(...) Write(...) Flush ──→ [hdr|body] ──→ Read(...) Read(...)
//
// One message per frame keeps message boundaries visible to the serving loop and
// gives every frame a size limit checked before the body is read. Bodies may be
// zstd-compressed; the flag travels in the frame header.
package transport

import (
	"bytes"
	"context"
	"io"
	"mini-thrift/protocol"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
	"github.com/klauspost/compress/zstd"
)

// Options configure a FrameTransport.
type Options struct {
	Format       protocol.Format
	MaxFrameSize uint32
	Compress     bool
	// CompressMinSize skips compression for smaller bodies.
	CompressMinSize int
}

// Option configures Options.
type Option func(*Options)

func WithFormat(f protocol.Format) Option { return func(o *Options) { o.Format = f } }

func WithMaxFrameSize(n uint32) Option { return func(o *Options) { o.MaxFrameSize = n } }

// WithCompression compresses bodies of at least minSize bytes.
func WithCompression(minSize int) Option {
	return func(o *Options) {
		o.Compress = true
		o.CompressMinSize = minSize
	}
}

// FrameTransport is a framed thrift.TTransport. It is not safe for concurrent
// use; one call is in flight per transport.
type FrameTransport struct {
	conn io.ReadWriteCloser
	opts Options

	wbuf bytes.Buffer
	rbuf bytes.Reader
	wseq uint32
	rseq uint32

	enc *zstd.Encoder
	dec *zstd.Decoder
	open bool
}

var _ thrift.TTransport = (*FrameTransport)(nil)

// New wraps conn. The zstd decoder is always available so compressed frames
// from a peer are readable even when this side does not compress.
func New(conn io.ReadWriteCloser, opts ...Option) (*FrameTransport, error) {
	o := Options{MaxFrameSize: DefaultMaxFrameSize}
	for _, opt := range opts {
		opt(&o)
	}
	if !o.Format.Valid() {
		return nil, errors.Newf("transport: unsupported format %d", o.Format)
	}
	if o.MaxFrameSize == 0 {
		o.MaxFrameSize = DefaultMaxFrameSize
	}
	t := &FrameTransport{conn: conn, opts: o, open: conn != nil}
	dec, err := zstd.NewReader(nil, zstd.WithDecoderMaxMemory(uint64(o.MaxFrameSize)))
	if err != nil {
		return nil, errors.Wrap(err, "transport: create zstd decoder")
	}
	t.dec = dec
	if o.Compress {
		enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			dec.Close()
			return nil, errors.Wrap(err, "transport: create zstd encoder")
		}
		t.enc = enc
	}
	return t, nil
}

// Options returns the effective options.
func (t *FrameTransport) Options() Options { return t.opts }

// Open is a no-op: the wrapped stream is already connected.
func (t *FrameTransport) Open() error {
	if t.conn == nil {
		return thrift.NewTTransportException(thrift.NOT_OPEN, "transport: no connection")
	}
	return nil
}

func (t *FrameTransport) IsOpen() bool { return t.open }

// Close releases the codecs and closes the underlying stream.
func (t *FrameTransport) Close() error {
	if !t.open {
		return nil
	}
	t.open = false
	if t.enc != nil {
		_ = t.enc.Close()
	}
	t.dec.Close()
	return t.conn.Close()
}

// Write buffers p until Flush.
func (t *FrameTransport) Write(p []byte) (int, error) {
	return t.wbuf.Write(p)
}

// Flush emits the buffered bytes as one frame. An empty buffer writes nothing.
func (t *FrameTransport) Flush(ctx context.Context) error {
	if t.wbuf.Len() == 0 {
		return nil
	}
	defer t.wbuf.Reset()

	body := t.wbuf.Bytes()
	h := Header{Format: t.opts.Format}
	if t.enc != nil && len(body) >= t.opts.CompressMinSize {
		body = t.enc.EncodeAll(body, nil)
		h.Flags |= FlagCompressed
	}
	if uint32(len(body)) > t.opts.MaxFrameSize {
		return errors.Wrapf(ErrBadFrame, "outgoing body of %d bytes exceeds limit %d", len(body), t.opts.MaxFrameSize)
	}
	t.wseq++
	h.Seq = t.wseq
	if err := WriteFrame(t.conn, &h, body); err != nil {
		return thrift.NewTTransportExceptionFromError(err)
	}
	if f, ok := t.conn.(interface{ Flush() error }); ok {
		return f.Flush()
	}
	return nil
}

// Read serves bytes from the current frame, loading the next one when it is drained.
func (t *FrameTransport) Read(p []byte) (int, error) {
	for t.rbuf.Len() == 0 {
		if err := t.readFrame(); err != nil {
			return 0, err
		}
	}
	return t.rbuf.Read(p)
}

func (t *FrameTransport) readFrame() error {
	h, body, err := ReadFrame(t.conn, t.opts.MaxFrameSize)
	if err != nil {
		if errors.Is(err, ErrBadFrame) {
			return err
		}
		return thrift.NewTTransportExceptionFromError(err)
	}
	if h.Format != t.opts.Format {
		return errors.Wrapf(ErrBadFrame, "peer uses %v, want %v", h.Format, t.opts.Format)
	}
	if h.Flags&FlagCompressed != 0 {
		body, err = t.dec.DecodeAll(body, nil)
		if err != nil {
			return errors.Wrapf(ErrBadFrame, "decompress: %v", err)
		}
	}
	t.rseq = h.Seq
	t.rbuf.Reset(body)
	return nil
}

// RemainingBytes reports what is left of the current frame, or an unknown
// amount between frames.
func (t *FrameTransport) RemainingBytes() uint64 {
	if n := t.rbuf.Len(); n > 0 {
		return uint64(n)
	}
	return ^uint64(0)
}

// LastReadSeq returns the counter of the most recently read frame.
func (t *FrameTransport) LastReadSeq() uint32 { return t.rseq }
