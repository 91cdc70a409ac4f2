package transport

import (
	"encoding/binary"
	"io"
	"mini-thrift/protocol"

	"github.com/cockroachdb/errors"
)

// Magic bytes "mtp" (mini-thrift protocol) identify a frame and reject
// non-protocol peers (an HTTP client hitting the wrong port, say).
const (
	MagicNumber byte = 0x6d // 'm'
	MagicByte2  byte = 0x74 // 't'
	MagicByte3  byte = 0x70 // 'p'
	Version     byte = 0x01
	HeaderSize  int  = 14 // 3 (magic) + 1 (version) + 1 (format) + 1 (flags) + 4 (seq) + 4 (bodyLen)
)

// DefaultMaxFrameSize bounds the body of a single frame.
const DefaultMaxFrameSize uint32 = 16 << 20

// Flags describe how the body is stored.
type Flags byte

const (
	FlagCompressed Flags = 1 << 0 // body is one zstd frame
)

const knownFlags = FlagCompressed

// ErrBadFrame classifies every frame that cannot be accepted.
var ErrBadFrame = errors.New("transport: bad frame")

// Header is the fixed 14-byte frame header.
type Header struct {
	Format  protocol.Format // wire format of the message inside the body
	Flags   Flags
	Seq     uint32 // per-direction frame counter, informational only
	BodyLen uint32
}

// WriteFrame writes header and body with a single Write, so concurrent writers
// on distinct frames can never interleave on a shared connection.
func WriteFrame(w io.Writer, h *Header, body []byte) error {
	buf := make([]byte, HeaderSize+len(body))
	copy(buf[0:3], []byte{MagicNumber, MagicByte2, MagicByte3})
	buf[3] = Version
	buf[4] = byte(h.Format)
	buf[5] = byte(h.Flags)
	binary.BigEndian.PutUint32(buf[6:10], h.Seq)
	binary.BigEndian.PutUint32(buf[10:14], uint32(len(body)))
	copy(buf[HeaderSize:], body)
	_, err := w.Write(buf)
	return err
}

// ReadFrame reads one frame. Magic, version, format, flags and the body size
// limit are validated before the body is read.
func ReadFrame(r io.Reader, maxBody uint32) (*Header, []byte, error) {
	hb := make([]byte, HeaderSize)
	if _, err := io.ReadFull(r, hb); err != nil {
		return nil, nil, err
	}
	if hb[0] != MagicNumber || hb[1] != MagicByte2 || hb[2] != MagicByte3 {
		return nil, nil, errors.Wrapf(ErrBadFrame, "invalid magic number: %x", hb[0:3])
	}
	if hb[3] != Version {
		return nil, nil, errors.Wrapf(ErrBadFrame, "unsupported version: %d", hb[3])
	}
	format := protocol.Format(hb[4])
	if !format.Valid() {
		return nil, nil, errors.Wrapf(ErrBadFrame, "unsupported format: %d", hb[4])
	}
	flags := Flags(hb[5])
	if flags&^knownFlags != 0 {
		return nil, nil, errors.Wrapf(ErrBadFrame, "unknown flags: %08b", hb[5])
	}
	h := &Header{
		Format:  format,
		Flags:   flags,
		Seq:     binary.BigEndian.Uint32(hb[6:10]),
		BodyLen: binary.BigEndian.Uint32(hb[10:14]),
	}
	if maxBody > 0 && h.BodyLen > maxBody {
		return nil, nil, errors.Wrapf(ErrBadFrame, "body of %d bytes exceeds limit %d", h.BodyLen, maxBody)
	}
	body := make([]byte, h.BodyLen)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, nil, err
	}
	return h, body, nil
}
