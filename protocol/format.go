// Package protocol selects the byte format the codec engine writes through.
//
// The engine only sees thrift.TProtocol; which concrete encoding sits behind it
// is a deployment choice:
//
//	binary   strict Thrift binary protocol (the default, wire-compatible with classic Thrift)
//	compact  Thrift compact protocol
//	json     Thrift JSON protocol
//
// Format values are also written into every transport frame header so a peer
// using a different format is rejected instead of misparsed.
package protocol

import (
	"strings"

	"github.com/apache/thrift/lib/go/thrift"
	"github.com/cockroachdb/errors"
)

// Format identifies a wire format.
type Format byte

const (
	FormatBinary  Format = 0
	FormatCompact Format = 1
	FormatJSON    Format = 2
)

// DefaultMaxMessageSize bounds a single message.
const DefaultMaxMessageSize = 16 << 20

func (f Format) String() string {
	switch f {
	case FormatBinary:
		return "binary"
	case FormatCompact:
		return "compact"
	case FormatJSON:
		return "json"
	}
	return "unknown"
}

// Valid reports whether f is a known format.
func (f Format) Valid() bool {
	return f == FormatBinary || f == FormatCompact || f == FormatJSON
}

// ParseFormat maps a format name to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "binary":
		return FormatBinary, nil
	case "compact":
		return FormatCompact, nil
	case "json":
		return FormatJSON, nil
	}
	return 0, errors.Newf("protocol: unknown format %q", s)
}

// Configuration returns the thrift configuration used by every format: strict
// binary read/write and the given message size limit (0 means the default).
func Configuration(maxMessageSize int32) *thrift.TConfiguration {
	if maxMessageSize <= 0 {
		maxMessageSize = DefaultMaxMessageSize
	}
	return &thrift.TConfiguration{
		MaxMessageSize:     maxMessageSize,
		TBinaryStrictRead:  thrift.BoolPtr(true),
		TBinaryStrictWrite: thrift.BoolPtr(true),
	}
}

// Factory returns the protocol factory for f. Unknown formats fall back to binary.
func (f Format) Factory(conf *thrift.TConfiguration) thrift.TProtocolFactory {
	if conf == nil {
		conf = Configuration(0)
	}
	switch f {
	case FormatCompact:
		return thrift.NewTCompactProtocolFactoryConf(conf)
	case FormatJSON:
		return thrift.NewTJSONProtocolFactory()
	}
	return thrift.NewTBinaryProtocolFactoryConf(conf)
}

// New binds format f to transport t.
func (f Format) New(t thrift.TTransport, conf *thrift.TConfiguration) thrift.TProtocol {
	return f.Factory(conf).GetProtocol(t)
}
