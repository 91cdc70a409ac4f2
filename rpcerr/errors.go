// Package rpcerr defines the error taxonomy shared by every mini-thrift package.
//
// Leaf errors are package-level sentinels. Callers wrap them with context through
// the WrapErr* helpers so errors.Is keeps classifying the failure:
//
//	err := rpcerr.WrapErrUnknownMethod("get_struct")
//	errors.Is(err, rpcerr.ErrProtocolViolation) // true
package rpcerr

import (
	"github.com/cockroachdb/errors"
)

// Define leaf errors here.
// Name: Err + error name. Check whether an existing error fits before adding a new one.
var (
	// ErrProtocolViolation: malformed envelope, unknown method, missing argument,
	// or a reply that carries neither a success value nor a declared exception.
	ErrProtocolViolation = errors.New("protocol violation")
	// ErrUnknownEnumValue: an integer with no matching enum variant.
	ErrUnknownEnumValue = errors.New("unknown enum value")
	// ErrInvalidSchema: a Go type or service declaration that cannot be turned into a schema.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrMethodCollision: two different methods share a name in one effective method set.
	ErrMethodCollision = errors.New("method name collision")
	// ErrChainFrozen: an observer was appended after dispatch began.
	ErrChainFrozen = errors.New("observer chain frozen")
	// ErrObserverPanic: an observer panicked while being notified.
	ErrObserverPanic = errors.New("observer panic")
)

func WrapErrUnknownMethod(name string) error {
	return errors.Wrapf(ErrProtocolViolation, "unknown method %q", name)
}

func WrapErrMissingArgument(method, arg string) error {
	return errors.Wrapf(ErrProtocolViolation, "method %q: missing argument %q", method, arg)
}

func WrapErrEmptyResult(method string) error {
	return errors.Wrapf(ErrProtocolViolation, "method %q: reply carries no success value and no declared exception", method)
}

func WrapErrProtocolViolation(format string, args ...any) error {
	return errors.Wrapf(ErrProtocolViolation, format, args...)
}

func WrapErrUnknownEnumValue(enum string, value int32) error {
	return errors.Wrapf(ErrUnknownEnumValue, "enum %s: value %d", enum, value)
}

func WrapErrInvalidSchema(format string, args ...any) error {
	return errors.Wrapf(ErrInvalidSchema, format, args...)
}

func WrapErrMethodCollision(method string, owners ...string) error {
	return errors.Wrapf(ErrMethodCollision, "method %q declared by %v", method, owners)
}

func WrapErrObserverPanic(method string, recovered any) error {
	return errors.Wrapf(ErrObserverPanic, "method %q: %v", method, recovered)
}

// IsProtocolViolation reports whether err is classified as a protocol violation.
func IsProtocolViolation(err error) bool {
	return errors.Is(err, ErrProtocolViolation)
}
