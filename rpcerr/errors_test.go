package rpcerr

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestProtocolViolationsClassify(t *testing.T) {
	for _, err := range []error{
		WrapErrUnknownMethod("nope"),
		WrapErrMissingArgument("operation", "one"),
		WrapErrEmptyResult("get_struct"),
		WrapErrProtocolViolation("bad kind %d", 9),
	} {
		if !IsProtocolViolation(err) {
			t.Errorf("%v should be a protocol violation", err)
		}
		if errors.Is(err, ErrUnknownEnumValue) {
			t.Errorf("%v should not match ErrUnknownEnumValue", err)
		}
	}
}

func TestWrappedSentinels(t *testing.T) {
	cases := []struct {
		err    error
		target error
		text   string
	}{
		{WrapErrUnknownEnumValue("Operation", 9), ErrUnknownEnumValue, "enum Operation: value 9"},
		{WrapErrInvalidSchema("tag %q", "x"), ErrInvalidSchema, `tag "x"`},
		{WrapErrMethodCollision("operation", "A", "B"), ErrMethodCollision, `method "operation" declared by [A B]`},
		{WrapErrObserverPanic("echo", "boom"), ErrObserverPanic, `method "echo": boom`},
	}
	for _, tc := range cases {
		if !errors.Is(tc.err, tc.target) {
			t.Errorf("%v should match %v", tc.err, tc.target)
		}
		if got := tc.err.Error(); got != tc.text+": "+tc.target.Error() {
			t.Errorf("Error() = %q", got)
		}
		// Extra context keeps the classification.
		if !errors.Is(errors.Wrap(tc.err, "outer"), tc.target) {
			t.Errorf("wrapped %v lost its sentinel", tc.err)
		}
	}
}
