package result

import (
	"fmt"
	"reflect"
)

// Exception declares one exception variant of a method.
type Exception struct {
	Name string
	ID   int16
	Type reflect.Type // payload type: pointer to a tagged struct implementing error
}

// NewException declares the variant carried by payload type E, for example
// NewException[*InvalidOperation]("bad", 1).
func NewException[E error](name string, id int16) Exception {
	return Exception{
		Name: name,
		ID:   id,
		Type: reflect.TypeOf((*E)(nil)).Elem(),
	}
}

// Error is a method's application-level error: exactly one declared exception
// variant and its payload. It unwraps to the payload, so callers can match with
// errors.As(err, &payload).
type Error struct {
	Method    string
	Exception string
	ID        int16
	Payload   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Method, e.Exception, e.Payload)
}

func (e *Error) Unwrap() error { return e.Payload }
