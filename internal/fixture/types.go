// Package fixture holds the schema-annotated types and services shared by the
// tests and the demo binary, written the way generated code would be.
package fixture

import (
	"fmt"
	"mini-thrift/codec"
)

// Operation is an arithmetic operation.
type Operation int32

const (
	OperationAdd Operation = 1
	OperationSub Operation = 2
	OperationMul Operation = 3
	OperationDiv Operation = 4
)

var operationSchema = codec.MustEnum("Operation", OperationAdd,
	codec.EnumValue{Name: "Add", Value: int32(OperationAdd)},
	codec.EnumValue{Name: "Sub", Value: int32(OperationSub)},
	codec.EnumValue{Name: "Mul", Value: int32(OperationMul)},
	codec.EnumValue{Name: "Div", Value: int32(OperationDiv)},
)

func (Operation) EnumSchema() *codec.EnumSchema { return operationSchema }

func (o Operation) String() string { return operationSchema.String(int32(o)) }

// ParseOperation maps a variant name such as "Mul" to its value.
func ParseOperation(name string) (Operation, bool) {
	v, ok := operationSchema.Parse(name)
	return Operation(v), ok
}

type Simple struct {
	Key string `thrift:"key,16"`
}

type Empty struct{}

type Nested struct {
	Nested [][][]Simple `thrift:"nested,32"`
}

type Recursive struct {
	Recurse []Recursive `thrift:"recurse,0"`
}

type Many struct {
	One   int32                  `thrift:"one,3"`
	Two   string                 `thrift:"two,4"`
	Three []Simple               `thrift:"three,9"`
	Five  map[Operation]struct{} `thrift:"five,11"`
	Six   *Simple                `thrift:"six,14"`
}

type Optional struct {
	Optional *int64 `thrift:"optional,2"`
}

type DeeplyNested struct {
	Deeply [][][][][]int32 `thrift:"deeply,6,set"`
}

type ReferencesOther struct {
	Other   DeeplyNested       `thrift:"other,2"`
	Another Simple             `thrift:"another,3"`
	Map     map[int32][]string `thrift:"map,4"`
}

// SimpleV2 is a later revision of Simple with an extra field.
type SimpleV2 struct {
	Key   string `thrift:"key,16"`
	Note  string `thrift:"note,17"`
	Count *int32 `thrift:"count,18"`
}

// SimpleRetyped reuses Simple's tag with a different type.
type SimpleRetyped struct {
	Key int64 `thrift:"key,16"`
}

// Keyed carries a required field.
type Keyed struct {
	ID    int64  `thrift:"id,1,required"`
	Label string `thrift:"label,2"`
}

// Instruction holds an enum directly; an unset Op reads as the default, Add.
type Instruction struct {
	Op    Operation `thrift:"op,1"`
	Label string    `thrift:"label,2"`
	Tags  []string  `thrift:"tags,3,set"`
}

// Exception is the declared exception of ServiceWithException.
type Exception struct {
	Name    string `thrift:"name,0"`
	Message string `thrift:"message,1"`
}

func (e *Exception) Error() string {
	return fmt.Sprintf("%s: %s", e.Name, e.Message)
}
