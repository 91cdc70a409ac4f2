package codec

import (
	"cmp"
	"fmt"
	"reflect"
	"slices"
)

// SortedKeys returns the keys of map rv in a deterministic order, so the same
// map or set always produces the same bytes.
func SortedKeys(rv reflect.Value) []reflect.Value {
	keys := rv.MapKeys()
	slices.SortFunc(keys, CompareValues)
	return keys
}

// SortedSet returns the elements of slice or array rv in order with duplicates
// removed, which is how a slice tagged "set" is written.
func SortedSet(rv reflect.Value) []reflect.Value {
	elems := make([]reflect.Value, rv.Len())
	for i := range elems {
		elems[i] = rv.Index(i)
	}
	slices.SortFunc(elems, CompareValues)
	return slices.CompactFunc(elems, func(a, b reflect.Value) bool { return CompareValues(a, b) == 0 })
}

// CompareValues orders two values of the same type. Scalars compare naturally,
// sequences element by element, structs field by field and pointers by target
// with nil first. Maps fall back to their formatted representation.
func CompareValues(a, b reflect.Value) int {
	switch a.Kind() {
	case reflect.Bool:
		return cmp.Compare(boolInt(a.Bool()), boolInt(b.Bool()))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return cmp.Compare(a.Int(), b.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return cmp.Compare(a.Uint(), b.Uint())
	case reflect.Float32, reflect.Float64:
		return cmp.Compare(a.Float(), b.Float())
	case reflect.String:
		return cmp.Compare(a.String(), b.String())
	case reflect.Slice, reflect.Array:
		for i := range min(a.Len(), b.Len()) {
			if c := CompareValues(a.Index(i), b.Index(i)); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.Len(), b.Len())
	case reflect.Struct:
		for i := range a.NumField() {
			if c := CompareValues(a.Field(i), b.Field(i)); c != 0 {
				return c
			}
		}
		return 0
	case reflect.Ptr, reflect.Interface:
		switch {
		case a.IsNil() && b.IsNil():
			return 0
		case a.IsNil():
			return -1
		case b.IsNil():
			return 1
		}
		return CompareValues(a.Elem(), b.Elem())
	}
	return cmp.Compare(fmt.Sprint(a.Interface()), fmt.Sprint(b.Interface()))
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
