// Package persist writes schema-annotated values into a flat key-value store
// and reads them back.
//
// A value under key K is spread over keys derived from K:
//
//	scalar, enum     K                      text form, enums as their integer
//	struct           K:FIELD_0016           one entry per field, by tag
//	list, set        K:ARRAYSIZE            element count
//	                 K:INDEX_0000 ...       one entry per element (sets sorted, no duplicates)
//	map              K:ARRAYSIZE            entry count
//	                 K:INDEX_0000:KEY       entries ordered by key
//	                 K:INDEX_0000:VALUE
//	optional (nil)   nothing; K and K:* are removed
//
// The layout nests: a list of structs stores field 16 of element 2 at
// K:INDEX_0002:FIELD_0016. A missing key reads as not found, never as an error.
package persist

import (
	"context"

	"github.com/cockroachdb/errors"
)

// ErrCorrupt marks stored text that cannot be parsed back into the schema type.
var ErrCorrupt = errors.New("persist: corrupt entry")

// Store is a flat string key-value store.
type Store interface {
	// Get returns the value under key; ok is false when the key does not exist.
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Put(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix.
	DeletePrefix(ctx context.Context, prefix string) error
}
