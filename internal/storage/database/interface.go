// Package database is the ordered key-value layer the row store is built on.
package database

import (
	"context"
)

// DB defines the operations a key-value backend must support. Keys are
// ordered bytewise.
type DB interface {
	Read(ctx context.Context, key []byte) ([]byte, error)
	Write(ctx context.Context, key []byte, value []byte) error
	Delete(ctx context.Context, key []byte) error

	// Batch applies ops atomically.
	Batch(ctx context.Context, ops []BatchOperation) error

	// Iterator walks keys in [start, end) in ascending order. A nil end
	// means no upper bound.
	Iterator(ctx context.Context, start, end []byte) (Iterator, error)

	// Last returns the highest entry in [start, end), or ErrKeyNotFound.
	Last(ctx context.Context, start, end []byte) (key, value []byte, err error)

	Close() error
}

// Iterator allows traversing over database entries
type Iterator interface {
	Next() bool
	Key() []byte
	Value() []byte
	Error() error
	Close() error
}

// BatchOperation represents a single operation in a batch
type BatchOperation struct {
	Type  BatchOpType
	Key   []byte
	Value []byte
}

type BatchOpType int

const (
	BatchPut BatchOpType = iota
	BatchDelete
)

// Put is a shorthand for a BatchPut operation.
func Put(key, value []byte) BatchOperation {
	return BatchOperation{Type: BatchPut, Key: key, Value: value}
}
