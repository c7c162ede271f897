// Package store defines the path-addressed room store and its backends.
//
// Values form a JSON tree. Paths are slash separated ("rooms/ABCDEF/config").
// Every backend persists one document per room ("rooms/<id>") and pushes the
// current value of a subscribed path on every change.
package store

import (
	"context"
	"errors"
)

var (
	ErrInvalidPath  = errors.New("invalid_path")
	ErrInvalidValue = errors.New("invalid_value")
	ErrClosed       = errors.New("store_closed")
)

// ValueFunc receives the value at a subscribed path. exists is false when
// nothing is stored there.
type ValueFunc func(value any, exists bool)

type ErrorFunc func(err error)

type Store interface {
	// Subscribe delivers the current value at path immediately and again on
	// every change, in order, from a single goroutine per subscription. The
	// returned function releases the subscription and is safe to call twice.
	Subscribe(ctx context.Context, path string, onValue ValueFunc, onError ErrorFunc) (func(), error)
	ReadOnce(ctx context.Context, path string) (any, bool, error)
	Write(ctx context.Context, path string, value any) error
	// MultiUpdate applies every path/value pair atomically. A nil value
	// deletes the path.
	MultiUpdate(ctx context.Context, updates map[string]any) error
	Remove(ctx context.Context, path string) error
	Close() error
}

// Lister is implemented by backends that can enumerate child keys.
type Lister interface {
	Keys(ctx context.Context, path string) ([]string, error)
}
