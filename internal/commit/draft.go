package commit

import (
	"context"
	"sync"
)

// Draft is the locally edited value of one field. The server value always
// wins unless the field is being edited.
type Draft[T any] struct {
	mu      sync.Mutex
	value   T
	server  T
	editing bool
}

func NewDraft[T any](server T) *Draft[T] {
	return &Draft[T]{value: server, server: server}
}

func (d *Draft[T]) Value() T {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.value
}

func (d *Draft[T]) Set(v T) {
	d.mu.Lock()
	d.value = v
	d.mu.Unlock()
}

// Sync records a fresh server value and adopts it unless editing.
func (d *Draft[T]) Sync(server T) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.server = server
	if !d.editing {
		d.value = server
	}
}

// Revert drops the local edit in favour of the last server value.
func (d *Draft[T]) Revert() {
	d.mu.Lock()
	d.value = d.server
	d.mu.Unlock()
}

func (d *Draft[T]) Begin() {
	d.mu.Lock()
	d.editing = true
	d.mu.Unlock()
}

func (d *Draft[T]) End() {
	d.mu.Lock()
	d.editing = false
	d.mu.Unlock()
}

func (d *Draft[T]) Editing() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.editing
}

// Apply shows value in the draft right away, runs commit and reverts the
// draft if the commit fails.
func Apply[T any](ctx context.Context, d *Draft[T], value T, commit func(context.Context, T) (bool, error)) (bool, error) {
	d.Set(value)
	written, err := commit(ctx, value)
	if err != nil {
		d.Revert()
		return false, err
	}
	return written, nil
}
