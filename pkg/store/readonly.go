package store

import (
	"context"
)

// ReadOnlyStore refuses transactions while its toggle reports true.
//
// Writes are only reachable through a Tx, so guarding Transaction and
// Migrate is enough to stop every mutation. Reads always pass through.
// The toggle is consulted on every call, so a running server can enter
// and leave read-only mode without reopening the store.
type ReadOnlyStore struct {
	Store
	isReadOnly func() bool
}

func NewReadOnlyStore(s Store, isReadOnly func() bool) Store {
	return &ReadOnlyStore{
		Store:      s,
		isReadOnly: isReadOnly,
	}
}

// Unwrap returns the wrapped store.
func (r *ReadOnlyStore) Unwrap() Store {
	return r.Store
}

func (r *ReadOnlyStore) Transaction(ctx context.Context, fn func(tx Tx) error) error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return r.Store.Transaction(ctx, fn)
}

func (r *ReadOnlyStore) Migrate(ctx context.Context) error {
	if r.isReadOnly() {
		return ErrReadOnly
	}
	return r.Store.Migrate(ctx)
}
