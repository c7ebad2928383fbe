// Package store provides the entity store the sync engine reads from and
// writes to: an embedded SQLite database for real use and an in-memory
// implementation for tests.
//
// The store is the source of truth. The sync engine only lists, fetches
// and upserts records; it never deletes them.
package store

import (
	"context"
	"errors"

	"github.com/c5t/c5t/internal/types"
)

// ErrNotFound is returned by Get when no record has the identifier.
var ErrNotFound = errors.New("record not found")

// Store is the entity store consumed by the sync engine.
type Store interface {
	// ListAll returns every record of a kind ordered by identifier.
	ListAll(ctx context.Context, kind types.Kind) ([]types.Entity, error)

	// Get returns one record, or ErrNotFound.
	Get(ctx context.Context, kind types.Kind, id string) (types.Entity, error)

	// Upsert inserts e or replaces the record with the same identifier,
	// fields and timestamps included.
	Upsert(ctx context.Context, e types.Entity) error

	// ListLinks returns every join record of a relation ordered by
	// endpoints.
	ListLinks(ctx context.Context, rel types.Relation) ([]types.Link, error)

	// AddLink records l if it is not present yet and reports whether it
	// was added.
	AddLink(ctx context.Context, l types.Link) (bool, error)
}

// Counter is implemented by stores that can count records without loading
// them.
type Counter interface {
	Count(ctx context.Context, kind types.Kind) (int, error)
}

// Count returns the number of records of kind in st, using Counter when
// available.
func Count(ctx context.Context, st Store, kind types.Kind) (int, error) {
	if c, ok := st.(Counter); ok {
		return c.Count(ctx, kind)
	}
	records, err := st.ListAll(ctx, kind)
	if err != nil {
		return 0, err
	}
	return len(records), nil
}
