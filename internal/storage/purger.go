package storage

import (
	"context"
	"fmt"
)

// Purger routes purge calls to the right collection's local store.
type Purger struct {
	stores map[string]LocalStore
}

// NewPurger creates an empty purger.
func NewPurger() *Purger {
	return &Purger{stores: make(map[string]LocalStore)}
}

// Register adds a collection's local store under the given name.
func (p *Purger) Register(collection string, store LocalStore) {
	p.stores[collection] = store
}

// PurgeCollection drops every record of one collection. Unknown collections
// are a no-op: a reset must not fail because a cache was never created.
func (p *Purger) PurgeCollection(ctx context.Context, collection string) error {
	store, ok := p.stores[collection]
	if !ok {
		return nil
	}
	if err := store.PurgeCollection(ctx); err != nil {
		return fmt.Errorf("purge %s: %w", collection, err)
	}
	return nil
}
