package settlement

import (
	"context"
	"fmt"
	"sync"

	"github.com/odyssey-erp/odyssey-retail/internal/shared"
)

// Resolver loads the entity a reference points at.
type Resolver func(ctx context.Context, id int64) (any, error)

// ReferenceRegistry resolves ledger references to their source documents.
type ReferenceRegistry struct {
	mu        sync.RWMutex
	resolvers map[shared.RefKind]Resolver
}

// NewReferenceRegistry constructs an empty registry.
func NewReferenceRegistry() *ReferenceRegistry {
	return &ReferenceRegistry{resolvers: make(map[shared.RefKind]Resolver)}
}

// Register binds kind to fn, replacing any earlier resolver.
func (r *ReferenceRegistry) Register(kind shared.RefKind, fn Resolver) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resolvers[kind] = fn
}

// Resolve loads the entity behind ref.
func (r *ReferenceRegistry) Resolve(ctx context.Context, ref shared.Reference) (any, error) {
	if ref.IsZero() {
		return nil, fmt.Errorf("%w: empty reference", shared.ErrValidation)
	}
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	fn, ok := r.resolvers[ref.Kind]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: no resolver for %s", shared.ErrNotFound, ref.Kind)
	}
	return fn(ctx, ref.ID)
}
