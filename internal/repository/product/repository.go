package product

import (
	"context"

	"marketplace-api/internal/domain"
)

// Store reads products of a single kind.
type Store interface {
	Get(ctx context.Context, id int64) (*domain.Product, error)
	List(ctx context.Context, activeOnly bool) ([]domain.Product, error)
}

// Registry resolves tagged product references through per-kind stores, so
// no caller ever needs runtime type inspection.
type Registry struct {
	stores map[domain.Kind]Store
}

func NewRegistry() *Registry {
	return &Registry{stores: make(map[domain.Kind]Store, len(domain.Kinds))}
}

func (r *Registry) Register(kind domain.Kind, store Store) {
	r.stores[kind] = store
}

// Resolve loads the product a ref points at. Unknown kinds are a caller
// fault; missing rows surface as domain.ErrNotFound.
func (r *Registry) Resolve(ctx context.Context, ref domain.ProductRef) (*domain.Product, error) {
	store, ok := r.stores[ref.Kind]
	if !ok {
		return nil, domain.Validationf("no product store registered for kind %q", ref.Kind)
	}
	return store.Get(ctx, ref.ID)
}

// List returns products of one kind.
func (r *Registry) List(ctx context.Context, kind domain.Kind, activeOnly bool) ([]domain.Product, error) {
	store, ok := r.stores[kind]
	if !ok {
		return nil, domain.Validationf("no product store registered for kind %q", kind)
	}
	return store.List(ctx, activeOnly)
}
