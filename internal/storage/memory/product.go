package memory

import (
	"cmp"
	"context"
	"slices"

	"github.com/xenking/shopping-cart/internal/domain/product"
)

var _ product.Repository = (*ProductRepository)(nil)

// ProductRepository implements product.Repository on top of a DB.
type ProductRepository struct {
	db *DB
}

// NewProductRepository returns a ProductRepository backed by db.
func NewProductRepository(db *DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns all products ordered by name, then id.
func (r *ProductRepository) List(_ context.Context) ([]product.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	out := make([]product.Product, 0, len(r.db.products))
	for _, p := range r.db.products {
		out = append(out, p)
	}
	slices.SortFunc(out, func(a, b product.Product) int {
		return cmp.Or(cmp.Compare(a.Name, b.Name), cmp.Compare(a.ID, b.ID))
	})
	return out, nil
}

// GetByID returns product.ErrNotFound when the product does not exist.
func (r *ProductRepository) GetByID(_ context.Context, id string) (*product.Product, error) {
	r.db.mu.RLock()
	defer r.db.mu.RUnlock()

	p, ok := r.db.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

// Create inserts a product, replacing any product with the same id.
func (r *ProductRepository) Create(_ context.Context, p *product.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	r.db.products[p.ID] = *p
	return nil
}

// Update overwrites an existing product.
func (r *ProductRepository) Update(_ context.Context, p *product.Product) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.products[p.ID]; !ok {
		return product.ErrNotFound
	}
	r.db.products[p.ID] = *p
	return nil
}

// Delete removes a product that no cart item references.
func (r *ProductRepository) Delete(_ context.Context, id string) error {
	r.db.mu.Lock()
	defer r.db.mu.Unlock()

	if _, ok := r.db.products[id]; !ok {
		return product.ErrNotFound
	}
	if r.db.carts.referenced(id) {
		return product.ErrInUse
	}
	delete(r.db.products, id)
	return nil
}
