package product

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service exposes catalog CRUD. Input validation belongs to the caller.
type Service struct {
	products Repository
}

// NewService creates a product Service backed by the given repository.
func NewService(products Repository) *Service {
	return &Service{products: products}
}

// Create assigns a new identifier and persists the product.
func (s *Service) Create(ctx context.Context, in Input) (*Product, error) {
	p := &Product{
		ID:    uuid.New().String(),
		Name:  in.Name,
		Price: in.Price,
		Type:  in.Type,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, fmt.Errorf("create product: %w", err)
	}
	return p, nil
}

// Get returns the product with the given id or ErrNotFound.
func (s *Service) Get(ctx context.Context, id string) (*Product, error) {
	return s.products.GetByID(ctx, id)
}

// List returns the whole catalog.
func (s *Service) List(ctx context.Context) ([]Product, error) {
	return s.products.List(ctx)
}

// Update replaces name, price and type of an existing product.
func (s *Service) Update(ctx context.Context, id string, in Input) (*Product, error) {
	p := &Product{
		ID:    id,
		Name:  in.Name,
		Price: in.Price,
		Type:  in.Type,
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes the product. It fails with ErrInUse while any cart still
// holds the product.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.products.Delete(ctx, id)
}
