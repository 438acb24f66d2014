package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/domain/product"
)

var (
	_ cart.Store      = (*CartStore)(nil)
	_ cart.Repository = (*cartTx)(nil)
)

var errReadOnly = errors.New("write in read-only transaction")

// CartStore implements cart.Store on top of a DB.
type CartStore struct {
	db *DB
}

// NewCartStore returns a CartStore backed by db.
func NewCartStore(db *DB) *CartStore {
	return &CartStore{db: db}
}

// View runs fn under the read lock; no writer can interleave.
func (s *CartStore) View(ctx context.Context, fn func(cart.Repository) error) error {
	s.db.mu.RLock()
	defer s.db.mu.RUnlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	return fn(&cartTx{db: s.db, state: s.db.carts, readOnly: true})
}

// Update runs fn under the write lock against a staged copy of the cart
// state and publishes the copy only when fn returns nil.
func (s *CartStore) Update(ctx context.Context, fn func(cart.Repository) error) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	staged := s.db.carts.clone()
	if err := fn(&cartTx{db: s.db, state: staged}); err != nil {
		return err
	}
	s.db.carts = staged
	return nil
}

// cartTx is the cart.Repository handed to transaction functions. The caller
// holds the DB lock for its whole lifetime.
type cartTx struct {
	db       *DB
	state    *cartState
	readOnly bool
}

func (t *cartTx) FindCart(_ context.Context, id string) (*cart.Cart, error) {
	row, ok := t.state.carts[id]
	if !ok {
		return nil, cart.ErrNotFound
	}
	return t.assemble(row)
}

func (t *cartTx) SaveCart(_ context.Context, c *cart.Cart) error {
	if t.readOnly {
		return errReadOnly
	}
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	row := cartRow{
		id:             c.ID,
		status:         c.Status,
		createdAt:      c.CreatedAt,
		lastModifiedAt: c.LastModifiedAt,
	}
	if c.CheckedOutAt != nil {
		at := *c.CheckedOutAt
		row.checkedOutAt = &at
	}
	if (row.status == cart.StatusCheckedOut) != (row.checkedOutAt != nil) {
		return errors.Errorf("cart %s: status %s inconsistent with checkout time", c.ID, c.Status)
	}
	t.state.carts[c.ID] = row
	return nil
}

func (t *cartTx) FindProduct(_ context.Context, id string) (*product.Product, error) {
	p, ok := t.db.products[id]
	if !ok {
		return nil, product.ErrNotFound
	}
	return &p, nil
}

func (t *cartTx) FindItem(_ context.Context, cartID, productID string) (*cart.Item, error) {
	for _, r := range t.state.items[cartID] {
		if r.productID != productID {
			continue
		}
		p, ok := t.db.products[r.productID]
		if !ok {
			return nil, errors.Errorf("item %s references missing product %s", r.id, r.productID)
		}
		return &cart.Item{ID: r.id, Product: p, Quantity: r.quantity}, nil
	}
	return nil, cart.ErrNotFound
}

func (t *cartTx) SaveItem(_ context.Context, cartID string, item *cart.Item) error {
	if t.readOnly {
		return errReadOnly
	}
	if _, ok := t.state.carts[cartID]; !ok {
		return errors.Errorf("save item: cart %s does not exist", cartID)
	}
	if _, ok := t.db.products[item.Product.ID]; !ok {
		return errors.Errorf("save item: product %s does not exist", item.Product.ID)
	}
	if item.Quantity < 1 {
		return errors.Errorf("save item: quantity %d must be at least 1", item.Quantity)
	}

	rows := t.state.items[cartID]
	for i, r := range rows {
		if r.productID == item.Product.ID {
			item.ID = r.id
			rows[i].quantity = item.Quantity
			return nil
		}
	}
	if item.ID == "" {
		item.ID = uuid.New().String()
	}
	t.state.items[cartID] = append(rows, itemRow{
		id:        item.ID,
		productID: item.Product.ID,
		quantity:  item.Quantity,
	})
	return nil
}

func (t *cartTx) DeleteItem(_ context.Context, cartID string, item *cart.Item) error {
	if t.readOnly {
		return errReadOnly
	}
	t.state.items[cartID] = slices.DeleteFunc(t.state.items[cartID], func(r itemRow) bool {
		return r.id == item.ID
	})
	return nil
}

// FindAbandoned returns matching carts ordered by creation time, then id.
func (t *cartTx) FindAbandoned(_ context.Context, before time.Time) ([]cart.Cart, error) {
	var rows []cartRow
	for _, row := range t.state.carts {
		if row.status == cart.StatusActive && row.checkedOutAt == nil && row.createdAt.Before(before) {
			rows = append(rows, row)
		}
	}
	slices.SortFunc(rows, func(a, b cartRow) int {
		return cmp.Or(a.createdAt.Compare(b.createdAt), cmp.Compare(a.id, b.id))
	})

	out := make([]cart.Cart, 0, len(rows))
	for _, row := range rows {
		c, err := t.assemble(row)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, nil
}

// assemble builds a detached aggregate from a cart row and its items.
func (t *cartTx) assemble(row cartRow) (*cart.Cart, error) {
	c := &cart.Cart{
		ID:             row.id,
		Status:         row.status,
		CreatedAt:      row.createdAt,
		LastModifiedAt: row.lastModifiedAt,
	}
	if row.checkedOutAt != nil {
		at := *row.checkedOutAt
		c.CheckedOutAt = &at
	}

	rows := t.state.items[row.id]
	c.Items = make([]cart.Item, 0, len(rows))
	for _, r := range rows {
		p, ok := t.db.products[r.productID]
		if !ok {
			return nil, errors.Errorf("item %s references missing product %s", r.id, r.productID)
		}
		c.Items = append(c.Items, cart.Item{ID: r.id, Product: p, Quantity: r.quantity})
	}
	return c, nil
}
