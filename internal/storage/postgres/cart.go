package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/domain/product"
)

const (
	cartColumns = `id, status, created_at, last_modified_at, checked_out_at`

	getCartSQL = `SELECT ` + cartColumns + ` FROM carts WHERE id = $1`

	upsertCartSQL = `INSERT INTO carts (` + cartColumns + `)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			last_modified_at = EXCLUDED.last_modified_at,
			checked_out_at = EXCLUDED.checked_out_at`

	findAbandonedCartsSQL = `SELECT ` + cartColumns + ` FROM carts
		WHERE status = 'ACTIVE' AND checked_out_at IS NULL AND created_at < $1
		ORDER BY created_at, id`

	itemColumns = `i.cart_id, i.id, i.quantity, p.id, p.name, p.price, p.type`

	listItemsSQL = `SELECT ` + itemColumns + `
		FROM cart_items i JOIN products p ON p.id = i.product_id
		WHERE i.cart_id = ANY($1)
		ORDER BY i.cart_id, i.position`

	getItemSQL = `SELECT ` + itemColumns + `
		FROM cart_items i JOIN products p ON p.id = i.product_id
		WHERE i.cart_id = $1 AND i.product_id = $2`

	upsertItemSQL = `INSERT INTO cart_items (id, cart_id, product_id, quantity)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cart_id, product_id) DO UPDATE SET quantity = EXCLUDED.quantity
		RETURNING id`

	deleteItemSQL = `DELETE FROM cart_items WHERE id = $1 AND cart_id = $2`

	// lockSuffix pins rows read inside a write transaction.
	lockCartSuffix    = ` FOR UPDATE`
	lockProductSuffix = ` FOR SHARE`
)

var (
	_ cart.Store      = (*CartStore)(nil)
	_ cart.Repository = (*cartTx)(nil)
)

// CartStore implements cart.Store backed by PostgreSQL.
//
// Update transactions lock each cart row they load with SELECT ... FOR
// UPDATE, so two writers on the same cart run one after the other. View
// transactions are read-only REPEATABLE READ, so a cart and its items come
// from the same snapshot.
type CartStore struct {
	pool *pgxpool.Pool
}

// NewCartStore returns a CartStore that uses the given pool.
func NewCartStore(pool *pgxpool.Pool) *CartStore {
	return &CartStore{pool: pool}
}

// View runs fn in a read-only snapshot transaction.
func (s *CartStore) View(ctx context.Context, fn func(cart.Repository) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	}, func(tx pgx.Tx) error {
		return fn(&cartTx{q: tx})
	})
}

// Update runs fn in a read-write transaction that commits only when fn
// returns nil.
func (s *CartStore) Update(ctx context.Context, fn func(cart.Repository) error) error {
	return pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{
		IsoLevel: pgx.ReadCommitted,
	}, func(tx pgx.Tx) error {
		return fn(&cartTx{q: tx, lock: true})
	})
}

type cartTx struct {
	q    querier
	lock bool
}

func (t *cartTx) FindCart(ctx context.Context, id string) (*cart.Cart, error) {
	sql := getCartSQL
	if t.lock {
		sql += lockCartSuffix
	}
	rows, err := t.q.Query(ctx, sql, id)
	if err != nil {
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}

	c, err := pgx.CollectExactlyOneRow(rows, scanCart)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting cart %q: %w", id, err)
	}

	carts := []cart.Cart{c}
	if err := t.attachItems(ctx, carts); err != nil {
		return nil, err
	}
	return &carts[0], nil
}

func (t *cartTx) SaveCart(ctx context.Context, c *cart.Cart) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	_, err := t.q.Exec(ctx, upsertCartSQL,
		c.ID, string(c.Status), c.CreatedAt, c.LastModifiedAt, c.CheckedOutAt,
	)
	if err != nil {
		return fmt.Errorf("saving cart %q: %w", c.ID, err)
	}
	return nil
}

func (t *cartTx) FindProduct(ctx context.Context, id string) (*product.Product, error) {
	sql := getProductByIDSQL
	if t.lock {
		sql += lockProductSuffix
	}
	return getProduct(ctx, t.q, sql, id)
}

func (t *cartTx) FindItem(ctx context.Context, cartID, productID string) (*cart.Item, error) {
	rows, err := t.q.Query(ctx, getItemSQL, cartID, productID)
	if err != nil {
		return nil, fmt.Errorf("getting item %q in cart %q: %w", productID, cartID, err)
	}

	it, err := pgx.CollectExactlyOneRow(rows, scanItem)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, cart.ErrNotFound
		}
		return nil, fmt.Errorf("getting item %q in cart %q: %w", productID, cartID, err)
	}
	return &it.item, nil
}

func (t *cartTx) SaveItem(ctx context.Context, cartID string, item *cart.Item) error {
	id := item.ID
	if id == "" {
		id = uuid.New().String()
	}
	err := t.q.QueryRow(ctx, upsertItemSQL, id, cartID, item.Product.ID, item.Quantity).Scan(&item.ID)
	if err != nil {
		return fmt.Errorf("saving item %q in cart %q: %w", item.Product.ID, cartID, err)
	}
	return nil
}

func (t *cartTx) DeleteItem(ctx context.Context, cartID string, item *cart.Item) error {
	_, err := t.q.Exec(ctx, deleteItemSQL, item.ID, cartID)
	if err != nil {
		return fmt.Errorf("deleting item %q from cart %q: %w", item.ID, cartID, err)
	}
	return nil
}

// FindAbandoned compares against before rounded up to whole microseconds.
// TIMESTAMPTZ holds microseconds, so created_at < ceil(before) matches
// created_at < before exactly, where passing before as is would let pgx
// truncate it and drop rows stamped on its last microsecond.
func (t *cartTx) FindAbandoned(ctx context.Context, before time.Time) ([]cart.Cart, error) {
	rows, err := t.q.Query(ctx, findAbandonedCartsSQL, ceilMicrosecond(before))
	if err != nil {
		return nil, fmt.Errorf("finding abandoned carts: %w", err)
	}

	carts, err := pgx.CollectRows(rows, scanCart)
	if err != nil {
		return nil, fmt.Errorf("finding abandoned carts: %w", err)
	}
	if err := t.attachItems(ctx, carts); err != nil {
		return nil, err
	}
	return carts, nil
}

func ceilMicrosecond(t time.Time) time.Time {
	if d := t.Truncate(time.Microsecond); !d.Equal(t) {
		return d.Add(time.Microsecond)
	}
	return t
}

// attachItems loads the items of all given carts with one query.
func (t *cartTx) attachItems(ctx context.Context, carts []cart.Cart) error {
	if len(carts) == 0 {
		return nil
	}

	ids := make([]string, len(carts))
	byID := make(map[string]*cart.Cart, len(carts))
	for i := range carts {
		ids[i] = carts[i].ID
		byID[carts[i].ID] = &carts[i]
		carts[i].Items = []cart.Item{}
	}

	rows, err := t.q.Query(ctx, listItemsSQL, ids)
	if err != nil {
		return fmt.Errorf("listing cart items: %w", err)
	}
	items, err := pgx.CollectRows(rows, scanItem)
	if err != nil {
		return fmt.Errorf("listing cart items: %w", err)
	}

	for _, it := range items {
		c := byID[it.cartID]
		c.Items = append(c.Items, it.item)
	}
	return nil
}

func scanCart(row pgx.CollectableRow) (cart.Cart, error) {
	var (
		c      cart.Cart
		status string
	)
	err := row.Scan(&c.ID, &status, &c.CreatedAt, &c.LastModifiedAt, &c.CheckedOutAt)
	c.Status = cart.Status(status)
	return c, err
}

// itemRow is a cart item together with the cart it belongs to.
type itemRow struct {
	cartID string
	item   cart.Item
}

func scanItem(row pgx.CollectableRow) (itemRow, error) {
	var r itemRow
	err := row.Scan(
		&r.cartID, &r.item.ID, &r.item.Quantity,
		&r.item.Product.ID, &r.item.Product.Name, &r.item.Product.Price, &r.item.Product.Type,
	)
	return r, err
}
