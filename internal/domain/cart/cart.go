package cart

import (
	"context"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"github.com/xenking/shopping-cart/internal/domain/product"
)

// MaxQuantity is the largest quantity a single line may hold. It matches
// the INTEGER column the SQL store keeps quantities in.
const MaxQuantity = math.MaxInt32

// Status is the lifecycle state of a cart.
type Status string

const (
	// StatusActive is the initial state. Items may be added and removed.
	StatusActive Status = "ACTIVE"
	// StatusCheckedOut is terminal. The cart can no longer change.
	StatusCheckedOut Status = "CHECKED_OUT"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s == StatusActive || s == StatusCheckedOut
}

// Cart is the aggregate root: a cart together with its line items.
//
// CheckedOutAt is non-nil exactly when Status is StatusCheckedOut.
type Cart struct {
	ID             string
	Status         Status
	Items          []Item
	CreatedAt      time.Time
	LastModifiedAt time.Time
	CheckedOutAt   *time.Time
}

// Item is one product's quantity within a cart. A cart holds at most one
// item per product.
type Item struct {
	ID       string
	Product  product.Product
	Quantity int
}

// LineTotal returns unit price times quantity.
func (i Item) LineTotal() decimal.Decimal {
	return i.Product.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// CheckedOut reports whether the cart reached its terminal state.
func (c *Cart) CheckedOut() bool {
	return c.Status == StatusCheckedOut
}

// Item returns the line item for productID, if present.
func (c *Cart) Item(productID string) (Item, bool) {
	for _, it := range c.Items {
		if it.Product.ID == productID {
			return it, true
		}
	}
	return Item{}, false
}

// Total returns the exact sum of all line totals. An empty cart totals zero.
func (c *Cart) Total() decimal.Decimal {
	total := decimal.Zero
	for _, it := range c.Items {
		total = total.Add(it.LineTotal())
	}
	return total
}

// Quantity returns the number of units across all items.
func (c *Cart) Quantity() int {
	n := 0
	for _, it := range c.Items {
		n += it.Quantity
	}
	return n
}

// putItem replaces the item for the same product or appends it, keeping
// insertion order.
func (c *Cart) putItem(item Item) {
	for i := range c.Items {
		if c.Items[i].Product.ID == item.Product.ID {
			c.Items[i] = item
			return
		}
	}
	c.Items = append(c.Items, item)
}

// dropItem removes the item for productID from the collection.
func (c *Cart) dropItem(productID string) {
	for i := range c.Items {
		if c.Items[i].Product.ID == productID {
			c.Items = append(c.Items[:i], c.Items[i+1:]...)
			return
		}
	}
}

// EndOfDay returns the last representable instant of date's calendar day in
// date's location.
func EndOfDay(date time.Time) time.Time {
	y, m, d := date.Date()
	return time.Date(y, m, d, 23, 59, 59, 999_999_999, date.Location())
}

// Repository is the persistence view the cart service works against. All
// methods observe the transaction they were handed out by.
type Repository interface {
	// FindCart returns the cart with its items. Returns ErrNotFound when
	// absent. Inside Store.Update the cart stays locked until commit.
	FindCart(ctx context.Context, id string) (*Cart, error)
	// SaveCart inserts or updates the cart row (not its items).
	SaveCart(ctx context.Context, c *Cart) error
	// FindProduct returns product.ErrNotFound when absent.
	FindProduct(ctx context.Context, id string) (*product.Product, error)
	// FindItem returns ErrNotFound when the product is not in the cart.
	FindItem(ctx context.Context, cartID, productID string) (*Item, error)
	SaveItem(ctx context.Context, cartID string, item *Item) error
	DeleteItem(ctx context.Context, cartID string, item *Item) error
	// FindAbandoned returns active carts without a checkout timestamp created
	// strictly before the given instant.
	FindAbandoned(ctx context.Context, before time.Time) ([]Cart, error)
}

// Store provides transactional access to a Repository.
type Store interface {
	// View runs fn against a consistent snapshot.
	View(ctx context.Context, fn func(Repository) error) error
	// Update runs fn atomically: either every write made through the
	// repository persists or none does.
	Update(ctx context.Context, fn func(Repository) error) error
}
