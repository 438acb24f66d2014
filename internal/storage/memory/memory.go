// Package memory implements the product and cart stores in process memory.
//
// A single DB value backs both stores so that cart items can reference
// products the same way foreign keys do in the SQL schema. Writers are
// serialised by one lock; cart transactions run against a staged copy that
// replaces the live state only when the transaction function succeeds.
package memory

import (
	"maps"
	"sync"
	"time"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/domain/product"
)

// DB is the shared in-memory state.
type DB struct {
	mu       sync.RWMutex
	products map[string]product.Product
	carts    *cartState
}

// New returns an empty DB.
func New() *DB {
	return &DB{
		products: make(map[string]product.Product),
		carts: &cartState{
			carts: make(map[string]cartRow),
			items: make(map[string][]itemRow),
		},
	}
}

type cartRow struct {
	id             string
	status         cart.Status
	createdAt      time.Time
	lastModifiedAt time.Time
	checkedOutAt   *time.Time
}

type itemRow struct {
	id        string
	productID string
	quantity  int
}

// cartState holds carts and their items. items is keyed by cart id and keeps
// insertion order.
type cartState struct {
	carts map[string]cartRow
	items map[string][]itemRow
}

func (s *cartState) clone() *cartState {
	out := &cartState{
		carts: maps.Clone(s.carts),
		items: make(map[string][]itemRow, len(s.items)),
	}
	for id, rows := range s.items {
		out.items[id] = append([]itemRow(nil), rows...)
	}
	return out
}

// referenced reports whether any cart item points at productID.
func (s *cartState) referenced(productID string) bool {
	for _, rows := range s.items {
		for _, r := range rows {
			if r.productID == productID {
				return true
			}
		}
	}
	return false
}
