package cart

import (
	"fmt"

	"github.com/go-faster/errors"
)

// Error kinds surfaced by the cart service. Match with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid cart state")
	ErrQuantity     = errors.New("quantity out of range")
)

// Resource names used in NotFoundError.
const (
	ResourceCart    = "cart"
	ResourceProduct = "product"
	ResourceItem    = "cart item"
)

// NotFoundError indicates that a referenced cart or product does not exist,
// or that a product is not present in the cart.
type NotFoundError struct {
	Resource string
	ID       string
	// CartID is set for ResourceItem.
	CartID string
}

func (e *NotFoundError) Error() string {
	if e.Resource == ResourceItem {
		return fmt.Sprintf("product %s not found in cart %s", e.ID, e.CartID)
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// Is makes NotFoundError match ErrNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// StateError indicates an operation the cart's lifecycle state forbids.
type StateError struct {
	CartID string
	Status Status
	Op     string
}

func (e *StateError) Error() string {
	if e.Op == OpCheckout {
		return fmt.Sprintf("cart %s is already checked out", e.CartID)
	}
	return fmt.Sprintf("cannot %s: cart %s is %s", e.Op, e.CartID, e.Status)
}

// Is makes StateError match ErrInvalidState.
func (e *StateError) Is(target error) bool {
	return target == ErrInvalidState
}

// Operation names used in StateError.
const (
	OpAddItem    = "add item"
	OpRemoveItem = "remove item"
	OpCheckout   = "checkout"
)

// QuantityError indicates that adding units would push a line past
// MaxQuantity.
type QuantityError struct {
	CartID    string
	ProductID string
	// Current is the quantity already in the cart.
	Current int
	Added   int
}

func (e *QuantityError) Error() string {
	return fmt.Sprintf("cannot add %d of product %s to cart %s: line already holds %d, limit is %d",
		e.Added, e.ProductID, e.CartID, e.Current, MaxQuantity)
}

// Is makes QuantityError match ErrQuantity.
func (e *QuantityError) Is(target error) bool {
	return target == ErrQuantity
}
