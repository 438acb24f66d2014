package cart

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/xenking/shopping-cart/internal/domain/product"
)

const instrumentationName = "github.com/xenking/shopping-cart/internal/domain/cart"

// Service enforces the cart state machine and the rules on its line items.
// It is stateless; every operation runs inside a single Store transaction.
type Service struct {
	store  Store
	now    func() time.Time
	tracer trace.Tracer

	created   metric.Int64Counter
	added     metric.Int64Counter
	removed   metric.Int64Counter
	checkouts metric.Int64Counter
}

// NewService creates a cart Service on top of the given store.
func NewService(store Store, mp metric.MeterProvider, tp trace.TracerProvider) (*Service, error) {
	meter := mp.Meter(instrumentationName)
	s := &Service{
		store:  store,
		now:    time.Now,
		tracer: tp.Tracer(instrumentationName),
	}

	var err error
	if s.created, err = meter.Int64Counter("cart.created",
		metric.WithDescription("Carts created"),
	); err != nil {
		return nil, errors.Wrap(err, "create cart.created counter")
	}
	if s.added, err = meter.Int64Counter("cart.items.added",
		metric.WithDescription("Units added to carts"),
		metric.WithUnit("{unit}"),
	); err != nil {
		return nil, errors.Wrap(err, "create cart.items.added counter")
	}
	if s.removed, err = meter.Int64Counter("cart.items.removed",
		metric.WithDescription("Units removed from carts"),
		metric.WithUnit("{unit}"),
	); err != nil {
		return nil, errors.Wrap(err, "create cart.items.removed counter")
	}
	if s.checkouts, err = meter.Int64Counter("cart.checkouts",
		metric.WithDescription("Carts checked out"),
	); err != nil {
		return nil, errors.Wrap(err, "create cart.checkouts counter")
	}

	return s, nil
}

// CreateCart persists a new empty ACTIVE cart.
func (s *Service) CreateCart(ctx context.Context) (_ *Cart, rerr error) {
	ctx, span := s.tracer.Start(ctx, "cart.CreateCart")
	defer func() { endSpan(span, rerr) }()

	now := s.timestamp()
	c := &Cart{
		Status:         StatusActive,
		Items:          []Item{},
		CreatedAt:      now,
		LastModifiedAt: now,
	}
	if err := s.store.Update(ctx, func(repo Repository) error {
		return repo.SaveCart(ctx, c)
	}); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}

	span.SetAttributes(attribute.String("cart.id", c.ID))
	s.created.Add(ctx, 1)
	return c, nil
}

// GetCart returns the cart with the given identifier.
func (s *Service) GetCart(ctx context.Context, cartID string) (_ *Cart, rerr error) {
	ctx, span := s.tracer.Start(ctx, "cart.GetCart", trace.WithAttributes(attribute.String("cart.id", cartID)))
	defer func() { endSpan(span, rerr) }()

	var c *Cart
	if err := s.store.View(ctx, func(repo Repository) (err error) {
		c, err = loadCart(ctx, repo, cartID)
		return err
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// AddItem adds quantity units of a product to an ACTIVE cart. Adding a
// product already in the cart accumulates onto the existing line; a line
// never exceeds MaxQuantity.
func (s *Service) AddItem(ctx context.Context, cartID, productID string, quantity int) (_ *Cart, rerr error) {
	ctx, span := s.tracer.Start(ctx, "cart.AddItem", trace.WithAttributes(
		attribute.String("cart.id", cartID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	))
	defer func() { endSpan(span, rerr) }()

	var out *Cart
	err := s.store.Update(ctx, func(repo Repository) error {
		c, err := loadCart(ctx, repo, cartID)
		if err != nil {
			return err
		}
		if c.CheckedOut() {
			return &StateError{CartID: c.ID, Status: c.Status, Op: OpAddItem}
		}

		p, err := loadProduct(ctx, repo, productID)
		if err != nil {
			return err
		}

		item, err := repo.FindItem(ctx, c.ID, p.ID)
		switch {
		case err == nil:
		case errors.Is(err, ErrNotFound):
			item = &Item{}
		default:
			return errors.Wrap(err, "find item")
		}
		if quantity < 1 || item.Quantity > MaxQuantity-quantity {
			return &QuantityError{CartID: c.ID, ProductID: p.ID, Current: item.Quantity, Added: quantity}
		}
		item.Quantity += quantity
		item.Product = *p

		if err := repo.SaveItem(ctx, c.ID, item); err != nil {
			return errors.Wrap(err, "save item")
		}
		c.putItem(*item)

		c.LastModifiedAt = s.timestamp()
		if err := repo.SaveCart(ctx, c); err != nil {
			return errors.Wrap(err, "save cart")
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.added.Add(ctx, int64(quantity))
	return out, nil
}

// RemoveItem removes up to quantity units of a product from an ACTIVE cart.
// When quantity covers the whole line the item is deleted.
func (s *Service) RemoveItem(ctx context.Context, cartID, productID string, quantity int) (_ *Cart, rerr error) {
	ctx, span := s.tracer.Start(ctx, "cart.RemoveItem", trace.WithAttributes(
		attribute.String("cart.id", cartID),
		attribute.String("product.id", productID),
		attribute.Int("quantity", quantity),
	))
	defer func() { endSpan(span, rerr) }()

	var (
		out     *Cart
		removed int
	)
	err := s.store.Update(ctx, func(repo Repository) error {
		c, err := loadCart(ctx, repo, cartID)
		if err != nil {
			return err
		}
		if c.CheckedOut() {
			return &StateError{CartID: c.ID, Status: c.Status, Op: OpRemoveItem}
		}

		p, err := loadProduct(ctx, repo, productID)
		if err != nil {
			return err
		}

		item, err := repo.FindItem(ctx, c.ID, p.ID)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				return &NotFoundError{Resource: ResourceItem, ID: p.ID, CartID: c.ID}
			}
			return errors.Wrap(err, "find item")
		}

		if item.Quantity <= quantity {
			removed = item.Quantity
			if err := repo.DeleteItem(ctx, c.ID, item); err != nil {
				return errors.Wrap(err, "delete item")
			}
			c.dropItem(p.ID)
		} else {
			removed = quantity
			item.Quantity -= quantity
			item.Product = *p
			if err := repo.SaveItem(ctx, c.ID, item); err != nil {
				return errors.Wrap(err, "save item")
			}
			c.putItem(*item)
		}

		c.LastModifiedAt = s.timestamp()
		if err := repo.SaveCart(ctx, c); err != nil {
			return errors.Wrap(err, "save cart")
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.removed.Add(ctx, int64(removed))
	return out, nil
}

// CalculateTotal returns the exact sum of price × quantity over the cart's
// items.
func (s *Service) CalculateTotal(ctx context.Context, cartID string) (_ decimal.Decimal, rerr error) {
	ctx, span := s.tracer.Start(ctx, "cart.CalculateTotal", trace.WithAttributes(attribute.String("cart.id", cartID)))
	defer func() { endSpan(span, rerr) }()

	c, err := s.GetCart(ctx, cartID)
	if err != nil {
		return decimal.Zero, err
	}
	return c.Total(), nil
}

// Checkout moves an ACTIVE cart to CHECKED_OUT. Checking out twice fails.
func (s *Service) Checkout(ctx context.Context, cartID string) (_ *Cart, rerr error) {
	ctx, span := s.tracer.Start(ctx, "cart.Checkout", trace.WithAttributes(attribute.String("cart.id", cartID)))
	defer func() { endSpan(span, rerr) }()

	var out *Cart
	err := s.store.Update(ctx, func(repo Repository) error {
		c, err := loadCart(ctx, repo, cartID)
		if err != nil {
			return err
		}
		if c.CheckedOut() {
			return &StateError{CartID: c.ID, Status: c.Status, Op: OpCheckout}
		}

		now := s.timestamp()
		c.Status = StatusCheckedOut
		c.CheckedOutAt = &now
		c.LastModifiedAt = now
		if err := repo.SaveCart(ctx, c); err != nil {
			return errors.Wrap(err, "save cart")
		}
		out = c
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.checkouts.Add(ctx, 1)
	return out, nil
}

// ListAbandoned returns ACTIVE carts that were never checked out and were
// created before the end of date's calendar day. Order is the store's.
func (s *Service) ListAbandoned(ctx context.Context, date time.Time) (_ []Cart, rerr error) {
	cutoff := EndOfDay(date)
	ctx, span := s.tracer.Start(ctx, "cart.ListAbandoned", trace.WithAttributes(
		attribute.String("cutoff", cutoff.Format(time.RFC3339Nano)),
	))
	defer func() { endSpan(span, rerr) }()

	var carts []Cart
	if err := s.store.View(ctx, func(repo Repository) (err error) {
		carts, err = repo.FindAbandoned(ctx, cutoff)
		return err
	}); err != nil {
		return nil, errors.Wrap(err, "find abandoned carts")
	}
	return carts, nil
}

// timestamp returns the current time at the microsecond precision the SQL
// store keeps, so every store reports the same instants.
func (s *Service) timestamp() time.Time {
	return s.now().Truncate(time.Microsecond)
}

func loadCart(ctx context.Context, repo Repository, cartID string) (*Cart, error) {
	c, err := repo.FindCart(ctx, cartID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, &NotFoundError{Resource: ResourceCart, ID: cartID}
		}
		return nil, errors.Wrap(err, "find cart")
	}
	return c, nil
}

func loadProduct(ctx context.Context, repo Repository, productID string) (*product.Product, error) {
	p, err := repo.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, &NotFoundError{Resource: ResourceProduct, ID: productID}
		}
		return nil, errors.Wrap(err, "find product")
	}
	return p, nil
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
