package report

import (
	"bytes"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/domain/product"
)

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	date := time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC)

	require.NoError(t, Write(&buf, date, nil))

	out := buf.String()
	assert.Contains(t, out, "--- Abandoned Carts Report for 2024-03-09 ---")
	assert.Contains(t, out, "No abandoned carts found for 2024-03-09.")
	assert.NotContains(t, out, "End of Report")
}

func TestWrite_Carts(t *testing.T) {
	laptop := product.Product{ID: "p1", Name: "Laptop", Price: decimal.RequireFromString("1000"), Type: "Electronics"}
	mouse := product.Product{ID: "p2", Name: "Mouse", Price: decimal.RequireFromString("25.5"), Type: "Electronics"}
	created := time.Date(2024, 3, 9, 10, 30, 0, 0, time.UTC)

	carts := []cart.Cart{
		{
			ID:        "c1",
			Status:    cart.StatusActive,
			CreatedAt: created,
			Items: []cart.Item{
				{ID: "i1", Product: laptop, Quantity: 1},
				{ID: "i2", Product: mouse, Quantity: 2},
			},
		},
		{ID: "c2", Status: cart.StatusActive, CreatedAt: created.Add(time.Hour)},
	}

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, created, carts))

	out := buf.String()
	assert.Contains(t, out, "Cart ID: c1")
	assert.Contains(t, out, "Created At: 2024-03-09T10:30:00Z")
	assert.Contains(t, out, "- Laptop (ID: p1), Quantity: 1, Price: $1000.00, Item Total: $1000.00")
	assert.Contains(t, out, "- Mouse (ID: p2), Quantity: 2, Price: $25.50, Item Total: $51.00")
	assert.Contains(t, out, "Cart Total: $1051.00")
	assert.Contains(t, out, "Cart ID: c2")
	assert.Contains(t, out, "Cart Total: $0.00")
	assert.Contains(t, out, "--- End of Report (2 carts) ---")
}
