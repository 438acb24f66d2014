package cart

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shopping-cart/internal/domain/product"
)

func TestItem_LineTotal(t *testing.T) {
	p := product.Product{ID: "p", Price: decimal.RequireFromString("19.99")}
	assert.Equal(t, "59.97", Item{Product: p, Quantity: 3}.LineTotal().StringFixed(2))
	assert.True(t, Item{Product: p, Quantity: 0}.LineTotal().IsZero())
}

func TestCart_Total(t *testing.T) {
	assert.True(t, (&Cart{}).Total().Equal(decimal.Zero))

	c := &Cart{Items: []Item{
		{Product: product.Product{ID: "a", Price: decimal.RequireFromString("0.1")}, Quantity: 3},
		{Product: product.Product{ID: "b", Price: decimal.RequireFromString("0.2")}, Quantity: 1},
	}}
	assert.True(t, c.Total().Equal(decimal.RequireFromString("0.5")), c.Total().String())
	assert.Equal(t, 4, c.Quantity())
}

func TestCart_PutDropItem(t *testing.T) {
	c := &Cart{}
	c.putItem(Item{ID: "1", Product: product.Product{ID: "a"}, Quantity: 1})
	c.putItem(Item{ID: "2", Product: product.Product{ID: "b"}, Quantity: 1})
	c.putItem(Item{ID: "1", Product: product.Product{ID: "a"}, Quantity: 4})

	require.Len(t, c.Items, 2)
	assert.Equal(t, "a", c.Items[0].Product.ID, "replacement keeps position")
	assert.Equal(t, 4, c.Items[0].Quantity)

	c.dropItem("a")
	c.dropItem("missing")
	require.Len(t, c.Items, 1)
	_, ok := c.Item("a")
	assert.False(t, ok)
	it, ok := c.Item("b")
	require.True(t, ok)
	assert.Equal(t, "2", it.ID)
}

func TestEndOfDay(t *testing.T) {
	tokyo, err := time.LoadLocation("Asia/Tokyo")
	require.NoError(t, err)

	for _, tt := range []struct {
		name string
		in   time.Time
		want time.Time
	}{
		{
			name: "Midnight",
			in:   time.Date(2024, 3, 9, 0, 0, 0, 0, time.UTC),
			want: time.Date(2024, 3, 9, 23, 59, 59, 999_999_999, time.UTC),
		},
		{
			name: "Afternoon",
			in:   time.Date(2024, 2, 29, 15, 4, 5, 0, time.UTC),
			want: time.Date(2024, 2, 29, 23, 59, 59, 999_999_999, time.UTC),
		},
		{
			name: "Location",
			in:   time.Date(2024, 3, 9, 1, 0, 0, 0, tokyo),
			want: time.Date(2024, 3, 9, 14, 59, 59, 999_999_999, time.UTC),
		},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got := EndOfDay(tt.in)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}

	created := time.Date(2024, 3, 9, 23, 59, 59, 0, time.UTC)
	assert.True(t, created.Before(EndOfDay(created)))
	assert.False(t, created.Add(time.Second).Before(EndOfDay(created)))
}

func TestStatus_Valid(t *testing.T) {
	assert.True(t, StatusActive.Valid())
	assert.True(t, StatusCheckedOut.Valid())
	assert.False(t, Status("ABANDONED").Valid())
}
