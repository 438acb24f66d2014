// Package report renders the abandoned-cart report as plain text.
package report

import (
	"bufio"
	"fmt"
	"io"
	"time"

	"github.com/xenking/shopping-cart/internal/domain/cart"
)

// DateLayout is the layout used for report dates.
const DateLayout = time.DateOnly

const separator = "------------------------------------"

// Write renders the abandoned carts for date to w.
func Write(w io.Writer, date time.Time, carts []cart.Cart) error {
	bw := bufio.NewWriter(w)
	day := date.Format(DateLayout)

	fmt.Fprintf(bw, "--- Abandoned Carts Report for %s ---\n", day)
	if len(carts) == 0 {
		fmt.Fprintf(bw, "No abandoned carts found for %s.\n", day)
		return bw.Flush()
	}

	for _, c := range carts {
		fmt.Fprintf(bw, "Cart ID: %s\n", c.ID)
		fmt.Fprintf(bw, "  Created At: %s\n", c.CreatedAt.Format(time.RFC3339))
		fmt.Fprintf(bw, "  Items:\n")
		for _, it := range c.Items {
			fmt.Fprintf(bw, "    - %s (ID: %s), Quantity: %d, Price: $%s, Item Total: $%s\n",
				it.Product.Name, it.Product.ID, it.Quantity,
				it.Product.Price.StringFixed(2), it.LineTotal().StringFixed(2),
			)
		}
		fmt.Fprintf(bw, "  Cart Total: $%s\n", c.Total().StringFixed(2))
		fmt.Fprintln(bw, separator)
	}
	fmt.Fprintf(bw, "--- End of Report (%d carts) ---\n", len(carts))

	return bw.Flush()
}
