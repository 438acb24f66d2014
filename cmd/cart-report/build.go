package main

import (
	"bytes"
	"context"
	"io"
	"time"

	"github.com/go-faster/errors"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/report"
)

type abandonedLister interface {
	ListAbandoned(ctx context.Context, date time.Time) ([]cart.Cart, error)
}

// writeReports renders one report per day concurrently and writes them to w
// in day order.
func writeReports(ctx context.Context, carts abandonedLister, days []time.Time, workers int, w io.Writer) error {
	rendered := make([]bytes.Buffer, len(days))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, day := range days {
		g.Go(func() error {
			list, err := carts.ListAbandoned(ctx, day)
			if err != nil {
				return errors.Wrapf(err, "list abandoned carts for %s", day.Format(report.DateLayout))
			}
			return report.Write(&rendered[i], day, list)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	for i := range rendered {
		if _, err := rendered[i].WriteTo(w); err != nil {
			return errors.Wrap(err, "write report")
		}
	}
	return nil
}
