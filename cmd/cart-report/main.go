// Command cart-report writes the abandoned-cart report for every day in a
// date range.
package main

import (
	"context"
	"flag"
	"io"
	"os"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	pgzip "github.com/klauspost/pgzip"
	"go.uber.org/zap"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/report"
	"github.com/xenking/shopping-cart/internal/storage/postgres"
)

type options struct {
	databaseURL string
	from, to    string
	timezone    string
	output      string
	workers     int
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.from, "from", "", "first report date, YYYY-MM-DD (default today)")
	flag.StringVar(&opts.to, "to", "", "last report date, inclusive (default --from)")
	flag.StringVar(&opts.timezone, "timezone", "UTC", "time zone report dates are interpreted in")
	flag.StringVar(&opts.output, "output", "-", "output file, - for stdout; .gz files are gzip compressed")
	flag.IntVar(&opts.workers, "workers", 4, "days queried concurrently")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, m *app.Telemetry) error {
		if opts.databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		days, err := parseRange(opts.from, opts.to, opts.timezone, time.Now())
		if err != nil {
			return err
		}

		pool, err := postgres.NewPool(ctx, opts.databaseURL)
		if err != nil {
			return errors.Wrap(err, "connect to database")
		}
		defer pool.Close()

		svc, err := cart.NewService(postgres.NewCartStore(pool), m.MeterProvider(), m.TracerProvider())
		if err != nil {
			return errors.Wrap(err, "create cart service")
		}

		out, err := openOutput(opts.output)
		if err != nil {
			return err
		}

		lg.Info("Building report",
			zap.String("from", days[0].Format(report.DateLayout)),
			zap.String("to", days[len(days)-1].Format(report.DateLayout)),
			zap.Int("days", len(days)),
		)
		if err := writeReports(ctx, svc, days, opts.workers, out); err != nil {
			_ = out.Close()
			return err
		}
		if err := out.Close(); err != nil {
			return errors.Wrap(err, "close output")
		}
		lg.Info("Report written", zap.String("output", opts.output))
		return nil
	})
}

// parseRange returns every day from..to inclusive at midnight in tz.
func parseRange(from, to, tz string, now time.Time) ([]time.Time, error) {
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, errors.Wrapf(err, "timezone %q", tz)
	}

	start := time.Date(now.In(loc).Year(), now.In(loc).Month(), now.In(loc).Day(), 0, 0, 0, 0, loc)
	if from != "" {
		if start, err = time.ParseInLocation(report.DateLayout, from, loc); err != nil {
			return nil, errors.Wrap(err, "parse --from")
		}
	}
	end := start
	if to != "" {
		if end, err = time.ParseInLocation(report.DateLayout, to, loc); err != nil {
			return nil, errors.Wrap(err, "parse --to")
		}
	}
	if end.Before(start) {
		return nil, errors.Errorf("--to %s is before --from %s", end.Format(report.DateLayout), start.Format(report.DateLayout))
	}

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days, nil
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

// gzipFile closes the gzip stream before the file.
type gzipFile struct {
	*pgzip.Writer
	f *os.File
}

func (g gzipFile) Close() error {
	if err := g.Writer.Close(); err != nil {
		_ = g.f.Close()
		return err
	}
	return g.f.Close()
}

func openOutput(path string) (io.WriteCloser, error) {
	if path == "" || path == "-" {
		return nopCloser{os.Stdout}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrap(err, "create output")
	}
	if strings.HasSuffix(path, ".gz") {
		return gzipFile{Writer: pgzip.NewWriter(f), f: f}, nil
	}
	return f, nil
}
