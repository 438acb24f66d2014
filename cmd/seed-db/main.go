// Command seed-db migrates the database, loads the product catalog and
// registers an API key allowed to edit it.
package main

import (
	"context"
	"flag"
	"os"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/app"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/shopping-cart/db"
	"github.com/xenking/shopping-cart/internal/domain/auth"
	"github.com/xenking/shopping-cart/internal/domain/product"
	"github.com/xenking/shopping-cart/internal/storage/postgres"
)

type options struct {
	databaseURL  string
	productsFile string
	apiKey       string
	apiKeyPepper string
}

func main() {
	var opts options
	flag.StringVar(&opts.databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&opts.productsFile, "products-file", "", "path to products JSON file (embedded catalog if empty)")
	flag.StringVar(&opts.apiKey, "api-key", "", "API key to seed (or CART_SEED_API_KEY env)")
	flag.StringVar(&opts.apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CART_API_KEY_PEPPER env)")
	flag.Parse()

	if opts.databaseURL == "" {
		opts.databaseURL = os.Getenv("DATABASE_URL")
	}
	if opts.apiKey == "" {
		opts.apiKey = os.Getenv("CART_SEED_API_KEY")
	}
	if opts.apiKeyPepper == "" {
		opts.apiKeyPepper = os.Getenv("CART_API_KEY_PEPPER")
	}

	app.Run(func(ctx context.Context, lg *zap.Logger, _ *app.Telemetry) error {
		if opts.databaseURL == "" {
			return errors.New("database URL is required: set --database-url or DATABASE_URL")
		}
		if opts.apiKey == "" {
			return errors.New("API key is required: set --api-key or CART_SEED_API_KEY")
		}
		if err := run(ctx, lg, opts); err != nil {
			return errors.Wrap(err, "seed")
		}
		lg.Info("Seed completed")
		return nil
	})
}

func run(ctx context.Context, lg *zap.Logger, opts options) error {
	lg.Info("Connecting to database")
	pool, err := postgres.NewPool(ctx, opts.databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	lg.Info("Running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	data := db.SeedProducts
	if opts.productsFile != "" {
		lg.Info("Reading products file", zap.String("path", opts.productsFile))
		if data, err = os.ReadFile(opts.productsFile); err != nil {
			return errors.Wrap(err, "read products file")
		}
	}
	products, err := decodeProducts(data)
	if err != nil {
		return errors.Wrap(err, "parse products")
	}

	repo := postgres.NewProductRepository(pool)
	for i := range products {
		p := &products[i]
		if err := repo.Create(ctx, p); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		lg.Info("Upserted product", zap.String("id", p.ID), zap.String("name", p.Name))
	}

	keys := postgres.NewAPIKeyRepository(pool)
	if err := keys.Upsert(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.Hash([]byte(opts.apiKeyPepper), opts.apiKey),
		Name:    "Default catalog key",
		Scopes:  []string{auth.ScopeCatalogWrite},
	}); err != nil {
		return errors.Wrap(err, "upsert default API key")
	}
	lg.Info("Upserted API key", zap.String("id", "default"))

	return nil
}

// decodeProducts parses a JSON array of {id, name, price, type}. Prices may
// be numbers or strings.
func decodeProducts(data []byte) ([]product.Product, error) {
	var products []product.Product
	err := jx.DecodeBytes(data).Arr(func(d *jx.Decoder) error {
		var p product.Product
		if err := d.Obj(func(d *jx.Decoder, key string) error {
			var err error
			switch key {
			case "id":
				p.ID, err = d.Str()
			case "name":
				p.Name, err = d.Str()
			case "type":
				p.Type, err = d.Str()
			case "price":
				var raw jx.Raw
				if raw, err = d.Raw(); err != nil {
					return err
				}
				p.Price, err = decimal.NewFromString(trimQuotes(raw.String()))
			default:
				err = d.Skip()
			}
			if err != nil {
				return errors.Wrapf(err, "field %q", key)
			}
			return nil
		}); err != nil {
			return err
		}
		if p.ID == "" || p.Name == "" || p.Type == "" {
			return errors.Errorf("product %q: id, name and type are required", p.ID)
		}
		if !p.Price.IsPositive() {
			return errors.Errorf("product %q: price must be positive", p.ID)
		}
		products = append(products, p)
		return nil
	})
	return products, err
}

func trimQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
