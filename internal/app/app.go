package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/shopping-cart/internal/domain/auth"
	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/domain/product"
	"github.com/xenking/shopping-cart/internal/handler"
	"github.com/xenking/shopping-cart/internal/storage/memory"
	"github.com/xenking/shopping-cart/internal/storage/postgres"
	"github.com/xenking/shopping-cart/pkg/health"
	"github.com/xenking/shopping-cart/pkg/httpmiddleware"
)

const serviceName = "cart-api"

// stores is the storage backend selected by Config.Storage.
type stores struct {
	products product.Repository
	carts    cart.Store
	apikeys  auth.Repository
	close    func()
}

func openStores(ctx context.Context, lg *zap.Logger, cfg *Config, hc *health.Health) (*stores, error) {
	switch cfg.Storage {
	case StorageMemory:
		db := memory.New()
		keys := memory.NewAPIKeyRepository()
		if cfg.APIKey != "" {
			if err := keys.Upsert(ctx, auth.APIKeyInfo{
				ID:      "config",
				KeyHash: auth.Hash([]byte(cfg.APIKeyPepper), cfg.APIKey),
				Name:    "Configured key",
				Scopes:  []string{auth.ScopeCatalogWrite},
			}); err != nil {
				return nil, errors.Wrap(err, "register api key")
			}
		} else {
			lg.Warn("No API key configured, catalog writes are disabled")
		}
		return &stores{
			products: memory.NewProductRepository(db),
			carts:    memory.NewCartStore(db),
			apikeys:  keys,
			close:    func() {},
		}, nil
	default:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		hc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(pool))
		return &stores{
			products: postgres.NewProductRepository(pool),
			carts:    postgres.NewCartStore(pool),
			apikeys:  postgres.NewAPIKeyRepository(pool),
			close:    pool.Close,
		}, nil
	}
}

// Run builds the storage backend, services and HTTP stack from cfg and
// serves until ctx is canceled.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
	)

	location, err := cfg.Report.Location()
	if err != nil {
		return err
	}

	healthSvc := health.New()
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	st, err := openStores(ctx, lg, cfg, healthSvc)
	if err != nil {
		return err
	}
	defer st.close()

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	productService := product.NewService(st.products)
	cartService, err := cart.NewService(st.carts, m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return errors.Wrap(err, "create cart service")
	}

	h := handler.NewHandler(
		handler.HandlerConfig{ReportLocation: location},
		productService,
		cartService,
	)
	securityHandler := handler.NewSecurityHandler(st.apikeys, []byte(cfg.APIKeyPepper))

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	h.Register(mux, securityHandler)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           middlewareChain(ctx, cfg, m, mux),
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "listen")
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return drain(lg, cfg.Graceful, healthSvc, server)
	})
	return g.Wait()
}

// middlewareChain wraps mux with the request pipeline. Recovery is outermost
// so panics anywhere below still produce a JSON 500.
func middlewareChain(ctx context.Context, cfg *Config, m httpmiddleware.Telemetry, mux *http.ServeMux) http.Handler {
	find := httpmiddleware.MakeRouteFinder(mux)
	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", handler.APIKeyHeader},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Max:    cfg.RateLimit.Max,
			Window: cfg.RateLimit.Window,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument(serviceName, find, m),
		httpmiddleware.LogRequests(find),
		httpmiddleware.Labeler(find),
	)
}

// drain marks the instance unready, gives load balancers ReadinessDelay to
// stop routing to it, then waits up to ShutdownTimeout for in-flight
// requests.
func drain(lg *zap.Logger, cfg GracefulConfig, hc *health.Health, srv *http.Server) error {
	defer hc.Stop()

	hc.SetReady(false)
	lg.Info("Draining", zap.Duration("readiness_delay", cfg.ReadinessDelay))
	time.Sleep(cfg.ReadinessDelay)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	lg.Info("Server stopped")
	return nil
}
