package handler

import (
	"net/http"
	"time"

	"github.com/xenking/shopping-cart/internal/domain/auth"
	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/domain/product"
)

// maxBodyBytes caps request bodies.
const maxBodyBytes = 1 << 20

// HandlerConfig holds non-dependency configuration for the Handler.
type HandlerConfig struct {
	// ReportLocation is the time zone report dates are interpreted in.
	// Defaults to time.Local.
	ReportLocation *time.Location
}

// Handler serves the product and cart REST API, delegating business logic
// to the product and cart services.
type Handler struct {
	products *product.Service
	carts    *cart.Service
	location *time.Location
}

// NewHandler constructs a Handler with the required domain dependencies.
func NewHandler(
	cfg HandlerConfig,
	products *product.Service,
	carts *cart.Service,
) *Handler {
	loc := cfg.ReportLocation
	if loc == nil {
		loc = time.Local
	}
	return &Handler{
		products: products,
		carts:    carts,
		location: loc,
	}
}

// Register mounts every API route on mux under /api. Catalog writes require
// an API key with the catalog:write scope.
func (h *Handler) Register(mux *http.ServeMux, sec *SecurityHandler) {
	catalogWrite := sec.Require(auth.ScopeCatalogWrite)

	mux.HandleFunc("GET /api/products", h.ListProducts)
	mux.HandleFunc("GET /api/products/{productId}", h.GetProduct)
	mux.Handle("POST /api/products", catalogWrite(http.HandlerFunc(h.CreateProduct)))
	mux.Handle("PUT /api/products/{productId}", catalogWrite(http.HandlerFunc(h.UpdateProduct)))
	mux.Handle("DELETE /api/products/{productId}", catalogWrite(http.HandlerFunc(h.DeleteProduct)))

	mux.HandleFunc("POST /api/carts", h.CreateCart)
	mux.HandleFunc("GET /api/carts/{cartId}", h.GetCart)
	mux.HandleFunc("POST /api/carts/{cartId}/items", h.AddItem)
	mux.HandleFunc("DELETE /api/carts/{cartId}/items/{productId}", h.RemoveItem)
	mux.HandleFunc("GET /api/carts/{cartId}/total", h.CalculateTotal)
	mux.HandleFunc("POST /api/carts/{cartId}/checkout", h.Checkout)
	mux.HandleFunc("GET /api/carts/report/abandoned", h.AbandonedReport)
	mux.HandleFunc("GET /api/carts/report/abandoned/print", h.PrintAbandonedReport)
}
