package handler

import (
	"net/http"
	"strings"

	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopping-cart/internal/domain/product"
)

var minPrice = decimal.RequireFromString("0.01")

// priceScale is the number of fractional digits prices are stored with.
const priceScale = 2

// ListProducts returns every product in the catalog.
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.products.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range products {
			encodeProduct(e, &products[i])
		}
		e.ArrEnd()
	})
}

// GetProduct returns a single product by ID.
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.products.Get(r.Context(), r.PathValue("productId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

// CreateProduct validates the body and adds a product to the catalog.
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := readProductInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.Create(r.Context(), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeProduct(e, p) })
}

// UpdateProduct replaces name, price and type of an existing product.
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	in, err := readProductInput(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	p, err := h.products.Update(r.Context(), r.PathValue("productId"), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeProduct(e, p) })
}

// DeleteProduct removes a product that is not held by any cart.
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.products.Delete(r.Context(), r.PathValue("productId")); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// readProductInput decodes and validates a product body.
func readProductInput(w http.ResponseWriter, r *http.Request) (product.Input, error) {
	data, err := readBody(w, r)
	if err != nil {
		return product.Input{}, err
	}
	req, err := decodeProductRequest(data)
	if err != nil {
		return product.Input{}, err
	}

	switch {
	case strings.TrimSpace(req.Name) == "":
		return product.Input{}, invalidf("product name cannot be empty")
	case !req.HasPrice:
		return product.Input{}, invalidf("product price cannot be null")
	case req.Price.LessThan(minPrice):
		return product.Input{}, invalidf("product price must be greater than 0")
	case !req.Price.Equal(req.Price.Truncate(priceScale)):
		return product.Input{}, invalidf("product price must have at most %d decimal places", priceScale)
	case strings.TrimSpace(req.Type) == "":
		return product.Input{}, invalidf("product type cannot be empty")
	}

	return product.Input{
		Name:  req.Name,
		Price: req.Price,
		Type:  req.Type,
	}, nil
}
