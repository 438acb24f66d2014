package handler

import (
	"bytes"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/jx"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/report"
)

// CreateCart opens a new empty ACTIVE cart.
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.CreateCart(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, func(e *jx.Encoder) { encodeCart(e, c) })
}

// GetCart returns a cart with its items and running total.
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.GetCart(r.Context(), r.PathValue("cartId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// AddItem adds quantity units of a product, merging with an existing line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	data, err := readBody(w, r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	req, err := decodeAddItemRequest(data)
	if err != nil {
		writeError(w, r, err)
		return
	}
	switch {
	case strings.TrimSpace(req.ProductID) == "":
		writeError(w, r, invalidf("productId is required"))
		return
	case req.Quantity < 1 || req.Quantity > cart.MaxQuantity:
		writeError(w, r, invalidf("quantity must be between 1 and %d", cart.MaxQuantity))
		return
	}

	c, err := h.carts.AddItem(r.Context(), r.PathValue("cartId"), req.ProductID, req.Quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// RemoveItem decrements a line by the quantity query parameter, or drops
// it entirely when the parameter is absent.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	quantity := math.MaxInt
	if raw := r.URL.Query().Get("quantity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeError(w, r, invalidf("quantity must be a positive integer"))
			return
		}
		quantity = n
	}

	c, err := h.carts.RemoveItem(r.Context(), r.PathValue("cartId"), r.PathValue("productId"), quantity)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// CalculateTotal returns the current sum of line totals.
func (h *Handler) CalculateTotal(w http.ResponseWriter, r *http.Request) {
	cartID := r.PathValue("cartId")
	total, err := h.carts.CalculateTotal(r.Context(), cartID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("cartId")
		e.Str(cartID)
		e.FieldStart("total")
		encodeMoney(e, total)
		e.ObjEnd()
	})
}

// Checkout moves an ACTIVE cart to CHECKED_OUT.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	c, err := h.carts.Checkout(r.Context(), r.PathValue("cartId"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) { encodeCart(e, c) })
}

// AbandonedReport lists ACTIVE carts created on or before the given date.
func (h *Handler) AbandonedReport(w http.ResponseWriter, r *http.Request) {
	date, err := h.reportDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	carts, err := h.carts.ListAbandoned(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, func(e *jx.Encoder) {
		e.ArrStart()
		for i := range carts {
			encodeCart(e, &carts[i])
		}
		e.ArrEnd()
	})
}

// PrintAbandonedReport renders the abandoned-cart report as plain text.
func (h *Handler) PrintAbandonedReport(w http.ResponseWriter, r *http.Request) {
	date, err := h.reportDate(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	carts, err := h.carts.ListAbandoned(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := report.Write(&buf, date, carts); err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}

// reportDate parses the required date query parameter in the report
// time zone.
func (h *Handler) reportDate(r *http.Request) (time.Time, error) {
	raw := r.URL.Query().Get("date")
	if raw == "" {
		return time.Time{}, invalidf("date is required")
	}
	date, err := time.ParseInLocation(report.DateLayout, raw, h.location)
	if err != nil {
		return time.Time{}, invalidf("date must be formatted as YYYY-MM-DD")
	}
	return date, nil
}
