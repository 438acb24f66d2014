package handler

import (
	"io"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/shopspring/decimal"

	"github.com/xenking/shopping-cart/internal/domain/cart"
	"github.com/xenking/shopping-cart/internal/domain/product"
)

// writeJSON encodes a response body with jx and writes it with status.
func writeJSON(w http.ResponseWriter, status int, encode func(e *jx.Encoder)) {
	var e jx.Encoder
	encode(&e)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}

// writeMessage writes the {"code":...,"message":...} error body.
func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, func(e *jx.Encoder) {
		e.ObjStart()
		e.FieldStart("code")
		e.Int(status)
		e.FieldStart("message")
		e.Str(msg)
		e.ObjEnd()
	})
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return nil, invalidf("read body: %s", err)
	}
	return data, nil
}

// encodeMoney writes d as a JSON number with exactly priceScale fractional
// digits.
func encodeMoney(e *jx.Encoder, d decimal.Decimal) {
	e.Raw([]byte(d.StringFixed(priceScale)))
}

func encodeTime(e *jx.Encoder, t time.Time) {
	e.Str(t.Format(time.RFC3339Nano))
}

func encodeProduct(e *jx.Encoder, p *product.Product) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(p.ID)
	e.FieldStart("name")
	e.Str(p.Name)
	e.FieldStart("price")
	encodeMoney(e, p.Price)
	e.FieldStart("type")
	e.Str(p.Type)
	e.ObjEnd()
}

func encodeCart(e *jx.Encoder, c *cart.Cart) {
	e.ObjStart()
	e.FieldStart("id")
	e.Str(c.ID)
	e.FieldStart("status")
	e.Str(string(c.Status))

	e.FieldStart("items")
	e.ArrStart()
	for _, it := range c.Items {
		e.ObjStart()
		e.FieldStart("id")
		e.Str(it.ID)
		e.FieldStart("productId")
		e.Str(it.Product.ID)
		e.FieldStart("productName")
		e.Str(it.Product.Name)
		e.FieldStart("productPrice")
		encodeMoney(e, it.Product.Price)
		e.FieldStart("quantity")
		e.Int(it.Quantity)
		e.FieldStart("itemTotalPrice")
		encodeMoney(e, it.LineTotal())
		e.ObjEnd()
	}
	e.ArrEnd()

	e.FieldStart("totalPrice")
	encodeMoney(e, c.Total())
	e.FieldStart("createdAt")
	encodeTime(e, c.CreatedAt)
	e.FieldStart("lastModifiedAt")
	encodeTime(e, c.LastModifiedAt)
	e.FieldStart("checkedOutAt")
	if c.CheckedOutAt != nil {
		encodeTime(e, *c.CheckedOutAt)
	} else {
		e.Null()
	}
	e.ObjEnd()
}

// decodeDecimal accepts both JSON numbers and numeric strings.
func decodeDecimal(d *jx.Decoder) (decimal.Decimal, error) {
	switch d.Next() {
	case jx.Number:
		n, err := d.Num()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(n.String())
	case jx.String:
		s, err := d.Str()
		if err != nil {
			return decimal.Zero, err
		}
		return decimal.NewFromString(s)
	default:
		return decimal.Zero, errors.New("expected number")
	}
}

// productRequest is the body of product create and update calls.
type productRequest struct {
	Name     string
	Price    decimal.Decimal
	Type     string
	HasPrice bool
}

func decodeProductRequest(data []byte) (productRequest, error) {
	var req productRequest
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "name":
			req.Name, err = d.Str()
		case "type":
			req.Type, err = d.Str()
		case "price":
			req.Price, err = decodeDecimal(d)
			req.HasPrice = err == nil
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return productRequest{}, invalidf("malformed product: %s", err)
	}
	return req, nil
}

// addItemRequest is the body of the add-item call.
type addItemRequest struct {
	ProductID string
	Quantity  int
}

func decodeAddItemRequest(data []byte) (addItemRequest, error) {
	var req addItemRequest
	err := jx.DecodeBytes(data).Obj(func(d *jx.Decoder, key string) error {
		var err error
		switch key {
		case "productId":
			req.ProductID, err = d.Str()
		case "quantity":
			req.Quantity, err = d.Int()
		default:
			err = d.Skip()
		}
		if err != nil {
			return errors.Wrapf(err, "field %q", key)
		}
		return nil
	})
	if err != nil {
		return addItemRequest{}, invalidf("malformed cart item: %s", err)
	}
	return req, nil
}
