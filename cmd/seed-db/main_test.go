package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/shopping-cart/db"
)

func TestDecodeProducts_Embedded(t *testing.T) {
	products, err := decodeProducts(db.SeedProducts)
	require.NoError(t, err)
	require.Len(t, products, 6)

	assert.Equal(t, "Laptop", products[0].Name)
	assert.Equal(t, "Electronics", products[0].Type)
	assert.Equal(t, "1000", products[0].Price.String())

	ids := make(map[string]struct{})
	for _, p := range products {
		ids[p.ID] = struct{}{}
	}
	assert.Len(t, ids, len(products), "ids are unique")
}

func TestDecodeProducts(t *testing.T) {
	for _, tt := range []struct {
		name    string
		input   string
		price   string
		wantErr string
	}{
		{name: "NumberPrice", input: `[{"id":"p1","name":"Mouse","price":25.5,"type":"Electronics"}]`, price: "25.5"},
		{name: "StringPrice", input: `[{"id":"p1","name":"Mouse","price":"25.50","type":"Electronics","extra":{"a":1}}]`, price: "25.5"},
		{name: "ZeroPrice", input: `[{"id":"p1","name":"Mouse","price":0,"type":"Electronics"}]`, wantErr: "price must be positive"},
		{name: "MissingName", input: `[{"id":"p1","price":1,"type":"Electronics"}]`, wantErr: "required"},
		{name: "BadPrice", input: `[{"id":"p1","name":"Mouse","price":"cheap","type":"Electronics"}]`, wantErr: "price"},
		{name: "NotArray", input: `{"id":"p1"}`, wantErr: ""},
	} {
		t.Run(tt.name, func(t *testing.T) {
			products, err := decodeProducts([]byte(tt.input))
			if tt.price == "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			require.Len(t, products, 1)
			assert.Equal(t, tt.price, products[0].Price.String())
		})
	}
}
