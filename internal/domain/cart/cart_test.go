package cart

import (
	"testing"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCart_Validate_Empty(t *testing.T) {
	require.NoError(t, Cart{}.Validate())
	require.NoError(t, Cart{Items: []Item{}}.Validate())
	require.NoError(t, Cart{Items: []Item{{UnitPrice: decimal.NewFromInt(1), Quantity: 1}}}.Validate(),
		"product id is optional")

	s := Summarize(Cart{Items: []Item{}})
	assert.True(t, s.Value.IsZero())
	assert.Zero(t, s.TotalItems)
	assert.False(t, s.HasCategory(""))
}

func TestCart_Validate(t *testing.T) {
	tests := []struct {
		name      string
		cart      Cart
		wantIndex int
	}{
		{
			name: "valid",
			cart: Cart{Items: []Item{
				{ProductID: "p1", Category: "books", UnitPrice: decimal.NewFromInt(10), Quantity: 1},
			}},
		},
		{
			name: "zero quantity",
			cart: Cart{Items: []Item{
				{ProductID: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: 1},
				{ProductID: "p2", UnitPrice: decimal.NewFromInt(10), Quantity: 0},
			}},
			wantIndex: 1,
		},
		{
			name: "negative quantity",
			cart: Cart{Items: []Item{
				{ProductID: "p1", UnitPrice: decimal.NewFromInt(10), Quantity: -2},
			}},
		},
		{
			name: "negative price",
			cart: Cart{Items: []Item{
				{ProductID: "p1", UnitPrice: decimal.NewFromInt(-1), Quantity: 1},
			}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cart.Validate()
			if tt.name == "valid" {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			var itemErr *InvalidItemError
			require.True(t, errors.As(err, &itemErr))
			assert.Equal(t, tt.wantIndex, itemErr.Index)
		})
	}
}

func TestSummarize(t *testing.T) {
	c := Cart{Items: []Item{
		{ProductID: "p1", Category: "electronics", UnitPrice: decimal.RequireFromString("1000"), Quantity: 2},
		{ProductID: "p2", Category: "books", UnitPrice: decimal.RequireFromString("250.25"), Quantity: 2},
	}}

	s := Summarize(c)

	assert.True(t, decimal.RequireFromString("2500.50").Equal(s.Value), "got %s", s.Value)
	assert.Equal(t, 4, s.TotalItems)
	assert.True(t, s.HasCategory("books"))
	assert.True(t, s.HasCategory("electronics"))
	assert.False(t, s.HasCategory("fashion"))
}

func TestSummarize_OrderIndependent(t *testing.T) {
	a := Item{ProductID: "a", Category: "x", UnitPrice: decimal.RequireFromString("0.10"), Quantity: 3}
	b := Item{ProductID: "b", Category: "y", UnitPrice: decimal.RequireFromString("0.20"), Quantity: 1}

	s1 := Summarize(Cart{Items: []Item{a, b}})
	s2 := Summarize(Cart{Items: []Item{b, a}})

	assert.True(t, s1.Value.Equal(s2.Value))
	assert.True(t, decimal.RequireFromString("0.5").Equal(s1.Value))
	assert.Equal(t, s1.TotalItems, s2.TotalItems)
}
