package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestComputeDerived(t *testing.T) {
	cases := []struct {
		name           string
		sale           Sale
		wantDiscounted float64
		wantBase       float64
		wantPrim       float64
	}{
		{
			name: "indirimli, aktivite fiyatı düşük",
			sale: Sale{
				SaleType:          SaleTypeSatis,
				ListPrice:         500000,
				DiscountRate:      5,
				ActivitySalePrice: 475000,
				PrimRate:          1,
			},
			wantDiscounted: 475000,
			wantBase:       475000,
			wantPrim:       4750,
		},
		{
			name: "indirimsiz liste fiyatı aynen kullanılır",
			sale: Sale{
				SaleType:          SaleTypeSatis,
				ListPrice:         300000,
				DiscountRate:      0,
				ActivitySalePrice: 290000,
				PrimRate:          1,
			},
			wantDiscounted: 300000,
			wantBase:       290000,
			wantPrim:       2900,
		},
		{
			name: "aktivite fiyatı yüksekse taban indirimli fiyat",
			sale: Sale{
				SaleType:          SaleTypeSatis,
				ListPrice:         500000,
				DiscountRate:      10,
				ActivitySalePrice: 480000,
				PrimRate:          2,
			},
			wantDiscounted: 450000,
			wantBase:       450000,
			wantPrim:       9000,
		},
		{
			name: "oran sıfırsa prim sıfır",
			sale: Sale{
				SaleType:          SaleTypeSatis,
				ListPrice:         500000,
				ActivitySalePrice: 475000,
				PrimRate:          0,
			},
			wantDiscounted: 500000,
			wantBase:       475000,
			wantPrim:       0,
		},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			c.sale.ComputeDerived()
			assert.Equal(t, c.wantDiscounted, c.sale.DiscountedListPrice)
			assert.Equal(t, c.wantBase, c.sale.BasePrimPrice)
			assert.Equal(t, c.wantPrim, c.sale.PrimAmount)
		})
	}
}

func TestComputeDerivedKaporaZeroesEverything(t *testing.T) {
	s := Sale{
		SaleType:          SaleTypeKapora,
		ListPrice:         500000,
		DiscountRate:      5,
		ActivitySalePrice: 475000,
		PrimRate:          1,
	}
	s.ComputeDerived()

	assert.Zero(t, s.ListPrice)
	assert.Zero(t, s.DiscountRate)
	assert.Zero(t, s.ActivitySalePrice)
	assert.Zero(t, s.DiscountedListPrice)
	assert.Zero(t, s.BasePrimPrice)
	assert.Zero(t, s.PrimRate)
	assert.Zero(t, s.PrimAmount)
}
