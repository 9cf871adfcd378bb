package pricing

import (
	"testing"

	"backend/internal/models"
)

const home = "TR"

func TestComputeShippingDomesticStandard(t *testing.T) {
	quote := ComputeShipping("TR", home, 100, models.ShippingMethodStandard, 1, 0.5)
	if quote.IsFree {
		t.Fatal("expected non-free shipping below threshold")
	}
	if quote.Cost != 49.90 {
		t.Fatalf("expected domestic standard cost 49.90, got %v", quote.Cost)
	}
	if quote.EstimatedDays != 3 {
		t.Fatalf("expected 3 estimated days, got %d", quote.EstimatedDays)
	}
}

func TestComputeShippingFreeOnlyDomesticStandard(t *testing.T) {
	quote := ComputeShipping("TR", home, 2000, models.ShippingMethodStandard, 2, 1)
	if !quote.IsFree || quote.Cost != 0 {
		t.Fatalf("expected free domestic standard shipping, got %+v", quote)
	}

	// Express never gets the free threshold.
	express := ComputeShipping("TR", home, 2000, models.ShippingMethodExpress, 2, 1)
	if express.IsFree || express.Cost != 89.90 {
		t.Fatalf("expected paid express shipping, got %+v", express)
	}

	// Neither does a non-domestic destination.
	abroad := ComputeShipping("DE", home, 2000, models.ShippingMethodStandard, 2, 1)
	if abroad.IsFree {
		t.Fatalf("expected paid shipping for DE, got %+v", abroad)
	}
}

func TestComputeShippingRegionResolution(t *testing.T) {
	tests := []struct {
		country string
		cost    float64
	}{
		{"TR", 49.90},  // domestic
		{"de", 189.90}, // EU, case-insensitive
		{"US", 249.90}, // North America
		{"JP", 269.90}, // continental bucket
		{"ZA", 299.90}, // rest of world
	}
	for _, tc := range tests {
		quote := ComputeShipping(tc.country, home, 100, models.ShippingMethodStandard, 1, 0.5)
		if quote.Cost != tc.cost {
			t.Fatalf("country %s: expected cost %v, got %v", tc.country, tc.cost, quote.Cost)
		}
	}
}

func TestComputeShippingSurchargesAdditive(t *testing.T) {
	// 12kg and 12 items trips both surcharges on top of the base rate.
	quote := ComputeShipping("TR", home, 100, models.ShippingMethodStandard, 12, 12)
	want := Round2(49.90 + 25.0 + 15.0)
	if quote.Cost != want {
		t.Fatalf("expected cost %v with both surcharges, got %v", want, quote.Cost)
	}

	// Surcharges apply even when the free threshold was met.
	heavy := ComputeShipping("TR", home, 2000, models.ShippingMethodStandard, 1, 12)
	if heavy.IsFree || heavy.Cost != 25.0 {
		t.Fatalf("expected weight surcharge after free check, got %+v", heavy)
	}
}

func TestComputeTaxUnknownCountryZeroRated(t *testing.T) {
	quote := ComputeTax("ZA", 100)
	if quote.Rate != 0 || quote.Amount != 0 {
		t.Fatalf("expected zero tax for unlisted country, got %+v", quote)
	}
}

func TestComputeTaxDomesticRate(t *testing.T) {
	quote := ComputeTax("TR", 12.99)
	if quote.Rate != 0.20 {
		t.Fatalf("expected rate 0.20, got %v", quote.Rate)
	}
	if quote.Amount != 2.60 {
		t.Fatalf("expected amount 2.60, got %v", quote.Amount)
	}
}

func TestComputeOrderTotalsSingleDomesticItem(t *testing.T) {
	items := []models.OrderItem{{Name: "mug", Quantity: 1, UnitPrice: 12.99, Weight: 0.4}}

	totals := ComputeOrderTotals(items, "TR", home, models.ShippingMethodStandard, 0)
	if totals.ItemsTotal != 12.99 {
		t.Fatalf("expected items total 12.99, got %v", totals.ItemsTotal)
	}
	if totals.ShippingTotal != 49.90 {
		t.Fatalf("expected shipping 49.90, got %v", totals.ShippingTotal)
	}
	if totals.TaxTotal != 2.60 {
		t.Fatalf("expected tax 2.60, got %v", totals.TaxTotal)
	}
	want := Round2(12.99 + 49.90 + 2.60)
	if totals.GrandTotal != want {
		t.Fatalf("expected grand total %v, got %v", want, totals.GrandTotal)
	}
}

func TestComputeOrderTotalsDeterministic(t *testing.T) {
	items := []models.OrderItem{
		{Name: "a", Quantity: 3, UnitPrice: 19.99, Weight: 1.2},
		{Name: "b", Quantity: 1, UnitPrice: 149.50, Weight: 4.0},
	}
	first := ComputeOrderTotals(items, "DE", home, models.ShippingMethodExpress, 25)
	for i := 0; i < 10; i++ {
		again := ComputeOrderTotals(items, "DE", home, models.ShippingMethodExpress, 25)
		if again != first {
			t.Fatalf("totals not deterministic: %+v vs %+v", first, again)
		}
	}
}

func TestComputeOrderTotalsDiscountClamped(t *testing.T) {
	items := []models.OrderItem{{Name: "a", Quantity: 1, UnitPrice: 10}}

	totals := ComputeOrderTotals(items, "ZA", home, models.ShippingMethodStandard, 999)
	if totals.DiscountTotal != 10 {
		t.Fatalf("expected discount clamped to items subtotal 10, got %v", totals.DiscountTotal)
	}
	if totals.GrandTotal < 0 {
		t.Fatalf("grand total must never be negative, got %v", totals.GrandTotal)
	}

	negative := ComputeOrderTotals(items, "ZA", home, models.ShippingMethodStandard, -5)
	if negative.DiscountTotal != 0 {
		t.Fatalf("expected negative discount treated as zero, got %v", negative.DiscountTotal)
	}
}
