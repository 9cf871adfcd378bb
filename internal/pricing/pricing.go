// Package pricing computes shipping, tax, discount and order totals. All
// functions are pure: no I/O, deterministic for identical inputs. Currency
// values are rounded to two decimals only at the points exposed to callers;
// intermediate accumulation stays unrounded.
package pricing

import (
	"math"
	"strings"

	"backend/internal/models"
)

// Shipping regions, resolved most-specific first.
const (
	regionDomestic     = "domestic"
	regionEurope       = "europe"
	regionNorthAmerica = "north-america"
	regionAsia         = "asia"
	regionRest         = "rest"
)

const (
	freeShippingThreshold  = 1500.0
	weightSurchargeAboveKG = 10.0
	weightSurcharge        = 25.0
	bulkSurchargeAboveQty  = 10
	bulkSurcharge          = 15.0
)

var euCountries = map[string]bool{
	"AT": true, "BE": true, "BG": true, "HR": true, "CY": true, "CZ": true,
	"DK": true, "EE": true, "FI": true, "FR": true, "DE": true, "GR": true,
	"HU": true, "IE": true, "IT": true, "LV": true, "LT": true, "LU": true,
	"MT": true, "NL": true, "PL": true, "PT": true, "RO": true, "SK": true,
	"SI": true, "ES": true, "SE": true,
}

var northAmericaCountries = map[string]bool{
	"US": true, "CA": true, "MX": true,
}

var asiaCountries = map[string]bool{
	"CN": true, "JP": true, "KR": true, "IN": true, "SG": true, "HK": true,
	"TW": true, "TH": true, "VN": true, "MY": true, "ID": true, "PH": true,
	"AE": true, "SA": true, "QA": true, "KW": true, "IL": true,
}

type shippingRate struct {
	Standard     float64
	Express      float64
	StandardDays int
	ExpressDays  int
}

var shippingRates = map[string]shippingRate{
	regionDomestic:     {Standard: 49.90, Express: 89.90, StandardDays: 3, ExpressDays: 1},
	regionEurope:       {Standard: 189.90, Express: 329.90, StandardDays: 7, ExpressDays: 3},
	regionNorthAmerica: {Standard: 249.90, Express: 449.90, StandardDays: 10, ExpressDays: 4},
	regionAsia:         {Standard: 269.90, Express: 479.90, StandardDays: 12, ExpressDays: 5},
	regionRest:         {Standard: 299.90, Express: 529.90, StandardDays: 15, ExpressDays: 7},
}

// Tax rates by country code. Countries not listed are zero-rated: cross
// border orders are treated as tax exempt at this layer, and tax applies to
// the merchandise subtotal only.
var taxRates = map[string]float64{
	"TR": 0.20,
	"DE": 0.19,
	"FR": 0.20,
	"NL": 0.21,
	"GB": 0.20,
	"US": 0.0725,
}

// ShippingQuote is the shipping cost result for one order.
type ShippingQuote struct {
	Cost          float64 `json:"cost"`
	EstimatedDays int     `json:"estimatedDays"`
	IsFree        bool    `json:"isFree"`
}

// TaxQuote is the tax result for one order.
type TaxQuote struct {
	Rate   float64 `json:"rate"`
	Amount float64 `json:"amount"`
}

// Totals is the full price breakdown of an order before persistence.
type Totals struct {
	ItemsTotal    float64
	ShippingTotal float64
	TaxTotal      float64
	DiscountTotal float64
	GrandTotal    float64
	Shipping      ShippingQuote
	Tax           TaxQuote
}

func resolveRegion(countryCode, homeCountry string) string {
	code := strings.ToUpper(strings.TrimSpace(countryCode))
	switch {
	case code == strings.ToUpper(homeCountry):
		return regionDomestic
	case euCountries[code]:
		return regionEurope
	case northAmericaCountries[code]:
		return regionNorthAmerica
	case asiaCountries[code]:
		return regionAsia
	default:
		return regionRest
	}
}

// ComputeShipping resolves the shipping region for the destination country
// and prices the chosen method. Free shipping applies only to the standard
// method in the domestic region above the subtotal threshold; weight and
// item-count surcharges are additive and applied after the free check.
func ComputeShipping(countryCode, homeCountry string, itemsSubtotal float64, method string, itemCount int, totalWeightKG float64) ShippingQuote {
	region := resolveRegion(countryCode, homeCountry)
	rate := shippingRates[region]

	cost := rate.Standard
	days := rate.StandardDays
	if method == models.ShippingMethodExpress {
		cost = rate.Express
		days = rate.ExpressDays
	}

	free := region == regionDomestic &&
		method == models.ShippingMethodStandard &&
		itemsSubtotal >= freeShippingThreshold
	if free {
		cost = 0
	}

	if totalWeightKG > weightSurchargeAboveKG {
		cost += weightSurcharge
	}
	if itemCount > bulkSurchargeAboveQty {
		cost += bulkSurcharge
	}

	return ShippingQuote{
		Cost:          Round2(cost),
		EstimatedDays: days,
		IsFree:        free && cost == 0,
	}
}

// ComputeTax looks up the tax rate for the country, defaulting to zero for
// unlisted countries, and applies it to the merchandise subtotal.
func ComputeTax(countryCode string, subtotal float64) TaxQuote {
	rate := taxRates[strings.ToUpper(strings.TrimSpace(countryCode))]
	return TaxQuote{
		Rate:   rate,
		Amount: Round2(subtotal * rate),
	}
}

// ComputeOrderTotals produces the full, frozen breakdown for an order. The
// coupon discount is clamped to the items subtotal and the grand total is
// clamped at zero. Callers must reject empty item lists and non-positive
// quantities before invoking.
func ComputeOrderTotals(items []models.OrderItem, countryCode, homeCountry, shippingMethod string, couponDiscount float64) Totals {
	itemsTotal := 0.0
	itemCount := 0
	totalWeight := 0.0
	for _, item := range items {
		itemsTotal += item.UnitPrice * float64(item.Quantity)
		itemCount += item.Quantity
		totalWeight += item.Weight * float64(item.Quantity)
	}

	shipping := ComputeShipping(countryCode, homeCountry, itemsTotal, shippingMethod, itemCount, totalWeight)
	tax := ComputeTax(countryCode, itemsTotal)

	discount := couponDiscount
	if discount < 0 {
		discount = 0
	}
	if discount > itemsTotal {
		discount = itemsTotal
	}

	grand := itemsTotal + shipping.Cost + tax.Amount - discount
	if grand < 0 {
		grand = 0
	}

	return Totals{
		ItemsTotal:    Round2(itemsTotal),
		ShippingTotal: shipping.Cost,
		TaxTotal:      tax.Amount,
		DiscountTotal: Round2(discount),
		GrandTotal:    Round2(grand),
		Shipping:      shipping,
		Tax:           tax,
	}
}

// Round2 rounds a currency amount to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
