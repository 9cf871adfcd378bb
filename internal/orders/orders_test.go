package orders

import (
	"strings"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/models"
)

func TestNewOrderNumberFormat(t *testing.T) {
	at := time.Date(2026, 1, 2, 15, 4, 5, 0, time.UTC)
	number := NewOrderNumber(at)

	if !strings.HasPrefix(number, "ORD-20260102150405-") {
		t.Fatalf("unexpected prefix: %s", number)
	}
	suffix := strings.TrimPrefix(number, "ORD-20260102150405-")
	if len(suffix) != 6 {
		t.Fatalf("expected 6-char suffix, got %q", suffix)
	}
	if suffix != strings.ToUpper(suffix) {
		t.Fatalf("expected uppercase suffix, got %q", suffix)
	}
}

func TestNewOrderNumberSuffixVaries(t *testing.T) {
	at := time.Now()
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		seen[NewOrderNumber(at)] = true
	}
	if len(seen) < 2 {
		t.Fatal("expected random suffixes to differ within one second")
	}
}

func validRequest() PlaceRequest {
	return PlaceRequest{
		Items:          []ItemRequest{{ProductID: primitive.NewObjectID().Hex(), Quantity: 1}},
		Address:        models.ShippingAddress{FullName: "A B", Line1: "street 1", City: "city", Country: "TR"},
		PaymentMethod:  "card",
		ShippingMethod: models.ShippingMethodStandard,
	}
}

func TestValidateAcceptsWellFormedRequest(t *testing.T) {
	req := validRequest()
	lines, err := validate(&req)
	if err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}
	if len(lines) != 1 || lines[0].Quantity != 1 {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestValidateDefaultsShippingMethod(t *testing.T) {
	req := validRequest()
	req.ShippingMethod = ""
	if _, err := validate(&req); err != nil {
		t.Fatalf("expected default shipping method, got %v", err)
	}
	if req.ShippingMethod != models.ShippingMethodStandard {
		t.Fatalf("expected standard default, got %q", req.ShippingMethod)
	}
}

func TestValidateRejectsBadInput(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*PlaceRequest)
	}{
		{"empty items", func(r *PlaceRequest) { r.Items = nil }},
		{"zero quantity", func(r *PlaceRequest) { r.Items[0].Quantity = 0 }},
		{"negative quantity", func(r *PlaceRequest) { r.Items[0].Quantity = -1 }},
		{"bad product id", func(r *PlaceRequest) { r.Items[0].ProductID = "nope" }},
		{"bad payment method", func(r *PlaceRequest) { r.PaymentMethod = "barter" }},
		{"bad shipping method", func(r *PlaceRequest) { r.ShippingMethod = "teleport" }},
		{"missing country", func(r *PlaceRequest) { r.Address.Country = " " }},
	}
	for _, tc := range tests {
		req := validRequest()
		tc.mutate(&req)
		if _, err := validate(&req); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}
