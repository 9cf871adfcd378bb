package coupons

import (
	"errors"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/models"
)

func activeCoupon() *models.Coupon {
	now := time.Now().UTC()
	return &models.Coupon{
		Code:      "WELCOME10",
		Type:      models.CouponTypePercentage,
		Value:     10,
		StartsAt:  now.Add(-time.Hour),
		ExpiresAt: now.Add(24 * time.Hour),
		IsActive:  true,
	}
}

func expectInvalid(t *testing.T, err error) *InvalidError {
	t.Helper()
	var invalidErr *InvalidError
	if !errors.As(err, &invalidErr) {
		t.Fatalf("expected InvalidError, got %v", err)
	}
	return invalidErr
}

func TestValidateAcceptsActiveCoupon(t *testing.T) {
	if err := Validate(activeCoupon(), primitive.NewObjectID(), false, 100); err != nil {
		t.Fatalf("expected valid coupon, got %v", err)
	}
}

func TestValidateRejectsExpiredWindow(t *testing.T) {
	coupon := activeCoupon()
	coupon.ExpiresAt = time.Now().UTC().Add(-time.Minute)
	expectInvalid(t, Validate(coupon, primitive.NewObjectID(), false, 100))

	coupon = activeCoupon()
	coupon.StartsAt = time.Now().UTC().Add(time.Hour)
	expectInvalid(t, Validate(coupon, primitive.NewObjectID(), false, 100))
}

func TestValidateRejectsBelowMinimumOrder(t *testing.T) {
	coupon := activeCoupon()
	coupon.MinOrderAmount = 250
	expectInvalid(t, Validate(coupon, primitive.NewObjectID(), false, 100))
	if err := Validate(coupon, primitive.NewObjectID(), false, 250); err != nil {
		t.Fatalf("expected valid at minimum amount, got %v", err)
	}
}

func TestValidateFirstOrderOnly(t *testing.T) {
	coupon := activeCoupon()
	coupon.FirstOrderOnly = true
	expectInvalid(t, Validate(coupon, primitive.NewObjectID(), false, 100))
	if err := Validate(coupon, primitive.NewObjectID(), true, 100); err != nil {
		t.Fatalf("expected valid for first order, got %v", err)
	}
}

func TestValidateAllowListMembership(t *testing.T) {
	member := primitive.NewObjectID()
	coupon := activeCoupon()
	coupon.AllowedUsers = []primitive.ObjectID{member}

	expectInvalid(t, Validate(coupon, primitive.NewObjectID(), false, 100))
	if err := Validate(coupon, member, false, 100); err != nil {
		t.Fatalf("expected valid for listed user, got %v", err)
	}
}

func TestValidatePerUserCap(t *testing.T) {
	user := primitive.NewObjectID()
	coupon := activeCoupon()
	coupon.PerUserLimit = 2
	coupon.UsedBy = []models.CouponUsage{
		{UserID: user}, {UserID: user}, {UserID: primitive.NewObjectID()},
	}

	expectInvalid(t, Validate(coupon, user, false, 100))
	if err := Validate(coupon, primitive.NewObjectID(), false, 100); err != nil {
		t.Fatalf("expected other user still valid, got %v", err)
	}
}

func TestValidateGlobalUsageLimit(t *testing.T) {
	coupon := activeCoupon()
	coupon.UsageLimit = 5
	coupon.UsedCount = 5
	expectInvalid(t, Validate(coupon, primitive.NewObjectID(), false, 100))
}

func TestDiscountPercentageWithCeiling(t *testing.T) {
	coupon := activeCoupon()
	coupon.MaxDiscount = 15

	if got := Discount(coupon, 100); got != 10 {
		t.Fatalf("expected 10%% of 100 = 10, got %v", got)
	}
	if got := Discount(coupon, 500); got != 15 {
		t.Fatalf("expected ceiling 15, got %v", got)
	}
}

func TestDiscountFixedCappedAtSubtotal(t *testing.T) {
	coupon := activeCoupon()
	coupon.Type = models.CouponTypeFixed
	coupon.Value = 50

	if got := Discount(coupon, 200); got != 50 {
		t.Fatalf("expected fixed discount 50, got %v", got)
	}
	if got := Discount(coupon, 30); got != 30 {
		t.Fatalf("expected discount capped at subtotal 30, got %v", got)
	}
}

func TestDiscountNeverNegative(t *testing.T) {
	coupon := activeCoupon()
	coupon.Type = models.CouponTypeFixed
	coupon.Value = -10
	if got := Discount(coupon, 100); got != 0 {
		t.Fatalf("expected 0 for negative value, got %v", got)
	}
}
