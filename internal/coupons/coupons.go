// Package coupons validates promotional codes and records redemptions.
// Validation never mutates coupon state; usage is written only after the
// order it belongs to has been committed.
package coupons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
	"backend/internal/pricing"
)

// InvalidError explains why a coupon cannot be applied. It maps to a 400 at
// the HTTP layer with the reason as the actionable message.
type InvalidError struct {
	Code   string
	Reason string
}

func (e *InvalidError) Error() string {
	return fmt.Sprintf("coupon %s: %s", e.Code, e.Reason)
}

func invalid(code, reason string) error {
	return &InvalidError{Code: code, Reason: reason}
}

// FindByCode loads an active coupon document by its normalized code.
func FindByCode(ctx context.Context, db *mongo.Database, code string) (*models.Coupon, error) {
	var coupon models.Coupon
	err := db.Collection("coupons").FindOne(ctx, bson.M{
		"code": Normalize(code),
	}).Decode(&coupon)
	if err == mongo.ErrNoDocuments {
		return nil, invalid(Normalize(code), "coupon not found")
	}
	if err != nil {
		return nil, err
	}
	return &coupon, nil
}

// Normalize maps user input onto the stored code format.
func Normalize(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Validate checks every redemption rule without touching state: active flag,
// validity window, minimum order amount, first-order restriction, allow-list
// membership and the per-user usage cap.
func Validate(coupon *models.Coupon, userID primitive.ObjectID, isFirstOrder bool, orderTotal float64) error {
	now := time.Now().UTC()

	if !coupon.IsActive {
		return invalid(coupon.Code, "coupon is not active")
	}
	if now.Before(coupon.StartsAt) {
		return invalid(coupon.Code, "coupon is not valid yet")
	}
	if now.After(coupon.ExpiresAt) {
		return invalid(coupon.Code, "coupon has expired")
	}
	if coupon.UsageLimit > 0 && coupon.UsedCount >= coupon.UsageLimit {
		return invalid(coupon.Code, "coupon usage limit reached")
	}
	if coupon.MinOrderAmount > 0 && orderTotal < coupon.MinOrderAmount {
		return invalid(coupon.Code, fmt.Sprintf("minimum order amount is %.2f", coupon.MinOrderAmount))
	}
	if coupon.FirstOrderOnly && !isFirstOrder {
		return invalid(coupon.Code, "coupon is valid for first orders only")
	}
	if len(coupon.AllowedUsers) > 0 {
		allowed := false
		for _, id := range coupon.AllowedUsers {
			if id == userID {
				allowed = true
				break
			}
		}
		if !allowed {
			return invalid(coupon.Code, "coupon is not available for this account")
		}
	}
	if coupon.PerUserLimit > 0 && coupon.UsesBy(userID) >= coupon.PerUserLimit {
		return invalid(coupon.Code, "coupon already used the maximum number of times")
	}
	return nil
}

// Discount computes the discount amount for the order subtotal. Percentage
// coupons honor the optional maximum-discount ceiling; fixed coupons are
// capped at the subtotal. The result is never negative.
func Discount(coupon *models.Coupon, orderTotal float64) float64 {
	var amount float64
	switch coupon.Type {
	case models.CouponTypePercentage:
		amount = orderTotal * coupon.Value / 100
		if coupon.MaxDiscount > 0 && amount > coupon.MaxDiscount {
			amount = coupon.MaxDiscount
		}
	case models.CouponTypeFixed:
		amount = coupon.Value
	}
	if amount > orderTotal {
		amount = orderTotal
	}
	if amount < 0 {
		amount = 0
	}
	return pricing.Round2(amount)
}

// Redeem appends a usage record and increments the global counter in one
// conditional update. The filter re-applies the global limit so two racing
// redemptions cannot push UsedCount past it. Callers invoke this only after
// the order document is committed.
func Redeem(ctx context.Context, db *mongo.Database, code string, userID, orderID primitive.ObjectID, amount float64) error {
	filter := bson.M{"code": Normalize(code), "isActive": true}
	var coupon models.Coupon
	if err := db.Collection("coupons").FindOne(ctx, filter).Decode(&coupon); err != nil {
		if err == mongo.ErrNoDocuments {
			return invalid(Normalize(code), "coupon not found")
		}
		return err
	}
	if coupon.UsageLimit > 0 {
		filter["usedCount"] = bson.M{"$lt": coupon.UsageLimit}
	}

	res, err := db.Collection("coupons").UpdateOne(ctx, filter, bson.M{
		"$inc": bson.M{"usedCount": 1},
		"$push": bson.M{"usedBy": models.CouponUsage{
			UserID:  userID,
			OrderID: orderID,
			Amount:  amount,
			UsedAt:  time.Now().UTC(),
		}},
	})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return invalid(Normalize(code), "coupon usage limit reached")
	}
	return nil
}
