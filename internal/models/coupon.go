package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Coupon discount types.
const (
	CouponTypePercentage = "percentage"
	CouponTypeFixed      = "fixed"
)

// CouponUsage is one redemption record. The UsedBy log is what enforces the
// per-user limit, so it is only appended on successful redemption, never by
// validation-only checks.
type CouponUsage struct {
	UserID  primitive.ObjectID `bson:"userId" json:"userId"`
	OrderID primitive.ObjectID `bson:"orderId" json:"orderId"`
	Amount  float64            `bson:"amount" json:"amount"`
	UsedAt  time.Time          `bson:"usedAt" json:"usedAt"`
}

type Coupon struct {
	ID             primitive.ObjectID   `bson:"_id,omitempty" json:"id"`
	Code           string               `bson:"code" json:"code"`
	Type           string               `bson:"type" json:"type"`
	Value          float64              `bson:"value" json:"value"`
	MaxDiscount    float64              `bson:"maxDiscount,omitempty" json:"maxDiscount,omitempty"`
	MinOrderAmount float64              `bson:"minOrderAmount,omitempty" json:"minOrderAmount,omitempty"`
	FirstOrderOnly bool                 `bson:"firstOrderOnly" json:"firstOrderOnly"`
	AllowedUsers   []primitive.ObjectID `bson:"allowedUsers,omitempty" json:"allowedUsers,omitempty"`
	UsageLimit     int                  `bson:"usageLimit,omitempty" json:"usageLimit,omitempty"`
	PerUserLimit   int                  `bson:"perUserLimit,omitempty" json:"perUserLimit,omitempty"`
	UsedCount      int                  `bson:"usedCount" json:"usedCount"`
	UsedBy         []CouponUsage        `bson:"usedBy" json:"usedBy"`
	StartsAt       time.Time            `bson:"startsAt" json:"startsAt"`
	ExpiresAt      time.Time            `bson:"expiresAt" json:"expiresAt"`
	IsActive       bool                 `bson:"isActive" json:"isActive"`
	CreatedAt      time.Time            `bson:"createdAt" json:"createdAt"`
}

// UsesBy counts prior redemptions of this coupon by the given user.
func (c *Coupon) UsesBy(userID primitive.ObjectID) int {
	count := 0
	for _, u := range c.UsedBy {
		if u.UserID == userID {
			count++
		}
	}
	return count
}
