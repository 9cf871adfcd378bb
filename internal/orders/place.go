// Package orders owns the order aggregate: placement, ownership-checked
// reads and operator-driven status progression.
package orders

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/coupons"
	"backend/internal/inventory"
	"backend/internal/models"
	"backend/internal/notify"
	"backend/internal/payments"
	"backend/internal/pricing"
)

// ValidationError rejects malformed placement input before any side effect.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// ItemRequest is one requested line in a placement.
type ItemRequest struct {
	ProductID string `json:"productId" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required"`
}

// PlaceRequest is the inbound placement payload after HTTP binding.
type PlaceRequest struct {
	Items          []ItemRequest          `json:"items" binding:"required"`
	Address        models.ShippingAddress `json:"address" binding:"required"`
	PaymentMethod  string                 `json:"paymentMethod" binding:"required"`
	ShippingMethod string                 `json:"shippingMethod"`
	CouponCode     string                 `json:"couponCode"`
}

// Deps wires the placement pipeline. The reserver is selected per request by
// the capability probe, so both inventory paths flow through here unchanged.
type Deps struct {
	DB          *mongo.Database
	Reserver    inventory.Reserver
	Notifier    notify.Notifier
	HomeCountry string
	Currency    string
}

func validate(req *PlaceRequest) ([]inventory.Line, error) {
	if len(req.Items) == 0 {
		return nil, &ValidationError{Reason: "at least one item is required"}
	}
	if req.PaymentMethod != "card" && req.PaymentMethod != "cash" {
		return nil, &ValidationError{Reason: "invalid payment method"}
	}
	if req.ShippingMethod == "" {
		req.ShippingMethod = models.ShippingMethodStandard
	}
	if req.ShippingMethod != models.ShippingMethodStandard && req.ShippingMethod != models.ShippingMethodExpress {
		return nil, &ValidationError{Reason: "invalid shipping method"}
	}
	if strings.TrimSpace(req.Address.Country) == "" {
		return nil, &ValidationError{Reason: "shipping country is required"}
	}

	lines := make([]inventory.Line, 0, len(req.Items))
	for _, item := range req.Items {
		productID, err := primitive.ObjectIDFromHex(item.ProductID)
		if err != nil {
			return nil, &ValidationError{Reason: "invalid productId"}
		}
		if item.Quantity <= 0 {
			return nil, &ValidationError{Reason: "quantity must be greater than zero"}
		}
		lines = append(lines, inventory.Line{ProductID: productID, Quantity: item.Quantity})
	}
	return lines, nil
}

// Place runs the checkout pipeline: reserve stock, compute authoritative
// totals, persist the pending order, record coupon usage, notify. Prices on
// the order are frozen snapshots taken at reservation time, never the
// client's numbers.
func Place(ctx context.Context, deps Deps, userID primitive.ObjectID, req PlaceRequest) (*models.Order, error) {
	lines, err := validate(&req)
	if err != nil {
		return nil, err
	}

	items, err := deps.Reserver.Reserve(ctx, lines)
	if err != nil {
		return nil, err
	}

	// Past this point every failure must hand the reserved stock back.
	order, err := buildOrder(ctx, deps, userID, req, items)
	if err != nil {
		if releaseErr := deps.Reserver.Release(ctx, items); releaseErr != nil {
			log.Println("[ORDER] [ERROR] releasing reservation after failed placement:", releaseErr)
		}
		return nil, err
	}

	// Coupon usage is recorded only after the order document exists, so a
	// placement that never materializes cannot consume a redemption. The
	// reverse window is accepted: if the global limit is exhausted between
	// Validate and Redeem, the committed order keeps its discount with no
	// usage record, and the failure is logged for operator follow-up.
	if order.CouponCode != "" {
		err := coupons.Redeem(ctx, deps.DB, order.CouponCode, userID, order.ID, order.Pricing.DiscountTotal)
		if err != nil {
			log.Printf("[ORDER] [ERROR] coupon %s redemption for order %s failed: %v",
				order.CouponCode, order.ID.Hex(), err)
		}
	}

	if deps.Notifier != nil {
		deps.Notifier.OrderCreated(order.ID.Hex(), order.OrderNumber, order.Shipping.Address.Email)
	}

	log.Printf("[ORDER] [INFO] order %s placed for user %s", order.OrderNumber, userID.Hex())
	return order, nil
}

func buildOrder(ctx context.Context, deps Deps, userID primitive.ObjectID, req PlaceRequest, items []models.OrderItem) (*models.Order, error) {
	itemsTotal := 0.0
	for _, item := range items {
		itemsTotal += item.UnitPrice * float64(item.Quantity)
	}

	discount := 0.0
	couponCode := ""
	if strings.TrimSpace(req.CouponCode) != "" {
		coupon, err := coupons.FindByCode(ctx, deps.DB, req.CouponCode)
		if err != nil {
			return nil, err
		}
		isFirst, err := isFirstOrder(ctx, deps.DB, userID)
		if err != nil {
			return nil, err
		}
		if err := coupons.Validate(coupon, userID, isFirst, itemsTotal); err != nil {
			return nil, err
		}
		discount = coupons.Discount(coupon, itemsTotal)
		couponCode = coupon.Code
	}

	totals := pricing.ComputeOrderTotals(items, req.Address.Country, deps.HomeCountry, req.ShippingMethod, discount)

	now := time.Now().UTC()
	order := &models.Order{
		OrderNumber: NewOrderNumber(now),
		UserID:      userID,
		Items:       items,
		Status:      models.OrderStatusPending,
		Pricing: models.OrderPricing{
			ItemsTotal:    totals.ItemsTotal,
			ShippingTotal: totals.ShippingTotal,
			TaxTotal:      totals.TaxTotal,
			DiscountTotal: totals.DiscountTotal,
			GrandTotal:    totals.GrandTotal,
		},
		Payment: models.OrderPayment{
			Method:      req.PaymentMethod,
			Status:      models.PaymentStatusPending,
			AmountMinor: payments.MinorUnits(totals.GrandTotal),
			Currency:    deps.Currency,
		},
		Shipping: models.OrderShipping{
			Address:       req.Address,
			Method:        req.ShippingMethod,
			EstimatedDays: totals.Shipping.EstimatedDays,
		},
		CouponCode: couponCode,
		Timeline:   []models.TimelineEntry{models.NewTimelineEntry(models.OrderStatusPending, "order created", "")},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	res, err := deps.DB.Collection("orders").InsertOne(ctx, order)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return order, nil
}

func isFirstOrder(ctx context.Context, db *mongo.Database, userID primitive.ObjectID) (bool, error) {
	count, err := db.Collection("orders").CountDocuments(ctx, bson.M{"userId": userID})
	if err != nil {
		return false, err
	}
	return count == 0, nil
}

// ErrNotFound is returned for reads of unknown order ids.
var ErrNotFound = errors.New("order not found")

// ErrForbidden is returned when the requesting principal does not own the
// order. The order id is the capability boundary, so this check precedes any
// data exposure.
var ErrForbidden = errors.New("order does not belong to this user")

// GetOwned loads an order and enforces the ownership invariant.
func GetOwned(ctx context.Context, db *mongo.Database, userID, orderID primitive.ObjectID) (*models.Order, error) {
	var order models.Order
	err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	if !order.IsOwnedBy(userID) {
		return nil, ErrForbidden
	}
	return &order, nil
}

// ListOwned returns the user's orders, newest first.
func ListOwned(ctx context.Context, db *mongo.Database, userID primitive.ObjectID, page, limit int64) ([]models.Order, error) {
	opts := listOptions(page, limit)
	cursor, err := db.Collection("orders").Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}
