package payments

import (
	"context"
	"errors"
	"math"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

var (
	ErrOrderNotFound    = errors.New("order not found")
	ErrNotOwner         = errors.New("order does not belong to this user")
	ErrAlreadySettled   = errors.New("order payment already settled")
	ErrInvalidAmount    = errors.New("order amount must be positive")
	ErrEmailNotVerified = errors.New("email must be verified before payment")
)

// MinorUnits converts a rounded currency amount into the processor's minor
// unit representation.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// CreateOrderIntent requests a charge intent for an unpaid order and binds
// the provider intent id onto it. The amount is derived from the order's
// frozen grand total; a deterministic idempotency key makes client retries
// safe.
func CreateOrderIntent(ctx context.Context, db *mongo.Database, proc Processor, userID, orderID primitive.ObjectID, currency string) (Intent, error) {
	var order models.Order
	err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return Intent{}, ErrOrderNotFound
	}
	if err != nil {
		return Intent{}, err
	}

	if !order.IsOwnedBy(userID) {
		return Intent{}, ErrNotOwner
	}

	var user models.User
	err = db.Collection("users").FindOne(ctx, bson.M{"_id": userID}).Decode(&user)
	if err != nil {
		return Intent{}, err
	}
	if !user.EmailVerified {
		return Intent{}, ErrEmailNotVerified
	}

	if order.PaymentSettled() {
		return Intent{}, ErrAlreadySettled
	}

	amount := MinorUnits(order.Pricing.GrandTotal)
	if amount <= 0 {
		return Intent{}, ErrInvalidAmount
	}

	intent, err := proc.CreateIntent(ctx, IntentRequest{
		AmountMinor:    amount,
		Currency:       currency,
		IdempotencyKey: IdempotencyKey(orderID.Hex(), amount, currency),
		Metadata: map[string]string{
			"orderId":     orderID.Hex(),
			"orderNumber": order.OrderNumber,
		},
	})
	if err != nil {
		return Intent{}, err
	}

	// Bind the intent and reset any stale failure from an earlier attempt.
	_, err = db.Collection("orders").UpdateOne(ctx,
		bson.M{"_id": orderID},
		bson.M{
			"$set": bson.M{
				"payment.intentId":    intent.ID,
				"payment.amountMinor": amount,
				"payment.currency":    currency,
				"updatedAt":           time.Now().UTC(),
			},
			"$unset": bson.M{"payment.failureReason": ""},
		},
	)
	if err != nil {
		return Intent{}, err
	}

	return intent, nil
}
