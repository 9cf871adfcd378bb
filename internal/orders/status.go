package orders

import (
	"context"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/inventory"
	"backend/internal/models"
)

// StatusUpdate is an operator-driven progression request.
type StatusUpdate struct {
	Status         string `json:"status" binding:"required"`
	Message        string `json:"message"`
	Location       string `json:"location"`
	Courier        string `json:"courier"`
	TrackingNumber string `json:"trackingNumber"`
}

// UpdateStatus advances an order along the transition table. Regressions and
// unknown edges are rejected as validation errors, never merged.
func UpdateStatus(ctx context.Context, db *mongo.Database, orderID primitive.ObjectID, update StatusUpdate) (*models.Order, error) {
	if !models.IsValidStatus(update.Status) {
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown status %q", update.Status)}
	}

	var order models.Order
	err := db.Collection("orders").FindOne(ctx, bson.M{"_id": orderID}).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if !models.CanTransition(order.Status, update.Status) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidTransition, order.Status, update.Status)
	}

	now := time.Now().UTC()
	set := bson.M{
		"status":    update.Status,
		"updatedAt": now,
	}
	if update.Courier != "" {
		set["shipping.courier"] = update.Courier
	}
	if update.TrackingNumber != "" {
		set["shipping.trackingNumber"] = update.TrackingNumber
	}
	if update.Status == models.OrderStatusDelivered {
		set["shipping.deliveredAt"] = now
	}

	// The status filter re-checks the edge so two racing operator updates
	// cannot both apply.
	res := db.Collection("orders").FindOneAndUpdate(ctx,
		bson.M{"_id": orderID, "status": order.Status},
		bson.M{
			"$set":  set,
			"$push": bson.M{"timeline": models.NewTimelineEntry(update.Status, update.Message, update.Location)},
		},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	)
	var updated models.Order
	if err := res.Decode(&updated); err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, fmt.Errorf("%w: order changed concurrently", models.ErrInvalidTransition)
		}
		return nil, err
	}
	return &updated, nil
}

// Cancel moves a cancellable order to cancelled and returns its reserved
// quantities to stock. Orders are never physically deleted.
func Cancel(ctx context.Context, db *mongo.Database, reserver inventory.Reserver, orderID primitive.ObjectID, reason string) (*models.Order, error) {
	updated, err := UpdateStatus(ctx, db, orderID, StatusUpdate{
		Status:  models.OrderStatusCancelled,
		Message: reason,
	})
	if err != nil {
		return nil, err
	}

	if err := reserver.Release(ctx, updated.Items); err != nil {
		// Stock restore is best-effort; the cancellation itself stands.
		log.Printf("[ORDER] [ERROR] restock after cancelling %s: %v", updated.OrderNumber, err)
	}
	return updated, nil
}

func listOptions(page, limit int64) *options.FindOptions {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	return options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
}
