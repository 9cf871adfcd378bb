package payments

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/models"
)

// MongoOrderStore implements OrderStore on the orders collection.
type MongoOrderStore struct {
	Orders *mongo.Collection
}

func (s *MongoOrderStore) FindByID(ctx context.Context, orderID string) (*models.Order, error) {
	id, err := primitive.ObjectIDFromHex(orderID)
	if err != nil {
		return nil, ErrOrderNotFound
	}
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *MongoOrderStore) FindByIntentID(ctx context.Context, intentID string) (*models.Order, error) {
	if intentID == "" {
		return nil, ErrOrderNotFound
	}
	return s.findOne(ctx, bson.M{"payment.intentId": intentID})
}

func (s *MongoOrderStore) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	err := s.Orders.FindOne(ctx, filter).Decode(&order)
	if err == mongo.ErrNoDocuments {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (s *MongoOrderStore) ApplyPaymentSucceeded(ctx context.Context, order *models.Order, settle Settlement) error {
	// Guard on the unpaid state so a concurrent retry applies at most once.
	_, err := s.Orders.UpdateOne(ctx,
		bson.M{"_id": order.ID, "isPaid": false},
		bson.M{
			"$set": bson.M{
				"status":                settle.NewStatus,
				"isPaid":                true,
				"payment.status":        models.PaymentStatusPaid,
				"payment.transactionId": settle.TransactionID,
				"payment.receiptRef":    settle.ReceiptRef,
				"payment.amountMinor":   settle.AmountMinor,
				"payment.currency":      settle.Currency,
				"payment.paidAt":        settle.PaidAt,
				"updatedAt":             time.Now().UTC(),
			},
			"$unset": bson.M{"payment.failureReason": ""},
			"$push":  bson.M{"timeline": models.NewTimelineEntry(settle.NewStatus, "payment confirmed", "")},
		},
	)
	return err
}

func (s *MongoOrderStore) ApplyPaymentFailed(ctx context.Context, order *models.Order, reason string) error {
	_, err := s.Orders.UpdateOne(ctx,
		bson.M{"_id": order.ID, "isPaid": false},
		bson.M{"$set": bson.M{
			"payment.status":        models.PaymentStatusFailed,
			"payment.failureReason": reason,
			"updatedAt":             time.Now().UTC(),
		}},
	)
	return err
}

func (s *MongoOrderStore) ApplyRefund(ctx context.Context, order *models.Order, refund models.OrderRefund) error {
	_, err := s.Orders.UpdateOne(ctx,
		bson.M{"_id": order.ID, "status": bson.M{"$ne": models.OrderStatusRefunded}},
		bson.M{
			"$set": bson.M{
				"status":         models.OrderStatusRefunded,
				"isPaid":         false,
				"payment.status": models.PaymentStatusRefunded,
				"refund":         refund,
				"updatedAt":      time.Now().UTC(),
			},
			"$push": bson.M{"timeline": models.NewTimelineEntry(models.OrderStatusRefunded, "charge refunded", "")},
		},
	)
	return err
}

// MongoEventLedger implements EventLedger on the webhook_events collection,
// which carries a unique (provider, eventId) index and a TTL retention index
// on receivedAt.
type MongoEventLedger struct {
	Events *mongo.Collection
}

func (l *MongoEventLedger) Claim(ctx context.Context, provider, eventID, eventType, relatedOrderID string) (*models.WebhookEvent, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$inc": bson.M{"attempts": 1},
		"$set": bson.M{
			"type":       eventType,
			"lastSeenAt": now,
		},
		"$setOnInsert": bson.M{
			"provider":   provider,
			"eventId":    eventID,
			"receivedAt": now,
		},
	}
	if relatedOrderID != "" {
		update["$set"].(bson.M)["relatedOrderId"] = relatedOrderID
	}

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var record models.WebhookEvent
	err := l.Events.FindOneAndUpdate(ctx,
		bson.M{"provider": provider, "eventId": eventID},
		update, opts,
	).Decode(&record)
	if err != nil {
		return nil, err
	}
	return &record, nil
}

func (l *MongoEventLedger) MarkProcessed(ctx context.Context, provider, eventID string) error {
	_, err := l.Events.UpdateOne(ctx,
		bson.M{"provider": provider, "eventId": eventID},
		bson.M{
			"$set":   bson.M{"processedAt": time.Now().UTC()},
			"$unset": bson.M{"lastError": ""},
		},
	)
	return err
}

func (l *MongoEventLedger) RecordFailure(ctx context.Context, provider, eventID, message string) error {
	_, err := l.Events.UpdateOne(ctx,
		bson.M{"provider": provider, "eventId": eventID},
		bson.M{"$set": bson.M{"lastError": message}},
	)
	return err
}
