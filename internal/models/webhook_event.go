package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// WebhookEvent is the idempotency ledger entry for one inbound provider
// callback, keyed by (provider, eventId). ProcessedAt is set only after the
// side effect on the order has fully committed; an entry with attempts > 0
// and no ProcessedAt marks a failed attempt that must be retried.
type WebhookEvent struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Provider       string             `bson:"provider" json:"provider"`
	EventID        string             `bson:"eventId" json:"eventId"`
	Type           string             `bson:"type" json:"type"`
	RelatedOrderID string             `bson:"relatedOrderId,omitempty" json:"relatedOrderId,omitempty"`
	Attempts       int                `bson:"attempts" json:"attempts"`
	ReceivedAt     time.Time          `bson:"receivedAt" json:"receivedAt"`
	LastSeenAt     time.Time          `bson:"lastSeenAt" json:"lastSeenAt"`
	ProcessedAt    *time.Time         `bson:"processedAt,omitempty" json:"processedAt,omitempty"`
	LastError      string             `bson:"lastError,omitempty" json:"lastError,omitempty"`
}

// Processed reports whether the event's side effect already committed, i.e. a
// redelivery should be acknowledged without reapplying anything.
func (e *WebhookEvent) Processed() bool {
	return e.ProcessedAt != nil
}
