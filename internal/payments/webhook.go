package payments

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"backend/internal/models"
	"backend/internal/notify"
	"backend/internal/pricing"
)

// Outcome classifies a handled webhook delivery.
type Outcome string

const (
	OutcomeProcessed Outcome = "processed"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// Settlement carries the fields recorded on an order when a payment settles.
type Settlement struct {
	TransactionID string
	ReceiptRef    string
	AmountMinor   int64
	Currency      string
	PaidAt        time.Time
	// NewStatus is the order status after settlement, already validated
	// against the transition table.
	NewStatus string
}

// OrderStore is the persistence seam the webhook processor drives orders
// through. Each Apply method commits a single-aggregate write.
type OrderStore interface {
	FindByID(ctx context.Context, orderID string) (*models.Order, error)
	FindByIntentID(ctx context.Context, intentID string) (*models.Order, error)
	ApplyPaymentSucceeded(ctx context.Context, order *models.Order, settle Settlement) error
	ApplyPaymentFailed(ctx context.Context, order *models.Order, reason string) error
	ApplyRefund(ctx context.Context, order *models.Order, refund models.OrderRefund) error
}

// EventLedger is the idempotency ledger over (provider, eventId).
type EventLedger interface {
	// Claim upserts the delivery record, incrementing attempts, and returns
	// its current state. Concurrent deliveries of the same event serialize
	// on this upsert.
	Claim(ctx context.Context, provider, eventID, eventType, relatedOrderID string) (*models.WebhookEvent, error)
	// MarkProcessed stamps processedAt after the side effect committed.
	MarkProcessed(ctx context.Context, provider, eventID string) error
	// RecordFailure stores the handler error so the entry stays retryable.
	RecordFailure(ctx context.Context, provider, eventID, message string) error
}

// WebhookProcessor turns verified provider events into order mutations,
// exactly once per (provider, eventId). Every dispatch branch is idempotent
// given the same inputs, so a crash between the side effect and the
// processedAt stamp leaves a safely retryable record.
type WebhookProcessor struct {
	Provider Processor
	Orders   OrderStore
	Events   EventLedger
	Notifier notify.Notifier
}

// Handle verifies, claims and dispatches one raw delivery. The returned
// error is ErrSignatureInvalid for rejected payloads (no ledger entry), or a
// transient failure the provider should redeliver.
func (p *WebhookProcessor) Handle(ctx context.Context, rawBody []byte, signature string) (Outcome, error) {
	event, err := p.Provider.VerifyEvent(rawBody, signature)
	if err != nil {
		return "", err
	}

	record, err := p.Events.Claim(ctx, p.Provider.Name(), event.ID, event.Type, event.Data.OrderID)
	if err != nil {
		return "", fmt.Errorf("claim webhook event %s: %w", event.ID, err)
	}
	if record.Processed() {
		log.Printf("[WEBHOOK] [INFO] duplicate delivery of %s event %s (attempt %d)",
			event.Type, event.ID, record.Attempts)
		return OutcomeDuplicate, nil
	}

	outcome, err := p.dispatch(ctx, event)
	if err != nil {
		if recordErr := p.Events.RecordFailure(ctx, p.Provider.Name(), event.ID, err.Error()); recordErr != nil {
			log.Printf("[WEBHOOK] [ERROR] recording failure for event %s: %v", event.ID, recordErr)
		}
		return "", fmt.Errorf("handle %s event %s: %w", event.Type, event.ID, err)
	}

	if err := p.Events.MarkProcessed(ctx, p.Provider.Name(), event.ID); err != nil {
		// The side effect committed but the stamp did not; the retry will
		// hit the idempotent no-op branch and stamp again.
		return "", fmt.Errorf("mark event %s processed: %w", event.ID, err)
	}
	return outcome, nil
}

func (p *WebhookProcessor) dispatch(ctx context.Context, event Event) (Outcome, error) {
	switch event.Type {
	case EventPaymentSucceeded:
		return p.applySucceeded(ctx, event)
	case EventPaymentFailed:
		return p.applyFailed(ctx, event)
	case EventChargeRefunded:
		return p.applyRefunded(ctx, event)
	default:
		log.Printf("[WEBHOOK] [INFO] ignoring unknown event type %s", event.Type)
		return OutcomeIgnored, nil
	}
}

func (p *WebhookProcessor) applySucceeded(ctx context.Context, event Event) (Outcome, error) {
	order, err := p.findOrder(ctx, event.Data)
	if err != nil {
		return "", err
	}
	if order.PaymentSettled() {
		return OutcomeProcessed, nil
	}

	expectedAmount := order.Payment.AmountMinor
	if expectedAmount == 0 {
		expectedAmount = MinorUnits(order.Pricing.GrandTotal)
	}
	expectedCurrency := order.Payment.Currency

	if event.Data.AmountMinor != expectedAmount ||
		!strings.EqualFold(event.Data.Currency, expectedCurrency) {
		reason := fmt.Sprintf("settlement mismatch: got %d %s, expected %d %s",
			event.Data.AmountMinor, strings.ToLower(event.Data.Currency),
			expectedAmount, expectedCurrency)
		log.Printf("[WEBHOOK] [ERROR] order %s: %s", order.ID.Hex(), reason)
		if err := p.Orders.ApplyPaymentFailed(ctx, order, reason); err != nil {
			return "", err
		}
		// The provider reported success, but we refuse to mark paid on a
		// mismatch. The event itself is fully handled.
		return OutcomeProcessed, nil
	}

	newStatus := order.Status
	if models.CanTransition(order.Status, models.OrderStatusConfirmed) {
		newStatus = models.OrderStatusConfirmed
	}

	err = p.Orders.ApplyPaymentSucceeded(ctx, order, Settlement{
		TransactionID: event.Data.TransactionID,
		ReceiptRef:    event.Data.ReceiptRef,
		AmountMinor:   event.Data.AmountMinor,
		Currency:      strings.ToLower(event.Data.Currency),
		PaidAt:        time.Now().UTC(),
		NewStatus:     newStatus,
	})
	if err != nil {
		return "", err
	}

	if p.Notifier != nil {
		p.Notifier.PaymentConfirmed(order.ID.Hex(), order.OrderNumber, order.Shipping.Address.Email)
	}
	log.Printf("[WEBHOOK] [INFO] order %s marked paid by event %s", order.ID.Hex(), event.ID)
	return OutcomeProcessed, nil
}

func (p *WebhookProcessor) applyFailed(ctx context.Context, event Event) (Outcome, error) {
	order, err := p.findOrder(ctx, event.Data)
	if err != nil {
		return "", err
	}
	if order.PaymentSettled() {
		return OutcomeProcessed, nil
	}

	reason := event.Data.Reason
	if reason == "" {
		reason = "payment failed"
	}
	if err := p.Orders.ApplyPaymentFailed(ctx, order, reason); err != nil {
		return "", err
	}
	return OutcomeProcessed, nil
}

func (p *WebhookProcessor) applyRefunded(ctx context.Context, event Event) (Outcome, error) {
	// Refund events may not carry the order reference, so the intent id is
	// the lookup key.
	order, err := p.Orders.FindByIntentID(ctx, event.Data.IntentID)
	if err != nil {
		return "", err
	}
	if order.Status == models.OrderStatusRefunded || order.Payment.Status == models.PaymentStatusRefunded {
		return OutcomeProcessed, nil
	}

	err = p.Orders.ApplyRefund(ctx, order, models.OrderRefund{
		Amount: pricing.Round2(float64(event.Data.RefundAmountMinor) / 100),
		Reason: event.Data.Reason,
		Date:   time.Now().UTC(),
	})
	if err != nil {
		return "", err
	}
	log.Printf("[WEBHOOK] [INFO] order %s refunded by event %s", order.ID.Hex(), event.ID)
	return OutcomeProcessed, nil
}

func (p *WebhookProcessor) findOrder(ctx context.Context, data EventData) (*models.Order, error) {
	if data.OrderID != "" {
		return p.Orders.FindByID(ctx, data.OrderID)
	}
	return p.Orders.FindByIntentID(ctx, data.IntentID)
}
