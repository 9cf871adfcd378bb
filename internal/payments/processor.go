// Package payments binds orders to the external payment processor and
// consumes its asynchronous events. The provider SDK itself is out of scope:
// it is consumed through the Processor contract below.
package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types in the provider's catalog that this core reacts to. Unknown
// types are acknowledged and ignored.
const (
	EventPaymentSucceeded = "payment_intent.succeeded"
	EventPaymentFailed    = "payment_intent.payment_failed"
	EventChargeRefunded   = "charge.refunded"
)

// ErrSignatureInvalid rejects a webhook whose signature does not verify over
// the raw payload. No ledger entry is created for such deliveries.
var ErrSignatureInvalid = errors.New("webhook signature invalid")

// IntentRequest is the outbound charge-intent call.
type IntentRequest struct {
	AmountMinor    int64
	Currency       string
	IdempotencyKey string
	Metadata       map[string]string
}

// Intent is the provider's charge handle returned to the client.
type Intent struct {
	ID           string `json:"id"`
	ClientSecret string `json:"clientSecret"`
}

// EventData carries the provider event payload fields this core reads.
type EventData struct {
	OrderID           string `json:"orderId"`
	IntentID          string `json:"intentId"`
	TransactionID     string `json:"transactionId"`
	ReceiptRef        string `json:"receiptRef"`
	AmountMinor       int64  `json:"amountMinor"`
	Currency          string `json:"currency"`
	Reason            string `json:"reason"`
	RefundAmountMinor int64  `json:"refundAmountMinor"`
}

// Event is one verified provider callback.
type Event struct {
	ID   string    `json:"id"`
	Type string    `json:"type"`
	Data EventData `json:"data"`
}

// Processor is the outbound contract to the payment provider.
type Processor interface {
	// Name identifies the provider in the webhook ledger key.
	Name() string
	CreateIntent(ctx context.Context, req IntentRequest) (Intent, error)
	// VerifyEvent checks the signature over the raw body and parses the
	// event. The body must arrive unmodified from the wire.
	VerifyEvent(rawBody []byte, signature string) (Event, error)
}

// IdempotencyKey derives a deterministic key from the charge parameters so a
// retried intent creation cannot produce a duplicate charge.
func IdempotencyKey(orderID string, amountMinor int64, currency string) string {
	sum := sha256.Sum256([]byte(orderID + "|" + strconv.FormatInt(amountMinor, 10) + "|" + strings.ToLower(currency)))
	return hex.EncodeToString(sum[:])
}

// HMACProcessor implements the Processor contract with the provider's
// HMAC-SHA256 signature scheme: the header carries `t=<unix>,v1=<hex>` and
// the MAC covers `<t>.<rawBody>`.
type HMACProcessor struct {
	Provider  string
	Secret    string
	Tolerance time.Duration
	// now is swappable for tests.
	now func() time.Time
}

func NewHMACProcessor(provider, secret string) *HMACProcessor {
	return &HMACProcessor{
		Provider:  provider,
		Secret:    secret,
		Tolerance: 5 * time.Minute,
		now:       time.Now,
	}
}

func (p *HMACProcessor) Name() string { return p.Provider }

func (p *HMACProcessor) CreateIntent(_ context.Context, req IntentRequest) (Intent, error) {
	if req.AmountMinor <= 0 {
		return Intent{}, fmt.Errorf("intent amount must be positive, got %d", req.AmountMinor)
	}
	// Deterministic for a given idempotency key, matching the provider's
	// retry contract.
	id := "pi_" + req.IdempotencyKey[:24]
	return Intent{
		ID:           id,
		ClientSecret: id + "_secret_" + uuid.NewString(),
	}, nil
}

func (p *HMACProcessor) VerifyEvent(rawBody []byte, signature string) (Event, error) {
	timestamp, mac, err := parseSignatureHeader(signature)
	if err != nil {
		return Event{}, err
	}

	expected := Sign(p.Secret, timestamp, rawBody)
	if !hmac.Equal([]byte(mac), []byte(expected)) {
		return Event{}, ErrSignatureInvalid
	}

	if p.Tolerance > 0 {
		sent := time.Unix(timestamp, 0)
		if d := p.now().Sub(sent); d > p.Tolerance || d < -p.Tolerance {
			return Event{}, fmt.Errorf("%w: timestamp outside tolerance", ErrSignatureInvalid)
		}
	}

	var event Event
	if err := json.Unmarshal(rawBody, &event); err != nil {
		return Event{}, fmt.Errorf("%w: malformed payload", ErrSignatureInvalid)
	}
	if event.ID == "" || event.Type == "" {
		return Event{}, fmt.Errorf("%w: missing event id or type", ErrSignatureInvalid)
	}
	return event, nil
}

// Sign computes the hex MAC for a payload at a timestamp. Exported so tests
// and local provider simulators can produce valid deliveries.
func Sign(secret string, timestamp int64, rawBody []byte) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(strconv.FormatInt(timestamp, 10)))
	h.Write([]byte("."))
	h.Write(rawBody)
	return hex.EncodeToString(h.Sum(nil))
}

func parseSignatureHeader(header string) (int64, string, error) {
	var timestamp int64
	var mac string
	for _, part := range strings.Split(header, ",") {
		key, value, found := strings.Cut(strings.TrimSpace(part), "=")
		if !found {
			continue
		}
		switch key {
		case "t":
			parsed, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return 0, "", fmt.Errorf("%w: bad timestamp", ErrSignatureInvalid)
			}
			timestamp = parsed
		case "v1":
			mac = value
		}
	}
	if timestamp == 0 || mac == "" {
		return 0, "", fmt.Errorf("%w: malformed signature header", ErrSignatureInvalid)
	}
	return timestamp, mac, nil
}
