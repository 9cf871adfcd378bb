package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Order statuses. The transition table below is the single source of truth
// for which edges are legal; handlers must not invent their own checks.
const (
	OrderStatusPending    = "pending"
	OrderStatusConfirmed  = "confirmed"
	OrderStatusProcessing = "processing"
	OrderStatusShipped    = "shipped"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
	OrderStatusReturned   = "returned"
	OrderStatusRefunded   = "refunded"
)

// Payment sub-statuses.
const (
	PaymentStatusPending  = "pending"
	PaymentStatusPaid     = "paid"
	PaymentStatusFailed   = "failed"
	PaymentStatusRefunded = "refunded"
)

const (
	ShippingMethodStandard = "standard"
	ShippingMethodExpress  = "express"
)

var ErrInvalidTransition = errors.New("invalid order status transition")

var orderTransitions = map[string][]string{
	OrderStatusPending:    {OrderStatusConfirmed, OrderStatusCancelled},
	OrderStatusConfirmed:  {OrderStatusProcessing, OrderStatusCancelled},
	OrderStatusProcessing: {OrderStatusShipped, OrderStatusCancelled},
	OrderStatusShipped:    {OrderStatusDelivered, OrderStatusReturned},
	OrderStatusDelivered:  {OrderStatusReturned},
	OrderStatusReturned:   {OrderStatusRefunded},
	OrderStatusCancelled:  {},
	OrderStatusRefunded:   {},
}

// CanTransition reports whether moving an order from one status to another is
// a legal edge. Same-status updates are rejected as well, so callers do not
// silently re-apply operator actions.
func CanTransition(from, to string) bool {
	for _, next := range orderTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsValidStatus reports whether the value is a known order status.
func IsValidStatus(status string) bool {
	_, ok := orderTransitions[status]
	return ok
}

// OrderItem is a line-item snapshot captured at order creation. Prices are
// frozen here and never re-read from the live catalog.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	SKU       string             `bson:"sku,omitempty" json:"sku,omitempty"`
	Name      string             `bson:"name" json:"name"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice float64            `bson:"unitPrice" json:"unitPrice"`
	Weight    float64            `bson:"weight,omitempty" json:"weight,omitempty"`
	ImagePath string             `bson:"imagePath,omitempty" json:"imagePath,omitempty"`
}

// OrderPricing is the frozen price breakdown of an order.
type OrderPricing struct {
	ItemsTotal    float64 `bson:"itemsTotal" json:"itemsTotal"`
	ShippingTotal float64 `bson:"shippingTotal" json:"shippingTotal"`
	TaxTotal      float64 `bson:"taxTotal" json:"taxTotal"`
	DiscountTotal float64 `bson:"discountTotal" json:"discountTotal"`
	GrandTotal    float64 `bson:"grandTotal" json:"grandTotal"`
}

// OrderPayment tracks the payment lifecycle of an order. It is always present
// on the document so the state machine never null-checks a sub-document.
type OrderPayment struct {
	Method        string     `bson:"method" json:"method"`
	Status        string     `bson:"status" json:"status"`
	IntentID      string     `bson:"intentId,omitempty" json:"intentId,omitempty"`
	TransactionID string     `bson:"transactionId,omitempty" json:"transactionId,omitempty"`
	ReceiptRef    string     `bson:"receiptRef,omitempty" json:"receiptRef,omitempty"`
	AmountMinor   int64      `bson:"amountMinor" json:"amountMinor"`
	Currency      string     `bson:"currency" json:"currency"`
	FailureReason string     `bson:"failureReason,omitempty" json:"failureReason,omitempty"`
	PaidAt        *time.Time `bson:"paidAt,omitempty" json:"paidAt,omitempty"`
}

// ShippingAddress is the address snapshot stored on the order.
type ShippingAddress struct {
	FullName   string `bson:"fullName" json:"fullName"`
	Email      string `bson:"email,omitempty" json:"email,omitempty"`
	Phone      string `bson:"phone,omitempty" json:"phone,omitempty"`
	Line1      string `bson:"line1" json:"line1"`
	Line2      string `bson:"line2,omitempty" json:"line2,omitempty"`
	City       string `bson:"city" json:"city"`
	PostalCode string `bson:"postalCode,omitempty" json:"postalCode,omitempty"`
	Country    string `bson:"country" json:"country"`
}

// OrderShipping carries the shipping snapshot plus courier fields operators
// fill in as the order progresses.
type OrderShipping struct {
	Address        ShippingAddress `bson:"address" json:"address"`
	Method         string          `bson:"method" json:"method"`
	EstimatedDays  int             `bson:"estimatedDays" json:"estimatedDays"`
	Courier        string          `bson:"courier,omitempty" json:"courier,omitempty"`
	TrackingNumber string          `bson:"trackingNumber,omitempty" json:"trackingNumber,omitempty"`
	DeliveredAt    *time.Time      `bson:"deliveredAt,omitempty" json:"deliveredAt,omitempty"`
}

// OrderRefund records a completed refund.
type OrderRefund struct {
	Amount float64   `bson:"amount" json:"amount"`
	Reason string    `bson:"reason,omitempty" json:"reason,omitempty"`
	Date   time.Time `bson:"date" json:"date"`
}

// TimelineEntry is one append-only audit record on the order.
type TimelineEntry struct {
	Status    string    `bson:"status" json:"status"`
	Message   string    `bson:"message,omitempty" json:"message,omitempty"`
	Location  string    `bson:"location,omitempty" json:"location,omitempty"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}

// Order defines the persisted order document, the aggregate root of the
// checkout pipeline. Orders are never physically deleted.
type Order struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderNumber string             `bson:"orderNumber" json:"orderNumber"`
	UserID      primitive.ObjectID `bson:"userId" json:"userId"`
	Items       []OrderItem        `bson:"items" json:"items"`
	Status      string             `bson:"status" json:"status"`
	Pricing     OrderPricing       `bson:"pricing" json:"pricing"`
	Payment     OrderPayment       `bson:"payment" json:"payment"`
	Shipping    OrderShipping      `bson:"shipping" json:"shipping"`
	Refund      *OrderRefund       `bson:"refund,omitempty" json:"refund,omitempty"`
	CouponCode  string             `bson:"couponCode,omitempty" json:"couponCode,omitempty"`
	IsPaid      bool               `bson:"isPaid" json:"isPaid"`
	Timeline    []TimelineEntry    `bson:"timeline" json:"timeline"`
	CreatedAt   time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt   time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// IsOwnedBy reports whether the given user created the order. The order id is
// the capability boundary, so every read or mutation keyed by id goes through
// this check first.
func (o *Order) IsOwnedBy(userID primitive.ObjectID) bool {
	return o.UserID == userID
}

// PaymentSettled reports whether the order reached a state in which further
// payment mutation must be refused.
func (o *Order) PaymentSettled() bool {
	return o.IsPaid ||
		o.Payment.Status == PaymentStatusPaid ||
		o.Payment.Status == PaymentStatusRefunded ||
		o.Status == OrderStatusRefunded ||
		o.Status == OrderStatusCancelled
}

// NewTimelineEntry stamps one audit record for the order timeline. All
// timeline writes go through this constructor so every entry carries a UTC
// timestamp.
func NewTimelineEntry(status, message, location string) TimelineEntry {
	return TimelineEntry{
		Status:    status,
		Message:   message,
		Location:  location,
		Timestamp: time.Now().UTC(),
	}
}
