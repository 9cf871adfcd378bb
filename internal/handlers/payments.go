package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/metrics"
	"backend/internal/payments"
)

// SignatureHeader carries the provider's HMAC over the raw webhook body.
const SignatureHeader = "Webhook-Signature"

type createIntentRequest struct {
	OrderID  string `json:"orderId" binding:"required"`
	Currency string `json:"currency"`
}

// CreatePaymentIntent asks the processor for a charge intent bound to an
// unpaid order owned by the authenticated user.
func CreatePaymentIntent(db *mongo.Database, proc payments.Processor, defaultCurrency string, reg *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/intent"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req createIntentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		orderID, err := primitive.ObjectIDFromHex(req.OrderID)
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid orderId")
			return
		}

		currency := req.Currency
		if currency == "" {
			currency = defaultCurrency
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		intent, err := payments.CreateOrderIntent(ctx, db, proc, userID, orderID, currency)
		switch {
		case errors.Is(err, payments.ErrOrderNotFound):
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		case errors.Is(err, payments.ErrNotOwner):
			respondWithError(c, http.StatusForbidden, route, "forbidden")
			return
		case errors.Is(err, payments.ErrEmailNotVerified):
			respondWithError(c, http.StatusForbidden, route, "email must be verified before payment")
			return
		case errors.Is(err, payments.ErrAlreadySettled):
			respondWithError(c, http.StatusBadRequest, route, "order already paid")
			return
		case errors.Is(err, payments.ErrInvalidAmount):
			respondWithError(c, http.StatusBadRequest, route, "order amount must be positive")
			return
		case err != nil:
			respondWithError(c, http.StatusInternalServerError, route, "payment processor error")
			return
		}

		reg.PaymentIntents.Inc()
		c.JSON(http.StatusOK, gin.H{
			"intentId":     intent.ID,
			"clientSecret": intent.ClientSecret,
		})
	}
}

// PaymentWebhook receives provider callbacks. The body is passed to the
// verifier exactly as read from the wire; any re-encoding would break the
// signature.
func PaymentWebhook(processor *payments.WebhookProcessor, reg *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /payments/webhook"
		defer handlePanic(c, route)

		rawBody, err := c.GetRawData()
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "unreadable body")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 15*time.Second)
		defer cancel()

		outcome, err := processor.Handle(ctx, rawBody, c.GetHeader(SignatureHeader))
		if errors.Is(err, payments.ErrSignatureInvalid) {
			reg.WebhookEvents.WithLabelValues("rejected").Inc()
			respondWithError(c, http.StatusBadRequest, route, "signature verification failed")
			return
		}
		if err != nil {
			// Transient: a 5xx asks the provider to redeliver.
			reg.WebhookEvents.WithLabelValues("failed").Inc()
			log.Printf("[%s] handler failure, requesting redelivery: %v", route, err)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "event processing failed"})
			return
		}

		reg.WebhookEvents.WithLabelValues(string(outcome)).Inc()
		c.JSON(http.StatusOK, gin.H{"received": true, "outcome": string(outcome)})
	}
}
