package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"backend/internal/inventory"
	"backend/internal/models"
	"backend/internal/orders"
)

// GetAllOrders lists orders for operators, optionally filtered by status.
func GetAllOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /admin/api/orders"
		defer handlePanic(c, route)

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		filter := bson.M{}
		if status := c.Query("status"); status != "" {
			if !models.IsValidStatus(status) {
				respondWithError(c, http.StatusBadRequest, route, "unknown status")
				return
			}
			filter["status"] = status
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		cursor, err := db.Collection("orders").Find(ctx, filter, adminListOptions(page, limit))
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "orders could not be fetched")
			return
		}
		defer cursor.Close(ctx)

		list := []models.Order{}
		if err := cursor.All(ctx, &list); err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "failed to parse orders")
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// UpdateOrderStatus advances an order along the lifecycle. Invalid edges,
// including regressions, are rejected.
func UpdateOrderStatus(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "PUT /admin/api/orders/:id/status"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var update orders.StatusUpdate
		if err := c.ShouldBindJSON(&update); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		updated, err := orders.UpdateStatus(ctx, db, orderID, update)
		if err != nil {
			respondStatusError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

type cancelOrderRequest struct {
	Reason string `json:"reason"`
}

// CancelOrder cancels a cancellable order and returns its reserved stock.
// Replaces physical deletion: order documents are kept forever.
func CancelOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /admin/api/orders/:id/cancel"
		defer handlePanic(c, route)

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		var req cancelOrderRequest
		_ = c.ShouldBindJSON(&req)
		if req.Reason == "" {
			req.Reason = "cancelled by operator"
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		reserver := inventory.Select(db, inventory.Detect(ctx, db))
		updated, err := orders.Cancel(ctx, db, reserver, orderID, req.Reason)
		if err != nil {
			respondStatusError(c, route, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

func respondStatusError(c *gin.Context, route string, err error) {
	var validationErr *orders.ValidationError
	switch {
	case errors.Is(err, orders.ErrNotFound):
		respondWithError(c, http.StatusNotFound, route, "order not found")
	case errors.Is(err, models.ErrInvalidTransition):
		respondWithError(c, http.StatusBadRequest, route, err.Error())
	case errors.As(err, &validationErr):
		respondWithError(c, http.StatusBadRequest, route, validationErr.Reason)
	default:
		respondWithError(c, http.StatusInternalServerError, route, "db error")
	}
}

func adminListOptions(page, limit int64) *options.FindOptions {
	return options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)
}
