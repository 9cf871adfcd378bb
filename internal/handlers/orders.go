package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/coupons"
	"backend/internal/inventory"
	"backend/internal/metrics"
	"backend/internal/notify"
	"backend/internal/orders"
)

// PlaceOrder runs the checkout pipeline for the authenticated user. The
// inventory path (transactional vs. compensating) is probed per request, so
// a topology change never requires a restart.
func PlaceOrder(db *mongo.Database, homeCountry, currency string, notifier notify.Notifier, reg *metrics.Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "POST /orders"
		defer handlePanic(c, route)

		if err := ensureDBConnection(c.Request.Context(), db); err != nil {
			respondWithError(c, http.StatusServiceUnavailable, route, "database unavailable")
			return
		}

		userID, ok := userIDFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		var req orders.PlaceRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid request body")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 10*time.Second)
		defer cancel()

		deps := orders.Deps{
			DB:          db,
			Reserver:    inventory.Select(db, inventory.Detect(ctx, db)),
			Notifier:    notifier,
			HomeCountry: homeCountry,
			Currency:    currency,
		}

		order, err := orders.Place(ctx, deps, userID, req)
		if err != nil {
			respondPlaceError(c, route, err, reg)
			return
		}

		reg.OrdersPlaced.Inc()
		c.JSON(http.StatusCreated, order)
	}
}

func respondPlaceError(c *gin.Context, route string, err error, reg *metrics.Registry) {
	var validationErr *orders.ValidationError
	if errors.As(err, &validationErr) {
		respondWithError(c, http.StatusBadRequest, route, validationErr.Reason)
		return
	}

	var couponErr *coupons.InvalidError
	if errors.As(err, &couponErr) {
		respondWithError(c, http.StatusBadRequest, route, couponErr.Reason)
		return
	}

	var stockErr *inventory.StockError
	if errors.As(err, &stockErr) {
		if errors.Is(err, inventory.ErrInsufficientStock) {
			reg.ReservationConflicts.Inc()
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"error":     "insufficient stock",
				"productId": stockErr.ProductID.Hex(),
				"available": stockErr.Available,
				"requested": stockErr.Requested,
			})
			return
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":     "product unavailable",
			"productId": stockErr.ProductID.Hex(),
		})
		return
	}
	if errors.Is(err, inventory.ErrInsufficientStock) {
		reg.ReservationConflicts.Inc()
		respondWithError(c, http.StatusConflict, route, "insufficient stock")
		return
	}
	if errors.Is(err, inventory.ErrProductUnavailable) {
		respondWithError(c, http.StatusBadRequest, route, "product unavailable")
		return
	}

	respondWithError(c, http.StatusInternalServerError, route, "db error")
}

// GetMyOrders lists the authenticated user's orders, newest first.
func GetMyOrders(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/mine"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid pagination params")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		list, err := orders.ListOwned(ctx, db, userID, page, limit)
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "orders could not be fetched")
			return
		}
		c.JSON(http.StatusOK, list)
	}
}

// GetOrder returns a single order after the ownership check.
func GetOrder(db *mongo.Database) gin.HandlerFunc {
	return func(c *gin.Context) {
		const route = "GET /orders/:id"
		defer handlePanic(c, route)

		userID, ok := userIDFromContext(c)
		if !ok {
			respondWithError(c, http.StatusUnauthorized, route, "unauthorized")
			return
		}

		orderID, err := primitive.ObjectIDFromHex(c.Param("id"))
		if err != nil {
			respondWithError(c, http.StatusBadRequest, route, "invalid id")
			return
		}

		ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		order, err := orders.GetOwned(ctx, db, userID, orderID)
		if errors.Is(err, orders.ErrNotFound) {
			respondWithError(c, http.StatusNotFound, route, "order not found")
			return
		}
		if errors.Is(err, orders.ErrForbidden) {
			respondWithError(c, http.StatusForbidden, route, "forbidden")
			return
		}
		if err != nil {
			respondWithError(c, http.StatusInternalServerError, route, "db error")
			return
		}
		c.JSON(http.StatusOK, order)
	}
}
