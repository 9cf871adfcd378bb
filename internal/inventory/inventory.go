// Package inventory reserves product stock for orders. Two interchangeable
// reservers implement the same contract: one runs inside a Mongo transaction
// when the deployment supports it, the other compensates failed multi-item
// attempts with counter increments. Both paths surface identical errors and
// leave identical stock levels for equivalent inputs.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

// ErrInsufficientStock is returned when any requested quantity exceeds the
// available stock. The whole attempt fails; no partial reservation survives.
var ErrInsufficientStock = errors.New("insufficient stock")

// ErrProductUnavailable is returned when a referenced product does not exist
// or is disabled. This can also surface in the narrow race between a
// successful decrement and the snapshot read.
var ErrProductUnavailable = errors.New("product unavailable")

// StockError wraps a reservation failure with the product that caused it.
type StockError struct {
	ProductID primitive.ObjectID
	Requested int
	Available int
	Err       error
}

func (e *StockError) Error() string {
	return fmt.Sprintf("%v: product %s (requested %d, available %d)",
		e.Err, e.ProductID.Hex(), e.Requested, e.Available)
}

func (e *StockError) Unwrap() error { return e.Err }

// Line is one requested reservation entry.
type Line struct {
	ProductID primitive.ObjectID
	Quantity  int
}

// Store is the minimal product-counter surface the reservers need. The Mongo
// implementation maps Decrement onto a single conditional update, which is
// what serializes concurrent checkouts without external locking.
type Store interface {
	// Fetch returns the product or ErrProductUnavailable.
	Fetch(ctx context.Context, id primitive.ObjectID) (*models.Product, error)
	// Decrement applies stock -= qty guarded by stock >= qty on a sellable
	// product. It reports false when the guard did not match.
	Decrement(ctx context.Context, id primitive.ObjectID, qty int) (bool, error)
	// Increment is the compensating action for a prior Decrement.
	Increment(ctx context.Context, id primitive.ObjectID, qty int) error
}

// Reserver reserves stock for every line exactly once per attempt and
// returns frozen line-item snapshots on success.
type Reserver interface {
	Reserve(ctx context.Context, lines []Line) ([]models.OrderItem, error)
	// Release returns previously reserved quantities to stock, e.g. when an
	// order is cancelled or a later pipeline step fails.
	Release(ctx context.Context, items []models.OrderItem) error
}

// reserveAll runs the shared per-line protocol: conditional decrement first,
// snapshot read second. It returns the snapshots plus the lines that were
// decremented before any failure, so the caller can undo them.
func reserveAll(ctx context.Context, store Store, lines []Line) ([]models.OrderItem, []Line, error) {
	applied := make([]Line, 0, len(lines))

	for _, line := range lines {
		ok, err := store.Decrement(ctx, line.ProductID, line.Quantity)
		if err != nil {
			return nil, applied, err
		}
		if !ok {
			// Distinguish a missing/disabled product from a stock shortfall.
			product, fetchErr := store.Fetch(ctx, line.ProductID)
			if fetchErr != nil {
				return nil, applied, &StockError{ProductID: line.ProductID, Requested: line.Quantity, Err: ErrProductUnavailable}
			}
			if !product.Sellable() {
				return nil, applied, &StockError{ProductID: line.ProductID, Requested: line.Quantity, Available: product.Stock, Err: ErrProductUnavailable}
			}
			return nil, applied, &StockError{ProductID: line.ProductID, Requested: line.Quantity, Available: product.Stock, Err: ErrInsufficientStock}
		}
		applied = append(applied, line)
	}

	// All decrements succeeded; snapshot the frozen line items.
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		product, err := store.Fetch(ctx, line.ProductID)
		if err != nil || !product.Sellable() {
			return nil, applied, &StockError{ProductID: line.ProductID, Requested: line.Quantity, Err: ErrProductUnavailable}
		}
		items = append(items, models.OrderItem{
			ProductID: product.ID,
			SKU:       product.SKU,
			Name:      product.Name,
			Quantity:  line.Quantity,
			UnitPrice: product.EffectivePrice(),
			Weight:    product.WeightKG,
			ImagePath: product.ImagePath,
		})
	}
	return items, applied, nil
}

func releaseAll(ctx context.Context, store Store, lines []Line) {
	for _, line := range lines {
		if err := store.Increment(ctx, line.ProductID, line.Quantity); err != nil {
			log.Printf("[INVENTORY] [ERROR] compensation failed for product %s qty %d: %v",
				line.ProductID.Hex(), line.Quantity, err)
		}
	}
}

// txnRunner executes fn inside a transactional scope: on error the scope's
// writes are rolled back.
type txnRunner func(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error)

// TransactionReserver runs the reservation inside a Mongo transaction; any
// failure aborts the whole scope, so no compensation is needed.
type TransactionReserver struct {
	Client *mongo.Client
	Store  Store

	// runner overrides the session-backed scope in tests.
	runner txnRunner
}

func (r *TransactionReserver) Reserve(ctx context.Context, lines []Line) ([]models.OrderItem, error) {
	run := r.runner
	if run == nil {
		run = r.sessionTxn
	}

	result, err := run(ctx, func(txnCtx context.Context) (interface{}, error) {
		items, _, err := reserveAll(txnCtx, r.Store, lines)
		return items, err
	})
	if err != nil {
		return nil, err
	}
	items, _ := result.([]models.OrderItem)
	return items, nil
}

func (r *TransactionReserver) sessionTxn(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	session, err := r.Client.StartSession()
	if err != nil {
		return nil, err
	}
	defer session.EndSession(ctx)

	return session.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		return fn(sessCtx)
	})
}

func (r *TransactionReserver) Release(ctx context.Context, items []models.OrderItem) error {
	return release(ctx, r.Store, items)
}

// FallbackReserver applies the same protocol without a transactional scope.
// On any failure it issues compensating increments for every line that was
// already decremented, then surfaces the original error.
type FallbackReserver struct {
	Store Store
}

func (r *FallbackReserver) Reserve(ctx context.Context, lines []Line) ([]models.OrderItem, error) {
	items, applied, err := reserveAll(ctx, r.Store, lines)
	if err != nil {
		releaseAll(ctx, r.Store, applied)
		return nil, err
	}
	return items, nil
}

func (r *FallbackReserver) Release(ctx context.Context, items []models.OrderItem) error {
	return release(ctx, r.Store, items)
}

func release(ctx context.Context, store Store, items []models.OrderItem) error {
	var firstErr error
	for _, item := range items {
		if err := store.Increment(ctx, item.ProductID, item.Quantity); err != nil {
			log.Printf("[INVENTORY] [ERROR] restock failed for product %s qty %d: %v",
				item.ProductID.Hex(), item.Quantity, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Detect probes whether the connected deployment supports multi-document
// transactions by asking for its replica set name. Standalone servers have
// none. Probe failures select the fallback path, which never assumes
// atomicity.
func Detect(ctx context.Context, db *mongo.Database) bool {
	var hello struct {
		SetName string `bson:"setName"`
		Msg     string `bson:"msg"`
	}
	err := db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello)
	if err != nil {
		log.Println("[INVENTORY] [WARN] topology probe failed, using fallback path:", err)
		return false
	}
	return hello.SetName != "" || hello.Msg == "isdbgrid"
}

// Select returns the reserver matching the probed capability.
func Select(db *mongo.Database, transactional bool) Reserver {
	store := &MongoStore{Products: db.Collection("products")}
	if transactional {
		return &TransactionReserver{Client: db.Client(), Store: store}
	}
	return &FallbackReserver{Store: store}
}
