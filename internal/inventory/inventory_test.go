package inventory

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"backend/internal/models"
)

// fakeStore is an in-memory Store with the same guard semantics as the Mongo
// implementation: Decrement is atomic per product.
type fakeStore struct {
	mu       sync.Mutex
	products map[primitive.ObjectID]*models.Product
	failIncr bool
}

func newFakeStore(products ...*models.Product) *fakeStore {
	s := &fakeStore{products: make(map[primitive.ObjectID]*models.Product)}
	for _, p := range products {
		s.products[p.ID] = p
	}
	return s
}

func (s *fakeStore) Fetch(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || p.IsDeleted {
		return nil, ErrProductUnavailable
	}
	clone := *p
	return &clone, nil
}

func (s *fakeStore) Decrement(_ context.Context, id primitive.ObjectID, qty int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok || !p.IsActive || p.IsDeleted || p.Stock < qty {
		return false, nil
	}
	p.Stock -= qty
	return true, nil
}

func (s *fakeStore) Increment(_ context.Context, id primitive.ObjectID, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failIncr {
		return errors.New("increment failed")
	}
	if p, ok := s.products[id]; ok {
		p.Stock += qty
	}
	return nil
}

func (s *fakeStore) stock(id primitive.ObjectID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].Stock
}

func (s *fakeStore) snapshot() map[primitive.ObjectID]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	levels := make(map[primitive.ObjectID]int, len(s.products))
	for id, p := range s.products {
		levels[id] = p.Stock
	}
	return levels
}

func (s *fakeStore) restore(levels map[primitive.ObjectID]int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, stock := range levels {
		s.products[id].Stock = stock
	}
}

// abortingTxn mimics a transactional scope over the fake store: on error
// every write made inside fn is rolled back.
func abortingTxn(store *fakeStore) txnRunner {
	return func(ctx context.Context, fn func(context.Context) (interface{}, error)) (interface{}, error) {
		before := store.snapshot()
		result, err := fn(ctx)
		if err != nil {
			store.restore(before)
			return nil, err
		}
		return result, nil
	}
}

func product(name string, stock int, price float64) *models.Product {
	return &models.Product{
		ID:       primitive.NewObjectID(),
		Name:     name,
		Price:    price,
		Stock:    stock,
		IsActive: true,
	}
}

func TestFallbackReserveSnapshotsFrozenPrices(t *testing.T) {
	p := product("mug", 10, 12.99)
	store := newFakeStore(p)
	reserver := &FallbackReserver{Store: store}

	items, err := reserver.Reserve(context.Background(), []Line{{ProductID: p.ID, Quantity: 1}})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(items))
	}
	if items[0].UnitPrice != 12.99 || items[0].Name != "mug" {
		t.Fatalf("unexpected snapshot: %+v", items[0])
	}
	if got := store.stock(p.ID); got != 9 {
		t.Fatalf("expected stock 9 after reservation, got %d", got)
	}
}

func TestFallbackReserveInsufficientStockLeavesStockUnchanged(t *testing.T) {
	p := product("mug", 1, 12.99)
	store := newFakeStore(p)
	reserver := &FallbackReserver{Store: store}

	_, err := reserver.Reserve(context.Background(), []Line{{ProductID: p.ID, Quantity: 2}})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if got := store.stock(p.ID); got != 1 {
		t.Fatalf("expected stock unchanged at 1, got %d", got)
	}

	var stockErr *StockError
	if !errors.As(err, &stockErr) {
		t.Fatalf("expected StockError, got %T", err)
	}
	if stockErr.Requested != 2 || stockErr.Available != 1 {
		t.Fatalf("unexpected error detail: %+v", stockErr)
	}
}

func TestFallbackCompensationRestoresAllDecrementedLines(t *testing.T) {
	a := product("a", 5, 10)
	b := product("b", 5, 10)
	c := product("c", 1, 10)
	store := newFakeStore(a, b, c)
	reserver := &FallbackReserver{Store: store}

	// c fails after a and b were decremented; both must be restored.
	_, err := reserver.Reserve(context.Background(), []Line{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 3},
		{ProductID: c.ID, Quantity: 2},
	})
	if !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	for _, p := range []*models.Product{a, b} {
		if got := store.stock(p.ID); got != 5 {
			t.Fatalf("expected compensation to restore %s to 5, got %d", p.Name, got)
		}
	}
	if got := store.stock(c.ID); got != 1 {
		t.Fatalf("expected untouched stock 1 for c, got %d", got)
	}
}

func TestFallbackReserveUnavailableProduct(t *testing.T) {
	a := product("a", 5, 10)
	gone := product("gone", 5, 10)
	gone.IsActive = false
	store := newFakeStore(a, gone)
	reserver := &FallbackReserver{Store: store}

	_, err := reserver.Reserve(context.Background(), []Line{
		{ProductID: a.ID, Quantity: 1},
		{ProductID: gone.ID, Quantity: 1},
	})
	if !errors.Is(err, ErrProductUnavailable) {
		t.Fatalf("expected ErrProductUnavailable, got %v", err)
	}
	if got := store.stock(a.ID); got != 5 {
		t.Fatalf("expected compensation for a, got stock %d", got)
	}
}

func TestConcurrentReservationsNeverOversell(t *testing.T) {
	const stock = 10
	p := product("hot", stock, 10)
	store := newFakeStore(p)
	reserver := &FallbackReserver{Store: store}

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := reserver.Reserve(context.Background(), []Line{{ProductID: p.ID, Quantity: 1}})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if succeeded != stock {
		t.Fatalf("expected exactly %d successful reservations, got %d", stock, succeeded)
	}
	if got := store.stock(p.ID); got != 0 {
		t.Fatalf("expected stock 0, got %d", got)
	}
}

func TestReserversAgreeOnOutcomeAndFinalStock(t *testing.T) {
	type seedProduct struct {
		name   string
		stock  int
		price  float64
		active bool
	}
	scenarios := []struct {
		name    string
		seed    []seedProduct
		request []int // quantity per seeded product
		wantErr error
	}{
		{
			name:    "all lines available",
			seed:    []seedProduct{{"a", 5, 10, true}, {"b", 5, 20, true}},
			request: []int{2, 3},
			wantErr: nil,
		},
		{
			name:    "second line short",
			seed:    []seedProduct{{"a", 5, 10, true}, {"b", 1, 20, true}},
			request: []int{2, 3},
			wantErr: ErrInsufficientStock,
		},
		{
			name:    "second line disabled",
			seed:    []seedProduct{{"a", 5, 10, true}, {"b", 5, 20, false}},
			request: []int{2, 1},
			wantErr: ErrProductUnavailable,
		},
	}

	for _, sc := range scenarios {
		ids := make([]primitive.ObjectID, len(sc.seed))
		for i := range sc.seed {
			ids[i] = primitive.NewObjectID()
		}
		seedStore := func() *fakeStore {
			store := newFakeStore()
			for i, p := range sc.seed {
				store.products[ids[i]] = &models.Product{
					ID: ids[i], Name: p.name, Price: p.price, Stock: p.stock, IsActive: p.active,
				}
			}
			return store
		}
		lines := make([]Line, len(sc.request))
		for i, qty := range sc.request {
			lines[i] = Line{ProductID: ids[i], Quantity: qty}
		}

		fallbackStore := seedStore()
		txnStore := seedStore()
		fallback := &FallbackReserver{Store: fallbackStore}
		transactional := &TransactionReserver{Store: txnStore, runner: abortingTxn(txnStore)}

		fbItems, fbErr := fallback.Reserve(context.Background(), lines)
		txItems, txErr := transactional.Reserve(context.Background(), lines)

		if sc.wantErr == nil {
			if fbErr != nil || txErr != nil {
				t.Fatalf("%s: expected both to succeed, got fallback=%v transactional=%v", sc.name, fbErr, txErr)
			}
			if len(fbItems) != len(txItems) {
				t.Fatalf("%s: snapshot counts differ: %d vs %d", sc.name, len(fbItems), len(txItems))
			}
			for i := range fbItems {
				if fbItems[i].UnitPrice != txItems[i].UnitPrice || fbItems[i].Quantity != txItems[i].Quantity {
					t.Fatalf("%s: snapshots differ at %d: %+v vs %+v", sc.name, i, fbItems[i], txItems[i])
				}
			}
		} else {
			if !errors.Is(fbErr, sc.wantErr) || !errors.Is(txErr, sc.wantErr) {
				t.Fatalf("%s: expected both to fail with %v, got fallback=%v transactional=%v",
					sc.name, sc.wantErr, fbErr, txErr)
			}
		}

		for i, id := range ids {
			if fb, tx := fallbackStore.stock(id), txnStore.stock(id); fb != tx {
				t.Fatalf("%s: final stock differs for %s: fallback=%d transactional=%d",
					sc.name, sc.seed[i].name, fb, tx)
			}
		}
	}
}

func TestReleaseRestocksEveryItem(t *testing.T) {
	a := product("a", 5, 10)
	b := product("b", 5, 10)
	store := newFakeStore(a, b)
	reserver := &FallbackReserver{Store: store}

	items, err := reserver.Reserve(context.Background(), []Line{
		{ProductID: a.ID, Quantity: 2},
		{ProductID: b.ID, Quantity: 1},
	})
	if err != nil {
		t.Fatalf("reserve failed: %v", err)
	}
	if err := reserver.Release(context.Background(), items); err != nil {
		t.Fatalf("release failed: %v", err)
	}
	if store.stock(a.ID) != 5 || store.stock(b.ID) != 5 {
		t.Fatalf("expected both products restocked to 5, got %d and %d",
			store.stock(a.ID), store.stock(b.ID))
	}
}
