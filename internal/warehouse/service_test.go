package warehouse

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcmasterful/bookstore/internal/messaging"
)

func newTestService(t *testing.T) (*Service, *messaging.MemoryBroker) {
	t.Helper()
	broker := messaging.NewMemoryBroker()
	svc := NewService(NewMemoryRepository(), broker)
	require.NoError(t, svc.RegisterConsumers())
	return svc, broker
}

func seedShelves(t *testing.T, svc *Service, bookID string, shelves map[string]int) {
	t.Helper()
	for shelf, qty := range shelves {
		require.NoError(t, svc.repo.SetShelf(context.Background(), bookID, shelf, qty))
	}
}

func orderEvent(orderID, item string, qty int) messaging.OrderCreated {
	return messaging.OrderCreated{
		OrderID:   orderID,
		Item:      item,
		BookTitle: "The Great Gatsby",
		Quantity:  qty,
		Timestamp: time.Now(),
	}
}

func decodeOne[T any](t *testing.T, bodies [][]byte) T {
	t.Helper()
	require.Len(t, bodies, 1)
	var out T
	require.NoError(t, json.Unmarshal(bodies[0], &out))
	return out
}

func TestReserveSingleShelf(t *testing.T) {
	// Scenario: shelf-A=10, shelf-B=5, order 8 → shelf-A drops to 2.
	svc, broker := newTestService(t)
	seedShelves(t, svc, "book-001", map[string]int{"shelf-A": 10, "shelf-B": 5})

	require.NoError(t, broker.Publish(context.Background(), messaging.QueueOrderCreated, orderEvent("order-1", "book-001", 8)))

	shelves, err := svc.InventoryForBook(context.Background(), "book-001")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"shelf-A": 2, "shelf-B": 5}, shelves)

	update := decodeOne[messaging.InventoryUpdated](t, broker.Published(messaging.QueueInventoryUpdated))
	assert.Equal(t, "book-001", update.Item)
	assert.Equal(t, -8, update.QuantityChanged)
	assert.Equal(t, 7, update.NewQuantity)

	processed := decodeOne[messaging.OrderProcessed](t, broker.Published(messaging.QueueOrderProcessed))
	assert.Equal(t, "order-1", processed.OrderID)
	assert.Equal(t, "processed", processed.Status)

	assert.Empty(t, broker.Published(messaging.QueueOrderFailed))
}

func TestReserveFragmentedInventory(t *testing.T) {
	// Scenario: total 15 covers the order but no single shelf holds 12.
	// Orders never split across shelves, so this must fail untouched.
	svc, broker := newTestService(t)
	seedShelves(t, svc, "book-001", map[string]int{"shelf-A": 10, "shelf-B": 5})

	require.NoError(t, broker.Publish(context.Background(), messaging.QueueOrderCreated, orderEvent("order-1", "book-001", 12)))

	shelves, err := svc.InventoryForBook(context.Background(), "book-001")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"shelf-A": 10, "shelf-B": 5}, shelves)

	total, err := svc.TotalStock(context.Background(), "book-001")
	require.NoError(t, err)
	assert.Equal(t, 15, total)

	failed := decodeOne[messaging.OrderFailed](t, broker.Published(messaging.QueueOrderFailed))
	assert.Equal(t, "order-1", failed.OrderID)
	assert.Contains(t, failed.Error, "fragmented")

	assert.Empty(t, broker.Published(messaging.QueueOrderProcessed))
	assert.Empty(t, broker.Published(messaging.QueueInventoryUpdated))
}

func TestReserveInsufficientStock(t *testing.T) {
	svc, broker := newTestService(t)
	seedShelves(t, svc, "book-001", map[string]int{"shelf-A": 10, "shelf-B": 5})

	require.NoError(t, broker.Publish(context.Background(), messaging.QueueOrderCreated, orderEvent("order-1", "book-001", 16)))

	shelves, err := svc.InventoryForBook(context.Background(), "book-001")
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"shelf-A": 10, "shelf-B": 5}, shelves)

	failed := decodeOne[messaging.OrderFailed](t, broker.Published(messaging.QueueOrderFailed))
	assert.Equal(t, "order-1", failed.OrderID)
	assert.Contains(t, failed.Error, "insufficient stock")
	assert.Contains(t, failed.Error, "15 available, 16 requested")

	assert.Empty(t, broker.Published(messaging.QueueOrderProcessed))
	assert.Empty(t, broker.Published(messaging.QueueInventoryUpdated))
}

func TestReserveUnknownBookFails(t *testing.T) {
	_, broker := newTestService(t)

	require.NoError(t, broker.Publish(context.Background(), messaging.QueueOrderCreated, orderEvent("order-1", "book-404", 1)))

	failed := decodeOne[messaging.OrderFailed](t, broker.Published(messaging.QueueOrderFailed))
	assert.Equal(t, "order-1", failed.OrderID)
}

func TestReserveEnrichesBookInfoFromOrder(t *testing.T) {
	svc, broker := newTestService(t)
	seedShelves(t, svc, "book-001", map[string]int{"shelf-A": 10})

	require.NoError(t, broker.Publish(context.Background(), messaging.QueueOrderCreated, orderEvent("order-1", "book-001", 1)))

	info, err := svc.repo.BookInfo(context.Background(), "book-001")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "The Great Gatsby", info.Title)
	assert.Equal(t, "Unknown Author", info.Author)
}

func TestReserveConcurrentSameBook(t *testing.T) {
	// Two orders of 8 against a single shelf of 10: reservations are
	// serialized per bookId, so exactly one succeeds and the shelf never
	// goes negative.
	svc, broker := newTestService(t)
	seedShelves(t, svc, "book-001", map[string]int{"shelf-A": 10})

	var wg sync.WaitGroup
	for _, id := range []string{"order-1", "order-2"} {
		wg.Add(1)
		go func(orderID string) {
			defer wg.Done()
			_ = svc.ProcessOrder(context.Background(), orderEvent(orderID, "book-001", 8))
		}(id)
	}
	wg.Wait()

	shelves, err := svc.InventoryForBook(context.Background(), "book-001")
	require.NoError(t, err)
	assert.Equal(t, 2, shelves["shelf-A"])

	assert.Len(t, broker.Published(messaging.QueueOrderProcessed), 1)
	assert.Len(t, broker.Published(messaging.QueueOrderFailed), 1)
}

func TestAvailabilityResponsePopulatesBookInfo(t *testing.T) {
	svc, broker := newTestService(t)

	require.NoError(t, broker.Publish(context.Background(), messaging.QueueAvailabilityResponse, messaging.AvailabilityResponse{
		BookID:    "book-003",
		Title:     "1984",
		Author:    "George Orwell",
		ISBN:      "978-0-452-28423-4",
		Timestamp: time.Now(),
	}))

	info, err := svc.repo.BookInfo(context.Background(), "book-003")
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, "1984", info.Title)
	assert.Equal(t, "George Orwell", info.Author)
}

func TestSetShelfQuantity(t *testing.T) {
	svc, broker := newTestService(t)
	seedShelves(t, svc, "book-001", map[string]int{"shelf-A": 10})

	require.NoError(t, svc.SetShelfQuantity(context.Background(), "book-001", "shelf-B", 5))

	total, err := svc.TotalStock(context.Background(), "book-001")
	require.NoError(t, err)
	assert.Equal(t, 15, total)

	update := decodeOne[messaging.InventoryUpdated](t, broker.Published(messaging.QueueInventoryUpdated))
	assert.Equal(t, 5, update.QuantityChanged)
	assert.Equal(t, 15, update.NewQuantity)

	assert.Error(t, svc.SetShelfQuantity(context.Background(), "book-001", "shelf-B", -1))
}

func TestAdjustShelfQuantityClampsAtZero(t *testing.T) {
	svc, broker := newTestService(t)
	seedShelves(t, svc, "book-001", map[string]int{"shelf-A": 3})

	require.NoError(t, svc.AdjustShelfQuantity(context.Background(), "book-001", "shelf-A", -5))

	shelves, err := svc.InventoryForBook(context.Background(), "book-001")
	require.NoError(t, err)
	assert.Equal(t, 0, shelves["shelf-A"])

	update := decodeOne[messaging.InventoryUpdated](t, broker.Published(messaging.QueueInventoryUpdated))
	assert.Equal(t, -3, update.QuantityChanged)
	assert.Equal(t, 0, update.NewQuantity)
}

func TestMalformedOrderIsDropped(t *testing.T) {
	svc, broker := newTestService(t)
	seedShelves(t, svc, "book-001", map[string]int{"shelf-A": 10})

	// Missing orderId fails boundary validation; the message takes the
	// drop path and no outcome event is emitted.
	require.NoError(t, broker.Publish(context.Background(), messaging.QueueOrderCreated, map[string]any{
		"item":     "book-001",
		"quantity": 2,
	}))

	assert.Empty(t, broker.Published(messaging.QueueOrderProcessed))
	assert.Empty(t, broker.Published(messaging.QueueOrderFailed))

	shelves, err := svc.InventoryForBook(context.Background(), "book-001")
	require.NoError(t, err)
	assert.Equal(t, 10, shelves["shelf-A"])
}

func TestSeed(t *testing.T) {
	svc, _ := newTestService(t)
	require.NoError(t, svc.Seed(context.Background()))

	for _, id := range []string{"book-001", "book-002", "book-003"} {
		total, err := svc.TotalStock(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, 15, total)
	}
	infos, err := svc.repo.AllBookInfo(context.Background())
	require.NoError(t, err)
	assert.Len(t, infos, 3)
}
