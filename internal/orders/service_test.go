package orders

import (
	"context"
	"encoding/json"
	"errors"
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

func cacheRef(t *testing.T, svc *Service, bookID, title string) {
	t.Helper()
	require.NoError(t, svc.repo.CacheBookReference(context.Background(), bookID, title, "Test Author"))
}

// failingBroker fails every publish to one queue and delegates the rest.
type failingBroker struct {
	*messaging.MemoryBroker
	failQueue string
}

func (b *failingBroker) Publish(ctx context.Context, queue string, message any) error {
	if queue == b.failQueue {
		return errors.New("broker unavailable")
	}
	return b.MemoryBroker.Publish(ctx, queue, message)
}

func TestCreateOrderUnknownBook(t *testing.T) {
	svc, broker := newTestService(t)

	order, err := svc.CreateOrder(context.Background(), "unknown-id", 1)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownBook)
	assert.Nil(t, order)

	// Exactly one availability check goes out for the unknown id.
	checks := broker.Published(messaging.QueueAvailabilityCheck)
	require.Len(t, checks, 1)
	var check messaging.AvailabilityCheck
	require.NoError(t, json.Unmarshal(checks[0], &check))
	assert.Equal(t, "unknown-id", check.BookID)
	assert.Equal(t, "order-service", check.RequestedBy)

	// Nothing was ordered, nothing persisted.
	assert.Empty(t, broker.Published(messaging.QueueOrderCreated))
	all, err := svc.Orders(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestCreateOrderKnownBook(t *testing.T) {
	svc, broker := newTestService(t)
	cacheRef(t, svc, "book-001", "The Great Gatsby")

	order, err := svc.CreateOrder(context.Background(), "book-001", 2)
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, StatusPending, order.Status)
	assert.Equal(t, "book-001", order.Item)
	assert.Equal(t, 2, order.Quantity)
	assert.NotEmpty(t, order.ID)

	published := broker.Published(messaging.QueueOrderCreated)
	require.Len(t, published, 1)
	var msg messaging.OrderCreated
	require.NoError(t, json.Unmarshal(published[0], &msg))
	assert.Equal(t, order.ID, msg.OrderID)
	assert.Equal(t, "The Great Gatsby", msg.BookTitle, "title is denormalized onto the event")
	assert.Equal(t, 2, msg.Quantity)

	stored, err := svc.Order(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestCreateOrderRejectsBadQuantity(t *testing.T) {
	svc, _ := newTestService(t)
	cacheRef(t, svc, "book-001", "The Great Gatsby")

	_, err := svc.CreateOrder(context.Background(), "book-001", 0)
	assert.Error(t, err)
	_, err = svc.CreateOrder(context.Background(), "", 1)
	assert.Error(t, err)
}

func TestCreateOrderPublishFailure(t *testing.T) {
	broker := &failingBroker{MemoryBroker: messaging.NewMemoryBroker(), failQueue: messaging.QueueOrderCreated}
	svc := NewService(NewMemoryRepository(), broker)
	cacheRef(t, svc, "book-001", "The Great Gatsby")

	order, err := svc.CreateOrder(context.Background(), "book-001", 1)
	require.NoError(t, err, "the order is returned regardless of publish outcome")
	require.NotNil(t, order)
	assert.Equal(t, StatusFailed, order.Status, "in-memory copy is marked failed")

	// The failed mark is local only; the persisted order stays pending.
	stored, err := svc.Order(context.Background(), order.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, StatusPending, stored.Status)
}

func TestAvailabilityResponsePopulatesReferenceCache(t *testing.T) {
	svc, broker := newTestService(t)

	require.NoError(t, broker.Publish(context.Background(), messaging.QueueAvailabilityResponse, messaging.AvailabilityResponse{
		BookID:    "book-003",
		Title:     "1984",
		Author:    "George Orwell",
		Timestamp: time.Now(),
	}))

	valid, err := svc.repo.IsValidBookID(context.Background(), "book-003")
	require.NoError(t, err)
	assert.True(t, valid)

	// The next create succeeds without further lookups.
	order, err := svc.CreateOrder(context.Background(), "book-003", 1)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, order.Status)
}

func TestOrderProcessedSetsInformationalStatus(t *testing.T) {
	svc, broker := newTestService(t)
	cacheRef(t, svc, "book-001", "The Great Gatsby")

	order, err := svc.CreateOrder(context.Background(), "book-001", 1)
	require.NoError(t, err)

	require.NoError(t, broker.Publish(context.Background(), messaging.QueueOrderProcessed, messaging.OrderProcessed{
		OrderID:     order.ID,
		Status:      "processed",
		ProcessedAt: time.Now(),
	}))

	stored, err := svc.Order(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
}

func TestOrderFailedSetsInformationalStatus(t *testing.T) {
	svc, broker := newTestService(t)
	cacheRef(t, svc, "book-001", "The Great Gatsby")

	order, err := svc.CreateOrder(context.Background(), "book-001", 1)
	require.NoError(t, err)

	require.NoError(t, broker.Publish(context.Background(), messaging.QueueOrderFailed, messaging.OrderFailed{
		OrderID:  order.ID,
		Error:    "insufficient stock: 0 available, 1 requested",
		FailedAt: time.Now(),
	}))

	stored, err := svc.Order(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status)
}

func TestSeedBookReferencesBroadcastsWildcard(t *testing.T) {
	svc, broker := newTestService(t)

	require.NoError(t, svc.SeedBookReferences(context.Background()))

	checks := broker.Published(messaging.QueueAvailabilityCheck)
	require.Len(t, checks, 1)
	var check messaging.AvailabilityCheck
	require.NoError(t, json.Unmarshal(checks[0], &check))
	assert.Equal(t, messaging.AllBooks, check.BookID)
}

func TestValidBookIDs(t *testing.T) {
	svc, _ := newTestService(t)
	cacheRef(t, svc, "book-002", "To Kill a Mockingbird")
	cacheRef(t, svc, "book-001", "The Great Gatsby")

	ids, err := svc.ValidBookIDs(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"book-001", "book-002"}, ids)
}
