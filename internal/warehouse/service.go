package warehouse

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/mcmasterful/bookstore/internal/messaging"
)

// DefaultShelf receives external inventory adjustments that don't name a
// shelf.
const DefaultShelf = "default"

var (
	// ErrInsufficientStock: aggregate stock across all shelves is below
	// the requested quantity.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrFragmentedInventory: aggregate stock suffices but no single
	// shelf holds enough. Orders are never split across shelves, so
	// this fails even though the total would cover it.
	ErrFragmentedInventory = errors.New("inventory fragmented across shelves")
)

// Service is the inventory reservation engine plus the warehouse's cache
// listeners and shelf-level operations.
type Service struct {
	repo   Repository
	broker messaging.Broker

	// Reservations are serialized per bookId so two concurrent orders
	// cannot both read the pre-decrement quantity and over-reserve.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

func NewService(repo Repository, broker messaging.Broker) *Service {
	return &Service{repo: repo, broker: broker, locks: make(map[string]*sync.Mutex)}
}

func (s *Service) lockBook(bookID string) func() {
	s.locksMu.Lock()
	l, ok := s.locks[bookID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[bookID] = l
	}
	s.locksMu.Unlock()
	l.Lock()
	return l.Unlock
}

// RegisterConsumers subscribes the warehouse to orders, availability
// responses and the reserved fulfillment queue.
func (s *Service) RegisterConsumers() error {
	if err := s.broker.Consume(messaging.QueueOrderCreated, s.handleOrderCreated); err != nil {
		return err
	}
	if err := s.broker.Consume(messaging.QueueAvailabilityResponse, s.handleAvailabilityResponse); err != nil {
		return err
	}
	return s.broker.Consume(messaging.QueueFulfillmentRequest, s.handleFulfillmentRequest)
}

func (s *Service) handleOrderCreated(ctx context.Context, body []byte) error {
	var order messaging.OrderCreated
	if err := messaging.Decode(body, &order); err != nil {
		return err
	}
	log.Info().Str("orderId", order.OrderID).Str("bookId", order.Item).Int("quantity", order.Quantity).
		Msg("processing order")
	return s.ProcessOrder(ctx, order)
}

// ProcessOrder reserves stock for one order and publishes the outcome.
// Business failures travel as order.failed events, never as errors: the
// delivery is still acknowledged. Only a failure to publish the outcome
// itself surfaces as an error and takes the drop path.
func (s *Service) ProcessOrder(ctx context.Context, order messaging.OrderCreated) error {
	unlock := s.lockBook(order.Item)
	defer unlock()

	if err := s.reserve(ctx, order); err != nil {
		log.Warn().Str("orderId", order.OrderID).Err(err).Msg("order not fulfilled")
		return s.broker.Publish(ctx, messaging.QueueOrderFailed, messaging.OrderFailed{
			OrderID:  order.OrderID,
			Error:    err.Error(),
			FailedAt: time.Now(),
		})
	}
	return nil
}

func (s *Service) reserve(ctx context.Context, order messaging.OrderCreated) error {
	// Best-effort enrichment: an order can carry the title of a book we
	// have never been told about.
	info, err := s.repo.BookInfo(ctx, order.Item)
	if err != nil {
		return err
	}
	if info == nil && order.BookTitle != "" {
		if err := s.repo.CacheBookInfo(ctx, BookInfo{
			BookID: order.Item,
			Title:  order.BookTitle,
			Author: "Unknown Author",
		}); err != nil {
			log.Error().Str("bookId", order.Item).Err(err).Msg("book info enrichment failed")
		}
	}

	shelves, err := s.repo.ShelvesFor(ctx, order.Item)
	if err != nil {
		return err
	}
	totalStock := 0
	for _, qty := range shelves {
		totalStock += qty
	}
	if totalStock < order.Quantity {
		return fmt.Errorf("%w: %d available, %d requested", ErrInsufficientStock, totalStock, order.Quantity)
	}

	// Single-shelf policy: the first shelf that can satisfy the whole
	// order on its own. Orders are never split across shelves.
	shelf, ok := pickShelf(shelves, order.Quantity)
	if !ok {
		return ErrFragmentedInventory
	}

	if err := s.repo.SetShelf(ctx, order.Item, shelf, shelves[shelf]-order.Quantity); err != nil {
		return err
	}

	newTotal, err := s.TotalStock(ctx, order.Item)
	if err != nil {
		return err
	}
	if err := s.broker.Publish(ctx, messaging.QueueInventoryUpdated, messaging.InventoryUpdated{
		Item:            order.Item,
		QuantityChanged: -order.Quantity,
		NewQuantity:     newTotal,
		Timestamp:       time.Now(),
	}); err != nil {
		return err
	}
	if err := s.broker.Publish(ctx, messaging.QueueOrderProcessed, messaging.OrderProcessed{
		OrderID:     order.OrderID,
		Status:      "processed",
		ProcessedAt: time.Now(),
	}); err != nil {
		return err
	}
	log.Info().Str("orderId", order.OrderID).Str("shelf", shelf).Int("newTotal", newTotal).
		Msg("order processed")
	return nil
}

func pickShelf(shelves map[string]int, quantity int) (string, bool) {
	names := make([]string, 0, len(shelves))
	for name := range shelves {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if shelves[name] >= quantity {
			return name, true
		}
	}
	return "", false
}

func (s *Service) handleAvailabilityResponse(ctx context.Context, body []byte) error {
	var msg messaging.AvailabilityResponse
	if err := messaging.Decode(body, &msg); err != nil {
		return err
	}
	return s.repo.CacheBookInfo(ctx, BookInfo{
		BookID:      msg.BookID,
		Title:       msg.Title,
		Author:      msg.Author,
		ISBN:        msg.ISBN,
		Description: msg.Description,
	})
}

// fulfillment.request is reserved: declared and consumed, payload unused.
func (s *Service) handleFulfillmentRequest(_ context.Context, body []byte) error {
	log.Info().Bytes("request", body).Msg("fulfillment request received")
	return nil
}

// SetShelfQuantity sets a shelf's quantity outright and announces the new
// total. Negative quantities are rejected; the reservation algorithm is the
// only writer allowed to reach zero through decrements.
func (s *Service) SetShelfQuantity(ctx context.Context, bookID, shelf string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("set shelf %s/%s: negative quantity %d", bookID, shelf, quantity)
	}
	unlock := s.lockBook(bookID)
	defer unlock()

	shelves, err := s.repo.ShelvesFor(ctx, bookID)
	if err != nil {
		return err
	}
	if err := s.repo.SetShelf(ctx, bookID, shelf, quantity); err != nil {
		return err
	}
	return s.publishInventoryUpdated(ctx, bookID, quantity-shelves[shelf])
}

// AdjustShelfQuantity applies a delta to a shelf, clamped at zero, and
// announces the new total.
func (s *Service) AdjustShelfQuantity(ctx context.Context, bookID, shelf string, delta int) error {
	if shelf == "" {
		shelf = DefaultShelf
	}
	unlock := s.lockBook(bookID)
	defer unlock()

	shelves, err := s.repo.ShelvesFor(ctx, bookID)
	if err != nil {
		return err
	}
	next := shelves[shelf] + delta
	if next < 0 {
		next = 0
	}
	if err := s.repo.SetShelf(ctx, bookID, shelf, next); err != nil {
		return err
	}
	return s.publishInventoryUpdated(ctx, bookID, next-shelves[shelf])
}

func (s *Service) publishInventoryUpdated(ctx context.Context, bookID string, changed int) error {
	newTotal, err := s.TotalStock(ctx, bookID)
	if err != nil {
		return err
	}
	return s.broker.Publish(ctx, messaging.QueueInventoryUpdated, messaging.InventoryUpdated{
		Item:            bookID,
		QuantityChanged: changed,
		NewQuantity:     newTotal,
		Timestamp:       time.Now(),
	})
}

// InventoryForBook returns quantity per shelf.
func (s *Service) InventoryForBook(ctx context.Context, bookID string) (map[string]int, error) {
	return s.repo.ShelvesFor(ctx, bookID)
}

// TotalStock is the sum over all shelf rows for the book.
func (s *Service) TotalStock(ctx context.Context, bookID string) (int, error) {
	shelves, err := s.repo.ShelvesFor(ctx, bookID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, qty := range shelves {
		total += qty
	}
	return total, nil
}

func (s *Service) CacheBookInfo(ctx context.Context, info BookInfo) error {
	return s.repo.CacheBookInfo(ctx, info)
}

// Seed stocks the sample books on two shelves each.
func (s *Service) Seed(ctx context.Context) error {
	books := []BookInfo{
		{BookID: "book-001", Title: "The Great Gatsby", Author: "F. Scott Fitzgerald", ISBN: "978-0-7432-7356-5"},
		{BookID: "book-002", Title: "To Kill a Mockingbird", Author: "Harper Lee", ISBN: "978-0-06-112008-4"},
		{BookID: "book-003", Title: "1984", Author: "George Orwell", ISBN: "978-0-452-28423-4"},
	}
	for _, b := range books {
		if err := s.repo.CacheBookInfo(ctx, b); err != nil {
			return err
		}
		if err := s.repo.SetShelf(ctx, b.BookID, "shelf-A", 10); err != nil {
			return err
		}
		if err := s.repo.SetShelf(ctx, b.BookID, "shelf-B", 5); err != nil {
			return err
		}
	}
	return nil
}
