package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/mcmasterful/bookstore/internal/messaging"
)

// ErrUnknownBook means the book id had no local reference. The create call
// fails immediately; a best-effort availability check has been broadcast so
// a later retry can succeed once the cache fills.
var ErrUnknownBook = errors.New("unknown book id")

// Service is the order lifecycle workflow plus the listeners that keep the
// book-reference cache current.
type Service struct {
	repo   Repository
	broker messaging.Broker
	name   string
}

func NewService(repo Repository, broker messaging.Broker) *Service {
	return &Service{repo: repo, broker: broker, name: "order-service"}
}

// RegisterConsumers subscribes to the cache-refresh and order-outcome
// events.
func (s *Service) RegisterConsumers() error {
	if err := s.broker.Consume(messaging.QueueAvailabilityResponse, s.handleAvailabilityResponse); err != nil {
		return err
	}
	if err := s.broker.Consume(messaging.QueueOrderProcessed, s.handleOrderProcessed); err != nil {
		return err
	}
	return s.broker.Consume(messaging.QueueOrderFailed, s.handleOrderFailed)
}

// CreateOrder validates the book id against the local reference cache and
// publishes the order. An unknown id fails the call at once after
// broadcasting a single availability check; there is no queuing or replay of
// the request. The order is returned even when the publish fails — the
// in-memory copy is marked failed, but that mark is never persisted.
func (s *Service) CreateOrder(ctx context.Context, item string, quantity int) (*Order, error) {
	if item == "" {
		return nil, fmt.Errorf("create order: missing item")
	}
	if quantity < 1 {
		return nil, fmt.Errorf("create order: quantity %d below 1", quantity)
	}

	valid, err := s.repo.IsValidBookID(ctx, item)
	if err != nil {
		return nil, err
	}
	if !valid {
		log.Warn().Str("bookId", item).Msg("unknown book id, requesting book info")
		if err := s.broker.Publish(ctx, messaging.QueueAvailabilityCheck, messaging.AvailabilityCheck{
			BookID:      item,
			RequestedBy: s.name,
			Timestamp:   time.Now(),
		}); err != nil {
			log.Error().Str("bookId", item).Err(err).Msg("availability check publish failed")
		}
		return nil, fmt.Errorf("%w: %s, book information requested", ErrUnknownBook, item)
	}

	bookTitle := item
	if ref, err := s.repo.BookReference(ctx, item); err != nil {
		return nil, err
	} else if ref != nil {
		bookTitle = ref.Title
	}

	order := Order{
		ID:        "order-" + uuid.NewString(),
		Item:      item,
		Quantity:  quantity,
		Status:    StatusPending,
		Timestamp: time.Now(),
	}
	if err := s.repo.SaveOrder(ctx, order); err != nil {
		return nil, err
	}

	err = s.broker.Publish(ctx, messaging.QueueOrderCreated, messaging.OrderCreated{
		OrderID:   order.ID,
		Item:      order.Item,
		BookTitle: bookTitle,
		Quantity:  order.Quantity,
		Timestamp: order.Timestamp,
	})
	if err != nil {
		log.Error().Str("orderId", order.ID).Err(err).Msg("order publish failed")
		order.Status = StatusFailed
	} else {
		log.Info().Str("orderId", order.ID).Str("bookId", item).Int("quantity", quantity).
			Msg("order published")
	}
	return &order, nil
}

func (s *Service) Order(ctx context.Context, id string) (*Order, error) {
	return s.repo.Order(ctx, id)
}

func (s *Service) Orders(ctx context.Context) ([]Order, error) {
	return s.repo.Orders(ctx)
}

func (s *Service) ValidBookIDs(ctx context.Context) ([]string, error) {
	return s.repo.ValidBookIDs(ctx)
}

// SeedBookReferences broadcasts a wildcard availability check so the owning
// service describes every book it has. Responses arrive asynchronously.
func (s *Service) SeedBookReferences(ctx context.Context) error {
	return s.broker.Publish(ctx, messaging.QueueAvailabilityCheck, messaging.AvailabilityCheck{
		BookID:      messaging.AllBooks,
		RequestedBy: s.name,
		Timestamp:   time.Now(),
	})
}

func (s *Service) handleAvailabilityResponse(ctx context.Context, body []byte) error {
	var msg messaging.AvailabilityResponse
	if err := messaging.Decode(body, &msg); err != nil {
		return err
	}
	return s.repo.CacheBookReference(ctx, msg.BookID, msg.Title, msg.Author)
}

func (s *Service) handleOrderProcessed(ctx context.Context, body []byte) error {
	var msg messaging.OrderProcessed
	if err := messaging.Decode(body, &msg); err != nil {
		return err
	}
	log.Info().Str("orderId", msg.OrderID).Msg("order processed")
	return s.repo.SetOrderStatus(ctx, msg.OrderID, StatusCompleted)
}

func (s *Service) handleOrderFailed(ctx context.Context, body []byte) error {
	var msg messaging.OrderFailed
	if err := messaging.Decode(body, &msg); err != nil {
		return err
	}
	log.Warn().Str("orderId", msg.OrderID).Str("error", msg.Error).Msg("order failed")
	return s.repo.SetOrderStatus(ctx, msg.OrderID, StatusFailed)
}
