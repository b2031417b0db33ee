package catalog

import (
	"context"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog/log"

	"github.com/mcmasterful/bookstore/internal/messaging"
)

// DefaultStockMaxAge is the staleness window for the stock cache.
const DefaultStockMaxAge = 5 * time.Minute

const hotCacheSize = 256

// StockLevel is the cached stock view handed to callers.
type StockLevel struct {
	TotalStock     int
	AvailableStock int
}

// Service owns the catalog's books and stock cache. It answers availability
// checks with its own data and keeps the cache current from
// inventory-updated events.
type Service struct {
	repo   Repository
	broker messaging.Broker

	// hot fronts the stock-cache collection for the read path; every
	// cache write goes through it.
	hot *lru.Cache[string, StockLevel]
}

func NewService(repo Repository, broker messaging.Broker) (*Service, error) {
	hot, err := lru.New[string, StockLevel](hotCacheSize)
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, broker: broker, hot: hot}, nil
}

// RegisterConsumers subscribes the catalog to the events that feed its cache
// and to availability checks.
func (s *Service) RegisterConsumers() error {
	if err := s.broker.Consume(messaging.QueueInventoryUpdated, s.handleInventoryUpdated); err != nil {
		return err
	}
	return s.broker.Consume(messaging.QueueAvailabilityCheck, s.handleAvailabilityCheck)
}

// CreateOrUpdateBook writes book metadata. Stock fields are untouched; a
// first write starts both counters at zero.
func (s *Service) CreateOrUpdateBook(ctx context.Context, b Book) error {
	if b.BookID == "" {
		return fmt.Errorf("create book: missing bookId")
	}
	if err := s.repo.UpsertBook(ctx, b); err != nil {
		return err
	}
	log.Info().Str("bookId", b.BookID).Str("title", b.Title).Msg("created/updated book")
	return nil
}

func (s *Service) BookWithStock(ctx context.Context, bookID string) (*Book, error) {
	return s.repo.Book(ctx, bookID)
}

func (s *Service) AllBooksWithStock(ctx context.Context) ([]Book, error) {
	return s.repo.AllBooks(ctx)
}

// StockLevel reads the cached stock view, nil when the book has never been
// cached.
func (s *Service) StockLevel(ctx context.Context, bookID string) (*StockLevel, error) {
	if lvl, ok := s.hot.Get(bookID); ok {
		return &lvl, nil
	}
	e, err := s.repo.StockCache(ctx, bookID)
	if err != nil || e == nil {
		return nil, err
	}
	lvl := StockLevel{TotalStock: e.TotalStock, AvailableStock: e.AvailableStock}
	s.hot.Add(bookID, lvl)
	return &lvl, nil
}

// UpdateStockCache upserts the cache row, stamping its lastUpdated.
func (s *Service) UpdateStockCache(ctx context.Context, bookID string, totalStock, availableStock int) error {
	if err := s.repo.UpsertStockCache(ctx, bookID, totalStock, availableStock); err != nil {
		return err
	}
	s.hot.Add(bookID, StockLevel{TotalStock: totalStock, AvailableStock: availableStock})
	log.Info().Str("bookId", bookID).Int("total", totalStock).Int("available", availableStock).
		Msg("updated stock cache")
	return nil
}

// StockCacheStale reports whether the cache row for a book is absent or
// older than maxAge. It only ever inspects the cache write itself, not the
// upstream record: a row refreshed moments before an upstream change is
// still fresh. That gap is accepted.
func (s *Service) StockCacheStale(ctx context.Context, bookID string, maxAge time.Duration) (bool, error) {
	e, err := s.repo.StockCache(ctx, bookID)
	if err != nil {
		return false, err
	}
	if e == nil {
		return true, nil
	}
	return stale(e.LastUpdated, maxAge, time.Now()), nil
}

func (s *Service) handleInventoryUpdated(ctx context.Context, body []byte) error {
	var msg messaging.InventoryUpdated
	if err := messaging.Decode(body, &msg); err != nil {
		return err
	}

	// The event carries only the new total; keep the previously cached
	// totalStock when one exists.
	totalStock := msg.NewQuantity
	if lvl, err := s.StockLevel(ctx, msg.Item); err != nil {
		return err
	} else if lvl != nil {
		totalStock = lvl.TotalStock
	}
	return s.UpdateStockCache(ctx, msg.Item, totalStock, msg.NewQuantity)
}

func (s *Service) handleAvailabilityCheck(ctx context.Context, body []byte) error {
	var msg messaging.AvailabilityCheck
	if err := messaging.Decode(body, &msg); err != nil {
		return err
	}
	log.Info().Str("bookId", msg.BookID).Str("requestedBy", msg.RequestedBy).
		Msg("availability check received")

	if msg.BookID == messaging.AllBooks {
		books, err := s.repo.AllBooks(ctx)
		if err != nil {
			return err
		}
		for _, b := range books {
			if err := s.respond(ctx, b); err != nil {
				return err
			}
		}
		return nil
	}

	b, err := s.repo.Book(ctx, msg.BookID)
	if err != nil {
		return err
	}
	if b == nil {
		// Best-effort protocol: an unknown book simply gets no answer.
		return nil
	}
	return s.respond(ctx, *b)
}

func (s *Service) respond(ctx context.Context, b Book) error {
	total := b.TotalStock
	available := b.AvailableStock
	return s.broker.Publish(ctx, messaging.QueueAvailabilityResponse, messaging.AvailabilityResponse{
		BookID:         b.BookID,
		Title:          b.Title,
		Author:         b.Author,
		ISBN:           b.ISBN,
		Description:    b.Description,
		TotalStock:     &total,
		AvailableStock: &available,
		Timestamp:      time.Now(),
	})
}

// Seed loads the sample catalog used in development.
func (s *Service) Seed(ctx context.Context) error {
	books := []Book{
		{BookID: "book-001", Title: "The Great Gatsby", Author: "F. Scott Fitzgerald",
			ISBN: "978-0-7432-7356-5", Description: "A classic American novel set in the Jazz Age."},
		{BookID: "book-002", Title: "To Kill a Mockingbird", Author: "Harper Lee",
			ISBN: "978-0-06-112008-4", Description: "A novel about childhood, racism, and moral growth in the American South."},
		{BookID: "book-003", Title: "1984", Author: "George Orwell",
			ISBN: "978-0-452-28423-4", Description: "A dystopian social science fiction novel and cautionary tale."},
	}
	for _, b := range books {
		if err := s.repo.UpsertBook(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
