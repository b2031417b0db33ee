package catalog

import (
	"context"
	"sync"
	"time"
)

// memoryRepo backs the catalog when no document store is configured, and is
// what the tests run against.
type memoryRepo struct {
	mu         sync.Mutex
	books      map[string]Book
	stockCache map[string]StockCacheEntry
}

func NewMemoryRepository() Repository {
	return &memoryRepo{
		books:      make(map[string]Book),
		stockCache: make(map[string]StockCacheEntry),
	}
}

func (r *memoryRepo) UpsertBook(_ context.Context, b Book) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	prev, ok := r.books[b.BookID]
	if ok {
		b.TotalStock = prev.TotalStock
		b.AvailableStock = prev.AvailableStock
		b.LastStockUpdate = prev.LastStockUpdate
	} else {
		b.LastStockUpdate = now
	}
	b.LastUpdated = now
	r.books[b.BookID] = b
	return nil
}

func (r *memoryRepo) Book(_ context.Context, bookID string) (*Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.books[bookID]
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (r *memoryRepo) AllBooks(_ context.Context) ([]Book, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Book, 0, len(r.books))
	for _, b := range r.books {
		out = append(out, b)
	}
	return out, nil
}

func (r *memoryRepo) UpsertStockCache(_ context.Context, bookID string, totalStock, availableStock int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now()
	r.stockCache[bookID] = StockCacheEntry{
		BookID:         bookID,
		TotalStock:     totalStock,
		AvailableStock: availableStock,
		LastUpdated:    now,
	}
	if b, ok := r.books[bookID]; ok {
		b.TotalStock = totalStock
		b.AvailableStock = availableStock
		b.LastStockUpdate = now
		r.books[bookID] = b
	}
	return nil
}

func (r *memoryRepo) StockCache(_ context.Context, bookID string) (*StockCacheEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.stockCache[bookID]
	if !ok {
		return nil, nil
	}
	return &e, nil
}
