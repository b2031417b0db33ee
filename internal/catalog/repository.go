package catalog

import (
	"context"
	"time"
)

// Repository persists the catalog's books and its stock cache. Lookups
// return nil when the key is absent.
type Repository interface {
	UpsertBook(ctx context.Context, b Book) error
	Book(ctx context.Context, bookID string) (*Book, error)
	AllBooks(ctx context.Context) ([]Book, error)

	UpsertStockCache(ctx context.Context, bookID string, totalStock, availableStock int) error
	StockCache(ctx context.Context, bookID string) (*StockCacheEntry, error)
}

// stale reports whether a cache write is too old to trust. An age exactly
// equal to maxAge is still fresh.
func stale(lastUpdated time.Time, maxAge time.Duration, now time.Time) bool {
	return now.Sub(lastUpdated) > maxAge
}
