package warehouse

import "context"

// Repository persists the warehouse's book-info cache and shelf inventory.
// Lookups return nil when the key is absent; SetShelf upserts by
// (bookId, shelf) and never accepts a negative quantity.
type Repository interface {
	CacheBookInfo(ctx context.Context, info BookInfo) error
	BookInfo(ctx context.Context, bookID string) (*BookInfo, error)
	AllBookInfo(ctx context.Context) ([]BookInfo, error)

	SetShelf(ctx context.Context, bookID, shelf string, quantity int) error
	ShelvesFor(ctx context.Context, bookID string) (map[string]int, error)
}
