package orders

import "context"

// Repository persists the orders service's book-reference cache and its own
// orders. Lookups return nil when the key is absent.
type Repository interface {
	CacheBookReference(ctx context.Context, bookID, title, author string) error
	BookReference(ctx context.Context, bookID string) (*BookReference, error)
	IsValidBookID(ctx context.Context, bookID string) (bool, error)
	ValidBookIDs(ctx context.Context) ([]string, error)

	SaveOrder(ctx context.Context, o Order) error
	Order(ctx context.Context, id string) (*Order, error)
	Orders(ctx context.Context) ([]Order, error)
	SetOrderStatus(ctx context.Context, id string, status Status) error
}
