package orders

import "time"

// BookReference is the orders service's read-only projection of a book,
// refreshed only by availability-response events. Existence of a row is what
// validates an order; stock is never consulted here.
type BookReference struct {
	BookID      string    `bson:"bookId" json:"bookId"`
	Title       string    `bson:"title" json:"title"`
	Author      string    `bson:"author" json:"author"`
	LastUpdated time.Time `bson:"lastUpdated" json:"lastUpdated"`
}

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Order is created pending; the create path never transitions it further.
// Later statuses are informational, derived from order.processed and
// order.failed events.
type Order struct {
	ID        string    `bson:"orderId" json:"id"`
	Item      string    `bson:"item" json:"item"`
	Quantity  int       `bson:"quantity" json:"quantity"`
	Status    Status    `bson:"status" json:"status"`
	Timestamp time.Time `bson:"timestamp" json:"timestamp"`
}
