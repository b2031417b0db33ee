package messaging

import (
	"errors"
	"fmt"
	"time"
)

// Queue names shared by all services. Every queue is declared durable and
// carries JSON payloads.
const (
	QueueOrderCreated         = "order.created"
	QueueOrderProcessed       = "order.processed"
	QueueOrderFailed          = "order.failed"
	QueueInventoryUpdated     = "inventory.updated"
	QueueFulfillmentRequest   = "fulfillment.request"
	QueueFulfillmentCompleted = "fulfillment.completed"
	QueueAvailabilityCheck    = "book.availability.check"
	QueueAvailabilityResponse = "book.availability.response"
)

// AllQueues is declared on connect so publishers never race consumers on
// queue existence.
var AllQueues = []string{
	QueueOrderCreated,
	QueueOrderProcessed,
	QueueOrderFailed,
	QueueInventoryUpdated,
	QueueFulfillmentRequest,
	QueueFulfillmentCompleted,
	QueueAvailabilityCheck,
	QueueAvailabilityResponse,
}

// AllBooks is the wildcard bookId in an availability check: the responder
// answers with one response message per book it knows about.
const AllBooks = "*"

// OrderCreated is published by the orders service and consumed by the
// warehouse. BookTitle is denormalized for downstream convenience and may be
// empty.
type OrderCreated struct {
	OrderID   string    `json:"orderId"`
	Item      string    `json:"item"`
	BookTitle string    `json:"bookTitle,omitempty"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

func (m OrderCreated) Validate() error {
	if m.OrderID == "" {
		return errors.New("order created: missing orderId")
	}
	if m.Item == "" {
		return errors.New("order created: missing item")
	}
	if m.Quantity < 1 {
		return fmt.Errorf("order created: quantity %d below 1", m.Quantity)
	}
	return nil
}

// OrderProcessed confirms a successful reservation.
type OrderProcessed struct {
	OrderID     string    `json:"orderId"`
	Status      string    `json:"status"`
	ProcessedAt time.Time `json:"processedAt"`
}

func (m OrderProcessed) Validate() error {
	if m.OrderID == "" {
		return errors.New("order processed: missing orderId")
	}
	if m.Status != "processed" {
		return fmt.Errorf("order processed: unexpected status %q", m.Status)
	}
	return nil
}

// OrderFailed carries the business failure back to the orders service.
type OrderFailed struct {
	OrderID  string    `json:"orderId"`
	Error    string    `json:"error"`
	FailedAt time.Time `json:"failedAt"`
}

func (m OrderFailed) Validate() error {
	if m.OrderID == "" {
		return errors.New("order failed: missing orderId")
	}
	if m.Error == "" {
		return errors.New("order failed: missing error")
	}
	return nil
}

// InventoryUpdated announces a new total stock level for a book.
type InventoryUpdated struct {
	Item            string    `json:"item"`
	QuantityChanged int       `json:"quantityChanged"`
	NewQuantity     int       `json:"newQuantity"`
	Timestamp       time.Time `json:"timestamp"`
}

func (m InventoryUpdated) Validate() error {
	if m.Item == "" {
		return errors.New("inventory updated: missing item")
	}
	if m.NewQuantity < 0 {
		return fmt.Errorf("inventory updated: negative quantity %d", m.NewQuantity)
	}
	return nil
}

// AvailabilityCheck is a correlation-free broadcast request: any responder
// currently consuming the check queue may answer, and every listener on the
// response queue sees every answer.
type AvailabilityCheck struct {
	BookID      string    `json:"bookId"`
	RequestedBy string    `json:"requestedBy"`
	Timestamp   time.Time `json:"timestamp"`
}

func (m AvailabilityCheck) Validate() error {
	if m.BookID == "" {
		return errors.New("availability check: missing bookId")
	}
	return nil
}

// AvailabilityResponse describes one book. Stock fields are only present when
// the responder tracks stock.
type AvailabilityResponse struct {
	BookID         string    `json:"bookId"`
	Title          string    `json:"title"`
	Author         string    `json:"author"`
	ISBN           string    `json:"isbn,omitempty"`
	Description    string    `json:"description,omitempty"`
	TotalStock     *int      `json:"totalStock,omitempty"`
	AvailableStock *int      `json:"availableStock,omitempty"`
	Timestamp      time.Time `json:"timestamp"`
}

func (m AvailabilityResponse) Validate() error {
	if m.BookID == "" {
		return errors.New("availability response: missing bookId")
	}
	if m.Title == "" {
		return errors.New("availability response: missing title")
	}
	if m.Author == "" {
		return errors.New("availability response: missing author")
	}
	return nil
}
