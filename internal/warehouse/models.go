package warehouse

import "time"

// BookInfo is the warehouse's read-only projection of book metadata,
// refreshed by availability responses and opportunistically enriched from
// incoming orders.
type BookInfo struct {
	BookID      string    `bson:"bookId" json:"bookId"`
	Title       string    `bson:"title" json:"title"`
	Author      string    `bson:"author" json:"author"`
	ISBN        string    `bson:"isbn,omitempty" json:"isbn,omitempty"`
	Description string    `bson:"description,omitempty" json:"description,omitempty"`
	LastUpdated time.Time `bson:"lastUpdated" json:"lastUpdated"`
}

// InventoryItem is one shelf's holding of one book, keyed by
// (bookId, shelf). A book's total stock is the sum over its shelf rows.
type InventoryItem struct {
	BookID      string    `bson:"bookId" json:"bookId"`
	Shelf       string    `bson:"shelf" json:"shelf"`
	Quantity    int       `bson:"quantity" json:"quantity"`
	LastUpdated time.Time `bson:"lastUpdated" json:"lastUpdated"`
}
