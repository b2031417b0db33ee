package catalog

import "time"

// Book is the catalog's owned record. Stock fields are mutated only by
// inventory-update events; other services ever hold read-only projections.
type Book struct {
	BookID          string    `bson:"bookId" json:"bookId"`
	Title           string    `bson:"title" json:"title"`
	Author          string    `bson:"author" json:"author"`
	ISBN            string    `bson:"isbn,omitempty" json:"isbn,omitempty"`
	Description     string    `bson:"description,omitempty" json:"description,omitempty"`
	TotalStock      int       `bson:"totalStock" json:"totalStock"`
	AvailableStock  int       `bson:"availableStock" json:"availableStock"`
	LastStockUpdate time.Time `bson:"lastStockUpdate" json:"lastStockUpdate"`
	LastUpdated     time.Time `bson:"lastUpdated" json:"lastUpdated"`
}

// StockCacheEntry is the catalog's materialized stock view. LastUpdated is
// the wall-clock time of the last successful write to this row, never the
// source record's own timestamp; staleness is computed from it alone.
type StockCacheEntry struct {
	BookID         string    `bson:"bookId" json:"bookId"`
	TotalStock     int       `bson:"totalStock" json:"totalStock"`
	AvailableStock int       `bson:"availableStock" json:"availableStock"`
	LastUpdated    time.Time `bson:"lastUpdated" json:"lastUpdated"`
}
