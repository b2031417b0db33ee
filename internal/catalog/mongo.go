package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type mongoRepo struct {
	books      *mongo.Collection
	stockCache *mongo.Collection
}

// NewMongoRepository stores books and the stock cache in the service's own
// database. No other service reads these collections.
func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepo{
		books:      db.Collection("books"),
		stockCache: db.Collection("stockCache"),
	}
}

func (r *mongoRepo) UpsertBook(ctx context.Context, b Book) error {
	now := time.Now()
	_, err := r.books.UpdateOne(ctx,
		bson.M{"bookId": b.BookID},
		bson.M{
			"$set": bson.M{
				"bookId":      b.BookID,
				"title":       b.Title,
				"author":      b.Author,
				"isbn":        b.ISBN,
				"description": b.Description,
				"lastUpdated": now,
			},
			"$setOnInsert": bson.M{
				"totalStock":      0,
				"availableStock":  0,
				"lastStockUpdate": now,
			},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert book %s: %w", b.BookID, err)
	}
	return nil
}

func (r *mongoRepo) Book(ctx context.Context, bookID string) (*Book, error) {
	var b Book
	err := r.books.FindOne(ctx, bson.M{"bookId": bookID}).Decode(&b)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find book %s: %w", bookID, err)
	}
	return &b, nil
}

func (r *mongoRepo) AllBooks(ctx context.Context) ([]Book, error) {
	cur, err := r.books.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list books: %w", err)
	}
	var out []Book
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode books: %w", err)
	}
	return out, nil
}

func (r *mongoRepo) UpsertStockCache(ctx context.Context, bookID string, totalStock, availableStock int) error {
	now := time.Now()
	_, err := r.stockCache.UpdateOne(ctx,
		bson.M{"bookId": bookID},
		bson.M{"$set": bson.M{
			"bookId":         bookID,
			"totalStock":     totalStock,
			"availableStock": availableStock,
			"lastUpdated":    now,
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("upsert stock cache %s: %w", bookID, err)
	}

	// Keep the owned record's stock view in step with the cache row.
	_, err = r.books.UpdateOne(ctx,
		bson.M{"bookId": bookID},
		bson.M{"$set": bson.M{
			"totalStock":      totalStock,
			"availableStock":  availableStock,
			"lastStockUpdate": now,
		}})
	if err != nil {
		return fmt.Errorf("update book stock %s: %w", bookID, err)
	}
	return nil
}

func (r *mongoRepo) StockCache(ctx context.Context, bookID string) (*StockCacheEntry, error) {
	var e StockCacheEntry
	err := r.stockCache.FindOne(ctx, bson.M{"bookId": bookID}).Decode(&e)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find stock cache %s: %w", bookID, err)
	}
	return &e, nil
}
