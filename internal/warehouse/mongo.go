package warehouse

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
	bookInfo  *mongo.Collection
	inventory *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepo{
		bookInfo:  db.Collection("bookInfo"),
		inventory: db.Collection("inventory"),
	}
}

func (r *mongoRepo) CacheBookInfo(ctx context.Context, info BookInfo) error {
	_, err := r.bookInfo.UpdateOne(ctx,
		bson.M{"bookId": info.BookID},
		bson.M{"$set": bson.M{
			"bookId":      info.BookID,
			"title":       info.Title,
			"author":      info.Author,
			"isbn":        info.ISBN,
			"description": info.Description,
			"lastUpdated": time.Now(),
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("cache book info %s: %w", info.BookID, err)
	}
	return nil
}

func (r *mongoRepo) BookInfo(ctx context.Context, bookID string) (*BookInfo, error) {
	var info BookInfo
	err := r.bookInfo.FindOne(ctx, bson.M{"bookId": bookID}).Decode(&info)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find book info %s: %w", bookID, err)
	}
	return &info, nil
}

func (r *mongoRepo) AllBookInfo(ctx context.Context) ([]BookInfo, error) {
	cur, err := r.bookInfo.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list book info: %w", err)
	}
	var out []BookInfo
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode book info: %w", err)
	}
	return out, nil
}

func (r *mongoRepo) SetShelf(ctx context.Context, bookID, shelf string, quantity int) error {
	if quantity < 0 {
		return fmt.Errorf("set shelf %s/%s: negative quantity %d", bookID, shelf, quantity)
	}
	_, err := r.inventory.UpdateOne(ctx,
		bson.M{"bookId": bookID, "shelf": shelf},
		bson.M{"$set": bson.M{
			"bookId":      bookID,
			"shelf":       shelf,
			"quantity":    quantity,
			"lastUpdated": time.Now(),
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("set shelf %s/%s: %w", bookID, shelf, err)
	}
	return nil
}

func (r *mongoRepo) ShelvesFor(ctx context.Context, bookID string) (map[string]int, error) {
	cur, err := r.inventory.Find(ctx, bson.M{"bookId": bookID})
	if err != nil {
		return nil, fmt.Errorf("find inventory %s: %w", bookID, err)
	}
	var items []InventoryItem
	if err := cur.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode inventory %s: %w", bookID, err)
	}
	out := make(map[string]int, len(items))
	for _, it := range items {
		out[it.Shelf] = it.Quantity
	}
	return out, nil
}
