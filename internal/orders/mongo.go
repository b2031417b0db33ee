package orders

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
	bookReferences *mongo.Collection
	orders         *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) Repository {
	return &mongoRepo{
		bookReferences: db.Collection("bookReferences"),
		orders:         db.Collection("orders"),
	}
}

func (r *mongoRepo) CacheBookReference(ctx context.Context, bookID, title, author string) error {
	_, err := r.bookReferences.UpdateOne(ctx,
		bson.M{"bookId": bookID},
		bson.M{"$set": bson.M{
			"bookId":      bookID,
			"title":       title,
			"author":      author,
			"lastUpdated": time.Now(),
		}},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("cache book reference %s: %w", bookID, err)
	}
	return nil
}

func (r *mongoRepo) BookReference(ctx context.Context, bookID string) (*BookReference, error) {
	var ref BookReference
	err := r.bookReferences.FindOne(ctx, bson.M{"bookId": bookID}).Decode(&ref)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find book reference %s: %w", bookID, err)
	}
	return &ref, nil
}

func (r *mongoRepo) IsValidBookID(ctx context.Context, bookID string) (bool, error) {
	n, err := r.bookReferences.CountDocuments(ctx, bson.M{"bookId": bookID})
	if err != nil {
		return false, fmt.Errorf("count book reference %s: %w", bookID, err)
	}
	return n > 0, nil
}

func (r *mongoRepo) ValidBookIDs(ctx context.Context) ([]string, error) {
	cur, err := r.bookReferences.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list book references: %w", err)
	}
	var refs []BookReference
	if err := cur.All(ctx, &refs); err != nil {
		return nil, fmt.Errorf("decode book references: %w", err)
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		ids = append(ids, ref.BookID)
	}
	return ids, nil
}

func (r *mongoRepo) SaveOrder(ctx context.Context, o Order) error {
	_, err := r.orders.UpdateOne(ctx,
		bson.M{"orderId": o.ID},
		bson.M{"$set": o},
		options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("save order %s: %w", o.ID, err)
	}
	return nil
}

func (r *mongoRepo) Order(ctx context.Context, id string) (*Order, error) {
	var o Order
	err := r.orders.FindOne(ctx, bson.M{"orderId": id}).Decode(&o)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find order %s: %w", id, err)
	}
	return &o, nil
}

func (r *mongoRepo) Orders(ctx context.Context) ([]Order, error) {
	cur, err := r.orders.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("list orders: %w", err)
	}
	var out []Order
	if err := cur.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return out, nil
}

func (r *mongoRepo) SetOrderStatus(ctx context.Context, id string, status Status) error {
	_, err := r.orders.UpdateOne(ctx,
		bson.M{"orderId": id},
		bson.M{"$set": bson.M{"status": status}})
	if err != nil {
		return fmt.Errorf("set order %s status: %w", id, err)
	}
	return nil
}
