package store

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"thriftstore/internal/database"
	"thriftstore/internal/models"
)

type CartRepository struct {
	coll *mongo.Collection
}

func NewCartRepository(db *mongo.Database) *CartRepository {
	return &CartRepository{coll: db.Collection(database.CartsCollection)}
}

func (r *CartRepository) Insert(ctx context.Context, item *models.CartItem) error {
	res, err := r.coll.InsertOne(ctx, item)
	if err != nil {
		return fmt.Errorf("insert cart item: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		item.ID = id
	}
	return nil
}

func (r *CartRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.CartItem, error) {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("find cart: %w", err)
	}
	defer cursor.Close(ctx)

	items := []models.CartItem{}
	if err := cursor.All(ctx, &items); err != nil {
		return nil, fmt.Errorf("decode cart: %w", err)
	}
	return items, nil
}

func (r *CartRepository) UpdateQuantity(ctx context.Context, id, userID primitive.ObjectID, quantity int) (*models.CartItem, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var item models.CartItem
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "userId": userID},
		bson.M{"$set": bson.M{"quantity": quantity}},
		opts,
	).Decode(&item)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update cart item: %w", err)
	}
	return &item, nil
}

// DeleteByID removes one line item owned by userID.
func (r *CartRepository) DeleteByID(ctx context.Context, id, userID primitive.ObjectID) error {
	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id, "userId": userID})
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteByUser empties the user's cart. Deleting an empty cart is not an error.
func (r *CartRepository) DeleteByUser(ctx context.Context, userID primitive.ObjectID) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{"userId": userID})
	if err != nil {
		return 0, fmt.Errorf("clear cart: %w", err)
	}
	return res.DeletedCount, nil
}
