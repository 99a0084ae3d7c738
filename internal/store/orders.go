package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"thriftstore/internal/database"
	"thriftstore/internal/models"
)

var (
	ErrNotFound         = errors.New("document not found")
	ErrDuplicatePayment = errors.New("payment id already recorded")
)

// Page limits a listing. A zero Limit means no limit.
type Page struct {
	Skip  int64
	Limit int64
}

type OrderRepository struct {
	coll *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(database.OrdersCollection)}
}

// Insert stores order and sets its generated id.
func (r *OrderRepository) Insert(ctx context.Context, order *models.Order) error {
	res, err := r.coll.InsertOne(ctx, order)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return ErrDuplicatePayment
		}
		return fmt.Errorf("insert order: %w", err)
	}
	if id, ok := res.InsertedID.(primitive.ObjectID); ok {
		order.ID = id
	}
	return nil
}

func (r *OrderRepository) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"paymentDetails.razorpayPaymentId": paymentID})
}

// FindByUser lists the user's orders newest first.
func (r *OrderRepository) FindByUser(ctx context.Context, userID primitive.ObjectID) ([]models.Order, error) {
	return r.find(ctx, bson.M{"userId": userID}, Page{})
}

// FindAll lists every order newest first.
func (r *OrderRepository) FindAll(ctx context.Context, page Page) ([]models.Order, error) {
	return r.find(ctx, bson.M{}, page)
}

// UpdateStatus moves the order from expected to status in one conditional
// write. It returns ErrNotFound when the order is gone or no longer in the
// expected state.
func (r *OrderRepository) UpdateStatus(ctx context.Context, id primitive.ObjectID, expected, status string, deliveredAt *time.Time) (*models.Order, error) {
	set := bson.M{"orderStatus": status}
	if deliveredAt != nil {
		set["deliveredAt"] = *deliveredAt
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var order models.Order
	err := r.coll.FindOneAndUpdate(ctx,
		bson.M{"_id": id, "orderStatus": expected},
		bson.M{"$set": set},
		opts,
	).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update order status: %w", err)
	}
	return &order, nil
}

func (r *OrderRepository) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	err := r.coll.FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find order: %w", err)
	}
	return &order, nil
}

func (r *OrderRepository) find(ctx context.Context, filter bson.M, page Page) ([]models.Order, error) {
	opts := newestFirst(page)

	cursor, err := r.coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find orders: %w", err)
	}
	defer cursor.Close(ctx)

	orders := []models.Order{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, fmt.Errorf("decode orders: %w", err)
	}
	return orders, nil
}

func newestFirst(page Page) *options.FindOptions {
	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}})
	if page.Skip > 0 {
		opts.SetSkip(page.Skip)
	}
	if page.Limit > 0 {
		opts.SetLimit(page.Limit)
	}
	return opts
}
