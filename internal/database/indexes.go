package database

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

const (
	OrdersCollection = "orders"
	CartsCollection  = "carts"
)

// EnsureOrderIndexes creates the per-user listing index and the unique
// payment id index that stops one gateway payment from producing two orders.
func EnsureOrderIndexes(db *mongo.Database, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(OrdersCollection).Indexes()

	models := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("userId_createdAt"),
		},
		{
			Keys:    bson.D{{Key: "createdAt", Value: -1}},
			Options: options.Index().SetName("createdAt_desc"),
		},
		{
			Keys: bson.D{{Key: "paymentDetails.razorpayPaymentId", Value: 1}},
			Options: options.Index().
				SetName("razorpayPaymentId_unique").
				SetUnique(true).
				SetPartialFilterExpression(bson.M{
					"paymentDetails.razorpayPaymentId": bson.M{
						"$type": "string",
					},
				}),
		},
	}

	logger.Info("creating order indexes", zap.Int("count", len(models)))
	names, err := indexes.CreateMany(ctx, models)
	if err != nil {
		logger.Error("order index error", zap.Error(err))
		return err
	}
	logger.Info("order indexes ready", zap.Strings("names", names))
	return nil
}

func EnsureCartIndexes(db *mongo.Database, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	indexes := db.Collection(CartsCollection).Indexes()

	userIDIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "userId", Value: 1}},
		Options: options.Index().SetName("userId_index"),
	}

	logger.Info("creating userId_index on carts")
	if _, err := indexes.CreateOne(ctx, userIDIndex); err != nil {
		logger.Error("cart index error", zap.Error(err))
		return err
	}
	logger.Info("cart userId_index ready")
	return nil
}
