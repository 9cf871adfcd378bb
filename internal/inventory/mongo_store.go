package inventory

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"backend/internal/models"
)

// MongoStore implements Store on the products collection. The conditional
// update in Decrement is the serialization point for concurrent checkouts:
// the store applies the guard and the $inc atomically per document.
type MongoStore struct {
	Products *mongo.Collection
}

func (s *MongoStore) Fetch(ctx context.Context, id primitive.ObjectID) (*models.Product, error) {
	var product models.Product
	err := s.Products.FindOne(ctx, bson.M{
		"_id":       id,
		"isDeleted": bson.M{"$ne": true},
	}).Decode(&product)
	if err == mongo.ErrNoDocuments {
		return nil, ErrProductUnavailable
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

func (s *MongoStore) Decrement(ctx context.Context, id primitive.ObjectID, qty int) (bool, error) {
	res, err := s.Products.UpdateOne(ctx,
		bson.M{
			"_id":       id,
			"isActive":  true,
			"isDeleted": bson.M{"$ne": true},
			"stock":     bson.M{"$gte": qty},
		},
		bson.M{"$inc": bson.M{"stock": -qty}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (s *MongoStore) Increment(ctx context.Context, id primitive.ObjectID, qty int) error {
	_, err := s.Products.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"stock": qty}},
	)
	return err
}
