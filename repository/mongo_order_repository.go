package repository

import (
	"context"
	"errors"

	"github.com/yashrajoria/checkout-service/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoOrderRepository struct {
	collection *mongo.Collection
}

func NewMongoOrderRepository(db *mongo.Database) *MongoOrderRepository {
	return &MongoOrderRepository{
		collection: db.Collection("orders"),
	}
}

// EnsureIndexes creates the lookup indexes used by FindByUserID and FindBySessionID.
func (r *MongoOrderRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "createdAt", Value: -1}}},
		{Keys: bson.D{{Key: "stripeSessionId", Value: 1}}, Options: options.Index().SetSparse(true)},
	})
	if err != nil {
		return unavailable("create order indexes", err)
	}
	return nil
}

func (r *MongoOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if _, err := r.collection.InsertOne(ctx, order); err != nil {
		return unavailable("insert order", err)
	}
	return nil
}

func (r *MongoOrderRepository) FindByID(ctx context.Context, id string) (*models.Order, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoOrderRepository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	if sessionID == "" {
		return nil, ErrNotFound
	}
	return r.findOne(ctx, bson.M{"stripeSessionId": sessionID})
}

func (r *MongoOrderRepository) findOne(ctx context.Context, filter bson.M) (*models.Order, error) {
	var order models.Order
	err := r.collection.FindOne(ctx, filter).Decode(&order)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, unavailable("find order", err)
	}
	return &order, nil
}

func (r *MongoOrderRepository) FindByUserID(ctx context.Context, userID string) ([]models.Order, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.collection.Find(ctx, bson.M{"userId": userID}, findOptions)
	if err != nil {
		return nil, unavailable("find user orders", err)
	}
	defer cursor.Close(ctx)

	orders := make([]models.Order, 0)
	if err = cursor.All(ctx, &orders); err != nil {
		return nil, unavailable("decode user orders", err)
	}
	return orders, nil
}

func (r *MongoOrderRepository) UpdateStatus(ctx context.Context, id string, status models.OrderStatus) error {
	return r.update(ctx, bson.M{"_id": id}, bson.M{"status": status})
}

func (r *MongoOrderRepository) TransitionStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	err := r.update(ctx, bson.M{"_id": id, "status": from}, bson.M{"status": to})
	if !errors.Is(err, ErrNotFound) {
		return err
	}
	// Nothing matched: tell a missing order apart from a lost race.
	if _, findErr := r.FindByID(ctx, id); findErr != nil {
		return findErr
	}
	return ErrStatusConflict
}

func (r *MongoOrderRepository) SetSessionID(ctx context.Context, id, sessionID string) error {
	return r.update(ctx, bson.M{"_id": id}, bson.M{"stripeSessionId": sessionID})
}

func (r *MongoOrderRepository) update(ctx context.Context, filter, set bson.M) error {
	set["updatedAt"] = now()
	res, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": set})
	if err != nil {
		return unavailable("update order", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}
