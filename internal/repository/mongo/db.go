package mongo

import (
	"alcyxob/plan-tracker/internal/repository"
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Default connection timeout
const defaultTimeout = 10 * time.Second

// ConnectDB establishes a connection to MongoDB using the provided URI.
// It returns the mongo.Client which can be used to access databases and collections.
func ConnectDB(uri string) (*mongo.Client, error) {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}

	// The initial connect may succeed against an unresponsive server.
	pingCtx, pingCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer pingCancel()

	if err = client.Ping(pingCtx, readpref.Primary()); err != nil {
		disconnectCtx, disconnectCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer disconnectCancel()
		_ = client.Disconnect(disconnectCtx)
		return nil, err
	}

	return client, nil
}

// DisconnectDB gracefully disconnects the MongoDB client.
func DisconnectDB(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), defaultTimeout)
	defer cancel()
	return client.Disconnect(ctx)
}

// EnsureIndexes creates the indexes of every collection used by the app.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	if err := EnsureWorkoutIndexes(ctx, db.Collection(workoutCollectionName)); err != nil {
		return err
	}
	return EnsureSessionIndexes(ctx, db.Collection(sessionCollectionName))
}

// transactor runs units of work inside a multi-document transaction.
// Transactions need a replica set or mongos; with enabled=false the work
// runs without one.
type transactor struct {
	client  *mongo.Client
	enabled bool
}

// NewTransactor creates a repository.Transactor backed by client sessions.
func NewTransactor(client *mongo.Client, enabled bool) repository.Transactor {
	return &transactor{client: client, enabled: enabled}
}

func (t *transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if !t.enabled {
		return fn(ctx)
	}

	session, err := t.client.StartSession()
	if err != nil {
		return err
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return nil, fn(sc)
	})
	return err
}

// newID returns a fresh opaque document identifier.
func newID() string {
	return primitive.NewObjectID().Hex()
}

// stampNow sets field to the server's current date on document id and
// returns the stored value.
func stampNow(ctx context.Context, collection *mongo.Collection, id string, field string) (time.Time, error) {
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{field: 1})

	var doc bson.M
	err := collection.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$currentDate": bson.M{field: true}},
		opts,
	).Decode(&doc)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return time.Time{}, repository.ErrNotFound
		}
		return time.Time{}, err
	}

	stamp, ok := doc[field].(primitive.DateTime)
	if !ok {
		return time.Time{}, repository.ErrNotFound
	}
	return stamp.Time().UTC(), nil
}
