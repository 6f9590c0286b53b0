package mongo

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/repository"
	"context"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const workoutCollectionName = "workouts"

// mongoWorkoutRepository implements repository.WorkoutRepository
type mongoWorkoutRepository struct {
	collection *mongo.Collection
}

// NewMongoWorkoutRepository creates a new Workout repository.
func NewMongoWorkoutRepository(db *mongo.Database) repository.WorkoutRepository {
	return &mongoWorkoutRepository{
		collection: db.Collection(workoutCollectionName),
	}
}

// GetByID retrieves a single workout by its ID.
func (r *mongoWorkoutRepository) GetByID(ctx context.Context, id string) (*domain.Workout, error) {
	var workout domain.Workout
	filter := bson.M{"_id": id}
	err := r.collection.FindOne(ctx, filter).Decode(&workout)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &workout, nil
}

// List retrieves the workout catalog sorted by its display order.
func (r *mongoWorkoutRepository) List(ctx context.Context) ([]domain.Workout, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "order", Value: 1}, {Key: "_id", Value: 1}})

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	workouts := []domain.Workout{}
	if err = cursor.All(ctx, &workouts); err != nil {
		return nil, err
	}
	return workouts, nil
}

// Insert stores the workout under workout.ID. createdAt is stamped by the
// server right after the insert.
func (r *mongoWorkoutRepository) Insert(ctx context.Context, workout *domain.Workout) error {
	if workout.ID == "" {
		workout.ID = newID()
	}

	doc := bson.M{}
	for k, v := range workout.Extra {
		doc[k] = v
	}
	doc["_id"] = workout.ID
	doc["name"] = workout.Name
	doc["order"] = workout.Order
	if workout.VideoURL != "" {
		doc["videoUrl"] = workout.VideoURL
	}
	delete(doc, "createdAt")

	if _, err := r.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return repository.ErrAlreadyExists
		}
		return err
	}

	createdAt, err := stampNow(ctx, r.collection, workout.ID, "createdAt")
	if err != nil {
		return err
	}
	workout.CreatedAt = createdAt
	return nil
}

func (r *mongoWorkoutRepository) Delete(ctx context.Context, id string) error {
	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// EnsureWorkoutIndexes creates necessary indexes. Call during startup.
func EnsureWorkoutIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Catalog listing
			Keys:    bson.D{{Key: "order", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
