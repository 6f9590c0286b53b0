package mongo

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/repository"
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sessionCollectionName = "sessions"

// mongoSessionRepository implements repository.SessionRepository
type mongoSessionRepository struct {
	collection *mongo.Collection
}

// NewMongoSessionRepository creates a new Session repository.
func NewMongoSessionRepository(db *mongo.Database) repository.SessionRepository {
	return &mongoSessionRepository{
		collection: db.Collection(sessionCollectionName),
	}
}

var (
	newestCreated   = bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}
	newestCompleted = bson.D{{Key: "completedAt", Value: -1}, {Key: "_id", Value: -1}}
)

func (r *mongoSessionRepository) findOne(ctx context.Context, filter bson.M, sort bson.D) (*domain.Session, error) {
	var session domain.Session
	err := r.collection.FindOne(ctx, filter, options.FindOne().SetSort(sort)).Decode(&session)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &session, nil
}

func (r *mongoSessionRepository) find(ctx context.Context, filter bson.M, sort bson.D) ([]domain.Session, error) {
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	sessions := []domain.Session{}
	if err = cursor.All(ctx, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

// GetByID retrieves a single session by its ID.
func (r *mongoSessionRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	return r.findOne(ctx, bson.M{"_id": id}, nil)
}

func (r *mongoSessionRepository) FindLatestActive(ctx context.Context, userID, workoutID string) (*domain.Session, error) {
	filter := bson.M{"userId": userID, "workoutId": workoutID, "completedAt": nil}
	return r.findOne(ctx, filter, newestCreated)
}

func (r *mongoSessionRepository) FindLatest(ctx context.Context, userID, workoutID string) (*domain.Session, error) {
	filter := bson.M{"userId": userID, "workoutId": workoutID}
	return r.findOne(ctx, filter, newestCreated)
}

func (r *mongoSessionRepository) FindLatestCompleted(ctx context.Context, userID, workoutID string) (*domain.Session, error) {
	filter := bson.M{"userId": userID, "workoutId": workoutID, "completedAt": bson.M{"$ne": nil}}
	return r.findOne(ctx, filter, newestCompleted)
}

// ListCompleted returns the user's finished sessions of a workout, newest completion first.
func (r *mongoSessionRepository) ListCompleted(ctx context.Context, userID, workoutID string) ([]domain.Session, error) {
	filter := bson.M{"userId": userID, "workoutId": workoutID, "completedAt": bson.M{"$ne": nil}}
	return r.find(ctx, filter, newestCompleted)
}

// ListByWorkout returns every session of a workout regardless of owner, oldest first.
func (r *mongoSessionRepository) ListByWorkout(ctx context.Context, workoutID string) ([]domain.Session, error) {
	return r.find(ctx, bson.M{"workoutId": workoutID}, bson.D{{Key: "createdAt", Value: 1}, {Key: "_id", Value: 1}})
}

// Create inserts a new active session in one write. createdAt comes from
// the server clock.
func (r *mongoSessionRepository) Create(ctx context.Context, session *domain.Session) error {
	if session.UserID == "" || session.WorkoutID == "" {
		return errors.New("session requires userId and workoutId")
	}
	id := newID()
	update := bson.M{
		"$setOnInsert": bson.M{
			"userId":      session.UserID,
			"workoutId":   session.WorkoutID,
			"completedAt": nil,
			"columns":     session.Columns,
			"rows":        session.Rows,
		},
		"$currentDate": bson.M{"createdAt": true},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var stored domain.Session
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&stored); err != nil {
		return err
	}
	*session = stored
	return nil
}

// InsertMany writes session copies verbatim. Used by the clone operation.
func (r *mongoSessionRepository) InsertMany(ctx context.Context, sessions []domain.Session) error {
	if len(sessions) == 0 {
		return nil
	}
	docs := make([]interface{}, len(sessions))
	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = newID()
		}
		docs[i] = sessions[i]
	}
	_, err := r.collection.InsertMany(ctx, docs)
	if mongo.IsDuplicateKeyError(err) {
		return repository.ErrAlreadyExists
	}
	return err
}

// SaveTable overwrites the table of an active session. Only columns and
// rows are written.
func (r *mongoSessionRepository) SaveTable(ctx context.Context, id, userID string, table domain.Table) error {
	filter := bson.M{"_id": id, "userId": userID, "completedAt": nil}
	update := bson.M{"$set": bson.M{"columns": table.Columns, "rows": table.Rows}}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if result.MatchedCount > 0 {
		return nil
	}
	return r.explainMiss(ctx, id, userID)
}

// Complete stamps completedAt with the server clock. The update only
// matches an active session, so a second call leaves the first stamp alone.
func (r *mongoSessionRepository) Complete(ctx context.Context, id, userID string) (time.Time, error) {
	filter := bson.M{"_id": id, "userId": userID, "completedAt": nil}
	update := bson.M{"$currentDate": bson.M{"completedAt": true}}

	if _, err := r.collection.UpdateOne(ctx, filter, update); err != nil {
		return time.Time{}, err
	}

	session, err := r.GetByID(ctx, id)
	if err != nil {
		return time.Time{}, err
	}
	if session.UserID != userID || session.CompletedAt == nil {
		return time.Time{}, repository.ErrNotFound
	}
	return session.CompletedAt.UTC(), nil
}

func (r *mongoSessionRepository) DeleteByWorkout(ctx context.Context, workoutID string) (int64, error) {
	result, err := r.collection.DeleteMany(ctx, bson.M{"workoutId": workoutID})
	if err != nil {
		return 0, err
	}
	return result.DeletedCount, nil
}

// explainMiss tells apart a missing (or foreign) session and a completed one.
func (r *mongoSessionRepository) explainMiss(ctx context.Context, id, userID string) error {
	session, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if session.UserID != userID {
		return repository.ErrNotFound
	}
	if session.CompletedAt != nil {
		return repository.ErrSessionCompleted
	}
	// Matched nothing yet active: the document changed between the two reads.
	return repository.ErrNotFound
}

// EnsureSessionIndexes creates necessary indexes. Call during startup.
func EnsureSessionIndexes(ctx context.Context, collection *mongo.Collection) error {
	indexes := []mongo.IndexModel{
		{
			// Resume / seed lookups
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "workoutId", Value: 1}, {Key: "createdAt", Value: -1}},
			Options: options.Index(),
		},
		{
			// History and restore-layout lookups
			Keys:    bson.D{{Key: "userId", Value: 1}, {Key: "workoutId", Value: 1}, {Key: "completedAt", Value: -1}},
			Options: options.Index(),
		},
		{
			// Clone
			Keys:    bson.D{{Key: "workoutId", Value: 1}},
			Options: options.Index(),
		},
	}
	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
