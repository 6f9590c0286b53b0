package mongo

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/repository"
	"context"
	"errors"

	log "github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const planStateCollectionName = "plan_states"

// mongoPlanStateRepository implements repository.PlanStateRepository.
// One document per user, keyed by the user id.
type mongoPlanStateRepository struct {
	collection *mongo.Collection
}

// NewMongoPlanStateRepository creates a new plan state repository.
func NewMongoPlanStateRepository(db *mongo.Database) repository.PlanStateRepository {
	return &mongoPlanStateRepository{
		collection: db.Collection(planStateCollectionName),
	}
}

func (r *mongoPlanStateRepository) Get(ctx context.Context, userID string) (*domain.UserPlanState, error) {
	var state domain.UserPlanState
	err := r.collection.FindOne(ctx, bson.M{"_id": userID}).Decode(&state)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	return &state, nil
}

// Init upserts with an update pipeline: existing fields win over the seed
// via $ifNull, so an initialized schedule is never replaced.
func (r *mongoPlanStateRepository) Init(ctx context.Context, userID, planID string, entries []domain.ScheduleEntry) (*domain.UserPlanState, error) {
	if entries == nil {
		entries = []domain.ScheduleEntry{}
	}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "planId", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$planId", bson.D{{Key: "$literal", Value: planID}}}}}},
			{Key: "entries", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$entries", bson.D{{Key: "$literal", Value: entries}}}}}},
			{Key: "startedAt", Value: bson.D{{Key: "$ifNull", Value: bson.A{"$startedAt", "$$NOW"}}}},
			{Key: "updatedAt", Value: "$$NOW"},
		}}},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var state domain.UserPlanState
	if err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": userID}, pipeline, opts).Decode(&state); err != nil {
		return nil, err
	}
	return &state, nil
}

// SetEntry patches the single matching entry in place with an array filter.
func (r *mongoPlanStateRepository) SetEntry(ctx context.Context, userID string, day int, workoutID string, completed bool, sessionID string) error {
	filter := bson.M{
		"_id":     userID,
		"entries": bson.M{"$elemMatch": bson.M{"day": day, "workoutId": workoutID}},
	}
	update := bson.M{
		"$set": bson.M{
			"entries.$[e].completed": completed,
			"entries.$[e].sessionId": sessionID,
		},
		"$currentDate": bson.M{"updatedAt": true},
	}
	opts := options.Update().SetArrayFilters(options.ArrayFilters{
		Filters: []interface{}{bson.M{"e.day": day, "e.workoutId": workoutID}},
	})

	result, err := r.collection.UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return err
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// Watch follows the user's document through a change stream. Change streams
// need a replica set.
func (r *mongoPlanStateRepository) Watch(ctx context.Context, userID string) (<-chan domain.UserPlanState, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "documentKey._id", Value: userID}}}},
	}
	stream, err := r.collection.Watch(ctx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		return nil, err
	}

	out := make(chan domain.UserPlanState, 1)
	go func() {
		defer close(out)
		defer stream.Close(context.Background())

		for stream.Next(ctx) {
			var event struct {
				FullDocument *domain.UserPlanState `bson:"fullDocument"`
			}
			if err := stream.Decode(&event); err != nil {
				log.WithError(err).WithField("userId", userID).Warn("plan state watch: decode change event")
				continue
			}
			if event.FullDocument == nil {
				continue
			}
			repository.SendLatest(out, *event.FullDocument)
		}
		if err := stream.Err(); err != nil && ctx.Err() == nil {
			log.WithError(err).WithField("userId", userID).Error("plan state watch stopped")
		}
	}()
	return out, nil
}
