//go:build integration_test || all_tests

package mongo

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/repository"
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var testClient *mongo.Client

// A single-node replica set: change streams and transactions need one.
func TestMain(m *testing.M) {
	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("could not create new dockertest pool: %s", err)
	}
	if err = pool.Client.Ping(); err != nil {
		log.Fatalf("could not ping dockertest pool: %s", err)
	}

	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mongo",
		Tag:        "7.0",
		Cmd:        []string{"--replSet", "rs0", "--bind_ip_all"},
	}, func(config *docker.HostConfig) {
		config.AutoRemove = true
		config.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		log.Fatalf("run mongo: %s", err)
	}

	uri := fmt.Sprintf("mongodb://localhost:%s/?directConnection=true", resource.GetPort("27017/tcp"))
	if err = pool.Retry(func() error {
		client, err := ConnectDB(uri)
		if err != nil {
			return err
		}
		if err := initReplicaSet(client); err != nil {
			_ = DisconnectDB(client)
			return err
		}
		testClient = client
		return nil
	}); err != nil {
		_ = pool.Purge(resource)
		log.Fatalf("could not connect to mongo: %s", err)
	}

	code := m.Run()

	_ = DisconnectDB(testClient)
	if err := pool.Purge(resource); err != nil {
		log.Printf("could not purge mongo: %s", err)
	}
	os.Exit(code)
}

func initReplicaSet(client *mongo.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	admin := client.Database("admin")
	err := admin.RunCommand(ctx, bson.D{{Key: "replSetInitiate", Value: bson.M{
		"_id":     "rs0",
		"members": bson.A{bson.M{"_id": 0, "host": "localhost:27017"}},
	}}}).Err()
	var cmdErr mongo.CommandError
	// 23: AlreadyInitialized, from an earlier retry.
	if err != nil && !(errors.As(err, &cmdErr) && cmdErr.Code == 23) {
		return err
	}

	var hello struct {
		IsWritablePrimary bool `bson:"isWritablePrimary"`
	}
	if err := admin.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return err
	}
	if !hello.IsWritablePrimary {
		return errors.New("replica set has no primary yet")
	}
	return nil
}

func newTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	db := testClient.Database(fmt.Sprintf("plan_tracker_%d", time.Now().UnixNano()))
	require.NoError(t, EnsureIndexes(context.Background(), db))
	t.Cleanup(func() {
		_ = db.Drop(context.Background())
	})
	return db
}

func TestWorkoutRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMongoWorkoutRepository(newTestDB(t))

	plyo := &domain.Workout{ID: "plyo", Name: "Plyometrics", Order: 2}
	cb := &domain.Workout{ID: "cb", Name: "Chest & Back", Order: 1, Extra: bson.M{"coach": "Tony"}}
	require.NoError(t, repo.Insert(ctx, plyo))
	require.NoError(t, repo.Insert(ctx, cb))
	assert.False(t, cb.CreatedAt.IsZero())

	assert.ErrorIs(t, repo.Insert(ctx, &domain.Workout{ID: "cb", Name: "dup"}), repository.ErrAlreadyExists)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "cb", list[0].ID)
	assert.Equal(t, "plyo", list[1].ID)

	got, err := repo.GetByID(ctx, "cb")
	require.NoError(t, err)
	assert.Equal(t, "Chest & Back", got.Name)
	assert.Equal(t, "Tony", got.Extra["coach"])

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, repo.Delete(ctx, "plyo"))
	assert.ErrorIs(t, repo.Delete(ctx, "plyo"), repository.ErrNotFound)
}

func TestSessionRepository_Lifecycle(t *testing.T) {
	ctx := context.Background()
	repo := NewMongoSessionRepository(newTestDB(t))

	first := &domain.Session{UserID: "u1", WorkoutID: "cb", Columns: domain.DefaultColumns, Rows: []domain.Row{}}
	require.NoError(t, repo.Create(ctx, first))
	assert.NotEmpty(t, first.ID)
	assert.False(t, first.CreatedAt.IsZero())
	assert.True(t, first.IsActive())

	active, err := repo.FindLatestActive(ctx, "u1", "cb")
	require.NoError(t, err)
	assert.Equal(t, first.ID, active.ID)

	table := domain.Table{Columns: []string{"name"}, Rows: []domain.Row{{ID: "r1", Values: map[string]string{"name": "Pull-up"}}}}
	require.NoError(t, repo.SaveTable(ctx, first.ID, "u1", table))
	assert.ErrorIs(t, repo.SaveTable(ctx, first.ID, "u2", table), repository.ErrNotFound)

	completedAt, err := repo.Complete(ctx, first.ID, "u1")
	require.NoError(t, err)
	again, err := repo.Complete(ctx, first.ID, "u1")
	require.NoError(t, err)
	assert.Equal(t, completedAt, again)

	_, err = repo.Complete(ctx, first.ID, "u2")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.ErrorIs(t, repo.SaveTable(ctx, first.ID, "u1", table), repository.ErrSessionCompleted)

	_, err = repo.FindLatestActive(ctx, "u1", "cb")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	latest, err := repo.FindLatestCompleted(ctx, "u1", "cb")
	require.NoError(t, err)
	assert.Equal(t, []string{"name"}, latest.Columns)
	assert.Equal(t, "Pull-up", latest.Rows[0].Value("name"))

	second := &domain.Session{UserID: "u1", WorkoutID: "cb", Columns: latest.Columns, Rows: latest.Rows}
	require.NoError(t, repo.Create(ctx, second))
	newest, err := repo.FindLatest(ctx, "u1", "cb")
	require.NoError(t, err)
	assert.Equal(t, second.ID, newest.ID)

	history, err := repo.ListCompleted(ctx, "u1", "cb")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, first.ID, history[0].ID)
}

func TestSessionRepository_CopyAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMongoSessionRepository(newTestDB(t))

	completed := time.Now().UTC().Truncate(time.Millisecond)
	copies := []domain.Session{
		{UserID: "u1", WorkoutID: "cb-copy", CreatedAt: completed.Add(-time.Hour), CompletedAt: &completed, Columns: []string{"name"}, Rows: []domain.Row{}},
		{UserID: "u2", WorkoutID: "cb-copy", CreatedAt: completed, Columns: []string{"name"}, Rows: []domain.Row{}},
	}
	require.NoError(t, repo.InsertMany(ctx, copies))
	assert.NotEmpty(t, copies[0].ID)

	listed, err := repo.ListByWorkout(ctx, "cb-copy")
	require.NoError(t, err)
	require.Len(t, listed, 2)
	assert.Equal(t, "u1", listed[0].UserID)
	assert.True(t, listed[0].CompletedAt.Equal(completed))
	assert.True(t, listed[1].IsActive())

	assert.ErrorIs(t, repo.InsertMany(ctx, copies[:1]), repository.ErrAlreadyExists)

	deleted, err := repo.DeleteByWorkout(ctx, "cb-copy")
	require.NoError(t, err)
	assert.EqualValues(t, 2, deleted)
}

func TestPlanStateRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewMongoPlanStateRepository(newTestDB(t))

	_, err := repo.Get(ctx, "u1")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	entries := []domain.ScheduleEntry{
		{Day: 0, WorkoutID: "cb"},
		{Day: 0, WorkoutID: "ab"},
		{Day: 1, WorkoutID: "plyo"},
	}
	state, err := repo.Init(ctx, "u1", "classic", entries)
	require.NoError(t, err)
	assert.Equal(t, "classic", state.PlanID)
	assert.Len(t, state.Entries, 3)
	assert.False(t, state.StartedAt.IsZero())

	require.NoError(t, repo.SetEntry(ctx, "u1", 0, "cb", true, "s1"))
	assert.ErrorIs(t, repo.SetEntry(ctx, "u1", 5, "cb", true, "s1"), repository.ErrNotFound)
	assert.ErrorIs(t, repo.SetEntry(ctx, "nobody", 0, "cb", true, "s1"), repository.ErrNotFound)

	// A second init keeps progress and the original seed.
	again, err := repo.Init(ctx, "u1", "other", entries[:1])
	require.NoError(t, err)
	assert.Equal(t, "classic", again.PlanID)
	require.Len(t, again.Entries, 3)
	assert.True(t, again.Entries[0].Completed)
	assert.Equal(t, "s1", again.Entries[0].SessionID)
	assert.True(t, again.StartedAt.Equal(state.StartedAt))
	assert.False(t, again.Entries[1].Completed)
}

func TestPlanStateRepository_Watch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	repo := NewMongoPlanStateRepository(newTestDB(t))

	_, err := repo.Init(ctx, "u1", "classic", []domain.ScheduleEntry{{Day: 0, WorkoutID: "cb"}})
	require.NoError(t, err)

	updates, err := repo.Watch(ctx, "u1")
	require.NoError(t, err)

	require.NoError(t, repo.SetEntry(ctx, "u1", 0, "cb", true, "s1"))

	select {
	case state := <-updates:
		require.Len(t, state.Entries, 1)
		assert.True(t, state.Entries[0].Completed)
	case <-time.After(10 * time.Second):
		t.Fatal("no change event")
	}

	cancel()
	assert.Eventually(t, func() bool {
		select {
		case _, open := <-updates:
			return !open
		default:
			return false
		}
	}, 5*time.Second, 20*time.Millisecond)
}

func TestTransactor_RollsBack(t *testing.T) {
	ctx := context.Background()
	db := newTestDB(t)
	workouts := NewMongoWorkoutRepository(db)
	tx := NewTransactor(testClient, true)

	errAbort := errors.New("abort")
	err := tx.WithTransaction(ctx, func(ctx context.Context) error {
		if err := workouts.Insert(ctx, &domain.Workout{ID: "cb", Name: "Chest & Back"}); err != nil {
			return err
		}
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)

	_, err = workouts.GetByID(ctx, "cb")
	assert.ErrorIs(t, err, repository.ErrNotFound)

	require.NoError(t, tx.WithTransaction(ctx, func(ctx context.Context) error {
		return workouts.Insert(ctx, &domain.Workout{ID: "cb", Name: "Chest & Back"})
	}))
	_, err = workouts.GetByID(ctx, "cb")
	assert.NoError(t, err)
}
