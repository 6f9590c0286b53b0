package service

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/repository"
	"context"
	"strconv"
	"testing"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedSessions stores n completed sessions with generated tables for workoutID.
func seedSessions(t *testing.T, env *testEnv, workoutID string, n int) []domain.Session {
	t.Helper()
	ctx := context.Background()
	faker := gofakeit.New(42)

	var out []domain.Session
	for i := 0; i < n; i++ {
		userID := "user-" + strconv.Itoa(i%2)
		s, err := env.sessions.ResumeOrCreate(ctx, userID, workoutID)
		require.NoError(t, err)

		table := s.Table()
		for r := 0; r < 3; r++ {
			row := table.AddRow()
			table.UpdateCell(row.ID, "name", faker.Word())
			table.UpdateCell(row.ID, "reps", strconv.Itoa(faker.Number(5, 15)))
		}
		require.NoError(t, env.sessions.AutoSave(ctx, userID, s.ID, table))
		_, err = env.sessions.Complete(ctx, userID, s.ID)
		require.NoError(t, err)

		stored, err := env.sessions.Get(ctx, userID, s.ID)
		require.NoError(t, err)
		out = append(out, *stored)
	}
	return out
}

func TestCloneService_CopiesWorkoutAndSessions(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	src := &domain.Workout{ID: "cb", Name: "Chest & Back", Order: 1, VideoURL: "videos/cb.mp4", Extra: map[string]interface{}{"coach": "Tony"}}
	require.NoError(t, env.store.Workouts().Insert(ctx, src))
	originals := seedSessions(t, env, "cb", 4)

	result, err := env.clone.Clone(ctx, CloneRequest{SourceID: "cb", TargetID: "cb-copy", Name: "Chest & Back II"})
	require.NoError(t, err)
	assert.Equal(t, "cb-copy", result.WorkoutID)
	assert.Equal(t, 4, result.SessionsCopied)

	copied, err := env.store.Workouts().GetByID(ctx, "cb-copy")
	require.NoError(t, err)
	assert.Equal(t, "Chest & Back II", copied.Name)
	assert.Equal(t, src.Order, copied.Order)
	assert.Equal(t, src.VideoURL, copied.VideoURL)
	assert.Equal(t, "Tony", copied.Extra["coach"])
	assert.True(t, copied.CreatedAt.After(src.CreatedAt))

	copies, err := env.store.Sessions().ListByWorkout(ctx, "cb-copy")
	require.NoError(t, err)
	require.Len(t, copies, len(originals))

	originalIDs := make(map[string]bool)
	for _, o := range originals {
		originalIDs[o.ID] = true
	}
	for i, c := range copies {
		assert.False(t, originalIDs[c.ID], "session id must be fresh")
		assert.Equal(t, "cb-copy", c.WorkoutID)
		assert.Equal(t, originals[i].UserID, c.UserID)
		assert.Equal(t, originals[i].CreatedAt, c.CreatedAt)
		assert.Equal(t, originals[i].CompletedAt, c.CompletedAt)
		assert.Equal(t, originals[i].Columns, c.Columns)
		assert.Equal(t, originals[i].Rows, c.Rows)
	}

	// source untouched
	left, err := env.store.Sessions().ListByWorkout(ctx, "cb")
	require.NoError(t, err)
	assert.Len(t, left, len(originals))
}

func TestCloneService_GeneratedIDKeepsName(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)

	result, err := env.clone.Clone(ctx, CloneRequest{SourceID: "cb"})
	require.NoError(t, err)
	assert.NotEmpty(t, result.WorkoutID)
	assert.NotEqual(t, "cb", result.WorkoutID)
	assert.Zero(t, result.SessionsCopied)

	copied, err := env.store.Workouts().GetByID(ctx, result.WorkoutID)
	require.NoError(t, err)
	assert.Equal(t, "Chest & Back", copied.Name)
}

func TestCloneService_Errors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)
	env.addWorkout(t, "taken", "Taken", 2)

	_, err := env.clone.Clone(ctx, CloneRequest{})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = env.clone.Clone(ctx, CloneRequest{SourceID: "cb", TargetID: "cb"})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = env.clone.Clone(ctx, CloneRequest{SourceID: "missing"})
	assert.ErrorIs(t, err, ErrWorkoutNotFound)

	_, err = env.clone.Clone(ctx, CloneRequest{SourceID: "cb", TargetID: "taken"})
	assert.ErrorIs(t, err, ErrWorkoutExists)

	// the existing workout is not cleaned up as a partial copy
	taken, err := env.store.Workouts().GetByID(ctx, "taken")
	require.NoError(t, err)
	assert.Equal(t, "Taken", taken.Name)
}

func TestCloneService_CompensatesPartialCopy(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)
	seedSessions(t, env, "cb", 2)

	failing := &failingSessions{SessionRepository: env.store.Sessions(), failInsert: errTransient}
	clone := NewCloneService(env.store.Workouts(), failing, env.store.Transactor(), env.metrics)

	_, err := clone.Clone(ctx, CloneRequest{SourceID: "cb", TargetID: "cb-copy"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStoreFailure)

	_, err = env.store.Workouts().GetByID(ctx, "cb-copy")
	assert.ErrorIs(t, err, repository.ErrNotFound)
	copies, err := env.store.Sessions().ListByWorkout(ctx, "cb-copy")
	require.NoError(t, err)
	assert.Empty(t, copies)
}
