package service

import (
	"alcyxob/plan-tracker/internal/domain"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionService_ResumeOrCreate(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)

	// first-ever session gets the default layout
	first, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultColumns, first.Columns)
	assert.Empty(t, first.Rows)
	assert.Nil(t, first.CompletedAt)
	assert.False(t, first.CreatedAt.IsZero())

	// an active session is resumed
	again, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)
	assert.Equal(t, first.ID, again.ID)

	// other users get their own session
	other, err := env.sessions.ResumeOrCreate(ctx, "u2", "cb")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)
}

func TestSessionService_SeedsFromLatestSession(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)

	first, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)

	table := first.Table()
	table.AddColumn("notes")
	row := table.AddRow()
	table.UpdateCell(row.ID, "name", "Pull-up")
	require.NoError(t, env.sessions.AutoSave(ctx, "u1", first.ID, table))

	_, err = env.sessions.Complete(ctx, "u1", first.ID)
	require.NoError(t, err)

	next, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, next.ID)
	assert.Nil(t, next.CompletedAt)
	assert.Equal(t, []string{"name", "sets", "reps", "weight", "notes"}, next.Columns)
	require.Len(t, next.Rows, 1)
	assert.Equal(t, "Pull-up", next.Rows[0].Value("name"))

	// the copy is by value: editing the new session leaves the old one alone
	edited := next.Table()
	edited.UpdateCell(row.ID, "name", "Chin-up")
	require.NoError(t, env.sessions.AutoSave(ctx, "u1", next.ID, edited))

	old, err := env.sessions.Get(ctx, "u1", first.ID)
	require.NoError(t, err)
	assert.Equal(t, "Pull-up", old.Rows[0].Value("name"))
}

func TestSessionService_ResumeOrCreateErrors(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.sessions.ResumeOrCreate(ctx, "", "cb")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = env.sessions.ResumeOrCreate(ctx, "u1", "")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSessionService_ResumeOrCreateWithoutCatalogEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// plan template ids work with an empty workout catalog
	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)
	assert.Equal(t, "cb", s.WorkoutID)
	assert.Equal(t, domain.DefaultColumns, s.Columns)
	assert.Empty(t, s.Rows)

	_, err = env.sessions.GetWorkout(ctx, "cb")
	assert.ErrorIs(t, err, ErrWorkoutNotFound)
}

func TestSessionService_AutoSaveThenResume(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)

	table := domain.Table{
		Columns: []string{"name", "weight"},
		Rows: []domain.Row{
			{ID: "row_1", Values: map[string]string{"name": "Pull-up", "weight": "0"}},
			{ID: "row_2", Values: map[string]string{"name": "Row", "weight": "40"}},
		},
	}
	require.NoError(t, env.sessions.AutoSave(ctx, "u1", s.ID, table))

	resumed, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)
	assert.Equal(t, s.ID, resumed.ID)
	assert.Equal(t, table, resumed.Table())
	assert.Nil(t, resumed.CompletedAt)
}

func TestSessionService_AutoSaveIsIdempotentSnapshot(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)

	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)

	table := domain.Table{
		Columns: []string{"name", "reps"},
		Rows:    []domain.Row{{ID: "row_1", Values: map[string]string{"name": "Dips", "reps": "12"}}},
	}
	require.NoError(t, env.sessions.AutoSave(ctx, "u1", s.ID, table))
	require.NoError(t, env.sessions.AutoSave(ctx, "u1", s.ID, table))

	got, err := env.sessions.Get(ctx, "u1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, table.Columns, got.Columns)
	assert.Equal(t, table.Rows, got.Rows)
	assert.Equal(t, s.CreatedAt, got.CreatedAt)
	assert.Equal(t, "cb", got.WorkoutID)
	assert.Nil(t, got.CompletedAt)
}

func TestSessionService_AutoSaveRejects(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)

	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)

	err = env.sessions.AutoSave(ctx, "u1", s.ID, domain.Table{Columns: []string{"a", "a"}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = env.sessions.AutoSave(ctx, "u1", s.ID, domain.Table{Rows: []domain.Row{{}}})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	err = env.sessions.AutoSave(ctx, "u2", s.ID, domain.NewDefaultTable())
	assert.ErrorIs(t, err, ErrSessionNotFound)

	_, err = env.sessions.Complete(ctx, "u1", s.ID)
	require.NoError(t, err)
	err = env.sessions.AutoSave(ctx, "u1", s.ID, domain.NewDefaultTable())
	assert.ErrorIs(t, err, ErrSessionCompleted)
}

func TestSessionService_CompleteKeepsFirstTimestamp(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)

	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)

	at1, err := env.sessions.Complete(ctx, "u1", s.ID)
	require.NoError(t, err)
	at2, err := env.sessions.Complete(ctx, "u1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, at1, at2)

	_, err = env.sessions.Complete(ctx, "u1", "nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_ApplyEdits(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)

	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)

	updated, err := env.sessions.ApplyEdits(ctx, "u1", s.ID, []domain.TableEdit{
		{Op: domain.EditAddColumn, Name: "tempo"},
		{Op: domain.EditAddRow},
		{Op: domain.EditDeleteColumn, Name: "reps"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"name", "sets", "weight", "tempo"}, updated.Columns)
	require.Len(t, updated.Rows, 1)

	rowID := updated.Rows[0].ID
	updated, err = env.sessions.ApplyEdits(ctx, "u1", s.ID, []domain.TableEdit{
		{Op: domain.EditUpdateCell, RowID: rowID, Column: "tempo", Value: "3-1-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "3-1-1", updated.Rows[0].Value("tempo"))

	stored, err := env.sessions.Get(ctx, "u1", s.ID)
	require.NoError(t, err)
	assert.Equal(t, updated.Rows, stored.Rows)

	_, err = env.sessions.ApplyEdits(ctx, "u1", s.ID, []domain.TableEdit{{Op: "explode"}})
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestSessionService_FinishAdvancesPlan(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)

	_, err := env.schedule.EnsureInitialized(ctx, "u1", "")
	require.NoError(t, err)

	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)

	day := 0
	result, err := env.sessions.Finish(ctx, "u1", s.ID, &day)
	require.NoError(t, err)
	assert.True(t, result.PlanUpdated)
	assert.Empty(t, result.PlanError)
	require.NotNil(t, result.Session.CompletedAt)

	state, err := env.store.PlanStates().Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, domain.ScheduleEntry{Day: 0, WorkoutID: "cb", Completed: true, SessionID: s.ID}, state.Entries[0])
}

func TestSessionService_FinishKeepsCompletionWhenPlanFails(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)

	_, err := env.schedule.EnsureInitialized(ctx, "u1", "")
	require.NoError(t, err)

	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)

	// "cb" is not scheduled on day 1
	day := 1
	result, err := env.sessions.Finish(ctx, "u1", s.ID, &day)
	require.NoError(t, err)
	assert.False(t, result.PlanUpdated)
	assert.Contains(t, result.PlanError, ErrScheduleEntryNotFound.Error())

	stored, err := env.sessions.Get(ctx, "u1", s.ID)
	require.NoError(t, err)
	assert.NotNil(t, stored.CompletedAt)
}

func TestSessionService_FinishAdvancesPlanWithoutCatalogEntry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.schedule.EnsureInitialized(ctx, "u1", "")
	require.NoError(t, err)

	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)

	day := 0
	result, err := env.sessions.Finish(ctx, "u1", s.ID, &day)
	require.NoError(t, err)
	assert.True(t, result.PlanUpdated)
	assert.Equal(t, s.ID, result.Session.ID)
	require.NotNil(t, result.Session.CompletedAt)

	stored, err := env.sessions.Get(ctx, "u1", s.ID)
	require.NoError(t, err)
	assert.True(t, stored.CompletedAt.Equal(*result.Session.CompletedAt))

	state, err := env.store.PlanStates().Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, state.Entries[0].Completed)
	assert.Equal(t, s.ID, state.Entries[0].SessionID)
}

func TestSessionService_FinishWithoutDay(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)

	s, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)

	result, err := env.sessions.Finish(ctx, "u1", s.ID, nil)
	require.NoError(t, err)
	assert.False(t, result.PlanUpdated)
	assert.Empty(t, result.PlanError)

	_, err = env.store.PlanStates().Get(ctx, "u1")
	assert.Error(t, err, "no plan side effect")
}

func TestSessionService_RestoreLayoutAndHistory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "cb", "Chest & Back", 1)

	_, err := env.sessions.RestoreLayout(ctx, "u1", "cb")
	assert.ErrorIs(t, err, ErrNoCompletedSession)

	s1, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)
	_, err = env.sessions.Complete(ctx, "u1", s1.ID)
	require.NoError(t, err)

	s2, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)
	table := s2.Table()
	table.AddColumn("rpe")
	require.NoError(t, env.sessions.AutoSave(ctx, "u1", s2.ID, table))
	_, err = env.sessions.Complete(ctx, "u1", s2.ID)
	require.NoError(t, err)

	// active session is not part of the layout or history
	s3, err := env.sessions.ResumeOrCreate(ctx, "u1", "cb")
	require.NoError(t, err)
	require.NoError(t, env.sessions.AutoSave(ctx, "u1", s3.ID, domain.Table{Columns: []string{"x"}}))

	layout, err := env.sessions.RestoreLayout(ctx, "u1", "cb")
	require.NoError(t, err)
	assert.Contains(t, layout.Columns, "rpe")
	assert.NotContains(t, layout.Columns, "x")

	history, err := env.sessions.History(ctx, "u1", "cb")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, s2.ID, history[0].ID)
	assert.Equal(t, s1.ID, history[1].ID)

	_, err = env.sessions.Get(ctx, "u2", s1.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestSessionService_ListWorkoutsByOrder(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.addWorkout(t, "plyo", "Plyometrics", 2)
	env.addWorkout(t, "cb", "Chest & Back", 1)

	workouts, err := env.sessions.ListWorkouts(ctx)
	require.NoError(t, err)
	require.Len(t, workouts, 2)
	assert.Equal(t, "cb", workouts[0].ID)
	assert.Equal(t, "plyo", workouts[1].ID)
}
