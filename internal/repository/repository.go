package repository

import (
	"alcyxob/plan-tracker/internal/domain"
	"context"
	"time"
)

// Error constants for repository layer
var (
	ErrNotFound         = RepositoryError("not found")
	ErrAlreadyExists    = RepositoryError("already exists")
	ErrSessionCompleted = RepositoryError("session already completed")
)

// RepositoryError helps distinguish repository errors
type RepositoryError string

func (e RepositoryError) Error() string {
	return string(e)
}

// WorkoutRepository stores workout template documents.
type WorkoutRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Workout, error)
	List(ctx context.Context) ([]domain.Workout, error) // Ordered by "order"
	// Insert stores the workout under its ID with a store-generated createdAt.
	// Returns ErrAlreadyExists when the ID is taken.
	Insert(ctx context.Context, workout *domain.Workout) error
	Delete(ctx context.Context, id string) error
}

// SessionRepository stores logging sessions.
// "Latest" lookups order by createdAt, newest first.
type SessionRepository interface {
	GetByID(ctx context.Context, id string) (*domain.Session, error)
	FindLatestActive(ctx context.Context, userID, workoutID string) (*domain.Session, error)
	FindLatest(ctx context.Context, userID, workoutID string) (*domain.Session, error)
	// FindLatestCompleted orders by completedAt, newest first.
	FindLatestCompleted(ctx context.Context, userID, workoutID string) (*domain.Session, error)
	ListCompleted(ctx context.Context, userID, workoutID string) ([]domain.Session, error)
	ListByWorkout(ctx context.Context, workoutID string) ([]domain.Session, error)

	// Create stores a new active session; ID and createdAt are assigned here.
	Create(ctx context.Context, session *domain.Session) error
	// InsertMany stores copies as they are, keeping their timestamps.
	InsertMany(ctx context.Context, sessions []domain.Session) error
	// SaveTable overwrites columns and rows of an active session owned by userID.
	SaveTable(ctx context.Context, id, userID string, table domain.Table) error
	// Complete stamps completedAt once and returns the stored value.
	Complete(ctx context.Context, id, userID string) (time.Time, error)
	DeleteByWorkout(ctx context.Context, workoutID string) (int64, error)
}

// PlanStateRepository stores one UserPlanState per user.
type PlanStateRepository interface {
	Get(ctx context.Context, userID string) (*domain.UserPlanState, error)
	// Init creates the state with the given entries unless one exists,
	// in which case only updatedAt is touched. Returns the stored state.
	Init(ctx context.Context, userID, planID string, entries []domain.ScheduleEntry) (*domain.UserPlanState, error)
	// SetEntry updates the (day, workoutID) entry. ErrNotFound when the
	// state or the entry is missing.
	SetEntry(ctx context.Context, userID string, day int, workoutID string, completed bool, sessionID string) error
	// Watch delivers the latest state after each change until ctx is done.
	Watch(ctx context.Context, userID string) (<-chan domain.UserPlanState, error)
}

// Transactor runs fn as one unit of work where the store supports it.
type Transactor interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// SendLatest puts state on a buffered(1) channel without blocking, replacing
// an undelivered older value. The caller must be the only sender.
func SendLatest(ch chan domain.UserPlanState, state domain.UserPlanState) {
	select {
	case ch <- state:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	ch <- state
}
