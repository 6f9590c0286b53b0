// Package memory keeps every repository in process memory. It backs the
// "memory" database driver and the service tests.
package memory

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/repository"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Store holds workouts, sessions and plan states behind one lock.
type Store struct {
	mu  sync.Mutex
	now func() time.Time
	seq int64

	workouts map[string]domain.Workout
	sessions map[string]sessionRecord
	states   map[string]domain.UserPlanState
	watchers map[string]map[int64]chan domain.UserPlanState
}

type sessionRecord struct {
	session domain.Session
	seq     int64 // insertion order, breaks createdAt ties
}

type Option func(*Store)

// WithClock replaces the store clock used for generated timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		now:      time.Now,
		workouts: make(map[string]domain.Workout),
		sessions: make(map[string]sessionRecord),
		states:   make(map[string]domain.UserPlanState),
		watchers: make(map[string]map[int64]chan domain.UserPlanState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Workouts() repository.WorkoutRepository {
	return &workoutRepo{s}
}

func (s *Store) Sessions() repository.SessionRepository {
	return &sessionRepo{s}
}

func (s *Store) PlanStates() repository.PlanStateRepository {
	return &planStateRepo{s}
}

// Transactor runs the unit of work directly. Writes already made are not
// undone on failure; callers compensate.
func (s *Store) Transactor() repository.Transactor {
	return transactor{}
}

func (s *Store) stamp() time.Time {
	return s.now().UTC()
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

func newID() string {
	return uuid.NewString()
}

func copySession(in domain.Session) domain.Session {
	out := in
	t := in.Table()
	out.Columns, out.Rows = t.Columns, t.Rows
	if in.CompletedAt != nil {
		at := *in.CompletedAt
		out.CompletedAt = &at
	}
	return out
}

func copyState(in domain.UserPlanState) domain.UserPlanState {
	out := in
	out.Entries = append([]domain.ScheduleEntry{}, in.Entries...)
	return out
}

func copyWorkout(in domain.Workout) domain.Workout {
	out := in
	if in.Extra != nil {
		out.Extra = make(map[string]interface{}, len(in.Extra))
		for k, v := range in.Extra {
			out.Extra[k] = v
		}
	}
	return out
}
