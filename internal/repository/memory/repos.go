package memory

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/repository"
	"context"
	"sort"
	"time"
)

type transactor struct{}

func (transactor) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// --- workouts

type workoutRepo struct {
	s *Store
}

func (r *workoutRepo) GetByID(ctx context.Context, id string) (*domain.Workout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	w, ok := r.s.workouts[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	w = copyWorkout(w)
	return &w, nil
}

func (r *workoutRepo) List(ctx context.Context) ([]domain.Workout, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	workouts := make([]domain.Workout, 0, len(r.s.workouts))
	for _, w := range r.s.workouts {
		workouts = append(workouts, copyWorkout(w))
	}
	sort.Slice(workouts, func(i, j int) bool {
		if workouts[i].Order != workouts[j].Order {
			return workouts[i].Order < workouts[j].Order
		}
		return workouts[i].ID < workouts[j].ID
	})
	return workouts, nil
}

func (r *workoutRepo) Insert(ctx context.Context, workout *domain.Workout) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if workout.ID == "" {
		workout.ID = newID()
	}
	if _, exists := r.s.workouts[workout.ID]; exists {
		return repository.ErrAlreadyExists
	}
	workout.CreatedAt = r.s.stamp()
	r.s.workouts[workout.ID] = copyWorkout(*workout)
	return nil
}

func (r *workoutRepo) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.workouts[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.s.workouts, id)
	return nil
}

// --- sessions

type sessionRepo struct {
	s *Store
}

// newer reports whether a sorts before b in createdAt-descending order.
func newer(a, b sessionRecord) bool {
	if !a.session.CreatedAt.Equal(b.session.CreatedAt) {
		return a.session.CreatedAt.After(b.session.CreatedAt)
	}
	return a.seq > b.seq
}

func completedNewer(a, b sessionRecord) bool {
	if !a.session.CompletedAt.Equal(*b.session.CompletedAt) {
		return a.session.CompletedAt.After(*b.session.CompletedAt)
	}
	return a.seq > b.seq
}

// collect returns matching records sorted with less. Caller holds the lock.
func (r *sessionRepo) collect(match func(domain.Session) bool, less func(a, b sessionRecord) bool) []sessionRecord {
	var out []sessionRecord
	for _, rec := range r.s.sessions {
		if match(rec.session) {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	return out
}

func (r *sessionRepo) first(match func(domain.Session) bool, less func(a, b sessionRecord) bool) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	found := r.collect(match, less)
	if len(found) == 0 {
		return nil, repository.ErrNotFound
	}
	s := copySession(found[0].session)
	return &s, nil
}

func (r *sessionRepo) list(match func(domain.Session) bool, less func(a, b sessionRecord) bool) []domain.Session {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	found := r.collect(match, less)
	sessions := make([]domain.Session, len(found))
	for i, rec := range found {
		sessions[i] = copySession(rec.session)
	}
	return sessions
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	s := copySession(rec.session)
	return &s, nil
}

func (r *sessionRepo) FindLatestActive(ctx context.Context, userID, workoutID string) (*domain.Session, error) {
	return r.first(func(s domain.Session) bool {
		return s.UserID == userID && s.WorkoutID == workoutID && s.CompletedAt == nil
	}, newer)
}

func (r *sessionRepo) FindLatest(ctx context.Context, userID, workoutID string) (*domain.Session, error) {
	return r.first(func(s domain.Session) bool {
		return s.UserID == userID && s.WorkoutID == workoutID
	}, newer)
}

func (r *sessionRepo) FindLatestCompleted(ctx context.Context, userID, workoutID string) (*domain.Session, error) {
	return r.first(func(s domain.Session) bool {
		return s.UserID == userID && s.WorkoutID == workoutID && s.CompletedAt != nil
	}, completedNewer)
}

func (r *sessionRepo) ListCompleted(ctx context.Context, userID, workoutID string) ([]domain.Session, error) {
	return r.list(func(s domain.Session) bool {
		return s.UserID == userID && s.WorkoutID == workoutID && s.CompletedAt != nil
	}, completedNewer), nil
}

func (r *sessionRepo) ListByWorkout(ctx context.Context, workoutID string) ([]domain.Session, error) {
	return r.list(func(s domain.Session) bool {
		return s.WorkoutID == workoutID
	}, func(a, b sessionRecord) bool { return newer(b, a) }), nil
}

func (r *sessionRepo) Create(ctx context.Context, session *domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	session.ID = newID()
	session.CreatedAt = r.s.stamp()
	session.CompletedAt = nil
	r.s.sessions[session.ID] = sessionRecord{session: copySession(*session), seq: r.s.nextSeq()}
	return nil
}

func (r *sessionRepo) InsertMany(ctx context.Context, sessions []domain.Session) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for i := range sessions {
		if sessions[i].ID == "" {
			sessions[i].ID = newID()
		}
		if _, exists := r.s.sessions[sessions[i].ID]; exists {
			return repository.ErrAlreadyExists
		}
	}
	for _, s := range sessions {
		r.s.sessions[s.ID] = sessionRecord{session: copySession(s), seq: r.s.nextSeq()}
	}
	return nil
}

func (r *sessionRepo) SaveTable(ctx context.Context, id, userID string, table domain.Table) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.sessions[id]
	if !ok || rec.session.UserID != userID {
		return repository.ErrNotFound
	}
	if rec.session.CompletedAt != nil {
		return repository.ErrSessionCompleted
	}
	t := table.Clone()
	rec.session.Columns, rec.session.Rows = t.Columns, t.Rows
	r.s.sessions[id] = rec
	return nil
}

func (r *sessionRepo) Complete(ctx context.Context, id, userID string) (time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rec, ok := r.s.sessions[id]
	if !ok || rec.session.UserID != userID {
		return time.Time{}, repository.ErrNotFound
	}
	if rec.session.CompletedAt == nil {
		at := r.s.stamp()
		rec.session.CompletedAt = &at
		r.s.sessions[id] = rec
	}
	return *rec.session.CompletedAt, nil
}

func (r *sessionRepo) DeleteByWorkout(ctx context.Context, workoutID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var n int64
	for id, rec := range r.s.sessions {
		if rec.session.WorkoutID == workoutID {
			delete(r.s.sessions, id)
			n++
		}
	}
	return n, nil
}

// --- plan states

type planStateRepo struct {
	s *Store
}

func (r *planStateRepo) Get(ctx context.Context, userID string) (*domain.UserPlanState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	state, ok := r.s.states[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	state = copyState(state)
	return &state, nil
}

func (r *planStateRepo) Init(ctx context.Context, userID, planID string, entries []domain.ScheduleEntry) (*domain.UserPlanState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.stamp()
	state, ok := r.s.states[userID]
	if !ok {
		state = domain.UserPlanState{
			UserID:    userID,
			PlanID:    planID,
			Entries:   append([]domain.ScheduleEntry{}, entries...),
			StartedAt: now,
		}
	}
	state.UpdatedAt = now
	r.s.states[userID] = state
	r.notify(state)

	out := copyState(state)
	return &out, nil
}

func (r *planStateRepo) SetEntry(ctx context.Context, userID string, day int, workoutID string, completed bool, sessionID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	state, ok := r.s.states[userID]
	if !ok {
		return repository.ErrNotFound
	}
	state = copyState(state)
	for i := range state.Entries {
		e := &state.Entries[i]
		if e.Day != day || e.WorkoutID != workoutID {
			continue
		}
		e.Completed = completed
		e.SessionID = sessionID
		state.UpdatedAt = r.s.stamp()
		r.s.states[userID] = state
		r.notify(state)
		return nil
	}
	return repository.ErrNotFound
}

// Watch registers a latest-value channel for userID. The channel is closed
// once ctx is done.
func (r *planStateRepo) Watch(ctx context.Context, userID string) (<-chan domain.UserPlanState, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ch := make(chan domain.UserPlanState, 1)
	id := r.s.nextSeq()
	if r.s.watchers[userID] == nil {
		r.s.watchers[userID] = make(map[int64]chan domain.UserPlanState)
	}
	r.s.watchers[userID][id] = ch

	go func() {
		<-ctx.Done()
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
		delete(r.s.watchers[userID], id)
		if len(r.s.watchers[userID]) == 0 {
			delete(r.s.watchers, userID)
		}
		close(ch)
	}()
	return ch, nil
}

// notify fans state out to watchers. Caller holds the lock, which keeps a
// single sender per channel.
func (r *planStateRepo) notify(state domain.UserPlanState) {
	for _, ch := range r.s.watchers[state.UserID] {
		repository.SendLatest(ch, copyState(state))
	}
}
