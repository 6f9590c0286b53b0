package service

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/metrics"
	"alcyxob/plan-tracker/internal/repository"
	"alcyxob/plan-tracker/internal/telemetry/tracing"
	"context"
	"errors"
	"time"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// CompletionResult reports a finished session and, when a plan day was
// given, whether the schedule followed.
type CompletionResult struct {
	Session     *domain.Session `json:"session"`
	CompletedAt time.Time       `json:"completedAt"`
	PlanUpdated bool            `json:"planUpdated"`
	PlanError   string          `json:"planError,omitempty"`
}

type SessionService interface {
	// ListWorkouts returns the workout catalog ordered by "order".
	ListWorkouts(ctx context.Context) ([]domain.Workout, error)
	GetWorkout(ctx context.Context, workoutID string) (*domain.Workout, error)

	// ResumeOrCreate returns the newest active session of the user for the
	// workout, or creates one seeded from the newest session of any state.
	ResumeOrCreate(ctx context.Context, userID, workoutID string) (*domain.Session, error)
	// Get returns a session owned by userID.
	Get(ctx context.Context, userID, sessionID string) (*domain.Session, error)
	// AutoSave overwrites the session table with a full snapshot.
	AutoSave(ctx context.Context, userID, sessionID string, table domain.Table) error
	// ApplyEdits runs table edits against the stored table and saves the result.
	ApplyEdits(ctx context.Context, userID, sessionID string, edits []domain.TableEdit) (*domain.Session, error)
	// Complete stamps completedAt once; later calls return the first stamp.
	Complete(ctx context.Context, userID, sessionID string) (time.Time, error)
	// Finish completes the session and, for a non-nil day, advances the plan.
	Finish(ctx context.Context, userID, sessionID string, day *int) (*CompletionResult, error)
	// RestoreLayout returns the table of the newest completed session.
	RestoreLayout(ctx context.Context, userID, workoutID string) (domain.Table, error)
	// History lists completed sessions, newest completion first.
	History(ctx context.Context, userID, workoutID string) ([]domain.Session, error)
}

type sessionService struct {
	workouts    repository.WorkoutRepository
	sessions    repository.SessionRepository
	advancement PlanAdvancement
	metrics     *metrics.Manager
}

func NewSessionService(
	workouts repository.WorkoutRepository,
	sessions repository.SessionRepository,
	advancement PlanAdvancement,
	metricsManager *metrics.Manager,
) SessionService {
	return &sessionService{
		workouts:    workouts,
		sessions:    sessions,
		advancement: advancement,
		metrics:     metricsManager,
	}
}

func (s *sessionService) ListWorkouts(ctx context.Context) ([]domain.Workout, error) {
	workouts, err := s.workouts.List(ctx)
	if err != nil {
		return nil, storeError("list workouts", err, nil)
	}
	return workouts, nil
}

func (s *sessionService) GetWorkout(ctx context.Context, workoutID string) (*domain.Workout, error) {
	if workoutID == "" {
		return nil, invalidArgument("workout id is required")
	}
	workout, err := s.workouts.GetByID(ctx, workoutID)
	if err != nil {
		return nil, storeError("get workout", err, ErrWorkoutNotFound)
	}
	return workout, nil
}

func (s *sessionService) ResumeOrCreate(ctx context.Context, userID, workoutID string) (_ *domain.Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sessionService.ResumeOrCreate")
	defer func() { tracing.EndSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	// Catalog documents are optional; plan template ids start sessions too.
	if workoutID == "" {
		return nil, invalidArgument("workout id is required")
	}
	span.SetAttributes(attribute.String("workout", workoutID))

	active, err := s.sessions.FindLatestActive(ctx, userID, workoutID)
	if err == nil {
		return active, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storeError("find active session", err, nil)
	}

	// Two concurrent calls may both get here and create a session each.
	// Later lookups pick the newest one.
	table := domain.NewDefaultTable()
	latest, err := s.sessions.FindLatest(ctx, userID, workoutID)
	switch {
	case err == nil:
		table = latest.Table()
	case !errors.Is(err, repository.ErrNotFound):
		return nil, storeError("find latest session", err, nil)
	}

	session := &domain.Session{
		UserID:    userID,
		WorkoutID: workoutID,
		Columns:   table.Columns,
		Rows:      table.Rows,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, storeError("create session", err, nil)
	}
	s.metrics.CounterSessionsCreated.Inc()
	log.WithFields(log.Fields{
		"userId":    userID,
		"workoutId": workoutID,
		"sessionId": session.ID,
		"seeded":    latest != nil,
	}).Debug("session created")
	return session, nil
}

func (s *sessionService) Get(ctx context.Context, userID, sessionID string) (*domain.Session, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if sessionID == "" {
		return nil, invalidArgument("session id is required")
	}
	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, storeError("get session", err, ErrSessionNotFound)
	}
	if session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	return session, nil
}

func (s *sessionService) AutoSave(ctx context.Context, userID, sessionID string, table domain.Table) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sessionService.AutoSave")
	defer func() { tracing.EndSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return err
	}
	if sessionID == "" {
		return invalidArgument("session id is required")
	}
	table, err = normalizeTable(table)
	if err != nil {
		return err
	}
	if err := s.sessions.SaveTable(ctx, sessionID, userID, table); err != nil {
		return storeError("save session table", err, ErrSessionNotFound)
	}
	return nil
}

func (s *sessionService) ApplyEdits(ctx context.Context, userID, sessionID string, edits []domain.TableEdit) (_ *domain.Session, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sessionService.ApplyEdits")
	defer func() { tracing.EndSpan(span, err) }()

	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !session.IsActive() {
		return nil, ErrSessionCompleted
	}

	table := session.Table()
	for i, edit := range edits {
		if err := table.Apply(edit); err != nil {
			return nil, invalidArgument("edit %d: %v", i, err)
		}
	}
	if err := s.AutoSave(ctx, userID, sessionID, table); err != nil {
		return nil, err
	}
	session.Columns, session.Rows = table.Columns, table.Rows
	return session, nil
}

func (s *sessionService) Complete(ctx context.Context, userID, sessionID string) (_ time.Time, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sessionService.Complete")
	defer func() { tracing.EndSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return time.Time{}, err
	}
	if sessionID == "" {
		return time.Time{}, invalidArgument("session id is required")
	}
	completedAt, err := s.sessions.Complete(ctx, sessionID, userID)
	if err != nil {
		return time.Time{}, storeError("complete session", err, ErrSessionNotFound)
	}
	s.metrics.CounterSessionsCompleted.Inc()
	return completedAt, nil
}

func (s *sessionService) Finish(ctx context.Context, userID, sessionID string, day *int) (_ *CompletionResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "sessionService.Finish")
	defer func() { tracing.EndSpan(span, err) }()

	if day != nil && *day < 0 {
		return nil, invalidArgument("day must not be negative")
	}
	session, err := s.Get(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	completedAt, err := s.Complete(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}
	session.CompletedAt = &completedAt

	result := &CompletionResult{Session: session, CompletedAt: completedAt}
	if day == nil {
		return result, nil
	}
	if err := s.advancement.OnSessionCompleted(ctx, userID, session.WorkoutID, *day, sessionID); err != nil {
		result.PlanError = err.Error()
		return result, nil
	}
	result.PlanUpdated = true
	return result, nil
}

func (s *sessionService) RestoreLayout(ctx context.Context, userID, workoutID string) (domain.Table, error) {
	if err := requireUser(userID); err != nil {
		return domain.Table{}, err
	}
	if workoutID == "" {
		return domain.Table{}, invalidArgument("workout id is required")
	}
	session, err := s.sessions.FindLatestCompleted(ctx, userID, workoutID)
	if err != nil {
		return domain.Table{}, storeError("find completed session", err, ErrNoCompletedSession)
	}
	return session.Table(), nil
}

func (s *sessionService) History(ctx context.Context, userID, workoutID string) ([]domain.Session, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if workoutID == "" {
		return nil, invalidArgument("workout id is required")
	}
	sessions, err := s.sessions.ListCompleted(ctx, userID, workoutID)
	if err != nil {
		return nil, storeError("list completed sessions", err, nil)
	}
	return sessions, nil
}

// normalizeTable rejects empty or repeated column names and rows without an
// ID, and replaces nil slices and maps with empty ones.
func normalizeTable(t domain.Table) (domain.Table, error) {
	out := domain.Table{Columns: []string{}, Rows: []domain.Row{}}
	for _, c := range t.Columns {
		if !out.AddColumn(c) {
			return domain.Table{}, invalidArgument("column %q is empty or repeated", c)
		}
	}
	seen := make(map[string]struct{}, len(t.Rows))
	for _, r := range t.Rows {
		if r.ID == "" {
			return domain.Table{}, invalidArgument("row without id")
		}
		if _, dup := seen[r.ID]; dup {
			return domain.Table{}, invalidArgument("row %q is repeated", r.ID)
		}
		seen[r.ID] = struct{}{}
		values := make(map[string]string, len(r.Values))
		for k, v := range r.Values {
			values[k] = v
		}
		out.Rows = append(out.Rows, domain.Row{ID: r.ID, Values: values})
	}
	return out, nil
}
