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
	"go.uber.org/multierr"
)

// CloneRequest names the source workout and the copy. An empty TargetID gets
// a generated ID; an empty Name keeps the source name.
type CloneRequest struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId,omitempty"`
	Name     string `json:"name,omitempty"`
}

type CloneResult struct {
	WorkoutID      string `json:"workoutId"`
	SessionsCopied int    `json:"sessionsCopied"`
}

// CloneService duplicates a workout together with all of its sessions.
type CloneService interface {
	Clone(ctx context.Context, req CloneRequest) (*CloneResult, error)
}

type cloneService struct {
	workouts repository.WorkoutRepository
	sessions repository.SessionRepository
	tx       repository.Transactor
	metrics  *metrics.Manager
}

func NewCloneService(
	workouts repository.WorkoutRepository,
	sessions repository.SessionRepository,
	tx repository.Transactor,
	metricsManager *metrics.Manager,
) CloneService {
	return &cloneService{
		workouts: workouts,
		sessions: sessions,
		tx:       tx,
		metrics:  metricsManager,
	}
}

func (s *cloneService) Clone(ctx context.Context, req CloneRequest) (_ *CloneResult, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "cloneService.Clone")
	defer func() { tracing.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		s.metrics.HistCloneDuration.Observe(time.Since(start).Seconds())
		result := "ok"
		if err != nil {
			result = "failed"
		}
		s.metrics.CounterClones.WithLabelValues(result).Inc()
	}()

	if req.SourceID == "" {
		return nil, invalidArgument("source workout id is required")
	}
	if req.TargetID != "" && req.TargetID == req.SourceID {
		return nil, invalidArgument("target workout id equals source")
	}
	span.SetAttributes(attribute.String("source", req.SourceID))

	var (
		result   *CloneResult
		inserted string
	)
	err = s.tx.WithTransaction(ctx, func(ctx context.Context) error {
		inserted = ""
		res, err := s.copyAll(ctx, req, &inserted)
		result = res
		return err
	})
	if err == nil {
		log.WithFields(log.Fields{
			"source":   req.SourceID,
			"target":   result.WorkoutID,
			"sessions": result.SessionsCopied,
		}).Info("workout cloned")
		return result, nil
	}

	if inserted != "" {
		err = multierr.Append(err, s.compensate(context.WithoutCancel(ctx), inserted))
	}
	return nil, err
}

func (s *cloneService) copyAll(ctx context.Context, req CloneRequest, inserted *string) (*CloneResult, error) {
	source, err := s.workouts.GetByID(ctx, req.SourceID)
	if err != nil {
		return nil, storeError("get source workout", err, ErrWorkoutNotFound)
	}

	target := &domain.Workout{
		ID:       req.TargetID,
		Name:     source.Name,
		Order:    source.Order,
		VideoURL: source.VideoURL,
	}
	if req.Name != "" {
		target.Name = req.Name
	}
	if len(source.Extra) > 0 {
		target.Extra = make(map[string]interface{}, len(source.Extra))
		for k, v := range source.Extra {
			target.Extra[k] = v
		}
	}
	if err := s.workouts.Insert(ctx, target); err != nil {
		return nil, storeError("insert workout copy", err, nil)
	}
	*inserted = target.ID

	sessions, err := s.sessions.ListByWorkout(ctx, source.ID)
	if err != nil {
		return nil, storeError("list source sessions", err, nil)
	}
	copies := make([]domain.Session, len(sessions))
	for i, session := range sessions {
		c := session
		c.ID = ""
		c.WorkoutID = target.ID
		t := session.Table()
		c.Columns, c.Rows = t.Columns, t.Rows
		copies[i] = c
	}
	if err := s.sessions.InsertMany(ctx, copies); err != nil {
		return nil, storeError("insert session copies", err, nil)
	}

	return &CloneResult{WorkoutID: target.ID, SessionsCopied: len(copies)}, nil
}

// compensate removes a partially written copy. Missing documents are fine:
// a rolled back transaction leaves nothing behind.
func (s *cloneService) compensate(ctx context.Context, workoutID string) error {
	var errs error
	if _, err := s.sessions.DeleteByWorkout(ctx, workoutID); err != nil {
		errs = multierr.Append(errs, storeError("delete session copies", err, nil))
	}
	if err := s.workouts.Delete(ctx, workoutID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		errs = multierr.Append(errs, storeError("delete workout copy", err, nil))
	}
	if errs != nil {
		log.WithError(errs).WithField("target", workoutID).Error("clone cleanup failed")
	}
	return errs
}
