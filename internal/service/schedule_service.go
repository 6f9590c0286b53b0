package service

import (
	"alcyxob/plan-tracker/internal/domain"
	"alcyxob/plan-tracker/internal/metrics"
	"alcyxob/plan-tracker/internal/plan"
	"alcyxob/plan-tracker/internal/repository"
	"alcyxob/plan-tracker/internal/telemetry/tracing"
	"context"
	"errors"
	"sync"

	log "github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel/attribute"
)

// ScheduleService owns a user's plan progression.
type ScheduleService interface {
	// EnsureInitialized creates the user's schedule from templateID (the
	// default template when empty) unless one exists. Never re-seeds.
	EnsureInitialized(ctx context.Context, userID, templateID string) (*domain.UserPlanState, error)
	// View initializes with the default template if needed and returns the read model.
	View(ctx context.Context, userID string) (*domain.ScheduleView, error)
	SetCompleted(ctx context.Context, userID string, day int, workoutID, sessionID string) error
	// ToggleCompleted is the manual override. Un-completing clears the linked session.
	ToggleCompleted(ctx context.Context, userID string, day int, workoutID string, completed bool) error
	// Subscribe streams the user's latest state until unsubscribe is called
	// or ctx is done. The current state, if any, is delivered first.
	Subscribe(ctx context.Context, userID string) (<-chan domain.UserPlanState, func(), error)
}

type scheduleService struct {
	states          repository.PlanStateRepository
	templates       *plan.Registry
	defaultTemplate string
	metrics         *metrics.Manager
}

func NewScheduleService(
	states repository.PlanStateRepository,
	templates *plan.Registry,
	defaultTemplate string,
	metricsManager *metrics.Manager,
) ScheduleService {
	return &scheduleService{
		states:          states,
		templates:       templates,
		defaultTemplate: defaultTemplate,
		metrics:         metricsManager,
	}
}

func (s *scheduleService) EnsureInitialized(ctx context.Context, userID, templateID string) (_ *domain.UserPlanState, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "scheduleService.EnsureInitialized")
	defer func() { tracing.EndSpan(span, err) }()

	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if templateID == "" {
		templateID = s.defaultTemplate
	}
	span.SetAttributes(attribute.String("template", templateID))

	tmpl, err := s.templates.Get(templateID)
	if err != nil {
		return nil, invalidArgument("plan template %q", templateID)
	}
	entries, err := plan.Expand(tmpl)
	if err != nil {
		return nil, invalidArgument("plan template %q: %v", templateID, err)
	}

	state, err := s.states.Init(ctx, userID, tmpl.ID, entries)
	if err != nil {
		return nil, storeError("init plan state", err, nil)
	}
	return state, nil
}

func (s *scheduleService) View(ctx context.Context, userID string) (_ *domain.ScheduleView, err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "scheduleService.View")
	defer func() { tracing.EndSpan(span, err) }()

	state, err := s.EnsureInitialized(ctx, userID, "")
	if err != nil {
		return nil, err
	}
	view := plan.BuildView(*state)
	return &view, nil
}

func (s *scheduleService) SetCompleted(ctx context.Context, userID string, day int, workoutID, sessionID string) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "scheduleService.SetCompleted")
	defer func() { tracing.EndSpan(span, err) }()

	if err := validateEntryKey(userID, day, workoutID); err != nil {
		return err
	}
	return s.setEntry(ctx, userID, day, workoutID, true, sessionID)
}

func (s *scheduleService) ToggleCompleted(ctx context.Context, userID string, day int, workoutID string, completed bool) (err error) {
	ctx, span := tracing.GlobalTracer.Start(ctx, "scheduleService.ToggleCompleted")
	defer func() { tracing.EndSpan(span, err) }()

	if err := validateEntryKey(userID, day, workoutID); err != nil {
		return err
	}

	state, err := s.states.Get(ctx, userID)
	if err != nil {
		return storeError("get plan state", err, ErrPlanNotFound)
	}
	idx := plan.FindEntry(state.Entries, day, workoutID)
	if idx < 0 {
		return ErrScheduleEntryNotFound
	}
	if completed && state.Entries[idx].Completed {
		// Keep the linked session.
		return nil
	}
	return s.setEntry(ctx, userID, day, workoutID, completed, "")
}

func (s *scheduleService) setEntry(ctx context.Context, userID string, day int, workoutID string, completed bool, sessionID string) error {
	if err := s.states.SetEntry(ctx, userID, day, workoutID, completed, sessionID); err != nil {
		return storeError("set schedule entry", err, ErrScheduleEntryNotFound)
	}
	s.metrics.CounterPlanEntriesUpdated.Inc()
	return nil
}

func (s *scheduleService) Subscribe(ctx context.Context, userID string) (<-chan domain.UserPlanState, func(), error) {
	if err := requireUser(userID); err != nil {
		return nil, nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	updates, err := s.states.Watch(ctx, userID)
	if err != nil {
		cancel()
		return nil, nil, storeError("watch plan state", err, nil)
	}

	out := make(chan domain.UserPlanState, 1)
	done := make(chan struct{})
	s.metrics.GaugePlanWatchers.Inc()

	go func() {
		defer close(done)
		defer close(out)
		defer s.metrics.GaugePlanWatchers.Dec()

		current, err := s.states.Get(ctx, userID)
		switch {
		case err == nil:
			repository.SendLatest(out, *current)
		case !errors.Is(err, repository.ErrNotFound) && ctx.Err() == nil:
			log.WithError(err).WithField("userId", userID).Warn("plan subscription: initial read failed")
		}

		for state := range updates {
			repository.SendLatest(out, state)
		}
	}()

	var once sync.Once
	unsubscribe := func() {
		once.Do(func() {
			cancel()
			<-done
			// Drop a value buffered before the cancel.
			for range out {
			}
		})
	}
	return out, unsubscribe, nil
}

func validateEntryKey(userID string, day int, workoutID string) error {
	if err := requireUser(userID); err != nil {
		return err
	}
	if day < 0 {
		return invalidArgument("day must not be negative")
	}
	if workoutID == "" {
		return invalidArgument("workout id is required")
	}
	return nil
}
