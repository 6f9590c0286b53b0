package service

import (
	"alcyxob/plan-tracker/internal/metrics"
	"context"

	log "github.com/sirupsen/logrus"
)

// PlanAdvancement links a finished session to the user's schedule.
type PlanAdvancement interface {
	OnSessionCompleted(ctx context.Context, userID, workoutID string, day int, sessionID string) error
}

type planAdvancement struct {
	schedule ScheduleService
	metrics  *metrics.Manager
}

func NewPlanAdvancement(schedule ScheduleService, metricsManager *metrics.Manager) PlanAdvancement {
	return &planAdvancement{schedule: schedule, metrics: metricsManager}
}

// OnSessionCompleted marks (day, workoutID) completed with sessionID. The
// error is returned for reporting only; the session stays completed.
func (a *planAdvancement) OnSessionCompleted(ctx context.Context, userID, workoutID string, day int, sessionID string) error {
	err := a.schedule.SetCompleted(ctx, userID, day, workoutID, sessionID)
	if err != nil {
		a.metrics.CounterAdvancementFailed.Inc()
		log.WithError(err).WithFields(log.Fields{
			"userId":    userID,
			"workoutId": workoutID,
			"day":       day,
			"sessionId": sessionID,
		}).Warn("session completed but schedule entry not updated")
	}
	return err
}
