package service

import (
	"alcyxob/plan-tracker/internal/repository"
	"errors"
	"fmt"
)

// --- Error Definitions ---
var (
	ErrWorkoutNotFound       = errors.New("workout not found")
	ErrSessionNotFound       = errors.New("session not found")
	ErrPlanNotFound          = errors.New("plan not initialized")
	ErrScheduleEntryNotFound = errors.New("schedule entry not found")
	ErrNoCompletedSession    = errors.New("no completed session for workout")
	ErrInvalidArgument       = errors.New("invalid argument")
	ErrUnauthenticated       = errors.New("unauthenticated")
	ErrSessionCompleted      = errors.New("session already completed")
	ErrSessionNotCompleted   = errors.New("session not completed yet")
	ErrWorkoutExists         = errors.New("workout already exists")
	ErrExportUnavailable     = errors.New("session export not configured")
	ErrStoreFailure          = errors.New("store unavailable")
)

func invalidArgument(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidArgument, fmt.Sprintf(format, args...))
}

// storeError maps a repository error onto the service taxonomy. notFound is
// returned for repository.ErrNotFound; anything unknown is a store failure.
func storeError(op string, err error, notFound error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound) && notFound != nil:
		return notFound
	case errors.Is(err, repository.ErrSessionCompleted):
		return ErrSessionCompleted
	case errors.Is(err, repository.ErrAlreadyExists):
		return ErrWorkoutExists
	default:
		return fmt.Errorf("%s: %w: %w", op, ErrStoreFailure, err)
	}
}

func requireUser(userID string) error {
	if userID == "" {
		return ErrUnauthenticated
	}
	return nil
}
