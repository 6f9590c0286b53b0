package app

import (
	"alcyxob/plan-tracker/internal/config"
	"alcyxob/plan-tracker/internal/repository"
	"alcyxob/plan-tracker/internal/repository/memory"
	"alcyxob/plan-tracker/internal/repository/mongo"
	"context"
	"fmt"
	"time"

	log "github.com/sirupsen/logrus"
)

// Stores bundles the repositories of the configured driver.
type Stores struct {
	Workouts   repository.WorkoutRepository
	Sessions   repository.SessionRepository
	PlanStates repository.PlanStateRepository
	Transactor repository.Transactor

	close func() error
}

// Close releases the underlying connection, if any.
func (s *Stores) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// OpenStores connects to the database named by cfg.Driver. For mongo it also
// makes sure the indexes exist.
func OpenStores(ctx context.Context, cfg config.DatabaseConfig) (*Stores, error) {
	switch cfg.Driver {
	case config.DriverMemory:
		log.Warn("using the in-memory store, data is lost on exit")
		store := memory.NewStore()
		return &Stores{
			Workouts:   store.Workouts(),
			Sessions:   store.Sessions(),
			PlanStates: store.PlanStates(),
			Transactor: store.Transactor(),
		}, nil

	case config.DriverMongo:
		client, err := mongo.ConnectDB(cfg.URI)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		db := client.Database(cfg.Name)

		indexCtx, cancel := context.WithTimeout(ctx, time.Minute)
		defer cancel()
		if err := mongo.EnsureIndexes(indexCtx, db); err != nil {
			// Queries still work without indexes, just slower.
			log.WithError(err).Error("ensure indexes")
		}

		log.WithFields(log.Fields{
			"database":     cfg.Name,
			"transactions": cfg.Transactions,
		}).Info("connected to mongo")
		return &Stores{
			Workouts:   mongo.NewMongoWorkoutRepository(db),
			Sessions:   mongo.NewMongoSessionRepository(db),
			PlanStates: mongo.NewMongoPlanStateRepository(db),
			Transactor: mongo.NewTransactor(client, cfg.Transactions),
			close: func() error {
				return mongo.DisconnectDB(client)
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
