// Command clone copies a workout and all of its sessions to a new workout id.
//
//	clone <sourceId> <newWorkoutId>
//
// The copy keeps the source's name. Storage is configured the same way as
// the server (config.yaml or environment).
package main

import (
	"alcyxob/plan-tracker/internal/app"
	"alcyxob/plan-tracker/internal/config"
	"alcyxob/plan-tracker/internal/logging"
	"alcyxob/plan-tracker/internal/metrics"
	"alcyxob/plan-tracker/internal/service"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"
	"go.uber.org/multierr"
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintf(os.Stderr, "usage: %s <sourceId> <newWorkoutId>\n", os.Args[0])
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(".")
	if err != nil {
		log.Fatalf("load config: %s", err)
	}
	logging.Setup(logging.LoggerSetupParams{
		LogToStdout: true,
		LogLevel:    cfg.Log.Level,
	})

	result, err := run(cfg, os.Args[1], os.Args[2])
	if err != nil {
		log.Errorf("clone failed: %s", err)
		os.Exit(1)
	}
	log.Infof("cloned %s -> %s with %d sessions", os.Args[1], result.WorkoutID, result.SessionsCopied)
}

func run(cfg config.Config, sourceID, targetID string) (_ *service.CloneResult, err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	stores, err := app.OpenStores(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	defer func() {
		err = multierr.Append(err, stores.Close())
	}()

	cloneService := service.NewCloneService(
		stores.Workouts,
		stores.Sessions,
		stores.Transactor,
		metrics.NewManager("plan_tracker", "clone", prometheus.NewRegistry()),
	)
	return cloneService.Clone(ctx, service.CloneRequest{
		SourceID: sourceID,
		TargetID: targetID,
	})
}
