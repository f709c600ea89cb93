package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jcopacetic/lumi/internal/db"
	"github.com/jcopacetic/lumi/internal/hubspot"
	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/observability"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/temporalx"
	"github.com/jcopacetic/lumi/internal/temporalx/temporalworker"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "lumi-worker",
		Environment: os.Getenv("ENVIRONMENT"),
		Version:     os.Getenv("SERVICE_VERSION"),
	})
	if otelShutdown != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(ctx)
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	partnerRepo := repos.NewPartnerRepo(postgresService.DB(), log)

	// HubSpot
	hubspotClient, err := hubspot.NewFromEnv(log)
	if err != nil {
		log.Warn("HubSpot disabled; sync activities will fail terminally", "error", err)
		hubspotClient = nil
	}

	// Temporal
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Fatal("Temporal init failed", "error", err)
	}
	if temporalClient == nil {
		log.Fatal("TEMPORAL_ADDRESS is required for the worker")
	}
	defer temporalClient.Close()

	runner, err := temporalworker.NewRunner(log, temporalClient, partnerRepo, hubspotClient)
	if err != nil {
		log.Fatal("Temporal worker init failed", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.Start(ctx); err != nil {
		log.Fatal("Temporal worker failed to start", "error", err)
	}

	<-ctx.Done()
	log.Info("Shutting down worker")
}
