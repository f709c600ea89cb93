package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/jcopacetic/lumi/internal/db"
	"github.com/jcopacetic/lumi/internal/fieldcrypt"
	"github.com/jcopacetic/lumi/internal/handlers"
	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/middleware"
	"github.com/jcopacetic/lumi/internal/observability"
	"github.com/jcopacetic/lumi/internal/realtime"
	"github.com/jcopacetic/lumi/internal/realtime/bus"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/sendgrid"
	"github.com/jcopacetic/lumi/internal/server"
	"github.com/jcopacetic/lumi/internal/services"
	"github.com/jcopacetic/lumi/internal/temporalx"
	"github.com/jcopacetic/lumi/internal/utils"
	"github.com/jcopacetic/lumi/internal/wizard"
	"github.com/jcopacetic/lumi/internal/ws"
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
		ServiceName: "lumi-api",
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
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up Repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	userTokenRepo := repos.NewUserTokenRepo(thePG, log)
	partnerRepo := repos.NewPartnerRepo(thePG, log)
	loanTypeRepo := repos.NewLoanTypeRepo(thePG, log)
	marketingRepo := repos.NewMarketingApplicationRepo(thePG, log)
	renovationRepo := repos.NewRenovationApplicationRepo(thePG, log)
	depositRepo := repos.NewDepositApplicationRepo(thePG, log)
	documentRepo := repos.NewDocumentRepo(thePG, log)
	notificationRepo := repos.NewNotificationRepo(thePG, log)

	// Temporal
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Fatal("Temporal init failed", "error", err)
	}
	if temporalClient != nil {
		defer temporalClient.Close()
	}

	// Realtime
	log.Info("Setting up realtime hub and bus from main...")
	hub := ws.NewHub(log)
	eventBus, err := bus.NewRedisBus(log)
	if err != nil {
		log.Fatal("Redis bus init failed", "error", err)
	}
	defer eventBus.Close()
	if err := eventBus.StartForwarder(context.Background(), func(m realtime.Message) {
		hub.Broadcast(m.Group, m)
	}); err != nil {
		log.Fatal("Redis bus forwarder failed", "error", err)
	}

	// Wizard store
	wizardStore, err := wizard.NewStore(log)
	if err != nil {
		log.Fatal("Wizard store init failed", "error", err)
	}
	defer wizardStore.Close()

	// Field encryption
	crypt, err := fieldcrypt.New(log)
	if err != nil {
		log.Fatal("Field encryption init failed", "error", err)
	}

	// Outbound clients
	mailClient, err := sendgrid.NewFromEnv(log)
	if err != nil {
		log.Warn("SendGrid disabled", "error", err)
		mailClient = nil
	}

	// Services
	log.Info("Setting up Services from main...")
	authService, err := services.NewAuthService(log, thePG, userRepo, userTokenRepo)
	if err != nil {
		log.Fatal("Could not init AuthService", "error", err)
	}
	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Fatal("Could not init BucketService", "error", err)
	}
	syncQueue := services.NewPartnerSyncService(log, temporalClient, partnerRepo)
	mailer := services.NewInviteMailer(log, mailClient)
	notificationService := services.NewNotificationService(log, notificationRepo, eventBus)
	partnerService := services.NewPartnerService(log, thePG, partnerRepo, authService, mailer, syncQueue, notificationService)
	loanService := services.NewLoanApplicationService(
		log,
		thePG,
		loanTypeRepo,
		marketingRepo,
		renovationRepo,
		depositRepo,
		wizardStore,
		crypt,
		notificationService,
	)
	documentService := services.NewDocumentService(log, documentRepo, bucketService)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	partnerHandler := handlers.NewPartnerHandler(partnerService, syncQueue, authService, loanService)
	loanHandler := handlers.NewLoanHandler(loanService, partnerService)
	documentHandler := handlers.NewDocumentHandler(documentService, loanService)
	notificationHandler := handlers.NewNotificationHandler(notificationService)
	managerHandler := handlers.NewManagerHandler(partnerService, loanService, notificationService)
	wsHandler := handlers.NewWSHandler(log, hub, authService)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:         authHandler,
		AuthMiddleware:      authMiddleware,
		PartnerHandler:      partnerHandler,
		LoanHandler:         loanHandler,
		DocumentHandler:     documentHandler,
		NotificationHandler: notificationHandler,
		ManagerHandler:      managerHandler,
		WSHandler:           wsHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	log.Info("Server listening", "port", port)
	if err := router.Run(":" + port); err != nil {
		log.Fatal("Server failed", "error", err)
	}
}
