package server

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/jcopacetic/lumi/internal/handlers"
	"github.com/jcopacetic/lumi/internal/middleware"
	"github.com/jcopacetic/lumi/internal/utils"
)

type RouterConfig struct {
	AuthHandler         *handlers.AuthHandler
	AuthMiddleware      *middleware.AuthMiddleware
	PartnerHandler      *handlers.PartnerHandler
	LoanHandler         *handlers.LoanHandler
	DocumentHandler     *handlers.DocumentHandler
	NotificationHandler *handlers.NotificationHandler
	ManagerHandler      *handlers.ManagerHandler
	WSHandler           *handlers.WSHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()
	router.Use(otelgin.Middleware("lumi-api"))

	allowedOrigins := strings.Split(utils.GetEnv(
		"CORS_ALLOWED_ORIGINS",
		"http://localhost:3000,http://localhost:5173",
		nil,
	), ",")
	router.Use(cors.New(cors.Config{
		AllowOrigins:     allowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// ===============
	// || Public    ||
	// ===============
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/login", cfg.AuthHandler.Login)
	router.POST("/refresh", cfg.AuthHandler.Refresh)
	router.GET("/partners/invite/:token", cfg.PartnerHandler.ValidateInvite)
	router.POST("/partners/accept-invite", cfg.PartnerHandler.AcceptInvite)

	// WebSocket auth runs inside the handler so it can close with
	// application codes instead of failing the handshake.
	router.GET("/ws/partners/:partner_id", cfg.WSHandler.Serve)

	// ===============
	// || Protected ||
	// ===============
	protected := router.Group("/")
	protected.Use(cfg.AuthMiddleware.RequireAuth())

	protected.POST("/logout", cfg.AuthHandler.Logout)

	protected.GET("/notifications/panel", cfg.NotificationHandler.Panel)
	protected.POST("/notifications/mark-all-seen", cfg.NotificationHandler.MarkAllSeen)
	protected.GET("/notifications/unseen-count", cfg.NotificationHandler.UnseenCount)

	partnerScoped := protected.Group("/")
	partnerScoped.Use(cfg.AuthMiddleware.RequirePartner())

	partnerScoped.GET("/loan-types", cfg.LoanHandler.LoanTypes)

	applications := partnerScoped.Group("/applications/:product")
	{
		applications.GET("", cfg.LoanHandler.List)
		applications.GET("/wizard", cfg.LoanHandler.WizardState)
		applications.POST("/wizard/steps/:step", cfg.LoanHandler.SaveStep)
		applications.POST("/draft", cfg.LoanHandler.SaveDraft)
		applications.POST("/submit", cfg.LoanHandler.Submit)
		applications.POST("/find-drafts", cfg.LoanHandler.FindDrafts)
		applications.POST("/continue/:id", cfg.LoanHandler.ContinueDraft)
		applications.GET("/:id", cfg.LoanHandler.Get)
		applications.POST("/:id/documents", cfg.DocumentHandler.Upload)
		applications.GET("/:id/documents", cfg.DocumentHandler.List)
	}
	partnerScoped.DELETE("/documents/:document_id", cfg.DocumentHandler.Delete)

	// ===============
	// || Admin     ||
	// ===============
	admin := protected.Group("/admin")
	admin.Use(cfg.AuthMiddleware.RequireStaff())
	{
		admin.GET("/dashboard", cfg.ManagerHandler.Dashboard)
		admin.POST("/notifications/cleanup", cfg.ManagerHandler.CleanupNotifications)

		admin.POST("/partners", cfg.PartnerHandler.Create)
		admin.GET("/partners", cfg.PartnerHandler.List)
		admin.GET("/partners/:id", cfg.PartnerHandler.Get)
		admin.PATCH("/partners/:id", cfg.PartnerHandler.Update)
		admin.POST("/partners/:id/toggle-active", cfg.PartnerHandler.ToggleActive)
		admin.POST("/partners/:id/regenerate-invite", cfg.PartnerHandler.RegenerateInvite)
		admin.POST("/partners/sync", cfg.PartnerHandler.BulkSync)
	}

	return router
}
