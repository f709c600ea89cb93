package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jcopacetic/lumi/internal/services"
)

// ManagerHandler serves the staff dashboard.
type ManagerHandler struct {
	partnerService      services.PartnerService
	loanService         services.LoanApplicationService
	notificationService services.NotificationService
}

func NewManagerHandler(
	partnerService services.PartnerService,
	loanService services.LoanApplicationService,
	notificationService services.NotificationService,
) *ManagerHandler {
	return &ManagerHandler{
		partnerService:      partnerService,
		loanService:         loanService,
		notificationService: notificationService,
	}
}

// Dashboard aggregates partner and application stats plus recent activity.
func (mh *ManagerHandler) Dashboard(c *gin.Context) {
	partnerStats, err := mh.partnerService.Stats(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "stats_failed", err)
		return
	}

	applicationStats, err := mh.loanService.AdminStats(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "stats_failed", err)
		return
	}

	limit := 10
	if raw := c.Query("recent_limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil && v > 0 {
			limit = v
		}
	}
	recent, err := mh.loanService.Recent(c.Request.Context(), limit)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "stats_failed", err)
		return
	}

	RespondOK(c, gin.H{
		"partners":            partnerStats,
		"applications":        applicationStats,
		"recent_applications": recent,
	})
}

// CleanupNotifications archives notifications seen more than 90 days ago.
func (mh *ManagerHandler) CleanupNotifications(c *gin.Context) {
	archived, err := mh.notificationService.CleanupOldSeen(c.Request.Context())
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "cleanup_failed", err)
		return
	}
	RespondOK(c, gin.H{"archived": archived})
}
