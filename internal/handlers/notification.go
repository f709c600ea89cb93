package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jcopacetic/lumi/internal/requestdata"
	"github.com/jcopacetic/lumi/internal/services"
)

type NotificationHandler struct {
	notificationService services.NotificationService
}

func NewNotificationHandler(notificationService services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService}
}

// Panel returns unseen plus recently seen notifications and marks the unseen
// batch as seen.
func (nh *NotificationHandler) Panel(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	panel, err := nh.notificationService.Panel(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "panel_failed", err)
		return
	}
	RespondOK(c, panel)
}

func (nh *NotificationHandler) MarkAllSeen(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if err := nh.notificationService.MarkAllSeen(c.Request.Context(), rd.UserID); err != nil {
		RespondError(c, http.StatusInternalServerError, "mark_all_failed", err)
		return
	}
	RespondOK(c, gin.H{"message": "all notifications marked seen"})
}

func (nh *NotificationHandler) UnseenCount(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	count, err := nh.notificationService.UnseenCount(c.Request.Context(), rd.UserID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "count_failed", err)
		return
	}
	RespondOK(c, gin.H{"unseen_count": count})
}
