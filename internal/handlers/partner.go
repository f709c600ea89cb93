package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/services"
)

type PartnerHandler struct {
	partnerService services.PartnerService
	syncQueue      services.PartnerSyncService
	authService    services.AuthService
	loanService    services.LoanApplicationService
}

func NewPartnerHandler(
	partnerService services.PartnerService,
	syncQueue services.PartnerSyncService,
	authService services.AuthService,
	loanService services.LoanApplicationService,
) *PartnerHandler {
	return &PartnerHandler{
		partnerService: partnerService,
		syncQueue:      syncQueue,
		authService:    authService,
		loanService:    loanService,
	}
}

func (ph *PartnerHandler) Create(c *gin.Context) {
	var input services.CreatePartnerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	partner, err := ph.partnerService.Create(c.Request.Context(), input)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrPartnerEmailExists):
			RespondError(c, http.StatusConflict, "email_exists", err)
		case errors.Is(err, services.ErrInvalidPartnerType):
			RespondError(c, http.StatusBadRequest, "invalid_partner_type", err)
		default:
			RespondError(c, http.StatusInternalServerError, "create_failed", err)
		}
		return
	}
	c.JSON(http.StatusCreated, partner)
}

func (ph *PartnerHandler) List(c *gin.Context) {
	filter := repos.PartnerFilter{
		PartnerType: c.Query("partner_type"),
		Search:      c.Query("search"),
	}
	if raw := c.Query("is_active"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filter.IsActive = &v
		}
	}
	if raw := c.Query("accepted"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			filter.Accepted = &v
		}
	}

	partners, err := ph.partnerService.List(c.Request.Context(), filter)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"partners": partners})
}

func (ph *PartnerHandler) Get(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	partner, err := ph.partnerService.Get(c.Request.Context(), partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}

	applicationStats, err := ph.loanService.PartnerApplicationStats(c.Request.Context(), partnerID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "get_failed", err)
		return
	}
	RespondOK(c, gin.H{
		"partner":           partner,
		"application_stats": applicationStats,
	})
}

func (ph *PartnerHandler) Update(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	var input services.UpdatePartnerInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	partner, err := ph.partnerService.Update(c.Request.Context(), partnerID, input)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			RespondError(c, http.StatusNotFound, "not_found", err)
		case errors.Is(err, services.ErrPartnerEmailExists):
			RespondError(c, http.StatusConflict, "email_exists", err)
		case errors.Is(err, services.ErrInvalidPartnerType):
			RespondError(c, http.StatusBadRequest, "invalid_partner_type", err)
		default:
			RespondError(c, http.StatusInternalServerError, "update_failed", err)
		}
		return
	}
	RespondOK(c, partner)
}

func (ph *PartnerHandler) ToggleActive(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	partner, err := ph.partnerService.ToggleActive(c.Request.Context(), partnerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "toggle_failed", err)
		return
	}
	RespondOK(c, partner)
}

func (ph *PartnerHandler) RegenerateInvite(c *gin.Context) {
	partnerID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	partner, err := ph.partnerService.RegenerateInvite(c.Request.Context(), partnerID)
	if err != nil {
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			RespondError(c, http.StatusNotFound, "not_found", err)
		case errors.Is(err, services.ErrInviteAlreadyAccepted):
			RespondError(c, http.StatusConflict, "already_accepted", err)
		default:
			RespondError(c, http.StatusInternalServerError, "regenerate_failed", err)
		}
		return
	}
	RespondOK(c, partner)
}

// BulkSync re-dispatches HubSpot syncs. With force=true every active partner
// goes; otherwise only those changed since their last sync.
func (ph *PartnerHandler) BulkSync(c *gin.Context) {
	force, _ := strconv.ParseBool(c.Query("force"))
	count, err := ph.syncQueue.BulkSync(c.Request.Context(), force)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "bulk_sync_failed", err)
		return
	}
	RespondOK(c, gin.H{"dispatched": count, "force": force})
}

// ValidateInvite is public: the signup page calls it before rendering.
func (ph *PartnerHandler) ValidateInvite(c *gin.Context) {
	partner, err := ph.partnerService.ValidateInvite(c.Request.Context(), c.Param("token"))
	if err != nil {
		respondInviteError(c, err)
		return
	}
	RespondOK(c, gin.H{
		"company_name": partner.CompanyName,
		"email":        partner.Email,
		"partner_type": partner.PartnerType,
	})
}

// AcceptInvite is public: it turns an invite into a portal user and returns a
// logged-in session.
func (ph *PartnerHandler) AcceptInvite(c *gin.Context) {
	var input services.AcceptInviteInput
	if err := c.ShouldBindJSON(&input); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	user, partner, err := ph.partnerService.AcceptInvite(c.Request.Context(), input)
	if err != nil {
		respondInviteError(c, err)
		return
	}

	token, err := ph.authService.IssueTokens(c.Request.Context(), nil, user)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "token_failed", err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"user":          user,
		"partner":       partner,
		"access_token":  token.AccessToken,
		"refresh_token": token.RefreshToken,
		"expires_at":    token.ExpiresAt,
	})
}

func respondInviteError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInviteNotFound):
		RespondError(c, http.StatusNotFound, "invite_not_found", err)
	case errors.Is(err, services.ErrInviteExpired):
		RespondError(c, http.StatusGone, "invite_expired", err)
	case errors.Is(err, services.ErrInviteAlreadyAccepted):
		RespondError(c, http.StatusConflict, "already_accepted", err)
	case errors.Is(err, services.ErrPartnerDeactivated):
		RespondError(c, http.StatusForbidden, "partner_deactivated", err)
	default:
		RespondError(c, http.StatusInternalServerError, "invite_failed", err)
	}
}
