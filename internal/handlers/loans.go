package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/requestdata"
	"github.com/jcopacetic/lumi/internal/services"
	"github.com/jcopacetic/lumi/internal/wizard"
)

type LoanHandler struct {
	loanService    services.LoanApplicationService
	partnerService services.PartnerService
}

func NewLoanHandler(
	loanService services.LoanApplicationService,
	partnerService services.PartnerService,
) *LoanHandler {
	return &LoanHandler{
		loanService:    loanService,
		partnerService: partnerService,
	}
}

// partnerType resolves the caller's partner type for product gating. Staff
// with no partner link see everything.
func (lh *LoanHandler) partnerType(c *gin.Context) (string, error) {
	rd := requestdata.GetRequestData(c.Request.Context())
	if rd == nil {
		return "", errors.New("unauthenticated")
	}
	if rd.PartnerID == uuid.Nil {
		return "", nil
	}
	partner, err := lh.partnerService.Get(c.Request.Context(), rd.PartnerID)
	if err != nil {
		return "", err
	}
	return partner.PartnerType, nil
}

func (lh *LoanHandler) LoanTypes(c *gin.Context) {
	partnerType, err := lh.partnerType(c)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "loan_types_failed", err)
		return
	}
	loanTypes, err := lh.loanService.AvailableLoanTypes(c.Request.Context(), partnerType)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "loan_types_failed", err)
		return
	}
	RespondOK(c, gin.H{"loan_types": loanTypes})
}

func (lh *LoanHandler) SaveStep(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	product := c.Param("product")
	step, err := strconv.Atoi(c.Param("step"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_step", err)
		return
	}

	var data wizard.StepData
	if err := c.ShouldBindJSON(&data); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}

	partnerType, err := lh.partnerType(c)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "save_step_failed", err)
		return
	}

	state, err := lh.loanService.SaveStep(c.Request.Context(), rd.UserID, partnerType, product, step, data)
	if err != nil {
		respondLoanError(c, err, "save_step_failed")
		return
	}
	RespondOK(c, state)
}

func (lh *LoanHandler) WizardState(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	state, err := lh.loanService.WizardState(c.Request.Context(), rd.UserID, c.Param("product"))
	if err != nil {
		respondLoanError(c, err, "wizard_state_failed")
		return
	}
	if state == nil {
		RespondOK(c, gin.H{"state": nil})
		return
	}
	RespondOK(c, state)
}

func (lh *LoanHandler) SaveDraft(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	result, err := lh.loanService.SaveDraft(c.Request.Context(), rd.UserID, rd.PartnerID, c.Param("product"))
	if err != nil {
		respondLoanError(c, err, "save_draft_failed")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (lh *LoanHandler) Submit(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	result, err := lh.loanService.Submit(c.Request.Context(), rd.UserID, rd.PartnerID, c.Param("product"))
	if err != nil {
		respondLoanError(c, err, "submit_failed")
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (lh *LoanHandler) FindDrafts(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	var req struct {
		CustomerEmail       string `json:"customer_email" binding:"required,email"`
		CustomerDateOfBirth string `json:"customer_date_of_birth" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	dateOfBirth, err := time.Parse("2006-01-02", req.CustomerDateOfBirth)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_date", err)
		return
	}

	drafts, err := lh.loanService.FindDrafts(c.Request.Context(), rd.PartnerID, c.Param("product"), req.CustomerEmail, dateOfBirth)
	if err != nil {
		respondLoanError(c, err, "find_drafts_failed")
		return
	}
	RespondOK(c, gin.H{"drafts": drafts})
}

func (lh *LoanHandler) ContinueDraft(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	applicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	state, err := lh.loanService.ContinueDraft(c.Request.Context(), rd.UserID, rd.PartnerID, c.Param("product"), applicationID)
	if err != nil {
		respondLoanError(c, err, "continue_draft_failed")
		return
	}
	RespondOK(c, state)
}

func (lh *LoanHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	partnerID := rd.PartnerID
	if rd.IsStaff {
		if raw := c.Query("partner_id"); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				RespondError(c, http.StatusBadRequest, "invalid_partner_id", err)
				return
			}
			partnerID = parsed
		} else {
			partnerID = uuid.Nil
		}
	}

	apps, err := lh.loanService.List(c.Request.Context(), partnerID, c.Param("product"), c.Query("status"))
	if err != nil {
		respondLoanError(c, err, "list_failed")
		return
	}
	RespondOK(c, gin.H{"applications": apps})
}

func (lh *LoanHandler) Get(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	applicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	app, err := lh.loanService.Get(c.Request.Context(), rd.PartnerID, rd.IsStaff, c.Param("product"), applicationID)
	if err != nil {
		respondLoanError(c, err, "get_failed")
		return
	}
	RespondOK(c, app)
}

func respondLoanError(c *gin.Context, err error, fallbackCode string) {
	switch {
	case errors.Is(err, services.ErrUnknownProduct):
		RespondError(c, http.StatusNotFound, "unknown_product", err)
	case errors.Is(err, services.ErrProductNotAvailable):
		RespondError(c, http.StatusForbidden, "product_not_available", err)
	case errors.Is(err, services.ErrWizardEmpty):
		RespondError(c, http.StatusBadRequest, "wizard_empty", err)
	case errors.Is(err, services.ErrApplicationNotDraft):
		RespondError(c, http.StatusConflict, "not_draft", err)
	case errors.Is(err, services.ErrApplicationForbidden):
		RespondError(c, http.StatusForbidden, "forbidden", err)
	case errors.Is(err, gorm.ErrRecordNotFound):
		RespondError(c, http.StatusNotFound, "not_found", err)
	default:
		RespondError(c, http.StatusInternalServerError, fallbackCode, err)
	}
}
