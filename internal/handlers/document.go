package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/requestdata"
	"github.com/jcopacetic/lumi/internal/services"
)

type DocumentHandler struct {
	documentService services.DocumentService
	loanService     services.LoanApplicationService
}

func NewDocumentHandler(
	documentService services.DocumentService,
	loanService services.LoanApplicationService,
) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		loanService:     loanService,
	}
}

// Upload accepts one multipart file for an application the caller can access.
func (dh *DocumentHandler) Upload(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	product := c.Param("product")
	applicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	// Scope check: loads the application under the caller's partner.
	if _, err := dh.loanService.Get(c.Request.Context(), rd.PartnerID, rd.IsStaff, product, applicationID); err != nil {
		respondLoanError(c, err, "upload_failed")
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		RespondError(c, http.StatusBadRequest, "missing_file", err)
		return
	}
	documentType := c.PostForm("document_type")

	file, err := fileHeader.Open()
	if err != nil {
		RespondError(c, http.StatusBadRequest, "unreadable_file", err)
		return
	}
	defer file.Close()

	doc, err := dh.documentService.Upload(c.Request.Context(), services.UploadDocumentInput{
		ApplicationID:   applicationID,
		ApplicationType: product,
		DocumentType:    documentType,
		Filename:        fileHeader.Filename,
		ContentType:     fileHeader.Header.Get("Content-Type"),
		SizeBytes:       fileHeader.Size,
		UploadedByID:    rd.UserID,
		File:            file,
	})
	if err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidDocumentType):
			RespondError(c, http.StatusBadRequest, "invalid_document_type", err)
		case errors.Is(err, services.ErrDocumentTooLarge):
			RespondError(c, http.StatusRequestEntityTooLarge, "too_large", err)
		default:
			RespondError(c, http.StatusInternalServerError, "upload_failed", err)
		}
		return
	}
	c.JSON(http.StatusCreated, doc)
}

func (dh *DocumentHandler) List(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())

	product := c.Param("product")
	applicationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	if _, err := dh.loanService.Get(c.Request.Context(), rd.PartnerID, rd.IsStaff, product, applicationID); err != nil {
		respondLoanError(c, err, "list_failed")
		return
	}

	docs, err := dh.documentService.ListByApplication(c.Request.Context(), applicationID)
	if err != nil {
		RespondError(c, http.StatusInternalServerError, "list_failed", err)
		return
	}
	RespondOK(c, gin.H{"documents": docs})
}

func (dh *DocumentHandler) Delete(c *gin.Context) {
	rd := requestdata.GetRequestData(c.Request.Context())
	documentID, err := uuid.Parse(c.Param("document_id"))
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}

	doc, err := dh.documentService.Get(c.Request.Context(), documentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	if _, err := dh.loanService.Get(c.Request.Context(), rd.PartnerID, rd.IsStaff, doc.ApplicationType, doc.ApplicationID); err != nil {
		respondLoanError(c, err, "delete_failed")
		return
	}

	if err := dh.documentService.Delete(c.Request.Context(), documentID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			RespondError(c, http.StatusNotFound, "not_found", err)
			return
		}
		RespondError(c, http.StatusInternalServerError, "delete_failed", err)
		return
	}
	RespondOK(c, gin.H{"message": "document deleted"})
}
