package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/types"
)

// maxDocumentSize caps a single uploaded document.
const maxDocumentSize = 20 << 20

var (
	ErrDocumentTooLarge    = errors.New("document exceeds the 20MB limit")
	ErrInvalidDocumentType = errors.New("invalid document type")
)

// UploadDocumentInput describes one supporting file upload.
type UploadDocumentInput struct {
	ApplicationID   uuid.UUID
	ApplicationType string
	DocumentType    string
	Filename        string
	ContentType     string
	SizeBytes       int64
	UploadedByID    uuid.UUID
	File            io.Reader
}

type DocumentService interface {
	Upload(ctx context.Context, input UploadDocumentInput) (*types.ApplicationDocument, error)
	Get(ctx context.Context, documentID uuid.UUID) (*types.ApplicationDocument, error)
	ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*types.ApplicationDocument, error)
	// Delete removes the database row and the stored object.
	Delete(ctx context.Context, documentID uuid.UUID) error
}

type documentService struct {
	log       *logger.Logger
	documents repos.DocumentRepo
	bucket    BucketService
}

func NewDocumentService(
	log *logger.Logger,
	documents repos.DocumentRepo,
	bucket BucketService,
) DocumentService {
	return &documentService{
		log:       log.With("service", "DocumentService"),
		documents: documents,
		bucket:    bucket,
	}
}

func validDocumentType(documentType string) bool {
	switch documentType {
	case types.DocumentTypeID, types.DocumentTypeIncome, types.DocumentTypeBankStatement,
		types.DocumentTypeIRDSummary, types.DocumentTypeQuote, types.DocumentTypeValuation,
		types.DocumentTypeBuildingConsent, types.DocumentTypeKiwisaver, types.DocumentTypeFirstHomeGrant,
		types.DocumentTypeMortgagePreapproval, types.DocumentTypeRatesNotice, types.DocumentTypeTitle,
		types.DocumentTypeOther:
		return true
	default:
		return false
	}
}

func (s *documentService) Upload(ctx context.Context, input UploadDocumentInput) (*types.ApplicationDocument, error) {
	if !validDocumentType(input.DocumentType) {
		return nil, ErrInvalidDocumentType
	}
	if input.SizeBytes > maxDocumentSize {
		return nil, ErrDocumentTooLarge
	}

	ext := strings.ToLower(path.Ext(input.Filename))
	key := fmt.Sprintf("applications/%s/%s/%s%s", input.ApplicationID, input.DocumentType, uuid.NewString(), ext)

	if err := s.bucket.UploadFile(ctx, key, input.File, input.ContentType); err != nil {
		return nil, err
	}

	uploadedByID := input.UploadedByID
	doc := &types.ApplicationDocument{
		ApplicationID:   input.ApplicationID,
		ApplicationType: input.ApplicationType,
		DocumentType:    input.DocumentType,
		BucketKey:       key,
		PublicURL:       s.bucket.GetPublicURL(key),
		Filename:        input.Filename,
		ContentType:     input.ContentType,
		SizeBytes:       input.SizeBytes,
	}
	if uploadedByID != uuid.Nil {
		doc.UploadedByID = &uploadedByID
	}

	created, err := s.documents.Create(ctx, nil, []*types.ApplicationDocument{doc})
	if err != nil {
		// Don't strand the uploaded object when the row fails.
		if cleanupErr := s.bucket.DeleteFile(ctx, key); cleanupErr != nil {
			s.log.Error("Failed to remove orphaned upload", "bucket_key", key, "error", cleanupErr)
		}
		return nil, err
	}

	s.log.Info("Document uploaded",
		"document_id", created[0].ID,
		"application_id", input.ApplicationID,
		"document_type", input.DocumentType,
		"size_bytes", input.SizeBytes,
	)
	return created[0], nil
}

func (s *documentService) Get(ctx context.Context, documentID uuid.UUID) (*types.ApplicationDocument, error) {
	return s.documents.GetByID(ctx, nil, documentID)
}

func (s *documentService) ListByApplication(ctx context.Context, applicationID uuid.UUID) ([]*types.ApplicationDocument, error) {
	return s.documents.ListByApplication(ctx, nil, applicationID)
}

func (s *documentService) Delete(ctx context.Context, documentID uuid.UUID) error {
	doc, err := s.documents.GetByID(ctx, nil, documentID)
	if err != nil {
		return err
	}
	if err := s.documents.Delete(ctx, nil, documentID); err != nil {
		return err
	}
	if err := s.bucket.DeleteFile(ctx, doc.BucketKey); err != nil {
		s.log.Error("Failed to delete stored object", "bucket_key", doc.BucketKey, "error", err)
	}
	return nil
}
