package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	DocumentTypeID                  = "id"
	DocumentTypeIncome              = "income"
	DocumentTypeBankStatement       = "bank_statement"
	DocumentTypeIRDSummary          = "ird_summary"
	DocumentTypeQuote               = "quote"
	DocumentTypeValuation           = "valuation"
	DocumentTypeBuildingConsent     = "building_consent"
	DocumentTypeKiwisaver           = "kiwisaver"
	DocumentTypeFirstHomeGrant      = "first_home_grant"
	DocumentTypeMortgagePreapproval = "mortgage_preapproval"
	DocumentTypeRatesNotice         = "rates_notice"
	DocumentTypeTitle               = "title"
	DocumentTypeOther               = "other"
)

// ApplicationDocument records one uploaded supporting file. ApplicationID and
// ApplicationType form a soft reference across the three application tables;
// BucketKey locates the object in cloud storage.
type ApplicationDocument struct {
	ID              uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	ApplicationID   uuid.UUID  `gorm:"type:uuid;not null;index;column:application_id" json:"application_id"`
	ApplicationType string     `gorm:"not null;column:application_type" json:"application_type"`
	DocumentType    string     `gorm:"not null;column:document_type" json:"document_type"`
	BucketKey       string     `gorm:"not null;column:bucket_key" json:"-"`
	PublicURL       string     `gorm:"column:public_url" json:"public_url"`
	Filename        string     `gorm:"not null;column:filename" json:"filename"`
	ContentType     string     `gorm:"column:content_type" json:"content_type"`
	SizeBytes       int64      `gorm:"column:size_bytes" json:"size_bytes"`
	UploadedByID    *uuid.UUID `gorm:"type:uuid;column:uploaded_by_id" json:"uploaded_by_id"`
	UploadedBy      *User      `gorm:"constraint:OnDelete:SET NULL;foreignKey:UploadedByID;references:ID" json:"-"`
	UploadedAt      time.Time  `gorm:"not null;default:now();column:uploaded_at" json:"uploaded_at"`
}

func (ApplicationDocument) TableName() string {
	return "application_document"
}
