package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	PartnerTypeRealEstate     = "real_estate"
	PartnerTypeFamilyOffice   = "family_office"
	PartnerTypeMortgageBroker = "mortgage_broker"
)

// PartnerTypeDisplay returns the human-readable label sent to HubSpot for the
// partner_type property.
func PartnerTypeDisplay(partnerType string) string {
	switch partnerType {
	case PartnerTypeRealEstate:
		return "Real Estate"
	case PartnerTypeFamilyOffice:
		return "Family Office"
	case PartnerTypeMortgageBroker:
		return "Mortgage Broker"
	default:
		return partnerType
	}
}

// InviteExpiry is how long a partner invite token stays valid.
const InviteExpiry = 7 * 24 * time.Hour

type Partner struct {
	ID                      uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Email                   string     `gorm:"uniqueIndex;not null;column:email" json:"email"`
	PrimaryContactFirstName string     `gorm:"column:primary_contact_first_name" json:"primary_contact_first_name"`
	PrimaryContactLastName  string     `gorm:"column:primary_contact_last_name" json:"primary_contact_last_name"`
	PrimaryContactPhone     string     `gorm:"column:primary_contact_phone" json:"primary_contact_phone"`
	CompanyName             string     `gorm:"not null;column:company_name" json:"company_name"`
	CompanyPhone            string     `gorm:"column:company_phone" json:"company_phone"`
	CompanyEmail            string     `gorm:"column:company_email" json:"company_email"`
	PartnerType             string     `gorm:"not null;index;column:partner_type" json:"partner_type"`
	IsActive                bool       `gorm:"not null;default:true;column:is_active" json:"is_active"`
	InviteToken             uuid.UUID  `gorm:"type:uuid;uniqueIndex;column:invite_token" json:"-"`
	InviteSentAt            *time.Time `gorm:"column:invite_sent_at" json:"invite_sent_at"`
	AcceptedAt              *time.Time `gorm:"column:accepted_at" json:"accepted_at"`
	HubspotContactID        string     `gorm:"column:hubspot_contact_id" json:"hubspot_contact_id"`
	HubspotCompanyID        string     `gorm:"column:hubspot_company_id" json:"hubspot_company_id"`
	LastSyncedAt            *time.Time `gorm:"column:last_synced_at" json:"last_synced_at"`
	CreatedAt               time.Time  `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt               time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Partner) TableName() string {
	return "partner"
}

// HasAccepted reports whether a user has completed signup for this partner.
func (p *Partner) HasAccepted() bool {
	return p.AcceptedAt != nil
}

// InviteExpired reports whether the current invite token is past its window.
func (p *Partner) InviteExpired(now time.Time) bool {
	if p.InviteSentAt == nil {
		return true
	}
	return now.After(p.InviteSentAt.Add(InviteExpiry))
}

// CompanyDomain extracts the company domain used as the HubSpot natural key.
// Empty when the partner has no company email.
func (p *Partner) CompanyDomain() string {
	email := p.CompanyEmail
	for i := len(email) - 1; i >= 0; i-- {
		if email[i] == '@' {
			return email[i+1:]
		}
	}
	return ""
}
