package types

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	LoanProductMarketing  = "marketing"
	LoanProductRenovation = "renovation"
	LoanProductDeposit    = "deposit"
)

// LoanType defines an available loan product and which partner types may
// offer it. An empty allowed_partner_types list means available to all.
type LoanType struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Code                string         `gorm:"uniqueIndex;not null;column:code" json:"code"`
	Name                string         `gorm:"not null;column:name" json:"name"`
	Description         string         `gorm:"column:description" json:"description"`
	AllowedPartnerTypes datatypes.JSON `gorm:"column:allowed_partner_types" json:"allowed_partner_types"`
	IsActive            bool           `gorm:"not null;default:true;column:is_active" json:"is_active"`
	Order               int            `gorm:"not null;default:0;column:display_order" json:"order"`
	CreatedAt           time.Time      `gorm:"not null;default:now()" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

func (LoanType) TableName() string {
	return "loan_type"
}

// AvailableForPartnerType checks whether a partner of the given type can
// offer this loan product.
func (lt *LoanType) AvailableForPartnerType(partnerType string) bool {
	if len(lt.AllowedPartnerTypes) == 0 {
		return true
	}
	var allowed []string
	if err := json.Unmarshal(lt.AllowedPartnerTypes, &allowed); err != nil {
		return true
	}
	if len(allowed) == 0 {
		return true
	}
	for _, t := range allowed {
		if t == partnerType {
			return true
		}
	}
	return false
}
