package types

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	ApplicationStatusDraft       = "draft"
	ApplicationStatusSubmitted   = "submitted"
	ApplicationStatusUnderReview = "under_review"
	ApplicationStatusApproved    = "approved"
	ApplicationStatusRejected    = "rejected"
	ApplicationStatusWithdrawn   = "withdrawn"
)

// ApplicationStatuses lists every status an application can hold, in
// lifecycle order.
var ApplicationStatuses = []string{
	ApplicationStatusDraft,
	ApplicationStatusSubmitted,
	ApplicationStatusUnderReview,
	ApplicationStatusApproved,
	ApplicationStatusRejected,
	ApplicationStatusWithdrawn,
}

// LoanApplicationBase carries the fields shared by every loan product:
// customer identity and NZ address, income and employment, loan amount and
// purpose, and the status lifecycle. IRDNumber holds the encrypted token,
// never the plaintext.
type LoanApplicationBase struct {
	ID                  uuid.UUID      `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	PartnerID           uuid.UUID      `gorm:"type:uuid;not null;index:idx_partner_status;column:partner_id" json:"partner_id"`
	Partner             *Partner       `gorm:"constraint:OnDelete:CASCADE;foreignKey:PartnerID;references:ID" json:"-"`
	CustomerEmail       string         `gorm:"not null;index:idx_customer_lookup;column:customer_email" json:"customer_email"`
	CustomerDateOfBirth datatypes.Date `gorm:"not null;index:idx_customer_lookup;column:customer_date_of_birth" json:"customer_date_of_birth"`
	FirstName           string         `gorm:"not null;column:first_name" json:"first_name"`
	LastName            string         `gorm:"not null;column:last_name" json:"last_name"`
	PhoneNumber         string         `gorm:"column:phone_number" json:"phone_number"`
	StreetAddress       string         `gorm:"column:street_address" json:"street_address"`
	Suburb              string         `gorm:"column:suburb" json:"suburb"`
	City                string         `gorm:"column:city" json:"city"`
	Postcode            string         `gorm:"column:postcode" json:"postcode"`
	Region              string         `gorm:"column:region" json:"region"`
	AnnualIncome        float64        `gorm:"type:numeric(12,2);column:annual_income" json:"annual_income"`
	EmploymentStatus    string         `gorm:"column:employment_status" json:"employment_status"`
	EmployerName        string         `gorm:"column:employer_name" json:"employer_name"`
	IRDNumber           string         `gorm:"column:ird_number" json:"-"`
	LoanAmount          float64        `gorm:"type:numeric(12,2);column:loan_amount" json:"loan_amount"`
	LoanPurpose         string         `gorm:"column:loan_purpose" json:"loan_purpose"`
	Status              string         `gorm:"not null;default:draft;index:idx_partner_status;column:status" json:"status"`
	InternalNotes       string         `gorm:"column:internal_notes" json:"-"`
	SubmittedAt         *time.Time     `gorm:"column:submitted_at" json:"submitted_at"`
	CreatedAt           time.Time      `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt           time.Time      `gorm:"not null;default:now()" json:"updated_at"`
}

// Base exposes the shared fields for code that is generic over the three
// product structs.
func (a *LoanApplicationBase) Base() *LoanApplicationBase {
	return a
}

// MarketingLoanApplication funds business promotional activity.
type MarketingLoanApplication struct {
	LoanApplicationBase
	BusinessName               string   `gorm:"column:business_name" json:"business_name"`
	BusinessType               string   `gorm:"column:business_type" json:"business_type"`
	YearsInBusiness            int      `gorm:"column:years_in_business" json:"years_in_business"`
	NZBN                       string   `gorm:"column:nzbn" json:"nzbn"`
	CampaignDescription        string   `gorm:"column:campaign_description" json:"campaign_description"`
	ExpectedROI                string   `gorm:"column:expected_roi" json:"expected_roi"`
	TargetAudience             string   `gorm:"column:target_audience" json:"target_audience"`
	DigitalMarketingBudget     *float64 `gorm:"type:numeric(12,2);column:digital_marketing_budget" json:"digital_marketing_budget"`
	TraditionalMarketingBudget *float64 `gorm:"type:numeric(12,2);column:traditional_marketing_budget" json:"traditional_marketing_budget"`
	GSTRegistered              bool     `gorm:"not null;default:false;column:gst_registered" json:"gst_registered"`
}

func (MarketingLoanApplication) TableName() string {
	return "marketing_loan_application"
}

// RenovationLoanApplication funds property improvements.
type RenovationLoanApplication struct {
	LoanApplicationBase
	PropertyAddress              string  `gorm:"column:property_address" json:"property_address"`
	PropertySuburb               string  `gorm:"column:property_suburb" json:"property_suburb"`
	PropertyCity                 string  `gorm:"column:property_city" json:"property_city"`
	PropertyPostcode             string  `gorm:"column:property_postcode" json:"property_postcode"`
	PropertyRegion               string  `gorm:"column:property_region" json:"property_region"`
	PropertyType                 string  `gorm:"column:property_type" json:"property_type"`
	PropertyOwnership            string  `gorm:"column:property_ownership" json:"property_ownership"`
	RenovationDescription        string  `gorm:"column:renovation_description" json:"renovation_description"`
	RenovationType               string  `gorm:"column:renovation_type" json:"renovation_type"`
	EstimatedPropertyValueBefore float64 `gorm:"type:numeric(12,2);column:estimated_property_value_before" json:"estimated_property_value_before"`
	EstimatedPropertyValueAfter  float64 `gorm:"type:numeric(12,2);column:estimated_property_value_after" json:"estimated_property_value_after"`
	BuildingConsentRequired      bool    `gorm:"not null;default:false;column:building_consent_required" json:"building_consent_required"`
	BuildingConsentObtained      bool    `gorm:"not null;default:false;column:building_consent_obtained" json:"building_consent_obtained"`
	ContractorQuotesObtained     bool    `gorm:"not null;default:false;column:contractor_quotes_obtained" json:"contractor_quotes_obtained"`
	ContractorName               string  `gorm:"column:contractor_name" json:"contractor_name"`
	ContractorLicensed           bool    `gorm:"not null;default:false;column:contractor_licensed" json:"contractor_licensed"`
}

func (RenovationLoanApplication) TableName() string {
	return "renovation_loan_application"
}

// DepositLoanApplication funds a deposit on a property purchase.
type DepositLoanApplication struct {
	LoanApplicationBase
	PropertyAddress           string   `gorm:"column:property_address" json:"property_address"`
	PropertySuburb            string   `gorm:"column:property_suburb" json:"property_suburb"`
	PropertyCity              string   `gorm:"column:property_city" json:"property_city"`
	PropertyPostcode          string   `gorm:"column:property_postcode" json:"property_postcode"`
	PropertyRegion            string   `gorm:"column:property_region" json:"property_region"`
	PropertyType              string   `gorm:"column:property_type" json:"property_type"`
	PurchasePrice             float64  `gorm:"type:numeric(12,2);column:purchase_price" json:"purchase_price"`
	DepositAmountRequired     float64  `gorm:"type:numeric(12,2);column:deposit_amount_required" json:"deposit_amount_required"`
	IsFirstHomeBuyer          bool     `gorm:"not null;default:false;column:is_first_home_buyer" json:"is_first_home_buyer"`
	FirstHomeGrantApproved    bool     `gorm:"not null;default:false;column:first_home_grant_approved" json:"first_home_grant_approved"`
	FirstHomeLoanApproved     bool     `gorm:"not null;default:false;column:first_home_loan_approved" json:"first_home_loan_approved"`
	PropertyIdentified        bool     `gorm:"not null;default:false;column:property_identified" json:"property_identified"`
	HasExistingMortgage       bool     `gorm:"not null;default:false;column:has_existing_mortgage" json:"has_existing_mortgage"`
	ExistingMortgageBalance   *float64 `gorm:"type:numeric(12,2);column:existing_mortgage_balance" json:"existing_mortgage_balance"`
	KiwisaverWithdrawalAmount *float64 `gorm:"type:numeric(12,2);column:kiwisaver_withdrawal_amount" json:"kiwisaver_withdrawal_amount"`
	OtherDepositSources       string   `gorm:"column:other_deposit_sources" json:"other_deposit_sources"`
	MortgagePreApproval       bool     `gorm:"not null;default:false;column:mortgage_pre_approval" json:"mortgage_pre_approval"`
	MortgagePreApprovalAmount *float64 `gorm:"type:numeric(12,2);column:mortgage_pre_approval_amount" json:"mortgage_pre_approval_amount"`
}

func (DepositLoanApplication) TableName() string {
	return "deposit_loan_application"
}
