package sync

import (
	"github.com/jcopacetic/lumi/internal/types"
)

// Decision is the minimal sync job a partner change requires.
type Decision int

const (
	SyncNone Decision = iota
	SyncContact
	SyncCompany
	SyncFull
)

func (d Decision) String() string {
	switch d {
	case SyncContact:
		return "contact"
	case SyncCompany:
		return "company"
	case SyncFull:
		return "full"
	default:
		return "none"
	}
}

// Snapshot holds the sync-relevant partner fields captured before a save.
type Snapshot struct {
	Email                   string
	PrimaryContactFirstName string
	PrimaryContactLastName  string
	PrimaryContactPhone     string
	CompanyName             string
	CompanyPhone            string
	CompanyEmail            string
	PartnerType             string
	IsActive                bool
}

// Take captures the sync-relevant fields of a partner row.
func Take(p *types.Partner) Snapshot {
	return Snapshot{
		Email:                   p.Email,
		PrimaryContactFirstName: p.PrimaryContactFirstName,
		PrimaryContactLastName:  p.PrimaryContactLastName,
		PrimaryContactPhone:     p.PrimaryContactPhone,
		CompanyName:             p.CompanyName,
		CompanyPhone:            p.CompanyPhone,
		CompanyEmail:            p.CompanyEmail,
		PartnerType:             p.PartnerType,
		IsActive:                p.IsActive,
	}
}

const (
	fieldEmail            = "email"
	fieldContactFirstName = "primary_contact_first_name"
	fieldContactLastName  = "primary_contact_last_name"
	fieldContactPhone     = "primary_contact_phone"
	fieldCompanyName      = "company_name"
	fieldCompanyPhone     = "company_phone"
	fieldCompanyEmail     = "company_email"
	fieldPartnerType      = "partner_type"
	fieldIsActive         = "is_active"
)

// contactFields and companyFields define which changes touch the HubSpot
// contact vs company record. partner_type and is_active belong to both.
var contactFields = map[string]bool{
	fieldEmail:            true,
	fieldContactFirstName: true,
	fieldContactLastName:  true,
	fieldContactPhone:     true,
	fieldPartnerType:      true,
	fieldIsActive:         true,
}

var companyFields = map[string]bool{
	fieldCompanyName:  true,
	fieldCompanyPhone: true,
	fieldCompanyEmail: true,
	fieldPartnerType:  true,
	fieldIsActive:     true,
}

// Diff lists the sync-relevant fields that differ between two snapshots.
func Diff(before, after Snapshot) []string {
	var changed []string
	if before.Email != after.Email {
		changed = append(changed, fieldEmail)
	}
	if before.PrimaryContactFirstName != after.PrimaryContactFirstName {
		changed = append(changed, fieldContactFirstName)
	}
	if before.PrimaryContactLastName != after.PrimaryContactLastName {
		changed = append(changed, fieldContactLastName)
	}
	if before.PrimaryContactPhone != after.PrimaryContactPhone {
		changed = append(changed, fieldContactPhone)
	}
	if before.CompanyName != after.CompanyName {
		changed = append(changed, fieldCompanyName)
	}
	if before.CompanyPhone != after.CompanyPhone {
		changed = append(changed, fieldCompanyPhone)
	}
	if before.CompanyEmail != after.CompanyEmail {
		changed = append(changed, fieldCompanyEmail)
	}
	if before.PartnerType != after.PartnerType {
		changed = append(changed, fieldPartnerType)
	}
	if before.IsActive != after.IsActive {
		changed = append(changed, fieldIsActive)
	}
	return changed
}

// Classify maps a changed-field list onto the minimal sync decision.
func Classify(changed []string) Decision {
	contactChanged := false
	companyChanged := false
	for _, f := range changed {
		if contactFields[f] {
			contactChanged = true
		}
		if companyFields[f] {
			companyChanged = true
		}
	}
	switch {
	case contactChanged && companyChanged:
		return SyncFull
	case contactChanged:
		return SyncContact
	case companyChanged:
		return SyncCompany
	default:
		return SyncNone
	}
}

// Decide resolves what to dispatch for one partner save.
//
//   - created: full sync
//   - no prior snapshot: full sync as a precaution
//   - otherwise: diff + classify
//
// The returned field list is empty for the created/no-snapshot cases.
func Decide(created bool, before *Snapshot, after Snapshot) (Decision, []string) {
	if created {
		return SyncFull, nil
	}
	if before == nil {
		return SyncFull, nil
	}
	changed := Diff(*before, after)
	return Classify(changed), changed
}
