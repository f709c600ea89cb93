package partnersync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/hubspot"
	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/types"
)

type Activities struct {
	Log      *logger.Logger
	Partners repos.PartnerRepo
	HubSpot  hubspot.Client
}

func terminal(msg string, cause error) error {
	return temporal.NewNonRetryableApplicationError(msg, TerminalError, cause)
}

func (a *Activities) loadPartner(ctx context.Context, partnerID string) (*types.Partner, error) {
	if a == nil || a.Partners == nil {
		return nil, terminal("partner sync activity not configured", nil)
	}
	if a.HubSpot == nil {
		return nil, terminal("hubspot client not configured", nil)
	}

	id, err := uuid.Parse(partnerID)
	if err != nil || id == uuid.Nil {
		return nil, terminal(fmt.Sprintf("invalid partner id %q", partnerID), err)
	}

	partner, err := a.Partners.GetByID(ctx, nil, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, terminal(fmt.Sprintf("partner %s not found", partnerID), err)
		}
		return nil, fmt.Errorf("load partner %s: %w", partnerID, err)
	}
	return partner, nil
}

func contactProperties(p *types.Partner) map[string]string {
	props := map[string]string{
		"email":        p.Email,
		"firstname":    p.PrimaryContactFirstName,
		"lastname":     p.PrimaryContactLastName,
		"phone":        p.PrimaryContactPhone,
		"partner_type": types.PartnerTypeDisplay(p.PartnerType),
		"company":      p.CompanyName,
	}
	if p.HasAccepted() {
		props["partner_accepted_at"] = p.AcceptedAt.UTC().Format(time.RFC3339)
	}
	return props
}

func companyProperties(p *types.Partner, domain string) map[string]string {
	return map[string]string{
		"name":         p.CompanyName,
		"domain":       domain,
		"phone":        p.CompanyPhone,
		"partner_type": types.PartnerTypeDisplay(p.PartnerType),
		"type":         "PARTNER",
	}
}

// SyncContact upserts the partner's HubSpot contact and records the contact
// id without re-triggering change detection.
func (a *Activities) SyncContact(ctx context.Context, partnerID string) (SyncResult, error) {
	res := SyncResult{PartnerID: partnerID}

	partner, err := a.loadPartner(ctx, partnerID)
	if err != nil {
		return res, err
	}
	res.Email = partner.Email

	contact, err := a.HubSpot.UpsertContactByEmail(ctx, partner.Email, contactProperties(partner))
	if err != nil {
		return res, fmt.Errorf("sync contact for partner %s: %w", partnerID, err)
	}
	res.ContactID = contact.ID

	if err := a.Partners.MarkSynced(ctx, nil, partner.ID, repos.SyncBookkeeping{
		HubspotContactID: &contact.ID,
		LastSyncedAt:     partner.UpdatedAt,
	}); err != nil {
		return res, fmt.Errorf("record contact sync for partner %s: %w", partnerID, err)
	}

	a.Log.Info("Synced partner contact to HubSpot", "partner_id", partnerID, "email", partner.Email, "contact_id", contact.ID)
	return res, nil
}

// SyncCompany upserts the partner's HubSpot company by the domain of its
// company email. Partners without a company email are skipped terminally:
// retrying cannot invent a domain.
func (a *Activities) SyncCompany(ctx context.Context, partnerID string) (SyncResult, error) {
	res := SyncResult{PartnerID: partnerID}

	partner, err := a.loadPartner(ctx, partnerID)
	if err != nil {
		return res, err
	}
	res.Email = partner.Email

	domain := partner.CompanyDomain()
	if domain == "" {
		a.Log.Warn("Partner has no company email; skipping company sync", "partner_id", partnerID, "email", partner.Email)
		res.Skipped = true
		res.Reason = "no company domain available"
		return res, nil
	}
	res.Domain = domain

	company, err := a.HubSpot.UpsertCompanyByDomain(ctx, domain, companyProperties(partner, domain))
	if err != nil {
		return res, fmt.Errorf("sync company for partner %s: %w", partnerID, err)
	}
	res.CompanyID = company.ID

	if err := a.Partners.MarkSynced(ctx, nil, partner.ID, repos.SyncBookkeeping{
		HubspotCompanyID: &company.ID,
		LastSyncedAt:     partner.UpdatedAt,
	}); err != nil {
		return res, fmt.Errorf("record company sync for partner %s: %w", partnerID, err)
	}

	if partner.HubspotContactID != "" {
		if err := a.HubSpot.AssociateContactToCompany(ctx, partner.HubspotContactID, company.ID); err != nil {
			// Association may already exist; not worth failing the sync.
			a.Log.Warn("Could not associate contact to company",
				"partner_id", partnerID,
				"contact_id", partner.HubspotContactID,
				"company_id", company.ID,
				"error", err,
			)
		}
	}

	a.Log.Info("Synced partner company to HubSpot", "partner_id", partnerID, "domain", domain, "company_id", company.ID)
	return res, nil
}

// SyncFull upserts contact and company, associates them, and records both
// HubSpot ids in one bookkeeping write.
func (a *Activities) SyncFull(ctx context.Context, partnerID string) (SyncResult, error) {
	res := SyncResult{PartnerID: partnerID}

	partner, err := a.loadPartner(ctx, partnerID)
	if err != nil {
		return res, err
	}
	res.Email = partner.Email

	contact, err := a.HubSpot.UpsertContactByEmail(ctx, partner.Email, contactProperties(partner))
	if err != nil {
		return res, fmt.Errorf("sync contact for partner %s: %w", partnerID, err)
	}
	res.ContactID = contact.ID

	bk := repos.SyncBookkeeping{
		HubspotContactID: &contact.ID,
		LastSyncedAt:     partner.UpdatedAt,
	}

	if domain := partner.CompanyDomain(); domain != "" {
		res.Domain = domain
		company, err := a.HubSpot.UpsertCompanyByDomain(ctx, domain, companyProperties(partner, domain))
		if err != nil {
			return res, fmt.Errorf("sync company for partner %s: %w", partnerID, err)
		}
		res.CompanyID = company.ID
		bk.HubspotCompanyID = &company.ID

		if err := a.HubSpot.AssociateContactToCompany(ctx, contact.ID, company.ID); err != nil {
			a.Log.Warn("Could not associate contact to company",
				"partner_id", partnerID,
				"contact_id", contact.ID,
				"company_id", company.ID,
				"error", err,
			)
		}
	} else {
		a.Log.Info("No company email for partner; skipping company sync", "partner_id", partnerID, "email", partner.Email)
	}

	if err := a.Partners.MarkSynced(ctx, nil, partner.ID, bk); err != nil {
		return res, fmt.Errorf("record full sync for partner %s: %w", partnerID, err)
	}

	a.Log.Info("Synced partner to HubSpot",
		"partner_id", partnerID,
		"email", partner.Email,
		"contact_id", res.ContactID,
		"company_id", res.CompanyID,
	)
	return res, nil
}
