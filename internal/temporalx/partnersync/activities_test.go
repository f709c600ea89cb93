package partnersync

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/hubspot"
	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/types"
)

type fakePartnerRepo struct {
	repos.PartnerRepo

	partner    *types.Partner
	getErr     error
	marked     []repos.SyncBookkeeping
	markedIDs  []uuid.UUID
	markSynced error
}

func (f *fakePartnerRepo) GetByID(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID) (*types.Partner, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	return f.partner, nil
}

func (f *fakePartnerRepo) MarkSynced(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, bk repos.SyncBookkeeping) error {
	f.marked = append(f.marked, bk)
	f.markedIDs = append(f.markedIDs, partnerID)
	return f.markSynced
}

type fakeHubSpot struct {
	hubspot.Client

	contactErr    error
	companyErr    error
	associateErr  error
	contactProps  map[string]string
	companyProps  map[string]string
	associateArgs []string
}

func (f *fakeHubSpot) UpsertContactByEmail(ctx context.Context, email string, props map[string]string) (*hubspot.ObjectResult, error) {
	if f.contactErr != nil {
		return nil, f.contactErr
	}
	f.contactProps = props
	return &hubspot.ObjectResult{ID: "contact-1"}, nil
}

func (f *fakeHubSpot) UpsertCompanyByDomain(ctx context.Context, domain string, props map[string]string) (*hubspot.ObjectResult, error) {
	if f.companyErr != nil {
		return nil, f.companyErr
	}
	f.companyProps = props
	return &hubspot.ObjectResult{ID: "company-1"}, nil
}

func (f *fakeHubSpot) AssociateContactToCompany(ctx context.Context, contactID, companyID string) error {
	f.associateArgs = append(f.associateArgs, contactID+"->"+companyID)
	return f.associateErr
}

func testPartner() *types.Partner {
	acceptedAt := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	return &types.Partner{
		ID:                      uuid.New(),
		Email:                   "owner@acmerealty.co.nz",
		PrimaryContactFirstName: "Tia",
		PrimaryContactLastName:  "Ngata",
		PrimaryContactPhone:     "021234567",
		CompanyName:             "Acme Realty",
		CompanyPhone:            "095551234",
		CompanyEmail:            "office@acmerealty.co.nz",
		PartnerType:             types.PartnerTypeRealEstate,
		IsActive:                true,
		AcceptedAt:              &acceptedAt,
		UpdatedAt:               time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func newActivities(t *testing.T, partners *fakePartnerRepo, hs *fakeHubSpot) *Activities {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return &Activities{Log: log, Partners: partners, HubSpot: hs}
}

func TestSyncFullHappyPath(t *testing.T) {
	partner := testPartner()
	partners := &fakePartnerRepo{partner: partner}
	hs := &fakeHubSpot{}
	a := newActivities(t, partners, hs)

	res, err := a.SyncFull(context.Background(), partner.ID.String())
	if err != nil {
		t.Fatalf("SyncFull: %v", err)
	}
	if res.ContactID != "contact-1" || res.CompanyID != "company-1" {
		t.Fatalf("result ids: got=%+v", res)
	}
	if res.Domain != "acmerealty.co.nz" {
		t.Fatalf("domain: want=%q got=%q", "acmerealty.co.nz", res.Domain)
	}
	if len(hs.associateArgs) != 1 || hs.associateArgs[0] != "contact-1->company-1" {
		t.Fatalf("association: got=%v", hs.associateArgs)
	}
	if hs.contactProps["partner_type"] != "Real Estate" {
		t.Fatalf("partner_type display: got=%q", hs.contactProps["partner_type"])
	}
	if hs.contactProps["partner_accepted_at"] == "" {
		t.Fatalf("expected partner_accepted_at for accepted partner")
	}
	if hs.companyProps["type"] != "PARTNER" {
		t.Fatalf("company type: got=%q", hs.companyProps["type"])
	}

	if len(partners.marked) != 1 {
		t.Fatalf("MarkSynced calls: want=1 got=%d", len(partners.marked))
	}
	bk := partners.marked[0]
	if bk.HubspotContactID == nil || *bk.HubspotContactID != "contact-1" {
		t.Fatalf("bookkeeping contact id: got=%+v", bk)
	}
	if bk.HubspotCompanyID == nil || *bk.HubspotCompanyID != "company-1" {
		t.Fatalf("bookkeeping company id: got=%+v", bk)
	}
	if !bk.LastSyncedAt.Equal(partner.UpdatedAt) {
		t.Fatalf("last synced at: want=%v got=%v", partner.UpdatedAt, bk.LastSyncedAt)
	}
}

func TestSyncFullWithoutCompanyEmailSkipsCompany(t *testing.T) {
	partner := testPartner()
	partner.CompanyEmail = ""
	partners := &fakePartnerRepo{partner: partner}
	hs := &fakeHubSpot{}
	a := newActivities(t, partners, hs)

	res, err := a.SyncFull(context.Background(), partner.ID.String())
	if err != nil {
		t.Fatalf("SyncFull: %v", err)
	}
	if res.CompanyID != "" || res.Domain != "" {
		t.Fatalf("expected no company sync, got %+v", res)
	}
	if len(hs.associateArgs) != 0 {
		t.Fatalf("expected no association, got %v", hs.associateArgs)
	}
	bk := partners.marked[0]
	if bk.HubspotCompanyID != nil {
		t.Fatalf("expected nil company id in bookkeeping, got %v", *bk.HubspotCompanyID)
	}
	if bk.HubspotContactID == nil {
		t.Fatalf("expected contact id in bookkeeping")
	}
}

func TestSyncCompanyWithoutDomainIsTerminalSkip(t *testing.T) {
	partner := testPartner()
	partner.CompanyEmail = ""
	partners := &fakePartnerRepo{partner: partner}
	hs := &fakeHubSpot{}
	a := newActivities(t, partners, hs)

	res, err := a.SyncCompany(context.Background(), partner.ID.String())
	if err != nil {
		t.Fatalf("SyncCompany: %v", err)
	}
	if !res.Skipped || res.Reason == "" {
		t.Fatalf("expected skipped result, got %+v", res)
	}
	if len(partners.marked) != 0 {
		t.Fatalf("expected no bookkeeping writes, got %d", len(partners.marked))
	}
}

func TestSyncCompanyAssociatesWhenContactKnown(t *testing.T) {
	partner := testPartner()
	partner.HubspotContactID = "contact-9"
	partners := &fakePartnerRepo{partner: partner}
	hs := &fakeHubSpot{}
	a := newActivities(t, partners, hs)

	if _, err := a.SyncCompany(context.Background(), partner.ID.String()); err != nil {
		t.Fatalf("SyncCompany: %v", err)
	}
	if len(hs.associateArgs) != 1 || hs.associateArgs[0] != "contact-9->company-1" {
		t.Fatalf("association: got=%v", hs.associateArgs)
	}
}

func TestSyncCompanyAssociationFailureIsNotFatal(t *testing.T) {
	partner := testPartner()
	partner.HubspotContactID = "contact-9"
	partners := &fakePartnerRepo{partner: partner}
	hs := &fakeHubSpot{associateErr: &hubspot.APIError{StatusCode: http.StatusConflict}}
	a := newActivities(t, partners, hs)

	if _, err := a.SyncCompany(context.Background(), partner.ID.String()); err != nil {
		t.Fatalf("association conflict should not fail sync: %v", err)
	}
}

func TestSyncContactMissingPartnerIsTerminal(t *testing.T) {
	partners := &fakePartnerRepo{getErr: gorm.ErrRecordNotFound}
	hs := &fakeHubSpot{}
	a := newActivities(t, partners, hs)

	_, err := a.SyncContact(context.Background(), uuid.New().String())
	if err == nil {
		t.Fatalf("expected error")
	}
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) {
		t.Fatalf("expected ApplicationError, got %T", err)
	}
	if appErr.Type() != TerminalError || !appErr.NonRetryable() {
		t.Fatalf("expected non-retryable terminal error, got type=%q", appErr.Type())
	}
}

func TestSyncContactMissingClientIsTerminal(t *testing.T) {
	partners := &fakePartnerRepo{partner: testPartner()}
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	a := &Activities{Log: log, Partners: partners, HubSpot: nil}

	_, err = a.SyncContact(context.Background(), uuid.New().String())
	var appErr *temporal.ApplicationError
	if !errors.As(err, &appErr) || !appErr.NonRetryable() {
		t.Fatalf("expected non-retryable error, got %v", err)
	}
}

func TestSyncContactAPIErrorPropagates(t *testing.T) {
	partner := testPartner()
	partners := &fakePartnerRepo{partner: partner}
	hs := &fakeHubSpot{contactErr: &hubspot.APIError{StatusCode: http.StatusBadGateway}}
	a := newActivities(t, partners, hs)

	_, err := a.SyncContact(context.Background(), partner.ID.String())
	if err == nil {
		t.Fatalf("expected error")
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.NonRetryable() {
		t.Fatalf("API errors must stay retryable, got %v", err)
	}
	if len(partners.marked) != 0 {
		t.Fatalf("expected no bookkeeping writes on failure")
	}
}
