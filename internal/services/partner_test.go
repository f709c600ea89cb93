package services

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/sync"
	"github.com/jcopacetic/lumi/internal/types"
)

type fakePartnerRepo struct {
	repos.PartnerRepo

	byID     map[uuid.UUID]*types.Partner
	byEmail  map[string]*types.Partner
	byInvite map[uuid.UUID]*types.Partner
	updated  []*types.Partner
}

func newFakePartnerRepo() *fakePartnerRepo {
	return &fakePartnerRepo{
		byID:     map[uuid.UUID]*types.Partner{},
		byEmail:  map[string]*types.Partner{},
		byInvite: map[uuid.UUID]*types.Partner{},
	}
}

func (f *fakePartnerRepo) add(p *types.Partner) {
	f.byID[p.ID] = p
	f.byEmail[p.Email] = p
	f.byInvite[p.InviteToken] = p
}

func (f *fakePartnerRepo) Create(ctx context.Context, tx *gorm.DB, partners []*types.Partner) ([]*types.Partner, error) {
	for _, p := range partners {
		if p.ID == uuid.Nil {
			p.ID = uuid.New()
		}
		f.add(p)
	}
	return partners, nil
}

func (f *fakePartnerRepo) GetByID(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID) (*types.Partner, error) {
	p, ok := f.byID[partnerID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakePartnerRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.Partner, error) {
	p, ok := f.byEmail[email]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return p, nil
}

func (f *fakePartnerRepo) GetByInviteToken(ctx context.Context, tx *gorm.DB, token uuid.UUID) (*types.Partner, error) {
	p, ok := f.byInvite[token]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *p
	return &copied, nil
}

func (f *fakePartnerRepo) Update(ctx context.Context, tx *gorm.DB, partner *types.Partner) error {
	f.updated = append(f.updated, partner)
	f.add(partner)
	return nil
}

type fakeSyncQueue struct {
	dispatched []sync.Decision
	fullIDs    []uuid.UUID
}

func (f *fakeSyncQueue) DispatchForChange(ctx context.Context, partnerID uuid.UUID, decision sync.Decision) {
	if decision != sync.SyncNone {
		f.dispatched = append(f.dispatched, decision)
	}
}

func (f *fakeSyncQueue) DispatchFull(ctx context.Context, partnerID uuid.UUID) error {
	f.fullIDs = append(f.fullIDs, partnerID)
	return nil
}

func (f *fakeSyncQueue) BulkSync(ctx context.Context, force bool) (int, error) { return 0, nil }
func (f *fakeSyncQueue) Enabled() bool                                         { return true }

type fakeMailer struct {
	sent []uuid.UUID
}

func (f *fakeMailer) SendPartnerInvite(ctx context.Context, partner *types.Partner) error {
	f.sent = append(f.sent, partner.ID)
	return nil
}

func newPartnerService(t *testing.T, partners *fakePartnerRepo, queue *fakeSyncQueue, mailer *fakeMailer) PartnerService {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("logger.New: %v", err)
	}
	return NewPartnerService(log, nil, partners, nil, mailer, queue, nil)
}

func seededPartner(repo *fakePartnerRepo) *types.Partner {
	now := time.Now().UTC().Add(-time.Hour)
	p := &types.Partner{
		ID:                      uuid.New(),
		Email:                   "owner@acmerealty.co.nz",
		PrimaryContactFirstName: "Tia",
		PrimaryContactLastName:  "Ngata",
		CompanyName:             "Acme Realty",
		CompanyEmail:            "office@acmerealty.co.nz",
		PartnerType:             types.PartnerTypeRealEstate,
		IsActive:                true,
		InviteToken:             uuid.New(),
		InviteSentAt:            &now,
	}
	repo.add(p)
	return p
}

func TestCreateDispatchesFullSyncAndInvite(t *testing.T) {
	partners := newFakePartnerRepo()
	queue := &fakeSyncQueue{}
	mailer := &fakeMailer{}
	svc := newPartnerService(t, partners, queue, mailer)

	partner, err := svc.Create(context.Background(), CreatePartnerInput{
		Email:       "new@partner.co.nz",
		CompanyName: "New Partner Ltd",
		PartnerType: types.PartnerTypeMortgageBroker,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if partner.InviteToken == uuid.Nil || partner.InviteSentAt == nil {
		t.Fatalf("expected invite token and sent timestamp, got %+v", partner)
	}
	if len(queue.dispatched) != 1 || queue.dispatched[0] != sync.SyncFull {
		t.Fatalf("dispatched: want=[full] got=%v", queue.dispatched)
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("invite emails sent: want=1 got=%d", len(mailer.sent))
	}
}

func TestCreateRejectsDuplicateEmail(t *testing.T) {
	partners := newFakePartnerRepo()
	existing := seededPartner(partners)
	svc := newPartnerService(t, partners, &fakeSyncQueue{}, &fakeMailer{})

	_, err := svc.Create(context.Background(), CreatePartnerInput{
		Email:       existing.Email,
		CompanyName: "Other",
		PartnerType: types.PartnerTypeRealEstate,
	})
	if err != ErrPartnerEmailExists {
		t.Fatalf("want ErrPartnerEmailExists, got %v", err)
	}
}

func TestUpdateDispatchesMinimalSync(t *testing.T) {
	cases := []struct {
		name  string
		input UpdatePartnerInput
		want  []sync.Decision
	}{
		{
			name:  "contact only",
			input: UpdatePartnerInput{PrimaryContactPhone: strPtr("021000000")},
			want:  []sync.Decision{sync.SyncContact},
		},
		{
			name:  "company only",
			input: UpdatePartnerInput{CompanyPhone: strPtr("095550000")},
			want:  []sync.Decision{sync.SyncCompany},
		},
		{
			name:  "shared field",
			input: UpdatePartnerInput{PartnerType: strPtr(types.PartnerTypeFamilyOffice)},
			want:  []sync.Decision{sync.SyncFull},
		},
		{
			name:  "no change",
			input: UpdatePartnerInput{},
			want:  nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			partners := newFakePartnerRepo()
			partner := seededPartner(partners)
			queue := &fakeSyncQueue{}
			svc := newPartnerService(t, partners, queue, &fakeMailer{})

			if _, err := svc.Update(context.Background(), partner.ID, tc.input); err != nil {
				t.Fatalf("Update: %v", err)
			}
			if len(queue.dispatched) != len(tc.want) {
				t.Fatalf("dispatched: want=%v got=%v", tc.want, queue.dispatched)
			}
			for i := range tc.want {
				if queue.dispatched[i] != tc.want[i] {
					t.Fatalf("dispatched: want=%v got=%v", tc.want, queue.dispatched)
				}
			}
		})
	}
}

func TestUpdateRejectsDuplicateEmail(t *testing.T) {
	partners := newFakePartnerRepo()
	first := seededPartner(partners)
	second := &types.Partner{
		ID:          uuid.New(),
		Email:       "owner@otherbrokers.co.nz",
		CompanyName: "Other Brokers",
		PartnerType: types.PartnerTypeMortgageBroker,
		IsActive:    true,
		InviteToken: uuid.New(),
	}
	partners.add(second)

	queue := &fakeSyncQueue{}
	svc := newPartnerService(t, partners, queue, &fakeMailer{})

	_, err := svc.Update(context.Background(), second.ID, UpdatePartnerInput{
		Email: strPtr("  " + first.Email + "  "),
	})
	if err != ErrPartnerEmailExists {
		t.Fatalf("want ErrPartnerEmailExists, got %v", err)
	}
	if len(queue.dispatched) != 0 {
		t.Fatalf("rejected update must not dispatch a sync, got %v", queue.dispatched)
	}

	// Re-submitting the partner's own email is not a conflict.
	if _, err := svc.Update(context.Background(), second.ID, UpdatePartnerInput{
		Email: strPtr(second.Email),
	}); err != nil {
		t.Fatalf("own email should not conflict: %v", err)
	}
}

func TestToggleActiveDispatchesFullSync(t *testing.T) {
	partners := newFakePartnerRepo()
	partner := seededPartner(partners)
	queue := &fakeSyncQueue{}
	svc := newPartnerService(t, partners, queue, &fakeMailer{})

	toggled, err := svc.ToggleActive(context.Background(), partner.ID)
	if err != nil {
		t.Fatalf("ToggleActive: %v", err)
	}
	if toggled.IsActive {
		t.Fatalf("expected partner deactivated")
	}
	// is_active touches both the contact and company records.
	if len(queue.dispatched) != 1 || queue.dispatched[0] != sync.SyncFull {
		t.Fatalf("dispatched: want=[full] got=%v", queue.dispatched)
	}
}

func TestValidateInvite(t *testing.T) {
	partners := newFakePartnerRepo()
	partner := seededPartner(partners)
	svc := newPartnerService(t, partners, &fakeSyncQueue{}, &fakeMailer{})
	ctx := context.Background()

	if _, err := svc.ValidateInvite(ctx, partner.InviteToken.String()); err != nil {
		t.Fatalf("valid invite rejected: %v", err)
	}

	if _, err := svc.ValidateInvite(ctx, uuid.NewString()); err != ErrInviteNotFound {
		t.Fatalf("unknown token: want ErrInviteNotFound, got %v", err)
	}
	if _, err := svc.ValidateInvite(ctx, "not-a-uuid"); err != ErrInviteNotFound {
		t.Fatalf("garbage token: want ErrInviteNotFound, got %v", err)
	}

	stale := time.Now().UTC().Add(-8 * 24 * time.Hour)
	partner.InviteSentAt = &stale
	partners.add(partner)
	if _, err := svc.ValidateInvite(ctx, partner.InviteToken.String()); err != ErrInviteExpired {
		t.Fatalf("expired token: want ErrInviteExpired, got %v", err)
	}

	fresh := time.Now().UTC()
	partner.InviteSentAt = &fresh
	partner.AcceptedAt = &fresh
	partners.add(partner)
	if _, err := svc.ValidateInvite(ctx, partner.InviteToken.String()); err != ErrInviteAlreadyAccepted {
		t.Fatalf("accepted token: want ErrInviteAlreadyAccepted, got %v", err)
	}

	partner.AcceptedAt = nil
	partner.IsActive = false
	partners.add(partner)
	if _, err := svc.ValidateInvite(ctx, partner.InviteToken.String()); err != ErrPartnerDeactivated {
		t.Fatalf("deactivated partner: want ErrPartnerDeactivated, got %v", err)
	}
}

func TestRegenerateInviteRotatesToken(t *testing.T) {
	partners := newFakePartnerRepo()
	partner := seededPartner(partners)
	oldToken := partner.InviteToken
	mailer := &fakeMailer{}
	svc := newPartnerService(t, partners, &fakeSyncQueue{}, mailer)

	regenerated, err := svc.RegenerateInvite(context.Background(), partner.ID)
	if err != nil {
		t.Fatalf("RegenerateInvite: %v", err)
	}
	if regenerated.InviteToken == oldToken {
		t.Fatalf("expected rotated invite token")
	}
	if len(mailer.sent) != 1 {
		t.Fatalf("invite emails sent: want=1 got=%d", len(mailer.sent))
	}

	accepted := time.Now().UTC()
	regenerated.AcceptedAt = &accepted
	partners.add(regenerated)
	if _, err := svc.RegenerateInvite(context.Background(), regenerated.ID); err != ErrInviteAlreadyAccepted {
		t.Fatalf("accepted partner: want ErrInviteAlreadyAccepted, got %v", err)
	}
}

func strPtr(s string) *string {
	return &s
}
