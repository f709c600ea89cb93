package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/sync"
	"github.com/jcopacetic/lumi/internal/types"
)

var (
	ErrPartnerEmailExists    = errors.New("a partner with this email already exists")
	ErrInvalidPartnerType    = errors.New("invalid partner type")
	ErrInviteExpired         = errors.New("invite link has expired")
	ErrInviteAlreadyAccepted = errors.New("invite has already been accepted")
	ErrInviteNotFound        = errors.New("invite not found")
	ErrPartnerDeactivated    = errors.New("partner account is deactivated")
)

// CreatePartnerInput is what an admin supplies when onboarding a partner.
type CreatePartnerInput struct {
	Email                   string `json:"email" binding:"required,email"`
	PrimaryContactFirstName string `json:"primary_contact_first_name"`
	PrimaryContactLastName  string `json:"primary_contact_last_name"`
	PrimaryContactPhone     string `json:"primary_contact_phone"`
	CompanyName             string `json:"company_name" binding:"required"`
	CompanyPhone            string `json:"company_phone"`
	CompanyEmail            string `json:"company_email"`
	PartnerType             string `json:"partner_type" binding:"required"`
}

// UpdatePartnerInput carries optional field updates. Nil pointers leave the
// stored value untouched.
type UpdatePartnerInput struct {
	Email                   *string `json:"email"`
	PrimaryContactFirstName *string `json:"primary_contact_first_name"`
	PrimaryContactLastName  *string `json:"primary_contact_last_name"`
	PrimaryContactPhone     *string `json:"primary_contact_phone"`
	CompanyName             *string `json:"company_name"`
	CompanyPhone            *string `json:"company_phone"`
	CompanyEmail            *string `json:"company_email"`
	PartnerType             *string `json:"partner_type"`
	IsActive                *bool   `json:"is_active"`
}

// AcceptInviteInput completes partner signup from an invite link.
type AcceptInviteInput struct {
	Token     string `json:"token" binding:"required"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type PartnerService interface {
	Create(ctx context.Context, input CreatePartnerInput) (*types.Partner, error)
	Get(ctx context.Context, partnerID uuid.UUID) (*types.Partner, error)
	List(ctx context.Context, filter repos.PartnerFilter) ([]*types.Partner, error)
	// Update saves field changes and dispatches the minimal HubSpot sync the
	// diff requires.
	Update(ctx context.Context, partnerID uuid.UUID, input UpdatePartnerInput) (*types.Partner, error)
	ToggleActive(ctx context.Context, partnerID uuid.UUID) (*types.Partner, error)
	// RegenerateInvite rotates the invite token and resends the invite email.
	RegenerateInvite(ctx context.Context, partnerID uuid.UUID) (*types.Partner, error)
	// ValidateInvite resolves an invite token to its partner, rejecting
	// expired, accepted, and deactivated invites.
	ValidateInvite(ctx context.Context, token string) (*types.Partner, error)
	// AcceptInvite creates the partner's portal user and stamps acceptance.
	AcceptInvite(ctx context.Context, input AcceptInviteInput) (*types.User, *types.Partner, error)
	Stats(ctx context.Context) (*PartnerStats, error)
}

// PartnerStats is the partner rollup on the admin dashboard.
type PartnerStats struct {
	Total    int64            `json:"total"`
	Active   int64            `json:"active"`
	Accepted int64            `json:"accepted"`
	ByType   map[string]int64 `json:"by_type"`
}

type partnerService struct {
	log           *logger.Logger
	db            *gorm.DB
	partners      repos.PartnerRepo
	auth          AuthService
	mailer        InviteMailer
	syncQueue     PartnerSyncService
	notifications NotificationService
}

func NewPartnerService(
	log *logger.Logger,
	db *gorm.DB,
	partners repos.PartnerRepo,
	auth AuthService,
	mailer InviteMailer,
	syncQueue PartnerSyncService,
	notifications NotificationService,
) PartnerService {
	return &partnerService{
		log:           log.With("service", "PartnerService"),
		db:            db,
		partners:      partners,
		auth:          auth,
		mailer:        mailer,
		syncQueue:     syncQueue,
		notifications: notifications,
	}
}

func validPartnerType(partnerType string) bool {
	switch partnerType {
	case types.PartnerTypeRealEstate, types.PartnerTypeFamilyOffice, types.PartnerTypeMortgageBroker:
		return true
	default:
		return false
	}
}

func (s *partnerService) Create(ctx context.Context, input CreatePartnerInput) (*types.Partner, error) {
	if !validPartnerType(input.PartnerType) {
		return nil, ErrInvalidPartnerType
	}

	if _, err := s.partners.GetByEmail(ctx, nil, input.Email); err == nil {
		return nil, ErrPartnerEmailExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	now := time.Now().UTC()
	partner := &types.Partner{
		Email:                   strings.ToLower(strings.TrimSpace(input.Email)),
		PrimaryContactFirstName: strings.TrimSpace(input.PrimaryContactFirstName),
		PrimaryContactLastName:  strings.TrimSpace(input.PrimaryContactLastName),
		PrimaryContactPhone:     strings.TrimSpace(input.PrimaryContactPhone),
		CompanyName:             strings.TrimSpace(input.CompanyName),
		CompanyPhone:            strings.TrimSpace(input.CompanyPhone),
		CompanyEmail:            strings.ToLower(strings.TrimSpace(input.CompanyEmail)),
		PartnerType:             input.PartnerType,
		IsActive:                true,
		InviteToken:             uuid.New(),
		InviteSentAt:            &now,
	}

	created, err := s.partners.Create(ctx, nil, []*types.Partner{partner})
	if err != nil {
		return nil, err
	}
	partner = created[0]

	if err := s.mailer.SendPartnerInvite(ctx, partner); err != nil {
		s.log.Error("Failed to send partner invite email", "partner_id", partner.ID, "error", err)
	}

	decision, _ := sync.Decide(true, nil, sync.Take(partner))
	s.syncQueue.DispatchForChange(ctx, partner.ID, decision)

	s.log.Info("Partner created", "partner_id", partner.ID, "partner_type", partner.PartnerType)
	return partner, nil
}

func (s *partnerService) Get(ctx context.Context, partnerID uuid.UUID) (*types.Partner, error) {
	return s.partners.GetByID(ctx, nil, partnerID)
}

func (s *partnerService) List(ctx context.Context, filter repos.PartnerFilter) ([]*types.Partner, error) {
	return s.partners.List(ctx, nil, filter)
}

func (s *partnerService) Update(ctx context.Context, partnerID uuid.UUID, input UpdatePartnerInput) (*types.Partner, error) {
	partner, err := s.partners.GetByID(ctx, nil, partnerID)
	if err != nil {
		return nil, err
	}

	before := sync.Take(partner)
	applyPartnerUpdate(partner, input)

	if !validPartnerType(partner.PartnerType) {
		return nil, ErrInvalidPartnerType
	}

	if input.Email != nil && partner.Email != before.Email {
		existing, err := s.partners.GetByEmail(ctx, nil, partner.Email)
		if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, err
		}
		if err == nil && existing.ID != partner.ID {
			return nil, ErrPartnerEmailExists
		}
	}

	if err := s.partners.Update(ctx, nil, partner); err != nil {
		return nil, err
	}

	decision, changed := sync.Decide(false, &before, sync.Take(partner))
	if decision != sync.SyncNone {
		s.log.Info("Partner changed; dispatching sync",
			"partner_id", partner.ID,
			"decision", decision.String(),
			"changed_fields", changed,
		)
	}
	s.syncQueue.DispatchForChange(ctx, partner.ID, decision)

	return partner, nil
}

func applyPartnerUpdate(partner *types.Partner, input UpdatePartnerInput) {
	if input.Email != nil {
		partner.Email = strings.ToLower(strings.TrimSpace(*input.Email))
	}
	if input.PrimaryContactFirstName != nil {
		partner.PrimaryContactFirstName = strings.TrimSpace(*input.PrimaryContactFirstName)
	}
	if input.PrimaryContactLastName != nil {
		partner.PrimaryContactLastName = strings.TrimSpace(*input.PrimaryContactLastName)
	}
	if input.PrimaryContactPhone != nil {
		partner.PrimaryContactPhone = strings.TrimSpace(*input.PrimaryContactPhone)
	}
	if input.CompanyName != nil {
		partner.CompanyName = strings.TrimSpace(*input.CompanyName)
	}
	if input.CompanyPhone != nil {
		partner.CompanyPhone = strings.TrimSpace(*input.CompanyPhone)
	}
	if input.CompanyEmail != nil {
		partner.CompanyEmail = strings.ToLower(strings.TrimSpace(*input.CompanyEmail))
	}
	if input.PartnerType != nil {
		partner.PartnerType = *input.PartnerType
	}
	if input.IsActive != nil {
		partner.IsActive = *input.IsActive
	}
}

func (s *partnerService) ToggleActive(ctx context.Context, partnerID uuid.UUID) (*types.Partner, error) {
	partner, err := s.partners.GetByID(ctx, nil, partnerID)
	if err != nil {
		return nil, err
	}

	before := sync.Take(partner)
	partner.IsActive = !partner.IsActive
	if err := s.partners.Update(ctx, nil, partner); err != nil {
		return nil, err
	}

	decision, _ := sync.Decide(false, &before, sync.Take(partner))
	s.syncQueue.DispatchForChange(ctx, partner.ID, decision)

	s.log.Info("Partner active flag toggled", "partner_id", partner.ID, "is_active", partner.IsActive)
	return partner, nil
}

func (s *partnerService) RegenerateInvite(ctx context.Context, partnerID uuid.UUID) (*types.Partner, error) {
	partner, err := s.partners.GetByID(ctx, nil, partnerID)
	if err != nil {
		return nil, err
	}
	if partner.HasAccepted() {
		return nil, ErrInviteAlreadyAccepted
	}

	now := time.Now().UTC()
	partner.InviteToken = uuid.New()
	partner.InviteSentAt = &now
	if err := s.partners.Update(ctx, nil, partner); err != nil {
		return nil, err
	}

	if err := s.mailer.SendPartnerInvite(ctx, partner); err != nil {
		s.log.Error("Failed to resend partner invite email", "partner_id", partner.ID, "error", err)
	}

	s.log.Info("Partner invite regenerated", "partner_id", partner.ID)
	return partner, nil
}

func (s *partnerService) ValidateInvite(ctx context.Context, token string) (*types.Partner, error) {
	inviteToken, err := uuid.Parse(strings.TrimSpace(token))
	if err != nil {
		return nil, ErrInviteNotFound
	}

	partner, err := s.partners.GetByInviteToken(ctx, nil, inviteToken)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrInviteNotFound
		}
		return nil, err
	}

	if !partner.IsActive {
		return nil, ErrPartnerDeactivated
	}
	if partner.HasAccepted() {
		return nil, ErrInviteAlreadyAccepted
	}
	if partner.InviteExpired(time.Now()) {
		return nil, ErrInviteExpired
	}
	return partner, nil
}

func (s *partnerService) AcceptInvite(ctx context.Context, input AcceptInviteInput) (*types.User, *types.Partner, error) {
	partner, err := s.ValidateInvite(ctx, input.Token)
	if err != nil {
		return nil, nil, err
	}

	firstName := strings.TrimSpace(input.FirstName)
	if firstName == "" {
		firstName = partner.PrimaryContactFirstName
	}
	lastName := strings.TrimSpace(input.LastName)
	if lastName == "" {
		lastName = partner.PrimaryContactLastName
	}

	var user *types.User
	err = s.db.Transaction(func(tx *gorm.DB) error {
		partnerID := partner.ID
		user, err = s.auth.CreateUser(ctx, tx, &types.User{
			Email:     partner.Email,
			FirstName: firstName,
			LastName:  lastName,
			PartnerID: &partnerID,
		}, input.Password)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		partner.AcceptedAt = &now
		return s.partners.Update(ctx, tx, partner)
	})
	if err != nil {
		return nil, nil, err
	}

	// Acceptance stamps partner_accepted_at on the HubSpot contact.
	if err := s.syncQueue.DispatchFull(ctx, partner.ID); err != nil {
		s.log.Error("Failed to dispatch sync after invite acceptance", "partner_id", partner.ID, "error", err)
	}

	if s.notifications != nil {
		if err := s.notifications.NotifyWelcome(ctx, user, partner); err != nil {
			s.log.Error("Failed to create welcome notification", "user_id", user.ID, "error", err)
		}
	}

	s.log.Info("Partner invite accepted", "partner_id", partner.ID, "user_id", user.ID)
	return user, partner, nil
}

func (s *partnerService) Stats(ctx context.Context) (*PartnerStats, error) {
	total, active, accepted, err := s.partners.Counts(ctx, nil)
	if err != nil {
		return nil, err
	}
	byType, err := s.partners.CountByType(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &PartnerStats{
		Total:    total,
		Active:   active,
		Accepted: accepted,
		ByType:   byType,
	}, nil
}
