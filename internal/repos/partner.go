package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/types"
)

// PartnerFilter narrows List results. Zero values mean no filtering.
type PartnerFilter struct {
	PartnerType string
	IsActive    *bool
	Accepted    *bool
	Search      string
}

// SyncBookkeeping carries the HubSpot identifiers written back after a sync
// job completes. Nil string pointers leave the stored value untouched.
type SyncBookkeeping struct {
	HubspotContactID *string
	HubspotCompanyID *string
	LastSyncedAt     time.Time
}

type PartnerRepo interface {
	Create(ctx context.Context, tx *gorm.DB, partners []*types.Partner) ([]*types.Partner, error)
	GetByID(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID) (*types.Partner, error)
	GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.Partner, error)
	GetByInviteToken(ctx context.Context, tx *gorm.DB, token uuid.UUID) (*types.Partner, error)
	List(ctx context.Context, tx *gorm.DB, filter PartnerFilter) ([]*types.Partner, error)
	Update(ctx context.Context, tx *gorm.DB, partner *types.Partner) error
	// MarkSynced writes only the HubSpot bookkeeping columns so the save
	// cannot be mistaken for a data change by the diff engine.
	MarkSynced(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, bk SyncBookkeeping) error
	// ListPendingSync returns active partners never synced, or modified
	// since their last sync.
	ListPendingSync(ctx context.Context, tx *gorm.DB) ([]*types.Partner, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Partner, error)
	CountByType(ctx context.Context, tx *gorm.DB) (map[string]int64, error)
	Counts(ctx context.Context, tx *gorm.DB) (total, active, accepted int64, err error)
}

type partnerRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPartnerRepo(db *gorm.DB, baseLog *logger.Logger) PartnerRepo {
	repoLog := baseLog.With("repo", "PartnerRepo")
	return &partnerRepo{db: db, log: repoLog}
}

func (r *partnerRepo) Create(ctx context.Context, tx *gorm.DB, partners []*types.Partner) ([]*types.Partner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(partners) == 0 {
		return []*types.Partner{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&partners).Error; err != nil {
		return nil, err
	}
	return partners, nil
}

func (r *partnerRepo) GetByID(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID) (*types.Partner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Partner
	if err := transaction.WithContext(ctx).
		Where("id = ?", partnerID).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *partnerRepo) GetByEmail(ctx context.Context, tx *gorm.DB, email string) (*types.Partner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Partner
	if err := transaction.WithContext(ctx).
		Where("LOWER(email) = LOWER(?)", email).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *partnerRepo) GetByInviteToken(ctx context.Context, tx *gorm.DB, token uuid.UUID) (*types.Partner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Partner
	if err := transaction.WithContext(ctx).
		Where("invite_token = ?", token).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *partnerRepo) List(ctx context.Context, tx *gorm.DB, filter PartnerFilter) ([]*types.Partner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	query := transaction.WithContext(ctx).Model(&types.Partner{})
	if filter.PartnerType != "" {
		query = query.Where("partner_type = ?", filter.PartnerType)
	}
	if filter.IsActive != nil {
		query = query.Where("is_active = ?", *filter.IsActive)
	}
	if filter.Accepted != nil {
		if *filter.Accepted {
			query = query.Where("accepted_at IS NOT NULL")
		} else {
			query = query.Where("accepted_at IS NULL")
		}
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where(
			"company_name ILIKE ? OR email ILIKE ? OR primary_contact_first_name ILIKE ? OR primary_contact_last_name ILIKE ?",
			like, like, like, like,
		)
	}

	var results []*types.Partner
	if err := query.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *partnerRepo) Update(ctx context.Context, tx *gorm.DB, partner *types.Partner) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(partner).Error
}

func (r *partnerRepo) MarkSynced(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, bk SyncBookkeeping) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	updates := map[string]interface{}{
		"last_synced_at": bk.LastSyncedAt,
	}
	if bk.HubspotContactID != nil {
		updates["hubspot_contact_id"] = *bk.HubspotContactID
	}
	if bk.HubspotCompanyID != nil {
		updates["hubspot_company_id"] = *bk.HubspotCompanyID
	}
	return transaction.WithContext(ctx).
		Model(&types.Partner{}).
		Where("id = ?", partnerID).
		UpdateColumns(updates).Error
}

func (r *partnerRepo) ListPendingSync(ctx context.Context, tx *gorm.DB) ([]*types.Partner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Partner
	if err := transaction.WithContext(ctx).
		Where("is_active = ?", true).
		Where("last_synced_at IS NULL OR updated_at > last_synced_at").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *partnerRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.Partner, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Partner
	if err := transaction.WithContext(ctx).
		Where("is_active = ?", true).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *partnerRepo) CountByType(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	type row struct {
		PartnerType string
		Count       int64
	}
	var rows []row
	if err := transaction.WithContext(ctx).
		Model(&types.Partner{}).
		Select("partner_type, COUNT(*) AS count").
		Group("partner_type").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.PartnerType] = rw.Count
	}
	return counts, nil
}

func (r *partnerRepo) Counts(ctx context.Context, tx *gorm.DB) (total, active, accepted int64, err error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	model := transaction.WithContext(ctx).Model(&types.Partner{})
	if err = model.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, 0, 0, err
	}
	if err = model.Session(&gorm.Session{}).Where("is_active = ?", true).Count(&active).Error; err != nil {
		return 0, 0, 0, err
	}
	if err = model.Session(&gorm.Session{}).Where("accepted_at IS NOT NULL").Count(&accepted).Error; err != nil {
		return 0, 0, 0, err
	}
	return total, active, accepted, nil
}
