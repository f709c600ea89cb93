package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/types"
)

// ApplicationFilter narrows partner-scoped application listings.
type ApplicationFilter struct {
	PartnerID uuid.UUID
	Status    string
}

// ApplicationRepo is the shared CRUD surface over one loan product table.
// The three products share a base schema, so a single generic implementation
// covers all of them.
type ApplicationRepo[T any] interface {
	Create(ctx context.Context, tx *gorm.DB, app *T) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*T, error)
	Update(ctx context.Context, tx *gorm.DB, app *T) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	List(ctx context.Context, tx *gorm.DB, filter ApplicationFilter) ([]*T, error)
	// FindByCustomer retrieves draft applications by customer email
	// (case-insensitive) and date of birth, scoped to a partner.
	FindByCustomer(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, email string, dateOfBirth time.Time, status string) ([]*T, error)
	CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error)
	CountByStatusForPartner(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID) (map[string]int64, error)
	SumLoanAmount(ctx context.Context, tx *gorm.DB, status string) (float64, error)
	Recent(ctx context.Context, tx *gorm.DB, limit int) ([]*T, error)
}

type applicationRepo[T any] struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewApplicationRepo[T any](db *gorm.DB, baseLog *logger.Logger, name string) ApplicationRepo[T] {
	repoLog := baseLog.With("repo", name)
	return &applicationRepo[T]{db: db, log: repoLog}
}

func NewMarketingApplicationRepo(db *gorm.DB, baseLog *logger.Logger) ApplicationRepo[types.MarketingLoanApplication] {
	return NewApplicationRepo[types.MarketingLoanApplication](db, baseLog, "MarketingApplicationRepo")
}

func NewRenovationApplicationRepo(db *gorm.DB, baseLog *logger.Logger) ApplicationRepo[types.RenovationLoanApplication] {
	return NewApplicationRepo[types.RenovationLoanApplication](db, baseLog, "RenovationApplicationRepo")
}

func NewDepositApplicationRepo(db *gorm.DB, baseLog *logger.Logger) ApplicationRepo[types.DepositLoanApplication] {
	return NewApplicationRepo[types.DepositLoanApplication](db, baseLog, "DepositApplicationRepo")
}

func (r *applicationRepo[T]) Create(ctx context.Context, tx *gorm.DB, app *T) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Create(app).Error
}

func (r *applicationRepo[T]) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*T, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result T
	if err := transaction.WithContext(ctx).
		Where("id = ?", id).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *applicationRepo[T]) Update(ctx context.Context, tx *gorm.DB, app *T) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(app).Error
}

func (r *applicationRepo[T]) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var model T
	return transaction.WithContext(ctx).
		Where("id = ?", id).
		Delete(&model).Error
}

func (r *applicationRepo[T]) List(ctx context.Context, tx *gorm.DB, filter ApplicationFilter) ([]*T, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var model T
	query := transaction.WithContext(ctx).Model(&model)
	if filter.PartnerID != uuid.Nil {
		query = query.Where("partner_id = ?", filter.PartnerID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var results []*T
	if err := query.Order("created_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *applicationRepo[T]) FindByCustomer(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID, email string, dateOfBirth time.Time, status string) ([]*T, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var model T
	query := transaction.WithContext(ctx).Model(&model).
		Where("partner_id = ?", partnerID).
		Where("LOWER(customer_email) = LOWER(?)", email).
		Where("customer_date_of_birth = ?", dateOfBirth.Format("2006-01-02"))
	if status != "" {
		query = query.Where("status = ?", status)
	}

	var results []*T
	if err := query.Order("updated_at DESC").Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *applicationRepo[T]) CountByStatus(ctx context.Context, tx *gorm.DB) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	type row struct {
		Status string
		Count  int64
	}
	var model T
	var rows []row
	if err := transaction.WithContext(ctx).
		Model(&model).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}

func (r *applicationRepo[T]) CountByStatusForPartner(ctx context.Context, tx *gorm.DB, partnerID uuid.UUID) (map[string]int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	type row struct {
		Status string
		Count  int64
	}
	var model T
	var rows []row
	if err := transaction.WithContext(ctx).
		Model(&model).
		Where("partner_id = ?", partnerID).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, rw := range rows {
		counts[rw.Status] = rw.Count
	}
	return counts, nil
}

func (r *applicationRepo[T]) SumLoanAmount(ctx context.Context, tx *gorm.DB, status string) (float64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var model T
	var total float64
	if err := transaction.WithContext(ctx).
		Model(&model).
		Where("status = ?", status).
		Select("COALESCE(SUM(loan_amount), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}

func (r *applicationRepo[T]) Recent(ctx context.Context, tx *gorm.DB, limit int) ([]*T, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if limit <= 0 {
		limit = 10
	}

	var results []*T
	if err := transaction.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
