package repos

import (
	"context"

	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/types"
)

type LoanTypeRepo interface {
	Create(ctx context.Context, tx *gorm.DB, loanTypes []*types.LoanType) ([]*types.LoanType, error)
	GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.LoanType, error)
	ListActive(ctx context.Context, tx *gorm.DB) ([]*types.LoanType, error)
	Update(ctx context.Context, tx *gorm.DB, loanType *types.LoanType) error
}

type loanTypeRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewLoanTypeRepo(db *gorm.DB, baseLog *logger.Logger) LoanTypeRepo {
	repoLog := baseLog.With("repo", "LoanTypeRepo")
	return &loanTypeRepo{db: db, log: repoLog}
}

func (r *loanTypeRepo) Create(ctx context.Context, tx *gorm.DB, loanTypes []*types.LoanType) ([]*types.LoanType, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(loanTypes) == 0 {
		return []*types.LoanType{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&loanTypes).Error; err != nil {
		return nil, err
	}
	return loanTypes, nil
}

func (r *loanTypeRepo) GetByCode(ctx context.Context, tx *gorm.DB, code string) (*types.LoanType, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.LoanType
	if err := transaction.WithContext(ctx).
		Where("code = ?", code).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *loanTypeRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]*types.LoanType, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.LoanType
	if err := transaction.WithContext(ctx).
		Where("is_active = ?", true).
		Order("display_order, name").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *loanTypeRepo) Update(ctx context.Context, tx *gorm.DB, loanType *types.LoanType) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Save(loanType).Error
}
