package repos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/types"
)

type NotificationRepo interface {
	Create(ctx context.Context, tx *gorm.DB, notifications []*types.Notification) ([]*types.Notification, error)
	GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Notification, error)
	ListUnseen(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Notification, error)
	ListRecentSeen(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Notification, error)
	UnseenCount(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error)
	MarkSeen(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, seenAt time.Time) error
	MarkAllSeen(ctx context.Context, tx *gorm.DB, userID uuid.UUID, seenAt time.Time) error
	// ArchiveOldSeen archives seen notifications older than the cutoff and
	// returns how many rows changed.
	ArchiveOldSeen(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type notificationRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewNotificationRepo(db *gorm.DB, baseLog *logger.Logger) NotificationRepo {
	repoLog := baseLog.With("repo", "NotificationRepo")
	return &notificationRepo{db: db, log: repoLog}
}

func (r *notificationRepo) Create(ctx context.Context, tx *gorm.DB, notifications []*types.Notification) ([]*types.Notification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(notifications) == 0 {
		return []*types.Notification{}, nil
	}

	if err := transaction.WithContext(ctx).Create(&notifications).Error; err != nil {
		return nil, err
	}
	return notifications, nil
}

func (r *notificationRepo) GetBySlug(ctx context.Context, tx *gorm.DB, slug string) (*types.Notification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var result types.Notification
	if err := transaction.WithContext(ctx).
		Where("slug = ?", slug).
		First(&result).Error; err != nil {
		return nil, err
	}
	return &result, nil
}

func (r *notificationRepo) ListUnseen(ctx context.Context, tx *gorm.DB, userID uuid.UUID) ([]*types.Notification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var results []*types.Notification
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.NotificationStatusUnseen).
		Where("expires_at IS NULL OR expires_at > now()").
		Order("created_at DESC").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *notificationRepo) ListRecentSeen(ctx context.Context, tx *gorm.DB, userID uuid.UUID, limit int) ([]*types.Notification, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if limit <= 0 {
		limit = 10
	}

	var results []*types.Notification
	if err := transaction.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, types.NotificationStatusSeen).
		Order("created_at DESC").
		Limit(limit).
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *notificationRepo) UnseenCount(ctx context.Context, tx *gorm.DB, userID uuid.UUID) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	var count int64
	if err := transaction.WithContext(ctx).
		Model(&types.Notification{}).
		Where("user_id = ? AND status = ?", userID, types.NotificationStatusUnseen).
		Where("expires_at IS NULL OR expires_at > now()").
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *notificationRepo) MarkSeen(ctx context.Context, tx *gorm.DB, ids []uuid.UUID, seenAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	if len(ids) == 0 {
		return nil
	}

	return transaction.WithContext(ctx).
		Model(&types.Notification{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{
			"status":  types.NotificationStatusSeen,
			"seen_at": seenAt,
		}).Error
}

func (r *notificationRepo) MarkAllSeen(ctx context.Context, tx *gorm.DB, userID uuid.UUID, seenAt time.Time) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	return transaction.WithContext(ctx).
		Model(&types.Notification{}).
		Where("user_id = ? AND status = ?", userID, types.NotificationStatusUnseen).
		Updates(map[string]interface{}{
			"status":  types.NotificationStatusSeen,
			"seen_at": seenAt,
		}).Error
}

func (r *notificationRepo) ArchiveOldSeen(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}

	result := transaction.WithContext(ctx).
		Model(&types.Notification{}).
		Where("status = ? AND seen_at < ?", types.NotificationStatusSeen, cutoff).
		Update("status", types.NotificationStatusArchived)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}
