package types

import (
	"time"

	"github.com/google/uuid"
)

const (
	NotificationTypeAccount     = "account"
	NotificationTypeMarketing   = "marketing"
	NotificationTypeFeature     = "feature"
	NotificationTypeSystem      = "system"
	NotificationTypeApplication = "application"
	NotificationTypeSecurity    = "security"
)

const (
	NotificationStatusUnseen   = "unseen"
	NotificationStatusSeen     = "seen"
	NotificationStatusArchived = "archived"
)

const (
	NotificationPriorityLow    = "low"
	NotificationPriorityMedium = "medium"
	NotificationPriorityHigh   = "high"
)

type Notification struct {
	ID         uuid.UUID  `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	Slug       string     `gorm:"uniqueIndex;not null;column:slug" json:"slug"`
	UserID     uuid.UUID  `gorm:"type:uuid;not null;index;column:user_id" json:"user_id"`
	User       *User      `gorm:"constraint:OnDelete:CASCADE;foreignKey:UserID;references:ID" json:"-"`
	Title      string     `gorm:"not null;column:title" json:"title"`
	HTML       string     `gorm:"column:html" json:"html"`
	Type       string     `gorm:"not null;default:system;index;column:notification_type" json:"type"`
	Priority   string     `gorm:"not null;default:medium;column:priority" json:"priority"`
	Status     string     `gorm:"not null;default:unseen;index;column:status" json:"status"`
	ActionURL  string     `gorm:"column:action_url" json:"action_url"`
	ActionText string     `gorm:"column:action_text" json:"action_text"`
	SeenAt     *time.Time `gorm:"column:seen_at" json:"seen_at"`
	ExpiresAt  *time.Time `gorm:"column:expires_at" json:"expires_at"`
	Source     string     `gorm:"column:source" json:"source"`
	SourceID   string     `gorm:"column:source_id" json:"source_id"`
	CreatedAt  time.Time  `gorm:"not null;default:now();index" json:"created_at"`
	UpdatedAt  time.Time  `gorm:"not null;default:now()" json:"updated_at"`
}

func (Notification) TableName() string {
	return "notification"
}

// Expired reports whether the notification is past its expiry, if one is set.
func (n *Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && now.After(*n.ExpiresAt)
}
