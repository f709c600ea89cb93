package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/jcopacetic/lumi/internal/logger"
	"github.com/jcopacetic/lumi/internal/realtime"
	"github.com/jcopacetic/lumi/internal/realtime/bus"
	"github.com/jcopacetic/lumi/internal/repos"
	"github.com/jcopacetic/lumi/internal/types"
)

// seenRetention is how long seen notifications stay before Cleanup archives
// them.
const seenRetention = 90 * 24 * time.Hour

// CreateNotificationInput describes a notification to store and push.
type CreateNotificationInput struct {
	UserID     uuid.UUID
	PartnerID  uuid.UUID
	Title      string
	HTML       string
	Type       string
	Priority   string
	ActionURL  string
	ActionText string
	ExpiresAt  *time.Time
	Source     string
	SourceID   string
}

// NotificationPanel is the payload the bell dropdown renders: everything
// unseen plus a tail of recently seen items.
type NotificationPanel struct {
	Unseen     []*types.Notification `json:"unseen"`
	RecentSeen []*types.Notification `json:"recent_seen"`
}

type NotificationService interface {
	// Create stores the notification and pushes it, plus a badge-count
	// update, to the partner's WebSocket group.
	Create(ctx context.Context, input CreateNotificationInput) (*types.Notification, error)
	// Panel returns unseen and recently seen notifications, marking the
	// unseen batch as seen.
	Panel(ctx context.Context, userID uuid.UUID) (*NotificationPanel, error)
	MarkAllSeen(ctx context.Context, userID uuid.UUID) error
	UnseenCount(ctx context.Context, userID uuid.UUID) (int64, error)
	// CleanupOldSeen archives notifications seen more than 90 days ago.
	CleanupOldSeen(ctx context.Context) (int64, error)
	NotifyWelcome(ctx context.Context, user *types.User, partner *types.Partner) error
	NotifyApplicationSubmitted(ctx context.Context, userID, partnerID uuid.UUID, product, customerName string, applicationID uuid.UUID) error
}

type notificationService struct {
	log           *logger.Logger
	notifications repos.NotificationRepo
	eventBus      bus.Bus
}

func NewNotificationService(
	log *logger.Logger,
	notifications repos.NotificationRepo,
	eventBus bus.Bus,
) NotificationService {
	return &notificationService{
		log:           log.With("service", "NotificationService"),
		notifications: notifications,
		eventBus:      eventBus,
	}
}

func (s *notificationService) Create(ctx context.Context, input CreateNotificationInput) (*types.Notification, error) {
	notification := &types.Notification{
		Slug:       uuid.NewString(),
		UserID:     input.UserID,
		Title:      input.Title,
		HTML:       input.HTML,
		Type:       input.Type,
		Priority:   input.Priority,
		Status:     types.NotificationStatusUnseen,
		ActionURL:  input.ActionURL,
		ActionText: input.ActionText,
		ExpiresAt:  input.ExpiresAt,
		Source:     input.Source,
		SourceID:   input.SourceID,
	}
	if notification.Type == "" {
		notification.Type = types.NotificationTypeSystem
	}
	if notification.Priority == "" {
		notification.Priority = types.NotificationPriorityMedium
	}

	created, err := s.notifications.Create(ctx, nil, []*types.Notification{notification})
	if err != nil {
		return nil, err
	}
	notification = created[0]

	s.publish(ctx, notification, input.PartnerID)
	return notification, nil
}

// publish pushes the notification and the fresh unseen count to the partner's
// WebSocket group. Bus failures are logged, never surfaced: the notification
// row already exists and will show on the next panel fetch.
func (s *notificationService) publish(ctx context.Context, notification *types.Notification, partnerID uuid.UUID) {
	if s.eventBus == nil || partnerID == uuid.Nil {
		return
	}
	group := realtime.Group(partnerID.String())

	msg := realtime.Message{
		Event:  realtime.EventNotification,
		Group:  group,
		UserID: notification.UserID.String(),
		Notification: &realtime.NotificationPayload{
			Slug:       notification.Slug,
			Title:      notification.Title,
			HTML:       notification.HTML,
			Type:       notification.Type,
			Priority:   notification.Priority,
			ActionURL:  notification.ActionURL,
			ActionText: notification.ActionText,
			CreatedAt:  notification.CreatedAt,
		},
	}
	if err := s.eventBus.Publish(ctx, msg); err != nil {
		s.log.Error("Failed to publish notification event", "slug", notification.Slug, "error", err)
		return
	}

	count, err := s.notifications.UnseenCount(ctx, nil, notification.UserID)
	if err != nil {
		s.log.Error("Failed to count unseen notifications", "user_id", notification.UserID, "error", err)
		return
	}
	badge := realtime.Message{
		Event:       realtime.EventBadge,
		Group:       group,
		UserID:      notification.UserID.String(),
		UnseenCount: &count,
	}
	if err := s.eventBus.Publish(ctx, badge); err != nil {
		s.log.Error("Failed to publish badge event", "user_id", notification.UserID, "error", err)
	}
}

func (s *notificationService) Panel(ctx context.Context, userID uuid.UUID) (*NotificationPanel, error) {
	unseen, err := s.notifications.ListUnseen(ctx, nil, userID)
	if err != nil {
		return nil, err
	}
	recentSeen, err := s.notifications.ListRecentSeen(ctx, nil, userID, 10)
	if err != nil {
		return nil, err
	}

	if len(unseen) > 0 {
		ids := make([]uuid.UUID, 0, len(unseen))
		for _, n := range unseen {
			ids = append(ids, n.ID)
		}
		if err := s.notifications.MarkSeen(ctx, nil, ids, time.Now().UTC()); err != nil {
			s.log.Error("Failed to mark notifications seen", "user_id", userID, "error", err)
		}
	}

	return &NotificationPanel{Unseen: unseen, RecentSeen: recentSeen}, nil
}

func (s *notificationService) MarkAllSeen(ctx context.Context, userID uuid.UUID) error {
	return s.notifications.MarkAllSeen(ctx, nil, userID, time.Now().UTC())
}

func (s *notificationService) UnseenCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	return s.notifications.UnseenCount(ctx, nil, userID)
}

func (s *notificationService) CleanupOldSeen(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-seenRetention)
	archived, err := s.notifications.ArchiveOldSeen(ctx, nil, cutoff)
	if err != nil {
		return 0, err
	}
	if archived > 0 {
		s.log.Info("Archived old seen notifications", "count", archived)
	}
	return archived, nil
}

func (s *notificationService) NotifyWelcome(ctx context.Context, user *types.User, partner *types.Partner) error {
	name := user.FirstName
	if name == "" {
		name = partner.CompanyName
	}
	_, err := s.Create(ctx, CreateNotificationInput{
		UserID:    user.ID,
		PartnerID: partner.ID,
		Title:     fmt.Sprintf("Welcome to Lumi, %s!", name),
		HTML: fmt.Sprintf(
			"<p>Your partner account for <strong>%s</strong> is ready. "+
				"You can now submit loan applications on behalf of your customers.</p>",
			partner.CompanyName,
		),
		Type:       types.NotificationTypeAccount,
		Priority:   types.NotificationPriorityHigh,
		ActionURL:  "/applications/new",
		ActionText: "Start an application",
		Source:     "partner",
		SourceID:   partner.ID.String(),
	})
	return err
}

func (s *notificationService) NotifyApplicationSubmitted(ctx context.Context, userID, partnerID uuid.UUID, product, customerName string, applicationID uuid.UUID) error {
	_, err := s.Create(ctx, CreateNotificationInput{
		UserID:    userID,
		PartnerID: partnerID,
		Title:     fmt.Sprintf("Application submitted for %s", customerName),
		HTML: fmt.Sprintf(
			"<p>The %s loan application for <strong>%s</strong> has been submitted and is awaiting review.</p>",
			product, customerName,
		),
		Type:       types.NotificationTypeApplication,
		Priority:   types.NotificationPriorityMedium,
		ActionURL:  fmt.Sprintf("/applications/%s/%s", product, applicationID),
		ActionText: "View application",
		Source:     "application",
		SourceID:   applicationID.String(),
	})
	return err
}
