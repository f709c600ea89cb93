package realtime

import "time"

// Group names the WebSocket fan-out target for a partner's users.
func Group(partnerID string) string {
	return "partner_" + partnerID
}

const (
	EventNotification = "notification"
	EventBadge        = "badge"
)

// Message is the envelope published on the Redis bus and relayed to
// WebSocket clients in the target group.
type Message struct {
	Event        string                `json:"event"`
	Group        string                `json:"group"`
	UserID       string                `json:"user_id,omitempty"`
	Notification *NotificationPayload  `json:"notification,omitempty"`
	UnseenCount  *int64                `json:"unseen_count,omitempty"`
}

type NotificationPayload struct {
	Slug       string    `json:"slug"`
	Title      string    `json:"title"`
	HTML       string    `json:"html"`
	Type       string    `json:"type"`
	Priority   string    `json:"priority"`
	ActionURL  string    `json:"action_url,omitempty"`
	ActionText string    `json:"action_text,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}
