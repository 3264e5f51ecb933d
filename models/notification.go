package models

import (
	"time"
)

type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityMedium NotificationPriority = "medium"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// Categories: shift_update, swap_request, time_off, attendance, compliance, general.
type Notification struct {
	NotificationID uint                 `json:"notification_id"`
	Category       string               `json:"category"`
	Title          string               `json:"title"`
	Message        string               `json:"message"`
	Priority       NotificationPriority `json:"priority"`
	ActionRequired bool                 `json:"action_required"`
	ActionURL      string               `json:"action_url,omitempty"`
	SentAt         time.Time            `json:"sent_at"`
	ReadAt         *time.Time           `json:"read_at,omitempty"`
	IsRead         bool                 `json:"is_read"`
	ExpiresAt      *time.Time           `json:"expires_at,omitempty"`
	Sync           SyncState            `json:"sync_state,omitempty"`
}

func (n Notification) IsUrgent() bool {
	return n.Priority == PriorityUrgent
}

// Expired reports whether the notification has an expiry before now.
func (n Notification) Expired(now time.Time) bool {
	return n.ExpiresAt != nil && !n.ExpiresAt.After(now)
}

// MarkAllReadRequest is the body of POST /notifications/read-all.
type MarkAllReadRequest struct {
	UserID   uint   `json:"userId"`
	Category string `json:"category"`
}
