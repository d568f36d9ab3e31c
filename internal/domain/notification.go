package domain

import "time"

// Notification type constants
const (
	NotifyHoldCreated      = "hold.created"
	NotifyHoldExpiring     = "hold.expiring"
	NotifyHoldExpired      = "hold.expired"
	NotifyHoldCancelled    = "hold.cancelled"
	NotifyBookingConfirmed = "booking.confirmed"
	NotifyWaitlistOffered  = "waitlist.offered"
)

// Priority levels for delivery
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Notification is a fire-and-forget inbox record for a user.
type Notification struct {
	ID        int64      `json:"id"`
	UserID    int64      `json:"user_id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	ActionURL string     `json:"action_url,omitempty"`
	Priority  string     `json:"priority"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
}
