package domain

import "time"

type ReservationStatus string

const (
	ReservationHold      ReservationStatus = "hold"
	ReservationConfirmed ReservationStatus = "confirmed"
	ReservationExpired   ReservationStatus = "expired"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationFailed    ReservationStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s ReservationStatus) Terminal() bool {
	switch s {
	case ReservationConfirmed, ReservationExpired, ReservationCancelled, ReservationFailed:
		return true
	}
	return false
}

type PreauthStatus string

const (
	PreauthNotRequired PreauthStatus = "not_required"
	PreauthPending     PreauthStatus = "pending"
	PreauthAuthorized  PreauthStatus = "authorized"
	PreauthFailed      PreauthStatus = "failed"
	PreauthCaptured    PreauthStatus = "captured"
	PreauthReleased    PreauthStatus = "released"
	PreauthRefunded    PreauthStatus = "refunded"
)

type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncDone    SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

const DefaultMaxExtensions = 1

type Reservation struct {
	ID             int64  `json:"id"`
	HoldToken      string `json:"hold_token,omitempty"`
	IdempotencyKey string `json:"-"`

	ProviderID  int64  `json:"provider_id" validate:"required"`
	RequesterID int64  `json:"requester_id" validate:"required"`
	EventID     *int64 `json:"event_id,omitempty"`
	PackageID   *int64 `json:"package_id,omitempty"`

	SlotStart time.Time `json:"slot_start" validate:"required"`
	SlotEnd   time.Time `json:"slot_end" validate:"required"`

	Status         ReservationStatus `json:"status"`
	ExpiresAt      time.Time         `json:"expires_at"`
	ExtensionsUsed int               `json:"extensions_used"`
	MaxExtensions  int               `json:"max_extensions"`
	ReminderSent   bool              `json:"-"`

	PreauthStatus   PreauthStatus `json:"preauth_status"`
	PreauthAmount   float64       `json:"preauth_amount,omitempty"`
	PreauthID       string        `json:"preauth_id,omitempty"`
	PaymentID       string        `json:"payment_id,omitempty"`
	PaymentCaptured bool          `json:"payment_captured"`

	BookingID       *int64     `json:"booking_id,omitempty"`
	CalendarEventID string     `json:"calendar_event_id,omitempty"`
	SyncStatus      SyncStatus `json:"sync_status,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ExpiredAt reports whether the hold deadline has passed at the given instant.
func (r *Reservation) ExpiredAt(now time.Time) bool {
	return !r.ExpiresAt.IsZero() && r.ExpiresAt.Before(now)
}

// PaymentRequired reports whether this reservation carries a pre-authorization.
func (r *Reservation) PaymentRequired() bool {
	return r.PreauthStatus != PreauthNotRequired
}
