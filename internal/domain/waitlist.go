package domain

import "time"

type WaitlistStatus string

const (
	WaitlistWaiting WaitlistStatus = "waiting"
	WaitlistOffered WaitlistStatus = "offered"
	WaitlistExpired WaitlistStatus = "expired"
	WaitlistBooked  WaitlistStatus = "booked"
)

type WaitlistEntry struct {
	ID          int64          `json:"id"`
	ProviderID  int64          `json:"provider_id" validate:"required"`
	RequesterID int64          `json:"requester_id" validate:"required"`
	SlotStart   time.Time      `json:"slot_start" validate:"required"`
	SlotEnd     time.Time      `json:"slot_end" validate:"required"`
	Position    int            `json:"position"`
	Status      WaitlistStatus `json:"status"`
	OfferedAt   *time.Time     `json:"offered_at,omitempty"`
	OfferExpiry *time.Time     `json:"offer_expires_at,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// OfferExpiredAt reports whether an outstanding offer has lapsed.
func (e *WaitlistEntry) OfferExpiredAt(now time.Time) bool {
	return e.Status == WaitlistOffered && e.OfferExpiry != nil && e.OfferExpiry.Before(now)
}
