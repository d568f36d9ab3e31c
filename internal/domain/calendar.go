package domain

import "time"

type CalendarBlockState string

const (
	BlockTentative CalendarBlockState = "tentative"
	BlockConfirmed CalendarBlockState = "confirmed"
	BlockCancelled CalendarBlockState = "cancelled"
)

// CalendarBlock mirrors the provider calendar entry behind a reservation.
// The opaque EventID is what the reservation stores.
type CalendarBlock struct {
	ID         int64              `json:"id"`
	EventID    string             `json:"event_id"`
	ProviderID int64              `json:"provider_id"`
	SlotStart  time.Time          `json:"slot_start"`
	SlotEnd    time.Time          `json:"slot_end"`
	State      CalendarBlockState `json:"state"`
	CreatedAt  time.Time          `json:"created_at"`
	UpdatedAt  time.Time          `json:"updated_at"`
}
