package domain

import "time"

type BookingStatus string

const (
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is the permanent record materialized when a hold is confirmed.
type Booking struct {
	ID            int64         `json:"id"`
	ReservationID int64         `json:"reservation_id"`
	ProviderID    int64         `json:"provider_id"`
	RequesterID   int64         `json:"requester_id"`
	SlotStart     time.Time     `json:"slot_start"`
	SlotEnd       time.Time     `json:"slot_end"`
	TotalAmount   float64       `json:"total_amount"`
	Status        BookingStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at"`
}
