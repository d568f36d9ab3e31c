package domain

import "time"

type ConflictKind string

const (
	ConflictHold          ConflictKind = "hold"
	ConflictBooking       ConflictKind = "booking"
	ConflictCalendarBlock ConflictKind = "calendar_block"
)

// Conflict identifies an existing record that overlaps a requested window.
type Conflict struct {
	Kind          ConflictKind `json:"kind"`
	ReservationID int64        `json:"reservation_id,omitempty"`
	BlockEventID  string       `json:"block_event_id,omitempty"`
	SlotStart     time.Time    `json:"slot_start"`
	SlotEnd       time.Time    `json:"slot_end"`
}

// Overlaps is the strict half-open interval test: [aStart, aEnd) against [bStart, bEnd).
func Overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}
