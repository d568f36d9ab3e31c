package waitlist

import "time"

type JoinRequest struct {
	ProviderID  int64     `json:"provider_id" binding:"required"`
	RequesterID int64     `json:"requester_id" binding:"required"`
	SlotStart   time.Time `json:"slot_start" binding:"required"`
	SlotEnd     time.Time `json:"slot_end" binding:"required"`
}

type ClaimRequest struct {
	RequesterID int64 `json:"requester_id" binding:"required"`
}
