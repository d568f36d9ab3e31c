package reservation

import (
	"time"

	"slothold/internal/domain"
)

type CreateHoldRequest struct {
	ProviderID  int64  `json:"provider_id" binding:"required"`
	RequesterID int64  `json:"requester_id" binding:"required"`
	EventID     *int64 `json:"event_id"`
	PackageID   *int64 `json:"package_id"`

	SlotStart time.Time `json:"slot_start" binding:"required"`
	SlotEnd   time.Time `json:"slot_end" binding:"required"`

	// Amount > 0 triggers a pre-authorization for that amount.
	Amount    float64 `json:"amount"`
	Currency  string  `json:"currency"`
	CardToken string  `json:"card_token"`

	// Taken from the Idempotency-Key header when present.
	IdempotencyKey string `json:"-"`
}

type HoldResponse struct {
	Reservation *domain.Reservation `json:"reservation,omitempty"`
	Duplicate   bool                `json:"duplicate,omitempty"`
	Conflicts   []domain.Conflict   `json:"conflicts,omitempty"`
}

type ExtendHoldRequest struct {
	HoldToken string `json:"hold_token" binding:"required"`
}

type CancelHoldRequest struct {
	HoldToken string `json:"hold_token" binding:"required"`
}

// ContractSignedEvent is the e-signature collaborator's webhook payload.
type ContractSignedEvent struct {
	SignatureID   string    `json:"signature_id" binding:"required"`
	ReservationID int64     `json:"reservation_id" binding:"required"`
	HoldToken     string    `json:"hold_token" binding:"required"`
	EventType     string    `json:"event_type" binding:"required"`
	SignedAt      time.Time `json:"signed_at"`
}

// Webhook event types delivered by the signature collaborator.
const (
	EventEnvelopeCompleted = "envelope-completed"
	EventEnvelopeDeclined  = "envelope-declined"
	EventEnvelopeVoided    = "envelope-voided"
)

type WebhookResult struct {
	ReservationID int64                    `json:"reservation_id"`
	Status        domain.ReservationStatus `json:"status"`
	BookingID     *int64                   `json:"booking_id,omitempty"`
	Duplicate     bool                     `json:"duplicate,omitempty"`
}
