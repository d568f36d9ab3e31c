package domain

import "time"

// Audit action names. Every state transition and every failure writes one.
const (
	ActionHoldCreated       = "HOLD_CREATED"
	ActionHoldExtended      = "HOLD_EXTENDED"
	ActionHoldCancelled     = "HOLD_CANCELLED"
	ActionSlotConflict      = "SLOT_CONFLICT"
	ActionPreauthOK         = "PREAUTH_AUTHORIZED"
	ActionPreauthFailed     = "PREAUTH_FAILED"
	ActionPreauthReleased   = "PREAUTH_RELEASED"
	ActionPaymentCaptured   = "PAYMENT_CAPTURED"
	ActionPaymentRefunded   = "PAYMENT_REFUNDED"
	ActionContractSigned    = "CONTRACT_SIGNED"
	ActionConfirmed         = "CONFIRMED"
	ActionConfirmRolledBack = "CONFIRM_ROLLED_BACK"
	ActionExpired           = "EXPIRED"
	ActionFailed            = "FAILED"
	ActionWaitlistOffered   = "WAITLIST_OFFERED"
	ActionWaitlistExpired   = "WAITLIST_EXPIRED"
	ActionForceConfirmed    = "FORCE_CONFIRMED"
	ActionForceExpired      = "FORCE_EXPIRED"
	ActionSyncRetried       = "SYNC_RETRIED"
)

// ActorSystem marks transitions driven by sweeps and schedulers rather than a user.
const ActorSystem = "SYSTEM"

// NoReservation is used for audit entries written before a reservation exists,
// e.g. a conflict rejected at creation time.
const NoReservation = "N/A"

// AuditLogEntry is append-only: never updated, never deleted.
type AuditLogEntry struct {
	ID            int64     `json:"id"`
	ReservationID string    `json:"reservation_id"`
	Action        string    `json:"action"`
	BeforeStatus  string    `json:"before_status,omitempty"`
	AfterStatus   string    `json:"after_status,omitempty"`
	Actor         string    `json:"actor"`
	Detail        string    `json:"detail,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
