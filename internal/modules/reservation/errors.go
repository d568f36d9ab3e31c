package reservation

import "errors"

var (
	ErrValidation         = errors.New("validation error")
	ErrNotFound           = errors.New("reservation not found")
	ErrSlotConflict       = errors.New("slot conflict")
	ErrInvalidToken       = errors.New("hold token mismatch")
	ErrHoldExpired        = errors.New("hold expired")
	ErrAlreadyProcessed   = errors.New("reservation already processed")
	ErrExtensionExhausted = errors.New("extension budget exhausted")
	ErrPreauthDeclined    = errors.New("pre-authorization declined")
	ErrPaymentFailed      = errors.New("payment capture failed")
	ErrConfirmFailed      = errors.New("confirmation failed")
)
