package waitlist

import "errors"

var (
	ErrValidation   = errors.New("validation error")
	ErrNotFound     = errors.New("waitlist entry not found")
	ErrForbidden    = errors.New("entry belongs to another requester")
	ErrNoOffer      = errors.New("entry has no active offer")
	ErrOfferExpired = errors.New("offer window has lapsed")
)
