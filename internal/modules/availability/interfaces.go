package availability

import (
	"context"
	"time"

	"slothold/internal/domain"
)

// ReservationReader exposes the active-overlap query the detector needs.
type ReservationReader interface {
	ListActiveOverlapping(ctx context.Context, providerID int64, start, end time.Time) ([]domain.Reservation, error)
}

// BlockReader exposes provider calendar blocks.
type BlockReader interface {
	ListActiveOverlapping(ctx context.Context, providerID int64, start, end time.Time) ([]domain.CalendarBlock, error)
}
