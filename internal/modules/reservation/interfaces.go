package reservation

import (
	"context"
	"time"

	"slothold/internal/audit"
	"slothold/internal/domain"
)

type ReservationRepository interface {
	Create(ctx context.Context, res *domain.Reservation) error
	GetByID(ctx context.Context, id int64) (*domain.Reservation, error)
	GetByIdempotencyKey(ctx context.Context, key string) (*domain.Reservation, error)
	Update(ctx context.Context, res *domain.Reservation) error
	ListExpired(ctx context.Context, now time.Time) ([]domain.Reservation, error)
	ListExpiringBefore(ctx context.Context, deadline time.Time) ([]domain.Reservation, error)
}

type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) error
	GetByReservationID(ctx context.Context, reservationID int64) (*domain.Booking, error)
	Delete(ctx context.Context, id int64) error
}

// ConflictChecker is the availability module's read surface.
type ConflictChecker interface {
	CheckConflicts(ctx context.Context, providerID int64, start, end time.Time) ([]domain.Conflict, error)
}

type AuditLogger interface {
	Log(ctx context.Context, e audit.Entry)
}

type MetricsRecorder interface {
	Record(ctx context.Context, d domain.MetricDeltas)
}

// SlotOfferer hands a freed slot to the waitlist. Wired after construction
// because the waitlist module also depends on this one.
type SlotOfferer interface {
	OfferFreedSlot(ctx context.Context, providerID int64, start, end time.Time)
}
