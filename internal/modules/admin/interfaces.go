package admin

import (
	"context"

	"slothold/internal/domain"
)

// ReservationAdmin is the operator surface of the reservation engine.
type ReservationAdmin interface {
	ForceConfirm(ctx context.Context, id int64, actor string) (*domain.Reservation, error)
	ForceExpire(ctx context.Context, id int64, actor string) (*domain.Reservation, error)
	RetrySync(ctx context.Context, id int64, actor string) (*domain.Reservation, error)
}

type AuditReader interface {
	List(ctx context.Context, limit, offset int) ([]domain.AuditLogEntry, error)
	ListByReservation(ctx context.Context, reservationID string, limit int) ([]domain.AuditLogEntry, error)
}
