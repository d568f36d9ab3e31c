package admin

import (
	"context"
	"fmt"

	"slothold/internal/domain"
)

type Service struct {
	reservations ReservationAdmin
	auditLog     AuditReader
}

func NewService(reservations ReservationAdmin, auditLog AuditReader) *Service {
	return &Service{reservations: reservations, auditLog: auditLog}
}

func adminActor(operatorID int64) string {
	return fmt.Sprintf("admin:%d", operatorID)
}

func (s *Service) ForceConfirm(ctx context.Context, reservationID, operatorID int64) (*domain.Reservation, error) {
	return s.reservations.ForceConfirm(ctx, reservationID, adminActor(operatorID))
}

func (s *Service) ForceExpire(ctx context.Context, reservationID, operatorID int64) (*domain.Reservation, error) {
	return s.reservations.ForceExpire(ctx, reservationID, adminActor(operatorID))
}

func (s *Service) RetrySync(ctx context.Context, reservationID, operatorID int64) (*domain.Reservation, error) {
	return s.reservations.RetrySync(ctx, reservationID, adminActor(operatorID))
}

func (s *Service) ListAuditLog(ctx context.Context, reservationID string, limit, offset int) ([]domain.AuditLogEntry, error) {
	if reservationID != "" {
		return s.auditLog.ListByReservation(ctx, reservationID, limit)
	}
	return s.auditLog.List(ctx, limit, offset)
}
