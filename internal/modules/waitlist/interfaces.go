package waitlist

import (
	"context"
	"time"

	"slothold/internal/audit"
	"slothold/internal/domain"
	"slothold/internal/modules/reservation"
)

type WaitlistRepository interface {
	Create(ctx context.Context, e *domain.WaitlistEntry) error
	GetByID(ctx context.Context, id int64) (*domain.WaitlistEntry, error)
	Update(ctx context.Context, e *domain.WaitlistEntry) error
	ListWaiting(ctx context.Context) ([]domain.WaitlistEntry, error)
	ListWaitingOverlapping(ctx context.Context, providerID int64, start, end time.Time) ([]domain.WaitlistEntry, error)
	ListOfferedBefore(ctx context.Context, now time.Time) ([]domain.WaitlistEntry, error)
}

// ConflictChecker re-validates an entry's full desired window before the
// slot is offered.
type ConflictChecker interface {
	CheckConflicts(ctx context.Context, providerID int64, start, end time.Time) ([]domain.Conflict, error)
}

type AuditLogger interface {
	Log(ctx context.Context, e audit.Entry)
}

// HoldCreator places a hold on behalf of a claiming waitlist member. The
// claim goes through the normal hold path, conflict check included.
type HoldCreator interface {
	CreateHold(ctx context.Context, req reservation.CreateHoldRequest) (*reservation.HoldResponse, error)
}
