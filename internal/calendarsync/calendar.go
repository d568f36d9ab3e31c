package calendarsync

import (
	"context"
	"time"

	"github.com/google/uuid"

	"slothold/internal/domain"
)

// Sink is the calendar collaborator contract, keyed by an opaque event id
// that the reservation stores.
type Sink interface {
	CreateTentativeBlock(ctx context.Context, providerID int64, start, end time.Time) (string, error)
	ConfirmBlock(ctx context.Context, eventID string) error
	CancelBlock(ctx context.Context, eventID string) error
}

type BlockStore interface {
	Create(ctx context.Context, b *domain.CalendarBlock) error
	UpdateState(ctx context.Context, eventID string, state domain.CalendarBlockState) error
}

// DBSink keeps blocks in the marketplace database. The conflict detector
// reads them back as blocked windows, so a tentative block already shields
// the slot.
type DBSink struct {
	store BlockStore
}

func NewDBSink(store BlockStore) *DBSink {
	return &DBSink{store: store}
}

func (s *DBSink) CreateTentativeBlock(ctx context.Context, providerID int64, start, end time.Time) (string, error) {
	b := &domain.CalendarBlock{
		EventID:    uuid.NewString(),
		ProviderID: providerID,
		SlotStart:  start,
		SlotEnd:    end,
		State:      domain.BlockTentative,
	}
	if err := s.store.Create(ctx, b); err != nil {
		return "", err
	}
	return b.EventID, nil
}

func (s *DBSink) ConfirmBlock(ctx context.Context, eventID string) error {
	return s.store.UpdateState(ctx, eventID, domain.BlockConfirmed)
}

func (s *DBSink) CancelBlock(ctx context.Context, eventID string) error {
	return s.store.UpdateState(ctx, eventID, domain.BlockCancelled)
}
