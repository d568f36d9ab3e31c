package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"slothold/internal/domain"
)

type WaitlistRepository struct {
	db *gorm.DB
}

func NewWaitlistRepository(db *gorm.DB) *WaitlistRepository {
	return &WaitlistRepository{db: db}
}

type waitlistModel struct {
	ID          int64      `gorm:"column:id;primaryKey"`
	ProviderID  int64      `gorm:"column:provider_id;index"`
	RequesterID int64      `gorm:"column:requester_id;index"`
	SlotStart   time.Time  `gorm:"column:slot_start"`
	SlotEnd     time.Time  `gorm:"column:slot_end"`
	Position    int        `gorm:"column:position"`
	Status      string     `gorm:"column:status;size:16;index"`
	OfferedAt   *time.Time `gorm:"column:offered_at"`
	OfferExpiry *time.Time `gorm:"column:offer_expires_at"`
	CreatedAt   time.Time  `gorm:"column:created_at"`
	UpdatedAt   time.Time  `gorm:"column:updated_at"`
}

func (waitlistModel) TableName() string { return "waitlist_entries" }

func toDomainWaitlistEntry(m waitlistModel) *domain.WaitlistEntry {
	return &domain.WaitlistEntry{
		ID:          m.ID,
		ProviderID:  m.ProviderID,
		RequesterID: m.RequesterID,
		SlotStart:   m.SlotStart,
		SlotEnd:     m.SlotEnd,
		Position:    m.Position,
		Status:      domain.WaitlistStatus(m.Status),
		OfferedAt:   m.OfferedAt,
		OfferExpiry: m.OfferExpiry,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
}

// Create assigns the next queue position for the provider.
func (r *WaitlistRepository) Create(ctx context.Context, e *domain.WaitlistEntry) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var maxPos int
		row := tx.Model(&waitlistModel{}).
			Where("provider_id = ?", e.ProviderID).
			Select("COALESCE(MAX(position), 0)").
			Row()
		if err := row.Scan(&maxPos); err != nil {
			return err
		}

		m := waitlistModel{
			ProviderID:  e.ProviderID,
			RequesterID: e.RequesterID,
			SlotStart:   e.SlotStart,
			SlotEnd:     e.SlotEnd,
			Position:    maxPos + 1,
			Status:      string(e.Status),
		}
		if err := tx.Create(&m).Error; err != nil {
			return err
		}
		e.ID = m.ID
		e.Position = m.Position
		e.CreatedAt = m.CreatedAt
		e.UpdatedAt = m.UpdatedAt
		return nil
	})
}

func (r *WaitlistRepository) GetByID(ctx context.Context, id int64) (*domain.WaitlistEntry, error) {
	var m waitlistModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomainWaitlistEntry(m), nil
}

func (r *WaitlistRepository) Update(ctx context.Context, e *domain.WaitlistEntry) error {
	m := waitlistModel{
		ID:          e.ID,
		ProviderID:  e.ProviderID,
		RequesterID: e.RequesterID,
		SlotStart:   e.SlotStart,
		SlotEnd:     e.SlotEnd,
		Position:    e.Position,
		Status:      string(e.Status),
		OfferedAt:   e.OfferedAt,
		OfferExpiry: e.OfferExpiry,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	return r.db.WithContext(ctx).Save(&m).Error
}

// ListWaiting returns WAITING entries, lowest position first.
func (r *WaitlistRepository) ListWaiting(ctx context.Context) ([]domain.WaitlistEntry, error) {
	return r.list(ctx, r.db.WithContext(ctx).
		Where("status = ?", string(domain.WaitlistWaiting)).
		Order("position ASC"))
}

// ListWaitingOverlapping returns WAITING entries for the provider whose
// desired window overlaps the freed slot, lowest position first.
func (r *WaitlistRepository) ListWaitingOverlapping(ctx context.Context, providerID int64, start, end time.Time) ([]domain.WaitlistEntry, error) {
	return r.list(ctx, r.db.WithContext(ctx).
		Where("provider_id = ? AND status = ?", providerID, string(domain.WaitlistWaiting)).
		Where("slot_start < ? AND slot_end > ?", end, start).
		Order("position ASC"))
}

// ListOfferedBefore returns OFFERED entries whose response window lapsed.
func (r *WaitlistRepository) ListOfferedBefore(ctx context.Context, now time.Time) ([]domain.WaitlistEntry, error) {
	return r.list(ctx, r.db.WithContext(ctx).
		Where("status = ? AND offer_expires_at < ?", string(domain.WaitlistOffered), now))
}

func (r *WaitlistRepository) list(_ context.Context, q *gorm.DB) ([]domain.WaitlistEntry, error) {
	var rows []waitlistModel
	if err := q.Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]domain.WaitlistEntry, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainWaitlistEntry(m))
	}
	return out, nil
}
