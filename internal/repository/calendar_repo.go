package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"slothold/internal/domain"
)

type CalendarRepository struct {
	db *gorm.DB
}

func NewCalendarRepository(db *gorm.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

type calendarBlockModel struct {
	ID         int64     `gorm:"column:id;primaryKey"`
	EventID    string    `gorm:"column:event_id;size:64;uniqueIndex"`
	ProviderID int64     `gorm:"column:provider_id;index"`
	SlotStart  time.Time `gorm:"column:slot_start"`
	SlotEnd    time.Time `gorm:"column:slot_end"`
	State      string    `gorm:"column:state;size:16"`
	CreatedAt  time.Time `gorm:"column:created_at"`
	UpdatedAt  time.Time `gorm:"column:updated_at"`
}

func (calendarBlockModel) TableName() string { return "calendar_blocks" }

func toDomainBlock(m calendarBlockModel) *domain.CalendarBlock {
	return &domain.CalendarBlock{
		ID:         m.ID,
		EventID:    m.EventID,
		ProviderID: m.ProviderID,
		SlotStart:  m.SlotStart,
		SlotEnd:    m.SlotEnd,
		State:      domain.CalendarBlockState(m.State),
		CreatedAt:  m.CreatedAt,
		UpdatedAt:  m.UpdatedAt,
	}
}

func (r *CalendarRepository) Create(ctx context.Context, b *domain.CalendarBlock) error {
	m := calendarBlockModel{
		EventID:    b.EventID,
		ProviderID: b.ProviderID,
		SlotStart:  b.SlotStart,
		SlotEnd:    b.SlotEnd,
		State:      string(b.State),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	b.ID = m.ID
	b.CreatedAt = m.CreatedAt
	b.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *CalendarRepository) UpdateState(ctx context.Context, eventID string, state domain.CalendarBlockState) error {
	res := r.db.WithContext(ctx).Model(&calendarBlockModel{}).
		Where("event_id = ?", eventID).
		Update("state", string(state))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// ListActiveOverlapping returns non-cancelled blocks overlapping the window.
func (r *CalendarRepository) ListActiveOverlapping(ctx context.Context, providerID int64, start, end time.Time) ([]domain.CalendarBlock, error) {
	var rows []calendarBlockModel
	err := r.db.WithContext(ctx).
		Where("provider_id = ? AND state <> ?", providerID, string(domain.BlockCancelled)).
		Where("slot_start < ? AND slot_end > ?", end, start).
		Order("slot_start ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.CalendarBlock, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainBlock(m))
	}
	return out, nil
}
