package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"slothold/internal/domain"
)

type BookingRepository struct {
	db *gorm.DB
}

func NewBookingRepository(db *gorm.DB) *BookingRepository {
	return &BookingRepository{db: db}
}

type bookingModel struct {
	ID            int64     `gorm:"column:id;primaryKey"`
	ReservationID int64     `gorm:"column:reservation_id;uniqueIndex"`
	ProviderID    int64     `gorm:"column:provider_id;index"`
	RequesterID   int64     `gorm:"column:requester_id;index"`
	SlotStart     time.Time `gorm:"column:slot_start"`
	SlotEnd       time.Time `gorm:"column:slot_end"`
	TotalAmount   float64   `gorm:"column:total_amount"`
	Status        string    `gorm:"column:status;size:16"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (bookingModel) TableName() string { return "bookings" }

func toDomainBooking(m bookingModel) *domain.Booking {
	return &domain.Booking{
		ID:            m.ID,
		ReservationID: m.ReservationID,
		ProviderID:    m.ProviderID,
		RequesterID:   m.RequesterID,
		SlotStart:     m.SlotStart,
		SlotEnd:       m.SlotEnd,
		TotalAmount:   m.TotalAmount,
		Status:        domain.BookingStatus(m.Status),
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
	}
}

func (r *BookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	m := bookingModel{
		ReservationID: b.ReservationID,
		ProviderID:    b.ProviderID,
		RequesterID:   b.RequesterID,
		SlotStart:     b.SlotStart,
		SlotEnd:       b.SlotEnd,
		TotalAmount:   b.TotalAmount,
		Status:        string(b.Status),
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	b.ID = m.ID
	b.CreatedAt = m.CreatedAt
	b.UpdatedAt = m.UpdatedAt
	return nil
}

func (r *BookingRepository) GetByReservationID(ctx context.Context, reservationID int64) (*domain.Booking, error) {
	var m bookingModel
	err := r.db.WithContext(ctx).First(&m, "reservation_id = ?", reservationID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomainBooking(m), nil
}

// Delete removes a booking; used only by confirmation rollback.
func (r *BookingRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Delete(&bookingModel{}, "id = ?", id).Error
}
