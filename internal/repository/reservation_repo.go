package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"slothold/internal/domain"
)

type ReservationRepository struct {
	db *gorm.DB
}

func NewReservationRepository(db *gorm.DB) *ReservationRepository {
	return &ReservationRepository{db: db}
}

type reservationModel struct {
	ID             int64   `gorm:"column:id;primaryKey"`
	HoldToken      string  `gorm:"column:hold_token;size:64"`
	IdempotencyKey *string `gorm:"column:idempotency_key;size:128;uniqueIndex:idx_reservations_idem_key"`

	ProviderID  int64  `gorm:"column:provider_id;index:idx_reservations_provider"`
	RequesterID int64  `gorm:"column:requester_id;index"`
	EventID     *int64 `gorm:"column:event_id"`
	PackageID   *int64 `gorm:"column:package_id"`

	SlotStart time.Time `gorm:"column:slot_start;index:idx_reservations_provider"`
	SlotEnd   time.Time `gorm:"column:slot_end"`

	Status         string    `gorm:"column:status;size:16;index"`
	ExpiresAt      time.Time `gorm:"column:expires_at;index"`
	ExtensionsUsed int       `gorm:"column:extensions_used"`
	MaxExtensions  int       `gorm:"column:max_extensions"`
	ReminderSent   bool      `gorm:"column:reminder_sent"`

	PreauthStatus   string  `gorm:"column:preauth_status;size:16"`
	PreauthAmount   float64 `gorm:"column:preauth_amount"`
	PreauthID       *string `gorm:"column:preauth_id;size:128"`
	PaymentID       *string `gorm:"column:payment_id;size:128"`
	PaymentCaptured bool    `gorm:"column:payment_captured"`

	BookingID       *int64  `gorm:"column:booking_id"`
	CalendarEventID *string `gorm:"column:calendar_event_id;size:64"`
	SyncStatus      string  `gorm:"column:sync_status;size:16"`

	CreatedAt time.Time `gorm:"column:created_at"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (reservationModel) TableName() string { return "reservations" }

func toDomainReservation(m reservationModel) *domain.Reservation {
	r := &domain.Reservation{
		ID:              m.ID,
		HoldToken:       m.HoldToken,
		ProviderID:      m.ProviderID,
		RequesterID:     m.RequesterID,
		EventID:         m.EventID,
		PackageID:       m.PackageID,
		SlotStart:       m.SlotStart,
		SlotEnd:         m.SlotEnd,
		Status:          domain.ReservationStatus(m.Status),
		ExpiresAt:       m.ExpiresAt,
		ExtensionsUsed:  m.ExtensionsUsed,
		MaxExtensions:   m.MaxExtensions,
		ReminderSent:    m.ReminderSent,
		PreauthStatus:   domain.PreauthStatus(m.PreauthStatus),
		PreauthAmount:   m.PreauthAmount,
		PaymentCaptured: m.PaymentCaptured,
		BookingID:       m.BookingID,
		SyncStatus:      domain.SyncStatus(m.SyncStatus),
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
	if m.IdempotencyKey != nil {
		r.IdempotencyKey = *m.IdempotencyKey
	}
	if m.PreauthID != nil {
		r.PreauthID = *m.PreauthID
	}
	if m.PaymentID != nil {
		r.PaymentID = *m.PaymentID
	}
	if m.CalendarEventID != nil {
		r.CalendarEventID = *m.CalendarEventID
	}
	return r
}

func toReservationModel(r *domain.Reservation) reservationModel {
	m := reservationModel{
		ID:              r.ID,
		HoldToken:       r.HoldToken,
		ProviderID:      r.ProviderID,
		RequesterID:     r.RequesterID,
		EventID:         r.EventID,
		PackageID:       r.PackageID,
		SlotStart:       r.SlotStart,
		SlotEnd:         r.SlotEnd,
		Status:          string(r.Status),
		ExpiresAt:       r.ExpiresAt,
		ExtensionsUsed:  r.ExtensionsUsed,
		MaxExtensions:   r.MaxExtensions,
		ReminderSent:    r.ReminderSent,
		PreauthStatus:   string(r.PreauthStatus),
		PreauthAmount:   r.PreauthAmount,
		PaymentCaptured: r.PaymentCaptured,
		BookingID:       r.BookingID,
		SyncStatus:      string(r.SyncStatus),
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
	}
	if r.IdempotencyKey != "" {
		v := r.IdempotencyKey
		m.IdempotencyKey = &v
	}
	if r.PreauthID != "" {
		v := r.PreauthID
		m.PreauthID = &v
	}
	if r.PaymentID != "" {
		v := r.PaymentID
		m.PaymentID = &v
	}
	if r.CalendarEventID != "" {
		v := r.CalendarEventID
		m.CalendarEventID = &v
	}
	return m
}

func (r *ReservationRepository) Create(ctx context.Context, res *domain.Reservation) error {
	m := toReservationModel(res)
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	res.ID = m.ID
	res.CreatedAt = m.CreatedAt
	res.UpdatedAt = m.UpdatedAt
	return nil
}

// GetByID returns nil without error when no reservation exists.
func (r *ReservationRepository) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	var m reservationModel
	err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomainReservation(m), nil
}

func (r *ReservationRepository) GetByIdempotencyKey(ctx context.Context, key string) (*domain.Reservation, error) {
	var m reservationModel
	err := r.db.WithContext(ctx).First(&m, "idempotency_key = ?", key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toDomainReservation(m), nil
}

func (r *ReservationRepository) Update(ctx context.Context, res *domain.Reservation) error {
	m := toReservationModel(res)
	return r.db.WithContext(ctx).Save(&m).Error
}

// ListActiveOverlapping returns holds and confirmed reservations whose
// [slot_start, slot_end) strictly overlaps the given window.
func (r *ReservationRepository) ListActiveOverlapping(ctx context.Context, providerID int64, start, end time.Time) ([]domain.Reservation, error) {
	var rows []reservationModel
	err := r.db.WithContext(ctx).
		Where("provider_id = ?", providerID).
		Where("status IN ?", []string{string(domain.ReservationHold), string(domain.ReservationConfirmed)}).
		Where("slot_start < ? AND slot_end > ?", end, start).
		Order("slot_start ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Reservation, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainReservation(m))
	}
	return out, nil
}

// ListExpired returns holds whose deadline passed before now.
func (r *ReservationRepository) ListExpired(ctx context.Context, now time.Time) ([]domain.Reservation, error) {
	var rows []reservationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at < ?", string(domain.ReservationHold), now).
		Order("expires_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Reservation, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainReservation(m))
	}
	return out, nil
}

// ListExpiringBefore returns live holds due before the deadline that have not
// been reminded yet.
func (r *ReservationRepository) ListExpiringBefore(ctx context.Context, deadline time.Time) ([]domain.Reservation, error) {
	var rows []reservationModel
	err := r.db.WithContext(ctx).
		Where("status = ? AND reminder_sent = ? AND expires_at < ?", string(domain.ReservationHold), false, deadline).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.Reservation, 0, len(rows))
	for _, m := range rows {
		out = append(out, *toDomainReservation(m))
	}
	return out, nil
}
