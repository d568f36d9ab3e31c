package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"slothold/internal/domain"
)

type AuditRepository struct {
	db *gorm.DB
}

func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

type auditModel struct {
	ID            int64     `gorm:"column:id;primaryKey"`
	ReservationID string    `gorm:"column:reservation_id;size:32;index"`
	Action        string    `gorm:"column:action;size:32;index"`
	BeforeStatus  string    `gorm:"column:before_status;size:16"`
	AfterStatus   string    `gorm:"column:after_status;size:16"`
	Actor         string    `gorm:"column:actor;size:64"`
	Detail        string    `gorm:"column:detail;type:text"`
	CreatedAt     time.Time `gorm:"column:created_at;index"`
}

func (auditModel) TableName() string { return "audit_log" }

// Append inserts one entry. Rows are never updated or deleted.
func (r *AuditRepository) Append(ctx context.Context, e *domain.AuditLogEntry) error {
	m := auditModel{
		ReservationID: e.ReservationID,
		Action:        e.Action,
		BeforeStatus:  e.BeforeStatus,
		AfterStatus:   e.AfterStatus,
		Actor:         e.Actor,
		Detail:        e.Detail,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err != nil {
		return err
	}
	e.ID = m.ID
	e.CreatedAt = m.CreatedAt
	return nil
}

// ListByReservation returns one reservation's timeline, oldest first.
func (r *AuditRepository) ListByReservation(ctx context.Context, reservationID string, limit int) ([]domain.AuditLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []auditModel
	err := r.db.WithContext(ctx).
		Where("reservation_id = ?", reservationID).
		Order("id ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainAuditEntries(rows), nil
}

// List returns entries newest first, for the admin view.
func (r *AuditRepository) List(ctx context.Context, limit, offset int) ([]domain.AuditLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	var rows []auditModel
	err := r.db.WithContext(ctx).
		Order("id DESC").
		Limit(limit).
		Offset(offset).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return toDomainAuditEntries(rows), nil
}

func toDomainAuditEntries(rows []auditModel) []domain.AuditLogEntry {
	out := make([]domain.AuditLogEntry, 0, len(rows))
	for _, m := range rows {
		out = append(out, domain.AuditLogEntry{
			ID:            m.ID,
			ReservationID: m.ReservationID,
			Action:        m.Action,
			BeforeStatus:  m.BeforeStatus,
			AfterStatus:   m.AfterStatus,
			Actor:         m.Actor,
			Detail:        m.Detail,
			CreatedAt:     m.CreatedAt,
		})
	}
	return out
}
