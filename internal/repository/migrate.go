package repository

import (
	"gorm.io/gorm"
)

// Migrate creates the engine's tables and the no-double-hold backstop index.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&reservationModel{},
		&bookingModel{},
		&waitlistModel{},
		&auditModel{},
		&metricsModel{},
		&calendarBlockModel{},
		&notificationModel{},
	); err != nil {
		return err
	}

	// Partial unique index backing the conflict-check critical section: two
	// active reservations can never share (provider_id, slot_start). Both
	// postgres and sqlite support the WHERE clause.
	return db.Exec(`
CREATE UNIQUE INDEX IF NOT EXISTS idx_no_double_hold
ON reservations (provider_id, slot_start)
WHERE status IN ('hold', 'confirmed')
`).Error
}
