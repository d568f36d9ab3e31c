package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"slothold/internal/domain"
)

type MetricsRepository struct {
	db *gorm.DB
}

func NewMetricsRepository(db *gorm.DB) *MetricsRepository {
	return &MetricsRepository{db: db}
}

type metricsModel struct {
	ID               int64     `gorm:"column:id;primaryKey"`
	Date             string    `gorm:"column:date;size:10;uniqueIndex:idx_metrics_bucket"`
	Hour             int       `gorm:"column:hour;uniqueIndex:idx_metrics_bucket"`
	HoldsCreated     int64     `gorm:"column:holds_created"`
	HoldsConfirmed   int64     `gorm:"column:holds_confirmed"`
	HoldsExpired     int64     `gorm:"column:holds_expired"`
	HoldsCancelled   int64     `gorm:"column:holds_cancelled"`
	RevenueCaptured  float64   `gorm:"column:revenue_captured"`
	PreauthSucceeded int64     `gorm:"column:preauth_succeeded"`
	PreauthFailed    int64     `gorm:"column:preauth_failed"`
	SyncFailures     int64     `gorm:"column:sync_failures"`
	UpdatedAt        time.Time `gorm:"column:updated_at"`
}

func (metricsModel) TableName() string { return "metrics_buckets" }

// Increment upserts the (date, hour) bucket and adds the deltas. Counters are
// monotonic; the engine never reads them back.
func (r *MetricsRepository) Increment(ctx context.Context, at time.Time, d domain.MetricDeltas) error {
	at = at.UTC()
	date := at.Format("2006-01-02")
	hour := at.Hour()

	res := r.db.WithContext(ctx).Model(&metricsModel{}).
		Where("date = ? AND hour = ?", date, hour).
		Updates(map[string]any{
			"holds_created":     gorm.Expr("holds_created + ?", d.HoldsCreated),
			"holds_confirmed":   gorm.Expr("holds_confirmed + ?", d.HoldsConfirmed),
			"holds_expired":     gorm.Expr("holds_expired + ?", d.HoldsExpired),
			"holds_cancelled":   gorm.Expr("holds_cancelled + ?", d.HoldsCancelled),
			"revenue_captured":  gorm.Expr("revenue_captured + ?", d.RevenueCaptured),
			"preauth_succeeded": gorm.Expr("preauth_succeeded + ?", d.PreauthSucceeded),
			"preauth_failed":    gorm.Expr("preauth_failed + ?", d.PreauthFailed),
			"sync_failures":     gorm.Expr("sync_failures + ?", d.SyncFailures),
			"updated_at":        at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	m := metricsModel{
		Date:             date,
		Hour:             hour,
		HoldsCreated:     d.HoldsCreated,
		HoldsConfirmed:   d.HoldsConfirmed,
		HoldsExpired:     d.HoldsExpired,
		HoldsCancelled:   d.HoldsCancelled,
		RevenueCaptured:  d.RevenueCaptured,
		PreauthSucceeded: d.PreauthSucceeded,
		PreauthFailed:    d.PreauthFailed,
		SyncFailures:     d.SyncFailures,
		UpdatedAt:        at,
	}
	if err := r.db.WithContext(ctx).Create(&m).Error; err == nil {
		return nil
	}

	// Lost the insert race to a concurrent writer; the bucket exists now.
	return r.db.WithContext(ctx).Model(&metricsModel{}).
		Where("date = ? AND hour = ?", date, hour).
		Updates(map[string]any{
			"holds_created":     gorm.Expr("holds_created + ?", d.HoldsCreated),
			"holds_confirmed":   gorm.Expr("holds_confirmed + ?", d.HoldsConfirmed),
			"holds_expired":     gorm.Expr("holds_expired + ?", d.HoldsExpired),
			"holds_cancelled":   gorm.Expr("holds_cancelled + ?", d.HoldsCancelled),
			"revenue_captured":  gorm.Expr("revenue_captured + ?", d.RevenueCaptured),
			"preauth_succeeded": gorm.Expr("preauth_succeeded + ?", d.PreauthSucceeded),
			"preauth_failed":    gorm.Expr("preauth_failed + ?", d.PreauthFailed),
			"sync_failures":     gorm.Expr("sync_failures + ?", d.SyncFailures),
			"updated_at":        at,
		}).Error
}
