package domain

import "time"

// MetricsBucket aggregates counters per (date, hour). Counters only ever
// increase; external dashboards read them, the engine never does.
type MetricsBucket struct {
	ID               int64     `json:"id"`
	Date             string    `json:"date"` // YYYY-MM-DD
	Hour             int       `json:"hour"`
	HoldsCreated     int64     `json:"holds_created"`
	HoldsConfirmed   int64     `json:"holds_confirmed"`
	HoldsExpired     int64     `json:"holds_expired"`
	HoldsCancelled   int64     `json:"holds_cancelled"`
	RevenueCaptured  float64   `json:"revenue_captured"`
	PreauthSucceeded int64     `json:"preauth_succeeded"`
	PreauthFailed    int64     `json:"preauth_failed"`
	SyncFailures     int64     `json:"sync_failures"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// MetricDeltas is one tracked operation's contribution to the current bucket.
type MetricDeltas struct {
	HoldsCreated     int64
	HoldsConfirmed   int64
	HoldsExpired     int64
	HoldsCancelled   int64
	RevenueCaptured  float64
	PreauthSucceeded int64
	PreauthFailed    int64
	SyncFailures     int64
}
