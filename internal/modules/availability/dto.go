package availability

import (
	"time"

	"slothold/internal/domain"
)

type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ConflictCheckResponse struct {
	Available bool              `json:"available"`
	Conflicts []domain.Conflict `json:"conflicts"`
}

type AvailabilityResponse struct {
	ProviderID  int64    `json:"provider_id"`
	Date        string   `json:"date"`
	FreeWindows []Window `json:"free_windows"`
	BusyWindows []Window `json:"busy_windows"`
}

type UnavailableDatesResponse struct {
	ProviderID int64    `json:"provider_id"`
	From       string   `json:"from"`
	To         string   `json:"to"`
	Dates      []string `json:"dates"`
}
