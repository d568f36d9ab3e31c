package availability

import (
	"context"
	"sort"
	"time"

	"slothold/internal/domain"
)

// Providers without an explicit schedule are treated as bookable 09:00-21:00 UTC.
const (
	dayOpenHour  = 9
	dayCloseHour = 21

	// A date counts as unavailable when no free window of at least this
	// length remains.
	minBookableWindow = time.Hour

	maxDateRangeDays = 92
)

type Service struct {
	reservations ReservationReader
	blocks       BlockReader
}

func NewService(reservations ReservationReader, blocks BlockReader) *Service {
	return &Service{reservations: reservations, blocks: blocks}
}

// CheckConflicts returns every active hold, confirmed reservation and calendar
// block that overlaps the requested window. A block created by one of the
// returned reservations is folded into that reservation's entry instead of
// being reported twice.
func (s *Service) CheckConflicts(ctx context.Context, providerID int64, start, end time.Time) ([]domain.Conflict, error) {
	if providerID <= 0 || !end.After(start) {
		return nil, ErrValidation
	}

	rs, err := s.reservations.ListActiveOverlapping(ctx, providerID, start, end)
	if err != nil {
		return nil, err
	}

	conflicts := make([]domain.Conflict, 0, len(rs))
	ownedBlocks := make(map[string]struct{}, len(rs))
	for _, r := range rs {
		kind := domain.ConflictHold
		if r.Status == domain.ReservationConfirmed {
			kind = domain.ConflictBooking
		}
		conflicts = append(conflicts, domain.Conflict{
			Kind:          kind,
			ReservationID: r.ID,
			SlotStart:     r.SlotStart,
			SlotEnd:       r.SlotEnd,
		})
		if r.CalendarEventID != "" {
			ownedBlocks[r.CalendarEventID] = struct{}{}
		}
	}

	bs, err := s.blocks.ListActiveOverlapping(ctx, providerID, start, end)
	if err != nil {
		return nil, err
	}
	for _, b := range bs {
		if _, ok := ownedBlocks[b.EventID]; ok {
			continue
		}
		conflicts = append(conflicts, domain.Conflict{
			Kind:         domain.ConflictCalendarBlock,
			BlockEventID: b.EventID,
			SlotStart:    b.SlotStart,
			SlotEnd:      b.SlotEnd,
		})
	}

	return conflicts, nil
}

func (s *Service) CheckAvailability(ctx context.Context, providerID int64, start, end time.Time) (*ConflictCheckResponse, error) {
	conflicts, err := s.CheckConflicts(ctx, providerID, start, end)
	if err != nil {
		return nil, err
	}
	return &ConflictCheckResponse{Available: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// GetAvailability returns the free and busy windows for one provider day.
func (s *Service) GetAvailability(ctx context.Context, providerID int64, dateStr string) (*AvailabilityResponse, error) {
	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return nil, ErrValidation
	}

	open, close := dayWindow(day)
	busy, err := s.busyWindows(ctx, providerID, open, close)
	if err != nil {
		return nil, err
	}

	return &AvailabilityResponse{
		ProviderID:  providerID,
		Date:        dateStr,
		FreeWindows: subtractBusy(open, close, busy),
		BusyWindows: busy,
	}, nil
}

// GetUnavailableDates returns the dates in [from, to] that cannot fit a
// minimum-length booking anymore.
func (s *Service) GetUnavailableDates(ctx context.Context, providerID int64, fromStr, toStr string) (*UnavailableDatesResponse, error) {
	from, err := time.Parse("2006-01-02", fromStr)
	if err != nil {
		return nil, ErrValidation
	}
	to, err := time.Parse("2006-01-02", toStr)
	if err != nil {
		return nil, ErrValidation
	}
	if to.Before(from) || to.Sub(from) > maxDateRangeDays*24*time.Hour {
		return nil, ErrValidation
	}

	dates := make([]string, 0)
	for day := from; !day.After(to); day = day.Add(24 * time.Hour) {
		open, close := dayWindow(day)
		busy, err := s.busyWindows(ctx, providerID, open, close)
		if err != nil {
			return nil, err
		}
		if !hasBookableWindow(subtractBusy(open, close, busy)) {
			dates = append(dates, day.Format("2006-01-02"))
		}
	}

	return &UnavailableDatesResponse{
		ProviderID: providerID,
		From:       fromStr,
		To:         toStr,
		Dates:      dates,
	}, nil
}

func (s *Service) busyWindows(ctx context.Context, providerID int64, open, close time.Time) ([]Window, error) {
	conflicts, err := s.CheckConflicts(ctx, providerID, open, close)
	if err != nil {
		return nil, err
	}
	busy := make([]Window, 0, len(conflicts))
	for _, c := range conflicts {
		busy = append(busy, Window{Start: c.SlotStart, End: c.SlotEnd})
	}
	return busy, nil
}

func dayWindow(day time.Time) (time.Time, time.Time) {
	open := time.Date(day.Year(), day.Month(), day.Day(), dayOpenHour, 0, 0, 0, time.UTC)
	close := time.Date(day.Year(), day.Month(), day.Day(), dayCloseHour, 0, 0, 0, time.UTC)
	return open, close
}

func hasBookableWindow(free []Window) bool {
	for _, w := range free {
		if w.End.Sub(w.Start) >= minBookableWindow {
			return true
		}
	}
	return false
}

// subtractBusy clamps the busy windows to [open, close), merges overlaps and
// returns the remaining gaps.
func subtractBusy(open, close time.Time, busy []Window) []Window {
	if len(busy) == 0 {
		return []Window{{Start: open, End: close}}
	}

	clamped := make([]Window, 0, len(busy))
	for _, w := range busy {
		if !w.End.After(open) || !w.Start.Before(close) {
			continue
		}
		if w.Start.Before(open) {
			w.Start = open
		}
		if w.End.After(close) {
			w.End = close
		}
		if w.End.After(w.Start) {
			clamped = append(clamped, w)
		}
	}
	if len(clamped) == 0 {
		return []Window{{Start: open, End: close}}
	}

	sort.Slice(clamped, func(i, j int) bool { return clamped[i].Start.Before(clamped[j].Start) })

	merged := clamped[:1]
	for _, w := range clamped[1:] {
		last := &merged[len(merged)-1]
		if !w.Start.After(last.End) {
			if w.End.After(last.End) {
				last.End = w.End
			}
			continue
		}
		merged = append(merged, w)
	}

	out := make([]Window, 0, len(merged)+1)
	cur := open
	for _, b := range merged {
		if b.Start.After(cur) {
			out = append(out, Window{Start: cur, End: b.Start})
		}
		if b.End.After(cur) {
			cur = b.End
		}
		if !cur.Before(close) {
			break
		}
	}
	if cur.Before(close) {
		out = append(out, Window{Start: cur, End: close})
	}
	return out
}
