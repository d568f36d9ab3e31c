package waitlist

import (
	"context"
	"fmt"
	"log"
	"time"

	"slothold/internal/audit"
	"slothold/internal/domain"
	"slothold/internal/modules/reservation"
	"slothold/internal/notify"
	"slothold/internal/pkg/clock"
)

// DefaultOfferWindow is how long a member has to claim a freed slot before it
// moves to the next candidate.
const DefaultOfferWindow = 60 * time.Minute

type Service struct {
	entries     WaitlistRepository
	audit       AuditLogger
	notifier    notify.Notifier
	holds       HoldCreator
	conflicts   ConflictChecker
	clk         clock.Clock
	offerWindow time.Duration
}

func NewService(entries WaitlistRepository, auditLog AuditLogger, notifier notify.Notifier, holds HoldCreator, conflicts ConflictChecker, clk clock.Clock, offerWindow time.Duration) *Service {
	if offerWindow <= 0 {
		offerWindow = DefaultOfferWindow
	}
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		entries:     entries,
		audit:       auditLog,
		notifier:    notifier,
		holds:       holds,
		conflicts:   conflicts,
		clk:         clk,
		offerWindow: offerWindow,
	}
}

func (s *Service) Join(ctx context.Context, req JoinRequest) (*domain.WaitlistEntry, error) {
	if req.ProviderID <= 0 || req.RequesterID <= 0 || !req.SlotEnd.After(req.SlotStart) {
		return nil, ErrValidation
	}
	e := &domain.WaitlistEntry{
		ProviderID:  req.ProviderID,
		RequesterID: req.RequesterID,
		SlotStart:   req.SlotStart,
		SlotEnd:     req.SlotEnd,
		Status:      domain.WaitlistWaiting,
	}
	if err := s.entries.Create(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

func (s *Service) GetEntry(ctx context.Context, id int64) (*domain.WaitlistEntry, error) {
	e, err := s.entries.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, ErrNotFound
	}
	return e, nil
}

// OfferFreedSlot hands the slot to the first waiting entry whose full desired
// window is actually clear. Best-effort: releasing a hold must not fail
// because the waitlist could not be updated.
func (s *Service) OfferFreedSlot(ctx context.Context, providerID int64, start, end time.Time) {
	rows, err := s.entries.ListWaitingOverlapping(ctx, providerID, start, end)
	if err != nil {
		log.Printf("waitlist_lookup_failed provider_id=%d err=%v", providerID, err)
		return
	}
	for i := range rows {
		if s.offer(ctx, &rows[i]) {
			return
		}
	}
}

// offer promotes a WAITING entry to OFFERED when its desired window is
// conflict-free. Returns false when the window is still blocked or the
// update failed; the caller moves on to the next candidate.
func (s *Service) offer(ctx context.Context, e *domain.WaitlistEntry) bool {
	if s.conflicts != nil {
		conflicts, err := s.conflicts.CheckConflicts(ctx, e.ProviderID, e.SlotStart, e.SlotEnd)
		if err != nil {
			log.Printf("waitlist_conflict_check_failed entry_id=%d err=%v", e.ID, err)
			return false
		}
		if len(conflicts) > 0 {
			return false
		}
	}

	now := s.clk.Now()
	expiry := now.Add(s.offerWindow)
	e.Status = domain.WaitlistOffered
	e.OfferedAt = &now
	e.OfferExpiry = &expiry
	e.UpdatedAt = now
	if err := s.entries.Update(ctx, e); err != nil {
		log.Printf("waitlist_offer_failed entry_id=%d err=%v", e.ID, err)
		return false
	}

	s.audit.Log(ctx, audit.Entry{
		ReservationID: domain.NoReservation,
		Action:        domain.ActionWaitlistOffered,
		Actor:         domain.ActorSystem,
		Detail: map[string]any{
			"entry_id":         e.ID,
			"provider_id":      e.ProviderID,
			"offer_expires_at": expiry,
		},
	})

	if err := s.notifier.Notify(ctx, e.RequesterID, domain.NotifyWaitlistOffered,
		"A slot opened up", fmt.Sprintf("Claim it before %s.", expiry.Format(time.RFC3339)),
		fmt.Sprintf("/waitlist/%d/claim", e.ID), domain.PriorityHigh); err != nil {
		log.Printf("notify_failed type=%s entry_id=%d err=%v", domain.NotifyWaitlistOffered, e.ID, err)
	}
	return true
}

// Claim converts an outstanding offer into a regular hold. The hold path
// re-runs the conflict check, so a claim can still lose the slot.
func (s *Service) Claim(ctx context.Context, entryID, requesterID int64) (*reservation.HoldResponse, error) {
	e, err := s.GetEntry(ctx, entryID)
	if err != nil {
		return nil, err
	}
	if e.RequesterID != requesterID {
		return nil, ErrForbidden
	}
	if e.Status != domain.WaitlistOffered {
		return nil, ErrNoOffer
	}

	now := s.clk.Now()
	if e.OfferExpiredAt(now) {
		s.expireOffer(ctx, e)
		return nil, ErrOfferExpired
	}

	resp, err := s.holds.CreateHold(ctx, reservation.CreateHoldRequest{
		ProviderID:  e.ProviderID,
		RequesterID: e.RequesterID,
		SlotStart:   e.SlotStart,
		SlotEnd:     e.SlotEnd,
	})
	if err != nil {
		return resp, err
	}

	e.Status = domain.WaitlistBooked
	e.UpdatedAt = now
	if uerr := s.entries.Update(ctx, e); uerr != nil {
		log.Printf("waitlist_update_failed entry_id=%d err=%v", e.ID, uerr)
	}
	return resp, nil
}

// SweepOffers expires lapsed offers, then walks the WAITING backlog in
// position order and promotes every entry whose desired window has become
// clear — whether it was freed by an expired offer, a failed earlier offer
// attempt, or any release path the event-driven hand-off missed.
func (s *Service) SweepOffers(ctx context.Context) (int, error) {
	rows, err := s.entries.ListOfferedBefore(ctx, s.clk.Now())
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range rows {
		s.expireOffer(ctx, &rows[i])
		expired++
	}

	waiting, err := s.entries.ListWaiting(ctx)
	if err != nil {
		return expired, err
	}
	var taken []domain.WaitlistEntry
	promoted := 0
	for i := range waiting {
		e := waiting[i]
		// One offer per window per pass; the runner-up waits its turn.
		if overlapsAny(taken, &e) {
			continue
		}
		if s.offer(ctx, &e) {
			taken = append(taken, e)
			promoted++
		}
	}

	if expired > 0 || promoted > 0 {
		log.Printf("waitlist_sweep_done expired=%d promoted=%d", expired, promoted)
	}
	return expired, nil
}

func overlapsAny(offered []domain.WaitlistEntry, e *domain.WaitlistEntry) bool {
	for i := range offered {
		if offered[i].ProviderID == e.ProviderID &&
			domain.Overlaps(offered[i].SlotStart, offered[i].SlotEnd, e.SlotStart, e.SlotEnd) {
			return true
		}
	}
	return false
}

func (s *Service) expireOffer(ctx context.Context, e *domain.WaitlistEntry) {
	e.Status = domain.WaitlistExpired
	e.UpdatedAt = s.clk.Now()
	if err := s.entries.Update(ctx, e); err != nil {
		log.Printf("waitlist_update_failed entry_id=%d err=%v", e.ID, err)
		return
	}
	s.audit.Log(ctx, audit.Entry{
		ReservationID: domain.NoReservation,
		Action:        domain.ActionWaitlistExpired,
		Actor:         domain.ActorSystem,
		Detail:        map[string]any{"entry_id": e.ID},
	})
}
