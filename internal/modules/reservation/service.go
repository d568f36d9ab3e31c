package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"slothold/internal/audit"
	"slothold/internal/calendarsync"
	"slothold/internal/domain"
	"slothold/internal/notify"
	"slothold/internal/payments"
	"slothold/internal/pkg/clock"
	"slothold/internal/pkg/resilience"
	"slothold/internal/pkg/txn"
)

type Options struct {
	HoldTTL       time.Duration
	ExtensionTTL  time.Duration
	MaxExtensions int
	// ReminderLead is how long before expiry the expiring-soon notification
	// goes out.
	ReminderLead time.Duration
}

func DefaultOptions() Options {
	return Options{
		HoldTTL:       20 * time.Minute,
		ExtensionTTL:  10 * time.Minute,
		MaxExtensions: domain.DefaultMaxExtensions,
		ReminderLead:  5 * time.Minute,
	}
}

type Deps struct {
	Reservations ReservationRepository
	Bookings     BookingRepository
	Conflicts    ConflictChecker
	Audit        AuditLogger
	Metrics      MetricsRecorder
	Notifier     notify.Notifier
	Calendar     calendarsync.Sink
	Payments     payments.Provider
	Guard        *resilience.IdempotencyGuard
	Clock        clock.Clock
}

type Service struct {
	opts Options

	reservations ReservationRepository
	bookings     BookingRepository
	conflicts    ConflictChecker
	audit        AuditLogger
	metrics      MetricsRecorder
	notifier     notify.Notifier
	calendar     calendarsync.Sink
	payments     payments.Provider

	waitlist SlotOfferer

	clk          clock.Clock
	slotLocks    *resilience.KeyedMutex
	guard        *resilience.IdempotencyGuard
	orchestrator *txn.Orchestrator
	payBreaker   *resilience.CircuitBreaker
	calBreaker   *resilience.CircuitBreaker
	payRetry     *resilience.Retryer
	calRetry     *resilience.Retryer
}

func NewService(opts Options, d Deps) *Service {
	if opts.HoldTTL <= 0 {
		opts.HoldTTL = 20 * time.Minute
	}
	if opts.ExtensionTTL <= 0 {
		opts.ExtensionTTL = 10 * time.Minute
	}
	if opts.MaxExtensions < 0 {
		opts.MaxExtensions = domain.DefaultMaxExtensions
	}
	if opts.ReminderLead <= 0 {
		opts.ReminderLead = 5 * time.Minute
	}
	clk := d.Clock
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &Service{
		opts:         opts,
		reservations: d.Reservations,
		bookings:     d.Bookings,
		conflicts:    d.Conflicts,
		audit:        d.Audit,
		metrics:      d.Metrics,
		notifier:     d.Notifier,
		calendar:     d.Calendar,
		payments:     d.Payments,
		clk:          clk,
		slotLocks:    resilience.NewKeyedMutex(),
		guard:        d.Guard,
		orchestrator: txn.NewOrchestrator(d.Guard, clk),
		payBreaker:   resilience.NewCircuitBreaker("payment-gateway", resilience.DefaultBreakerOptions(), clk),
		calBreaker:   resilience.NewCircuitBreaker("calendar-sync", resilience.DefaultBreakerOptions(), clk),
		payRetry:     resilience.NewRetryer(resilience.PaymentRetryOptions()),
		calRetry:     resilience.NewRetryer(resilience.DefaultRetryOptions()),
	}
}

// SetSlotOfferer wires the waitlist after construction; the waitlist module
// depends on this one for claiming, so the edge cannot go through the
// constructor.
func (s *Service) SetSlotOfferer(o SlotOfferer) {
	s.waitlist = o
}

// slotKey serializes conflict-check-then-persist per provider slot. The start
// is truncated to the minute so formatting noise cannot split the lock.
func slotKey(providerID int64, start time.Time) string {
	return fmt.Sprintf("%d:%s", providerID, start.UTC().Truncate(time.Minute).Format(time.RFC3339))
}

func userActor(id int64) string {
	return fmt.Sprintf("user:%d", id)
}

// CreateHold places a time-boxed hold on the slot. Pre-authorization and
// calendar sync are best-effort: their failure is recorded on the hold but
// never destroys it.
func (s *Service) CreateHold(ctx context.Context, req CreateHoldRequest) (*HoldResponse, error) {
	now := s.clk.Now()
	if req.ProviderID <= 0 || req.RequesterID <= 0 {
		return nil, ErrValidation
	}
	if !req.SlotEnd.After(req.SlotStart) || req.SlotStart.Before(now) {
		return nil, ErrValidation
	}
	if req.Amount > 0 && req.CardToken == "" {
		return nil, ErrValidation
	}

	if req.IdempotencyKey != "" {
		existing, err := s.reservations.GetByIdempotencyKey(ctx, req.IdempotencyKey)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return &HoldResponse{Reservation: existing, Duplicate: true}, nil
		}
	}

	unlock := s.slotLocks.Lock(slotKey(req.ProviderID, req.SlotStart))
	defer unlock()

	conflicts, err := s.conflicts.CheckConflicts(ctx, req.ProviderID, req.SlotStart, req.SlotEnd)
	if err != nil {
		return nil, err
	}
	if len(conflicts) > 0 {
		s.audit.Log(ctx, audit.Entry{
			ReservationID: domain.NoReservation,
			Action:        domain.ActionSlotConflict,
			Actor:         userActor(req.RequesterID),
			Detail: map[string]any{
				"provider_id": req.ProviderID,
				"slot_start":  req.SlotStart,
				"conflicts":   len(conflicts),
			},
		})
		return &HoldResponse{Conflicts: conflicts}, ErrSlotConflict
	}

	res := &domain.Reservation{
		HoldToken:      uuid.NewString(),
		IdempotencyKey: req.IdempotencyKey,
		ProviderID:     req.ProviderID,
		RequesterID:    req.RequesterID,
		EventID:        req.EventID,
		PackageID:      req.PackageID,
		SlotStart:      req.SlotStart,
		SlotEnd:        req.SlotEnd,
		Status:         domain.ReservationHold,
		ExpiresAt:      now.Add(s.opts.HoldTTL),
		MaxExtensions:  s.opts.MaxExtensions,
		PreauthStatus:  domain.PreauthNotRequired,
		PreauthAmount:  req.Amount,
		SyncStatus:     domain.SyncPending,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if req.Amount > 0 {
		res.PreauthStatus = domain.PreauthPending
	}

	if err := s.reservations.Create(ctx, res); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			if strings.Contains(pgErr.ConstraintName, "idem_key") && req.IdempotencyKey != "" {
				existing, gerr := s.reservations.GetByIdempotencyKey(ctx, req.IdempotencyKey)
				if gerr == nil && existing != nil {
					return &HoldResponse{Reservation: existing, Duplicate: true}, nil
				}
			}
			// idx_no_double_hold caught a race the in-process lock could not
			// (e.g. a second instance).
			return nil, ErrSlotConflict
		}
		return nil, err
	}

	s.audit.Log(ctx, audit.Entry{
		ReservationID: fmt.Sprint(res.ID),
		Action:        domain.ActionHoldCreated,
		AfterStatus:   string(res.Status),
		Actor:         userActor(req.RequesterID),
		Detail:        map[string]any{"expires_at": res.ExpiresAt},
	})
	s.metrics.Record(ctx, domain.MetricDeltas{HoldsCreated: 1})

	if req.Amount > 0 {
		s.preauthorize(ctx, res, req)
	}
	s.createTentativeBlock(ctx, res)

	if err := s.reservations.Update(ctx, res); err != nil {
		return nil, err
	}

	if err := s.notifier.Notify(ctx, res.RequesterID, domain.NotifyHoldCreated,
		"Slot held", fmt.Sprintf("Your slot is held until %s.", res.ExpiresAt.Format(time.RFC3339)),
		fmt.Sprintf("/holds/%d", res.ID), domain.PriorityNormal); err != nil {
		log.Printf("notify_failed type=%s reservation_id=%d err=%v", domain.NotifyHoldCreated, res.ID, err)
	}

	return &HoldResponse{Reservation: res}, nil
}

// preauthorize mutates res in place; a declined or unreachable gateway keeps
// the hold alive with preauth_status=failed.
func (s *Service) preauthorize(ctx context.Context, res *domain.Reservation, req CreateHoldRequest) {
	currency := req.Currency
	if currency == "" {
		currency = "usd"
	}

	var pr *payments.PreauthResult
	err := s.payBreaker.Execute(ctx, func(ctx context.Context) error {
		return s.payRetry.Do(ctx, func(ctx context.Context) error {
			out, err := s.payments.Preauthorize(ctx, req.Amount, currency, req.CardToken)
			if err != nil {
				return err
			}
			pr = out
			return nil
		})
	}, nil)
	if err != nil {
		res.PreauthStatus = domain.PreauthFailed
		s.audit.Log(ctx, audit.Entry{
			ReservationID: fmt.Sprint(res.ID),
			Action:        domain.ActionPreauthFailed,
			Actor:         userActor(res.RequesterID),
			Detail:        map[string]any{"error": err.Error()},
		})
		s.metrics.Record(ctx, domain.MetricDeltas{PreauthFailed: 1})
		return
	}

	res.PreauthStatus = domain.PreauthAuthorized
	res.PreauthID = pr.ID
	s.audit.Log(ctx, audit.Entry{
		ReservationID: fmt.Sprint(res.ID),
		Action:        domain.ActionPreauthOK,
		Actor:         userActor(res.RequesterID),
		Detail:        map[string]any{"preauth_id": pr.ID, "amount": res.PreauthAmount},
	})
	s.metrics.Record(ctx, domain.MetricDeltas{PreauthSucceeded: 1})
}

func (s *Service) createTentativeBlock(ctx context.Context, res *domain.Reservation) {
	var eventID string
	err := s.calBreaker.Execute(ctx, func(ctx context.Context) error {
		return s.calRetry.Do(ctx, func(ctx context.Context) error {
			id, err := s.calendar.CreateTentativeBlock(ctx, res.ProviderID, res.SlotStart, res.SlotEnd)
			if err != nil {
				return err
			}
			eventID = id
			return nil
		})
	}, nil)
	if err != nil {
		res.SyncStatus = domain.SyncFailed
		s.metrics.Record(ctx, domain.MetricDeltas{SyncFailures: 1})
		log.Printf("calendar_sync_failed reservation_id=%d err=%v", res.ID, err)
		return
	}
	res.CalendarEventID = eventID
	res.SyncStatus = domain.SyncDone
}

func (s *Service) GetHold(ctx context.Context, id int64) (*domain.Reservation, error) {
	res, err := s.reservations.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if res == nil {
		return nil, ErrNotFound
	}
	return res, nil
}

// ExtendHold pushes the deadline out by one extension interval. A hold found
// past its deadline is expired on the spot instead.
func (s *Service) ExtendHold(ctx context.Context, id int64, holdToken string) (*domain.Reservation, error) {
	res, err := s.GetHold(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.HoldToken != holdToken {
		return nil, ErrInvalidToken
	}
	if res.Status != domain.ReservationHold {
		return nil, ErrAlreadyProcessed
	}

	now := s.clk.Now()
	if res.ExpiredAt(now) {
		if err := s.expire(ctx, res, domain.ActorSystem, domain.ActionExpired); err != nil {
			return nil, err
		}
		return nil, ErrHoldExpired
	}
	// A hold whose pre-authorization never went through gets no extra time;
	// the requester must retry payment, not sit on the slot.
	if res.PaymentRequired() && res.PreauthStatus != domain.PreauthAuthorized && !res.PaymentCaptured {
		return nil, ErrPreauthDeclined
	}
	if res.ExtensionsUsed >= res.MaxExtensions {
		return nil, ErrExtensionExhausted
	}

	before := res.Status
	res.ExpiresAt = res.ExpiresAt.Add(s.opts.ExtensionTTL)
	res.ExtensionsUsed++
	res.ReminderSent = false
	res.UpdatedAt = now
	if err := s.reservations.Update(ctx, res); err != nil {
		return nil, err
	}

	s.audit.Log(ctx, audit.Entry{
		ReservationID: fmt.Sprint(res.ID),
		Action:        domain.ActionHoldExtended,
		BeforeStatus:  string(before),
		AfterStatus:   string(res.Status),
		Actor:         userActor(res.RequesterID),
		Detail: map[string]any{
			"extensions_used": res.ExtensionsUsed,
			"expires_at":      res.ExpiresAt,
		},
	})
	return res, nil
}

// CancelHold is the requester-driven release of a live hold.
func (s *Service) CancelHold(ctx context.Context, id int64, holdToken string) (*domain.Reservation, error) {
	res, err := s.GetHold(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.HoldToken != holdToken {
		return nil, ErrInvalidToken
	}
	if res.Status != domain.ReservationHold {
		return nil, ErrAlreadyProcessed
	}
	if err := s.release(ctx, res, domain.ReservationCancelled, userActor(res.RequesterID), domain.ActionHoldCancelled); err != nil {
		return nil, err
	}
	return res, nil
}

// ExpireHold transitions a past-deadline hold. Non-hold statuses are a
// no-op; the sweep may race a confirmation and must lose gracefully.
func (s *Service) ExpireHold(ctx context.Context, id int64, actor string) error {
	res, err := s.GetHold(ctx, id)
	if err != nil {
		return err
	}
	if res.Status != domain.ReservationHold {
		return ErrAlreadyProcessed
	}
	return s.expire(ctx, res, actor, domain.ActionExpired)
}

func (s *Service) expire(ctx context.Context, res *domain.Reservation, actor, action string) error {
	return s.release(ctx, res, domain.ReservationExpired, actor, action)
}

/// release is the shared teardown path for expiry and cancellation: flip the
// status, let go of the pre-authorization and the calendar block, tell the
// requester, then hand the slot to the waitlist.
func (s *Service) release(ctx context.Context, res *domain.Reservation, to domain.ReservationStatus, actor, action string) error {
	before := res.Status
	res.Status = to
	res.UpdatedAt = s.clk.Now()
	if err := s.reservations.Update(ctx, res); err != nil {
		res.Status = before
		return err
	}

	switch {
	case res.PaymentCaptured && res.PaymentID != "":
		// Captured but never confirmed (a rolled-back confirmation); the
		// money goes back, not just the authorization.
		err := s.payBreaker.Execute(ctx, func(ctx context.Context) error {
			return s.payRetry.Do(ctx, func(ctx context.Context) error {
				return s.payments.Refund(ctx, res.PaymentID)
			})
		}, nil)
		if err != nil {
			log.Printf("payment_refund_failed reservation_id=%d payment_id=%s err=%v", res.ID, res.PaymentID, err)
		} else {
			res.PreauthStatus = domain.PreauthRefunded
			s.audit.Log(ctx, audit.Entry{
				ReservationID: fmt.Sprint(res.ID),
				Action:        domain.ActionPaymentRefunded,
				Actor:         actor,
				Detail:        map[string]any{"payment_id": res.PaymentID, "amount": res.PreauthAmount},
			})
			if uerr := s.reservations.Update(ctx, res); uerr != nil {
				log.Printf("reservation_update_failed reservation_id=%d err=%v", res.ID, uerr)
			}
		}
	case res.PreauthStatus == domain.PreauthAuthorized && res.PreauthID != "":
		err := s.payBreaker.Execute(ctx, func(ctx context.Context) error {
			return s.payRetry.Do(ctx, func(ctx context.Context) error {
				return s.payments.Release(ctx, res.PreauthID)
			})
		}, nil)
		if err != nil {
			log.Printf("preauth_release_failed reservation_id=%d preauth_id=%s err=%v", res.ID, res.PreauthID, err)
		} else {
			res.PreauthStatus = domain.PreauthReleased
			s.audit.Log(ctx, audit.Entry{
				ReservationID: fmt.Sprint(res.ID),
				Action:        domain.ActionPreauthReleased,
				Actor:         actor,
			})
			if uerr := s.reservations.Update(ctx, res); uerr != nil {
				log.Printf("reservation_update_failed reservation_id=%d err=%v", res.ID, uerr)
			}
		}
	}

	if res.CalendarEventID != "" {
		if err := s.calendar.CancelBlock(ctx, res.CalendarEventID); err != nil {
			log.Printf("calendar_cancel_failed reservation_id=%d event_id=%s err=%v", res.ID, res.CalendarEventID, err)
		}
	}

	s.audit.Log(ctx, audit.Entry{
		ReservationID: fmt.Sprint(res.ID),
		Action:        action,
		BeforeStatus:  string(before),
		AfterStatus:   string(res.Status),
		Actor:         actor,
	})

	deltas := domain.MetricDeltas{}
	notifType := domain.NotifyHoldExpired
	if to == domain.ReservationCancelled {
		deltas.HoldsCancelled = 1
		notifType = domain.NotifyHoldCancelled
	} else {
		deltas.HoldsExpired = 1
	}
	s.metrics.Record(ctx, deltas)

	if err := s.notifier.Notify(ctx, res.RequesterID, notifType,
		"Hold released", "Your hold on the slot has been released.",
		fmt.Sprintf("/holds/%d", res.ID), domain.PriorityNormal); err != nil {
		log.Printf("notify_failed type=%s reservation_id=%d err=%v", notifType, res.ID, err)
	}

	if s.waitlist != nil {
		s.waitlist.OfferFreedSlot(ctx, res.ProviderID, res.SlotStart, res.SlotEnd)
	}
	return nil
}

// HandleContractSigned is the idempotent webhook entry point. Redeliveries of
// the same signature id replay the first outcome without re-running anything.
func (s *Service) HandleContractSigned(ctx context.Context, evt ContractSignedEvent) (*WebhookResult, error) {
	out, cached, err := s.guard.Execute(ctx, "contract-signed:"+evt.SignatureID, func(ctx context.Context) (any, error) {
		return s.processContractEvent(ctx, evt)
	})
	if err != nil {
		return nil, err
	}
	if cached {
		var res WebhookResult
		if raw, ok := out.(json.RawMessage); ok {
			if uerr := json.Unmarshal(raw, &res); uerr != nil {
				return nil, uerr
			}
		}
		res.Duplicate = true
		return &res, nil
	}
	return out.(*WebhookResult), nil
}

func (s *Service) processContractEvent(ctx context.Context, evt ContractSignedEvent) (*WebhookResult, error) {
	res, err := s.GetHold(ctx, evt.ReservationID)
	if err != nil {
		return nil, err
	}
	if res.HoldToken != evt.HoldToken {
		return nil, ErrInvalidToken
	}

	switch evt.EventType {
	case EventEnvelopeCompleted:
		return s.confirm(ctx, res, evt)
	case EventEnvelopeDeclined, EventEnvelopeVoided:
		if res.Status != domain.ReservationHold {
			return nil, ErrAlreadyProcessed
		}
		actor := "signature:" + evt.SignatureID
		if err := s.release(ctx, res, domain.ReservationCancelled, actor, domain.ActionHoldCancelled); err != nil {
			return nil, err
		}
		return &WebhookResult{ReservationID: res.ID, Status: res.Status}, nil
	default:
		return nil, ErrValidation
	}
}

func (s *Service) confirm(ctx context.Context, res *domain.Reservation, evt ContractSignedEvent) (*WebhookResult, error) {
	if res.Status == domain.ReservationConfirmed {
		return &WebhookResult{ReservationID: res.ID, Status: res.Status, BookingID: res.BookingID}, nil
	}
	if res.Status != domain.ReservationHold {
		return nil, ErrAlreadyProcessed
	}

	now := s.clk.Now()
	if res.ExpiredAt(now) {
		if err := s.expire(ctx, res, domain.ActorSystem, domain.ActionExpired); err != nil {
			return nil, err
		}
		return nil, ErrHoldExpired
	}

	actor := "signature:" + evt.SignatureID

	if res.PaymentRequired() {
		// A hold that already captured (a prior delivery rolled back after
		// the capture step) must stay confirmable; capture short-circuits.
		if res.PreauthStatus != domain.PreauthAuthorized && !res.PaymentCaptured {
			return nil, ErrPreauthDeclined
		}
		if err := s.capture(ctx, res, actor); err != nil {
			return nil, err
		}
	}

	result := s.orchestrator.Run(ctx, "confirm:"+evt.SignatureID, s.confirmSteps(res, evt, actor))
	if !result.Success {
		if len(result.RollbackFailed) > 0 {
			// Compensation left the entities inconsistent; park the
			// reservation for operator intervention.
			res.Status = domain.ReservationFailed
			res.UpdatedAt = s.clk.Now()
			if uerr := s.reservations.Update(ctx, res); uerr != nil {
				log.Printf("reservation_update_failed reservation_id=%d err=%v", res.ID, uerr)
			}
			s.audit.Log(ctx, audit.Entry{
				ReservationID: fmt.Sprint(res.ID),
				Action:        domain.ActionFailed,
				AfterStatus:   string(domain.ReservationFailed),
				Actor:         domain.ActorSystem,
				Detail:        map[string]any{"rollback_failed": result.RollbackFailed},
			})
		}
		return nil, fmt.Errorf("%w: %v", ErrConfirmFailed, result.Err)
	}

	return &WebhookResult{ReservationID: res.ID, Status: res.Status, BookingID: res.BookingID}, nil
}

func (s *Service) capture(ctx context.Context, res *domain.Reservation, actor string) error {
	if res.PaymentCaptured {
		return nil
	}
	var cr *payments.CaptureResult
	err := s.payBreaker.Execute(ctx, func(ctx context.Context) error {
		return s.payRetry.Do(ctx, func(ctx context.Context) error {
			out, err := s.payments.Capture(ctx, res.PreauthID)
			if err != nil {
				return err
			}
			cr = out
			return nil
		})
	}, nil)
	if err != nil {
		// The hold survives; the webhook can be redelivered after the
		// gateway recovers.
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPaymentFailed, err)
	}

	res.PaymentID = cr.PaymentID
	res.PaymentCaptured = true
	res.PreauthStatus = domain.PreauthCaptured
	if err := s.reservations.Update(ctx, res); err != nil {
		return err
	}
	s.audit.Log(ctx, audit.Entry{
		ReservationID: fmt.Sprint(res.ID),
		Action:        domain.ActionPaymentCaptured,
		Actor:         actor,
		Detail:        map[string]any{"payment_id": cr.PaymentID, "amount": res.PreauthAmount},
	})
	s.metrics.Record(ctx, domain.MetricDeltas{RevenueCaptured: res.PreauthAmount})
	return nil
}

// confirmSteps is the ordered confirmation write sequence with reverse-order
// compensation. The final step is observational only and cannot fail.
func (s *Service) confirmSteps(res *domain.Reservation, evt ContractSignedEvent, actor string) []txn.Step {
	return []txn.Step{
		{
			Name: "confirm-reservation",
			Data: res.ID,
			Execute: func(ctx context.Context, _ any) (any, error) {
				before := res.Status
				res.Status = domain.ReservationConfirmed
				res.UpdatedAt = s.clk.Now()
				if err := s.reservations.Update(ctx, res); err != nil {
					res.Status = before
					return nil, err
				}
				return string(before), nil
			},
			Rollback: func(ctx context.Context, prior any) error {
				res.Status = domain.ReservationHold
				res.UpdatedAt = s.clk.Now()
				return s.reservations.Update(ctx, res)
			},
		},
		{
			Name: "record-contract",
			Data: evt.SignatureID,
			Execute: func(ctx context.Context, _ any) (any, error) {
				s.audit.Log(ctx, audit.Entry{
					ReservationID: fmt.Sprint(res.ID),
					Action:        domain.ActionContractSigned,
					Actor:         actor,
					Detail:        map[string]any{"signature_id": evt.SignatureID, "signed_at": evt.SignedAt},
				})
				return evt.SignatureID, nil
			},
			Rollback: func(ctx context.Context, _ any) error {
				s.audit.Log(ctx, audit.Entry{
					ReservationID: fmt.Sprint(res.ID),
					Action:        domain.ActionConfirmRolledBack,
					Actor:         domain.ActorSystem,
					Detail:        map[string]any{"signature_id": evt.SignatureID},
				})
				return nil
			},
		},
		{
			Name: "create-booking",
			Data: res.ID,
			Execute: func(ctx context.Context, _ any) (any, error) {
				b := &domain.Booking{
					ReservationID: res.ID,
					ProviderID:    res.ProviderID,
					RequesterID:   res.RequesterID,
					SlotStart:     res.SlotStart,
					SlotEnd:       res.SlotEnd,
					TotalAmount:   res.PreauthAmount,
					Status:        domain.BookingConfirmed,
				}
				if err := s.bookings.Create(ctx, b); err != nil {
					return nil, err
				}
				res.BookingID = &b.ID
				if err := s.reservations.Update(ctx, res); err != nil {
					return nil, err
				}
				return b.ID, nil
			},
			Rollback: func(ctx context.Context, prior any) error {
				if res.BookingID == nil {
					return nil
				}
				id := *res.BookingID
				res.BookingID = nil
				if err := s.bookings.Delete(ctx, id); err != nil {
					return err
				}
				return s.reservations.Update(ctx, res)
			},
		},
		{
			Name: "finalize-timeline",
			Data: res.ID,
			Execute: func(ctx context.Context, _ any) (any, error) {
				s.finalizeConfirmation(ctx, res, actor)
				return nil, nil
			},
		},
	}
}

func (s *Service) finalizeConfirmation(ctx context.Context, res *domain.Reservation, actor string) {
	if res.CalendarEventID != "" {
		if err := s.calendar.ConfirmBlock(ctx, res.CalendarEventID); err != nil {
			res.SyncStatus = domain.SyncFailed
			s.metrics.Record(ctx, domain.MetricDeltas{SyncFailures: 1})
			log.Printf("calendar_confirm_failed reservation_id=%d event_id=%s err=%v", res.ID, res.CalendarEventID, err)
			if uerr := s.reservations.Update(ctx, res); uerr != nil {
				log.Printf("reservation_update_failed reservation_id=%d err=%v", res.ID, uerr)
			}
		}
	}

	s.audit.Log(ctx, audit.Entry{
		ReservationID: fmt.Sprint(res.ID),
		Action:        domain.ActionConfirmed,
		BeforeStatus:  string(domain.ReservationHold),
		AfterStatus:   string(res.Status),
		Actor:         actor,
	})
	s.metrics.Record(ctx, domain.MetricDeltas{HoldsConfirmed: 1})

	msg := "The booking is confirmed."
	for _, uid := range []int64{res.RequesterID, res.ProviderID} {
		if err := s.notifier.Notify(ctx, uid, domain.NotifyBookingConfirmed,
			"Booking confirmed", msg, fmt.Sprintf("/holds/%d", res.ID), domain.PriorityHigh); err != nil {
			log.Printf("notify_failed type=%s reservation_id=%d err=%v", domain.NotifyBookingConfirmed, res.ID, err)
		}
	}
}

// ForceConfirm is the operator override: it skips token and payment checks
// and confirms a live hold even past its deadline.
func (s *Service) ForceConfirm(ctx context.Context, id int64, actor string) (*domain.Reservation, error) {
	res, err := s.GetHold(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != domain.ReservationHold {
		return nil, ErrAlreadyProcessed
	}

	before := res.Status
	res.Status = domain.ReservationConfirmed
	res.UpdatedAt = s.clk.Now()
	if err := s.reservations.Update(ctx, res); err != nil {
		res.Status = before
		return nil, err
	}

	b := &domain.Booking{
		ReservationID: res.ID,
		ProviderID:    res.ProviderID,
		RequesterID:   res.RequesterID,
		SlotStart:     res.SlotStart,
		SlotEnd:       res.SlotEnd,
		TotalAmount:   res.PreauthAmount,
		Status:        domain.BookingConfirmed,
	}
	if err := s.bookings.Create(ctx, b); err != nil {
		log.Printf("booking_create_failed reservation_id=%d err=%v", res.ID, err)
	} else {
		res.BookingID = &b.ID
		if uerr := s.reservations.Update(ctx, res); uerr != nil {
			log.Printf("reservation_update_failed reservation_id=%d err=%v", res.ID, uerr)
		}
	}

	s.audit.Log(ctx, audit.Entry{
		ReservationID: fmt.Sprint(res.ID),
		Action:        domain.ActionForceConfirmed,
		BeforeStatus:  string(before),
		AfterStatus:   string(res.Status),
		Actor:         actor,
	})
	s.metrics.Record(ctx, domain.MetricDeltas{HoldsConfirmed: 1})
	return res, nil
}

// ForceExpire is the operator override for a stuck hold.
func (s *Service) ForceExpire(ctx context.Context, id int64, actor string) (*domain.Reservation, error) {
	res, err := s.GetHold(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.Status != domain.ReservationHold {
		return nil, ErrAlreadyProcessed
	}
	if err := s.release(ctx, res, domain.ReservationExpired, actor, domain.ActionForceExpired); err != nil {
		return nil, err
	}
	return res, nil
}

// RetrySync re-drives a failed calendar sync for one reservation.
func (s *Service) RetrySync(ctx context.Context, id int64, actor string) (*domain.Reservation, error) {
	res, err := s.GetHold(ctx, id)
	if err != nil {
		return nil, err
	}
	if res.SyncStatus != domain.SyncFailed {
		return nil, ErrAlreadyProcessed
	}

	if res.CalendarEventID == "" {
		eventID, err := s.calendar.CreateTentativeBlock(ctx, res.ProviderID, res.SlotStart, res.SlotEnd)
		if err != nil {
			s.metrics.Record(ctx, domain.MetricDeltas{SyncFailures: 1})
			return nil, err
		}
		res.CalendarEventID = eventID
	}
	if res.Status == domain.ReservationConfirmed {
		if err := s.calendar.ConfirmBlock(ctx, res.CalendarEventID); err != nil {
			s.metrics.Record(ctx, domain.MetricDeltas{SyncFailures: 1})
			return nil, err
		}
	}

	res.SyncStatus = domain.SyncDone
	res.UpdatedAt = s.clk.Now()
	if err := s.reservations.Update(ctx, res); err != nil {
		return nil, err
	}
	s.audit.Log(ctx, audit.Entry{
		ReservationID: fmt.Sprint(res.ID),
		Action:        domain.ActionSyncRetried,
		Actor:         actor,
		Detail:        map[string]any{"event_id": res.CalendarEventID},
	})
	return res, nil
}

// SweepExpired reclaims every hold past its deadline. Races with confirmation
// are benign: the per-hold expiry re-checks the status.
func (s *Service) SweepExpired(ctx context.Context) (int, error) {
	rows, err := s.reservations.ListExpired(ctx, s.clk.Now())
	if err != nil {
		return 0, err
	}
	expired := 0
	for i := range rows {
		err := s.ExpireHold(ctx, rows[i].ID, domain.ActorSystem)
		if errors.Is(err, ErrAlreadyProcessed) {
			continue
		}
		if err != nil {
			log.Printf("expire_sweep_failed reservation_id=%d err=%v", rows[i].ID, err)
			continue
		}
		expired++
	}
	if expired > 0 {
		log.Printf("expire_sweep_done count=%d", expired)
	}
	return expired, nil
}

// SweepReminders notifies holders whose deadline is close, once per deadline.
func (s *Service) SweepReminders(ctx context.Context) (int, error) {
	rows, err := s.reservations.ListExpiringBefore(ctx, s.clk.Now().Add(s.opts.ReminderLead))
	if err != nil {
		return 0, err
	}
	sent := 0
	for i := range rows {
		res := rows[i]
		if err := s.notifier.Notify(ctx, res.RequesterID, domain.NotifyHoldExpiring,
			"Hold expiring soon", fmt.Sprintf("Your hold expires at %s.", res.ExpiresAt.Format(time.RFC3339)),
			fmt.Sprintf("/holds/%d", res.ID), domain.PriorityHigh); err != nil {
			log.Printf("notify_failed type=%s reservation_id=%d err=%v", domain.NotifyHoldExpiring, res.ID, err)
			continue
		}
		res.ReminderSent = true
		if err := s.reservations.Update(ctx, &res); err != nil {
			log.Printf("reservation_update_failed reservation_id=%d err=%v", res.ID, err)
			continue
		}
		sent++
	}
	return sent, nil
}

// PaymentCircuitState exposes the gateway breaker for health reporting.
func (s *Service) PaymentCircuitState() resilience.CircuitState {
	return s.payBreaker.State()
}
