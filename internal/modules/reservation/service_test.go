package reservation

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"slothold/internal/audit"
	"slothold/internal/domain"
	"slothold/internal/payments"
	"slothold/internal/pkg/clock"
	"slothold/internal/pkg/resilience"
)

// In-memory fakes. The state machine touches the repositories many times per
// operation, so stateful fakes beat call-by-call expectations here.

type fakeReservationRepo struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]*domain.Reservation
	createErr error
}

func newFakeReservationRepo() *fakeReservationRepo {
	return &fakeReservationRepo{rows: make(map[int64]*domain.Reservation)}
}

func (f *fakeReservationRepo) Create(_ context.Context, r *domain.Reservation) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	r.ID = f.nextID
	cp := *r
	f.rows[r.ID] = &cp
	return nil
}

func (f *fakeReservationRepo) GetByID(_ context.Context, id int64) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[id]
	if !ok {
		return nil, nil
	}
	cp := *r
	return &cp, nil
}

func (f *fakeReservationRepo) GetByIdempotencyKey(_ context.Context, key string) (*domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.IdempotencyKey == key {
			cp := *r
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeReservationRepo) Update(_ context.Context, r *domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *r
	f.rows[r.ID] = &cp
	return nil
}

func (f *fakeReservationRepo) ListExpired(_ context.Context, now time.Time) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.rows {
		if r.Status == domain.ReservationHold && r.ExpiresAt.Before(now) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) ListExpiringBefore(_ context.Context, deadline time.Time) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Reservation
	for _, r := range f.rows {
		if r.Status == domain.ReservationHold && !r.ReminderSent && r.ExpiresAt.Before(deadline) {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeReservationRepo) get(t *testing.T, id int64) *domain.Reservation {
	t.Helper()
	r, err := f.GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, r)
	return r
}

type fakeBookingRepo struct {
	mu        sync.Mutex
	nextID    int64
	rows      map[int64]*domain.Booking
	createErr error
}

func newFakeBookingRepo() *fakeBookingRepo {
	return &fakeBookingRepo{rows: make(map[int64]*domain.Booking)}
}

func (f *fakeBookingRepo) Create(_ context.Context, b *domain.Booking) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	b.ID = f.nextID
	cp := *b
	f.rows[b.ID] = &cp
	return nil
}

func (f *fakeBookingRepo) GetByReservationID(_ context.Context, reservationID int64) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.rows {
		if b.ReservationID == reservationID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, nil
}

func (f *fakeBookingRepo) Delete(_ context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.rows, id)
	return nil
}

func (f *fakeBookingRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.rows)
}

type stubConflicts struct {
	conflicts []domain.Conflict
	err       error
}

func (s *stubConflicts) CheckConflicts(context.Context, int64, time.Time, time.Time) ([]domain.Conflict, error) {
	return s.conflicts, s.err
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []audit.Entry
}

func (a *recordingAudit) Log(_ context.Context, e audit.Entry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.entries = append(a.entries, e)
}

func (a *recordingAudit) has(action string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, e := range a.entries {
		if e.Action == action {
			return true
		}
	}
	return false
}

type recordingMetrics struct {
	mu    sync.Mutex
	total domain.MetricDeltas
}

func (m *recordingMetrics) Record(_ context.Context, d domain.MetricDeltas) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.total.HoldsCreated += d.HoldsCreated
	m.total.HoldsConfirmed += d.HoldsConfirmed
	m.total.HoldsExpired += d.HoldsExpired
	m.total.HoldsCancelled += d.HoldsCancelled
	m.total.RevenueCaptured += d.RevenueCaptured
	m.total.PreauthSucceeded += d.PreauthSucceeded
	m.total.PreauthFailed += d.PreauthFailed
	m.total.SyncFailures += d.SyncFailures
}

type recordingNotifier struct {
	mu    sync.Mutex
	types []string
	err   error
}

func (n *recordingNotifier) Notify(_ context.Context, _ int64, typ, _, _, _, _ string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.types = append(n.types, typ)
	return n.err
}

func (n *recordingNotifier) countOf(typ string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, t := range n.types {
		if t == typ {
			c++
		}
	}
	return c
}

type stubCalendar struct {
	mu         sync.Mutex
	seq        int
	createErr  error
	confirmErr error
	created    []string
	confirmed  []string
	cancelled  []string
}

func (c *stubCalendar) CreateTentativeBlock(context.Context, int64, time.Time, time.Time) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return "", c.createErr
	}
	c.seq++
	id := fmt.Sprintf("evt-%d", c.seq)
	c.created = append(c.created, id)
	return id, nil
}

func (c *stubCalendar) ConfirmBlock(_ context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.confirmErr != nil {
		return c.confirmErr
	}
	c.confirmed = append(c.confirmed, eventID)
	return nil
}

func (c *stubCalendar) CancelBlock(_ context.Context, eventID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelled = append(c.cancelled, eventID)
	return nil
}

type stubPayments struct {
	mu         sync.Mutex
	preauthErr error
	captureErr error
	preauths   int
	captures   int
	releases   int
	refunds    int
}

func (p *stubPayments) Preauthorize(context.Context, float64, string, string) (*payments.PreauthResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.preauths++
	if p.preauthErr != nil {
		return nil, p.preauthErr
	}
	return &payments.PreauthResult{ID: fmt.Sprintf("pi_%d", p.preauths), Status: "requires_capture"}, nil
}

func (p *stubPayments) Capture(context.Context, string) (*payments.CaptureResult, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.captures++
	if p.captureErr != nil {
		return nil, p.captureErr
	}
	return &payments.CaptureResult{PaymentID: fmt.Sprintf("pay_%d", p.captures)}, nil
}

func (p *stubPayments) Release(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.releases++
	return nil
}

func (p *stubPayments) Refund(context.Context, string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refunds++
	return nil
}

// repoConflicts reads live holds out of the fake repository, so concurrent
// CreateHold calls see each other's rows the way the real detector would.
type repoConflicts struct {
	repo *fakeReservationRepo
}

func (c *repoConflicts) CheckConflicts(_ context.Context, providerID int64, start, end time.Time) ([]domain.Conflict, error) {
	c.repo.mu.Lock()
	defer c.repo.mu.Unlock()
	var out []domain.Conflict
	for _, r := range c.repo.rows {
		if r.ProviderID != providerID {
			continue
		}
		if r.Status != domain.ReservationHold && r.Status != domain.ReservationConfirmed {
			continue
		}
		if domain.Overlaps(r.SlotStart, r.SlotEnd, start, end) {
			out = append(out, domain.Conflict{
				Kind:          domain.ConflictHold,
				ReservationID: r.ID,
				SlotStart:     r.SlotStart,
				SlotEnd:       r.SlotEnd,
			})
		}
	}
	return out, nil
}

type recordingOfferer struct {
	mu     sync.Mutex
	offers int
}

func (o *recordingOfferer) OfferFreedSlot(context.Context, int64, time.Time, time.Time) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.offers++
}

func (o *recordingOfferer) count() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.offers
}

type testEnv struct {
	repo     *fakeReservationRepo
	bookings *fakeBookingRepo
	confl    *stubConflicts
	audit    *recordingAudit
	metrics  *recordingMetrics
	notifier *recordingNotifier
	calendar *stubCalendar
	payments *stubPayments
	offerer  *recordingOfferer
	clk      *clock.Fake
}

func newTestService(start time.Time) (*Service, *testEnv) {
	env := &testEnv{
		repo:     newFakeReservationRepo(),
		bookings: newFakeBookingRepo(),
		confl:    &stubConflicts{},
		audit:    &recordingAudit{},
		metrics:  &recordingMetrics{},
		notifier: &recordingNotifier{},
		calendar: &stubCalendar{},
		payments: &stubPayments{},
		offerer:  &recordingOfferer{},
		clk:      clock.NewFake(start),
	}
	guard := resilience.NewIdempotencyGuard(resilience.NewMemoryStore(env.clk), time.Hour)
	svc := NewService(DefaultOptions(), Deps{
		Reservations: env.repo,
		Bookings:     env.bookings,
		Conflicts:    env.confl,
		Audit:        env.audit,
		Metrics:      env.metrics,
		Notifier:     env.notifier,
		Calendar:     env.calendar,
		Payments:     env.payments,
		Guard:        guard,
		Clock:        env.clk,
	})
	svc.SetSlotOfferer(env.offerer)
	return svc, env
}

var testStart = time.Date(2026, 9, 10, 12, 0, 0, 0, time.UTC)

func holdRequest() CreateHoldRequest {
	return CreateHoldRequest{
		ProviderID:  7,
		RequesterID: 42,
		SlotStart:   testStart.Add(2 * time.Hour),
		SlotEnd:     testStart.Add(4 * time.Hour),
	}
}

func TestCreateHold_Success(t *testing.T) {
	svc, env := newTestService(testStart)

	resp, err := svc.CreateHold(context.Background(), holdRequest())

	require.NoError(t, err)
	res := resp.Reservation
	require.NotNil(t, res)
	assert.Equal(t, domain.ReservationHold, res.Status)
	assert.NotEmpty(t, res.HoldToken)
	assert.Equal(t, testStart.Add(20*time.Minute), res.ExpiresAt)
	assert.Equal(t, domain.PreauthNotRequired, res.PreauthStatus)
	assert.Equal(t, domain.SyncDone, res.SyncStatus)
	assert.NotEmpty(t, res.CalendarEventID)

	assert.True(t, env.audit.has(domain.ActionHoldCreated))
	assert.Equal(t, int64(1), env.metrics.total.HoldsCreated)
	assert.Equal(t, 1, env.notifier.countOf(domain.NotifyHoldCreated))
	assert.Len(t, env.calendar.created, 1)
}

func TestCreateHold_SlotConflict(t *testing.T) {
	svc, env := newTestService(testStart)
	env.confl.conflicts = []domain.Conflict{{Kind: domain.ConflictHold, ReservationID: 99}}

	resp, err := svc.CreateHold(context.Background(), holdRequest())

	assert.ErrorIs(t, err, ErrSlotConflict)
	require.NotNil(t, resp)
	assert.Len(t, resp.Conflicts, 1)
	assert.True(t, env.audit.has(domain.ActionSlotConflict))
	assert.Empty(t, env.repo.rows)
}

func TestCreateHold_IdempotentReplay(t *testing.T) {
	svc, env := newTestService(testStart)

	req := holdRequest()
	req.IdempotencyKey = "req-abc"
	first, err := svc.CreateHold(context.Background(), req)
	require.NoError(t, err)

	second, err := svc.CreateHold(context.Background(), req)
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.Reservation.ID, second.Reservation.ID)
	assert.Len(t, env.repo.rows, 1)
}

func TestCreateHold_RejectsPastSlot(t *testing.T) {
	svc, _ := newTestService(testStart)

	req := holdRequest()
	req.SlotStart = testStart.Add(-time.Hour)
	req.SlotEnd = testStart.Add(time.Hour)

	_, err := svc.CreateHold(context.Background(), req)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestCreateHold_PreauthFailureKeepsHold(t *testing.T) {
	svc, env := newTestService(testStart)
	env.payments.preauthErr = errors.New("card declined")

	req := holdRequest()
	req.Amount = 250
	req.CardToken = "tok_visa"

	resp, err := svc.CreateHold(context.Background(), req)

	require.NoError(t, err)
	res := env.repo.get(t, resp.Reservation.ID)
	assert.Equal(t, domain.ReservationHold, res.Status)
	assert.Equal(t, domain.PreauthFailed, res.PreauthStatus)
	assert.True(t, env.audit.has(domain.ActionPreauthFailed))
	assert.Equal(t, int64(1), env.metrics.total.PreauthFailed)
}

func TestCreateHold_CalendarFailureMarksSyncFailed(t *testing.T) {
	svc, env := newTestService(testStart)
	env.calendar.createErr = errors.New("calendar rejected block")

	resp, err := svc.CreateHold(context.Background(), holdRequest())

	require.NoError(t, err)
	res := env.repo.get(t, resp.Reservation.ID)
	assert.Equal(t, domain.ReservationHold, res.Status)
	assert.Equal(t, domain.SyncFailed, res.SyncStatus)
	assert.Empty(t, res.CalendarEventID)
	assert.Equal(t, int64(1), env.metrics.total.SyncFailures)
}

func TestExtendHold_OncePerBudget(t *testing.T) {
	svc, env := newTestService(testStart)

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)
	res := resp.Reservation

	extended, err := svc.ExtendHold(context.Background(), res.ID, res.HoldToken)
	require.NoError(t, err)
	assert.Equal(t, testStart.Add(30*time.Minute), extended.ExpiresAt)
	assert.Equal(t, 1, extended.ExtensionsUsed)
	assert.True(t, env.audit.has(domain.ActionHoldExtended))

	_, err = svc.ExtendHold(context.Background(), res.ID, res.HoldToken)
	assert.ErrorIs(t, err, ErrExtensionExhausted)
}

func TestExtendHold_TokenMismatch(t *testing.T) {
	svc, _ := newTestService(testStart)

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)

	_, err = svc.ExtendHold(context.Background(), resp.Reservation.ID, "wrong-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExtendHold_PastDeadlineExpiresInstead(t *testing.T) {
	svc, env := newTestService(testStart)

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)
	res := resp.Reservation

	env.clk.Advance(21 * time.Minute)

	_, err = svc.ExtendHold(context.Background(), res.ID, res.HoldToken)
	assert.ErrorIs(t, err, ErrHoldExpired)
	assert.Equal(t, domain.ReservationExpired, env.repo.get(t, res.ID).Status)
	assert.Equal(t, 1, env.offerer.count())
}

func TestCancelHold_ReleasesEverything(t *testing.T) {
	svc, env := newTestService(testStart)

	req := holdRequest()
	req.Amount = 100
	req.CardToken = "tok_visa"
	resp, err := svc.CreateHold(context.Background(), req)
	require.NoError(t, err)
	res := resp.Reservation
	require.Equal(t, domain.PreauthAuthorized, res.PreauthStatus)

	cancelled, err := svc.CancelHold(context.Background(), res.ID, res.HoldToken)
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationCancelled, cancelled.Status)
	assert.Equal(t, 1, env.payments.releases)
	assert.Len(t, env.calendar.cancelled, 1)
	assert.True(t, env.audit.has(domain.ActionHoldCancelled))
	assert.True(t, env.audit.has(domain.ActionPreauthReleased))
	assert.Equal(t, int64(1), env.metrics.total.HoldsCancelled)
	assert.Equal(t, 1, env.offerer.count())

	_, err = svc.CancelHold(context.Background(), res.ID, res.HoldToken)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
}

func signedEvent(res *domain.Reservation, sigID string) ContractSignedEvent {
	return ContractSignedEvent{
		SignatureID:   sigID,
		ReservationID: res.ID,
		HoldToken:     res.HoldToken,
		EventType:     EventEnvelopeCompleted,
		SignedAt:      testStart.Add(5 * time.Minute),
	}
}

func TestHandleContractSigned_ConfirmsHold(t *testing.T) {
	svc, env := newTestService(testStart)

	req := holdRequest()
	req.Amount = 300
	req.CardToken = "tok_visa"
	resp, err := svc.CreateHold(context.Background(), req)
	require.NoError(t, err)
	res := resp.Reservation

	result, err := svc.HandleContractSigned(context.Background(), signedEvent(res, "sig-1"))
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationConfirmed, result.Status)
	require.NotNil(t, result.BookingID)

	stored := env.repo.get(t, res.ID)
	assert.Equal(t, domain.ReservationConfirmed, stored.Status)
	assert.True(t, stored.PaymentCaptured)
	assert.Equal(t, domain.PreauthCaptured, stored.PreauthStatus)
	assert.Equal(t, 1, env.bookings.count())
	assert.Len(t, env.calendar.confirmed, 1)

	assert.True(t, env.audit.has(domain.ActionContractSigned))
	assert.True(t, env.audit.has(domain.ActionPaymentCaptured))
	assert.True(t, env.audit.has(domain.ActionConfirmed))
	assert.Equal(t, int64(1), env.metrics.total.HoldsConfirmed)
	assert.Equal(t, 300.0, env.metrics.total.RevenueCaptured)
	assert.Equal(t, 2, env.notifier.countOf(domain.NotifyBookingConfirmed))
}

func TestHandleContractSigned_DuplicateDeliveryReplaysOutcome(t *testing.T) {
	svc, env := newTestService(testStart)

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)
	res := resp.Reservation

	first, err := svc.HandleContractSigned(context.Background(), signedEvent(res, "sig-dup"))
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	second, err := svc.HandleContractSigned(context.Background(), signedEvent(res, "sig-dup"))
	require.NoError(t, err)

	assert.True(t, second.Duplicate)
	assert.Equal(t, first.ReservationID, second.ReservationID)
	assert.Equal(t, 1, env.bookings.count())
	assert.Equal(t, int64(1), env.metrics.total.HoldsConfirmed)
}

func TestHandleContractSigned_ExpiredHoldRejected(t *testing.T) {
	svc, env := newTestService(testStart)

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)
	res := resp.Reservation

	env.clk.Advance(25 * time.Minute)

	_, err = svc.HandleContractSigned(context.Background(), signedEvent(res, "sig-late"))
	assert.ErrorIs(t, err, ErrHoldExpired)
	assert.Equal(t, domain.ReservationExpired, env.repo.get(t, res.ID).Status)
	assert.Equal(t, 0, env.bookings.count())
}

func TestHandleContractSigned_TokenMismatch(t *testing.T) {
	svc, _ := newTestService(testStart)

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)

	evt := signedEvent(resp.Reservation, "sig-bad")
	evt.HoldToken = "forged"

	_, err = svc.HandleContractSigned(context.Background(), evt)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHandleContractSigned_DeclinedCancelsHold(t *testing.T) {
	svc, env := newTestService(testStart)

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)
	res := resp.Reservation

	evt := signedEvent(res, "sig-declined")
	evt.EventType = EventEnvelopeDeclined

	result, err := svc.HandleContractSigned(context.Background(), evt)
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationCancelled, result.Status)
	assert.Equal(t, domain.ReservationCancelled, env.repo.get(t, res.ID).Status)
	assert.Equal(t, 1, env.offerer.count())
}

func TestHandleContractSigned_PreauthNotAuthorizedRejected(t *testing.T) {
	svc, env := newTestService(testStart)
	env.payments.preauthErr = errors.New("card declined")

	req := holdRequest()
	req.Amount = 100
	req.CardToken = "tok_visa"
	resp, err := svc.CreateHold(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.HandleContractSigned(context.Background(), signedEvent(resp.Reservation, "sig-np"))
	assert.ErrorIs(t, err, ErrPreauthDeclined)
	assert.Equal(t, domain.ReservationHold, env.repo.get(t, resp.Reservation.ID).Status)
}

func TestHandleContractSigned_CaptureFailureKeepsHold(t *testing.T) {
	svc, env := newTestService(testStart)
	env.payments.captureErr = errors.New("card expired")

	req := holdRequest()
	req.Amount = 100
	req.CardToken = "tok_visa"
	resp, err := svc.CreateHold(context.Background(), req)
	require.NoError(t, err)
	res := resp.Reservation

	_, err = svc.HandleContractSigned(context.Background(), signedEvent(res, "sig-cap"))
	assert.ErrorIs(t, err, ErrPaymentFailed)

	stored := env.repo.get(t, res.ID)
	assert.Equal(t, domain.ReservationHold, stored.Status)
	assert.False(t, stored.PaymentCaptured)
	assert.Equal(t, 0, env.bookings.count())
}

func TestHandleContractSigned_BookingFailureRollsBack(t *testing.T) {
	svc, env := newTestService(testStart)
	env.bookings.createErr = errors.New("bookings table unavailable")

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)
	res := resp.Reservation

	_, err = svc.HandleContractSigned(context.Background(), signedEvent(res, "sig-rb"))
	assert.ErrorIs(t, err, ErrConfirmFailed)

	stored := env.repo.get(t, res.ID)
	assert.Equal(t, domain.ReservationHold, stored.Status)
	assert.Nil(t, stored.BookingID)
	assert.True(t, env.audit.has(domain.ActionConfirmRolledBack))
	assert.Equal(t, int64(0), env.metrics.total.HoldsConfirmed)
}

func TestForceConfirm_BypassesChecksOnLiveHold(t *testing.T) {
	svc, env := newTestService(testStart)

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)
	res := resp.Reservation

	env.clk.Advance(25 * time.Minute) // past deadline, override still applies

	confirmed, err := svc.ForceConfirm(context.Background(), res.ID, "admin:1")
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationConfirmed, confirmed.Status)
	assert.Equal(t, 1, env.bookings.count())
	assert.True(t, env.audit.has(domain.ActionForceConfirmed))
}

func TestForceExpire_ReleasesHold(t *testing.T) {
	svc, env := newTestService(testStart)

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)

	expired, err := svc.ForceExpire(context.Background(), resp.Reservation.ID, "admin:1")
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationExpired, expired.Status)
	assert.True(t, env.audit.has(domain.ActionForceExpired))
	assert.Equal(t, 1, env.offerer.count())
}

func TestRetrySync_RecreatesMissingBlock(t *testing.T) {
	svc, env := newTestService(testStart)
	env.calendar.createErr = errors.New("calendar rejected block")

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)
	res := resp.Reservation
	require.Equal(t, domain.SyncFailed, env.repo.get(t, res.ID).SyncStatus)

	env.calendar.createErr = nil

	synced, err := svc.RetrySync(context.Background(), res.ID, "admin:1")
	require.NoError(t, err)

	assert.Equal(t, domain.SyncDone, synced.SyncStatus)
	assert.NotEmpty(t, synced.CalendarEventID)
	assert.True(t, env.audit.has(domain.ActionSyncRetried))
}

func TestSweepExpired_ReclaimsOnlyDueHolds(t *testing.T) {
	svc, env := newTestService(testStart)

	first, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)

	late := holdRequest()
	late.SlotStart = testStart.Add(6 * time.Hour)
	late.SlotEnd = testStart.Add(8 * time.Hour)
	second, err := svc.CreateHold(context.Background(), late)
	require.NoError(t, err)

	env.clk.Advance(21 * time.Minute)
	// The second hold gets extended past the sweep moment.
	fresh := env.repo.get(t, second.Reservation.ID)
	fresh.ExpiresAt = env.clk.Now().Add(10 * time.Minute)
	require.NoError(t, env.repo.Update(context.Background(), fresh))

	count, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, count)
	assert.Equal(t, domain.ReservationExpired, env.repo.get(t, first.Reservation.ID).Status)
	assert.Equal(t, domain.ReservationHold, env.repo.get(t, second.Reservation.ID).Status)
	assert.Equal(t, 1, env.offerer.count())
}

func TestSweepReminders_NotifiesOncePerDeadline(t *testing.T) {
	svc, env := newTestService(testStart)

	resp, err := svc.CreateHold(context.Background(), holdRequest())
	require.NoError(t, err)

	env.clk.Advance(16 * time.Minute) // 4 minutes left, inside the lead window

	sent, err := svc.SweepReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, sent)
	assert.Equal(t, 1, env.notifier.countOf(domain.NotifyHoldExpiring))
	assert.True(t, env.repo.get(t, resp.Reservation.ID).ReminderSent)

	sent, err = svc.SweepReminders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, sent)
}

func TestExtendHold_PreauthFailedRejected(t *testing.T) {
	svc, env := newTestService(testStart)
	env.payments.preauthErr = errors.New("card declined")

	req := holdRequest()
	req.Amount = 250
	req.CardToken = "tok_visa"
	resp, err := svc.CreateHold(context.Background(), req)
	require.NoError(t, err)
	res := resp.Reservation
	require.Equal(t, domain.PreauthFailed, res.PreauthStatus)

	_, err = svc.ExtendHold(context.Background(), res.ID, res.HoldToken)
	assert.ErrorIs(t, err, ErrPreauthDeclined)

	stored := env.repo.get(t, res.ID)
	assert.Equal(t, 0, stored.ExtensionsUsed)
	assert.Equal(t, testStart.Add(20*time.Minute), stored.ExpiresAt)
}

// capturedRolledBackHold drives a signed-contract delivery that captures the
// payment and then fails at booking creation, leaving a hold whose money has
// already moved.
func capturedRolledBackHold(t *testing.T, svc *Service, env *testEnv, sigID string) *domain.Reservation {
	t.Helper()

	req := holdRequest()
	req.Amount = 500
	req.CardToken = "tok_visa"
	resp, err := svc.CreateHold(context.Background(), req)
	require.NoError(t, err)
	res := resp.Reservation

	env.bookings.createErr = errors.New("bookings table unavailable")
	_, err = svc.HandleContractSigned(context.Background(), signedEvent(res, sigID))
	require.ErrorIs(t, err, ErrConfirmFailed)

	stored := env.repo.get(t, res.ID)
	require.Equal(t, domain.ReservationHold, stored.Status)
	require.True(t, stored.PaymentCaptured)
	require.Equal(t, domain.PreauthCaptured, stored.PreauthStatus)
	return stored
}

func TestHandleContractSigned_RedeliveryAfterCaptureRollbackConfirms(t *testing.T) {
	svc, env := newTestService(testStart)

	res := capturedRolledBackHold(t, svc, env, "sig-redo")

	env.bookings.createErr = nil

	result, err := svc.HandleContractSigned(context.Background(), signedEvent(res, "sig-redo"))
	require.NoError(t, err)

	assert.Equal(t, domain.ReservationConfirmed, result.Status)
	require.NotNil(t, result.BookingID)
	assert.Equal(t, domain.ReservationConfirmed, env.repo.get(t, res.ID).Status)
	assert.Equal(t, 1, env.bookings.count())
	assert.Equal(t, 1, env.payments.captures)
	assert.Equal(t, 500.0, env.metrics.total.RevenueCaptured)
}

func TestSweepExpired_RefundsCapturedPayment(t *testing.T) {
	svc, env := newTestService(testStart)

	res := capturedRolledBackHold(t, svc, env, "sig-strand")

	env.clk.Advance(21 * time.Minute)

	count, err := svc.SweepExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	stored := env.repo.get(t, res.ID)
	assert.Equal(t, domain.ReservationExpired, stored.Status)
	assert.Equal(t, domain.PreauthRefunded, stored.PreauthStatus)
	assert.Equal(t, 1, env.payments.refunds)
	assert.Equal(t, 0, env.payments.releases)
	assert.True(t, env.audit.has(domain.ActionPaymentRefunded))
}

func TestCreateHold_ConcurrentSameSlotOneWinner(t *testing.T) {
	svc, env := newTestService(testStart)
	svc.conflicts = &repoConflicts{repo: env.repo}

	const callers = 8
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := holdRequest()
			req.RequesterID = int64(100 + i)
			_, errs[i] = svc.CreateHold(context.Background(), req)
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, ErrSlotConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, callers-1, conflicts)
	assert.Len(t, env.repo.rows, 1)
}
