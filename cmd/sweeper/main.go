package main

import (
	"context"
	"log"
	"time"

	"github.com/joho/godotenv"

	"slothold/internal/audit"
	"slothold/internal/calendarsync"
	"slothold/internal/config"
	"slothold/internal/database"
	"slothold/internal/metrics"
	"slothold/internal/modules/availability"
	"slothold/internal/modules/reservation"
	"slothold/internal/modules/waitlist"
	"slothold/internal/notify"
	"slothold/internal/payments"
	"slothold/internal/pkg/clock"
	"slothold/internal/pkg/resilience"
	"slothold/internal/repository"
)

// One-shot pass over expired holds, due reminders and lapsed waitlist
// offers. Meant for cron when the API's in-process scheduler is disabled.
func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect failed: %v", err)
	}

	clk := clock.NewSystem()

	reservationRepo := repository.NewReservationRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	metricsRepo := repository.NewMetricsRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	auditLogger := audit.NewLogger(auditRepo, nil, clk)
	recorder := metrics.NewRecorder(metricsRepo, clk)
	notifier := notify.NewInboxNotifier(notificationRepo)
	calendarSink := calendarsync.NewDBSink(calendarRepo)
	guard := resilience.NewIdempotencyGuard(resilience.NewMemoryStore(clk), cfg.IdempotencyTTL)

	var paymentProvider payments.Provider
	if cfg.StripeAPIKey != "" {
		paymentProvider = payments.NewStripeProvider(cfg.StripeAPIKey)
	} else {
		paymentProvider = payments.NewSandboxProvider()
	}

	availabilityService := availability.NewService(reservationRepo, calendarRepo)

	reservationService := reservation.NewService(
		reservation.Options{
			HoldTTL:       cfg.HoldTTL,
			ExtensionTTL:  cfg.ExtensionTTL,
			MaxExtensions: cfg.MaxExtensions,
			ReminderLead:  cfg.ReminderLead,
		},
		reservation.Deps{
			Reservations: reservationRepo,
			Bookings:     bookingRepo,
			Conflicts:    availabilityService,
			Audit:        auditLogger,
			Metrics:      recorder,
			Notifier:     notifier,
			Calendar:     calendarSink,
			Payments:     paymentProvider,
			Guard:        guard,
			Clock:        clk,
		},
	)
	waitlistService := waitlist.NewService(waitlistRepo, auditLogger, notifier, reservationService, availabilityService, clk, cfg.OfferWindow)
	reservationService.SetSlotOfferer(waitlistService)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	expired, err := reservationService.SweepExpired(ctx)
	if err != nil {
		log.Fatalf("sweep expired failed: %v", err)
	}

	reminded, err := reservationService.SweepReminders(ctx)
	if err != nil {
		log.Fatalf("sweep reminders failed: %v", err)
	}

	offers, err := waitlistService.SweepOffers(ctx)
	if err != nil {
		log.Fatalf("sweep offers failed: %v", err)
	}

	log.Printf("sweep completed: expired=%d reminders=%d lapsed_offers=%d", expired, reminded, offers)
}
