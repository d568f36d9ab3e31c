package main

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"slothold/internal/audit"
	"slothold/internal/calendarsync"
	"slothold/internal/config"
	"slothold/internal/database"
	"slothold/internal/jobs"
	"slothold/internal/metrics"
	"slothold/internal/middleware"
	"slothold/internal/modules/admin"
	"slothold/internal/modules/availability"
	"slothold/internal/modules/reservation"
	"slothold/internal/modules/waitlist"
	"slothold/internal/notify"
	"slothold/internal/payments"
	"slothold/internal/pkg/clock"
	jwtsvc "slothold/internal/pkg/jwt"
	"slothold/internal/pkg/resilience"
	"slothold/internal/repository"
	"slothold/internal/stream"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	if cfg.AutoMigrate {
		if err := repository.Migrate(db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	clk := clock.NewSystem()

	reservationRepo := repository.NewReservationRepository(db)
	bookingRepo := repository.NewBookingRepository(db)
	waitlistRepo := repository.NewWaitlistRepository(db)
	auditRepo := repository.NewAuditRepository(db)
	metricsRepo := repository.NewMetricsRepository(db)
	calendarRepo := repository.NewCalendarRepository(db)
	notificationRepo := repository.NewNotificationRepository(db)

	// Idempotency records live in memory with an optional redis layer behind
	// it, so replays survive a restart when redis is configured.
	var idemStore resilience.IdempotencyStore = resilience.NewMemoryStore(clk)
	if cfg.RedisURL != "" {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		idemStore = resilience.NewLayeredStore(
			resilience.NewMemoryStore(clk),
			resilience.NewRedisStore(redis.NewClient(redisOpts), "idem:"),
		)
	}
	guard := resilience.NewIdempotencyGuard(idemStore, cfg.IdempotencyTTL)

	var publisher audit.Publisher
	if len(cfg.KafkaBrokers) > 0 {
		producer := stream.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		defer producer.Close()
		publisher = producer
	}

	auditLogger := audit.NewLogger(auditRepo, publisher, clk)
	recorder := metrics.NewRecorder(metricsRepo, clk)
	notifier := notify.NewInboxNotifier(notificationRepo)
	calendarSink := calendarsync.NewDBSink(calendarRepo)

	var paymentProvider payments.Provider
	if cfg.StripeAPIKey != "" {
		paymentProvider = payments.NewStripeProvider(cfg.StripeAPIKey)
	} else {
		log.Println("STRIPE_API_KEY is empty, using sandbox payment provider")
		paymentProvider = payments.NewSandboxProvider()
	}

	availabilityService := availability.NewService(reservationRepo, calendarRepo)
	availabilityHandler := availability.NewHandler(availabilityService)

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
	reservationHandler := reservation.NewHandler(reservationService)

	waitlistService := waitlist.NewService(waitlistRepo, auditLogger, notifier, reservationService, availabilityService, clk, cfg.OfferWindow)
	waitlistHandler := waitlist.NewHandler(waitlistService)

	// Freed slots flow back through the waitlist; wired after construction
	// because the two services reference each other.
	reservationService.SetSlotOfferer(waitlistService)

	adminService := admin.NewService(reservationService, auditRepo)
	adminHandler := admin.NewHandler(adminService)

	j := jwtsvc.New(cfg.JWTSecret, 24*time.Hour)

	r := gin.Default()
	r.Use(middleware.CORS(), middleware.ErrorLogger())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":          "ok",
			"payment_circuit": string(reservationService.PaymentCircuitState()),
		})
	})

	v1 := r.Group("/api/v1")
	{
		// public
		availabilityHandler.RegisterRoutes(v1)

		protected := v1.Group("/")
		protected.Use(middleware.Auth(j))
		{
			reservationHandler.RegisterRoutes(protected)
			waitlistHandler.RegisterRoutes(protected)
		}
	}

	webhooks := r.Group("/webhooks")
	webhooks.Use(middleware.InternalTokenAuth(cfg.InternalToken))
	{
		reservationHandler.RegisterWebhookRoutes(webhooks)
	}

	internalAdmin := r.Group("/internal/admin")
	internalAdmin.Use(middleware.InternalTokenAuth(cfg.InternalToken))
	{
		adminHandler.RegisterRoutes(internalAdmin)
	}

	driver, err := jobs.NewDriver()
	if err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	if err := driver.Every("expire-holds", cfg.ExpirySweepInterval, func(ctx context.Context) {
		if n, err := reservationService.SweepExpired(ctx); err != nil {
			log.Printf("sweep_expired_failed err=%v", err)
		} else if n > 0 {
			log.Printf("sweep_expired reclaimed=%d", n)
		}
	}); err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	if err := driver.Every("hold-reminders", cfg.ExpirySweepInterval, func(ctx context.Context) {
		if _, err := reservationService.SweepReminders(ctx); err != nil {
			log.Printf("sweep_reminders_failed err=%v", err)
		}
	}); err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	if err := driver.Every("waitlist-offers", cfg.WaitlistSweepInterval, func(ctx context.Context) {
		if _, err := waitlistService.SweepOffers(ctx); err != nil {
			log.Printf("sweep_offers_failed err=%v", err)
		}
	}); err != nil {
		log.Fatalf("scheduler: %v", err)
	}
	driver.Start()
	defer func() {
		if err := driver.Shutdown(); err != nil {
			log.Printf("scheduler_shutdown_failed err=%v", err)
		}
	}()

	log.Printf("listening addr=%s env=%s", cfg.HTTPAddr, cfg.AppEnv)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal(err)
	}
}
