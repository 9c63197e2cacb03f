package router

import (
	"context"
	"fmt"
	"time"

	"corsi-booking/internal/api/handlers"
	"corsi-booking/internal/api/middleware"
	"corsi-booking/internal/config"
	"corsi-booking/internal/infrastructure/cache"
	"corsi-booking/internal/infrastructure/notification"
	"corsi-booking/internal/infrastructure/payment"
	"corsi-booking/internal/infrastructure/queue"
	"corsi-booking/internal/infrastructure/repository"
	interfaces "corsi-booking/internal/interfaces/infrastructure"
	"corsi-booking/internal/service"
	"corsi-booking/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

type RouterComponents struct {
	Router       *gin.Engine
	QueueService interfaces.QueueService
	CacheService interfaces.CacheService
}

func NewBookingRouter(db *gorm.DB) *gin.Engine {
	return NewBookingRouterWithComponents(db).Router
}

// NewBookingRouterWithComponents builds the HTTP surface and the
// infrastructure behind it, returning the pieces the server command needs
// for shutdown.
func NewBookingRouterWithComponents(db *gorm.DB) *RouterComponents {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(middleware.Logger())
	r.Use(cors.Default())
	r.Use(gin.Recovery())

	cfg := config.Get()

	courseRepo := repository.NewCourseRepository(db)
	reservationRepo := repository.NewReservationRepository(db)

	occupancyRepo, err := repository.NewOccupancyRepository(db)
	if err != nil {
		logger.Warn("Occupancy reporting unavailable: %v", err)
		occupancyRepo = nil
	}

	var cacheService interfaces.CacheService
	var redisCache *cache.RedisCache
	if cfg.Cache.Type == "memory" {
		cacheService = cache.NewMemoryCache()
		logger.Info("Using in-memory cache service")
	} else {
		redisCache = cache.NewRedisCacheWithConfig(&cfg.Cache)
		cacheService = redisCache
		logger.Info("Using Redis cache service")
	}

	var idempotencyRepo interfaces.IdempotencyRepository
	if redisCache != nil {
		idempotencyRepo = repository.NewRedisIdempotencyRepository(redisCache.GetClient())
	}

	var queueService interfaces.QueueService
	if cfg.Queue.Type == "redis" && redisCache != nil {
		queueService = queue.NewRedisQueue(redisCache.GetClient(), cfg.Queue.Workers)
		logger.Info("Using Redis notification queue")
	} else {
		queueService = queue.NewInMemoryQueue(cfg.Queue.BufferSize, cfg.Queue.Workers)
		logger.Info("Using in-memory notification queue")
	}

	var paymentStaging interfaces.PaymentStaging
	if redisCache != nil {
		paymentStaging = payment.NewRedisCartStaging(redisCache.GetClient(), cfg.Payment.CheckoutURL, cfg.Payment.Enabled)
	} else {
		paymentStaging = payment.NewRedisCartStaging(nil, cfg.Payment.CheckoutURL, false)
	}

	var gateway interfaces.NotificationGateway
	if cfg.SMTP.Host != "" {
		gateway = notification.NewSMTPNotifier(&cfg.SMTP, cfg.Booking.AdminEmail)
		logger.Info("Using SMTP notification gateway")
	} else {
		gateway = notification.NewLogNotifier()
		logger.Info("SMTP not configured, notifications go to the log")
	}

	bookingService := service.NewBookingService(
		courseRepo,
		reservationRepo,
		occupancyRepoOrNil(occupancyRepo),
		cacheService,
		paymentStaging,
		queueService,
		idempotencyRepo,
		gateway,
		cfg.Booking.ConfirmationURL,
		time.Duration(cfg.Booking.SeatCounterTTLHours)*time.Hour,
	)
	paymentService := service.NewPaymentService(reservationRepo, queueService)

	if err := initializeSeatCounters(cacheService, courseRepo, bookingService.Seats(),
		time.Duration(cfg.Booking.SeatCounterTTLHours)*time.Hour); err != nil {
		logger.Warn("Failed to warm seat counters: %v", err)
	}

	queueService.SetDispatcher(bookingService)
	queueService.StartWorkers()

	bookingHandler := handlers.NewBookingHandler(bookingService, cacheService,
		time.Duration(cfg.Booking.FormTokenTTLMinutes)*time.Minute)
	paymentHandler := handlers.NewPaymentHandler(paymentService)
	catalogHandler := handlers.NewCatalogHandler(bookingService)
	healthHandler := handlers.NewHealthHandler(db, cacheService)

	r.GET("/health", healthHandler.HealthCheck)
	r.GET("/ready", healthHandler.ReadinessCheck)
	r.GET("/live", healthHandler.LivenessCheck)

	v1 := r.Group("/api/v1")
	{
		bookings := v1.Group("/bookings")
		{
			bookings.GET("/token", bookingHandler.IssueToken)
			bookings.POST("", bookingHandler.SubmitBooking)
		}

		payments := v1.Group("/payments")
		{
			payments.POST("/callback", paymentHandler.OrderStatusCallback)
		}

		courses := v1.Group("/courses")
		{
			courses.GET("/:course_id", catalogHandler.GetCourse)
			courses.GET("/:course_id/occupancy", catalogHandler.GetCourseOccupancy)
		}
	}

	return &RouterComponents{
		Router:       r,
		QueueService: queueService,
		CacheService: cacheService,
	}
}

// initializeSeatCounters seeds the free-seat counter of every occurrence
// of every published course. Seeding is conditional in the cache, so a
// counter that is already live keeps its value.
func initializeSeatCounters(
	cacheService interfaces.CacheService,
	courseRepo interfaces.CourseRepository,
	seats *service.SeatAccounting,
	ttl time.Duration,
) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	courses, err := courseRepo.ListPublished(ctx)
	if err != nil {
		return fmt.Errorf("failed to list published courses: %w", err)
	}

	seeded := 0
	for _, course := range courses {
		for i := range course.Occurrences {
			occ := &course.Occurrences[i]
			occupied, full, err := seats.OccupiedAndFull(ctx, occ)
			if err != nil {
				logger.Warn("Skipping seat counter for course %s occurrence %d: %v", course.CourseID, occ.Index, err)
				continue
			}
			free := 0
			if !full {
				free = occ.Capacity - occupied
			}
			if err := cacheService.SetFreeSeats(ctx, course.CourseID, occ.Index, free, ttl); err != nil {
				logger.Warn("Failed to seed seat counter for course %s occurrence %d: %v", course.CourseID, occ.Index, err)
				continue
			}
			seeded++
		}
	}

	logger.Info("Seeded seat counters for %d occurrences across %d published courses", seeded, len(courses))
	return nil
}

// occupancyRepoOrNil keeps the typed-nil pointer out of the interface so
// the service's nil check works.
func occupancyRepoOrNil(repo *repository.OccupancyRepository) interfaces.OccupancyRepository {
	if repo == nil {
		return nil
	}
	return repo
}
