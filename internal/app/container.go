package app

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/nekogravitycat/parking-booking-backend/internal/api"
	"github.com/nekogravitycat/parking-booking-backend/internal/auth"
	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	"github.com/nekogravitycat/parking-booking-backend/internal/hardware"
	"github.com/nekogravitycat/parking-booking-backend/internal/park"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/clock"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/lease"
	"github.com/nekogravitycat/parking-booking-backend/internal/pkg/mq"
	"github.com/nekogravitycat/parking-booking-backend/internal/reclaim"
	"github.com/nekogravitycat/parking-booking-backend/internal/slot"
)

// Config holds the dependencies and settings required to start the application.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	DBPool       *pgxpool.Pool
	Redis        *redis.Client    // optional
	Publisher    booking.Publisher // optional
	Clock        clock.Clock       // defaults to the system clock
	Logger       *zap.Logger

	JWTSecret             string
	JWTTTL                time.Duration
	HardwareKeyHash       string
	HardwareRatePerMinute int

	ReclaimInterval      time.Duration
	ExpiryWindow         time.Duration
	ExpiryWarning        time.Duration
	MinBillingMinutes    int
	ProvisionalEndOffset time.Duration
}

// Container holds the initialized components that are needed externally.
type Container struct {
	Router         *gin.Engine
	JWTManager     *auth.JWTManager
	BookingService booking.Service
	Scheduler      *reclaim.Scheduler

	// HardwareHandler consumes sensor signals from the message queue.
	HardwareHandler mq.HandlerFunc
}

// NewContainer initializes all modules and returns the container.
func NewContainer(cfg Config) *Container {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.System()
	}
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = mq.NoopPublisher{}
	}

	// Init Components
	jwtManager := auth.NewJWTManager(cfg.JWTSecret, cfg.JWTTTL)

	// Park Module
	parkRepo := park.NewPgxRepository(cfg.DBPool)
	parkService := park.NewService(parkRepo)

	// Slot Module
	slotRepo := slot.NewPgxRepository(cfg.DBPool)
	slotService := slot.NewService(slotRepo)

	// Booking Module
	bookingRepo := booking.NewPgxRepository(cfg.DBPool)
	bookingService := booking.NewService(bookingRepo, slotService, clk, publisher, logger, booking.Options{
		MinBillingMinutes:    cfg.MinBillingMinutes,
		ExpiryWindow:         cfg.ExpiryWindow,
		ExpiryWarning:        cfg.ExpiryWarning,
		ProvisionalEndOffset: cfg.ProvisionalEndOffset,
	})

	// Reclamation
	scheduler := reclaim.NewScheduler(bookingService, clk, lease.NewRedisLock(cfg.Redis), publisher, logger, cfg.ReclaimInterval)

	// API Router Config
	routerParams := api.Config{
		IsProduction:   cfg.IsProduction,
		ProdOrigins:    cfg.ProdOrigins,
		Logger:         logger,
		ParkService:    parkService,
		SlotService:    slotService,
		BookingService: bookingService,
		Ingestor:       bookingService,
		JWTManager:     jwtManager,
	}
	if cfg.HardwareKeyHash != "" {
		routerParams.DeviceKeys = auth.NewKeyVerifier(cfg.HardwareKeyHash)
		routerParams.HardwareLimiter = auth.NewRateLimiter(cfg.HardwareRatePerMinute)
	}

	// Router
	router := api.NewRouter(routerParams)

	return &Container{
		Router:          router,
		JWTManager:      jwtManager,
		BookingService:  bookingService,
		Scheduler:       scheduler,
		HardwareHandler: hardware.QueueHandler(bookingService, logger),
	}
}
