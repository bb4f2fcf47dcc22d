package api

import (
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/nekogravitycat/parking-booking-backend/internal/auth"
	"github.com/nekogravitycat/parking-booking-backend/internal/booking"
	bookingHttp "github.com/nekogravitycat/parking-booking-backend/internal/booking/http"
	"github.com/nekogravitycat/parking-booking-backend/internal/hardware"
	hardwareHttp "github.com/nekogravitycat/parking-booking-backend/internal/hardware/http"
	"github.com/nekogravitycat/parking-booking-backend/internal/park"
	parkHttp "github.com/nekogravitycat/parking-booking-backend/internal/park/http"
	"github.com/nekogravitycat/parking-booking-backend/internal/slot"
	slotHttp "github.com/nekogravitycat/parking-booking-backend/internal/slot/http"
)

// Config holds everything the router needs to register routes.
type Config struct {
	IsProduction bool
	ProdOrigins  string
	Logger       *zap.Logger

	ParkService    park.Service
	SlotService    slot.Service
	BookingService booking.Service
	Ingestor       hardware.Ingestor

	JWTManager *auth.JWTManager

	// DeviceKeys verifies sensor requests. Nil disables the hardware endpoint.
	DeviceKeys      *auth.KeyVerifier
	HardwareLimiter *auth.RateLimiter
}

// NewRouter initializes the HTTP router engine.
// It is responsible for assembling middleware (CORS, Logger, Auth) and registering routes for various modules.
func NewRouter(cfg Config) *gin.Engine {
	if cfg.IsProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global Middleware:
	// - Logger: Logs request information to the console.
	// - Recovery: Captures panics to prevent server crashes and returns a 500 error.
	r.Use(gin.Logger(), gin.Recovery())

	// Configure CORS (Cross-Origin Resource Sharing).
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = allowedOrigins(cfg)
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", auth.DeviceKeyHeader}
	r.Use(cors.New(corsConfig))

	// authMiddleware: Validates if the request contains a valid driver JWT.
	authMiddleware := auth.AuthRequired(cfg.JWTManager)

	parkHandler := parkHttp.NewHandler(cfg.ParkService)
	slotHandler := slotHttp.NewHandler(cfg.SlotService)
	bookingHandler := bookingHttp.NewHandler(cfg.BookingService, cfg.Logger)

	// Register API routes under /v1
	v1 := r.Group("/v1")
	{
		parkHttp.RegisterRoutes(v1, parkHandler)
		slotHttp.RegisterRoutes(v1, slotHandler)
		bookingHttp.RegisterRoutes(v1, bookingHandler, authMiddleware)

		if cfg.DeviceKeys != nil {
			limiter := cfg.HardwareLimiter
			if limiter == nil {
				limiter = auth.NewRateLimiter(0)
			}
			hardwareHttp.RegisterRoutes(v1, hardwareHttp.NewHandler(cfg.Ingestor),
				limiter.Middleware(), auth.DeviceKeyRequired(cfg.DeviceKeys))
		} else {
			cfg.Logger.Info("hardware signal endpoint disabled: HARDWARE_KEY_HASH not set")
		}
	}

	return r
}

func allowedOrigins(cfg Config) []string {
	if cfg.IsProduction && cfg.ProdOrigins != "" {
		var origins []string
		for _, o := range strings.Split(cfg.ProdOrigins, ",") {
			if o = strings.TrimSpace(o); o != "" {
				origins = append(origins, o)
			}
		}
		return origins
	}
	return []string{
		"http://localhost:3000", // dashboard
		"http://localhost:8081", // Swagger
	}
}
