package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"sharewheels/internal/handler"
	"sharewheels/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	RideHandler    *handler.RideHandler
	BookingHandler *handler.BookingHandler
	UserHandler    *handler.UserHandler
	Tokens         middleware.TokenParser
	RedisClient    *redis.Client // nil disables idempotent replays
	NewRelicApp    *newrelic.Application
	Log            logrus.FieldLogger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.LoggingMiddleware(deps.Log))
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes.
	v1 := router.Group("/v1")
	v1.POST("/users/register", deps.UserHandler.Register)
	v1.GET("/rides", deps.RideHandler.ListRides)
	v1.GET("/rides/:id", deps.RideHandler.GetRide)

	// Authenticated routes. Idempotency keys are scoped to the caller, so the
	// replay cache runs after authentication.
	authed := v1.Group("")
	authed.Use(middleware.AuthMiddleware(deps.Tokens))
	if deps.RedisClient != nil {
		authed.Use(middleware.IdempotencyMiddleware(deps.RedisClient, deps.Log))
	}
	{
		authed.GET("/users/:id", deps.UserHandler.GetUser)

		rides := authed.Group("/rides")
		{
			rides.POST("", deps.RideHandler.CreateRide)
			rides.GET("/mine", deps.RideHandler.MyRides)
			rides.GET("/history/:userId", deps.RideHandler.RideHistory)
			rides.PUT("/:id", deps.RideHandler.UpdateRide)
			rides.DELETE("/:id", deps.RideHandler.DeleteRide)
			rides.PUT("/:id/status", deps.RideHandler.UpdateRideStatus)
			rides.PUT("/:id/pay", deps.RideHandler.PayForRide)
			rides.PUT("/:id/passengers/:entryId/status", deps.RideHandler.UpdatePassengerStatus)
		}

		bookings := authed.Group("/bookings")
		{
			bookings.POST("", deps.BookingHandler.CreateBooking)
			bookings.GET("", deps.BookingHandler.MyBookings)
			bookings.GET("/passenger", deps.BookingHandler.PassengerBookings)
			bookings.GET("/driver", deps.BookingHandler.DriverBookings)
			bookings.PUT("/:id/status", deps.BookingHandler.UpdateBookingStatus)
			bookings.DELETE("/:id", deps.BookingHandler.CancelBooking)
		}
	}

	return router
}
