package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"sharewheels/internal/app"
	"sharewheels/internal/auth"
	"sharewheels/internal/config"
	"sharewheels/internal/events"
	"sharewheels/internal/handler"
	"sharewheels/internal/logger"
	internalRedis "sharewheels/internal/redis"
	"sharewheels/internal/repository"
	"sharewheels/internal/repository/mongodb"
	"sharewheels/internal/repository/postgres"
	"sharewheels/internal/service"
)

// stores bundles the repositories of the selected backend.
type stores struct {
	rides    repository.RideRepository
	bookings repository.BookingRepository
	users    repository.UserRepository
	tx       repository.TxManager
	close    func()
}

func main() {
	// Load configuration.
	cfg := config.Load()

	log := logger.New(logger.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// Initialize New Relic FIRST (before database so we can instrument DB).
	var nrApp *newrelic.Application
	var err error
	if cfg.NewRelic.Enabled && cfg.NewRelic.LicenseKey != "" {
		nrApp, err = newrelic.NewApplication(
			newrelic.ConfigAppName(cfg.NewRelic.AppName),
			newrelic.ConfigLicense(cfg.NewRelic.LicenseKey),
			newrelic.ConfigDistributedTracerEnabled(true),
		)
		if err != nil {
			log.WithError(err).Warn("failed to initialize New Relic")
		} else {
			log.WithField("app", cfg.NewRelic.AppName).Info("New Relic enabled")
		}
	}

	st, err := openStores(ctx, cfg, nrApp, log)
	if err != nil {
		log.WithError(err).Fatal("failed to open store")
	}
	defer st.close()

	// Initialize Redis with New Relic instrumentation.
	redisClient, err := app.NewRedisClient(ctx, cfg.Redis, nrApp)
	if err != nil {
		log.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()
	log.Info("connected to Redis")

	publisher := events.Publisher(events.NopPublisher{})
	if cfg.Events.Enabled {
		rabbit, err := events.NewRabbitPublisher(cfg.Events.RabbitMQURL, cfg.Events.Exchange, log)
		if err != nil {
			log.WithError(err).Fatal("failed to connect to RabbitMQ")
		}
		defer rabbit.Close()
		publisher = rabbit
		log.WithField("exchange", cfg.Events.Exchange).Info("publishing events to RabbitMQ")
	}

	// Wire dependencies.
	server := wireServer(st, redisClient, publisher, nrApp, cfg, log)

	// Start server in goroutine.
	go func() {
		log.WithField("port", cfg.Server.Port).Info("starting server")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server error")
		}
	}()

	// Graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Error("server forced to shutdown")
		return
	}

	log.Info("server exited")
}

// openStores connects to the configured backend and prepares its schema.
func openStores(ctx context.Context, cfg *config.Config, nrApp *newrelic.Application, log logrus.FieldLogger) (*stores, error) {
	if cfg.Store.Backend == config.BackendMongo {
		db, err := app.NewMongoDatabase(ctx, cfg.Mongo, nrApp)
		if err != nil {
			return nil, err
		}
		if err := mongodb.EnsureIndexes(ctx, db); err != nil {
			return nil, err
		}
		log.WithField("database", cfg.Mongo.Database).Info("connected to MongoDB")

		return &stores{
			rides:    mongodb.NewRideRepository(db),
			bookings: mongodb.NewBookingRepository(db),
			users:    mongodb.NewUserRepository(db),
			tx:       mongodb.NewTxManager(db, cfg.Mongo.Transactions),
			close: func() {
				_ = db.Client().Disconnect(context.Background())
			},
		}, nil
	}

	// Initialize database with New Relic instrumentation.
	db, err := app.NewDatabase(ctx, cfg.Database, nrApp)
	if err != nil {
		return nil, err
	}
	if err := postgres.EnsureSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	log.Info("connected to PostgreSQL")

	return &stores{
		rides:    postgres.NewRideRepository(db),
		bookings: postgres.NewBookingRepository(db),
		users:    postgres.NewUserRepository(db),
		tx:       postgres.NewTxManager(db),
		close:    func() { db.Close() },
	}, nil
}

// wireServer wires all dependencies and returns the HTTP server.
func wireServer(st *stores, redisClient *redis.Client, publisher events.Publisher, nrApp *newrelic.Application, cfg *config.Config, log *logrus.Logger) *http.Server {
	tokens := auth.NewJWTManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)

	// Initialize services.
	deps := service.Deps{
		Rides:    st.rides,
		Bookings: st.bookings,
		Users:    st.users,
		Tx:       st.tx,
		Cache:    internalRedis.NewCacheStore(redisClient, cfg.Redis.RideCacheTTL),
		Geo:      internalRedis.NewGeoIndex(redisClient),
		Locks:    internalRedis.NewLockStore(redisClient),
		Notifier: service.NewNotificationService(publisher, log),
		Receipts: service.NewReceiptService(),
		Policy: service.Policy{
			StrictSeats:       cfg.Booking.StrictSeats,
			StrictTransitions: cfg.Booking.StrictTransitions,
			VerifyPrice:       cfg.Booking.VerifyPrice,
			LockTTL:           cfg.Booking.LockTTL,
		},
		Log: log,
	}

	rideService := service.NewRideService(deps)
	bookingService := service.NewBookingService(deps)
	paymentService := service.NewPaymentService(deps)
	userService := service.NewUserService(st.users, log)

	// Create router.
	router := app.NewRouter(app.RouterDeps{
		RideHandler:    handler.NewRideHandler(rideService, paymentService, log),
		BookingHandler: handler.NewBookingHandler(bookingService, log),
		UserHandler:    handler.NewUserHandler(userService, tokens, log),
		Tokens:         tokens,
		RedisClient:    redisClient,
		NewRelicApp:    nrApp,
		Log:            log,
	})

	// Create HTTP server.
	return &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}
}
