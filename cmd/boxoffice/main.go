package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"

	"boxoffice/internal/auth"
	auth_api "boxoffice/internal/auth/api"
	"boxoffice/internal/booking"
	booking_api "boxoffice/internal/booking/api"
	booking_db "boxoffice/internal/booking/db"
	"boxoffice/internal/cart"
	"boxoffice/internal/catalog"
	catalog_api "boxoffice/internal/catalog/api"
	catalog_db "boxoffice/internal/catalog/db"
	"boxoffice/internal/config"
	"boxoffice/internal/database/migrations"
	"boxoffice/internal/logger"
	"boxoffice/internal/notify"
	"boxoffice/internal/reservation"
	reservation_api "boxoffice/internal/reservation/api"
	reservation_db "boxoffice/internal/reservation/db"
	reservation_redis "boxoffice/internal/reservation/redis"
)

func connectDatabase(cfg *config.Config, log *logger.Logger) *bun.DB {
	var sqldb *sql.DB
	var err error
	maxRetries := 5

	for i := 0; i < maxRetries; i++ {
		log.Info("DATABASE", fmt.Sprintf("Connecting to PostgreSQL (attempt %d/%d)", i+1, maxRetries))
		sqldb, err = sql.Open("postgres", cfg.Database.DSN)
		if err == nil {
			err = sqldb.Ping()
		}
		if err == nil {
			break
		}
		log.Error("DATABASE", fmt.Sprintf("Failed to connect to PostgreSQL: %v", err))
		if i < maxRetries-1 {
			time.Sleep(2 * time.Second)
		}
	}
	if err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Giving up on PostgreSQL after %d attempts: %v", maxRetries, err))
	}

	sqldb.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqldb.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqldb.SetConnMaxLifetime(cfg.Database.MaxLifetime)

	log.Info("DATABASE", "PostgreSQL connection successful")
	return bun.NewDB(sqldb, pgdialect.New())
}

func connectRedis(cfg *config.Config, log *logger.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	if err := client.Ping(context.Background()).Err(); err != nil {
		log.Fatal("REDIS", fmt.Sprintf("Failed to connect to Redis at %s: %v", cfg.Redis.Addr, err))
	}
	log.Info("REDIS", "Redis connection successful")
	return client
}

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	bunDB := connectDatabase(cfg, log)
	defer bunDB.Close()

	redisClient := connectRedis(cfg, log)
	defer redisClient.Close()

	migrationOpts := migrations.DefaultOptions()
	migrationOpts.SeedData = os.Getenv("SEED_DATA") == "true"
	runner := migrations.NewRunner(bunDB, migrationOpts)
	if err := runner.Run(); err != nil {
		log.Fatal("DATABASE", fmt.Sprintf("Migrations failed: %v", err))
	}

	// Notification sink: SMTP when enabled, log-only otherwise; booking
	// events go to Kafka when enabled.
	var mailer notify.EmailSender
	if cfg.Email.SendEnabled {
		mailer = notify.NewSMTPMailer(cfg.Email)
	} else {
		mailer = &notify.LogMailer{Logger: log}
	}
	sink := notify.NewNotifier(mailer, log, cfg.Email.SubjectTag)

	var events booking.EventPublisher
	if cfg.Kafka.Enabled {
		producer := notify.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topics)
		defer producer.Close()
		events = producer
	} else {
		events = notify.NoopProducer{}
	}

	tokens := auth.NewTokenManager(cfg.Auth.SecretKey, cfg.Auth.SessionTTL, cfg.Auth.TokenTTL)

	carts := cart.NewStore(redisClient, cfg.Reservation.CartTTL)
	showingLock := reservation_redis.NewLock(redisClient, cfg.Reservation.LockTimeout)

	reservationService := reservation.NewService(
		&reservation_db.DB{Bun: bunDB}, showingLock, log, cfg.Reservation.HoldDuration)
	bookingService := booking.NewService(
		&booking_db.DB{Bun: bunDB}, sink, events, tokens, log)
	catalogService := catalog.NewService(&catalog_db.DB{Bun: bunDB})
	authService := auth.NewService(&auth.DB{Bun: bunDB}, tokens, sink, log)

	catalogHandler := catalog_api.NewHandler(catalogService, reservationService, log)
	reservationHandler := reservation_api.NewHandler(reservationService, carts, log)
	bookingHandler := booking_api.NewHandler(bookingService, reservationService, carts, log)
	authHandler := auth_api.NewHandler(authService, log)

	sweep := reservation_api.SweepMiddleware(reservationService, carts, log)

	r := chi.NewRouter()
	r.Use(cart.SessionMiddleware())
	r.Use(auth.CurrentUser(tokens))

	r.Get("/", catalogHandler.Index)
	r.Get("/events", catalogHandler.ListEvents)
	r.Get("/event/{id}", catalogHandler.GetEvent)
	r.Get("/showing/{id}", catalogHandler.GetShowing)
	r.Post("/showing/{id}/reserve", reservationHandler.Reserve)
	r.Delete("/cart/ticket/{id}", reservationHandler.Release)

	r.Route("/booking", func(r chi.Router) {
		r.With(sweep).Get("/", bookingHandler.ViewCart)
		r.With(sweep).Post("/", bookingHandler.SubmitBooking)
		r.Get("/confirmation", bookingHandler.Confirmation)
	})

	r.Route("/my-bookings", func(r chi.Router) {
		r.Use(auth.RequireLogin())
		r.Get("/", bookingHandler.MyBookings)
	})
	r.Route("/ticket", func(r chi.Router) {
		r.Use(auth.RequireLogin())
		r.Delete("/{id}", bookingHandler.CancelTicket)
	})

	r.Route("/auth", func(r chi.Router) {
		r.Post("/register", authHandler.Register)
		r.Post("/login", authHandler.Login)
		r.Get("/confirm/{token}", authHandler.Confirm)
		r.Post("/reset", authHandler.RequestPasswordReset)
		r.Post("/reset/{token}", authHandler.ResetPassword)
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", fmt.Sprintf("Box office listening on %s", cfg.Server.Port))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", fmt.Sprintf("HTTP error: %v", err))
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	log.Info("SERVER", "Box office shutdown complete")
}
