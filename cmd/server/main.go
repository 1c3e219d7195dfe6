package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iliyamo/ticket-booking/internal/config"
	"github.com/iliyamo/ticket-booking/internal/database"
	"github.com/iliyamo/ticket-booking/internal/gateway"
	"github.com/iliyamo/ticket-booking/internal/handler"
	"github.com/iliyamo/ticket-booking/internal/metrics"
	"github.com/iliyamo/ticket-booking/internal/middleware"
	"github.com/iliyamo/ticket-booking/internal/notify"
	"github.com/iliyamo/ticket-booking/internal/queue"
	"github.com/iliyamo/ticket-booking/internal/repository"
	"github.com/iliyamo/ticket-booking/internal/router"
	"github.com/iliyamo/ticket-booking/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("warning: .env: %v", err)
	}
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	if cfg.DBAutoMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			log.Fatalf("migrate: %v", err)
		}
	}

	// nil when Redis is down; rate limiting, caching and payment claims
	// then switch themselves off
	rdb := config.NewRedisClient(config.LoadRedisConfig())
	if rdb != nil {
		defer rdb.Close()
	}

	m := metrics.New(prometheus.DefaultRegisterer)

	locks := repository.NewLockRepo(db)
	tickets := repository.NewTicketRepo(db)
	bookings := repository.NewBookingRepo(db, tickets, locks)

	var publishers service.MultiPublisher
	if cfg.RabbitMQURL != "" {
		publishers = append(publishers, queue.NewPublisher(cfg.RabbitMQURL))
	}
	if cfg.PubNubPublishKey != "" {
		publishers = append(publishers, notify.NewPubNubNotifier(cfg.PubNubPublishKey, cfg.PubNubSubscribeKey, cfg.PubNubUserID))
	}
	var publisher service.Publisher
	if len(publishers) > 0 {
		publisher = publishers
	}

	gw := gateway.NewHTTPClient(cfg.PaymentGatewayURL, cfg.PaymentGatewayTimeout, m)

	reservations := service.NewReservationService(locks, tickets, bookings, cfg.LockTTL, m)
	payments := service.NewPaymentService(bookings, gw, rdb, cfg.PaymentClaimTTL, cfg.WebhookURL(), m)
	confirmations := service.NewConfirmationService(bookings, publisher, m)
	reader := service.NewBookingService(bookings, tickets, locks)

	go service.NewLockSweeper(locks, cfg.LockSweepInterval, m).Run(ctx)
	if cfg.BookingConsumerEnabled && cfg.RabbitMQURL != "" {
		go queue.NewConsumer(cfg.RabbitMQURL, cfg.BookingLogPath).Run(ctx)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.RequestID(), echomw.Logger(), echomw.Recover())

	router.RegisterRoutes(e, db, prometheus.DefaultGatherer)
	router.RegisterPublic(e, handler.NewEventHandler(reader), middleware.NewRedisCache(config.LoadCacheConfig(), rdb))
	router.RegisterBookings(e,
		handler.NewBookingHandler(reservations, payments, reader),
		handler.NewWebhookHandler(confirmations, cfg.WebhookSecret, cfg.WebhookSignatureHeader),
		cfg.JWTSecret,
		middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
	)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	go func() {
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
