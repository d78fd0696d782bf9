package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelair/skybooking/config"
	"github.com/avelair/skybooking/internal/bootstrap"
	"github.com/avelair/skybooking/internal/cache"
	"github.com/avelair/skybooking/internal/codes"
	"github.com/avelair/skybooking/internal/domain"
	"github.com/avelair/skybooking/internal/kafka"
	"github.com/avelair/skybooking/internal/payment"
	"github.com/avelair/skybooking/internal/repository"
	"github.com/avelair/skybooking/internal/service/booking"
	"github.com/avelair/skybooking/internal/service/flights"
	"github.com/avelair/skybooking/internal/weather"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := repository.Migrate(cfg.Database.URL()); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis,
		time.Duration(cfg.Booking.FlightsCacheTTLSeconds)*time.Second,
		time.Duration(cfg.Booking.SeatMapCacheTTLSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	gateway := payment.NewGateway(cfg.Payment.ChargeSuccessRate, cfg.Payment.RefundSuccessRate,
		payment.WithLatency(time.Duration(cfg.Payment.LatencyMillis)*time.Millisecond))
	generator := codes.NewGenerator(nil)

	flightRepo := repository.NewFlightRepository(pool)
	seatRepo := repository.NewSeatRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	flightService := flights.NewFlightService(flightRepo, redisCache, weather.NewAdapter(nil, nil))
	bookingService := booking.NewBookingService(
		bookingRepo,
		flightRepo,
		seatRepo,
		redisCache,
		gateway,
		generator,
		producer,
		seatMapSpec(cfg),
		time.Duration(cfg.Booking.SeatLockTTLSeconds)*time.Second,
		booking.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
		booking.WithCheckInWindow(time.Duration(cfg.Booking.CheckInWindowHours)*time.Hour),
		booking.WithConfirmationAttempts(cfg.Booking.ConfirmationAttempts),
	)

	if err := bootstrap.Run(ctx, cfg, flightService, bookingService); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func seatMapSpec(cfg *config.Config) booking.SeatMapSpec {
	return booking.SeatMapSpec{
		Rows:    cfg.SeatMap.Rows,
		Letters: cfg.SeatMap.Letters,
		ClassRanges: []domain.ClassRange{
			{FromRow: 1, ToRow: cfg.SeatMap.FirstThroughRow, Class: domain.SeatClassFirst},
			{FromRow: cfg.SeatMap.FirstThroughRow + 1, ToRow: cfg.SeatMap.BusinessThroughRow, Class: domain.SeatClassBusiness},
			{FromRow: cfg.SeatMap.BusinessThroughRow + 1, ToRow: cfg.SeatMap.PremiumThroughRow, Class: domain.SeatClassPremiumEconomy},
			{FromRow: cfg.SeatMap.PremiumThroughRow + 1, ToRow: cfg.SeatMap.Rows, Class: domain.SeatClassEconomy},
		},
	}
}
