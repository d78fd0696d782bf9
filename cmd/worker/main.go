package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelair/skybooking/config"
	"github.com/avelair/skybooking/internal/codes"
	"github.com/avelair/skybooking/internal/domain"
	"github.com/avelair/skybooking/internal/email"
	"github.com/avelair/skybooking/internal/kafka"
	"github.com/avelair/skybooking/internal/payment"
	"github.com/avelair/skybooking/internal/repository"
	"github.com/avelair/skybooking/internal/service/booking"
	"github.com/avelair/skybooking/internal/service/flights"
	"github.com/avelair/skybooking/internal/weather"
	"github.com/go-co-op/gocron/v2"
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

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	flightRepo := repository.NewFlightRepository(pool)
	seatRepo := repository.NewSeatRepository(pool)
	bookingRepo := repository.NewBookingRepository(pool)

	flightService := flights.NewFlightService(flightRepo, nil, weather.NewAdapter(nil, nil))
	bookingService := booking.NewBookingService(
		bookingRepo,
		flightRepo,
		seatRepo,
		nil,
		payment.NewGateway(cfg.Payment.ChargeSuccessRate, cfg.Payment.RefundSuccessRate),
		codes.NewGenerator(nil),
		nil,
		booking.SeatMapSpec{Rows: cfg.SeatMap.Rows, Letters: cfg.SeatMap.Letters, ClassRanges: []domain.ClassRange{}},
		time.Duration(cfg.Booking.SeatLockTTLSeconds)*time.Second,
	)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic)
	defer consumer.Close()

	sender := email.NewSender(cfg.SMTP)

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, event kafka.BookingEvent) error {
			if err := sender.Send(ctx, event); err != nil {
				log.Printf("send notification for %s: %v", event.ConfirmationNumber, err)
			}
			return nil
		}); err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		log.Fatalf("create scheduler: %v", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Duration(cfg.Worker.StatusSweepMinutes)*time.Minute),
		gocron.NewTask(func() {
			mutated, err := flightService.RandomizeStatuses(ctx)
			if err != nil {
				log.Printf("status sweep: %v", err)
				return
			}
			if mutated > 0 {
				log.Printf("status sweep mutated %d flights", mutated)
			}
		}),
	)
	if err != nil {
		log.Fatalf("schedule status sweep: %v", err)
	}

	_, err = scheduler.NewJob(
		gocron.DurationJob(time.Duration(cfg.Worker.CompletionSweepMinutes)*time.Minute),
		gocron.NewTask(func() {
			completed, err := bookingService.CompleteFlownBookings(ctx)
			if err != nil {
				log.Printf("completion sweep: %v", err)
				return
			}
			if completed > 0 {
				log.Printf("completed %d bookings for arrived flights", completed)
			}
		}),
	)
	if err != nil {
		log.Fatalf("schedule completion sweep: %v", err)
	}

	scheduler.Start()
	defer scheduler.Shutdown()

	<-ctx.Done()
	log.Println("shutting down worker")
}
