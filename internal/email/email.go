package email

import (
	"context"
	"fmt"
	"log"

	"github.com/avelair/skybooking/config"
	"github.com/avelair/skybooking/internal/kafka"
	"gopkg.in/gomail.v2"
)

// Sender delivers booking notifications over SMTP. Without an SMTP host it
// degrades to logging, which keeps local runs working.
type Sender struct {
	cfg config.SMTPConfig
}

func NewSender(cfg config.SMTPConfig) *Sender {
	return &Sender{cfg: cfg}
}

func (s *Sender) Send(ctx context.Context, event kafka.BookingEvent) error {
	subject, body := render(event)

	if s.cfg.Host == "" {
		log.Printf("smtp not configured, would send to %s: %s", event.Email, subject)
		return nil
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.cfg.From)
	m.SetHeader("To", event.Email)
	m.SetHeader("Subject", subject)
	m.SetBody("text/plain", body)

	d := gomail.NewDialer(s.cfg.Host, s.cfg.Port, s.cfg.Username, s.cfg.Password)
	return d.DialAndSend(m)
}

func render(event kafka.BookingEvent) (string, string) {
	switch event.Type {
	case "booking_checked_in":
		return fmt.Sprintf("Checked in for flight %s", event.FlightNumber),
			fmt.Sprintf("You are checked in for flight %s on %s. Confirmation: %s.",
				event.FlightNumber, event.FlightDate.Format("2006-01-02"), event.ConfirmationNumber)
	case "booking_cancelled":
		return fmt.Sprintf("Booking %s cancelled", event.ConfirmationNumber),
			fmt.Sprintf("Your booking for flight %s on %s has been cancelled and $%d.%02d refunded.",
				event.FlightNumber, event.FlightDate.Format("2006-01-02"),
				event.TotalCents/100, event.TotalCents%100)
	default:
		return fmt.Sprintf("Booking %s confirmed", event.ConfirmationNumber),
			fmt.Sprintf("Your booking for flight %s on %s is confirmed. Total: $%d.%02d. Confirmation: %s.",
				event.FlightNumber, event.FlightDate.Format("2006-01-02"),
				event.TotalCents/100, event.TotalCents%100, event.ConfirmationNumber)
	}
}
