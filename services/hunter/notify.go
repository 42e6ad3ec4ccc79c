package hunter

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"time"

	"vaxbot/lib/scrapers/doctolib"

	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/codes"
)

type SmtpConfig struct {
	Server       string `json:"server"`
	Port         int    `json:"port"`
	EmailAddress string `json:"email_address"`
	Password     string `json:"password"`
	// defaults to EmailAddress
	Recipient string `json:"recipient"`
}

// Notifier emails a summary of a confirmed booking, for hunts left
// running unattended.
type Notifier struct {
	config SmtpConfig
}

func NewNotifier(config SmtpConfig) *Notifier {
	if config.Recipient == "" {
		config.Recipient = config.EmailAddress
	}
	return &Notifier{config: config}
}

func (n *Notifier) BookingConfirmed(ctx context.Context, patient string, appointment *doctolib.Appointment) error {
	_, span := tracer.Start(ctx, "notifier:BookingConfirmed")
	defer span.End()

	var slots []string
	for _, slot := range appointment.Slots {
		slots = append(slots, slot.Format(time.RFC1123))
	}

	mail := email.NewEmail()
	mail.From = fmt.Sprintf("vaxbot <%s>", n.config.EmailAddress)
	mail.To = []string{n.config.Recipient}
	mail.Subject = fmt.Sprintf("Vaccination appointment booked at %s", appointment.Name)

	body := fmt.Sprintf(`A vaccination appointment has been booked for %s.

Center: %s
Address: %s, %s %s
Vaccine: %s
Slots:
  %s

Map: %s`,
		patient,
		appointment.Name,
		appointment.Address, appointment.Zipcode, appointment.City,
		appointment.Vaccine,
		strings.Join(slots, "\n  "),
		appointment.MapURL)
	mail.Text = []byte(body)

	addr := fmt.Sprintf("%s:%d", n.config.Server, n.config.Port)
	err := mail.Send(
		addr,
		smtp.PlainAuth("", n.config.EmailAddress, n.config.Password, n.config.Server),
	)
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
