package hunter

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/url"
	"time"

	"vaxbot/lib/scrapers/doctolib"
	"vaxbot/lib/statestore"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	sleepAfterCenter          = time.Second
	sleepAfterRound           = time.Second * 5
	sleepAfterConnectionError = time.Second * 5
	sleepWhileQueued          = time.Second * 30
)

type Options struct {
	Client *doctolib.Client
	// optional, records confirmed bookings
	Store *statestore.Store
	// optional, emails when a booking is confirmed
	Notifier *Notifier

	Filters    Filters
	Search     doctolib.SearchOptions
	MotiveKeys []string

	DryRun bool
	// optional, called before booking; returning false skips the
	// appointment and moves on to the next center
	Confirm func(*doctolib.Appointment) bool
	// called for required custom fields that have no obvious answer
	FillField func(doctolib.CustomField) string
}

// Service runs the search-and-book loop until an appointment is
// confirmed or the context is cancelled.
type Service struct {
	opts Options
}

func New(opts Options) *Service {
	return &Service{opts: opts}
}

// Result is the booked appointment. Confirmed is false on a dry run.
type Result struct {
	Appointment *doctolib.Appointment
	Confirmed   bool
}

// Run polls the centers until a slot is booked. It never returns
// "no slots": quiet rounds just start the next round after a pause.
func (s *Service) Run(ctx context.Context) (*Result, error) {
	client := s.opts.Client

	slog.InfoContext(ctx, "starting to look for vaccine slots",
		"patient", client.Patient.DisplayName(),
		"start", s.opts.Search.StartDate.Format("2006-01-02"),
		"end", s.opts.Search.EndDate.Format("2006-01-02"),
		"country", client.Country.Code)
	slog.InfoContext(ctx, "this may take a few minutes or hours, be patient")

	for {
		result, err := s.round(ctx)
		if result != nil {
			return result, nil
		}

		var pause time.Duration
		var queued doctolib.QueueError
		switch {
		case err == nil:
			slog.InfoContext(ctx, "no free slots found at selected centers, trying another round",
				"pause", sleepAfterRound)
			pause = sleepAfterRound
		case errors.As(err, &queued):
			slog.InfoContext(ctx, "within the virtual queue",
				"estimated_minutes", queued.Minutes)
			pause = sleepWhileQueued
		case isConnectionError(err):
			slog.WarnContext(ctx, "connection error, check your internet connection, retrying", "err", err)
			pause = sleepAfterConnectionError
		default:
			return nil, err
		}

		if err := sleepCtx(ctx, pause); err != nil {
			return nil, err
		}
	}
}

func (s *Service) round(ctx context.Context) (*Result, error) {
	ctx, span := tracer.Start(ctx, "hunter:round")
	defer span.End()

	centers, err := s.opts.Client.FindCenters(ctx, s.opts.Filters.Cities, s.opts.MotiveKeys)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "center search failed")
		return nil, err
	}
	span.SetAttributes(attribute.Int("centers", len(centers)))

	for _, center := range centers {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !s.opts.Filters.Match(center) {
			continue
		}

		slog.InfoContext(ctx, "checking center", "center", center.Name, "city", center.City)

		result, err := s.tryCenter(ctx, center)
		if err != nil {
			return nil, err
		}
		if result != nil {
			return result, nil
		}

		if err := sleepCtx(ctx, sleepAfterCenter); err != nil {
			return nil, err
		}
	}

	return nil, nil
}

func (s *Service) tryCenter(ctx context.Context, center doctolib.Center) (*Result, error) {
	ctx, span := tracer.Start(ctx, "hunter:tryCenter")
	defer span.End()
	span.SetAttributes(attribute.String("center", center.Name))

	appointment, err := s.opts.Client.FindAppointment(ctx, center, s.opts.Search)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "appointment search failed")
		return nil, err
	}
	if appointment == nil {
		return nil, nil
	}

	slog.InfoContext(ctx, "found an appointment",
		"center", appointment.Name,
		"vaccine", appointment.Vaccine,
		"slot", appointment.Slots[0].Format(time.RFC1123),
		"map", appointment.MapURL)

	if s.opts.Confirm != nil && !s.opts.Confirm(appointment) {
		slog.InfoContext(ctx, "skipped on request")
		return nil, nil
	}

	customValues := map[string]string{}
	for _, field := range appointment.CustomFields {
		customValues[field.ID] = s.fieldValue(field)
	}

	if s.opts.DryRun {
		slog.InfoContext(ctx, "booking status", "status", "fake")
		return &Result{Appointment: appointment}, nil
	}

	confirmed, err := s.opts.Client.Book(ctx, appointment, customValues)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking failed")
		return nil, err
	}
	slog.InfoContext(ctx, "booking status", "confirmed", confirmed)

	s.recordAndNotify(ctx, appointment, confirmed)
	return &Result{Appointment: appointment, Confirmed: confirmed}, nil
}

func (s *Service) fieldValue(field doctolib.CustomField) string {
	switch {
	case field.ID == "cov19":
		return "Non"
	case field.Placeholder != "":
		return field.Placeholder
	case s.opts.FillField != nil:
		return s.opts.FillField(field)
	}
	return ""
}

func (s *Service) recordAndNotify(ctx context.Context, appointment *doctolib.Appointment, confirmed bool) {
	if !confirmed {
		return
	}

	if s.opts.Store != nil {
		booking := statestore.Booking{
			AppointmentID: appointment.ID,
			CenterName:    appointment.Name,
			CenterAddress: appointment.Address,
			Vaccine:       appointment.Vaccine,
			Patient:       s.opts.Client.Patient.DisplayName(),
			FirstSlot:     appointment.Slots[0],
		}
		if len(appointment.Slots) > 1 {
			booking.SecondSlot = appointment.Slots[1]
		}
		if err := s.opts.Store.RecordBooking(ctx, booking); err != nil {
			slog.WarnContext(ctx, "failed to record booking", "err", err)
		}
	}

	if s.opts.Notifier != nil {
		err := s.opts.Notifier.BookingConfirmed(ctx, s.opts.Client.Patient.DisplayName(), appointment)
		if err != nil {
			slog.WarnContext(ctx, "failed to send booking notification", "err", err)
		}
	}
}

func isConnectionError(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
