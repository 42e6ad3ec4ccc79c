package doctolib

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

type SearchOptions struct {
	// name patterns of the wanted vaccines, see Country.VaccineMotives
	Vaccines []string
	// window for the first dose; zero values disable the bound
	StartDate time.Time
	EndDate   time.Time
	// weekdays on which no dose may land
	ExcludedWeekdays map[time.Weekday]bool
	OnlySecond       bool
	OnlyThird        bool
}

func (o SearchOptions) singleShot(vaccine string, janssenPattern string) bool {
	return vaccine == janssenPattern || o.OnlySecond || o.OnlyThird
}

// BookingData fetches the motive/agenda/place description of a center.
func (c *Client) FetchBookingData(ctx context.Context, centerID string) (*BookingData, error) {
	ctx, span := tracer.Start(ctx, "client:FetchBookingData")
	defer span.End()
	span.SetAttributes(attribute.String("center_id", centerID))

	res, err := c.Http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/booking/%s.json", centerID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch booking data")
		return nil, err
	}
	if res.IsError() {
		err := fmt.Errorf("booking data %s: %s", centerID, res.Status())
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	var body struct {
		Data BookingData `json:"data"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse booking data")
		return nil, err
	}
	return &body.Data, nil
}

// FindAppointment looks for a bookable slot (pair) at the center and
// reserves the first one that fits. A nil appointment with a nil
// error means the center simply has nothing right now.
func (c *Client) FindAppointment(ctx context.Context, center Center, opts SearchOptions) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "client:FindAppointment")
	defer span.End()
	span.SetAttributes(attribute.String("center", center.Name))

	res, err := c.Http.R().
		SetContext(ctx).
		Get(center.URL)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open center page")
		return nil, err
	}
	if res.IsError() {
		// referenced centers sometimes are not available anymore (410 Gone)
		slog.WarnContext(ctx, "center page unavailable", "center", center.Name, "status", res.Status())
		return nil, nil
	}

	centerID := centerIDFromURL(center.URL)
	data, err := c.FetchBookingData(ctx, centerID)
	if err != nil {
		return nil, err
	}

	janssenPattern := c.Country.VaccineMotives[c.Country.KeyJanssen]

	type resolvedMotive struct {
		vaccine string
		id      int64
	}
	var motives []resolvedMotive
	for _, vaccine := range opts.Vaccines {
		id, ok := data.FindMotive(vaccine, opts.singleShot(vaccine, janssenPattern))
		if !ok {
			continue
		}
		motives = append(motives, resolvedMotive{vaccine: vaccine, id: id})
	}
	if len(motives) == 0 {
		slog.InfoContext(ctx, "unable to find requested vaccines in motives",
			"center", center.Name,
			"motives", strings.Join(data.MotiveNames(), ", "))
		return nil, nil
	}

	for _, place := range data.Places {
		if len(place.PracticeIDs) == 0 {
			continue
		}
		if place.Name != "" {
			slog.InfoContext(ctx, "checking place", "place", place.Name)
		}
		for _, motive := range motives {
			agendaIDs := data.AgendaIDs(motive.id, place.PracticeIDs[0])
			if len(agendaIDs) == 0 {
				// do not filter by practice to give it a chance
				agendaIDs = data.AgendaIDs(motive.id, 0)
			}

			appointment, err := c.prebook(ctx, prebookParams{
				profileID: data.Profile.ID,
				motiveID:  motive.id,
				place:     place,
				agendaIDs: agendaIDs,
				vaccine:   strings.ToLower(motive.vaccine),
				single:    opts.singleShot(motive.vaccine, janssenPattern),
				opts:      opts,
			})
			if err != nil {
				return nil, err
			}
			if appointment != nil {
				return appointment, nil
			}
		}
	}

	return nil, nil
}

type prebookParams struct {
	profileID FlexibleID
	motiveID  int64
	place     Place
	agendaIDs []string
	vaccine   string
	single    bool
	opts      SearchOptions
}

func (c *Client) prebook(ctx context.Context, p prebookParams) (*Appointment, error) {
	ctx, span := tracer.Start(ctx, "client:prebook")
	defer span.End()
	span.SetAttributes(
		attribute.String("vaccine", p.vaccine),
		attribute.Int64("motive_id", p.motiveID),
	)

	practiceID := p.place.PracticeIDs[0]

	avail, err := c.availabilities(ctx, availabilityQuery{
		startDate:  formatDay(p.opts.StartDate),
		motiveID:   p.motiveID,
		agendaIDs:  p.agendaIDs,
		practiceID: practiceID,
	})
	if err != nil {
		return nil, err
	}

	if len(avail.Availabilities) == 0 {
		slog.InfoContext(ctx, "no availabilities", "vaccine", p.vaccine)
		return nil, nil
	}

	slot := findBestSlot(avail.Availabilities, p.opts.StartDate, p.opts.EndDate, p.opts.ExcludedWeekdays)
	if slot == nil {
		slog.InfoContext(ctx, "no qualifying slot", "vaccine", p.vaccine)
		return nil, nil
	}

	firstDate := slot.StartDate
	secondDate := slot.SecondDate
	if !p.single && secondDate == "" {
		slog.InfoContext(ctx, "only one slot for a multi-shot vaccination, skipping", "vaccine", p.vaccine)
		return nil, nil
	}

	firstSlot, err := parseSlotDate(firstDate)
	if err != nil {
		return nil, fmt.Errorf("parse first slot %q: %w", firstDate, err)
	}
	slog.InfoContext(ctx, "slot found", "vaccine", p.vaccine, "start", firstSlot.Format(time.RFC1123))

	reservation := map[string]any{
		"agenda_ids": joinIDs(p.agendaIDs),
		"appointment": map[string]any{
			"profile_id":       jsonID(p.profileID),
			"source_action":    "profile",
			"start_date":       firstDate,
			"visit_motive_ids": formatInt(p.motiveID),
		},
		"practice_ids": []int64{practiceID},
	}

	apptID, reserveErr, err := c.reserve(ctx, reservation)
	if err != nil {
		return nil, err
	}
	if reserveErr != "" {
		slog.InfoContext(ctx, "appointment not available anymore", "err", reserveErr)
		return nil, nil
	}

	appointment := &Appointment{
		ID:      apptID,
		Vaccine: p.vaccine,
		Name:    p.place.Name,
		Address: p.place.Address,
		City:    p.place.City,
		Zipcode: p.place.Zipcode,
		MapURL: fmt.Sprintf(
			"https://www.google.com/maps/search/?api=1&query=%f,%f",
			p.place.Latitude, p.place.Longitude,
		),
		Slots: []time.Time{firstSlot},
	}

	if !p.single {
		second, err := c.availabilities(ctx, availabilityQuery{
			startDate:  strings.SplitN(secondDate, "T", 2)[0],
			motiveID:   p.motiveID,
			agendaIDs:  p.agendaIDs,
			practiceID: practiceID,
			firstSlot:  firstDate,
		})
		if err != nil {
			return nil, err
		}

		// refresh against the newly returned slots to play safe
		secondSlot := findBestSlot(second.Availabilities, time.Time{}, time.Time{}, p.opts.ExcludedWeekdays)
		if secondSlot == nil {
			slog.InfoContext(ctx, "no second shot found", "vaccine", p.vaccine)
			return nil, nil
		}
		secondDate = secondSlot.StartDate

		secondTime, err := parseSlotDate(secondDate)
		if err != nil {
			return nil, fmt.Errorf("parse second slot %q: %w", secondDate, err)
		}
		slog.InfoContext(ctx, "second shot", "start", secondTime.Format(time.RFC1123))

		reservation["second_slot"] = secondDate
		apptID, reserveErr, err = c.reserve(ctx, reservation)
		if err != nil {
			return nil, err
		}
		if reserveErr != "" {
			slog.InfoContext(ctx, "appointment not available anymore", "err", reserveErr)
			return nil, nil
		}

		appointment.ID = apptID
		appointment.Slots = append(appointment.Slots, secondTime)
	}

	fields, err := c.attachPatient(ctx, appointment.ID)
	if err != nil {
		return nil, err
	}
	appointment.CustomFields = fields

	return appointment, nil
}

type availabilityQuery struct {
	startDate  string
	motiveID   int64
	agendaIDs  []string
	practiceID int64
	// set for second shot lookups
	firstSlot string
}

// availabilities pages through the availability endpoint following
// next_slot hints until an actual slot list comes back.
func (c *Client) availabilities(ctx context.Context, q availabilityQuery) (AvailabilitiesResponse, error) {
	endpoint := "/availabilities.json"
	if q.firstSlot != "" {
		endpoint = "/second_shot_availabilities.json"
	}

	var out AvailabilitiesResponse
	date := q.startDate
	for date != "" {
		query := url.Values{}
		query.Set("start_date", date)
		query.Set("visit_motive_ids", formatInt(q.motiveID))
		query.Set("agenda_ids", joinIDs(q.agendaIDs))
		if q.firstSlot != "" {
			query.Set("first_slot", q.firstSlot)
		}
		query.Set("insurance_sector", "public")
		query.Set("practice_ids", formatInt(q.practiceID))
		if q.firstSlot == "" {
			query.Set("destroy_temporary", "true")
		}
		query.Set("limit", "3")

		res, err := c.Http.R().
			SetContext(ctx).
			SetQueryParamsFromValues(query).
			Get(endpoint)
		if err != nil {
			return out, err
		}
		if res.IsError() {
			return out, fmt.Errorf("availabilities: %s", res.Status())
		}

		out = AvailabilitiesResponse{}
		if err := json.Unmarshal(res.Body(), &out); err != nil {
			return out, err
		}
		date = out.NextSlot
	}

	return out, nil
}

// findBestSlot picks the last slot of the first day that fits the
// window and weekday exclusions.
func findBestSlot(availabilities []Availability, start, end time.Time, excluded map[time.Weekday]bool) *Slot {
	for _, a := range availabilities {
		day, err := parseDay(a.Date)
		if err != nil {
			continue
		}
		if !start.IsZero() && day.Before(start) {
			continue
		}
		if !end.IsZero() && day.After(end) {
			continue
		}
		if excluded[day.Weekday()] {
			continue
		}
		if len(a.Slots) == 0 {
			continue
		}
		slot := a.Slots[len(a.Slots)-1]
		return &slot
	}
	return nil
}

func (c *Client) reserve(ctx context.Context, reservation map[string]any) (id string, reserveErr string, err error) {
	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(reservation).
		Post("/appointments.json")
	if err != nil {
		return "", "", err
	}
	if res.IsError() {
		return "", "", fmt.Errorf("appointments: %s", res.Status())
	}

	var body struct {
		ID    FlexibleID `json:"id"`
		Error *string    `json:"error"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		return "", "", err
	}
	if body.Error != nil {
		return "", *body.Error, nil
	}
	return body.ID.String(), "", nil
}

// attachPatient binds the selected patient to the reservation and
// returns the custom fields the final booking must fill in.
func (c *Client) attachPatient(ctx context.Context, appointmentID string) ([]CustomField, error) {
	ctx, span := tracer.Start(ctx, "client:attachPatient")
	defer span.End()

	res, err := c.Http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/appointments/%s/edit.json", appointmentID))
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("appointment edit: %s", res.Status())
	}

	slog.InfoContext(ctx, "booking for patient", "patient", c.Patient.DisplayName())

	res, err = c.Http.R().
		SetContext(ctx).
		SetQueryParam("master_patient_id", c.Patient.ID.String()).
		Get(fmt.Sprintf("/appointments/%s/edit.json", appointmentID))
	if err != nil {
		return nil, err
	}
	if res.IsError() {
		return nil, fmt.Errorf("appointment edit: %s", res.Status())
	}

	var body struct {
		Appointment struct {
			CustomFields []CustomField `json:"custom_fields"`
		} `json:"appointment"`
	}
	if err := json.Unmarshal(res.Body(), &body); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse edit response")
		return nil, err
	}

	var required []CustomField
	for _, field := range body.Appointment.CustomFields {
		if field.Required {
			required = append(required, field)
		}
	}
	return required, nil
}

// Book submits the final confirmation for a prebooked appointment.
func (c *Client) Book(ctx context.Context, appointment *Appointment, customValues map[string]string) (bool, error) {
	ctx, span := tracer.Start(ctx, "client:Book")
	defer span.End()
	span.SetAttributes(attribute.String("appointment_id", appointment.ID))

	body := map[string]any{
		"appointment": map[string]any{
			"custom_fields_values":  customValues,
			"new_patient":           true,
			"qualification_answers": map[string]any{},
			"referrer_id":           nil,
		},
		"bypass_mandatory_relative_contact_info": false,
		"email":          nil,
		"master_patient": c.Patient,
		"new_patient":    true,
		"patient":        nil,
		"phone_number":   nil,
	}

	res, err := c.Http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetBody(body).
		Put(fmt.Sprintf("/appointments/%s.json", appointment.ID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "booking request failed")
		return false, err
	}
	if res.IsError() {
		err := fmt.Errorf("booking: %s", res.Status())
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	var putBody struct {
		Redirection string `json:"redirection"`
	}
	if err := json.Unmarshal(res.Body(), &putBody); err == nil &&
		putBody.Redirection != "" && !strings.Contains(putBody.Redirection, "confirmed-appointment") {
		slog.InfoContext(ctx, "open to complete", "url", c.BaseURL()+putBody.Redirection)
	}

	res, err = c.Http.R().
		SetContext(ctx).
		Get(fmt.Sprintf("/appointments/%s.json", appointment.ID))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "confirmation check failed")
		return false, err
	}
	if res.IsError() {
		err := fmt.Errorf("confirmation: %s", res.Status())
		span.SetStatus(codes.Error, err.Error())
		return false, err
	}

	var confirmBody struct {
		Confirmed bool `json:"confirmed"`
	}
	if err := json.Unmarshal(res.Body(), &confirmBody); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to parse confirmation")
		return false, err
	}
	return confirmBody.Confirmed, nil
}

func centerIDFromURL(centerURL string) string {
	link, err := url.Parse(centerURL)
	path := centerURL
	if err == nil {
		path = link.Path
	}
	parts := strings.Split(strings.TrimSuffix(path, "/"), "/")
	return parts[len(parts)-1]
}

// jsonID renders a flexible id back the way it came in: numeric ids
// as numbers, everything else as strings.
func jsonID(id FlexibleID) any {
	if n, err := strconv.ParseInt(string(id), 10, 64); err == nil {
		return n
	}
	return string(id)
}
