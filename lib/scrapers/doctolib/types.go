package doctolib

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// FlexibleID is an identifier that the API serves either as a JSON
// string or as a number depending on the country and endpoint.
type FlexibleID string

func (f *FlexibleID) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexibleID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = FlexibleID(n.String())
	return nil
}

func (f FlexibleID) String() string { return string(f) }

// Patient is one entry of the account's master patient list. The raw
// JSON object is retained because the booking endpoint expects the
// patient to be echoed back verbatim.
type Patient struct {
	ID        FlexibleID `json:"id"`
	FirstName string     `json:"first_name"`
	LastName  string     `json:"last_name"`

	raw json.RawMessage
}

func (p *Patient) UnmarshalJSON(data []byte) error {
	type patient Patient
	var inner patient
	if err := json.Unmarshal(data, &inner); err != nil {
		return err
	}
	*p = Patient(inner)
	p.raw = append(json.RawMessage(nil), data...)
	return nil
}

func (p Patient) MarshalJSON() ([]byte, error) {
	if len(p.raw) > 0 {
		return p.raw, nil
	}
	type patient Patient
	return json.Marshal(patient(p))
}

func (p Patient) DisplayName() string {
	return fmt.Sprintf("%s %s", p.FirstName, p.LastName)
}

// Center is the "search_result" object of /search_results/<id>.json.
type Center struct {
	URL           string `json:"url"`
	Name          string `json:"name_with_title"`
	City          string `json:"city"`
	Zipcode       string `json:"zipcode"`
	Address       string `json:"address"`
	VisitMotiveID int64  `json:"visit_motive_id"`
}

type VisitMotive struct {
	ID               int64  `json:"id"`
	Name             string `json:"name"`
	FirstShotMotive  bool   `json:"first_shot_motive"`
	AllowNewPatients bool   `json:"allow_new_patients"`
}

type Agenda struct {
	ID              int64   `json:"id"`
	BookingDisabled bool    `json:"booking_disabled"`
	PracticeID      int64   `json:"practice_id"`
	VisitMotiveIDs  []int64 `json:"visit_motive_ids"`
}

type Place struct {
	Name        string  `json:"name"`
	Address     string  `json:"address"`
	City        string  `json:"city"`
	Zipcode     string  `json:"zipcode"`
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	PracticeIDs []int64 `json:"practice_ids"`
}

// BookingData is the "data" object of /booking/<center>.json.
type BookingData struct {
	Profile struct {
		ID FlexibleID `json:"id"`
	} `json:"profile"`
	VisitMotives []VisitMotive `json:"visit_motives"`
	Agendas      []Agenda      `json:"agendas"`
	Places       []Place       `json:"places"`
}

// Slot is polymorphic on the wire: a plain ISO datetime string
// (single-shot motives), an object with a start_date and per-dose
// steps, or an array of datetime strings.
type Slot struct {
	StartDate  string
	SecondDate string
}

func (s *Slot) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("empty slot")
	}

	switch data[0] {
	case '"':
		return json.Unmarshal(data, &s.StartDate)
	case '[':
		var dates []string
		if err := json.Unmarshal(data, &dates); err != nil {
			return err
		}
		if len(dates) > 0 {
			s.StartDate = dates[0]
		}
		if len(dates) > 1 {
			s.SecondDate = dates[1]
		}
		return nil
	case '{':
		var obj struct {
			StartDate string `json:"start_date"`
			Steps     []struct {
				StartDate string `json:"start_date"`
			} `json:"steps"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return err
		}
		s.StartDate = obj.StartDate
		if len(obj.Steps) > 1 {
			s.SecondDate = obj.Steps[1].StartDate
		}
		return nil
	}
	return fmt.Errorf("unexpected slot encoding: %s", data)
}

type Availability struct {
	Date  string `json:"date"`
	Slots []Slot `json:"slots"`
}

type AvailabilitiesResponse struct {
	Availabilities []Availability `json:"availabilities"`
	NextSlot       string         `json:"next_slot"`
}

// CustomFieldOption is served as a [key, value] pair.
type CustomFieldOption struct {
	Key   string
	Value string
}

func (o *CustomFieldOption) UnmarshalJSON(data []byte) error {
	var pair []string
	if err := json.Unmarshal(data, &pair); err != nil {
		return err
	}
	if len(pair) > 0 {
		o.Key = pair[0]
	}
	if len(pair) > 1 {
		o.Value = pair[1]
	}
	return nil
}

type CustomField struct {
	ID          string              `json:"id"`
	Label       string              `json:"label"`
	Placeholder string              `json:"placeholder"`
	Required    bool                `json:"required"`
	Options     []CustomFieldOption `json:"options"`
}

// Appointment is a prebooked slot pair waiting for final confirmation.
type Appointment struct {
	ID           string
	Slots        []time.Time
	CustomFields []CustomField
	Vaccine      string
	Name         string
	Address      string
	City         string
	Zipcode      string
	MapURL       string
}

func parseSlotDate(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}

func parseDay(s string) (time.Time, error) {
	// availability dates sometimes carry a timezone suffix
	if len(s) > 10 {
		return time.Parse(time.RFC3339, s)
	}
	return time.Parse("2006-01-02", s)
}

func formatDay(t time.Time) string {
	return t.Format("2006-01-02")
}

func joinIDs(ids []string) string {
	var out bytes.Buffer
	for i, id := range ids {
		if i > 0 {
			out.WriteByte('-')
		}
		out.WriteString(id)
	}
	return out.String()
}

func formatInt(n int64) string {
	return strconv.FormatInt(n, 10)
}
