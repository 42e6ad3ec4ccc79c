package doctolib

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func loadBookingData(t testing.TB) *BookingData {
	raw, err := os.ReadFile("testdata/booking_data.json")
	require.NoError(t, err)

	var body struct {
		Data BookingData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	return &body.Data
}

func TestFindMotiveIgnoresSecondShot(t *testing.T) {
	data := loadBookingData(t)

	id, ok := data.FindMotive("Pfizer", false)
	require.True(t, ok)
	require.Equal(t, int64(2746983), id)

	id, ok = data.FindMotive("Janssen", true)
	require.True(t, ok)
	require.Equal(t, int64(2920448), id)
}

func TestFindMotiveSkipsClosedMotives(t *testing.T) {
	data := loadBookingData(t)

	// the only Moderna motive does not allow new patients
	_, ok := data.FindMotive("Moderna", false)
	require.False(t, ok)
}

func TestAgendaIDs(t *testing.T) {
	data := loadBookingData(t)

	// disabled agendas are skipped even when they carry the motive
	require.Equal(t, []string{"456789"}, data.AgendaIDs(2746983, 234567))
	require.Nil(t, data.AgendaIDs(2746984, 234567))

	// practiceID <= 0 lifts the practice filter
	require.Equal(t, []string{"456789", "456791"}, data.AgendaIDs(2746983, 0))
}

func TestFindBestSlot(t *testing.T) {
	availabilities := []Availability{
		{Date: "2021-06-09", Slots: nil},
		{Date: "2021-06-10", Slots: []Slot{
			{StartDate: "2021-06-10T07:55:00.000+02:00"},
			{StartDate: "2021-06-10T08:40:00.000+02:00", SecondDate: "2021-07-20T08:40:00.000+02:00"},
		}},
		{Date: "2021-06-12", Slots: []Slot{
			{StartDate: "2021-06-12T09:00:00.000+02:00"},
		}},
	}

	day := func(y int, m time.Month, d int) time.Time {
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}

	testCases := []struct {
		name     string
		start    time.Time
		end      time.Time
		excluded map[time.Weekday]bool
		expected string
	}{
		{
			name:     "last slot of the first day",
			start:    day(2021, 6, 1),
			end:      day(2021, 6, 14),
			expected: "2021-06-10T08:40:00.000+02:00",
		},
		{
			name:     "window excludes first day",
			start:    day(2021, 6, 11),
			end:      day(2021, 6, 14),
			expected: "2021-06-12T09:00:00.000+02:00",
		},
		{
			name:  "window before any slot",
			start: day(2021, 5, 1),
			end:   day(2021, 5, 31),
		},
		{
			// 2021-06-10 is a thursday, 2021-06-12 a saturday
			name:     "weekday exclusions",
			start:    day(2021, 6, 1),
			end:      day(2021, 6, 14),
			excluded: map[time.Weekday]bool{time.Thursday: true},
			expected: "2021-06-12T09:00:00.000+02:00",
		},
		{
			name:     "no window",
			expected: "2021-06-10T08:40:00.000+02:00",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			slot := findBestSlot(availabilities, tc.start, tc.end, tc.excluded)
			if tc.expected == "" {
				require.Nil(t, slot)
				return
			}
			require.NotNil(t, slot)
			require.Equal(t, tc.expected, slot.StartDate)
		})
	}
}

// bookingFunnel wires up every endpoint of the search-to-confirmation
// sequence against fixture data.
func bookingFunnel(t testing.TB, mux *http.ServeMux, srv *httptest.Server) {
	bookingData, err := os.ReadFile("testdata/booking_data.json")
	require.NoError(t, err)
	availabilities, err := os.ReadFile("testdata/availabilities.json")
	require.NoError(t, err)

	mux.HandleFunc("/impfung-covid-19-corona/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<div class="js-dl-search-results-calendar" data-props="{&quot;searchResultId&quot;:1234567}"></div>`)
	})
	mux.HandleFunc("/search_results/1234567.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"search_result": map[string]any{
				"url":             srv.URL + "/allgemeinmedizin/koeln/dr-dre",
				"name_with_title": "Dr. Dre",
				"city":            "Köln",
				"zipcode":         "50667",
				"address":         "Musterstraße 1",
			},
		})
	})
	mux.HandleFunc("/allgemeinmedizin/koeln/dr-dre", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html></html>")
	})
	mux.HandleFunc("/booking/dr-dre.json", func(w http.ResponseWriter, r *http.Request) {
		w.Write(bookingData)
	})
	mux.HandleFunc("/availabilities.json", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "true", r.URL.Query().Get("destroy_temporary"))
		require.Equal(t, "public", r.URL.Query().Get("insurance_sector"))
		w.Write(availabilities)
	})
	mux.HandleFunc("/second_shot_availabilities.json", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "2021-06-10T08:40:00.000+02:00", r.URL.Query().Get("first_slot"))
		require.Equal(t, "2021-07-20", r.URL.Query().Get("start_date"))
		w.Write(availabilities)
	})
	mux.HandleFunc("/appointments.json", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		json.NewEncoder(w).Encode(map[string]any{"id": "appointment-id"})
	})
	mux.HandleFunc("/appointments/appointment-id/edit.json", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"appointment": map[string]any{
				"custom_fields": []map[string]any{
					{
						"id":       "cov19_vaccination",
						"label":    "Haben Sie bereits eine COVID-19 Impfung erhalten?",
						"required": true,
					},
					{
						"id":       "remarks",
						"label":    "Anmerkungen",
						"required": false,
					},
				},
			},
		})
	})
	mux.HandleFunc("/appointments/appointment-id.json", func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			var body struct {
				MasterPatient Patient `json:"master_patient"`
			}
			require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
			require.Equal(t, "patient-id", body.MasterPatient.ID.String())
			fmt.Fprint(w, "{}")
		case http.MethodGet:
			json.NewEncoder(w).Encode(map[string]any{"confirmed": true})
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	})
}

func TestFindAndBookSingleShot(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	bookingFunnel(t, mux, srv)

	client := newTestClient(t, Germany, srv.URL)
	client.Patient = Patient{ID: "patient-id", FirstName: "Roger", LastName: "Phillibert"}
	ctx := context.Background()

	centers, err := client.FindCenters(ctx, []string{NormalizeCity("Köln")}, nil)
	require.NoError(t, err)
	require.Len(t, centers, 1)

	appointment, err := client.FindAppointment(ctx, centers[0], SearchOptions{
		Vaccines:  []string{"Janssen"},
		StartDate: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2021, 6, 14, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotNil(t, appointment)
	require.Equal(t, "appointment-id", appointment.ID)
	require.Len(t, appointment.Slots, 1)
	require.Equal(t, "2021-06-10T08:40:00+02:00", appointment.Slots[0].Format(time.RFC3339))
	require.Len(t, appointment.CustomFields, 1)
	require.Equal(t, "cov19_vaccination", appointment.CustomFields[0].ID)

	confirmed, err := client.Book(ctx, appointment, map[string]string{"cov19_vaccination": "Non"})
	require.NoError(t, err)
	require.True(t, confirmed)
}

func TestFindAndBookTwoShots(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	bookingFunnel(t, mux, srv)

	client := newTestClient(t, Germany, srv.URL)
	client.Patient = Patient{ID: "patient-id", FirstName: "Roger", LastName: "Phillibert"}
	ctx := context.Background()

	centers, err := client.FindCenters(ctx, []string{NormalizeCity("Köln")}, nil)
	require.NoError(t, err)
	require.Len(t, centers, 1)

	appointment, err := client.FindAppointment(ctx, centers[0], SearchOptions{
		Vaccines:  []string{"Pfizer"},
		StartDate: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2021, 6, 14, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.NotNil(t, appointment)
	require.Len(t, appointment.Slots, 2)
	require.Equal(t, "2021-06-10T08:40:00+02:00", appointment.Slots[0].Format(time.RFC3339))

	confirmed, err := client.Book(ctx, appointment, map[string]string{"cov19_vaccination": "Non"})
	require.NoError(t, err)
	require.True(t, confirmed)
}

func TestFindAppointmentSkipsGoneCenter(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/allgemeinmedizin/koeln/dr-dre", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	})

	client := newTestClient(t, Germany, srv.URL)
	appointment, err := client.FindAppointment(context.Background(), Center{
		URL:  srv.URL + "/allgemeinmedizin/koeln/dr-dre",
		Name: "Dr. Dre",
	}, SearchOptions{Vaccines: []string{"Janssen"}})
	require.NoError(t, err)
	require.Nil(t, appointment)
}

func TestFindAppointmentSlotTaken(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()
	bookingFunnel(t, mux, srv)

	// shadow the reservation endpoint with a decline
	srv2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/appointments.json" {
			json.NewEncoder(w).Encode(map[string]any{"error": "slot not available anymore"})
			return
		}
		mux.ServeHTTP(w, r)
	}))
	defer srv2.Close()

	client := newTestClient(t, Germany, srv2.URL)
	client.Patient = Patient{ID: "patient-id", FirstName: "Roger", LastName: "Phillibert"}

	appointment, err := client.FindAppointment(context.Background(), Center{
		URL:  srv2.URL + "/allgemeinmedizin/koeln/dr-dre",
		Name: "Dr. Dre",
	}, SearchOptions{
		Vaccines:  []string{"Janssen"},
		StartDate: time.Date(2021, 6, 1, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2021, 6, 14, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)
	require.Nil(t, appointment)
}
