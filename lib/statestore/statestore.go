// Package statestore persists login sessions and the booking log
// between runs in a local sqlite database.
package statestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/codes"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var Schema string

type Store struct {
	db *sql.DB
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// SaveSession stores the cookie jar of a logged in account so the
// next run can skip the login (and its auth code prompt).
func (s *Store) SaveSession(ctx context.Context, country, username string, cookies []*http.Cookie) error {
	ctx, span := tracer.Start(ctx, "store:SaveSession")
	defer span.End()

	encoded, err := json.Marshal(cookies)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to encode cookies")
		return err
	}

	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO sessions (country, username, cookies, updatedAt)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (country, username)
		DO UPDATE SET cookies = excluded.cookies, updatedAt = excluded.updatedAt`,
		country, username, string(encoded), time.Now().Unix(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upsert session")
		return err
	}
	return nil
}

// LoadSession returns the saved cookies of an account, or nil when no
// session is stored.
func (s *Store) LoadSession(ctx context.Context, country, username string) ([]*http.Cookie, error) {
	ctx, span := tracer.Start(ctx, "store:LoadSession")
	defer span.End()

	var encoded string
	err := s.db.QueryRowContext(
		ctx,
		`SELECT cookies FROM sessions WHERE country = ? AND username = ?`,
		country, username,
	).Scan(&encoded)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to load session")
		return nil, err
	}

	var cookies []*http.Cookie
	if err := json.Unmarshal([]byte(encoded), &cookies); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to decode cookies")
		return nil, err
	}
	return cookies, nil
}

// ClearSession drops a saved session, used when restored cookies turn
// out to be expired.
func (s *Store) ClearSession(ctx context.Context, country, username string) error {
	_, err := s.db.ExecContext(
		ctx,
		`DELETE FROM sessions WHERE country = ? AND username = ?`,
		country, username,
	)
	return err
}

type Booking struct {
	ID            int64
	AppointmentID string
	CenterName    string
	CenterAddress string
	Vaccine       string
	Patient       string
	FirstSlot     time.Time
	// zero for single shot vaccines
	SecondSlot time.Time
	BookedAt   time.Time
}

func (s *Store) RecordBooking(ctx context.Context, b Booking) error {
	ctx, span := tracer.Start(ctx, "store:RecordBooking")
	defer span.End()

	var secondSlot any
	if !b.SecondSlot.IsZero() {
		secondSlot = b.SecondSlot.Unix()
	}
	bookedAt := b.BookedAt
	if bookedAt.IsZero() {
		bookedAt = time.Now()
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO bookings
		(appointmentId, centerName, centerAddress, vaccine, patient, firstSlot, secondSlot, bookedAt)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		b.AppointmentID, b.CenterName, b.CenterAddress, b.Vaccine, b.Patient,
		b.FirstSlot.Unix(), secondSlot, bookedAt.Unix(),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to insert booking")
		return err
	}
	return nil
}

func (s *Store) ListBookings(ctx context.Context) ([]Booking, error) {
	ctx, span := tracer.Start(ctx, "store:ListBookings")
	defer span.End()

	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, appointmentId, centerName, centerAddress, vaccine, patient, firstSlot, secondSlot, bookedAt
		FROM bookings ORDER BY bookedAt DESC`,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query bookings")
		return nil, err
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		var firstSlot, bookedAt int64
		var secondSlot sql.NullInt64
		err := rows.Scan(
			&b.ID, &b.AppointmentID, &b.CenterName, &b.CenterAddress,
			&b.Vaccine, &b.Patient, &firstSlot, &secondSlot, &bookedAt,
		)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to scan booking")
			return nil, err
		}
		b.FirstSlot = time.Unix(firstSlot, 0)
		if secondSlot.Valid {
			b.SecondSlot = time.Unix(secondSlot.Int64, 0)
		}
		b.BookedAt = time.Unix(bookedAt, 0)
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
