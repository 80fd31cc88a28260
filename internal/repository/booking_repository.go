package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/venue-booking/internal/model"
)

// BookingRepo provides CRUD operations for bookings.  The full wizard form
// is kept alongside the denormalized columns in form_json so staff can see
// exactly what the customer submitted.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo returns a new BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingColumns = `id, event_id, status, number_of_persons, requested_over_capacity, contact_name, email, phone, arrangement, total_price_cents, form_json, created_at, updated_at`

func scanBooking(row interface{ Scan(...any) error }) (model.Booking, error) {
	var (
		b    model.Booking
		form []byte
	)
	err := row.Scan(&b.ID, &b.EventID, &b.Status, &b.NumberOfPersons, &b.RequestedOverCapacity,
		&b.ContactName, &b.Email, &b.Phone, &b.Arrangement, &b.TotalPriceCents, &form,
		&b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return b, err
	}
	if len(form) > 0 {
		if err := json.Unmarshal(form, &b.Form); err != nil {
			return b, fmt.Errorf("decode form of booking %s: %w", b.ID, err)
		}
	}
	return b, nil
}

// CreateBooking inserts a booking.  The caller supplies ID and timestamps.
func (r *BookingRepo) CreateBooking(ctx context.Context, b *model.Booking) error {
	form, err := json.Marshal(b.Form)
	if err != nil {
		return err
	}
	q := `INSERT INTO bookings (` + bookingColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err = r.db.ExecContext(ctx, q, b.ID, b.EventID, b.Status, b.NumberOfPersons, b.RequestedOverCapacity,
		b.ContactName, b.Email, b.Phone, b.Arrangement, b.TotalPriceCents, form, b.CreatedAt, b.UpdatedAt)
	switch {
	case isDuplicate(err):
		return ErrConflict
	case isMissingParent(err):
		return ErrNotFound
	}
	return err
}

// GetBooking returns a single booking or ErrNotFound.
func (r *BookingRepo) GetBooking(ctx context.Context, id string) (model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

// ListBookingsByEvent returns every booking of an event in creation order,
// whatever its status.
func (r *BookingRepo) ListBookingsByEvent(ctx context.Context, eventID string) ([]model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings WHERE event_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// FindActiveBookingByEmail returns the booking the address already holds
// for the event, or nil when there is none.  Cancelled and rejected
// bookings do not count.
func (r *BookingRepo) FindActiveBookingByEmail(ctx context.Context, eventID, email string) (*model.Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings
	      WHERE event_id = ? AND email = ? AND status NOT IN ('cancelled','rejected')
	      ORDER BY created_at LIMIT 1`
	b, err := scanBooking(r.db.QueryRowContext(ctx, q, eventID, strings.ToLower(strings.TrimSpace(email))))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// UpdateBookingStatus sets the status column of a booking.
func (r *BookingRepo) UpdateBookingStatus(ctx context.Context, id string, status model.BookingStatus) error {
	const q = `UPDATE bookings SET status = ?, updated_at = UTC_TIMESTAMP(6) WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteBooking removes a booking row.
func (r *BookingRepo) DeleteBooking(ctx context.Context, id string) error {
	const q = `DELETE FROM bookings WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}
