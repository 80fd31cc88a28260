package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/iliyamo/venue-booking/internal/model"
)

// WaitlistRepo persists waitlist entries.
type WaitlistRepo struct {
	db *sql.DB
}

// NewWaitlistRepo returns a new WaitlistRepo bound to the given database.
func NewWaitlistRepo(db *sql.DB) *WaitlistRepo { return &WaitlistRepo{db: db} }

const waitlistColumns = `id, event_id, customer_name, customer_email, customer_phone, number_of_persons, status, notes, contacted_at, contacted_by, converted_to_booking_id, created_at, updated_at`

func scanWaitlistEntry(row interface{ Scan(...any) error }) (model.WaitlistEntry, error) {
	var (
		e         model.WaitlistEntry
		notes     sql.NullString
		contacted sql.NullTime
		by        sql.NullString
		converted sql.NullString
	)
	err := row.Scan(&e.ID, &e.EventID, &e.CustomerName, &e.CustomerEmail, &e.CustomerPhone,
		&e.NumberOfPersons, &e.Status, &notes, &contacted, &by, &converted, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return e, err
	}
	e.Notes = notes.String
	e.ContactedBy = by.String
	e.ConvertedToBookingID = converted.String
	if contacted.Valid {
		t := contacted.Time
		e.ContactedAt = &t
	}
	return e, nil
}

// CreateWaitlistEntry inserts an entry.  The caller supplies ID and timestamps.
func (r *WaitlistRepo) CreateWaitlistEntry(ctx context.Context, e *model.WaitlistEntry) error {
	const q = `INSERT INTO waitlist_entries (id, event_id, customer_name, customer_email, customer_phone, number_of_persons, status, notes, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, e.ID, e.EventID, e.CustomerName, e.CustomerEmail, e.CustomerPhone,
		e.NumberOfPersons, e.Status, nullString(e.Notes), e.CreatedAt, e.UpdatedAt)
	switch {
	case isDuplicate(err):
		return ErrConflict
	case isMissingParent(err):
		return ErrNotFound
	}
	return err
}

// GetWaitlistEntry returns a single entry or ErrNotFound.
func (r *WaitlistRepo) GetWaitlistEntry(ctx context.Context, id string) (model.WaitlistEntry, error) {
	q := `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE id = ?`
	e, err := scanWaitlistEntry(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.WaitlistEntry{}, ErrNotFound
	}
	return e, err
}

// ListWaitlistByEvent returns the entries of an event oldest first.
func (r *WaitlistRepo) ListWaitlistByEvent(ctx context.Context, eventID string) ([]model.WaitlistEntry, error) {
	q := `SELECT ` + waitlistColumns + ` FROM waitlist_entries WHERE event_id = ? ORDER BY created_at, id`
	rows, err := r.db.QueryContext(ctx, q, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.WaitlistEntry
	for rows.Next() {
		e, err := scanWaitlistEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateWaitlistEntry applies the non-nil fields of the patch.
func (r *WaitlistRepo) UpdateWaitlistEntry(ctx context.Context, id string, p model.WaitlistPatch) error {
	sets := []string{"updated_at = UTC_TIMESTAMP(6)"}
	args := []any{}
	if p.Status != nil {
		sets = append(sets, "status = ?")
		args = append(args, *p.Status)
	}
	if p.ContactedAt != nil {
		sets = append(sets, "contacted_at = ?")
		args = append(args, *p.ContactedAt)
	}
	if p.ContactedBy != nil {
		sets = append(sets, "contacted_by = ?")
		args = append(args, *p.ContactedBy)
	}
	if p.ConvertedToBookingID != nil {
		sets = append(sets, "converted_to_booking_id = ?")
		args = append(args, *p.ConvertedToBookingID)
	}
	if p.Notes != nil {
		sets = append(sets, "notes = ?")
		args = append(args, nullString(*p.Notes))
	}
	args = append(args, id)
	q := `UPDATE waitlist_entries SET ` + strings.Join(sets, ", ") + ` WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// DeleteWaitlistEntry removes an entry.
func (r *WaitlistRepo) DeleteWaitlistEntry(ctx context.Context, id string) error {
	const q = `DELETE FROM waitlist_entries WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
