package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/venue-booking/internal/model"
)

// EventRepo reads and updates rows of the events table.
type EventRepo struct {
	db *sql.DB
}

// NewEventRepo returns a new EventRepo bound to the given database.
func NewEventRepo(db *sql.DB) *EventRepo { return &EventRepo{db: db} }

const eventColumns = `id, event_date, doors_open, starts_at, ends_at, event_type, capacity, waitlist_active, is_active, created_at, updated_at`

func scanEvent(row interface{ Scan(...any) error }) (model.Event, error) {
	var ev model.Event
	err := row.Scan(&ev.ID, &ev.Date, &ev.DoorsOpen, &ev.StartsAt, &ev.EndsAt, &ev.Type,
		&ev.Capacity, &ev.WaitlistActive, &ev.IsActive, &ev.CreatedAt, &ev.UpdatedAt)
	return ev, err
}

// CreateEvent inserts a new event.  The caller supplies the ID.
func (r *EventRepo) CreateEvent(ctx context.Context, ev *model.Event) error {
	const q = `INSERT INTO events (id, event_date, doors_open, starts_at, ends_at, event_type, capacity, waitlist_active, is_active) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := r.db.ExecContext(ctx, q, ev.ID, ev.Date, ev.DoorsOpen, ev.StartsAt, ev.EndsAt,
		ev.Type, ev.Capacity, ev.WaitlistActive, ev.IsActive)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// GetEvent returns a single event or ErrNotFound.
func (r *EventRepo) GetEvent(ctx context.Context, id string) (model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events WHERE id = ?`
	ev, err := scanEvent(r.db.QueryRowContext(ctx, q, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	return ev, err
}

// ListEvents returns every event ordered by date.
func (r *EventRepo) ListEvents(ctx context.Context) ([]model.Event, error) {
	q := `SELECT ` + eventColumns + ` FROM events ORDER BY event_date, id`
	rows, err := r.db.QueryContext(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// SetWaitlistActive flips the staff-controlled waitlist flag of an event.
func (r *EventRepo) SetWaitlistActive(ctx context.Context, id string, active bool) error {
	const q = `UPDATE events SET waitlist_active = ?, updated_at = UTC_TIMESTAMP() WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q, active, id)
	if err != nil {
		return err
	}
	if err := requireRow(res); !errors.Is(err, ErrNotFound) {
		return err
	}
	// zero rows also means "value unchanged within the same second"
	_, err = r.GetEvent(ctx, id)
	return err
}

// requireRow maps an UPDATE or DELETE that matched nothing to ErrNotFound.
func requireRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
