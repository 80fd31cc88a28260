package model

import "time"

// EventType classifies an event for pricing and calendar display.
type EventType string

const (
	EventTypeRegular     EventType = "REGULAR"
	EventTypeMatinee     EventType = "MATINEE"
	EventTypeCareProgram EventType = "CARE_PROGRAM"
	EventTypeRequestOnly EventType = "REQUEST"
)

// Event represents a bookable slot at the venue.  Capacity counts persons,
// not seats, and is consumed by bookings in a committed status.
//
// Fields:
//
//	ID             – primary key identifier.
//	Date           – calendar date of the event (UTC midnight).
//	DoorsOpen      – door time in HH:MM.
//	StartsAt       – start time in HH:MM.
//	EndsAt         – end time in HH:MM.
//	Type           – classification used by pricing.
//	Capacity       – total number of persons that may attend.
//	WaitlistActive – staff-forced waitlist mode.  The effective waitlist
//	                 state also becomes true once committed ≥ capacity;
//	                 see capacity.Snapshot.
//	IsActive       – whether the event is visible to customers.
//	CreatedAt      – creation timestamp.
//	UpdatedAt      – last update timestamp.
type Event struct {
	ID             string    `json:"id"`              // events.id
	Date           time.Time `json:"date"`            // events.event_date
	DoorsOpen      string    `json:"doors_open"`      // events.doors_open
	StartsAt       string    `json:"starts_at"`       // events.starts_at
	EndsAt         string    `json:"ends_at"`         // events.ends_at
	Type           EventType `json:"type"`            // events.event_type
	Capacity       int       `json:"capacity"`        // events.capacity
	WaitlistActive bool      `json:"waitlist_active"` // events.waitlist_active
	IsActive       bool      `json:"is_active"`       // events.is_active
	CreatedAt      time.Time `json:"created_at"`      // events.created_at
	UpdatedAt      time.Time `json:"updated_at"`      // events.updated_at
}
