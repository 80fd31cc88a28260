package model

import "time"

// BookingStatus is the lifecycle state of a customer booking.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCheckedIn BookingStatus = "checked-in"
	BookingCancelled BookingStatus = "cancelled"
	BookingRejected  BookingStatus = "rejected"
	BookingOption    BookingStatus = "option"
)

// Commits reports whether a booking in this status occupies capacity.
func (s BookingStatus) Commits() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCheckedIn:
		return true
	}
	return false
}

// Valid reports whether s is a known status.
func (s BookingStatus) Valid() bool {
	switch s {
	case BookingPending, BookingConfirmed, BookingCheckedIn, BookingCancelled, BookingRejected, BookingOption:
		return true
	}
	return false
}

// Booking records a customer's submitted reservation for an event.
//
// Fields:
//
//	ID                    – primary key identifier.
//	EventID               – event being booked.
//	Status                – lifecycle state.
//	NumberOfPersons       – party size.
//	RequestedOverCapacity – set when the party size exceeded the remaining
//	                        capacity at submission; staff review it.
//	ContactName           – display name of the contact person.
//	Email                 – contact email, used for duplicate detection.
//	Phone                 – contact phone.
//	Arrangement           – selected package.
//	TotalPriceCents       – price computed at submission.
//	Form                  – full wizard form as submitted.
//	CreatedAt             – creation timestamp.
//	UpdatedAt             – last update timestamp.
type Booking struct {
	ID                    string        `json:"id"`
	EventID               string        `json:"event_id"`
	Status                BookingStatus `json:"status"`
	NumberOfPersons       int           `json:"number_of_persons"`
	RequestedOverCapacity bool          `json:"requested_over_capacity"`
	ContactName           string        `json:"contact_name"`
	Email                 string        `json:"email"`
	Phone                 string        `json:"phone"`
	Arrangement           Arrangement   `json:"arrangement"`
	TotalPriceCents       int64         `json:"total_price_cents"`
	Form                  FormData      `json:"form"`
	CreatedAt             time.Time     `json:"created_at"`
	UpdatedAt             time.Time     `json:"updated_at"`
}
