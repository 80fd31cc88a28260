package model

import "time"

// WaitlistStatus is the lifecycle state of a waitlist entry.
type WaitlistStatus string

const (
	WaitlistPending   WaitlistStatus = "pending"
	WaitlistContacted WaitlistStatus = "contacted"
	WaitlistConverted WaitlistStatus = "converted"
	WaitlistCancelled WaitlistStatus = "cancelled"
	WaitlistExpired   WaitlistStatus = "expired"
)

// Terminal reports whether no further transition is allowed.
func (s WaitlistStatus) Terminal() bool {
	return s == WaitlistConverted || s == WaitlistCancelled
}

// WaitlistEntry is a queued request for a seat at a full event.  Entries are
// served oldest first by CreatedAt.
//
// Fields:
//
//	ID                       – primary key identifier.
//	EventID                  – event the party is waiting for.
//	CustomerName             – contact name.
//	CustomerEmail            – contact email.
//	CustomerPhone            – optional phone number.
//	NumberOfPersons          – requested party size.
//	Status                   – lifecycle state.
//	Notes                    – free text from the customer or staff.
//	CreatedAt                – FIFO ordering key.
//	UpdatedAt                – last update timestamp.
//	ContactedAt              – when the entry was marked contacted.
//	ContactedBy              – who (or which process) marked it.
//	ConvertedToBookingID     – booking created from this entry.
type WaitlistEntry struct {
	ID                   string         `json:"id"`
	EventID              string         `json:"event_id"`
	CustomerName         string         `json:"customer_name"`
	CustomerEmail        string         `json:"customer_email"`
	CustomerPhone        string         `json:"customer_phone,omitempty"`
	NumberOfPersons      int            `json:"number_of_persons"`
	Status               WaitlistStatus `json:"status"`
	Notes                string         `json:"notes,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
	ContactedAt          *time.Time     `json:"contacted_at,omitempty"`
	ContactedBy          string         `json:"contacted_by,omitempty"`
	ConvertedToBookingID string         `json:"converted_to_booking_id,omitempty"`
}

// WaitlistPatch carries the fields to change on a waitlist entry.  Nil
// fields are left untouched.
type WaitlistPatch struct {
	Status               *WaitlistStatus
	ContactedAt          *time.Time
	ContactedBy          *string
	ConvertedToBookingID *string
	Notes                *string
}

// WaitlistRequest is what a customer supplies to join a waitlist.
type WaitlistRequest struct {
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	NumberOfPersons int    `json:"number_of_persons"`
	Notes           string `json:"notes,omitempty"`
}
