package bus

// Topics exchanged between the booking, waitlist and notification layers.
const (
	TopicCapacityFreed          Topic = "capacity_freed"
	TopicReservationCreated     Topic = "reservation_created"
	TopicReservationConfirmed   Topic = "reservation_confirmed"
	TopicReservationCancelled   Topic = "reservation_cancelled"
	TopicWaitlistSpotsAvailable Topic = "waitlist_spots_available"
	TopicWaitlistEntryCreated   Topic = "waitlist_entry_created"
	TopicWaitlistEntryConverted Topic = "waitlist_entry_converted"
)

// FreedReason explains why capacity returned to an event.
type FreedReason string

const (
	ReasonCancelled FreedReason = "cancelled"
	ReasonDeleted   FreedReason = "deleted"
	ReasonRejected  FreedReason = "rejected"
)

// CapacityFreed is published when a booking stops occupying seats.
type CapacityFreed struct {
	EventID       string      `json:"event_id"`
	FreedCapacity int         `json:"freed_capacity"`
	Reason        FreedReason `json:"reason"`
	BookingID     string      `json:"booking_id"`
}

// ReservationCreated is published after a customer submission is stored.
type ReservationCreated struct {
	BookingID             string `json:"booking_id"`
	EventID               string `json:"event_id"`
	NumberOfPersons       int    `json:"number_of_persons"`
	RequestedOverCapacity bool   `json:"requested_over_capacity"`
}

// ReservationConfirmed is published when staff confirm a booking.
type ReservationConfirmed struct {
	BookingID       string `json:"booking_id"`
	EventID         string `json:"event_id"`
	NumberOfPersons int    `json:"number_of_persons"`
	Email           string `json:"email"`
	ContactName     string `json:"contact_name"`
}

// ReservationCancelled is published when a booking is cancelled.
type ReservationCancelled struct {
	BookingID       string `json:"booking_id"`
	EventID         string `json:"event_id"`
	NumberOfPersons int    `json:"number_of_persons"`
}

// PromotedEntry identifies a waitlist party selected for contact.
type PromotedEntry struct {
	EntryID         string `json:"entry_id"`
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone,omitempty"`
	NumberOfPersons int    `json:"number_of_persons"`
}

// WaitlistSpotsAvailable is published by the allocator after it selected
// parties that fit freed capacity.  Contacting them is left to subscribers.
type WaitlistSpotsAvailable struct {
	EventID           string          `json:"event_id"`
	AvailableCapacity int             `json:"available_capacity"`
	Entries           []PromotedEntry `json:"entries"`
}

// WaitlistEntryCreated is published when a customer joins a waitlist.
type WaitlistEntryCreated struct {
	EntryID         string `json:"entry_id"`
	EventID         string `json:"event_id"`
	NumberOfPersons int    `json:"number_of_persons"`
}

// WaitlistEntryConverted is published when staff turn an entry into a booking.
type WaitlistEntryConverted struct {
	EntryID   string `json:"entry_id"`
	EventID   string `json:"event_id"`
	BookingID string `json:"booking_id"`
}
