package repository

import "database/sql"

// Store bundles the MySQL repositories into the single value the booking,
// waitlist and capacity packages expect.
type Store struct {
	*EventRepo
	*BookingRepo
	*WaitlistRepo
	*StaffRepo
}

// NewStore returns a Store over db.
func NewStore(db *sql.DB) *Store {
	return &Store{
		EventRepo:    NewEventRepo(db),
		BookingRepo:  NewBookingRepo(db),
		WaitlistRepo: NewWaitlistRepo(db),
		StaffRepo:    NewStaffRepo(db),
	}
}
