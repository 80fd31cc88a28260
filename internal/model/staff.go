package model

import "time"

// RoleStaff is the only role allowed on the management console.
const RoleStaff = "STAFF"

// StaffUser represents a console account as stored in the `staff_users`
// table.  Only the bcrypt hash of the password is kept.
//
// Fields:
//
//	ID           – primary key identifier.
//	Email        – unique login email.
//	PasswordHash – bcrypt hashed password.
//	Role         – role name (STAFF).
//	IsActive     – whether the account may log in.
//	CreatedAt    – timestamp of creation.
type StaffUser struct {
	ID           string    // staff_users.id
	Email        string    // staff_users.email
	PasswordHash string    // staff_users.password_hash
	Role         string    // staff_users.role
	IsActive     bool      // staff_users.is_active
	CreatedAt    time.Time // staff_users.created_at
}
