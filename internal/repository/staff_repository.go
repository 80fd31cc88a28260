package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"

	"github.com/iliyamo/venue-booking/internal/model"
)

// StaffRepo reads and creates console accounts in the staff_users table.
type StaffRepo struct{ DB *sql.DB }

func NewStaffRepo(db *sql.DB) *StaffRepo { return &StaffRepo{DB: db} }

// CreateStaff inserts an account.  The password must already be hashed.
func (r *StaffRepo) CreateStaff(ctx context.Context, u *model.StaffUser) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Role == "" {
		u.Role = model.RoleStaff
	}
	_, err := r.DB.ExecContext(ctx,
		"INSERT INTO staff_users (id, email, password_hash, role, is_active) VALUES (?,?,?,?,?)",
		u.ID, u.Email, u.PasswordHash, u.Role, u.IsActive)
	if isDuplicate(err) {
		return ErrConflict
	}
	return err
}

// GetStaffByEmail fetches an account by normalized email.
func (r *StaffRepo) GetStaffByEmail(ctx context.Context, email string) (model.StaffUser, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.StaffUser
	err := r.DB.QueryRowContext(ctx,
		"SELECT id,email,password_hash,role,is_active,created_at FROM staff_users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.IsActive, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.StaffUser{}, ErrNotFound
	}
	return u, err
}

// isDuplicate reports a MySQL duplicate-key violation (1062).
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

// isMissingParent reports a foreign key violation on insert (1452).
func isMissingParent(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1452
}
