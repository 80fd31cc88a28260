// Package repository defines error types that are reused across multiple
// repositories and the MySQL implementations of the storage contracts
// consumed by the booking, waitlist and capacity packages.  ErrNotFound
// signals a missing row, ErrConflict a write that collides with existing
// state (for example a duplicate key), and ErrForbidden a caller that may
// not touch the resource.
package repository

import "errors"

// ErrNotFound is returned when the requested row does not exist.
// Handlers should translate this into an HTTP 404 response.
var ErrNotFound = errors.New("not found")

// ErrForbidden is returned when the caller attempts an operation
// on a resource they may not access. Handlers should translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when a write cannot be performed because of
// conflicting state, such as inserting a duplicate key. Handlers should
// translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")
