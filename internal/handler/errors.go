package handler

import (
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/repository"
	"github.com/iliyamo/venue-booking/internal/waitlist"
	"github.com/iliyamo/venue-booking/internal/wizard"
)

// statusFor maps domain errors to HTTP status codes.  Specific errors are
// checked before the generic submission failure that may wrap them.
func statusFor(err error) int {
	switch {
	case errors.Is(err, repository.ErrNotFound), errors.Is(err, wizard.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, wizard.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, wizard.ErrNoEventSelected),
		errors.Is(err, wizard.ErrTermsNotAccepted),
		errors.Is(err, booking.ErrInvalidPartySize),
		errors.Is(err, booking.ErrEmailRequired),
		errors.Is(err, booking.ErrInvalidStatus),
		errors.Is(err, waitlist.ErrInvalidPartySize),
		errors.Is(err, waitlist.ErrContactRequired),
		errors.Is(err, waitlist.ErrBookingRequired):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrConflict),
		errors.Is(err, wizard.ErrWrongStep),
		errors.Is(err, wizard.ErrSessionFinished),
		errors.Is(err, wizard.ErrSubmissionInProgress),
		errors.Is(err, wizard.ErrStaleResponse),
		errors.Is(err, wizard.ErrEventFull),
		errors.Is(err, booking.ErrEventFull),
		errors.Is(err, booking.ErrEventInactive),
		errors.Is(err, booking.ErrDuplicateBooking),
		errors.Is(err, booking.ErrAdmissionLimit),
		errors.Is(err, booking.ErrInsufficientSeats),
		errors.Is(err, booking.ErrInvalidTransition),
		errors.Is(err, waitlist.ErrTerminal):
		return http.StatusConflict
	case errors.Is(err, wizard.ErrSubmissionFailed):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// fail writes err as a JSON error body.  Internal errors are logged and
// replaced by a generic message.
func fail(c echo.Context, err error) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(code, echo.Map{"error": "internal error"})
	}
	body := echo.Map{"error": err.Error()}
	var ve *wizard.ValidationError
	if errors.As(err, &ve) {
		body["step"] = ve.Step
		body["fields"] = ve.Fields
	}
	return c.JSON(code, body)
}

// failWithState is fail for wizard calls, which report the session state
// alongside the error.
func failWithState(c echo.Context, st wizard.State, err error) error {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		log.Printf("handler: %s %s: %v", c.Request().Method, c.Path(), err)
		return c.JSON(code, echo.Map{"error": "internal error", "state": st})
	}
	body := echo.Map{"error": err.Error(), "state": st}
	var ve *wizard.ValidationError
	if errors.As(err, &ve) {
		body["step"] = ve.Step
		body["fields"] = ve.Fields
	}
	return c.JSON(code, body)
}
