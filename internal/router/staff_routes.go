package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/handler"
	"github.com/iliyamo/venue-booking/internal/middleware"
	"github.com/iliyamo/venue-booking/internal/model"
)

// RegisterStaff registers the management console under /v1/staff.  All
// routes require a valid JWT with the STAFF role.
func RegisterStaff(e *echo.Echo, h *handler.StaffHandler, jwtSecret string) {
	g := e.Group(
		"/v1/staff",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleStaff),
	)

	g.POST("/events", h.CreateEvent)
	g.PUT("/events/:id/waitlist-active", h.SetWaitlistActive)

	// bookings
	g.GET("/events/:id/bookings", h.ListBookings)
	g.PATCH("/bookings/:id/status", h.UpdateBookingStatus)
	g.DELETE("/bookings/:id", h.DeleteBooking)

	// waitlist
	g.GET("/events/:id/waitlist", h.ListWaitlist)
	g.GET("/events/:id/waitlist/plan", h.PlanWaitlist)
	g.POST("/waitlist/:id/contacted", h.MarkContacted)
	g.POST("/waitlist/:id/converted", h.MarkConverted)
	g.POST("/waitlist/:id/cancel", h.CancelWaitlist)
	g.POST("/waitlist/:id/expire", h.ExpireWaitlist)
	g.DELETE("/waitlist/:id", h.DeleteWaitlist)

	g.GET("/bus/history", h.BusHistory)
}
