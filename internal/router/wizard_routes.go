package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/handler"
)

// RegisterWizard registers the booking wizard under /v1/wizard/sessions.
// Sessions are anonymous; submitLimit guards the submit route only.
func RegisterWizard(e *echo.Echo, h *handler.WizardHandler, submitLimit echo.MiddlewareFunc) {
	g := e.Group("/v1/wizard/sessions")
	g.POST("", h.CreateSession)
	g.GET("/:id", h.GetSession)
	g.DELETE("/:id", h.DeleteSession)
	g.POST("/:id/event", h.SelectEvent)
	g.PATCH("/:id/form", h.UpdateForm)
	g.POST("/:id/next", h.Next)
	g.POST("/:id/previous", h.Previous)
	g.POST("/:id/reset", h.Reset)
	g.POST("/:id/resume", h.Resume)
	g.GET("/:id/quote", h.Quote)
	g.POST("/:id/waitlist", h.JoinWaitlist)
	if submitLimit != nil {
		g.POST("/:id/submit", h.Submit, submitLimit)
	} else {
		g.POST("/:id/submit", h.Submit)
	}
}
