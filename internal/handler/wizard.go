package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-booking/internal/middleware"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/pricing"
	"github.com/iliyamo/venue-booking/internal/wizard"
)

const maxFormBody = 64 << 10

// DraftLoader reads back the saved draft of a client.
type DraftLoader interface {
	Load(ctx context.Context, key string) (wizard.Draft, bool, error)
}

// WizardHandler drives booking wizard sessions over HTTP.  Drafts may be nil,
// in which case resume always reports that there is nothing to resume.
type WizardHandler struct {
	Sessions *wizard.Registry
	Drafts   DraftLoader
	Events   EventStore
	Prices   pricing.Calculator
}

type createSessionReq struct {
	ClientID string `json:"client_id"`
}

type sessionResp struct {
	wizard.State
	DraftAvailable bool `json:"draft_available"`
}

type selectEventReq struct {
	EventID string `json:"event_id"`
}

func (h *WizardHandler) session(c echo.Context) (*wizard.Machine, error) {
	return h.Sessions.Get(c.Param("id"))
}

// CreateSession starts a session.  The client key from the body or the
// X-Client-ID header names the draft slot, so the response tells whether a
// draft from an earlier visit can be resumed.
func (h *WizardHandler) CreateSession(c echo.Context) error {
	var req createSessionReq
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
	}
	key := strings.TrimSpace(req.ClientID)
	if key == "" {
		key = strings.TrimSpace(c.Request().Header.Get(middleware.ClientHeader))
	}
	m := h.Sessions.Create(key)

	resp := sessionResp{State: m.State()}
	if h.Drafts != nil {
		_, ok, err := h.Drafts.Load(c.Request().Context(), m.DraftKey())
		if err != nil {
			c.Logger().Warnf("wizard: draft lookup for %s: %v", m.DraftKey(), err)
		}
		resp.DraftAvailable = ok
	}
	return c.JSON(http.StatusCreated, resp)
}

// GetSession returns the current state of a session.
func (h *WizardHandler) GetSession(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, m.State())
}

// DeleteSession drops a session.  Its draft is kept.
func (h *WizardHandler) DeleteSession(c echo.Context) error {
	if _, err := h.session(c); err != nil {
		return fail(c, err)
	}
	h.Sessions.Delete(c.Param("id"))
	return c.NoContent(http.StatusNoContent)
}

// SelectEvent picks the event on the calendar step.
func (h *WizardHandler) SelectEvent(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	var req selectEventReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	st, err := m.SelectEvent(c.Request().Context(), req.EventID)
	if err != nil {
		return failWithState(c, st, err)
	}
	return c.JSON(http.StatusOK, st)
}

// UpdateForm merges a partial JSON form document onto the session form.
// Fields absent from the body keep their value.
func (h *WizardHandler) UpdateForm(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	body, err := io.ReadAll(io.LimitReader(c.Request().Body, maxFormBody))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	// reject bodies that would not decode before touching the session
	var decoded model.FormData
	if err := json.Unmarshal(body, &decoded); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid form: " + err.Error()})
	}
	st, err := m.UpdateForm(c.Request().Context(), func(f *model.FormData) {
		_ = json.Unmarshal(body, f)
	})
	if err != nil {
		return failWithState(c, st, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Next validates the current step and advances.
func (h *WizardHandler) Next(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	st, err := m.Next(c.Request().Context())
	if err != nil {
		return failWithState(c, st, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Previous goes one step back.
func (h *WizardHandler) Previous(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	st, err := m.Previous(c.Request().Context())
	if err != nil {
		return failWithState(c, st, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Reset starts the session over and clears its draft.
func (h *WizardHandler) Reset(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, m.Reset(c.Request().Context()))
}

// Submit books from the summary step.
func (h *WizardHandler) Submit(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	st, err := m.Submit(c.Request().Context())
	if err != nil {
		return failWithState(c, st, err)
	}
	return c.JSON(http.StatusCreated, st)
}

// JoinWaitlist signs the party up from the waitlist prompt.  Any field left
// out of the body is taken from the session form.
func (h *WizardHandler) JoinWaitlist(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	var req model.WaitlistRequest
	if c.Request().ContentLength != 0 {
		if err := c.Bind(&req); err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
		}
	}
	st, err := m.JoinWaitlist(c.Request().Context(), req)
	if err != nil {
		return failWithState(c, st, err)
	}
	return c.JSON(http.StatusCreated, st)
}

// Resume loads the client's draft into the session.
func (h *WizardHandler) Resume(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	if h.Drafts == nil {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no draft to resume"})
	}
	ctx := c.Request().Context()
	d, ok, err := h.Drafts.Load(ctx, m.DraftKey())
	if err != nil {
		return fail(c, err)
	}
	if !ok {
		return c.JSON(http.StatusNotFound, echo.Map{"error": "no draft to resume"})
	}
	st, err := m.Restore(ctx, d)
	if err != nil {
		return failWithState(c, st, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Quote prices the session form.  The promo and voucher query parameters
// override the codes in the form.
func (h *WizardHandler) Quote(c echo.Context) error {
	m, err := h.session(c)
	if err != nil {
		return fail(c, err)
	}
	st := m.State()
	if st.EventID == "" {
		return failWithState(c, st, wizard.ErrNoEventSelected)
	}
	ev, err := h.Events.GetEvent(c.Request().Context(), st.EventID)
	if err != nil {
		return fail(c, err)
	}
	promo, voucher := st.Form.PromoCode, st.Form.VoucherCode
	if v := c.QueryParam("promo"); v != "" {
		promo = v
	}
	if v := c.QueryParam("voucher"); v != "" {
		voucher = v
	}
	return c.JSON(http.StatusOK, h.Prices.Calculate(ev, st.Form, promo, voucher))
}
