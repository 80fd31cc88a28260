package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/venue-booking/internal/booking"
	"github.com/iliyamo/venue-booking/internal/bus"
	"github.com/iliyamo/venue-booking/internal/clock"
	"github.com/iliyamo/venue-booking/internal/config"
	"github.com/iliyamo/venue-booking/internal/draft"
	"github.com/iliyamo/venue-booking/internal/handler"
	"github.com/iliyamo/venue-booking/internal/model"
	"github.com/iliyamo/venue-booking/internal/pricing"
	"github.com/iliyamo/venue-booking/internal/repository/memory"
	"github.com/iliyamo/venue-booking/internal/router"
	"github.com/iliyamo/venue-booking/internal/waitlist"
	"github.com/iliyamo/venue-booking/internal/wizard"
)

// 2025-03-04 is a Tuesday, so the weekday price list applies.
var now = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

type api struct {
	t *testing.T
	e *echo.Echo
}

func newAPI(t *testing.T) *api {
	t.Helper()
	ctx := context.Background()
	clk := clock.NewFixed(now)
	mem := memory.New()
	mem.CreateEvent(ctx, &model.Event{ID: "open", Date: now, Type: model.EventTypeRegular, Capacity: 10, IsActive: true})
	mem.CreateEvent(ctx, &model.Event{ID: "sold-out", Date: now, Type: model.EventTypeRegular, Capacity: 0, IsActive: true})
	mem.CreateEvent(ctx, &model.Event{ID: "hidden", Date: now, Capacity: 10})
	hash, _ := bcrypt.GenerateFromPassword([]byte("pw"), bcrypt.MinCost)
	mem.CreateStaff(ctx, &model.StaffUser{ID: "s1", Email: "staff@venue.test", PasswordHash: string(hash), Role: model.RoleStaff, IsActive: true})

	b := bus.New(bus.WithClock(clk.Now))
	prices := pricing.DefaultTable()
	bookings := booking.NewService(mem, prices, b, clk)
	waitlists := waitlist.NewService(mem, b, clk)
	recovery := draft.New(draft.NewMemoryStore(), clk)
	sessions := wizard.NewRegistry(wizard.Deps{
		Capacity:  bookings.Ledger(),
		Submitter: bookings,
		Waitlist:  waitlists,
		Drafts:    recovery,
		Clock:     clk,
	})

	e := echo.New()
	router.RegisterRoutes(e, &handler.HealthHandler{})
	router.RegisterAuth(e, handler.NewAuthHandler(config.Config{JWTSecret: "secret", AccessTTLMin: 5}, mem, clock.NewSystem()))
	router.RegisterPublic(e, &handler.PublicHandler{Events: mem, Ledger: bookings.Ledger(), Waitlist: waitlists})
	router.RegisterWizard(e, &handler.WizardHandler{Sessions: sessions, Drafts: recovery, Events: mem, Prices: prices}, nil)
	router.RegisterStaff(e, &handler.StaffHandler{
		Events:    mem,
		Bookings:  bookings,
		Waitlist:  waitlists,
		Allocator: waitlist.NewAllocator(mem, b, clk),
		Bus:       b,
		Clock:     clk,
	}, "secret")
	return &api{t: t, e: e}
}

func (a *api) do(method, path string, body any, token string, out any) int {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			a.t.Fatalf("encode: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	if out != nil {
		if err := json.Unmarshal(rec.Body.Bytes(), out); err != nil {
			a.t.Fatalf("%s %s: decode %q: %v", method, path, rec.Body.String(), err)
		}
	}
	return rec.Code
}

type session struct {
	SessionID      string               `json:"session_id"`
	Step           wizard.StepKey       `json:"step"`
	EventID        string               `json:"event_id"`
	Form           model.FormData       `json:"form"`
	Booking        *model.Booking       `json:"booking"`
	WaitlistEntry  *model.WaitlistEntry `json:"waitlist_entry"`
	DraftAvailable bool                 `json:"draft_available"`
}

type errBody struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields"`
	State  session           `json:"state"`
}

func (a *api) start(clientID string) session {
	a.t.Helper()
	var s session
	if code := a.do(http.MethodPost, "/v1/wizard/sessions", map[string]string{"client_id": clientID}, "", &s); code != http.StatusCreated {
		a.t.Fatalf("create session: %d", code)
	}
	return s
}

func (a *api) step(id, action string, body any) session {
	a.t.Helper()
	var s session
	method := http.MethodPost
	if action == "form" {
		method = http.MethodPatch
	}
	if code := a.do(method, "/v1/wizard/sessions/"+id+"/"+action, body, "", &s); code != http.StatusOK {
		a.t.Fatalf("%s: expected 200, got %d", action, code)
	}
	return s
}

func (a *api) login() string {
	a.t.Helper()
	var resp struct {
		Access struct {
			Token string `json:"access_token"`
		} `json:"access"`
	}
	if code := a.do(http.MethodPost, "/v1/auth/login", map[string]string{"email": "Staff@Venue.test", "password": "pw"}, "", &resp); code != http.StatusOK {
		a.t.Fatalf("login: %d", code)
	}
	return resp.Access.Token
}

func TestWizard_BookingToConfirmation(t *testing.T) {
	a := newAPI(t)
	s := a.start("browser-1")
	if s.Step != wizard.StepCalendar || s.DraftAvailable {
		t.Fatalf("unexpected new session %+v", s)
	}
	id := s.SessionID

	s = a.step(id, "event", map[string]string{"event_id": "open"})
	if s.Step != wizard.StepPersons {
		t.Fatalf("expected persons, got %s", s.Step)
	}

	var eb errBody
	if code := a.do(http.MethodPost, "/v1/wizard/sessions/"+id+"/next", nil, "", &eb); code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for empty persons, got %d", code)
	}
	if _, ok := eb.Fields["number_of_persons"]; !ok || eb.State.Step != wizard.StepPersons {
		t.Fatalf("unexpected validation body %+v", eb)
	}

	a.step(id, "form", map[string]any{"number_of_persons": 4})
	if s = a.step(id, "next", nil); s.Step != wizard.StepPackage {
		t.Fatalf("expected package, got %s", s.Step)
	}
	a.step(id, "form", map[string]any{"arrangement": "BWF"})
	a.step(id, "next", nil)
	if s = a.step(id, "next", nil); s.Step != wizard.StepContact {
		t.Fatalf("expected contact, got %s", s.Step)
	}
	a.step(id, "form", map[string]any{"email": "ada@example.com", "phone": "0612345678", "first_name": "Ada", "last_name": "Lovelace"})
	a.step(id, "next", nil)
	if s = a.step(id, "next", nil); s.Step != wizard.StepSummary || s.Form.NumberOfPersons != 4 {
		t.Fatalf("expected summary with the merged form, got %+v", s)
	}

	var quote pricing.Breakdown
	if code := a.do(http.MethodGet, "/v1/wizard/sessions/"+id+"/quote", nil, "", &quote); code != http.StatusOK {
		t.Fatalf("quote: %d", code)
	}
	if quote.TotalCents != 4*7000 {
		t.Fatalf("expected 28000 cents, got %d", quote.TotalCents)
	}

	if code := a.do(http.MethodPost, "/v1/wizard/sessions/"+id+"/submit", nil, "", &eb); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without terms, got %d", code)
	}
	a.step(id, "form", map[string]any{"accept_terms": true})
	if code := a.do(http.MethodPost, "/v1/wizard/sessions/"+id+"/submit", nil, "", &s); code != http.StatusCreated {
		t.Fatalf("submit: %d", code)
	}
	if s.Step != wizard.StepSuccess || s.Booking == nil || s.Booking.Status != model.BookingPending {
		t.Fatalf("expected a pending booking, got %+v", s)
	}
	if s.Booking.TotalPriceCents != 28000 {
		t.Fatalf("expected stored price 28000, got %d", s.Booking.TotalPriceCents)
	}

	var badge handler.CapacityBadge
	a.do(http.MethodGet, "/v1/events/open/capacity", nil, "", &badge)
	if badge.Remaining != 6 {
		t.Fatalf("expected 6 remaining, got %+v", badge)
	}

	token := a.login()
	var b model.Booking
	path := "/v1/staff/bookings/" + s.Booking.ID + "/status"
	if code := a.do(http.MethodPatch, path, map[string]string{"status": "confirmed"}, token, &b); code != http.StatusOK || b.Status != model.BookingConfirmed {
		t.Fatalf("confirm: %d %+v", code, b)
	}
	if code := a.do(http.MethodPatch, path, map[string]string{"status": "pending"}, token, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 for confirmed -> pending, got %d", code)
	}
	if code := a.do(http.MethodPatch, path, map[string]string{"status": "nonsense"}, token, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown status, got %d", code)
	}

	var history struct {
		Events []bus.Record `json:"events"`
	}
	a.do(http.MethodGet, "/v1/staff/bus/history", nil, token, &history)
	var topics []bus.Topic
	for _, r := range history.Events {
		topics = append(topics, r.Topic)
	}
	if len(topics) != 2 || topics[0] != bus.TopicReservationCreated || topics[1] != bus.TopicReservationConfirmed {
		t.Fatalf("unexpected bus history %v", topics)
	}
}

func TestWizard_FullEventJoinsWaitlist(t *testing.T) {
	a := newAPI(t)
	id := a.start("").SessionID

	s := a.step(id, "event", map[string]string{"event_id": "sold-out"})
	if s.Step != wizard.StepWaitlistPrompt {
		t.Fatalf("expected waitlist prompt, got %s", s.Step)
	}
	if code := a.do(http.MethodPost, "/v1/wizard/sessions/"+id+"/next", nil, "", nil); code != http.StatusConflict {
		t.Fatalf("expected next to be refused on the prompt, got %d", code)
	}
	var bad errBody
	if code := a.do(http.MethodPost, "/v1/wizard/sessions/"+id+"/waitlist", map[string]any{"customer_name": "Bo", "number_of_persons": 2}, "", &bad); code != http.StatusBadRequest {
		t.Fatalf("expected 400 without email, got %d", code)
	}
	req := model.WaitlistRequest{CustomerName: "Bo", CustomerEmail: "bo@example.com", NumberOfPersons: 2}
	if code := a.do(http.MethodPost, "/v1/wizard/sessions/"+id+"/waitlist", req, "", &s); code != http.StatusCreated {
		t.Fatalf("join: %d", code)
	}
	if s.Step != wizard.StepWaitlistSuccess || s.WaitlistEntry == nil {
		t.Fatalf("expected waitlist success, got %+v", s)
	}

	var badge handler.CapacityBadge
	a.do(http.MethodGet, "/v1/events/sold-out/capacity", nil, "", &badge)
	if !badge.WaitlistActive || badge.WaitlistCount != 1 || badge.Remaining != 0 {
		t.Fatalf("unexpected badge %+v", badge)
	}

	token := a.login()
	var plan waitlist.Result
	if code := a.do(http.MethodGet, "/v1/staff/events/sold-out/waitlist/plan?freed=2", nil, token, &plan); code != http.StatusOK {
		t.Fatalf("plan: %d", code)
	}
	if len(plan.Promoted) != 1 || plan.Leftover != 0 {
		t.Fatalf("unexpected plan %+v", plan)
	}

	entryID := s.WaitlistEntry.ID
	var e model.WaitlistEntry
	if code := a.do(http.MethodPost, "/v1/staff/waitlist/"+entryID+"/contacted", nil, token, &e); code != http.StatusOK {
		t.Fatalf("contacted: %d", code)
	}
	if e.Status != model.WaitlistContacted || e.ContactedBy != "s1" {
		t.Fatalf("expected contacted by s1, got %+v", e)
	}
	if code := a.do(http.MethodPost, "/v1/staff/waitlist/"+entryID+"/cancel", nil, token, &e); code != http.StatusOK {
		t.Fatalf("cancel: %d", code)
	}
	if code := a.do(http.MethodPost, "/v1/staff/waitlist/"+entryID+"/expire", nil, token, nil); code != http.StatusConflict {
		t.Fatalf("expected 409 on a cancelled entry, got %d", code)
	}
}

func TestWizard_ResumeDraft(t *testing.T) {
	a := newAPI(t)
	first := a.start("browser-7").SessionID
	a.step(first, "event", map[string]string{"event_id": "open"})
	a.step(first, "form", map[string]any{"number_of_persons": 3})

	second := a.start("browser-7")
	if !second.DraftAvailable {
		t.Fatalf("expected a draft for the returning client")
	}
	s := a.step(second.SessionID, "resume", nil)
	if s.Step != wizard.StepPersons || s.EventID != "open" || s.Form.NumberOfPersons != 3 {
		t.Fatalf("unexpected resumed state %+v", s)
	}

	other := a.start("browser-8").SessionID
	if code := a.do(http.MethodPost, "/v1/wizard/sessions/"+other+"/resume", nil, "", nil); code != http.StatusNotFound {
		t.Fatalf("expected 404 without a draft, got %d", code)
	}
}

func TestPublicAndStaffGuards(t *testing.T) {
	a := newAPI(t)

	var events []handler.PublicEvent
	if code := a.do(http.MethodGet, "/v1/events", nil, "", &events); code != http.StatusOK {
		t.Fatalf("events: %d", code)
	}
	if len(events) != 2 {
		t.Fatalf("expected the two active events, got %d", len(events))
	}
	if code := a.do(http.MethodGet, "/v1/events/hidden/capacity", nil, "", nil); code != http.StatusNotFound {
		t.Fatalf("expected inactive event hidden, got %d", code)
	}
	if code := a.do(http.MethodGet, "/v1/wizard/sessions/nope", nil, "", nil); code != http.StatusNotFound {
		t.Fatalf("expected unknown session 404, got %d", code)
	}
	if code := a.do(http.MethodGet, "/v1/staff/events/open/bookings", nil, "", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", code)
	}
	if code := a.do(http.MethodPost, "/v1/auth/login", map[string]string{"email": "staff@venue.test", "password": "wrong"}, "", nil); code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for a wrong password, got %d", code)
	}

	token := a.login()
	var snap struct {
		WaitlistForced bool `json:"waitlist_forced"`
		Full           bool `json:"full"`
	}
	if code := a.do(http.MethodPut, "/v1/staff/events/open/waitlist-active", map[string]bool{"active": true}, token, &snap); code != http.StatusOK {
		t.Fatalf("waitlist-active: %d", code)
	}
	if !snap.WaitlistForced || !snap.Full {
		t.Fatalf("expected forced waitlist, got %+v", snap)
	}
	var ev model.Event
	if code := a.do(http.MethodPost, "/v1/staff/events", map[string]any{"date": "2025-04-05", "capacity": 80, "type": "MATINEE"}, token, &ev); code != http.StatusCreated {
		t.Fatalf("create event: %d", code)
	}
	if ev.ID == "" || ev.Capacity != 80 || !ev.IsActive {
		t.Fatalf("unexpected event %+v", ev)
	}
	if code := a.do(http.MethodPost, "/v1/staff/events", map[string]any{"date": "soon"}, token, nil); code != http.StatusBadRequest {
		t.Fatalf("expected 400 for a bad date, got %d", code)
	}
	if code := a.do(http.MethodGet, "/healthz", nil, "", nil); code != http.StatusOK {
		t.Fatalf("health: %d", code)
	}
}
