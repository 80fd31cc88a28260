package wizard

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/venue-booking/internal/capacity"
	"github.com/iliyamo/venue-booking/internal/clock"
	"github.com/iliyamo/venue-booking/internal/model"
)

var t0 = time.Date(2025, 4, 10, 9, 0, 0, 0, time.UTC)

type fakeCapacity struct {
	mu        sync.Mutex
	events    map[string]model.Event
	committed map[string]int
}

func newFakeCapacity() *fakeCapacity {
	return &fakeCapacity{events: map[string]model.Event{}, committed: map[string]int{}}
}

func (f *fakeCapacity) add(id string, capacityN, committed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events[id] = model.Event{ID: id, Capacity: capacityN, IsActive: true}
	f.committed[id] = committed
}

func (f *fakeCapacity) Snapshot(_ context.Context, id string) (capacity.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev, ok := f.events[id]
	if !ok {
		return capacity.Snapshot{}, errors.New("event not found")
	}
	var bookings []model.Booking
	if n := f.committed[id]; n > 0 {
		bookings = append(bookings, model.Booking{EventID: id, NumberOfPersons: n, Status: model.BookingConfirmed})
	}
	return capacity.Derive(ev, bookings), nil
}

type fakeSubmitter struct {
	mu      sync.Mutex
	calls   int
	forms   []model.FormData
	result  model.Booking
	err     error
	block   chan struct{}
	started chan struct{}
}

func (f *fakeSubmitter) Submit(_ context.Context, eventID string, form model.FormData) (model.Booking, error) {
	f.mu.Lock()
	f.calls++
	f.forms = append(f.forms, form)
	res, err, block, started := f.result, f.err, f.block, f.started
	f.mu.Unlock()
	if started != nil {
		close(started)
	}
	if block != nil {
		<-block
	}
	if res.ID != "" {
		res.EventID = eventID
		res.NumberOfPersons = form.NumberOfPersons
	}
	return res, err
}

type fakeWaitlist struct {
	got []model.WaitlistRequest
	err error
}

func (f *fakeWaitlist) JoinWaitlist(_ context.Context, eventID string, req model.WaitlistRequest) (model.WaitlistEntry, error) {
	if f.err != nil {
		return model.WaitlistEntry{}, f.err
	}
	f.got = append(f.got, req)
	return model.WaitlistEntry{ID: "wl-1", EventID: eventID, NumberOfPersons: req.NumberOfPersons, Status: model.WaitlistPending}, nil
}

type fakeDrafts struct {
	mu      sync.Mutex
	saved   map[string]Draft
	saves   int
	cleared int
}

func (f *fakeDrafts) Save(_ context.Context, key string, d Draft) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.saved == nil {
		f.saved = map[string]Draft{}
	}
	f.saved[key] = d
	f.saves++
	return nil
}

func (f *fakeDrafts) Clear(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.saved, key)
	f.cleared++
	return nil
}

func (f *fakeDrafts) get(key string) (Draft, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.saved[key]
	return d, ok
}

type harness struct {
	cap    *fakeCapacity
	sub    *fakeSubmitter
	wl     *fakeWaitlist
	drafts *fakeDrafts
	m      *Machine
}

func newHarness(disabled ...StepKey) *harness {
	h := &harness{
		cap:    newFakeCapacity(),
		sub:    &fakeSubmitter{result: model.Booking{ID: "booking-1", Status: model.BookingPending}},
		wl:     &fakeWaitlist{},
		drafts: &fakeDrafts{},
	}
	h.cap.add("open", 50, 10)
	h.cap.add("full", 50, 50)
	h.m = NewMachine("s1", "", Deps{
		Capacity:  h.cap,
		Submitter: h.sub,
		Waitlist:  h.wl,
		Drafts:    h.drafts,
		Clock:     clock.NewFixed(t0),
		Flow:      DefaultFlow(disabled...),
	})
	return h
}

func fill(f *model.FormData) {
	f.Arrangement = model.ArrangementStandard
	f.FirstName = "Ada"
	f.LastName = "Lovelace"
	f.Email = "ada@example.com"
	f.Phone = "0612345678"
}

// walk drives a fresh session up to the summary step.
func (h *harness) walk(t *testing.T, persons int) {
	t.Helper()
	ctx := context.Background()
	if _, err := h.m.SelectEvent(ctx, "open"); err != nil {
		t.Fatalf("select: %v", err)
	}
	if _, err := h.m.UpdateForm(ctx, func(f *model.FormData) { fill(f); f.NumberOfPersons = persons }); err != nil {
		t.Fatalf("update: %v", err)
	}
	for h.m.State().Step != StepSummary {
		if _, err := h.m.Next(ctx); err != nil {
			t.Fatalf("next from %s: %v", h.m.State().Step, err)
		}
	}
}

func TestMachine_HappyPath(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness()
	h.walk(t, 4)

	if _, err := h.m.Submit(ctx); !errors.Is(err, ErrTermsNotAccepted) {
		t.Fatalf("expected ErrTermsNotAccepted, got %v", err)
	}
	if h.sub.calls != 0 {
		t.Fatalf("expected no submission without consent")
	}

	h.m.UpdateForm(ctx, func(f *model.FormData) { f.AcceptTerms = true })
	st, err := h.m.Submit(ctx)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if st.Step != StepSuccess || st.Booking == nil || st.Booking.ID != "booking-1" {
		t.Fatalf("unexpected state %+v", st)
	}
	if _, ok := h.drafts.get("s1"); ok {
		t.Fatalf("expected draft cleared after success")
	}

	st, _ = h.m.Previous(ctx)
	if st.Step != StepCalendar || st.EventID != "" || st.Form.NumberOfPersons != 0 || st.Booking != nil {
		t.Fatalf("expected full reset, got %+v", st)
	}
}

func TestMachine_FullEventGoesToWaitlist(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness()

	st, err := h.m.SelectEvent(ctx, "full")
	if err != nil {
		t.Fatalf("select: %v", err)
	}
	if st.Step != StepWaitlistPrompt {
		t.Fatalf("expected waitlistPrompt, got %s", st.Step)
	}
	if _, err := h.m.Next(ctx); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("expected ErrWrongStep for next on prompt, got %v", err)
	}

	st, err = h.m.JoinWaitlist(ctx, model.WaitlistRequest{CustomerName: "Ada", CustomerEmail: "ada@example.com", NumberOfPersons: 3})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if st.Step != StepWaitlistSuccess || st.WaitlistEntry == nil {
		t.Fatalf("unexpected state %+v", st)
	}
	if h.drafts.cleared == 0 {
		t.Fatalf("expected draft cleared")
	}

	st, _ = h.m.Previous(ctx)
	if st.Step != StepCalendar || st.WaitlistEntry != nil {
		t.Fatalf("expected reset from waitlistSuccess, got %+v", st)
	}
}

func TestMachine_BackToCalendarClearsEvent(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	for _, eventID := range []string{"open", "full"} {
		t.Run(eventID, func(t *testing.T) {
			h := newHarness()
			h.m.SelectEvent(ctx, eventID)
			st, err := h.m.Previous(ctx)
			if err != nil {
				t.Fatalf("previous: %v", err)
			}
			if st.Step != StepCalendar || st.EventID != "" || st.Capacity != nil {
				t.Fatalf("expected calendar with no event, got %+v", st)
			}
		})
	}

	t.Run("disabled persons lands on calendar from package", func(t *testing.T) {
		h := newHarness(StepPersons)
		st, _ := h.m.SelectEvent(ctx, "open")
		if st.Step != StepPackage {
			t.Fatalf("expected package, got %s", st.Step)
		}
		st, _ = h.m.Previous(ctx)
		if st.Step != StepCalendar || st.EventID != "" {
			t.Fatalf("expected cleared calendar, got %+v", st)
		}
	})
}

func TestMachine_ValidationGating(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness()

	if _, err := h.m.Next(ctx); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error on calendar without event, got %v", err)
	}
	h.m.SelectEvent(ctx, "open")

	st, err := h.m.Next(ctx)
	if !errors.Is(err, ErrValidation) || st.Step != StepPersons {
		t.Fatalf("expected to stay on persons with validation error, got %s, %v", st.Step, err)
	}
	var ve *ValidationError
	if !errors.As(err, &ve) || ve.Fields["number_of_persons"] == "" {
		t.Fatalf("expected number_of_persons field error, got %v", err)
	}

	h.m.UpdateForm(ctx, func(f *model.FormData) { f.NumberOfPersons = 2 })
	if st, err := h.m.Next(ctx); err != nil || st.Step != StepPackage {
		t.Fatalf("expected package, got %s, %v", st.Step, err)
	}
	if _, err := h.m.Submit(ctx); !errors.Is(err, ErrWrongStep) {
		t.Fatalf("expected ErrWrongStep submitting from package, got %v", err)
	}
}

func TestMachine_OverCapacityNotBlocked(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness()
	h.walk(t, 45) // 40 seats remain
	h.m.UpdateForm(ctx, func(f *model.FormData) { f.AcceptTerms = true })

	st, err := h.m.Submit(ctx)
	if err != nil {
		t.Fatalf("expected over-capacity submission to pass, got %v", err)
	}
	if st.Step != StepSuccess || h.sub.forms[0].NumberOfPersons != 45 {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestMachine_EventFillsBeforeSubmit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness()
	h.walk(t, 2)
	h.m.UpdateForm(ctx, func(f *model.FormData) { f.AcceptTerms = true })

	h.cap.add("open", 50, 50)
	st, err := h.m.Submit(ctx)
	if !errors.Is(err, ErrEventFull) {
		t.Fatalf("expected ErrEventFull, got %v", err)
	}
	if st.Step != StepWaitlistPrompt || h.sub.calls != 0 {
		t.Fatalf("expected reroute without submission, got %s (calls=%d)", st.Step, h.sub.calls)
	}
}

func TestMachine_EventFillsMidFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness()
	h.m.SelectEvent(ctx, "open")
	h.m.UpdateForm(ctx, func(f *model.FormData) { f.NumberOfPersons = 2 })

	h.cap.add("open", 50, 55)
	st, err := h.m.Next(ctx)
	if err != nil {
		t.Fatalf("next: %v", err)
	}
	if st.Step != StepWaitlistPrompt {
		t.Fatalf("expected waitlistPrompt, got %s", st.Step)
	}
	st, err = h.m.JoinWaitlist(ctx, model.WaitlistRequest{CustomerName: "Bo", CustomerEmail: "bo@example.com"})
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if h.wl.got[0].NumberOfPersons != 2 {
		t.Fatalf("expected party size taken from the form, got %d", h.wl.got[0].NumberOfPersons)
	}
}

// fillingSubmitter loses the race for the last seats: the event fills
// up while the write is in flight and the write is refused.
type fillingSubmitter struct {
	cap *fakeCapacity
}

func (f fillingSubmitter) Submit(_ context.Context, eventID string, _ model.FormData) (model.Booking, error) {
	f.cap.add(eventID, 50, 50)
	return model.Booking{}, errors.New("event is full")
}

func TestMachine_EventFillsDuringSubmit(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness()
	h.m = NewMachine("s1", "", Deps{
		Capacity:  h.cap,
		Submitter: fillingSubmitter{cap: h.cap},
		Waitlist:  h.wl,
		Drafts:    h.drafts,
		Clock:     clock.NewFixed(t0),
	})
	h.walk(t, 2)
	h.m.UpdateForm(ctx, func(f *model.FormData) { f.AcceptTerms = true })

	st, err := h.m.Submit(ctx)
	if !errors.Is(err, ErrEventFull) {
		t.Fatalf("expected ErrEventFull, got %v", err)
	}
	if st.Step != StepWaitlistPrompt || st.Booking != nil || st.Submitting {
		t.Fatalf("expected reroute to the waitlist prompt, got %+v", st)
	}
	if d, ok := h.drafts.get("s1"); !ok || d.Step != StepWaitlistPrompt || d.Form.NumberOfPersons != 2 {
		t.Fatalf("expected draft kept on the waitlist prompt, got %+v (%v)", d, ok)
	}
	if _, err := h.m.JoinWaitlist(ctx, model.WaitlistRequest{}); err != nil {
		t.Fatalf("join: %v", err)
	}
	if h.wl.got[0].NumberOfPersons != 2 {
		t.Fatalf("expected party of 2 on the waitlist, got %d", h.wl.got[0].NumberOfPersons)
	}
}

func TestMachine_SubmissionFailureKeepsSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness()
	h.sub.result = model.Booking{}
	h.sub.err = errors.New("database unavailable")
	h.walk(t, 3)
	h.m.UpdateForm(ctx, func(f *model.FormData) { f.AcceptTerms = true })

	st, err := h.m.Submit(ctx)
	if !errors.Is(err, ErrSubmissionFailed) {
		t.Fatalf("expected ErrSubmissionFailed, got %v", err)
	}
	if st.Step != StepSummary || st.Booking != nil || st.LastError == "" || st.Submitting {
		t.Fatalf("expected to stay on summary with error, got %+v", st)
	}
	d, ok := h.drafts.get("s1")
	if !ok || d.Form.NumberOfPersons != 3 {
		t.Fatalf("expected draft preserved, got %+v (%v)", d, ok)
	}

	h.sub.err = nil
	h.sub.result = model.Booking{ID: "booking-2"}
	if st, err := h.m.Submit(ctx); err != nil || st.Step != StepSuccess {
		t.Fatalf("expected retry to succeed, got %s, %v", st.Step, err)
	}
}

func TestMachine_RecordCreatedButReadFailed(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness()
	h.sub.result = model.Booking{ID: "booking-7"}
	h.sub.err = errors.New("reload failed")
	h.walk(t, 3)
	h.m.UpdateForm(ctx, func(f *model.FormData) { f.AcceptTerms = true })

	st, err := h.m.Submit(ctx)
	if err != nil {
		t.Fatalf("expected success when the record exists, got %v", err)
	}
	if st.Step != StepSuccess || st.Booking.ID != "booking-7" {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestMachine_StaleSubmitResponse(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness()
	h.walk(t, 3)
	h.m.UpdateForm(ctx, func(f *model.FormData) { f.AcceptTerms = true })
	h.sub.block = make(chan struct{})
	h.sub.started = make(chan struct{})

	type result struct {
		st  State
		err error
	}
	done := make(chan result)
	go func() {
		st, err := h.m.Submit(ctx)
		done <- result{st, err}
	}()

	<-h.sub.started
	if !h.m.State().Submitting {
		t.Fatalf("expected submitting flag while in flight")
	}
	if _, err := h.m.Submit(ctx); !errors.Is(err, ErrSubmissionInProgress) {
		t.Fatalf("expected ErrSubmissionInProgress, got %v", err)
	}
	h.m.Previous(ctx)
	close(h.sub.block)

	res := <-done
	if !errors.Is(res.err, ErrStaleResponse) {
		t.Fatalf("expected ErrStaleResponse, got %v", res.err)
	}
	if res.st.Step == StepSuccess || res.st.Booking != nil {
		t.Fatalf("stale response must not be applied, got %+v", res.st)
	}
}

func TestMachine_Restore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("resumes at the saved step", func(t *testing.T) {
		h := newHarness()
		form := model.FormData{NumberOfPersons: 5}
		st, err := h.m.Restore(ctx, Draft{EventID: "open", Form: form, Step: StepPersons, SavedAt: t0})
		if err != nil {
			t.Fatalf("restore: %v", err)
		}
		if st.Step != StepPersons || st.Form.NumberOfPersons != 5 || st.EventID != "open" {
			t.Fatalf("unexpected state %+v", st)
		}
	})

	t.Run("pulls back to the first invalid step", func(t *testing.T) {
		h := newHarness()
		st, _ := h.m.Restore(ctx, Draft{EventID: "open", Form: model.FormData{NumberOfPersons: 5}, Step: StepSummary})
		if st.Step != StepPackage {
			t.Fatalf("expected package, got %s", st.Step)
		}
	})

	t.Run("full event goes to waitlist", func(t *testing.T) {
		h := newHarness()
		st, _ := h.m.Restore(ctx, Draft{EventID: "full", Form: model.FormData{NumberOfPersons: 5}, Step: StepContact})
		if st.Step != StepWaitlistPrompt {
			t.Fatalf("expected waitlistPrompt, got %s", st.Step)
		}
	})

	t.Run("missing event restarts on calendar with the form", func(t *testing.T) {
		h := newHarness()
		st, _ := h.m.Restore(ctx, Draft{EventID: "gone", Form: model.FormData{NumberOfPersons: 5}, Step: StepContact})
		if st.Step != StepCalendar || st.EventID != "" || st.Form.NumberOfPersons != 5 {
			t.Fatalf("unexpected state %+v", st)
		}
	})
}

func TestMachine_SavesDraftOnEveryMutation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	h := newHarness()
	h.m.SelectEvent(ctx, "open")
	h.m.UpdateForm(ctx, func(f *model.FormData) { f.NumberOfPersons = 5 })

	d, ok := h.drafts.get("s1")
	if !ok {
		t.Fatalf("expected a draft")
	}
	if d.EventID != "open" || d.Step != StepPersons || d.Form.NumberOfPersons != 5 || !d.SavedAt.Equal(t0) {
		t.Fatalf("unexpected draft %+v", d)
	}
	if h.drafts.saves != 2 {
		t.Fatalf("expected 2 saves, got %d", h.drafts.saves)
	}
}

func TestRegistry(t *testing.T) {
	t.Parallel()

	r := NewRegistry(Deps{Capacity: newFakeCapacity(), Clock: clock.NewFixed(t0)})
	m := r.Create("client-1")
	if m.DraftKey() != "client-1" {
		t.Fatalf("expected draft key client-1, got %s", m.DraftKey())
	}
	got, err := r.Get(m.ID())
	if err != nil || got != m {
		t.Fatalf("expected to find session, got %v", err)
	}
	r.Delete(m.ID())
	if _, err := r.Get(m.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound, got %v", err)
	}
	if r.Len() != 0 {
		t.Fatalf("expected empty registry")
	}
}

func TestRegistry_SweepDropsIdleSessions(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	clk := &stepClock{now: t0}
	r := NewRegistry(Deps{Capacity: newFakeCapacity(), Clock: clk})

	stale := r.Create("a")
	clk.advance(20 * time.Hour)
	fresh := r.Create("b")
	clk.advance(3 * time.Hour)
	active := r.Create("c")
	active.Reset(ctx)
	clk.advance(2 * time.Hour)

	if n := r.Sweep(24 * time.Hour); n != 1 {
		t.Fatalf("expected one session evicted, got %d", n)
	}
	if _, err := r.Get(stale.ID()); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected idle session gone, got %v", err)
	}
	for _, m := range []*Machine{fresh, active} {
		if _, err := r.Get(m.ID()); err != nil {
			t.Fatalf("expected session %s kept, got %v", m.DraftKey(), err)
		}
	}

	clk.advance(24 * time.Hour)
	if n := r.Sweep(24 * time.Hour); n != 2 || r.Len() != 0 {
		t.Fatalf("expected the rest evicted, got %d (left %d)", n, r.Len())
	}
}

func TestRegistry_Janitor(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	clk := &stepClock{now: t0}
	r := NewRegistry(Deps{Capacity: newFakeCapacity(), Clock: clk})
	r.Create("a")
	clk.advance(time.Hour)

	done := make(chan struct{})
	go func() {
		r.Janitor(ctx, time.Millisecond, time.Minute)
		close(done)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for r.Len() != 0 {
		if time.Now().After(deadline) {
			t.Fatalf("expected janitor to evict the idle session")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done
}

type stepClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *stepClock) advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
