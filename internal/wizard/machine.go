package wizard

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/venue-booking/internal/capacity"
	"github.com/iliyamo/venue-booking/internal/clock"
	"github.com/iliyamo/venue-booking/internal/model"
)

var (
	ErrNoEventSelected      = errors.New("no event selected")
	ErrWrongStep            = errors.New("action not available on this step")
	ErrTermsNotAccepted     = errors.New("terms must be accepted before submitting")
	ErrEventFull            = errors.New("event is full, join the waitlist instead")
	ErrSubmissionFailed     = errors.New("submission failed, please retry")
	ErrSubmissionInProgress = errors.New("a submission is already in progress")
	ErrStaleResponse        = errors.New("session changed while the request was in flight")
	ErrSessionFinished      = errors.New("session is finished, start a new reservation")
)

// CapacityChecker derives the current capacity of an event.
type CapacityChecker interface {
	Snapshot(ctx context.Context, eventID string) (capacity.Snapshot, error)
}

// Submitter writes a booking.  When the record was written but a later
// step failed it returns the booking together with the error.
type Submitter interface {
	Submit(ctx context.Context, eventID string, form model.FormData) (model.Booking, error)
}

// WaitlistJoiner queues a party for a full event.
type WaitlistJoiner interface {
	JoinWaitlist(ctx context.Context, eventID string, req model.WaitlistRequest) (model.WaitlistEntry, error)
}

// Draft is the single-slot snapshot of an unfinished session.
type Draft struct {
	EventID string         `json:"event_id"`
	Form    model.FormData `json:"form"`
	Step    StepKey        `json:"step"`
	SavedAt time.Time      `json:"saved_at"`
}

// DraftSaver persists and clears drafts by key.
type DraftSaver interface {
	Save(ctx context.Context, key string, d Draft) error
	Clear(ctx context.Context, key string) error
}

// Deps are the collaborators of a Machine.  Waitlist and Drafts may be nil.
type Deps struct {
	Capacity     CapacityChecker
	Submitter    Submitter
	Waitlist     WaitlistJoiner
	Drafts       DraftSaver
	Clock        clock.Clock
	Flow         *Flow
	MaxPartySize int
}

// State is a read-only view of a session.
type State struct {
	SessionID     string               `json:"session_id"`
	Step          StepKey              `json:"step"`
	EventID       string               `json:"event_id,omitempty"`
	Form          model.FormData       `json:"form"`
	Capacity      *capacity.Snapshot   `json:"capacity,omitempty"`
	Booking       *model.Booking       `json:"booking,omitempty"`
	WaitlistEntry *model.WaitlistEntry `json:"waitlist_entry,omitempty"`
	Submitting    bool                 `json:"submitting"`
	LastError     string               `json:"last_error,omitempty"`
	Steps         []StepKey            `json:"steps"`
	CreatedAt     time.Time            `json:"created_at"`
	UpdatedAt     time.Time            `json:"updated_at"`
}

// Machine is one wizard session.  It is safe for concurrent use; the lock
// is released while a submission is in flight so the customer can still
// navigate, and a generation counter detects responses that arrive after
// such navigation.
type Machine struct {
	deps     Deps
	id       string
	draftKey string

	mu         sync.Mutex
	gen        uint64
	step       StepKey
	eventID    string
	form       model.FormData
	snap       *capacity.Snapshot
	booking    *model.Booking
	entry      *model.WaitlistEntry
	submitting bool
	lastErr    string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewMachine starts a session on the calendar step.  draftKey names the
// draft slot; it defaults to the session id.
func NewMachine(id, draftKey string, deps Deps) *Machine {
	if deps.Flow == nil {
		deps.Flow = DefaultFlow()
	}
	if deps.Clock == nil {
		deps.Clock = clock.NewSystem()
	}
	if deps.MaxPartySize <= 0 {
		deps.MaxPartySize = DefaultMaxPartySize
	}
	if draftKey == "" {
		draftKey = id
	}
	now := deps.Clock.Now()
	return &Machine{deps: deps, id: id, draftKey: draftKey, step: StepCalendar, createdAt: now, updatedAt: now}
}

// ID returns the session id.
func (m *Machine) ID() string { return m.id }

// DraftKey returns the draft slot of the session.
func (m *Machine) DraftKey() string { return m.draftKey }

// State returns a copy of the session state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stateLocked()
}

func (m *Machine) stateLocked() State {
	s := State{
		SessionID:  m.id,
		Step:       m.step,
		EventID:    m.eventID,
		Form:       cloneForm(m.form),
		Submitting: m.submitting,
		LastError:  m.lastErr,
		Steps:      m.deps.Flow.Enabled(),
		CreatedAt:  m.createdAt,
		UpdatedAt:  m.updatedAt,
	}
	if m.snap != nil {
		snap := *m.snap
		s.Capacity = &snap
	}
	if m.booking != nil {
		b := *m.booking
		s.Booking = &b
	}
	if m.entry != nil {
		e := *m.entry
		s.WaitlistEntry = &e
	}
	return s
}

// SelectEvent picks the event on the calendar step and routes to persons,
// or to the waitlist prompt when the event is full.
func (m *Machine) SelectEvent(ctx context.Context, eventID string) (State, error) {
	eventID = strings.TrimSpace(eventID)
	if eventID == "" {
		return m.State(), ErrNoEventSelected
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepCalendar {
		return m.stateLocked(), ErrWrongStep
	}
	snap, err := m.deps.Capacity.Snapshot(ctx, eventID)
	if err != nil {
		return m.stateLocked(), err
	}
	m.gen++
	m.eventID = eventID
	m.snap = &snap
	m.step = NextStep(m.deps.Flow, StepCalendar, &snap)
	m.touchLocked(ctx)
	return m.stateLocked(), nil
}

// UpdateForm applies a mutation to the form data and saves a draft.
func (m *Machine) UpdateForm(ctx context.Context, mutate func(*model.FormData)) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step.Terminal() {
		return m.stateLocked(), ErrSessionFinished
	}
	if m.submitting {
		return m.stateLocked(), ErrSubmissionInProgress
	}
	mutate(&m.form)
	m.touchLocked(ctx)
	return m.stateLocked(), nil
}

// Next validates the current step and moves forward.  Capacity is
// re-derived first; an event that filled up meanwhile sends the session
// to the waitlist prompt.  Summary and waitlist prompt complete only
// through Submit and JoinWaitlist.
func (m *Machine) Next(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	switch {
	case m.step.Terminal():
		return m.stateLocked(), ErrSessionFinished
	case m.step == StepSummary, m.step == StepWaitlistPrompt:
		return m.stateLocked(), ErrWrongStep
	case m.submitting:
		return m.stateLocked(), ErrSubmissionInProgress
	}
	if err := ValidateStep(m.step, m.eventID, m.form, m.deps.MaxPartySize); err != nil {
		return m.stateLocked(), err
	}
	snap, err := m.deps.Capacity.Snapshot(ctx, m.eventID)
	if err != nil {
		return m.stateLocked(), err
	}
	m.snap = &snap
	next := NextStep(m.deps.Flow, m.step, &snap)
	if next == StepWaitlistPrompt && m.step != StepCalendar {
		log.Printf("wizard: session %s rerouted to waitlist, event %s filled up", m.id, m.eventID)
	}
	m.step = next
	m.touchLocked(ctx)
	return m.stateLocked(), nil
}

// Previous moves one enabled step back.  Landing on calendar clears the
// selected event; from a terminal step the whole session is reset.
func (m *Machine) Previous(ctx context.Context) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, reset := PrevStep(m.deps.Flow, m.step)
	if reset {
		m.resetLocked(ctx)
		return m.stateLocked(), nil
	}
	m.gen++
	m.step = prev
	if prev == StepCalendar {
		m.eventID = ""
		m.snap = nil
	}
	m.touchLocked(ctx)
	return m.stateLocked(), nil
}

// Reset wipes the session and its draft and starts over on calendar.
func (m *Machine) Reset(ctx context.Context) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resetLocked(ctx)
	return m.stateLocked()
}

func (m *Machine) resetLocked(ctx context.Context) {
	m.gen++
	m.step = StepCalendar
	m.eventID = ""
	m.form = model.FormData{}
	m.snap = nil
	m.booking = nil
	m.entry = nil
	m.submitting = false
	m.lastErr = ""
	m.updatedAt = m.deps.Clock.Now()
	m.clearDraft(ctx)
}

// Submit sends the booking from the summary step.  Every enabled step is
// validated and capacity re-derived before the call.  Parties larger than
// the remaining seats are not blocked here.  On failure the session stays
// on summary and the draft is kept, unless the event filled up meanwhile,
// in which case the session moves to the waitlist prompt.  A booking that
// was written counts as success even if the call also reported an error.
func (m *Machine) Submit(ctx context.Context) (State, error) {
	m.mu.Lock()
	if err := m.checkSubmittableLocked(ctx); err != nil {
		st := m.stateLocked()
		m.mu.Unlock()
		return st, err
	}
	m.submitting = true
	m.lastErr = ""
	gen := m.gen
	eventID, form := m.eventID, cloneForm(m.form)
	m.mu.Unlock()

	rec, err := m.deps.Submitter.Submit(ctx, eventID, form)

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.gen != gen {
		m.submitting = false
		if rec.ID != "" {
			log.Printf("wizard: session %s: booking %s created after the session moved on", m.id, rec.ID)
		}
		return m.stateLocked(), ErrStaleResponse
	}
	m.submitting = false
	if err != nil && rec.ID == "" {
		if snap, serr := m.deps.Capacity.Snapshot(ctx, eventID); serr == nil && snap.Full {
			log.Printf("wizard: session %s: event %s filled during submit: %v", m.id, eventID, err)
			m.snap = &snap
			m.gen++
			m.step = StepWaitlistPrompt
			m.touchLocked(ctx)
			return m.stateLocked(), ErrEventFull
		}
		log.Printf("wizard: session %s: submit failed: %v", m.id, err)
		m.lastErr = ErrSubmissionFailed.Error()
		m.updatedAt = m.deps.Clock.Now()
		return m.stateLocked(), fmt.Errorf("%w: %w", ErrSubmissionFailed, err)
	}
	if err != nil {
		log.Printf("wizard: session %s: booking %s stored, follow-up error ignored: %v", m.id, rec.ID, err)
	}
	m.booking = &rec
	m.step = StepSuccess
	m.updatedAt = m.deps.Clock.Now()
	m.clearDraft(ctx)
	return m.stateLocked(), nil
}

func (m *Machine) checkSubmittableLocked(ctx context.Context) error {
	if m.step.Terminal() {
		return ErrSessionFinished
	}
	if m.step != StepSummary {
		return ErrWrongStep
	}
	if m.submitting {
		return ErrSubmissionInProgress
	}
	if m.eventID == "" {
		return ErrNoEventSelected
	}
	if !m.form.AcceptTerms {
		return ErrTermsNotAccepted
	}
	for _, k := range m.deps.Flow.Enabled() {
		if err := ValidateStep(k, m.eventID, m.form, m.deps.MaxPartySize); err != nil {
			return err
		}
	}
	snap, err := m.deps.Capacity.Snapshot(ctx, m.eventID)
	if err != nil {
		return err
	}
	m.snap = &snap
	if snap.Full {
		m.gen++
		m.step = StepWaitlistPrompt
		m.touchLocked(ctx)
		return ErrEventFull
	}
	return nil
}

// JoinWaitlist signs the party up from the waitlist prompt.  Empty request
// fields are filled from the form.
func (m *Machine) JoinWaitlist(ctx context.Context, req model.WaitlistRequest) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.step != StepWaitlistPrompt {
		return m.stateLocked(), ErrWrongStep
	}
	if m.deps.Waitlist == nil {
		return m.stateLocked(), ErrWrongStep
	}
	if req.CustomerName == "" {
		req.CustomerName = m.form.DisplayName()
	}
	if req.CustomerEmail == "" {
		req.CustomerEmail = m.form.Email
	}
	if req.CustomerPhone == "" {
		req.CustomerPhone = m.form.Phone
	}
	if req.NumberOfPersons == 0 {
		req.NumberOfPersons = m.form.NumberOfPersons
	}
	if req.NumberOfPersons > m.deps.MaxPartySize {
		return m.stateLocked(), &ValidationError{Step: StepWaitlistPrompt, Fields: map[string]string{
			"number_of_persons": fmt.Sprintf("must be at most %d", m.deps.MaxPartySize),
		}}
	}
	entry, err := m.deps.Waitlist.JoinWaitlist(ctx, m.eventID, req)
	if err != nil {
		m.lastErr = err.Error()
		return m.stateLocked(), err
	}
	m.entry = &entry
	m.lastErr = ""
	m.step = StepWaitlistSuccess
	m.updatedAt = m.deps.Clock.Now()
	m.clearDraft(ctx)
	return m.stateLocked(), nil
}

// Restore resumes a draft.  The draft is a hint: the event must still
// exist, a full event sends the session to the waitlist prompt, and the
// step is pulled back to the first one whose data no longer validates.
func (m *Machine) Restore(ctx context.Context, d Draft) (State, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.submitting {
		return m.stateLocked(), ErrSubmissionInProgress
	}
	m.gen++
	m.form = cloneForm(d.Form)
	m.booking, m.entry, m.lastErr = nil, nil, ""
	m.step, m.eventID, m.snap = StepCalendar, "", nil

	if d.EventID != "" {
		snap, err := m.deps.Capacity.Snapshot(ctx, d.EventID)
		switch {
		case err != nil:
			log.Printf("wizard: session %s: draft event %s unavailable: %v", m.id, d.EventID, err)
		case snap.Full:
			m.eventID, m.snap = d.EventID, &snap
			m.step = StepWaitlistPrompt
		default:
			m.eventID, m.snap = d.EventID, &snap
			m.step = m.resumeStep(d.Step)
		}
	}
	m.touchLocked(ctx)
	return m.stateLocked(), nil
}

// resumeStep walks the enabled steps up to target and stops at the first
// that fails validation.
func (m *Machine) resumeStep(target StepKey) StepKey {
	if target.Terminal() || target == StepWaitlistPrompt || target == "" {
		target = StepSummary
	}
	last := StepCalendar
	for _, k := range m.deps.Flow.Enabled() {
		if k.Terminal() {
			break
		}
		last = k
		if k == target {
			return k
		}
		if ValidateStep(k, m.eventID, m.form, m.deps.MaxPartySize) != nil {
			return k
		}
	}
	return last
}

func (m *Machine) touchLocked(ctx context.Context) {
	m.updatedAt = m.deps.Clock.Now()
	if m.deps.Drafts == nil || m.step.Terminal() {
		return
	}
	d := Draft{EventID: m.eventID, Form: cloneForm(m.form), Step: m.step, SavedAt: m.updatedAt}
	if err := m.deps.Drafts.Save(ctx, m.draftKey, d); err != nil {
		log.Printf("wizard: session %s: save draft: %v", m.id, err)
	}
}

func (m *Machine) clearDraft(ctx context.Context) {
	if m.deps.Drafts == nil {
		return
	}
	if err := m.deps.Drafts.Clear(ctx, m.draftKey); err != nil {
		log.Printf("wizard: session %s: clear draft: %v", m.id, err)
	}
}

func cloneForm(f model.FormData) model.FormData {
	if f.Merchandise != nil {
		f.Merchandise = append([]model.MerchandiseItem(nil), f.Merchandise...)
	}
	return f
}
