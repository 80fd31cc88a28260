// Package wizard drives a customer through the booking steps.  The step
// graph is data (Flow) and the transitions are pure functions over it;
// Machine applies them to one session and talks to capacity, booking,
// waitlist and draft collaborators through small interfaces.
package wizard

import (
	"sort"

	"github.com/iliyamo/venue-booking/internal/capacity"
)

// StepKey names a wizard step.
type StepKey string

const (
	StepCalendar        StepKey = "calendar"
	StepPersons         StepKey = "persons"
	StepPackage         StepKey = "package"
	StepMerchandise     StepKey = "merchandise"
	StepContact         StepKey = "contact"
	StepDetails         StepKey = "details"
	StepSummary         StepKey = "summary"
	StepSuccess         StepKey = "success"
	StepWaitlistPrompt  StepKey = "waitlistPrompt"
	StepWaitlistSuccess StepKey = "waitlistSuccess"
)

// Terminal reports whether the step ends a session.
func (k StepKey) Terminal() bool {
	return k == StepSuccess || k == StepWaitlistSuccess
}

// StepConfig is one row of the step graph.
type StepConfig struct {
	Key      StepKey `json:"key"`
	Enabled  bool    `json:"enabled"`
	Order    int     `json:"order"`
	Required bool    `json:"required"`
}

// DefaultSteps returns the booking sequence with every step enabled.
func DefaultSteps() []StepConfig {
	return []StepConfig{
		{Key: StepCalendar, Enabled: true, Order: 0, Required: true},
		{Key: StepPersons, Enabled: true, Order: 1, Required: true},
		{Key: StepPackage, Enabled: true, Order: 2, Required: true},
		{Key: StepMerchandise, Enabled: true, Order: 3},
		{Key: StepContact, Enabled: true, Order: 4, Required: true},
		{Key: StepDetails, Enabled: true, Order: 5},
		{Key: StepSummary, Enabled: true, Order: 6, Required: true},
		{Key: StepSuccess, Enabled: true, Order: 7, Required: true},
	}
}

// alwaysOn steps cannot be disabled: without them a session could neither
// start nor finish.
var alwaysOn = map[StepKey]bool{StepCalendar: true, StepSummary: true, StepSuccess: true}

// Flow is the ordered list of enabled main steps.  The waitlist branch is
// not part of it.
type Flow struct {
	steps []StepConfig
}

// NewFlow builds a flow from configuration rows.  Unknown keys and the
// waitlist branch are ignored; calendar, summary and success stay enabled.
func NewFlow(steps []StepConfig) *Flow {
	known := map[StepKey]bool{}
	for _, s := range DefaultSteps() {
		known[s.Key] = true
	}
	var out []StepConfig
	for _, s := range steps {
		if !known[s.Key] {
			continue
		}
		if alwaysOn[s.Key] {
			s.Enabled = true
		}
		out = append(out, s)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Order < out[j].Order })
	return &Flow{steps: out}
}

// DefaultFlow is NewFlow(DefaultSteps()) with the given keys disabled.
func DefaultFlow(disabled ...StepKey) *Flow {
	off := map[StepKey]bool{}
	for _, k := range disabled {
		off[k] = true
	}
	steps := DefaultSteps()
	for i := range steps {
		if off[steps[i].Key] {
			steps[i].Enabled = false
		}
	}
	return NewFlow(steps)
}

// Steps returns a copy of the configuration rows in order.
func (f *Flow) Steps() []StepConfig {
	return append([]StepConfig(nil), f.steps...)
}

// Enabled returns the enabled step keys in order.
func (f *Flow) Enabled() []StepKey {
	var out []StepKey
	for _, s := range f.steps {
		if s.Enabled {
			out = append(out, s.Key)
		}
	}
	return out
}

// IsEnabled reports whether key is an enabled main step.
func (f *Flow) IsEnabled(key StepKey) bool {
	for _, s := range f.steps {
		if s.Key == key {
			return s.Enabled
		}
	}
	return false
}

func (f *Flow) index(key StepKey) int {
	for i, s := range f.steps {
		if s.Key == key {
			return i
		}
	}
	return -1
}

func (f *Flow) after(key StepKey) StepKey {
	i := f.index(key)
	if i < 0 {
		return key
	}
	for _, s := range f.steps[i+1:] {
		if s.Enabled {
			return s.Key
		}
	}
	return key
}

func (f *Flow) before(key StepKey) StepKey {
	i := f.index(key)
	for j := i - 1; j >= 0; j-- {
		if f.steps[j].Enabled {
			return f.steps[j].Key
		}
	}
	return StepCalendar
}

// NextStep decides where a forward move from current leads.  snap is the
// freshly derived capacity of the selected event, nil when none is
// selected.  From calendar a full event goes to the waitlist prompt and any
// other event to the first enabled step after calendar.  From any step
// before summary a full event also goes to the waitlist prompt.  Terminal
// steps stay where they are.
func NextStep(f *Flow, current StepKey, snap *capacity.Snapshot) StepKey {
	switch current {
	case StepSuccess, StepWaitlistSuccess:
		return current
	case StepWaitlistPrompt:
		return StepWaitlistSuccess
	case StepCalendar:
		if snap == nil {
			return StepCalendar
		}
	}
	if snap != nil && snap.Full && current != StepSummary {
		return StepWaitlistPrompt
	}
	return f.after(current)
}

// PrevStep decides where a backward move from current leads.  reset is
// true when the session must be wiped instead (from a terminal step).
// Landing on calendar always clears the selected event; callers check
// for StepCalendar.
func PrevStep(f *Flow, current StepKey) (prev StepKey, reset bool) {
	switch current {
	case StepSuccess, StepWaitlistSuccess:
		return StepCalendar, true
	case StepCalendar, StepPersons, StepWaitlistPrompt:
		return StepCalendar, false
	}
	return f.before(current), false
}
