package wizard

import (
	"errors"
	"fmt"
	"net/mail"
	"regexp"
	"sort"
	"strings"

	"github.com/iliyamo/venue-booking/internal/model"
)

// ErrValidation matches every *ValidationError via errors.Is.
var ErrValidation = errors.New("validation failed")

// DefaultMaxPartySize caps the persons step when no limit is configured.
const DefaultMaxPartySize = 50

var phonePattern = regexp.MustCompile(`^[\d\s+\-()]{10,}$`)

// ValidationError lists the fields that block a step.
type ValidationError struct {
	Step   StepKey           `json:"step"`
	Fields map[string]string `json:"fields"`
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return fmt.Sprintf("step %s: %s", e.Step, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// ValidateStep checks whether the form satisfies a step.  It returns nil or
// a *ValidationError.
func ValidateStep(step StepKey, eventID string, f model.FormData, maxParty int) error {
	if maxParty <= 0 {
		maxParty = DefaultMaxPartySize
	}
	fields := map[string]string{}
	switch step {
	case StepCalendar:
		if eventID == "" {
			fields["event_id"] = "select an event"
		}
	case StepPersons:
		if f.NumberOfPersons < 1 {
			fields["number_of_persons"] = "must be at least 1"
		} else if f.NumberOfPersons > maxParty {
			fields["number_of_persons"] = fmt.Sprintf("must be at most %d", maxParty)
		}
	case StepPackage:
		if f.Arrangement != model.ArrangementStandard && f.Arrangement != model.ArrangementPremium {
			fields["arrangement"] = "choose an arrangement"
		}
	case StepContact:
		if !validEmail(f.Email) {
			fields["email"] = "enter a valid email address"
		}
		if !phonePattern.MatchString(strings.TrimSpace(f.Phone)) {
			fields["phone"] = "enter a valid phone number"
		}
		if strings.TrimSpace(f.FirstName) == "" {
			fields["first_name"] = "required"
		}
		if strings.TrimSpace(f.LastName) == "" {
			fields["last_name"] = "required"
		}
	case StepDetails:
		if f.InvoiceNeeded {
			for name, v := range map[string]string{
				"company_name": f.CompanyName,
				"address":      f.Address,
				"city":         f.City,
				"postal_code":  f.PostalCode,
			} {
				if strings.TrimSpace(v) == "" {
					fields[name] = "required for an invoice"
				}
			}
		}
	case StepSummary:
		if !f.AcceptTerms {
			fields["accept_terms"] = "accept the terms to continue"
		}
	}
	if len(fields) == 0 {
		return nil
	}
	return &ValidationError{Step: step, Fields: fields}
}

func validEmail(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s
}
