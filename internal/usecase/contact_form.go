package usecase

import (
	"fmt"
	"regexp"

	"contact-form-service/internal/domain"
)

// whitespace is the set a browser regexp treats as \s. RE2's \s is ASCII
// only, so "\S+" would let \v, NBSP and the Unicode spaces through.
const whitespace = `\t\n\v\f\r \x{a0}\x{1680}\x{2000}-\x{200a}\x{2028}\x{2029}\x{202f}\x{205f}\x{3000}\x{feff}`

// emailShape is a coarse local@domain.tld check, not RFC 5322.
var emailShape = regexp.MustCompile(`^[^` + whitespace + `]+@[^` + whitespace + `]+\.[^` + whitespace + `]+$`)

// Validate returns the errors of data. An empty map means the form is valid.
func Validate(data domain.FormData) domain.ErrorMap {
	errs := domain.ErrorMap{}

	for _, f := range domain.TextFields {
		if v, _ := data.Get(f); v == "" {
			errs[f] = domain.RequiredMessage(f)
		}
	}

	// Runs for an empty email as well and overwrites the required message.
	if !emailShape.MatchString(data.Email) {
		errs[domain.FieldEmail] = domain.MsgInvalidEmail
	}

	if !data.Consent {
		errs[domain.FieldConsent] = domain.MsgConsent
	}

	return errs
}

// Reduce returns the state that follows s once a has been applied.
// s is never modified.
func Reduce(s domain.FormState, a domain.Action) (domain.FormState, error) {
	next := domain.FormState{
		Data:   s.Data,
		Phase:  s.Phase,
		Errors: s.Errors.Clone(),
	}
	if next.Phase == "" {
		next.Phase = domain.PhaseEditing
	}

	switch act := a.(type) {
	case domain.SetTextField:
		if err := next.Data.SetText(act.Field, act.Value); err != nil {
			return s, err
		}
		leaveSuccess(&next)
	case domain.SetConsent:
		next.Data.SetConsent(act.Value)
		leaveSuccess(&next)
	case domain.Submit:
		errs := Validate(next.Data)
		if len(errs) == 0 {
			return domain.FormState{Phase: domain.PhaseSuccess}, nil
		}
		next.Phase = domain.PhaseEditing
		next.Errors = errs
	default:
		return s, fmt.Errorf("%w: %T", domain.ErrUnknownAction, a)
	}

	return next, nil
}

// StepFunc observes one applied action. prev is the state a was applied to.
type StepFunc func(a domain.Action, prev, next domain.FormState)

// ReduceAll applies actions in order and stops at the first error. step,
// when not nil, sees every action that applied cleanly.
func ReduceAll(s domain.FormState, step StepFunc, actions ...domain.Action) (domain.FormState, error) {
	for _, a := range actions {
		next, err := Reduce(s, a)
		if err != nil {
			return s, err
		}
		if step != nil {
			step(a, s, next)
		}
		s = next
	}
	return s, nil
}

// Accepted reports whether a was a submit that passed validation.
func Accepted(a domain.Action, next domain.FormState) bool {
	_, ok := a.(domain.Submit)
	return ok && next.Phase == domain.PhaseSuccess
}

// leaveSuccess drops the success banner once the user edits the fresh form.
func leaveSuccess(s *domain.FormState) {
	if s.Phase == domain.PhaseSuccess {
		s.Phase = domain.PhaseEditing
		s.Errors = nil
	}
}
